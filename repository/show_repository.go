package repository

import (
	"context"

	"github.com/podscale/adops/models"
	"gorm.io/gorm"
)

// ShowRepositoryImpl implements the ShowRepository interface
type ShowRepositoryImpl struct {
	*TenantRepository[models.Show, models.ShowFilter]
	configs *TenantRepository[models.ShowConfiguration, any]
}

// NewShowRepository creates a new show repository
func NewShowRepository(db *gorm.DB) ShowRepository {
	return &ShowRepositoryImpl{
		TenantRepository: NewTenantRepository[models.Show, models.ShowFilter](db, models.Show{}.TableName()),
		configs:          NewTenantRepository[models.ShowConfiguration, any](db, models.ShowConfiguration{}.TableName()),
	}
}

// ByIDs retrieves shows by their IDs within the partition. An empty ID
// list returns every show in the partition.
func (r *ShowRepositoryImpl) ByIDs(ctx context.Context, p models.Partition, ids []uint) ([]*models.Show, error) {
	query := r.scoped(ctx, p)
	if len(ids) > 0 {
		query = query.Where("id IN ?", ids)
	}

	var shows []*models.Show
	err := query.Order("id ASC").Find(&shows).Error
	if err != nil {
		return nil, err
	}

	return shows, nil
}

// ListConfigurations retrieves all slot configurations for the given shows.
// Effective-date precedence is resolved by the caller; the repository
// returns every version so the selection rule stays in one place.
func (r *ShowRepositoryImpl) ListConfigurations(ctx context.Context, p models.Partition, showIDs []uint) ([]*models.ShowConfiguration, error) {
	if len(showIDs) == 0 {
		return nil, nil
	}

	var configs []*models.ShowConfiguration
	err := r.configs.scoped(ctx, p).
		Where("show_id IN ?", showIDs).
		Order("show_id ASC, effective_date ASC").
		Find(&configs).Error
	if err != nil {
		return nil, err
	}

	return configs, nil
}

// SaveConfiguration inserts a new show configuration version
func (r *ShowRepositoryImpl) SaveConfiguration(ctx context.Context, p models.Partition, cfg *models.ShowConfiguration) error {
	return r.configs.Save(ctx, p, cfg)
}
