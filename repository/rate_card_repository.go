package repository

import (
	"context"

	"github.com/podscale/adops/models"
	"gorm.io/gorm"
)

// RateCardRepositoryImpl implements the RateCardRepository interface
type RateCardRepositoryImpl struct {
	*TenantRepository[models.RateCard, models.RateCardFilter]
	deltas *TenantRepository[models.RateCardDelta, any]
}

// NewRateCardRepository creates a new rate card repository
func NewRateCardRepository(db *gorm.DB) RateCardRepository {
	return &RateCardRepositoryImpl{
		TenantRepository: NewTenantRepository[models.RateCard, models.RateCardFilter](db, models.RateCard{}.TableName()),
		deltas:           NewTenantRepository[models.RateCardDelta, any](db, models.RateCardDelta{}.TableName()),
	}
}

// ListForConfigurations retrieves every rate card version belonging to the
// given show configurations. Effective-date selection happens in the
// business flow so the precedence rule is testable in isolation.
func (r *RateCardRepositoryImpl) ListForConfigurations(ctx context.Context, p models.Partition, configIDs []uint) ([]*models.RateCard, error) {
	if len(configIDs) == 0 {
		return nil, nil
	}

	var cards []*models.RateCard
	err := r.scoped(ctx, p).
		Where("show_configuration_id IN ?", configIDs).
		Order("show_configuration_id ASC, placement_type ASC, effective_date ASC").
		Find(&cards).Error
	if err != nil {
		return nil, err
	}

	return cards, nil
}

// SaveDelta appends a rate-card delta audit row
func (r *RateCardRepositoryImpl) SaveDelta(ctx context.Context, p models.Partition, delta *models.RateCardDelta) error {
	delta.Delta = delta.NegotiatedRate - delta.RateCardRate
	return r.deltas.Save(ctx, p, delta)
}
