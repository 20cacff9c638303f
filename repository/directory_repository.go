package repository

import (
	"context"

	"github.com/podscale/adops/models"
	"gorm.io/gorm"
)

// DirectoryRepositoryImpl implements the DirectoryRepository interface.
// Advertisers, agencies, categories and competitor sets are small lookup
// tables sharing identical access patterns, so they live together.
type DirectoryRepositoryImpl struct {
	advertisers *TenantRepository[models.Advertiser, any]
	agencies    *TenantRepository[models.Agency, any]
	categories  *TenantRepository[models.CampaignCategory, any]
	sets        *TenantRepository[models.CompetitorSet, any]
}

// NewDirectoryRepository creates a new directory repository
func NewDirectoryRepository(db *gorm.DB) DirectoryRepository {
	return &DirectoryRepositoryImpl{
		advertisers: NewTenantRepository[models.Advertiser, any](db, models.Advertiser{}.TableName()),
		agencies:    NewTenantRepository[models.Agency, any](db, models.Agency{}.TableName()),
		categories:  NewTenantRepository[models.CampaignCategory, any](db, models.CampaignCategory{}.TableName()),
		sets:        NewTenantRepository[models.CompetitorSet, any](db, models.CompetitorSet{}.TableName()),
	}
}

// AdvertiserByID retrieves an advertiser by ID
func (r *DirectoryRepositoryImpl) AdvertiserByID(ctx context.Context, p models.Partition, id uint) (*models.Advertiser, error) {
	return r.advertisers.ByID(ctx, p, id)
}

// AgencyByID retrieves an agency by ID
func (r *DirectoryRepositoryImpl) AgencyByID(ctx context.Context, p models.Partition, id uint) (*models.Agency, error) {
	return r.agencies.ByID(ctx, p, id)
}

// CategoryByID retrieves a campaign category by ID
func (r *DirectoryRepositoryImpl) CategoryByID(ctx context.Context, p models.Partition, id uint) (*models.CampaignCategory, error) {
	return r.categories.ByID(ctx, p, id)
}

// CompetitorSetByID retrieves a competitor set by ID
func (r *DirectoryRepositoryImpl) CompetitorSetByID(ctx context.Context, p models.Partition, id uint) (*models.CompetitorSet, error) {
	return r.sets.ByID(ctx, p, id)
}

// ListCompetitors retrieves every advertiser belonging to a competitor set
func (r *DirectoryRepositoryImpl) ListCompetitors(ctx context.Context, p models.Partition, competitorSetID uint) ([]*models.Advertiser, error) {
	var advertisers []*models.Advertiser
	err := r.advertisers.scoped(ctx, p).
		Where("competitor_set_id = ?", competitorSetID).
		Order("id ASC").
		Find(&advertisers).Error
	if err != nil {
		return nil, err
	}

	return advertisers, nil
}

// SaveAdvertiser inserts an advertiser
func (r *DirectoryRepositoryImpl) SaveAdvertiser(ctx context.Context, p models.Partition, a *models.Advertiser) error {
	return r.advertisers.Save(ctx, p, a)
}

// SaveAgency inserts an agency
func (r *DirectoryRepositoryImpl) SaveAgency(ctx context.Context, p models.Partition, a *models.Agency) error {
	return r.agencies.Save(ctx, p, a)
}

// SaveCategory inserts a campaign category
func (r *DirectoryRepositoryImpl) SaveCategory(ctx context.Context, p models.Partition, c *models.CampaignCategory) error {
	return r.categories.Save(ctx, p, c)
}

// SaveCompetitorSet inserts a competitor set
func (r *DirectoryRepositoryImpl) SaveCompetitorSet(ctx context.Context, p models.Partition, s *models.CompetitorSet) error {
	return r.sets.Save(ctx, p, s)
}
