package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/podscale/adops/models"
	"github.com/podscale/adops/utils"
	"gorm.io/gorm"
)

// CampaignRepositoryImpl implements the CampaignRepository interface
type CampaignRepositoryImpl struct {
	*TenantRepository[models.Campaign, models.CampaignFilter]
}

// NewCampaignRepository creates a new campaign repository
func NewCampaignRepository(db *gorm.DB) CampaignRepository {
	return &CampaignRepositoryImpl{
		TenantRepository: NewTenantRepository[models.Campaign, models.CampaignFilter](db, models.Campaign{}.TableName()),
	}
}

// ByUUID retrieves a campaign by UUID within the partition
func (r *CampaignRepositoryImpl) ByUUID(ctx context.Context, p models.Partition, id uuid.UUID) (*models.Campaign, error) {
	var campaign models.Campaign
	err := r.scoped(ctx, p).Where("uuid = ?", id).Last(&campaign).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &campaign, nil
}

// Update persists campaign changes
func (r *CampaignRepositoryImpl) Update(ctx context.Context, p models.Partition, c *models.Campaign) error {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}

	if shouldCommit {
		defer func() {
			if err != nil {
				db.Rollback()
			} else {
				db.Commit()
			}
		}()
	}

	c.UpdatedAt = utils.UTCNowPtr()
	err = db.Table(p.Qualify(r.table)).Where("id = ?", c.ID).Updates(c).Error
	if err != nil {
		return err
	}

	return nil
}

// ListConflictCandidates retrieves the other campaigns of a category that
// participate in conflict checks (in_reservations, approved or active).
func (r *CampaignRepositoryImpl) ListConflictCandidates(ctx context.Context, p models.Partition, categoryID uint, excludeID uint) ([]*models.Campaign, error) {
	var campaigns []*models.Campaign
	err := r.scoped(ctx, p).
		Where("category_id = ?", categoryID).
		Where("id <> ?", excludeID).
		Where("status IN ?", []models.CampaignStatus{
			models.CampaignStatusInReservations,
			models.CampaignStatusApproved,
			models.CampaignStatusActive,
		}).
		Order("id ASC").
		Find(&campaigns).Error
	if err != nil {
		return nil, err
	}

	return campaigns, nil
}

// ListByAdvertisers retrieves conflict-relevant campaigns of the given advertisers
func (r *CampaignRepositoryImpl) ListByAdvertisers(ctx context.Context, p models.Partition, advertiserIDs []uint) ([]*models.Campaign, error) {
	if len(advertiserIDs) == 0 {
		return nil, nil
	}

	var campaigns []*models.Campaign
	err := r.scoped(ctx, p).
		Where("advertiser_id IN ?", advertiserIDs).
		Where("status IN ?", []models.CampaignStatus{
			models.CampaignStatusInReservations,
			models.CampaignStatusApproved,
			models.CampaignStatusActive,
		}).
		Order("id ASC").
		Find(&campaigns).Error
	if err != nil {
		return nil, err
	}

	return campaigns, nil
}
