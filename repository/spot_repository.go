package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/podscale/adops/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SpotRepositoryImpl implements the SpotRepository interface
type SpotRepositoryImpl struct {
	*TenantRepository[models.ScheduledSpot, models.ScheduledSpotFilter]
}

// NewSpotRepository creates a new scheduled spot repository
func NewSpotRepository(db *gorm.DB) SpotRepository {
	return &SpotRepositoryImpl{
		TenantRepository: NewTenantRepository[models.ScheduledSpot, models.ScheduledSpotFilter](db, models.ScheduledSpot{}.TableName()),
	}
}

// ListActiveByEpisodes retrieves the booked, inventory-consuming spots for
// a set of episodes. Cancelled spots and draft/completed schedules do not
// count against availability.
func (r *SpotRepositoryImpl) ListActiveByEpisodes(ctx context.Context, p models.Partition, episodeIDs []uint) ([]*models.ScheduledSpot, error) {
	if len(episodeIDs) == 0 {
		return nil, nil
	}

	var spots []*models.ScheduledSpot
	err := r.scoped(ctx, p).
		Where("episode_id IN ?", episodeIDs).
		Where("status = ?", models.SpotStatusBooked).
		Where("schedule_status IN ?", []models.ScheduleStatus{models.ScheduleStatusApproved, models.ScheduleStatusActive}).
		Find(&spots).Error
	if err != nil {
		return nil, err
	}

	return spots, nil
}

// ListByCampaign retrieves all non-cancelled spots of a campaign
func (r *SpotRepositoryImpl) ListByCampaign(ctx context.Context, p models.Partition, campaignID uint) ([]*models.ScheduledSpot, error) {
	var spots []*models.ScheduledSpot
	err := r.scoped(ctx, p).
		Where("campaign_id = ?", campaignID).
		Where("status = ?", models.SpotStatusBooked).
		Order("air_date ASC, id ASC").
		Find(&spots).Error
	if err != nil {
		return nil, err
	}

	return spots, nil
}

// CampaignSpotRange returns the first and last air date of a campaign's
// booked spots. Both are nil when the campaign has no spots yet.
func (r *SpotRepositoryImpl) CampaignSpotRange(ctx context.Context, p models.Partition, campaignID uint) (*time.Time, *time.Time, error) {
	type rangeRow struct {
		MinDate *time.Time
		MaxDate *time.Time
	}
	var row rangeRow
	err := r.scoped(ctx, p).
		Select("MIN(air_date) AS min_date, MAX(air_date) AS max_date").
		Where("campaign_id = ?", campaignID).
		Where("status = ?", models.SpotStatusBooked).
		Scan(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, nil
		}
		return nil, nil, err
	}

	return row.MinDate, row.MaxDate, nil
}

// CountByCorrelation counts spots inserted under one commit correlation ID
func (r *SpotRepositoryImpl) CountByCorrelation(ctx context.Context, p models.Partition, correlationID uuid.UUID) (int64, error) {
	var count int64
	err := r.scoped(ctx, p).
		Where("correlation_id = ?", correlationID).
		Count(&count).Error
	if err != nil {
		return 0, err
	}

	return count, nil
}

// LockSlot takes SELECT ... FOR UPDATE on all active spots occupying the
// claim and returns how many exist. Two concurrent commits targeting the
// same slot serialize here; the loser observes count > 0 and records a
// slot_taken conflict instead of double-booking.
func (r *SpotRepositoryImpl) LockSlot(ctx context.Context, p models.Partition, claim SlotClaim) (int64, error) {
	var rows []models.ScheduledSpot
	err := r.scoped(ctx, p).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("episode_id = ?", claim.EpisodeID).
		Where("placement_type = ?", claim.PlacementType).
		Where("slot_number = ?", claim.SlotNumber).
		Where("status = ?", models.SpotStatusBooked).
		Where("schedule_status IN ?", []models.ScheduleStatus{models.ScheduleStatusApproved, models.ScheduleStatusActive}).
		Find(&rows).Error
	if err != nil {
		return 0, err
	}

	return int64(len(rows)), nil
}
