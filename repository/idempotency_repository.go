package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/podscale/adops/models"
	"gorm.io/gorm"
)

// IdempotencyRepositoryImpl implements the IdempotencyRepository interface
type IdempotencyRepositoryImpl struct {
	*TenantRepository[models.BulkScheduleIdempotency, any]
}

// NewIdempotencyRepository creates a new idempotency record repository
func NewIdempotencyRepository(db *gorm.DB) IdempotencyRepository {
	return &IdempotencyRepositoryImpl{
		TenantRepository: NewTenantRepository[models.BulkScheduleIdempotency, any](db, models.BulkScheduleIdempotency{}.TableName()),
	}
}

// ByKey retrieves the idempotency record for a key, nil when absent.
// Freshness against the TTL window is the caller's concern.
func (r *IdempotencyRepositoryImpl) ByKey(ctx context.Context, p models.Partition, key uuid.UUID) (*models.BulkScheduleIdempotency, error) {
	var rec models.BulkScheduleIdempotency
	err := r.scoped(ctx, p).Where("key = ?", key).Last(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &rec, nil
}

// ActivityLogRepositoryImpl implements the ActivityLogRepository interface
type ActivityLogRepositoryImpl struct {
	*TenantRepository[models.ActivityLog, models.ActivityLogFilter]
}

// NewActivityLogRepository creates a new activity log repository
func NewActivityLogRepository(db *gorm.DB) ActivityLogRepository {
	return &ActivityLogRepositoryImpl{
		TenantRepository: NewTenantRepository[models.ActivityLog, models.ActivityLogFilter](db, models.ActivityLog{}.TableName()),
	}
}

// ListByCorrelation retrieves activity entries for one correlation ID
func (r *ActivityLogRepositoryImpl) ListByCorrelation(ctx context.Context, p models.Partition, correlationID uuid.UUID) ([]*models.ActivityLog, error) {
	var entries []*models.ActivityLog
	err := r.scoped(ctx, p).
		Where("correlation_id = ?", correlationID).
		Order("created_at ASC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}

	return entries, nil
}

// ListByCampaign retrieves a campaign's audit trail, newest first
func (r *ActivityLogRepositoryImpl) ListByCampaign(ctx context.Context, p models.Partition, campaignID uint) ([]*models.ActivityLog, error) {
	var entries []*models.ActivityLog
	err := r.scoped(ctx, p).
		Where("campaign_id = ?", campaignID).
		Order("created_at DESC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}

	return entries, nil
}
