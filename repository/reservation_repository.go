package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/podscale/adops/models"
	"github.com/podscale/adops/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReservationRepositoryImpl implements the ReservationRepository interface
type ReservationRepositoryImpl struct {
	*TenantRepository[models.InventoryReservation, models.InventoryReservationFilter]
}

// NewReservationRepository creates a new inventory reservation repository
func NewReservationRepository(db *gorm.DB) ReservationRepository {
	return &ReservationRepositoryImpl{
		TenantRepository: NewTenantRepository[models.InventoryReservation, models.InventoryReservationFilter](db, models.InventoryReservation{}.TableName()),
	}
}

// ListHoldingByEpisodes retrieves the reservations still consuming
// capacity for a set of episodes: reserved or confirmed, not yet expired.
func (r *ReservationRepositoryImpl) ListHoldingByEpisodes(ctx context.Context, p models.Partition, episodeIDs []uint, now time.Time) ([]*models.InventoryReservation, error) {
	if len(episodeIDs) == 0 {
		return nil, nil
	}

	var holds []*models.InventoryReservation
	err := r.scoped(ctx, p).
		Where("episode_id IN ?", episodeIDs).
		Where("status IN ?", []models.ReservationStatus{models.ReservationStatusReserved, models.ReservationStatusConfirmed}).
		Where("expires_at > ?", now).
		Find(&holds).Error
	if err != nil {
		return nil, err
	}

	return holds, nil
}

// LockSlotHolds locks and counts the non-expired holds on one slot. Must
// run inside the commit transaction: the lock keeps a concurrent hold or
// release from racing the availability re-check.
func (r *ReservationRepositoryImpl) LockSlotHolds(ctx context.Context, p models.Partition, claim SlotClaim, now time.Time) (int64, error) {
	var rows []models.InventoryReservation
	err := r.scoped(ctx, p).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("episode_id = ?", claim.EpisodeID).
		Where("placement_type = ?", claim.PlacementType).
		Where("slot_number = ?", claim.SlotNumber).
		Where("status IN ?", []models.ReservationStatus{models.ReservationStatusReserved, models.ReservationStatusConfirmed}).
		Where("expires_at > ?", now).
		Find(&rows).Error
	if err != nil {
		return 0, err
	}

	return int64(len(rows)), nil
}

// ReleaseExpired marks every expired reserved/confirmed hold as released.
// Administrative bulk release for stuck or orphaned holds; expiry already
// removes them from availability math, this just tidies the table.
func (r *ReservationRepositoryImpl) ReleaseExpired(ctx context.Context, p models.Partition, now time.Time) (int64, error) {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return 0, err
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

	result := db.Table(p.Qualify(r.table)).
		Where("status IN ?", []models.ReservationStatus{models.ReservationStatusReserved, models.ReservationStatusConfirmed}).
		Where("expires_at <= ?", now).
		Updates(map[string]any{
			"status":     models.ReservationStatusReleased,
			"updated_at": utils.UTCNow(),
		})
	if result.Error != nil {
		err = result.Error
		return 0, err
	}

	return result.RowsAffected, nil
}

// ReleaseBySchedule releases every hold belonging to one draft schedule
func (r *ReservationRepositoryImpl) ReleaseBySchedule(ctx context.Context, p models.Partition, scheduleRef uuid.UUID) (int64, error) {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return 0, err
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

	result := db.Table(p.Qualify(r.table)).
		Where("schedule_ref = ?", scheduleRef).
		Where("status IN ?", []models.ReservationStatus{models.ReservationStatusReserved, models.ReservationStatusConfirmed}).
		Updates(map[string]any{
			"status":     models.ReservationStatusReleased,
			"updated_at": utils.UTCNow(),
		})
	if result.Error != nil {
		err = result.Error
		return 0, err
	}

	return result.RowsAffected, nil
}
