package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/podscale/adops/models"
	"github.com/podscale/adops/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EpisodeRepositoryImpl implements the EpisodeRepository interface
type EpisodeRepositoryImpl struct {
	*TenantRepository[models.Episode, models.EpisodeFilter]
}

// NewEpisodeRepository creates a new episode repository
func NewEpisodeRepository(db *gorm.DB) EpisodeRepository {
	return &EpisodeRepositoryImpl{
		TenantRepository: NewTenantRepository[models.Episode, models.EpisodeFilter](db, models.Episode{}.TableName()),
	}
}

// ListInRange retrieves episodes of the given shows airing inside the
// inclusive date range, chronologically ordered.
func (r *EpisodeRepositoryImpl) ListInRange(ctx context.Context, p models.Partition, showIDs []uint, start, end time.Time) ([]*models.Episode, error) {
	if len(showIDs) == 0 {
		return nil, nil
	}

	var episodes []*models.Episode
	err := r.scoped(ctx, p).
		Where("show_id IN ?", showIDs).
		Where("air_date >= ? AND air_date <= ?", start, end).
		Order("air_date ASC, show_id ASC, id ASC").
		Find(&episodes).Error
	if err != nil {
		return nil, err
	}

	return episodes, nil
}

// LockByID takes SELECT ... FOR UPDATE on the episode row. Claims on a
// free slot have no spot row to lock, so commits serialize on the episode
// instead: the second writer blocks here until the first commits, then
// re-checks the slot and sees the winner's row.
func (r *EpisodeRepositoryImpl) LockByID(ctx context.Context, p models.Partition, id uint) error {
	var episode models.Episode
	err := r.scoped(ctx, p).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&episode).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("episode %d not found", id)
		}
		return err
	}

	return nil
}

// IncrementBooked bumps the episode's denormalized booked counter for one
// placement type. Called inside the commit transaction alongside the spot
// insert it accounts for.
func (r *EpisodeRepositoryImpl) IncrementBooked(ctx context.Context, p models.Partition, episodeID uint, placement models.PlacementType, by int) error {
	column := models.BookedColumnFor(placement)
	if column == "" {
		return fmt.Errorf("unknown placement type %q", placement)
	}

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

	err = db.Table(p.Qualify(r.table)).
		Where("id = ?", episodeID).
		Updates(map[string]any{
			column:       gorm.Expr(column+" + ?", by),
			"updated_at": utils.UTCNow(),
		}).Error
	if err != nil {
		return err
	}

	return nil
}
