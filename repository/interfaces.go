// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/podscale/adops/models"
)

// OrganizationRepository defines operations for the public organization registry
type OrganizationRepository interface {
	ByID(ctx context.Context, id uint) (*models.Organization, error)
	BySlug(ctx context.Context, slug string) (*models.Organization, error)
	ListActive(ctx context.Context) ([]models.Organization, error)
	Save(ctx context.Context, org *models.Organization) error
}

// MembershipRepository defines operations for user/organization mappings
type MembershipRepository interface {
	ByUserID(ctx context.Context, userID uint) (*models.Membership, error)
	Save(ctx context.Context, m *models.Membership) error
}

// CrossTenantAuditRepository records superuser cross-partition access
type CrossTenantAuditRepository interface {
	Save(ctx context.Context, entry *models.CrossTenantAuditLog) error
	ListByUser(ctx context.Context, userID uint, limit, offset int) ([]*models.CrossTenantAuditLog, error)
}

// ShowRepository defines operations for shows and their configurations
type ShowRepository interface {
	ByID(ctx context.Context, p models.Partition, id uint) (*models.Show, error)
	ByIDs(ctx context.Context, p models.Partition, ids []uint) ([]*models.Show, error)
	Save(ctx context.Context, p models.Partition, show *models.Show) error
	ListConfigurations(ctx context.Context, p models.Partition, showIDs []uint) ([]*models.ShowConfiguration, error)
	SaveConfiguration(ctx context.Context, p models.Partition, cfg *models.ShowConfiguration) error
}

// EpisodeRepository defines operations for episodes
type EpisodeRepository interface {
	ByID(ctx context.Context, p models.Partition, id uint) (*models.Episode, error)
	ListInRange(ctx context.Context, p models.Partition, showIDs []uint, start, end time.Time) ([]*models.Episode, error)
	Save(ctx context.Context, p models.Partition, episode *models.Episode) error
	IncrementBooked(ctx context.Context, p models.Partition, episodeID uint, placement models.PlacementType, by int) error
	// LockByID takes a row-level lock on the episode. Must be called
	// inside a transaction; commits lock the episode before re-checking
	// its slots so two claims on the same free slot serialize instead of
	// colliding on the spot unique index.
	LockByID(ctx context.Context, p models.Partition, id uint) error
}

// RateCardRepository defines operations for rate cards and deltas
type RateCardRepository interface {
	ListForConfigurations(ctx context.Context, p models.Partition, configIDs []uint) ([]*models.RateCard, error)
	Save(ctx context.Context, p models.Partition, card *models.RateCard) error
	SaveDelta(ctx context.Context, p models.Partition, delta *models.RateCardDelta) error
}

// SlotClaim identifies one bookable slot.
type SlotClaim struct {
	EpisodeID     uint
	PlacementType models.PlacementType
	SlotNumber    int
}

// SpotRepository defines operations for scheduled spots
type SpotRepository interface {
	Save(ctx context.Context, p models.Partition, spot *models.ScheduledSpot) error
	ListActiveByEpisodes(ctx context.Context, p models.Partition, episodeIDs []uint) ([]*models.ScheduledSpot, error)
	ListByCampaign(ctx context.Context, p models.Partition, campaignID uint) ([]*models.ScheduledSpot, error)
	CampaignSpotRange(ctx context.Context, p models.Partition, campaignID uint) (*time.Time, *time.Time, error)
	CountByCorrelation(ctx context.Context, p models.Partition, correlationID uuid.UUID) (int64, error)
	// LockSlot takes a row-level lock on all active spots occupying the
	// claim and returns how many exist. Must be called inside a
	// transaction; the count is authoritative until commit/rollback.
	LockSlot(ctx context.Context, p models.Partition, claim SlotClaim) (int64, error)
}

// ReservationRepository defines operations for inventory reservations
type ReservationRepository interface {
	Save(ctx context.Context, p models.Partition, r *models.InventoryReservation) error
	ListHoldingByEpisodes(ctx context.Context, p models.Partition, episodeIDs []uint, now time.Time) ([]*models.InventoryReservation, error)
	// LockSlotHolds locks and counts non-expired holds on the claim.
	LockSlotHolds(ctx context.Context, p models.Partition, claim SlotClaim, now time.Time) (int64, error)
	// ReleaseExpired marks all expired reserved/confirmed holds as
	// released and returns the number of rows touched.
	ReleaseExpired(ctx context.Context, p models.Partition, now time.Time) (int64, error)
	ReleaseBySchedule(ctx context.Context, p models.Partition, scheduleRef uuid.UUID) (int64, error)
}

// CampaignRepository defines operations for campaigns
type CampaignRepository interface {
	ByID(ctx context.Context, p models.Partition, id uint) (*models.Campaign, error)
	ByUUID(ctx context.Context, p models.Partition, id uuid.UUID) (*models.Campaign, error)
	Save(ctx context.Context, p models.Partition, c *models.Campaign) error
	Update(ctx context.Context, p models.Partition, c *models.Campaign) error
	ListConflictCandidates(ctx context.Context, p models.Partition, categoryID uint, excludeID uint) ([]*models.Campaign, error)
	ListByAdvertisers(ctx context.Context, p models.Partition, advertiserIDs []uint) ([]*models.Campaign, error)
}

// DirectoryRepository defines lookups for advertisers, agencies,
// categories and competitor sets.
type DirectoryRepository interface {
	AdvertiserByID(ctx context.Context, p models.Partition, id uint) (*models.Advertiser, error)
	AgencyByID(ctx context.Context, p models.Partition, id uint) (*models.Agency, error)
	CategoryByID(ctx context.Context, p models.Partition, id uint) (*models.CampaignCategory, error)
	CompetitorSetByID(ctx context.Context, p models.Partition, id uint) (*models.CompetitorSet, error)
	ListCompetitors(ctx context.Context, p models.Partition, competitorSetID uint) ([]*models.Advertiser, error)
	SaveAdvertiser(ctx context.Context, p models.Partition, a *models.Advertiser) error
	SaveAgency(ctx context.Context, p models.Partition, a *models.Agency) error
	SaveCategory(ctx context.Context, p models.Partition, c *models.CampaignCategory) error
	SaveCompetitorSet(ctx context.Context, p models.Partition, s *models.CompetitorSet) error
}

// IdempotencyRepository defines operations for bulk schedule idempotency records
type IdempotencyRepository interface {
	ByKey(ctx context.Context, p models.Partition, key uuid.UUID) (*models.BulkScheduleIdempotency, error)
	Save(ctx context.Context, p models.Partition, rec *models.BulkScheduleIdempotency) error
}

// ActivityLogRepository defines operations for tenant activity logs
type ActivityLogRepository interface {
	Save(ctx context.Context, p models.Partition, entry *models.ActivityLog) error
	ListByCorrelation(ctx context.Context, p models.Partition, correlationID uuid.UUID) ([]*models.ActivityLog, error)
	ListByCampaign(ctx context.Context, p models.Partition, campaignID uint) ([]*models.ActivityLog, error)
}

// TenantProvisioner creates tenant schemas and their tables
type TenantProvisioner interface {
	Provision(ctx context.Context, p models.Partition) error
}
