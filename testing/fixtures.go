// Package testing provides test utilities and database setup for testing the scheduling platform
package testing

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/podscale/adops/models"
	"github.com/podscale/adops/utils"
)

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// CreateTestOrganization creates an organization and provisions its tenant
// schema. The slug and schema name are derived from the name.
func (tf *TestFixtures) CreateTestOrganization(name string) (*models.Organization, models.Partition, error) {
	org := &models.Organization{
		Name:     name,
		IsActive: utils.ToPtr(true),
	}
	if err := tf.DB.DB.Create(org).Error; err != nil {
		return nil, models.Partition{}, fmt.Errorf("failed to create test organization: %w", err)
	}

	p, err := tf.DB.ProvisionTenant(org.SchemaName)
	if err != nil {
		return nil, models.Partition{}, fmt.Errorf("failed to provision tenant schema %s: %w", org.SchemaName, err)
	}

	return org, p, nil
}

// CreateTestMembership creates a membership for a fresh random user
func (tf *TestFixtures) CreateTestMembership(orgID uint, role models.MembershipRole) (*models.Membership, error) {
	m := &models.Membership{
		UserID:         uint(rand.Intn(900000) + 100000),
		OrganizationID: orgID,
		Role:           role,
	}
	if err := tf.DB.DB.Create(m).Error; err != nil {
		return nil, fmt.Errorf("failed to create test membership: %w", err)
	}
	return m, nil
}

// CreateTestShow creates an active show in the tenant partition
func (tf *TestFixtures) CreateTestShow(p models.Partition, name string) (*models.Show, error) {
	show := &models.Show{
		Name:     name,
		Category: "technology",
		IsActive: utils.ToPtr(true),
	}
	if err := tf.DB.DB.Table(p.Qualify("shows")).Create(show).Error; err != nil {
		return nil, fmt.Errorf("failed to create test show: %w", err)
	}
	return show, nil
}

// CreateTestShowConfiguration creates a slot configuration for a show
func (tf *TestFixtures) CreateTestShowConfiguration(p models.Partition, showID uint, pre, mid, post int, effective time.Time) (*models.ShowConfiguration, error) {
	cfg := &models.ShowConfiguration{
		ShowID:        showID,
		PreRollSlots:  pre,
		MidRollSlots:  mid,
		PostRollSlots: post,
		EffectiveDate: effective,
	}
	if err := tf.DB.DB.Table(p.Qualify("show_configurations")).Create(cfg).Error; err != nil {
		return nil, fmt.Errorf("failed to create test show configuration: %w", err)
	}
	return cfg, nil
}

// CreateTestRateCard creates a rate card for one placement of a configuration
func (tf *TestFixtures) CreateTestRateCard(p models.Partition, configID uint, placement models.PlacementType, rate int64, effective time.Time) (*models.RateCard, error) {
	card := &models.RateCard{
		ShowConfigurationID: configID,
		PlacementType:       placement,
		Rate:                rate,
		EffectiveDate:       effective,
	}
	if err := tf.DB.DB.Table(p.Qualify("rate_cards")).Create(card).Error; err != nil {
		return nil, fmt.Errorf("failed to create test rate card: %w", err)
	}
	return card, nil
}

// CreateTestEpisode creates a scheduled episode for a show
func (tf *TestFixtures) CreateTestEpisode(p models.Partition, showID uint, title string, airDate time.Time) (*models.Episode, error) {
	episode := &models.Episode{
		ShowID:  showID,
		Title:   title,
		AirDate: airDate,
		Status:  models.EpisodeStatusScheduled,
	}
	if err := tf.DB.DB.Table(p.Qualify("episodes")).Create(episode).Error; err != nil {
		return nil, fmt.Errorf("failed to create test episode: %w", err)
	}
	return episode, nil
}

// CreateTestCategory creates a campaign category with the given conflict policy
func (tf *TestFixtures) CreateTestCategory(p models.Partition, name string, policy models.ConflictPolicy) (*models.CampaignCategory, error) {
	category := &models.CampaignCategory{
		Name:           name,
		ConflictPolicy: policy,
	}
	if err := tf.DB.DB.Table(p.Qualify("campaign_categories")).Create(category).Error; err != nil {
		return nil, fmt.Errorf("failed to create test category: %w", err)
	}
	return category, nil
}

// CreateTestCompetitorSet creates a competitor set within a category
func (tf *TestFixtures) CreateTestCompetitorSet(p models.Partition, categoryID uint, name string) (*models.CompetitorSet, error) {
	set := &models.CompetitorSet{
		CategoryID: categoryID,
		Name:       name,
	}
	if err := tf.DB.DB.Table(p.Qualify("competitor_sets")).Create(set).Error; err != nil {
		return nil, fmt.Errorf("failed to create test competitor set: %w", err)
	}
	return set, nil
}

// CreateTestAdvertiser creates an advertiser, optionally in a competitor set
func (tf *TestFixtures) CreateTestAdvertiser(p models.Partition, name string, competitorSetID *uint) (*models.Advertiser, error) {
	advertiser := &models.Advertiser{
		Name:            name,
		CompetitorSetID: competitorSetID,
	}
	if err := tf.DB.DB.Table(p.Qualify("advertisers")).Create(advertiser).Error; err != nil {
		return nil, fmt.Errorf("failed to create test advertiser: %w", err)
	}
	return advertiser, nil
}

// CreateTestAgency creates a media agency
func (tf *TestFixtures) CreateTestAgency(p models.Partition, name string) (*models.Agency, error) {
	agency := &models.Agency{Name: name}
	if err := tf.DB.DB.Table(p.Qualify("agencies")).Create(agency).Error; err != nil {
		return nil, fmt.Errorf("failed to create test agency: %w", err)
	}
	return agency, nil
}

// CreateTestCampaign creates a campaign in the given status
func (tf *TestFixtures) CreateTestCampaign(p models.Partition, name string, advertiserID, categoryID uint, start, end time.Time, status models.CampaignStatus) (*models.Campaign, error) {
	campaign := &models.Campaign{
		Name:         name,
		AdvertiserID: advertiserID,
		CategoryID:   categoryID,
		Status:       status,
		StartDate:    start,
		EndDate:      end,
	}
	if err := tf.DB.DB.Table(p.Qualify("campaigns")).Create(campaign).Error; err != nil {
		return nil, fmt.Errorf("failed to create test campaign: %w", err)
	}
	return campaign, nil
}

// CreateTestSpot books one slot directly, bypassing the commit flow
func (tf *TestFixtures) CreateTestSpot(p models.Partition, episode *models.Episode, advertiserID uint, campaignID *uint, placement models.PlacementType, slot int, rate int64) (*models.ScheduledSpot, error) {
	spot := &models.ScheduledSpot{
		EpisodeID:      episode.ID,
		ShowID:         episode.ShowID,
		CampaignID:     campaignID,
		AdvertiserID:   advertiserID,
		AirDate:        episode.AirDate,
		PlacementType:  placement,
		SlotNumber:     slot,
		Rate:           rate,
		Status:         models.SpotStatusBooked,
		ScheduleStatus: models.ScheduleStatusApproved,
	}
	if err := tf.DB.DB.Table(p.Qualify("scheduled_spots")).Create(spot).Error; err != nil {
		return nil, fmt.Errorf("failed to create test spot: %w", err)
	}
	return spot, nil
}

// CreateTestReservation places a hold on one slot
func (tf *TestFixtures) CreateTestReservation(p models.Partition, episodeID uint, placement models.PlacementType, slot int, scheduleRef uuid.UUID, expiresAt time.Time) (*models.InventoryReservation, error) {
	hold := &models.InventoryReservation{
		EpisodeID:     episodeID,
		PlacementType: placement,
		SlotNumber:    slot,
		ScheduleRef:   scheduleRef,
		Status:        models.ReservationStatusReserved,
		ExpiresAt:     expiresAt,
	}
	if err := tf.DB.DB.Table(p.Qualify("inventory_reservations")).Create(hold).Error; err != nil {
		return nil, fmt.Errorf("failed to create test reservation: %w", err)
	}
	return hold, nil
}

// Inventory bundles the fixtures produced by SeedBasicInventory.
type Inventory struct {
	Show     *models.Show
	Config   *models.ShowConfiguration
	Episodes []*models.Episode
}

// SeedBasicInventory creates one show with a standard configuration
// (1 pre-roll, 2 mid-roll, 1 post-roll), rate cards for all placements,
// and one episode per day over the given window.
func (tf *TestFixtures) SeedBasicInventory(p models.Partition, name string, firstAir time.Time, days int) (*Inventory, error) {
	show, err := tf.CreateTestShow(p, name)
	if err != nil {
		return nil, err
	}

	effective := firstAir.AddDate(-1, 0, 0)
	cfg, err := tf.CreateTestShowConfiguration(p, show.ID, 1, 2, 1, effective)
	if err != nil {
		return nil, err
	}

	rates := map[models.PlacementType]int64{
		models.PlacementPreRoll:  25000,
		models.PlacementMidRoll:  50000,
		models.PlacementPostRoll: 15000,
	}
	for _, placement := range models.AllPlacementTypes() {
		if _, err := tf.CreateTestRateCard(p, cfg.ID, placement, rates[placement], effective); err != nil {
			return nil, err
		}
	}

	inv := &Inventory{Show: show, Config: cfg}
	for i := 0; i < days; i++ {
		episode, err := tf.CreateTestEpisode(p, show.ID, fmt.Sprintf("%s #%d", name, i+1), firstAir.AddDate(0, 0, i))
		if err != nil {
			return nil, err
		}
		inv.Episodes = append(inv.Episodes, episode)
	}

	return inv, nil
}
