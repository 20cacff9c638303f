package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/podscale/adops/models"
	"github.com/podscale/adops/repository"
	testingutil "github.com/podscale/adops/testing"
	"github.com/podscale/adops/utils"
)

func TestOrganizationRepository(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		ctx := testingutil.CreateTestContext()
		repo := repository.NewOrganizationRepository(testDB.DB)

		active := &models.Organization{Name: "Active Pod Network", IsActive: utils.ToPtr(true)}
		require.NoError(t, repo.Save(ctx, active))
		dormant := &models.Organization{Name: "Dormant Pod Network", IsActive: utils.ToPtr(false)}
		require.NoError(t, repo.Save(ctx, dormant))

		t.Run("BySlug", func(t *testing.T) {
			found, err := repo.BySlug(ctx, active.Slug)
			require.NoError(t, err)
			require.NotNil(t, found)
			assert.Equal(t, active.ID, found.ID)
			assert.Equal(t, "org_active_pod_network", found.SchemaName)
		})

		t.Run("BySlugUnknown", func(t *testing.T) {
			found, err := repo.BySlug(ctx, "nope")
			require.NoError(t, err)
			assert.Nil(t, found)
		})

		t.Run("ListActiveSkipsDormant", func(t *testing.T) {
			orgs, err := repo.ListActive(ctx)
			require.NoError(t, err)
			require.Len(t, orgs, 1)
			assert.Equal(t, active.ID, orgs[0].ID)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestShowAndEpisodeRepositories(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		ctx := testingutil.CreateTestContext()
		fixtures := testingutil.NewTestFixtures(testDB)
		showRepo := repository.NewShowRepository(testDB.DB)
		episodeRepo := repository.NewEpisodeRepository(testDB.DB)

		_, p, err := fixtures.CreateTestOrganization("Repo Test Network")
		require.NoError(t, err)

		first, err := fixtures.CreateTestShow(p, "First Show")
		require.NoError(t, err)
		second, err := fixtures.CreateTestShow(p, "Second Show")
		require.NoError(t, err)

		day := func(offset int) time.Time {
			return time.Date(2026, 10, 1+offset, 0, 0, 0, 0, time.UTC)
		}
		for i := 0; i < 5; i++ {
			_, err := fixtures.CreateTestEpisode(p, first.ID, "First Ep", day(i))
			require.NoError(t, err)
		}
		_, err = fixtures.CreateTestEpisode(p, second.ID, "Second Ep", day(2))
		require.NoError(t, err)

		t.Run("ByIDsNilReturnsAllShows", func(t *testing.T) {
			shows, err := showRepo.ByIDs(ctx, p, nil)
			require.NoError(t, err)
			assert.Len(t, shows, 2)
		})

		t.Run("ByIDsFilters", func(t *testing.T) {
			shows, err := showRepo.ByIDs(ctx, p, []uint{second.ID})
			require.NoError(t, err)
			require.Len(t, shows, 1)
			assert.Equal(t, "Second Show", shows[0].Name)
		})

		t.Run("ByIDUnknownIsNil", func(t *testing.T) {
			show, err := showRepo.ByID(ctx, p, 999999)
			require.NoError(t, err)
			assert.Nil(t, show)
		})

		t.Run("ListInRangeBoundsAreInclusive", func(t *testing.T) {
			episodes, err := episodeRepo.ListInRange(ctx, p, []uint{first.ID}, day(1), day(3))
			require.NoError(t, err)
			assert.Len(t, episodes, 3)
			for _, ep := range episodes {
				assert.False(t, ep.AirDate.Before(day(1)))
				assert.False(t, ep.AirDate.After(day(3)))
			}
		})

		t.Run("ListInRangeSpansShows", func(t *testing.T) {
			episodes, err := episodeRepo.ListInRange(ctx, p, []uint{first.ID, second.ID}, day(2), day(2))
			require.NoError(t, err)
			assert.Len(t, episodes, 2)
		})

		t.Run("IncrementBooked", func(t *testing.T) {
			episode, err := fixtures.CreateTestEpisode(p, first.ID, "Counter Ep", day(10))
			require.NoError(t, err)

			require.NoError(t, episodeRepo.IncrementBooked(ctx, p, episode.ID, models.PlacementMidRoll, 1))
			require.NoError(t, episodeRepo.IncrementBooked(ctx, p, episode.ID, models.PlacementMidRoll, 1))
			require.NoError(t, episodeRepo.IncrementBooked(ctx, p, episode.ID, models.PlacementPostRoll, 1))

			reloaded, err := episodeRepo.ByID(ctx, p, episode.ID)
			require.NoError(t, err)
			require.NotNil(t, reloaded)
			assert.Equal(t, 0, reloaded.PreRollBooked)
			assert.Equal(t, 2, reloaded.MidRollBooked)
			assert.Equal(t, 1, reloaded.PostRollBooked)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestSpotRepository(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		ctx := testingutil.CreateTestContext()
		fixtures := testingutil.NewTestFixtures(testDB)
		spotRepo := repository.NewSpotRepository(testDB.DB)

		_, p, err := fixtures.CreateTestOrganization("Spot Repo Network")
		require.NoError(t, err)

		monday := time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)
		inv, err := fixtures.SeedBasicInventory(p, "Spot Repo Show", monday, 5)
		require.NoError(t, err)
		advertiser, err := fixtures.CreateTestAdvertiser(p, "Span Brands", nil)
		require.NoError(t, err)
		category, err := fixtures.CreateTestCategory(p, "finance", models.ConflictPolicyBlock)
		require.NoError(t, err)
		campaign, err := fixtures.CreateTestCampaign(p, "Span Push", advertiser.ID, category.ID,
			monday, monday.AddDate(0, 0, 30), models.CampaignStatusDraft)
		require.NoError(t, err)

		t.Run("CampaignSpotRangeEmpty", func(t *testing.T) {
			start, end, err := spotRepo.CampaignSpotRange(ctx, p, campaign.ID)
			require.NoError(t, err)
			assert.Nil(t, start)
			assert.Nil(t, end)
		})

		t.Run("CampaignSpotRangeSpansBookings", func(t *testing.T) {
			_, err := fixtures.CreateTestSpot(p, inv.Episodes[1], advertiser.ID, utils.ToPtr(campaign.ID), models.PlacementMidRoll, 1, 50000)
			require.NoError(t, err)
			_, err = fixtures.CreateTestSpot(p, inv.Episodes[4], advertiser.ID, utils.ToPtr(campaign.ID), models.PlacementMidRoll, 1, 50000)
			require.NoError(t, err)

			start, end, err := spotRepo.CampaignSpotRange(ctx, p, campaign.ID)
			require.NoError(t, err)
			require.NotNil(t, start)
			require.NotNil(t, end)
			assert.True(t, start.Equal(inv.Episodes[1].AirDate))
			assert.True(t, end.Equal(inv.Episodes[4].AirDate))
		})

		t.Run("ListActiveByEpisodesSkipsCancelled", func(t *testing.T) {
			episode := inv.Episodes[0]
			spot, err := fixtures.CreateTestSpot(p, episode, advertiser.ID, nil, models.PlacementPreRoll, 1, 25000)
			require.NoError(t, err)

			active, err := spotRepo.ListActiveByEpisodes(ctx, p, []uint{episode.ID})
			require.NoError(t, err)
			require.Len(t, active, 1)

			require.NoError(t, testDB.DB.Table(p.Qualify("scheduled_spots")).
				Where("id = ?", spot.ID).
				Update("status", string(models.SpotStatusCancelled)).Error)

			active, err = spotRepo.ListActiveByEpisodes(ctx, p, []uint{episode.ID})
			require.NoError(t, err)
			assert.Empty(t, active)
		})

		t.Run("CountByCorrelation", func(t *testing.T) {
			correlation := uuid.New()
			episode := inv.Episodes[3]
			for slot := 1; slot <= 2; slot++ {
				spot := &models.ScheduledSpot{
					EpisodeID:     episode.ID,
					ShowID:        episode.ShowID,
					AdvertiserID:  advertiser.ID,
					AirDate:       episode.AirDate,
					PlacementType: models.PlacementMidRoll,
					SlotNumber:    slot,
					Rate:          50000,
					CorrelationID: correlation,
				}
				require.NoError(t, spotRepo.Save(ctx, p, spot))
			}

			n, err := spotRepo.CountByCorrelation(ctx, p, correlation)
			require.NoError(t, err)
			assert.Equal(t, int64(2), n)

			n, err = spotRepo.CountByCorrelation(ctx, p, uuid.New())
			require.NoError(t, err)
			assert.Zero(t, n)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestIdempotencyAndActivityRepositories(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		ctx := testingutil.CreateTestContext()
		fixtures := testingutil.NewTestFixtures(testDB)
		idempotencyRepo := repository.NewIdempotencyRepository(testDB.DB)
		activityRepo := repository.NewActivityLogRepository(testDB.DB)

		_, p, err := fixtures.CreateTestOrganization("Idem Repo Network")
		require.NoError(t, err)

		t.Run("ByKeyUnknownIsNil", func(t *testing.T) {
			record, err := idempotencyRepo.ByKey(ctx, p, uuid.New())
			require.NoError(t, err)
			assert.Nil(t, record)
		})

		t.Run("SaveAndReplayRecord", func(t *testing.T) {
			key := uuid.New()
			record := &models.BulkScheduleIdempotency{
				Key:       key,
				Result:    []byte(`{"message":"schedule committed"}`),
				CreatedAt: utils.UTCNow(),
			}
			require.NoError(t, idempotencyRepo.Save(ctx, p, record))

			found, err := idempotencyRepo.ByKey(ctx, p, key)
			require.NoError(t, err)
			require.NotNil(t, found)
			assert.JSONEq(t, `{"message":"schedule committed"}`, string(found.Result))
			assert.True(t, found.FreshAt(utils.UTCNow(), utils.IdempotencyTTL))
		})

		t.Run("ActivityListByCorrelation", func(t *testing.T) {
			correlation := uuid.New()
			for _, action := range []string{models.ActivityActionScheduleCommitted, models.ActivityActionWorkflowAdvanced} {
				entry := &models.ActivityLog{
					Action:        action,
					CorrelationID: correlation,
					CreatedAt:     utils.UTCNow(),
				}
				require.NoError(t, activityRepo.Save(ctx, p, entry))
			}
			require.NoError(t, activityRepo.Save(ctx, p, &models.ActivityLog{
				Action:        models.ActivityActionReservationsReleased,
				CorrelationID: uuid.New(),
				CreatedAt:     utils.UTCNow(),
			}))

			entries, err := activityRepo.ListByCorrelation(ctx, p, correlation)
			require.NoError(t, err)
			assert.Len(t, entries, 2)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestWithTransactionRollback(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		ctx := testingutil.CreateTestContext()
		fixtures := testingutil.NewTestFixtures(testDB)
		showRepo := repository.NewShowRepository(testDB.DB)

		_, p, err := fixtures.CreateTestOrganization("Txn Repo Network")
		require.NoError(t, err)

		boom := errors.New("boom")
		txErr := repository.WithTransaction(ctx, testDB.DB, func(txCtx context.Context) error {
			show := &models.Show{Name: "Phantom Show", Category: "true crime", IsActive: utils.ToPtr(true)}
			if err := showRepo.Save(txCtx, p, show); err != nil {
				return err
			}
			return boom
		})
		require.ErrorIs(t, txErr, boom)

		shows, err := showRepo.ByIDs(ctx, p, nil)
		require.NoError(t, err)
		assert.Empty(t, shows)

		t.Run("CommitsOnSuccess", func(t *testing.T) {
			txErr := repository.WithTransaction(ctx, testDB.DB, func(txCtx context.Context) error {
				return showRepo.Save(txCtx, p, &models.Show{Name: "Durable Show", Category: "history", IsActive: utils.ToPtr(true)})
			})
			require.NoError(t, txErr)

			shows, err := showRepo.ByIDs(ctx, p, nil)
			require.NoError(t, err)
			assert.Len(t, shows, 1)
		})

		return nil
	})
	require.NoError(t, err)
}
