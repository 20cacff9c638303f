package businessflow_test

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/podscale/adops/app/dto"
	businessflow "github.com/podscale/adops/business_flow"
	"github.com/podscale/adops/models"
	"github.com/podscale/adops/repository"
	testingutil "github.com/podscale/adops/testing"
	"github.com/podscale/adops/utils"
)

// newAllocationFlow wires a real allocation flow against the test database.
func newAllocationFlow(testDB *testingutil.TestDB, relaxedWindowDays int) businessflow.AllocationFlow {
	campaignRepo := repository.NewCampaignRepository(testDB.DB)
	spotRepo := repository.NewSpotRepository(testDB.DB)
	directoryRepo := repository.NewDirectoryRepository(testDB.DB)
	conflictFlow := businessflow.NewConflictFlow(campaignRepo, spotRepo, directoryRepo)
	return businessflow.NewAllocationFlow(
		repository.NewShowRepository(testDB.DB),
		repository.NewEpisodeRepository(testDB.DB),
		repository.NewRateCardRepository(testDB.DB),
		spotRepo,
		repository.NewReservationRepository(testDB.DB),
		campaignRepo,
		directoryRepo,
		conflictFlow,
		relaxedWindowDays,
	)
}

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse(utils.DateLayout, s)
	require.NoError(t, err)
	return d
}

func TestAllocationFlow(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		ctx := testingutil.CreateTestContext()
		fixtures := testingutil.NewTestFixtures(testDB)
		flow := newAllocationFlow(testDB, 7)

		_, p, err := fixtures.CreateTestOrganization("Alloc Test Network")
		require.NoError(t, err)

		advertiser, err := fixtures.CreateTestAdvertiser(p, "Bolt Coffee", nil)
		require.NoError(t, err)

		// 2026-09-07 is a Monday; one seeded episode per day through Sunday.
		monday := mustDate(t, "2026-09-07")

		baseRequest := func(showIDs []uint, spots int) *dto.SchedulePreviewRequest {
			return &dto.SchedulePreviewRequest{
				AdvertiserID:   advertiser.ID,
				ShowIDs:        showIDs,
				StartDate:      "2026-09-07",
				EndDate:        "2026-09-13",
				PlacementTypes: []string{"mid-roll"},
				SpotsRequested: spots,
			}
		}

		t.Run("OrdersByAirDateAscending", func(t *testing.T) {
			late, err := fixtures.SeedBasicInventory(p, "Later Show", monday.AddDate(0, 0, 2), 1)
			require.NoError(t, err)
			early, err := fixtures.SeedBasicInventory(p, "Earlier Show", monday.AddDate(0, 0, 1), 1)
			require.NoError(t, err)

			result, err := flow.Allocate(ctx, p, baseRequest([]uint{late.Show.ID, early.Show.ID}, 2))
			require.NoError(t, err)
			require.Len(t, result.WouldPlace, 2)
			assert.Equal(t, early.Show.ID, result.WouldPlace[0].ShowID)
			assert.Equal(t, late.Show.ID, result.WouldPlace[1].ShowID)
			assert.True(t, result.WouldPlace[0].AirDate.Before(result.WouldPlace[1].AirDate))
		})

		t.Run("SkipsExhaustedDaysAndAdvancesAcrossShows", func(t *testing.T) {
			showOne, err := fixtures.CreateTestShow(p, "Morning Brief")
			require.NoError(t, err)
			showTwo, err := fixtures.CreateTestShow(p, "Evening Wrap")
			require.NoError(t, err)

			effective := monday.AddDate(-1, 0, 0)
			for _, show := range []*models.Show{showOne, showTwo} {
				showCfg, err := fixtures.CreateTestShowConfiguration(p, show.ID, 1, 2, 1, effective)
				require.NoError(t, err)
				_, err = fixtures.CreateTestRateCard(p, showCfg.ID, models.PlacementMidRoll, 50000, effective)
				require.NoError(t, err)
			}

			// Morning Brief airs Monday and Wednesday, Evening Wrap Friday.
			_, err = fixtures.CreateTestEpisode(p, showOne.ID, "Monday Edition", monday)
			require.NoError(t, err)
			_, err = fixtures.CreateTestEpisode(p, showOne.ID, "Wednesday Edition", monday.AddDate(0, 0, 2))
			require.NoError(t, err)
			_, err = fixtures.CreateTestEpisode(p, showTwo.ID, "Friday Edition", monday.AddDate(0, 0, 4))
			require.NoError(t, err)

			result, err := flow.Allocate(ctx, p, baseRequest([]uint{showOne.ID, showTwo.ID}, 3))
			require.NoError(t, err)
			require.Len(t, result.WouldPlace, 3)

			// One spot per show per day: the second Monday slot is
			// skipped and the allocator advances to the next air date.
			assert.Equal(t, showOne.ID, result.WouldPlace[0].ShowID)
			assert.Equal(t, "2026-09-07", result.WouldPlace[0].AirDate.Format(utils.DateLayout))
			assert.Equal(t, showOne.ID, result.WouldPlace[1].ShowID)
			assert.Equal(t, "2026-09-09", result.WouldPlace[1].AirDate.Format(utils.DateLayout))
			assert.Equal(t, showTwo.ID, result.WouldPlace[2].ShowID)
			assert.Equal(t, "2026-09-11", result.WouldPlace[2].AirDate.Format(utils.DateLayout))
			assert.Equal(t, 0, result.Summary.Shortfall)
		})

		t.Run("RoundRobinsAcrossShowsOnSameDate", func(t *testing.T) {
			first, err := fixtures.SeedBasicInventory(p, "Robin A", monday, 1)
			require.NoError(t, err)
			second, err := fixtures.SeedBasicInventory(p, "Robin B", monday, 1)
			require.NoError(t, err)

			req := baseRequest([]uint{first.Show.ID, second.Show.ID}, 4)
			req.AllowMultiplePerShowPerDay = true
			result, err := flow.Allocate(ctx, p, req)
			require.NoError(t, err)
			require.Len(t, result.WouldPlace, 4)

			// Alternation, then the lower show ID breaks the tie.
			assert.Equal(t, first.Show.ID, result.WouldPlace[0].ShowID)
			assert.Equal(t, second.Show.ID, result.WouldPlace[1].ShowID)
			assert.Equal(t, first.Show.ID, result.WouldPlace[2].ShowID)
			assert.Equal(t, second.Show.ID, result.WouldPlace[3].ShowID)
		})

		t.Run("WeekdayFilterRestrictsPlacement", func(t *testing.T) {
			inv, err := fixtures.SeedBasicInventory(p, "Weekday Show", monday, 7)
			require.NoError(t, err)

			req := baseRequest([]uint{inv.Show.ID}, 10)
			req.Weekdays = []int{1, 3} // Monday and Wednesday
			result, err := flow.Allocate(ctx, p, req)
			require.NoError(t, err)
			require.Len(t, result.WouldPlace, 2)
			assert.Equal(t, time.Monday, result.WouldPlace[0].AirDate.Weekday())
			assert.Equal(t, time.Wednesday, result.WouldPlace[1].AirDate.Weekday())
			assert.Equal(t, 8, result.Summary.Shortfall)
			assert.False(t, result.Summary.FallbackApplied)
		})

		t.Run("OneSpotPerShowPerDayByDefault", func(t *testing.T) {
			inv, err := fixtures.SeedBasicInventory(p, "Cap Show", monday, 1)
			require.NoError(t, err)

			result, err := flow.Allocate(ctx, p, baseRequest([]uint{inv.Show.ID}, 2))
			require.NoError(t, err)
			assert.Len(t, result.WouldPlace, 1)
			assert.Equal(t, 1, result.Summary.Shortfall)
		})

		t.Run("MultiplePerShowPerDayWhenAllowed", func(t *testing.T) {
			inv, err := fixtures.SeedBasicInventory(p, "Cap Lifted Show", monday, 1)
			require.NoError(t, err)

			req := baseRequest([]uint{inv.Show.ID}, 2)
			req.AllowMultiplePerShowPerDay = true
			result, err := flow.Allocate(ctx, p, req)
			require.NoError(t, err)
			require.Len(t, result.WouldPlace, 2)
			assert.Equal(t, 1, result.WouldPlace[0].SlotNumber)
			assert.Equal(t, 2, result.WouldPlace[1].SlotNumber)

			req.MaxSpotsPerShowPerDay = utils.ToPtr(1)
			result, err = flow.Allocate(ctx, p, req)
			require.NoError(t, err)
			assert.Len(t, result.WouldPlace, 1)
		})

		t.Run("SpotsPerWeekCapsTheWeek", func(t *testing.T) {
			inv, err := fixtures.SeedBasicInventory(p, "Weekly Cap Show", monday, 7)
			require.NoError(t, err)

			req := baseRequest([]uint{inv.Show.ID}, 7)
			req.SpotsPerWeek = utils.ToPtr(3)
			result, err := flow.Allocate(ctx, p, req)
			require.NoError(t, err)
			assert.Len(t, result.WouldPlace, 3)
			assert.Equal(t, 4, result.Summary.Shortfall)
		})

		t.Run("RelaxedFallbackWidensTheWindow", func(t *testing.T) {
			// Only episode airs the Saturday before the requested window.
			inv, err := fixtures.SeedBasicInventory(p, "Relaxed Show", monday.AddDate(0, 0, -2), 1)
			require.NoError(t, err)

			req := baseRequest([]uint{inv.Show.ID}, 1)
			req.FallbackStrategy = "relaxed"
			result, err := flow.Allocate(ctx, p, req)
			require.NoError(t, err)
			require.Len(t, result.WouldPlace, 1)
			assert.Equal(t, "2026-09-05", result.WouldPlace[0].AirDate.Format(utils.DateLayout))
			assert.True(t, result.Summary.FallbackApplied)
			assert.Equal(t, "relaxed", result.Summary.FallbackStrategy)
		})

		t.Run("FillAnywhereRelaxesPlacementTypes", func(t *testing.T) {
			inv, err := fixtures.SeedBasicInventory(p, "Anywhere Show", monday, 1)
			require.NoError(t, err)

			req := baseRequest([]uint{inv.Show.ID}, 3)
			req.PlacementTypes = []string{"pre-roll"}
			req.AllowMultiplePerShowPerDay = true
			req.FallbackStrategy = "fill_anywhere"
			result, err := flow.Allocate(ctx, p, req)
			require.NoError(t, err)
			require.Len(t, result.WouldPlace, 3)
			assert.True(t, result.Summary.FallbackApplied)

			assert.Equal(t, models.PlacementPreRoll, result.WouldPlace[0].PlacementType)
			for _, spot := range result.WouldPlace[1:] {
				assert.NotEqual(t, models.PlacementPreRoll, spot.PlacementType)
			}
		})

		t.Run("NegotiatedRateDrivesTotalCost", func(t *testing.T) {
			inv, err := fixtures.SeedBasicInventory(p, "Negotiated Show", monday, 2)
			require.NoError(t, err)

			req := baseRequest([]uint{inv.Show.ID}, 2)
			req.NegotiatedRate = utils.ToPtr(int64(30000))
			result, err := flow.Allocate(ctx, p, req)
			require.NoError(t, err)
			require.Len(t, result.WouldPlace, 2)
			assert.Equal(t, int64(60000), result.Summary.TotalCost)
			// Spot rates still carry the rate card value.
			assert.Equal(t, int64(50000), result.WouldPlace[0].Rate)
		})

		t.Run("BookedSpotsReduceCapacity", func(t *testing.T) {
			inv, err := fixtures.SeedBasicInventory(p, "Booked Show", monday, 1)
			require.NoError(t, err)
			_, err = fixtures.CreateTestSpot(p, inv.Episodes[0], advertiser.ID, nil, models.PlacementMidRoll, 1, 50000)
			require.NoError(t, err)

			req := baseRequest([]uint{inv.Show.ID}, 2)
			req.AllowMultiplePerShowPerDay = true
			result, err := flow.Allocate(ctx, p, req)
			require.NoError(t, err)
			require.Len(t, result.WouldPlace, 1)
			assert.Equal(t, 2, result.WouldPlace[0].SlotNumber)
		})

		t.Run("LiveHoldsReduceCapacity", func(t *testing.T) {
			inv, err := fixtures.SeedBasicInventory(p, "Held Show", monday, 1)
			require.NoError(t, err)
			_, err = fixtures.CreateTestReservation(p, inv.Episodes[0].ID, models.PlacementMidRoll, 1,
				uuid.New(), utils.UTCNow().Add(time.Hour))
			require.NoError(t, err)

			req := baseRequest([]uint{inv.Show.ID}, 2)
			req.AllowMultiplePerShowPerDay = true
			result, err := flow.Allocate(ctx, p, req)
			require.NoError(t, err)
			require.Len(t, result.WouldPlace, 1)
			assert.Equal(t, 2, result.WouldPlace[0].SlotNumber)
		})

		t.Run("ExpiredHoldsDoNotCount", func(t *testing.T) {
			inv, err := fixtures.SeedBasicInventory(p, "Expired Hold Show", monday, 1)
			require.NoError(t, err)
			_, err = fixtures.CreateTestReservation(p, inv.Episodes[0].ID, models.PlacementMidRoll, 1,
				uuid.New(), utils.UTCNow().Add(-time.Hour))
			require.NoError(t, err)

			req := baseRequest([]uint{inv.Show.ID}, 2)
			req.AllowMultiplePerShowPerDay = true
			result, err := flow.Allocate(ctx, p, req)
			require.NoError(t, err)
			assert.Len(t, result.WouldPlace, 2)
		})

		t.Run("MissingRateCardIsHardError", func(t *testing.T) {
			show, err := fixtures.CreateTestShow(p, "Unpriced Show")
			require.NoError(t, err)
			_, err = fixtures.CreateTestShowConfiguration(p, show.ID, 1, 2, 1, monday.AddDate(-1, 0, 0))
			require.NoError(t, err)
			_, err = fixtures.CreateTestEpisode(p, show.ID, "Unpriced Episode", monday)
			require.NoError(t, err)

			_, err = flow.Allocate(ctx, p, baseRequest([]uint{show.ID}, 1))
			require.Error(t, err)
			assert.Equal(t, businessflow.ErrCodeRateCardMissing, businessflow.ErrorCode(err))
			assert.True(t, errors.Is(err, businessflow.ErrRateCardMissing))
		})

		t.Run("UnknownShowIsForeignKeyError", func(t *testing.T) {
			_, err := flow.Allocate(ctx, p, baseRequest([]uint{999999}, 1))
			require.Error(t, err)
			assert.Equal(t, businessflow.ErrCodeForeignKey, businessflow.ErrorCode(err))
			assert.True(t, errors.Is(err, businessflow.ErrShowNotFound))
		})

		t.Run("UnknownAdvertiserIsForeignKeyError", func(t *testing.T) {
			inv, err := fixtures.SeedBasicInventory(p, "Orphan Advertiser Show", monday, 1)
			require.NoError(t, err)

			req := baseRequest([]uint{inv.Show.ID}, 1)
			req.AdvertiserID = 999999
			_, err = flow.Allocate(ctx, p, req)
			require.Error(t, err)
			assert.Equal(t, businessflow.ErrCodeForeignKey, businessflow.ErrorCode(err))
			assert.True(t, errors.Is(err, businessflow.ErrAdvertiserNotFound))
		})

		t.Run("InvalidFallbackStrategy", func(t *testing.T) {
			req := baseRequest([]uint{1}, 1)
			req.FallbackStrategy = "wishful"
			_, err := flow.Allocate(ctx, p, req)
			require.Error(t, err)
			assert.Equal(t, businessflow.ErrCodeInvalidInput, businessflow.ErrorCode(err))
			assert.True(t, errors.Is(err, businessflow.ErrInvalidFallback))
		})

		t.Run("InvertedDateRange", func(t *testing.T) {
			req := baseRequest([]uint{1}, 1)
			req.StartDate = "2026-09-13"
			req.EndDate = "2026-09-07"
			_, err := flow.Allocate(ctx, p, req)
			require.Error(t, err)
			assert.Equal(t, businessflow.ErrCodeInvalidInput, businessflow.ErrorCode(err))
			assert.True(t, errors.Is(err, businessflow.ErrInvalidDateRange))
		})

		t.Run("InvalidPartitionRejected", func(t *testing.T) {
			_, err := flow.Allocate(ctx, models.Partition{Schema: "public"}, baseRequest([]uint{1}, 1))
			require.Error(t, err)
			assert.Equal(t, businessflow.ErrCodeSchemaViolation, businessflow.ErrorCode(err))
		})

		return nil
	})
	require.NoError(t, err)
}

func TestParseFallbackStrategy(t *testing.T) {
	t.Run("EmptyDefaultsToStrict", func(t *testing.T) {
		strategy, err := businessflow.ParseFallbackStrategy("")
		require.NoError(t, err)
		assert.Equal(t, businessflow.FallbackStrict, strategy)
	})

	t.Run("KnownValues", func(t *testing.T) {
		for _, s := range []string{"strict", "relaxed", "fill_anywhere"} {
			strategy, err := businessflow.ParseFallbackStrategy(s)
			require.NoError(t, err)
			assert.Equal(t, businessflow.FallbackStrategy(s), strategy)
		}
	})

	t.Run("UnknownValue", func(t *testing.T) {
		_, err := businessflow.ParseFallbackStrategy("aggressive")
		assert.ErrorIs(t, err, businessflow.ErrInvalidFallback)
	})
}
