package businessflow_test

import (
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

func newAvailabilityFlow(testDB *testingutil.TestDB) businessflow.AvailabilityFlow {
	return businessflow.NewAvailabilityFlow(
		repository.NewShowRepository(testDB.DB),
		repository.NewEpisodeRepository(testDB.DB),
		repository.NewRateCardRepository(testDB.DB),
		repository.NewSpotRepository(testDB.DB),
		repository.NewReservationRepository(testDB.DB),
		nil,
		0,
	)
}

func placementByType(t *testing.T, ep dto.EpisodeAvailabilityDTO, placement string) dto.PlacementAvailabilityDTO {
	t.Helper()
	for _, pa := range ep.Placements {
		if pa.PlacementType == placement {
			return pa
		}
	}
	t.Fatalf("placement %s not reported for episode %d", placement, ep.EpisodeID)
	return dto.PlacementAvailabilityDTO{}
}

func TestAvailabilityFlow(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		ctx := testingutil.CreateTestContext()
		fixtures := testingutil.NewTestFixtures(testDB)
		flow := newAvailabilityFlow(testDB)

		_, p, err := fixtures.CreateTestOrganization("Availability Test Network")
		require.NoError(t, err)
		advertiser, err := fixtures.CreateTestAdvertiser(p, "Grid Power", nil)
		require.NoError(t, err)

		monday := mustDate(t, "2026-09-07")

		t.Run("ReportsCapacityBookedAndHeld", func(t *testing.T) {
			inv, err := fixtures.SeedBasicInventory(p, "Metric Show", monday, 1)
			require.NoError(t, err)
			episode := inv.Episodes[0]

			_, err = fixtures.CreateTestSpot(p, episode, advertiser.ID, nil, models.PlacementMidRoll, 1, 50000)
			require.NoError(t, err)
			_, err = fixtures.CreateTestReservation(p, episode.ID, models.PlacementMidRoll, 2,
				uuid.New(), utils.UTCNow().Add(time.Hour))
			require.NoError(t, err)

			resp, err := flow.QueryAvailability(ctx, p, businessflow.AvailabilityQuery{
				ShowIDs:   []uint{inv.Show.ID},
				StartDate: monday,
				EndDate:   monday.AddDate(0, 0, 6),
			})
			require.NoError(t, err)
			assert.False(t, resp.Cached)
			require.Len(t, resp.Episodes, 1)

			ep := resp.Episodes[0]
			assert.Equal(t, episode.ID, ep.EpisodeID)
			assert.Equal(t, "Metric Show", ep.ShowName)
			assert.Equal(t, monday.Format(utils.DateLayout), ep.AirDate)

			mid := placementByType(t, ep, "mid-roll")
			assert.Equal(t, 2, mid.Capacity)
			assert.Equal(t, 1, mid.Booked)
			assert.Equal(t, 1, mid.Held)
			assert.Equal(t, 0, mid.Available)
			require.NotNil(t, mid.Rate)
			assert.Equal(t, int64(50000), *mid.Rate)

			pre := placementByType(t, ep, "pre-roll")
			assert.Equal(t, 1, pre.Capacity)
			assert.Equal(t, 1, pre.Available)
			require.NotNil(t, pre.Rate)
			assert.Equal(t, int64(25000), *pre.Rate)
		})

		t.Run("AvailabilityNeverGoesNegative", func(t *testing.T) {
			inv, err := fixtures.SeedBasicInventory(p, "Oversold Show", monday, 1)
			require.NoError(t, err)
			episode := inv.Episodes[0]

			// One booking plus an overlapping hold on the single pre-roll slot.
			_, err = fixtures.CreateTestSpot(p, episode, advertiser.ID, nil, models.PlacementPreRoll, 1, 25000)
			require.NoError(t, err)
			_, err = fixtures.CreateTestReservation(p, episode.ID, models.PlacementPreRoll, 1,
				uuid.New(), utils.UTCNow().Add(time.Hour))
			require.NoError(t, err)

			resp, err := flow.QueryAvailability(ctx, p, businessflow.AvailabilityQuery{
				ShowIDs:   []uint{inv.Show.ID},
				StartDate: monday,
				EndDate:   monday,
			})
			require.NoError(t, err)
			require.Len(t, resp.Episodes, 1)

			pre := placementByType(t, resp.Episodes[0], "pre-roll")
			assert.Equal(t, 0, pre.Available)
		})

		t.Run("PlacementFilterNarrowsReport", func(t *testing.T) {
			inv, err := fixtures.SeedBasicInventory(p, "Filtered Show", monday, 1)
			require.NoError(t, err)

			resp, err := flow.QueryAvailability(ctx, p, businessflow.AvailabilityQuery{
				ShowIDs:        []uint{inv.Show.ID},
				StartDate:      monday,
				EndDate:        monday,
				PlacementTypes: []models.PlacementType{models.PlacementPreRoll},
			})
			require.NoError(t, err)
			require.Len(t, resp.Episodes, 1)
			require.Len(t, resp.Episodes[0].Placements, 1)
			assert.Equal(t, "pre-roll", resp.Episodes[0].Placements[0].PlacementType)
		})

		t.Run("EmptyShowListCoversAllShows", func(t *testing.T) {
			first, err := fixtures.SeedBasicInventory(p, "Wide Net One", monday.AddDate(1, 0, 0), 1)
			require.NoError(t, err)
			second, err := fixtures.SeedBasicInventory(p, "Wide Net Two", monday.AddDate(1, 0, 0), 1)
			require.NoError(t, err)

			resp, err := flow.QueryAvailability(ctx, p, businessflow.AvailabilityQuery{
				StartDate: monday.AddDate(1, 0, 0),
				EndDate:   monday.AddDate(1, 0, 0),
			})
			require.NoError(t, err)

			seen := make(map[uint]bool)
			for _, ep := range resp.Episodes {
				seen[ep.ShowID] = true
			}
			assert.True(t, seen[first.Show.ID])
			assert.True(t, seen[second.Show.ID])
		})

		t.Run("EpisodesOutsideWindowExcluded", func(t *testing.T) {
			inv, err := fixtures.SeedBasicInventory(p, "Window Show", monday, 7)
			require.NoError(t, err)

			resp, err := flow.QueryAvailability(ctx, p, businessflow.AvailabilityQuery{
				ShowIDs:   []uint{inv.Show.ID},
				StartDate: monday,
				EndDate:   monday.AddDate(0, 0, 2),
			})
			require.NoError(t, err)
			assert.Len(t, resp.Episodes, 3)
		})

		t.Run("InvertedRangeRejected", func(t *testing.T) {
			_, err := flow.QueryAvailability(ctx, p, businessflow.AvailabilityQuery{
				StartDate: monday.AddDate(0, 0, 7),
				EndDate:   monday,
			})
			require.Error(t, err)
			assert.Equal(t, businessflow.ErrCodeInvalidInput, businessflow.ErrorCode(err))
		})

		t.Run("InvalidPartitionRejected", func(t *testing.T) {
			_, err := flow.QueryAvailability(ctx, models.Partition{Schema: "public"}, businessflow.AvailabilityQuery{
				StartDate: monday,
				EndDate:   monday,
			})
			require.Error(t, err)
			assert.Equal(t, businessflow.ErrCodeSchemaViolation, businessflow.ErrorCode(err))
		})

		return nil
	})
	require.NoError(t, err)
}
