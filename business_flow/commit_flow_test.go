package businessflow_test

import (
	"context"
	"errors"
	"sync"
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

// stubAllocationFlow returns a canned allocation so commit-path behavior
// can be exercised independently of the allocator.
type stubAllocationFlow struct {
	result *businessflow.AllocationResult
	err    error
}

func (s *stubAllocationFlow) Allocate(ctx context.Context, p models.Partition, req *dto.SchedulePreviewRequest) (*businessflow.AllocationResult, error) {
	return s.result, s.err
}

func newCommitFlow(testDB *testingutil.TestDB, alloc businessflow.AllocationFlow) businessflow.CommitFlow {
	return businessflow.NewCommitFlow(
		testDB.DB,
		alloc,
		repository.NewSpotRepository(testDB.DB),
		repository.NewEpisodeRepository(testDB.DB),
		repository.NewReservationRepository(testDB.DB),
		repository.NewRateCardRepository(testDB.DB),
		repository.NewCampaignRepository(testDB.DB),
		repository.NewIdempotencyRepository(testDB.DB),
		repository.NewActivityLogRepository(testDB.DB),
		0,
	)
}

func countRows(testDB *testingutil.TestDB, p models.Partition, table string, query string, args ...any) int64 {
	var n int64
	q := testDB.DB.Table(p.Qualify(table))
	if query != "" {
		q = q.Where(query, args...)
	}
	q.Count(&n)
	return n
}

func TestCommitFlow(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		ctx := testingutil.CreateTestContext()
		fixtures := testingutil.NewTestFixtures(testDB)
		commitFlow := newCommitFlow(testDB, newAllocationFlow(testDB, 7))
		campaignRepo := repository.NewCampaignRepository(testDB.DB)
		episodeRepo := repository.NewEpisodeRepository(testDB.DB)
		idempotencyRepo := repository.NewIdempotencyRepository(testDB.DB)

		_, p, err := fixtures.CreateTestOrganization("Commit Test Network")
		require.NoError(t, err)

		category, err := fixtures.CreateTestCategory(p, "automotive", models.ConflictPolicyWarn)
		require.NoError(t, err)
		advertiser, err := fixtures.CreateTestAdvertiser(p, "Volt Motors", nil)
		require.NoError(t, err)

		monday := mustDate(t, "2026-09-07")
		meta := businessflow.NewClientMetadata("127.0.0.1", "commit-test")

		commitRequest := func(showIDs []uint, spots int, campaignID *uint) *dto.ScheduleCommitRequest {
			return &dto.ScheduleCommitRequest{
				SchedulePreviewRequest: dto.SchedulePreviewRequest{
					CampaignID:     campaignID,
					AdvertiserID:   advertiser.ID,
					ShowIDs:        showIDs,
					StartDate:      "2026-09-07",
					EndDate:        "2026-09-13",
					PlacementTypes: []string{"mid-roll"},
					SpotsRequested: spots,
				},
			}
		}

		t.Run("CommitPersistsSpotsAndCounters", func(t *testing.T) {
			inv, err := fixtures.SeedBasicInventory(p, "Commit Show", monday, 2)
			require.NoError(t, err)
			campaign, err := fixtures.CreateTestCampaign(p, "Volt Launch", advertiser.ID, category.ID,
				monday, monday.AddDate(0, 0, 30), models.CampaignStatusDraft)
			require.NoError(t, err)

			req := commitRequest([]uint{inv.Show.ID}, 2, utils.ToPtr(campaign.ID))
			req.NegotiatedRate = utils.ToPtr(int64(42000))
			resp, err := commitFlow.Commit(ctx, p, req, meta)
			require.NoError(t, err)

			require.Len(t, resp.Committed, 2)
			assert.False(t, resp.IdempotentReplay)
			assert.Empty(t, resp.FinalConflicts)
			assert.Equal(t, 2, resp.Summary.SpotsPlaced)
			assert.Equal(t, int64(84000), resp.Summary.TotalCost)
			for _, spot := range resp.Committed {
				require.NotNil(t, spot.SpotID)
			}

			assert.Equal(t, int64(2), countRows(testDB, p, "scheduled_spots", "campaign_id = ?", campaign.ID))
			assert.Equal(t, int64(2), countRows(testDB, p, "rate_card_deltas", "campaign_id = ?", campaign.ID))

			episode, err := episodeRepo.ByID(ctx, p, inv.Episodes[0].ID)
			require.NoError(t, err)
			require.NotNil(t, episode)
			assert.Equal(t, 1, episode.MidRollBooked)

			key, err := uuid.Parse(resp.IdempotencyKey)
			require.NoError(t, err)
			record, err := idempotencyRepo.ByKey(ctx, p, key)
			require.NoError(t, err)
			require.NotNil(t, record)

			// The post-commit hook advances a draft campaign asynchronously.
			assert.Eventually(t, func() bool {
				current, err := campaignRepo.ByID(ctx, p, campaign.ID)
				return err == nil && current != nil && current.Status == models.CampaignStatusInReservations
			}, 5*time.Second, 100*time.Millisecond)

			entries, err := commitFlow.CampaignActivity(ctx, p, campaign.UUID)
			require.NoError(t, err)
			require.Len(t, entries, 2)
			actions := []string{entries[0].Action, entries[1].Action}
			assert.Contains(t, actions, models.ActivityActionScheduleCommitted)
			assert.Contains(t, actions, models.ActivityActionWorkflowAdvanced)
		})

		t.Run("ActivityForUnknownCampaign", func(t *testing.T) {
			_, err := commitFlow.CampaignActivity(ctx, p, uuid.New())
			require.Error(t, err)
			assert.Equal(t, businessflow.ErrCodeForeignKey, businessflow.ErrorCode(err))
			assert.ErrorIs(t, err, businessflow.ErrCampaignNotFound)
		})

		t.Run("ReplayReturnsCachedResponse", func(t *testing.T) {
			inv, err := fixtures.SeedBasicInventory(p, "Replay Show", monday, 2)
			require.NoError(t, err)

			req := commitRequest([]uint{inv.Show.ID}, 2, nil)
			req.IdempotencyKey = uuid.New().String()

			first, err := commitFlow.Commit(ctx, p, req, meta)
			require.NoError(t, err)
			require.Len(t, first.Committed, 2)

			before := countRows(testDB, p, "scheduled_spots", "episode_id IN ?", []uint{inv.Episodes[0].ID, inv.Episodes[1].ID})

			second, err := commitFlow.Commit(ctx, p, req, meta)
			require.NoError(t, err)
			assert.True(t, second.IdempotentReplay)
			assert.Equal(t, first.Committed, second.Committed)
			assert.Equal(t, first.CorrelationID, second.CorrelationID)

			after := countRows(testDB, p, "scheduled_spots", "episode_id IN ?", []uint{inv.Episodes[0].ID, inv.Episodes[1].ID})
			assert.Equal(t, before, after)
		})

		t.Run("MalformedIdempotencyKey", func(t *testing.T) {
			req := commitRequest([]uint{1}, 1, nil)
			req.IdempotencyKey = "not-a-uuid"
			_, err := commitFlow.Commit(ctx, p, req, meta)
			require.Error(t, err)
			assert.Equal(t, businessflow.ErrCodeInvalidInput, businessflow.ErrorCode(err))
		})

		t.Run("StrictShortfallRejectsWholeRequest", func(t *testing.T) {
			inv, err := fixtures.SeedBasicInventory(p, "Shortfall Show", monday, 1)
			require.NoError(t, err)

			req := commitRequest([]uint{inv.Show.ID}, 5, nil)
			_, err = commitFlow.Commit(ctx, p, req, meta)
			require.Error(t, err)
			assert.Equal(t, businessflow.ErrCodeInventoryConflict, businessflow.ErrorCode(err))
			assert.True(t, errors.Is(err, businessflow.ErrInventoryUnavailable))
			assert.Zero(t, countRows(testDB, p, "scheduled_spots", "episode_id = ?", inv.Episodes[0].ID))
		})

		t.Run("NoPlacementsPossible", func(t *testing.T) {
			show, err := fixtures.CreateTestShow(p, "Empty Show")
			require.NoError(t, err)
			_, err = fixtures.CreateTestShowConfiguration(p, show.ID, 1, 2, 1, monday.AddDate(-1, 0, 0))
			require.NoError(t, err)

			req := commitRequest([]uint{show.ID}, 1, nil)
			_, err = commitFlow.Commit(ctx, p, req, meta)
			require.Error(t, err)
			assert.Equal(t, businessflow.ErrCodeInventoryConflict, businessflow.ErrorCode(err))
		})

		t.Run("BlockingConflictAbortsBeforeWrites", func(t *testing.T) {
			inv, err := fixtures.SeedBasicInventory(p, "Conflict Commit Show", monday, 2)
			require.NoError(t, err)

			set, err := fixtures.CreateTestCompetitorSet(p, category.ID, "EV Makers")
			require.NoError(t, err)
			rival, err := fixtures.CreateTestAdvertiser(p, "Ampere Cars", utils.ToPtr(set.ID))
			require.NoError(t, err)
			ours, err := fixtures.CreateTestAdvertiser(p, "Joule Autos", utils.ToPtr(set.ID))
			require.NoError(t, err)

			_, err = fixtures.CreateTestCampaign(p, "Rival Blitz", rival.ID, category.ID,
				monday, monday.AddDate(0, 0, 14), models.CampaignStatusApproved)
			require.NoError(t, err)
			campaign, err := fixtures.CreateTestCampaign(p, "Our Blitz", ours.ID, category.ID,
				monday, monday.AddDate(0, 0, 14), models.CampaignStatusDraft)
			require.NoError(t, err)

			req := commitRequest([]uint{inv.Show.ID}, 1, utils.ToPtr(campaign.ID))
			req.AdvertiserID = ours.ID
			_, err = commitFlow.Commit(ctx, p, req, meta)
			require.Error(t, err)
			assert.Equal(t, businessflow.ErrCodeInventoryConflict, businessflow.ErrorCode(err))
			assert.True(t, errors.Is(err, businessflow.ErrBlockingConflict))
			assert.Zero(t, countRows(testDB, p, "scheduled_spots", "campaign_id = ?", campaign.ID))
		})

		t.Run("SlotTakenSincePreviewBecomesFinalConflict", func(t *testing.T) {
			inv, err := fixtures.SeedBasicInventory(p, "Race Show", monday, 1)
			require.NoError(t, err)
			episode := inv.Episodes[0]

			// Another writer grabbed the slot between preview and commit.
			_, err = fixtures.CreateTestSpot(p, episode, advertiser.ID, nil, models.PlacementMidRoll, 1, 50000)
			require.NoError(t, err)

			stale := &stubAllocationFlow{result: &businessflow.AllocationResult{
				WouldPlace: []businessflow.PlannedSpot{{
					EpisodeID:     episode.ID,
					ShowID:        inv.Show.ID,
					ShowName:      inv.Show.Name,
					AirDate:       episode.AirDate,
					PlacementType: models.PlacementMidRoll,
					SlotNumber:    1,
					Rate:          50000,
				}},
				Conflicts: []dto.ConflictDTO{},
				Summary:   dto.AllocationSummaryDTO{SpotsRequested: 1, SpotsPlaced: 1, FallbackStrategy: "strict"},
			}}

			raceFlow := newCommitFlow(testDB, stale)
			req := commitRequest([]uint{inv.Show.ID}, 1, nil)
			resp, err := raceFlow.Commit(ctx, p, req, meta)
			require.NoError(t, err)

			assert.Empty(t, resp.Committed)
			require.Len(t, resp.FinalConflicts, 1)
			assert.Equal(t, "warning", resp.FinalConflicts[0].Severity)
			assert.Equal(t, "slot_taken", resp.FinalConflicts[0].Reason)
			assert.Equal(t, episode.ID, resp.FinalConflicts[0].EpisodeID)
			assert.Equal(t, "schedule committed with slot conflicts", resp.Message)
			assert.Equal(t, int64(1), countRows(testDB, p, "scheduled_spots", "episode_id = ?", episode.ID))
		})

		t.Run("ConcurrentCommitsSettleOneWinner", func(t *testing.T) {
			inv, err := fixtures.SeedBasicInventory(p, "Contested Show", monday, 1)
			require.NoError(t, err)
			episode := inv.Episodes[0]

			// Both commits claim the same free slot. The episode row
			// lock serializes them; the loser must come back with a
			// slot_taken conflict, never an error.
			claim := &stubAllocationFlow{result: &businessflow.AllocationResult{
				WouldPlace: []businessflow.PlannedSpot{{
					EpisodeID:     episode.ID,
					ShowID:        inv.Show.ID,
					AirDate:       episode.AirDate,
					PlacementType: models.PlacementMidRoll,
					SlotNumber:    1,
					Rate:          50000,
				}},
				Conflicts: []dto.ConflictDTO{},
				Summary:   dto.AllocationSummaryDTO{SpotsRequested: 1, SpotsPlaced: 1, FallbackStrategy: "strict"},
			}}

			flow := newCommitFlow(testDB, claim)
			responses := make([]*dto.ScheduleCommitResponse, 2)
			commitErrs := make([]error, 2)
			var wg sync.WaitGroup
			for i := 0; i < 2; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					responses[i], commitErrs[i] = flow.Commit(ctx, p, commitRequest([]uint{inv.Show.ID}, 1, nil), meta)
				}(i)
			}
			wg.Wait()

			winners, losers := 0, 0
			for i := range responses {
				require.NoError(t, commitErrs[i])
				if len(responses[i].Committed) == 1 {
					winners++
					continue
				}
				losers++
				require.Len(t, responses[i].FinalConflicts, 1)
				assert.Equal(t, "slot_taken", responses[i].FinalConflicts[0].Reason)
				assert.Equal(t, "warning", responses[i].FinalConflicts[0].Severity)
			}
			assert.Equal(t, 1, winners)
			assert.Equal(t, 1, losers)
			assert.Equal(t, int64(1), countRows(testDB, p, "scheduled_spots", "episode_id = ?", episode.ID))
		})

		t.Run("FailedWriteRollsBackEverything", func(t *testing.T) {
			inv, err := fixtures.SeedBasicInventory(p, "Atomic Show", monday, 2)
			require.NoError(t, err)

			// The second planned spot carries a placement no episode
			// counter exists for, so the transaction fails after the
			// first spot was already written.
			bad := &stubAllocationFlow{result: &businessflow.AllocationResult{
				WouldPlace: []businessflow.PlannedSpot{
					{
						EpisodeID:     inv.Episodes[0].ID,
						ShowID:        inv.Show.ID,
						AirDate:       inv.Episodes[0].AirDate,
						PlacementType: models.PlacementMidRoll,
						SlotNumber:    1,
						Rate:          50000,
					},
					{
						EpisodeID:     inv.Episodes[1].ID,
						ShowID:        inv.Show.ID,
						AirDate:       inv.Episodes[1].AirDate,
						PlacementType: models.PlacementType("banner"),
						SlotNumber:    1,
						Rate:          50000,
					},
				},
				Conflicts: []dto.ConflictDTO{},
				Summary:   dto.AllocationSummaryDTO{SpotsRequested: 2, SpotsPlaced: 2, FallbackStrategy: "strict"},
			}}

			_, err = newCommitFlow(testDB, bad).Commit(ctx, p, commitRequest([]uint{inv.Show.ID}, 2, nil), meta)
			require.Error(t, err)
			assert.Equal(t, businessflow.ErrCodeTransactionFailed, businessflow.ErrorCode(err))

			assert.Equal(t, int64(0), countRows(testDB, p, "scheduled_spots", "episode_id IN ?",
				[]uint{inv.Episodes[0].ID, inv.Episodes[1].ID}))
			episode, err := episodeRepo.ByID(ctx, p, inv.Episodes[0].ID)
			require.NoError(t, err)
			require.NotNil(t, episode)
			assert.Equal(t, 0, episode.MidRollBooked)
		})

		t.Run("StaleIdempotencyKeyIsRejectedAsDuplicate", func(t *testing.T) {
			inv, err := fixtures.SeedBasicInventory(p, "Stale Key Show", monday, 1)
			require.NoError(t, err)

			key := uuid.New()
			record := &models.BulkScheduleIdempotency{
				Key:       key,
				Result:    []byte(`{}`),
				CreatedAt: utils.UTCNow().Add(-25 * time.Hour),
			}
			require.NoError(t, idempotencyRepo.Save(ctx, p, record))

			req := commitRequest([]uint{inv.Show.ID}, 1, nil)
			req.IdempotencyKey = key.String()
			_, err = commitFlow.Commit(ctx, p, req, meta)
			require.Error(t, err)
			assert.Equal(t, businessflow.ErrCodeDuplicateSubmission, businessflow.ErrorCode(err))
			assert.ErrorIs(t, err, businessflow.ErrDuplicateSubmission)
		})

		t.Run("HeldSlotBecomesFinalConflict", func(t *testing.T) {
			inv, err := fixtures.SeedBasicInventory(p, "Hold Race Show", monday, 1)
			require.NoError(t, err)
			episode := inv.Episodes[0]

			_, err = fixtures.CreateTestReservation(p, episode.ID, models.PlacementMidRoll, 1,
				uuid.New(), utils.UTCNow().Add(time.Hour))
			require.NoError(t, err)

			stale := &stubAllocationFlow{result: &businessflow.AllocationResult{
				WouldPlace: []businessflow.PlannedSpot{{
					EpisodeID:     episode.ID,
					ShowID:        inv.Show.ID,
					AirDate:       episode.AirDate,
					PlacementType: models.PlacementMidRoll,
					SlotNumber:    1,
					Rate:          50000,
				}},
				Conflicts: []dto.ConflictDTO{},
				Summary:   dto.AllocationSummaryDTO{SpotsRequested: 1, SpotsPlaced: 1, FallbackStrategy: "strict"},
			}}

			resp, err := newCommitFlow(testDB, stale).Commit(ctx, p, commitRequest([]uint{inv.Show.ID}, 1, nil), meta)
			require.NoError(t, err)
			assert.Empty(t, resp.Committed)
			require.Len(t, resp.FinalConflicts, 1)
			assert.Equal(t, "slot_taken", resp.FinalConflicts[0].Reason)
		})

		t.Run("ReleaseExpiredReservations", func(t *testing.T) {
			inv, err := fixtures.SeedBasicInventory(p, "Reaper Show", monday, 1)
			require.NoError(t, err)

			now := utils.UTCNow()
			expired, err := fixtures.CreateTestReservation(p, inv.Episodes[0].ID, models.PlacementMidRoll, 1,
				uuid.New(), now.Add(-time.Minute))
			require.NoError(t, err)
			live, err := fixtures.CreateTestReservation(p, inv.Episodes[0].ID, models.PlacementMidRoll, 2,
				uuid.New(), now.Add(time.Hour))
			require.NoError(t, err)

			released, err := commitFlow.ReleaseExpiredReservations(ctx, p)
			require.NoError(t, err)
			assert.Equal(t, int64(1), released)

			assert.Equal(t, int64(1), countRows(testDB, p, "inventory_reservations", "id = ? AND status = ?",
				expired.ID, string(models.ReservationStatusReleased)))
			assert.Equal(t, int64(1), countRows(testDB, p, "inventory_reservations", "id = ? AND status = ?",
				live.ID, string(models.ReservationStatusReserved)))
		})

		t.Run("ReleaseScheduleByReference", func(t *testing.T) {
			inv, err := fixtures.SeedBasicInventory(p, "Release Show", monday, 1)
			require.NoError(t, err)

			ref := uuid.New()
			expiry := utils.UTCNow().Add(time.Hour)
			_, err = fixtures.CreateTestReservation(p, inv.Episodes[0].ID, models.PlacementMidRoll, 1, ref, expiry)
			require.NoError(t, err)
			_, err = fixtures.CreateTestReservation(p, inv.Episodes[0].ID, models.PlacementMidRoll, 2, ref, expiry)
			require.NoError(t, err)
			other, err := fixtures.CreateTestReservation(p, inv.Episodes[0].ID, models.PlacementPostRoll, 1, uuid.New(), expiry)
			require.NoError(t, err)

			released, err := commitFlow.ReleaseSchedule(ctx, p, ref, meta)
			require.NoError(t, err)
			assert.Equal(t, int64(2), released)
			assert.Equal(t, int64(1), countRows(testDB, p, "inventory_reservations", "id = ? AND status = ?",
				other.ID, string(models.ReservationStatusReserved)))
		})

		t.Run("InvalidPartitionRejected", func(t *testing.T) {
			_, err := commitFlow.Commit(ctx, models.Partition{Schema: "drop table"}, commitRequest([]uint{1}, 1, nil), meta)
			require.Error(t, err)
			assert.Equal(t, businessflow.ErrCodeSchemaViolation, businessflow.ErrorCode(err))
		})

		return nil
	})
	require.NoError(t, err)
}
