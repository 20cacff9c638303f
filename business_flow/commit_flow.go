package businessflow

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/podscale/adops/app/dto"
	"github.com/podscale/adops/models"
	"github.com/podscale/adops/pkg/logging"
	"github.com/podscale/adops/repository"
	"github.com/podscale/adops/utils"
)

// CommitFlow turns an advisory allocation into booked spots inside one
// transaction. It is the only writer of scheduled spots.
type CommitFlow interface {
	Commit(ctx context.Context, p models.Partition, req *dto.ScheduleCommitRequest, meta *ClientMetadata) (*dto.ScheduleCommitResponse, error)
	ReleaseExpiredReservations(ctx context.Context, p models.Partition) (int64, error)
	ReleaseSchedule(ctx context.Context, p models.Partition, scheduleRef uuid.UUID, meta *ClientMetadata) (int64, error)
	CampaignActivity(ctx context.Context, p models.Partition, campaignUUID uuid.UUID) ([]*models.ActivityLog, error)
}

type CommitFlowImpl struct {
	db              *gorm.DB
	allocationFlow  AllocationFlow
	spotRepo        repository.SpotRepository
	episodeRepo     repository.EpisodeRepository
	reservationRepo repository.ReservationRepository
	rateCardRepo    repository.RateCardRepository
	campaignRepo    repository.CampaignRepository
	idempotencyRepo repository.IdempotencyRepository
	activityRepo    repository.ActivityLogRepository
	idempotencyTTL  time.Duration
}

func NewCommitFlow(
	db *gorm.DB,
	allocationFlow AllocationFlow,
	spotRepo repository.SpotRepository,
	episodeRepo repository.EpisodeRepository,
	reservationRepo repository.ReservationRepository,
	rateCardRepo repository.RateCardRepository,
	campaignRepo repository.CampaignRepository,
	idempotencyRepo repository.IdempotencyRepository,
	activityRepo repository.ActivityLogRepository,
	idempotencyTTL time.Duration,
) CommitFlow {
	if idempotencyTTL <= 0 {
		idempotencyTTL = utils.IdempotencyTTL
	}
	return &CommitFlowImpl{
		db:              db,
		allocationFlow:  allocationFlow,
		spotRepo:        spotRepo,
		episodeRepo:     episodeRepo,
		reservationRepo: reservationRepo,
		rateCardRepo:    rateCardRepo,
		campaignRepo:    campaignRepo,
		idempotencyRepo: idempotencyRepo,
		activityRepo:    activityRepo,
		idempotencyTTL:  idempotencyTTL,
	}
}

func (f *CommitFlowImpl) Commit(ctx context.Context, p models.Partition, req *dto.ScheduleCommitRequest, meta *ClientMetadata) (*dto.ScheduleCommitResponse, error) {
	if err := guardPartition(p); err != nil {
		return nil, err
	}
	correlation := correlationID(meta)
	correlationUUID, err := uuid.Parse(correlation)
	if err != nil {
		correlationUUID = uuid.New()
		correlation = correlationUUID.String()
	}

	key, err := f.idempotencyKey(req)
	if err != nil {
		return nil, err
	}

	// Replay check before any work. The cached result is returned byte
	// for byte; the commit body never runs twice for one key.
	if cached, err := f.replay(ctx, p, key); err != nil {
		return nil, err
	} else if cached != nil {
		return cached, nil
	}

	allocation, err := f.allocationFlow.Allocate(ctx, p, &req.SchedulePreviewRequest)
	if err != nil {
		return nil, err
	}

	if err := f.preflight(req, allocation); err != nil {
		f.logCommitFailure(p, correlationUUID, err)
		return nil, err
	}

	resp := &dto.ScheduleCommitResponse{
		Message:        "schedule committed",
		CorrelationID:  correlation,
		IdempotencyKey: key.String(),
		FinalConflicts: []dto.ConflictDTO{},
		Committed:      []dto.PlannedSpotDTO{},
	}

	now := utils.UTCNow()
	txErr := repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		lockedEpisodes := make(map[uint]bool)
		for _, planned := range allocation.WouldPlace {
			claim := repository.SlotClaim{
				EpisodeID:     planned.EpisodeID,
				PlacementType: planned.PlacementType,
				SlotNumber:    planned.SlotNumber,
			}

			// A free slot has no row to lock, so serialize on the
			// episode first. The loser of a race blocks here, then
			// finds the winner's spot in the re-check below.
			if !lockedEpisodes[planned.EpisodeID] {
				if err := f.episodeRepo.LockByID(txCtx, p, planned.EpisodeID); err != nil {
					return fmt.Errorf("failed to lock episode: %w", err)
				}
				lockedEpisodes[planned.EpisodeID] = true
			}

			// Re-check the exact slot under row locks. A slot taken
			// since preview is reported as a final conflict, not a
			// transaction failure.
			taken, err := f.spotRepo.LockSlot(txCtx, p, claim)
			if err != nil {
				return fmt.Errorf("failed to lock slot: %w", err)
			}
			held, err := f.reservationRepo.LockSlotHolds(txCtx, p, claim, now)
			if err != nil {
				return fmt.Errorf("failed to lock slot holds: %w", err)
			}
			if taken > 0 || held > 0 {
				resp.FinalConflicts = append(resp.FinalConflicts, dto.ConflictDTO{
					Severity:   ConflictSeverityWarning,
					Reason:     ConflictReasonSlotTaken,
					EpisodeID:  planned.EpisodeID,
					ShowID:     planned.ShowID,
					AirDate:    planned.AirDate.Format(utils.DateLayout),
					CampaignID: derefUint(req.CampaignID),
				})
				continue
			}

			spot := &models.ScheduledSpot{
				EpisodeID:      planned.EpisodeID,
				ShowID:         planned.ShowID,
				CampaignID:     req.CampaignID,
				AdvertiserID:   req.AdvertiserID,
				AgencyID:       req.AgencyID,
				AirDate:        planned.AirDate,
				PlacementType:  planned.PlacementType,
				SlotNumber:     planned.SlotNumber,
				Rate:           planned.Rate,
				NegotiatedRate: req.NegotiatedRate,
				CorrelationID:  correlationUUID,
				CreatedAt:      now,
			}
			if err := f.spotRepo.Save(txCtx, p, spot); err != nil {
				return fmt.Errorf("failed to insert spot: %w", err)
			}
			if err := f.episodeRepo.IncrementBooked(txCtx, p, planned.EpisodeID, planned.PlacementType, 1); err != nil {
				return fmt.Errorf("failed to bump booked counter: %w", err)
			}
			if req.CampaignID != nil {
				negotiated := planned.Rate
				if req.NegotiatedRate != nil {
					negotiated = *req.NegotiatedRate
				}
				delta := &models.RateCardDelta{
					ScheduledSpotID: spot.ID,
					CampaignID:      *req.CampaignID,
					RateCardRate:    planned.Rate,
					NegotiatedRate:  negotiated,
					CreatedAt:       now,
				}
				if err := f.rateCardRepo.SaveDelta(txCtx, p, delta); err != nil {
					return fmt.Errorf("failed to record rate delta: %w", err)
				}
			}

			placedDTO := planned.DTO()
			placedDTO.SpotID = utils.ToPtr(spot.ID)
			resp.Committed = append(resp.Committed, placedDTO)
		}

		f.summarize(resp, allocation, req)
		if allocation.Campaign != nil {
			resp.CampaignStatus = string(allocation.Campaign.Status)
		}

		// The idempotency record rides the same transaction, so a
		// retried request either sees all bookings plus the record or
		// none of either.
		cached, err := json.Marshal(resp)
		if err != nil {
			return fmt.Errorf("failed to encode commit result: %w", err)
		}
		record := &models.BulkScheduleIdempotency{
			Key:       key,
			Result:    cached,
			CreatedAt: now,
		}
		if err := f.idempotencyRepo.Save(txCtx, p, record); err != nil {
			return fmt.Errorf("failed to persist idempotency record: %w", err)
		}
		return nil
	})
	if txErr != nil {
		f.logCommitFailure(p, correlationUUID, txErr)
		return nil, NewBusinessError(ErrCodeTransactionFailed, "commit transaction failed", txErr)
	}

	go f.afterCommit(p, allocation.Campaign, correlationUUID, len(resp.Committed))

	return resp, nil
}

// idempotencyKey parses the caller's key or mints one for this request.
func (f *CommitFlowImpl) idempotencyKey(req *dto.ScheduleCommitRequest) (uuid.UUID, error) {
	if req.IdempotencyKey == "" {
		return uuid.New(), nil
	}
	key, err := uuid.Parse(req.IdempotencyKey)
	if err != nil {
		return uuid.Nil, NewBusinessError(ErrCodeInvalidInput, "idempotency key must be a UUID", err)
	}
	return key, nil
}

// replay returns the cached response for a fresh idempotency record. A
// record past the retention window is a duplicate submission: the key can
// never be inserted again, so the request is rejected rather than rerun.
func (f *CommitFlowImpl) replay(ctx context.Context, p models.Partition, key uuid.UUID) (*dto.ScheduleCommitResponse, error) {
	record, err := f.idempotencyRepo.ByKey(ctx, p, key)
	if err != nil {
		return nil, NewBusinessError(ErrCodeUnexpected, "failed to check idempotency key", err)
	}
	if record == nil {
		return nil, nil
	}
	if !record.FreshAt(utils.UTCNow(), f.idempotencyTTL) {
		return nil, NewBusinessError(ErrCodeDuplicateSubmission,
			fmt.Sprintf("idempotency key %s was already used and its replay window has passed", key),
			ErrDuplicateSubmission)
	}

	var resp dto.ScheduleCommitResponse
	if err := json.Unmarshal(record.Result, &resp); err != nil {
		return nil, NewBusinessError(ErrCodeUnexpected, "failed to decode cached commit result", err)
	}
	resp.IdempotentReplay = true
	return &resp, nil
}

// preflight rejects the whole request before any write: blocking
// conflicts, an empty allocation, or a strict-mode shortfall.
func (f *CommitFlowImpl) preflight(req *dto.ScheduleCommitRequest, allocation *AllocationResult) error {
	for _, c := range allocation.Conflicts {
		if c.Severity == ConflictSeverityBlocking {
			return NewBusinessError(ErrCodeInventoryConflict,
				fmt.Sprintf("blocking conflict with campaign %d (%s)", c.CampaignID, c.Reason),
				ErrBlockingConflict)
		}
	}
	if len(allocation.WouldPlace) == 0 {
		return NewBusinessError(ErrCodeInventoryConflict, "no placements possible for the requested window", ErrInventoryUnavailable)
	}
	if allocation.Summary.FallbackStrategy == string(FallbackStrict) && len(allocation.WouldPlace) < req.SpotsRequested {
		return NewBusinessError(ErrCodeInventoryConflict,
			fmt.Sprintf("strict allocation shortfall: %d of %d spots available", len(allocation.WouldPlace), req.SpotsRequested),
			ErrInventoryUnavailable)
	}
	return nil
}

func (f *CommitFlowImpl) summarize(resp *dto.ScheduleCommitResponse, allocation *AllocationResult, req *dto.ScheduleCommitRequest) {
	var totalCost int64
	for _, s := range resp.Committed {
		rate := s.Rate
		if req.NegotiatedRate != nil {
			rate = *req.NegotiatedRate
		}
		totalCost += rate
	}
	resp.Summary = dto.AllocationSummaryDTO{
		SpotsRequested:   req.SpotsRequested,
		SpotsPlaced:      len(resp.Committed),
		Shortfall:        req.SpotsRequested - len(resp.Committed),
		TotalCost:        totalCost,
		FallbackStrategy: allocation.Summary.FallbackStrategy,
		FallbackApplied:  allocation.Summary.FallbackApplied,
	}
	if len(resp.FinalConflicts) > 0 {
		resp.Message = "schedule committed with slot conflicts"
	}
}

// afterCommit records the audit entry and advances the campaign workflow.
// Runs detached from the request; failures are logged, never surfaced.
func (f *CommitFlowImpl) afterCommit(p models.Partition, campaign *models.Campaign, correlation uuid.UUID, placed int) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error("post-commit hook panicked", logging.Str("panic", fmt.Sprintf("%v", r)))
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var campaignID *uint
	if campaign != nil {
		campaignID = &campaign.ID
	}
	meta, _ := json.Marshal(map[string]any{"spots_placed": placed})
	entry := &models.ActivityLog{
		Action:        models.ActivityActionScheduleCommitted,
		CampaignID:    campaignID,
		Description:   utils.ToPtr(fmt.Sprintf("committed %d spots", placed)),
		CorrelationID: correlation,
		Metadata:      meta,
		CreatedAt:     utils.UTCNow(),
	}
	if err := f.activityRepo.Save(ctx, p, entry); err != nil {
		logging.Error("failed to write commit activity log", logging.Err(err))
	}

	if campaign == nil || placed == 0 {
		return
	}
	if campaign.Status != models.CampaignStatusDraft || !campaign.CanTransitionTo(models.CampaignStatusInReservations) {
		return
	}
	campaign.Status = models.CampaignStatusInReservations
	campaign.WorkflowStage++
	if err := f.campaignRepo.Update(ctx, p, campaign); err != nil {
		logging.Error("failed to advance campaign workflow", logging.Err(err), logging.Uint("campaign_id", campaign.ID))
		return
	}
	advance := &models.ActivityLog{
		Action:        models.ActivityActionWorkflowAdvanced,
		CampaignID:    &campaign.ID,
		Description:   utils.ToPtr("campaign advanced to in_reservations on first committed schedule"),
		CorrelationID: correlation,
		CreatedAt:     utils.UTCNow(),
	}
	if err := f.activityRepo.Save(ctx, p, advance); err != nil {
		logging.Error("failed to write workflow activity log", logging.Err(err))
	}
}

// CampaignActivity lists the audit trail recorded for one campaign.
func (f *CommitFlowImpl) CampaignActivity(ctx context.Context, p models.Partition, campaignUUID uuid.UUID) ([]*models.ActivityLog, error) {
	if err := guardPartition(p); err != nil {
		return nil, err
	}
	campaign, err := f.campaignRepo.ByUUID(ctx, p, campaignUUID)
	if err != nil {
		return nil, NewBusinessError(ErrCodeUnexpected, "failed to look up campaign", err)
	}
	if campaign == nil {
		return nil, NewBusinessError(ErrCodeForeignKey, "campaign not found", ErrCampaignNotFound)
	}
	entries, err := f.activityRepo.ListByCampaign(ctx, p, campaign.ID)
	if err != nil {
		return nil, NewBusinessError(ErrCodeUnexpected, "failed to list campaign activity", err)
	}
	return entries, nil
}

// ReleaseExpiredReservations bulk-releases holds past their TTL.
func (f *CommitFlowImpl) ReleaseExpiredReservations(ctx context.Context, p models.Partition) (int64, error) {
	if err := guardPartition(p); err != nil {
		return 0, err
	}
	released, err := f.reservationRepo.ReleaseExpired(ctx, p, utils.UTCNow())
	if err != nil {
		return 0, NewBusinessError(ErrCodeUnexpected, "failed to release expired reservations", err)
	}
	return released, nil
}

// ReleaseSchedule releases every hold recorded under one schedule reference.
func (f *CommitFlowImpl) ReleaseSchedule(ctx context.Context, p models.Partition, scheduleRef uuid.UUID, meta *ClientMetadata) (int64, error) {
	if err := guardPartition(p); err != nil {
		return 0, err
	}
	released, err := f.reservationRepo.ReleaseBySchedule(ctx, p, scheduleRef)
	if err != nil {
		return 0, NewBusinessError(ErrCodeUnexpected, "failed to release schedule holds", err)
	}
	if released > 0 {
		correlation, parseErr := uuid.Parse(correlationID(meta))
		if parseErr != nil {
			correlation = uuid.New()
		}
		entry := &models.ActivityLog{
			Action:        models.ActivityActionReservationsReleased,
			Description:   utils.ToPtr(fmt.Sprintf("released %d holds for schedule %s", released, scheduleRef)),
			CorrelationID: correlation,
			CreatedAt:     utils.UTCNow(),
		}
		if err := f.activityRepo.Save(ctx, p, entry); err != nil {
			logging.Warn("failed to write release activity log", logging.Err(err))
		}
	}
	return released, nil
}

func (f *CommitFlowImpl) logCommitFailure(p models.Partition, correlation uuid.UUID, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	entry := &models.ActivityLog{
		Action:        models.ActivityActionScheduleCommitFailed,
		CorrelationID: correlation,
		Success:       utils.ToPtr(false),
		ErrorMessage:  utils.ToPtr(cause.Error()),
		CreatedAt:     utils.UTCNow(),
	}
	if err := f.activityRepo.Save(ctx, p, entry); err != nil {
		logging.Warn("failed to write commit failure log", logging.Err(err))
	}
}

func derefUint(v *uint) uint {
	if v == nil {
		return 0
	}
	return *v
}
