package businessflow

import (
	"context"
	"fmt"
	"time"

	"github.com/podscale/adops/app/dto"
	"github.com/podscale/adops/models"
	"github.com/podscale/adops/repository"
	"github.com/podscale/adops/utils"
)

// FallbackStrategy controls how the allocator responds to a shortfall.
type FallbackStrategy string

const (
	FallbackStrict       FallbackStrategy = "strict"
	FallbackRelaxed      FallbackStrategy = "relaxed"
	FallbackFillAnywhere FallbackStrategy = "fill_anywhere"
)

// ParseFallbackStrategy maps the wire value to a strategy; empty means strict.
func ParseFallbackStrategy(s string) (FallbackStrategy, error) {
	switch FallbackStrategy(s) {
	case "", FallbackStrict:
		return FallbackStrict, nil
	case FallbackRelaxed:
		return FallbackRelaxed, nil
	case FallbackFillAnywhere:
		return FallbackFillAnywhere, nil
	default:
		return "", ErrInvalidFallback
	}
}

// PlannedSpot is one placement the allocator selected. Advisory until the
// commit engine re-checks it under lock.
type PlannedSpot struct {
	EpisodeID     uint
	ShowID        uint
	ShowName      string
	AirDate       time.Time
	PlacementType models.PlacementType
	SlotNumber    int
	Rate          int64
	RateCardID    *uint
}

func (p PlannedSpot) DTO() dto.PlannedSpotDTO {
	return dto.PlannedSpotDTO{
		EpisodeID:     p.EpisodeID,
		ShowID:        p.ShowID,
		ShowName:      p.ShowName,
		AirDate:       p.AirDate.Format(utils.DateLayout),
		PlacementType: p.PlacementType.String(),
		SlotNumber:    p.SlotNumber,
		Rate:          p.Rate,
		RateCardID:    p.RateCardID,
	}
}

// AllocationResult is the advisory outcome of one allocation run.
type AllocationResult struct {
	WouldPlace []PlannedSpot
	Conflicts  []dto.ConflictDTO
	Summary    dto.AllocationSummaryDTO
	Campaign   *models.Campaign
	Advertiser *models.Advertiser
}

// AllocationFlow proposes placements against current availability. It
// performs no writes and takes no locks.
type AllocationFlow interface {
	Allocate(ctx context.Context, p models.Partition, req *dto.SchedulePreviewRequest) (*AllocationResult, error)
}

type AllocationFlowImpl struct {
	loader            *inventoryLoader
	campaignRepo      repository.CampaignRepository
	directoryRepo     repository.DirectoryRepository
	conflictFlow      ConflictFlow
	relaxedWindowDays int
}

func NewAllocationFlow(
	showRepo repository.ShowRepository,
	episodeRepo repository.EpisodeRepository,
	rateCardRepo repository.RateCardRepository,
	spotRepo repository.SpotRepository,
	reservationRepo repository.ReservationRepository,
	campaignRepo repository.CampaignRepository,
	directoryRepo repository.DirectoryRepository,
	conflictFlow ConflictFlow,
	relaxedWindowDays int,
) AllocationFlow {
	if relaxedWindowDays <= 0 {
		relaxedWindowDays = utils.DefaultRelaxedWindowDays
	}
	return &AllocationFlowImpl{
		loader: &inventoryLoader{
			showRepo:        showRepo,
			episodeRepo:     episodeRepo,
			rateCardRepo:    rateCardRepo,
			spotRepo:        spotRepo,
			reservationRepo: reservationRepo,
		},
		campaignRepo:      campaignRepo,
		directoryRepo:     directoryRepo,
		conflictFlow:      conflictFlow,
		relaxedWindowDays: relaxedWindowDays,
	}
}

// candidate is one bookable (episode, placement) pairing with its
// remaining capacity and eligibility flags for the fallback passes.
type candidate struct {
	episode   *models.Episode
	showName  string
	placement models.PlacementType
	rate      int64
	rateCard  *models.RateCard
	capacity  int

	inWindow   bool // inside the requested date range
	weekdayOK  bool // matches the weekday mask
	placements bool // matches the requested placement set
}

func (f *AllocationFlowImpl) Allocate(ctx context.Context, p models.Partition, req *dto.SchedulePreviewRequest) (*AllocationResult, error) {
	if err := guardPartition(p); err != nil {
		return nil, err
	}

	start, end, err := parseDateRange(req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}
	strategy, err := ParseFallbackStrategy(req.FallbackStrategy)
	if err != nil {
		return nil, NewBusinessError(ErrCodeInvalidInput, fmt.Sprintf("unknown fallback strategy %q", req.FallbackStrategy), err)
	}

	campaign, advertiser, err := f.preflightDirectory(ctx, p, req)
	if err != nil {
		return nil, err
	}

	// Relaxed widening loads extra days up front so the fallback pass
	// works off the same snapshot.
	loadStart, loadEnd := start, end
	if strategy == FallbackRelaxed {
		loadStart = start.AddDate(0, 0, -f.relaxedWindowDays)
		loadEnd = end.AddDate(0, 0, f.relaxedWindowDays)
	}
	idx, err := f.loader.load(ctx, p, req.ShowIDs, loadStart, loadEnd)
	if err != nil {
		return nil, NewBusinessError(ErrCodeUnexpected, "failed to load inventory", err)
	}
	if err := f.verifyShows(req.ShowIDs, idx); err != nil {
		return nil, err
	}

	requested := make(map[models.PlacementType]bool, len(req.PlacementTypes))
	for _, pt := range req.PlacementTypes {
		requested[models.PlacementType(pt)] = true
	}
	weekdays := weekdayMask(req.Weekdays)

	candidates, err := f.enumerate(idx, requested, weekdays, start, end, strategy)
	if err != nil {
		return nil, err
	}

	placed, fallbackApplied := f.fill(candidates, idx, req, strategy)

	result := &AllocationResult{
		WouldPlace: placed,
		Conflicts:  []dto.ConflictDTO{},
		Campaign:   campaign,
		Advertiser: advertiser,
	}
	if campaign != nil {
		conflicts, err := f.conflictFlow.CheckConflicts(ctx, p, ConflictQuery{CampaignID: campaign.ID, CategoryID: campaign.CategoryID})
		if err != nil {
			return nil, err
		}
		result.Conflicts = conflicts
	}

	var totalCost int64
	for _, s := range placed {
		rate := s.Rate
		if req.NegotiatedRate != nil {
			rate = *req.NegotiatedRate
		}
		totalCost += rate
	}
	result.Summary = dto.AllocationSummaryDTO{
		SpotsRequested:   req.SpotsRequested,
		SpotsPlaced:      len(placed),
		Shortfall:        req.SpotsRequested - len(placed),
		TotalCost:        totalCost,
		FallbackStrategy: string(strategy),
		FallbackApplied:  fallbackApplied,
	}
	return result, nil
}

// preflightDirectory validates the campaign, advertiser and agency
// references against the partition.
func (f *AllocationFlowImpl) preflightDirectory(ctx context.Context, p models.Partition, req *dto.SchedulePreviewRequest) (*models.Campaign, *models.Advertiser, error) {
	advertiser, err := f.directoryRepo.AdvertiserByID(ctx, p, req.AdvertiserID)
	if err != nil {
		return nil, nil, NewBusinessError(ErrCodeUnexpected, "failed to look up advertiser", err)
	}
	if advertiser == nil {
		return nil, nil, NewBusinessError(ErrCodeForeignKey, fmt.Sprintf("advertiser %d not found", req.AdvertiserID), ErrAdvertiserNotFound)
	}

	if req.AgencyID != nil {
		agency, err := f.directoryRepo.AgencyByID(ctx, p, *req.AgencyID)
		if err != nil {
			return nil, nil, NewBusinessError(ErrCodeUnexpected, "failed to look up agency", err)
		}
		if agency == nil {
			return nil, nil, NewBusinessError(ErrCodeForeignKey, fmt.Sprintf("agency %d not found", *req.AgencyID), ErrAgencyNotFound)
		}
	}

	var campaign *models.Campaign
	if req.CampaignID != nil {
		campaign, err = f.campaignRepo.ByID(ctx, p, *req.CampaignID)
		if err != nil {
			return nil, nil, NewBusinessError(ErrCodeUnexpected, "failed to look up campaign", err)
		}
		if campaign == nil {
			return nil, nil, NewBusinessError(ErrCodeForeignKey, fmt.Sprintf("campaign %d not found", *req.CampaignID), ErrCampaignNotFound)
		}
	}
	return campaign, advertiser, nil
}

func (f *AllocationFlowImpl) verifyShows(showIDs []uint, idx *inventoryIndex) error {
	for _, id := range showIDs {
		if _, ok := idx.shows[id]; !ok {
			return NewBusinessError(ErrCodeForeignKey, fmt.Sprintf("show %d not found", id), ErrShowNotFound)
		}
	}
	return nil
}

// enumerate builds the candidate list. A requested placement with
// configured slots but no effective rate card is a hard error; fallback
// candidates without a rate are silently skipped.
func (f *AllocationFlowImpl) enumerate(
	idx *inventoryIndex,
	requested map[models.PlacementType]bool,
	weekdays map[time.Weekday]bool,
	start, end time.Time,
	strategy FallbackStrategy,
) ([]*candidate, error) {
	placements := make([]models.PlacementType, 0, len(requested))
	for _, pt := range models.AllPlacementTypes() {
		if requested[pt] || strategy == FallbackFillAnywhere {
			placements = append(placements, pt)
		}
	}

	var out []*candidate
	for _, ep := range idx.episodes {
		cfg := idx.configFor(ep.ShowID, ep.AirDate)
		if cfg == nil {
			continue
		}
		inWindow := !ep.AirDate.Before(start) && !ep.AirDate.After(end)
		weekdayOK := len(weekdays) == 0 || weekdays[ep.AirDate.Weekday()]

		for _, placement := range placements {
			configured := cfg.SlotsFor(placement)
			if configured == 0 {
				continue
			}
			card := idx.rateFor(cfg.ID, placement, ep.AirDate)
			if card == nil {
				if requested[placement] && inWindow {
					return nil, NewBusinessError(ErrCodeRateCardMissing,
						fmt.Sprintf("no effective rate card for show %d placement %s on %s",
							ep.ShowID, placement, ep.AirDate.Format(utils.DateLayout)),
						ErrRateCardMissing)
				}
				continue
			}
			c := &candidate{
				episode:    ep,
				placement:  placement,
				rate:       card.Rate,
				rateCard:   card,
				capacity:   idx.available(slotKey{episodeID: ep.ID, placement: placement}, configured),
				inWindow:   inWindow,
				weekdayOK:  weekdayOK,
				placements: requested[placement],
			}
			if show, ok := idx.shows[ep.ShowID]; ok {
				c.showName = show.Name
			}
			if c.capacity > 0 {
				out = append(out, c)
			}
		}
	}
	return out, nil
}

// fill greedily consumes candidates in up to two passes: the primary pass
// honors every constraint; the fallback pass (relaxed or fill_anywhere)
// loosens dates or placement/weekday preference for the remainder.
func (f *AllocationFlowImpl) fill(candidates []*candidate, idx *inventoryIndex, req *dto.SchedulePreviewRequest, strategy FallbackStrategy) ([]PlannedSpot, bool) {
	run := &allocationRun{
		idx:          idx,
		perShow:      make(map[uint]int),
		perShowDay:   make(map[string]int),
		perWeek:      make(map[string]int),
		occupied:     make(map[slotKey]map[int]bool),
		maxPerDay:    maxPerShowDay(req),
		spotsPerWeek: req.SpotsPerWeek,
	}

	primary := func(c *candidate) bool { return c.inWindow && c.weekdayOK && c.placements }
	var fallback func(c *candidate) bool
	switch strategy {
	case FallbackRelaxed:
		fallback = func(c *candidate) bool { return c.weekdayOK && c.placements }
	case FallbackFillAnywhere:
		fallback = func(c *candidate) bool { return c.inWindow }
	}

	placed := run.consume(candidates, primary, req.SpotsRequested)
	fallbackApplied := false
	if len(placed) < req.SpotsRequested && fallback != nil {
		extra := run.consume(candidates, fallback, req.SpotsRequested-len(placed))
		if len(extra) > 0 {
			fallbackApplied = true
			placed = append(placed, extra...)
		}
	}
	return placed, fallbackApplied
}

// allocationRun tracks consumption state across the greedy passes.
type allocationRun struct {
	idx          *inventoryIndex
	perShow      map[uint]int
	perShowDay   map[string]int
	perWeek      map[string]int
	occupied     map[slotKey]map[int]bool
	maxPerDay    int
	spotsPerWeek *int
}

// consume picks eligible candidates one at a time until the quota is met
// or nothing remains. Selection order: air date ascending, then the show
// with fewer spots already allocated in this run, then show ID.
func (r *allocationRun) consume(candidates []*candidate, eligible func(*candidate) bool, quota int) []PlannedSpot {
	var placed []PlannedSpot
	for len(placed) < quota {
		pick := r.pickNext(candidates, eligible)
		if pick == nil {
			break
		}
		k := slotKey{episodeID: pick.episode.ID, placement: pick.placement}
		slot := r.nextFreeSlot(k, pick)
		if slot == 0 {
			pick.capacity = 0
			continue
		}

		pick.capacity--
		r.perShow[pick.episode.ShowID]++
		r.perShowDay[showDayKey(pick.episode.ShowID, pick.episode.AirDate)]++
		r.perWeek[weekKey(pick.episode.AirDate)]++
		if r.occupied[k] == nil {
			r.occupied[k] = make(map[int]bool)
		}
		r.occupied[k][slot] = true

		spot := PlannedSpot{
			EpisodeID:     pick.episode.ID,
			ShowID:        pick.episode.ShowID,
			ShowName:      pick.showName,
			AirDate:       pick.episode.AirDate,
			PlacementType: pick.placement,
			SlotNumber:    slot,
			Rate:          pick.rate,
		}
		if pick.rateCard != nil {
			spot.RateCardID = utils.ToPtr(pick.rateCard.ID)
		}
		placed = append(placed, spot)
	}
	return placed
}

func (r *allocationRun) pickNext(candidates []*candidate, eligible func(*candidate) bool) *candidate {
	var best *candidate
	for _, c := range candidates {
		if c.capacity <= 0 || !eligible(c) {
			continue
		}
		if r.perShowDay[showDayKey(c.episode.ShowID, c.episode.AirDate)] >= r.maxPerDay {
			continue
		}
		if r.spotsPerWeek != nil && r.perWeek[weekKey(c.episode.AirDate)] >= *r.spotsPerWeek {
			continue
		}
		if best == nil || r.less(c, best) {
			best = c
		}
	}
	return best
}

// less is the explicit allocation comparator.
func (r *allocationRun) less(a, b *candidate) bool {
	if !a.episode.AirDate.Equal(b.episode.AirDate) {
		return a.episode.AirDate.Before(b.episode.AirDate)
	}
	if r.perShow[a.episode.ShowID] != r.perShow[b.episode.ShowID] {
		return r.perShow[a.episode.ShowID] < r.perShow[b.episode.ShowID]
	}
	return a.episode.ShowID < b.episode.ShowID
}

// nextFreeSlot finds the lowest slot number free in both the database
// snapshot and this run's own picks.
func (r *allocationRun) nextFreeSlot(k slotKey, c *candidate) int {
	cfg := r.idx.configFor(c.episode.ShowID, c.episode.AirDate)
	if cfg == nil {
		return 0
	}
	configured := cfg.SlotsFor(c.placement)
	for slot := 1; slot <= configured; slot++ {
		if r.idx.occupied[k][slot] || r.occupied[k][slot] {
			continue
		}
		return slot
	}
	return 0
}

func maxPerShowDay(req *dto.SchedulePreviewRequest) int {
	if !req.AllowMultiplePerShowPerDay {
		return 1
	}
	if req.MaxSpotsPerShowPerDay != nil {
		return *req.MaxSpotsPerShowPerDay
	}
	return int(^uint(0) >> 1)
}

func weekdayMask(weekdays []int) map[time.Weekday]bool {
	if len(weekdays) == 0 {
		return nil
	}
	mask := make(map[time.Weekday]bool, len(weekdays))
	for _, d := range weekdays {
		mask[time.Weekday(d)] = true
	}
	return mask
}

func showDayKey(showID uint, airDate time.Time) string {
	return fmt.Sprintf("%d:%s", showID, airDate.Format(utils.DateLayout))
}

func weekKey(airDate time.Time) string {
	year, week := airDate.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

func parseDateRange(startStr, endStr string) (time.Time, time.Time, error) {
	start, err := time.Parse(utils.DateLayout, startStr)
	if err != nil {
		return time.Time{}, time.Time{}, NewBusinessError(ErrCodeInvalidInput, "invalid start date", err)
	}
	end, err := time.Parse(utils.DateLayout, endStr)
	if err != nil {
		return time.Time{}, time.Time{}, NewBusinessError(ErrCodeInvalidInput, "invalid end date", err)
	}
	if start.After(end) {
		return time.Time{}, time.Time{}, NewBusinessError(ErrCodeInvalidInput, "start date is after end date", ErrInvalidDateRange)
	}
	return start, end, nil
}
