package businessflow

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/podscale/adops/app/dto"
	"github.com/podscale/adops/models"
	"github.com/podscale/adops/pkg/logging"
	"github.com/podscale/adops/repository"
	"github.com/podscale/adops/utils"
)

// AvailabilityQuery bounds an availability report.
type AvailabilityQuery struct {
	ShowIDs        []uint
	StartDate      time.Time
	EndDate        time.Time
	PlacementTypes []models.PlacementType
}

// AvailabilityFlow answers what inventory remains open in a window.
type AvailabilityFlow interface {
	QueryAvailability(ctx context.Context, p models.Partition, q AvailabilityQuery) (*dto.AvailabilityResponse, error)
}

type AvailabilityFlowImpl struct {
	loader   *inventoryLoader
	showRepo repository.ShowRepository
	rc       *redis.Client
	cacheTTL time.Duration
}

func NewAvailabilityFlow(
	showRepo repository.ShowRepository,
	episodeRepo repository.EpisodeRepository,
	rateCardRepo repository.RateCardRepository,
	spotRepo repository.SpotRepository,
	reservationRepo repository.ReservationRepository,
	rc *redis.Client,
	cacheTTL time.Duration,
) AvailabilityFlow {
	if cacheTTL <= 0 {
		cacheTTL = utils.AvailabilityCacheTTL
	}
	return &AvailabilityFlowImpl{
		loader: &inventoryLoader{
			showRepo:        showRepo,
			episodeRepo:     episodeRepo,
			rateCardRepo:    rateCardRepo,
			spotRepo:        spotRepo,
			reservationRepo: reservationRepo,
		},
		showRepo: showRepo,
		rc:       rc,
		cacheTTL: cacheTTL,
	}
}

func (f *AvailabilityFlowImpl) QueryAvailability(ctx context.Context, p models.Partition, q AvailabilityQuery) (*dto.AvailabilityResponse, error) {
	if err := guardPartition(p); err != nil {
		return nil, err
	}
	if q.StartDate.After(q.EndDate) {
		return nil, NewBusinessError(ErrCodeInvalidInput, "start date is after end date", ErrInvalidDateRange)
	}

	cacheKey := f.cacheKey(p, q)
	if cached := f.readCache(ctx, cacheKey); cached != nil {
		cached.Cached = true
		return cached, nil
	}

	showIDs := q.ShowIDs
	if len(showIDs) == 0 {
		all, err := f.showRepo.ByIDs(ctx, p, nil)
		if err != nil {
			return nil, NewBusinessError(ErrCodeUnexpected, "failed to list shows", err)
		}
		for _, s := range all {
			showIDs = append(showIDs, s.ID)
		}
	}

	idx, err := f.loader.load(ctx, p, showIDs, q.StartDate, q.EndDate)
	if err != nil {
		return nil, NewBusinessError(ErrCodeUnexpected, "failed to load inventory", err)
	}

	placements := q.PlacementTypes
	if len(placements) == 0 {
		placements = models.AllPlacementTypes()
	}

	resp := &dto.AvailabilityResponse{
		Message:  "availability retrieved",
		Episodes: make([]dto.EpisodeAvailabilityDTO, 0, len(idx.episodes)),
	}
	for _, ep := range idx.episodes {
		cfg := idx.configFor(ep.ShowID, ep.AirDate)
		if cfg == nil {
			continue
		}
		item := dto.EpisodeAvailabilityDTO{
			EpisodeID: ep.ID,
			ShowID:    ep.ShowID,
			AirDate:   ep.AirDate.Format(utils.DateLayout),
			Title:     ep.Title,
		}
		if show, ok := idx.shows[ep.ShowID]; ok {
			item.ShowName = show.Name
		}
		for _, placement := range placements {
			configured := cfg.SlotsFor(placement)
			if configured == 0 {
				continue
			}
			k := slotKey{episodeID: ep.ID, placement: placement}
			pa := dto.PlacementAvailabilityDTO{
				PlacementType: placement.String(),
				Capacity:      configured,
				Booked:        idx.booked[k],
				Held:          idx.held[k],
				Available:     idx.available(k, configured),
			}
			if card := idx.rateFor(cfg.ID, placement, ep.AirDate); card != nil {
				pa.Rate = utils.ToPtr(card.Rate)
			}
			item.Placements = append(item.Placements, pa)
		}
		if len(item.Placements) > 0 {
			resp.Episodes = append(resp.Episodes, item)
		}
	}

	f.writeCache(ctx, cacheKey, resp)
	return resp, nil
}

// cacheKey hashes the query so equivalent requests share an entry.
func (f *AvailabilityFlowImpl) cacheKey(p models.Partition, q AvailabilityQuery) string {
	ids := append([]uint(nil), q.ShowIDs...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	placements := make([]string, 0, len(q.PlacementTypes))
	for _, pt := range q.PlacementTypes {
		placements = append(placements, pt.String())
	}
	sort.Strings(placements)
	raw, _ := json.Marshal(struct {
		ShowIDs    []uint   `json:"show_ids"`
		Start      string   `json:"start"`
		End        string   `json:"end"`
		Placements []string `json:"placements"`
	}{ids, q.StartDate.Format(utils.DateLayout), q.EndDate.Format(utils.DateLayout), placements})
	return fmt.Sprintf("adops:availability:%s:%x", p.Schema, sha256.Sum256(raw))
}

func (f *AvailabilityFlowImpl) readCache(ctx context.Context, key string) *dto.AvailabilityResponse {
	if f.rc == nil {
		return nil
	}
	bs, err := f.rc.Get(ctx, key).Bytes()
	if err != nil || len(bs) == 0 {
		return nil
	}
	var resp dto.AvailabilityResponse
	if err := json.Unmarshal(bs, &resp); err != nil {
		return nil
	}
	return &resp
}

func (f *AvailabilityFlowImpl) writeCache(ctx context.Context, key string, resp *dto.AvailabilityResponse) {
	if f.rc == nil {
		return
	}
	bs, err := json.Marshal(resp)
	if err != nil {
		return
	}
	if err := f.rc.Set(ctx, key, bs, f.cacheTTL).Err(); err != nil {
		logging.Warn("availability cache write failed", logging.Err(err))
	}
}
