package businessflow

import (
	"context"
	"time"

	"github.com/podscale/adops/models"
	"github.com/podscale/adops/repository"
	"github.com/podscale/adops/utils"
)

// slotKey addresses the slots of one placement type within one episode.
type slotKey struct {
	episodeID uint
	placement models.PlacementType
}

// inventoryIndex is an in-memory snapshot of everything the availability
// and allocation flows need for a show/date window: episodes, effective
// configurations and rate cards, plus slot occupancy from booked spots
// and live reservation holds.
type inventoryIndex struct {
	shows         map[uint]*models.Show
	episodes      []*models.Episode
	configsByShow map[uint][]models.ShowConfiguration
	cardsByConfig map[uint][]models.RateCard

	booked   map[slotKey]int
	held     map[slotKey]int
	occupied map[slotKey]map[int]bool
}

type inventoryLoader struct {
	showRepo        repository.ShowRepository
	episodeRepo     repository.EpisodeRepository
	rateCardRepo    repository.RateCardRepository
	spotRepo        repository.SpotRepository
	reservationRepo repository.ReservationRepository
}

func (l *inventoryLoader) load(ctx context.Context, p models.Partition, showIDs []uint, start, end time.Time) (*inventoryIndex, error) {
	idx := &inventoryIndex{
		shows:         make(map[uint]*models.Show),
		configsByShow: make(map[uint][]models.ShowConfiguration),
		cardsByConfig: make(map[uint][]models.RateCard),
		booked:        make(map[slotKey]int),
		held:          make(map[slotKey]int),
		occupied:      make(map[slotKey]map[int]bool),
	}

	shows, err := l.showRepo.ByIDs(ctx, p, showIDs)
	if err != nil {
		return nil, err
	}
	for _, s := range shows {
		idx.shows[s.ID] = s
	}

	episodes, err := l.episodeRepo.ListInRange(ctx, p, showIDs, start, end)
	if err != nil {
		return nil, err
	}
	idx.episodes = episodes

	configs, err := l.showRepo.ListConfigurations(ctx, p, showIDs)
	if err != nil {
		return nil, err
	}
	configIDs := make([]uint, 0, len(configs))
	for _, c := range configs {
		idx.configsByShow[c.ShowID] = append(idx.configsByShow[c.ShowID], *c)
		configIDs = append(configIDs, c.ID)
	}

	cards, err := l.rateCardRepo.ListForConfigurations(ctx, p, configIDs)
	if err != nil {
		return nil, err
	}
	for _, c := range cards {
		idx.cardsByConfig[c.ShowConfigurationID] = append(idx.cardsByConfig[c.ShowConfigurationID], *c)
	}

	episodeIDs := make([]uint, 0, len(episodes))
	for _, e := range episodes {
		episodeIDs = append(episodeIDs, e.ID)
	}

	spots, err := l.spotRepo.ListActiveByEpisodes(ctx, p, episodeIDs)
	if err != nil {
		return nil, err
	}
	for _, s := range spots {
		k := slotKey{episodeID: s.EpisodeID, placement: s.PlacementType}
		idx.booked[k]++
		idx.occupy(k, s.SlotNumber)
	}

	holds, err := l.reservationRepo.ListHoldingByEpisodes(ctx, p, episodeIDs, utils.UTCNow())
	if err != nil {
		return nil, err
	}
	for _, h := range holds {
		k := slotKey{episodeID: h.EpisodeID, placement: h.PlacementType}
		idx.held[k]++
		idx.occupy(k, h.SlotNumber)
	}

	return idx, nil
}

func (i *inventoryIndex) occupy(k slotKey, slot int) {
	if i.occupied[k] == nil {
		i.occupied[k] = make(map[int]bool)
	}
	i.occupied[k][slot] = true
}

// configFor resolves the show configuration in effect on airDate, or nil.
func (i *inventoryIndex) configFor(showID uint, airDate time.Time) *models.ShowConfiguration {
	return models.SelectEffectiveConfiguration(i.configsByShow[showID], airDate)
}

// rateFor resolves the rate card in effect for a placement on airDate, or nil.
func (i *inventoryIndex) rateFor(configID uint, placement models.PlacementType, airDate time.Time) *models.RateCard {
	cards := make([]models.RateCard, 0, len(i.cardsByConfig[configID]))
	for _, c := range i.cardsByConfig[configID] {
		if c.PlacementType == placement {
			cards = append(cards, c)
		}
	}
	return models.SelectEffective(cards, airDate)
}

// available returns configured minus consumed capacity, floored at zero.
func (i *inventoryIndex) available(k slotKey, configured int) int {
	n := configured - i.booked[k] - i.held[k]
	if n < 0 {
		return 0
	}
	return n
}

// freeSlot returns the lowest unoccupied slot number in [1, configured],
// or 0 when the placement is full.
func (i *inventoryIndex) freeSlot(k slotKey, configured int) int {
	for slot := 1; slot <= configured; slot++ {
		if !i.occupied[k][slot] {
			return slot
		}
	}
	return 0
}
