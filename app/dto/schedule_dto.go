package dto

// SchedulePreviewRequest describes a bulk placement request across shows and dates.
type SchedulePreviewRequest struct {
	CampaignID                 *uint    `json:"campaign_id,omitempty" validate:"omitempty,gt=0" example:"42"`
	AdvertiserID               uint     `json:"advertiser_id" validate:"required,gt=0" example:"7"`
	AgencyID                   *uint    `json:"agency_id,omitempty" validate:"omitempty,gt=0"`
	ShowIDs                    []uint   `json:"show_ids" validate:"required,min=1,dive,gt=0"`
	StartDate                  string   `json:"start_date" validate:"required,datetime=2006-01-02" example:"2026-09-01"`
	EndDate                    string   `json:"end_date" validate:"required,datetime=2006-01-02" example:"2026-09-30"`
	Weekdays                   []int    `json:"weekdays,omitempty" validate:"omitempty,dive,gte=0,lte=6"`
	PlacementTypes             []string `json:"placement_types" validate:"required,min=1,dive,oneof=pre-roll mid-roll post-roll"`
	SpotsRequested             int      `json:"spots_requested" validate:"required,gt=0" example:"24"`
	SpotsPerWeek               *int     `json:"spots_per_week,omitempty" validate:"omitempty,gt=0"`
	AllowMultiplePerShowPerDay bool     `json:"allow_multiple_per_show_per_day"`
	MaxSpotsPerShowPerDay      *int     `json:"max_spots_per_show_per_day,omitempty" validate:"omitempty,gt=0"`
	FallbackStrategy           string   `json:"fallback_strategy,omitempty" validate:"omitempty,oneof=strict relaxed fill_anywhere"`
	NegotiatedRate             *int64   `json:"negotiated_rate,omitempty" validate:"omitempty,gte=0"`
}

// ScheduleCommitRequest is a preview request plus an idempotency key.
type ScheduleCommitRequest struct {
	SchedulePreviewRequest
	IdempotencyKey string `json:"idempotency_key,omitempty" validate:"omitempty,uuid4"`
}

// PlannedSpotDTO is one slot the allocator would place (or has placed).
type PlannedSpotDTO struct {
	SpotID        *uint  `json:"spot_id,omitempty"`
	EpisodeID     uint   `json:"episode_id"`
	ShowID        uint   `json:"show_id"`
	ShowName      string `json:"show_name"`
	AirDate       string `json:"air_date"`
	PlacementType string `json:"placement_type"`
	SlotNumber    int    `json:"slot_number"`
	Rate          int64  `json:"rate"`
	RateCardID    *uint  `json:"rate_card_id,omitempty"`
}

// ConflictDTO reports one category or competitor collision.
type ConflictDTO struct {
	Severity           string `json:"severity"`
	Reason             string `json:"reason"`
	EpisodeID          uint   `json:"episode_id,omitempty"`
	ShowID             uint   `json:"show_id,omitempty"`
	AirDate            string `json:"air_date,omitempty"`
	CampaignID         uint   `json:"campaign_id,omitempty"`
	CampaignName       string `json:"campaign_name,omitempty"`
	CategoryName       string `json:"category_name,omitempty"`
	CompetitorSetName  string `json:"competitor_set_name,omitempty"`
	ConflictingSpotIDs []uint `json:"conflicting_spot_ids,omitempty"`
}

// AllocationSummaryDTO aggregates an allocation run.
type AllocationSummaryDTO struct {
	SpotsRequested   int    `json:"spots_requested"`
	SpotsPlaced      int    `json:"spots_placed"`
	Shortfall        int    `json:"shortfall"`
	TotalCost        int64  `json:"total_cost"`
	FallbackStrategy string `json:"fallback_strategy"`
	FallbackApplied  bool   `json:"fallback_applied"`
}

type SchedulePreviewResponse struct {
	Message       string               `json:"message"`
	CorrelationID string               `json:"correlation_id"`
	WouldPlace    []PlannedSpotDTO     `json:"would_place"`
	Conflicts     []ConflictDTO        `json:"conflicts"`
	Summary       AllocationSummaryDTO `json:"summary"`
}

type ScheduleCommitResponse struct {
	Message          string               `json:"message"`
	CorrelationID    string               `json:"correlation_id"`
	IdempotencyKey   string               `json:"idempotency_key"`
	IdempotentReplay bool                 `json:"idempotent_replay"`
	Committed        []PlannedSpotDTO     `json:"committed"`
	FinalConflicts   []ConflictDTO        `json:"final_conflicts"`
	Summary          AllocationSummaryDTO `json:"summary"`
	CampaignStatus   string               `json:"campaign_status"`
}

type CampaignConflictsResponse struct {
	Message      string        `json:"message"`
	CampaignID   uint          `json:"campaign_id"`
	CampaignUUID string        `json:"campaign_uuid"`
	Conflicts    []ConflictDTO `json:"conflicts"`
}
