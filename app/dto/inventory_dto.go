package dto

// AvailabilityRequest filters the inventory availability report.
type AvailabilityRequest struct {
	ShowIDs        []uint   `json:"show_ids,omitempty" query:"show_ids" validate:"omitempty,dive,gt=0"`
	StartDate      string   `json:"start_date" query:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate        string   `json:"end_date" query:"end_date" validate:"required,datetime=2006-01-02"`
	PlacementTypes []string `json:"placement_types,omitempty" query:"placement_types" validate:"omitempty,dive,oneof=pre-roll mid-roll post-roll"`
}

// PlacementAvailabilityDTO reports capacity for one placement type of an episode.
type PlacementAvailabilityDTO struct {
	PlacementType string `json:"placement_type"`
	Capacity      int    `json:"capacity"`
	Booked        int    `json:"booked"`
	Held          int    `json:"held"`
	Available     int    `json:"available"`
	Rate          *int64 `json:"rate,omitempty"`
}

type EpisodeAvailabilityDTO struct {
	EpisodeID  uint                       `json:"episode_id"`
	ShowID     uint                       `json:"show_id"`
	ShowName   string                     `json:"show_name"`
	AirDate    string                     `json:"air_date"`
	Title      string                     `json:"title"`
	Placements []PlacementAvailabilityDTO `json:"placements"`
}

type AvailabilityResponse struct {
	Message  string                   `json:"message"`
	Episodes []EpisodeAvailabilityDTO `json:"episodes"`
	Cached   bool                     `json:"cached"`
}

// ReleaseReservationsRequest releases the holds recorded under a schedule reference.
type ReleaseReservationsRequest struct {
	ScheduleRef string `json:"schedule_ref" validate:"required,uuid4"`
}

type ReleaseReservationsResponse struct {
	Message  string `json:"message"`
	Released int64  `json:"released"`
}
