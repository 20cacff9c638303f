package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SpotStatus represents the booking status of a scheduled spot
type SpotStatus string

const (
	SpotStatusBooked    SpotStatus = "booked"
	SpotStatusCancelled SpotStatus = "cancelled"
)

// Valid checks if the status is valid
func (s SpotStatus) Valid() bool {
	switch s {
	case SpotStatusBooked, SpotStatusCancelled:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for SpotStatus
func (s *SpotStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}
	switch v := value.(type) {
	case string:
		*s = SpotStatus(v)
	case []byte:
		*s = SpotStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into SpotStatus", value)
	}
	return nil
}

// Value implements the driver.Valuer interface for SpotStatus
func (s SpotStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid SpotStatus: %s", s)
	}
	return string(s), nil
}

// ScheduleStatus is the workflow status of the schedule a spot belongs to.
// Only approved/active schedules consume inventory.
type ScheduleStatus string

const (
	ScheduleStatusDraft     ScheduleStatus = "draft"
	ScheduleStatusApproved  ScheduleStatus = "approved"
	ScheduleStatusActive    ScheduleStatus = "active"
	ScheduleStatusCompleted ScheduleStatus = "completed"
	ScheduleStatusCancelled ScheduleStatus = "cancelled"
)

// Valid checks if the status is valid
func (s ScheduleStatus) Valid() bool {
	switch s {
	case ScheduleStatusDraft, ScheduleStatusApproved, ScheduleStatusActive,
		ScheduleStatusCompleted, ScheduleStatusCancelled:
		return true
	default:
		return false
	}
}

// ConsumesInventory reports whether spots under this schedule status count
// against availability.
func (s ScheduleStatus) ConsumesInventory() bool {
	return s == ScheduleStatusApproved || s == ScheduleStatusActive
}

// Scan implements the sql.Scanner interface for ScheduleStatus
func (s *ScheduleStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}
	switch v := value.(type) {
	case string:
		*s = ScheduleStatus(v)
	case []byte:
		*s = ScheduleStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into ScheduleStatus", value)
	}
	return nil
}

// Value implements the driver.Valuer interface for ScheduleStatus
func (s ScheduleStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid ScheduleStatus: %s", s)
	}
	return string(s), nil
}

// ScheduledSpot is a single booked ad placement: one slot of one placement
// type in one episode. Uniqueness invariant: at most one non-cancelled
// spot per (episode, placement type, slot number), enforced by a partial
// unique index and re-checked under row lock at commit time.
type ScheduledSpot struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	UUID           uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:uk_scheduled_spots_uuid" json:"uuid"`
	EpisodeID      uint           `gorm:"not null;index:idx_scheduled_spots_episode;uniqueIndex:uk_scheduled_spots_slot,where:status <> 'cancelled'" json:"episode_id"`
	ShowID         uint           `gorm:"not null;index:idx_scheduled_spots_show" json:"show_id"`
	CampaignID     *uint          `gorm:"index:idx_scheduled_spots_campaign" json:"campaign_id,omitempty"`
	AdvertiserID   uint           `gorm:"not null;index:idx_scheduled_spots_advertiser" json:"advertiser_id"`
	AgencyID       *uint          `json:"agency_id,omitempty"`
	AirDate        time.Time      `gorm:"not null;index:idx_scheduled_spots_air_date" json:"air_date"`
	PlacementType  PlacementType  `gorm:"size:32;not null;uniqueIndex:uk_scheduled_spots_slot,where:status <> 'cancelled'" json:"placement_type"`
	SlotNumber     int            `gorm:"not null;uniqueIndex:uk_scheduled_spots_slot,where:status <> 'cancelled'" json:"slot_number"`
	Rate           int64          `gorm:"not null" json:"rate"`
	NegotiatedRate *int64         `json:"negotiated_rate,omitempty"`
	Status         SpotStatus     `gorm:"size:32;not null;default:'booked'" json:"status"`
	ScheduleStatus ScheduleStatus `gorm:"size:32;not null;default:'approved'" json:"schedule_status"`
	CorrelationID  uuid.UUID      `gorm:"type:uuid;index:idx_scheduled_spots_correlation" json:"correlation_id"`
	CreatedAt      time.Time      `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt      *time.Time     `json:"updated_at,omitempty"`

	// Relations
	Episode  *Episode  `gorm:"foreignKey:EpisodeID;references:ID" json:"episode,omitempty"`
	Campaign *Campaign `gorm:"foreignKey:CampaignID;references:ID" json:"campaign,omitempty"`
}

// TableName returns the table name for the model
func (ScheduledSpot) TableName() string {
	return "scheduled_spots"
}

// BeforeCreate is called before creating a new record
func (s *ScheduledSpot) BeforeCreate(tx *gorm.DB) error {
	if s.UUID == uuid.Nil {
		s.UUID = uuid.New()
	}
	if s.Status == "" {
		s.Status = SpotStatusBooked
	}
	if s.ScheduleStatus == "" {
		s.ScheduleStatus = ScheduleStatusApproved
	}
	return nil
}

// IsActive reports whether the spot currently consumes its slot.
func (s *ScheduledSpot) IsActive() bool {
	return s.Status == SpotStatusBooked && s.ScheduleStatus.ConsumesInventory()
}

// ScheduledSpotFilter represents filter criteria for scheduled spots
type ScheduledSpotFilter struct {
	ID             *uint           `json:"id,omitempty"`
	EpisodeID      *uint           `json:"episode_id,omitempty"`
	EpisodeIDs     []uint          `json:"episode_ids,omitempty"`
	ShowID         *uint           `json:"show_id,omitempty"`
	CampaignID     *uint           `json:"campaign_id,omitempty"`
	AdvertiserID   *uint           `json:"advertiser_id,omitempty"`
	PlacementType  *PlacementType  `json:"placement_type,omitempty"`
	SlotNumber     *int            `json:"slot_number,omitempty"`
	Status         *SpotStatus     `json:"status,omitempty"`
	AirsOnOrAfter  *time.Time      `json:"airs_on_or_after,omitempty"`
	AirsOnOrBefore *time.Time      `json:"airs_on_or_before,omitempty"`
	CorrelationID  *uuid.UUID      `json:"correlation_id,omitempty"`
	ScheduleStatus *ScheduleStatus `json:"schedule_status,omitempty"`
}
