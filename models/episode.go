package models

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// EpisodeStatus represents the publication status of an episode
type EpisodeStatus string

const (
	EpisodeStatusScheduled EpisodeStatus = "scheduled"
	EpisodeStatusPublished EpisodeStatus = "published"
)

// String returns the string representation of the status
func (s EpisodeStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s EpisodeStatus) Valid() bool {
	switch s {
	case EpisodeStatusScheduled, EpisodeStatusPublished:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for EpisodeStatus
func (s *EpisodeStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}
	switch v := value.(type) {
	case string:
		*s = EpisodeStatus(v)
	case []byte:
		*s = EpisodeStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into EpisodeStatus", value)
	}
	return nil
}

// Value implements the driver.Valuer interface for EpisodeStatus
func (s EpisodeStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid EpisodeStatus: %s", s)
	}
	return string(s), nil
}

// Episode belongs to exactly one show. The booked counters are
// denormalized per placement type and only ever mutated inside the commit
// transaction, alongside the spot insert they account for.
type Episode struct {
	ID      uint          `gorm:"primaryKey" json:"id"`
	ShowID  uint          `gorm:"not null;index:idx_episodes_show" json:"show_id"`
	Title   string        `gorm:"size:255;not null" json:"title"`
	AirDate time.Time     `gorm:"not null;index:idx_episodes_air_date" json:"air_date"`
	Status  EpisodeStatus `gorm:"size:32;not null;default:'scheduled'" json:"status"`

	PreRollBooked  int `gorm:"not null;default:0" json:"pre_roll_booked"`
	MidRollBooked  int `gorm:"not null;default:0" json:"mid_roll_booked"`
	PostRollBooked int `gorm:"not null;default:0" json:"post_roll_booked"`

	CreatedAt time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`

	// Relations
	Show *Show `gorm:"foreignKey:ShowID;references:ID" json:"show,omitempty"`
}

// TableName returns the table name for the model
func (Episode) TableName() string {
	return "episodes"
}

// BookedColumnFor maps a placement type to its counter column.
func BookedColumnFor(placement PlacementType) string {
	switch placement {
	case PlacementPreRoll:
		return "pre_roll_booked"
	case PlacementMidRoll:
		return "mid_roll_booked"
	case PlacementPostRoll:
		return "post_roll_booked"
	default:
		return ""
	}
}

// EpisodeFilter represents filter criteria for episodes
type EpisodeFilter struct {
	ID             *uint          `json:"id,omitempty"`
	ShowID         *uint          `json:"show_id,omitempty"`
	ShowIDs        []uint         `json:"show_ids,omitempty"`
	Status         *EpisodeStatus `json:"status,omitempty"`
	AirsOnOrAfter  *time.Time     `json:"airs_on_or_after,omitempty"`
	AirsOnOrBefore *time.Time     `json:"airs_on_or_before,omitempty"`
}
