package models

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// PlacementType is the position of an ad slot within an episode.
type PlacementType string

const (
	PlacementPreRoll  PlacementType = "pre-roll"
	PlacementMidRoll  PlacementType = "mid-roll"
	PlacementPostRoll PlacementType = "post-roll"
)

// AllPlacementTypes lists every placement in canonical order.
func AllPlacementTypes() []PlacementType {
	return []PlacementType{PlacementPreRoll, PlacementMidRoll, PlacementPostRoll}
}

// String returns the string representation of the placement type
func (p PlacementType) String() string {
	return string(p)
}

// Valid checks if the placement type is valid
func (p PlacementType) Valid() bool {
	switch p {
	case PlacementPreRoll, PlacementMidRoll, PlacementPostRoll:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for PlacementType
func (p *PlacementType) Scan(value any) error {
	if value == nil {
		*p = ""
		return nil
	}
	switch v := value.(type) {
	case string:
		*p = PlacementType(v)
	case []byte:
		*p = PlacementType(string(v))
	default:
		return fmt.Errorf("cannot scan %T into PlacementType", value)
	}
	return nil
}

// Value implements the driver.Valuer interface for PlacementType
func (p PlacementType) Value() (driver.Value, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("invalid PlacementType: %s", p)
	}
	return string(p), nil
}

// Show is a podcast series owned by the tenant. Shows are never hard
// deleted while campaigns reference them; IsActive gates new bookings.
type Show struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	Name      string     `gorm:"size:255;not null" json:"name"`
	Category  string     `gorm:"size:255" json:"category"`
	IsActive  *bool      `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`

	// Relations
	Configurations []ShowConfiguration `gorm:"foreignKey:ShowID" json:"configurations,omitempty"`
	Episodes       []Episode           `gorm:"foreignKey:ShowID" json:"episodes,omitempty"`
}

// TableName returns the table name for the model
func (Show) TableName() string {
	return "shows"
}

// ShowConfiguration is a versioned, time-bounded definition of slot counts
// per placement type for a show. Selection follows effective-date
// precedence: latest EffectiveDate <= airDate wins, bounded by the
// optional ExpiryDate.
type ShowConfiguration struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	ShowID        uint       `gorm:"not null;index:idx_show_configurations_show" json:"show_id"`
	PreRollSlots  int        `gorm:"not null;default:0" json:"pre_roll_slots"`
	MidRollSlots  int        `gorm:"not null;default:0" json:"mid_roll_slots"`
	PostRollSlots int        `gorm:"not null;default:0" json:"post_roll_slots"`
	EffectiveDate time.Time  `gorm:"not null;index:idx_show_configurations_effective" json:"effective_date"`
	ExpiryDate    *time.Time `json:"expiry_date,omitempty"`
	CreatedAt     time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`

	// Relations
	RateCards []RateCard `gorm:"foreignKey:ShowConfigurationID" json:"rate_cards,omitempty"`
}

// TableName returns the table name for the model
func (ShowConfiguration) TableName() string {
	return "show_configurations"
}

// SlotsFor returns the configured slot count for a placement type.
func (c *ShowConfiguration) SlotsFor(placement PlacementType) int {
	switch placement {
	case PlacementPreRoll:
		return c.PreRollSlots
	case PlacementMidRoll:
		return c.MidRollSlots
	case PlacementPostRoll:
		return c.PostRollSlots
	default:
		return 0
	}
}

// EffectiveOn reports whether the configuration covers the given air date.
func (c *ShowConfiguration) EffectiveOn(airDate time.Time) bool {
	if c.EffectiveDate.After(airDate) {
		return false
	}
	if c.ExpiryDate != nil && c.ExpiryDate.Before(airDate) {
		return false
	}
	return true
}

// ShowFilter represents filter criteria for shows
type ShowFilter struct {
	ID       *uint   `json:"id,omitempty"`
	IDs      []uint  `json:"ids,omitempty"`
	Name     *string `json:"name,omitempty"`
	Category *string `json:"category,omitempty"`
	IsActive *bool   `json:"is_active,omitempty"`
}
