package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/podscale/adops/utils"
)

// ReservationStatus represents the status of an inventory reservation
type ReservationStatus string

const (
	ReservationStatusReserved  ReservationStatus = "reserved"
	ReservationStatusConfirmed ReservationStatus = "confirmed"
	ReservationStatusReleased  ReservationStatus = "released"
)

// Valid checks if the status is valid
func (s ReservationStatus) Valid() bool {
	switch s {
	case ReservationStatusReserved, ReservationStatusConfirmed, ReservationStatusReleased:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for ReservationStatus
func (s *ReservationStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}
	switch v := value.(type) {
	case string:
		*s = ReservationStatus(v)
	case []byte:
		*s = ReservationStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into ReservationStatus", value)
	}
	return nil
}

// Value implements the driver.Valuer interface for ReservationStatus
func (s ReservationStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid ReservationStatus: %s", s)
	}
	return string(s), nil
}

// InventoryReservation is a time-limited hold on one specific slot, tied
// to a draft schedule through ScheduleRef. Holds are optimistic locks:
// they expire rather than being actively released, and expired rows never
// count as consumed capacity. An administrative bulk-release exists for
// stuck holds.
type InventoryReservation struct {
	ID            uint              `gorm:"primaryKey" json:"id"`
	EpisodeID     uint              `gorm:"not null;index:idx_inventory_reservations_episode" json:"episode_id"`
	PlacementType PlacementType     `gorm:"size:32;not null" json:"placement_type"`
	SlotNumber    int               `gorm:"not null" json:"slot_number"`
	ScheduleRef   uuid.UUID         `gorm:"type:uuid;not null;index:idx_inventory_reservations_schedule" json:"schedule_ref"`
	Status        ReservationStatus `gorm:"size:32;not null;default:'reserved'" json:"status"`
	ExpiresAt     time.Time         `gorm:"not null;index:idx_inventory_reservations_expires" json:"expires_at"`
	CreatedAt     time.Time         `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt     *time.Time        `json:"updated_at,omitempty"`
}

// TableName returns the table name for the model
func (InventoryReservation) TableName() string {
	return "inventory_reservations"
}

// BeforeCreate is called before creating a new record
func (r *InventoryReservation) BeforeCreate(tx *gorm.DB) error {
	if r.Status == "" {
		r.Status = ReservationStatusReserved
	}
	if r.ExpiresAt.IsZero() {
		r.ExpiresAt = utils.UTCNow().Add(utils.ReservationTTL)
	}
	return nil
}

// Holds reports whether the reservation currently consumes its slot at
// the given instant.
func (r *InventoryReservation) Holds(now time.Time) bool {
	if r.Status != ReservationStatusReserved && r.Status != ReservationStatusConfirmed {
		return false
	}
	return r.ExpiresAt.After(now)
}

// InventoryReservationFilter represents filter criteria for reservations
type InventoryReservationFilter struct {
	ID            *uint              `json:"id,omitempty"`
	EpisodeID     *uint              `json:"episode_id,omitempty"`
	EpisodeIDs    []uint             `json:"episode_ids,omitempty"`
	PlacementType *PlacementType     `json:"placement_type,omitempty"`
	SlotNumber    *int               `json:"slot_number,omitempty"`
	ScheduleRef   *uuid.UUID         `json:"schedule_ref,omitempty"`
	Status        *ReservationStatus `json:"status,omitempty"`
	ExpiresBefore *time.Time         `json:"expires_before,omitempty"`
	ExpiresAfter  *time.Time         `json:"expires_after,omitempty"`
}
