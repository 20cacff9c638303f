package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// BulkScheduleIdempotency caches the result of a bulk schedule commit
// keyed by the caller-supplied idempotency key. A commit replayed with the
// same key inside the TTL window returns the cached result byte for byte;
// the commit body is never re-executed. The row is written inside the
// same transaction as the bookings it describes, so an ambiguous
// (timed-out) response is always safe to retry.
type BulkScheduleIdempotency struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	Key       uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:uk_bulk_schedule_idempotency_key" json:"key"`
	Result    json.RawMessage `gorm:"type:jsonb;not null" json:"result"`
	CreatedAt time.Time       `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_bulk_schedule_idempotency_created" json:"created_at"`
}

// TableName returns the table name for the model
func (BulkScheduleIdempotency) TableName() string {
	return "bulk_schedule_idempotency"
}

// FreshAt reports whether the cached result is still inside the replay
// window at the given instant.
func (i *BulkScheduleIdempotency) FreshAt(now time.Time, ttl time.Duration) bool {
	return now.Sub(i.CreatedAt) < ttl
}
