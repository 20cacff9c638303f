package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Activity action constants
const (
	ActivityActionScheduleCommitted    = "schedule_committed"
	ActivityActionScheduleCommitFailed = "schedule_commit_failed"
	ActivityActionReservationsReleased = "reservations_released"
	ActivityActionWorkflowAdvanced     = "workflow_advanced"
)

// ActivityLog is the tenant-scoped audit trail. Rows are written after a
// successful commit outside the booking transaction; a write failure is
// logged and never surfaced as a commit failure.
type ActivityLog struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	UserID        *uint           `gorm:"index:idx_activity_logs_user" json:"user_id,omitempty"`
	CampaignID    *uint           `gorm:"index:idx_activity_logs_campaign" json:"campaign_id,omitempty"`
	Action        string          `gorm:"size:64;not null;index:idx_activity_logs_action" json:"action"`
	Description   *string         `gorm:"type:text" json:"description,omitempty"`
	CorrelationID uuid.UUID       `gorm:"type:uuid;index:idx_activity_logs_correlation" json:"correlation_id"`
	Metadata      json.RawMessage `gorm:"type:jsonb" json:"metadata,omitempty"`
	Success       *bool           `gorm:"default:true" json:"success"`
	ErrorMessage  *string         `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt     time.Time       `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_activity_logs_created" json:"created_at"`
}

// TableName returns the table name for the model
func (ActivityLog) TableName() string {
	return "activity_logs"
}

func (a *ActivityLog) IsFailed() bool {
	return a.Success != nil && !*a.Success
}

// ActivityLogFilter represents filter criteria for activity log queries
type ActivityLogFilter struct {
	ID            *uint      `json:"id,omitempty"`
	UserID        *uint      `json:"user_id,omitempty"`
	CampaignID    *uint      `json:"campaign_id,omitempty"`
	Action        *string    `json:"action,omitempty"`
	CorrelationID *uuid.UUID `json:"correlation_id,omitempty"`
	Success       *bool      `json:"success,omitempty"`
	CreatedAfter  *time.Time `json:"created_after,omitempty"`
	CreatedBefore *time.Time `json:"created_before,omitempty"`
}
