package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CampaignStatus represents the status of a campaign
type CampaignStatus string

const (
	CampaignStatusDraft          CampaignStatus = "draft"
	CampaignStatusInReservations CampaignStatus = "in_reservations"
	CampaignStatusApproved       CampaignStatus = "approved"
	CampaignStatusActive         CampaignStatus = "active"
	CampaignStatusCompleted      CampaignStatus = "completed"
	CampaignStatusCancelled      CampaignStatus = "cancelled"
)

// String returns the string representation of the status
func (s CampaignStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s CampaignStatus) Valid() bool {
	switch s {
	case CampaignStatusDraft, CampaignStatusInReservations, CampaignStatusApproved,
		CampaignStatusActive, CampaignStatusCompleted, CampaignStatusCancelled:
		return true
	default:
		return false
	}
}

// ConflictRelevant reports whether campaigns in this status participate
// in category/competitor conflict checks.
func (s CampaignStatus) ConflictRelevant() bool {
	switch s {
	case CampaignStatusInReservations, CampaignStatusApproved, CampaignStatusActive:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for CampaignStatus
func (s *CampaignStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}
	switch v := value.(type) {
	case string:
		*s = CampaignStatus(v)
	case []byte:
		*s = CampaignStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into CampaignStatus", value)
	}
	return nil
}

// Value implements the driver.Valuer interface for CampaignStatus
func (s CampaignStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid CampaignStatus: %s", s)
	}
	return string(s), nil
}

// ConflictPolicy governs category conflict severity.
type ConflictPolicy string

const (
	ConflictPolicyBlock ConflictPolicy = "BLOCK"
	ConflictPolicyWarn  ConflictPolicy = "WARN"
)

// Valid checks if the policy is valid
func (p ConflictPolicy) Valid() bool {
	return p == ConflictPolicyBlock || p == ConflictPolicyWarn
}

// Scan implements the sql.Scanner interface for ConflictPolicy
func (p *ConflictPolicy) Scan(value any) error {
	if value == nil {
		*p = ""
		return nil
	}
	switch v := value.(type) {
	case string:
		*p = ConflictPolicy(v)
	case []byte:
		*p = ConflictPolicy(string(v))
	default:
		return fmt.Errorf("cannot scan %T into ConflictPolicy", value)
	}
	return nil
}

// Value implements the driver.Valuer interface for ConflictPolicy
func (p ConflictPolicy) Value() (driver.Value, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("invalid ConflictPolicy: %s", p)
	}
	return string(p), nil
}

// Campaign is an advertising campaign scoped to one tenant.
type Campaign struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	UUID          uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:uk_campaigns_uuid" json:"uuid"`
	Name          string         `gorm:"size:255;not null" json:"name"`
	AdvertiserID  uint           `gorm:"not null;index:idx_campaigns_advertiser" json:"advertiser_id"`
	AgencyID      *uint          `json:"agency_id,omitempty"`
	CategoryID    uint           `gorm:"not null;index:idx_campaigns_category" json:"category_id"`
	Status        CampaignStatus `gorm:"size:32;not null;default:'draft';index:idx_campaigns_status" json:"status"`
	StartDate     time.Time      `gorm:"not null" json:"start_date"`
	EndDate       time.Time      `gorm:"not null" json:"end_date"`
	WorkflowStage int            `gorm:"not null;default:0" json:"workflow_stage"`
	CreatedAt     time.Time      `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt     *time.Time     `json:"updated_at,omitempty"`

	// Relations
	Advertiser *Advertiser       `gorm:"foreignKey:AdvertiserID;references:ID" json:"advertiser,omitempty"`
	Category   *CampaignCategory `gorm:"foreignKey:CategoryID;references:ID" json:"category,omitempty"`
}

// TableName returns the table name for the model
func (Campaign) TableName() string {
	return "campaigns"
}

// BeforeCreate is called before creating a new record
func (c *Campaign) BeforeCreate(tx *gorm.DB) error {
	if c.UUID == uuid.Nil {
		c.UUID = uuid.New()
	}
	if c.Status == "" {
		c.Status = CampaignStatusDraft
	}
	return nil
}

// CanTransitionTo checks if the campaign can transition to the given status
func (c *Campaign) CanTransitionTo(newStatus CampaignStatus) bool {
	switch c.Status {
	case CampaignStatusDraft:
		return newStatus == CampaignStatusInReservations || newStatus == CampaignStatusCancelled
	case CampaignStatusInReservations:
		return newStatus == CampaignStatusApproved || newStatus == CampaignStatusCancelled
	case CampaignStatusApproved:
		return newStatus == CampaignStatusActive || newStatus == CampaignStatusCancelled
	case CampaignStatusActive:
		return newStatus == CampaignStatusCompleted || newStatus == CampaignStatusCancelled
	default:
		return false
	}
}

// CampaignCategory tags campaigns for category-exclusivity checks.
type CampaignCategory struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	Name           string         `gorm:"size:255;not null;uniqueIndex:uk_campaign_categories_name" json:"name"`
	ConflictPolicy ConflictPolicy `gorm:"size:16;not null;default:'BLOCK'" json:"conflict_policy"`
	CreatedAt      time.Time      `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
}

// TableName returns the table name for the model
func (CampaignCategory) TableName() string {
	return "campaign_categories"
}

// CompetitorSet groups mutually-exclusive advertisers within a category.
// Two advertisers from the same set must never run overlapping campaigns,
// regardless of the category's conflict policy.
type CompetitorSet struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	CategoryID uint      `gorm:"not null;index:idx_competitor_sets_category" json:"category_id"`
	Name       string    `gorm:"size:255;not null" json:"name"`
	CreatedAt  time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
}

// TableName returns the table name for the model
func (CompetitorSet) TableName() string {
	return "competitor_sets"
}

// Advertiser is the buying brand behind a campaign.
type Advertiser struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	Name            string    `gorm:"size:255;not null" json:"name"`
	CompetitorSetID *uint     `gorm:"index:idx_advertisers_competitor_set" json:"competitor_set_id,omitempty"`
	CreatedAt       time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
}

// TableName returns the table name for the model
func (Advertiser) TableName() string {
	return "advertisers"
}

// Agency is the media agency placing spots on behalf of advertisers.
type Agency struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
}

// TableName returns the table name for the model
func (Agency) TableName() string {
	return "agencies"
}

// CampaignFilter represents filter criteria for campaigns
type CampaignFilter struct {
	ID           *uint           `json:"id,omitempty"`
	UUID         *uuid.UUID      `json:"uuid,omitempty"`
	AdvertiserID *uint           `json:"advertiser_id,omitempty"`
	CategoryID   *uint           `json:"category_id,omitempty"`
	Status       *CampaignStatus `json:"status,omitempty"`
	StartsBefore *time.Time      `json:"starts_before,omitempty"`
	EndsAfter    *time.Time      `json:"ends_after,omitempty"`
}
