// Package models contains domain entities and business models for the ad-ops platform
package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"

	"github.com/podscale/adops/utils"
)

// Organization is a tenant of the platform. Every organization owns an
// isolated Postgres schema holding its shows, episodes, campaigns and
// bookings. Organizations themselves live in the shared public schema.
type Organization struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	UUID       uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:uk_organizations_uuid" json:"uuid"`
	Name       string     `gorm:"size:255;not null" json:"name"`
	Slug       string     `gorm:"size:255;not null;uniqueIndex:uk_organizations_slug" json:"slug"`
	SchemaName string     `gorm:"size:255;not null;uniqueIndex:uk_organizations_schema" json:"schema_name"`
	IsActive   *bool      `gorm:"default:true" json:"is_active"`
	CreatedAt  time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt  *time.Time `json:"updated_at,omitempty"`
}

// TableName returns the table name for the model
func (Organization) TableName() string {
	return "public.organizations"
}

// BeforeCreate is called before creating a new record
func (o *Organization) BeforeCreate(tx *gorm.DB) error {
	if o.UUID == uuid.Nil {
		o.UUID = uuid.New()
	}
	if o.Slug == "" {
		o.Slug = slug.Make(o.Name)
	}
	if o.SchemaName == "" {
		o.SchemaName = SchemaNameForSlug(o.Slug)
	}
	return nil
}

// SchemaNameForSlug derives the tenant schema name from an organization
// slug: slugified, non-alphanumerics collapsed to underscores, prefixed so
// a numeric-leading slug stays a valid Postgres identifier.
func SchemaNameForSlug(orgSlug string) string {
	s := slug.Make(orgSlug)
	s = strings.ReplaceAll(s, "-", "_")
	return utils.TenantSchemaPrefix + s
}

// Partition identifies one tenant's isolated data namespace. All
// repository operations take a Partition explicitly; there is no ambient
// tenant state.
type Partition struct {
	Schema string
}

// Qualify returns the schema-qualified form of a tenant table name.
func (p Partition) Qualify(table string) string {
	return p.Schema + "." + table
}

// Valid reports whether the partition carries a plausible schema name.
// Qualified names are interpolated into SQL, so reject anything outside
// the derivation alphabet.
func (p Partition) Valid() bool {
	if !strings.HasPrefix(p.Schema, utils.TenantSchemaPrefix) {
		return false
	}
	for _, r := range p.Schema {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '_' {
			return false
		}
	}
	return true
}

func (p Partition) String() string {
	return p.Schema
}

// MembershipRole enumerates the roles a user can hold in an organization.
type MembershipRole string

const (
	RoleSuperuser  MembershipRole = "superuser"
	RoleAdmin      MembershipRole = "admin"
	RoleSales      MembershipRole = "sales"
	RoleProduction MembershipRole = "production"
	RoleViewer     MembershipRole = "viewer"
)

// Valid checks if the role is valid
func (r MembershipRole) Valid() bool {
	switch r {
	case RoleSuperuser, RoleAdmin, RoleSales, RoleProduction, RoleViewer:
		return true
	default:
		return false
	}
}

// CanEditSchedules reports whether the role may commit schedules.
func (r MembershipRole) CanEditSchedules() bool {
	switch r {
	case RoleSuperuser, RoleAdmin, RoleSales, RoleProduction:
		return true
	default:
		return false
	}
}

// CanViewSchedules reports whether the role may preview and inspect schedules.
func (r MembershipRole) CanViewSchedules() bool {
	return r.Valid()
}

// Membership maps an authenticated user to its organization and role.
// Exactly one membership per user; the tenant resolver fails with
// ErrOrganizationNotFound when none exists.
type Membership struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	UserID         uint           `gorm:"not null;uniqueIndex:uk_memberships_user" json:"user_id"`
	OrganizationID uint           `gorm:"not null;index:idx_memberships_org" json:"organization_id"`
	Role           MembershipRole `gorm:"size:32;not null" json:"role"`
	CreatedAt      time.Time      `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`

	// Relations
	Organization *Organization `gorm:"foreignKey:OrganizationID;references:ID" json:"organization,omitempty"`
}

// TableName returns the table name for the model
func (Membership) TableName() string {
	return "public.memberships"
}

// Principal is the validated caller identity handed down from the session
// layer: user, home organization and role. Core flows receive it as an
// explicit argument.
type Principal struct {
	UserID         uint           `json:"user_id"`
	OrganizationID uint           `json:"organization_id"`
	Role           MembershipRole `json:"role"`
}

func (p Principal) String() string {
	return fmt.Sprintf("user=%d org=%d role=%s", p.UserID, p.OrganizationID, p.Role)
}

// CrossTenantAuditLog records superuser access to a partition other than
// their own. Lives in the shared public schema so the target tenant
// cannot erase the trail.
type CrossTenantAuditLog struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UserID       uint      `gorm:"not null;index:idx_cross_tenant_audit_user" json:"user_id"`
	HomeOrgID    uint      `gorm:"not null" json:"home_org_id"`
	TargetSchema string    `gorm:"size:255;not null;index:idx_cross_tenant_audit_target" json:"target_schema"`
	Reason       *string   `gorm:"type:text" json:"reason,omitempty"`
	CreatedAt    time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
}

// TableName returns the table name for the model
func (CrossTenantAuditLog) TableName() string {
	return "public.cross_tenant_audit_logs"
}

// OrganizationFilter represents filter criteria for organizations
type OrganizationFilter struct {
	ID       *uint      `json:"id,omitempty"`
	UUID     *uuid.UUID `json:"uuid,omitempty"`
	Slug     *string    `json:"slug,omitempty"`
	IsActive *bool      `json:"is_active,omitempty"`
}
