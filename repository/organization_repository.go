package repository

import (
	"context"
	"errors"

	"github.com/podscale/adops/models"
	"gorm.io/gorm"
)

// OrganizationRepositoryImpl implements the OrganizationRepository interface
type OrganizationRepositoryImpl struct {
	*BaseRepository[models.Organization, models.OrganizationFilter]
}

// NewOrganizationRepository creates a new organization repository
func NewOrganizationRepository(db *gorm.DB) OrganizationRepository {
	return &OrganizationRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Organization, models.OrganizationFilter](db),
	}
}

// BySlug retrieves an organization by its slug
func (r *OrganizationRepositoryImpl) BySlug(ctx context.Context, slug string) (*models.Organization, error) {
	db := r.getDB(ctx)

	var org models.Organization
	err := db.Where("slug = ?", slug).Last(&org).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &org, nil
}

// ListActive retrieves every active organization
func (r *OrganizationRepositoryImpl) ListActive(ctx context.Context) ([]models.Organization, error) {
	db := r.getDB(ctx)

	var orgs []models.Organization
	if err := db.Where("is_active = ?", true).Order("id ASC").Find(&orgs).Error; err != nil {
		return nil, err
	}

	return orgs, nil
}

// MembershipRepositoryImpl implements the MembershipRepository interface
type MembershipRepositoryImpl struct {
	*BaseRepository[models.Membership, any]
}

// NewMembershipRepository creates a new membership repository
func NewMembershipRepository(db *gorm.DB) MembershipRepository {
	return &MembershipRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Membership, any](db),
	}
}

// ByUserID retrieves the membership for a user, with its organization
func (r *MembershipRepositoryImpl) ByUserID(ctx context.Context, userID uint) (*models.Membership, error) {
	db := r.getDB(ctx)

	var m models.Membership
	err := db.Preload("Organization").Where("user_id = ?", userID).Last(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &m, nil
}

// CrossTenantAuditRepositoryImpl implements the CrossTenantAuditRepository interface
type CrossTenantAuditRepositoryImpl struct {
	*BaseRepository[models.CrossTenantAuditLog, any]
}

// NewCrossTenantAuditRepository creates a new cross-tenant audit repository
func NewCrossTenantAuditRepository(db *gorm.DB) CrossTenantAuditRepository {
	return &CrossTenantAuditRepositoryImpl{
		BaseRepository: NewBaseRepository[models.CrossTenantAuditLog, any](db),
	}
}

// ListByUser returns a user's cross-tenant access history, newest first
func (r *CrossTenantAuditRepositoryImpl) ListByUser(ctx context.Context, userID uint, limit, offset int) ([]*models.CrossTenantAuditLog, error) {
	db := r.getDB(ctx)

	var entries []*models.CrossTenantAuditLog
	query := db.Where("user_id = ?", userID).Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	if err := query.Find(&entries).Error; err != nil {
		return nil, err
	}

	return entries, nil
}
