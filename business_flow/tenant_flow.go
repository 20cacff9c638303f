package businessflow

import (
	"context"
	"fmt"

	"github.com/podscale/adops/models"
	"github.com/podscale/adops/repository"
	"github.com/podscale/adops/utils"
)

// TenantFlow resolves the tenant partition for a request and provisions
// new tenant schemas. Every tenant-scoped flow receives its Partition
// from here; nothing else derives schema names.
type TenantFlow interface {
	Resolve(ctx context.Context, userID uint) (models.Partition, *models.Membership, error)
	ResolveForOrganization(ctx context.Context, principal *models.Principal, targetSlug string, meta *ClientMetadata) (models.Partition, error)
	Provision(ctx context.Context, org *models.Organization) error
}

type TenantFlowImpl struct {
	orgRepo        repository.OrganizationRepository
	membershipRepo repository.MembershipRepository
	auditRepo      repository.CrossTenantAuditRepository
	provisioner    repository.TenantProvisioner
}

func NewTenantFlow(
	orgRepo repository.OrganizationRepository,
	membershipRepo repository.MembershipRepository,
	auditRepo repository.CrossTenantAuditRepository,
	provisioner repository.TenantProvisioner,
) TenantFlow {
	return &TenantFlowImpl{
		orgRepo:        orgRepo,
		membershipRepo: membershipRepo,
		auditRepo:      auditRepo,
		provisioner:    provisioner,
	}
}

func (f *TenantFlowImpl) Resolve(ctx context.Context, userID uint) (models.Partition, *models.Membership, error) {
	membership, err := f.membershipRepo.ByUserID(ctx, userID)
	if err != nil {
		return models.Partition{}, nil, NewBusinessError(ErrCodeUnexpected, "failed to look up membership", err)
	}
	if membership == nil || membership.Organization == nil {
		return models.Partition{}, nil, NewBusinessError(ErrCodeSchemaViolation, "no organization for user", ErrOrganizationNotFound)
	}

	p := models.Partition{Schema: membership.Organization.SchemaName}
	if !p.Valid() {
		return models.Partition{}, nil, NewBusinessError(ErrCodeSchemaViolation,
			fmt.Sprintf("organization %d has an invalid schema name", membership.OrganizationID), ErrSchemaViolation)
	}
	return p, membership, nil
}

// ResolveForOrganization grants a superuser access to another tenant's
// partition. Every grant leaves an audit row in the public schema.
func (f *TenantFlowImpl) ResolveForOrganization(ctx context.Context, principal *models.Principal, targetSlug string, meta *ClientMetadata) (models.Partition, error) {
	if principal == nil || principal.Role != models.RoleSuperuser {
		return models.Partition{}, NewBusinessError(ErrCodeInvalidInput, "cross-tenant access denied", ErrCrossTenantDenied)
	}

	org, err := f.orgRepo.BySlug(ctx, targetSlug)
	if err != nil {
		return models.Partition{}, NewBusinessError(ErrCodeUnexpected, "failed to look up organization", err)
	}
	if org == nil {
		return models.Partition{}, NewBusinessError(ErrCodeSchemaViolation, "organization not found", ErrOrganizationNotFound)
	}

	p := models.Partition{Schema: org.SchemaName}
	if !p.Valid() {
		return models.Partition{}, NewBusinessError(ErrCodeSchemaViolation, "organization has an invalid schema name", ErrSchemaViolation)
	}

	audit := &models.CrossTenantAuditLog{
		UserID:       principal.UserID,
		HomeOrgID:    principal.OrganizationID,
		TargetSchema: org.SchemaName,
		CreatedAt:    utils.UTCNow(),
	}
	if meta != nil {
		audit.Reason = utils.ToPtr(fmt.Sprintf("request %s from %s", correlationID(meta), meta.IP))
	}
	if err := f.auditRepo.Save(ctx, audit); err != nil {
		return models.Partition{}, NewBusinessError(ErrCodeUnexpected, "failed to record cross-tenant access", err)
	}
	return p, nil
}

// Provision creates the organization's schema and tenant tables. The
// organization row must already carry its derived schema name.
func (f *TenantFlowImpl) Provision(ctx context.Context, org *models.Organization) error {
	if org.SchemaName == "" {
		org.SchemaName = models.SchemaNameForSlug(org.Slug)
	}
	p := models.Partition{Schema: org.SchemaName}
	if err := guardPartition(p); err != nil {
		return err
	}
	if err := f.provisioner.Provision(ctx, p); err != nil {
		return NewBusinessError(ErrCodeUnexpected, "failed to provision tenant schema", err)
	}
	return nil
}
