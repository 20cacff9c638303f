package repository

import (
	"context"
	"fmt"

	"github.com/podscale/adops/models"
	"gorm.io/gorm"
)

// SchemaOpener opens a GORM session whose search_path points at the given
// schema, so AutoMigrate creates tables inside it. Implementations
// typically re-dial with `search_path=<schema>` in the DSN.
type SchemaOpener func(schema string) (*gorm.DB, error)

// TenantProvisionerImpl creates tenant schemas and their tables.
type TenantProvisionerImpl struct {
	db         *gorm.DB
	openSchema SchemaOpener
}

// NewTenantProvisioner creates a new tenant provisioner
func NewTenantProvisioner(db *gorm.DB, openSchema SchemaOpener) TenantProvisioner {
	return &TenantProvisionerImpl{
		db:         db,
		openSchema: openSchema,
	}
}

// Provision creates the partition's schema if missing and migrates the
// tenant tables into it. Idempotent; safe to call on every org activation.
func (p *TenantProvisionerImpl) Provision(ctx context.Context, partition models.Partition) error {
	if !partition.Valid() {
		return fmt.Errorf("refusing to provision invalid partition %q", partition.Schema)
	}

	if err := p.db.WithContext(ctx).Exec("CREATE SCHEMA IF NOT EXISTS " + partition.Schema).Error; err != nil {
		return fmt.Errorf("failed to create schema %s: %w", partition.Schema, err)
	}

	scoped, err := p.openSchema(partition.Schema)
	if err != nil {
		return fmt.Errorf("failed to open schema-scoped connection: %w", err)
	}
	defer func() {
		if sqlDB, dbErr := scoped.DB(); dbErr == nil {
			_ = sqlDB.Close()
		}
	}()

	if err := scoped.WithContext(ctx).AutoMigrate(models.TenantModels()...); err != nil {
		return fmt.Errorf("failed to migrate tenant tables for %s: %w", partition.Schema, err)
	}

	return nil
}
