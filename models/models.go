package models

// PublicModels lists the models living in the shared public schema.
func PublicModels() []any {
	return []any{
		&Organization{},
		&Membership{},
		&CrossTenantAuditLog{},
	}
}

// TenantModels lists the models provisioned into every tenant schema.
// Ordering matters for foreign keys.
func TenantModels() []any {
	return []any{
		&Show{},
		&ShowConfiguration{},
		&RateCard{},
		&Episode{},
		&CampaignCategory{},
		&CompetitorSet{},
		&Advertiser{},
		&Agency{},
		&Campaign{},
		&ScheduledSpot{},
		&InventoryReservation{},
		&RateCardDelta{},
		&BulkScheduleIdempotency{},
		&ActivityLog{},
	}
}

// TenantTables lists unqualified tenant table names in provisioning order.
func TenantTables() []string {
	return []string{
		"shows",
		"show_configurations",
		"rate_cards",
		"episodes",
		"campaign_categories",
		"competitor_sets",
		"advertisers",
		"agencies",
		"campaigns",
		"scheduled_spots",
		"inventory_reservations",
		"rate_card_deltas",
		"bulk_schedule_idempotency",
		"activity_logs",
	}
}
