package models

import (
	"time"
)

// RateCard is a versioned, time-bounded price for one placement type of a
// show configuration. Rates are integer cents. Selection by effective-date
// precedence mirrors ShowConfiguration: the latest EffectiveDate <= the
// episode's air date wins, bounded by the optional ExpiryDate. A missing
// rate for a targeted show/placement is a hard input error upstream, never
// silently defaulted.
type RateCard struct {
	ID                  uint          `gorm:"primaryKey" json:"id"`
	ShowConfigurationID uint          `gorm:"not null;index:idx_rate_cards_configuration" json:"show_configuration_id"`
	PlacementType       PlacementType `gorm:"size:32;not null" json:"placement_type"`
	Rate                int64         `gorm:"not null" json:"rate"`
	EffectiveDate       time.Time     `gorm:"not null;index:idx_rate_cards_effective" json:"effective_date"`
	ExpiryDate          *time.Time    `json:"expiry_date,omitempty"`
	CreatedAt           time.Time     `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
}

// TableName returns the table name for the model
func (RateCard) TableName() string {
	return "rate_cards"
}

// EffectiveOn reports whether the rate card covers the given air date.
func (r *RateCard) EffectiveOn(airDate time.Time) bool {
	if r.EffectiveDate.After(airDate) {
		return false
	}
	if r.ExpiryDate != nil && r.ExpiryDate.Before(airDate) {
		return false
	}
	return true
}

// SelectEffective picks the governing rate card for an air date from a
// candidate list: latest effective date wins among cards covering the
// date. Returns nil when none applies.
func SelectEffective(cards []RateCard, airDate time.Time) *RateCard {
	var best *RateCard
	for i := range cards {
		c := &cards[i]
		if !c.EffectiveOn(airDate) {
			continue
		}
		if best == nil || c.EffectiveDate.After(best.EffectiveDate) {
			best = c
		}
	}
	return best
}

// SelectEffectiveConfiguration applies the same precedence rule to show
// configurations.
func SelectEffectiveConfiguration(configs []ShowConfiguration, airDate time.Time) *ShowConfiguration {
	var best *ShowConfiguration
	for i := range configs {
		c := &configs[i]
		if !c.EffectiveOn(airDate) {
			continue
		}
		if best == nil || c.EffectiveDate.After(best.EffectiveDate) {
			best = c
		}
	}
	return best
}

// RateCardDelta records the difference between the rate-card price and the
// actually negotiated price for a placed spot, for reporting.
type RateCardDelta struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	ScheduledSpotID uint      `gorm:"not null;index:idx_rate_card_deltas_spot" json:"scheduled_spot_id"`
	CampaignID      uint      `gorm:"not null;index:idx_rate_card_deltas_campaign" json:"campaign_id"`
	RateCardRate    int64     `gorm:"not null" json:"rate_card_rate"`
	NegotiatedRate  int64     `gorm:"not null" json:"negotiated_rate"`
	Delta           int64     `gorm:"not null" json:"delta"`
	CreatedAt       time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
}

// TableName returns the table name for the model
func (RateCardDelta) TableName() string {
	return "rate_card_deltas"
}

// RateCardFilter represents filter criteria for rate cards
type RateCardFilter struct {
	ID                  *uint          `json:"id,omitempty"`
	ShowConfigurationID *uint          `json:"show_configuration_id,omitempty"`
	PlacementType       *PlacementType `json:"placement_type,omitempty"`
}
