package utils

import (
	"time"
)

// Inventory and scheduling time constants
const (
	// ReservationTTL is the default lifetime of an inventory hold (24 hours).
	// Expired reservations stop counting as consumed capacity.
	ReservationTTL = 24 * time.Hour

	// IdempotencyTTL is the replay window for bulk schedule commits.
	// A commit replayed with the same key inside this window returns the
	// cached result without re-executing.
	IdempotencyTTL = 24 * time.Hour

	// DefaultRelaxedWindowDays is the date-widening window used by the
	// relaxed fallback strategy when no configuration overrides it.
	DefaultRelaxedWindowDays = 3

	// AvailabilityCacheTTL bounds staleness of cached availability reads.
	// Preview is advisory; commit re-checks under lock regardless.
	AvailabilityCacheTTL = 30 * time.Second
)

// CORS and security constants
const (
	// CORSMaxAge is the maximum age for CORS preflight requests (24 hours)
	CORSMaxAge = 86400
)

// ContextKey is the type used for request-scoped context values.
type ContextKey string

// Request-scoped context keys for observability
const (
	RequestIDKey  ContextKey = "request_id"
	UserAgentKey  ContextKey = "user_agent"
	IPAddressKey  ContextKey = "ip_address"
	EndpointKey   ContextKey = "endpoint"
	CancelFuncKey ContextKey = "cancel_func"
)

// TenantSchemaPrefix prefixes every organization schema name.
const TenantSchemaPrefix = "org_"
