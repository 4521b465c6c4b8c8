package utils

import (
	"time"
)

// Token and session time constants
const (
	// AccessTokenTTL is the time-to-live for operator access tokens (24 hours)
	AccessTokenTTL = 24 * time.Hour

	// AccessTokenTTLSeconds is the time-to-live for access tokens in seconds (86400 seconds = 24 hours)
	AccessTokenTTLSeconds = 86400
)

// CORS and security constants
const (
	// CORSMaxAge is the maximum age for CORS preflight requests (24 hours)
	CORSMaxAge = 86400
)

// Warmup pool constants
const (
	// PoolCooldownDuration is how long a pool account stays in cooldown after a health dip
	PoolCooldownDuration = 24 * time.Hour

	// PoolPruneSuspendedAfter is how long a suspended pool account must stay
	// unhealthy before maintenance retires it
	PoolPruneSuspendedAfter = 7 * 24 * time.Hour

	// PoolSuspendHealthThreshold is the partner health score below which an account is suspended
	PoolSuspendHealthThreshold = 30.0

	// PoolCooldownHealthThreshold is the partner health score below which an account enters cooldown
	PoolCooldownHealthThreshold = 50.0

	// DefaultMinPartnerHealth is the default health floor for partner selection
	DefaultMinPartnerHealth = 70.0

	// BroadenedMinPartnerHealth is the relaxed health floor used when the
	// preferred pool cannot fill a selection request
	BroadenedMinPartnerHealth = 50.0
)
