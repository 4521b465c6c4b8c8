package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// PoolAccountTier represents the service tier of a pool partner account
type PoolAccountTier string

const (
	PoolTierBasic    PoolAccountTier = "basic"
	PoolTierStandard PoolAccountTier = "standard"
	PoolTierPremium  PoolAccountTier = "premium"
)

// String returns the string representation of the tier
func (t PoolAccountTier) String() string {
	return string(t)
}

// Valid checks if the tier is valid
func (t PoolAccountTier) Valid() bool {
	switch t {
	case PoolTierBasic, PoolTierStandard, PoolTierPremium:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for PoolAccountTier
func (t *PoolAccountTier) Scan(value any) error {
	if value == nil {
		*t = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*t = PoolAccountTier(v)
	case []byte:
		*t = PoolAccountTier(string(v))
	default:
		return fmt.Errorf("cannot scan %T into PoolAccountTier", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for PoolAccountTier
func (t PoolAccountTier) Value() (driver.Value, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid PoolAccountTier: %s", t)
	}
	return string(t), nil
}

// PoolAccountStatus represents the lifecycle status of a pool partner account
type PoolAccountStatus string

const (
	PoolStatusActive    PoolAccountStatus = "active"
	PoolStatusWarming   PoolAccountStatus = "warming"
	PoolStatusCooldown  PoolAccountStatus = "cooldown"
	PoolStatusSuspended PoolAccountStatus = "suspended"
	PoolStatusRetired   PoolAccountStatus = "retired"
)

// String returns the string representation of the status
func (s PoolAccountStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s PoolAccountStatus) Valid() bool {
	switch s {
	case PoolStatusActive, PoolStatusWarming, PoolStatusCooldown,
		PoolStatusSuspended, PoolStatusRetired:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for PoolAccountStatus
func (s *PoolAccountStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = PoolAccountStatus(v)
	case []byte:
		*s = PoolAccountStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into PoolAccountStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for PoolAccountStatus
func (s PoolAccountStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid PoolAccountStatus: %s", s)
	}
	return string(s), nil
}

// PoolAccount represents a managed partner mailbox in the warmup pool
// Table: pool_accounts
// Status transitions are driven only by health updates and scheduled
// maintenance. Retired is terminal; retired accounts are never selected.
// An account in cooldown always carries a future cooldown_until.
type PoolAccount struct {
	ID   uint      `gorm:"primaryKey" json:"id"`
	UUID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_pool_accounts_uuid" json:"uuid"`

	Email   string            `gorm:"size:320;not null;uniqueIndex:uk_pool_accounts_email" json:"email"`
	ESPType ESPType           `gorm:"size:20;not null;index:idx_pool_accounts_esp_type" json:"esp_type"`
	Tier    PoolAccountTier   `gorm:"size:20;not null;default:'standard'" json:"tier"`
	Status  PoolAccountStatus `gorm:"size:20;not null;default:'warming';index:idx_pool_accounts_status" json:"status"`

	HealthScore float64 `gorm:"type:numeric(5,2);not null;default:50;index:idx_pool_accounts_health_score" json:"health_score"`

	// Tags are free-form operator labels for grouping and reporting
	Tags pq.StringArray `gorm:"type:text[]" json:"tags,omitempty"`

	// EncryptedCredential holds the AES-GCM sealed mailbox app-password
	EncryptedCredential *string `gorm:"type:text" json:"-"`

	// Daily counters, reset once per UTC day by maintenance
	DailySentCount     int `gorm:"not null;default:0" json:"daily_sent_count"`
	DailyReceivedCount int `gorm:"not null;default:0" json:"daily_received_count"`
	DailySendLimit     int `gorm:"not null;default:50" json:"daily_send_limit"`
	DailyReceiveLimit  int `gorm:"not null;default:50" json:"daily_receive_limit"`

	// Lifetime totals
	TotalSent     int64 `gorm:"not null;default:0" json:"total_sent"`
	TotalReceived int64 `gorm:"not null;default:0" json:"total_received"`
	TotalReplied  int64 `gorm:"not null;default:0" json:"total_replied"`

	LastSendAt        *time.Time `gorm:"index:idx_pool_accounts_last_send_at" json:"last_send_at,omitempty"`
	LastReceiveAt     *time.Time `json:"last_receive_at,omitempty"`
	LastReplyAt       *time.Time `json:"last_reply_at,omitempty"`
	LastHealthCheckAt *time.Time `json:"last_health_check_at,omitempty"`
	CooldownUntil     *time.Time `json:"cooldown_until,omitempty"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (PoolAccount) TableName() string {
	return "pool_accounts"
}

// CanSend reports whether the account may take another outbound exchange today
func (p *PoolAccount) CanSend() bool {
	return p.Status == PoolStatusActive && p.DailySentCount < p.DailySendLimit
}

// CanReceive reports whether the account may take another inbound exchange today
func (p *PoolAccount) CanReceive() bool {
	return p.Status == PoolStatusActive && p.DailyReceivedCount < p.DailyReceiveLimit
}

// CooldownElapsed reports whether a cooldown account is due for reactivation
func (p *PoolAccount) CooldownElapsed(now time.Time) bool {
	return p.Status == PoolStatusCooldown && p.CooldownUntil != nil && !p.CooldownUntil.After(now)
}

// PoolAccountFilter represents filter criteria for pool account queries
type PoolAccountFilter struct {
	ID            *uint
	UUID          *uuid.UUID
	Email         *string
	ESPType       *ESPType
	Tier          *PoolAccountTier
	Status        *PoolAccountStatus
	MinHealth     *float64
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}
