// Package models contains domain entities and business models for the warmup system
package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ESPType identifies the provider family hosting a mailbox. Partner selection
// biases pairings toward the same provider family.
type ESPType string

const (
	ESPTypeGmail   ESPType = "gmail"
	ESPTypeOutlook ESPType = "outlook"
	ESPTypeYahoo   ESPType = "yahoo"
	ESPTypeZoho    ESPType = "zoho"
	ESPTypeCustom  ESPType = "custom"
)

// String returns the string representation of the ESP type
func (e ESPType) String() string {
	return string(e)
}

// Valid checks if the ESP type is valid
func (e ESPType) Valid() bool {
	switch e {
	case ESPTypeGmail, ESPTypeOutlook, ESPTypeYahoo, ESPTypeZoho, ESPTypeCustom:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for ESPType
func (e *ESPType) Scan(value any) error {
	if value == nil {
		*e = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*e = ESPType(v)
	case []byte:
		*e = ESPType(string(v))
	default:
		return fmt.Errorf("cannot scan %T into ESPType", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for ESPType
func (e ESPType) Value() (driver.Value, error) {
	if !e.Valid() {
		return nil, fmt.Errorf("invalid ESPType: %s", e)
	}
	return string(e), nil
}

// SenderAccount represents a customer mailbox under warmup
// Table: sender_accounts
// Unique by email; warmup state is mutated only by the warmup flow and
// the ramp controller
type SenderAccount struct {
	ID   uint      `gorm:"primaryKey" json:"id"`
	UUID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_sender_accounts_uuid" json:"uuid"`

	Email   string  `gorm:"size:320;not null;uniqueIndex:uk_sender_accounts_email" json:"email"`
	ESPType ESPType `gorm:"size:20;not null;index:idx_sender_accounts_esp_type" json:"esp_type"`
	Domain  string  `gorm:"size:255;not null;index:idx_sender_accounts_domain" json:"domain"`

	// EncryptedCredential holds the AES-GCM sealed mailbox app-password
	EncryptedCredential *string `gorm:"type:text" json:"-"`

	// Mutable warmup state
	WarmupDay     int     `gorm:"not null;default:0" json:"warmup_day"`
	CurrentVolume int     `gorm:"not null;default:0" json:"current_volume"`
	HealthScore   float64 `gorm:"type:numeric(5,2);not null;default:50" json:"health_score"`

	IsActive  *bool     `gorm:"default:true;index:idx_sender_accounts_is_active" json:"is_active"`
	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (SenderAccount) TableName() string {
	return "sender_accounts"
}

// SenderAccountFilter represents filter criteria for sender account queries
type SenderAccountFilter struct {
	ID            *uint
	UUID          *uuid.UUID
	Email         *string
	ESPType       *ESPType
	Domain        *string
	IsActive      *bool
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}
