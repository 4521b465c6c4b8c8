package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// WarmupSessionStatus represents the status of a warmup session
type WarmupSessionStatus string

const (
	SessionStatusActive    WarmupSessionStatus = "active"
	SessionStatusPaused    WarmupSessionStatus = "paused"
	SessionStatusCompleted WarmupSessionStatus = "completed"
	SessionStatusFailed    WarmupSessionStatus = "failed"
)

// String returns the string representation of the status
func (s WarmupSessionStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s WarmupSessionStatus) Valid() bool {
	switch s {
	case SessionStatusActive, SessionStatusPaused, SessionStatusCompleted, SessionStatusFailed:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for WarmupSessionStatus
func (s *WarmupSessionStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = WarmupSessionStatus(v)
	case []byte:
		*s = WarmupSessionStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into WarmupSessionStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for WarmupSessionStatus
func (s WarmupSessionStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid WarmupSessionStatus: %s", s)
	}
	return string(s), nil
}

// WarmupSession represents one warmup run for a sender account
// Table: warmup_sessions
// A sender never has two active sessions concurrently; the repository
// enforces this with a conditional insert guarded by the active lookup
// and status transitions use compare-and-set updates.
type WarmupSession struct {
	ID   uint      `gorm:"primaryKey" json:"id"`
	UUID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_warmup_sessions_uuid" json:"uuid"`

	SenderAccountID uint           `gorm:"not null;index:idx_warmup_sessions_sender_account_id" json:"sender_account_id"`
	SenderAccount   *SenderAccount `gorm:"foreignKey:SenderAccountID" json:"sender_account,omitempty"`

	Profile string              `gorm:"size:20;not null;default:'moderate'" json:"profile"`
	Status  WarmupSessionStatus `gorm:"size:20;not null;default:'active';index:idx_warmup_sessions_status" json:"status"`

	StartedAt    time.Time  `gorm:"not null" json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	TargetVolume int        `gorm:"not null;default:0" json:"target_volume"`

	// Cumulative exchange totals across the session
	TotalSent      int64 `gorm:"not null;default:0" json:"total_sent"`
	TotalDelivered int64 `gorm:"not null;default:0" json:"total_delivered"`
	TotalBounced   int64 `gorm:"not null;default:0" json:"total_bounced"`
	TotalOpened    int64 `gorm:"not null;default:0" json:"total_opened"`
	TotalReplied   int64 `gorm:"not null;default:0" json:"total_replied"`
	TotalSpam      int64 `gorm:"not null;default:0" json:"total_spam"`

	PauseReason *string    `gorm:"size:500" json:"pause_reason,omitempty"`
	PausedAt    *time.Time `json:"paused_at,omitempty"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (WarmupSession) TableName() string {
	return "warmup_sessions"
}

// ElapsedDay returns the 1-based warmup day number for the given time
func (s *WarmupSession) ElapsedDay(now time.Time) int {
	days := int(now.UTC().Sub(s.StartedAt.UTC()).Hours()/24) + 1
	if days < 1 {
		days = 1
	}
	return days
}

// WarmupSessionFilter represents filter criteria for warmup session queries
type WarmupSessionFilter struct {
	ID              *uint
	UUID            *uuid.UUID
	SenderAccountID *uint
	Profile         *string
	Status          *WarmupSessionStatus
	StartedAfter    *time.Time
	StartedBefore   *time.Time
}
