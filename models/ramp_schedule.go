package models

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// RampEntryStatus represents the status of a ramp schedule entry
type RampEntryStatus string

const (
	RampEntryCompleted RampEntryStatus = "completed"
	RampEntryCurrent   RampEntryStatus = "current"
	RampEntryScheduled RampEntryStatus = "scheduled"
	RampEntryPaused    RampEntryStatus = "paused"
)

// String returns the string representation of the status
func (s RampEntryStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s RampEntryStatus) Valid() bool {
	switch s {
	case RampEntryCompleted, RampEntryCurrent, RampEntryScheduled, RampEntryPaused:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for RampEntryStatus
func (s *RampEntryStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = RampEntryStatus(v)
	case []byte:
		*s = RampEntryStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into RampEntryStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for RampEntryStatus
func (s RampEntryStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid RampEntryStatus: %s", s)
	}
	return string(s), nil
}

// RampScheduleEntry is one calendar day of a sender's ramp horizon
// Table: ramp_schedule_entries
// Unique per (session_id, date); the horizon is regenerated wholesale on
// resume or profile change. Target volumes are non-decreasing day-over-day
// before weekend/holiday damping is applied.
type RampScheduleEntry struct {
	ID uint `gorm:"primaryKey" json:"id"`

	SessionID       uint           `gorm:"not null;uniqueIndex:uk_ramp_entries_session_date;index:idx_ramp_entries_session_id" json:"session_id"`
	Session         *WarmupSession `gorm:"foreignKey:SessionID" json:"session,omitempty"`
	SenderAccountID uint           `gorm:"not null;index:idx_ramp_entries_sender_account_id" json:"sender_account_id"`

	Day          int             `gorm:"not null" json:"day"`
	Date         time.Time       `gorm:"type:date;not null;uniqueIndex:uk_ramp_entries_session_date" json:"date"`
	TargetVolume int             `gorm:"not null" json:"target_volume"`
	Status       RampEntryStatus `gorm:"size:20;not null;default:'scheduled';index:idx_ramp_entries_status" json:"status"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (RampScheduleEntry) TableName() string {
	return "ramp_schedule_entries"
}

// RampScheduleFilter represents filter criteria for ramp schedule queries
type RampScheduleFilter struct {
	SessionID       *uint
	SenderAccountID *uint
	Status          *RampEntryStatus
	DateFrom        *time.Time
	DateTo          *time.Time
}
