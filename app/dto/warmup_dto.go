package dto

import (
	"time"
)

// RegisterSenderRequest represents the request to register a sender mailbox for warmup
type RegisterSenderRequest struct {
	Email      string `json:"email" validate:"required,email,max=320"`
	ESPType    string `json:"esp_type" validate:"required,oneof=gmail outlook yahoo zoho custom"`
	Domain     string `json:"domain" validate:"required,fqdn,max=255"`
	Credential string `json:"credential" validate:"required,min=8,max=512"`
}

// RegisterSenderResponse represents the response to registering a sender mailbox
type RegisterSenderResponse struct {
	Message   string `json:"message"`
	UUID      string `json:"uuid"`
	Email     string `json:"email"`
	CreatedAt string `json:"created_at"`
}

// StartWarmupRequest represents the request to start a warmup session
type StartWarmupRequest struct {
	SenderUUID string  `json:"-"`
	Profile    *string `json:"profile,omitempty" validate:"omitempty,oneof=conservative moderate aggressive"`
}

// StartWarmupResponse represents the response to starting a warmup session
type StartWarmupResponse struct {
	Message       string `json:"message"`
	SessionUUID   string `json:"session_uuid"`
	Status        string `json:"status"`
	Profile       string `json:"profile"`
	StartedAt     string `json:"started_at"`
	AlreadyActive bool   `json:"already_active"`
}

// StopWarmupResponse represents the response to stopping a warmup session
type StopWarmupResponse struct {
	Message        string `json:"message"`
	SessionUUID    string `json:"session_uuid"`
	CancelledTasks int    `json:"cancelled_tasks"`
}

// PauseWarmupRequest represents the request to pause a warmup session
type PauseWarmupRequest struct {
	SenderUUID string `json:"-"`
	Reason     string `json:"reason" validate:"required,max=500"`
}

// PauseWarmupResponse represents the response to pausing a warmup session
type PauseWarmupResponse struct {
	Message        string `json:"message"`
	SessionUUID    string `json:"session_uuid"`
	CancelledTasks int    `json:"cancelled_tasks"`
}

// ResumeWarmupResponse represents the response to resuming a warmup session
type ResumeWarmupResponse struct {
	Message      string `json:"message"`
	SessionUUID  string `json:"session_uuid"`
	ResumedDay   int    `json:"resumed_day"`
	TargetVolume int    `json:"target_volume"`
}

// ReputationScoreDTO carries the derived sender reputation components
type ReputationScoreDTO struct {
	Overall        float64 `json:"overall"`
	Deliverability float64 `json:"deliverability"`
	Engagement     float64 `json:"engagement"`
	SpamScore      float64 `json:"spam_score"`
	BounceRate     float64 `json:"bounce_rate"`
	AtRisk         bool    `json:"at_risk"`
	Trend          string  `json:"trend"`
}

// MetricsWindowDTO carries aggregated counters over the rolling metrics window
type MetricsWindowDTO struct {
	WindowDays     int     `json:"window_days"`
	Sent           int     `json:"sent"`
	Delivered      int     `json:"delivered"`
	Bounced        int     `json:"bounced"`
	Opened         int     `json:"opened"`
	Replied        int     `json:"replied"`
	SpamReports    int     `json:"spam_reports"`
	BounceRate     float64 `json:"bounce_rate"`
	SpamRate       float64 `json:"spam_rate"`
	EngagementRate float64 `json:"engagement_rate"`
}

// ScheduleEntryDTO represents one calendar day of a ramp schedule
type ScheduleEntryDTO struct {
	Day          int       `json:"day"`
	Date         time.Time `json:"date"`
	TargetVolume int       `json:"target_volume"`
	Status       string    `json:"status"`
}

// WarmupStatusResponse represents the full warmup status of a sender
type WarmupStatusResponse struct {
	SenderUUID    string             `json:"sender_uuid"`
	Email         string             `json:"email"`
	ESPType       string             `json:"esp_type"`
	SessionUUID   string             `json:"session_uuid,omitempty"`
	SessionStatus string             `json:"session_status,omitempty"`
	Profile       string             `json:"profile,omitempty"`
	WarmupDay     int                `json:"warmup_day"`
	CurrentVolume int                `json:"current_volume"`
	HealthScore   float64            `json:"health_score"`
	PauseReason   *string            `json:"pause_reason,omitempty"`
	StartedAt     *time.Time         `json:"started_at,omitempty"`
	Reputation    ReputationScoreDTO `json:"reputation"`
	Metrics       MetricsWindowDTO   `json:"metrics"`
	Today         *ScheduleEntryDTO  `json:"today,omitempty"`
}

// GetScheduleResponse represents a session's full ramp schedule
type GetScheduleResponse struct {
	SessionUUID string             `json:"session_uuid"`
	Profile     string             `json:"profile"`
	Entries     []ScheduleEntryDTO `json:"entries"`
}

// ScheduleDailyResponse represents the outcome of one daily scheduling run
type ScheduleDailyResponse struct {
	Message       string `json:"message"`
	SessionUUID   string `json:"session_uuid"`
	TargetVolume  int    `json:"target_volume"`
	PartnersUsed  int    `json:"partners_used"`
	TasksEnqueued int    `json:"tasks_enqueued"`
	Skipped       bool   `json:"skipped"`
}

// RecordOutcomeRequest represents a delivery or engagement outcome reported by a worker
type RecordOutcomeRequest struct {
	SenderUUID string `json:"-"`
	Outcome    string `json:"outcome" validate:"required,oneof=delivered bounced opened replied spam_report spam_placement spam_rescue unsubscribe"`
	Count      int    `json:"count" validate:"omitempty,min=1,max=1000"`
}

// RecordOutcomeResponse represents the response to recording an outcome
type RecordOutcomeResponse struct {
	Message string `json:"message"`
}
