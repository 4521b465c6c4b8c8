package dto

import (
	"time"
)

// OnboardPoolAccountRequest represents the request to onboard a partner mailbox into the pool
type OnboardPoolAccountRequest struct {
	Email             string   `json:"email" validate:"required,email,max=320"`
	ESPType           string   `json:"esp_type" validate:"required,oneof=gmail outlook yahoo zoho custom"`
	Tier              string   `json:"tier" validate:"omitempty,oneof=basic standard premium"`
	Credential        string   `json:"credential" validate:"required,min=8,max=512"`
	DailySendLimit    *int     `json:"daily_send_limit,omitempty" validate:"omitempty,min=1,max=500"`
	DailyReceiveLimit *int     `json:"daily_receive_limit,omitempty" validate:"omitempty,min=1,max=500"`
	Tags              []string `json:"tags,omitempty" validate:"omitempty,max=10,dive,max=50"`
}

// OnboardPoolAccountResponse represents the response to onboarding a pool account
type OnboardPoolAccountResponse struct {
	Message   string `json:"message"`
	UUID      string `json:"uuid"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

// PoolAccountDTO represents a pool partner account in responses
type PoolAccountDTO struct {
	UUID               string     `json:"uuid"`
	Email              string     `json:"email"`
	ESPType            string     `json:"esp_type"`
	Tier               string     `json:"tier"`
	Status             string     `json:"status"`
	HealthScore        float64    `json:"health_score"`
	Tags               []string   `json:"tags,omitempty"`
	DailySentCount     int        `json:"daily_sent_count"`
	DailyReceivedCount int        `json:"daily_received_count"`
	DailySendLimit     int        `json:"daily_send_limit"`
	DailyReceiveLimit  int        `json:"daily_receive_limit"`
	TotalSent          int64      `json:"total_sent"`
	TotalReceived      int64      `json:"total_received"`
	TotalReplied       int64      `json:"total_replied"`
	LastSendAt         *time.Time `json:"last_send_at,omitempty"`
	CooldownUntil      *time.Time `json:"cooldown_until,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}

// ListPoolAccountsRequest represents the request to list pool accounts
type ListPoolAccountsRequest struct {
	Status   *string `json:"status,omitempty" validate:"omitempty,oneof=active warming cooldown suspended retired"`
	ESPType  *string `json:"esp_type,omitempty" validate:"omitempty,oneof=gmail outlook yahoo zoho custom"`
	Page     int     `json:"page" validate:"omitempty,min=1"`
	PageSize int     `json:"page_size" validate:"omitempty,min=1,max=100"`
}

// ListPoolAccountsResponse represents the paginated pool account listing
type ListPoolAccountsResponse struct {
	Message  string           `json:"message"`
	Items    []PoolAccountDTO `json:"items"`
	Total    int64            `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
}

// UpdatePoolHealthRequest represents externally observed partner signal rates.
// Rates are percentages over the reporting period, not fractions.
type UpdatePoolHealthRequest struct {
	UUID       string  `json:"-"`
	BounceRate float64 `json:"bounce_rate" validate:"min=0,max=100"`
	SpamRate   float64 `json:"spam_rate" validate:"min=0,max=100"`
	ReplyRate  float64 `json:"reply_rate" validate:"min=0,max=100"`
}

// UpdatePoolHealthResponse represents the recomputed partner health
type UpdatePoolHealthResponse struct {
	Message     string  `json:"message"`
	UUID        string  `json:"uuid"`
	HealthScore float64 `json:"health_score"`
	Status      string  `json:"status"`
}

// PoolMaintenanceResponse represents the outcome of one pool maintenance pass
type PoolMaintenanceResponse struct {
	Message       string `json:"message"`
	Retired       int    `json:"retired"`
	Reactivated   int    `json:"reactivated"`
	CountersReset int64  `json:"counters_reset"`
}
