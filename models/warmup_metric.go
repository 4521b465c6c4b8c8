package models

import (
	"time"
)

// WarmupMetric is the per-sender per-day engagement and delivery rollup.
// Table: warmup_metrics
// Unique per (sender_account_id, date). Counters are only ever incremented
// atomically at the store layer; the 7-day rolling rates consumed by the
// pause gate are computed from these rows.
type WarmupMetric struct {
	ID uint `gorm:"primaryKey" json:"id"`

	SenderAccountID uint      `gorm:"not null;uniqueIndex:uk_warmup_metrics_sender_date;index:idx_warmup_metrics_sender_account_id" json:"sender_account_id"`
	Date            time.Time `gorm:"type:date;not null;uniqueIndex:uk_warmup_metrics_sender_date" json:"date"`

	Sent           int `gorm:"not null;default:0" json:"sent"`
	Delivered      int `gorm:"not null;default:0" json:"delivered"`
	Bounced        int `gorm:"not null;default:0" json:"bounced"`
	Opened         int `gorm:"not null;default:0" json:"opened"`
	Replied        int `gorm:"not null;default:0" json:"replied"`
	SpamReports    int `gorm:"not null;default:0" json:"spam_reports"`
	SpamPlacements int `gorm:"not null;default:0" json:"spam_placements"`
	SpamRescues    int `gorm:"not null;default:0" json:"spam_rescues"`
	Unsubscribes   int `gorm:"not null;default:0" json:"unsubscribes"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (WarmupMetric) TableName() string {
	return "warmup_metrics"
}

// RollingMetrics is an aggregated view over a window of WarmupMetric rows
type RollingMetrics struct {
	Sent         int `json:"sent"`
	Delivered    int `json:"delivered"`
	Bounced      int `json:"bounced"`
	Opened       int `json:"opened"`
	Replied      int `json:"replied"`
	SpamReports  int `json:"spam_reports"`
	Unsubscribes int `json:"unsubscribes"`
}

// BounceRate returns bounced/sent as a fraction, 0 when nothing was sent
func (m RollingMetrics) BounceRate() float64 {
	if m.Sent == 0 {
		return 0
	}
	return float64(m.Bounced) / float64(m.Sent)
}

// SpamRate returns spam reports/sent as a fraction, 0 when nothing was sent
func (m RollingMetrics) SpamRate() float64 {
	if m.Sent == 0 {
		return 0
	}
	return float64(m.SpamReports) / float64(m.Sent)
}

// EngagementRate returns (opened+replied)/delivered as a fraction,
// 0 when nothing was delivered
func (m RollingMetrics) EngagementRate() float64 {
	if m.Delivered == 0 {
		return 0
	}
	return float64(m.Opened+m.Replied) / float64(m.Delivered)
}

// WarmupMetricFilter represents filter criteria for warmup metric queries
type WarmupMetricFilter struct {
	SenderAccountID *uint
	DateFrom        *time.Time
	DateTo          *time.Time
}
