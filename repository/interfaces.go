// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"time"

	"github.com/inboxglow/inboxglow/models"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// SenderAccountRepository defines operations for sender accounts under warmup
type SenderAccountRepository interface {
	Repository[models.SenderAccount, models.SenderAccountFilter]
	ByEmail(ctx context.Context, email string) (*models.SenderAccount, error)
	ByUUID(ctx context.Context, uuid string) (*models.SenderAccount, error)
	ListActive(ctx context.Context, limit, offset int) ([]*models.SenderAccount, error)
	Update(ctx context.Context, account *models.SenderAccount) error
	UpdateWarmupState(ctx context.Context, accountID uint, day, volume int, healthScore float64) error
}

// EligiblePartnersQuery narrows the candidate set for partner selection.
// Results are ordered health desc, then oldest last-send first, so load
// spreads across equally healthy partners.
type EligiblePartnersQuery struct {
	ESPType    *models.ESPType // match this ESP when set
	ExcludeESP bool            // invert the ESP match (candidates of *other* ESPs)
	MinHealth  float64
	ExcludeIDs []uint
	Limit      int
}

// PoolAccountRepository defines operations for warmup pool partner accounts
type PoolAccountRepository interface {
	Repository[models.PoolAccount, models.PoolAccountFilter]
	ByUUID(ctx context.Context, uuid string) (*models.PoolAccount, error)
	ByEmail(ctx context.Context, email string) (*models.PoolAccount, error)
	Update(ctx context.Context, account *models.PoolAccount) error
	ListEligible(ctx context.Context, q EligiblePartnersQuery) ([]*models.PoolAccount, error)

	// Atomic usage counters; increments happen at the store layer so
	// concurrent workers never read-modify-write in application memory
	IncrementDailySent(ctx context.Context, accountID uint, at time.Time) error
	IncrementDailyReceived(ctx context.Context, accountID uint, at time.Time) error
	IncrementReplied(ctx context.Context, accountID uint, at time.Time) error

	UpdateHealth(ctx context.Context, accountID uint, score float64, checkedAt time.Time) error

	// SetStatusIf transitions status only when the current status matches;
	// reports whether the row was updated
	SetStatusIf(ctx context.Context, accountID uint, from, to models.PoolAccountStatus, cooldownUntil *time.Time) (bool, error)

	ListSuspendedBefore(ctx context.Context, cutoff time.Time, maxHealth float64) ([]*models.PoolAccount, error)
	ListCooldownElapsed(ctx context.Context, now time.Time) ([]*models.PoolAccount, error)
	ResetDailyCounters(ctx context.Context) (int64, error)
	CountByStatus(ctx context.Context, status models.PoolAccountStatus) (int64, error)
}

// SessionTotalsDelta carries atomic increments for session counters
type SessionTotalsDelta struct {
	Sent      int
	Delivered int
	Bounced   int
	Opened    int
	Replied   int
	Spam      int
}

// WarmupSessionRepository defines operations for warmup sessions
type WarmupSessionRepository interface {
	Repository[models.WarmupSession, models.WarmupSessionFilter]
	ByUUID(ctx context.Context, uuid string) (*models.WarmupSession, error)
	ActiveBySender(ctx context.Context, senderAccountID uint) (*models.WarmupSession, error)
	CurrentBySender(ctx context.Context, senderAccountID uint) (*models.WarmupSession, error)
	ListByStatus(ctx context.Context, status models.WarmupSessionStatus, limit, offset int) ([]*models.WarmupSession, error)
	Update(ctx context.Context, session *models.WarmupSession) error

	// UpdateStatusIf transitions session status only when the current status
	// matches; reports whether the row was updated
	UpdateStatusIf(ctx context.Context, sessionID uint, from, to models.WarmupSessionStatus, pauseReason *string, at time.Time) (bool, error)

	IncrementTotals(ctx context.Context, sessionID uint, delta SessionTotalsDelta) error
	SetTargetVolume(ctx context.Context, sessionID uint, volume int) error
}

// RampScheduleRepository defines operations for ramp schedule entries
type RampScheduleRepository interface {
	Repository[models.RampScheduleEntry, models.RampScheduleFilter]
	BySession(ctx context.Context, sessionID uint) ([]*models.RampScheduleEntry, error)
	EntryForDate(ctx context.Context, sessionID uint, date time.Time) (*models.RampScheduleEntry, error)
	CurrentEntry(ctx context.Context, sessionID uint) (*models.RampScheduleEntry, error)

	// MarkStatusIf moves an entry between statuses only when the current
	// status matches, guarding against duplicate same-day scheduling
	MarkStatusIf(ctx context.Context, entryID uint, from, to models.RampEntryStatus) (bool, error)

	MarkRangeStatus(ctx context.Context, sessionID uint, fromDate time.Time, from, to models.RampEntryStatus) (int64, error)
	DeleteFromDate(ctx context.Context, sessionID uint, fromDate time.Time) (int64, error)
}

// MetricsDelta carries atomic increments for a sender's daily metric row
type MetricsDelta struct {
	Sent           int
	Delivered      int
	Bounced        int
	Opened         int
	Replied        int
	SpamReports    int
	SpamPlacements int
	SpamRescues    int
	Unsubscribes   int
}

// WarmupMetricRepository defines operations for per-day warmup metric rollups
type WarmupMetricRepository interface {
	Repository[models.WarmupMetric, models.WarmupMetricFilter]
	// IncrementCounters upserts the (sender, date) row and applies the delta atomically
	IncrementCounters(ctx context.Context, senderAccountID uint, date time.Time, delta MetricsDelta) error
	RollingWindow(ctx context.Context, senderAccountID uint, from, to time.Time) (models.RollingMetrics, error)
	SeriesBySender(ctx context.Context, senderAccountID uint, from, to time.Time) ([]*models.WarmupMetric, error)
}
