package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/inboxglow/inboxglow/models"
	"github.com/inboxglow/inboxglow/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// WarmupMetricRepositoryImpl implements the WarmupMetricRepository interface
type WarmupMetricRepositoryImpl struct {
	*BaseRepository[models.WarmupMetric, models.WarmupMetricFilter]
}

// NewWarmupMetricRepository creates a new warmup metric repository
func NewWarmupMetricRepository(db *gorm.DB) WarmupMetricRepository {
	return &WarmupMetricRepositoryImpl{
		BaseRepository: NewBaseRepository[models.WarmupMetric, models.WarmupMetricFilter](db),
	}
}

// IncrementCounters upserts the sender's daily metric row and applies the
// delta atomically. Concurrent workers recording outcomes for the same day
// land on the same row through the (sender, date) conflict target.
func (r *WarmupMetricRepositoryImpl) IncrementCounters(ctx context.Context, senderAccountID uint, date time.Time, delta MetricsDelta) error {
	db := r.getDB(ctx)

	row := models.WarmupMetric{
		SenderAccountID: senderAccountID,
		Date:            utils.UTCDate(date),
		Sent:            delta.Sent,
		Delivered:       delta.Delivered,
		Bounced:         delta.Bounced,
		Opened:          delta.Opened,
		Replied:         delta.Replied,
		SpamReports:     delta.SpamReports,
		SpamPlacements:  delta.SpamPlacements,
		SpamRescues:     delta.SpamRescues,
		Unsubscribes:    delta.Unsubscribes,
	}

	return db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "sender_account_id"}, {Name: "date"}},
		DoUpdates: clause.Assignments(map[string]any{
			"sent":            gorm.Expr("warmup_metrics.sent + ?", delta.Sent),
			"delivered":       gorm.Expr("warmup_metrics.delivered + ?", delta.Delivered),
			"bounced":         gorm.Expr("warmup_metrics.bounced + ?", delta.Bounced),
			"opened":          gorm.Expr("warmup_metrics.opened + ?", delta.Opened),
			"replied":         gorm.Expr("warmup_metrics.replied + ?", delta.Replied),
			"spam_reports":    gorm.Expr("warmup_metrics.spam_reports + ?", delta.SpamReports),
			"spam_placements": gorm.Expr("warmup_metrics.spam_placements + ?", delta.SpamPlacements),
			"spam_rescues":    gorm.Expr("warmup_metrics.spam_rescues + ?", delta.SpamRescues),
			"unsubscribes":    gorm.Expr("warmup_metrics.unsubscribes + ?", delta.Unsubscribes),
			"updated_at":      utils.UTCNow(),
		}),
	}).Create(&row).Error
}

// RollingWindow aggregates the sender's metric rows over [from, to] inclusive
func (r *WarmupMetricRepositoryImpl) RollingWindow(ctx context.Context, senderAccountID uint, from, to time.Time) (models.RollingMetrics, error) {
	db := r.getDB(ctx)

	var agg models.RollingMetrics
	err := db.Model(&models.WarmupMetric{}).
		Select(`COALESCE(SUM(sent), 0) AS sent,
			COALESCE(SUM(delivered), 0) AS delivered,
			COALESCE(SUM(bounced), 0) AS bounced,
			COALESCE(SUM(opened), 0) AS opened,
			COALESCE(SUM(replied), 0) AS replied,
			COALESCE(SUM(spam_reports), 0) AS spam_reports,
			COALESCE(SUM(unsubscribes), 0) AS unsubscribes`).
		Where("sender_account_id = ?", senderAccountID).
		Where("date >= ? AND date <= ?", utils.UTCDate(from), utils.UTCDate(to)).
		Scan(&agg).Error
	if err != nil {
		return models.RollingMetrics{}, fmt.Errorf("failed to aggregate warmup metrics: %w", err)
	}

	return agg, nil
}

// SeriesBySender retrieves the sender's daily metric rows over [from, to] in date order
func (r *WarmupMetricRepositoryImpl) SeriesBySender(ctx context.Context, senderAccountID uint, from, to time.Time) ([]*models.WarmupMetric, error) {
	filter := models.WarmupMetricFilter{
		SenderAccountID: &senderAccountID,
		DateFrom:        &from,
		DateTo:          &to,
	}
	return r.ByFilter(ctx, filter, "date ASC", 0, 0)
}

// ByFilter retrieves warmup metrics based on filter criteria
func (r *WarmupMetricRepositoryImpl) ByFilter(ctx context.Context, filter models.WarmupMetricFilter, orderBy string, limit, offset int) ([]*models.WarmupMetric, error) {
	db := r.getDB(ctx)

	var metrics []*models.WarmupMetric
	query := r.applyFilter(db, filter)

	if orderBy != "" {
		query = query.Order(orderBy)
	}

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	err := query.Find(&metrics).Error
	if err != nil {
		return nil, err
	}

	return metrics, nil
}

// Count returns the number of warmup metric rows matching the filter
func (r *WarmupMetricRepositoryImpl) Count(ctx context.Context, filter models.WarmupMetricFilter) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	query := r.applyFilter(db.Model(&models.WarmupMetric{}), filter)

	err := query.Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count warmup metrics: %w", err)
	}

	return count, nil
}

// Exists checks if any warmup metric row matching the filter exists
func (r *WarmupMetricRepositoryImpl) Exists(ctx context.Context, filter models.WarmupMetricFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

// applyFilter applies filter conditions to the GORM query
func (r *WarmupMetricRepositoryImpl) applyFilter(db *gorm.DB, filter models.WarmupMetricFilter) *gorm.DB {
	if filter.SenderAccountID != nil {
		db = db.Where("sender_account_id = ?", *filter.SenderAccountID)
	}
	if filter.DateFrom != nil {
		db = db.Where("date >= ?", utils.UTCDate(*filter.DateFrom))
	}
	if filter.DateTo != nil {
		db = db.Where("date <= ?", utils.UTCDate(*filter.DateTo))
	}

	return db
}
