package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/inboxglow/inboxglow/models"
	"github.com/inboxglow/inboxglow/utils"
	"gorm.io/gorm"
)

// RampScheduleRepositoryImpl implements the RampScheduleRepository interface
type RampScheduleRepositoryImpl struct {
	*BaseRepository[models.RampScheduleEntry, models.RampScheduleFilter]
}

// NewRampScheduleRepository creates a new ramp schedule repository
func NewRampScheduleRepository(db *gorm.DB) RampScheduleRepository {
	return &RampScheduleRepositoryImpl{
		BaseRepository: NewBaseRepository[models.RampScheduleEntry, models.RampScheduleFilter](db),
	}
}

// BySession retrieves all schedule entries of a session in day order
func (r *RampScheduleRepositoryImpl) BySession(ctx context.Context, sessionID uint) ([]*models.RampScheduleEntry, error) {
	filter := models.RampScheduleFilter{SessionID: &sessionID}
	return r.ByFilter(ctx, filter, "day ASC", 0, 0)
}

// EntryForDate retrieves the session's entry for the given UTC calendar date
func (r *RampScheduleRepositoryImpl) EntryForDate(ctx context.Context, sessionID uint, date time.Time) (*models.RampScheduleEntry, error) {
	db := r.getDB(ctx)

	var entry models.RampScheduleEntry
	err := db.Where("session_id = ? AND date = ?", sessionID, utils.UTCDate(date)).
		First(&entry).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}

	return &entry, nil
}

// CurrentEntry retrieves the session's entry marked current, nil when none
func (r *RampScheduleRepositoryImpl) CurrentEntry(ctx context.Context, sessionID uint) (*models.RampScheduleEntry, error) {
	status := models.RampEntryCurrent
	filter := models.RampScheduleFilter{SessionID: &sessionID, Status: &status}

	entries, err := r.ByFilter(ctx, filter, "day DESC", 1, 0)
	if err != nil {
		return nil, err
	}

	if len(entries) == 0 {
		return nil, nil
	}

	return entries[0], nil
}

// MarkStatusIf transitions an entry status only when the current status
// matches. The daily scheduler uses this as its claim on the day: only the
// caller that flips scheduled to current generates tasks.
func (r *RampScheduleRepositoryImpl) MarkStatusIf(ctx context.Context, entryID uint, from, to models.RampEntryStatus) (bool, error) {
	db := r.getDB(ctx)

	result := db.Model(&models.RampScheduleEntry{}).
		Where("id = ? AND status = ?", entryID, from).
		Updates(map[string]any{
			"status":     to,
			"updated_at": utils.UTCNow(),
		})
	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected > 0, nil
}

// MarkRangeStatus transitions all of a session's entries from the given date
// onward that are in the from status. Used to park the remainder of a
// schedule on pause.
func (r *RampScheduleRepositoryImpl) MarkRangeStatus(ctx context.Context, sessionID uint, fromDate time.Time, from, to models.RampEntryStatus) (int64, error) {
	db := r.getDB(ctx)

	result := db.Model(&models.RampScheduleEntry{}).
		Where("session_id = ? AND date >= ? AND status = ?", sessionID, utils.UTCDate(fromDate), from).
		Updates(map[string]any{
			"status":     to,
			"updated_at": utils.UTCNow(),
		})
	if result.Error != nil {
		return 0, result.Error
	}

	return result.RowsAffected, nil
}

// DeleteFromDate removes the session's entries from the given date onward.
// Resume regenerates the remaining horizon, so stale rows must go first.
func (r *RampScheduleRepositoryImpl) DeleteFromDate(ctx context.Context, sessionID uint, fromDate time.Time) (int64, error) {
	db := r.getDB(ctx)

	result := db.Where("session_id = ? AND date >= ?", sessionID, utils.UTCDate(fromDate)).
		Delete(&models.RampScheduleEntry{})
	if result.Error != nil {
		return 0, result.Error
	}

	return result.RowsAffected, nil
}

// ByFilter retrieves ramp schedule entries based on filter criteria
func (r *RampScheduleRepositoryImpl) ByFilter(ctx context.Context, filter models.RampScheduleFilter, orderBy string, limit, offset int) ([]*models.RampScheduleEntry, error) {
	db := r.getDB(ctx)

	var entries []*models.RampScheduleEntry
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

	err := query.Find(&entries).Error
	if err != nil {
		return nil, err
	}

	return entries, nil
}

// Count returns the number of ramp schedule entries matching the filter
func (r *RampScheduleRepositoryImpl) Count(ctx context.Context, filter models.RampScheduleFilter) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	query := r.applyFilter(db.Model(&models.RampScheduleEntry{}), filter)

	err := query.Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count ramp schedule entries: %w", err)
	}

	return count, nil
}

// Exists checks if any ramp schedule entry matching the filter exists
func (r *RampScheduleRepositoryImpl) Exists(ctx context.Context, filter models.RampScheduleFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

// applyFilter applies filter conditions to the GORM query
func (r *RampScheduleRepositoryImpl) applyFilter(db *gorm.DB, filter models.RampScheduleFilter) *gorm.DB {
	if filter.SessionID != nil {
		db = db.Where("session_id = ?", *filter.SessionID)
	}
	if filter.SenderAccountID != nil {
		db = db.Where("sender_account_id = ?", *filter.SenderAccountID)
	}
	if filter.Status != nil {
		db = db.Where("status = ?", *filter.Status)
	}
	if filter.DateFrom != nil {
		db = db.Where("date >= ?", utils.UTCDate(*filter.DateFrom))
	}
	if filter.DateTo != nil {
		db = db.Where("date <= ?", utils.UTCDate(*filter.DateTo))
	}

	return db
}
