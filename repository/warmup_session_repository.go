package repository

import (
	"context"
	"fmt"

	"time"

	"github.com/inboxglow/inboxglow/models"
	"github.com/inboxglow/inboxglow/utils"
	"gorm.io/gorm"
)

// WarmupSessionRepositoryImpl implements the WarmupSessionRepository interface
type WarmupSessionRepositoryImpl struct {
	*BaseRepository[models.WarmupSession, models.WarmupSessionFilter]
}

// NewWarmupSessionRepository creates a new warmup session repository
func NewWarmupSessionRepository(db *gorm.DB) WarmupSessionRepository {
	return &WarmupSessionRepositoryImpl{
		BaseRepository: NewBaseRepository[models.WarmupSession, models.WarmupSessionFilter](db),
	}
}

// ByUUID retrieves a warmup session by UUID
func (r *WarmupSessionRepositoryImpl) ByUUID(ctx context.Context, uuidStr string) (*models.WarmupSession, error) {
	parsed, err := utils.ParseUUID(uuidStr)
	if err != nil {
		return nil, err
	}

	filter := models.WarmupSessionFilter{UUID: &parsed}
	sessions, err := r.ByFilter(ctx, filter, "", 1, 0)
	if err != nil {
		return nil, err
	}

	if len(sessions) == 0 {
		return nil, nil
	}

	return sessions[0], nil
}

// ActiveBySender retrieves the sender's active session, nil when none exists
func (r *WarmupSessionRepositoryImpl) ActiveBySender(ctx context.Context, senderAccountID uint) (*models.WarmupSession, error) {
	status := models.SessionStatusActive
	filter := models.WarmupSessionFilter{
		SenderAccountID: &senderAccountID,
		Status:          &status,
	}

	sessions, err := r.ByFilter(ctx, filter, "started_at DESC", 1, 0)
	if err != nil {
		return nil, err
	}

	if len(sessions) == 0 {
		return nil, nil
	}

	return sessions[0], nil
}

// CurrentBySender retrieves the sender's most recent session regardless of status
func (r *WarmupSessionRepositoryImpl) CurrentBySender(ctx context.Context, senderAccountID uint) (*models.WarmupSession, error) {
	filter := models.WarmupSessionFilter{SenderAccountID: &senderAccountID}

	sessions, err := r.ByFilter(ctx, filter, "started_at DESC", 1, 0)
	if err != nil {
		return nil, err
	}

	if len(sessions) == 0 {
		return nil, nil
	}

	return sessions[0], nil
}

// ListByStatus retrieves sessions in the given status with pagination
func (r *WarmupSessionRepositoryImpl) ListByStatus(ctx context.Context, status models.WarmupSessionStatus, limit, offset int) ([]*models.WarmupSession, error) {
	filter := models.WarmupSessionFilter{Status: &status}
	return r.ByFilter(ctx, filter, "started_at ASC", limit, offset)
}

// Update updates a warmup session
func (r *WarmupSessionRepositoryImpl) Update(ctx context.Context, session *models.WarmupSession) error {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}

	if shouldCommit {
		defer func() {
			if err != nil {
				db.Rollback()
			} else {
				db.Commit()
			}
		}()
	}

	session.UpdatedAt = utils.UTCNow()

	err = db.Save(session).Error
	if err != nil {
		return err
	}

	return nil
}

// UpdateStatusIf transitions session status only when the current status
// matches the expected one. Concurrent pause and resume calls race on this
// compare-and-set; the loser sees false. Pause metadata is written alongside
// the status and cleared when transitioning away from paused.
func (r *WarmupSessionRepositoryImpl) UpdateStatusIf(ctx context.Context, sessionID uint, from, to models.WarmupSessionStatus, pauseReason *string, at time.Time) (bool, error) {
	db := r.getDB(ctx)

	updates := map[string]any{
		"status":     to,
		"updated_at": utils.UTCNow(),
	}
	switch to {
	case models.SessionStatusPaused:
		updates["pause_reason"] = pauseReason
		updates["paused_at"] = at
	case models.SessionStatusActive:
		updates["pause_reason"] = nil
		updates["paused_at"] = nil
	case models.SessionStatusCompleted, models.SessionStatusFailed:
		updates["completed_at"] = at
	}

	result := db.Model(&models.WarmupSession{}).
		Where("id = ? AND status = ?", sessionID, from).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected > 0, nil
}

// IncrementTotals atomically applies the delta to the session counters
func (r *WarmupSessionRepositoryImpl) IncrementTotals(ctx context.Context, sessionID uint, delta SessionTotalsDelta) error {
	db := r.getDB(ctx)

	updates := map[string]any{"updated_at": utils.UTCNow()}
	if delta.Sent != 0 {
		updates["total_sent"] = gorm.Expr("total_sent + ?", delta.Sent)
	}
	if delta.Delivered != 0 {
		updates["total_delivered"] = gorm.Expr("total_delivered + ?", delta.Delivered)
	}
	if delta.Bounced != 0 {
		updates["total_bounced"] = gorm.Expr("total_bounced + ?", delta.Bounced)
	}
	if delta.Opened != 0 {
		updates["total_opened"] = gorm.Expr("total_opened + ?", delta.Opened)
	}
	if delta.Replied != 0 {
		updates["total_replied"] = gorm.Expr("total_replied + ?", delta.Replied)
	}
	if delta.Spam != 0 {
		updates["total_spam"] = gorm.Expr("total_spam + ?", delta.Spam)
	}

	return db.Model(&models.WarmupSession{}).
		Where("id = ?", sessionID).
		Updates(updates).Error
}

// SetTargetVolume updates the session's current daily target
func (r *WarmupSessionRepositoryImpl) SetTargetVolume(ctx context.Context, sessionID uint, volume int) error {
	db := r.getDB(ctx)
	return db.Model(&models.WarmupSession{}).
		Where("id = ?", sessionID).
		Updates(map[string]any{
			"target_volume": volume,
			"updated_at":    utils.UTCNow(),
		}).Error
}

// ByFilter retrieves warmup sessions based on filter criteria
func (r *WarmupSessionRepositoryImpl) ByFilter(ctx context.Context, filter models.WarmupSessionFilter, orderBy string, limit, offset int) ([]*models.WarmupSession, error) {
	db := r.getDB(ctx)

	var sessions []*models.WarmupSession
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

	query = query.Preload("SenderAccount")

	err := query.Find(&sessions).Error
	if err != nil {
		return nil, err
	}

	return sessions, nil
}

// Count returns the number of warmup sessions matching the filter
func (r *WarmupSessionRepositoryImpl) Count(ctx context.Context, filter models.WarmupSessionFilter) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	query := r.applyFilter(db.Model(&models.WarmupSession{}), filter)

	err := query.Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count warmup sessions: %w", err)
	}

	return count, nil
}

// Exists checks if any warmup session matching the filter exists
func (r *WarmupSessionRepositoryImpl) Exists(ctx context.Context, filter models.WarmupSessionFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

// applyFilter applies filter conditions to the GORM query
func (r *WarmupSessionRepositoryImpl) applyFilter(db *gorm.DB, filter models.WarmupSessionFilter) *gorm.DB {
	if filter.ID != nil {
		db = db.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		db = db.Where("uuid = ?", *filter.UUID)
	}
	if filter.SenderAccountID != nil {
		db = db.Where("sender_account_id = ?", *filter.SenderAccountID)
	}
	if filter.Profile != nil {
		db = db.Where("profile = ?", *filter.Profile)
	}
	if filter.Status != nil {
		db = db.Where("status = ?", *filter.Status)
	}
	if filter.StartedAfter != nil {
		db = db.Where("started_at >= ?", *filter.StartedAfter)
	}
	if filter.StartedBefore != nil {
		db = db.Where("started_at < ?", *filter.StartedBefore)
	}

	return db
}
