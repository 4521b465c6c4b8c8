package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/inboxglow/inboxglow/models"
	"github.com/inboxglow/inboxglow/utils"
	"gorm.io/gorm"
)

// PoolAccountRepositoryImpl implements the PoolAccountRepository interface
type PoolAccountRepositoryImpl struct {
	*BaseRepository[models.PoolAccount, models.PoolAccountFilter]
}

// NewPoolAccountRepository creates a new pool account repository
func NewPoolAccountRepository(db *gorm.DB) PoolAccountRepository {
	return &PoolAccountRepositoryImpl{
		BaseRepository: NewBaseRepository[models.PoolAccount, models.PoolAccountFilter](db),
	}
}

// ByUUID retrieves a pool account by UUID
func (r *PoolAccountRepositoryImpl) ByUUID(ctx context.Context, uuidStr string) (*models.PoolAccount, error) {
	parsed, err := utils.ParseUUID(uuidStr)
	if err != nil {
		return nil, err
	}

	filter := models.PoolAccountFilter{UUID: &parsed}
	accounts, err := r.ByFilter(ctx, filter, "", 1, 0)
	if err != nil {
		return nil, err
	}

	if len(accounts) == 0 {
		return nil, nil
	}

	return accounts[0], nil
}

// ByEmail retrieves a pool account by email
func (r *PoolAccountRepositoryImpl) ByEmail(ctx context.Context, email string) (*models.PoolAccount, error) {
	filter := models.PoolAccountFilter{Email: &email}
	accounts, err := r.ByFilter(ctx, filter, "", 1, 0)
	if err != nil {
		return nil, err
	}

	if len(accounts) == 0 {
		return nil, nil
	}

	return accounts[0], nil
}

// Update updates a pool account
func (r *PoolAccountRepositoryImpl) Update(ctx context.Context, account *models.PoolAccount) error {
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

	account.UpdatedAt = utils.UTCNow()

	err = db.Save(account).Error
	if err != nil {
		return err
	}

	return nil
}

// ListEligible retrieves selectable partner accounts. Only active accounts
// with spare daily send capacity qualify. Ordering puts the healthiest
// first and breaks ties by the longest-idle account so load spreads.
func (r *PoolAccountRepositoryImpl) ListEligible(ctx context.Context, q EligiblePartnersQuery) ([]*models.PoolAccount, error) {
	db := r.getDB(ctx)

	query := db.Model(&models.PoolAccount{}).
		Where("status = ?", models.PoolStatusActive).
		Where("daily_sent_count < daily_send_limit").
		Where("health_score >= ?", q.MinHealth)

	if q.ESPType != nil {
		if q.ExcludeESP {
			query = query.Where("esp_type <> ?", *q.ESPType)
		} else {
			query = query.Where("esp_type = ?", *q.ESPType)
		}
	}
	if len(q.ExcludeIDs) > 0 {
		query = query.Where("id NOT IN ?", q.ExcludeIDs)
	}

	query = query.Order("health_score DESC").
		Order("last_send_at ASC NULLS FIRST")

	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}

	var accounts []*models.PoolAccount
	if err := query.Find(&accounts).Error; err != nil {
		return nil, fmt.Errorf("failed to list eligible pool accounts: %w", err)
	}

	return accounts, nil
}

// IncrementDailySent atomically bumps the daily and lifetime send counters
func (r *PoolAccountRepositoryImpl) IncrementDailySent(ctx context.Context, accountID uint, at time.Time) error {
	db := r.getDB(ctx)
	return db.Model(&models.PoolAccount{}).
		Where("id = ?", accountID).
		Updates(map[string]any{
			"daily_sent_count": gorm.Expr("daily_sent_count + 1"),
			"total_sent":       gorm.Expr("total_sent + 1"),
			"last_send_at":     at,
			"updated_at":       utils.UTCNow(),
		}).Error
}

// IncrementDailyReceived atomically bumps the daily and lifetime receive counters
func (r *PoolAccountRepositoryImpl) IncrementDailyReceived(ctx context.Context, accountID uint, at time.Time) error {
	db := r.getDB(ctx)
	return db.Model(&models.PoolAccount{}).
		Where("id = ?", accountID).
		Updates(map[string]any{
			"daily_received_count": gorm.Expr("daily_received_count + 1"),
			"total_received":       gorm.Expr("total_received + 1"),
			"last_receive_at":      at,
			"updated_at":           utils.UTCNow(),
		}).Error
}

// IncrementReplied atomically bumps the lifetime reply counter
func (r *PoolAccountRepositoryImpl) IncrementReplied(ctx context.Context, accountID uint, at time.Time) error {
	db := r.getDB(ctx)
	return db.Model(&models.PoolAccount{}).
		Where("id = ?", accountID).
		Updates(map[string]any{
			"total_replied": gorm.Expr("total_replied + 1"),
			"last_reply_at": at,
			"updated_at":    utils.UTCNow(),
		}).Error
}

// UpdateHealth updates the health score and check timestamp
func (r *PoolAccountRepositoryImpl) UpdateHealth(ctx context.Context, accountID uint, score float64, checkedAt time.Time) error {
	db := r.getDB(ctx)
	return db.Model(&models.PoolAccount{}).
		Where("id = ?", accountID).
		Updates(map[string]any{
			"health_score":         score,
			"last_health_check_at": checkedAt,
			"updated_at":           utils.UTCNow(),
		}).Error
}

// SetStatusIf transitions the account status only when the current status
// matches the expected one. Returns false when another writer got there first.
func (r *PoolAccountRepositoryImpl) SetStatusIf(ctx context.Context, accountID uint, from, to models.PoolAccountStatus, cooldownUntil *time.Time) (bool, error) {
	db := r.getDB(ctx)

	updates := map[string]any{
		"status":         to,
		"cooldown_until": cooldownUntil,
		"updated_at":     utils.UTCNow(),
	}

	result := db.Model(&models.PoolAccount{}).
		Where("id = ? AND status = ?", accountID, from).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected > 0, nil
}

// ListSuspendedBefore retrieves suspended accounts whose last status change
// predates the cutoff and whose health never recovered past maxHealth
func (r *PoolAccountRepositoryImpl) ListSuspendedBefore(ctx context.Context, cutoff time.Time, maxHealth float64) ([]*models.PoolAccount, error) {
	db := r.getDB(ctx)

	var accounts []*models.PoolAccount
	err := db.Model(&models.PoolAccount{}).
		Where("status = ?", models.PoolStatusSuspended).
		Where("updated_at < ?", cutoff).
		Where("health_score < ?", maxHealth).
		Find(&accounts).Error
	if err != nil {
		return nil, err
	}

	return accounts, nil
}

// ListCooldownElapsed retrieves cooldown accounts whose cooldown window has passed
func (r *PoolAccountRepositoryImpl) ListCooldownElapsed(ctx context.Context, now time.Time) ([]*models.PoolAccount, error) {
	db := r.getDB(ctx)

	var accounts []*models.PoolAccount
	err := db.Model(&models.PoolAccount{}).
		Where("status = ?", models.PoolStatusCooldown).
		Where("cooldown_until IS NOT NULL AND cooldown_until <= ?", now).
		Find(&accounts).Error
	if err != nil {
		return nil, err
	}

	return accounts, nil
}

// ResetDailyCounters zeroes daily counters on all non-retired accounts.
// Runs once per UTC day from the maintenance scheduler.
func (r *PoolAccountRepositoryImpl) ResetDailyCounters(ctx context.Context) (int64, error) {
	db := r.getDB(ctx)

	result := db.Model(&models.PoolAccount{}).
		Where("status <> ?", models.PoolStatusRetired).
		Updates(map[string]any{
			"daily_sent_count":     0,
			"daily_received_count": 0,
			"updated_at":           utils.UTCNow(),
		})
	if result.Error != nil {
		return 0, result.Error
	}

	return result.RowsAffected, nil
}

// CountByStatus counts pool accounts in the given status
func (r *PoolAccountRepositoryImpl) CountByStatus(ctx context.Context, status models.PoolAccountStatus) (int64, error) {
	filter := models.PoolAccountFilter{Status: &status}
	return r.Count(ctx, filter)
}

// ByFilter retrieves pool accounts based on filter criteria
func (r *PoolAccountRepositoryImpl) ByFilter(ctx context.Context, filter models.PoolAccountFilter, orderBy string, limit, offset int) ([]*models.PoolAccount, error) {
	db := r.getDB(ctx)

	var accounts []*models.PoolAccount
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

	err := query.Find(&accounts).Error
	if err != nil {
		return nil, err
	}

	return accounts, nil
}

// Count returns the number of pool accounts matching the filter
func (r *PoolAccountRepositoryImpl) Count(ctx context.Context, filter models.PoolAccountFilter) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	query := r.applyFilter(db.Model(&models.PoolAccount{}), filter)

	err := query.Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count pool accounts: %w", err)
	}

	return count, nil
}

// Exists checks if any pool account matching the filter exists
func (r *PoolAccountRepositoryImpl) Exists(ctx context.Context, filter models.PoolAccountFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

// applyFilter applies filter conditions to the GORM query
func (r *PoolAccountRepositoryImpl) applyFilter(db *gorm.DB, filter models.PoolAccountFilter) *gorm.DB {
	if filter.ID != nil {
		db = db.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		db = db.Where("uuid = ?", *filter.UUID)
	}
	if filter.Email != nil {
		db = db.Where("email = ?", *filter.Email)
	}
	if filter.ESPType != nil {
		db = db.Where("esp_type = ?", *filter.ESPType)
	}
	if filter.Tier != nil {
		db = db.Where("tier = ?", *filter.Tier)
	}
	if filter.Status != nil {
		db = db.Where("status = ?", *filter.Status)
	}
	if filter.MinHealth != nil {
		db = db.Where("health_score >= ?", *filter.MinHealth)
	}
	if filter.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		db = db.Where("created_at < ?", *filter.CreatedBefore)
	}

	return db
}
