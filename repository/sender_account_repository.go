package repository

import (
	"context"
	"fmt"

	"github.com/inboxglow/inboxglow/models"
	"github.com/inboxglow/inboxglow/utils"
	"gorm.io/gorm"
)

// SenderAccountRepositoryImpl implements the SenderAccountRepository interface
type SenderAccountRepositoryImpl struct {
	*BaseRepository[models.SenderAccount, models.SenderAccountFilter]
}

// NewSenderAccountRepository creates a new sender account repository
func NewSenderAccountRepository(db *gorm.DB) SenderAccountRepository {
	return &SenderAccountRepositoryImpl{
		BaseRepository: NewBaseRepository[models.SenderAccount, models.SenderAccountFilter](db),
	}
}

// ByEmail retrieves a sender account by email
func (r *SenderAccountRepositoryImpl) ByEmail(ctx context.Context, email string) (*models.SenderAccount, error) {
	filter := models.SenderAccountFilter{Email: &email}
	accounts, err := r.ByFilter(ctx, filter, "", 1, 0)
	if err != nil {
		return nil, err
	}

	if len(accounts) == 0 {
		return nil, nil
	}

	return accounts[0], nil
}

// ByUUID retrieves a sender account by UUID
func (r *SenderAccountRepositoryImpl) ByUUID(ctx context.Context, uuidStr string) (*models.SenderAccount, error) {
	parsed, err := utils.ParseUUID(uuidStr)
	if err != nil {
		return nil, err
	}

	filter := models.SenderAccountFilter{UUID: &parsed}
	accounts, err := r.ByFilter(ctx, filter, "", 1, 0)
	if err != nil {
		return nil, err
	}

	if len(accounts) == 0 {
		return nil, nil
	}

	return accounts[0], nil
}

// ListActive retrieves active sender accounts with pagination
func (r *SenderAccountRepositoryImpl) ListActive(ctx context.Context, limit, offset int) ([]*models.SenderAccount, error) {
	active := true
	filter := models.SenderAccountFilter{IsActive: &active}
	return r.ByFilter(ctx, filter, "created_at ASC", limit, offset)
}

// Update updates a sender account
func (r *SenderAccountRepositoryImpl) Update(ctx context.Context, account *models.SenderAccount) error {
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

// UpdateWarmupState updates the mutable warmup fields of a sender account
func (r *SenderAccountRepositoryImpl) UpdateWarmupState(ctx context.Context, accountID uint, day, volume int, healthScore float64) error {
	db := r.getDB(ctx)
	return db.Model(&models.SenderAccount{}).
		Where("id = ?", accountID).
		Updates(map[string]any{
			"warmup_day":     day,
			"current_volume": volume,
			"health_score":   healthScore,
			"updated_at":     utils.UTCNow(),
		}).Error
}

// ByFilter retrieves sender accounts based on filter criteria
func (r *SenderAccountRepositoryImpl) ByFilter(ctx context.Context, filter models.SenderAccountFilter, orderBy string, limit, offset int) ([]*models.SenderAccount, error) {
	db := r.getDB(ctx)

	var accounts []*models.SenderAccount
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

// Count returns the number of sender accounts matching the filter
func (r *SenderAccountRepositoryImpl) Count(ctx context.Context, filter models.SenderAccountFilter) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	query := r.applyFilter(db.Model(&models.SenderAccount{}), filter)

	err := query.Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count sender accounts: %w", err)
	}

	return count, nil
}

// Exists checks if any sender account matching the filter exists
func (r *SenderAccountRepositoryImpl) Exists(ctx context.Context, filter models.SenderAccountFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

// applyFilter applies filter conditions to the GORM query
func (r *SenderAccountRepositoryImpl) applyFilter(db *gorm.DB, filter models.SenderAccountFilter) *gorm.DB {
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
	if filter.Domain != nil {
		db = db.Where("domain = ?", *filter.Domain)
	}
	if filter.IsActive != nil {
		db = db.Where("is_active = ?", *filter.IsActive)
	}
	if filter.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		db = db.Where("created_at < ?", *filter.CreatedBefore)
	}

	return db
}
