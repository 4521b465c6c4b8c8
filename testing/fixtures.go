// Package testing provides test utilities and database setup for testing the warmup service
package testing

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/inboxglow/inboxglow/models"
	"github.com/inboxglow/inboxglow/utils"
)

// TestMasterKey seals fixture credentials. Tests that need to decrypt use
// the same key through their SecurityConfig.
const TestMasterKey = "test-master-key-0123456789abcdef"

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// CreateTestSender creates a sender account on the given ESP with a sealed
// credential attached
func (tf *TestFixtures) CreateTestSender(espType models.ESPType) (*models.SenderAccount, error) {
	randomDigits := fmt.Sprintf("%09d", rand.Intn(900000000)+100000000)

	sealed, err := utils.EncryptCredential(TestMasterKey, "app-password-"+randomDigits)
	if err != nil {
		return nil, fmt.Errorf("failed to seal fixture credential: %w", err)
	}

	sender := &models.SenderAccount{
		UUID:                uuid.New(),
		Email:               fmt.Sprintf("sender.%s@example.com", randomDigits),
		ESPType:             espType,
		Domain:              "example.com",
		EncryptedCredential: &sealed,
		HealthScore:         50,
		IsActive:            utils.ToPtr(true),
	}

	if err := tf.DB.DB.Create(sender).Error; err != nil {
		return nil, fmt.Errorf("failed to create test sender: %w", err)
	}
	return sender, nil
}

// CreateTestPoolAccount creates an active pool partner on the given ESP
func (tf *TestFixtures) CreateTestPoolAccount(espType models.ESPType, healthScore float64) (*models.PoolAccount, error) {
	randomDigits := fmt.Sprintf("%09d", rand.Intn(900000000)+100000000)

	sealed, err := utils.EncryptCredential(TestMasterKey, "pool-password-"+randomDigits)
	if err != nil {
		return nil, fmt.Errorf("failed to seal fixture credential: %w", err)
	}

	account := &models.PoolAccount{
		UUID:                uuid.New(),
		Email:               fmt.Sprintf("pool.%s@example.com", randomDigits),
		ESPType:             espType,
		Tier:                models.PoolTierStandard,
		Status:              models.PoolStatusActive,
		HealthScore:         healthScore,
		EncryptedCredential: &sealed,
		DailySendLimit:      50,
		DailyReceiveLimit:   50,
	}

	if err := tf.DB.DB.Create(account).Error; err != nil {
		return nil, fmt.Errorf("failed to create test pool account: %w", err)
	}
	return account, nil
}

// CreateTestSession creates an active warmup session for the sender
func (tf *TestFixtures) CreateTestSession(senderID uint, profile string) (*models.WarmupSession, error) {
	session := &models.WarmupSession{
		UUID:            uuid.New(),
		SenderAccountID: senderID,
		Profile:         profile,
		Status:          models.SessionStatusActive,
		StartedAt:       utils.UTCNow(),
	}

	if err := tf.DB.DB.Create(session).Error; err != nil {
		return nil, fmt.Errorf("failed to create test session: %w", err)
	}
	return session, nil
}

// CreateTestRampEntry creates one schedule entry for the session
func (tf *TestFixtures) CreateTestRampEntry(session *models.WarmupSession, day int, date time.Time, volume int, status models.RampEntryStatus) (*models.RampScheduleEntry, error) {
	entry := &models.RampScheduleEntry{
		SessionID:       session.ID,
		SenderAccountID: session.SenderAccountID,
		Day:             day,
		Date:            utils.UTCDate(date),
		TargetVolume:    volume,
		Status:          status,
	}

	if err := tf.DB.DB.Create(entry).Error; err != nil {
		return nil, fmt.Errorf("failed to create test ramp entry: %w", err)
	}
	return entry, nil
}

// CreateTestMetric creates one daily metric rollup row for the sender
func (tf *TestFixtures) CreateTestMetric(senderID uint, date time.Time, m models.WarmupMetric) (*models.WarmupMetric, error) {
	m.SenderAccountID = senderID
	m.Date = utils.UTCDate(date)

	if err := tf.DB.DB.Create(&m).Error; err != nil {
		return nil, fmt.Errorf("failed to create test metric: %w", err)
	}
	return &m, nil
}
