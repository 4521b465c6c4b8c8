package businessflow

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/inboxglow/inboxglow/app/dto"
	"github.com/inboxglow/inboxglow/app/services"
	"github.com/inboxglow/inboxglow/config"
	"github.com/inboxglow/inboxglow/models"
	"github.com/inboxglow/inboxglow/queue"
	"github.com/inboxglow/inboxglow/repository"
	"github.com/inboxglow/inboxglow/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSenderRepo struct {
	accounts []*models.SenderAccount
	nextID   uint
}

func newFakeSenderRepo() *fakeSenderRepo { return &fakeSenderRepo{nextID: 1} }

func (r *fakeSenderRepo) add(esp models.ESPType) *models.SenderAccount {
	a := &models.SenderAccount{
		ID:          r.nextID,
		UUID:        uuid.New(),
		Email:       uuid.New().String() + "@example.com",
		ESPType:     esp,
		Domain:      "example.com",
		HealthScore: 50,
		IsActive:    utils.ToPtr(true),
	}
	r.nextID++
	r.accounts = append(r.accounts, a)
	return a
}

func (r *fakeSenderRepo) ByID(_ context.Context, id uint) (*models.SenderAccount, error) {
	for _, a := range r.accounts {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, nil
}

func (r *fakeSenderRepo) ByUUID(_ context.Context, uuidStr string) (*models.SenderAccount, error) {
	for _, a := range r.accounts {
		if a.UUID.String() == uuidStr {
			return a, nil
		}
	}
	return nil, nil
}

func (r *fakeSenderRepo) ByEmail(_ context.Context, email string) (*models.SenderAccount, error) {
	for _, a := range r.accounts {
		if a.Email == email {
			return a, nil
		}
	}
	return nil, nil
}

func (r *fakeSenderRepo) ByFilter(_ context.Context, _ models.SenderAccountFilter, _ string, _, _ int) ([]*models.SenderAccount, error) {
	return r.accounts, nil
}

func (r *fakeSenderRepo) Save(_ context.Context, a *models.SenderAccount) error {
	a.ID = r.nextID
	r.nextID++
	r.accounts = append(r.accounts, a)
	return nil
}

func (r *fakeSenderRepo) SaveBatch(ctx context.Context, accounts []*models.SenderAccount) error {
	for _, a := range accounts {
		if err := r.Save(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeSenderRepo) Count(_ context.Context, _ models.SenderAccountFilter) (int64, error) {
	return int64(len(r.accounts)), nil
}

func (r *fakeSenderRepo) Exists(_ context.Context, _ models.SenderAccountFilter) (bool, error) {
	return len(r.accounts) > 0, nil
}

func (r *fakeSenderRepo) ListActive(_ context.Context, _, _ int) ([]*models.SenderAccount, error) {
	var out []*models.SenderAccount
	for _, a := range r.accounts {
		if utils.IsTrue(a.IsActive) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *fakeSenderRepo) Update(_ context.Context, a *models.SenderAccount) error {
	for i, existing := range r.accounts {
		if existing.ID == a.ID {
			r.accounts[i] = a
			return nil
		}
	}
	return nil
}

func (r *fakeSenderRepo) UpdateWarmupState(ctx context.Context, accountID uint, day, volume int, healthScore float64) error {
	a, _ := r.ByID(ctx, accountID)
	if a != nil {
		a.WarmupDay = day
		a.CurrentVolume = volume
		a.HealthScore = healthScore
	}
	return nil
}

type fakeSessionRepo struct {
	sessions []*models.WarmupSession
	nextID   uint
}

func newFakeSessionRepo() *fakeSessionRepo { return &fakeSessionRepo{nextID: 1} }

func (r *fakeSessionRepo) add(senderID uint, profile string, status models.WarmupSessionStatus, startedAt time.Time) *models.WarmupSession {
	s := &models.WarmupSession{
		ID:              r.nextID,
		UUID:            uuid.New(),
		SenderAccountID: senderID,
		Profile:         profile,
		Status:          status,
		StartedAt:       startedAt,
	}
	r.nextID++
	r.sessions = append(r.sessions, s)
	return s
}

func (r *fakeSessionRepo) ByID(_ context.Context, id uint) (*models.WarmupSession, error) {
	for _, s := range r.sessions {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, nil
}

func (r *fakeSessionRepo) ByUUID(_ context.Context, uuidStr string) (*models.WarmupSession, error) {
	for _, s := range r.sessions {
		if s.UUID.String() == uuidStr {
			return s, nil
		}
	}
	return nil, nil
}

func (r *fakeSessionRepo) ByFilter(_ context.Context, _ models.WarmupSessionFilter, _ string, _, _ int) ([]*models.WarmupSession, error) {
	return r.sessions, nil
}

func (r *fakeSessionRepo) Save(_ context.Context, s *models.WarmupSession) error {
	s.ID = r.nextID
	r.nextID++
	r.sessions = append(r.sessions, s)
	return nil
}

func (r *fakeSessionRepo) SaveBatch(ctx context.Context, sessions []*models.WarmupSession) error {
	for _, s := range sessions {
		if err := r.Save(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeSessionRepo) Count(_ context.Context, _ models.WarmupSessionFilter) (int64, error) {
	return int64(len(r.sessions)), nil
}

func (r *fakeSessionRepo) Exists(_ context.Context, _ models.WarmupSessionFilter) (bool, error) {
	return len(r.sessions) > 0, nil
}

func (r *fakeSessionRepo) ActiveBySender(_ context.Context, senderID uint) (*models.WarmupSession, error) {
	for _, s := range r.sessions {
		if s.SenderAccountID == senderID && s.Status == models.SessionStatusActive {
			return s, nil
		}
	}
	return nil, nil
}

func (r *fakeSessionRepo) CurrentBySender(_ context.Context, senderID uint) (*models.WarmupSession, error) {
	var latest *models.WarmupSession
	for _, s := range r.sessions {
		if s.SenderAccountID == senderID {
			latest = s
		}
	}
	return latest, nil
}

func (r *fakeSessionRepo) ListByStatus(_ context.Context, status models.WarmupSessionStatus, _, _ int) ([]*models.WarmupSession, error) {
	var out []*models.WarmupSession
	for _, s := range r.sessions {
		if s.Status == status {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *fakeSessionRepo) Update(_ context.Context, s *models.WarmupSession) error {
	for i, existing := range r.sessions {
		if existing.ID == s.ID {
			r.sessions[i] = s
			return nil
		}
	}
	return nil
}

func (r *fakeSessionRepo) UpdateStatusIf(ctx context.Context, sessionID uint, from, to models.WarmupSessionStatus, pauseReason *string, at time.Time) (bool, error) {
	s, _ := r.ByID(ctx, sessionID)
	if s == nil || s.Status != from {
		return false, nil
	}
	s.Status = to
	s.PauseReason = pauseReason
	switch to {
	case models.SessionStatusPaused:
		s.PausedAt = &at
	case models.SessionStatusCompleted:
		s.CompletedAt = &at
	}
	return true, nil
}

func (r *fakeSessionRepo) IncrementTotals(ctx context.Context, sessionID uint, delta repository.SessionTotalsDelta) error {
	s, _ := r.ByID(ctx, sessionID)
	if s != nil {
		s.TotalSent += int64(delta.Sent)
		s.TotalDelivered += int64(delta.Delivered)
		s.TotalBounced += int64(delta.Bounced)
		s.TotalOpened += int64(delta.Opened)
		s.TotalReplied += int64(delta.Replied)
		s.TotalSpam += int64(delta.Spam)
	}
	return nil
}

func (r *fakeSessionRepo) SetTargetVolume(ctx context.Context, sessionID uint, volume int) error {
	s, _ := r.ByID(ctx, sessionID)
	if s != nil {
		s.TargetVolume = volume
	}
	return nil
}

type fakeRampRepo struct {
	entries []*models.RampScheduleEntry
	nextID  uint
}

func newFakeRampRepo() *fakeRampRepo { return &fakeRampRepo{nextID: 1} }

func (r *fakeRampRepo) add(sessionID, senderID uint, day int, date time.Time, volume int, status models.RampEntryStatus) *models.RampScheduleEntry {
	e := &models.RampScheduleEntry{
		ID:              r.nextID,
		SessionID:       sessionID,
		SenderAccountID: senderID,
		Day:             day,
		Date:            utils.UTCDate(date),
		TargetVolume:    volume,
		Status:          status,
	}
	r.nextID++
	r.entries = append(r.entries, e)
	return e
}

func (r *fakeRampRepo) ByID(_ context.Context, id uint) (*models.RampScheduleEntry, error) {
	for _, e := range r.entries {
		if e.ID == id {
			return e, nil
		}
	}
	return nil, nil
}

func (r *fakeRampRepo) ByFilter(_ context.Context, _ models.RampScheduleFilter, _ string, _, _ int) ([]*models.RampScheduleEntry, error) {
	return r.entries, nil
}

func (r *fakeRampRepo) Save(_ context.Context, e *models.RampScheduleEntry) error {
	e.ID = r.nextID
	r.nextID++
	r.entries = append(r.entries, e)
	return nil
}

func (r *fakeRampRepo) SaveBatch(ctx context.Context, entries []*models.RampScheduleEntry) error {
	for _, e := range entries {
		if err := r.Save(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeRampRepo) Count(_ context.Context, _ models.RampScheduleFilter) (int64, error) {
	return int64(len(r.entries)), nil
}

func (r *fakeRampRepo) Exists(_ context.Context, _ models.RampScheduleFilter) (bool, error) {
	return len(r.entries) > 0, nil
}

func (r *fakeRampRepo) BySession(_ context.Context, sessionID uint) ([]*models.RampScheduleEntry, error) {
	var out []*models.RampScheduleEntry
	for _, e := range r.entries {
		if e.SessionID == sessionID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *fakeRampRepo) EntryForDate(_ context.Context, sessionID uint, date time.Time) (*models.RampScheduleEntry, error) {
	day := utils.UTCDate(date)
	for _, e := range r.entries {
		if e.SessionID == sessionID && e.Date.Equal(day) {
			return e, nil
		}
	}
	return nil, nil
}

func (r *fakeRampRepo) CurrentEntry(_ context.Context, sessionID uint) (*models.RampScheduleEntry, error) {
	for _, e := range r.entries {
		if e.SessionID == sessionID && e.Status == models.RampEntryCurrent {
			return e, nil
		}
	}
	return nil, nil
}

func (r *fakeRampRepo) MarkStatusIf(ctx context.Context, entryID uint, from, to models.RampEntryStatus) (bool, error) {
	e, _ := r.ByID(ctx, entryID)
	if e == nil || e.Status != from {
		return false, nil
	}
	e.Status = to
	return true, nil
}

func (r *fakeRampRepo) MarkRangeStatus(_ context.Context, sessionID uint, fromDate time.Time, from, to models.RampEntryStatus) (int64, error) {
	cutoff := utils.UTCDate(fromDate)
	var n int64
	for _, e := range r.entries {
		if e.SessionID == sessionID && !e.Date.Before(cutoff) && e.Status == from {
			e.Status = to
			n++
		}
	}
	return n, nil
}

func (r *fakeRampRepo) DeleteFromDate(_ context.Context, sessionID uint, fromDate time.Time) (int64, error) {
	cutoff := utils.UTCDate(fromDate)
	kept := r.entries[:0]
	var n int64
	for _, e := range r.entries {
		if e.SessionID == sessionID && !e.Date.Before(cutoff) {
			n++
			continue
		}
		kept = append(kept, e)
	}
	r.entries = kept
	return n, nil
}

type fakeMetricRepo struct {
	window models.RollingMetrics
	series []*models.WarmupMetric
	deltas []repository.MetricsDelta
}

func (r *fakeMetricRepo) ByID(_ context.Context, _ uint) (*models.WarmupMetric, error) {
	return nil, nil
}

func (r *fakeMetricRepo) ByFilter(_ context.Context, _ models.WarmupMetricFilter, _ string, _, _ int) ([]*models.WarmupMetric, error) {
	return r.series, nil
}

func (r *fakeMetricRepo) Save(_ context.Context, _ *models.WarmupMetric) error { return nil }

func (r *fakeMetricRepo) SaveBatch(_ context.Context, _ []*models.WarmupMetric) error { return nil }

func (r *fakeMetricRepo) Count(_ context.Context, _ models.WarmupMetricFilter) (int64, error) {
	return int64(len(r.series)), nil
}

func (r *fakeMetricRepo) Exists(_ context.Context, _ models.WarmupMetricFilter) (bool, error) {
	return len(r.series) > 0, nil
}

func (r *fakeMetricRepo) IncrementCounters(_ context.Context, _ uint, _ time.Time, delta repository.MetricsDelta) error {
	r.deltas = append(r.deltas, delta)
	return nil
}

func (r *fakeMetricRepo) RollingWindow(_ context.Context, _ uint, _, _ time.Time) (models.RollingMetrics, error) {
	return r.window, nil
}

func (r *fakeMetricRepo) SeriesBySender(_ context.Context, _ uint, _, _ time.Time) ([]*models.WarmupMetric, error) {
	return r.series, nil
}

// warmupFixture bundles the flow under test with its fakes
type warmupFixture struct {
	flow    WarmupFlow
	senders *fakeSenderRepo
	sess    *fakeSessionRepo
	ramp    *fakeRampRepo
	metrics *fakeMetricRepo
	pool    *fakePoolRepo
	tasks   *queue.MemoryQueue
	mail    *services.MockMailSender
	engage  *services.MockEngagementSimulator
	rep     *services.MockReputationProvider
}

func newWarmupFixture() *warmupFixture {
	f := &warmupFixture{
		senders: newFakeSenderRepo(),
		sess:    newFakeSessionRepo(),
		ramp:    newFakeRampRepo(),
		metrics: &fakeMetricRepo{},
		pool:    newFakePoolRepo(),
		tasks:   queue.NewMemoryQueue(),
		mail:    services.NewMockMailSender(),
		engage:  services.NewMockEngagementSimulator(),
		rep:     services.NewMockReputationProvider(),
	}

	cfg := testWarmupConfig()
	f.flow = NewWarmupFlow(
		f.senders, f.sess, f.ramp, f.metrics, f.pool,
		NewPoolFlow(f.pool, testPoolConfig(), testSecurityConfig(), nil),
		NewRampFlow(cfg, 1),
		f.tasks,
		f.mail,
		services.NewTemplateContentGenerator(1),
		f.engage,
		f.rep,
		cfg,
		testSecurityConfig(),
		&config.CacheConfig{},
		nil,
		nil,
	)
	return f
}

func (f *warmupFixture) pendingTotal(t *testing.T) int64 {
	t.Helper()
	var total int64
	for _, typ := range queue.AllTaskTypes() {
		n, err := f.tasks.Pending(context.Background(), typ)
		require.NoError(t, err)
		total += n
	}
	return total
}

func TestRegisterSender(t *testing.T) {
	ctx := context.Background()

	t.Run("successful registration encrypts the credential", func(t *testing.T) {
		f := newWarmupFixture()
		resp, err := f.flow.RegisterSender(ctx, &dto.RegisterSenderRequest{
			Email:      "sender@example.com",
			ESPType:    "gmail",
			Domain:     "example.com",
			Credential: "app-password-1",
		}, nil)
		require.NoError(t, err)
		assert.NotEmpty(t, resp.UUID)

		saved, err := f.senders.ByEmail(ctx, "sender@example.com")
		require.NoError(t, err)
		require.NotNil(t, saved)
		require.NotNil(t, saved.EncryptedCredential)
		assert.NotEqual(t, "app-password-1", *saved.EncryptedCredential)
		assert.True(t, utils.IsTrue(saved.IsActive))
		assert.Equal(t, 50.0, saved.HealthScore)
	})

	t.Run("invalid esp type", func(t *testing.T) {
		f := newWarmupFixture()
		_, err := f.flow.RegisterSender(ctx, &dto.RegisterSenderRequest{
			Email:      "sender@example.com",
			ESPType:    "fax",
			Domain:     "example.com",
			Credential: "app-password-1",
		}, nil)
		assert.ErrorIs(t, err, ErrInvalidESPType)
	})

	t.Run("duplicate email rejected", func(t *testing.T) {
		f := newWarmupFixture()
		existing := f.senders.add(models.ESPTypeGmail)
		_, err := f.flow.RegisterSender(ctx, &dto.RegisterSenderRequest{
			Email:      existing.Email,
			ESPType:    "gmail",
			Domain:     "example.com",
			Credential: "app-password-1",
		}, nil)
		assert.ErrorIs(t, err, ErrSenderEmailExists)
	})
}

func TestStartWarmup(t *testing.T) {
	ctx := context.Background()

	t.Run("creates the session and its full ramp schedule", func(t *testing.T) {
		f := newWarmupFixture()
		sender := f.senders.add(models.ESPTypeGmail)

		resp, err := f.flow.StartWarmup(ctx, &dto.StartWarmupRequest{SenderUUID: sender.UUID.String()})
		require.NoError(t, err)
		assert.False(t, resp.AlreadyActive)
		assert.Equal(t, "moderate", resp.Profile)
		assert.Equal(t, models.SessionStatusActive.String(), resp.Status)

		session, err := f.sess.ByUUID(ctx, resp.SessionUUID)
		require.NoError(t, err)
		require.NotNil(t, session)
		assert.Equal(t, models.SessionStatusActive, session.Status)

		// the day-one target depends on the calendar, so derive it the
		// same way the flow does
		wantVolume := NewRampFlow(testWarmupConfig(), 1).DayVolume("moderate", 1, utils.UTCNow())
		assert.Equal(t, wantVolume, session.TargetVolume)

		entries, err := f.ramp.BySession(ctx, session.ID)
		require.NoError(t, err)
		require.Len(t, entries, 30)
		for i, e := range entries {
			assert.Equal(t, models.RampEntryScheduled, e.Status)
			assert.Equal(t, i+1, e.Day)
		}
		assert.Equal(t, wantVolume, entries[0].TargetVolume)

		assert.Equal(t, 1, sender.WarmupDay)
		assert.Equal(t, wantVolume, sender.CurrentVolume)
	})

	t.Run("unknown sender", func(t *testing.T) {
		f := newWarmupFixture()
		_, err := f.flow.StartWarmup(ctx, &dto.StartWarmupRequest{SenderUUID: uuid.New().String()})
		assert.ErrorIs(t, err, ErrSenderNotFound)
	})

	t.Run("inactive sender rejected", func(t *testing.T) {
		f := newWarmupFixture()
		sender := f.senders.add(models.ESPTypeGmail)
		sender.IsActive = utils.ToPtr(false)

		_, err := f.flow.StartWarmup(ctx, &dto.StartWarmupRequest{SenderUUID: sender.UUID.String()})
		assert.ErrorIs(t, err, ErrSenderInactive)
	})

	t.Run("active session is returned instead of duplicated", func(t *testing.T) {
		f := newWarmupFixture()
		sender := f.senders.add(models.ESPTypeGmail)
		existing := f.sess.add(sender.ID, "moderate", models.SessionStatusActive, utils.UTCNow())

		resp, err := f.flow.StartWarmup(ctx, &dto.StartWarmupRequest{SenderUUID: sender.UUID.String()})
		require.NoError(t, err)
		assert.True(t, resp.AlreadyActive)
		assert.Equal(t, existing.UUID.String(), resp.SessionUUID)
		assert.Len(t, f.sess.sessions, 1)
	})

	t.Run("unknown profile rejected", func(t *testing.T) {
		f := newWarmupFixture()
		sender := f.senders.add(models.ESPTypeGmail)

		_, err := f.flow.StartWarmup(ctx, &dto.StartWarmupRequest{
			SenderUUID: sender.UUID.String(),
			Profile:    utils.ToPtr("reckless"),
		})
		assert.ErrorIs(t, err, ErrUnknownRampProfile)
	})
}

func TestPauseAndStopWarmup(t *testing.T) {
	ctx := context.Background()

	t.Run("pause parks the schedule and drops queued tasks", func(t *testing.T) {
		f := newWarmupFixture()
		sender := f.senders.add(models.ESPTypeGmail)
		session := f.sess.add(sender.ID, "moderate", models.SessionStatusActive, utils.UTCNow())

		today := utils.UTCToday()
		current := f.ramp.add(session.ID, sender.ID, 1, today, 5, models.RampEntryCurrent)
		upcoming := f.ramp.add(session.ID, sender.ID, 2, today.AddDate(0, 0, 1), 7, models.RampEntryScheduled)

		task := queue.NewTask(queue.TaskSend, sender.ID, 99, session.ID, utils.UTCNow(), queue.PriorityIdeal)
		require.NoError(t, f.tasks.Enqueue(ctx, task))

		resp, err := f.flow.PauseWarmup(ctx, &dto.PauseWarmupRequest{
			SenderUUID: sender.UUID.String(),
			Reason:     "Bounce rate exceeded profile threshold",
		})
		require.NoError(t, err)
		assert.Equal(t, 1, resp.CancelledTasks)

		assert.Equal(t, models.SessionStatusPaused, session.Status)
		require.NotNil(t, session.PauseReason)
		assert.Equal(t, "Bounce rate exceeded profile threshold", *session.PauseReason)
		assert.Equal(t, models.RampEntryPaused, current.Status)
		assert.Equal(t, models.RampEntryPaused, upcoming.Status)
		assert.Zero(t, f.pendingTotal(t))
	})

	t.Run("pause requires an active session", func(t *testing.T) {
		f := newWarmupFixture()
		sender := f.senders.add(models.ESPTypeGmail)
		f.sess.add(sender.ID, "moderate", models.SessionStatusPaused, utils.UTCNow())

		_, err := f.flow.PauseWarmup(ctx, &dto.PauseWarmupRequest{
			SenderUUID: sender.UUID.String(),
			Reason:     "manual",
		})
		assert.ErrorIs(t, err, ErrSessionNotActive)
	})

	t.Run("stop completes the session", func(t *testing.T) {
		f := newWarmupFixture()
		sender := f.senders.add(models.ESPTypeGmail)
		session := f.sess.add(sender.ID, "moderate", models.SessionStatusActive, utils.UTCNow())

		resp, err := f.flow.StopWarmup(ctx, sender.UUID.String())
		require.NoError(t, err)
		assert.Equal(t, session.UUID.String(), resp.SessionUUID)
		assert.Equal(t, models.SessionStatusCompleted, session.Status)
		require.NotNil(t, session.CompletedAt)
	})

	t.Run("stop without a session", func(t *testing.T) {
		f := newWarmupFixture()
		sender := f.senders.add(models.ESPTypeGmail)

		_, err := f.flow.StopWarmup(ctx, sender.UUID.String())
		assert.ErrorIs(t, err, ErrSessionNotFound)
	})
}

func TestResumeWarmup(t *testing.T) {
	ctx := context.Background()

	t.Run("rebuilds the schedule from the elapsed day", func(t *testing.T) {
		f := newWarmupFixture()
		sender := f.senders.add(models.ESPTypeGmail)

		// paused yesterday evening, thirty hours into the session
		session := f.sess.add(sender.ID, "moderate", models.SessionStatusPaused, utils.UTCNow().Add(-30*time.Hour))
		session.PauseReason = utils.ToPtr("Bounce rate 6.0% exceeds pause threshold 5.0%")

		today := utils.UTCToday()
		f.ramp.add(session.ID, sender.ID, 1, today.AddDate(0, 0, -1), 5, models.RampEntryCompleted)
		f.ramp.add(session.ID, sender.ID, 2, today, 7, models.RampEntryPaused)

		resp, err := f.flow.ResumeWarmup(ctx, sender.UUID.String())
		require.NoError(t, err)
		assert.Equal(t, 2, resp.ResumedDay)

		wantVolume := NewRampFlow(testWarmupConfig(), 1).DayVolume("moderate", 2, utils.UTCNow())
		assert.Equal(t, wantVolume, resp.TargetVolume)

		assert.Equal(t, models.SessionStatusActive, session.Status)
		assert.Nil(t, session.PauseReason)
		assert.Equal(t, wantVolume, session.TargetVolume)
		assert.Equal(t, 2, sender.WarmupDay)
		assert.Equal(t, wantVolume, sender.CurrentVolume)

		// yesterday's completed entry survives; today onward is regenerated
		entries, err := f.ramp.BySession(ctx, session.ID)
		require.NoError(t, err)
		require.Len(t, entries, 31)
		assert.Equal(t, models.RampEntryCompleted, entries[0].Status)
		for i, e := range entries[1:] {
			assert.Equal(t, models.RampEntryScheduled, e.Status)
			assert.Equal(t, i+2, e.Day)
		}
		assert.Equal(t, today, entries[1].Date)
	})

	t.Run("resume requires a paused session", func(t *testing.T) {
		f := newWarmupFixture()
		sender := f.senders.add(models.ESPTypeGmail)
		f.sess.add(sender.ID, "moderate", models.SessionStatusActive, utils.UTCNow())

		_, err := f.flow.ResumeWarmup(ctx, sender.UUID.String())
		assert.ErrorIs(t, err, ErrSessionNotPaused)
	})
}

func TestRecordOutcome(t *testing.T) {
	ctx := context.Background()

	t.Run("delivered updates metrics and session totals", func(t *testing.T) {
		f := newWarmupFixture()
		sender := f.senders.add(models.ESPTypeGmail)
		session := f.sess.add(sender.ID, "moderate", models.SessionStatusActive, utils.UTCNow())

		_, err := f.flow.RecordOutcome(ctx, &dto.RecordOutcomeRequest{
			SenderUUID: sender.UUID.String(),
			Outcome:    "delivered",
			Count:      3,
		})
		require.NoError(t, err)

		require.Len(t, f.metrics.deltas, 1)
		assert.Equal(t, 3, f.metrics.deltas[0].Delivered)
		assert.Equal(t, int64(3), session.TotalDelivered)
	})

	t.Run("bounce takes back the delivered credit", func(t *testing.T) {
		f := newWarmupFixture()
		sender := f.senders.add(models.ESPTypeGmail)
		session := f.sess.add(sender.ID, "moderate", models.SessionStatusActive, utils.UTCNow())
		session.TotalDelivered = 5

		_, err := f.flow.RecordOutcome(ctx, &dto.RecordOutcomeRequest{
			SenderUUID: sender.UUID.String(),
			Outcome:    "bounced",
			Count:      2,
		})
		require.NoError(t, err)

		require.Len(t, f.metrics.deltas, 1)
		assert.Equal(t, 2, f.metrics.deltas[0].Bounced)
		assert.Equal(t, -2, f.metrics.deltas[0].Delivered)
		assert.Equal(t, int64(2), session.TotalBounced)
		assert.Equal(t, int64(3), session.TotalDelivered)
	})

	t.Run("spam placement schedules a rescue", func(t *testing.T) {
		f := newWarmupFixture()
		sender := f.senders.add(models.ESPTypeGmail)
		f.sess.add(sender.ID, "moderate", models.SessionStatusActive, utils.UTCNow())

		_, err := f.flow.RecordOutcome(ctx, &dto.RecordOutcomeRequest{
			SenderUUID: sender.UUID.String(),
			Outcome:    "spam_placement",
		})
		require.NoError(t, err)

		pending, err := f.tasks.Pending(ctx, queue.TaskRescue)
		require.NoError(t, err)
		assert.Equal(t, int64(1), pending)
	})

	t.Run("count defaults to one", func(t *testing.T) {
		f := newWarmupFixture()
		sender := f.senders.add(models.ESPTypeGmail)

		_, err := f.flow.RecordOutcome(ctx, &dto.RecordOutcomeRequest{
			SenderUUID: sender.UUID.String(),
			Outcome:    "opened",
		})
		require.NoError(t, err)
		require.Len(t, f.metrics.deltas, 1)
		assert.Equal(t, 1, f.metrics.deltas[0].Opened)
	})

	t.Run("unknown outcome rejected", func(t *testing.T) {
		f := newWarmupFixture()
		sender := f.senders.add(models.ESPTypeGmail)

		_, err := f.flow.RecordOutcome(ctx, &dto.RecordOutcomeRequest{
			SenderUUID: sender.UUID.String(),
			Outcome:    "vanished",
		})
		require.Error(t, err)
		assert.Empty(t, f.metrics.deltas)
	})
}

func TestScheduleDailyWarmup(t *testing.T) {
	ctx := context.Background()

	t.Run("generates the day's exchange tasks", func(t *testing.T) {
		f := newWarmupFixture()
		sender := f.senders.add(models.ESPTypeGmail)
		session := f.sess.add(sender.ID, "moderate", models.SessionStatusActive, utils.UTCNow())
		entry := f.ramp.add(session.ID, sender.ID, 3, utils.UTCToday(), 9, models.RampEntryScheduled)
		for i := 0; i < 10; i++ {
			f.pool.add(models.ESPTypeGmail, models.PoolStatusActive, 80)
		}

		resp, err := f.flow.ScheduleDailyWarmup(ctx, sender.ID)
		require.NoError(t, err)
		assert.False(t, resp.Skipped)
		assert.Equal(t, 9, resp.TargetVolume)
		assert.Equal(t, models.RampEntryCurrent, entry.Status)
		assert.Equal(t, 3, sender.WarmupDay)
		assert.Equal(t, 9, sender.CurrentVolume)
		assert.Equal(t, 9, session.TargetVolume)

		// One send plus one receive per exchange; engages are probabilistic
		sends, err := f.tasks.Pending(ctx, queue.TaskSend)
		require.NoError(t, err)
		receives, err := f.tasks.Pending(ctx, queue.TaskReceive)
		require.NoError(t, err)
		assert.Equal(t, int64(9), sends)
		assert.Equal(t, int64(9), receives)
		assert.GreaterOrEqual(t, int64(resp.TasksEnqueued), int64(18))
	})

	t.Run("repeat run does not double the day's tasks", func(t *testing.T) {
		f := newWarmupFixture()
		sender := f.senders.add(models.ESPTypeGmail)
		session := f.sess.add(sender.ID, "moderate", models.SessionStatusActive, utils.UTCNow())
		f.ramp.add(session.ID, sender.ID, 1, utils.UTCToday(), 5, models.RampEntryScheduled)
		for i := 0; i < 10; i++ {
			f.pool.add(models.ESPTypeGmail, models.PoolStatusActive, 80)
		}

		first, err := f.flow.ScheduleDailyWarmup(ctx, sender.ID)
		require.NoError(t, err)
		assert.False(t, first.Skipped)

		// the entry claim holds even when no redis day lock is wired
		second, err := f.flow.ScheduleDailyWarmup(ctx, sender.ID)
		require.NoError(t, err)
		assert.True(t, second.Skipped)
		assert.Equal(t, "Already scheduled today", second.Message)

		sends, err := f.tasks.Pending(ctx, queue.TaskSend)
		require.NoError(t, err)
		assert.Equal(t, int64(5), sends)
	})

	t.Run("no active session skips", func(t *testing.T) {
		f := newWarmupFixture()
		sender := f.senders.add(models.ESPTypeGmail)

		resp, err := f.flow.ScheduleDailyWarmup(ctx, sender.ID)
		require.NoError(t, err)
		assert.True(t, resp.Skipped)
	})

	t.Run("pause gate trips on bad reputation", func(t *testing.T) {
		f := newWarmupFixture()
		sender := f.senders.add(models.ESPTypeGmail)
		session := f.sess.add(sender.ID, "moderate", models.SessionStatusActive, utils.UTCNow())
		f.ramp.add(session.ID, sender.ID, 3, utils.UTCToday(), 9, models.RampEntryScheduled)
		f.metrics.window = models.RollingMetrics{Sent: 100, Delivered: 40, Bounced: 60}

		resp, err := f.flow.ScheduleDailyWarmup(ctx, sender.ID)
		require.NoError(t, err)
		assert.True(t, resp.Skipped)
		assert.Equal(t, models.SessionStatusPaused, session.Status)
		require.NotNil(t, session.PauseReason)
	})

	t.Run("past the horizon completes the session", func(t *testing.T) {
		f := newWarmupFixture()
		sender := f.senders.add(models.ESPTypeGmail)
		session := f.sess.add(sender.ID, "moderate", models.SessionStatusActive, utils.UTCNow())

		resp, err := f.flow.ScheduleDailyWarmup(ctx, sender.ID)
		require.NoError(t, err)
		assert.True(t, resp.Skipped)
		assert.Equal(t, models.SessionStatusCompleted, session.Status)
	})

	t.Run("empty pool skips without failing", func(t *testing.T) {
		f := newWarmupFixture()
		sender := f.senders.add(models.ESPTypeGmail)
		session := f.sess.add(sender.ID, "moderate", models.SessionStatusActive, utils.UTCNow())
		f.ramp.add(session.ID, sender.ID, 3, utils.UTCToday(), 9, models.RampEntryScheduled)

		resp, err := f.flow.ScheduleDailyWarmup(ctx, sender.ID)
		require.NoError(t, err)
		assert.True(t, resp.Skipped)
		assert.Equal(t, models.SessionStatusActive, session.Status)
	})

	t.Run("completed entry is not rescheduled", func(t *testing.T) {
		f := newWarmupFixture()
		sender := f.senders.add(models.ESPTypeGmail)
		session := f.sess.add(sender.ID, "moderate", models.SessionStatusActive, utils.UTCNow())
		f.ramp.add(session.ID, sender.ID, 3, utils.UTCToday(), 9, models.RampEntryCompleted)

		resp, err := f.flow.ScheduleDailyWarmup(ctx, sender.ID)
		require.NoError(t, err)
		assert.True(t, resp.Skipped)
		assert.Zero(t, f.pendingTotal(t))
	})
}

func TestGetStatus(t *testing.T) {
	ctx := context.Background()
	f := newWarmupFixture()
	sender := f.senders.add(models.ESPTypeGmail)
	sender.WarmupDay = 5
	sender.CurrentVolume = 13
	session := f.sess.add(sender.ID, "moderate", models.SessionStatusActive, utils.UTCNow())
	f.ramp.add(session.ID, sender.ID, 5, utils.UTCToday(), 13, models.RampEntryCurrent)
	f.metrics.window = models.RollingMetrics{Sent: 100, Delivered: 98, Opened: 60, Replied: 30}

	resp, err := f.flow.GetStatus(ctx, sender.UUID.String())
	require.NoError(t, err)

	assert.Equal(t, sender.UUID.String(), resp.SenderUUID)
	assert.Equal(t, 5, resp.WarmupDay)
	assert.Equal(t, session.UUID.String(), resp.SessionUUID)
	assert.Equal(t, "moderate", resp.Profile)
	assert.False(t, resp.Reputation.AtRisk)
	assert.InDelta(t, 98.0, resp.Reputation.Deliverability, 0.001)
	require.NotNil(t, resp.Today)
	assert.Equal(t, 13, resp.Today.TargetVolume)

	t.Run("unknown sender", func(t *testing.T) {
		_, err := f.flow.GetStatus(ctx, uuid.New().String())
		assert.ErrorIs(t, err, ErrSenderNotFound)
	})
}
