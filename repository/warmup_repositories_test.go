package repository

import (
	"context"
	"testing"

	"github.com/inboxglow/inboxglow/models"
	"github.com/inboxglow/inboxglow/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWarmupSessionRepository(t *testing.T) {
	testDB, fixtures := setupRepoTest(t)
	repo := NewWarmupSessionRepository(testDB.DB)
	ctx := context.Background()

	sender, err := fixtures.CreateTestSender(models.ESPTypeGmail)
	require.NoError(t, err)
	session, err := fixtures.CreateTestSession(sender.ID, "moderate")
	require.NoError(t, err)

	t.Run("active lookup by sender", func(t *testing.T) {
		found, err := repo.ActiveBySender(ctx, sender.ID)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, session.ID, found.ID)

		missing, err := repo.ActiveBySender(ctx, sender.ID+1000)
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("totals accumulate", func(t *testing.T) {
		require.NoError(t, repo.IncrementTotals(ctx, session.ID, SessionTotalsDelta{Sent: 5, Delivered: 4, Bounced: 1}))
		require.NoError(t, repo.IncrementTotals(ctx, session.ID, SessionTotalsDelta{Sent: 3, Delivered: 3, Opened: 2}))

		reloaded, err := repo.ByID(ctx, session.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(8), reloaded.TotalSent)
		assert.Equal(t, int64(7), reloaded.TotalDelivered)
		assert.Equal(t, int64(1), reloaded.TotalBounced)
		assert.Equal(t, int64(2), reloaded.TotalOpened)
	})

	t.Run("status transition is compare and swap", func(t *testing.T) {
		reason := "Bounce rate exceeded threshold"
		updated, err := repo.UpdateStatusIf(ctx, session.ID, models.SessionStatusActive, models.SessionStatusPaused, &reason, utils.UTCNow())
		require.NoError(t, err)
		assert.True(t, updated)

		// Second CAS from the stale status must lose
		updated, err = repo.UpdateStatusIf(ctx, session.ID, models.SessionStatusActive, models.SessionStatusCompleted, nil, utils.UTCNow())
		require.NoError(t, err)
		assert.False(t, updated)

		reloaded, err := repo.ByID(ctx, session.ID)
		require.NoError(t, err)
		assert.Equal(t, models.SessionStatusPaused, reloaded.Status)
		require.NotNil(t, reloaded.PauseReason)
		assert.Equal(t, reason, *reloaded.PauseReason)
		require.NotNil(t, reloaded.PausedAt)
	})
}

func TestRampScheduleRepository(t *testing.T) {
	testDB, fixtures := setupRepoTest(t)
	repo := NewRampScheduleRepository(testDB.DB)
	ctx := context.Background()

	sender, err := fixtures.CreateTestSender(models.ESPTypeGmail)
	require.NoError(t, err)
	session, err := fixtures.CreateTestSession(sender.ID, "moderate")
	require.NoError(t, err)

	today := utils.UTCToday()
	current, err := fixtures.CreateTestRampEntry(session, 1, today, 5, models.RampEntryCurrent)
	require.NoError(t, err)
	_, err = fixtures.CreateTestRampEntry(session, 2, today.AddDate(0, 0, 1), 7, models.RampEntryScheduled)
	require.NoError(t, err)
	_, err = fixtures.CreateTestRampEntry(session, 3, today.AddDate(0, 0, 2), 9, models.RampEntryScheduled)
	require.NoError(t, err)

	t.Run("entry lookup by date", func(t *testing.T) {
		entry, err := repo.EntryForDate(ctx, session.ID, today)
		require.NoError(t, err)
		require.NotNil(t, entry)
		assert.Equal(t, current.ID, entry.ID)

		none, err := repo.EntryForDate(ctx, session.ID, today.AddDate(0, 0, 30))
		require.NoError(t, err)
		assert.Nil(t, none)
	})

	t.Run("current entry", func(t *testing.T) {
		entry, err := repo.CurrentEntry(ctx, session.ID)
		require.NoError(t, err)
		require.NotNil(t, entry)
		assert.Equal(t, current.ID, entry.ID)
	})

	t.Run("range status move parks the future", func(t *testing.T) {
		moved, err := repo.MarkRangeStatus(ctx, session.ID, today.AddDate(0, 0, 1), models.RampEntryScheduled, models.RampEntryPaused)
		require.NoError(t, err)
		assert.Equal(t, int64(2), moved)

		entries, err := repo.BySession(ctx, session.ID)
		require.NoError(t, err)
		require.Len(t, entries, 3)
		assert.Equal(t, models.RampEntryCurrent, entries[0].Status)
		assert.Equal(t, models.RampEntryPaused, entries[1].Status)
		assert.Equal(t, models.RampEntryPaused, entries[2].Status)
	})

	t.Run("delete from date trims the horizon", func(t *testing.T) {
		deleted, err := repo.DeleteFromDate(ctx, session.ID, today.AddDate(0, 0, 1))
		require.NoError(t, err)
		assert.Equal(t, int64(2), deleted)

		entries, err := repo.BySession(ctx, session.ID)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, current.ID, entries[0].ID)
	})
}

func TestWarmupMetricRepository(t *testing.T) {
	testDB, fixtures := setupRepoTest(t)
	repo := NewWarmupMetricRepository(testDB.DB)
	ctx := context.Background()

	sender, err := fixtures.CreateTestSender(models.ESPTypeGmail)
	require.NoError(t, err)

	today := utils.UTCToday()

	t.Run("increment upserts the daily row", func(t *testing.T) {
		require.NoError(t, repo.IncrementCounters(ctx, sender.ID, today, MetricsDelta{Sent: 5, Delivered: 5}))
		require.NoError(t, repo.IncrementCounters(ctx, sender.ID, today, MetricsDelta{Sent: 2, Delivered: 1, Bounced: 1}))

		series, err := repo.SeriesBySender(ctx, sender.ID, today, today)
		require.NoError(t, err)
		require.Len(t, series, 1)
		assert.Equal(t, 7, series[0].Sent)
		assert.Equal(t, 6, series[0].Delivered)
		assert.Equal(t, 1, series[0].Bounced)
	})

	t.Run("rolling window aggregates across days", func(t *testing.T) {
		yesterday := today.AddDate(0, 0, -1)
		require.NoError(t, repo.IncrementCounters(ctx, sender.ID, yesterday, MetricsDelta{Sent: 10, Delivered: 9, Opened: 4}))

		window, err := repo.RollingWindow(ctx, sender.ID, yesterday, today)
		require.NoError(t, err)
		assert.Equal(t, 17, window.Sent)
		assert.Equal(t, 15, window.Delivered)
		assert.Equal(t, 1, window.Bounced)
		assert.Equal(t, 4, window.Opened)
	})

	t.Run("window outside the data is empty", func(t *testing.T) {
		from := today.AddDate(0, 0, -30)
		to := today.AddDate(0, 0, -20)
		window, err := repo.RollingWindow(ctx, sender.ID, from, to)
		require.NoError(t, err)
		assert.Zero(t, window.Sent)
	})
}
