package businessflow

import (
	"context"
	"testing"

	"github.com/inboxglow/inboxglow/app/services"
	"github.com/inboxglow/inboxglow/models"
	"github.com/inboxglow/inboxglow/queue"
	"github.com/inboxglow/inboxglow/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sealCredential encrypts a credential with the fixture master key
func sealCredential(t *testing.T, plaintext string) *string {
	t.Helper()
	sealed, err := utils.EncryptCredential(testSecurityConfig().CredentialMasterKey, plaintext)
	require.NoError(t, err)
	return &sealed
}

// exchangeFixture seeds a sender and partner ready for task execution
func exchangeFixture(t *testing.T) (*warmupFixture, *models.SenderAccount, *models.PoolAccount, *models.WarmupSession) {
	t.Helper()
	f := newWarmupFixture()
	sender := f.senders.add(models.ESPTypeGmail)
	sender.EncryptedCredential = sealCredential(t, "sender-app-password")
	partner := f.pool.add(models.ESPTypeGmail, models.PoolStatusActive, 80)
	partner.EncryptedCredential = sealCredential(t, "partner-app-password")
	session := f.sess.add(sender.ID, "moderate", models.SessionStatusActive, utils.UTCNow())
	return f, sender, partner, session
}

func TestExecuteSendTask(t *testing.T) {
	ctx := context.Background()

	t.Run("delivers and records the exchange", func(t *testing.T) {
		f, sender, partner, session := exchangeFixture(t)
		task := queue.NewTask(queue.TaskSend, sender.ID, partner.ID, session.ID, utils.UTCNow(), queue.PriorityIdeal)

		require.NoError(t, f.flow.ExecuteSendTask(ctx, task))

		sent := f.mail.Sent()
		require.Len(t, sent, 1)
		assert.Equal(t, sender.Email, sent[0].From)
		assert.Equal(t, partner.Email, sent[0].To)
		assert.NotEmpty(t, sent[0].Subject)

		require.Len(t, f.metrics.deltas, 1)
		assert.Equal(t, 1, f.metrics.deltas[0].Sent)
		assert.Equal(t, 1, f.metrics.deltas[0].Delivered)
		assert.Equal(t, int64(1), session.TotalSent)
		assert.Equal(t, 1, partner.DailyReceivedCount)
	})

	t.Run("missing sender credential", func(t *testing.T) {
		f, sender, partner, session := exchangeFixture(t)
		sender.EncryptedCredential = nil
		task := queue.NewTask(queue.TaskSend, sender.ID, partner.ID, session.ID, utils.UTCNow(), queue.PriorityIdeal)

		assert.ErrorIs(t, f.flow.ExecuteSendTask(ctx, task), ErrCredentialRequired)
		assert.Empty(t, f.mail.Sent())
	})

	t.Run("transport failure surfaces the gateway code", func(t *testing.T) {
		f, sender, partner, session := exchangeFixture(t)
		f.mail.FailNext = true
		task := queue.NewTask(queue.TaskSend, sender.ID, partner.ID, session.ID, utils.UTCNow(), queue.PriorityIdeal)

		err := f.flow.ExecuteSendTask(ctx, task)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "MOCK_FAILURE")
		assert.Empty(t, f.metrics.deltas)
	})

	t.Run("retired partner rejected", func(t *testing.T) {
		f, sender, partner, session := exchangeFixture(t)
		partner.Status = models.PoolStatusRetired
		task := queue.NewTask(queue.TaskSend, sender.ID, partner.ID, session.ID, utils.UTCNow(), queue.PriorityIdeal)

		assert.ErrorIs(t, f.flow.ExecuteSendTask(ctx, task), ErrPoolAccountRetired)
	})
}

func TestExecuteReceiveTask(t *testing.T) {
	ctx := context.Background()

	f, sender, partner, session := exchangeFixture(t)
	task := queue.NewTask(queue.TaskReceive, sender.ID, partner.ID, session.ID, utils.UTCNow(), queue.PriorityIdeal)

	require.NoError(t, f.flow.ExecuteReceiveTask(ctx, task))

	sent := f.mail.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, partner.Email, sent[0].From)
	assert.Equal(t, sender.Email, sent[0].To)

	assert.Equal(t, 1, partner.DailySentCount)
	assert.Equal(t, int64(1), partner.TotalReplied)
	require.Len(t, f.metrics.deltas, 1)
	assert.Equal(t, 1, f.metrics.deltas[0].Replied)
	assert.Equal(t, int64(1), session.TotalReplied)
}

func TestExecuteEngageTask(t *testing.T) {
	ctx := context.Background()

	t.Run("open action records an open", func(t *testing.T) {
		f, sender, partner, session := exchangeFixture(t)
		task := queue.NewTask(queue.TaskEngage, sender.ID, partner.ID, session.ID, utils.UTCNow(), queue.PriorityIdeal)
		task.WithExtension("action", string(services.ActionOpen))

		require.NoError(t, f.flow.ExecuteEngageTask(ctx, task))

		performed := f.engage.Performed()
		require.Len(t, performed, 1)
		assert.Equal(t, services.ActionOpen, performed[0].Action)
		assert.Equal(t, partner.Email, performed[0].Criteria.AccountEmail)
		assert.Equal(t, sender.Email, performed[0].Criteria.FromEmail)

		require.Len(t, f.metrics.deltas, 1)
		assert.Equal(t, 1, f.metrics.deltas[0].Opened)
		assert.Equal(t, int64(1), session.TotalOpened)
	})

	t.Run("reply action credits the partner", func(t *testing.T) {
		f, sender, partner, session := exchangeFixture(t)
		task := queue.NewTask(queue.TaskEngage, sender.ID, partner.ID, session.ID, utils.UTCNow(), queue.PriorityIdeal)
		task.WithExtension("action", string(services.ActionReply))

		require.NoError(t, f.flow.ExecuteEngageTask(ctx, task))

		require.Len(t, f.metrics.deltas, 1)
		assert.Equal(t, 1, f.metrics.deltas[0].Replied)
		assert.Equal(t, int64(1), partner.TotalReplied)
		assert.Equal(t, int64(1), session.TotalReplied)
	})

	t.Run("unknown action falls back to open", func(t *testing.T) {
		f, sender, partner, session := exchangeFixture(t)
		task := queue.NewTask(queue.TaskEngage, sender.ID, partner.ID, session.ID, utils.UTCNow(), queue.PriorityIdeal)
		task.WithExtension("action", "teleport")

		require.NoError(t, f.flow.ExecuteEngageTask(ctx, task))

		performed := f.engage.Performed()
		require.Len(t, performed, 1)
		assert.Equal(t, services.ActionOpen, performed[0].Action)
	})
}

func TestExecuteRescueTask(t *testing.T) {
	ctx := context.Background()

	t.Run("partner rescue targets the partner mailbox", func(t *testing.T) {
		f, sender, partner, session := exchangeFixture(t)
		task := queue.NewTask(queue.TaskRescue, sender.ID, partner.ID, session.ID, utils.UTCNow(), queue.PriorityIdeal)

		require.NoError(t, f.flow.ExecuteRescueTask(ctx, task))

		performed := f.engage.Performed()
		require.Len(t, performed, 1)
		assert.Equal(t, services.ActionRescueFromSpam, performed[0].Action)
		assert.Equal(t, partner.Email, performed[0].Criteria.AccountEmail)
		assert.Equal(t, sender.Email, performed[0].Criteria.FromEmail)

		require.Len(t, f.metrics.deltas, 1)
		assert.Equal(t, 1, f.metrics.deltas[0].SpamRescues)
	})

	t.Run("self rescue sweeps the sender mailbox", func(t *testing.T) {
		f, sender, _, session := exchangeFixture(t)
		task := queue.NewTask(queue.TaskRescue, sender.ID, 0, session.ID, utils.UTCNow(), queue.PriorityIdeal)

		require.NoError(t, f.flow.ExecuteRescueTask(ctx, task))

		performed := f.engage.Performed()
		require.Len(t, performed, 1)
		assert.Equal(t, sender.Email, performed[0].Criteria.AccountEmail)
		assert.Empty(t, performed[0].Criteria.FromEmail)
	})
}

func TestExecuteReputationCheck(t *testing.T) {
	ctx := context.Background()

	t.Run("healthy domain refreshes the health score", func(t *testing.T) {
		f, sender, _, session := exchangeFixture(t)
		f.metrics.window = models.RollingMetrics{Sent: 100, Delivered: 98, Opened: 60, Replied: 30}
		task := queue.NewTask(queue.TaskReputationCheck, sender.ID, 0, session.ID, utils.UTCNow(), queue.PrioritySecondary)

		require.NoError(t, f.flow.ExecuteReputationCheck(ctx, task))

		assert.Equal(t, models.SessionStatusActive, session.Status)
		assert.Greater(t, sender.HealthScore, 60.0)
	})

	t.Run("critical alert pauses the session", func(t *testing.T) {
		f, sender, _, session := exchangeFixture(t)
		f.rep.SetReputation(sender.Domain, &services.DomainReputation{
			Domain:       sender.Domain,
			OverallLevel: "bad",
			Alerts: []services.ReputationAlert{
				{Severity: services.SeverityCritical, Message: "domain listed on spamhaus"},
			},
		})
		task := queue.NewTask(queue.TaskReputationCheck, sender.ID, 0, session.ID, utils.UTCNow(), queue.PrioritySecondary)

		require.NoError(t, f.flow.ExecuteReputationCheck(ctx, task))

		assert.Equal(t, models.SessionStatusPaused, session.Status)
		require.NotNil(t, session.PauseReason)
		assert.Contains(t, *session.PauseReason, "domain listed on spamhaus")
	})

	t.Run("unavailable provider is not a pause", func(t *testing.T) {
		f, sender, _, session := exchangeFixture(t)
		f.rep.Unavailable = true
		task := queue.NewTask(queue.TaskReputationCheck, sender.ID, 0, session.ID, utils.UTCNow(), queue.PrioritySecondary)

		require.NoError(t, f.flow.ExecuteReputationCheck(ctx, task))
		assert.Equal(t, models.SessionStatusActive, session.Status)
	})

	t.Run("bad rolling metrics trip the pause gate", func(t *testing.T) {
		f, sender, _, session := exchangeFixture(t)
		f.metrics.window = models.RollingMetrics{Sent: 100, Delivered: 40, Bounced: 60}
		task := queue.NewTask(queue.TaskReputationCheck, sender.ID, 0, session.ID, utils.UTCNow(), queue.PrioritySecondary)

		require.NoError(t, f.flow.ExecuteReputationCheck(ctx, task))
		assert.Equal(t, models.SessionStatusPaused, session.Status)
	})

	t.Run("no active session is a no-op", func(t *testing.T) {
		f := newWarmupFixture()
		sender := f.senders.add(models.ESPTypeGmail)
		task := queue.NewTask(queue.TaskReputationCheck, sender.ID, 0, 0, utils.UTCNow(), queue.PrioritySecondary)

		require.NoError(t, f.flow.ExecuteReputationCheck(ctx, task))
	})
}
