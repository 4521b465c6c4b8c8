package businessflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/inboxglow/inboxglow/app/services"
	"github.com/inboxglow/inboxglow/models"
	"github.com/inboxglow/inboxglow/queue"
	"github.com/inboxglow/inboxglow/repository"
	"github.com/inboxglow/inboxglow/utils"
)

// ExecuteSendTask delivers one warmup message from the sender to its
// selected pool partner
func (s *WarmupFlowImpl) ExecuteSendTask(ctx context.Context, task *queue.Task) error {
	sender, partner, err := s.taskParties(ctx, task)
	if err != nil {
		return err
	}

	if _, err := s.openCredential(sender.EncryptedCredential); err != nil {
		return err
	}

	content, err := s.contentGen.Generate(ctx, services.MessageContext{
		FromEmail: sender.Email,
		ToEmail:   partner.Email,
	})
	if err != nil {
		return NewBusinessError("WARMUP_SEND_CONTENT_FAILED", "Failed to generate message content", err)
	}

	if _, err := s.mailSender.Send(ctx, sender.Email, partner.Email, content.Subject, content.Body); err != nil {
		var te *services.TransportError
		if errors.As(err, &te) {
			return NewBusinessErrorf("WARMUP_SEND_FAILED", "Mail gateway refused send (%s)", err, te.Code)
		}
		return NewBusinessError("WARMUP_SEND_FAILED", "Failed to send warmup message", err)
	}

	if err := s.metricRepo.IncrementCounters(ctx, sender.ID, utils.UTCNow(), repository.MetricsDelta{Sent: 1, Delivered: 1}); err != nil {
		return NewBusinessError("WARMUP_SEND_RECORD_FAILED", "Failed to record send counters", err)
	}
	if task.SessionID != 0 {
		if err := s.sessionRepo.IncrementTotals(ctx, task.SessionID, repository.SessionTotalsDelta{Sent: 1, Delivered: 1}); err != nil {
			return NewBusinessError("WARMUP_SEND_RECORD_FAILED", "Failed to record session totals", err)
		}
	}

	return s.poolFlow.RecordReceive(ctx, partner.ID)
}

// ExecuteReceiveTask delivers the partner's reply-in-kind back to the sender
func (s *WarmupFlowImpl) ExecuteReceiveTask(ctx context.Context, task *queue.Task) error {
	sender, partner, err := s.taskParties(ctx, task)
	if err != nil {
		return err
	}

	if _, err := s.openCredential(partner.EncryptedCredential); err != nil {
		return err
	}

	content, err := s.contentGen.Generate(ctx, services.MessageContext{
		FromEmail: partner.Email,
		ToEmail:   sender.Email,
		IsReply:   true,
	})
	if err != nil {
		return NewBusinessError("WARMUP_RECEIVE_CONTENT_FAILED", "Failed to generate reply content", err)
	}

	if _, err := s.mailSender.Send(ctx, partner.Email, sender.Email, content.Subject, content.Body); err != nil {
		return NewBusinessError("WARMUP_RECEIVE_FAILED", "Failed to send partner reply", err)
	}

	if err := s.poolFlow.RecordSend(ctx, partner.ID); err != nil {
		return err
	}
	if err := s.poolFlow.RecordReply(ctx, partner.ID); err != nil {
		return err
	}

	if err := s.metricRepo.IncrementCounters(ctx, sender.ID, utils.UTCNow(), repository.MetricsDelta{Replied: 1}); err != nil {
		return NewBusinessError("WARMUP_RECEIVE_RECORD_FAILED", "Failed to record reply counters", err)
	}
	if task.SessionID != 0 {
		if err := s.sessionRepo.IncrementTotals(ctx, task.SessionID, repository.SessionTotalsDelta{Replied: 1}); err != nil {
			return NewBusinessError("WARMUP_RECEIVE_RECORD_FAILED", "Failed to record session totals", err)
		}
	}

	return nil
}

// ExecuteEngageTask performs a positive interaction with the sender's
// message inside the partner mailbox
func (s *WarmupFlowImpl) ExecuteEngageTask(ctx context.Context, task *queue.Task) error {
	sender, partner, err := s.taskParties(ctx, task)
	if err != nil {
		return err
	}

	action := services.EngagementAction(task.Extension["action"])
	if !action.Valid() {
		action = services.ActionOpen
	}

	err = s.engagement.Perform(ctx, action, services.EngagementCriteria{
		AccountEmail: partner.Email,
		FromEmail:    sender.Email,
	})
	if err != nil {
		return NewBusinessError("WARMUP_ENGAGE_FAILED", "Failed to perform engagement action", err)
	}

	delta := repository.MetricsDelta{Opened: 1}
	totals := repository.SessionTotalsDelta{Opened: 1}
	if action == services.ActionReply {
		delta = repository.MetricsDelta{Replied: 1}
		totals = repository.SessionTotalsDelta{Replied: 1}
		if err := s.poolFlow.RecordReply(ctx, partner.ID); err != nil {
			return err
		}
	}

	if err := s.metricRepo.IncrementCounters(ctx, sender.ID, utils.UTCNow(), delta); err != nil {
		return NewBusinessError("WARMUP_ENGAGE_RECORD_FAILED", "Failed to record engagement counters", err)
	}
	if task.SessionID != 0 {
		if err := s.sessionRepo.IncrementTotals(ctx, task.SessionID, totals); err != nil {
			return NewBusinessError("WARMUP_ENGAGE_RECORD_FAILED", "Failed to record session totals", err)
		}
	}

	return nil
}

// ExecuteRescueTask pulls a spam-placed warmup message back into the inbox.
// With a partner attached the rescue runs in the partner mailbox against the
// sender's message; without one it sweeps the sender's own spam folder.
func (s *WarmupFlowImpl) ExecuteRescueTask(ctx context.Context, task *queue.Task) error {
	sender, err := s.senderRepo.ByID(ctx, task.SenderAccountID)
	if err != nil {
		return NewBusinessError("WARMUP_RESCUE_FAILED", "Failed to find sender account", err)
	}
	if sender == nil {
		return ErrSenderNotFound
	}

	criteria := services.EngagementCriteria{AccountEmail: sender.Email}
	if task.PartnerAccountID != 0 {
		partner, err := s.poolRepo.ByID(ctx, task.PartnerAccountID)
		if err != nil {
			return NewBusinessError("WARMUP_RESCUE_FAILED", "Failed to find pool account", err)
		}
		if partner == nil {
			return ErrPoolAccountNotFound
		}
		criteria = services.EngagementCriteria{
			AccountEmail: partner.Email,
			FromEmail:    sender.Email,
		}
	}

	if err := s.engagement.Perform(ctx, services.ActionRescueFromSpam, criteria); err != nil {
		return NewBusinessError("WARMUP_RESCUE_FAILED", "Failed to rescue message from spam", err)
	}

	if err := s.metricRepo.IncrementCounters(ctx, sender.ID, utils.UTCNow(), repository.MetricsDelta{SpamRescues: 1}); err != nil {
		return NewBusinessError("WARMUP_RESCUE_RECORD_FAILED", "Failed to record rescue counters", err)
	}

	return nil
}

// ExecuteReputationCheck polls the reputation provider and re-evaluates the
// pause gate. An unavailable provider means no new data, never a pause.
func (s *WarmupFlowImpl) ExecuteReputationCheck(ctx context.Context, task *queue.Task) error {
	sender, err := s.senderRepo.ByID(ctx, task.SenderAccountID)
	if err != nil {
		return NewBusinessError("WARMUP_REPUTATION_FAILED", "Failed to find sender account", err)
	}
	if sender == nil {
		return ErrSenderNotFound
	}

	session, err := s.sessionRepo.ActiveBySender(ctx, sender.ID)
	if err != nil {
		return NewBusinessError("WARMUP_REPUTATION_FAILED", "Failed to load active session", err)
	}
	if session == nil {
		return nil
	}

	rep, err := s.reputation.GetReputation(ctx, sender.Domain)
	if err != nil {
		if errors.Is(err, services.ErrReputationUnavailable) {
			return nil
		}
		return NewBusinessError("WARMUP_REPUTATION_FAILED", "Failed to fetch domain reputation", err)
	}

	if critical, detail := rep.HasCriticalAlert(); critical {
		reason := fmt.Sprintf("Critical reputation alert: %s", detail)
		if _, err := s.pauseSession(ctx, sender.ID, session, reason); err != nil && !IsSessionNotActive(err) {
			return err
		}
		return nil
	}

	window, err := s.rollingWindow(ctx, sender.ID)
	if err != nil {
		return err
	}
	score := scoreFromWindow(window)

	if decision := s.rampFlow.CheckPauseConditions(session.Profile, score, window); decision.ShouldPause {
		if _, err := s.pauseSession(ctx, sender.ID, session, decision.Reason); err != nil && !IsSessionNotActive(err) {
			return err
		}
		return nil
	}

	return s.senderRepo.UpdateWarmupState(ctx, sender.ID, sender.WarmupDay, sender.CurrentVolume, score.Overall)
}

// taskParties resolves the sender and partner accounts a task references
func (s *WarmupFlowImpl) taskParties(ctx context.Context, task *queue.Task) (*models.SenderAccount, *models.PoolAccount, error) {
	sender, err := s.senderRepo.ByID(ctx, task.SenderAccountID)
	if err != nil {
		return nil, nil, NewBusinessError("WARMUP_TASK_LOOKUP_FAILED", "Failed to find sender account", err)
	}
	if sender == nil {
		return nil, nil, ErrSenderNotFound
	}

	partner, err := s.poolRepo.ByID(ctx, task.PartnerAccountID)
	if err != nil {
		return nil, nil, NewBusinessError("WARMUP_TASK_LOOKUP_FAILED", "Failed to find pool account", err)
	}
	if partner == nil {
		return nil, nil, ErrPoolAccountNotFound
	}
	if partner.Status == models.PoolStatusRetired {
		return nil, nil, ErrPoolAccountRetired
	}

	return sender, partner, nil
}

// openCredential unseals a stored mailbox credential. Failure makes the
// account unusable for this exchange but must not crash the worker.
func (s *WarmupFlowImpl) openCredential(sealed *string) (string, error) {
	if sealed == nil || *sealed == "" {
		return "", ErrCredentialRequired
	}
	plaintext, err := utils.DecryptCredential(s.securityCfg.CredentialMasterKey, *sealed)
	if err != nil {
		return "", NewBusinessError("WARMUP_CREDENTIAL_UNREADABLE", "Stored credential could not be decrypted", ErrCredentialUnreadable)
	}
	return plaintext, nil
}
