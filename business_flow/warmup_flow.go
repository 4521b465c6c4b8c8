package businessflow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/inboxglow/inboxglow/app/dto"
	"github.com/inboxglow/inboxglow/app/services"
	"github.com/inboxglow/inboxglow/config"
	"github.com/inboxglow/inboxglow/models"
	"github.com/inboxglow/inboxglow/queue"
	"github.com/inboxglow/inboxglow/repository"
	"github.com/inboxglow/inboxglow/utils"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// WarmupFlow drives the warmup session state machine: registration, session
// lifecycle, the daily scheduling run, and outcome recording
type WarmupFlow interface {
	RegisterSender(ctx context.Context, req *dto.RegisterSenderRequest, metadata *ClientMetadata) (*dto.RegisterSenderResponse, error)
	StartWarmup(ctx context.Context, req *dto.StartWarmupRequest) (*dto.StartWarmupResponse, error)
	StopWarmup(ctx context.Context, senderUUID string) (*dto.StopWarmupResponse, error)
	PauseWarmup(ctx context.Context, req *dto.PauseWarmupRequest) (*dto.PauseWarmupResponse, error)
	ResumeWarmup(ctx context.Context, senderUUID string) (*dto.ResumeWarmupResponse, error)
	GetStatus(ctx context.Context, senderUUID string) (*dto.WarmupStatusResponse, error)
	GetSchedule(ctx context.Context, senderUUID string) (*dto.GetScheduleResponse, error)
	RecordOutcome(ctx context.Context, req *dto.RecordOutcomeRequest) (*dto.RecordOutcomeResponse, error)

	// ScheduleDailyWarmup runs the central daily algorithm for one sender
	ScheduleDailyWarmup(ctx context.Context, senderAccountID uint) (*dto.ScheduleDailyResponse, error)
	ScheduleDailyBySenderUUID(ctx context.Context, senderUUID string) (*dto.ScheduleDailyResponse, error)
	ActiveSessions(ctx context.Context, limit, offset int) ([]*models.WarmupSession, error)
	EnqueueReputationCheck(ctx context.Context, session *models.WarmupSession, windowStart time.Time) error

	WarmupTaskExecutors
}

// WarmupTaskExecutors are the per-stage task handlers the queue processor
// dispatches into
type WarmupTaskExecutors interface {
	ExecuteSendTask(ctx context.Context, task *queue.Task) error
	ExecuteReceiveTask(ctx context.Context, task *queue.Task) error
	ExecuteEngageTask(ctx context.Context, task *queue.Task) error
	ExecuteRescueTask(ctx context.Context, task *queue.Task) error
	ExecuteReputationCheck(ctx context.Context, task *queue.Task) error
}

type WarmupFlowImpl struct {
	senderRepo  repository.SenderAccountRepository
	sessionRepo repository.WarmupSessionRepository
	rampRepo    repository.RampScheduleRepository
	metricRepo  repository.WarmupMetricRepository
	poolRepo    repository.PoolAccountRepository

	poolFlow PoolFlow
	rampFlow RampFlow

	tasks      queue.TaskQueue
	mailSender services.MailSender
	contentGen services.ContentGenerator
	engagement services.EngagementSimulator
	reputation services.ReputationProvider

	warmupCfg   *config.WarmupConfig
	securityCfg *config.SecurityConfig
	cacheCfg    *config.CacheConfig

	db *gorm.DB
	rc *redis.Client
}

func NewWarmupFlow(
	senderRepo repository.SenderAccountRepository,
	sessionRepo repository.WarmupSessionRepository,
	rampRepo repository.RampScheduleRepository,
	metricRepo repository.WarmupMetricRepository,
	poolRepo repository.PoolAccountRepository,
	poolFlow PoolFlow,
	rampFlow RampFlow,
	tasks queue.TaskQueue,
	mailSender services.MailSender,
	contentGen services.ContentGenerator,
	engagement services.EngagementSimulator,
	reputation services.ReputationProvider,
	warmupCfg *config.WarmupConfig,
	securityCfg *config.SecurityConfig,
	cacheCfg *config.CacheConfig,
	db *gorm.DB,
	rc *redis.Client,
) WarmupFlow {
	return &WarmupFlowImpl{
		senderRepo:  senderRepo,
		sessionRepo: sessionRepo,
		rampRepo:    rampRepo,
		metricRepo:  metricRepo,
		poolRepo:    poolRepo,
		poolFlow:    poolFlow,
		rampFlow:    rampFlow,
		tasks:       tasks,
		mailSender:  mailSender,
		contentGen:  contentGen,
		engagement:  engagement,
		reputation:  reputation,
		warmupCfg:   warmupCfg,
		securityCfg: securityCfg,
		cacheCfg:    cacheCfg,
		db:          db,
		rc:          rc,
	}
}

// RegisterSender creates a sender account with an encrypted mailbox credential
func (s *WarmupFlowImpl) RegisterSender(ctx context.Context, req *dto.RegisterSenderRequest, metadata *ClientMetadata) (*dto.RegisterSenderResponse, error) {
	espType := models.ESPType(req.ESPType)
	if !espType.Valid() {
		return nil, ErrInvalidESPType
	}

	existing, err := s.senderRepo.ByEmail(ctx, req.Email)
	if err != nil {
		return nil, NewBusinessError("SENDER_REGISTER_LOOKUP_FAILED", "Failed to check sender email", err)
	}
	if existing != nil {
		return nil, ErrSenderEmailExists
	}

	sealed, err := utils.EncryptCredential(s.securityCfg.CredentialMasterKey, req.Credential)
	if err != nil {
		return nil, NewBusinessError("SENDER_REGISTER_ENCRYPT_FAILED", "Failed to encrypt sender credential", err)
	}

	account := &models.SenderAccount{
		UUID:                uuid.New(),
		Email:               req.Email,
		ESPType:             espType,
		Domain:              req.Domain,
		EncryptedCredential: &sealed,
		HealthScore:         50,
		IsActive:            utils.ToPtr(true),
		CreatedAt:           utils.UTCNow(),
		UpdatedAt:           utils.UTCNow(),
	}

	if err := s.senderRepo.Save(ctx, account); err != nil {
		return nil, NewBusinessError("SENDER_REGISTER_SAVE_FAILED", "Failed to save sender account", err)
	}

	return &dto.RegisterSenderResponse{
		Message:   "Sender account registered successfully",
		UUID:      account.UUID.String(),
		Email:     account.Email,
		CreatedAt: account.CreatedAt.Format(time.RFC3339),
	}, nil
}

// StartWarmup opens a warmup session for the sender. Idempotent: a sender
// that already has an active session gets that session back instead of a
// duplicate.
func (s *WarmupFlowImpl) StartWarmup(ctx context.Context, req *dto.StartWarmupRequest) (*dto.StartWarmupResponse, error) {
	sender, err := s.senderRepo.ByUUID(ctx, req.SenderUUID)
	if err != nil {
		return nil, NewBusinessError("WARMUP_START_LOOKUP_FAILED", "Failed to find sender account", err)
	}
	if sender == nil {
		return nil, ErrSenderNotFound
	}
	if !utils.IsTrue(sender.IsActive) {
		return nil, ErrSenderInactive
	}

	existing, err := s.sessionRepo.ActiveBySender(ctx, sender.ID)
	if err != nil {
		return nil, NewBusinessError("WARMUP_START_LOOKUP_FAILED", "Failed to check active session", err)
	}
	if existing != nil {
		return &dto.StartWarmupResponse{
			Message:       "Warmup session already active",
			SessionUUID:   existing.UUID.String(),
			Status:        existing.Status.String(),
			Profile:       existing.Profile,
			StartedAt:     existing.StartedAt.Format(time.RFC3339),
			AlreadyActive: true,
		}, nil
	}

	profile := s.warmupCfg.DefaultProfile
	if req.Profile != nil && *req.Profile != "" {
		profile = *req.Profile
	}
	if profile != "conservative" && profile != "moderate" && profile != "aggressive" {
		return nil, ErrUnknownRampProfile
	}

	now := utils.UTCNow()
	session := &models.WarmupSession{
		UUID:            uuid.New(),
		SenderAccountID: sender.ID,
		Profile:         profile,
		Status:          models.SessionStatusActive,
		StartedAt:       now,
		TargetVolume:    s.rampFlow.DayVolume(profile, 1, now),
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	err = repository.WithTransaction(ctx, s.db, func(txCtx context.Context) error {
		if err := s.sessionRepo.Save(txCtx, session); err != nil {
			return err
		}

		entries := s.rampFlow.BuildSchedule(profile, sender.ID, session.ID, now, 1)
		if err := s.rampRepo.SaveBatch(txCtx, entries); err != nil {
			return err
		}

		return s.senderRepo.UpdateWarmupState(txCtx, sender.ID, 1, session.TargetVolume, sender.HealthScore)
	})
	if err != nil {
		return nil, NewBusinessError("WARMUP_START_FAILED", "Failed to start warmup session", err)
	}

	return &dto.StartWarmupResponse{
		Message:     "Warmup session started",
		SessionUUID: session.UUID.String(),
		Status:      session.Status.String(),
		Profile:     session.Profile,
		StartedAt:   session.StartedAt.Format(time.RFC3339),
	}, nil
}

// StopWarmup completes the session and cancels the sender's queued tasks
func (s *WarmupFlowImpl) StopWarmup(ctx context.Context, senderUUID string) (*dto.StopWarmupResponse, error) {
	sender, session, err := s.currentSession(ctx, senderUUID)
	if err != nil {
		return nil, err
	}
	if session == nil || (session.Status != models.SessionStatusActive && session.Status != models.SessionStatusPaused) {
		return nil, ErrSessionNotFound
	}

	updated, err := s.sessionRepo.UpdateStatusIf(ctx, session.ID, session.Status, models.SessionStatusCompleted, nil, utils.UTCNow())
	if err != nil {
		return nil, NewBusinessError("WARMUP_STOP_FAILED", "Failed to complete warmup session", err)
	}
	if !updated {
		return nil, ErrSessionCompleted
	}

	cancelled, err := queue.CancelAllBySender(ctx, s.tasks, sender.ID)
	if err != nil {
		return nil, NewBusinessError("WARMUP_STOP_CANCEL_FAILED", "Failed to cancel queued warmup tasks", err)
	}

	return &dto.StopWarmupResponse{
		Message:        "Warmup session completed",
		SessionUUID:    session.UUID.String(),
		CancelledTasks: cancelled,
	}, nil
}

// PauseWarmup pauses the active session with an attributable reason
func (s *WarmupFlowImpl) PauseWarmup(ctx context.Context, req *dto.PauseWarmupRequest) (*dto.PauseWarmupResponse, error) {
	sender, session, err := s.currentSession(ctx, req.SenderUUID)
	if err != nil {
		return nil, err
	}
	if session == nil || session.Status != models.SessionStatusActive {
		return nil, ErrSessionNotActive
	}

	cancelled, err := s.pauseSession(ctx, sender.ID, session, req.Reason)
	if err != nil {
		return nil, err
	}

	return &dto.PauseWarmupResponse{
		Message:        "Warmup session paused",
		SessionUUID:    session.UUID.String(),
		CancelledTasks: cancelled,
	}, nil
}

// pauseSession performs the shared pause bookkeeping: CAS the session to
// paused, park the remaining schedule, and drop queued tasks
func (s *WarmupFlowImpl) pauseSession(ctx context.Context, senderAccountID uint, session *models.WarmupSession, reason string) (int, error) {
	updated, err := s.sessionRepo.UpdateStatusIf(ctx, session.ID, models.SessionStatusActive, models.SessionStatusPaused, &reason, utils.UTCNow())
	if err != nil {
		return 0, NewBusinessError("WARMUP_PAUSE_FAILED", "Failed to pause warmup session", err)
	}
	if !updated {
		return 0, ErrSessionNotActive
	}

	today := utils.UTCToday()
	if _, err := s.rampRepo.MarkRangeStatus(ctx, session.ID, today, models.RampEntryScheduled, models.RampEntryPaused); err != nil {
		return 0, NewBusinessError("WARMUP_PAUSE_FAILED", "Failed to park scheduled ramp entries", err)
	}
	if entry, err := s.rampRepo.EntryForDate(ctx, session.ID, today); err == nil && entry != nil && entry.Status == models.RampEntryCurrent {
		_, _ = s.rampRepo.MarkStatusIf(ctx, entry.ID, models.RampEntryCurrent, models.RampEntryPaused)
	}

	cancelled, err := queue.CancelAllBySender(ctx, s.tasks, senderAccountID)
	if err != nil {
		return 0, NewBusinessError("WARMUP_PAUSE_CANCEL_FAILED", "Failed to cancel queued warmup tasks", err)
	}

	return cancelled, nil
}

// ResumeWarmup reactivates a paused session. The schedule regenerates from
// today at the volume the sender would have reached without the pause; ramp
// progress is preserved, never reset.
func (s *WarmupFlowImpl) ResumeWarmup(ctx context.Context, senderUUID string) (*dto.ResumeWarmupResponse, error) {
	sender, session, err := s.currentSession(ctx, senderUUID)
	if err != nil {
		return nil, err
	}
	if session == nil || session.Status != models.SessionStatusPaused {
		return nil, ErrSessionNotPaused
	}

	now := utils.UTCNow()
	elapsedDay := session.ElapsedDay(now)
	targetVolume := s.rampFlow.DayVolume(session.Profile, elapsedDay, now)

	err = repository.WithTransaction(ctx, s.db, func(txCtx context.Context) error {
		updated, err := s.sessionRepo.UpdateStatusIf(txCtx, session.ID, models.SessionStatusPaused, models.SessionStatusActive, nil, now)
		if err != nil {
			return err
		}
		if !updated {
			return ErrSessionNotPaused
		}

		if _, err := s.rampRepo.DeleteFromDate(txCtx, session.ID, now); err != nil {
			return err
		}

		entries := s.rampFlow.BuildSchedule(session.Profile, sender.ID, session.ID, now, elapsedDay)
		if err := s.rampRepo.SaveBatch(txCtx, entries); err != nil {
			return err
		}

		if err := s.sessionRepo.SetTargetVolume(txCtx, session.ID, targetVolume); err != nil {
			return err
		}

		return s.senderRepo.UpdateWarmupState(txCtx, sender.ID, elapsedDay, targetVolume, sender.HealthScore)
	})
	if err != nil {
		if IsSessionNotPaused(err) {
			return nil, err
		}
		return nil, NewBusinessError("WARMUP_RESUME_FAILED", "Failed to resume warmup session", err)
	}

	return &dto.ResumeWarmupResponse{
		Message:      "Warmup session resumed",
		SessionUUID:  session.UUID.String(),
		ResumedDay:   elapsedDay,
		TargetVolume: targetVolume,
	}, nil
}

// GetStatus assembles the sender's full warmup view: session, reputation
// over the rolling window, and today's schedule entry
func (s *WarmupFlowImpl) GetStatus(ctx context.Context, senderUUID string) (*dto.WarmupStatusResponse, error) {
	sender, err := s.senderRepo.ByUUID(ctx, senderUUID)
	if err != nil {
		return nil, NewBusinessError("WARMUP_STATUS_FAILED", "Failed to find sender account", err)
	}
	if sender == nil {
		return nil, ErrSenderNotFound
	}

	resp := &dto.WarmupStatusResponse{
		SenderUUID:    sender.UUID.String(),
		Email:         sender.Email,
		ESPType:       sender.ESPType.String(),
		WarmupDay:     sender.WarmupDay,
		CurrentVolume: sender.CurrentVolume,
		HealthScore:   sender.HealthScore,
	}

	window, err := s.rollingWindow(ctx, sender.ID)
	if err != nil {
		return nil, err
	}
	score := scoreFromWindow(window)

	resp.Reputation = dto.ReputationScoreDTO{
		Overall:        score.Overall,
		Deliverability: score.Deliverability,
		Engagement:     score.Engagement,
		SpamScore:      score.SpamScore,
		BounceRate:     score.BounceRate,
		AtRisk:         IsAtRisk(score),
		Trend:          string(TrendStable),
	}
	resp.Metrics = dto.MetricsWindowDTO{
		WindowDays:     s.warmupCfg.MetricsWindowDays,
		Sent:           window.Sent,
		Delivered:      window.Delivered,
		Bounced:        window.Bounced,
		Opened:         window.Opened,
		Replied:        window.Replied,
		SpamReports:    window.SpamReports,
		BounceRate:     window.BounceRate(),
		SpamRate:       window.SpamRate(),
		EngagementRate: window.EngagementRate(),
	}

	if trend, err := s.scoreTrend(ctx, sender.ID); err == nil {
		resp.Reputation.Trend = string(trend)
	}

	session, err := s.sessionRepo.CurrentBySender(ctx, sender.ID)
	if err != nil {
		return nil, NewBusinessError("WARMUP_STATUS_FAILED", "Failed to load warmup session", err)
	}
	if session != nil {
		resp.SessionUUID = session.UUID.String()
		resp.SessionStatus = session.Status.String()
		resp.Profile = session.Profile
		resp.PauseReason = session.PauseReason
		resp.StartedAt = &session.StartedAt

		if entry, err := s.rampRepo.EntryForDate(ctx, session.ID, utils.UTCNow()); err == nil && entry != nil {
			resp.Today = &dto.ScheduleEntryDTO{
				Day:          entry.Day,
				Date:         entry.Date,
				TargetVolume: entry.TargetVolume,
				Status:       entry.Status.String(),
			}
		}
	}

	return resp, nil
}

// GetSchedule returns the sender's current ramp horizon
func (s *WarmupFlowImpl) GetSchedule(ctx context.Context, senderUUID string) (*dto.GetScheduleResponse, error) {
	_, session, err := s.currentSession(ctx, senderUUID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}

	entries, err := s.rampRepo.BySession(ctx, session.ID)
	if err != nil {
		return nil, NewBusinessError("WARMUP_SCHEDULE_FAILED", "Failed to load ramp schedule", err)
	}

	out := make([]dto.ScheduleEntryDTO, 0, len(entries))
	for _, e := range entries {
		out = append(out, dto.ScheduleEntryDTO{
			Day:          e.Day,
			Date:         e.Date,
			TargetVolume: e.TargetVolume,
			Status:       e.Status.String(),
		})
	}

	return &dto.GetScheduleResponse{
		SessionUUID: session.UUID.String(),
		Profile:     session.Profile,
		Entries:     out,
	}, nil
}

// RecordOutcome ingests a delivery or engagement outcome reported from
// outside the worker path (webhooks, manual operator correction)
func (s *WarmupFlowImpl) RecordOutcome(ctx context.Context, req *dto.RecordOutcomeRequest) (*dto.RecordOutcomeResponse, error) {
	sender, err := s.senderRepo.ByUUID(ctx, req.SenderUUID)
	if err != nil {
		return nil, NewBusinessError("WARMUP_OUTCOME_FAILED", "Failed to find sender account", err)
	}
	if sender == nil {
		return nil, ErrSenderNotFound
	}

	count := req.Count
	if count < 1 {
		count = 1
	}

	var delta repository.MetricsDelta
	var totals repository.SessionTotalsDelta
	switch req.Outcome {
	case "delivered":
		delta.Delivered = count
		totals.Delivered = count
	case "bounced":
		// Sends are credited delivered at gateway accept; a bounce takes
		// that credit back
		delta.Bounced = count
		delta.Delivered = -count
		totals.Bounced = count
		totals.Delivered = -count
	case "opened":
		delta.Opened = count
		totals.Opened = count
	case "replied":
		delta.Replied = count
		totals.Replied = count
	case "spam_report":
		delta.SpamReports = count
		totals.Spam = count
	case "spam_placement":
		delta.SpamPlacements = count
	case "spam_rescue":
		delta.SpamRescues = count
	case "unsubscribe":
		delta.Unsubscribes = count
	default:
		return nil, NewBusinessErrorf("WARMUP_OUTCOME_INVALID", "Unknown outcome %q", nil, req.Outcome)
	}

	if err := s.metricRepo.IncrementCounters(ctx, sender.ID, utils.UTCNow(), delta); err != nil {
		return nil, NewBusinessError("WARMUP_OUTCOME_FAILED", "Failed to record outcome counters", err)
	}

	if session, err := s.sessionRepo.ActiveBySender(ctx, sender.ID); err == nil && session != nil {
		if totals != (repository.SessionTotalsDelta{}) {
			if err := s.sessionRepo.IncrementTotals(ctx, session.ID, totals); err != nil {
				return nil, NewBusinessError("WARMUP_OUTCOME_FAILED", "Failed to record session totals", err)
			}
		}

		// A spam placement schedules a serialized rescue against the mailbox
		if req.Outcome == "spam_placement" {
			task := queue.NewTask(queue.TaskRescue, sender.ID, 0, session.ID, utils.UTCNow(), queue.PriorityIdeal)
			if err := s.tasks.Enqueue(ctx, task); err != nil {
				return nil, NewBusinessError("WARMUP_OUTCOME_FAILED", "Failed to enqueue rescue task", err)
			}
		}
	}

	return &dto.RecordOutcomeResponse{Message: "Outcome recorded"}, nil
}

// ScheduleDailyWarmup is the central daily algorithm: admission via the
// pause gate, partner selection, and time-distributed task generation.
// A redis day lock plus the schedule entry CAS prevent duplicate scheduling
// of the same sender and day.
func (s *WarmupFlowImpl) ScheduleDailyWarmup(ctx context.Context, senderAccountID uint) (*dto.ScheduleDailyResponse, error) {
	sender, err := s.senderRepo.ByID(ctx, senderAccountID)
	if err != nil {
		return nil, NewBusinessError("WARMUP_SCHEDULE_DAILY_FAILED", "Failed to find sender account", err)
	}
	if sender == nil {
		return nil, ErrSenderNotFound
	}

	session, err := s.sessionRepo.ActiveBySender(ctx, sender.ID)
	if err != nil {
		return nil, NewBusinessError("WARMUP_SCHEDULE_DAILY_FAILED", "Failed to load active session", err)
	}
	if session == nil {
		return s.skipResponse("", "No active session"), nil
	}

	now := utils.UTCNow()
	today := utils.UTCToday()

	if !s.acquireDayLock(ctx, sender.ID, today) {
		return s.skipResponse(session.UUID.String(), "Already scheduled today"), nil
	}

	// Pause gate before any work
	window, err := s.rollingWindow(ctx, sender.ID)
	if err != nil {
		return nil, err
	}
	score := scoreFromWindow(window)
	if decision := s.rampFlow.CheckPauseConditions(session.Profile, score, window); decision.ShouldPause {
		if _, err := s.pauseSession(ctx, sender.ID, session, decision.Reason); err != nil {
			return nil, err
		}
		return s.skipResponse(session.UUID.String(), fmt.Sprintf("Paused: %s", decision.Reason)), nil
	}

	entry, err := s.rampRepo.EntryForDate(ctx, session.ID, today)
	if err != nil {
		return nil, NewBusinessError("WARMUP_SCHEDULE_DAILY_FAILED", "Failed to load today's ramp entry", err)
	}
	if entry == nil {
		// Past the horizon: the ramp is done
		if _, err := s.sessionRepo.UpdateStatusIf(ctx, session.ID, models.SessionStatusActive, models.SessionStatusCompleted, nil, now); err != nil {
			return nil, NewBusinessError("WARMUP_SCHEDULE_DAILY_FAILED", "Failed to complete finished session", err)
		}
		return s.skipResponse(session.UUID.String(), "Ramp horizon complete"), nil
	}

	// Claim the day: only the caller that flips the entry generates tasks.
	// Entries are created scheduled for every day, so the claim guards a
	// repeat run even without the redis lock.
	switch entry.Status {
	case models.RampEntryScheduled:
		claimed, err := s.rampRepo.MarkStatusIf(ctx, entry.ID, models.RampEntryScheduled, models.RampEntryCurrent)
		if err != nil {
			return nil, NewBusinessError("WARMUP_SCHEDULE_DAILY_FAILED", "Failed to claim today's ramp entry", err)
		}
		if !claimed {
			return s.skipResponse(session.UUID.String(), "Already scheduled today"), nil
		}
	case models.RampEntryCurrent:
		return s.skipResponse(session.UUID.String(), "Already scheduled today"), nil
	default:
		return s.skipResponse(session.UUID.String(), "Today's entry is not schedulable"), nil
	}

	// Yesterday's current entry is done
	if prev, err := s.rampRepo.CurrentEntry(ctx, session.ID); err == nil && prev != nil && prev.ID != entry.ID {
		_, _ = s.rampRepo.MarkStatusIf(ctx, prev.ID, models.RampEntryCurrent, models.RampEntryCompleted)
	}

	volume := entry.TargetVolume
	if volume <= 0 {
		return s.skipResponse(session.UUID.String(), "Zero target volume"), nil
	}

	selections, err := s.poolFlow.SelectPartners(ctx, sender.ESPType, volume, nil, 0)
	if err != nil {
		if IsPoolExhausted(err) {
			// Not fatal; retried on the next maintenance cycle
			return s.skipResponse(session.UUID.String(), "No eligible pool partners"), nil
		}
		return nil, err
	}

	enqueued, err := s.enqueueExchanges(ctx, sender, session, selections, today, volume)
	if err != nil {
		return nil, err
	}

	if err := s.sessionRepo.SetTargetVolume(ctx, session.ID, volume); err != nil {
		return nil, NewBusinessError("WARMUP_SCHEDULE_DAILY_FAILED", "Failed to record session target volume", err)
	}
	if err := s.senderRepo.UpdateWarmupState(ctx, sender.ID, entry.Day, volume, sender.HealthScore); err != nil {
		return nil, NewBusinessError("WARMUP_SCHEDULE_DAILY_FAILED", "Failed to advance sender warmup state", err)
	}

	return &dto.ScheduleDailyResponse{
		Message:       "Daily warmup scheduled",
		SessionUUID:   session.UUID.String(),
		TargetVolume:  volume,
		PartnersUsed:  len(selections),
		TasksEnqueued: enqueued,
	}, nil
}

// ScheduleDailyBySenderUUID is the operator-facing entry into the daily
// algorithm, addressed by sender UUID
func (s *WarmupFlowImpl) ScheduleDailyBySenderUUID(ctx context.Context, senderUUID string) (*dto.ScheduleDailyResponse, error) {
	sender, err := s.senderRepo.ByUUID(ctx, senderUUID)
	if err != nil {
		return nil, NewBusinessError("WARMUP_SCHEDULE_DAILY_FAILED", "Failed to find sender account", err)
	}
	if sender == nil {
		return nil, ErrSenderNotFound
	}
	return s.ScheduleDailyWarmup(ctx, sender.ID)
}

// enqueueExchanges distributes the day's exchanges across sending windows
// and builds each exchange's causally ordered send, receive, engage chain
func (s *WarmupFlowImpl) enqueueExchanges(ctx context.Context, sender *models.SenderAccount, session *models.WarmupSession, selections []PartnerSelection, day time.Time, volume int) (int, error) {
	enqueued := 0
	for i := 0; i < volume; i++ {
		sel := selections[i%len(selections)]

		sendAt := s.rampFlow.SendTimeFor(day, i, volume)
		sendTask := queue.NewTask(queue.TaskSend, sender.ID, sel.Account.ID, session.ID, sendAt, sel.Priority)
		sendTask.WithExtension("match_type", sel.MatchType)
		if err := s.tasks.Enqueue(ctx, sendTask); err != nil {
			return enqueued, NewBusinessError("WARMUP_ENQUEUE_FAILED", "Failed to enqueue send task", err)
		}
		enqueued++

		receiveAt := sendAt.Add(s.rampFlow.ReceiveDelay())
		receiveTask := queue.NewTask(queue.TaskReceive, sender.ID, sel.Account.ID, session.ID, receiveAt, sel.Priority)
		if err := s.tasks.Enqueue(ctx, receiveTask); err != nil {
			return enqueued, NewBusinessError("WARMUP_ENQUEUE_FAILED", "Failed to enqueue receive task", err)
		}
		enqueued++

		if delay, ok := s.rampFlow.EngageDelay(); ok {
			engageTask := queue.NewTask(queue.TaskEngage, sender.ID, sel.Account.ID, session.ID, receiveAt.Add(delay), sel.Priority)
			engageTask.WithExtension("action", string(s.rampFlow.EngageAction()))
			if err := s.tasks.Enqueue(ctx, engageTask); err != nil {
				return enqueued, NewBusinessError("WARMUP_ENQUEUE_FAILED", "Failed to enqueue engage task", err)
			}
			enqueued++
		}
	}

	return enqueued, nil
}

// ActiveSessions lists sessions in active status for the maintenance pass
func (s *WarmupFlowImpl) ActiveSessions(ctx context.Context, limit, offset int) ([]*models.WarmupSession, error) {
	return s.sessionRepo.ListByStatus(ctx, models.SessionStatusActive, limit, offset)
}

// EnqueueReputationCheck schedules the session's daily reputation poll at a
// randomized time within the first hour of the maintenance window
func (s *WarmupFlowImpl) EnqueueReputationCheck(ctx context.Context, session *models.WarmupSession, windowStart time.Time) error {
	at := windowStart.Add(s.rampFlow.ReceiveDelay() % time.Hour)
	task := queue.NewTask(queue.TaskReputationCheck, session.SenderAccountID, 0, session.ID, at, queue.PrioritySecondary)
	if err := s.tasks.Enqueue(ctx, task); err != nil {
		return NewBusinessError("WARMUP_REPUTATION_ENQUEUE_FAILED", "Failed to enqueue reputation check", err)
	}
	return nil
}

// currentSession resolves the sender and their most recent session
func (s *WarmupFlowImpl) currentSession(ctx context.Context, senderUUID string) (*models.SenderAccount, *models.WarmupSession, error) {
	sender, err := s.senderRepo.ByUUID(ctx, senderUUID)
	if err != nil {
		return nil, nil, NewBusinessError("WARMUP_SESSION_LOOKUP_FAILED", "Failed to find sender account", err)
	}
	if sender == nil {
		return nil, nil, ErrSenderNotFound
	}

	session, err := s.sessionRepo.CurrentBySender(ctx, sender.ID)
	if err != nil {
		return nil, nil, NewBusinessError("WARMUP_SESSION_LOOKUP_FAILED", "Failed to load warmup session", err)
	}

	return sender, session, nil
}

// rollingWindow aggregates the sender's metrics over the configured window
func (s *WarmupFlowImpl) rollingWindow(ctx context.Context, senderAccountID uint) (models.RollingMetrics, error) {
	days := s.warmupCfg.MetricsWindowDays
	if days < 1 {
		days = 7
	}
	to := utils.UTCToday()
	from := to.AddDate(0, 0, -(days - 1))

	window, err := s.metricRepo.RollingWindow(ctx, senderAccountID, from, to)
	if err != nil {
		return models.RollingMetrics{}, NewBusinessError("WARMUP_METRICS_FAILED", "Failed to aggregate rolling metrics", err)
	}
	return window, nil
}

// scoreTrend computes per-day overall scores across the window and
// classifies their direction
func (s *WarmupFlowImpl) scoreTrend(ctx context.Context, senderAccountID uint) (ReputationTrend, error) {
	days := s.warmupCfg.MetricsWindowDays
	if days < 1 {
		days = 7
	}
	to := utils.UTCToday()
	from := to.AddDate(0, 0, -(days - 1))

	series, err := s.metricRepo.SeriesBySender(ctx, senderAccountID, from, to)
	if err != nil {
		return TrendStable, err
	}

	history := make([]float64, 0, len(series))
	for _, m := range series {
		score := ScoreReputation(ReputationFactors{
			Sent:         m.Sent,
			Delivered:    m.Delivered,
			Bounced:      m.Bounced,
			Opened:       m.Opened,
			Replied:      m.Replied,
			SpamReports:  m.SpamReports,
			Unsubscribes: m.Unsubscribes,
		})
		history = append(history, score.Overall)
	}

	return Trend(history), nil
}

// acquireDayLock takes the sender's per-day scheduling lock. Without redis
// the schedule entry CAS alone carries the invariant.
func (s *WarmupFlowImpl) acquireDayLock(ctx context.Context, senderAccountID uint, day time.Time) bool {
	if s.rc == nil {
		return true
	}

	key := redisKey(*s.cacheCfg, fmt.Sprintf("warmup:schedule:%d:%s", senderAccountID, day.Format("2006-01-02")))
	ok, err := s.rc.SetNX(ctx, key, "1", 24*time.Hour).Result()
	if err != nil {
		// Lock service trouble must not halt scheduling; the CAS still guards
		return true
	}
	return ok
}

func (s *WarmupFlowImpl) skipResponse(sessionUUID, message string) *dto.ScheduleDailyResponse {
	return &dto.ScheduleDailyResponse{
		Message:     message,
		SessionUUID: sessionUUID,
		Skipped:     true,
	}
}

// scoreFromWindow derives the sender reputation score from a metrics window
func scoreFromWindow(w models.RollingMetrics) ReputationScore {
	return ScoreReputation(ReputationFactors{
		Sent:         w.Sent,
		Delivered:    w.Delivered,
		Bounced:      w.Bounced,
		Opened:       w.Opened,
		Replied:      w.Replied,
		SpamReports:  w.SpamReports,
		Unsubscribes: w.Unsubscribes,
	})
}
