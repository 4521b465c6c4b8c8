package businessflow

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/inboxglow/inboxglow/app/dto"
	"github.com/inboxglow/inboxglow/config"
	"github.com/inboxglow/inboxglow/models"
	"github.com/inboxglow/inboxglow/repository"
	"github.com/inboxglow/inboxglow/utils"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Partner match types
const (
	MatchSameESP  = "same_esp"
	MatchCrossESP = "cross_esp"
)

// PartnerSelection is the ephemeral result of one selection call
type PartnerSelection struct {
	Account   *models.PoolAccount
	MatchType string
	Priority  int
}

// PoolFlow handles warmup pool partner management and selection
type PoolFlow interface {
	OnboardAccount(ctx context.Context, req *dto.OnboardPoolAccountRequest, metadata *ClientMetadata) (*dto.OnboardPoolAccountResponse, error)
	ActivateAccount(ctx context.Context, accountUUID string) (*dto.PoolAccountDTO, error)
	ListAccounts(ctx context.Context, req *dto.ListPoolAccountsRequest) (*dto.ListPoolAccountsResponse, error)

	// SelectPartners picks count partner accounts for a sender, biased toward
	// the sender's ESP. Read-only; callers record usage separately.
	SelectPartners(ctx context.Context, espType models.ESPType, count int, excludeIDs []uint, minHealth float64) ([]PartnerSelection, error)

	RecordSend(ctx context.Context, accountID uint) error
	RecordReceive(ctx context.Context, accountID uint) error
	RecordReply(ctx context.Context, accountID uint) error

	UpdateHealthScore(ctx context.Context, req *dto.UpdatePoolHealthRequest) (*dto.UpdatePoolHealthResponse, error)
	RunMaintenance(ctx context.Context) (*dto.PoolMaintenanceResponse, error)
}

type PoolFlowImpl struct {
	poolRepo    repository.PoolAccountRepository
	poolCfg     *config.PoolConfig
	securityCfg *config.SecurityConfig
	db          *gorm.DB
}

func NewPoolFlow(
	poolRepo repository.PoolAccountRepository,
	poolCfg *config.PoolConfig,
	securityCfg *config.SecurityConfig,
	db *gorm.DB,
) PoolFlow {
	return &PoolFlowImpl{
		poolRepo:    poolRepo,
		poolCfg:     poolCfg,
		securityCfg: securityCfg,
		db:          db,
	}
}

// OnboardAccount registers a partner mailbox into the pool in warming status
func (s *PoolFlowImpl) OnboardAccount(ctx context.Context, req *dto.OnboardPoolAccountRequest, metadata *ClientMetadata) (*dto.OnboardPoolAccountResponse, error) {
	espType := models.ESPType(req.ESPType)
	if !espType.Valid() {
		return nil, ErrInvalidESPType
	}
	if req.Credential == "" {
		return nil, ErrCredentialRequired
	}

	existing, err := s.poolRepo.ByEmail(ctx, req.Email)
	if err != nil {
		return nil, NewBusinessError("POOL_ONBOARD_LOOKUP_FAILED", "Failed to check pool account email", err)
	}
	if existing != nil {
		return nil, ErrPoolAccountExists
	}

	sealed, err := utils.EncryptCredential(s.securityCfg.CredentialMasterKey, req.Credential)
	if err != nil {
		return nil, NewBusinessError("POOL_ONBOARD_ENCRYPT_FAILED", "Failed to encrypt pool credential", err)
	}

	tier := models.PoolAccountTier(req.Tier)
	if !tier.Valid() {
		tier = models.PoolTierStandard
	}
	sendLimit := s.poolCfg.DefaultDailySendLimit
	if req.DailySendLimit != nil {
		sendLimit = *req.DailySendLimit
	}
	recvLimit := s.poolCfg.DefaultDailyRecvLimit
	if req.DailyReceiveLimit != nil {
		recvLimit = *req.DailyReceiveLimit
	}

	account := &models.PoolAccount{
		UUID:                uuid.New(),
		Email:               req.Email,
		ESPType:             espType,
		Tier:                tier,
		Status:              models.PoolStatusWarming,
		HealthScore:         50,
		EncryptedCredential: &sealed,
		Tags:                pq.StringArray(req.Tags),
		DailySendLimit:      sendLimit,
		DailyReceiveLimit:   recvLimit,
		CreatedAt:           utils.UTCNow(),
		UpdatedAt:           utils.UTCNow(),
	}

	if err := s.poolRepo.Save(ctx, account); err != nil {
		return nil, NewBusinessError("POOL_ONBOARD_SAVE_FAILED", "Failed to save pool account", err)
	}

	return &dto.OnboardPoolAccountResponse{
		Message:   "Pool account onboarded successfully",
		UUID:      account.UUID.String(),
		Status:    account.Status.String(),
		CreatedAt: account.CreatedAt.Format(time.RFC3339),
	}, nil
}

// ActivateAccount promotes a warming account into active rotation
func (s *PoolFlowImpl) ActivateAccount(ctx context.Context, accountUUID string) (*dto.PoolAccountDTO, error) {
	account, err := s.poolRepo.ByUUID(ctx, accountUUID)
	if err != nil {
		return nil, NewBusinessError("POOL_ACTIVATE_LOOKUP_FAILED", "Failed to find pool account", err)
	}
	if account == nil {
		return nil, ErrPoolAccountNotFound
	}
	if account.Status == models.PoolStatusRetired {
		return nil, ErrPoolAccountRetired
	}

	if account.Status == models.PoolStatusWarming {
		updated, err := s.poolRepo.SetStatusIf(ctx, account.ID, models.PoolStatusWarming, models.PoolStatusActive, nil)
		if err != nil {
			return nil, NewBusinessError("POOL_ACTIVATE_FAILED", "Failed to activate pool account", err)
		}
		if updated {
			account.Status = models.PoolStatusActive
		}
	}

	out := toPoolAccountDTO(account)
	return &out, nil
}

// ListAccounts retrieves pool accounts with pagination
func (s *PoolFlowImpl) ListAccounts(ctx context.Context, req *dto.ListPoolAccountsRequest) (*dto.ListPoolAccountsResponse, error) {
	page := req.Page
	if page < 1 {
		page = 1
	}
	pageSize := req.PageSize
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	filter := models.PoolAccountFilter{}
	if req.Status != nil {
		st := models.PoolAccountStatus(*req.Status)
		filter.Status = &st
	}
	if req.ESPType != nil {
		esp := models.ESPType(*req.ESPType)
		filter.ESPType = &esp
	}

	total, err := s.poolRepo.Count(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("POOL_LIST_COUNT_FAILED", "Failed to count pool accounts", err)
	}

	accounts, err := s.poolRepo.ByFilter(ctx, filter, "health_score DESC", pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, NewBusinessError("POOL_LIST_FAILED", "Failed to list pool accounts", err)
	}

	items := make([]dto.PoolAccountDTO, 0, len(accounts))
	for _, a := range accounts {
		items = append(items, toPoolAccountDTO(a))
	}

	return &dto.ListPoolAccountsResponse{
		Message:  "Pool accounts retrieved successfully",
		Items:    items,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}, nil
}

// SelectPartners implements the 70/30 same-ESP split with graceful
// degradation. The preferred pool is same-ESP accounts above minHealth;
// remaining slots fill from other ESPs, and if still short the health floor
// drops so a schedule degrades in partner quality instead of failing.
func (s *PoolFlowImpl) SelectPartners(ctx context.Context, espType models.ESPType, count int, excludeIDs []uint, minHealth float64) ([]PartnerSelection, error) {
	if count <= 0 {
		return nil, nil
	}
	if minHealth <= 0 {
		minHealth = s.poolCfg.MinPartnerHealth
	}

	sameESPCount := int(math.Ceil(float64(count) * s.poolCfg.SameESPRatio))
	if sameESPCount > count {
		sameESPCount = count
	}

	selections := make([]PartnerSelection, 0, count)
	chosen := make(map[uint]bool, count)
	exclude := append([]uint{}, excludeIDs...)

	// Step 1: same-ESP majority at the normal health floor
	same, err := s.poolRepo.ListEligible(ctx, repository.EligiblePartnersQuery{
		ESPType:    &espType,
		MinHealth:  minHealth,
		ExcludeIDs: exclude,
		Limit:      sameESPCount,
	})
	if err != nil {
		return nil, NewBusinessError("POOL_SELECT_FAILED", "Failed to query same-ESP partners", err)
	}
	for _, a := range same {
		selections = append(selections, PartnerSelection{Account: a, MatchType: MatchSameESP, Priority: 1})
		chosen[a.ID] = true
		exclude = append(exclude, a.ID)
	}

	// Step 2: cross-ESP fill at the same health floor
	if remaining := count - len(selections); remaining > 0 {
		cross, err := s.poolRepo.ListEligible(ctx, repository.EligiblePartnersQuery{
			ESPType:    &espType,
			ExcludeESP: true,
			MinHealth:  minHealth,
			ExcludeIDs: exclude,
			Limit:      remaining,
		})
		if err != nil {
			return nil, NewBusinessError("POOL_SELECT_FAILED", "Failed to query cross-ESP partners", err)
		}
		for _, a := range cross {
			selections = append(selections, PartnerSelection{Account: a, MatchType: MatchCrossESP, Priority: 2})
			chosen[a.ID] = true
			exclude = append(exclude, a.ID)
		}
	}

	// Step 3: broaden to any ESP at the relaxed floor
	if remaining := count - len(selections); remaining > 0 {
		broadened, err := s.poolRepo.ListEligible(ctx, repository.EligiblePartnersQuery{
			MinHealth:  s.poolCfg.BroadenedMinHealth,
			ExcludeIDs: exclude,
			Limit:      remaining,
		})
		if err != nil {
			return nil, NewBusinessError("POOL_SELECT_FAILED", "Failed to query broadened partner pool", err)
		}
		for _, a := range broadened {
			if chosen[a.ID] {
				continue
			}
			matchType := MatchCrossESP
			if a.ESPType == espType {
				matchType = MatchSameESP
			}
			selections = append(selections, PartnerSelection{Account: a, MatchType: matchType, Priority: 3})
			chosen[a.ID] = true
		}
	}

	if len(selections) == 0 {
		return nil, ErrPoolExhausted
	}

	return selections, nil
}

// RecordSend bumps the account's daily and lifetime send counters
func (s *PoolFlowImpl) RecordSend(ctx context.Context, accountID uint) error {
	if err := s.poolRepo.IncrementDailySent(ctx, accountID, utils.UTCNow()); err != nil {
		return NewBusinessError("POOL_RECORD_SEND_FAILED", "Failed to record pool send", err)
	}
	return nil
}

// RecordReceive bumps the account's daily and lifetime receive counters
func (s *PoolFlowImpl) RecordReceive(ctx context.Context, accountID uint) error {
	if err := s.poolRepo.IncrementDailyReceived(ctx, accountID, utils.UTCNow()); err != nil {
		return NewBusinessError("POOL_RECORD_RECEIVE_FAILED", "Failed to record pool receive", err)
	}
	return nil
}

// RecordReply bumps the account's lifetime reply counter
func (s *PoolFlowImpl) RecordReply(ctx context.Context, accountID uint) error {
	if err := s.poolRepo.IncrementReplied(ctx, accountID, utils.UTCNow()); err != nil {
		return NewBusinessError("POOL_RECORD_REPLY_FAILED", "Failed to record pool reply", err)
	}
	return nil
}

// ComputePartnerHealth derives a partner trust score from observed rates.
// This is deliberately simpler than sender reputation scoring; it governs
// partner rotation only. Rates are percentages.
func ComputePartnerHealth(bounceRate, spamRate, replyRate float64) float64 {
	score := 50.0
	score -= 5 * bounceRate
	score -= 10 * spamRate

	replyBonus := 0.5 * replyRate
	if replyBonus > 10 {
		replyBonus = 10
	}
	score += replyBonus

	return utils.Clamp(score, 0, 100)
}

// UpdateHealthScore recomputes a partner's health and applies the resulting
// status transition: below 30 suspends, below 50 cools down for 24 hours.
func (s *PoolFlowImpl) UpdateHealthScore(ctx context.Context, req *dto.UpdatePoolHealthRequest) (*dto.UpdatePoolHealthResponse, error) {
	account, err := s.poolRepo.ByUUID(ctx, req.UUID)
	if err != nil {
		return nil, NewBusinessError("POOL_HEALTH_LOOKUP_FAILED", "Failed to find pool account", err)
	}
	if account == nil {
		return nil, ErrPoolAccountNotFound
	}
	if account.Status == models.PoolStatusRetired {
		return nil, ErrPoolAccountRetired
	}

	score := ComputePartnerHealth(req.BounceRate, req.SpamRate, req.ReplyRate)

	if err := s.poolRepo.UpdateHealth(ctx, account.ID, score, utils.UTCNow()); err != nil {
		return nil, NewBusinessError("POOL_HEALTH_UPDATE_FAILED", "Failed to update pool health", err)
	}

	status := account.Status
	switch {
	case score < utils.PoolSuspendHealthThreshold:
		if updated, err := s.poolRepo.SetStatusIf(ctx, account.ID, account.Status, models.PoolStatusSuspended, nil); err != nil {
			return nil, NewBusinessError("POOL_SUSPEND_FAILED", "Failed to suspend pool account", err)
		} else if updated {
			status = models.PoolStatusSuspended
		}
	case score < utils.PoolCooldownHealthThreshold && account.Status != models.PoolStatusCooldown:
		// The band binds to the score, not the current status; a cooling
		// account keeps its original deadline
		until := utils.UTCNow().Add(s.poolCfg.CooldownDuration)
		if updated, err := s.poolRepo.SetStatusIf(ctx, account.ID, account.Status, models.PoolStatusCooldown, &until); err != nil {
			return nil, NewBusinessError("POOL_COOLDOWN_FAILED", "Failed to cool down pool account", err)
		} else if updated {
			status = models.PoolStatusCooldown
		}
	}

	return &dto.UpdatePoolHealthResponse{
		Message:     "Pool health updated successfully",
		UUID:        account.UUID.String(),
		HealthScore: score,
		Status:      status.String(),
	}, nil
}

// RunMaintenance performs the daily pool pass: retire long-suspended
// unhealthy accounts, reactivate elapsed cooldowns, zero daily counters
func (s *PoolFlowImpl) RunMaintenance(ctx context.Context) (*dto.PoolMaintenanceResponse, error) {
	now := utils.UTCNow()

	retired := 0
	cutoff := now.Add(-s.poolCfg.PruneSuspendedAfter)
	suspended, err := s.poolRepo.ListSuspendedBefore(ctx, cutoff, utils.PoolSuspendHealthThreshold)
	if err != nil {
		return nil, NewBusinessError("POOL_MAINTENANCE_FAILED", "Failed to list suspended pool accounts", err)
	}
	for _, a := range suspended {
		updated, err := s.poolRepo.SetStatusIf(ctx, a.ID, models.PoolStatusSuspended, models.PoolStatusRetired, nil)
		if err != nil {
			return nil, NewBusinessError("POOL_MAINTENANCE_FAILED", "Failed to retire pool account", err)
		}
		if updated {
			retired++
		}
	}

	reactivated := 0
	elapsed, err := s.poolRepo.ListCooldownElapsed(ctx, now)
	if err != nil {
		return nil, NewBusinessError("POOL_MAINTENANCE_FAILED", "Failed to list cooldown pool accounts", err)
	}
	for _, a := range elapsed {
		updated, err := s.poolRepo.SetStatusIf(ctx, a.ID, models.PoolStatusCooldown, models.PoolStatusActive, nil)
		if err != nil {
			return nil, NewBusinessError("POOL_MAINTENANCE_FAILED", "Failed to reactivate pool account", err)
		}
		if updated {
			reactivated++
		}
	}

	reset, err := s.poolRepo.ResetDailyCounters(ctx)
	if err != nil {
		return nil, NewBusinessError("POOL_MAINTENANCE_FAILED", "Failed to reset pool daily counters", err)
	}

	return &dto.PoolMaintenanceResponse{
		Message:       "Pool maintenance completed",
		Retired:       retired,
		Reactivated:   reactivated,
		CountersReset: reset,
	}, nil
}

func toPoolAccountDTO(a *models.PoolAccount) dto.PoolAccountDTO {
	return dto.PoolAccountDTO{
		UUID:               a.UUID.String(),
		Email:              a.Email,
		ESPType:            a.ESPType.String(),
		Tier:               a.Tier.String(),
		Status:             a.Status.String(),
		HealthScore:        a.HealthScore,
		Tags:               []string(a.Tags),
		DailySentCount:     a.DailySentCount,
		DailyReceivedCount: a.DailyReceivedCount,
		DailySendLimit:     a.DailySendLimit,
		DailyReceiveLimit:  a.DailyReceiveLimit,
		TotalSent:          a.TotalSent,
		TotalReceived:      a.TotalReceived,
		TotalReplied:       a.TotalReplied,
		LastSendAt:         a.LastSendAt,
		CooldownUntil:      a.CooldownUntil,
		CreatedAt:          a.CreatedAt,
	}
}
