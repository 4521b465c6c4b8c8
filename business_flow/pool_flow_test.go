package businessflow

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/inboxglow/inboxglow/app/dto"
	"github.com/inboxglow/inboxglow/config"
	"github.com/inboxglow/inboxglow/models"
	"github.com/inboxglow/inboxglow/repository"
	"github.com/inboxglow/inboxglow/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePoolRepo is an in-memory PoolAccountRepository mirroring the store
// semantics the flow relies on
type fakePoolRepo struct {
	accounts []*models.PoolAccount
	nextID   uint
	resets   int64
}

func newFakePoolRepo() *fakePoolRepo {
	return &fakePoolRepo{nextID: 1}
}

func (r *fakePoolRepo) add(esp models.ESPType, status models.PoolAccountStatus, health float64) *models.PoolAccount {
	a := &models.PoolAccount{
		ID:                r.nextID,
		UUID:              uuid.New(),
		Email:             uuid.New().String() + "@example.com",
		ESPType:           esp,
		Tier:              models.PoolTierStandard,
		Status:            status,
		HealthScore:       health,
		DailySendLimit:    50,
		DailyReceiveLimit: 50,
	}
	r.nextID++
	r.accounts = append(r.accounts, a)
	return a
}

func (r *fakePoolRepo) ByID(_ context.Context, id uint) (*models.PoolAccount, error) {
	for _, a := range r.accounts {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, nil
}

func (r *fakePoolRepo) ByUUID(_ context.Context, uuidStr string) (*models.PoolAccount, error) {
	for _, a := range r.accounts {
		if a.UUID.String() == uuidStr {
			return a, nil
		}
	}
	return nil, nil
}

func (r *fakePoolRepo) ByEmail(_ context.Context, email string) (*models.PoolAccount, error) {
	for _, a := range r.accounts {
		if a.Email == email {
			return a, nil
		}
	}
	return nil, nil
}

func (r *fakePoolRepo) ByFilter(_ context.Context, filter models.PoolAccountFilter, _ string, limit, offset int) ([]*models.PoolAccount, error) {
	var out []*models.PoolAccount
	for _, a := range r.accounts {
		if filter.Status != nil && a.Status != *filter.Status {
			continue
		}
		if filter.ESPType != nil && a.ESPType != *filter.ESPType {
			continue
		}
		out = append(out, a)
	}
	if offset > len(out) {
		offset = len(out)
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakePoolRepo) Save(_ context.Context, a *models.PoolAccount) error {
	a.ID = r.nextID
	r.nextID++
	r.accounts = append(r.accounts, a)
	return nil
}

func (r *fakePoolRepo) SaveBatch(ctx context.Context, accounts []*models.PoolAccount) error {
	for _, a := range accounts {
		if err := r.Save(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakePoolRepo) Count(ctx context.Context, filter models.PoolAccountFilter) (int64, error) {
	out, _ := r.ByFilter(ctx, filter, "", 0, 0)
	return int64(len(out)), nil
}

func (r *fakePoolRepo) Exists(ctx context.Context, filter models.PoolAccountFilter) (bool, error) {
	n, _ := r.Count(ctx, filter)
	return n > 0, nil
}

func (r *fakePoolRepo) Update(_ context.Context, a *models.PoolAccount) error {
	for i, existing := range r.accounts {
		if existing.ID == a.ID {
			r.accounts[i] = a
			return nil
		}
	}
	return nil
}

func (r *fakePoolRepo) ListEligible(_ context.Context, q repository.EligiblePartnersQuery) ([]*models.PoolAccount, error) {
	excluded := make(map[uint]bool, len(q.ExcludeIDs))
	for _, id := range q.ExcludeIDs {
		excluded[id] = true
	}

	var out []*models.PoolAccount
	for _, a := range r.accounts {
		if a.Status != models.PoolStatusActive {
			continue
		}
		if a.DailySentCount >= a.DailySendLimit {
			continue
		}
		if a.HealthScore < q.MinHealth {
			continue
		}
		if q.ESPType != nil {
			if q.ExcludeESP && a.ESPType == *q.ESPType {
				continue
			}
			if !q.ExcludeESP && a.ESPType != *q.ESPType {
				continue
			}
		}
		if excluded[a.ID] {
			continue
		}
		out = append(out, a)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].HealthScore > out[j].HealthScore
	})
	if q.Limit > 0 && q.Limit < len(out) {
		out = out[:q.Limit]
	}
	return out, nil
}

func (r *fakePoolRepo) IncrementDailySent(ctx context.Context, id uint, at time.Time) error {
	a, _ := r.ByID(ctx, id)
	if a != nil {
		a.DailySentCount++
		a.TotalSent++
		a.LastSendAt = &at
	}
	return nil
}

func (r *fakePoolRepo) IncrementDailyReceived(ctx context.Context, id uint, at time.Time) error {
	a, _ := r.ByID(ctx, id)
	if a != nil {
		a.DailyReceivedCount++
		a.TotalReceived++
		a.LastReceiveAt = &at
	}
	return nil
}

func (r *fakePoolRepo) IncrementReplied(ctx context.Context, id uint, at time.Time) error {
	a, _ := r.ByID(ctx, id)
	if a != nil {
		a.TotalReplied++
		a.LastReplyAt = &at
	}
	return nil
}

func (r *fakePoolRepo) UpdateHealth(ctx context.Context, id uint, score float64, checkedAt time.Time) error {
	a, _ := r.ByID(ctx, id)
	if a != nil {
		a.HealthScore = score
		a.LastHealthCheckAt = &checkedAt
	}
	return nil
}

func (r *fakePoolRepo) SetStatusIf(ctx context.Context, id uint, from, to models.PoolAccountStatus, cooldownUntil *time.Time) (bool, error) {
	a, _ := r.ByID(ctx, id)
	if a == nil || a.Status != from {
		return false, nil
	}
	a.Status = to
	a.CooldownUntil = cooldownUntil
	a.UpdatedAt = utils.UTCNow()
	return true, nil
}

func (r *fakePoolRepo) ListSuspendedBefore(_ context.Context, cutoff time.Time, maxHealth float64) ([]*models.PoolAccount, error) {
	var out []*models.PoolAccount
	for _, a := range r.accounts {
		if a.Status == models.PoolStatusSuspended && a.UpdatedAt.Before(cutoff) && a.HealthScore < maxHealth {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *fakePoolRepo) ListCooldownElapsed(_ context.Context, now time.Time) ([]*models.PoolAccount, error) {
	var out []*models.PoolAccount
	for _, a := range r.accounts {
		if a.Status == models.PoolStatusCooldown && a.CooldownUntil != nil && !a.CooldownUntil.After(now) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *fakePoolRepo) ResetDailyCounters(_ context.Context) (int64, error) {
	var n int64
	for _, a := range r.accounts {
		if a.Status == models.PoolStatusRetired {
			continue
		}
		a.DailySentCount = 0
		a.DailyReceivedCount = 0
		n++
	}
	r.resets = n
	return n, nil
}

func (r *fakePoolRepo) CountByStatus(_ context.Context, status models.PoolAccountStatus) (int64, error) {
	var n int64
	for _, a := range r.accounts {
		if a.Status == status {
			n++
		}
	}
	return n, nil
}

func testPoolConfig() *config.PoolConfig {
	return &config.PoolConfig{
		MinPartnerHealth:      40,
		BroadenedMinHealth:    20,
		SameESPRatio:          0.7,
		CooldownDuration:      24 * time.Hour,
		PruneSuspendedAfter:   7 * 24 * time.Hour,
		DefaultDailySendLimit: 50,
		DefaultDailyRecvLimit: 50,
	}
}

func testSecurityConfig() *config.SecurityConfig {
	return &config.SecurityConfig{
		CredentialMasterKey: "test-master-key-0123456789abcdef",
	}
}

func newTestPoolFlow(repo *fakePoolRepo) PoolFlow {
	return NewPoolFlow(repo, testPoolConfig(), testSecurityConfig(), nil)
}

func TestComputePartnerHealth(t *testing.T) {
	tests := []struct {
		name       string
		bounceRate float64
		spamRate   float64
		replyRate  float64
		want       float64
	}{
		{name: "no signal stays neutral", want: 50},
		{name: "replies raise the score", replyRate: 10, want: 55},
		{name: "reply bonus is capped", replyRate: 40, want: 60},
		{name: "bounces drag the score", bounceRate: 4, want: 30},
		{name: "spam complaints weigh double", spamRate: 4, want: 10},
		{name: "score floors at zero", bounceRate: 10, spamRate: 10, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComputePartnerHealth(tt.bounceRate, tt.spamRate, tt.replyRate))
		})
	}
}

func TestSelectPartners(t *testing.T) {
	ctx := context.Background()

	t.Run("same esp majority with cross esp fill", func(t *testing.T) {
		repo := newFakePoolRepo()
		for i := 0; i < 30; i++ {
			repo.add(models.ESPTypeGmail, models.PoolStatusActive, 80)
		}
		for i := 0; i < 30; i++ {
			repo.add(models.ESPTypeOutlook, models.PoolStatusActive, 80)
		}
		flow := newTestPoolFlow(repo)

		selections, err := flow.SelectPartners(ctx, models.ESPTypeGmail, 23, nil, 0)
		require.NoError(t, err)
		require.Len(t, selections, 23)

		var same, cross int
		for _, sel := range selections {
			switch sel.MatchType {
			case MatchSameESP:
				same++
				assert.Equal(t, 1, sel.Priority)
				assert.Equal(t, models.ESPTypeGmail, sel.Account.ESPType)
			case MatchCrossESP:
				cross++
				assert.Equal(t, 2, sel.Priority)
				assert.NotEqual(t, models.ESPTypeGmail, sel.Account.ESPType)
			}
		}
		// ceil(23 * 0.7) = 17
		assert.Equal(t, 17, same)
		assert.Equal(t, 6, cross)
	})

	t.Run("broadened floor picks lower health partners last", func(t *testing.T) {
		repo := newFakePoolRepo()
		repo.add(models.ESPTypeGmail, models.PoolStatusActive, 80)
		repo.add(models.ESPTypeGmail, models.PoolStatusActive, 25) // below normal floor
		flow := newTestPoolFlow(repo)

		selections, err := flow.SelectPartners(ctx, models.ESPTypeGmail, 2, nil, 0)
		require.NoError(t, err)
		require.Len(t, selections, 2)

		assert.Equal(t, 1, selections[0].Priority)
		assert.Equal(t, 3, selections[1].Priority)
		assert.Equal(t, 25.0, selections[1].Account.HealthScore)
	})

	t.Run("no selectable partners", func(t *testing.T) {
		repo := newFakePoolRepo()
		repo.add(models.ESPTypeGmail, models.PoolStatusSuspended, 80)
		repo.add(models.ESPTypeGmail, models.PoolStatusRetired, 80)
		flow := newTestPoolFlow(repo)

		selections, err := flow.SelectPartners(ctx, models.ESPTypeGmail, 5, nil, 0)
		assert.ErrorIs(t, err, ErrPoolExhausted)
		assert.Nil(t, selections)
	})

	t.Run("excluded ids are never selected", func(t *testing.T) {
		repo := newFakePoolRepo()
		a := repo.add(models.ESPTypeGmail, models.PoolStatusActive, 80)
		b := repo.add(models.ESPTypeGmail, models.PoolStatusActive, 80)
		flow := newTestPoolFlow(repo)

		selections, err := flow.SelectPartners(ctx, models.ESPTypeGmail, 2, []uint{a.ID}, 0)
		require.NoError(t, err)
		require.Len(t, selections, 1)
		assert.Equal(t, b.ID, selections[0].Account.ID)
	})

	t.Run("zero count selects nothing", func(t *testing.T) {
		flow := newTestPoolFlow(newFakePoolRepo())
		selections, err := flow.SelectPartners(ctx, models.ESPTypeGmail, 0, nil, 0)
		assert.NoError(t, err)
		assert.Nil(t, selections)
	})
}

func TestOnboardAccount(t *testing.T) {
	ctx := context.Background()

	t.Run("successful onboarding starts warming", func(t *testing.T) {
		repo := newFakePoolRepo()
		flow := newTestPoolFlow(repo)

		resp, err := flow.OnboardAccount(ctx, &dto.OnboardPoolAccountRequest{
			Email:      "partner@example.com",
			ESPType:    "gmail",
			Credential: "app-password-1",
			Tags:       []string{"batch-a"},
		}, nil)
		require.NoError(t, err)
		assert.Equal(t, models.PoolStatusWarming.String(), resp.Status)

		saved, err := repo.ByEmail(ctx, "partner@example.com")
		require.NoError(t, err)
		require.NotNil(t, saved)
		require.NotNil(t, saved.EncryptedCredential)
		assert.NotEqual(t, "app-password-1", *saved.EncryptedCredential)
		assert.Equal(t, 50, saved.DailySendLimit)
		assert.Equal(t, []string{"batch-a"}, []string(saved.Tags))

		plain, err := utils.DecryptCredential(testSecurityConfig().CredentialMasterKey, *saved.EncryptedCredential)
		require.NoError(t, err)
		assert.Equal(t, "app-password-1", plain)
	})

	t.Run("invalid esp type", func(t *testing.T) {
		flow := newTestPoolFlow(newFakePoolRepo())
		_, err := flow.OnboardAccount(ctx, &dto.OnboardPoolAccountRequest{
			Email:      "partner@example.com",
			ESPType:    "carrier-pigeon",
			Credential: "app-password-1",
		}, nil)
		assert.ErrorIs(t, err, ErrInvalidESPType)
	})

	t.Run("missing credential", func(t *testing.T) {
		flow := newTestPoolFlow(newFakePoolRepo())
		_, err := flow.OnboardAccount(ctx, &dto.OnboardPoolAccountRequest{
			Email:   "partner@example.com",
			ESPType: "gmail",
		}, nil)
		assert.ErrorIs(t, err, ErrCredentialRequired)
	})

	t.Run("duplicate email rejected", func(t *testing.T) {
		repo := newFakePoolRepo()
		existing := repo.add(models.ESPTypeGmail, models.PoolStatusActive, 80)
		flow := newTestPoolFlow(repo)

		_, err := flow.OnboardAccount(ctx, &dto.OnboardPoolAccountRequest{
			Email:      existing.Email,
			ESPType:    "gmail",
			Credential: "app-password-1",
		}, nil)
		assert.ErrorIs(t, err, ErrPoolAccountExists)
	})
}

func TestUpdateHealthScore(t *testing.T) {
	ctx := context.Background()

	t.Run("low score suspends the account", func(t *testing.T) {
		repo := newFakePoolRepo()
		a := repo.add(models.ESPTypeGmail, models.PoolStatusActive, 80)
		flow := newTestPoolFlow(repo)

		resp, err := flow.UpdateHealthScore(ctx, &dto.UpdatePoolHealthRequest{
			UUID:       a.UUID.String(),
			BounceRate: 10,
			SpamRate:   10,
		})
		require.NoError(t, err)
		assert.Equal(t, 0.0, resp.HealthScore)
		assert.Equal(t, models.PoolStatusSuspended.String(), resp.Status)
	})

	t.Run("middling score cools an active account down", func(t *testing.T) {
		repo := newFakePoolRepo()
		a := repo.add(models.ESPTypeGmail, models.PoolStatusActive, 80)
		flow := newTestPoolFlow(repo)

		// 50 - 5*3 = 35, below cooldown but above suspend
		resp, err := flow.UpdateHealthScore(ctx, &dto.UpdatePoolHealthRequest{
			UUID:       a.UUID.String(),
			BounceRate: 3,
		})
		require.NoError(t, err)
		assert.Equal(t, 35.0, resp.HealthScore)
		assert.Equal(t, models.PoolStatusCooldown.String(), resp.Status)
		require.NotNil(t, a.CooldownUntil)
		assert.True(t, a.CooldownUntil.After(utils.UTCNow()))
	})

	t.Run("cooldown band applies regardless of current status", func(t *testing.T) {
		repo := newFakePoolRepo()
		a := repo.add(models.ESPTypeGmail, models.PoolStatusWarming, 80)
		flow := newTestPoolFlow(repo)

		resp, err := flow.UpdateHealthScore(ctx, &dto.UpdatePoolHealthRequest{
			UUID:       a.UUID.String(),
			BounceRate: 3,
		})
		require.NoError(t, err)
		assert.Equal(t, 35.0, resp.HealthScore)
		assert.Equal(t, models.PoolStatusCooldown.String(), resp.Status)
		require.NotNil(t, a.CooldownUntil)
		assert.True(t, a.CooldownUntil.After(utils.UTCNow()))
	})

	t.Run("healthy score keeps the status", func(t *testing.T) {
		repo := newFakePoolRepo()
		a := repo.add(models.ESPTypeGmail, models.PoolStatusActive, 40)
		flow := newTestPoolFlow(repo)

		resp, err := flow.UpdateHealthScore(ctx, &dto.UpdatePoolHealthRequest{
			UUID:      a.UUID.String(),
			ReplyRate: 20,
		})
		require.NoError(t, err)
		assert.Equal(t, 60.0, resp.HealthScore)
		assert.Equal(t, models.PoolStatusActive.String(), resp.Status)
	})

	t.Run("retired account rejected", func(t *testing.T) {
		repo := newFakePoolRepo()
		a := repo.add(models.ESPTypeGmail, models.PoolStatusRetired, 10)
		flow := newTestPoolFlow(repo)

		_, err := flow.UpdateHealthScore(ctx, &dto.UpdatePoolHealthRequest{UUID: a.UUID.String()})
		assert.ErrorIs(t, err, ErrPoolAccountRetired)
	})

	t.Run("unknown account", func(t *testing.T) {
		flow := newTestPoolFlow(newFakePoolRepo())
		_, err := flow.UpdateHealthScore(ctx, &dto.UpdatePoolHealthRequest{UUID: uuid.New().String()})
		assert.ErrorIs(t, err, ErrPoolAccountNotFound)
	})
}

func TestRunMaintenance(t *testing.T) {
	ctx := context.Background()
	repo := newFakePoolRepo()

	// Long-suspended and unhealthy: retired
	stale := repo.add(models.ESPTypeGmail, models.PoolStatusSuspended, 10)
	stale.UpdatedAt = utils.UTCNow().Add(-8 * 24 * time.Hour)

	// Recently suspended: kept
	recent := repo.add(models.ESPTypeGmail, models.PoolStatusSuspended, 10)
	recent.UpdatedAt = utils.UTCNow()

	// Cooldown elapsed: reactivated
	cooled := repo.add(models.ESPTypeGmail, models.PoolStatusCooldown, 55)
	cooled.CooldownUntil = utils.ToPtr(utils.UTCNow().Add(-time.Hour))

	// Cooldown still running: kept
	cooling := repo.add(models.ESPTypeGmail, models.PoolStatusCooldown, 55)
	cooling.CooldownUntil = utils.ToPtr(utils.UTCNow().Add(time.Hour))

	active := repo.add(models.ESPTypeGmail, models.PoolStatusActive, 80)
	active.DailySentCount = 12

	flow := newTestPoolFlow(repo)
	resp, err := flow.RunMaintenance(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, resp.Retired)
	assert.Equal(t, 1, resp.Reactivated)
	assert.Equal(t, int64(4), resp.CountersReset)

	assert.Equal(t, models.PoolStatusRetired, stale.Status)
	assert.Equal(t, models.PoolStatusSuspended, recent.Status)
	assert.Equal(t, models.PoolStatusActive, cooled.Status)
	assert.Equal(t, models.PoolStatusCooldown, cooling.Status)
	assert.Equal(t, 0, active.DailySentCount)
}
