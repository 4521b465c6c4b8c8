package businessflow

import (
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/inboxglow/inboxglow/app/services"
	"github.com/inboxglow/inboxglow/config"
	"github.com/inboxglow/inboxglow/models"
	"github.com/inboxglow/inboxglow/utils"
)

// SendingWindow is one daypart slice of the sending day, hours in UTC.
// The five windows and their weights approximate natural business-hour
// traffic shape.
type SendingWindow struct {
	StartHour int
	EndHour   int
	Weight    int // percent share of the day's exchanges
}

// SendingWindows returns the fixed daypart windows in day order
func SendingWindows() []SendingWindow {
	return []SendingWindow{
		{StartHour: 8, EndHour: 10, Weight: 25},
		{StartHour: 10, EndHour: 12, Weight: 20},
		{StartHour: 12, EndHour: 14, Weight: 25},
		{StartHour: 14, EndHour: 17, Weight: 20},
		{StartHour: 17, EndHour: 20, Weight: 10},
	}
}

// WindowForExchange maps exchange i of n onto a window index so that the
// day's exchanges split across windows proportionally to window weight
func WindowForExchange(i, n int) int {
	windows := SendingWindows()
	if n <= 0 {
		return 0
	}

	position := (float64(i) + 0.5) / float64(n)
	cumulative := 0.0
	for idx, w := range windows {
		cumulative += float64(w.Weight) / 100.0
		if position <= cumulative {
			return idx
		}
	}
	return len(windows) - 1
}

// PauseDecision is the outcome of the pause gate. Every pause carries an
// attributable human-readable reason; there is no silent pause.
type PauseDecision struct {
	ShouldPause bool
	Reason      string
}

// RampFlow computes daily target volumes, builds ramp schedules, evaluates
// the pause gate, and shapes task timing within the sending day
type RampFlow interface {
	DayVolume(profileName string, day int, date time.Time) int
	BuildSchedule(profileName string, senderAccountID, sessionID uint, startDate time.Time, startDay int) []*models.RampScheduleEntry
	CheckPauseConditions(profileName string, score ReputationScore, window models.RollingMetrics) PauseDecision
	SendTimeFor(date time.Time, exchangeIndex, totalExchanges int) time.Time
	ReceiveDelay() time.Duration
	EngageDelay() (time.Duration, bool)
	EngageAction() services.EngagementAction
}

type RampFlowImpl struct {
	warmupCfg *config.WarmupConfig
	holidays  map[string]bool

	mu  sync.Mutex
	rng *rand.Rand
}

func NewRampFlow(warmupCfg *config.WarmupConfig, seed int64) RampFlow {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &RampFlowImpl{
		warmupCfg: warmupCfg,
		holidays:  warmupCfg.HolidayDates(),
		rng:       rand.New(rand.NewSource(seed)),
	}
}

// DayVolume computes the target exchange volume for the given warmup day.
// The linear ramp is capped at the profile maximum, then weekend damping
// applies, then holidays halve whatever is left. The result never drops
// below 1 while the ramp is live.
func (s *RampFlowImpl) DayVolume(profileName string, day int, date time.Time) int {
	profile := s.warmupCfg.Profile(profileName)
	return calculateDayVolume(profile, day, date, s.holidays)
}

func calculateDayVolume(profile config.RampProfileConfig, day int, date time.Time, holidays map[string]bool) int {
	if day < 1 {
		day = 1
	}

	volume := profile.StartingVolume + (day-1)*profile.DailyIncrement
	if volume > profile.MaxDailyVolume {
		volume = profile.MaxDailyVolume
	}

	if utils.IsWeekend(date) {
		volume = int(math.Floor(float64(volume) * (1 - profile.WeekendReduction)))
		if volume < 1 {
			volume = 1
		}
	}

	if holidays[utils.UTCDate(date).Format("2006-01-02")] {
		volume = int(math.Floor(float64(volume) * 0.5))
		if volume < 1 {
			volume = 1
		}
	}

	return volume
}

// BuildSchedule produces one entry per calendar day of the horizon starting
// at startDate. Day numbering starts at startDay so a resumed session keeps
// its ramp progress instead of resetting to day 1. Every entry is created
// scheduled; the daily run claims a day by flipping its entry to current, so
// exactly one scheduler generates tasks for it.
func (s *RampFlowImpl) BuildSchedule(profileName string, senderAccountID, sessionID uint, startDate time.Time, startDay int) []*models.RampScheduleEntry {
	if startDay < 1 {
		startDay = 1
	}
	horizon := s.warmupCfg.HorizonDays
	if horizon < 1 {
		horizon = 1
	}

	entries := make([]*models.RampScheduleEntry, 0, horizon)
	base := utils.UTCDate(startDate)
	for i := 0; i < horizon; i++ {
		date := base.AddDate(0, 0, i)
		day := startDay + i

		entries = append(entries, &models.RampScheduleEntry{
			SessionID:       sessionID,
			SenderAccountID: senderAccountID,
			Day:             day,
			Date:            date,
			TargetVolume:    s.DayVolume(profileName, day, date),
			Status:          models.RampEntryScheduled,
			CreatedAt:       utils.UTCNow(),
			UpdatedAt:       utils.UTCNow(),
		})
	}

	return entries
}

// CheckPauseConditions evaluates the pause gate in strict precedence order:
// overall reputation, then bounce rate, then spam rate, then engagement.
// A window without sends carries no evidence: the unproven neutral score
// must not trip the thresholds. The engagement check only applies once the
// window holds enough deliveries to be meaningful.
func (s *RampFlowImpl) CheckPauseConditions(profileName string, score ReputationScore, window models.RollingMetrics) PauseDecision {
	profile := s.warmupCfg.Profile(profileName)

	if window.Sent == 0 {
		return PauseDecision{}
	}

	if score.Overall < profile.HealthPauseThreshold {
		return PauseDecision{
			ShouldPause: true,
			Reason: fmt.Sprintf("Health score %.1f below pause threshold %.1f",
				score.Overall, profile.HealthPauseThreshold),
		}
	}

	if window.BounceRate() > profile.BounceRatePause {
		return PauseDecision{
			ShouldPause: true,
			Reason: fmt.Sprintf("Bounce rate %.2f%% exceeds limit %.2f%%",
				window.BounceRate()*100, profile.BounceRatePause*100),
		}
	}

	if window.SpamRate() > profile.SpamRatePause {
		return PauseDecision{
			ShouldPause: true,
			Reason: fmt.Sprintf("Spam rate %.2f%% exceeds limit %.2f%%",
				window.SpamRate()*100, profile.SpamRatePause*100),
		}
	}

	if window.Delivered > s.warmupCfg.EngagementGateFloor && window.EngagementRate() < profile.MinEngagementRate {
		return PauseDecision{
			ShouldPause: true,
			Reason: fmt.Sprintf("Engagement rate %.2f%% below minimum %.2f%%",
				window.EngagementRate()*100, profile.MinEngagementRate*100),
		}
	}

	return PauseDecision{}
}

// SendTimeFor places one exchange inside its daypart window: uniformly
// random across the window span, then jittered so repeated days never show
// an identical minute pattern
func (s *RampFlowImpl) SendTimeFor(date time.Time, exchangeIndex, totalExchanges int) time.Time {
	windows := SendingWindows()
	w := windows[WindowForExchange(exchangeIndex, totalExchanges)]

	base := utils.UTCDate(date)
	spanMinutes := (w.EndHour - w.StartHour) * 60

	s.mu.Lock()
	offset := s.rng.Intn(spanMinutes)
	jitter := s.rng.Int63n(int64(2*s.warmupCfg.SendJitter)) - int64(s.warmupCfg.SendJitter)
	s.mu.Unlock()

	at := base.Add(time.Duration(w.StartHour)*time.Hour +
		time.Duration(offset)*time.Minute +
		time.Duration(jitter))

	// Jitter must not escape the sending day
	dayStart := base.Add(time.Duration(windows[0].StartHour) * time.Hour)
	dayEnd := base.Add(time.Duration(windows[len(windows)-1].EndHour) * time.Hour)
	if at.Before(dayStart) {
		at = dayStart
	}
	if at.After(dayEnd) {
		at = dayEnd
	}

	return at
}

// ReceiveDelay returns how long after a send the partner's reply-in-kind runs
func (s *RampFlowImpl) ReceiveDelay() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.randomDelayLocked(s.warmupCfg.ReceiveDelayMin, s.warmupCfg.ReceiveDelayMax)
}

// EngageDelay rolls whether this exchange gets an engagement action and when.
// Full engagement would itself look synthetic, so only a fraction of
// exchanges engage.
func (s *RampFlowImpl) EngageDelay() (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rng.Float64() >= s.warmupCfg.EngageProbability {
		return 0, false
	}
	return s.randomDelayLocked(s.warmupCfg.EngageDelayMin, s.warmupCfg.EngageDelayMax), true
}

// EngageAction rolls which action an engaged exchange performs. Most
// engagements are opens; a smaller configured share replies.
func (s *RampFlowImpl) EngageAction() services.EngagementAction {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rng.Float64() < s.warmupCfg.EngageReplyRatio {
		return services.ActionReply
	}
	return services.ActionOpen
}

func (s *RampFlowImpl) randomDelayLocked(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(s.rng.Int63n(int64(max-min)))
}
