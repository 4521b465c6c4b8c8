package businessflow

import (
	"testing"
	"time"

	"github.com/inboxglow/inboxglow/app/services"
	"github.com/inboxglow/inboxglow/config"
	"github.com/inboxglow/inboxglow/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testWarmupConfig() *config.WarmupConfig {
	return &config.WarmupConfig{
		DefaultProfile: "moderate",
		Conservative: config.RampProfileConfig{
			Name:                 "conservative",
			StartingVolume:       2,
			DailyIncrement:       1,
			MaxDailyVolume:       20,
			WeekendReduction:     0.5,
			HealthPauseThreshold: 70,
			BounceRatePause:      0.03,
			SpamRatePause:        0.01,
			MinEngagementRate:    0.15,
		},
		Moderate: config.RampProfileConfig{
			Name:                 "moderate",
			StartingVolume:       5,
			DailyIncrement:       2,
			MaxDailyVolume:       50,
			WeekendReduction:     0.4,
			HealthPauseThreshold: 65,
			BounceRatePause:      0.05,
			SpamRatePause:        0.02,
			MinEngagementRate:    0.10,
		},
		Aggressive: config.RampProfileConfig{
			Name:                 "aggressive",
			StartingVolume:       10,
			DailyIncrement:       5,
			MaxDailyVolume:       100,
			WeekendReduction:     0.25,
			HealthPauseThreshold: 60,
			BounceRatePause:      0.07,
			SpamRatePause:        0.03,
			MinEngagementRate:    0.05,
		},
		HorizonDays:         30,
		SendJitter:          30 * time.Minute,
		ReceiveDelayMin:     30 * time.Minute,
		ReceiveDelayMax:     90 * time.Minute,
		EngageDelayMin:      5 * time.Minute,
		EngageDelayMax:      35 * time.Minute,
		EngageProbability:   0.7,
		EngageReplyRatio:    0.25,
		MetricsWindowDays:   7,
		EngagementGateFloor: 50,
		MaintenanceHourUTC:  2,
		Holidays:            []string{"2026-01-01"},
	}
}

// fixed weekdays and weekend days for volume tests
var (
	testWednesday = time.Date(2026, 1, 7, 0, 0, 0, 0, time.UTC)
	testSaturday  = time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	testNewYear   = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) // Thursday, configured holiday
)

func TestDayVolume(t *testing.T) {
	flow := NewRampFlow(testWarmupConfig(), 1)

	t.Run("moderate ramp on day 10", func(t *testing.T) {
		// 5 + 9*2
		assert.Equal(t, 23, flow.DayVolume("moderate", 10, testWednesday))
	})

	t.Run("ramp caps at profile maximum", func(t *testing.T) {
		assert.Equal(t, 50, flow.DayVolume("moderate", 100, testWednesday))
		assert.Equal(t, 20, flow.DayVolume("conservative", 100, testWednesday))
	})

	t.Run("day below one treated as day one", func(t *testing.T) {
		assert.Equal(t, 5, flow.DayVolume("moderate", 0, testWednesday))
	})

	t.Run("weekend damping", func(t *testing.T) {
		// floor(23 * 0.6)
		assert.Equal(t, 13, flow.DayVolume("moderate", 10, testSaturday))
	})

	t.Run("holiday halves the volume", func(t *testing.T) {
		// floor(23 * 0.5)
		assert.Equal(t, 11, flow.DayVolume("moderate", 10, testNewYear))
	})

	t.Run("volume never drops below one", func(t *testing.T) {
		assert.Equal(t, 1, flow.DayVolume("conservative", 1, testSaturday))
	})

	t.Run("unknown profile falls back to the default", func(t *testing.T) {
		assert.Equal(t, flow.DayVolume("moderate", 10, testWednesday),
			flow.DayVolume("no-such-profile", 10, testWednesday))
	})
}

func TestBuildSchedule(t *testing.T) {
	flow := NewRampFlow(testWarmupConfig(), 1)

	t.Run("full horizon from day one", func(t *testing.T) {
		entries := flow.BuildSchedule("moderate", 11, 22, testWednesday, 1)
		require.Len(t, entries, 30)

		assert.Equal(t, 1, entries[0].Day)
		assert.Equal(t, testWednesday, entries[0].Date)
		assert.Equal(t, uint(11), entries[0].SenderAccountID)
		assert.Equal(t, uint(22), entries[0].SessionID)

		// every entry starts scheduled; the daily run claims its day
		for i, e := range entries {
			assert.Equal(t, models.RampEntryScheduled, e.Status)
			assert.Equal(t, i+1, e.Day)
		}

		assert.Equal(t, testWednesday.AddDate(0, 0, 29), entries[29].Date)
	})

	t.Run("resume keeps ramp progress", func(t *testing.T) {
		entries := flow.BuildSchedule("moderate", 11, 22, testWednesday, 12)
		require.Len(t, entries, 30)

		assert.Equal(t, 12, entries[0].Day)
		// 5 + 11*2 = 27 on a weekday
		assert.Equal(t, 27, entries[0].TargetVolume)
	})
}

func TestCheckPauseConditions(t *testing.T) {
	flow := NewRampFlow(testWarmupConfig(), 1)
	healthy := ReputationScore{Overall: 80}

	t.Run("healthy window does not pause", func(t *testing.T) {
		d := flow.CheckPauseConditions("moderate", healthy, models.RollingMetrics{
			Sent: 100, Delivered: 96, Bounced: 2, Opened: 40, Replied: 10,
		})
		assert.False(t, d.ShouldPause)
		assert.Empty(t, d.Reason)
	})

	t.Run("overall score checked first", func(t *testing.T) {
		d := flow.CheckPauseConditions("moderate", ReputationScore{Overall: 40}, models.RollingMetrics{
			Sent: 100, Bounced: 50,
		})
		assert.True(t, d.ShouldPause)
		assert.Contains(t, d.Reason, "Health score")
	})

	t.Run("bounce rate boundary", func(t *testing.T) {
		// 4% stays under the 5% moderate limit
		d := flow.CheckPauseConditions("moderate", healthy, models.RollingMetrics{
			Sent: 100, Delivered: 96, Bounced: 4, Opened: 40,
		})
		assert.False(t, d.ShouldPause)

		// 6% crosses it
		d = flow.CheckPauseConditions("moderate", healthy, models.RollingMetrics{
			Sent: 100, Delivered: 94, Bounced: 6, Opened: 40,
		})
		assert.True(t, d.ShouldPause)
		assert.Contains(t, d.Reason, "Bounce rate")
	})

	t.Run("spam rate checked before engagement", func(t *testing.T) {
		d := flow.CheckPauseConditions("moderate", healthy, models.RollingMetrics{
			Sent: 100, Delivered: 97, SpamReports: 3,
		})
		assert.True(t, d.ShouldPause)
		assert.Contains(t, d.Reason, "Spam rate")
	})

	t.Run("window without sends never pauses", func(t *testing.T) {
		// a fresh sender has a neutral score and no evidence either way
		d := flow.CheckPauseConditions("moderate", ReputationScore{Overall: 50}, models.RollingMetrics{})
		assert.False(t, d.ShouldPause)
		assert.Empty(t, d.Reason)
	})

	t.Run("engagement gate needs enough deliveries", func(t *testing.T) {
		// delivered below the floor, terrible engagement tolerated
		d := flow.CheckPauseConditions("moderate", healthy, models.RollingMetrics{
			Sent: 40, Delivered: 40,
		})
		assert.False(t, d.ShouldPause)

		// above the floor the same engagement pauses
		d = flow.CheckPauseConditions("moderate", healthy, models.RollingMetrics{
			Sent: 60, Delivered: 60,
		})
		assert.True(t, d.ShouldPause)
		assert.Contains(t, d.Reason, "Engagement rate")
	})
}

func TestWindowForExchange(t *testing.T) {
	t.Run("distribution follows window weights", func(t *testing.T) {
		n := 100
		counts := make(map[int]int)
		for i := 0; i < n; i++ {
			counts[WindowForExchange(i, n)]++
		}

		assert.Equal(t, 25, counts[0])
		assert.Equal(t, 20, counts[1])
		assert.Equal(t, 25, counts[2])
		assert.Equal(t, 20, counts[3])
		assert.Equal(t, 10, counts[4])
	})

	t.Run("single exchange lands mid-day", func(t *testing.T) {
		// position 0.5 falls in the third window
		assert.Equal(t, 2, WindowForExchange(0, 1))
	})

	t.Run("degenerate input", func(t *testing.T) {
		assert.Equal(t, 0, WindowForExchange(0, 0))
	})
}

func TestSendTimeFor(t *testing.T) {
	flow := NewRampFlow(testWarmupConfig(), 42)

	dayStart := testWednesday.Add(8 * time.Hour)
	dayEnd := testWednesday.Add(20 * time.Hour)

	for i := 0; i < 50; i++ {
		at := flow.SendTimeFor(testWednesday, i, 50)
		assert.False(t, at.Before(dayStart), "send time %v before sending day start", at)
		assert.False(t, at.After(dayEnd), "send time %v after sending day end", at)
	}
}

func TestReceiveDelay(t *testing.T) {
	flow := NewRampFlow(testWarmupConfig(), 42)

	for i := 0; i < 100; i++ {
		d := flow.ReceiveDelay()
		assert.GreaterOrEqual(t, d, 30*time.Minute)
		assert.Less(t, d, 90*time.Minute)
	}
}

func TestEngageDelay(t *testing.T) {
	t.Run("probability zero never engages", func(t *testing.T) {
		cfg := testWarmupConfig()
		cfg.EngageProbability = 0
		flow := NewRampFlow(cfg, 42)

		for i := 0; i < 50; i++ {
			_, ok := flow.EngageDelay()
			assert.False(t, ok)
		}
	})

	t.Run("probability one always engages within bounds", func(t *testing.T) {
		cfg := testWarmupConfig()
		cfg.EngageProbability = 1
		flow := NewRampFlow(cfg, 42)

		for i := 0; i < 50; i++ {
			d, ok := flow.EngageDelay()
			assert.True(t, ok)
			assert.GreaterOrEqual(t, d, 5*time.Minute)
			assert.Less(t, d, 35*time.Minute)
		}
	})
}

func TestEngageAction(t *testing.T) {
	t.Run("ratio zero always opens", func(t *testing.T) {
		cfg := testWarmupConfig()
		cfg.EngageReplyRatio = 0
		flow := NewRampFlow(cfg, 42)

		for i := 0; i < 50; i++ {
			assert.Equal(t, services.ActionOpen, flow.EngageAction())
		}
	})

	t.Run("ratio one always replies", func(t *testing.T) {
		cfg := testWarmupConfig()
		cfg.EngageReplyRatio = 1
		flow := NewRampFlow(cfg, 42)

		for i := 0; i < 50; i++ {
			assert.Equal(t, services.ActionReply, flow.EngageAction())
		}
	})
}
