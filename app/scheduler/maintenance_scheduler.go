// Package scheduler
package scheduler

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	businessflow "github.com/inboxglow/inboxglow/business_flow"
	"github.com/inboxglow/inboxglow/config"
	"github.com/inboxglow/inboxglow/utils"
	"github.com/redis/go-redis/v9"
	"gopkg.in/natefinch/lumberjack.v2"
)

// MaintenanceScheduler periodically runs the daily warmup cycle: pool
// maintenance at the configured UTC hour, then daily scheduling for every
// active session. A redis day lock keeps multi-instance deployments from
// running the same day twice.
type MaintenanceScheduler struct {
	warmupFlow businessflow.WarmupFlow
	poolFlow   businessflow.PoolFlow
	rc         *redis.Client

	warmupCfg config.WarmupConfig
	cacheCfg  config.CacheConfig
	interval  time.Duration
	logger    *log.Logger

	// UTC date maintenance last ran on this instance. The redis day lock
	// guards the fleet; this guards repeat ticks when redis is absent.
	lastMaintained string
}

func NewMaintenanceScheduler(
	warmupFlow businessflow.WarmupFlow,
	poolFlow businessflow.PoolFlow,
	rc *redis.Client,
	warmupCfg config.WarmupConfig,
	cacheCfg config.CacheConfig,
	interval time.Duration,
) *MaintenanceScheduler {
	if interval <= 0 {
		interval = 10 * time.Minute
	}

	s := &MaintenanceScheduler{
		warmupFlow: warmupFlow,
		poolFlow:   poolFlow,
		rc:         rc,
		warmupCfg:  warmupCfg,
		cacheCfg:   cacheCfg,
		interval:   interval,
	}

	if err := s.initSchedulerLogger(); err != nil {
		// Fallback to default stdout logger if file logger init fails
		s.logger = log.Default()
		s.logger.Printf("scheduler: failed to initialize file logger: %v", err)
	}

	return s
}

// initSchedulerLogger configures a logger that writes to both stdout and a rotating file under data/ (or /data)
func (s *MaintenanceScheduler) initSchedulerLogger() error {
	// Prefer relative data/ then fallback to /data for containerized environments
	candidates := []string{
		filepath.Join("data"),
		"/data",
	}
	for _, dir := range candidates {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			continue
		}
		rotating := &lumberjack.Logger{
			Filename:   filepath.Join(dir, "scheduler.log"),
			MaxSize:    50, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		}
		mw := io.MultiWriter(os.Stdout, rotating)
		// log.Logger is goroutine-safe; include timestamps with microseconds and UTC
		s.logger = log.New(mw, "scheduler ", log.LstdFlags|log.Lmicroseconds|log.LUTC)
		return nil
	}
	return fmt.Errorf("could not create scheduler log directory in any candidate location")
}

// Start launches the scheduler loop in a background goroutine and returns a stop function
func (s *MaintenanceScheduler) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.runOnce(ctx)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runOnce(ctx)
			}
		}
	}()

	return cancel
}

func (s *MaintenanceScheduler) runOnce(ctx context.Context) {
	now := utils.UTCNow()
	if now.Hour() < s.warmupCfg.MaintenanceHourUTC {
		return
	}

	// Pool maintenance runs once per day fleet-wide. Daily scheduling runs
	// every tick past the maintenance hour; the per-sender day lock and the
	// schedule entry claim make repeat calls no-ops, which lets sessions
	// started mid-day get their first tasks without waiting until tomorrow.
	if !s.maintainedToday(now) && s.acquireDayLock(ctx, now) {
		s.logger.Printf("scheduler: starting daily maintenance cycle for %s", now.Format("2006-01-02"))
		if resp, err := s.poolFlow.RunMaintenance(ctx); err != nil {
			s.logger.Printf("scheduler: pool maintenance failed: %v", err)
		} else {
			s.markMaintained(now)
			s.logger.Printf("scheduler: pool maintenance done retired=%d reactivated=%d counters_reset=%d",
				resp.Retired, resp.Reactivated, resp.CountersReset)
		}
	}

	s.scheduleActiveSessions(ctx, now)
}

// scheduleActiveSessions pages through active sessions and schedules each
// one's day. Per-sender failures are logged and skipped so one bad session
// cannot stall the rest of the fleet.
func (s *MaintenanceScheduler) scheduleActiveSessions(ctx context.Context, now time.Time) {
	const pageSize = 100

	windowStart := time.Date(now.Year(), now.Month(), now.Day(), s.warmupCfg.MaintenanceHourUTC, 0, 0, 0, time.UTC)
	scheduled := 0
	for offset := 0; ; offset += pageSize {
		sessions, err := s.warmupFlow.ActiveSessions(ctx, pageSize, offset)
		if err != nil {
			s.logger.Printf("scheduler: list active sessions failed: %v", err)
			return
		}
		if len(sessions) == 0 {
			break
		}

		for _, session := range sessions {
			resp, err := s.warmupFlow.ScheduleDailyWarmup(ctx, session.SenderAccountID)
			if err != nil {
				s.logger.Printf("scheduler: daily scheduling failed for sender id=%d: %v", session.SenderAccountID, err)
				continue
			}
			if resp.Skipped {
				// Repeat-tick dedup skips are expected and not worth logging
				if resp.Message != "Already scheduled today" {
					s.logger.Printf("scheduler: sender id=%d skipped: %s", session.SenderAccountID, resp.Message)
				}
				continue
			}
			scheduled++
			s.logger.Printf("scheduler: sender id=%d scheduled volume=%d partners=%d tasks=%d",
				session.SenderAccountID, resp.TargetVolume, resp.PartnersUsed, resp.TasksEnqueued)

			if err := s.warmupFlow.EnqueueReputationCheck(ctx, session, windowStart); err != nil {
				s.logger.Printf("scheduler: reputation check enqueue failed for sender id=%d: %v", session.SenderAccountID, err)
			}
		}

		if len(sessions) < pageSize {
			break
		}
	}

	if scheduled > 0 {
		s.logger.Printf("scheduler: daily cycle complete, %d sessions scheduled", scheduled)
	}
}

// maintainedToday reports whether maintenance already ran for now's UTC date
// on this instance
func (s *MaintenanceScheduler) maintainedToday(now time.Time) bool {
	return s.lastMaintained == now.Format("2006-01-02")
}

func (s *MaintenanceScheduler) markMaintained(now time.Time) {
	s.lastMaintained = now.Format("2006-01-02")
}

// acquireDayLock claims the fleet-wide maintenance lock for the day.
// Without redis the local date guard prevents repeat runs on this instance.
func (s *MaintenanceScheduler) acquireDayLock(ctx context.Context, now time.Time) bool {
	if s.rc == nil {
		return true
	}

	key := fmt.Sprintf("%smaintenance:%s", s.cacheCfg.RedisPrefix, now.Format("2006-01-02"))
	ok, err := s.rc.SetNX(ctx, key, "1", 24*time.Hour).Result()
	if err != nil {
		s.logger.Printf("scheduler: maintenance lock unavailable, proceeding: %v", err)
		return true
	}
	return ok
}
