// Package scheduler drives the locked -> ready reconciliation: a foreground
// ticker while a relevant screen is visible, and an OS-style periodic
// background task that also hands freshly-ready capsules to the notification
// collaborator.
package scheduler

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"timecapsule/internal/ops"
)

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Scheduler owns both reconciliation drivers. Construct with New; the
// database handle and notifier are injected, never global.
type Scheduler struct {
	db       *sql.DB
	notifier Notifier
	log      *slog.Logger

	interval time.Duration
	cronSpec string

	cron *cron.Cron
}

// New creates a Scheduler. interval is the foreground tick cadence (1s if
// zero); cronSpec the background cadence ("*/15 * * * *" if empty).
func New(database *sql.DB, notifier Notifier, log *slog.Logger, interval time.Duration, cronSpec string) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	if interval <= 0 {
		interval = time.Second
	}
	if cronSpec == "" {
		cronSpec = "*/15 * * * *"
	}
	return &Scheduler{
		db:       database,
		notifier: notifier,
		log:      log,
		interval: interval,
		cronSpec: cronSpec,
	}
}

// RunForeground ticks until ctx is cancelled, promoting pending capsules on
// each tick. A failed tick is logged and the cadence continues unaffected.
func (s *Scheduler) RunForeground(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			count, err := ops.UpdatePending(ctx, s.db)
			if err != nil {
				s.log.Error("foreground reconciliation tick failed", "error", err)
				continue
			}
			if count > 0 {
				s.log.Info("promoted pending capsules", "count", count)
			}
		}
	}
}

// RunOnce is a single background reconciliation run: collect the due set,
// promote it, then hand each freshly-ready capsule to the notifier. Notifier
// failures are logged per item and never fail the run. The returned error is
// the run's status for the OS scheduler, which retries per its own policy.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	due, err := ops.ListDueForNotification(ctx, s.db)
	if err != nil {
		return fmt.Errorf("list due capsules: %w", err)
	}

	count, err := ops.UpdatePending(ctx, s.db)
	if err != nil {
		return fmt.Errorf("promote pending capsules: %w", err)
	}
	if count > 0 {
		s.log.Info("background reconciliation promoted capsules", "count", count)
	}

	if s.notifier == nil {
		return nil
	}
	for _, c := range due {
		if err := s.notifier.Schedule(ctx, *c); err != nil {
			s.log.Warn("failed to schedule notification", "capsule_id", c.ID, "error", err)
		}
	}

	return nil
}

// StartBackground begins the periodic background task on the configured cron
// cadence. Run failures are caught at the task boundary and logged, never
// propagated into the host process.
func (s *Scheduler) StartBackground(ctx context.Context) error {
	sched, err := cronParser.Parse(s.cronSpec)
	if err != nil {
		return fmt.Errorf("invalid background cron spec %q: %w", s.cronSpec, err)
	}

	c := cron.New(cron.WithParser(cronParser))
	c.Schedule(sched, cron.FuncJob(func() {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Error("background reconciliation run failed", "error", err)
		}
	}))
	c.Start()
	s.cron = c

	return nil
}

// Stop halts the background task. Safe to call when never started.
func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
		s.cron = nil
	}
}
