// Package retention runs the expired-message sweep on a cron schedule.
package retention

import (
	"context"
	"fmt"
	"time"

	"transport-connect/internal/general/logger"

	"github.com/adhocore/gronx"
)

const (
	retryAfter = 30 * time.Second
	runTimeout = time.Minute
)

// Purger removes everything that expired before now.
type Purger interface {
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// Scheduler fires Purger on every tick of a cron expression. Runs never
// overlap: the next tick is computed after the current run returns.
type Scheduler struct {
	logger *logger.Logger
	purger Purger
	cron   string
	now    func() time.Time
	after  func(time.Duration) <-chan time.Time
}

func NewScheduler(logger *logger.Logger, purger Purger, cron string) (*Scheduler, error) {
	if !gronx.IsValid(cron) {
		return nil, fmt.Errorf("invalid retention cron expression: %q", cron)
	}
	return &Scheduler{
		logger: logger,
		purger: purger,
		cron:   cron,
		now:    time.Now,
		after:  time.After,
	}, nil
}

// Next returns the first tick strictly after ref.
func (s *Scheduler) Next(ref time.Time) (time.Time, error) {
	return gronx.NextTickAfter(s.cron, ref.UTC(), false)
}

// Run blocks until ctx ends.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info(ctx, "retention_scheduler_started", "Retention sweeper scheduled", map[string]any{"cron": s.cron})
	for {
		next, err := s.Next(s.now())
		wait := retryAfter
		if err != nil {
			s.logger.Error(ctx, "retention_nexttick_failed", "Failed to compute next retention tick", err,
				map[string]any{"cron": s.cron})
		} else {
			wait = max(next.Sub(s.now()), 0)
		}

		select {
		case <-ctx.Done():
			s.logger.Info(ctx, "retention_scheduler_stopping", "Retention sweeper stopped", nil)
			return
		case <-s.after(wait):
		}
		if err == nil {
			s.RunOnce(ctx)
		}
	}
}

// RunOnce purges expired messages and logs the outcome.
func (s *Scheduler) RunOnce(ctx context.Context) int64 {
	rctx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	started := s.now()
	n, err := s.purger.PurgeExpired(rctx, started.UTC())
	if err != nil {
		s.logger.Error(ctx, "retention_run_failed", "Retention sweep failed", err, nil)
		return 0
	}
	s.logger.Info(ctx, "retention_run_completed", "Retention sweep completed", map[string]any{
		"purged":      n,
		"duration_ms": s.now().Sub(started).Milliseconds(),
	})
	return n
}
