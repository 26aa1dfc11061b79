package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/chasedharmon/nurture-nest-birth/pkg/locks"
	"github.com/chasedharmon/nurture-nest-birth/pkg/persistence"
)

const (
	defaultSweepInterval = time.Minute
	defaultSweepWorkers  = 4
)

// SchedulerOptions configures the resumption sweep. Interval drives a plain
// ticker; CronExpr, when set, replaces it with a cron schedule. Workers bounds
// how many due runs resume in parallel per sweep.
type SchedulerOptions struct {
	Interval time.Duration
	CronExpr string
	Workers  int
}

// Scheduler periodically resumes runs whose wait has elapsed. Each due run
// goes through Executor.Resume, which re-checks status and due time under the
// run lock, so a run resumes at most once per wait expiry even with
// overlapping sweeps or multiple scheduler instances.
type Scheduler struct {
	persistence persistence.Persistence
	executor    *Executor
	logger      *slog.Logger
	interval    time.Duration
	cronExpr    string
	workers     int
	now         func() time.Time

	cron *cron.Cron
	stop chan struct{}
	wg   sync.WaitGroup
}

// NewScheduler creates the resumption scheduler.
func NewScheduler(p persistence.Persistence, executor *Executor, logger *slog.Logger, options SchedulerOptions) *Scheduler {
	interval := options.Interval
	if interval <= 0 {
		interval = defaultSweepInterval
	}

	workers := options.Workers
	if workers <= 0 {
		workers = defaultSweepWorkers
	}

	return &Scheduler{
		persistence: p,
		executor:    executor,
		logger:      logger.With("module", "scheduler"),
		interval:    interval,
		cronExpr:    options.CronExpr,
		workers:     workers,
		now:         time.Now,
		stop:        make(chan struct{}),
	}
}

// Start begins sweeping in the background until Stop is called or the context
// is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.cronExpr != "" {
		s.cron = cron.New()

		_, err := s.cron.AddFunc(s.cronExpr, func() {
			s.Sweep(ctx)
		})
		if err != nil {
			return fmt.Errorf("invalid sweep cron expression %q: %w", s.cronExpr, err)
		}

		s.cron.Start()
		s.logger.InfoContext(ctx, "Scheduler started", "cron", s.cronExpr)

		return nil
	}

	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stop:
				return
			case <-ticker.C:
				s.Sweep(ctx)
			}
		}
	}()

	s.logger.InfoContext(ctx, "Scheduler started", "interval", s.interval)

	return nil
}

// Stop halts sweeping and waits for the current sweep to finish.
func (s *Scheduler) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()

		return
	}

	close(s.stop)
	s.wg.Wait()
}

// Sweep resumes every run whose wait_until has passed. Runs resume
// independently on a bounded worker pool; one failing run never stops the
// sweep.
func (s *Scheduler) Sweep(ctx context.Context) {
	due, err := s.persistence.Runs().DueRuns(ctx, s.now().UTC())
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to query due runs", "error", err)

		return
	}

	if len(due) == 0 {
		return
	}

	s.logger.InfoContext(ctx, "Resuming due runs", "count", len(due))

	ids := make(chan string, len(due))
	for _, run := range due {
		ids <- run.ID
	}

	close(ids)

	var wg sync.WaitGroup

	for range s.workers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for runID := range ids {
				err := s.executor.Resume(ctx, runID)

				switch {
				case errors.Is(err, locks.ErrNotAcquired):
					// Held by another worker; it will finish the resume.
				case err != nil:
					s.logger.ErrorContext(ctx, "Failed to resume run", "run_id", runID, "error", err)
				}
			}
		}()
	}

	wg.Wait()
}
