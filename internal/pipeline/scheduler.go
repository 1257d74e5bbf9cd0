// Package pipeline runs the recurring jobs of a long-lived deployment: the
// draw history refresh and, optionally, a scheduled multi-budget run.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/lotoqubo/internal/domain"
)

// DrawJobs is the part of the draw service the scheduler drives.
type DrawJobs interface {
	Refresh(ctx context.Context) (int, error)
	Load(ctx context.Context) (*domain.Dataset, error)
}

// BudgetRunner runs a batch of budgets against one dataset.
type BudgetRunner interface {
	RunAll(ctx context.Context, ds *domain.Dataset, budgets []float64) ([]domain.PortfolioRun, error)
}

// Config holds the schedules. Expressions use the 5-field cron format
// (minute hour day-of-month month day-of-week). An empty OptimizeCron
// disables scheduled runs.
type Config struct {
	RefreshCron  string
	OptimizeCron string
	Budgets      []float64
	Location     *time.Location
}

// Scheduler fires the jobs on their schedules and on manual triggers.
type Scheduler struct {
	draws     DrawJobs
	optimizer BudgetRunner
	budgets   []float64
	loc       *time.Location
	refresh   cron.Schedule
	optimize  cron.Schedule
	refreshes chan struct{}
	logger    *slog.Logger
	now       func() time.Time
}

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// NewScheduler parses the schedules. optimizer may be nil when OptimizeCron
// is empty.
func NewScheduler(cfg Config, draws DrawJobs, optimizer BudgetRunner, logger *slog.Logger) (*Scheduler, error) {
	refresh, err := parser.Parse(cfg.RefreshCron)
	if err != nil {
		return nil, fmt.Errorf("pipeline: parse refresh cron %q: %w", cfg.RefreshCron, err)
	}

	s := &Scheduler{
		draws:     draws,
		optimizer: optimizer,
		budgets:   cfg.Budgets,
		loc:       cfg.Location,
		refresh:   refresh,
		refreshes: make(chan struct{}, 1),
		logger:    logger.With(slog.String("component", "scheduler")),
		now:       time.Now,
	}
	if s.loc == nil {
		s.loc = time.UTC
	}

	if cfg.OptimizeCron != "" {
		if optimizer == nil {
			return nil, fmt.Errorf("pipeline: optimize cron set without an optimizer")
		}
		if s.optimize, err = parser.Parse(cfg.OptimizeCron); err != nil {
			return nil, fmt.Errorf("pipeline: parse optimize cron %q: %w", cfg.OptimizeCron, err)
		}
	}
	return s, nil
}

// TriggerRefresh queues a refresh outside the schedule. It reports false
// when one is already queued.
func (s *Scheduler) TriggerRefresh() bool {
	select {
	case s.refreshes <- struct{}{}:
		return true
	default:
		return false
	}
}

// Run blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.InfoContext(ctx, "scheduler starting",
		slog.Time("next_refresh", s.refresh.Next(s.now().In(s.loc))),
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.loop(ctx, "refresh", s.refresh, s.refreshes, s.RefreshOnce)
	})
	if s.optimize != nil {
		g.Go(func() error {
			return s.loop(ctx, "optimize", s.optimize, nil, s.OptimizeOnce)
		})
	}

	err := g.Wait()
	if ctx.Err() != nil {
		s.logger.Info("scheduler stopped")
		return nil
	}
	return err
}

// RefreshOnce refreshes the draw history.
func (s *Scheduler) RefreshOnce(ctx context.Context) error {
	n, err := s.draws.Refresh(ctx)
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "scheduled refresh done", slog.Int("draws", n))
	return nil
}

// OptimizeOnce loads the dataset and runs the configured budgets.
func (s *Scheduler) OptimizeOnce(ctx context.Context) error {
	ds, err := s.draws.Load(ctx)
	if err != nil {
		return fmt.Errorf("pipeline: load dataset: %w", err)
	}
	runs, err := s.optimizer.RunAll(ctx, ds, s.budgets)
	if err != nil {
		return err
	}
	failed := 0
	for _, r := range runs {
		if r.Status == domain.RunStatusFailed {
			failed++
		}
	}
	s.logger.InfoContext(ctx, "scheduled optimize done",
		slog.Int("budgets", len(runs)),
		slog.Int("failed", failed),
	)
	return nil
}

// loop runs job at every activation of sched or receive on manual. Job
// errors are logged and never stop the loop.
func (s *Scheduler) loop(ctx context.Context, name string, sched cron.Schedule, manual <-chan struct{}, job func(context.Context) error) error {
	for {
		now := s.now().In(s.loc)
		next := sched.Next(now)
		timer := time.NewTimer(next.Sub(now))

		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		case <-manual:
			timer.Stop()
			s.logger.InfoContext(ctx, "manual trigger", slog.String("job", name))
		}

		if err := job(ctx); err != nil {
			s.logger.ErrorContext(ctx, "scheduled job failed",
				slog.String("job", name),
				slog.String("error", err.Error()),
			)
		}
	}
}
