// Package service orchestrates draw loading and budget runs on top of the
// domain packages and optional infrastructure.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/lotoqubo/internal/candidate"
	"github.com/alanyoungcy/lotoqubo/internal/domain"
	"github.com/alanyoungcy/lotoqubo/internal/metrics"
	"github.com/alanyoungcy/lotoqubo/internal/portfolio"
	"github.com/alanyoungcy/lotoqubo/internal/qubo"
)

// OptimizerConfig holds the run parameters.
type OptimizerConfig struct {
	Lambda      float64
	Seed        uint64
	Currency    string
	Concurrency int
	LockTTL     time.Duration
	// WarnAboveVars logs a warning when a problem has more variables than
	// a gate-model backend can comfortably simulate.
	WarnAboveVars int
	Generator     candidate.Config
}

// DefaultOptimizerConfig returns stock parameters.
func DefaultOptimizerConfig() OptimizerConfig {
	return OptimizerConfig{
		Lambda:        qubo.DefaultLambda,
		Seed:          1,
		Currency:      "R$",
		Concurrency:   2,
		LockTTL:       10 * time.Minute,
		WarnAboveVars: 22,
		Generator:     candidate.DefaultConfig(),
	}
}

// RunNotifier announces finished runs.
type RunNotifier interface {
	NotifyRun(ctx context.Context, currency string, run domain.PortfolioRun) error
}

// OptimizerService turns a dataset and a budget into a recommended
// portfolio. Everything after Select is best effort and never changes the
// run outcome.
type OptimizerService struct {
	cfg      OptimizerConfig
	scorer   candidate.Scorer
	solver   domain.Solver
	runs     domain.PortfolioStore
	archiver domain.Archiver
	locks    domain.LockManager
	bus      domain.SignalBus
	notifier RunNotifier
	metrics  *metrics.Metrics
	base     *slog.Logger
	logger   *slog.Logger
	now      func() time.Time
}

// NewOptimizerService creates an OptimizerService. runs, archiver, locks,
// bus and notifier may be nil.
func NewOptimizerService(
	cfg OptimizerConfig,
	scorer candidate.Scorer,
	solver domain.Solver,
	runs domain.PortfolioStore,
	archiver domain.Archiver,
	locks domain.LockManager,
	bus domain.SignalBus,
	notifier RunNotifier,
	m *metrics.Metrics,
	logger *slog.Logger,
) *OptimizerService {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.Lambda == 0 {
		cfg.Lambda = qubo.DefaultLambda
	}
	return &OptimizerService{
		cfg:      cfg,
		scorer:   scorer,
		solver:   solver,
		runs:     runs,
		archiver: archiver,
		locks:    locks,
		bus:      bus,
		notifier: notifier,
		metrics:  m,
		base:     logger,
		logger:   logger.With(slog.String("component", "optimizer_service")),
		now:      time.Now,
	}
}

// Currency returns the configured currency prefix.
func (s *OptimizerService) Currency() string {
	return s.cfg.Currency
}

// RunBudget executes one budget. On failure the returned run has status
// failed with the diagnostic in Error, and the error is returned as well.
func (s *OptimizerService) RunBudget(ctx context.Context, ds *domain.Dataset, budget float64) (domain.PortfolioRun, error) {
	run := domain.PortfolioRun{
		ID:        uuid.NewString(),
		Budget:    budget,
		Lambda:    s.cfg.Lambda,
		CreatedAt: s.now().UTC(),
	}
	started := time.Now()

	if s.locks != nil {
		unlock, err := s.locks.Acquire(ctx, "budget:"+budgetKey(budget), s.cfg.LockTTL)
		if err != nil {
			return s.fail(ctx, run, started, fmt.Errorf("optimizer_service: lock budget %s: %w", budgetKey(budget), err))
		}
		defer unlock()
	}

	problem, ising, err := s.solve(ctx, ds, &run)
	if err != nil {
		return s.fail(ctx, run, started, err)
	}

	run.Status = domain.RunStatusCompleted
	run.Duration = time.Since(started)
	s.logger.InfoContext(ctx, "optimizer_service: budget run completed",
		slog.String("run_id", run.ID),
		slog.Float64("budget", budget),
		slog.String("solver", run.Solver),
		slog.Int("candidates", run.CandidateCount),
		slog.Int("selected", len(run.Selection.Indices)),
		slog.String("total_cost", run.Selection.TotalCost.StringFixed(2)),
		slog.Float64("energy", run.DisplayEnergy),
		slog.Duration("duration", run.Duration),
	)

	s.finish(ctx, run, &problem, &ising)
	return run, nil
}

// RunAll executes every budget independently with bounded concurrency. A
// failing budget shows up as a failed run and never stops the others. The
// result order matches budgets. Only cancellation of ctx is returned as an
// error.
func (s *OptimizerService) RunAll(ctx context.Context, ds *domain.Dataset, budgets []float64) ([]domain.PortfolioRun, error) {
	runs := make([]domain.PortfolioRun, len(budgets))

	var g errgroup.Group
	g.SetLimit(s.cfg.Concurrency)
	for i, budget := range budgets {
		g.Go(func() error {
			runs[i], _ = s.RunBudget(ctx, ds, budget)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return runs, fmt.Errorf("optimizer_service: run all: %w", err)
	}
	return runs, nil
}

// solve runs the pure pipeline: generate, formulate, convert, solve, select.
func (s *OptimizerService) solve(ctx context.Context, ds *domain.Dataset, run *domain.PortfolioRun) (domain.QUBOProblem, domain.IsingProblem, error) {
	gen := candidate.NewGenerator(s.cfg.Generator, s.scorer, candidate.NewSeededRand(s.runSeed(run.Budget)), s.base)
	candidates, err := gen.Generate(ctx, run.Budget, ds)
	if err != nil {
		return domain.QUBOProblem{}, domain.IsingProblem{}, fmt.Errorf("optimizer_service: generate: %w", err)
	}
	run.CandidateCount = len(candidates)

	problem, err := qubo.Formulate(run.Budget, candidates, s.cfg.Lambda)
	if err != nil {
		return domain.QUBOProblem{}, domain.IsingProblem{}, fmt.Errorf("optimizer_service: formulate: %w", err)
	}
	ising := qubo.ToIsing(problem)
	run.Offset = ising.Offset

	if s.cfg.WarnAboveVars > 0 && problem.Size() > s.cfg.WarnAboveVars {
		s.logger.WarnContext(ctx, "optimizer_service: large problem, simulated backends may be slow",
			slog.Float64("budget", run.Budget),
			slog.Int("variables", problem.Size()),
		)
	}

	res, err := s.solver.Solve(ctx, ising)
	if err != nil {
		return problem, ising, fmt.Errorf("optimizer_service: solve: %w", err)
	}
	run.Solver = res.Solver
	run.Bitstring = res.Bitstring
	run.Energy = res.Energy
	run.DisplayEnergy = portfolio.DisplayEnergy(res, ising.Offset)

	sel, err := portfolio.Select(res.Bitstring, candidates)
	if err != nil {
		return problem, ising, fmt.Errorf("optimizer_service: select: %w", err)
	}
	run.Selection = sel
	return problem, ising, nil
}

func (s *OptimizerService) fail(ctx context.Context, run domain.PortfolioRun, started time.Time, err error) (domain.PortfolioRun, error) {
	run.Status = domain.RunStatusFailed
	run.Error = err.Error()
	run.Duration = time.Since(started)

	level := slog.LevelError
	if errors.Is(err, domain.ErrNoCandidates) || errors.Is(err, domain.ErrLockHeld) {
		level = slog.LevelWarn
	}
	s.logger.Log(ctx, level, "optimizer_service: budget run failed",
		slog.String("run_id", run.ID),
		slog.Float64("budget", run.Budget),
		slog.String("error", err.Error()),
	)

	s.finish(ctx, run, nil, nil)
	return run, err
}

// finish persists, archives, publishes and announces a run.
func (s *OptimizerService) finish(ctx context.Context, run domain.PortfolioRun, problem *domain.QUBOProblem, ising *domain.IsingProblem) {
	s.metrics.ObserveRun(string(run.Status), run.Duration, run.CandidateCount, len(run.Selection.Indices))

	if s.runs != nil {
		if err := s.runs.Create(ctx, run); err != nil {
			s.warn(ctx, "persist run failed", run, err)
		}
	}

	if s.archiver != nil && problem != nil && ising != nil {
		if path, err := s.archiver.ArchiveRun(ctx, run, *problem, *ising); err != nil {
			s.warn(ctx, "archive run failed", run, err)
		} else {
			s.logger.DebugContext(ctx, "optimizer_service: archived run", slog.String("path", path))
		}
	}

	if s.bus != nil {
		event := domain.RunEvent{Type: domain.EventPortfolioReady, Run: run}
		if run.Status == domain.RunStatusFailed {
			event.Type = domain.EventPortfolioFailed
		}
		payload, err := json.Marshal(event)
		if err == nil {
			err = s.bus.Publish(ctx, domain.ChannelPortfolio, payload)
		}
		if err != nil {
			s.warn(ctx, "publish run failed", run, err)
		}
	}

	if s.notifier != nil {
		if err := s.notifier.NotifyRun(ctx, s.cfg.Currency, run); err != nil {
			s.warn(ctx, "notify run failed", run, err)
		}
	}
}

func (s *OptimizerService) warn(ctx context.Context, msg string, run domain.PortfolioRun, err error) {
	s.logger.WarnContext(ctx, "optimizer_service: "+msg,
		slog.String("run_id", run.ID),
		slog.String("error", err.Error()),
	)
}

// runSeed derives a per-budget seed so concurrent budgets do not share a
// random source and each budget is reproducible on its own.
func (s *OptimizerService) runSeed(budget float64) uint64 {
	return s.cfg.Seed ^ uint64(budget*100)*0x9e3779b97f4a7c15
}

func budgetKey(budget float64) string {
	return strconv.FormatFloat(budget, 'f', 2, 64)
}
