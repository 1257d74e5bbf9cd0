package solver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/lotoqubo/internal/domain"
)

// Chain tries solvers in preference order and returns the first success.
// It never retries a solver.
type Chain struct {
	solvers []domain.Solver
	timeout time.Duration
	observe func(solver string, d time.Duration, err error)
	logger  *slog.Logger
}

// NewChain creates a Chain. A zero timeout leaves each attempt bounded only
// by the caller's context.
func NewChain(solvers []domain.Solver, timeout time.Duration, logger *slog.Logger) *Chain {
	return &Chain{
		solvers: solvers,
		timeout: timeout,
		logger:  logger.With(slog.String("component", "solver_chain")),
	}
}

// OnAttempt registers a callback invoked after every solver attempt.
func (c *Chain) OnAttempt(fn func(solver string, d time.Duration, err error)) {
	c.observe = fn
}

// Name implements domain.Solver.
func (c *Chain) Name() string { return "chain" }

// Names lists the solvers in order.
func (c *Chain) Names() []string {
	out := make([]string, len(c.solvers))
	for i, s := range c.solvers {
		out[i] = s.Name()
	}
	return out
}

// Solve implements domain.Solver.
func (c *Chain) Solve(ctx context.Context, p domain.IsingProblem) (domain.SolveResult, error) {
	if len(c.solvers) == 0 {
		return domain.SolveResult{}, fmt.Errorf("solver chain: %w: no solvers configured", domain.ErrSolverUnavailable)
	}

	var errs []error
	for _, s := range c.solvers {
		if err := ctx.Err(); err != nil {
			return domain.SolveResult{}, fmt.Errorf("solver chain: %w", err)
		}

		res, err := c.attempt(ctx, s, p)
		if err == nil {
			if res.Solver == "" {
				res.Solver = s.Name()
			}
			return res, nil
		}
		c.logger.WarnContext(ctx, "solver_chain: solver failed, trying next",
			slog.String("solver", s.Name()),
			slog.Int("variables", p.Size()),
			slog.String("error", err.Error()),
		)
		errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
	}
	return domain.SolveResult{}, fmt.Errorf("solver chain: %w: %w", domain.ErrSolverUnavailable, errors.Join(errs...))
}

func (c *Chain) attempt(ctx context.Context, s domain.Solver, p domain.IsingProblem) (domain.SolveResult, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	start := time.Now()
	res, err := s.Solve(ctx, p)
	if err == nil && len(res.Bitstring) != p.Size() {
		err = fmt.Errorf("%w: bitstring length %d, want %d", domain.ErrSolverFailed, len(res.Bitstring), p.Size())
	}
	if c.observe != nil {
		c.observe(s.Name(), time.Since(start), err)
	}
	return res, err
}
