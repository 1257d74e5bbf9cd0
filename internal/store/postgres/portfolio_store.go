package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/lotoqubo/internal/domain"
)

// PortfolioStore implements domain.PortfolioStore using PostgreSQL.
type PortfolioStore struct {
	pool *pgxpool.Pool
}

// NewPortfolioStore creates a PortfolioStore backed by the given pool.
func NewPortfolioStore(pool *pgxpool.Pool) *PortfolioStore {
	return &PortfolioStore{pool: pool}
}

const portfolioColumns = `
	id::text, budget::float8, lambda, solver, bitstring, energy, display_energy,
	ising_offset, candidate_count, selection, total_cost::text, total_score,
	status, error, duration_ms, created_at`

// Create inserts a run. The selection is stored as JSONB.
func (s *PortfolioStore) Create(ctx context.Context, run domain.PortfolioRun) error {
	sel, err := json.Marshal(run.Selection)
	if err != nil {
		return fmt.Errorf("postgres: marshal selection: %w", err)
	}
	const query = `
		INSERT INTO portfolio_runs (
			id, budget, lambda, solver, bitstring, energy, display_energy,
			ising_offset, candidate_count, selection, total_cost, total_score,
			status, error, duration_ms, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9, $10, $11, $12,
			$13, $14, $15, $16
		)`
	_, err = s.pool.Exec(ctx, query,
		run.ID, run.Budget, run.Lambda, run.Solver, run.Bitstring, run.Energy, run.DisplayEnergy,
		run.Offset, run.CandidateCount, sel, run.Selection.TotalCost.StringFixed(2), run.Selection.TotalScore,
		string(run.Status), run.Error, run.Duration.Milliseconds(), run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create portfolio run %s: %w", run.ID, err)
	}
	return nil
}

// GetByID returns a run or domain.ErrNotFound.
func (s *PortfolioStore) GetByID(ctx context.Context, id string) (domain.PortfolioRun, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+portfolioColumns+` FROM portfolio_runs WHERE id = $1`, id)
	run, err := scanPortfolioRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.PortfolioRun{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.PortfolioRun{}, fmt.Errorf("postgres: get portfolio run %s: %w", id, err)
	}
	return run, nil
}

// ListRecent returns the newest runs first.
func (s *PortfolioStore) ListRecent(ctx context.Context, limit int) ([]domain.PortfolioRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+portfolioColumns+` FROM portfolio_runs ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list portfolio runs: %w", err)
	}
	runs, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.PortfolioRun, error) {
		return scanPortfolioRun(r)
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: list portfolio runs: %w", err)
	}
	return runs, nil
}

func scanPortfolioRun(row pgx.Row) (domain.PortfolioRun, error) {
	var (
		run        domain.PortfolioRun
		selJSON    []byte
		totalCost  string
		status     string
		durationMs int64
	)
	err := row.Scan(
		&run.ID, &run.Budget, &run.Lambda, &run.Solver, &run.Bitstring, &run.Energy, &run.DisplayEnergy,
		&run.Offset, &run.CandidateCount, &selJSON, &totalCost, &run.Selection.TotalScore,
		&status, &run.Error, &durationMs, &run.CreatedAt,
	)
	if err != nil {
		return domain.PortfolioRun{}, err
	}
	if len(selJSON) > 0 {
		if err := json.Unmarshal(selJSON, &run.Selection); err != nil {
			return domain.PortfolioRun{}, fmt.Errorf("unmarshal selection: %w", err)
		}
	}
	if run.Selection.TotalCost, err = decimal.NewFromString(totalCost); err != nil {
		return domain.PortfolioRun{}, fmt.Errorf("parse total cost %q: %w", totalCost, err)
	}
	run.Status = domain.RunStatus(status)
	run.Duration = time.Duration(durationMs) * time.Millisecond
	return run, nil
}
