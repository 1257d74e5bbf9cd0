package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/lotoqubo/internal/domain"
)

// PortfolioStore implements domain.PortfolioStore on SQLite.
type PortfolioStore struct {
	db *sql.DB
}

// NewPortfolioStore creates a PortfolioStore.
func NewPortfolioStore(db *sql.DB) *PortfolioStore {
	return &PortfolioStore{db: db}
}

const portfolioColumns = `
	id, budget, lambda, solver, bitstring, energy, display_energy,
	ising_offset, candidate_count, selection, total_cost, total_score,
	status, error, duration_ms, created_at`

// Create inserts a run. A duplicate id yields domain.ErrAlreadyExists.
func (s *PortfolioStore) Create(ctx context.Context, run domain.PortfolioRun) error {
	sel, err := json.Marshal(run.Selection)
	if err != nil {
		return fmt.Errorf("sqlite: marshal selection: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO portfolio_runs (`+portfolioColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Budget, run.Lambda, run.Solver, run.Bitstring, run.Energy, run.DisplayEnergy,
		run.Offset, run.CandidateCount, string(sel), run.Selection.TotalCost.StringFixed(2), run.Selection.TotalScore,
		string(run.Status), run.Error, run.Duration.Milliseconds(), toUnix(run.CreatedAt),
	)
	if isConstraintViolation(err) {
		return fmt.Errorf("sqlite: portfolio run %s: %w", run.ID, domain.ErrAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("sqlite: create portfolio run %s: %w", run.ID, err)
	}
	return nil
}

// GetByID returns a run or domain.ErrNotFound.
func (s *PortfolioStore) GetByID(ctx context.Context, id string) (domain.PortfolioRun, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+portfolioColumns+` FROM portfolio_runs WHERE id = ?`, id)
	run, err := scanPortfolioRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.PortfolioRun{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.PortfolioRun{}, fmt.Errorf("sqlite: get portfolio run %s: %w", id, err)
	}
	return run, nil
}

// ListRecent returns the newest runs first.
func (s *PortfolioStore) ListRecent(ctx context.Context, limit int) ([]domain.PortfolioRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+portfolioColumns+` FROM portfolio_runs ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list portfolio runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.PortfolioRun
	for rows.Next() {
		run, err := scanPortfolioRun(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: list portfolio runs: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: list portfolio runs: %w", err)
	}
	return runs, nil
}

func scanPortfolioRun(row scanner) (domain.PortfolioRun, error) {
	var (
		run        domain.PortfolioRun
		selJSON    string
		totalCost  string
		status     string
		durationMs int64
		createdAt  int64
	)
	err := row.Scan(
		&run.ID, &run.Budget, &run.Lambda, &run.Solver, &run.Bitstring, &run.Energy, &run.DisplayEnergy,
		&run.Offset, &run.CandidateCount, &selJSON, &totalCost, &run.Selection.TotalScore,
		&status, &run.Error, &durationMs, &createdAt,
	)
	if err != nil {
		return domain.PortfolioRun{}, err
	}
	if selJSON != "" {
		if err := json.Unmarshal([]byte(selJSON), &run.Selection); err != nil {
			return domain.PortfolioRun{}, fmt.Errorf("unmarshal selection: %w", err)
		}
	}
	if run.Selection.TotalCost, err = decimal.NewFromString(totalCost); err != nil {
		return domain.PortfolioRun{}, fmt.Errorf("parse total cost %q: %w", totalCost, err)
	}
	run.Status = domain.RunStatus(status)
	run.Duration = time.Duration(durationMs) * time.Millisecond
	run.CreatedAt = fromUnix(createdAt)
	return run, nil
}
