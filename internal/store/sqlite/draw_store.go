package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/alanyoungcy/lotoqubo/internal/domain"
)

// DrawStore implements domain.DrawStore on SQLite.
type DrawStore struct {
	db *sql.DB
}

// NewDrawStore creates a DrawStore.
func NewDrawStore(db *sql.DB) *DrawStore {
	return &DrawStore{db: db}
}

const upsertDraw = `
	INSERT INTO draws (contest, draw_date, numbers, fetched_at, updated_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT (contest) DO UPDATE SET
		draw_date  = excluded.draw_date,
		numbers    = excluded.numbers,
		fetched_at = excluded.fetched_at,
		updated_at = excluded.updated_at`

// UpsertBatch writes all draws in one transaction.
func (s *DrawStore) UpsertBatch(ctx context.Context, draws []domain.Draw) error {
	if len(draws) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, upsertDraw)
	if err != nil {
		return fmt.Errorf("sqlite: prepare upsert: %w", err)
	}
	defer stmt.Close()

	now := toUnix(time.Now())
	for _, d := range draws {
		nums, err := json.Marshal(d.Numbers)
		if err != nil {
			return fmt.Errorf("sqlite: marshal draw %d: %w", d.Contest, err)
		}
		if _, err := stmt.ExecContext(ctx, d.Contest, d.Date, string(nums), toUnix(d.FetchedAt), now); err != nil {
			return fmt.Errorf("sqlite: upsert draw %d: %w", d.Contest, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit draws: %w", err)
	}
	return nil
}

// List returns every stored draw ordered by contest.
func (s *DrawStore) List(ctx context.Context) ([]domain.Draw, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT contest, draw_date, numbers, fetched_at FROM draws ORDER BY contest`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list draws: %w", err)
	}
	defer rows.Close()

	var draws []domain.Draw
	for rows.Next() {
		d, err := scanDraw(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: list draws: %w", err)
		}
		draws = append(draws, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: list draws: %w", err)
	}
	return draws, nil
}

// Latest returns the draw with the highest contest number.
func (s *DrawStore) Latest(ctx context.Context) (domain.Draw, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT contest, draw_date, numbers, fetched_at FROM draws ORDER BY contest DESC LIMIT 1`)
	d, err := scanDraw(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Draw{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Draw{}, fmt.Errorf("sqlite: latest draw: %w", err)
	}
	return d, nil
}

// Count returns the number of stored draws.
func (s *DrawStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM draws`).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: count draws: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDraw(row scanner) (domain.Draw, error) {
	var (
		d         domain.Draw
		nums      string
		fetchedAt int64
	)
	if err := row.Scan(&d.Contest, &d.Date, &nums, &fetchedAt); err != nil {
		return domain.Draw{}, err
	}
	if err := json.Unmarshal([]byte(nums), &d.Numbers); err != nil {
		return domain.Draw{}, fmt.Errorf("unmarshal numbers of contest %d: %w", d.Contest, err)
	}
	d.FetchedAt = fromUnix(fetchedAt)
	return d, nil
}
