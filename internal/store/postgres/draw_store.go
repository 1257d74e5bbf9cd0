package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/lotoqubo/internal/domain"
)

// DrawStore implements domain.DrawStore using PostgreSQL.
type DrawStore struct {
	pool *pgxpool.Pool
}

// NewDrawStore creates a DrawStore backed by the given pool.
func NewDrawStore(pool *pgxpool.Pool) *DrawStore {
	return &DrawStore{pool: pool}
}

const upsertDraw = `
	INSERT INTO draws (contest, draw_date, numbers, fetched_at, updated_at)
	VALUES ($1, $2, $3, $4, NOW())
	ON CONFLICT (contest) DO UPDATE SET
		draw_date  = EXCLUDED.draw_date,
		numbers    = EXCLUDED.numbers,
		fetched_at = EXCLUDED.fetched_at,
		updated_at = NOW()`

// UpsertBatch inserts or refreshes draws in one round trip.
func (s *DrawStore) UpsertBatch(ctx context.Context, draws []domain.Draw) error {
	if len(draws) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, d := range draws {
		batch.Queue(upsertDraw, d.Contest, d.Date, d.Numbers, d.FetchedAt)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for i := range draws {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: upsert draw %d: %w", draws[i].Contest, err)
		}
	}
	return nil
}

// List returns every stored draw ordered by contest.
func (s *DrawStore) List(ctx context.Context) ([]domain.Draw, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT contest, draw_date, numbers, fetched_at FROM draws ORDER BY contest`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list draws: %w", err)
	}
	draws, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.Draw, error) {
		return scanDraw(r)
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: list draws: %w", err)
	}
	return draws, nil
}

// Latest returns the draw with the highest contest number.
func (s *DrawStore) Latest(ctx context.Context) (domain.Draw, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT contest, draw_date, numbers, fetched_at FROM draws ORDER BY contest DESC LIMIT 1`)
	d, err := scanDraw(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Draw{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Draw{}, fmt.Errorf("postgres: latest draw: %w", err)
	}
	return d, nil
}

// Count returns the number of stored draws.
func (s *DrawStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM draws`).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: count draws: %w", err)
	}
	return n, nil
}

func scanDraw(row pgx.Row) (domain.Draw, error) {
	var d domain.Draw
	err := row.Scan(&d.Contest, &d.Date, &d.Numbers, &d.FetchedAt)
	return d, err
}
