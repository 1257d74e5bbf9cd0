package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// DrawStore persists historical contest results.
type DrawStore interface {
	UpsertBatch(ctx context.Context, draws []Draw) error
	List(ctx context.Context) ([]Draw, error)
	Latest(ctx context.Context) (Draw, error)
	Count(ctx context.Context) (int64, error)
}

// PortfolioStore persists budget run outcomes.
type PortfolioStore interface {
	Create(ctx context.Context, run PortfolioRun) error
	GetByID(ctx context.Context, id string) (PortfolioRun, error)
	ListRecent(ctx context.Context, limit int) ([]PortfolioRun, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
