package memory

import (
	"context"
	"sync"

	"github.com/alanyoungcy/lotoqubo/internal/domain"
)

// RunStore implements domain.PortfolioStore as a bounded in-process ring.
// The oldest run is dropped once capacity is reached.
type RunStore struct {
	mu   sync.RWMutex
	runs []domain.PortfolioRun
	cap  int
}

// NewRunStore creates a RunStore keeping at most capacity runs.
func NewRunStore(capacity int) *RunStore {
	if capacity < 1 {
		capacity = 1
	}
	return &RunStore{cap: capacity}
}

// Create appends run.
func (s *RunStore) Create(_ context.Context, run domain.PortfolioRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.runs {
		if r.ID == run.ID {
			return domain.ErrAlreadyExists
		}
	}
	if len(s.runs) == s.cap {
		s.runs = append(s.runs[:0], s.runs[1:]...)
	}
	s.runs = append(s.runs, run)
	return nil
}

// GetByID returns the run with id or domain.ErrNotFound.
func (s *RunStore) GetByID(_ context.Context, id string) (domain.PortfolioRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.runs {
		if r.ID == id {
			return r, nil
		}
	}
	return domain.PortfolioRun{}, domain.ErrNotFound
}

// ListRecent returns up to limit runs, newest first.
func (s *RunStore) ListRecent(_ context.Context, limit int) ([]domain.PortfolioRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 || limit > len(s.runs) {
		limit = len(s.runs)
	}
	out := make([]domain.PortfolioRun, 0, limit)
	for i := len(s.runs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.runs[i])
	}
	return out, nil
}

var _ domain.PortfolioStore = (*RunStore)(nil)
