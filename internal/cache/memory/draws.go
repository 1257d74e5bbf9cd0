package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/alanyoungcy/lotoqubo/internal/domain"
)

// DrawStore implements domain.DrawStore in process memory, keyed by contest
// and listed in ascending contest order.
type DrawStore struct {
	mu    sync.RWMutex
	draws map[int]domain.Draw
}

// NewDrawStore creates an empty DrawStore.
func NewDrawStore() *DrawStore {
	return &DrawStore{draws: make(map[int]domain.Draw)}
}

// UpsertBatch inserts or replaces draws by contest number.
func (s *DrawStore) UpsertBatch(_ context.Context, draws []domain.Draw) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range draws {
		d.Numbers = slices.Clone(d.Numbers)
		s.draws[d.Contest] = d
	}
	return nil
}

// List returns every draw in contest order.
func (s *DrawStore) List(_ context.Context) ([]domain.Draw, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Draw, 0, len(s.draws))
	for _, d := range s.draws {
		out = append(out, d)
	}
	slices.SortFunc(out, func(a, b domain.Draw) int { return a.Contest - b.Contest })
	return out, nil
}

// Latest returns the highest contest or domain.ErrNotFound.
func (s *DrawStore) Latest(_ context.Context) (domain.Draw, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var (
		latest domain.Draw
		found  bool
	)
	for c, d := range s.draws {
		if !found || c > latest.Contest {
			latest, found = d, true
		}
	}
	if !found {
		return domain.Draw{}, domain.ErrNotFound
	}
	return latest, nil
}

// Count returns the number of stored draws.
func (s *DrawStore) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.draws)), nil
}

var _ domain.DrawStore = (*DrawStore)(nil)
