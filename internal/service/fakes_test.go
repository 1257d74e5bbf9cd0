package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/alanyoungcy/lotoqubo/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testDraws() []domain.Draw {
	return []domain.Draw{
		{Contest: 1, Numbers: []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15}},
		{Contest: 2, Numbers: []int{2, 3, 5, 7, 11, 13, 14, 15, 16, 17, 18, 19, 20, 21, 22}},
		{Contest: 3, Numbers: []int{4, 6, 8, 10, 12, 14, 16, 18, 20, 21, 22, 23, 24, 25, 1}},
	}
}

type fakeSource struct {
	draws []domain.Draw
	err   error
	calls int
}

func (f *fakeSource) FetchAll(context.Context) ([]domain.Draw, error) {
	f.calls++
	return f.draws, f.err
}

type fakeDrawStore struct {
	draws   []domain.Draw
	listErr error
}

func (f *fakeDrawStore) UpsertBatch(_ context.Context, draws []domain.Draw) error {
	f.draws = append([]domain.Draw(nil), draws...)
	return nil
}

func (f *fakeDrawStore) List(context.Context) ([]domain.Draw, error) {
	return f.draws, f.listErr
}

func (f *fakeDrawStore) Latest(context.Context) (domain.Draw, error) {
	if len(f.draws) == 0 {
		return domain.Draw{}, domain.ErrNotFound
	}
	return f.draws[len(f.draws)-1], nil
}

func (f *fakeDrawStore) Count(context.Context) (int64, error) {
	return int64(len(f.draws)), nil
}

type fakeFreqCache struct {
	freq        domain.FrequencyTable
	stamp       domain.FrequencyStamp
	sets        int
	invalidated int
}

func (f *fakeFreqCache) Set(_ context.Context, freq domain.FrequencyTable, stamp domain.FrequencyStamp) error {
	f.freq, f.stamp = freq, stamp
	f.sets++
	return nil
}

func (f *fakeFreqCache) Get(context.Context) (domain.FrequencyTable, domain.FrequencyStamp, error) {
	if f.freq == nil {
		return nil, domain.FrequencyStamp{}, domain.ErrNotFound
	}
	return f.freq, f.stamp, nil
}

func (f *fakeFreqCache) Invalidate(context.Context) error {
	f.freq = nil
	f.invalidated++
	return nil
}

type fakeBus struct {
	mu       sync.Mutex
	channels []string
	payloads [][]byte
}

func (f *fakeBus) Publish(_ context.Context, channel string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.channels = append(f.channels, channel)
	f.payloads = append(f.payloads, payload)
	return nil
}

func (f *fakeBus) Subscribe(context.Context, string) (<-chan []byte, error) {
	return nil, errors.New("not supported")
}

type fakeRunStore struct {
	mu   sync.Mutex
	runs []domain.PortfolioRun
}

func (f *fakeRunStore) Create(_ context.Context, run domain.PortfolioRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, run)
	return nil
}

func (f *fakeRunStore) GetByID(_ context.Context, id string) (domain.PortfolioRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.runs {
		if r.ID == id {
			return r, nil
		}
	}
	return domain.PortfolioRun{}, domain.ErrNotFound
}

func (f *fakeRunStore) ListRecent(context.Context, int) ([]domain.PortfolioRun, error) {
	return f.runs, nil
}

// heldLocks refuses any key listed in held.
type heldLocks struct {
	held map[string]bool
}

func (l *heldLocks) Acquire(_ context.Context, key string, _ time.Duration) (func(), error) {
	if l.held[key] {
		return nil, domain.ErrLockHeld
	}
	return func() {}, nil
}

type fakeNotifier struct {
	mu   sync.Mutex
	runs []domain.PortfolioRun
}

func (f *fakeNotifier) NotifyRun(_ context.Context, _ string, run domain.PortfolioRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, run)
	return nil
}

// lowestBitSolver selects only candidate 0.
type lowestBitSolver struct {
	energy float64
}

func (s lowestBitSolver) Name() string { return "fake" }

func (s lowestBitSolver) Solve(ctx context.Context, p domain.IsingProblem) (domain.SolveResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.SolveResult{}, err
	}
	n := p.Size()
	return domain.SolveResult{
		Solver:    "fake",
		Bitstring: strings.Repeat("0", n-1) + "1",
		Energy:    s.energy,
	}, nil
}
