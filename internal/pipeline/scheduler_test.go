package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alanyoungcy/lotoqubo/internal/domain"
)

type fakeDraws struct {
	refreshed chan struct{}
	err       error
}

func (f *fakeDraws) Refresh(context.Context) (int, error) {
	if f.refreshed != nil {
		f.refreshed <- struct{}{}
	}
	return 3, f.err
}

func (f *fakeDraws) Load(context.Context) (*domain.Dataset, error) {
	return &domain.Dataset{}, nil
}

type fakeRunner struct {
	budgets []float64
}

func (f *fakeRunner) RunAll(_ context.Context, _ *domain.Dataset, budgets []float64) ([]domain.PortfolioRun, error) {
	f.budgets = budgets
	return []domain.PortfolioRun{{Status: domain.RunStatusCompleted}, {Status: domain.RunStatusFailed}}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewSchedulerValidates(t *testing.T) {
	cases := map[string]Config{
		"bad refresh":        {RefreshCron: "not a cron"},
		"bad optimize":       {RefreshCron: "0 22 * * *", OptimizeCron: "61 * * * *"},
		"six fields refused": {RefreshCron: "0 0 22 * * *"},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := NewScheduler(cfg, &fakeDraws{}, &fakeRunner{}, discardLogger()); err == nil {
				t.Fatal("expected error")
			}
		})
	}

	_, err := NewScheduler(Config{RefreshCron: "0 22 * * *", OptimizeCron: "0 23 * * *"}, &fakeDraws{}, nil, discardLogger())
	if err == nil {
		t.Fatal("expected error without optimizer")
	}
}

func TestTriggerRefresh(t *testing.T) {
	draws := &fakeDraws{refreshed: make(chan struct{}, 1), err: errors.New("upstream down")}
	s, err := NewScheduler(Config{RefreshCron: "0 22 * * *"}, draws, nil, discardLogger())
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	if !s.TriggerRefresh() {
		t.Fatal("trigger refused")
	}
	select {
	case <-draws.refreshed:
	case <-time.After(2 * time.Second):
		t.Fatal("refresh not run")
	}

	// a failing job keeps the loop alive
	s.TriggerRefresh()
	select {
	case <-draws.refreshed:
	case <-time.After(2 * time.Second):
		t.Fatal("second refresh not run")
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run returned %v", err)
	}
}

func TestOptimizeOnce(t *testing.T) {
	runner := &fakeRunner{}
	s, err := NewScheduler(Config{
		RefreshCron:  "0 22 * * *",
		OptimizeCron: "30 22 * * 1-6",
		Budgets:      []float64{100, 300},
	}, &fakeDraws{}, runner, discardLogger())
	if err != nil {
		t.Fatal(err)
	}
	if err := s.OptimizeOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(runner.budgets) != 2 || runner.budgets[1] != 300 {
		t.Fatalf("budgets = %v", runner.budgets)
	}
}
