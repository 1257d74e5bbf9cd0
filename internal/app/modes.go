package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/lotoqubo/internal/domain"
	"github.com/alanyoungcy/lotoqubo/internal/pipeline"
	"github.com/alanyoungcy/lotoqubo/internal/portfolio"
	"github.com/alanyoungcy/lotoqubo/internal/server"
	"github.com/alanyoungcy/lotoqubo/internal/server/handler"
	"github.com/alanyoungcy/lotoqubo/internal/server/ws"
)

// errNoPortfolio is returned by optimize mode when every budget failed.
var errNoPortfolio = errors.New("no budget produced a portfolio")

// shutdownTimeout bounds the graceful HTTP drain.
const shutdownTimeout = 10 * time.Second

// OptimizeMode loads the draw history once, runs every configured budget and
// prints one report per budget.
func (a *App) OptimizeMode(ctx context.Context, deps *Dependencies) error {
	ds, err := deps.Draws.Load(ctx)
	if err != nil {
		return fmt.Errorf("optimize: %w", err)
	}
	a.logger.InfoContext(ctx, "dataset ready",
		slog.Int("draws", len(ds.Draws)),
		slog.Any("budgets", a.cfg.Optimizer.Budgets),
		slog.Any("solvers", deps.Solver.Names()),
	)

	runs, err := deps.Optimizer.RunAll(ctx, ds, a.cfg.Optimizer.Budgets)
	if err != nil {
		return fmt.Errorf("optimize: %w", err)
	}

	completed := 0
	for _, run := range runs {
		if err := portfolio.Render(a.out, deps.Optimizer.Currency(), run); err != nil {
			return fmt.Errorf("optimize: render: %w", err)
		}
		if run.Status == domain.RunStatusCompleted {
			completed++
		}
	}
	if completed == 0 {
		return fmt.Errorf("optimize: %w", errNoPortfolio)
	}
	return nil
}

// FetchMode refreshes the stored draw history and prints a summary.
func (a *App) FetchMode(ctx context.Context, deps *Dependencies) error {
	n, err := deps.Draws.Refresh(ctx)
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	sum, err := deps.Draws.Summary(ctx)
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	latest := "none"
	if sum.Latest != nil {
		latest = fmt.Sprintf("%d (%s)", sum.Latest.Contest, sum.Latest.Date)
	}
	_, err = fmt.Fprintf(a.out, "fetched %d draws; %d stored; latest contest %s\n", n, sum.Count, latest)
	return err
}

// ServeMode runs the HTTP API, the WebSocket hub and, when enabled, the
// refresh scheduler until ctx is cancelled.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	g, ctx := errgroup.WithContext(ctx)

	hub := ws.NewHub(deps.SignalBus, ws.Config{
		Mode:      a.cfg.Mode,
		Solvers:   deps.Solver.Names(),
		StartedAt: time.Now().UTC(),
	}, a.logger)
	g.Go(func() error {
		return hub.Run(ctx)
	})

	draws := handler.NewDrawHandler(deps.Draws, a.logger)

	if a.cfg.Pipeline.Enabled {
		sched, err := pipeline.NewScheduler(pipeline.Config{
			RefreshCron:  a.cfg.Pipeline.RefreshCron,
			OptimizeCron: a.cfg.Pipeline.OptimizeCron,
			Budgets:      a.cfg.Optimizer.Budgets,
			Location:     location(a.cfg.Pipeline.Timezone, a.logger),
		}, deps.Draws, deps.Optimizer, a.logger)
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		draws = draws.WithTrigger(sched.TriggerRefresh)
		g.Go(func() error {
			return sched.Run(ctx)
		})
	}

	handlers := server.Handlers{
		Health:    handler.NewHealthHandler(deps.Checks, a.logger),
		Draws:     draws,
		Portfolio: handler.NewPortfolioHandler(deps.Draws, deps.Optimizer, deps.PortfolioStore, a.cfg.Optimizer.Budgets, a.logger),
		Metrics:   deps.Metrics.Handler(),
	}
	if deps.BlobReader != nil {
		handlers.Archive = handler.NewArchiveHandler(deps.BlobReader, a.logger)
	}
	if deps.AuditStore != nil {
		handlers.Audit = handler.NewAuditHandler(deps.AuditStore, a.logger)
	}

	srv := server.NewServer(server.Config{
		Port:         a.cfg.Server.Port,
		CORSOrigins:  a.cfg.Server.CORSOrigins,
		APIKey:       a.cfg.Server.APIKey,
		RateLimit:    a.cfg.Server.RateLimit,
		RateWindow:   a.cfg.Server.RateWindow.Duration,
		WriteTimeout: a.cfg.Server.WriteTimeout.Duration,
	}, handlers, hub, deps.RateLimiter, a.logger)

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})

	return g.Wait()
}
