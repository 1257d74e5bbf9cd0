package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	s3blob "github.com/alanyoungcy/lotoqubo/internal/blob/s3"
	"github.com/alanyoungcy/lotoqubo/internal/cache/memory"
	"github.com/alanyoungcy/lotoqubo/internal/cache/redis"
	"github.com/alanyoungcy/lotoqubo/internal/candidate"
	"github.com/alanyoungcy/lotoqubo/internal/config"
	"github.com/alanyoungcy/lotoqubo/internal/domain"
	"github.com/alanyoungcy/lotoqubo/internal/metrics"
	"github.com/alanyoungcy/lotoqubo/internal/notify"
	"github.com/alanyoungcy/lotoqubo/internal/platform/caixa"
	"github.com/alanyoungcy/lotoqubo/internal/scoring"
	"github.com/alanyoungcy/lotoqubo/internal/server/handler"
	"github.com/alanyoungcy/lotoqubo/internal/service"
	"github.com/alanyoungcy/lotoqubo/internal/solver"
	"github.com/alanyoungcy/lotoqubo/internal/store/postgres"
	"github.com/alanyoungcy/lotoqubo/internal/store/sqlite"
)

// recentRunsInMemory bounds the run history kept when Postgres is disabled.
const recentRunsInMemory = 200

// Dependencies bundles everything the modes need. Optional infrastructure is
// left as a nil interface when its section is disabled.
type Dependencies struct {
	Metrics *metrics.Metrics

	// Stores
	DrawStore      domain.DrawStore
	PortfolioStore domain.PortfolioStore
	AuditStore     domain.AuditStore

	// Caches
	FrequencyCache domain.FrequencyCache
	RateLimiter    domain.RateLimiter
	LockManager    domain.LockManager
	SignalBus      domain.SignalBus

	// Blob storage
	BlobReader domain.BlobReader
	Archiver   domain.Archiver

	// Notifications
	Notifier *notify.Notifier

	// Services
	Solver    *solver.Chain
	Draws     *service.DrawService
	Optimizer *service.OptimizerService

	// Checks are the dependency probes reported by /api/health.
	Checks map[string]handler.Check
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{
		Metrics: metrics.New(),
		Checks:  make(map[string]handler.Check),
	}

	costs, err := cfg.CostTable()
	if err != nil {
		return nil, nil, fmt.Errorf("wire: %w", err)
	}
	largeTargets, err := cfg.LargeTargets()
	if err != nil {
		return nil, nil, fmt.Errorf("wire: %w", err)
	}

	// --- PostgreSQL, SQLite or in-memory stores ---
	if cfg.Postgres.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:            cfg.Postgres.DSN,
			Host:           cfg.Postgres.Host,
			Port:           cfg.Postgres.Port,
			Database:       cfg.Postgres.Database,
			User:           cfg.Postgres.User,
			Password:       cfg.Postgres.Password,
			SSLMode:        cfg.Postgres.SSLMode,
			MaxConns:       cfg.Postgres.PoolMaxConns,
			MinConns:       cfg.Postgres.PoolMinConns,
			ConnectTimeout: cfg.Postgres.ConnectTimeout.Duration,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		pool := pgClient.Pool()
		deps.DrawStore = postgres.NewDrawStore(pool)
		deps.PortfolioStore = postgres.NewPortfolioStore(pool)
		deps.AuditStore = postgres.NewAuditStore(pool)
		deps.Checks["postgres"] = func(ctx context.Context) error { return pool.Ping(ctx) }
	} else if cfg.SQLite.Enabled {
		sqliteClient, err := sqlite.Open(ctx, cfg.SQLite.Path)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: sqlite: %w", err)
		}
		closers = append(closers, func() { _ = sqliteClient.Close() })

		db := sqliteClient.DB()
		deps.DrawStore = sqlite.NewDrawStore(db)
		deps.PortfolioStore = sqlite.NewPortfolioStore(db)
		deps.AuditStore = sqlite.NewAuditStore(db)
		deps.Checks["sqlite"] = sqliteClient.Ping
	} else {
		deps.DrawStore = memory.NewDrawStore()
		deps.PortfolioStore = memory.NewRunStore(recentRunsInMemory)
	}

	// --- Redis ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
			KeyPrefix:  cfg.Redis.KeyPrefix,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.FrequencyCache = redis.NewFrequencyCache(redisClient, cfg.Redis.FrequencyTTL.Duration)
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
		deps.LockManager = redis.NewLockManager(redisClient)
		deps.SignalBus = redis.NewSignalBus(redisClient)
		deps.Checks["redis"] = redisClient.Ping
	} else {
		deps.SignalBus = memory.NewBus()
	}

	// --- S3 blob storage ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		deps.BlobReader = s3blob.NewReader(s3Client)
		deps.Archiver = s3blob.NewArchiver(s3blob.NewWriter(s3Client), deps.AuditStore)
		deps.Checks["s3"] = s3Client.Health
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramAPI,
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	if cfg.Notify.SlackToken != "" && cfg.Notify.SlackChannel != "" {
		senders = append(senders, notify.NewSlackSender("", cfg.Notify.SlackToken, cfg.Notify.SlackChannel))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	// --- Solvers ---
	solvers, err := buildSolvers(cfg.Solver, uint64(cfg.Optimizer.Seed), logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	deps.Solver = solver.NewChain(solvers, cfg.Solver.Timeout.Duration, logger)
	deps.Solver.OnAttempt(deps.Metrics.ObserveSolver)

	// --- Services ---
	source := caixa.NewClient(
		caixa.WithBaseURL(cfg.Source.BaseURL),
		caixa.WithTimeouts(cfg.Source.BulkTimeout.Duration, cfg.Source.ContestTimeout.Duration),
		caixa.WithFallback(cfg.Source.MaxContests, cfg.Source.MinChecked, cfg.Source.FailureRate),
		caixa.WithRateLimit(cfg.Source.RateLimit, cfg.Source.RateBurst),
		caixa.WithLogger(logger),
	)
	deps.Draws = service.NewDrawService(
		source,
		deps.DrawStore,
		deps.FrequencyCache,
		deps.Archiver,
		deps.SignalBus,
		costs,
		deps.Metrics,
		logger,
	)

	scorer := scoring.New(
		scoring.WithMaxSubsets(cfg.Optimizer.MaxSubsets),
		scoring.WithSubsetObserver(deps.Metrics.ObserveSubsets),
	)
	deps.Optimizer = service.NewOptimizerService(
		service.OptimizerConfig{
			Lambda:        cfg.Optimizer.Lambda,
			Seed:          uint64(cfg.Optimizer.Seed),
			Currency:      cfg.Optimizer.Currency,
			Concurrency:   cfg.Optimizer.Concurrency,
			LockTTL:       cfg.Optimizer.LockTTL.Duration,
			WarnAboveVars: cfg.Optimizer.WarnAboveVars,
			Generator: candidate.Config{
				TopHistorical:     cfg.Optimizer.TopHistorical,
				PoolSize:          cfg.Optimizer.PoolSize,
				SixteenTarget:     cfg.Optimizer.SixteenTarget,
				AttemptMultiplier: cfg.Optimizer.AttemptMultiplier,
				LargeTargets:      largeTargets,
			},
		},
		scorer,
		deps.Solver,
		deps.PortfolioStore,
		deps.Archiver,
		deps.LockManager,
		deps.SignalBus,
		deps.Notifier,
		deps.Metrics,
		logger,
	)

	return deps, cleanup, nil
}

// buildSolvers resolves the configured order into solver instances. Disabled
// remote families are skipped so a config can keep their settings around.
func buildSolvers(cfg config.SolverConfig, seed uint64, logger *slog.Logger) ([]domain.Solver, error) {
	var out []domain.Solver
	for _, name := range cfg.Order {
		switch name {
		case "exhaustive":
			out = append(out, solver.NewExhaustive(cfg.ExhaustiveMaxVars))
		case "anneal":
			out = append(out, solver.NewAnnealer(solver.AnnealConfig{
				Sweeps:    cfg.Anneal.Sweeps,
				Restarts:  cfg.Anneal.Restarts,
				TempStart: cfg.Anneal.TempStart,
				TempEnd:   cfg.Anneal.TempEnd,
				Seed:      seed,
			}))
		default:
			remote, ok := cfg.Remote[name]
			if !ok {
				return nil, fmt.Errorf("wire: solver %q is not configured", name)
			}
			if !remote.Enabled {
				logger.Info("wire: remote solver disabled, skipping", slog.String("solver", name))
				continue
			}
			timeout := remote.Timeout.Duration
			if timeout <= 0 {
				timeout = cfg.Timeout.Duration
			}
			out = append(out, solver.NewRemote(solver.RemoteConfig{
				Family:         name,
				BaseURL:        remote.BaseURL,
				APIKey:         remote.APIKey,
				Reps:           remote.Reps,
				IncludesOffset: remote.IncludesOffset,
				Timeout:        timeout,
			}))
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("wire: no solver enabled: %w", domain.ErrSolverUnavailable)
	}
	return out, nil
}

// location resolves the pipeline timezone, falling back to UTC.
func location(name string, logger *slog.Logger) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		logger.Warn("wire: unknown timezone, using UTC",
			slog.String("timezone", name),
			slog.String("error", err.Error()),
		)
		return time.UTC
	}
	return loc
}
