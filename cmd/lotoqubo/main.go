// Command lotoqubo recommends Lotofácil bet portfolios for one or more
// budgets. It loads configuration, validates it, wires dependencies, sets up
// signal handling, and starts the application in the configured mode.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	_ "time/tzdata"

	"github.com/alanyoungcy/lotoqubo/internal/app"
	"github.com/alanyoungcy/lotoqubo/internal/config"
)

func main() {
	configPath := flag.String("config", "", "path to configuration file (defaults only when empty)")
	mode := flag.String("mode", "", "override the configured mode: optimize, fetch or serve")
	budgets := flag.String("budgets", "", "comma-separated budgets, e.g. 100,300")
	flag.Parse()

	// Setup structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration.
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config",
			slog.String("path", *configPath),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}
	if *mode != "" {
		cfg.Mode = *mode
	}
	if *budgets != "" {
		parsed, err := parseBudgets(*budgets)
		if err != nil {
			logger.Error("invalid -budgets flag", slog.String("error", err.Error()))
			os.Exit(2)
		}
		cfg.Optimizer.Budgets = parsed
	}

	// Set log level from config.
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	// One-shot modes print their report on stdout, so logs go to stderr.
	logOut := os.Stdout
	if cfg.Mode != "serve" {
		logOut = os.Stderr
	}
	logger = slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	// Validate configuration.
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	redacted := config.RedactedConfig(cfg)
	logger.Info("lotoqubo starting",
		slog.String("mode", cfg.Mode),
		slog.String("config", *configPath),
		slog.Any("budgets", redacted.Optimizer.Budgets),
		slog.Any("solvers", redacted.Solver.Order),
	)
	logger.Debug("effective configuration", slog.Any("config", redacted))

	// Create the application.
	application := app.New(cfg, logger)
	defer application.Close()

	// Setup signal handling for graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Run the application.
	if err := application.Run(ctx); err != nil {
		// context.Canceled is expected on clean shutdown.
		if errors.Is(err, context.Canceled) {
			logger.Info("application shut down gracefully")
		} else {
			logger.Error("application exited with error",
				slog.String("error", err.Error()),
			)
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			application.Close()
			os.Exit(1)
		}
	}

	logger.Info("lotoqubo stopped")
}

func parseBudgets(s string) ([]float64, error) {
	var out []float64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		b, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, fmt.Errorf("budget %q: %w", part, err)
		}
		if !(b > 0) || math.IsInf(b, 0) {
			return nil, fmt.Errorf("budget %q: must be a finite number > 0", part)
		}
		out = append(out, b)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no budgets in %q", s)
	}
	return out, nil
}
