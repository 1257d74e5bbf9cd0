// Package config defines the top-level configuration for lotoqubo and
// provides validation helpers.
package config

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/lotoqubo/internal/domain"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by LOTOQUBO_* environment variables.
type Config struct {
	Source    SourceConfig          `toml:"source"`
	Optimizer OptimizerConfig       `toml:"optimizer"`
	Costs     map[string]CostConfig `toml:"costs"`
	Solver    SolverConfig          `toml:"solver"`
	Postgres  PostgresConfig        `toml:"postgres"`
	SQLite    SQLiteConfig          `toml:"sqlite"`
	Redis     RedisConfig           `toml:"redis"`
	S3        S3Config              `toml:"s3"`
	Server    ServerConfig          `toml:"server"`
	Notify    NotifyConfig          `toml:"notify"`
	Pipeline  PipelineConfig        `toml:"pipeline"`
	Mode      string                `toml:"mode"`
	LogLevel  string                `toml:"log_level"`
}

// SourceConfig points at the draw results API.
type SourceConfig struct {
	BaseURL        string   `toml:"base_url"`
	BulkTimeout    duration `toml:"bulk_timeout"`
	ContestTimeout duration `toml:"contest_timeout"`
	// MaxContests bounds the per-contest fallback scan.
	MaxContests int `toml:"max_contests"`
	// MinChecked and FailureRate decide when the fallback gives up.
	MinChecked  int     `toml:"min_checked"`
	FailureRate float64 `toml:"failure_rate"`
	RateLimit   float64 `toml:"rate_limit"`
	RateBurst   int     `toml:"rate_burst"`
}

// OptimizerConfig holds the per-budget pipeline parameters.
type OptimizerConfig struct {
	Budgets       []float64 `toml:"budgets"`
	Lambda        float64   `toml:"lambda"`
	Seed          int64     `toml:"seed"`
	MaxSubsets    int       `toml:"max_subsets"`
	Currency      string    `toml:"currency"`
	Concurrency   int       `toml:"concurrency"`
	LockTTL       duration  `toml:"lock_ttl"`
	WarnAboveVars int       `toml:"warn_above_vars"`

	TopHistorical     int `toml:"top_historical"`
	PoolSize          int `toml:"pool_size"`
	SixteenTarget     int `toml:"sixteen_target"`
	AttemptMultiplier int `toml:"attempt_multiplier"`
	// LargeTargets maps a bet size from 17 to 20 to its sample target.
	LargeTargets map[string]int `toml:"large_targets"`
}

// CostConfig is one row of the price table. Cost is a decimal string so the
// currency amount is never rounded through float64.
type CostConfig struct {
	Cost         string `toml:"cost"`
	Combinations int    `toml:"combinations"`
}

// SolverConfig selects and tunes the solver chain.
type SolverConfig struct {
	// Order lists solver names tried in sequence. Remote family names refer
	// to entries in Remote; "exhaustive" and "anneal" are local.
	Order             []string                      `toml:"order"`
	Timeout           duration                      `toml:"timeout"`
	ExhaustiveMaxVars int                           `toml:"exhaustive_max_vars"`
	Anneal            AnnealConfig                  `toml:"anneal"`
	Remote            map[string]RemoteSolverConfig `toml:"remote"`
}

// AnnealConfig tunes the simulated-annealing solver.
type AnnealConfig struct {
	Sweeps    int     `toml:"sweeps"`
	Restarts  int     `toml:"restarts"`
	TempStart float64 `toml:"temp_start"`
	TempEnd   float64 `toml:"temp_end"`
}

// RemoteSolverConfig describes one external QAOA service.
type RemoteSolverConfig struct {
	Enabled        bool     `toml:"enabled"`
	BaseURL        string   `toml:"base_url"`
	APIKey         string   `toml:"api_key"`
	Reps           int      `toml:"reps"`
	IncludesOffset bool     `toml:"includes_offset"`
	Timeout        duration `toml:"timeout"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Enabled        bool     `toml:"enabled"`
	DSN            string   `toml:"dsn"`
	Host           string   `toml:"host"`
	Port           int      `toml:"port"`
	Database       string   `toml:"database"`
	User           string   `toml:"user"`
	Password       string   `toml:"password"`
	SSLMode        string   `toml:"ssl_mode"`
	PoolMaxConns   int      `toml:"pool_max_conns"`
	PoolMinConns   int      `toml:"pool_min_conns"`
	ConnectTimeout duration `toml:"connect_timeout"`
	RunMigrations  bool     `toml:"run_migrations"`
}

// SQLiteConfig selects a local database file. Ignored when Postgres is on.
type SQLiteConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled      bool     `toml:"enabled"`
	Addr         string   `toml:"addr"`
	Password     string   `toml:"password"`
	DB           int      `toml:"db"`
	PoolSize     int      `toml:"pool_size"`
	MaxRetries   int      `toml:"max_retries"`
	TLSEnabled   bool     `toml:"tls_enabled"`
	KeyPrefix    string   `toml:"key_prefix"`
	FrequencyTTL duration `toml:"frequency_ttl"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port         int      `toml:"port"`
	CORSOrigins  []string `toml:"cors_origins"`
	APIKey       string   `toml:"api_key"`
	RateLimit    int      `toml:"rate_limit"`
	RateWindow   duration `toml:"rate_window"`
	WriteTimeout duration `toml:"write_timeout"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramAPI       string   `toml:"telegram_api"`
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	SlackToken        string   `toml:"slack_token"`
	SlackChannel      string   `toml:"slack_channel"`
	Events            []string `toml:"events"`
}

// PipelineConfig holds the scheduler parameters used in serve mode.
type PipelineConfig struct {
	Enabled      bool   `toml:"enabled"`
	RefreshCron  string `toml:"refresh_cron"`
	OptimizeCron string `toml:"optimize_cron"`
	Timezone     string `toml:"timezone"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Source: SourceConfig{
			BaseURL:        "https://loteriascaixa-api.herokuapp.com/api",
			BulkTimeout:    duration{20 * time.Second},
			ContestTimeout: duration{5 * time.Second},
			MaxContests:    3400,
			MinChecked:     100,
			FailureRate:    0.10,
			RateLimit:      10,
			RateBurst:      5,
		},
		Optimizer: OptimizerConfig{
			Budgets:           []float64{100, 300},
			Lambda:            50,
			Seed:              1,
			MaxSubsets:        15504,
			Currency:          "R$",
			Concurrency:       2,
			LockTTL:           duration{10 * time.Minute},
			WarnAboveVars:     22,
			TopHistorical:     50,
			PoolSize:          20,
			SixteenTarget:     50,
			AttemptMultiplier: 10,
		},
		Costs: map[string]CostConfig{
			"15": {Cost: "3.00", Combinations: 1},
			"16": {Cost: "48.00", Combinations: 16},
			"17": {Cost: "408.00", Combinations: 136},
			"18": {Cost: "2448.00", Combinations: 816},
			"19": {Cost: "11628.00", Combinations: 3876},
			"20": {Cost: "46512.00", Combinations: 15504},
		},
		Solver: SolverConfig{
			Order:             []string{"exhaustive", "anneal"},
			Timeout:           duration{2 * time.Minute},
			ExhaustiveMaxVars: 20,
			Anneal: AnnealConfig{
				Sweeps:    2000,
				Restarts:  8,
				TempStart: 2.0,
				TempEnd:   1e-6,
			},
		},
		Postgres: PostgresConfig{
			Host:           "localhost",
			Port:           5432,
			Database:       "lotoqubo",
			User:           "postgres",
			SSLMode:        "disable",
			PoolMaxConns:   10,
			PoolMinConns:   2,
			ConnectTimeout: duration{10 * time.Second},
			RunMigrations:  true,
		},
		SQLite: SQLiteConfig{
			Path: "lotoqubo.db",
		},
		Redis: RedisConfig{
			Addr:         "localhost:6379",
			PoolSize:     20,
			MaxRetries:   3,
			KeyPrefix:    "lotoqubo",
			FrequencyTTL: duration{6 * time.Hour},
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "lotoqubo-archive",
			ForcePathStyle: true,
		},
		Server: ServerConfig{
			Port:         8080,
			CORSOrigins:  []string{"*"},
			RateLimit:    60,
			RateWindow:   duration{time.Minute},
			WriteTimeout: duration{5 * time.Minute},
		},
		Notify: NotifyConfig{
			TelegramAPI: "https://api.telegram.org",
			Events:      []string{domain.EventPortfolioReady, domain.EventPortfolioFailed},
		},
		Pipeline: PipelineConfig{
			RefreshCron: "30 22 * * 1-6",
			Timezone:    "America/Sao_Paulo",
		},
		Mode:     "optimize",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"optimize": true,
	"fetch":    true,
	"serve":    true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// localSolvers are the solver names that need no [solver.remote] entry.
var localSolvers = map[string]bool{
	"exhaustive": true,
	"anneal":     true,
}

// cronParser matches the five-field schedules the pipeline accepts.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// CostTable converts the configured price rows into a domain.CostTable.
func (c *Config) CostTable() (domain.CostTable, error) {
	if len(c.Costs) == 0 {
		return domain.DefaultCostTable(), nil
	}
	table := make(domain.CostTable, len(c.Costs))
	for key, row := range c.Costs {
		size, err := strconv.Atoi(strings.TrimSpace(key))
		if err != nil || size < domain.MinBetSize || size > domain.MaxBetSize {
			return nil, fmt.Errorf("costs: invalid bet size %q", key)
		}
		cost, err := decimal.NewFromString(row.Cost)
		if err != nil {
			return nil, fmt.Errorf("costs: size %d: %w", size, err)
		}
		if !cost.IsPositive() {
			return nil, fmt.Errorf("costs: size %d: cost must be > 0", size)
		}
		if row.Combinations < 1 {
			return nil, fmt.Errorf("costs: size %d: combinations must be >= 1", size)
		}
		table[size] = domain.CostEntry{Cost: cost, Combinations: row.Combinations}
	}
	if _, ok := table[domain.MinBetSize]; !ok {
		return nil, fmt.Errorf("costs: size %d must be priced", domain.MinBetSize)
	}
	return table, nil
}

// LargeTargets converts the configured per-size sample targets.
func (c *Config) LargeTargets() (map[int]int, error) {
	if len(c.Optimizer.LargeTargets) == 0 {
		return nil, nil
	}
	out := make(map[int]int, len(c.Optimizer.LargeTargets))
	for key, target := range c.Optimizer.LargeTargets {
		size, err := strconv.Atoi(strings.TrimSpace(key))
		if err != nil || size < 17 || size > domain.MaxBetSize {
			return nil, fmt.Errorf("optimizer: large_targets: invalid bet size %q", key)
		}
		if target < 0 {
			return nil, fmt.Errorf("optimizer: large_targets: size %d: target must be >= 0", size)
		}
		out[size] = target
	}
	return out, nil
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	// Mode
	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: optimize, fetch, serve)", c.Mode))
	}

	// LogLevel
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Source
	if c.Source.BaseURL == "" {
		errs = append(errs, "source: base_url must not be empty")
	}
	if c.Source.FailureRate < 0 || c.Source.FailureRate > 1 {
		errs = append(errs, fmt.Sprintf("source: failure_rate must be within [0,1], got %g", c.Source.FailureRate))
	}
	if c.Source.RateLimit <= 0 {
		errs = append(errs, "source: rate_limit must be > 0")
	}

	// Optimizer
	if len(c.Optimizer.Budgets) == 0 {
		errs = append(errs, "optimizer: budgets must not be empty")
	}
	for _, b := range c.Optimizer.Budgets {
		if !(b > 0) || math.IsInf(b, 0) {
			errs = append(errs, fmt.Sprintf("optimizer: budget must be a finite number > 0, got %g", b))
		}
	}
	if !(c.Optimizer.Lambda > 0) || math.IsInf(c.Optimizer.Lambda, 0) {
		errs = append(errs, "optimizer: lambda must be > 0")
	}
	if c.Optimizer.MaxSubsets < 1 {
		errs = append(errs, "optimizer: max_subsets must be >= 1")
	}
	if c.Optimizer.Concurrency < 1 {
		errs = append(errs, "optimizer: concurrency must be >= 1")
	}
	if c.Optimizer.TopHistorical < 0 || c.Optimizer.SixteenTarget < 0 {
		errs = append(errs, "optimizer: top_historical and sixteen_target must be >= 0")
	}
	if c.Optimizer.PoolSize < 16 || c.Optimizer.PoolSize > 25 {
		errs = append(errs, fmt.Sprintf("optimizer: pool_size must be 16-25, got %d", c.Optimizer.PoolSize))
	}
	if c.Optimizer.AttemptMultiplier < 1 {
		errs = append(errs, "optimizer: attempt_multiplier must be >= 1")
	}
	if _, err := c.LargeTargets(); err != nil {
		errs = append(errs, err.Error())
	}

	// Costs
	if _, err := c.CostTable(); err != nil {
		errs = append(errs, err.Error())
	}

	// Solver
	if len(c.Solver.Order) == 0 {
		errs = append(errs, "solver: order must list at least one solver")
	}
	for _, name := range c.Solver.Order {
		if localSolvers[name] {
			continue
		}
		remote, ok := c.Solver.Remote[name]
		if !ok {
			errs = append(errs, fmt.Sprintf("solver: %q in order has no [solver.remote.%s] section", name, name))
			continue
		}
		if remote.Enabled && remote.BaseURL == "" {
			errs = append(errs, fmt.Sprintf("solver: remote.%s: base_url is required when enabled", name))
		}
	}
	if c.Solver.Anneal.Sweeps < 1 || c.Solver.Anneal.Restarts < 1 {
		errs = append(errs, "solver: anneal sweeps and restarts must be >= 1")
	}
	if c.Solver.Anneal.TempEnd <= 0 || c.Solver.Anneal.TempStart <= c.Solver.Anneal.TempEnd {
		errs = append(errs, "solver: anneal temp_start must exceed temp_end > 0")
	}

	// Postgres
	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 || c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must be within [0, pool_max_conns]")
		}
	}

	// SQLite
	if c.SQLite.Enabled {
		if c.Postgres.Enabled {
			errs = append(errs, "sqlite: cannot be enabled together with postgres")
		}
		if strings.TrimSpace(c.SQLite.Path) == "" {
			errs = append(errs, "sqlite: path must not be empty")
		}
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
	}

	// Server
	if strings.ToLower(c.Mode) == "serve" {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Redis.Enabled && c.Server.RateLimit > 0 && c.Server.RateWindow.Duration <= 0 {
			errs = append(errs, "server: rate_window must be > 0 when rate_limit is set")
		}
	}

	// Notify
	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}
	if (c.Notify.SlackToken == "") != (c.Notify.SlackChannel == "") {
		errs = append(errs, "notify: slack_token and slack_channel must be set together")
	}

	// Pipeline
	if c.Pipeline.Enabled {
		if c.Pipeline.RefreshCron == "" {
			errs = append(errs, "pipeline: refresh_cron must not be empty when enabled")
		} else if _, err := cronParser.Parse(c.Pipeline.RefreshCron); err != nil {
			errs = append(errs, fmt.Sprintf("pipeline: refresh_cron: %v", err))
		}
		if c.Pipeline.OptimizeCron != "" {
			if _, err := cronParser.Parse(c.Pipeline.OptimizeCron); err != nil {
				errs = append(errs, fmt.Sprintf("pipeline: optimize_cron: %v", err))
			}
		}
		if c.Pipeline.Timezone != "" {
			if _, err := time.LoadLocation(c.Pipeline.Timezone); err != nil {
				errs = append(errs, fmt.Sprintf("pipeline: timezone: %v", err))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
