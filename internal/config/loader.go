package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies LOTOQUBO_* environment variable overrides, and
// returns the final Config. An empty path skips the file. The returned Config
// has NOT been validated; the caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known LOTOQUBO_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty).
func applyEnvOverrides(cfg *Config) {
	// ── Source ──
	setStr(&cfg.Source.BaseURL, "LOTOQUBO_SOURCE_BASE_URL")
	setDuration(&cfg.Source.BulkTimeout, "LOTOQUBO_SOURCE_BULK_TIMEOUT")
	setDuration(&cfg.Source.ContestTimeout, "LOTOQUBO_SOURCE_CONTEST_TIMEOUT")
	setInt(&cfg.Source.MaxContests, "LOTOQUBO_SOURCE_MAX_CONTESTS")
	setFloat64(&cfg.Source.RateLimit, "LOTOQUBO_SOURCE_RATE_LIMIT")

	// ── Optimizer ──
	setFloat64Slice(&cfg.Optimizer.Budgets, "LOTOQUBO_OPTIMIZER_BUDGETS")
	setFloat64(&cfg.Optimizer.Lambda, "LOTOQUBO_OPTIMIZER_LAMBDA")
	setInt64(&cfg.Optimizer.Seed, "LOTOQUBO_OPTIMIZER_SEED")
	setInt(&cfg.Optimizer.MaxSubsets, "LOTOQUBO_OPTIMIZER_MAX_SUBSETS")
	setStr(&cfg.Optimizer.Currency, "LOTOQUBO_OPTIMIZER_CURRENCY")
	setInt(&cfg.Optimizer.Concurrency, "LOTOQUBO_OPTIMIZER_CONCURRENCY")
	setDuration(&cfg.Optimizer.LockTTL, "LOTOQUBO_OPTIMIZER_LOCK_TTL")

	// ── Solver ──
	setStringSlice(&cfg.Solver.Order, "LOTOQUBO_SOLVER_ORDER")
	setDuration(&cfg.Solver.Timeout, "LOTOQUBO_SOLVER_TIMEOUT")
	setInt(&cfg.Solver.ExhaustiveMaxVars, "LOTOQUBO_SOLVER_EXHAUSTIVE_MAX_VARS")
	for name, remote := range cfg.Solver.Remote {
		prefix := "LOTOQUBO_SOLVER_REMOTE_" + strings.ToUpper(name) + "_"
		setBool(&remote.Enabled, prefix+"ENABLED")
		setStr(&remote.BaseURL, prefix+"BASE_URL")
		setStr(&remote.APIKey, prefix+"API_KEY")
		cfg.Solver.Remote[name] = remote
	}

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "LOTOQUBO_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "LOTOQUBO_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "LOTOQUBO_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "LOTOQUBO_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "LOTOQUBO_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "LOTOQUBO_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "LOTOQUBO_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "LOTOQUBO_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "LOTOQUBO_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "LOTOQUBO_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "LOTOQUBO_POSTGRES_RUN_MIGRATIONS")

	// ── SQLite ──
	setBool(&cfg.SQLite.Enabled, "LOTOQUBO_SQLITE_ENABLED")
	setStr(&cfg.SQLite.Path, "LOTOQUBO_SQLITE_PATH")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "LOTOQUBO_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "LOTOQUBO_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "LOTOQUBO_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "LOTOQUBO_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "LOTOQUBO_REDIS_POOL_SIZE")
	setBool(&cfg.Redis.TLSEnabled, "LOTOQUBO_REDIS_TLS_ENABLED")
	setStr(&cfg.Redis.KeyPrefix, "LOTOQUBO_REDIS_KEY_PREFIX")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "LOTOQUBO_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "LOTOQUBO_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "LOTOQUBO_S3_REGION")
	setStr(&cfg.S3.Bucket, "LOTOQUBO_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "LOTOQUBO_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "LOTOQUBO_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "LOTOQUBO_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "LOTOQUBO_S3_FORCE_PATH_STYLE")

	// ── Server ──
	setInt(&cfg.Server.Port, "LOTOQUBO_SERVER_PORT")
	setInt(&cfg.Server.Port, "PORT") // platform-assigned port
	setStringSlice(&cfg.Server.CORSOrigins, "LOTOQUBO_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "LOTOQUBO_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "LOTOQUBO_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "LOTOQUBO_SERVER_RATE_WINDOW")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "LOTOQUBO_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "LOTOQUBO_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "LOTOQUBO_NOTIFY_DISCORD_WEBHOOK_URL")
	setStr(&cfg.Notify.SlackToken, "LOTOQUBO_NOTIFY_SLACK_TOKEN")
	setStr(&cfg.Notify.SlackChannel, "LOTOQUBO_NOTIFY_SLACK_CHANNEL")
	setStringSlice(&cfg.Notify.Events, "LOTOQUBO_NOTIFY_EVENTS")

	// ── Pipeline ──
	setBool(&cfg.Pipeline.Enabled, "LOTOQUBO_PIPELINE_ENABLED")
	setStr(&cfg.Pipeline.RefreshCron, "LOTOQUBO_PIPELINE_REFRESH_CRON")
	setStr(&cfg.Pipeline.OptimizeCron, "LOTOQUBO_PIPELINE_OPTIMIZE_CRON")
	setStr(&cfg.Pipeline.Timezone, "LOTOQUBO_PIPELINE_TIMEZONE")

	// ── Top-level ──
	setStr(&cfg.Mode, "LOTOQUBO_MODE")
	setStr(&cfg.LogLevel, "LOTOQUBO_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}

func setFloat64Slice(dst *[]float64, key string) {
	if v := os.Getenv(key); v != "" {
		var out []float64
		for _, p := range strings.Split(v, ",") {
			f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
			if err != nil {
				return
			}
			out = append(out, f)
		}
		if len(out) > 0 {
			*dst = out
		}
	}
}
