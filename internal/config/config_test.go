package config

import (
	"math"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := writeConfig(t, `
mode = "serve"

[optimizer]
budgets = [50.0, 150.0, 450.0]
seed = 42

[optimizer.large_targets]
17 = 5

[costs.15]
cost = "3.50"
combinations = 1

[solver]
order = ["qiskit", "anneal"]
timeout = "45s"

[solver.remote.qiskit]
enabled = true
base_url = "http://qaoa:8000"
reps = 2
includes_offset = true

[pipeline]
enabled = true
optimize_cron = "0 23 * * 6"
timezone = "UTC"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}

	if cfg.Mode != "serve" {
		t.Errorf("mode = %q", cfg.Mode)
	}
	if got := cfg.Optimizer.Budgets; len(got) != 3 || got[2] != 450 {
		t.Errorf("budgets = %v", got)
	}
	if cfg.Optimizer.Seed != 42 {
		t.Errorf("seed = %d", cfg.Optimizer.Seed)
	}
	// Untouched fields keep their defaults.
	if cfg.Optimizer.Lambda != 50 || cfg.Optimizer.Currency != "R$" {
		t.Errorf("lambda/currency defaults lost: %v %q", cfg.Optimizer.Lambda, cfg.Optimizer.Currency)
	}
	if cfg.Solver.Timeout.Duration != 45*time.Second {
		t.Errorf("solver timeout = %v", cfg.Solver.Timeout.Duration)
	}
	q := cfg.Solver.Remote["qiskit"]
	if !q.Enabled || q.Reps != 2 || !q.IncludesOffset {
		t.Errorf("remote qiskit = %+v", q)
	}
	if cfg.Pipeline.RefreshCron == "" {
		t.Error("pipeline refresh_cron default lost")
	}

	costs, err := cfg.CostTable()
	if err != nil {
		t.Fatal(err)
	}
	if !costs[15].Cost.Equal(decimal.RequireFromString("3.50")) {
		t.Errorf("cost[15] = %s", costs[15].Cost)
	}
	// The costs table merges per key, so the default sizes survive.
	if _, ok := costs[16]; !ok {
		t.Error("cost[16] missing after merge")
	}

	targets, err := cfg.LargeTargets()
	if err != nil {
		t.Fatal(err)
	}
	if targets[17] != 5 {
		t.Errorf("large targets = %v", targets)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadEmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Mode != "optimize" {
		t.Errorf("mode = %q", cfg.Mode)
	}
}

func TestEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
[solver]
order = ["cirq", "exhaustive"]

[solver.remote.cirq]
base_url = "http://cirq:8000"
`)
	t.Setenv("LOTOQUBO_MODE", "fetch")
	t.Setenv("LOTOQUBO_OPTIMIZER_BUDGETS", "10, 20.5")
	t.Setenv("LOTOQUBO_OPTIMIZER_SEED", "7")
	t.Setenv("LOTOQUBO_REDIS_ENABLED", "true")
	t.Setenv("LOTOQUBO_SERVER_RATE_WINDOW", "30s")
	t.Setenv("LOTOQUBO_SERVER_CORS_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("LOTOQUBO_SOLVER_REMOTE_CIRQ_ENABLED", "true")
	t.Setenv("LOTOQUBO_SOLVER_REMOTE_CIRQ_API_KEY", "secret")
	t.Setenv("LOTOQUBO_POSTGRES_PORT", "not-a-number")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Mode != "fetch" {
		t.Errorf("mode = %q", cfg.Mode)
	}
	if got := cfg.Optimizer.Budgets; len(got) != 2 || got[1] != 20.5 {
		t.Errorf("budgets = %v", got)
	}
	if cfg.Optimizer.Seed != 7 {
		t.Errorf("seed = %d", cfg.Optimizer.Seed)
	}
	if !cfg.Redis.Enabled {
		t.Error("redis should be enabled")
	}
	if cfg.Server.RateWindow.Duration != 30*time.Second {
		t.Errorf("rate window = %v", cfg.Server.RateWindow.Duration)
	}
	if got := cfg.Server.CORSOrigins; len(got) != 2 || got[1] != "https://b.example" {
		t.Errorf("cors = %v", got)
	}
	cirq := cfg.Solver.Remote["cirq"]
	if !cirq.Enabled || cirq.APIKey != "secret" {
		t.Errorf("cirq = %+v", cirq)
	}
	// Malformed values leave the default in place.
	if cfg.Postgres.Port != 5432 {
		t.Errorf("postgres port = %d", cfg.Postgres.Port)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown mode", func(c *Config) { c.Mode = "trade" }, `unknown mode "trade"`},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "unknown log_level"},
		{"no budgets", func(c *Config) { c.Optimizer.Budgets = nil }, "budgets must not be empty"},
		{"negative budget", func(c *Config) { c.Optimizer.Budgets = []float64{-1} }, "budget must be a finite number > 0"},
		{"nan budget", func(c *Config) { c.Optimizer.Budgets = []float64{100, math.NaN()} }, "got NaN"},
		{"inf budget", func(c *Config) { c.Optimizer.Budgets = []float64{math.Inf(1)} }, "got +Inf"},
		{"zero lambda", func(c *Config) { c.Optimizer.Lambda = 0 }, "lambda must be > 0"},
		{"nan lambda", func(c *Config) { c.Optimizer.Lambda = math.NaN() }, "lambda must be > 0"},
		{"pool too small", func(c *Config) { c.Optimizer.PoolSize = 10 }, "pool_size must be 16-25"},
		{"bad large target size", func(c *Config) {
			c.Optimizer.LargeTargets = map[string]int{"16": 3}
		}, "invalid bet size"},
		{"bad cost", func(c *Config) {
			c.Costs = map[string]CostConfig{"15": {Cost: "abc", Combinations: 1}}
		}, "costs: size 15"},
		{"size 15 unpriced", func(c *Config) {
			c.Costs = map[string]CostConfig{"16": {Cost: "48", Combinations: 16}}
		}, "size 15 must be priced"},
		{"unknown solver", func(c *Config) { c.Solver.Order = []string{"braket"} }, `"braket" in order`},
		{"remote without url", func(c *Config) {
			c.Solver.Order = []string{"qiskit"}
			c.Solver.Remote = map[string]RemoteSolverConfig{"qiskit": {Enabled: true}}
		}, "remote.qiskit: base_url"},
		{"postgres without host", func(c *Config) {
			c.Postgres.Enabled = true
			c.Postgres.Host = ""
		}, "postgres: host"},
		{"sqlite with postgres", func(c *Config) {
			c.Postgres.Enabled = true
			c.SQLite.Enabled = true
		}, "sqlite: cannot be enabled"},
		{"sqlite without path", func(c *Config) {
			c.SQLite.Enabled = true
			c.SQLite.Path = " "
		}, "sqlite: path"},
		{"redis disabled ignores addr", func(c *Config) {
			c.Redis.Addr = ""
		}, ""},
		{"serve needs port", func(c *Config) {
			c.Mode = "serve"
			c.Server.Port = 0
		}, "server: port"},
		{"half telegram", func(c *Config) { c.Notify.TelegramToken = "t" }, "telegram_chat_id"},
		{"half slack", func(c *Config) { c.Notify.SlackChannel = "#loto" }, "slack_token"},
		{"bad cron", func(c *Config) {
			c.Pipeline.Enabled = true
			c.Pipeline.RefreshCron = "every day"
		}, "pipeline: refresh_cron"},
		{"bad timezone", func(c *Config) {
			c.Pipeline.Enabled = true
			c.Pipeline.Timezone = "Mars/Olympus"
		}, "pipeline: timezone"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.want == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q", tt.want)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not contain %q", err, tt.want)
			}
		})
	}
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "nope"
	cfg.Optimizer.Lambda = -1
	cfg.Optimizer.Concurrency = 0
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	if n := strings.Count(err.Error(), "\n  - "); n != 3 {
		t.Errorf("got %d problems, want 3: %v", n, err)
	}
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Postgres.Password = "pw"
	cfg.Redis.Password = "rpw"
	cfg.S3.SecretKey = "sk"
	cfg.Server.APIKey = "key"
	cfg.Notify.TelegramToken = "tg"
	cfg.Notify.SlackToken = "xoxb"
	cfg.Solver.Remote = map[string]RemoteSolverConfig{"qiskit": {APIKey: "qk"}}

	out := RedactedConfig(&cfg)
	for name, got := range map[string]string{
		"postgres": out.Postgres.Password,
		"redis":    out.Redis.Password,
		"s3":       out.S3.SecretKey,
		"server":   out.Server.APIKey,
		"telegram": out.Notify.TelegramToken,
		"slack":    out.Notify.SlackToken,
		"remote":   out.Solver.Remote["qiskit"].APIKey,
	} {
		if got != redacted {
			t.Errorf("%s secret not redacted: %q", name, got)
		}
	}
	if out.S3.AccessKey != "" {
		t.Errorf("empty secret should stay empty, got %q", out.S3.AccessKey)
	}

	if cfg.Solver.Remote["qiskit"].APIKey != "qk" || cfg.Postgres.Password != "pw" {
		t.Error("original config was mutated")
	}
	out.Optimizer.Budgets[0] = 999
	if cfg.Optimizer.Budgets[0] == 999 {
		t.Error("budgets slice shared with original")
	}
}

func TestExampleConfigMatchesDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("DATABASE_URL", "")
	cfg, err := Load(filepath.Join("..", "..", "config.example.toml"))
	if err != nil {
		t.Fatalf("load example: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("example does not validate: %v", err)
	}
	if want := Defaults(); !reflect.DeepEqual(*cfg, want) {
		t.Errorf("config.example.toml drifted from Defaults():\n got %+v\nwant %+v", *cfg, want)
	}
}

func TestValidateRejectsNonFiniteBudgetsFromFile(t *testing.T) {
	path := writeConfig(t, "[optimizer]\nbudgets = [nan, inf, 100.0]\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	err = cfg.Validate()
	if err == nil {
		t.Fatal("expected non-finite budgets to be rejected")
	}
	if n := strings.Count(err.Error(), "budget must be a finite number"); n != 2 {
		t.Errorf("got %d budget problems, want 2: %v", n, err)
	}
}
