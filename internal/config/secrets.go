package config

import "maps"

// RedactedConfig returns a shallow copy of cfg with sensitive fields replaced
// by the redaction placeholder "***". Use this when logging or printing the
// active configuration so secrets are never accidentally exposed.
func RedactedConfig(cfg *Config) Config {
	out := *cfg // shallow copy of the top-level struct

	// Postgres
	redact(&out.Postgres.DSN)
	redact(&out.Postgres.Password)

	// Redis
	redact(&out.Redis.Password)

	// S3
	redact(&out.S3.AccessKey)
	redact(&out.S3.SecretKey)

	// Server
	redact(&out.Server.APIKey)

	// Notify
	redact(&out.Notify.TelegramToken)
	redact(&out.Notify.DiscordWebhookURL)
	redact(&out.Notify.SlackToken)

	// Remote solvers live in a map, so rebuild it instead of writing through
	// the shared reference.
	if cfg.Solver.Remote != nil {
		out.Solver.Remote = make(map[string]RemoteSolverConfig, len(cfg.Solver.Remote))
		for name, r := range cfg.Solver.Remote {
			redact(&r.APIKey)
			out.Solver.Remote[name] = r
		}
	}

	// Copy slices and maps so mutations to the redacted copy do not affect
	// the original.
	out.Notify.Events = append([]string(nil), cfg.Notify.Events...)
	out.Server.CORSOrigins = append([]string(nil), cfg.Server.CORSOrigins...)
	out.Solver.Order = append([]string(nil), cfg.Solver.Order...)
	out.Optimizer.Budgets = append([]float64(nil), cfg.Optimizer.Budgets...)
	out.Optimizer.LargeTargets = maps.Clone(cfg.Optimizer.LargeTargets)
	out.Costs = maps.Clone(cfg.Costs)

	return out
}

const redacted = "***"

// redact replaces a non-empty string with the redacted placeholder.
func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}
