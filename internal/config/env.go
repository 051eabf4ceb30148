package config

import (
	"os"
	"strconv"
)

// FromEnv overlays COMMANDED_* environment variables onto cfg.
func FromEnv(cfg *Config) {
	if v := os.Getenv("COMMANDED_POSTGRES_DSN"); v != "" {
		cfg.Postgres.DSN = v
	}
	if v := os.Getenv("COMMANDED_POSTGRES_MAX_CONNS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.MaxConns = int32(n)
		}
	}
	if v := os.Getenv("COMMANDED_POSTGRES_CONNECT_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.ConnectTimeoutS = n
		}
	}
	if v := os.Getenv("COMMANDED_HANDLER_DEFAULT_CONSISTENCY"); v != "" {
		cfg.Handlers.DefaultConsistency = v
	}
	if v := os.Getenv("COMMANDED_HANDLER_DEFAULT_START_FROM"); v != "" {
		cfg.Handlers.DefaultStartFrom = v
	}
	if v := os.Getenv("COMMANDED_HANDLER_READ_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Handlers.ReadBatchSize = n
		}
	}
	if v := os.Getenv("COMMANDED_HANDLER_POLL_INTERVAL_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Handlers.PollIntervalMs = n
		}
	}
}
