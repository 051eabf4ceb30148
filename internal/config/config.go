package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"
)

// Config is the top-level configuration loaded from file/env.
type Config struct {
	Postgres PostgresConfig  `json:"postgres"`
	Handlers HandlerDefaults `json:"handlers"`
}

// PostgresConfig carries the event-store connection settings.
type PostgresConfig struct {
	DSN             string `json:"dsn"`
	MaxConns        int32  `json:"maxConns"`
	ConnectTimeoutS int    `json:"connectTimeoutSeconds"`
}

// HandlerDefaults captures the process-wide handler baseline; individual
// handlers override these through their declared and start-time options.
type HandlerDefaults struct {
	DefaultConsistency string `json:"defaultConsistency"`
	DefaultStartFrom   string `json:"defaultStartFrom"`
	ReadBatchSize      int    `json:"readBatchSize"`
	PollIntervalMs     int    `json:"pollIntervalMs"`
}

// Default returns built-in defaults.
func Default() Config {
	return Config{
		Postgres: PostgresConfig{
			DSN:             "postgres://localhost:5432/commanded",
			MaxConns:        8,
			ConnectTimeoutS: 10,
		},
		Handlers: HandlerDefaults{
			DefaultConsistency: "eventual",
			DefaultStartFrom:   "origin",
			ReadBatchSize:      128,
			PollIntervalMs:     50,
		},
	}
}

// ConnectTimeout returns the connect timeout as a duration.
func (p PostgresConfig) ConnectTimeout() time.Duration {
	return time.Duration(p.ConnectTimeoutS) * time.Second
}

// Load reads configuration from a JSON file. If path is empty, returns
// defaults. Loaded values overlay the defaults, so a partial file is fine.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := Default()
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		return Config{}, errors.New("yaml config not supported yet; use JSON for now")
	default:
		if err := json.Unmarshal(b, &cfg); err != nil {
			return Config{}, err
		}
	}
	return cfg, nil
}
