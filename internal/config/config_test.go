package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Postgres.MaxConns != 8 {
		t.Fatalf("default max conns")
	}
	if cfg.Handlers.DefaultConsistency != "eventual" {
		t.Fatalf("default consistency")
	}
	if cfg.Handlers.DefaultStartFrom != "origin" {
		t.Fatalf("default start from")
	}
	if cfg.Handlers.ReadBatchSize != 128 {
		t.Fatalf("default batch size")
	}
}

func TestLoadJSON(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "commanded.json")
	data := []byte(`{"postgres":{"dsn":"postgres://db:5432/events","maxConns":4},"handlers":{"defaultConsistency":"strong","readBatchSize":256}}`)
	if err := os.WriteFile(file, data, 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(file)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Postgres.DSN != "postgres://db:5432/events" {
		t.Fatalf("expected dsn override")
	}
	if cfg.Postgres.MaxConns != 4 {
		t.Fatalf("expected 4 conns")
	}
	if cfg.Handlers.DefaultConsistency != "strong" {
		t.Fatalf("expected strong")
	}
	if cfg.Handlers.ReadBatchSize != 256 {
		t.Fatalf("expected 256")
	}
	// Partial file keeps defaults for what it does not set.
	if cfg.Handlers.DefaultStartFrom != "origin" {
		t.Fatalf("expected origin default kept")
	}
}

func TestLoadEmptyPath(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg != Default() {
		t.Fatalf("empty path should return defaults")
	}
}

func TestFromEnv(t *testing.T) {
	cfg := Default()
	os.Setenv("COMMANDED_POSTGRES_DSN", "postgres://env:5432/x")
	os.Setenv("COMMANDED_HANDLER_DEFAULT_CONSISTENCY", "strong")
	os.Setenv("COMMANDED_HANDLER_READ_BATCH_SIZE", "64")
	t.Cleanup(func() {
		os.Unsetenv("COMMANDED_POSTGRES_DSN")
		os.Unsetenv("COMMANDED_HANDLER_DEFAULT_CONSISTENCY")
		os.Unsetenv("COMMANDED_HANDLER_READ_BATCH_SIZE")
	})
	FromEnv(&cfg)
	if cfg.Postgres.DSN != "postgres://env:5432/x" {
		t.Fatalf("env override dsn")
	}
	if cfg.Handlers.DefaultConsistency != "strong" {
		t.Fatalf("env override consistency")
	}
	if cfg.Handlers.ReadBatchSize != 64 {
		t.Fatalf("env override batch size")
	}
}
