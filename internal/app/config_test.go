package app

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.DBDriver != DriverPostgres || cfg.Port != "8080" {
		t.Fatalf("unexpected defaults: driver=%q port=%q", cfg.DBDriver, cfg.Port)
	}
	if cfg.SearchDefaultLimit != 20 || cfg.SearchMaxLimit != 100 {
		t.Fatalf("search limits: %d/%d", cfg.SearchDefaultLimit, cfg.SearchMaxLimit)
	}
	if cfg.SuggestionCacheTTL != 5*time.Minute {
		t.Fatalf("ttl: %v", cfg.SuggestionCacheTTL)
	}
}

func TestLoadConfigFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "storykeep.yaml")
	body := strings.Join([]string{
		"db_driver: sqlite",
		"sqlite_path: /var/lib/storykeep/data.db",
		"port: \"9000\"",
		"search_default_limit: 10",
		"ledger_max_attempts: 5",
		"cors_origins:",
		"  - https://app.example.com",
		"postgres:",
		"  host: db.internal",
	}, "\n")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PORT", "9100")
	t.Setenv("SUGGESTION_CACHE_TTL", "90s")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.DBDriver != DriverSQLite || cfg.SQLitePath != "/var/lib/storykeep/data.db" {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.Port != "9100" {
		t.Fatalf("env should win over file, got port %q", cfg.Port)
	}
	if cfg.SearchDefaultLimit != 10 || cfg.SearchMaxLimit != 100 {
		t.Fatalf("limits: %d/%d", cfg.SearchDefaultLimit, cfg.SearchMaxLimit)
	}
	if cfg.LedgerMaxAttempts != 5 {
		t.Fatalf("attempts: %d", cfg.LedgerMaxAttempts)
	}
	if cfg.SuggestionCacheTTL != 90*time.Second {
		t.Fatalf("ttl: %v", cfg.SuggestionCacheTTL)
	}
	if len(cfg.CORSOrigins) != 1 || cfg.CORSOrigins[0] != "https://app.example.com" {
		t.Fatalf("cors: %v", cfg.CORSOrigins)
	}
	if cfg.Postgres.Host != "db.internal" || cfg.Postgres.Port != "5432" {
		t.Fatalf("nested postgres merge: %+v", cfg.Postgres)
	}
}

func TestLoadConfigEnvList(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("CORS_ORIGINS", "https://a.example.com,https://b.example.com")
	t.Setenv("METRICS_ENABLED", "true")
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if len(cfg.CORSOrigins) != 2 || !cfg.MetricsEnabled {
		t.Fatalf("unexpected: %v metrics=%v", cfg.CORSOrigins, cfg.MetricsEnabled)
	}
}

func TestLoadConfigTracingEnv(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("OTEL_ENABLED", "true")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4318")
	t.Setenv("OTEL_EXPORTER_OTLP_HEADERS", "x-api-key=abc,x-team=stories")
	t.Setenv("OTEL_SAMPLER_RATIO", "0.5")
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	tr := cfg.Tracing
	if !tr.Enabled || tr.Endpoint != "collector:4318" || tr.SampleRatio != 0.5 || tr.Insecure {
		t.Fatalf("tracing: %+v", tr)
	}
	if len(tr.Headers) != 2 || tr.Headers["x-api-key"] != "abc" || tr.Headers["x-team"] != "stories" {
		t.Fatalf("headers: %v", tr.Headers)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "nope.yaml"))
		if _, err := LoadConfig(); err == nil {
			t.Fatalf("expected error for missing file")
		}
	})
	t.Run("bad duration", func(t *testing.T) {
		t.Setenv("CONFIG_FILE", "")
		t.Setenv("LEDGER_RETRY_BACKOFF", "soon")
		if _, err := LoadConfig(); err == nil {
			t.Fatalf("expected parse error")
		}
	})
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown driver", func(c *Config) { c.DBDriver = "mysql" }, "unsupported db_driver"},
		{"sqlite without path", func(c *Config) { c.DBDriver = DriverSQLite; c.SQLitePath = " " }, "sqlite_path"},
		{"postgres without host", func(c *Config) { c.Postgres.Host = "" }, "postgres host"},
		{"default above max", func(c *Config) { c.SearchDefaultLimit = 200 }, "must not exceed"},
		{"zero attempts", func(c *Config) { c.LedgerMaxAttempts = 0 }, "ledger_max_attempts"},
		{"purge interval", func(c *Config) { c.AnalyticsPurgeEvery = 0 }, "analytics_purge_every"},
		{"negative", func(c *Config) { c.LedgerRetryBackoff = -time.Second }, "negative"},
		{"sample ratio", func(c *Config) { c.Tracing.SampleRatio = 1.5 }, "sample_ratio"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Validate() = %v, want error containing %q", err, tt.want)
			}
		})
	}

	cfg := DefaultConfig()
	cfg.Postgres.Host = ""
	cfg.Postgres.DSN = "postgres://u:p@h/db"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("dsn should satisfy postgres: %v", err)
	}
}
