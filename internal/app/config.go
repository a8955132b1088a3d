package app

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config is built from defaults, then an optional YAML file (CONFIG_FILE),
// then the environment. Only variables that are set override earlier layers.
type Config struct {
	LogMode      string `yaml:"log_mode" env:"LOG_MODE"`
	LogRedaction bool   `yaml:"log_redaction" env:"LOG_REDACTION_ENABLED"`
	LogHashSalt  string `yaml:"log_hash_salt" env:"LOG_HASH_SALT"`
	Port         string `yaml:"port" env:"PORT"`
	ServiceName  string `yaml:"service_name" env:"SERVICE_NAME"`
	Environment  string `yaml:"environment" env:"ENVIRONMENT"`
	Version      string `yaml:"version" env:"SERVICE_VERSION"`

	CORSOrigins []string `yaml:"cors_origins" env:"CORS_ORIGINS" envSeparator:","`

	DBDriver   string         `yaml:"db_driver" env:"DB_DRIVER"`
	Postgres   PostgresConfig `yaml:"postgres"`
	SQLitePath string         `yaml:"sqlite_path" env:"SQLITE_PATH"`

	RedisAddr          string        `yaml:"redis_addr" env:"REDIS_ADDR"`
	RedisChannel       string        `yaml:"redis_channel" env:"REDIS_CHANNEL"`
	SuggestionCacheTTL time.Duration `yaml:"suggestion_cache_ttl" env:"SUGGESTION_CACHE_TTL"`

	SearchDefaultLimit int `yaml:"search_default_limit" env:"SEARCH_DEFAULT_LIMIT"`
	SearchMaxLimit     int `yaml:"search_max_limit" env:"SEARCH_MAX_LIMIT"`

	LedgerMaxAttempts  int           `yaml:"ledger_max_attempts" env:"LEDGER_MAX_ATTEMPTS"`
	LedgerRetryBackoff time.Duration `yaml:"ledger_retry_backoff" env:"LEDGER_RETRY_BACKOFF"`

	// Zero disables the purge loop.
	AnalyticsRetention  time.Duration `yaml:"analytics_retention" env:"ANALYTICS_RETENTION"`
	AnalyticsPurgeEvery time.Duration `yaml:"analytics_purge_every" env:"ANALYTICS_PURGE_EVERY"`

	MetricsEnabled        bool          `yaml:"metrics_enabled" env:"METRICS_ENABLED"`
	MetricsScrapeInterval time.Duration `yaml:"metrics_scrape_interval" env:"METRICS_SCRAPE_INTERVAL"`
	Tracing               TracingConfig `yaml:"tracing"`
}

// TracingConfig uses the standard OTEL_* variable names.
type TracingConfig struct {
	Enabled     bool              `yaml:"enabled" env:"OTEL_ENABLED"`
	Endpoint    string            `yaml:"endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	Insecure    bool              `yaml:"insecure" env:"OTEL_EXPORTER_OTLP_INSECURE"`
	Headers     map[string]string `yaml:"headers" env:"OTEL_EXPORTER_OTLP_HEADERS" envKeyValSeparator:"="`
	SampleRatio float64           `yaml:"sample_ratio" env:"OTEL_SAMPLER_RATIO"`
}

type PostgresConfig struct {
	Host     string `yaml:"host" env:"POSTGRES_HOST"`
	Port     string `yaml:"port" env:"POSTGRES_PORT"`
	User     string `yaml:"user" env:"POSTGRES_USER"`
	Password string `yaml:"password" env:"POSTGRES_PASSWORD"`
	Name     string `yaml:"name" env:"POSTGRES_NAME"`
	SSLMode  string `yaml:"sslmode" env:"POSTGRES_SSLMODE"`
	DSN      string `yaml:"dsn" env:"POSTGRES_DSN"`
}

func DefaultConfig() Config {
	return Config{
		LogMode:      "development",
		LogRedaction: true,
		Port:         "8080",
		ServiceName:  "storykeep",
		Environment:  "development",
		DBDriver:     DriverPostgres,
		Postgres: PostgresConfig{
			Host:    "localhost",
			Port:    "5432",
			User:    "postgres",
			Name:    "storykeep",
			SSLMode: "disable",
		},
		SQLitePath:            "storykeep.db",
		RedisChannel:          "storykeep.wallet",
		SuggestionCacheTTL:    5 * time.Minute,
		SearchDefaultLimit:    20,
		SearchMaxLimit:        100,
		LedgerMaxAttempts:     3,
		LedgerRetryBackoff:    25 * time.Millisecond,
		AnalyticsRetention:    180 * 24 * time.Hour,
		AnalyticsPurgeEvery:   time.Hour,
		MetricsScrapeInterval: 10 * time.Second,
		Tracing:               TracingConfig{SampleRatio: 0.1},
	}
}

// LoadConfig layers CONFIG_FILE (when set) and the environment over the defaults.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("environment variables are invalid: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c Config) Validate() error {
	switch c.DBDriver {
	case DriverPostgres:
		if c.Postgres.DSN == "" && (c.Postgres.Host == "" || c.Postgres.Name == "") {
			return fmt.Errorf("postgres host and name are required")
		}
	case DriverSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			return fmt.Errorf("sqlite_path is required")
		}
	default:
		return fmt.Errorf("unsupported db_driver %q (use postgres or sqlite)", c.DBDriver)
	}
	if strings.TrimSpace(c.Port) == "" {
		return fmt.Errorf("port is required")
	}
	if c.SearchDefaultLimit <= 0 || c.SearchMaxLimit <= 0 {
		return fmt.Errorf("search limits must be > 0")
	}
	if c.SearchDefaultLimit > c.SearchMaxLimit {
		return fmt.Errorf("search_default_limit must not exceed search_max_limit")
	}
	if c.LedgerMaxAttempts <= 0 {
		return fmt.Errorf("ledger_max_attempts must be > 0")
	}
	if c.LedgerRetryBackoff < 0 || c.AnalyticsRetention < 0 {
		return fmt.Errorf("durations must not be negative")
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("tracing sample_ratio must be within [0,1]")
	}
	if c.AnalyticsRetention > 0 && c.AnalyticsPurgeEvery <= 0 {
		return fmt.Errorf("analytics_purge_every must be > 0 when retention is set")
	}
	return nil
}
