package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for tablescribe-engine.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"3470"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// Database configuration (engine store, PostgreSQL)
	Database DatabaseConfig `yaml:"database"`

	// Datasource configuration (the database under analysis)
	Datasource DatasourceConfig `yaml:"datasource"`

	// Analysis pipeline configuration
	Analysis AnalysisConfig `yaml:"analysis"`

	// AI backend configuration
	AI AIConfig `yaml:"ai"`
}

// DatabaseConfig holds PostgreSQL database configuration for the engine store.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"tablescribe"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"tablescribe_engine"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
	MigrationsPath string `yaml:"migrations_path" env:"PGMIGRATIONS_PATH" env-default:"migrations"`
}

// DatasourceConfig describes the database under analysis. Driver selects the
// registered catalog implementation ("postgres" or "sqlserver").
type DatasourceConfig struct {
	Driver   string `yaml:"driver" env:"DATASOURCE_DRIVER" env-default:"postgres"`
	Host     string `yaml:"host" env:"DATASOURCE_HOST" env-default:"localhost"`
	Port     int    `yaml:"port" env:"DATASOURCE_PORT"`
	Database string `yaml:"database" env:"DATASOURCE_DATABASE"`
	User     string `yaml:"user" env:"DATASOURCE_USER"`
	Password string `yaml:"-" env:"DATASOURCE_PASSWORD"` // Secret - not in YAML
	SSLMode  string `yaml:"ssl_mode" env:"DATASOURCE_SSL_MODE" env-default:"require"`
	Schema   string `yaml:"schema" env:"DATASOURCE_SCHEMA" env-default:"public"`
}

// Map converts the datasource config to the generic form catalog factories
// accept.
func (c *DatasourceConfig) Map() map[string]any {
	return map[string]any{
		"host":     c.Host,
		"port":     c.Port,
		"database": c.Database,
		"user":     c.User,
		"password": c.Password,
		"sslmode":  c.SSLMode,
	}
}

// AnalysisConfig holds tunables for the incremental analysis pipeline.
// Thresholds and ceilings are configurable defaults, not hard-coded invariants.
type AnalysisConfig struct {
	// BatchSize is the number of work units processed per Advance call.
	BatchSize int `yaml:"batch_size" env:"ANALYSIS_BATCH_SIZE" env-default:"5"`

	// UnitRetries is the per-unit retry budget for transient failures within a batch.
	UnitRetries int `yaml:"unit_retries" env:"ANALYSIS_UNIT_RETRIES" env-default:"3"`

	// UnitTimeoutSeconds bounds each external analysis call. Expiry is treated
	// as a retryable transient failure.
	UnitTimeoutSeconds int `yaml:"unit_timeout_seconds" env:"ANALYSIS_UNIT_TIMEOUT_SECONDS" env-default:"90"`

	// MaxConcurrentUnits bounds in-batch fan-out to the analysis backend.
	MaxConcurrentUnits int `yaml:"max_concurrent_units" env:"ANALYSIS_MAX_CONCURRENT_UNITS" env-default:"4"`

	// MaxConsecutiveFailedBatches is how many fully-failed batches are tolerated
	// before the job is marked failed.
	MaxConsecutiveFailedBatches int `yaml:"max_consecutive_failed_batches" env:"ANALYSIS_MAX_CONSECUTIVE_FAILED_BATCHES" env-default:"3"`

	// AutoAcceptThreshold is the confidence at or above which a relationship
	// candidate is recorded without raising a review question.
	AutoAcceptThreshold float64 `yaml:"auto_accept_threshold" env:"ANALYSIS_AUTO_ACCEPT_THRESHOLD" env-default:"0.9"`

	// ReviewThreshold is the confidence below which relationship questions are
	// emitted at low priority with explicit reasoning.
	ReviewThreshold float64 `yaml:"review_threshold" env:"ANALYSIS_REVIEW_THRESHOLD" env-default:"0.7"`

	// PollIntervalSeconds is the cadence at which the poller drives Advance
	// for running jobs.
	PollIntervalSeconds int `yaml:"poll_interval_seconds" env:"ANALYSIS_POLL_INTERVAL_SECONDS" env-default:"5"`
}

// UnitTimeout returns the per-unit call timeout as a duration.
func (c *AnalysisConfig) UnitTimeout() time.Duration {
	return time.Duration(c.UnitTimeoutSeconds) * time.Second
}

// PollInterval returns the Advance polling cadence as a duration.
func (c *AnalysisConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

// AIConfig holds analysis backend endpoints and credentials.
// Provider is "openai" for any OpenAI-compatible endpoint, or "anthropic".
type AIConfig struct {
	Provider string `yaml:"provider" env:"AI_PROVIDER" env-default:"openai"`
	BaseURL  string `yaml:"base_url" env:"AI_BASE_URL" env-default:""`
	Model    string `yaml:"model" env:"AI_MODEL" env-default:"gpt-4o-mini"`
	APIKey   string `yaml:"-" env:"AI_API_KEY"` // Secret - not in YAML
}

// Load reads configuration from config.yaml (if present) and the environment.
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	// Load config from YAML file with environment variable overrides.
	// A missing config.yaml is fine; env vars and defaults carry the config.
	if _, err := os.Stat("config.yaml"); err == nil {
		if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
			return nil, fmt.Errorf("failed to read config.yaml: %w", err)
		}
	} else {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Analysis.BatchSize < 1 {
		return fmt.Errorf("analysis batch_size must be at least 1, got %d", c.Analysis.BatchSize)
	}
	if c.Analysis.MaxConcurrentUnits < 1 {
		return fmt.Errorf("analysis max_concurrent_units must be at least 1, got %d", c.Analysis.MaxConcurrentUnits)
	}
	if c.Analysis.AutoAcceptThreshold < c.Analysis.ReviewThreshold {
		return fmt.Errorf("auto_accept_threshold (%g) must not be below review_threshold (%g)",
			c.Analysis.AutoAcceptThreshold, c.Analysis.ReviewThreshold)
	}
	return nil
}

// ConnectionString returns a PostgreSQL connection string for the engine store.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}
