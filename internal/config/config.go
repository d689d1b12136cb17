// Package config loads the application's YAML settings file with
// environment-variable overrides, producing the settings object the core
// packages are wired against.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	qaerrors "github.com/jordigilh/qa-intelligence/pkg/shared/errors"
)

// ServerConfig controls the HTTP listener the embedding application binds.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port string `yaml:"port"`
}

// DatabaseConfig holds the Postgres connection URL and pool sizing. The
// URL form (rather than discrete host/user/password fields) mirrors how
// the embedding application actually supplies it; internal/database.Config
// is built from this at startup.
type DatabaseConfig struct {
	URL             string        `yaml:"url"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
}

// EncryptionConfig holds the hex-encoded symmetric key used by the
// embedding application's credential store. This package only carries the
// key through; encryption-at-rest itself is an external collaborator's
// responsibility.
type EncryptionConfig struct {
	KeyHex string `yaml:"key_hex"`
}

// AIProviderConfig configures one named AI provider slot (e.g. "openai",
// "anthropic"). APIKey is read from the YAML file only; loadFromEnv has no
// override for it.
type AIProviderConfig struct {
	Provider string `yaml:"provider"`
	APIKey   string `yaml:"api_key"`
	BaseURL  string `yaml:"base_url"`
	Model    string `yaml:"model"`
}

// AIConfig selects the default provider and lists every configured one.
type AIConfig struct {
	DefaultProvider string                      `yaml:"default_provider"`
	Providers       map[string]AIProviderConfig `yaml:"providers"`
}

// AlertingConfig mirrors pkg/alerting.Config's shape for YAML loading; the
// core converts it at startup.
type AlertingConfig struct {
	MinSeverity            string `yaml:"min_severity"`
	InAppEnabled           bool   `yaml:"in_app_enabled"`
	EmailEnabled           bool   `yaml:"email_enabled"`
	SlackEnabled           bool   `yaml:"slack_enabled"`
	EmailRecipient         string `yaml:"email_recipient"`
	SlackWebhookURL        string `yaml:"slack_webhook_url"`
	RateLimitWindowSeconds int64  `yaml:"rate_limit_window_seconds"`
	MaxAlertsPerWindow     int    `yaml:"max_alerts_per_window"`
}

// HealthConfig configures the integration health scheduler.
type HealthConfig struct {
	IntervalSeconds       int64 `yaml:"interval_seconds"`
	AlertThresholdMinutes int64 `yaml:"alert_threshold_minutes"`
	RunInitialCheck       bool  `yaml:"run_initial_check"`
}

// LoggingConfig controls the ambient logger's level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config is the top-level settings object loaded from YAML plus
// environment overrides.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Encryption EncryptionConfig `yaml:"encryption"`
	AI         AIConfig         `yaml:"ai"`
	Alerting   AlertingConfig   `yaml:"alerting"`
	Health     HealthConfig     `yaml:"health"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// Load reads the YAML file at path, applies environment overrides, fills
// defaults, and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := &Config{}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(config)

	if err := loadFromEnv(config); err != nil {
		return nil, err
	}

	if err := validate(config); err != nil {
		return nil, err
	}

	return config, nil
}

func applyDefaults(config *Config) {
	if config.Database.MaxOpenConns == 0 {
		config.Database.MaxOpenConns = 25
	}
	if config.Database.MaxIdleConns == 0 {
		config.Database.MaxIdleConns = 5
	}
	if config.Database.ConnMaxLifetime == 0 {
		config.Database.ConnMaxLifetime = 5 * time.Minute
	}
	if config.Database.ConnMaxIdleTime == 0 {
		config.Database.ConnMaxIdleTime = 5 * time.Minute
	}
	if config.Health.IntervalSeconds == 0 {
		config.Health.IntervalSeconds = 60
	}
	if config.Health.AlertThresholdMinutes == 0 {
		config.Health.AlertThresholdMinutes = 2
	}
	if config.Alerting.MinSeverity == "" {
		config.Alerting.MinSeverity = "warning"
	}
	if config.Alerting.RateLimitWindowSeconds == 0 {
		config.Alerting.RateLimitWindowSeconds = 300
	}
	if config.Alerting.MaxAlertsPerWindow == 0 {
		config.Alerting.MaxAlertsPerWindow = 10
	}
	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}
	if config.Logging.Format == "" {
		config.Logging.Format = "json"
	}
}

// loadFromEnv overlays recognized QA_* environment variables onto config.
func loadFromEnv(config *Config) error {
	if v := os.Getenv("QA_SERVER_HOST"); v != "" {
		config.Server.Host = v
	}
	if v := os.Getenv("QA_SERVER_PORT"); v != "" {
		config.Server.Port = v
	}
	if v := os.Getenv("QA_DATABASE_URL"); v != "" {
		config.Database.URL = v
	}
	if v := os.Getenv("QA_DATABASE_MAX_OPEN_CONNS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid QA_DATABASE_MAX_OPEN_CONNS: %w", err)
		}
		config.Database.MaxOpenConns = n
	}
	if v := os.Getenv("QA_DATABASE_MAX_IDLE_CONNS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid QA_DATABASE_MAX_IDLE_CONNS: %w", err)
		}
		config.Database.MaxIdleConns = n
	}
	if v := os.Getenv("QA_ENCRYPTION_KEY_HEX"); v != "" {
		config.Encryption.KeyHex = v
	}
	if v := os.Getenv("QA_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
	return nil
}

func validate(config *Config) error {
	if config.Database.URL == "" {
		return qaerrors.ConfigurationError("database.url", "database URL is required")
	}
	if config.Database.MaxOpenConns <= 0 {
		return qaerrors.ConfigurationError("database.max_open_conns", "must be greater than 0")
	}
	if config.Database.MaxIdleConns < 0 {
		return qaerrors.ConfigurationError("database.max_idle_conns", "must be non-negative")
	}
	if config.Health.IntervalSeconds <= 0 {
		return qaerrors.ConfigurationError("health.interval_seconds", "must be greater than 0")
	}
	if config.Alerting.MaxAlertsPerWindow <= 0 {
		return qaerrors.ConfigurationError("alerting.max_alerts_per_window", "must be greater than 0")
	}
	for name, provider := range config.AI.Providers {
		if provider.Model == "" {
			return qaerrors.ConfigurationError(fmt.Sprintf("ai.providers.%s.model", name), "model is required")
		}
	}
	return nil
}
