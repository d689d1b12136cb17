// Package database wraps database/sql connection pool setup and
// configuration for the Postgres-backed persistence gateway.
package database

import (
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	qaerrors "github.com/jordigilh/qa-intelligence/pkg/shared/errors"
	"github.com/jordigilh/qa-intelligence/pkg/shared/logging"
)

// Config holds connection parameters and pool sizing for the Postgres
// database backing the persistence gateway.
type Config struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DefaultConfig returns connection defaults for local development.
func DefaultConfig() *Config {
	return &Config{
		Host:            "localhost",
		Port:            5432,
		User:            "qa_user",
		Database:        "qa_intelligence",
		SSLMode:         "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 5 * time.Minute,
	}
}

// LoadFromEnv overlays recognized QA_DATABASE_* environment variables onto
// config. Unset or unparsable values leave the existing field untouched.
func (c *Config) LoadFromEnv() {
	if v := os.Getenv("QA_DATABASE_HOST"); v != "" {
		c.Host = v
	}
	if v := os.Getenv("QA_DATABASE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Port = port
		}
	}
	if v := os.Getenv("QA_DATABASE_USER"); v != "" {
		c.User = v
	}
	if v := os.Getenv("QA_DATABASE_PASSWORD"); v != "" {
		c.Password = v
	}
	if v := os.Getenv("QA_DATABASE_NAME"); v != "" {
		c.Database = v
	}
	if v := os.Getenv("QA_DATABASE_SSL_MODE"); v != "" {
		c.SSLMode = v
	}
	if v := os.Getenv("QA_DATABASE_MAX_OPEN_CONNS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxOpenConns = n
		}
	}
	if v := os.Getenv("QA_DATABASE_MAX_IDLE_CONNS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxIdleConns = n
		}
	}
}

// Validate reports whether config has enough information to open a
// connection.
func (c *Config) Validate() error {
	if c.Host == "" {
		return qaerrors.ConfigurationError("host", "database host is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return qaerrors.ConfigurationError("port", "database port must be between 1 and 65535")
	}
	if c.User == "" {
		return qaerrors.ConfigurationError("user", "database user is required")
	}
	if c.Database == "" {
		return qaerrors.ConfigurationError("database", "database name is required")
	}
	if c.MaxOpenConns <= 0 {
		return qaerrors.ConfigurationError("max_open_conns", "max open connections must be greater than 0")
	}
	if c.MaxIdleConns < 0 {
		return qaerrors.ConfigurationError("max_idle_conns", "max idle connections must be non-negative")
	}
	return nil
}

// ConnectionString builds a libpq-style key/value connection string,
// omitting the password field entirely when empty.
func (c *Config) ConnectionString() string {
	s := fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=%s", c.Host, c.Port, c.User, c.Database, c.SSLMode)
	if c.Password != "" {
		s += fmt.Sprintf(" password=%s", c.Password)
	}
	return s
}

// Connect validates config and opens a pooled connection using the pgx
// stdlib driver.
func Connect(config *Config, log *logrus.Logger) (*sql.DB, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid database configuration: %w", err)
	}

	db, err := sql.Open("pgx", config.ConnectionString())
	if err != nil {
		return nil, qaerrors.DatabaseError("open", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	log.WithFields(logging.DatabaseFields("connect", config.Database).
		Custom("max_open_conns", config.MaxOpenConns).
		Custom("max_idle_conns", config.MaxIdleConns).ToLogrus()).
		Info("database connection pool configured")

	return db, nil
}
