// Package pool wraps a pgxpool.Pool with exponential-backoff connect
// retries, query-level metrics, and health reporting for the Postgres
// profile of the document store (C5/C6).
package pool

import (
	"fmt"
	"time"
)

// Config holds connection and pool-sizing parameters for the Postgres
// backend. Field names mirror internal/config.DatabaseConfig so callers can
// map one onto the other without a translation layer of their own.
type Config struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string

	MaxConns int32
	MinConns int32

	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
	ConnectTimeout    time.Duration
}

// DefaultConfig returns sane pool sizing for a single gateway instance.
func DefaultConfig() Config {
	return Config{
		Host:              "localhost",
		Port:              5432,
		SSLMode:           "disable",
		MaxConns:          20,
		MinConns:          2,
		MaxConnLifetime:   time.Hour,
		MaxConnIdleTime:   5 * time.Minute,
		HealthCheckPeriod: 30 * time.Second,
		ConnectTimeout:    10 * time.Second,
	}
}

// Validate checks the config is complete enough to attempt a connection.
func (c Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("pool: host is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("pool: port must be between 1 and 65535")
	}
	if c.Database == "" {
		return fmt.Errorf("pool: database name is required")
	}
	if c.User == "" {
		return fmt.Errorf("pool: user is required")
	}
	if c.MaxConns <= 0 {
		return fmt.Errorf("pool: max_conns must be greater than 0")
	}
	if c.MinConns < 0 || c.MinConns > c.MaxConns {
		return fmt.Errorf("pool: min_conns must be between 0 and max_conns")
	}
	validSSLModes := map[string]bool{"disable": true, "require": true, "verify-ca": true, "verify-full": true}
	if !validSSLModes[c.SSLMode] {
		return fmt.Errorf("pool: invalid ssl_mode %q", c.SSLMode)
	}
	return nil
}

// DSN returns the connection string pgxpool.ParseConfig expects.
func (c Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode)
}
