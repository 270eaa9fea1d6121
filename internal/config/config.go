// Package config loads and validates docgraph's runtime configuration.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the fully merged application configuration.
type Config struct {
	// Profile selects the document-store backend wired up at startup.
	// Values: "mock" (in-memory, tests/dev), "sqlite" (embedded, single
	// node), "postgres" (pooled, HA).
	Profile Profile `mapstructure:"profile" validate:"required,oneof=mock sqlite postgres"`

	Server    ServerConfig    `mapstructure:"server" validate:"required"`
	Database  DatabaseConfig  `mapstructure:"database"`
	SQLite    SQLiteConfig    `mapstructure:"sqlite"`
	Redis     RedisConfig     `mapstructure:"redis"`
	WriteQueue WriteQueueConfig `mapstructure:"write_queue" validate:"required"`
	Health    HealthConfig    `mapstructure:"health" validate:"required"`
	GraphQL   GraphQLConfig   `mapstructure:"graphql" validate:"required"`
	Authz     AuthzConfig     `mapstructure:"authz"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
	Log       LogConfig       `mapstructure:"log" validate:"required"`
	Metrics   MetricsConfig   `mapstructure:"metrics" validate:"required"`
	App       AppConfig       `mapstructure:"app" validate:"required"`
}

// Profile is the document-store backend selector.
type Profile string

const (
	ProfileMock     Profile = "mock"
	ProfileSQLite   Profile = "sqlite"
	ProfilePostgres Profile = "postgres"
)

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Host                    string        `mapstructure:"host" validate:"required"`
	Port                    int           `mapstructure:"port" validate:"required,min=1,max=65535"`
	ReadTimeout             time.Duration `mapstructure:"read_timeout"`
	WriteTimeout            time.Duration `mapstructure:"write_timeout"`
	IdleTimeout             time.Duration `mapstructure:"idle_timeout"`
	GracefulShutdownTimeout time.Duration `mapstructure:"graceful_shutdown_timeout"`
	EnableIntrospection     bool          `mapstructure:"enable_introspection"`
	EnablePlayground        bool          `mapstructure:"enable_playground"`
}

// DatabaseConfig holds the pooled Postgres connection settings (C6/C5).
type DatabaseConfig struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	Database          string        `mapstructure:"database"`
	User              string        `mapstructure:"user"`
	Password          string        `mapstructure:"password"`
	SSLMode           string        `mapstructure:"ssl_mode"`
	MaxConns          int32         `mapstructure:"max_conns"`
	MinConns          int32         `mapstructure:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
	ConnectTimeout    time.Duration `mapstructure:"connect_timeout"`
	MinCompatVersion  string        `mapstructure:"min_compat_version"`
	MaxCompatVersion  string        `mapstructure:"max_compat_version"`
}

// SQLiteConfig holds the embedded backend's file settings.
type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

// RedisConfig holds the shared-tier cache settings used by authzcache and
// the GraphQL response cache.
type RedisConfig struct {
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// WriteQueueConfig holds durable write-queue settings (C7).
type WriteQueueConfig struct {
	SnapshotPath    string        `mapstructure:"snapshot_path" validate:"required"`
	MaxSize         int           `mapstructure:"max_size" validate:"required,min=1"`
	MaxAttempts     int           `mapstructure:"max_attempts" validate:"required,min=1"`
	InitialBackoff  time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff      time.Duration `mapstructure:"max_backoff"`
	FlushInterval   time.Duration `mapstructure:"flush_interval"`
}

// HealthConfig holds the readiness supervisor's cache windows (C8).
type HealthConfig struct {
	CheckInterval     time.Duration `mapstructure:"check_interval"`
	SnapshotTTL       time.Duration `mapstructure:"snapshot_ttl"`
	StaleWindow       time.Duration `mapstructure:"stale_window"`
	FailureThreshold  int           `mapstructure:"failure_threshold"`
	RecoveryThreshold int           `mapstructure:"recovery_threshold"`
}

// GraphQLConfig holds the request pipeline's limits (C9).
type GraphQLConfig struct {
	MaxDepth           int           `mapstructure:"max_depth" validate:"required,min=1"`
	MaxComplexity      int           `mapstructure:"max_complexity" validate:"required,min=1"`
	OperationTimeout   time.Duration `mapstructure:"operation_timeout" validate:"required"`
	ResponseCacheTTL   time.Duration `mapstructure:"response_cache_ttl"`
	DataloaderBatchMax int           `mapstructure:"dataloader_batch_max" validate:"required,min=1"`
	DataloaderWait     time.Duration `mapstructure:"dataloader_wait"`
}

// AuthzConfig holds authorization-cache settings (C10).
type AuthzConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	TTL         time.Duration `mapstructure:"ttl"`
	ShardCount  int           `mapstructure:"shard_count"`
	ShardSize   int           `mapstructure:"shard_size"`
	UseSharedTier bool        `mapstructure:"use_shared_tier"`
}

// TracingConfig holds OTel sampling settings (C13).
type TracingConfig struct {
	Enabled          bool    `mapstructure:"enabled"`
	ServiceName      string  `mapstructure:"service_name"`
	Endpoint         string  `mapstructure:"endpoint"`
	SampleRatio      float64 `mapstructure:"sample_ratio"`
	AlwaysSampleErrors bool  `mapstructure:"always_sample_errors"`
}

// LogConfig holds structured logging settings (C2).
type LogConfig struct {
	Level         string `mapstructure:"level"`
	Format        string `mapstructure:"format"`
	Output        string `mapstructure:"output"`
	Filename      string `mapstructure:"filename"`
	MaxSizeMB     int    `mapstructure:"max_size_mb"`
	MaxBackups    int    `mapstructure:"max_backups"`
	MaxAgeDays    int    `mapstructure:"max_age_days"`
	SanitizePII   bool   `mapstructure:"sanitize_pii"`
}

// MetricsConfig holds the Prometheus exposition settings (C3).
type MetricsConfig struct {
	Enabled            bool `mapstructure:"enabled"`
	Path               string `mapstructure:"path"`
	MaxLabelCardinality int  `mapstructure:"max_label_cardinality"`
}

// AppConfig holds general application metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// Load performs the 4-tier merge: defaults, base config file, environment-
// named config file, environment variables (APP_ prefixed, "__" nested
// separator), then CLI flags bound through flags.
func Load(configPath string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType("yaml")
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("reading base config file: %w", err)
			}
		}
	}

	env := v.GetString("app.environment")
	if env == "" {
		env = "development"
	}
	envConfigPath := fmt.Sprintf("config.%s.yaml", env)
	v.SetConfigFile(envConfigPath)
	if err := v.MergeInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading environment config file %s: %w", envConfigPath, err)
		}
	}

	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "__"))
	v.AutomaticEnv()

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("binding CLI flags: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("profile", "sqlite")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.graceful_shutdown_timeout", "30s")
	v.SetDefault("server.enable_introspection", false)
	v.SetDefault("server.enable_playground", false)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.database", "docgraph")
	v.SetDefault("database.user", "docgraph")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")
	v.SetDefault("database.health_check_period", "30s")
	v.SetDefault("database.connect_timeout", "10s")

	v.SetDefault("sqlite.path", "./data/docgraph.db")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.dial_timeout", "5s")
	v.SetDefault("redis.read_timeout", "3s")
	v.SetDefault("redis.write_timeout", "3s")

	v.SetDefault("write_queue.snapshot_path", "./data/write_queue.json")
	v.SetDefault("write_queue.max_size", 10000)
	v.SetDefault("write_queue.max_attempts", 8)
	v.SetDefault("write_queue.initial_backoff", "200ms")
	v.SetDefault("write_queue.max_backoff", "30s")
	v.SetDefault("write_queue.flush_interval", "1s")

	v.SetDefault("health.check_interval", "10s")
	v.SetDefault("health.snapshot_ttl", "5s")
	v.SetDefault("health.stale_window", "15s")
	v.SetDefault("health.failure_threshold", 3)
	v.SetDefault("health.recovery_threshold", 2)

	v.SetDefault("graphql.max_depth", 12)
	v.SetDefault("graphql.max_complexity", 1000)
	v.SetDefault("graphql.operation_timeout", "30s")
	v.SetDefault("graphql.response_cache_ttl", "10s")
	v.SetDefault("graphql.dataloader_batch_max", 250)
	v.SetDefault("graphql.dataloader_wait", "2ms")

	v.SetDefault("authz.enabled", true)
	v.SetDefault("authz.ttl", "60s")
	v.SetDefault("authz.shard_count", 16)
	v.SetDefault("authz.shard_size", 1024)
	v.SetDefault("authz.use_shared_tier", false)

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "docgraph")
	v.SetDefault("tracing.sample_ratio", 0.05)
	v.SetDefault("tracing.always_sample_errors", true)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)
	v.SetDefault("log.sanitize_pii", true)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics.max_label_cardinality", 200)

	v.SetDefault("app.name", "docgraph")
	v.SetDefault("app.environment", "development")
}

var validate = validator.New()

// Validate checks struct tags and cross-field profile requirements.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}

	switch c.Profile {
	case ProfileSQLite:
		if c.SQLite.Path == "" {
			return fmt.Errorf("profile %q requires sqlite.path", c.Profile)
		}
	case ProfilePostgres:
		if c.Database.Host == "" || c.Database.Database == "" {
			return fmt.Errorf("profile %q requires database.host and database.database", c.Profile)
		}
	}

	if c.Authz.UseSharedTier && c.Redis.Addr == "" {
		return fmt.Errorf("authz.use_shared_tier requires redis.addr")
	}

	return nil
}

// IsDevelopment reports whether the app environment is "development".
func (c *Config) IsDevelopment() bool { return c.App.Environment == "development" }

// IsProduction reports whether the app environment is "production".
func (c *Config) IsProduction() bool { return c.App.Environment == "production" }
