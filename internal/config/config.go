// Package config provides centralized configuration management for the application.
// It loads configuration from an optional TOML file and environment variables
// with sensible defaults, and validates all settings on startup to fail fast
// on misconfiguration.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
// Every setting can be given as an environment variable; the TOML keys in
// the struct tags name the same setting in CONFIG_FILE.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Store     StoreConfig     `toml:"store"`
	Database  DatabaseConfig  `toml:"database"`
	Imports   ImportsConfig   `toml:"imports"`
	Progress  ProgressConfig  `toml:"progress"`
	Rate      RateLimitConfig `toml:"rate_limit"`
	Security  SecurityConfig  `toml:"security"`
	Logging   LoggingConfig   `toml:"logging"`
	Retention RetentionConfig `toml:"retention"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0" toml:"host"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080" toml:"port"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s" toml:"read_timeout"`

	// WriteTimeout is the maximum duration for writing response (default: 0 for SSE)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s" toml:"write_timeout"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s" toml:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s" toml:"shutdown_timeout"`

	// RequestTimeout is the middleware timeout for non-streaming requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s" toml:"request_timeout"`
}

// StoreConfig selects the ledger backend.
type StoreConfig struct {
	// Driver is postgres or memory (default: postgres)
	Driver string `env:"STORE_DRIVER" default:"postgres" toml:"driver"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string, required for the postgres driver.
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL" toml:"url"`

	// MaxConns is the maximum number of connections in the pool (default: 20)
	MaxConns int `env:"DB_MAX_CONNS" default:"20" toml:"max_conns"`

	// MinConns is the minimum number of connections to keep open (default: 4)
	MinConns int `env:"DB_MIN_CONNS" default:"4" toml:"min_conns"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h" toml:"max_conn_lifetime"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m" toml:"max_conn_idle_time"`

	// AutoMigrate applies pending migrations on server start (default: true)
	AutoMigrate bool `env:"DB_AUTO_MIGRATE" default:"true" toml:"auto_migrate"`
}

// ImportsConfig holds ledger listing and dispatch settings.
type ImportsConfig struct {
	// DefaultPageSize is used when a listing has no limit (default: 20)
	DefaultPageSize int `env:"IMPORT_DEFAULT_PAGE_SIZE" default:"20" toml:"default_page_size"`

	// MaxPageSize caps the limit of any listing (default: 100)
	MaxPageSize int `env:"IMPORT_MAX_PAGE_SIZE" default:"100" toml:"max_page_size"`

	// DispatchChannel is the NOTIFY channel job descriptors go to (default: import_jobs)
	DispatchChannel string `env:"IMPORT_DISPATCH_CHANNEL" default:"import_jobs" toml:"dispatch_channel"`
}

// ProgressConfig holds live progress stream settings.
type ProgressConfig struct {
	// PollInterval is how often a stream polls for row updates (default: 1s)
	PollInterval time.Duration `env:"PROGRESS_POLL_INTERVAL" default:"1s" toml:"poll_interval"`

	// PingInterval is how often an idle stream sends a ping (default: 15s)
	PingInterval time.Duration `env:"PROGRESS_PING_INTERVAL" default:"15s" toml:"ping_interval"`

	// MaxStreams is the maximum number of open streams (default: 100)
	MaxStreams int `env:"PROGRESS_MAX_STREAMS" default:"100" toml:"max_streams"`

	// MaxWait is how long a new stream waits for a slot (default: 5s)
	MaxWait time.Duration `env:"PROGRESS_MAX_WAIT" default:"5s" toml:"max_wait"`
}

// RateLimitConfig holds per-IP rate limiting settings.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active on client routes
	// (default: true). Worker callbacks are never limited.
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true" toml:"enabled"`

	// RequestsPerMinute is the sustained rate per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100" toml:"requests_per_minute"`

	// Burst is the number of requests allowed above the sustained rate (default: 20)
	Burst int `env:"RATE_LIMIT_BURST" default:"20" toml:"burst"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES" toml:"trusted_proxies"`

	// RequireAPIKey protects the worker callback API (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false" toml:"require_api_key"`

	// APIKeys is a comma-separated list of accepted worker API keys
	APIKeys []string `env:"API_KEYS" toml:"api_keys"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true" toml:"enable_csp"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info" toml:"level"`

	// Format is the log format: text, json or pretty (default: text)
	Format string `env:"LOG_FORMAT" default:"text" toml:"format"`
}

// RetentionConfig holds settings for purging finished imports.
type RetentionConfig struct {
	// Enabled runs the retention scheduler (default: false). Finished
	// imports are otherwise kept until deleted by their organization.
	Enabled bool `env:"RETENTION_ENABLED" default:"false" toml:"enabled"`

	// Days is how long a finished import is kept (default: 30)
	Days int `env:"RETENTION_DAYS" default:"30" toml:"days"`

	// BatchSize is imports deleted per statement (default: 500)
	BatchSize int `env:"RETENTION_BATCH_SIZE" default:"500" toml:"batch_size"`

	// CheckInterval is how often the sweep runs (default: 24h)
	CheckInterval time.Duration `env:"RETENTION_CHECK_INTERVAL" default:"24h" toml:"check_interval"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// UsesPostgres reports whether the postgres driver is selected.
func (c *Config) UsesPostgres() bool {
	return c.Store.Driver == DriverPostgres
}

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)
