package config

import (
	"time"
)

// Config represents the complete automation configuration.
// Values are layered in this order:
// Layer 1: environment preset (local, stage, prod)
// Layer 2: optional config file and dotenv file
// Layer 3: environment variables and runtime overrides
type Config struct {
	Env        string           `mapstructure:"env"`
	API        APIConfig        `mapstructure:"api"`
	Retry      RetryConfig      `mapstructure:"retry"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Store      StoreConfig      `mapstructure:"store"`
	TestUser   TestUserConfig   `mapstructure:"test_user"`
	Automation AutomationConfig `mapstructure:"automation"`
	Mock       MockConfig       `mapstructure:"mock"`
}

// APIConfig describes how to reach the backend under test.
type APIConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
	Token     string        `mapstructure:"token"`
	APIKey    string        `mapstructure:"api_key"`
	UserAgent string        `mapstructure:"user_agent"`
}

// RetryConfig controls the transport retry loop.
type RetryConfig struct {
	MaxRetries int           `mapstructure:"max_retries"`
	BaseDelay  time.Duration `mapstructure:"base_delay"`
	MaxDelay   time.Duration `mapstructure:"max_delay"`

	// RetryNonIdempotent allows POST and PATCH to be retried on 429/5xx.
	RetryNonIdempotent bool `mapstructure:"retry_non_idempotent"`

	// RespectRetryAfter stretches the backoff delay to the server's Retry-After hint.
	RespectRetryAfter bool `mapstructure:"respect_retry_after"`
}

// RateLimitConfig throttles outgoing requests on the client side.
// RequestsPerSecond of zero disables throttling.
type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	// Enabled turns on request/response lines from the transport.
	Enabled bool `mapstructure:"enabled"`

	// Level controls the minimum log level
	// Valid values: trace, debug, info, warn, error
	Level string `mapstructure:"level"`

	// Profile selects the logger profile
	// Valid values: simple, structured
	Profile string `mapstructure:"profile"`
}

// MetricsConfig contains Prometheus metrics configuration
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// StoreConfig contains database configuration for the libsql resource ledger.
type StoreConfig struct {
	Driver    string `mapstructure:"driver"`
	Path      string `mapstructure:"path"`
	URL       string `mapstructure:"url"`
	AuthToken string `mapstructure:"auth_token"`
}

// TestUserConfig holds credentials for the password login flow.
type TestUserConfig struct {
	Email    string `mapstructure:"email"`
	Password string `mapstructure:"password"`
}

// AutomationConfig mirrors the backend's AUTOMATION_CHEATS_ENABLED switch.
type AutomationConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// MockConfig configures the in-process mock backend served by `mock serve`.
type MockConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}
