// Package config provides centralized configuration management for the Echostash automation suite.
// It layers configuration in three steps:
// Layer 1: environment presets selected by ENV (local, stage, prod)
// Layer 2: an optional YAML config file plus a dotenv file (ENV_FILE or .env)
// Layer 3: ECHOSTASH_* environment variables, legacy variable names, and runtime overrides
package config

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// AppName is used for XDG paths and the default store file name.
const AppName = "echostash-qa"

// EnvPrefix prefixes every structured environment override.
const EnvPrefix = "ECHOSTASH_"

var (
	// appConfig holds the current application configuration
	appConfig *Config
	configMu  sync.RWMutex
)

// EnvVarSpec defines environment variable mappings for config fields
type EnvVarSpec = gfconfig.EnvVarSpec

// Environment variable types
const (
	EnvString = gfconfig.EnvString
	EnvInt    = gfconfig.EnvInt
	EnvBool   = gfconfig.EnvBool
)

// Options adjust a single Load call.
type Options struct {
	// Env overrides ENV when non-empty.
	Env Environment

	// ConfigFile is an optional YAML file merged over the preset.
	ConfigFile string

	// Overrides are applied last, keyed by dotted config path.
	Overrides map[string]any
}

// LoadDotenv loads ENV_FILE when set, else .env in the working directory.
// Variables already present in the process environment are never overwritten.
// A missing default .env is not an error; a missing explicit ENV_FILE is.
func LoadDotenv() (string, error) {
	path := strings.TrimSpace(os.Getenv("ENV_FILE"))
	explicit := path != ""
	if !explicit {
		path = ".env"
	}

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return "", nil
		}
		return "", fmt.Errorf("env file %s: %w", path, err)
	}

	if err := godotenv.Load(path); err != nil {
		return "", fmt.Errorf("load env file %s: %w", path, err)
	}
	return path, nil
}

// Load builds the configuration for the selected environment.
//
// This function is safe to call multiple times; the latest result is
// available from GetConfig.
func Load(ctx context.Context, opts ...Options) (*Config, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var opt Options
	if len(opts) > 0 {
		opt = opts[0]
	}

	if _, err := LoadDotenv(); err != nil {
		return nil, err
	}

	env := opt.Env
	if strings.TrimSpace(string(env)) == "" {
		env = CurrentEnvironment()
	}
	preset, err := GetEnvConfig(env)
	if err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v, env, preset)

	if file := strings.TrimSpace(opt.ConfigFile); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", file, err)
		}
	}

	envOverrides, err := gfconfig.LoadEnvOverrides(getEnvSpecs())
	if err != nil {
		return nil, fmt.Errorf("failed to load environment overrides: %w", err)
	}
	if err := applyLegacyEnv(envOverrides); err != nil {
		return nil, err
	}
	if err := v.MergeConfigMap(envOverrides); err != nil {
		return nil, fmt.Errorf("merge environment overrides: %w", err)
	}

	for key, value := range opt.Overrides {
		v.Set(key, value)
	}

	cfg, err := decode(v.AllSettings())
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.Store.URL) == "" && strings.TrimSpace(cfg.Store.Path) == "" {
		cfg.Store.Path = DefaultStorePath()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	setConfig(cfg)
	return cfg, nil
}

func decode(settings map[string]any) (*Config, error) {
	cfg := &Config{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
			mapstructure.StringToFloat64HookFunc(),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	if err := decoder.Decode(settings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

// setDefaults seeds viper with the preset and the static defaults.
func setDefaults(v *viper.Viper, env Environment, preset EnvConfig) {
	v.SetDefault("env", strings.ToLower(string(env)))

	v.SetDefault("api.base_url", preset.APIURL)
	v.SetDefault("api.timeout", preset.Timeout.String())
	v.SetDefault("api.token", "")
	v.SetDefault("api.api_key", "")
	v.SetDefault("api.user_agent", AppName)

	v.SetDefault("retry.max_retries", preset.MaxRetries)
	v.SetDefault("retry.base_delay", "1s")
	v.SetDefault("retry.max_delay", "10s")
	v.SetDefault("retry.retry_non_idempotent", false)
	v.SetDefault("retry.respect_retry_after", true)

	v.SetDefault("rate_limit.requests_per_second", 0)
	v.SetDefault("rate_limit.burst", 1)

	v.SetDefault("logging.enabled", preset.Logging)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.profile", "simple")

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.port", 9090)

	v.SetDefault("store.driver", "libsql")
	v.SetDefault("store.path", "")
	v.SetDefault("store.url", "")
	v.SetDefault("store.auth_token", "")

	v.SetDefault("test_user.email", "test@echostash-test.com")
	v.SetDefault("test_user.password", "")

	v.SetDefault("automation.enabled", false)

	v.SetDefault("mock.host", "127.0.0.1")
	v.SetDefault("mock.port", 8085)
}

// getEnvSpecs returns environment variable specifications for config mapping
// Maps ECHOSTASH_{NAME} environment variables to config paths
func getEnvSpecs() []EnvVarSpec {
	prefix := EnvPrefix
	return []EnvVarSpec{
		{Name: prefix + "API_URL", Path: []string{"api", "base_url"}, Type: EnvString},
		// Duration fields are parsed as strings and converted by mapstructure decode hook
		{Name: prefix + "API_TIMEOUT", Path: []string{"api", "timeout"}, Type: EnvString},
		{Name: prefix + "API_TOKEN", Path: []string{"api", "token"}, Type: EnvString},
		{Name: prefix + "API_KEY", Path: []string{"api", "api_key"}, Type: EnvString},

		{Name: prefix + "MAX_RETRIES", Path: []string{"retry", "max_retries"}, Type: EnvInt},
		{Name: prefix + "RETRY_BASE_DELAY", Path: []string{"retry", "base_delay"}, Type: EnvString},
		{Name: prefix + "RETRY_MAX_DELAY", Path: []string{"retry", "max_delay"}, Type: EnvString},
		{Name: prefix + "RETRY_NON_IDEMPOTENT", Path: []string{"retry", "retry_non_idempotent"}, Type: EnvBool},

		{Name: prefix + "RATE_LIMIT_RPS", Path: []string{"rate_limit", "requests_per_second"}, Type: EnvString},
		{Name: prefix + "RATE_LIMIT_BURST", Path: []string{"rate_limit", "burst"}, Type: EnvInt},

		{Name: prefix + "LOG_ENABLED", Path: []string{"logging", "enabled"}, Type: EnvBool},
		{Name: prefix + "LOG_LEVEL", Path: []string{"logging", "level"}, Type: EnvString},
		{Name: prefix + "LOG_PROFILE", Path: []string{"logging", "profile"}, Type: EnvString},

		{Name: prefix + "METRICS_ENABLED", Path: []string{"metrics", "enabled"}, Type: EnvBool},
		{Name: prefix + "METRICS_PORT", Path: []string{"metrics", "port"}, Type: EnvInt},

		{Name: prefix + "DB_DRIVER", Path: []string{"store", "driver"}, Type: EnvString},
		{Name: prefix + "DB_PATH", Path: []string{"store", "path"}, Type: EnvString},
		{Name: prefix + "DB_URL", Path: []string{"store", "url"}, Type: EnvString},
		{Name: prefix + "DB_AUTH_TOKEN", Path: []string{"store", "auth_token"}, Type: EnvString},

		{Name: prefix + "MOCK_HOST", Path: []string{"mock", "host"}, Type: EnvString},
		{Name: prefix + "MOCK_PORT", Path: []string{"mock", "port"}, Type: EnvInt},
	}
}

// applyLegacyEnv maps the variable names used by the original suite.
// Structured ECHOSTASH_* overrides win when both are set.
func applyLegacyEnv(overrides map[string]any) error {
	setIfAbsent := func(path []string, value any) {
		current := overrides
		for _, key := range path[:len(path)-1] {
			next, ok := current[key].(map[string]any)
			if !ok {
				next = make(map[string]any)
				current[key] = next
			}
			current = next
		}
		leaf := path[len(path)-1]
		if _, exists := current[leaf]; !exists {
			current[leaf] = value
		}
	}

	if value := strings.TrimSpace(os.Getenv("API_URL")); value != "" {
		setIfAbsent([]string{"api", "base_url"}, value)
	}
	if value := strings.TrimSpace(os.Getenv("API_TIMEOUT")); value != "" {
		timeout, err := parseTimeout(value)
		if err != nil {
			return fmt.Errorf("invalid API_TIMEOUT: %w", err)
		}
		setIfAbsent([]string{"api", "timeout"}, timeout.String())
	}
	if value := strings.TrimSpace(os.Getenv("API_LOGGING")); value != "" {
		enabled, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid API_LOGGING: %w", err)
		}
		setIfAbsent([]string{"logging", "enabled"}, enabled)
	}
	if value := strings.TrimSpace(os.Getenv("API_MAX_RETRIES")); value != "" {
		retries, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid API_MAX_RETRIES: %w", err)
		}
		setIfAbsent([]string{"retry", "max_retries"}, retries)
	}
	if value := os.Getenv("TEST_USER_EMAIL"); strings.TrimSpace(value) != "" {
		setIfAbsent([]string{"test_user", "email"}, value)
	}
	if value := os.Getenv("TEST_USER_PASSWORD"); value != "" {
		setIfAbsent([]string{"test_user", "password"}, value)
	}
	if value := strings.TrimSpace(os.Getenv("AUTOMATION_CHEATS_ENABLED")); value != "" {
		enabled, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid AUTOMATION_CHEATS_ENABLED: %w", err)
		}
		setIfAbsent([]string{"automation", "enabled"}, enabled)
	}
	return nil
}

// parseTimeout accepts plain milliseconds or a Go duration string.
func parseTimeout(value string) (time.Duration, error) {
	if ms, err := strconv.Atoi(value); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	return time.ParseDuration(value)
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	parsed, err := url.Parse(strings.TrimSpace(c.API.BaseURL))
	if err != nil {
		return fmt.Errorf("invalid api.base_url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("invalid api.base_url %q: scheme must be http or https", c.API.BaseURL)
	}
	if parsed.Host == "" {
		return fmt.Errorf("invalid api.base_url %q: host is required", c.API.BaseURL)
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("api.timeout must be positive, got %s", c.API.Timeout)
	}
	if c.Retry.MaxRetries < 0 {
		return fmt.Errorf("retry.max_retries must be >= 0, got %d", c.Retry.MaxRetries)
	}
	if c.Retry.BaseDelay < 0 || c.Retry.MaxDelay < 0 {
		return errors.New("retry delays must not be negative")
	}
	if c.Retry.MaxDelay > 0 && c.Retry.BaseDelay > c.Retry.MaxDelay {
		return fmt.Errorf("retry.base_delay (%s) exceeds retry.max_delay (%s)", c.Retry.BaseDelay, c.Retry.MaxDelay)
	}
	if c.RateLimit.RequestsPerSecond < 0 {
		return errors.New("rate_limit.requests_per_second must not be negative")
	}
	return nil
}

// GetConfig returns the current application configuration (thread-safe)
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

// setConfig updates the current configuration (thread-safe)
func setConfig(cfg *Config) {
	configMu.Lock()
	defer configMu.Unlock()
	appConfig = cfg
}

// DefaultDataDir returns the XDG-compliant data directory for the app.
func DefaultDataDir() string {
	return gfconfig.GetAppDataDir(AppName)
}

// DefaultStorePath returns the XDG-compliant path to the ledger database file.
func DefaultStorePath() string {
	dataDir := gfconfig.GetAppDataDir(AppName)
	if strings.TrimSpace(dataDir) == "" {
		return "./" + AppName + ".db"
	}
	return filepath.Join(dataDir, AppName+".db")
}
