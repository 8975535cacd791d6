package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"
)

// Environment names a backend deployment the suites can target.
type Environment string

const (
	EnvLocal Environment = "local"
	EnvStage Environment = "stage"
	EnvProd  Environment = "prod"
)

// DefaultEnvironment is used when ENV is unset.
const DefaultEnvironment = EnvLocal

// EnvConfig is the preset for a single environment.
type EnvConfig struct {
	APIURL     string
	Timeout    time.Duration
	Logging    bool
	MaxRetries int
}

var environments = map[Environment]EnvConfig{
	EnvLocal: {
		APIURL:     "http://localhost:8085",
		Timeout:    15 * time.Second,
		Logging:    true,
		MaxRetries: 2,
	},
	EnvStage: {
		APIURL:     "https://stage-api.echostash.com",
		Timeout:    30 * time.Second,
		Logging:    false,
		MaxRetries: 3,
	},
	EnvProd: {
		APIURL:     "https://api.echostash.com",
		Timeout:    30 * time.Second,
		Logging:    false,
		MaxRetries: 3,
	},
}

// GetEnvConfig returns the preset for env.
func GetEnvConfig(env Environment) (EnvConfig, error) {
	normalized := Environment(strings.ToLower(strings.TrimSpace(string(env))))
	if normalized == "" {
		normalized = DefaultEnvironment
	}
	preset, ok := environments[normalized]
	if !ok {
		return EnvConfig{}, fmt.Errorf("unknown environment %q (expected one of %s)", env, strings.Join(EnvironmentNames(), ", "))
	}
	return preset, nil
}

// CurrentEnvironment reads ENV, falling back to local.
func CurrentEnvironment() Environment {
	value := strings.ToLower(strings.TrimSpace(os.Getenv("ENV")))
	if value == "" {
		return DefaultEnvironment
	}
	return Environment(value)
}

// EnvironmentNames lists the known environments in stable order.
func EnvironmentNames() []string {
	names := make([]string, 0, len(environments))
	for name := range environments {
		names = append(names, string(name))
	}
	sort.Strings(names)
	return names
}
