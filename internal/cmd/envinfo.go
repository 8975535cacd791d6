package cmd

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/spf13/cobra"

	"github.com/echostash/echostash-automation/internal/config"
	"github.com/echostash/echostash-automation/internal/output"
)

// EnvInfo is the resolved environment shown by envinfo. Secrets are
// reported as set or unset only.
type EnvInfo struct {
	Binary    string `json:"binary"`
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Gofulmen  string `json:"gofulmen"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`

	Env         string `json:"env"`
	BaseURL     string `json:"base_url"`
	Timeout     string `json:"timeout"`
	MaxRetries  int    `json:"max_retries"`
	RetryPost   bool   `json:"retry_non_idempotent"`
	RateLimit   string `json:"rate_limit"`
	Logging     bool   `json:"request_logging"`
	Token       string `json:"token"`
	APIKey      string `json:"api_key"`
	TestUser    string `json:"test_user"`
	Automation  bool   `json:"automation"`
	StoreDriver string `json:"store_driver"`
	StoreTarget string `json:"store_target"`
	MockAddr    string `json:"mock_addr"`
	Metrics     string `json:"metrics"`
}

var envInfoCmd = &cobra.Command{
	Use:   "envinfo",
	Short: "Display environment information",
	Long:  "Display the resolved environment, configuration, and version information.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd.Context())
		if err != nil {
			return err
		}
		info := buildEnvInfo(cfg)
		return writeResult(info, envInfoTable(info))
	},
}

func buildEnvInfo(cfg *config.Config) EnvInfo {
	version := crucible.GetVersion()
	info := EnvInfo{
		Binary:      BinaryName,
		Version:     versionInfo.Version,
		Commit:      versionInfo.Commit,
		Gofulmen:    version.Gofulmen,
		GoVersion:   runtime.Version(),
		Platform:    runtime.GOOS + "/" + runtime.GOARCH,
		Env:         cfg.Env,
		BaseURL:     cfg.API.BaseURL,
		Timeout:     cfg.API.Timeout.String(),
		MaxRetries:  cfg.Retry.MaxRetries,
		RetryPost:   cfg.Retry.RetryNonIdempotent,
		RateLimit:   "off",
		Logging:     cfg.Logging.Enabled,
		Token:       setOrUnset(cfg.API.Token),
		APIKey:      setOrUnset(cfg.API.APIKey),
		TestUser:    cfg.TestUser.Email,
		Automation:  cfg.Automation.Enabled,
		StoreDriver: cfg.Store.Driver,
		StoreTarget: cfg.Store.Path,
		MockAddr:    fmt.Sprintf("%s:%d", cfg.Mock.Host, cfg.Mock.Port),
		Metrics:     "off",
	}
	if cfg.RateLimit.RequestsPerSecond > 0 {
		info.RateLimit = fmt.Sprintf("%.2f rps (burst %d)", cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	}
	if strings.TrimSpace(cfg.Store.URL) != "" {
		info.StoreTarget = cfg.Store.URL
	}
	if cfg.Metrics.Enabled || metricsFlag {
		info.Metrics = fmt.Sprintf(":%d", cfg.Metrics.Port)
	}
	return info
}

func envInfoTable(info EnvInfo) output.Table {
	t := output.Table{Title: "Echostash QA Environment", Headers: []string{"Setting", "Value"}}
	t.AddRow("Binary", info.Binary+" "+info.Version)
	t.AddRow("Commit", info.Commit)
	t.AddRow("Gofulmen", info.Gofulmen)
	t.AddRow("Go", info.GoVersion+" "+info.Platform)
	t.AddRow("Environment", info.Env)
	t.AddRow("Base URL", info.BaseURL)
	t.AddRow("Timeout", info.Timeout)
	t.AddRow("Max retries", info.MaxRetries)
	t.AddRow("Retry POST/PATCH", info.RetryPost)
	t.AddRow("Rate limit", info.RateLimit)
	t.AddRow("Request logging", info.Logging)
	t.AddRow("Token", info.Token)
	t.AddRow("API key", info.APIKey)
	t.AddRow("Test user", info.TestUser)
	t.AddRow("Automation cheats", info.Automation)
	t.AddRow("Store", info.StoreDriver+" "+info.StoreTarget)
	t.AddRow("Mock backend", info.MockAddr)
	t.AddRow("Metrics", info.Metrics)
	return t
}

func setOrUnset(value string) string {
	if strings.TrimSpace(value) == "" {
		return "(not set)"
	}
	return "(set)"
}

func init() {
	rootCmd.AddCommand(envInfoCmd)
}
