package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/echostash/echostash-automation/internal/config"
	errwrap "github.com/echostash/echostash-automation/internal/errors"
	"github.com/echostash/echostash-automation/internal/observability"
	"github.com/echostash/echostash-automation/internal/output"
	"github.com/echostash/echostash-automation/internal/testkit"
)

// BinaryName is the CLI name used for logging and help text.
const BinaryName = config.AppName

var (
	cfgFile     string
	envName     string
	envFile     string
	formatFlag  string
	outFlag     string
	verbose     bool
	metricsFlag bool

	// Version info set by main package
	versionInfo struct {
		Version   string
		Commit    string
		BuildDate string
	}
)

// SetVersionInfo is called by main package to set version information
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   BinaryName,
	Short: "Echostash backend test automation",
	Long: `echostash-qa drives the Echostash REST API the way the test suites do.

It checks health, runs smoke flows, manages SDK keys, triggers analytics,
sweeps resources left behind by earlier runs, and can serve an in-memory
mock backend for offline work.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: initCLI,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Keep gofulmen internals quiet until a command asks for metrics.
	observability.DisableTelemetry()

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&envName, "env", "", fmt.Sprintf("target environment: %s (default $ENV or local)", strings.Join(config.EnvironmentNames(), "|")))
	flags.StringVar(&envFile, "env-file", "", "dotenv file to load (default $ENV_FILE or .env)")
	flags.StringVar(&cfgFile, "config", "", "optional YAML config file merged over the environment preset")
	flags.StringVar(&formatFlag, "format", string(output.FormatTable), "output format: table|json|yaml|markdown")
	flags.StringVar(&outFlag, "out", "", "write command output to a file (default stdout)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logs and request/response lines)")
	flags.BoolVar(&metricsFlag, "metrics", false, "expose Prometheus metrics while the command runs")
}

func initCLI(cmd *cobra.Command, args []string) error {
	if strings.TrimSpace(envFile) != "" {
		if err := os.Setenv("ENV_FILE", envFile); err != nil {
			return err
		}
	}
	if _, err := output.ParseFormat(formatFlag); err != nil {
		return errwrap.NewInvalidInputError(err.Error())
	}
	observability.InitCLILogger(BinaryName, verbose)
	return nil
}

// loadConfig resolves configuration for the selected environment and starts
// the metrics exporter when requested.
func loadConfig(ctx context.Context) (*config.Config, error) {
	overrides := map[string]any{}
	if verbose {
		overrides["logging.enabled"] = true
	}

	cfg, err := config.Load(ctx, config.Options{
		Env:        config.Environment(envName),
		ConfigFile: cfgFile,
		Overrides:  overrides,
	})
	if err != nil {
		return nil, errwrap.WrapConfigInvalid(ctx, err, "failed to load configuration")
	}

	if (metricsFlag || cfg.Metrics.Enabled) && observability.TelemetrySystem == nil {
		if err := observability.InitMetrics(cfg.Metrics.Port, observability.DefaultMetricsNamespace); err != nil {
			observability.CLILogger.Warn("Metrics exporter not started", zap.Error(err))
		} else {
			observability.CLILogger.Debug("Metrics exporter started", zap.Int("port", observability.GetMetricsPort()))
		}
	}
	return cfg, nil
}

// loadEnv builds a testkit environment for the resolved configuration.
func loadEnv(ctx context.Context) (*config.Config, *testkit.Env, error) {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return nil, nil, err
	}
	env, err := testkit.FromConfig(cfg, observability.CLILogger)
	if err != nil {
		return nil, nil, errwrap.WrapConfigInvalid(ctx, err, "failed to build environment")
	}
	return cfg, env, nil
}

// writeResult renders data in the selected format to stdout or --out.
func writeResult(data any, table output.Table) error {
	format, err := output.ParseFormat(formatFlag)
	if err != nil {
		return err
	}
	sink, err := openSink(outFlag)
	if err != nil {
		return err
	}
	defer func() { _ = sink.close() }()

	return output.Write(sink.writer, format, data, table)
}
