package cmd

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/signals"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	errwrap "github.com/echostash/echostash-automation/internal/errors"
	"github.com/echostash/echostash-automation/internal/mockbackend"
	"github.com/echostash/echostash-automation/internal/observability"
	"github.com/echostash/echostash-automation/internal/testkit"
)

var (
	mockHost              string
	mockPort              int
	mockNoAutomation      bool
	mockAdminEmails       []string
	mockAdminToken        string
	mockUserPassword      string
	mockShutdownTimeout   time.Duration
	mockLogLevel          string
)

var mockCmd = &cobra.Command{
	Use:   "mock",
	Short: "In-memory mock of the Echostash backend",
}

var mockServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the mock backend",
	Long: `Serve the in-memory mock backend with graceful shutdown support.

Point suites at it with ENV=local (http://localhost:8085) or API_URL.

Signal Handling:
  • Ctrl+C (SIGINT) or SIGTERM: Graceful shutdown
  • Ctrl+C twice within 2s: Force quit`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, err := loadConfig(ctx)
		if err != nil {
			return err
		}

		host := cfg.Mock.Host
		if cmd.Flags().Changed("host") {
			host = mockHost
		}
		port := cfg.Mock.Port
		if cmd.Flags().Changed("port") {
			port = mockPort
		}

		observability.InitServerLogger(BinaryName, mockLogLevel, cfg.Env)
		mockbackend.SetVersionInfo(versionInfo.Version, versionInfo.Commit, versionInfo.BuildDate)

		users := map[string]string{}
		if email := strings.TrimSpace(cfg.TestUser.Email); email != "" {
			password := cfg.TestUser.Password
			if mockUserPassword != "" {
				password = mockUserPassword
			}
			if password == "" {
				password = testkit.DefaultMockPassword
			}
			users[email] = password
		}

		srv := mockbackend.New(mockbackend.Options{
			Host:              host,
			Port:              port,
			DisableAutomation: mockNoAutomation,
			AdminEmails:       mockAdminEmails,
			Users:             users,
			AdminToken:        mockAdminToken,
		})

		observability.ServerLogger.Info("Initializing mock backend",
			zap.String("service", BinaryName),
			zap.String("version", versionInfo.Version),
			zap.String("host", host),
			zap.Int("port", port),
			zap.Strings("admins", mockAdminEmails),
			zap.Int("users", len(users)))

		// Handlers run LIFO: the server stops before the logger flushes.
		signals.OnShutdown(func(ctx context.Context) error {
			_ = observability.ServerLogger.Sync()
			return nil
		})
		signals.OnShutdown(func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, mockShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return errwrap.WrapInternal(ctx, err, "mock backend shutdown failed")
			}
			observability.ServerLogger.Info("Mock backend stopped gracefully")
			return nil
		})

		if err := signals.EnableDoubleTap(signals.DoubleTapConfig{
			Window:  2 * time.Second,
			Message: "Press Ctrl+C again within 2 seconds to force quit",
		}); err != nil {
			observability.ServerLogger.Warn("Failed to enable double-tap force quit", zap.Error(err))
		}

		errChan := make(chan error, 2)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- err
				return
			}
			errChan <- nil
		}()
		go func() {
			if err := signals.Listen(ctx); err != nil {
				observability.ServerLogger.Error("Signal handler error", zap.Error(err))
				errChan <- err
			}
		}()

		if err := <-errChan; err != nil {
			return errwrap.WrapInternal(ctx, err, "mock backend error")
		}
		return nil
	},
}

func init() {
	flags := mockServeCmd.Flags()
	flags.StringVar(&mockHost, "host", "127.0.0.1", "listen host (default from config mock.host)")
	flags.IntVarP(&mockPort, "port", "p", 8085, "listen port (default from config mock.port; 0 picks a free port)")
	flags.BoolVar(&mockNoAutomation, "no-automation", false, "hide the /automation cheat endpoints like production")
	flags.StringSliceVar(&mockAdminEmails, "admin", []string{testkit.DefaultAdminEmail}, "emails granted admin access")
	flags.StringVar(&mockAdminToken, "admin-token", "", "enable POST /admin/signal with this bearer token")
	flags.StringVar(&mockUserPassword, "user-password", "", "password accepted for the test user (default TEST_USER_PASSWORD)")
	flags.DurationVar(&mockShutdownTimeout, "shutdown-timeout", 10*time.Second, "graceful shutdown timeout")
	flags.StringVar(&mockLogLevel, "log-level", "info", "mock backend log level: trace|debug|info|warn|error")

	mockCmd.AddCommand(mockServeCmd)
	rootCmd.AddCommand(mockCmd)
}
