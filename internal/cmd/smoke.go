package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/echostash/echostash-automation/internal/observability"
	"github.com/echostash/echostash-automation/internal/output"
	"github.com/echostash/echostash-automation/internal/smoke"
	"github.com/echostash/echostash-automation/internal/store"
)

var (
	smokeNoLedger   bool
	smokeSkipHealth bool
)

var smokeCmd = &cobra.Command{
	Use:   "smoke",
	Short: "Run the end-to-end smoke flow",
	Long: `Run the smoke flow against the selected environment:

  health -> guest login -> project -> prompt -> publish -> API key -> SDK render -> cleanup

Created resources are recorded in the local ledger so "cleanup" can sweep
anything a failed run leaves behind.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, env, err := loadEnv(ctx)
		if err != nil {
			return err
		}

		opts := smoke.Options{
			SkipHealth: smokeSkipHealth,
			Logger:     observability.CLILogger,
		}

		var db *store.Store
		if !smokeNoLedger {
			db, err = openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer db.Close() // nolint:errcheck // best-effort cleanup

			run, err := db.StartRun(ctx, env.Name, "smoke")
			if err != nil {
				return err
			}
			opts.Ledger = db
			opts.RunID = run.RunID
			observability.CLILogger.Debug("Recording smoke run", zap.String("run_id", run.RunID))
		}

		report, runErr := smoke.Run(ctx, env, opts)

		if db != nil {
			status := store.RunPassed
			if runErr != nil {
				status = store.RunFailed
			}
			if err := db.FinishRun(ctx, opts.RunID, status); err != nil {
				observability.CLILogger.Warn("Failed to finish run", zap.Error(err))
			}
		}

		if err := writeResult(report, smokeTable(report)); err != nil {
			return errors.Join(runErr, err)
		}
		return runErr
	},
}

func smokeTable(r smoke.Report) output.Table {
	verdict := "PASSED"
	if !r.Passed {
		verdict = "FAILED"
	}
	t := output.Table{
		Title:   fmt.Sprintf("Smoke %s (%s)", r.Env, r.BaseURL),
		Headers: []string{"Step", "Status", "Duration", "Detail"},
		Footer:  verdict,
	}
	for _, s := range r.Steps {
		detail := s.Detail
		if s.Error != "" {
			detail = s.Error
		}
		t.AddRow(s.Name, s.Status, fmt.Sprintf("%dms", s.DurationMs), detail)
	}
	return t
}

func init() {
	rootCmd.AddCommand(smokeCmd)
	smokeCmd.Flags().BoolVar(&smokeNoLedger, "no-ledger", false, "do not record created resources in the local ledger")
	smokeCmd.Flags().BoolVar(&smokeSkipHealth, "skip-health", false, "skip the /actuator/health probe")
}
