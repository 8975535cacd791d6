package cmd

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	errwrap "github.com/echostash/echostash-automation/internal/errors"
	"github.com/echostash/echostash-automation/internal/output"
	"github.com/echostash/echostash-automation/internal/store"
)

var (
	runsLimit  int
	runsAllEnv bool
	runsID     string
)

// RunRow is one recorded run.
type RunRow struct {
	RunID      string `json:"run_id"`
	Env        string `json:"env"`
	Suite      string `json:"suite"`
	Status     string `json:"status"`
	StartedAt  string `json:"started_at"`
	DurationMs int64  `json:"duration_ms"`
	Pending    int    `json:"pending_resources"`
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded runs and their leftover resources",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, err := loadConfig(ctx)
		if err != nil {
			return err
		}
		db, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		env := cfg.Env
		if runsAllEnv {
			env = ""
		}
		var runs []store.Run
		if id := strings.TrimSpace(runsID); id != "" {
			run, err := db.GetRun(ctx, id)
			if errors.Is(err, store.ErrRunNotFound) {
				return errwrap.NewNotFoundError(fmt.Sprintf("run %s not found", id))
			}
			if err != nil {
				return errwrap.WrapDatabaseError(ctx, err, "failed to read run")
			}
			runs = []store.Run{run}
		} else {
			runs, err = db.ListRuns(ctx, env, runsLimit)
			if err != nil {
				return errwrap.WrapDatabaseError(ctx, err, "failed to list runs")
			}
		}

		rows := make([]RunRow, 0, len(runs))
		for _, r := range runs {
			pending, err := db.Pending(ctx, store.PendingQuery{RunID: r.RunID})
			if err != nil {
				return errwrap.WrapDatabaseError(ctx, err, "failed to count pending resources")
			}
			rows = append(rows, RunRow{
				RunID:      r.RunID,
				Env:        r.Env,
				Suite:      r.Suite,
				Status:     r.Status,
				StartedAt:  r.StartedAt.UTC().Format(time.RFC3339),
				DurationMs: r.Duration().Milliseconds(),
				Pending:    len(pending),
			})
		}

		total, err := db.CountPending(ctx)
		if err != nil {
			return errwrap.WrapDatabaseError(ctx, err, "failed to count pending resources")
		}
		return writeResult(rows, runsTable(rows, total))
	},
}

func runsTable(rows []RunRow, totalPending int) output.Table {
	t := output.Table{
		Title:   "Runs",
		Headers: []string{"Run", "Env", "Suite", "Status", "Started", "Duration", "Pending"},
		Footer:  fmt.Sprintf("%d resources pending cleanup", totalPending),
	}
	for _, r := range rows {
		duration := "-"
		if r.DurationMs > 0 || r.Status != store.RunRunning {
			duration = (time.Duration(r.DurationMs) * time.Millisecond).String()
		}
		t.AddRow(r.RunID, r.Env, r.Suite, r.Status, r.StartedAt, duration, r.Pending)
	}
	return t
}

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "maximum runs to show (0 for all)")
	runsCmd.Flags().BoolVar(&runsAllEnv, "all-env", false, "include runs against every environment")
	runsCmd.Flags().StringVar(&runsID, "run", "", "show a single run by id")
}
