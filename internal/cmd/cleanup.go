package cmd

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/ascii"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/echostash/echostash-automation/internal/api"
	errwrap "github.com/echostash/echostash-automation/internal/errors"
	"github.com/echostash/echostash-automation/internal/metrics"
	"github.com/echostash/echostash-automation/internal/observability"
	"github.com/echostash/echostash-automation/internal/output"
	"github.com/echostash/echostash-automation/internal/store"
	"github.com/echostash/echostash-automation/internal/testkit"
)

var (
	cleanupAll         bool
	cleanupRun         string
	cleanupAnyEnv      bool
	cleanupDryRun      bool
	cleanupConcurrency int
	cleanupPurgeAfter  time.Duration
)

// CleanupRow is one ledger row handled by cleanup.
type CleanupRow struct {
	Kind       string `json:"kind"`
	ResourceID string `json:"resource_id"`
	RunID      string `json:"run_id"`
	Env        string `json:"env"`
	CreatedAt  string `json:"created_at"`
	Result     string `json:"result"`
	Error      string `json:"error,omitempty"`
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete resources recorded in the local ledger",
	Long: `Sweep backend resources that earlier runs recorded but did not delete.

Select rows with --run <id> or --all. Rows are limited to the selected
environment unless --any-env is given. Dependents are deleted before their
parents; a 404 counts as already deleted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		query := store.PendingQuery{All: cleanupAll, RunID: strings.TrimSpace(cleanupRun)}
		if err := query.Validate(); err != nil {
			return errwrap.WrapInvalidInput(ctx, err, "select rows with --run <id> or --all")
		}

		cfg, err := loadConfig(ctx)
		if err != nil {
			return err
		}
		if !cleanupAnyEnv {
			query.Env = cfg.Env
		}

		db, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		pending, err := db.Pending(ctx, query)
		if err != nil {
			return errwrap.WrapDatabaseError(ctx, err, "failed to read ledger")
		}

		if len(pending) == 0 {
			if format, _ := output.ParseFormat(formatFlag); format == output.FormatTable {
				_, _ = fmt.Fprint(cmd.OutOrStdout(), ascii.DrawBox("Cleanup\n\n(no pending resources)", 0))
				return nil
			}
			return writeResult([]CleanupRow{}, output.Table{})
		}

		rows := make([]CleanupRow, len(pending))
		for i, r := range pending {
			rows[i] = CleanupRow{
				Kind:       r.Kind,
				ResourceID: r.ResourceID,
				RunID:      r.RunID,
				Env:        r.Env,
				CreatedAt:  r.CreatedAt.UTC().Format(time.RFC3339),
				Result:     "pending",
			}
		}

		var sweepErr error
		if !cleanupDryRun {
			client, err := accountClient(ctx)
			if err != nil {
				return err
			}
			sweepErr = sweep(cmd, db, client, pending, rows)
		}

		if cleanupPurgeAfter > 0 {
			n, err := db.Purge(ctx, cleanupPurgeAfter)
			if err != nil {
				return errwrap.WrapDatabaseError(ctx, err, "failed to purge ledger")
			}
			observability.CLILogger.Info("Purged cleaned ledger rows", zap.Int64("rows", n))
		}

		if err := writeResult(rows, cleanupTable(rows)); err != nil {
			return errors.Join(sweepErr, err)
		}
		return sweepErr
	},
}

// sweep deletes pending rows kind by kind in dependency order and fills in
// each row's result.
func sweep(cmd *cobra.Command, db *store.Store, client *api.Client, pending []store.Resource, rows []CleanupRow) error {
	ctx := cmd.Context()
	failed := 0
	for _, kind := range testkit.CleanupOrder() {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(max(1, cleanupConcurrency))
		for i, r := range pending {
			if r.Kind != kind {
				continue
			}
			g.Go(func() error {
				err := testkit.DeleteResource(gctx, client, r.Kind, r.ResourceID)
				metrics.RecordCleanup(r.Kind, err == nil)
				if err != nil {
					rows[i].Result = "failed"
					rows[i].Error = err.Error()
					return nil
				}
				if err := db.MarkCleaned(gctx, r.ID); err != nil {
					rows[i].Result = "deleted"
					rows[i].Error = err.Error()
					return nil
				}
				rows[i].Result = "deleted"
				return nil
			})
		}
		_ = g.Wait()
	}

	for i := range rows {
		switch rows[i].Result {
		case "pending":
			rows[i].Result = "skipped"
			rows[i].Error = (&testkit.UnknownKindError{Kind: rows[i].Kind}).Error()
			failed++
		case "failed":
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d resources could not be deleted", failed, len(rows))
	}
	return nil
}

func cleanupTable(rows []CleanupRow) output.Table {
	deleted := 0
	t := output.Table{
		Title:   "Cleanup",
		Headers: []string{"Kind", "Resource", "Run", "Env", "Created", "Result"},
	}
	for _, r := range rows {
		result := r.Result
		if r.Error != "" {
			result += ": " + r.Error
		}
		if r.Result == "deleted" {
			deleted++
		}
		t.AddRow(r.Kind, r.ResourceID, shortRunID(r.RunID), r.Env, r.CreatedAt, result)
	}
	t.Footer = fmt.Sprintf("%d/%d deleted", deleted, len(rows))
	return t
}

func shortRunID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func init() {
	rootCmd.AddCommand(cleanupCmd)
	flags := cleanupCmd.Flags()
	flags.BoolVar(&cleanupAll, "all", false, "sweep every pending resource")
	flags.StringVar(&cleanupRun, "run", "", "sweep resources from one run id")
	flags.BoolVar(&cleanupAnyEnv, "any-env", false, "include resources recorded against other environments")
	flags.BoolVar(&cleanupDryRun, "dry-run", false, "list what would be deleted without deleting")
	flags.IntVar(&cleanupConcurrency, "concurrency", 4, "deletes in flight per resource kind")
	flags.DurationVar(&cleanupPurgeAfter, "purge-older-than", 0, "also drop cleaned ledger rows older than this (e.g. 720h)")
}
