package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Run states.
const (
	RunRunning = "running"
	RunPassed  = "passed"
	RunFailed  = "failed"
)

// Run is one execution of a suite or command against an environment.
type Run struct {
	RunID      string
	Env        string
	Suite      string
	StartedAt  time.Time
	FinishedAt *time.Time
	Status     string
}

// Duration is zero for runs still in progress.
func (r Run) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// StartRun records a new running run and returns it.
func (s *Store) StartRun(ctx context.Context, env, suite string) (Run, error) {
	if err := s.ready(); err != nil {
		return Run{}, err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	run := Run{
		RunID:     uuid.NewString(),
		Env:       env,
		Suite:     suite,
		StartedAt: time.UnixMilli(time.Now().UnixMilli()),
		Status:    RunRunning,
	}
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO runs (run_id, env, suite, started_at, status) VALUES (?, ?, ?, ?, ?)
	`, run.RunID, run.Env, run.Suite, run.StartedAt.UnixMilli(), run.Status)
	if err != nil {
		return Run{}, fmt.Errorf("start run: %w", err)
	}
	return run, nil
}

// FinishRun stamps the run with a terminal status.
func (s *Store) FinishRun(ctx context.Context, runID, status string) error {
	if err := s.ready(); err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if status != RunPassed && status != RunFailed {
		return fmt.Errorf("invalid run status %q", status)
	}

	res, err := s.DB.ExecContext(ctx, `
		UPDATE runs SET finished_at = ?, status = ? WHERE run_id = ?
	`, time.Now().UnixMilli(), status, runID)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", runID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("run %s not found", runID)
	}
	return nil
}

// ListRuns returns the most recent runs first. limit <= 0 means no limit.
func (s *Store) ListRuns(ctx context.Context, env string, limit int) ([]Run, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	query := `SELECT run_id, env, suite, started_at, finished_at, status FROM runs`
	var args []any
	if env = strings.TrimSpace(env); env != "" {
		query += ` WHERE env = ?`
		args = append(args, env)
	}
	query += ` ORDER BY started_at DESC, rowid DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup

	runs := []Run{}
	for rows.Next() {
		var (
			run      Run
			started  int64
			finished sql.NullInt64
		)
		if err := rows.Scan(&run.RunID, &run.Env, &run.Suite, &started, &finished, &run.Status); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.StartedAt = time.UnixMilli(started)
		if finished.Valid {
			t := time.UnixMilli(finished.Int64)
			run.FinishedAt = &t
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ErrRunNotFound is returned by GetRun for unknown run ids.
var ErrRunNotFound = errors.New("run not found")

// GetRun looks up one run.
func (s *Store) GetRun(ctx context.Context, runID string) (Run, error) {
	if err := s.ready(); err != nil {
		return Run{}, err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var (
		run      Run
		started  int64
		finished sql.NullInt64
	)
	err := s.DB.QueryRowContext(ctx, `
		SELECT run_id, env, suite, started_at, finished_at, status FROM runs WHERE run_id = ?
	`, runID).Scan(&run.RunID, &run.Env, &run.Suite, &started, &finished, &run.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrRunNotFound
	}
	if err != nil {
		return Run{}, fmt.Errorf("get run %s: %w", runID, err)
	}
	run.StartedAt = time.UnixMilli(started)
	if finished.Valid {
		t := time.UnixMilli(finished.Int64)
		run.FinishedAt = &t
	}
	return run, nil
}
