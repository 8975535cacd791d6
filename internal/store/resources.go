package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Resource kinds recorded in the ledger, in creation order. Cleanup walks
// them in reverse so children go before their parents.
const (
	KindProject   = "project"
	KindPrompt    = "prompt"
	KindComposite = "composite"
	KindAPIKey    = "api_key"
	KindAsset     = "asset"
	KindTag       = "tag"
	KindShortLink = "short_link"
)

// Resource is one backend object created by a test run.
type Resource struct {
	ID         int64
	RunID      string
	Kind       string
	ResourceID string
	ParentID   string
	Env        string
	CreatedAt  time.Time
	CleanedAt  *time.Time
}

// PendingQuery selects uncleaned resources.
type PendingQuery struct {
	All   bool
	RunID string
	Env   string
}

// Validate requires either All or a run id.
func (q PendingQuery) Validate() error {
	if q.All || strings.TrimSpace(q.RunID) != "" {
		return nil
	}
	return errors.New("must specify --all or --run")
}

func (q PendingQuery) whereClause() (string, []any, error) {
	if err := q.Validate(); err != nil {
		return "", nil, err
	}
	clauses := []string{"cleaned_at IS NULL"}
	var args []any
	if run := strings.TrimSpace(q.RunID); run != "" && !q.All {
		clauses = append(clauses, "run_id = ?")
		args = append(args, run)
	}
	if env := strings.TrimSpace(q.Env); env != "" {
		clauses = append(clauses, "env = ?")
		args = append(args, env)
	}
	return "WHERE " + strings.Join(clauses, " AND "), args, nil
}

// Track records a created resource. Tracking the same resource twice in a run
// is a no-op.
func (s *Store) Track(ctx context.Context, r Resource) error {
	if err := s.ready(); err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(r.RunID) == "" || strings.TrimSpace(r.Kind) == "" || strings.TrimSpace(r.ResourceID) == "" {
		return errors.New("run id, kind and resource id are required")
	}
	created := r.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}

	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO tracked_resources (run_id, kind, resource_id, parent_id, env, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, kind, resource_id) DO NOTHING
	`, r.RunID, r.Kind, r.ResourceID, r.ParentID, r.Env, created.UnixMilli())
	if err != nil {
		return fmt.Errorf("track %s %s: %w", r.Kind, r.ResourceID, err)
	}
	return nil
}

// Pending lists resources not yet cleaned, newest first.
func (s *Store) Pending(ctx context.Context, q PendingQuery) ([]Resource, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	where, args, err := q.whereClause()
	if err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, run_id, kind, resource_id, parent_id, env, created_at, cleaned_at
		FROM tracked_resources
		%s
		ORDER BY created_at DESC, id DESC
	`, where), args...)
	if err != nil {
		return nil, fmt.Errorf("list pending resources: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup

	resources := []Resource{}
	for rows.Next() {
		var (
			r       Resource
			created int64
			cleaned sql.NullInt64
		)
		if err := rows.Scan(&r.ID, &r.RunID, &r.Kind, &r.ResourceID, &r.ParentID, &r.Env, &created, &cleaned); err != nil {
			return nil, fmt.Errorf("scan resource: %w", err)
		}
		r.CreatedAt = time.UnixMilli(created)
		if cleaned.Valid {
			t := time.UnixMilli(cleaned.Int64)
			r.CleanedAt = &t
		}
		resources = append(resources, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate resources: %w", err)
	}
	return resources, nil
}

// CountPending returns how many resources are awaiting cleanup across all runs.
func (s *Store) CountPending(ctx context.Context) (int, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	var n int
	if err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM tracked_resources WHERE cleaned_at IS NULL`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count pending resources: %w", err)
	}
	return n, nil
}

// MarkCleaned stamps a tracked resource as deleted on the backend.
func (s *Store) MarkCleaned(ctx context.Context, id int64) error {
	if err := s.ready(); err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	res, err := s.DB.ExecContext(ctx, `
		UPDATE tracked_resources SET cleaned_at = ? WHERE id = ? AND cleaned_at IS NULL
	`, time.Now().UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("mark resource %d cleaned: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("resource %d is not pending", id)
	}
	return nil
}

// Purge deletes cleaned resources older than the cutoff and returns how many
// rows were removed.
func (s *Store) Purge(ctx context.Context, olderThan time.Duration) (int64, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	cutoff := time.Now().Add(-olderThan).UnixMilli()
	res, err := s.DB.ExecContext(ctx, `
		DELETE FROM tracked_resources WHERE cleaned_at IS NOT NULL AND cleaned_at <= ?
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge resources: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge resources: %w", err)
	}
	return n, nil
}
