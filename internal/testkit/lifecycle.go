package testkit

import (
	"context"
	"net/http"
	"slices"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/echostash/echostash-automation/internal/api"
	"github.com/echostash/echostash-automation/internal/fixtures"
	"github.com/echostash/echostash-automation/internal/metrics"
	"github.com/echostash/echostash-automation/internal/store"
	"github.com/echostash/echostash-automation/internal/transport"
)

// cleanupOrder deletes dependents before the things they live in.
var cleanupOrder = []string{
	store.KindShortLink,
	store.KindTag,
	store.KindAsset,
	store.KindAPIKey,
	store.KindComposite,
	store.KindPrompt,
	store.KindProject,
}

// CleanupOrder returns the resource kinds in deletion order.
func CleanupOrder() []string {
	return slices.Clone(cleanupOrder)
}

// DefaultCleanupConcurrency bounds parallel deletes within one kind.
const DefaultCleanupConcurrency = 4

// Ledger persists tracked resources across processes. *store.Store
// satisfies it.
type Ledger interface {
	Track(ctx context.Context, r store.Resource) error
	Pending(ctx context.Context, q store.PendingQuery) ([]store.Resource, error)
	MarkCleaned(ctx context.Context, id int64) error
}

// Tracked is one resource a test created.
type Tracked struct {
	Kind   string
	ID     string
	Parent string
}

// CleanupReport summarizes a CleanupAll pass.
type CleanupReport struct {
	Deleted int
	Failed  int
}

// Tracker remembers what a test created so CleanupAll can remove it.
type Tracker struct {
	client      *api.Client
	logger      transport.Logger
	concurrency int

	ledger Ledger
	runID  string
	env    string

	mu    sync.Mutex
	items []Tracked
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithLedger mirrors every tracked resource into ledger under runID.
func WithLedger(ledger Ledger, runID, env string) TrackerOption {
	return func(t *Tracker) {
		t.ledger = ledger
		t.runID = runID
		t.env = env
	}
}

// WithCleanupLogger routes cleanup failures to logger.
func WithCleanupLogger(logger transport.Logger) TrackerOption {
	return func(t *Tracker) { t.logger = logger }
}

// WithCleanupConcurrency bounds parallel deletes per kind.
func WithCleanupConcurrency(n int) TrackerOption {
	return func(t *Tracker) {
		if n > 0 {
			t.concurrency = n
		}
	}
}

// NewTracker returns a Tracker that deletes through client.
func NewTracker(client *api.Client, opts ...TrackerOption) *Tracker {
	t := &Tracker{client: client, logger: zap.NewNop(), concurrency: DefaultCleanupConcurrency}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Track returns a Tracker whose CleanupAll runs when the test ends.
func Track(t testing.TB, client *api.Client, opts ...TrackerOption) *Tracker {
	tr := NewTracker(client, opts...)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		tr.CleanupAll(ctx)
	})
	return tr
}

// Client is the client the tracker creates and deletes with.
func (t *Tracker) Client() *api.Client { return t.client }

// Add records a resource. A zero id is logged and skipped, since deleting it
// would target the collection. Ledger failures are logged; tracking in memory
// always succeeds.
func (t *Tracker) Add(ctx context.Context, kind string, id api.ID, parent api.ID) {
	if id.IsZero() {
		t.logger.Warn("Ignoring created resource without an id", zap.String("kind", kind))
		return
	}
	item := Tracked{Kind: kind, ID: id.String(), Parent: parent.String()}
	t.mu.Lock()
	t.items = append(t.items, item)
	count := len(t.items)
	t.mu.Unlock()
	metrics.SetTrackedResources(count)

	if t.ledger == nil {
		return
	}
	err := t.ledger.Track(ctx, store.Resource{
		RunID:      t.runID,
		Kind:       kind,
		ResourceID: item.ID,
		ParentID:   item.Parent,
		Env:        t.env,
	})
	if err != nil {
		t.logger.Warn("Failed to record resource in ledger",
			zap.String("kind", kind), zap.String("id", item.ID), zap.Error(err))
	}
}

// Items returns a snapshot of tracked resources in creation order.
func (t *Tracker) Items() []Tracked {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.items)
}

// CreateTestProject creates "Test Project <suffix>" and tracks it.
func (t *Tracker) CreateTestProject(ctx context.Context, suffix string) (api.Project, error) {
	if suffix == "" {
		suffix = fixtures.UniqueID()
	}
	project, err := t.client.Projects.Create(ctx, api.CreateProjectRequest{
		Name:        "Test Project " + suffix,
		Description: "Created by automation tests",
	})
	if err != nil {
		return api.Project{}, err
	}
	t.Add(ctx, store.KindProject, project.ID, "")
	return project, nil
}

// CreateTestPrompt creates a prompt in projectID and tracks it. name
// defaults to "Test Prompt <id>".
func (t *Tracker) CreateTestPrompt(ctx context.Context, projectID api.ID, name string) (api.Prompt, error) {
	if name == "" {
		name = "Test Prompt " + fixtures.UniqueID()
	}
	prompt, err := t.client.Prompts.Create(ctx, api.CreatePromptRequest{Name: name, ProjectID: projectID})
	if err != nil {
		return api.Prompt{}, err
	}
	t.Add(ctx, store.KindPrompt, prompt.ID, projectID)
	return prompt, nil
}

// CreateTestVersion adds a version to promptID. content defaults to unique
// text.
func (t *Tracker) CreateTestVersion(ctx context.Context, promptID api.ID, content string) (api.CreateVersionResponse, error) {
	if content == "" {
		content = "Updated content " + fixtures.UniqueID()
	}
	return t.client.Prompts.CreateVersion(ctx, promptID, api.CreateVersionRequest{
		Content:       content,
		ChangeMessage: "Automated test version",
	})
}

// CleanupProject deletes a project, ignoring failures.
func CleanupProject(ctx context.Context, c *api.Client, projectID api.ID) {
	_ = c.Projects.Delete(ctx, projectID)
}

// CleanupAll deletes everything tracked, dependents first, running the
// deletes of one kind concurrently. Failures are logged, not returned.
func (t *Tracker) CleanupAll(ctx context.Context) CleanupReport {
	t.mu.Lock()
	items := t.items
	t.items = nil
	t.mu.Unlock()

	byKind := map[string][]Tracked{}
	for i := len(items) - 1; i >= 0; i-- {
		byKind[items[i].Kind] = append(byKind[items[i].Kind], items[i])
	}

	var (
		report CleanupReport
		mu     sync.Mutex
		done   []Tracked
	)
	for _, kind := range cleanupOrder {
		batch := byKind[kind]
		if len(batch) == 0 {
			continue
		}
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(t.concurrency)
		for _, item := range batch {
			g.Go(func() error {
				err := DeleteResource(gctx, t.client, item.Kind, item.ID)
				metrics.RecordCleanup(item.Kind, err == nil)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					report.Failed++
					t.logger.Warn("Cleanup failed",
						zap.String("kind", item.Kind), zap.String("id", item.ID), zap.Error(err))
					return nil
				}
				report.Deleted++
				done = append(done, item)
				return nil
			})
		}
		_ = g.Wait()
	}
	metrics.SetTrackedResources(0)

	t.markLedger(ctx, done)
	return report
}

func (t *Tracker) markLedger(ctx context.Context, done []Tracked) {
	if t.ledger == nil || len(done) == 0 {
		return
	}
	pending, err := t.ledger.Pending(ctx, store.PendingQuery{RunID: t.runID})
	if err != nil {
		t.logger.Warn("Failed to read ledger", zap.Error(err))
		return
	}
	for _, row := range pending {
		if !slices.ContainsFunc(done, func(d Tracked) bool { return d.Kind == row.Kind && d.ID == row.ResourceID }) {
			continue
		}
		if err := t.ledger.MarkCleaned(ctx, row.ID); err != nil {
			t.logger.Warn("Failed to mark resource cleaned", zap.Int64("row", row.ID), zap.Error(err))
		}
	}
}

// DeleteResource removes one backend resource by kind. A 404 counts as
// already deleted.
func DeleteResource(ctx context.Context, c *api.Client, kind, id string) error {
	var err error
	switch kind {
	case store.KindProject:
		err = c.Projects.Delete(ctx, api.ID(id))
	case store.KindPrompt:
		err = c.Prompts.Delete(ctx, api.ID(id))
	case store.KindComposite:
		err = c.Composites.Delete(ctx, api.ID(id))
	case store.KindAPIKey:
		err = c.Keys.Revoke(ctx, api.ID(id))
	case store.KindAsset:
		err = c.ContextStore.Delete(ctx, api.ID(id))
	case store.KindTag:
		err = c.Admin.DeleteTag(ctx, api.ID(id))
	case store.KindShortLink:
		err = c.Admin.DeleteShortLink(ctx, id)
	default:
		return &UnknownKindError{Kind: kind}
	}
	if transport.IsStatus(err, http.StatusNotFound) {
		return nil
	}
	return err
}

// UnknownKindError is returned for ledger rows of a kind this build cannot delete.
type UnknownKindError struct {
	Kind string
}

func (e *UnknownKindError) Error() string {
	return "unknown resource kind " + e.Kind
}
