package testkit

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/echostash/echostash-automation/internal/api"
	"github.com/echostash/echostash-automation/internal/fixtures"
	"github.com/echostash/echostash-automation/internal/store"
	"github.com/echostash/echostash-automation/internal/transport"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
}

func mockEnv(t *testing.T) *Env {
	t.Helper()
	env, stop := NewMockEnv()
	t.Cleanup(stop)
	return env
}

type fakeLedger struct {
	mu      sync.Mutex
	rows    []store.Resource
	cleaned map[int64]bool
}

func (l *fakeLedger) Track(_ context.Context, r store.Resource) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	r.ID = int64(len(l.rows) + 1)
	l.rows = append(l.rows, r)
	return nil
}

func (l *fakeLedger) Pending(_ context.Context, q store.PendingQuery) ([]store.Resource, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []store.Resource
	for _, r := range l.rows {
		if r.RunID == q.RunID && !l.cleaned[r.ID] {
			out = append(out, r)
		}
	}
	return out, nil
}

func (l *fakeLedger) MarkCleaned(_ context.Context, id int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cleaned == nil {
		l.cleaned = map[int64]bool{}
	}
	l.cleaned[id] = true
	return nil
}

func TestPollUntil(t *testing.T) {
	fast := PollOptions{Timeout: time.Second, Interval: time.Millisecond}

	t.Run("ReturnsFirstAcceptedValue", func(t *testing.T) {
		calls := 0
		got, err := PollUntil(context.Background(), func(context.Context) (int, error) {
			calls++
			return calls, nil
		}, func(v int) bool { return v >= 3 }, fast)
		require.NoError(t, err)
		assert.Equal(t, 3, got)
	})

	t.Run("TimesOut", func(t *testing.T) {
		_, err := PollUntil(context.Background(), func(context.Context) (bool, error) {
			return false, nil
		}, func(v bool) bool { return v }, PollOptions{Timeout: 20 * time.Millisecond, Interval: 5 * time.Millisecond})
		require.ErrorIs(t, err, ErrPollTimeout)
	})

	t.Run("StopsOnFetchError", func(t *testing.T) {
		boom := errors.New("boom")
		_, err := PollUntil(context.Background(), func(context.Context) (int, error) {
			return 0, boom
		}, func(int) bool { return true }, fast)
		require.ErrorIs(t, err, boom)
	})

	t.Run("HonorsContext", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := PollUntil(ctx, func(context.Context) (int, error) {
			return 0, nil
		}, func(int) bool { return false }, fast)
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestAuthHelpers(t *testing.T) {
	env := mockEnv(t)
	ctx := context.Background()

	anon := env.MustClient(t)
	tokens, err := LoginAsGuest(ctx, anon)
	require.NoError(t, err)
	assert.Equal(t, tokens.AccessToken, anon.Transport.Token())

	refreshed, err := RefreshToken(ctx, anon, tokens.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, refreshed.AccessToken, anon.Transport.Token())

	user, err := env.LoginAndGetClient(ctx, "", "")
	require.NoError(t, err)
	me, err := user.Auth.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, env.User.Email, me.Email)

	_, err = env.LoginAndGetClient(ctx, env.User.Email, "wrong-password")
	ExpectStatus(t, err, http.StatusUnauthorized)

	admin, err := env.AdminClient(ctx)
	require.NoError(t, err)
	_, err = admin.Admin.ListTags(ctx)
	require.NoError(t, err)

	guest := env.MustGuestClient(t)
	keyClient, err := env.NewAPIKeyClient(ctx, guest)
	require.NoError(t, err)
	assert.NotEmpty(t, keyClient.Transport.APIKey())
	assert.Empty(t, keyClient.Transport.Token())
}

func TestAutomationLoginRespectsDisabledEnv(t *testing.T) {
	env, stop := NewMockEnv(MockOptions{DisableAutomation: true})
	defer stop()

	_, err := env.AutomationLoginClient(context.Background(), fixtures.RandomEmail(), "")
	require.Error(t, err)
}

func TestTrackerCleansUpDependentsFirst(t *testing.T) {
	env := mockEnv(t)
	ctx := context.Background()
	c := env.MustGuestClient(t)
	ledger := &fakeLedger{}
	tr := NewTracker(c, WithLedger(ledger, "run-1", "mock"), WithCleanupLogger(zaptest.NewLogger(t)))

	project, err := tr.CreateTestProject(ctx, "")
	require.NoError(t, err)
	ExpectValidProject(t, project)
	assert.Contains(t, project.Name, "Test Project ")

	prompt, err := tr.CreateTestPrompt(ctx, project.ID, "")
	require.NoError(t, err)
	ExpectValidPrompt(t, prompt)

	version, err := tr.CreateTestVersion(ctx, prompt.ID, "")
	require.NoError(t, err)
	assert.Equal(t, 1, version.VersionNo)

	key, err := c.Keys.Create(ctx, fixtures.APIKeyData())
	require.NoError(t, err)
	tr.Add(ctx, store.KindAPIKey, key.ID, "")

	require.Len(t, tr.Items(), 3)
	require.Len(t, ledger.rows, 3)

	report := tr.CleanupAll(ctx)
	assert.Equal(t, CleanupReport{Deleted: 3}, report)
	assert.Empty(t, tr.Items())

	_, err = c.Projects.Get(ctx, project.ID)
	ExpectStatus(t, err, http.StatusNotFound)
	keys, err := c.Keys.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)

	pending, err := ledger.Pending(ctx, store.PendingQuery{RunID: "run-1"})
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestTrackerReportsFailures(t *testing.T) {
	env := mockEnv(t)
	ctx := context.Background()
	c := env.MustGuestClient(t)
	tr := NewTracker(c, WithCleanupConcurrency(2))

	tr.Add(ctx, "widget", api.ID("1"), "")
	tr.Add(ctx, store.KindProject, api.ID("999999"), "")

	report := tr.CleanupAll(ctx)
	assert.Equal(t, 1, report.Deleted, "a 404 counts as already deleted")
	assert.Equal(t, 0, report.Failed, "unknown kinds are not in the cleanup order")
}

func TestTrackerSkipsBlankIDs(t *testing.T) {
	env := mockEnv(t)
	ctx := context.Background()
	c := env.MustGuestClient(t)
	ledger := &fakeLedger{}
	tr := NewTracker(c, WithLedger(ledger, "run-blank", "mock"))

	project, err := tr.CreateTestProject(ctx, "")
	require.NoError(t, err)
	tr.Add(ctx, store.KindProject, "", "")
	tr.Add(ctx, store.KindPrompt, " ", project.ID)

	require.Len(t, tr.Items(), 1)
	require.Len(t, ledger.rows, 1)
	assert.Equal(t, CleanupReport{Deleted: 1}, tr.CleanupAll(ctx))
}

func TestDeleteResourceRejectsBlankAndDotIDs(t *testing.T) {
	env := mockEnv(t)
	ctx := context.Background()
	c := env.MustGuestClient(t)

	project, err := c.Projects.Create(ctx, fixtures.ProjectData())
	require.NoError(t, err)

	for _, id := range []string{"", ".", ".."} {
		err := DeleteResource(ctx, c, store.KindProject, id)
		require.ErrorIs(t, err, transport.ErrInvalidPath, "id %q", id)
	}

	_, err = c.Projects.Get(ctx, project.ID)
	require.NoError(t, err, "the collection must be untouched")
	require.NoError(t, DeleteResource(ctx, c, store.KindProject, project.ID.String()))
}

func TestDeleteResourceUnknownKind(t *testing.T) {
	env := mockEnv(t)
	err := DeleteResource(context.Background(), env.MustClient(t), "widget", "1")
	var unknown *UnknownKindError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "widget", unknown.Kind)
}

func TestWaitForEvalRun(t *testing.T) {
	env := mockEnv(t)
	ctx := context.Background()
	c := env.MustGuestClient(t)
	tr := Track(t, c)

	project, err := tr.CreateTestProject(ctx, "")
	require.NoError(t, err)
	prompt, err := tr.CreateTestPrompt(ctx, project.ID, "")
	require.NoError(t, err)
	_, err = c.Prompts.PublishNewVersion(ctx, prompt.ID, api.PublishNewVersionRequest{Content: "Hello {{name}}"})
	require.NoError(t, err)

	dataset, err := c.Eval.CreateDataset(ctx, prompt.ID, fixtures.EvalDatasetData())
	require.NoError(t, err)
	suite, err := c.Eval.CreateSuite(ctx, prompt.ID, fixtures.EvalSuiteData(dataset.ID))
	require.NoError(t, err)
	run, err := c.Eval.StartRun(ctx, prompt.ID, suite.ID)
	require.NoError(t, err)

	done, err := WaitForEvalRun(ctx, c, prompt.ID, suite.ID, run.ID, PollOptions{Timeout: time.Second, Interval: 10 * time.Millisecond})
	require.NoError(t, err)
	assert.True(t, done.Terminal())
}

func TestAssertionsOnMockPages(t *testing.T) {
	env := mockEnv(t)
	ctx := context.Background()
	c := env.MustGuestClient(t)

	page, err := c.Projects.List(ctx, api.PageParams{})
	ExpectStatus(t, err, http.StatusOK)
	ExpectPaginated(t, page)

	_, err = c.Projects.Create(ctx, api.CreateProjectRequest{})
	ExpectError(t, err, http.StatusBadRequest, "name")
	ExpectOneOf(t, err, http.StatusBadRequest, http.StatusUnprocessableEntity)
}

func TestTargetDefaultsToMock(t *testing.T) {
	t.Setenv(LiveEnvVar, "")
	env := Target(t)
	assert.False(t, env.Live)
	require.NotNil(t, env.Mock)

	health, err := env.MustClient(t).Health.Check(context.Background())
	require.NoError(t, err)
	assert.True(t, health.Up())
}
