package smoke

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/echostash/echostash-automation/internal/store"
	"github.com/echostash/echostash-automation/internal/testkit"
)

type memoryLedger struct {
	rows    []store.Resource
	cleaned map[int64]bool
}

func (l *memoryLedger) Track(_ context.Context, r store.Resource) error {
	r.ID = int64(len(l.rows) + 1)
	l.rows = append(l.rows, r)
	return nil
}

func (l *memoryLedger) Pending(_ context.Context, q store.PendingQuery) ([]store.Resource, error) {
	var out []store.Resource
	for _, r := range l.rows {
		if r.RunID == q.RunID && !l.cleaned[r.ID] {
			out = append(out, r)
		}
	}
	return out, nil
}

func (l *memoryLedger) MarkCleaned(_ context.Context, id int64) error {
	if l.cleaned == nil {
		l.cleaned = map[int64]bool{}
	}
	l.cleaned[id] = true
	return nil
}

func stepStatuses(report Report) map[string]string {
	out := map[string]string{}
	for _, s := range report.Steps {
		out[s.Name] = s.Status
	}
	return out
}

func TestRunPassesAgainstMock(t *testing.T) {
	env, stop := testkit.NewMockEnv()
	defer stop()

	ledger := &memoryLedger{}
	report, err := Run(context.Background(), env, Options{
		Ledger: ledger,
		RunID:  "smoke-run",
		Logger: zaptest.NewLogger(t),
	})
	require.NoError(t, err)
	assert.True(t, report.Passed)
	assert.Equal(t, "mock", report.Env)
	assert.Equal(t, 3, report.Deleted)
	assert.Zero(t, report.Failed)

	require.Len(t, report.Steps, 8)
	for _, s := range report.Steps {
		assert.Equal(t, StatusPassed, s.Status, s.Name)
	}
	assert.Equal(t, expectedText, report.Steps[6].Detail)

	require.Len(t, ledger.rows, 3)
	pending, err := ledger.Pending(context.Background(), store.PendingQuery{RunID: "smoke-run"})
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestRunSkipsAfterFailure(t *testing.T) {
	env, stop := testkit.NewMockEnv()
	defer stop()
	env.Mock.FailNext("/auth/guest", http.StatusBadRequest, 1)

	report, err := Run(context.Background(), env, Options{})
	require.ErrorIs(t, err, ErrFailed)
	assert.False(t, report.Passed)

	statuses := stepStatuses(report)
	assert.Equal(t, StatusPassed, statuses[StepHealth])
	assert.Equal(t, StatusFailed, statuses[StepGuest])
	assert.Equal(t, StatusSkipped, statuses[StepProject])
	assert.Equal(t, StatusSkipped, statuses[StepRender])
	assert.Equal(t, StatusSkipped, statuses[StepCleanup])
}

func TestRunSkipHealth(t *testing.T) {
	env, stop := testkit.NewMockEnv()
	defer stop()
	env.Mock.FailNext("/actuator/health", http.StatusServiceUnavailable, 10)

	report, err := Run(context.Background(), env, Options{SkipHealth: true})
	require.NoError(t, err)
	assert.Equal(t, StatusSkipped, stepStatuses(report)[StepHealth])
	assert.Zero(t, env.Mock.Hits("/actuator/health"))
}

func TestRunRequiresEnv(t *testing.T) {
	_, err := Run(context.Background(), nil, Options{})
	require.Error(t, err)
}
