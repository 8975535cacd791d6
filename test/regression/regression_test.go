// Package regression holds the full endpoint suites: every resource group is
// exercised through its client, including error paths and ownership rules.
//
// Tests run against the in-process mock unless ECHOSTASH_QA_LIVE=1.
package regression

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/echostash/echostash-automation/internal/api"
	"github.com/echostash/echostash-automation/internal/testkit"
)

const greeting = "Hello {{name}}, welcome to {{place}}!"

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	t.Cleanup(cancel)
	return ctx
}

// published creates a tracked project and prompt with content published as
// version 1.
func published(t *testing.T, tracker *testkit.Tracker, content string) (api.Project, api.Prompt) {
	t.Helper()
	ctx := testContext(t)
	project, err := tracker.CreateTestProject(ctx, "")
	require.NoError(t, err)
	prompt, err := tracker.CreateTestPrompt(ctx, project.ID, "")
	require.NoError(t, err)
	version, err := tracker.CreateTestVersion(ctx, prompt.ID, content)
	require.NoError(t, err)
	_, err = tracker.Client().Prompts.Publish(ctx, prompt.ID, api.PublishRequest{VersionNo: version.VersionNo})
	require.NoError(t, err)
	return project, prompt
}

func requireAutomation(t *testing.T, env *testkit.Env) {
	t.Helper()
	if !env.Automation {
		t.Skip("automation endpoints are disabled for this environment")
	}
}
