package sdkdogfood_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/echostash/echostash-automation/internal/api"
	"github.com/echostash/echostash-automation/internal/mockbackend"
	"github.com/echostash/echostash-automation/internal/sdkdogfood"
	"github.com/echostash/echostash-automation/internal/testkit"
	"github.com/echostash/echostash-automation/internal/transport"
)

func TestNewRequiresKey(t *testing.T) {
	_, err := sdkdogfood.New(sdkdogfood.Options{BaseURL: "http://localhost:8085"})
	require.Error(t, err)
}

func TestNewDefaultsToEnvironmentPreset(t *testing.T) {
	t.Setenv("ENV", "stage")
	c, err := sdkdogfood.New(sdkdogfood.Options{APIKey: "esk_test"})
	require.NoError(t, err)
	assert.Equal(t, "https://stage-api.echostash.com", c.BaseURL())
	assert.Equal(t, "esk_test", c.APIKey())
}

func TestDogfoodAgainstMock(t *testing.T) {
	mock := mockbackend.New(mockbackend.Options{})
	ts := httptest.NewServer(mock.Handler())
	defer ts.Close()
	env := testkit.NewEnv("mock", ts.URL, transport.WithHTTPClient(ts.Client()))

	ctx := context.Background()
	owner, err := env.GuestClient(ctx)
	require.NoError(t, err)
	project, err := owner.Projects.Create(ctx, api.CreateProjectRequest{Name: "dogfood"})
	require.NoError(t, err)
	prompt, err := owner.Prompts.Create(ctx, api.CreatePromptRequest{Name: "greeting", ProjectID: project.ID})
	require.NoError(t, err)
	_, err = owner.Prompts.PublishNewVersion(ctx, prompt.ID, api.PublishNewVersionRequest{Content: "Hello {{name}}"})
	require.NoError(t, err)
	_, err = owner.Prompts.CreateVersion(ctx, prompt.ID, api.CreateVersionRequest{Content: "Howdy {{name}}"})
	require.NoError(t, err)
	key, err := testkit.CreateAndGetAPIKey(ctx, owner, "")
	require.NoError(t, err)

	c, err := sdkdogfood.New(sdkdogfood.Options{
		APIKey:    key,
		BaseURL:   ts.URL,
		Transport: []transport.Option{transport.WithHTTPClient(ts.Client()), transport.WithRetryPolicy(transport.NoRetry())},
	})
	require.NoError(t, err)

	published, err := c.GetPrompt(ctx, prompt.ID.String(), "")
	require.NoError(t, err)
	assert.Equal(t, "Hello {{name}}", published.Content)
	assert.Equal(t, 1, published.Version)

	latest, err := c.GetPrompt(ctx, prompt.ID.String(), "latest")
	require.NoError(t, err)
	assert.Equal(t, 2, latest.Version)

	rendered, err := c.Render(ctx, prompt.ID.String(), map[string]string{"name": "Ada"}, "")
	require.NoError(t, err)
	assert.Equal(t, "Hello Ada", rendered.Rendered)

	pinned, err := c.Render(ctx, prompt.ID.String(), map[string]string{"name": "Ada"}, "2")
	require.NoError(t, err)
	assert.Equal(t, "Howdy Ada", pinned.Rendered)
	assert.Equal(t, 2, pinned.Version)

	_, err = c.GetPrompt(ctx, prompt.ID.String(), "newest")
	require.Error(t, err)

	_, err = c.GetPrompt(ctx, "424242", "")
	assert.True(t, transport.IsStatus(err, http.StatusNotFound))
}
