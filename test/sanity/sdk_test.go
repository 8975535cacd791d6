package sanity

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/echostash/echostash-automation/internal/api"
	"github.com/echostash/echostash-automation/internal/fixtures"
	"github.com/echostash/echostash-automation/internal/testkit"
)

func TestSDK(t *testing.T) {
	env := testkit.Target(t)
	ctx := testContext(t)
	c := env.MustGuestClient(t)
	tracker := testkit.Track(t, c)

	project, err := tracker.CreateTestProject(ctx, "")
	require.NoError(t, err)
	prompt, err := tracker.CreateTestPrompt(ctx, project.ID, "")
	require.NoError(t, err)
	version, err := c.Prompts.CreateVersion(ctx, prompt.ID, fixtures.VersionData(func(r *api.CreateVersionRequest) {
		r.Content = "Hello {{name}}, welcome to {{place}}!"
	}))
	require.NoError(t, err)
	_, err = c.Prompts.Publish(ctx, prompt.ID, api.PublishRequest{VersionNo: version.VersionNo})
	require.NoError(t, err)

	t.Run("FetchPublished", func(t *testing.T) {
		got, err := c.SDK.GetPrompt(ctx, prompt.ID, api.GetPromptOptions{})
		require.NoError(t, err)
		assert.Equal(t, prompt.ID, got.ID)
		assert.Equal(t, prompt.Name, got.Name)
		assert.NotEmpty(t, got.Content)
	})

	t.Run("RejectsAnonymous", func(t *testing.T) {
		_, err := env.MustClient(t).SDK.GetPrompt(ctx, prompt.ID, api.GetPromptOptions{})
		testkit.ExpectStatus(t, err, http.StatusUnauthorized)
	})

	t.Run("RenderWithVariables", func(t *testing.T) {
		out, err := c.SDK.Render(ctx, prompt.ID, api.Variables{"name": "Alice", "place": "Wonderland"})
		require.NoError(t, err)
		assert.Equal(t, prompt.ID, out.PromptID)
		assert.Equal(t, "Hello Alice, welcome to Wonderland!", out.Rendered)
	})

	t.Run("HidesOtherUsersPrompts", func(t *testing.T) {
		other := env.MustGuestClient(t)
		_, err := other.SDK.GetPrompt(ctx, prompt.ID, api.GetPromptOptions{})
		testkit.ExpectStatus(t, err, http.StatusNotFound)
	})
}
