package regression

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/echostash/echostash-automation/internal/api"
	"github.com/echostash/echostash-automation/internal/fixtures"
	"github.com/echostash/echostash-automation/internal/store"
	"github.com/echostash/echostash-automation/internal/testkit"
)

func TestAPIKeys(t *testing.T) {
	env := testkit.Target(t)
	ctx := testContext(t)
	c := env.MustGuestClient(t)
	tracker := testkit.Track(t, c)
	_, prompt := published(t, tracker, greeting)

	name := fixtures.APIKeyData()
	created, err := c.Keys.Create(ctx, name)
	require.NoError(t, err)
	assert.Equal(t, name, created.Name)
	assert.NotEmpty(t, created.Key)

	keys, err := c.Keys.List(ctx)
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, created.ID, keys[0].ID)
	assert.Empty(t, keys[0].Key, "list must not expose raw keys")

	_, err = c.Keys.Create(ctx, "  ")
	testkit.ExpectStatus(t, err, http.StatusBadRequest)

	sdk, err := env.APIKeyClient(created.Key)
	require.NoError(t, err)
	_, err = sdk.SDK.Render(ctx, prompt.ID, api.Variables{"name": "x", "place": "y"})
	require.NoError(t, err)

	require.NoError(t, c.Keys.Revoke(ctx, created.ID))
	_, err = sdk.SDK.Render(ctx, prompt.ID, nil)
	testkit.ExpectStatus(t, err, http.StatusUnauthorized)

	err = c.Keys.Revoke(ctx, created.ID)
	testkit.ExpectStatus(t, err, http.StatusNotFound)

	t.Run("HelperClient", func(t *testing.T) {
		keyed, err := env.NewAPIKeyClient(ctx, c)
		require.NoError(t, err)
		remaining, err := c.Keys.List(ctx)
		require.NoError(t, err)
		for _, k := range remaining {
			tracker.Add(ctx, store.KindAPIKey, k.ID, "")
		}

		_, err = keyed.SDK.GetPrompt(ctx, prompt.ID, api.GetPromptOptions{})
		require.NoError(t, err)
	})
}
