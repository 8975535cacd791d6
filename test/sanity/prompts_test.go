package sanity

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

func TestPrompts(t *testing.T) {
	env := testkit.Target(t)
	ctx := testContext(t)
	c := env.MustGuestClient(t)
	tracker := testkit.Track(t, c)

	project, err := tracker.CreateTestProject(ctx, "")
	require.NoError(t, err)

	create := func(t *testing.T) api.Prompt {
		t.Helper()
		prompt, err := c.Prompts.Create(ctx, fixtures.PromptData(project.ID))
		require.NoError(t, err)
		tracker.Add(ctx, store.KindPrompt, prompt.ID, project.ID)
		return prompt
	}

	t.Run("CreateMinimal", func(t *testing.T) {
		data := fixtures.PromptData(project.ID)
		prompt, err := c.Prompts.Create(ctx, data)
		require.NoError(t, err)
		tracker.Add(ctx, store.KindPrompt, prompt.ID, project.ID)

		testkit.ExpectValidPrompt(t, prompt)
		assert.Equal(t, data.Name, prompt.Name)
		assert.Equal(t, project.ID, prompt.ProjectID)
	})

	t.Run("GetByID", func(t *testing.T) {
		created := create(t)
		fetched, err := c.Prompts.Get(ctx, created.ID)
		require.NoError(t, err)
		testkit.ExpectValidPrompt(t, fetched)
		assert.Equal(t, created.ID, fetched.ID)
		assert.Equal(t, created.Name, fetched.Name)
	})

	t.Run("ListInProject", func(t *testing.T) {
		create(t)
		page, err := c.Prompts.List(ctx, project.ID, api.PageParams{})
		require.NoError(t, err)
		testkit.ExpectPaginated(t, page)
		assert.NotEmpty(t, page.Content)
	})

	t.Run("UpdateName", func(t *testing.T) {
		created := create(t)
		name := "Updated Sanity Name"
		updated, err := c.Prompts.Update(ctx, created.ID, api.UpdatePromptRequest{Name: &name})
		require.NoError(t, err)
		assert.Equal(t, name, updated.Name)
	})

	t.Run("Delete", func(t *testing.T) {
		created := create(t)
		require.NoError(t, c.Prompts.Delete(ctx, created.ID))

		_, err := c.Prompts.Get(ctx, created.ID)
		testkit.ExpectStatus(t, err, http.StatusNotFound)
	})
}
