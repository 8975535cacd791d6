package regression

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/echostash/echostash-automation/internal/api"
	"github.com/echostash/echostash-automation/internal/fixtures"
	"github.com/echostash/echostash-automation/internal/testkit"
)

func TestProjectsCRUD(t *testing.T) {
	env := testkit.Target(t)
	ctx := testContext(t)
	c := env.MustGuestClient(t)
	tracker := testkit.Track(t, c)

	project, err := tracker.CreateTestProject(ctx, "crud")
	require.NoError(t, err)
	testkit.ExpectValidProject(t, project)
	assert.Equal(t, "Test Project crud", project.Name)

	t.Run("Update", func(t *testing.T) {
		name := fixtures.UniqueName("Renamed")
		description := "Updated by regression"
		updated, err := c.Projects.Update(ctx, project.ID, api.UpdateProjectRequest{Name: &name, Description: &description})
		require.NoError(t, err)
		assert.Equal(t, name, updated.Name)
		assert.Equal(t, description, updated.Description)
	})

	t.Run("ListPaged", func(t *testing.T) {
		page, err := c.Projects.List(ctx, api.PageParams{Page: 0, Size: 5})
		require.NoError(t, err)
		testkit.ExpectPaginated(t, page)
		assert.GreaterOrEqual(t, page.TotalElements, 1)
	})

	t.Run("RejectsBlankName", func(t *testing.T) {
		_, err := c.Projects.Create(ctx, api.CreateProjectRequest{Name: "   "})
		testkit.ExpectStatus(t, err, http.StatusBadRequest)
	})

	t.Run("HiddenFromOtherUsers", func(t *testing.T) {
		_, err := env.MustGuestClient(t).Projects.Get(ctx, project.ID)
		testkit.ExpectStatus(t, err, http.StatusNotFound)
	})

	t.Run("DeleteRemovesPrompts", func(t *testing.T) {
		doomed, err := tracker.CreateTestProject(ctx, "doomed")
		require.NoError(t, err)
		prompt, err := tracker.CreateTestPrompt(ctx, doomed.ID, "")
		require.NoError(t, err)

		require.NoError(t, c.Projects.Delete(ctx, doomed.ID))
		_, err = c.Projects.Get(ctx, doomed.ID)
		testkit.ExpectStatus(t, err, http.StatusNotFound)
		_, err = c.Prompts.Get(ctx, prompt.ID)
		testkit.ExpectStatus(t, err, http.StatusNotFound)
	})
}
