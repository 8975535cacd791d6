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

func TestComposites(t *testing.T) {
	env := testkit.Target(t)
	ctx := testContext(t)
	c := env.MustGuestClient(t)
	tracker := testkit.Track(t, c)
	project, first := published(t, tracker, "Step one for {{name}}")
	second, err := tracker.CreateTestPrompt(ctx, project.ID, "")
	require.NoError(t, err)

	composite, err := c.Composites.Create(ctx, fixtures.CompositeData(project.ID, []api.ID{first.ID}))
	require.NoError(t, err)
	id := composite.EffectiveID()
	require.False(t, id.IsZero())
	tracker.Add(ctx, store.KindComposite, id, project.ID)

	t.Run("Get", func(t *testing.T) {
		got, err := c.Composites.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, composite.Name, got.Name)
		require.Len(t, got.Items, 1)
		assert.Equal(t, api.CompositeItemPrompt, got.Items[0].ItemType)
	})

	t.Run("UpdateAddsVersion", func(t *testing.T) {
		req := fixtures.NewCompositeBuilder(project.ID).AddStep(first.ID, 1).AddStep(second.ID, 2).Build()
		updated, err := c.Composites.Update(ctx, id, api.UpdateCompositeRequest{Items: req.Items})
		require.NoError(t, err)
		assert.Equal(t, composite.VersionNo+1, updated.VersionNo)

		original, err := c.Composites.GetVersion(ctx, id, composite.VersionNo)
		require.NoError(t, err)
		assert.Len(t, original.Items, 1)
	})

	t.Run("RejectsUnknownItemType", func(t *testing.T) {
		_, err := c.Composites.Create(ctx, api.CreateCompositeRequest{
			Name:  fixtures.UniqueName("bad"),
			Items: []api.CompositeItem{{ItemType: "SNIPPET", Position: 1, PromptID: first.ID}},
		})
		testkit.ExpectStatus(t, err, http.StatusBadRequest)
	})

	t.Run("ListByProject", func(t *testing.T) {
		assert.Len(t, c.Composites.List(ctx, project.ID), 1)
	})

	t.Run("ListSwallowsErrors", func(t *testing.T) {
		assert.Empty(t, env.MustClient(t).Composites.List(ctx, project.ID))
	})

	t.Run("HiddenFromOtherUsers", func(t *testing.T) {
		_, err := env.MustGuestClient(t).Composites.Get(ctx, id)
		testkit.ExpectStatus(t, err, http.StatusNotFound)
	})
}
