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

func TestAdminAccess(t *testing.T) {
	env := testkit.Target(t)
	ctx := testContext(t)

	_, err := env.MustGuestClient(t).Admin.ListTags(ctx)
	testkit.ExpectStatus(t, err, http.StatusForbidden)

	_, err = env.MustClient(t).Admin.ListShortLinks(ctx)
	testkit.ExpectStatus(t, err, http.StatusUnauthorized)
}

func TestAdminTags(t *testing.T) {
	env := testkit.Target(t)
	requireAutomation(t, env)
	ctx := testContext(t)
	admin, err := env.AdminClient(ctx)
	require.NoError(t, err)
	tracker := testkit.Track(t, admin)

	req := fixtures.TagData()
	tag, err := admin.Admin.CreateTag(ctx, req)
	require.NoError(t, err)
	tracker.Add(ctx, store.KindTag, tag.ID, "")
	assert.Equal(t, req.Name, tag.Name)

	_, err = admin.Admin.CreateTag(ctx, req)
	testkit.ExpectStatus(t, err, http.StatusConflict)

	color := "#ff6633"
	updated, err := admin.Admin.UpdateTag(ctx, tag.ID, api.UpdateTagRequest{Color: &color})
	require.NoError(t, err)
	assert.Equal(t, color, updated.Color)

	tags, err := admin.Admin.ListTags(ctx)
	require.NoError(t, err)
	assert.Contains(t, tags, updated)

	require.NoError(t, admin.Admin.DeleteTag(ctx, tag.ID))
	err = admin.Admin.DeleteTag(ctx, tag.ID)
	testkit.ExpectStatus(t, err, http.StatusNotFound)
}

func TestAdminShortLinks(t *testing.T) {
	env := testkit.Target(t)
	requireAutomation(t, env)
	ctx := testContext(t)
	admin, err := env.AdminClient(ctx)
	require.NoError(t, err)
	tracker := testkit.Track(t, admin)

	req := fixtures.ShortLinkData()
	link, err := admin.Admin.CreateShortLink(ctx, req)
	require.NoError(t, err)
	tracker.Add(ctx, store.KindShortLink, api.ID(link.Code), "")
	assert.Equal(t, req.TargetURL, link.TargetURL)

	_, err = admin.Admin.CreateShortLink(ctx, api.CreateShortLinkRequest{Code: fixtures.UniqueID(), TargetURL: "ftp://nope"})
	testkit.ExpectStatus(t, err, http.StatusBadRequest)

	links, err := admin.Admin.ListShortLinks(ctx)
	require.NoError(t, err)
	codes := make([]string, 0, len(links))
	for _, l := range links {
		codes = append(codes, l.Code)
	}
	assert.Contains(t, codes, req.Code)

	require.NoError(t, admin.Admin.DeleteShortLink(ctx, req.Code))
	err = admin.Admin.DeleteShortLink(ctx, req.Code)
	testkit.ExpectStatus(t, err, http.StatusNotFound)
}
