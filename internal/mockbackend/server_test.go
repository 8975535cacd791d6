package mockbackend_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/echostash/echostash-automation/internal/api"
	"github.com/echostash/echostash-automation/internal/fixtures"
	"github.com/echostash/echostash-automation/internal/mockbackend"
	"github.com/echostash/echostash-automation/internal/transport"
)

const adminEmail = "admin@echostash-test.com"

type backend struct {
	srv *mockbackend.Server
	ts  *httptest.Server
}

func newBackend(t *testing.T, opts mockbackend.Options) *backend {
	t.Helper()
	if opts.AdminEmails == nil {
		opts.AdminEmails = []string{adminEmail}
	}
	srv := mockbackend.New(opts)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &backend{srv: srv, ts: ts}
}

func (b *backend) client(t *testing.T, opts ...transport.Option) *api.Client {
	t.Helper()
	base := []transport.Option{
		transport.WithHTTPClient(b.ts.Client()),
		transport.WithRetryPolicy(transport.NoRetry()),
	}
	tc, err := transport.New(transport.Config{BaseURL: b.ts.URL, Timeout: 5 * time.Second}, append(base, opts...)...)
	require.NoError(t, err)
	return api.New(tc)
}

func (b *backend) guest(t *testing.T) *api.Client {
	t.Helper()
	c := b.client(t)
	resp, err := c.Auth.Guest(context.Background())
	require.NoError(t, err)
	c.Transport.SetToken(resp.AccessToken)
	return c
}

func (b *backend) apiKeyClient(t *testing.T, owner *api.Client) (*api.Client, api.APIKey) {
	t.Helper()
	key, err := owner.Keys.Create(context.Background(), fixtures.APIKeyData())
	require.NoError(t, err)
	require.NotEmpty(t, key.Key)
	return b.client(t, transport.WithAPIKey(key.Key)), key
}

func requireStatus(t *testing.T, err error, status int) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, status, transport.StatusCode(err), "error: %v", err)
}

// publishedPrompt creates a project, a prompt and one published version.
func publishedPrompt(t *testing.T, c *api.Client, content string) (api.Project, api.Prompt) {
	t.Helper()
	ctx := context.Background()
	project, err := c.Projects.Create(ctx, fixtures.ProjectData())
	require.NoError(t, err)
	prompt, err := c.Prompts.Create(ctx, fixtures.PromptData(project.ID))
	require.NoError(t, err)
	version, err := c.Prompts.CreateVersion(ctx, prompt.ID, api.CreateVersionRequest{Content: content})
	require.NoError(t, err)
	_, err = c.Prompts.Publish(ctx, prompt.ID, api.PublishRequest{VersionNo: version.VersionNo})
	require.NoError(t, err)
	return project, prompt
}

func TestGuestAuthFlows(t *testing.T) {
	b := newBackend(t, mockbackend.Options{})
	ctx := context.Background()
	anon := b.client(t)

	first, err := anon.Auth.Guest(ctx)
	require.NoError(t, err)
	assert.Equal(t, mockbackend.UserTypeGuest, first.UserType)
	assert.NotEmpty(t, first.RefreshToken)

	alice := b.guest(t)
	bob := b.guest(t)
	aliceMe, err := alice.Auth.Me(ctx)
	require.NoError(t, err)
	bobMe, err := bob.Auth.Me(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, aliceMe.ID, bobMe.ID)
	assert.Equal(t, mockbackend.UserTypeGuest, aliceMe.UserType)

	_, err = anon.Auth.Me(ctx)
	requireStatus(t, err, http.StatusUnauthorized)

	bogus := b.client(t, transport.WithToken("not-a-token"))
	_, err = bogus.Auth.Me(ctx)
	requireStatus(t, err, http.StatusUnauthorized)

	refreshed, err := anon.Auth.Refresh(ctx, first.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, first.AccessToken, refreshed.AccessToken)

	_, err = anon.Auth.Refresh(ctx, first.RefreshToken)
	requireStatus(t, err, http.StatusUnauthorized)
	_, err = anon.Auth.Refresh(ctx, "")
	requireStatus(t, err, http.StatusBadRequest)
}

func TestExchangeAndPasswordLogin(t *testing.T) {
	b := newBackend(t, mockbackend.Options{Users: map[string]string{"qa@echostash-test.com": "s3cret"}})
	ctx := context.Background()
	anon := b.client(t)

	tokens, err := anon.Auth.Exchange(ctx, mockbackend.GoogleTokenPrefix+"qa@echostash-test.com")
	require.NoError(t, err)
	user := b.client(t, transport.WithToken(tokens.AccessToken))
	me, err := user.Auth.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, "qa@echostash-test.com", me.Email)
	assert.Equal(t, mockbackend.UserTypeRegistered, me.UserType)

	_, err = anon.Auth.Exchange(ctx, "google-garbage")
	requireStatus(t, err, http.StatusUnauthorized)

	login, err := anon.Auth.Login(ctx, "qa@echostash-test.com", "s3cret")
	require.NoError(t, err)
	again := b.client(t, transport.WithToken(login.AccessToken))
	meAgain, err := again.Auth.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, me.ID, meAgain.ID, "password login reuses the exchanged account")

	_, err = anon.Auth.Login(ctx, "qa@echostash-test.com", "wrong")
	requireStatus(t, err, http.StatusUnauthorized)
}

func TestProjectsOwnership(t *testing.T) {
	b := newBackend(t, mockbackend.Options{})
	ctx := context.Background()
	owner := b.guest(t)
	other := b.guest(t)

	empty, err := other.Projects.List(ctx, api.PageParams{})
	require.NoError(t, err)
	assert.Empty(t, empty.Content)
	assert.Zero(t, empty.TotalElements)

	_, err = owner.Projects.Create(ctx, api.CreateProjectRequest{Name: "   "})
	requireStatus(t, err, http.StatusBadRequest)
	_, err = b.client(t).Projects.Create(ctx, fixtures.ProjectData())
	requireStatus(t, err, http.StatusUnauthorized)

	project, err := owner.Projects.Create(ctx, fixtures.ProjectData())
	require.NoError(t, err)
	assert.False(t, project.ID.IsZero())

	_, err = other.Projects.Get(ctx, project.ID)
	requireStatus(t, err, http.StatusNotFound)
	err = other.Projects.Delete(ctx, project.ID)
	requireStatus(t, err, http.StatusNotFound)

	renamed := "Renamed project"
	updated, err := owner.Projects.Update(ctx, project.ID, api.UpdateProjectRequest{Name: &renamed})
	require.NoError(t, err)
	assert.Equal(t, renamed, updated.Name)
	assert.Equal(t, project.Description, updated.Description)

	page, err := owner.Projects.List(ctx, api.PageParams{Size: 10})
	require.NoError(t, err)
	require.Len(t, page.Content, 1)
	assert.Equal(t, project.ID, page.Content[0].ID)

	require.NoError(t, owner.Projects.Delete(ctx, project.ID))
	_, err = owner.Projects.Get(ctx, project.ID)
	requireStatus(t, err, http.StatusNotFound)
}

func TestPromptVersionsAndPublishing(t *testing.T) {
	b := newBackend(t, mockbackend.Options{})
	ctx := context.Background()
	c := b.guest(t)

	project, err := c.Projects.Create(ctx, fixtures.ProjectData())
	require.NoError(t, err)

	_, err = c.Prompts.Create(ctx, api.CreatePromptRequest{Name: "orphan"})
	requireStatus(t, err, http.StatusBadRequest)

	prompt, err := c.Prompts.Create(ctx, fixtures.PromptData(project.ID))
	require.NoError(t, err)
	assert.Equal(t, api.VisibilityPrivate, prompt.Visibility)

	v1, err := c.Prompts.CreateVersion(ctx, prompt.ID, fixtures.VersionData())
	require.NoError(t, err)
	v2, err := c.Prompts.CreateVersion(ctx, prompt.ID, api.CreateVersionRequest{Content: "Hi {{name}}"})
	require.NoError(t, err)
	assert.Equal(t, 1, v1.VersionNo)
	assert.Equal(t, 2, v2.VersionNo)

	_, err = c.Prompts.GetVersion(ctx, prompt.ID, 99)
	requireStatus(t, err, http.StatusNotFound)
	_, err = c.Prompts.Publish(ctx, prompt.ID, api.PublishRequest{VersionNo: 99})
	requireStatus(t, err, http.StatusNotFound)

	published, err := c.Prompts.Publish(ctx, prompt.ID, api.PublishRequest{VersionNo: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, published.VersionNo)

	next, err := c.Prompts.PublishNewVersion(ctx, prompt.ID, api.PublishNewVersionRequest{Content: "Yo {{name}}"})
	require.NoError(t, err)
	assert.Equal(t, 3, next.VersionNo)

	got, err := c.Prompts.Get(ctx, prompt.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.PublishedNo)
	assert.Equal(t, "Yo {{name}}", got.Content)

	versions, err := c.Prompts.ListVersions(ctx, prompt.ID)
	require.NoError(t, err)
	assert.Len(t, versions, 3)

	count, err := c.Prompts.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestPromptVisibilityAndSearch(t *testing.T) {
	b := newBackend(t, mockbackend.Options{})
	ctx := context.Background()
	owner := b.guest(t)
	other := b.guest(t)

	project, err := owner.Projects.Create(ctx, fixtures.ProjectData())
	require.NoError(t, err)
	alpha, err := owner.Prompts.Create(ctx, fixtures.PromptData(project.ID, func(r *api.CreatePromptRequest) { r.Name = "Alpha greeter" }))
	require.NoError(t, err)
	_, err = owner.Prompts.Create(ctx, fixtures.PromptData(project.ID, func(r *api.CreatePromptRequest) { r.Name = "Beta summarizer" }))
	require.NoError(t, err)

	_, err = other.Prompts.Get(ctx, alpha.ID)
	requireStatus(t, err, http.StatusNotFound)

	require.NoError(t, owner.Prompts.UpdateVisibility(ctx, alpha.ID, "public"))
	shared, err := other.Prompts.Get(ctx, alpha.ID)
	require.NoError(t, err)
	assert.Equal(t, api.VisibilityPublic, shared.Visibility)

	err = owner.Prompts.UpdateVisibility(ctx, alpha.ID, "everyone")
	requireStatus(t, err, http.StatusBadRequest)

	all, err := owner.Prompts.Search(ctx, api.SearchParams{})
	require.NoError(t, err)
	assert.Equal(t, 2, all.TotalElements)

	hits, err := owner.Prompts.Search(ctx, api.SearchParams{Query: "greet", ProjectID: project.ID})
	require.NoError(t, err)
	require.Len(t, hits.Content, 1)
	assert.Equal(t, alpha.ID, hits.Content[0].ID)

	none, err := owner.Prompts.Search(ctx, api.SearchParams{Query: "zzz-no-match"})
	require.NoError(t, err)
	assert.Empty(t, none.Content)

	theirs, err := other.Prompts.Search(ctx, api.SearchParams{})
	require.NoError(t, err)
	assert.Empty(t, theirs.Content)

	_, err = b.client(t).Prompts.Search(ctx, api.SearchParams{})
	requireStatus(t, err, http.StatusUnauthorized)
}

func TestTagsRequireAdmin(t *testing.T) {
	b := newBackend(t, mockbackend.Options{})
	ctx := context.Background()

	_, err := b.guest(t).Admin.ListTags(ctx)
	requireStatus(t, err, http.StatusForbidden)
	_, err = b.client(t).Admin.ListTags(ctx)
	requireStatus(t, err, http.StatusUnauthorized)

	login, err := b.client(t).Automation.Login(ctx, adminEmail, "Admin")
	require.NoError(t, err)
	assert.True(t, login.IsFirstLogin)
	admin := b.client(t, transport.WithToken(login.AccessToken))

	tag, err := admin.Admin.CreateTag(ctx, fixtures.TagData())
	require.NoError(t, err)
	_, err = admin.Admin.CreateTag(ctx, api.CreateTagRequest{Name: tag.Name})
	requireStatus(t, err, http.StatusConflict)

	project, err := admin.Projects.Create(ctx, fixtures.ProjectData())
	require.NoError(t, err)
	prompt, err := admin.Prompts.Create(ctx, fixtures.PromptData(project.ID))
	require.NoError(t, err)
	require.NoError(t, admin.Prompts.SetTags(ctx, prompt.ID, []api.ID{tag.ID}))

	tagged, err := admin.Prompts.Search(ctx, api.SearchParams{Tags: []string{tag.Name}})
	require.NoError(t, err)
	require.Len(t, tagged.Content, 1)
	require.Len(t, tagged.Content[0].Tags, 1)

	err = admin.Prompts.SetTags(ctx, prompt.ID, []api.ID{"999999"})
	requireStatus(t, err, http.StatusBadRequest)

	link, err := admin.Admin.CreateShortLink(ctx, fixtures.ShortLinkData())
	require.NoError(t, err)
	require.NoError(t, admin.Admin.DeleteShortLink(ctx, link.Code))
	err = admin.Admin.DeleteShortLink(ctx, link.Code)
	requireStatus(t, err, http.StatusNotFound)
}

func TestSDKRendering(t *testing.T) {
	b := newBackend(t, mockbackend.Options{})
	ctx := context.Background()
	owner := b.guest(t)
	sdk, key := b.apiKeyClient(t, owner)

	project, prompt := publishedPrompt(t, owner, "Hello {{name}}, welcome to {{place}}!")

	rendered, err := sdk.SDK.Render(ctx, prompt.ID, api.Variables{"name": "Alice", "place": "Wonderland"})
	require.NoError(t, err)
	assert.Equal(t, "Hello Alice, welcome to Wonderland!", rendered.Rendered)
	assert.Equal(t, prompt.ID, rendered.PromptID)

	fetched, err := sdk.SDK.GetPrompt(ctx, prompt.ID, api.GetPromptOptions{})
	require.NoError(t, err)
	assert.Equal(t, prompt.Name, fetched.Name)
	assert.Equal(t, 1, fetched.VersionNo)

	version, err := sdk.SDK.GetPromptVersion(ctx, prompt.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, version.VersionNo)
	_, err = sdk.SDK.GetPromptVersion(ctx, prompt.ID, 7)
	requireStatus(t, err, http.StatusNotFound)

	unpublished, err := owner.Prompts.Create(ctx, fixtures.PromptData(project.ID))
	require.NoError(t, err)
	draft, err := sdk.SDK.GetPrompt(ctx, unpublished.ID, api.GetPromptOptions{})
	require.NoError(t, err)
	assert.Equal(t, unpublished.ID, draft.ID)
	_, err = sdk.SDK.Render(ctx, unpublished.ID, api.Variables{"name": "Test"})
	requireStatus(t, err, http.StatusNotFound)

	batch, err := sdk.SDK.BatchRender(ctx, []api.RenderItem{
		{PromptID: prompt.ID, Variables: api.Variables{"name": "Bob"}},
		{PromptID: unpublished.ID},
		{PromptID: "424242"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, batch.SuccessCount)
	assert.Equal(t, 2, batch.ErrorCount)
	require.Len(t, batch.Results, 3)
	assert.True(t, strings.HasPrefix(batch.Results[0].Rendered, "Hello Bob"))

	_, err = sdk.SDK.BatchRender(ctx, nil)
	requireStatus(t, err, http.StatusBadRequest)
	tooMany := make([]api.RenderItem, api.MaxBatchRenderItems+1)
	for i := range tooMany {
		tooMany[i] = api.RenderItem{PromptID: prompt.ID}
	}
	_, err = sdk.SDK.BatchRender(ctx, tooMany)
	requireStatus(t, err, http.StatusBadRequest)

	stranger := b.guest(t)
	_, err = stranger.SDK.GetPrompt(ctx, prompt.ID, api.GetPromptOptions{})
	requireStatus(t, err, http.StatusNotFound)

	invalid := b.client(t, transport.WithAPIKey("esk_invalid"))
	_, err = invalid.SDK.Render(ctx, prompt.ID, nil)
	requireStatus(t, err, http.StatusUnauthorized)

	keys, err := owner.Keys.List(ctx)
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Empty(t, keys[0].Key, "list must not expose raw keys")

	require.NoError(t, owner.Keys.Revoke(ctx, key.ID))
	_, err = sdk.SDK.Render(ctx, prompt.ID, nil)
	requireStatus(t, err, http.StatusUnauthorized)
}

func TestEvalRunCompletesImmediately(t *testing.T) {
	b := newBackend(t, mockbackend.Options{})
	ctx := context.Background()
	c := b.guest(t)
	_, prompt := publishedPrompt(t, c, "Hello {{name}}, welcome to {{place}}!")

	dataset, err := c.Eval.CreateDataset(ctx, prompt.ID, fixtures.EvalDatasetData())
	require.NoError(t, err)
	require.Len(t, dataset.Items, 2)
	suite, err := c.Eval.CreateSuite(ctx, prompt.ID, fixtures.EvalSuiteData(dataset.ID))
	require.NoError(t, err)
	_, err = c.Eval.CreateTest(ctx, prompt.ID, suite.ID, fixtures.EvalTestData())
	require.NoError(t, err)

	run, err := c.Eval.StartRun(ctx, prompt.ID, suite.ID)
	require.NoError(t, err)
	assert.Equal(t, suite.ID, run.SuiteID)
	assert.True(t, run.Terminal())

	got, err := c.Eval.GetRun(ctx, prompt.ID, suite.ID, run.ID)
	require.NoError(t, err)
	assert.Equal(t, api.EvalRunCompleted, got.Status)
	require.Len(t, got.Results, 1)
	assert.True(t, got.Results[0].Passed)
	assert.InDelta(t, 1.0, got.Results[0].Score, 1e-9)

	gate, err := c.Eval.CreateGate(ctx, prompt.ID, fixtures.EvalGateData(suite.ID))
	require.NoError(t, err)
	assert.True(t, gate.Enabled)

	_, err = c.Eval.CreateTest(ctx, prompt.ID, suite.ID, api.CreateEvalTestRequest{Name: "bad", Type: "telepathy"})
	requireStatus(t, err, http.StatusBadRequest)
}

func TestCompositesValidateItems(t *testing.T) {
	b := newBackend(t, mockbackend.Options{})
	ctx := context.Background()
	c := b.guest(t)
	project, prompt := publishedPrompt(t, c, "Step one")

	composite, err := c.Composites.Create(ctx, fixtures.CompositeData(project.ID, []api.ID{prompt.ID}))
	require.NoError(t, err)
	id := composite.EffectiveID()
	assert.Equal(t, 1, composite.VersionNo)

	_, err = c.Composites.Create(ctx, api.CreateCompositeRequest{
		Name:  "bad",
		Items: []api.CompositeItem{{ItemType: "SNIPPET", Position: 1, PromptID: prompt.ID}},
	})
	requireStatus(t, err, http.StatusBadRequest)

	updated, err := c.Composites.Update(ctx, id, api.UpdateCompositeRequest{
		Items: []api.CompositeItem{
			{ItemType: api.CompositeItemPrompt, Position: 1, PromptID: prompt.ID},
			{ItemType: api.CompositeItemPrompt, Position: 2, PromptID: prompt.ID},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, updated.VersionNo)

	first, err := c.Composites.GetVersion(ctx, id, 1)
	require.NoError(t, err)
	assert.Len(t, first.Items, 1)

	assert.Len(t, c.Composites.List(ctx, project.ID), 1)

	_, err = b.guest(t).Composites.Get(ctx, id)
	requireStatus(t, err, http.StatusNotFound)

	require.NoError(t, c.Composites.Delete(ctx, id))
	assert.Empty(t, c.Composites.List(ctx, ""))
}

func TestContextStoreRoundTrip(t *testing.T) {
	b := newBackend(t, mockbackend.Options{})
	ctx := context.Background()
	c := b.guest(t)

	asset, err := c.ContextStore.Upload(ctx, "notes.txt", []byte("remember the milk"))
	require.NoError(t, err)
	assert.Equal(t, int64(17), asset.Size)

	content, err := c.ContextStore.GetContent(ctx, asset.ID)
	require.NoError(t, err)
	assert.Equal(t, "remember the milk", content)

	usage, err := c.ContextStore.Usage(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, usage.TotalAssets)

	_, err = c.ContextStore.GetContent(ctx, "00000000-0000-0000-0000-000000000000")
	requireStatus(t, err, http.StatusNotFound)

	require.NoError(t, c.ContextStore.Delete(ctx, asset.ID))
	assets, err := c.ContextStore.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, assets)

	_, err = b.client(t).ContextStore.List(ctx)
	requireStatus(t, err, http.StatusUnauthorized)
}

func TestPublicGallery(t *testing.T) {
	b := newBackend(t, mockbackend.Options{})
	ctx := context.Background()
	owner := b.guest(t)
	anon := b.client(t)
	_, prompt := publishedPrompt(t, owner, "Shared {{thing}}")

	shared, err := owner.Public.Share(ctx, api.ShareRequest{PromptID: prompt.ID, Slug: "Shared Thing"})
	require.NoError(t, err)
	assert.Equal(t, "shared-thing", shared.Slug)

	require.NoError(t, anon.Public.View(ctx, shared.Slug))
	require.NoError(t, anon.Public.Upvote(ctx, shared.Slug))
	got, err := anon.Public.GetPrompt(ctx, shared.Slug)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Views)
	assert.Equal(t, 1, got.Upvotes)

	_, err = anon.Public.GetPrompt(ctx, "no-such-slug")
	requireStatus(t, err, http.StatusNotFound)

	gallery, err := anon.Public.Search(ctx, api.PublicSearchParams{Query: prompt.Name})
	require.NoError(t, err)
	assert.Equal(t, 1, gallery.TotalElements)

	plans, err := anon.Public.ListPlans(ctx)
	require.NoError(t, err)
	assert.Len(t, plans, 3)

	discovery, err := anon.PLP.Discovery(ctx)
	require.NoError(t, err)
	assert.Equal(t, mockbackend.PLPVersion, discovery.Version)
	plp, err := anon.PLP.GetPrompt(ctx, prompt.ID)
	require.NoError(t, err)
	assert.Equal(t, "1", plp.Version)

	_, err = anon.Public.Share(ctx, api.ShareRequest{PromptID: prompt.ID})
	requireStatus(t, err, http.StatusUnauthorized)
}

func TestBillingAndAutomationCheats(t *testing.T) {
	b := newBackend(t, mockbackend.Options{})
	ctx := context.Background()

	login, err := b.client(t).Automation.Login(ctx, fixtures.RandomEmail(), "QA")
	require.NoError(t, err)
	c := b.client(t, transport.WithToken(login.AccessToken))
	me, err := c.Auth.Me(ctx)
	require.NoError(t, err)

	profile, err := c.Billing.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, "free", profile.Plan)

	_, err = c.Automation.SetPlan(ctx, me.ID, "pro")
	require.NoError(t, err)
	profile, err = c.Billing.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, "pro", profile.Plan)

	_, err = c.Automation.SetPlan(ctx, me.ID, "platinum")
	requireStatus(t, err, http.StatusBadRequest)

	_, err = c.Billing.UpdateSpending(ctx, -1)
	requireStatus(t, err, http.StatusBadRequest)
	spending, err := c.Billing.UpdateSpending(ctx, 250)
	require.NoError(t, err)
	assert.InDelta(t, 250, spending.Limit, 1e-9)

	_, err = c.Keys.Create(ctx, "ci")
	require.NoError(t, err)
	reset, err := c.Automation.ResetQuotas(ctx, me.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, reset.KeysDeleted)

	deleted, err := c.Automation.DeleteUser(ctx, me.ID)
	require.NoError(t, err)
	assert.True(t, deleted.Deleted)
	_, err = c.Auth.Me(ctx)
	requireStatus(t, err, http.StatusUnauthorized)
}

func TestAutomationCanBeDisabled(t *testing.T) {
	b := newBackend(t, mockbackend.Options{DisableAutomation: true})
	_, err := b.client(t).Automation.Login(context.Background(), fixtures.RandomEmail(), "")
	requireStatus(t, err, http.StatusNotFound)
}

func TestFailNextExercisesRetries(t *testing.T) {
	b := newBackend(t, mockbackend.Options{})
	ctx := context.Background()
	c := b.client(t, transport.WithRetryPolicy(transport.RetryPolicy{
		MaxRetries: 3,
		BaseDelay:  time.Millisecond,
		MaxDelay:   5 * time.Millisecond,
	}))

	b.srv.FailNext("/actuator/health", http.StatusServiceUnavailable, 2)
	health, err := c.Health.Check(ctx)
	require.NoError(t, err)
	assert.True(t, health.Up())
	assert.Equal(t, 3, b.srv.Hits("/actuator/health"))

	b.srv.FailNext("/actuator/health", http.StatusBadRequest, 1)
	_, err = c.Health.Check(ctx)
	requireStatus(t, err, http.StatusBadRequest)

	apiErr, ok := transport.AsError(err)
	require.True(t, ok)
	require.NotNil(t, apiErr.Backend)
	assert.Equal(t, "injected failure", apiErr.Backend.Message)
	assert.NotEmpty(t, apiErr.RequestID)
}

func TestUnknownRouteUsesBackendErrorShape(t *testing.T) {
	b := newBackend(t, mockbackend.Options{})
	_, err := b.client(t).Transport.Get(context.Background(), "/api/does-not-exist", nil)
	requireStatus(t, err, http.StatusNotFound)

	apiErr, ok := transport.AsError(err)
	require.True(t, ok)
	require.NotNil(t, apiErr.Backend)
	assert.Equal(t, "/api/does-not-exist", apiErr.Backend.Path)
}

func TestStartAndShutdown(t *testing.T) {
	srv := mockbackend.New(mockbackend.Options{Port: 0})
	done := make(chan error, 1)
	go func() { done <- srv.Start() }()

	require.Eventually(t, func() bool {
		resp, err := http.Get(srv.URL() + "/actuator/health")
		if err != nil {
			return false
		}
		resp.Body.Close() //nolint:errcheck
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))
	require.NoError(t, <-done)
}
