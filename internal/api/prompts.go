package api

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/echostash/echostash-automation/internal/transport"
)

// Visibility values accepted by the backend.
const (
	VisibilityPrivate  = "PRIVATE"
	VisibilityUnlisted = "UNLISTED"
	VisibilityPublic   = "PUBLIC"
)

// Prompt is a named prompt inside a project. Content lives on versions; the
// prompt carries the latest content only when the backend includes it.
type Prompt struct {
	ID            ID     `json:"id"`
	Name          string `json:"name"`
	Content       string `json:"content,omitempty"`
	Description   string `json:"description,omitempty"`
	ProjectID     ID     `json:"projectId,omitempty"`
	Visibility    string `json:"visibility,omitempty"`
	Tags          []Tag  `json:"tags,omitempty"`
	LatestVersion int    `json:"latestVersion,omitempty"`
	PublishedNo   int    `json:"publishedVersionNo,omitempty"`
	CreatedAt     string `json:"createdAt,omitempty"`
	UpdatedAt     string `json:"updatedAt,omitempty"`
}

// CreatePromptRequest creates a prompt shell without content.
type CreatePromptRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	ProjectID   ID     `json:"projectId"`
	Visibility  string `json:"visibility,omitempty"`
}

// UpdatePromptRequest patches a prompt; nil fields are left alone.
type UpdatePromptRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

// PromptVersion is one immutable revision of a prompt.
type PromptVersion struct {
	ID            ID     `json:"id"`
	PromptID      ID     `json:"promptId,omitempty"`
	VersionNo     int    `json:"versionNo"`
	Content       string `json:"content"`
	ChangeMessage string `json:"changeMessage,omitempty"`
	CreatedAt     string `json:"createdAt,omitempty"`
}

// CreateVersionRequest adds a version.
type CreateVersionRequest struct {
	Content       string `json:"content"`
	ChangeMessage string `json:"changeMessage,omitempty"`
}

// CreateVersionResponse identifies the new version.
type CreateVersionResponse struct {
	ID            ID     `json:"id"`
	PromptID      ID     `json:"promptId,omitempty"`
	VersionNo     int    `json:"versionNo"`
	Content       string `json:"content,omitempty"`
	ChangeMessage string `json:"changeMessage,omitempty"`
	CreatedAt     string `json:"createdAt,omitempty"`
}

// PublishRequest publishes an existing version.
type PublishRequest struct {
	VersionNo    int    `json:"versionNo"`
	ReleaseNotes string `json:"releaseNotes,omitempty"`
}

// PublishNewVersionRequest creates and publishes a version in one call.
type PublishNewVersionRequest struct {
	Content       string `json:"content"`
	ChangeMessage string `json:"changeMessage,omitempty"`
	ReleaseNotes  string `json:"releaseNotes,omitempty"`
}

// PublishResponse reports the published version.
type PublishResponse struct {
	PromptID    ID     `json:"promptId"`
	VersionNo   int    `json:"versionNo"`
	Status      string `json:"status,omitempty"`
	PublishedAt string `json:"publishedAt,omitempty"`
}

// SearchParams filters prompt search.
type SearchParams struct {
	Query      string
	ProjectID  ID
	Tags       []string
	Visibility string
	Page       int
	Size       int
	Sort       string
}

func (p SearchParams) values() url.Values {
	query := url.Values{}
	setString(query, "query", p.Query)
	setString(query, "projectId", p.ProjectID.String())
	if len(p.Tags) > 0 {
		query.Set("tags", strings.Join(p.Tags, ","))
	}
	setString(query, "visibility", p.Visibility)
	setInt(query, "page", p.Page)
	setInt(query, "size", p.Size)
	setString(query, "sort", p.Sort)
	return query
}

// PromptsClient covers /api/prompts.
type PromptsClient struct {
	tc *transport.Client
}

const promptsPath = "/api/prompts"

func promptPath(id ID, segments ...string) string {
	return joinPath(promptsPath, append([]string{id.String()}, segments...)...)
}

// Create creates a prompt in a project.
func (c *PromptsClient) Create(ctx context.Context, req CreatePromptRequest) (Prompt, error) {
	var out Prompt
	_, err := c.tc.Post(ctx, promptsPath+"/create", req, &out)
	return out, err
}

// Get returns one prompt.
func (c *PromptsClient) Get(ctx context.Context, id ID) (Prompt, error) {
	var out Prompt
	_, err := c.tc.Get(ctx, promptPath(id), &out)
	return out, err
}

// List returns the prompts of a project.
func (c *PromptsClient) List(ctx context.Context, projectID ID, params PageParams) (Page[Prompt], error) {
	query := pageQuery(params)
	query.Set("projectId", projectID.String())

	var out Page[Prompt]
	_, err := c.tc.Get(ctx, promptsPath, &out, transport.WithQuery(query))
	return out, err
}

// Update patches prompt metadata.
func (c *PromptsClient) Update(ctx context.Context, id ID, req UpdatePromptRequest) (Prompt, error) {
	var out Prompt
	_, err := c.tc.Patch(ctx, promptPath(id), req, &out)
	return out, err
}

// Delete removes a prompt.
func (c *PromptsClient) Delete(ctx context.Context, id ID) error {
	_, err := c.tc.Delete(ctx, promptPath(id), nil)
	return err
}

// CreateVersion appends a version.
func (c *PromptsClient) CreateVersion(ctx context.Context, id ID, req CreateVersionRequest) (CreateVersionResponse, error) {
	var out CreateVersionResponse
	_, err := c.tc.Post(ctx, promptPath(id, "versions"), req, &out)
	return out, err
}

// ListVersions returns every version of a prompt.
func (c *PromptsClient) ListVersions(ctx context.Context, id ID) ([]PromptVersion, error) {
	var out []PromptVersion
	_, err := c.tc.Get(ctx, promptPath(id, "versions"), &out)
	return out, err
}

// GetVersion returns one version by number.
func (c *PromptsClient) GetVersion(ctx context.Context, id ID, versionNo int) (PromptVersion, error) {
	var out PromptVersion
	_, err := c.tc.Get(ctx, promptPath(id, "versions", strconv.Itoa(versionNo)), &out)
	return out, err
}

// Publish marks an existing version as the served one.
func (c *PromptsClient) Publish(ctx context.Context, id ID, req PublishRequest) (PublishResponse, error) {
	var out PublishResponse
	_, err := c.tc.Post(ctx, promptPath(id, "publish"), req, &out)
	return out, err
}

// PublishNewVersion creates a version and publishes it.
func (c *PromptsClient) PublishNewVersion(ctx context.Context, id ID, req PublishNewVersionRequest) (PublishResponse, error) {
	var out PublishResponse
	_, err := c.tc.Post(ctx, promptPath(id, "publish-new-version"), req, &out)
	return out, err
}

// UpdateVisibility changes who can see a prompt.
func (c *PromptsClient) UpdateVisibility(ctx context.Context, id ID, visibility string) error {
	_, err := c.tc.Put(ctx, promptPath(id, "visibility"), map[string]string{"visibility": visibility}, nil)
	return err
}

// SetTags attaches tags to a prompt.
func (c *PromptsClient) SetTags(ctx context.Context, id ID, tagIDs []ID) error {
	if tagIDs == nil {
		tagIDs = []ID{}
	}
	_, err := c.tc.Post(ctx, promptPath(id, "tags"), map[string][]ID{"tagIds": tagIDs}, nil)
	return err
}

// Search runs a filtered prompt search.
func (c *PromptsClient) Search(ctx context.Context, params SearchParams) (Page[Prompt], error) {
	var out Page[Prompt]
	_, err := c.tc.Get(ctx, promptsPath+"/search", &out, transport.WithQuery(params.values()))
	return out, err
}

// SemanticSearch searches the caller's prompts by meaning.
func (c *PromptsClient) SemanticSearch(ctx context.Context, query string, limit int) ([]Prompt, error) {
	values := url.Values{}
	values.Set("query", query)
	setInt(values, "limit", limit)

	var out []Prompt
	_, err := c.tc.Get(ctx, promptsPath+"/search/semantic/my", &out, transport.WithQuery(values))
	return out, err
}

// Count returns how many prompts the caller owns.
func (c *PromptsClient) Count(ctx context.Context) (int, error) {
	var out struct {
		Count int `json:"count"`
	}
	_, err := c.tc.Get(ctx, promptsPath+"/count", &out)
	return out.Count, err
}
