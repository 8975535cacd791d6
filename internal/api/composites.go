package api

import (
	"context"
	"net/url"
	"strconv"

	"github.com/echostash/echostash-automation/internal/transport"
)

// CompositeItemPrompt is the only item type composites accept today.
const CompositeItemPrompt = "PROMPT"

// CompositeItem is one ordered entry of a composite.
type CompositeItem struct {
	ItemType string `json:"itemType"`
	Position int    `json:"position"`
	PromptID ID     `json:"promptId"`
}

// Composite chains prompts into one renderable unit.
type Composite struct {
	ID          ID              `json:"id,omitempty"`
	CompositeID ID              `json:"compositeId,omitempty"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	ProjectID   ID              `json:"projectId,omitempty"`
	VersionNo   int             `json:"versionNo,omitempty"`
	Items       []CompositeItem `json:"items,omitempty"`
	CreatedAt   string          `json:"createdAt,omitempty"`
	UpdatedAt   string          `json:"updatedAt,omitempty"`
}

// EffectiveID is compositeId when the backend sent one, else id.
func (c Composite) EffectiveID() ID {
	if !c.CompositeID.IsZero() {
		return c.CompositeID
	}
	return c.ID
}

// CreateCompositeRequest creates a composite.
type CreateCompositeRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	ProjectID   ID              `json:"projectId,omitempty"`
	Items       []CompositeItem `json:"items"`
}

// UpdateCompositeRequest changes a composite.
type UpdateCompositeRequest struct {
	Name        *string         `json:"name,omitempty"`
	Description *string         `json:"description,omitempty"`
	Items       []CompositeItem `json:"items,omitempty"`
}

// CompositesClient covers /api/composites.
type CompositesClient struct {
	tc *transport.Client
}

const compositesPath = "/api/composites"

// Create creates a composite.
func (c *CompositesClient) Create(ctx context.Context, req CreateCompositeRequest) (Composite, error) {
	if req.Items == nil {
		req.Items = []CompositeItem{}
	}
	var out Composite
	_, err := c.tc.Post(ctx, compositesPath, req, &out)
	return out, err
}

// Get returns a composite.
func (c *CompositesClient) Get(ctx context.Context, id ID) (Composite, error) {
	var out Composite
	_, err := c.tc.Get(ctx, joinPath(compositesPath, id.String()), &out)
	return out, err
}

// GetVersion returns one version of a composite.
func (c *CompositesClient) GetVersion(ctx context.Context, id ID, versionNo int) (Composite, error) {
	var out Composite
	_, err := c.tc.Get(ctx, joinPath(compositesPath, id.String(), "versions", strconv.Itoa(versionNo)), &out)
	return out, err
}

// List returns composites, optionally scoped to a project. Not every backend
// exposes a list endpoint, so any failure yields an empty slice.
func (c *CompositesClient) List(ctx context.Context, projectID ID) []Composite {
	query := url.Values{}
	setString(query, "projectId", projectID.String())

	var out []Composite
	if _, err := c.tc.Get(ctx, compositesPath, &out, transport.WithQuery(query)); err != nil {
		return []Composite{}
	}
	if out == nil {
		return []Composite{}
	}
	return out
}

// Update changes a composite.
func (c *CompositesClient) Update(ctx context.Context, id ID, req UpdateCompositeRequest) (Composite, error) {
	var out Composite
	_, err := c.tc.Put(ctx, joinPath(compositesPath, id.String()), req, &out)
	return out, err
}

// Delete removes a composite.
func (c *CompositesClient) Delete(ctx context.Context, id ID) error {
	_, err := c.tc.Delete(ctx, joinPath(compositesPath, id.String()), nil)
	return err
}
