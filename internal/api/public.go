package api

import (
	"context"
	"net/url"
	"strings"

	"github.com/echostash/echostash-automation/internal/transport"
)

// PublicPrompt is a shared prompt in the public gallery.
type PublicPrompt struct {
	ID      ID     `json:"id"`
	Name    string `json:"name"`
	Content string `json:"content,omitempty"`
	Slug    string `json:"slug"`
	Author  string `json:"author,omitempty"`
	Views   int    `json:"views"`
	Upvotes int    `json:"upvotes"`
	Forks   int    `json:"forks"`
}

// PublicSearchParams filters the gallery.
type PublicSearchParams struct {
	Query string
	Tags  []string
	Sort  string
	Page  int
	Size  int
}

// ShareRequest publishes a prompt to the gallery.
type ShareRequest struct {
	PromptID ID     `json:"promptId"`
	Slug     string `json:"slug,omitempty"`
}

// PromptPack is a curated prompt collection.
type PromptPack struct {
	ID          ID             `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Prompts     []PublicPrompt `json:"prompts,omitempty"`
}

// Plan is a purchasable plan.
type Plan struct {
	ID       ID       `json:"id"`
	Name     string   `json:"name"`
	Price    float64  `json:"price"`
	Features []string `json:"features,omitempty"`
}

// PublicClient covers /api/public.
type PublicClient struct {
	tc *transport.Client
}

const publicPath = "/api/public"

// GetPrompt returns a shared prompt by slug.
func (c *PublicClient) GetPrompt(ctx context.Context, slug string) (PublicPrompt, error) {
	var out PublicPrompt
	_, err := c.tc.Get(ctx, joinPath(publicPath, "prompts", slug), &out)
	return out, err
}

// Search searches the gallery.
func (c *PublicClient) Search(ctx context.Context, params PublicSearchParams) (Page[PublicPrompt], error) {
	query := url.Values{}
	setString(query, "query", params.Query)
	if len(params.Tags) > 0 {
		query.Set("tags", strings.Join(params.Tags, ","))
	}
	setString(query, "sort", params.Sort)
	setInt(query, "page", params.Page)
	setInt(query, "size", params.Size)

	var out Page[PublicPrompt]
	_, err := c.tc.Get(ctx, publicPath+"/prompts", &out, transport.WithQuery(query))
	return out, err
}

// Share publishes a prompt to the gallery.
func (c *PublicClient) Share(ctx context.Context, req ShareRequest) (PublicPrompt, error) {
	var out PublicPrompt
	_, err := c.tc.Post(ctx, publicPath+"/share", req, &out)
	return out, err
}

// View records a view.
func (c *PublicClient) View(ctx context.Context, slug string) error {
	return c.track(ctx, slug, "view")
}

// Upvote records an upvote.
func (c *PublicClient) Upvote(ctx context.Context, slug string) error {
	return c.track(ctx, slug, "upvote")
}

// Fork records a fork.
func (c *PublicClient) Fork(ctx context.Context, slug string) error {
	return c.track(ctx, slug, "fork")
}

func (c *PublicClient) track(ctx context.Context, slug, event string) error {
	_, err := c.tc.Post(ctx, joinPath(publicPath, "prompts", slug, event), nil, nil)
	return err
}

// ListPacks lists curated packs.
func (c *PublicClient) ListPacks(ctx context.Context) ([]PromptPack, error) {
	var out []PromptPack
	_, err := c.tc.Get(ctx, publicPath+"/packs", &out)
	return out, err
}

// GetPack returns one pack.
func (c *PublicClient) GetPack(ctx context.Context, id ID) (PromptPack, error) {
	var out PromptPack
	_, err := c.tc.Get(ctx, joinPath(publicPath, "packs", id.String()), &out)
	return out, err
}

// ListPlans lists purchasable plans.
func (c *PublicClient) ListPlans(ctx context.Context) ([]Plan, error) {
	var out []Plan
	_, err := c.tc.Get(ctx, publicPath+"/plans", &out)
	return out, err
}
