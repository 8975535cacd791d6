package api

import (
	"context"

	"github.com/echostash/echostash-automation/internal/transport"
)

// Tag labels prompts.
type Tag struct {
	ID    ID     `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

// CreateTagRequest creates a tag.
type CreateTagRequest struct {
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

// UpdateTagRequest changes a tag.
type UpdateTagRequest struct {
	Name  *string `json:"name,omitempty"`
	Color *string `json:"color,omitempty"`
}

// ShortLink redirects a short code to a target URL.
type ShortLink struct {
	ID        ID     `json:"id"`
	Code      string `json:"code"`
	TargetURL string `json:"targetUrl"`
	Clicks    int    `json:"clicks"`
	CreatedAt string `json:"createdAt,omitempty"`
}

// CreateShortLinkRequest creates a short link.
type CreateShortLinkRequest struct {
	Code      string `json:"code"`
	TargetURL string `json:"targetUrl"`
}

// AdminClient covers /api/admin.
type AdminClient struct {
	tc *transport.Client
}

const (
	shortLinksPath = "/api/admin/short-links"
	tagsPath       = "/api/admin/tags"
)

// CreateShortLink creates a short link.
func (c *AdminClient) CreateShortLink(ctx context.Context, req CreateShortLinkRequest) (ShortLink, error) {
	var out ShortLink
	_, err := c.tc.Post(ctx, shortLinksPath, req, &out)
	return out, err
}

// ListShortLinks lists short links.
func (c *AdminClient) ListShortLinks(ctx context.Context) ([]ShortLink, error) {
	var out []ShortLink
	_, err := c.tc.Get(ctx, shortLinksPath, &out)
	return out, err
}

// DeleteShortLink removes a short link by code.
func (c *AdminClient) DeleteShortLink(ctx context.Context, code string) error {
	_, err := c.tc.Delete(ctx, joinPath(shortLinksPath, code), nil)
	return err
}

// ListTags lists tags.
func (c *AdminClient) ListTags(ctx context.Context) ([]Tag, error) {
	var out []Tag
	_, err := c.tc.Get(ctx, tagsPath, &out)
	return out, err
}

// CreateTag creates a tag.
func (c *AdminClient) CreateTag(ctx context.Context, req CreateTagRequest) (Tag, error) {
	var out Tag
	_, err := c.tc.Post(ctx, tagsPath, req, &out)
	return out, err
}

// UpdateTag changes a tag.
func (c *AdminClient) UpdateTag(ctx context.Context, id ID, req UpdateTagRequest) (Tag, error) {
	var out Tag
	_, err := c.tc.Put(ctx, joinPath(tagsPath, id.String()), req, &out)
	return out, err
}

// DeleteTag removes a tag.
func (c *AdminClient) DeleteTag(ctx context.Context, id ID) error {
	_, err := c.tc.Delete(ctx, joinPath(tagsPath, id.String()), nil)
	return err
}
