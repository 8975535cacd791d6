package api

import (
	"context"
	"errors"

	"github.com/echostash/echostash-automation/internal/transport"
)

// ContextAsset is a file stored for retrieval at render time.
type ContextAsset struct {
	ID          ID     `json:"id"`
	Filename    string `json:"filename"`
	ContentType string `json:"contentType,omitempty"`
	Size        int64  `json:"size"`
	CreatedAt   string `json:"createdAt,omitempty"`
}

// ContextStoreUsage reports storage consumption.
type ContextStoreUsage struct {
	TotalAssets int   `json:"totalAssets"`
	TotalSize   int64 `json:"totalSize"`
	MaxSize     int64 `json:"maxSize"`
}

// ContextStoreClient covers /api/v1/context-store.
type ContextStoreClient struct {
	tc *transport.Client
}

const contextStorePath = "/api/v1/context-store"

// Upload stores a file under the multipart field "file".
func (c *ContextStoreClient) Upload(ctx context.Context, filename string, content []byte) (ContextAsset, error) {
	if filename == "" {
		return ContextAsset{}, errors.New("filename is required")
	}
	var out ContextAsset
	_, err := c.tc.Upload(ctx, contextStorePath, nil, []transport.FilePart{{Field: "file", Filename: filename, Content: content}}, &out)
	return out, err
}

// List returns every stored asset.
func (c *ContextStoreClient) List(ctx context.Context) ([]ContextAsset, error) {
	var out []ContextAsset
	_, err := c.tc.Get(ctx, contextStorePath, &out)
	return out, err
}

// GetContent returns an asset's raw content.
func (c *ContextStoreClient) GetContent(ctx context.Context, id ID) (string, error) {
	return c.tc.GetString(ctx, joinPath(contextStorePath, id.String(), "content"))
}

// Delete removes an asset.
func (c *ContextStoreClient) Delete(ctx context.Context, id ID) error {
	_, err := c.tc.Delete(ctx, joinPath(contextStorePath, id.String()), nil)
	return err
}

// Usage returns storage consumption.
func (c *ContextStoreClient) Usage(ctx context.Context) (ContextStoreUsage, error) {
	var out ContextStoreUsage
	_, err := c.tc.Get(ctx, contextStorePath+"/usage", &out)
	return out, err
}
