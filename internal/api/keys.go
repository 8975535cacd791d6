package api

import (
	"context"

	"github.com/echostash/echostash-automation/internal/transport"
)

// APIKey is an SDK credential. Key holds the raw secret and is only present
// in the create response.
type APIKey struct {
	ID         ID     `json:"id"`
	Name       string `json:"name"`
	Key        string `json:"key,omitempty"`
	Prefix     string `json:"prefix,omitempty"`
	CreatedAt  string `json:"createdAt,omitempty"`
	LastUsedAt string `json:"lastUsedAt,omitempty"`
}

// KeysClient covers /api/keys.
type KeysClient struct {
	tc *transport.Client
}

const keysPath = "/api/keys"

// Create issues a new key.
func (c *KeysClient) Create(ctx context.Context, name string) (APIKey, error) {
	var out APIKey
	_, err := c.tc.Post(ctx, keysPath, map[string]string{"name": name}, &out)
	return out, err
}

// List returns the caller's keys without secrets.
func (c *KeysClient) List(ctx context.Context) ([]APIKey, error) {
	var out []APIKey
	_, err := c.tc.Get(ctx, keysPath, &out)
	return out, err
}

// Revoke disables a key.
func (c *KeysClient) Revoke(ctx context.Context, id ID) error {
	_, err := c.tc.Delete(ctx, joinPath(keysPath, id.String()), nil)
	return err
}
