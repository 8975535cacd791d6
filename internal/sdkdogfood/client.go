// Package sdkdogfood consumes the backend the way an SDK user would: an API
// key, a base URL, and two calls.
package sdkdogfood

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/echostash/echostash-automation/internal/api"
	"github.com/echostash/echostash-automation/internal/config"
	"github.com/echostash/echostash-automation/internal/transport"
)

// APIKeyEnvVar supplies the key when Options.APIKey is empty.
const APIKeyEnvVar = "TEST_API_KEY"

// Version selectors accepted alongside plain version numbers.
const (
	VersionPublished = "published"
	VersionLatest    = "latest"
)

// Prompt is a fetched prompt.
type Prompt struct {
	ID      string
	Name    string
	Content string
	Version int
}

// RenderResult is rendered prompt text.
type RenderResult struct {
	PromptID string
	Rendered string
	Version  int
}

// Options configure a Client.
type Options struct {
	APIKey  string
	BaseURL string

	// Transport options appended after the API key (tests pass an httptest client).
	Transport []transport.Option
}

// Client is the dogfood SDK client.
type Client struct {
	apiKey  string
	baseURL string
	sdk     *api.SDKClient
}

// New builds a client. BaseURL defaults to the current environment preset.
func New(opts Options) (*Client, error) {
	key := strings.TrimSpace(opts.APIKey)
	if key == "" {
		return nil, errors.New("api key is required")
	}
	baseURL := strings.TrimSpace(opts.BaseURL)
	if baseURL == "" {
		preset, err := config.GetEnvConfig(config.CurrentEnvironment())
		if err != nil {
			return nil, err
		}
		baseURL = preset.APIURL
	}

	tc, err := transport.New(transport.Config{BaseURL: baseURL, APIKey: key}, opts.Transport...)
	if err != nil {
		return nil, err
	}
	return &Client{apiKey: key, baseURL: baseURL, sdk: api.New(tc).SDK}, nil
}

// APIKey returns the key the client authenticates with.
func (c *Client) APIKey() string { return c.apiKey }

// BaseURL returns the backend the client talks to.
func (c *Client) BaseURL() string { return c.baseURL }

// GetPrompt fetches a prompt. version is a number, "published", "latest" or
// empty for published.
func (c *Client) GetPrompt(ctx context.Context, id string, version string) (Prompt, error) {
	selector, err := normalizeVersion(version)
	if err != nil {
		return Prompt{}, err
	}
	p, err := c.sdk.GetPrompt(ctx, api.ID(id), api.GetPromptOptions{Version: selector})
	if err != nil {
		return Prompt{}, fmt.Errorf("get prompt %s: %w", id, err)
	}
	return fromSDK(p), nil
}

// Render renders a prompt with variables. The published version goes through
// the render endpoint; any other version is rendered by the fetch endpoint.
func (c *Client) Render(ctx context.Context, id string, variables map[string]string, version string) (RenderResult, error) {
	selector, err := normalizeVersion(version)
	if err != nil {
		return RenderResult{}, err
	}

	if selector == "" || selector == VersionPublished {
		out, err := c.sdk.Render(ctx, api.ID(id), variables)
		if err != nil {
			return RenderResult{}, fmt.Errorf("render prompt %s: %w", id, err)
		}
		return RenderResult{PromptID: out.PromptID.String(), Rendered: out.Rendered, Version: out.Version}, nil
	}

	p, err := c.sdk.GetPrompt(ctx, api.ID(id), api.GetPromptOptions{Version: selector, Variables: variables})
	if err != nil {
		return RenderResult{}, fmt.Errorf("render prompt %s@%s: %w", id, selector, err)
	}
	got := fromSDK(p)
	return RenderResult{PromptID: got.ID, Rendered: got.Content, Version: got.Version}, nil
}

func fromSDK(p api.SDKPrompt) Prompt {
	version := p.VersionNo
	if version == 0 {
		version = p.Version
	}
	return Prompt{ID: p.ID.String(), Name: p.Name, Content: p.Content, Version: version}
}

func normalizeVersion(version string) (string, error) {
	v := strings.ToLower(strings.TrimSpace(version))
	switch v {
	case "", VersionPublished, VersionLatest:
		return v, nil
	}
	if n, err := strconv.Atoi(v); err != nil || n <= 0 {
		return "", fmt.Errorf("invalid version %q: want a positive number, %q or %q", version, VersionPublished, VersionLatest)
	}
	return v, nil
}
