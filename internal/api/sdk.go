package api

import (
	"context"
	"net/url"
	"strconv"

	"github.com/echostash/echostash-automation/internal/transport"
)

// MaxBatchRenderItems is the backend's batch render limit.
const MaxBatchRenderItems = 50

// SDKPrompt is a prompt as served to SDK callers.
type SDKPrompt struct {
	ID        ID        `json:"id"`
	Name      string    `json:"name"`
	Content   string    `json:"content"`
	Version   int       `json:"version,omitempty"`
	VersionNo int       `json:"versionNo,omitempty"`
	Variables Variables `json:"variables,omitempty"`
}

// RenderItem is one render request.
type RenderItem struct {
	PromptID  ID        `json:"promptId"`
	Variables Variables `json:"variables,omitempty"`
}

// RenderResponse is a rendered prompt.
type RenderResponse struct {
	PromptID ID     `json:"promptId"`
	Rendered string `json:"rendered"`
	Version  int    `json:"version,omitempty"`
}

// BatchRenderResult is one entry of a batch render.
type BatchRenderResult struct {
	PromptID ID     `json:"promptId"`
	Success  bool   `json:"success"`
	Rendered string `json:"rendered,omitempty"`
	Version  int    `json:"version,omitempty"`
	Error    string `json:"error,omitempty"`
}

// BatchRenderResponse aggregates a batch render.
type BatchRenderResponse struct {
	Results      []BatchRenderResult `json:"results"`
	SuccessCount int                 `json:"successCount"`
	ErrorCount   int                 `json:"errorCount"`
}

// GetPromptOptions selects a version and pre-renders variables.
type GetPromptOptions struct {
	// Version is a version number, "published" or "latest". Empty means published.
	Version   string
	Variables Variables
}

// SDKClient covers /api/sdk, authenticated with an API key.
type SDKClient struct {
	tc *transport.Client
}

const sdkPromptsPath = "/api/sdk/prompts"

// GetPrompt fetches a prompt.
func (c *SDKClient) GetPrompt(ctx context.Context, id ID, opts GetPromptOptions) (SDKPrompt, error) {
	query := url.Values{}
	setString(query, "version", opts.Version)
	for key, value := range opts.Variables {
		query.Set("variables["+key+"]", value)
	}

	var out SDKPrompt
	_, err := c.tc.Get(ctx, joinPath(sdkPromptsPath, id.String()), &out, transport.WithQuery(query))
	return out, err
}

// GetPromptVersion fetches a specific version.
func (c *SDKClient) GetPromptVersion(ctx context.Context, id ID, versionNo int) (SDKPrompt, error) {
	var out SDKPrompt
	_, err := c.tc.Get(ctx, joinPath(sdkPromptsPath, id.String(), "versions", strconv.Itoa(versionNo)), &out)
	return out, err
}

// Render renders the published version with variables.
func (c *SDKClient) Render(ctx context.Context, promptID ID, variables Variables) (RenderResponse, error) {
	var out RenderResponse
	_, err := c.tc.Post(ctx, sdkPromptsPath+"/render", RenderItem{PromptID: promptID, Variables: variables}, &out)
	return out, err
}

// BatchRender renders up to MaxBatchRenderItems prompts in one call.
func (c *SDKClient) BatchRender(ctx context.Context, items []RenderItem) (BatchRenderResponse, error) {
	if items == nil {
		items = []RenderItem{}
	}
	var out BatchRenderResponse
	_, err := c.tc.Post(ctx, sdkPromptsPath+"/batch-render", map[string][]RenderItem{"items": items}, &out)
	return out, err
}
