package api

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/echostash/echostash-automation/internal/transport"
)

// PLPDiscovery is the /.well-known/plp document.
type PLPDiscovery struct {
	Name      string            `json:"name"`
	Version   string            `json:"version"`
	Endpoints map[string]string `json:"endpoints"`
}

// PLPPrompt is a prompt as exposed over PLP.
type PLPPrompt struct {
	ID       ID             `json:"id"`
	Name     string         `json:"name"`
	Content  string         `json:"content"`
	Version  string         `json:"version"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// PLPList is a PLP listing page.
type PLPList struct {
	Content       []PLPPrompt `json:"content"`
	Page          int         `json:"page"`
	TotalElements int         `json:"totalElements"`
	TotalPages    int         `json:"totalPages"`
}

// PLPListParams filters PLP listings.
type PLPListParams struct {
	Query  string
	Tags   []string
	Limit  int
	Offset int
}

// PLPClient covers the read-only PLP discovery endpoints.
type PLPClient struct {
	tc *transport.Client
}

// Discovery returns the PLP discovery document.
func (c *PLPClient) Discovery(ctx context.Context) (PLPDiscovery, error) {
	var out PLPDiscovery
	_, err := c.tc.Get(ctx, "/.well-known/plp", &out)
	return out, err
}

// ListPrompts lists prompts over PLP.
func (c *PLPClient) ListPrompts(ctx context.Context, params PLPListParams) (PLPList, error) {
	query := url.Values{}
	setString(query, "query", params.Query)
	if len(params.Tags) > 0 {
		query.Set("tags", strings.Join(params.Tags, ","))
	}
	setInt(query, "limit", params.Limit)
	if params.Offset > 0 {
		query.Set("offset", strconv.Itoa(params.Offset))
	}

	var out PLPList
	_, err := c.tc.Get(ctx, "/v1/prompts", &out, transport.WithQuery(query))
	return out, err
}

// GetPrompt returns one PLP prompt.
func (c *PLPClient) GetPrompt(ctx context.Context, id ID) (PLPPrompt, error) {
	var out PLPPrompt
	_, err := c.tc.Get(ctx, joinPath("/v1/prompts", id.String()), &out)
	return out, err
}
