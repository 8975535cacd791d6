package api

import (
	"context"
	"net/url"

	"github.com/echostash/echostash-automation/internal/transport"
)

// Period is an inclusive reporting window (ISO dates).
type Period struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// AnalyticsOverview summarizes account activity.
type AnalyticsOverview struct {
	TotalPrompts  int    `json:"totalPrompts"`
	TotalRenders  int    `json:"totalRenders"`
	TotalProjects int    `json:"totalProjects"`
	Period        Period `json:"period"`
}

// PromptMetrics summarizes one prompt's render traffic.
type PromptMetrics struct {
	PromptID   ID      `json:"promptId"`
	Renders    int     `json:"renders"`
	AvgLatency float64 `json:"avgLatency"`
	ErrorRate  float64 `json:"errorRate"`
}

// VariableUsage counts how often each variable was supplied.
type VariableUsage struct {
	PromptID  ID             `json:"promptId"`
	Variables map[string]int `json:"variables"`
}

// AnalyticsClient covers /api/v1/analytics.
type AnalyticsClient struct {
	tc *transport.Client
}

const analyticsPath = "/api/v1/analytics"

func periodQuery(period Period) url.Values {
	query := url.Values{}
	setString(query, "from", period.From)
	setString(query, "to", period.To)
	return query
}

// Overview returns account totals for a period.
func (c *AnalyticsClient) Overview(ctx context.Context, period Period) (AnalyticsOverview, error) {
	var out AnalyticsOverview
	_, err := c.tc.Get(ctx, analyticsPath+"/overview", &out, transport.WithQuery(periodQuery(period)))
	return out, err
}

// PromptMetrics returns one prompt's metrics.
func (c *AnalyticsClient) PromptMetrics(ctx context.Context, promptID ID, period Period) (PromptMetrics, error) {
	var out PromptMetrics
	_, err := c.tc.Get(ctx, joinPath(analyticsPath, "prompts", promptID.String()), &out, transport.WithQuery(periodQuery(period)))
	return out, err
}

// TopPrompts returns the most rendered prompts.
func (c *AnalyticsClient) TopPrompts(ctx context.Context, period Period, limit int) ([]Prompt, error) {
	query := periodQuery(period)
	setInt(query, "limit", limit)

	var out []Prompt
	_, err := c.tc.Get(ctx, analyticsPath+"/top-prompts", &out, transport.WithQuery(query))
	return out, err
}

// VariableUsage returns variable counts for a prompt.
func (c *AnalyticsClient) VariableUsage(ctx context.Context, promptID ID, period Period) (VariableUsage, error) {
	var out VariableUsage
	_, err := c.tc.Get(ctx, joinPath(analyticsPath, "prompts", promptID.String(), "variables"), &out, transport.WithQuery(periodQuery(period)))
	return out, err
}
