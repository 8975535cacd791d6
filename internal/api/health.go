package api

import (
	"context"

	"github.com/echostash/echostash-automation/internal/transport"
)

// HealthStatus is the actuator health document.
type HealthStatus struct {
	Status     string         `json:"status"`
	Components map[string]any `json:"components,omitempty"`
}

// Up reports an UP status.
func (h HealthStatus) Up() bool { return h.Status == "UP" }

// HealthClient covers /actuator/health.
type HealthClient struct {
	tc *transport.Client
}

// Check returns backend health.
func (c *HealthClient) Check(ctx context.Context) (HealthStatus, error) {
	var out HealthStatus
	_, err := c.tc.Get(ctx, "/actuator/health", &out)
	return out, err
}
