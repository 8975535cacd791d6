package cmd

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	errwrap "github.com/echostash/echostash-automation/internal/errors"
	"github.com/echostash/echostash-automation/internal/observability"
	"github.com/echostash/echostash-automation/internal/output"
)

// HealthReport is the health command result.
type HealthReport struct {
	Env        string            `json:"env"`
	BaseURL    string            `json:"base_url"`
	Status     string            `json:"status"`
	LatencyMs  int64             `json:"latency_ms"`
	Components map[string]string `json:"components,omitempty"`
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check backend health",
	Long:  "Query /actuator/health on the selected environment. Exits non-zero when the backend is down or unreachable.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		_, env, err := loadEnv(ctx)
		if err != nil {
			return err
		}
		client, err := env.Client()
		if err != nil {
			return errwrap.WrapConfigInvalid(ctx, err, "failed to build client")
		}

		observability.CLILogger.Debug("Checking backend health", zap.String("base_url", env.BaseURL))
		health, err := client.Health.Check(ctx)
		if err != nil {
			return errwrap.WrapAPI(ctx, err, "health check failed")
		}

		report := HealthReport{
			Env:        env.Name,
			BaseURL:    env.BaseURL,
			Status:     health.Status,
			LatencyMs:  client.Transport.LastDuration().Milliseconds(),
			Components: componentStatuses(health.Components),
		}
		if err := writeResult(report, healthTable(report)); err != nil {
			return err
		}
		if !health.Up() {
			return errwrap.NewStatusError(http.StatusServiceUnavailable, fmt.Sprintf("backend reported status %s", health.Status))
		}
		return nil
	},
}

func componentStatuses(components map[string]any) map[string]string {
	if len(components) == 0 {
		return nil
	}
	out := make(map[string]string, len(components))
	for name, raw := range components {
		status := "UNKNOWN"
		if m, ok := raw.(map[string]any); ok {
			if s, ok := m["status"].(string); ok {
				status = s
			}
		}
		out[name] = status
	}
	return out
}

func healthTable(r HealthReport) output.Table {
	t := output.Table{
		Title:   fmt.Sprintf("%s health", r.Env),
		Headers: []string{"Component", "Status"},
		Footer:  fmt.Sprintf("%s in %dms", r.Status, r.LatencyMs),
	}
	t.AddRow("backend", r.Status)
	names := make([]string, 0, len(r.Components))
	for name := range r.Components {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		t.AddRow(name, r.Components[name])
	}
	return t
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
