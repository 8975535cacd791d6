package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/echostash/echostash-automation/internal/analytics"
	errwrap "github.com/echostash/echostash-automation/internal/errors"
	"github.com/echostash/echostash-automation/internal/observability"
	"github.com/echostash/echostash-automation/internal/output"
)

var (
	analyticsCount       int
	analyticsInterval    time.Duration
	analyticsConcurrency int
	analyticsPromptID    string
	analyticsBaseURL     string
	analyticsVariables   string
)

// AnalyticsRow is one iteration in trigger-analytics output.
type AnalyticsRow struct {
	Iteration int    `json:"iteration"`
	PromptID  string `json:"prompt_id"`
	Name      string `json:"name,omitempty"`
	Version   int    `json:"version,omitempty"`
	FetchMs   int64  `json:"fetch_ms"`
	RenderMs  int64  `json:"render_ms"`
	Preview   string `json:"preview,omitempty"`
	Error     string `json:"error,omitempty"`
}

var triggerAnalyticsCmd = &cobra.Command{
	Use:   "trigger-analytics",
	Short: "Fetch and render a prompt through the SDK to generate analytics events",
	Long: `Fetch and render a prompt with an API key so the backend records analytics.

Reads API_KEY and PROMPT_ID (required), BASE_URL (default ` + analytics.DefaultBaseURL + `)
and VARIABLES (a JSON object of strings) from the environment or .env file.
Flags override the environment.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Load config so --env-file and .env apply before reading variables.
		if _, err := loadConfig(cmd.Context()); err != nil {
			return err
		}

		opts, err := analytics.OptionsFromEnv()
		if err != nil {
			return errwrap.WrapInvalidInput(cmd.Context(), err, "invalid analytics environment")
		}
		if analyticsPromptID != "" {
			opts.PromptID = analyticsPromptID
		}
		if analyticsBaseURL != "" {
			opts.BaseURL = analyticsBaseURL
		}
		if analyticsVariables != "" {
			vars, err := analytics.ParseVariables(analyticsVariables)
			if err != nil {
				return errwrap.WrapInvalidInput(cmd.Context(), err, "--variables must be a JSON object of strings")
			}
			opts.Variables = vars
		}
		opts.Count = analyticsCount
		opts.Interval = analyticsInterval
		opts.Concurrency = analyticsConcurrency
		opts.Logger = observability.CLILogger

		results, runErr := analytics.Trigger(cmd.Context(), opts)
		if results == nil && runErr != nil {
			return runErr
		}

		rows := make([]AnalyticsRow, 0, len(results))
		for _, r := range results {
			row := AnalyticsRow{
				Iteration: r.Iteration,
				PromptID:  r.PromptID,
				Name:      r.Name,
				Version:   r.Version,
				FetchMs:   r.FetchDuration.Milliseconds(),
				RenderMs:  r.RenderDuration.Milliseconds(),
				Preview:   r.Preview,
			}
			if r.Err != nil {
				row.Error = r.Err.Error()
			}
			rows = append(rows, row)
		}

		failed := 0
		for _, row := range rows {
			if row.Error != "" {
				failed++
			}
		}
		observability.CLILogger.Info("Analytics trigger finished",
			zap.Int("iterations", len(rows)),
			zap.Int("failed", failed))

		if err := writeResult(rows, analyticsTable(rows, failed)); err != nil {
			return errors.Join(runErr, err)
		}
		return runErr
	},
}

func analyticsTable(rows []AnalyticsRow, failed int) output.Table {
	t := output.Table{
		Title:   "Analytics trigger",
		Headers: []string{"#", "Prompt", "Version", "Fetch", "Render", "Result"},
		Footer:  fmt.Sprintf("%d/%d succeeded", len(rows)-failed, len(rows)),
	}
	for _, r := range rows {
		result := r.Preview
		if r.Error != "" {
			result = r.Error
		}
		name := r.PromptID
		if r.Name != "" {
			name = fmt.Sprintf("%s (%s)", r.Name, r.PromptID)
		}
		t.AddRow(r.Iteration, name, r.Version, fmt.Sprintf("%dms", r.FetchMs), fmt.Sprintf("%dms", r.RenderMs), result)
	}
	return t
}

func init() {
	rootCmd.AddCommand(triggerAnalyticsCmd)
	flags := triggerAnalyticsCmd.Flags()
	flags.IntVar(&analyticsCount, "count", 1, "number of fetch+render iterations")
	flags.DurationVar(&analyticsInterval, "interval", 0, "delay between iteration starts (e.g. 500ms)")
	flags.IntVar(&analyticsConcurrency, "concurrency", 1, "iterations in flight at once")
	flags.StringVar(&analyticsPromptID, "prompt-id", "", "prompt to fetch (overrides "+analytics.EnvPromptID+")")
	flags.StringVar(&analyticsBaseURL, "base-url", "", "backend URL (overrides "+analytics.EnvBaseURL+")")
	flags.StringVar(&analyticsVariables, "variables", "", "JSON object of template variables (overrides "+analytics.EnvVariables+")")
}
