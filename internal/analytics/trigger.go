// Package analytics drives SDK fetch and render calls so the backend records
// analytics events for a prompt.
package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/echostash/echostash-automation/internal/metrics"
	"github.com/echostash/echostash-automation/internal/sdkdogfood"
	"github.com/echostash/echostash-automation/internal/transport"
)

// DefaultBaseURL is the stage deployment analytics are usually triggered on.
const DefaultBaseURL = "https://gra-echostash-be-stage.up.railway.app"

// Environment variables read by OptionsFromEnv.
const (
	EnvAPIKey    = "API_KEY"
	EnvPromptID  = "PROMPT_ID"
	EnvBaseURL   = "BASE_URL"
	EnvVariables = "VARIABLES"
)

const previewLength = 200

// Options describe one trigger session.
type Options struct {
	APIKey    string
	PromptID  string
	BaseURL   string
	Variables map[string]string

	// Count is how many fetch+render iterations to run; zero means one.
	Count int
	// Interval spaces iteration starts; zero starts them back to back.
	Interval time.Duration
	// Concurrency bounds iterations in flight; zero means one.
	Concurrency int

	Transport []transport.Option
	Logger    transport.Logger
}

// Result is the outcome of one iteration.
type Result struct {
	Iteration      int
	PromptID       string
	Name           string
	Version        int
	Preview        string
	FetchDuration  time.Duration
	RenderDuration time.Duration
	Err            error
}

// OptionsFromEnv reads API_KEY, PROMPT_ID, BASE_URL and VARIABLES.
func OptionsFromEnv() (Options, error) {
	opts := Options{
		APIKey:   strings.TrimSpace(os.Getenv(EnvAPIKey)),
		PromptID: strings.TrimSpace(os.Getenv(EnvPromptID)),
		BaseURL:  strings.TrimSpace(os.Getenv(EnvBaseURL)),
	}
	vars, err := ParseVariables(os.Getenv(EnvVariables))
	if err != nil {
		return Options{}, err
	}
	opts.Variables = vars
	return opts, nil
}

// ParseVariables decodes a JSON object of string variables. Empty input
// yields nil.
func ParseVariables(raw string) (map[string]string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var vars map[string]string
	if err := json.Unmarshal([]byte(raw), &vars); err != nil {
		return nil, fmt.Errorf("%s must be a JSON object of strings: %w", EnvVariables, err)
	}
	return vars, nil
}

// Validate checks required fields and fills defaults.
func (o *Options) Validate() error {
	if strings.TrimSpace(o.APIKey) == "" {
		return fmt.Errorf("%s is required", EnvAPIKey)
	}
	if strings.TrimSpace(o.PromptID) == "" {
		return fmt.Errorf("%s is required", EnvPromptID)
	}
	if o.Count < 0 || o.Concurrency < 0 || o.Interval < 0 {
		return errors.New("count, concurrency and interval must not be negative")
	}
	if strings.TrimSpace(o.BaseURL) == "" {
		o.BaseURL = DefaultBaseURL
	}
	if o.Count == 0 {
		o.Count = 1
	}
	if o.Concurrency == 0 {
		o.Concurrency = 1
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return nil
}

// Trigger runs the fetch+render iterations. Results come back in iteration
// order; the error joins every failed iteration.
func Trigger(ctx context.Context, opts Options) ([]Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	client, err := sdkdogfood.New(sdkdogfood.Options{
		APIKey:    opts.APIKey,
		BaseURL:   opts.BaseURL,
		Transport: opts.Transport,
	})
	if err != nil {
		return nil, err
	}

	opts.Logger.Info("Triggering analytics",
		zap.String("base_url", opts.BaseURL),
		zap.String("prompt_id", opts.PromptID),
		zap.Int("count", opts.Count))

	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.Interval > 0 {
		limiter = rate.NewLimiter(rate.Every(opts.Interval), 1)
	}

	results := make([]Result, opts.Count)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)
	for i := range opts.Count {
		if err := limiter.Wait(ctx); err != nil {
			results[i] = Result{Iteration: i + 1, Err: err}
			continue
		}
		g.Go(func() error {
			results[i] = runOnce(gctx, client, opts, i+1)
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	for _, r := range results {
		metrics.RecordOperation("trigger_analytics", r.Err == nil)
		if r.Err != nil {
			errs = append(errs, fmt.Errorf("iteration %d: %w", r.Iteration, r.Err))
		}
	}
	return results, errors.Join(errs...)
}

func runOnce(ctx context.Context, client *sdkdogfood.Client, opts Options, iteration int) Result {
	res := Result{Iteration: iteration, PromptID: opts.PromptID}

	start := time.Now()
	prompt, err := client.GetPrompt(ctx, opts.PromptID, "")
	res.FetchDuration = time.Since(start)
	if err != nil {
		res.Err = err
		return res
	}
	res.Name = prompt.Name
	opts.Logger.Debug("Prompt fetched",
		zap.Int("iteration", iteration),
		zap.String("prompt_id", prompt.ID),
		zap.String("name", prompt.Name))

	start = time.Now()
	rendered, err := client.Render(ctx, opts.PromptID, opts.Variables, sdkdogfood.VersionPublished)
	res.RenderDuration = time.Since(start)
	if err != nil {
		res.Err = err
		return res
	}
	res.Version = rendered.Version
	res.Preview = preview(rendered.Rendered)
	opts.Logger.Debug("Prompt rendered",
		zap.Int("iteration", iteration),
		zap.Int("version", rendered.Version),
		zap.Duration("render", res.RenderDuration))
	return res
}

func preview(s string) string {
	runes := []rune(s)
	if len(runes) <= previewLength {
		return s
	}
	return string(runes[:previewLength])
}
