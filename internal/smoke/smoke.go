// Package smoke runs the end-to-end happy path against a backend: health,
// guest sign-in, project and prompt creation, publishing, an SDK render with
// a fresh API key, and cleanup of everything created.
package smoke

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/echostash/echostash-automation/internal/api"
	"github.com/echostash/echostash-automation/internal/fixtures"
	"github.com/echostash/echostash-automation/internal/metrics"
	"github.com/echostash/echostash-automation/internal/store"
	"github.com/echostash/echostash-automation/internal/testkit"
	"github.com/echostash/echostash-automation/internal/transport"
)

// Step states.
const (
	StatusPassed  = "passed"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// Step names, in execution order.
const (
	StepHealth  = "health"
	StepGuest   = "guest-login"
	StepProject = "create-project"
	StepPrompt  = "create-prompt"
	StepPublish = "publish-version"
	StepAPIKey  = "create-api-key"
	StepRender  = "sdk-render"
	StepCleanup = "cleanup"
)

const (
	templateText = "Hello {{name}}, welcome to {{place}}."
	expectedText = "Hello Smoke, welcome to Echostash."
)

// Step is the outcome of one stage.
type Step struct {
	Name       string `json:"name"`
	Status     string `json:"status"`
	DurationMs int64  `json:"duration_ms"`
	Detail     string `json:"detail,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Report is the outcome of a smoke run.
type Report struct {
	Env     string `json:"env"`
	BaseURL string `json:"base_url"`
	RunID   string `json:"run_id,omitempty"`
	Passed  bool   `json:"passed"`
	Steps   []Step `json:"steps"`
	Deleted int    `json:"deleted"`
	Failed  int    `json:"cleanup_failed"`
}

// Options tune a run.
type Options struct {
	// Ledger and RunID record created resources so a later sweep can remove
	// anything cleanup missed.
	Ledger testkit.Ledger
	RunID  string

	// SkipHealth skips the actuator probe, for backends that hide it.
	SkipHealth bool

	Logger transport.Logger
}

// ErrFailed is returned when any step failed.
var ErrFailed = errors.New("smoke run failed")

type runner struct {
	opts   Options
	report Report
	failed bool
}

// Run executes the smoke flow. The report is always returned; the error is
// ErrFailed wrapping the first failure when any step did not pass.
func Run(ctx context.Context, env *testkit.Env, opts Options) (Report, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if env == nil {
		return Report{}, errors.New("env is required")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	r := &runner{
		opts:   opts,
		report: Report{Env: env.Name, BaseURL: env.BaseURL, RunID: opts.RunID},
	}

	var (
		firstErr error
		client   *api.Client
		tracker  *testkit.Tracker
		project  api.Project
		prompt   api.Prompt
		apiKey   string
	)
	fail := func(err error) {
		if firstErr == nil {
			firstErr = err
		}
	}

	if opts.SkipHealth {
		r.skip(StepHealth)
	} else {
		r.step(StepHealth, func() (string, error) {
			c, err := env.Client()
			if err != nil {
				return "", err
			}
			health, err := c.Health.Check(ctx)
			if err != nil {
				return "", err
			}
			if !health.Up() {
				return "", fmt.Errorf("status %s", health.Status)
			}
			return health.Status, nil
		}, fail)
	}

	r.step(StepGuest, func() (string, error) {
		c, err := env.GuestClient(ctx)
		if err != nil {
			return "", err
		}
		client = c
		trackerOpts := []testkit.TrackerOption{testkit.WithCleanupLogger(opts.Logger)}
		if opts.Ledger != nil {
			trackerOpts = append(trackerOpts, testkit.WithLedger(opts.Ledger, opts.RunID, env.Name))
		}
		tracker = testkit.NewTracker(c, trackerOpts...)
		return "guest session", nil
	}, fail)

	r.step(StepProject, func() (string, error) {
		p, err := tracker.CreateTestProject(ctx, "smoke")
		if err != nil {
			return "", err
		}
		project = p
		return fmt.Sprintf("project %s", p.ID), nil
	}, fail)

	r.step(StepPrompt, func() (string, error) {
		p, err := tracker.CreateTestPrompt(ctx, project.ID, fixtures.UniqueName("Smoke Prompt"))
		if err != nil {
			return "", err
		}
		prompt = p
		return fmt.Sprintf("prompt %s", p.ID), nil
	}, fail)

	r.step(StepPublish, func() (string, error) {
		published, err := client.Prompts.PublishNewVersion(ctx, prompt.ID, api.PublishNewVersionRequest{
			Content:       templateText,
			ChangeMessage: "smoke",
		})
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("version %d", published.VersionNo), nil
	}, fail)

	r.step(StepAPIKey, func() (string, error) {
		key, err := client.Keys.Create(ctx, fixtures.APIKeyData())
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(key.Key) == "" {
			return "", errors.New("create response did not include the raw key")
		}
		tracker.Add(ctx, store.KindAPIKey, key.ID, "")
		apiKey = key.Key
		return fmt.Sprintf("key %s", key.ID), nil
	}, fail)

	r.step(StepRender, func() (string, error) {
		sdk, err := env.APIKeyClient(apiKey)
		if err != nil {
			return "", err
		}
		out, err := sdk.SDK.Render(ctx, prompt.ID, api.Variables{"name": "Smoke", "place": "Echostash"})
		if err != nil {
			return "", err
		}
		if out.Rendered != expectedText {
			return "", fmt.Errorf("rendered %q, want %q", out.Rendered, expectedText)
		}
		return out.Rendered, nil
	}, fail)

	if tracker == nil {
		r.skip(StepCleanup)
	} else {
		start := time.Now()
		cleanup := tracker.CleanupAll(ctx)
		r.report.Deleted = cleanup.Deleted
		r.report.Failed = cleanup.Failed
		step := Step{
			Name:       StepCleanup,
			Status:     StatusPassed,
			DurationMs: time.Since(start).Milliseconds(),
			Detail:     fmt.Sprintf("%d deleted, %d failed", cleanup.Deleted, cleanup.Failed),
		}
		if cleanup.Failed > 0 {
			step.Status = StatusFailed
			r.failed = true
			fail(fmt.Errorf("%d resources were not cleaned up", cleanup.Failed))
		}
		r.report.Steps = append(r.report.Steps, step)
	}

	r.report.Passed = !r.failed
	metrics.RecordOperation("smoke", r.report.Passed)
	if firstErr != nil {
		return r.report, fmt.Errorf("%w: %w", ErrFailed, firstErr)
	}
	return r.report, nil
}

// step runs fn unless an earlier step failed.
func (r *runner) step(name string, fn func() (string, error), fail func(error)) {
	if r.failed {
		r.skip(name)
		return
	}

	start := time.Now()
	detail, err := fn()
	s := Step{Name: name, Status: StatusPassed, DurationMs: time.Since(start).Milliseconds(), Detail: detail}
	if err != nil {
		s.Status = StatusFailed
		s.Error = err.Error()
		r.failed = true
		fail(fmt.Errorf("%s: %w", name, err))
		r.opts.Logger.Warn("Smoke step failed", zap.String("step", name), zap.Error(err))
	} else {
		r.opts.Logger.Debug("Smoke step passed", zap.String("step", name), zap.Int64("duration_ms", s.DurationMs))
	}
	r.report.Steps = append(r.report.Steps, s)
}

func (r *runner) skip(name string) {
	r.report.Steps = append(r.report.Steps, Step{Name: name, Status: StatusSkipped})
}
