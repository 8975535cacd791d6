package testkit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/echostash/echostash-automation/internal/api"
)

// ErrPollTimeout is wrapped by PollUntil when the predicate never held.
var ErrPollTimeout = errors.New("poll timed out")

// PollOptions bound a PollUntil loop.
type PollOptions struct {
	Timeout  time.Duration
	Interval time.Duration
}

// DefaultPollOptions match the suites' general-purpose wait.
var DefaultPollOptions = PollOptions{Timeout: 30 * time.Second, Interval: 2 * time.Second}

// EvalRunPollOptions are used by WaitForEvalRun.
var EvalRunPollOptions = PollOptions{Timeout: 60 * time.Second, Interval: 3 * time.Second}

func (o PollOptions) withDefaults(def PollOptions) PollOptions {
	if o.Timeout <= 0 {
		o.Timeout = def.Timeout
	}
	if o.Interval <= 0 {
		o.Interval = def.Interval
	}
	return o
}

// PollUntil calls fn until pred accepts its value, fn fails, ctx ends or the
// timeout elapses.
func PollUntil[T any](ctx context.Context, fn func(context.Context) (T, error), pred func(T) bool, opts PollOptions) (T, error) {
	opts = opts.withDefaults(DefaultPollOptions)
	var zero T

	deadline := time.NewTimer(opts.Timeout)
	defer deadline.Stop()

	for {
		value, err := fn(ctx)
		if err != nil {
			return zero, err
		}
		if pred(value) {
			return value, nil
		}

		wait := time.NewTimer(opts.Interval)
		select {
		case <-ctx.Done():
			wait.Stop()
			return zero, ctx.Err()
		case <-deadline.C:
			wait.Stop()
			return zero, fmt.Errorf("%w after %s", ErrPollTimeout, opts.Timeout)
		case <-wait.C:
		}
	}
}

// WaitForEvalRun polls a run until it is completed or failed.
func WaitForEvalRun(ctx context.Context, c *api.Client, promptID, suiteID, runID api.ID, opts ...PollOptions) (api.EvalRun, error) {
	o := EvalRunPollOptions
	if len(opts) > 0 {
		o = opts[0].withDefaults(EvalRunPollOptions)
	}
	return PollUntil(ctx,
		func(ctx context.Context) (api.EvalRun, error) {
			return c.Eval.GetRun(ctx, promptID, suiteID, runID)
		},
		api.EvalRun.Terminal,
		o,
	)
}
