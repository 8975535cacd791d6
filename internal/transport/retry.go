package transport

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Retry defaults.
const (
	DefaultMaxRetries = 3
	DefaultBaseDelay  = time.Second
	DefaultMaxDelay   = 10 * time.Second
)

// RetryPolicy decides whether and when a failed attempt is repeated.
//
// Only 429 and 5xx responses, plus transport errors, are retryable. Methods
// that are not idempotent (POST, PATCH) are never replayed unless
// RetryNonIdempotent is set.
type RetryPolicy struct {
	MaxRetries         int
	BaseDelay          time.Duration
	MaxDelay           time.Duration
	RetryNonIdempotent bool
	RespectRetryAfter  bool

	// Disabled forces a single attempt regardless of MaxRetries.
	Disabled bool
}

// DefaultRetryPolicy returns the backend-friendly defaults.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:        DefaultMaxRetries,
		BaseDelay:         DefaultBaseDelay,
		MaxDelay:          DefaultMaxDelay,
		RespectRetryAfter: true,
	}
}

// NoRetry returns a policy that never retries.
func NoRetry() RetryPolicy {
	return RetryPolicy{Disabled: true}
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.Disabled || p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultBaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = DefaultMaxDelay
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = p.BaseDelay
	}
	return p
}

// ShouldRetry reports whether an attempt that ended with status (0 when no
// response arrived) or err may be repeated.
func (p RetryPolicy) ShouldRetry(method string, status int, err error) bool {
	if p.Disabled || p.MaxRetries <= 0 {
		return false
	}
	if !IsIdempotent(method) && !p.RetryNonIdempotent {
		return false
	}
	if err != nil {
		// Caller cancellation is final; per-attempt timeouts are not.
		return !errors.Is(err, context.Canceled)
	}
	return IsRetryableStatus(status)
}

// Delay returns the wait before the retry that follows attempt (0-based).
func (p RetryPolicy) Delay(attempt int, resp *Response) time.Duration {
	delay := Backoff(attempt, p.BaseDelay, p.MaxDelay)
	if p.RespectRetryAfter && resp != nil {
		if after, ok := parseRetryAfter(resp.Header.Get(HeaderRetryAfter), time.Now()); ok && after > delay {
			delay = after
		}
		if delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}
	return delay
}

// Backoff is min(base * 2^attempt, maxDelay).
func Backoff(attempt int, base, maxDelay time.Duration) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	delay := base
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= maxDelay || delay <= 0 {
			return maxDelay
		}
	}
	if delay > maxDelay {
		return maxDelay
	}
	return delay
}

// IsRetryableStatus reports 429 and every 5xx.
func IsRetryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}

// IsIdempotent reports whether method may be safely replayed.
func IsIdempotent(method string) bool {
	switch strings.ToUpper(method) {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodPut, http.MethodDelete, http.MethodTrace:
		return true
	default:
		return false
	}
}

func parseRetryAfter(value string, now time.Time) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if when, err := http.ParseTime(value); err == nil {
		if d := when.Sub(now); d > 0 {
			return d, true
		}
		return 0, true
	}
	return 0, false
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
