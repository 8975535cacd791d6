package transport

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoff(t *testing.T) {
	base, maxDelay := time.Second, 10*time.Second
	assert.Equal(t, time.Second, Backoff(0, base, maxDelay))
	assert.Equal(t, 2*time.Second, Backoff(1, base, maxDelay))
	assert.Equal(t, 4*time.Second, Backoff(2, base, maxDelay))
	assert.Equal(t, 8*time.Second, Backoff(3, base, maxDelay))
	assert.Equal(t, 10*time.Second, Backoff(4, base, maxDelay))
	assert.Equal(t, 10*time.Second, Backoff(60, base, maxDelay))
}

func TestShouldRetry(t *testing.T) {
	policy := DefaultRetryPolicy()

	assert.True(t, policy.ShouldRetry(http.MethodGet, 500, nil))
	assert.True(t, policy.ShouldRetry(http.MethodGet, 429, nil))
	assert.True(t, policy.ShouldRetry(http.MethodDelete, 503, nil))
	assert.False(t, policy.ShouldRetry(http.MethodGet, 404, nil))
	assert.False(t, policy.ShouldRetry(http.MethodPost, 503, nil))
	assert.True(t, policy.ShouldRetry(http.MethodGet, 0, errors.New("connection reset")))
	assert.False(t, policy.ShouldRetry(http.MethodGet, 0, context.Canceled))

	policy.RetryNonIdempotent = true
	assert.True(t, policy.ShouldRetry(http.MethodPatch, 502, nil))

	assert.False(t, NoRetry().ShouldRetry(http.MethodGet, 503, nil))
}

func TestDelayHonoursRetryAfter(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 3, BaseDelay: time.Second, MaxDelay: 10 * time.Second, RespectRetryAfter: true}

	resp := &Response{Header: http.Header{HeaderRetryAfter: []string{"5"}}}
	assert.Equal(t, 5*time.Second, policy.Delay(0, resp))

	resp.Header.Set(HeaderRetryAfter, "120")
	assert.Equal(t, 10*time.Second, policy.Delay(0, resp))

	resp.Header.Set(HeaderRetryAfter, "garbage")
	assert.Equal(t, 2*time.Second, policy.Delay(1, resp))

	policy.RespectRetryAfter = false
	resp.Header.Set(HeaderRetryAfter, "5")
	assert.Equal(t, time.Second, policy.Delay(0, resp))
}

func TestParseRetryAfterHTTPDate(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	d, ok := parseRetryAfter(now.Add(3*time.Second).Format(http.TimeFormat), now)
	assert.True(t, ok)
	assert.Equal(t, 3*time.Second, d)

	_, ok = parseRetryAfter("-1", now)
	assert.False(t, ok)
}

func TestIsIdempotent(t *testing.T) {
	for _, method := range []string{"GET", "head", "PUT", "DELETE", "OPTIONS"} {
		assert.True(t, IsIdempotent(method), method)
	}
	for _, method := range []string{"POST", "PATCH"} {
		assert.False(t, IsIdempotent(method), method)
	}
}
