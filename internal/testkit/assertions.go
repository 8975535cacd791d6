package testkit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/echostash/echostash-automation/internal/api"
	"github.com/echostash/echostash-automation/internal/transport"
)

// ExpectStatus asserts the outcome of a call: no error for 2xx, otherwise a
// transport error carrying status.
func ExpectStatus(t testing.TB, err error, status int) {
	t.Helper()
	if status < 300 {
		require.NoError(t, err)
		return
	}
	require.Error(t, err, "expected HTTP %d", status)
	require.Equal(t, status, transport.StatusCode(err), "unexpected status: %v", err)
}

// ExpectOneOf asserts a failure with any of statuses.
func ExpectOneOf(t testing.TB, err error, statuses ...int) {
	t.Helper()
	require.Error(t, err, "expected one of %v", statuses)
	require.Contains(t, statuses, transport.StatusCode(err), "unexpected status: %v", err)
}

// ExpectError asserts a failure with status whose backend message contains
// msgContains when it is non-empty.
func ExpectError(t testing.TB, err error, status int, msgContains string) {
	t.Helper()
	ExpectStatus(t, err, status)
	if msgContains == "" {
		return
	}
	apiErr, ok := transport.AsError(err)
	require.True(t, ok, "not a transport error: %v", err)
	assert.Contains(t, apiErr.Message(), msgContains)
}

// ExpectValidPrompt checks the fields every prompt response carries.
func ExpectValidPrompt(t testing.TB, p api.Prompt) {
	t.Helper()
	assert.False(t, p.ID.IsZero(), "prompt id")
	assert.NotEmpty(t, p.Name, "prompt name")
}

// ExpectValidProject checks the fields every project response carries.
func ExpectValidProject(t testing.TB, p api.Project) {
	t.Helper()
	assert.False(t, p.ID.IsZero(), "project id")
	assert.NotEmpty(t, p.Name, "project name")
}

// ExpectPaginated checks the page envelope is internally consistent.
func ExpectPaginated[T any](t testing.TB, page api.Page[T]) {
	t.Helper()
	require.NotNil(t, page.Content, "page content must be an array")
	assert.GreaterOrEqual(t, page.TotalElements, len(page.Content))
	assert.GreaterOrEqual(t, page.TotalPages, 0)
	assert.GreaterOrEqual(t, page.Number, 0)
	assert.GreaterOrEqual(t, page.Size, 0)
	if page.Number == 0 {
		assert.True(t, page.First, "page 0 must be first")
	}
}
