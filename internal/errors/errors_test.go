package errors

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	gferrors "github.com/fulmenhq/gofulmen/errors"
	"github.com/stretchr/testify/require"
)

type statusErr struct{ status int }

func (e statusErr) Error() string   { return fmt.Sprintf("status %d", e.status) }
func (e statusErr) HTTPStatus() int { return e.status }

func TestCodeStatusRoundTrip(t *testing.T) {
	for _, status := range []int{400, 401, 403, 404, 405, 409, 429, 502, 503, 504} {
		code := CodeFromHTTPStatus(status)
		require.Equal(t, status, HTTPStatusFromCode(code), code)
	}
	require.Equal(t, CodeInternal, CodeFromHTTPStatus(500))
	require.Equal(t, CodeInvalidInput, CodeFromHTTPStatus(418))
}

func TestNewStatusErrorKeepsExactStatus(t *testing.T) {
	envelope := NewStatusError(http.StatusTeapot, "short and stout")
	require.Equal(t, http.StatusTeapot, HTTPStatusFromEnvelope(envelope))
}

func TestWrapAPI(t *testing.T) {
	ctx := context.Background()

	t.Run("StatusError", func(t *testing.T) {
		wrapped := fmt.Errorf("get prompt: %w", statusErr{status: 404})
		envelope := WrapAPI(ctx, wrapped, "prompt lookup failed")
		require.Equal(t, CodeNotFound, envelope.Code)
		require.Equal(t, gferrors.SeverityMedium, envelope.Severity)
		require.EqualValues(t, 404, envelope.Context["http_status"])
		require.NotEmpty(t, envelope.CorrelationID)
	})

	t.Run("ServerError", func(t *testing.T) {
		envelope := WrapAPI(ctx, statusErr{status: 503}, "backend down")
		require.Equal(t, CodeServiceUnavailable, envelope.Code)
		require.Equal(t, gferrors.SeverityHigh, envelope.Severity)
	})

	t.Run("TransportError", func(t *testing.T) {
		envelope := WrapAPI(ctx, fmt.Errorf("dial tcp: refused"), "backend unreachable")
		require.Equal(t, CodeExternalService, envelope.Code)
		require.Equal(t, "dial tcp: refused", envelope.Context["wrapped_error"])
	})
}

func TestEnsureEnvelope(t *testing.T) {
	original := NewNotFoundError("missing")
	require.Same(t, original, EnsureEnvelope(fmt.Errorf("wrapped: %w", original)))

	generic := EnsureEnvelope(fmt.Errorf("boom"))
	require.Equal(t, CodeInternal, generic.Code)
	require.Equal(t, "boom", generic.Context["wrapped_error"])

	require.Equal(t, gferrors.SeverityCritical, EnsureEnvelope(nil).Severity)
}

func TestRespondWithErrorWritesBackendShape(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/projects/42", nil)
	rec := httptest.NewRecorder()

	RespondWithError(rec, req, NewNotFoundError("Project not found"))

	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body ErrorBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Equal(t, 404, body.Status)
	require.Equal(t, CodeNotFound, body.Error)
	require.Equal(t, "Project not found", body.Message)
	require.Equal(t, "/api/projects/42", body.Path)
	require.NotEmpty(t, body.Timestamp)
	require.NotEmpty(t, body.RequestID)
}
