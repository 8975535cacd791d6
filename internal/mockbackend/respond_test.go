package mockbackend

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/echostash/echostash-automation/internal/errors"
)

func decodeErrorBody(t *testing.T, rec *httptest.ResponseRecorder) apperrors.ErrorBody {
	t.Helper()
	var body apperrors.ErrorBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func TestErrorHelpersUseMatchingCodes(t *testing.T) {
	cases := []struct {
		name    string
		write   func(http.ResponseWriter, *http.Request)
		status  int
		code    string
		message string
	}{
		{"bad request", func(w http.ResponseWriter, r *http.Request) { badRequest(w, r, "name is %s", "required") },
			http.StatusBadRequest, apperrors.CodeValidationFailed, "name is required"},
		{"unauthorized", unauthorized,
			http.StatusUnauthorized, apperrors.CodeUnauthorized, "Full authentication is required to access this resource"},
		{"bad credentials", func(w http.ResponseWriter, r *http.Request) { rejectCredentials(w, r, "Bad credentials") },
			http.StatusUnauthorized, apperrors.CodeUnauthorized, "Bad credentials"},
		{"forbidden", forbidden,
			http.StatusForbidden, apperrors.CodeForbidden, "Access denied"},
		{"conflict", func(w http.ResponseWriter, r *http.Request) { conflict(w, r, "tag %q already exists", "qa") },
			http.StatusConflict, apperrors.CodeConflict, `tag "qa" already exists`},
		{"not found", func(w http.ResponseWriter, r *http.Request) { notFound(w, r, "Prompt 100%") },
			http.StatusNotFound, apperrors.CodeNotFound, "Prompt 100% not found"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tc.write(rec, httptest.NewRequest(http.MethodGet, "/api/admin/tags", nil))

			require.Equal(t, tc.status, rec.Code)
			body := decodeErrorBody(t, rec)
			assert.Equal(t, tc.status, body.Status)
			assert.Equal(t, tc.code, body.Error)
			assert.Equal(t, tc.message, body.Message)
			assert.Equal(t, "/api/admin/tags", body.Path)
		})
	}
}

func TestRespondPanicHidesPanicValue(t *testing.T) {
	rec := httptest.NewRecorder()
	respondPanic(rec, httptest.NewRequest(http.MethodPost, "/api/prompts/create", nil), "secret detail")

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "secret detail")
	body := decodeErrorBody(t, rec)
	assert.Equal(t, apperrors.CodeInternal, body.Error)
	assert.Equal(t, "Internal server error", body.Message)
}
