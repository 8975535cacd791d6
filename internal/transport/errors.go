package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// BackendError is the JSON error body the Echostash backend returns.
type BackendError struct {
	Status    int    `json:"status,omitempty"`
	Error     string `json:"error,omitempty"`
	Message   string `json:"message,omitempty"`
	Path      string `json:"path,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

// ErrInvalidPath is returned before sending when a relative request path has
// an empty or dot segment, such as a resource path built from a blank ID.
var ErrInvalidPath = errors.New("invalid request path")

// Error is returned when a request ends without a 2xx response. Redirects are
// followed by the underlying http.Client; a 3xx that is not followed (304, or
// a redirect without Location) is reported as an Error.
type Error struct {
	Method     string
	URL        string
	StatusCode int
	RequestID  string
	Attempts   int
	Retryable  bool
	Body       []byte
	Backend    *BackendError
	Cause      error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Cause)
	}
	msg := fmt.Sprintf("%s %s: status %d", e.Method, e.URL, e.StatusCode)
	if detail := e.Message(); detail != "" {
		msg += ": " + detail
	}
	if e.RequestID != "" {
		msg += " (request " + e.RequestID + ")"
	}
	return msg
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// HTTPStatus returns the final status code, 0 for transport failures.
func (e *Error) HTTPStatus() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

// Message returns the backend message when the body carried one.
func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	if e.Backend != nil && e.Backend.Message != "" {
		return e.Backend.Message
	}
	if len(e.Body) > 0 && len(e.Body) <= 256 && e.Backend == nil {
		return strings.TrimSpace(string(e.Body))
	}
	return ""
}

// AsError unwraps err to *Error.
func AsError(err error) (*Error, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	if apiErr, ok := AsError(err); ok {
		return apiErr.StatusCode
	}
	return 0
}

// IsStatus reports whether err carries one of the given statuses.
func IsStatus(err error, statuses ...int) bool {
	code := StatusCode(err)
	if code == 0 {
		return false
	}
	for _, status := range statuses {
		if code == status {
			return true
		}
	}
	return false
}

// IsClientError reports a 4xx status.
func IsClientError(err error) bool {
	code := StatusCode(err)
	return code >= 400 && code < 500
}

func parseErrorBody(body []byte) *BackendError {
	trimmed := strings.TrimSpace(string(body))
	if !strings.HasPrefix(trimmed, "{") {
		return nil
	}
	var parsed BackendError
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil
	}
	if parsed.Message == "" && parsed.Error == "" && parsed.Status == 0 {
		return nil
	}
	return &parsed
}
