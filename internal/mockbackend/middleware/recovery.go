package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/fulmenhq/gofulmen/errors"
	"go.uber.org/zap"

	"github.com/echostash/echostash-automation/internal/metrics"
	"github.com/echostash/echostash-automation/internal/observability"
)

// panicBody mirrors the backend error shape; this package cannot import
// internal/errors because that package depends on GetRequestID.
type panicBody struct {
	Status    int    `json:"status"`
	Error     string `json:"error"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
	Path      string `json:"path"`
	RequestID string `json:"requestId,omitempty"`
}

// Recovery turns handler panics into a 500. respond writes the response; when
// it is nil a body in the backend error shape is written directly.
func Recovery(respond func(http.ResponseWriter, *http.Request, any)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				recovered := recover()
				if recovered == nil {
					return
				}
				if recovered == http.ErrAbortHandler {
					panic(recovered)
				}

				requestID := GetRequestID(r.Context())
				envelope := errors.NewErrorEnvelope("INTERNAL_ERROR", fmt.Sprintf("panic: %v", recovered)).
					WithCorrelationID(requestID)
				envelope, _ = envelope.WithSeverity(errors.SeverityCritical)

				metrics.RecordPanic()
				if observability.ServerLogger != nil {
					observability.ServerLogger.Error(envelope.Message,
						zap.String("request_id", requestID),
						zap.String("severity", string(envelope.Severity)),
						zap.String("stack_trace", string(debug.Stack())),
					)
				}

				if respond != nil {
					respond(w, r, recovered)
					return
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_ = json.NewEncoder(w).Encode(panicBody{
					Status:    http.StatusInternalServerError,
					Error:     envelope.Code,
					Message:   "Internal server error",
					Timestamp: time.Now().UTC().Format(time.RFC3339),
					Path:      r.URL.Path,
					RequestID: requestID,
				})
			}()

			next.ServeHTTP(w, r)
		})
	}
}
