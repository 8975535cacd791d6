package metrics

import (
	"strconv"
	"time"

	"github.com/echostash/echostash-automation/internal/observability"
)

// Client-side metric names following Prometheus conventions
const (
	APIRequestsTotal      = "api_requests_total"
	APIRequestDurationMs  = "api_request_duration_ms"
	APIRetriesTotal       = "api_retries_total"
	APITransportErrors    = "api_transport_errors_total"
	CleanupTotal          = "cleanup_total"
	SuiteOperationsTotal  = "suite_operations_total"
	TrackedResourcesGauge = "tracked_resources"
)

// RecordAPICall records one completed attempt against the backend.
// endpoint should be a low-cardinality route label, not the raw path.
func RecordAPICall(method, endpoint string, status int, duration time.Duration) {
	if observability.TelemetrySystem == nil {
		return
	}

	labels := map[string]string{
		"method":   method,
		"endpoint": endpoint,
		"status":   strconv.Itoa(status),
	}
	_ = observability.TelemetrySystem.Counter(APIRequestsTotal, 1, labels)
	_ = observability.TelemetrySystem.Histogram(APIRequestDurationMs, duration, labels)
}

// RecordRetry records a retry decision made by the transport.
func RecordRetry(method, endpoint string, status int) {
	if observability.TelemetrySystem == nil {
		return
	}
	_ = observability.TelemetrySystem.Counter(
		APIRetriesTotal,
		1,
		map[string]string{
			"method":   method,
			"endpoint": endpoint,
			"status":   strconv.Itoa(status),
		},
	)
}

// RecordTransportError records a request that never produced an HTTP status.
func RecordTransportError(method, endpoint string) {
	if observability.TelemetrySystem == nil {
		return
	}
	_ = observability.TelemetrySystem.Counter(
		APITransportErrors,
		1,
		map[string]string{
			"method":   method,
			"endpoint": endpoint,
		},
	)
}

// RecordCleanup records the outcome of deleting one tracked resource.
func RecordCleanup(kind string, success bool) {
	if observability.TelemetrySystem == nil {
		return
	}
	status := "success"
	if !success {
		status = "failure"
	}
	_ = observability.TelemetrySystem.Counter(
		CleanupTotal,
		1,
		map[string]string{
			"kind":   kind,
			"status": status,
		},
	)
}

// RecordOperation records a named CLI workflow step such as a smoke stage.
func RecordOperation(operation string, success bool) {
	if observability.TelemetrySystem == nil {
		return
	}
	status := "success"
	if !success {
		status = "failure"
	}
	_ = observability.TelemetrySystem.Counter(
		SuiteOperationsTotal,
		1,
		map[string]string{
			"operation": operation,
			"status":    status,
		},
	)
}

// SetTrackedResources sets the number of resources awaiting cleanup.
func SetTrackedResources(count int) {
	if observability.TelemetrySystem == nil {
		return
	}
	_ = observability.TelemetrySystem.Gauge(TrackedResourcesGauge, float64(count), nil)
}
