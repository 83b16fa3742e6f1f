package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/okian/vesseltrail/pkg/metrics"
)

// MetricsMiddleware records request count, latency and error class for endpoint.
func MetricsMiddleware(next http.HandlerFunc, endpoint string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next(rec, r)
		observe(endpoint, r.Method, rec.status, time.Since(start))
	}
}

func observe(endpoint, method string, status int, took time.Duration) {
	code := strconv.Itoa(status)
	metrics.RecordHTTPRequest(endpoint, method, code)
	metrics.RecordHTTPRequestDuration(endpoint, method, code, float64(took.Microseconds())/1000.0)
	if status < http.StatusBadRequest {
		return
	}
	kind, severity := classify(status)
	metrics.RecordErrorByEndpoint(endpoint, method, kind)
	metrics.RecordErrorByType(kind, severity)
}

// classify maps a failing status onto the codes writeServiceError emits.
func classify(status int) (kind, severity string) {
	switch status {
	case http.StatusTooManyRequests:
		return "backpressure", "medium"
	case http.StatusBadGateway:
		return "upstream_error", "high"
	case http.StatusServiceUnavailable:
		return "unavailable", "high"
	case http.StatusNotFound:
		return "not_found", "low"
	}
	if status >= http.StatusInternalServerError {
		return "internal_error", "high"
	}
	return "bad_request", "low"
}

// statusRecorder remembers the first status written through it.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (s *statusRecorder) WriteHeader(code int) {
	if !s.wroteHeader {
		s.status = code
		s.wroteHeader = true
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	s.wroteHeader = true
	return s.ResponseWriter.Write(b)
}
