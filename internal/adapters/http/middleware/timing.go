package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"carimport/internal/adapters/http/perf"
)

// DefaultSlowRequest is the default threshold for slow request warnings.
const DefaultSlowRequest = 200 * time.Millisecond

// requestCounter numbers requests for log correlation.
var requestCounter uint64

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

// WriteHeader captures the status code and delegates to the underlying ResponseWriter.
// PRE: code is a valid HTTP status code
// POST: status stored, header written to underlying ResponseWriter
func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (sw *statusWriter) Unwrap() http.ResponseWriter {
	return sw.ResponseWriter
}

var statusWriterPool = sync.Pool{
	New: func() any {
		return &statusWriter{}
	},
}

// routeKey collapses UUID path segments so /api/requests/<id> aggregates as one path.
func routeKey(path string) string {
	if !strings.ContainsRune(path, '-') {
		return path
	}
	parts := strings.Split(path, "/")
	for i, p := range parts {
		if len(p) == 36 {
			if _, err := uuid.Parse(p); err == nil {
				parts[i] = "{id}"
			}
		}
	}
	return strings.Join(parts, "/")
}

// Timing returns middleware that logs request duration and records it to the
// collector (may be nil). Requests under /static/ and /media/ are skipped.
// A zero slow threshold uses DefaultSlowRequest.
func Timing(collector *perf.Collector, slow time.Duration) func(http.Handler) http.Handler {
	if slow <= 0 {
		slow = DefaultSlowRequest
	}
	threshold := float64(slow.Microseconds()) / 1000.0

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := r.URL.Path
			if strings.HasPrefix(path, "/static/") || strings.HasPrefix(path, "/media/") {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			reqID := atomic.AddUint64(&requestCounter, 1)
			w.Header().Set("X-Request-ID", strconv.FormatUint(reqID, 10))

			sw := statusWriterPool.Get().(*statusWriter)
			sw.ResponseWriter = w
			sw.status = http.StatusOK
			defer func() {
				durationMs := float64(time.Since(start).Microseconds()) / 1000.0
				attrs := []any{
					"request_id", reqID,
					"method", r.Method,
					"path", path,
					"status", sw.status,
					"duration_ms", durationMs,
				}
				if durationMs >= threshold {
					slog.Warn("slow_request", attrs...)
				} else {
					slog.Debug("request", attrs...)
				}

				if collector != nil {
					collector.Record(perf.Entry{
						Kind:       perf.KindRequest,
						Path:       r.Method + " " + routeKey(path),
						StatusCode: sw.status,
						DurationMs: durationMs,
						Timestamp:  start,
					})
				}

				sw.ResponseWriter = nil
				statusWriterPool.Put(sw)
			}()

			next.ServeHTTP(sw, r)
		})
	}
}
