package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// knownRoutes lists every path the API mounts. Anything else is reported as
// "other" so that scanners cannot explode label cardinality.
var knownRoutes = map[string]bool{
	"/add":      true,
	"/subtract": true,
	"/multiply": true,
	"/divide":   true,
	"/operate":  true,
	"/token":    true,
	"/health":   true,
	"/ready":    true,
	"/metrics":  true,
}

// normalizePath maps a request path to a bounded route label.
func normalizePath(path string) string {
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}
	if knownRoutes[path] {
		return path
	}
	return "other"
}

// metricsResponseWriter records the status and body size written by the handler.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode  int
	size        int64
	wroteHeader bool
}

func (mrw *metricsResponseWriter) WriteHeader(code int) {
	if mrw.wroteHeader {
		return
	}
	mrw.statusCode = code
	mrw.wroteHeader = true
	mrw.ResponseWriter.WriteHeader(code)
}

func (mrw *metricsResponseWriter) Write(b []byte) (int, error) {
	n, err := mrw.ResponseWriter.Write(b)
	mrw.size += int64(n)
	return n, err
}

func newMetricsResponseWriter(w http.ResponseWriter) *metricsResponseWriter {
	return &metricsResponseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

// unmeteredPaths are probe and scrape routes kept out of the request metrics.
var unmeteredPaths = map[string]bool{
	"/health":  true,
	"/ready":   true,
	"/metrics": true,
}

// HTTPMetrics records duration, request and response sizes, and a request
// count per method, route label and status.
func HTTPMetrics(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if unmeteredPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			mrw := newMetricsResponseWriter(w)
			next.ServeHTTP(mrw, r)

			// -1 when the length is unknown, e.g. chunked bodies.
			requestSize := max(r.ContentLength, 0)

			metrics.ObserveHTTPRequest(
				r.Method,
				normalizePath(r.URL.Path),
				strconv.Itoa(mrw.statusCode),
				time.Since(start).Seconds(),
				requestSize,
				mrw.size,
			)
		})
	}
}
