// Package middleware provides HTTP middleware components for the API server.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"
)

// subjectKey is the context key for the authenticated principal.
type subjectKey struct{}

// errorCodeKey is the context key for error code.
type errorCodeKey struct{}

// requestStateKey is the context key for the per-request state installed by Logging.
type requestStateKey struct{}

// requestState lets inner handlers report the error code and principal back
// to the logging middleware, which only holds the outer request.
type requestState struct {
	mu        sync.Mutex
	errorCode string
	subject   string
}

func stateFrom(ctx context.Context) *requestState {
	st, _ := ctx.Value(requestStateKey{}).(*requestState)
	return st
}

// SetSubject stores the authenticated principal in the context.
// This is called by Authenticate after validating credentials.
func SetSubject(ctx context.Context, subject string) context.Context {
	if st := stateFrom(ctx); st != nil {
		st.mu.Lock()
		st.subject = subject
		st.mu.Unlock()
	}
	return context.WithValue(ctx, subjectKey{}, subject)
}

// GetSubject retrieves the authenticated principal from context. Returns empty string if not present.
func GetSubject(ctx context.Context) string {
	if s, ok := ctx.Value(subjectKey{}).(string); ok {
		return s
	}
	return ""
}

// SetErrorCode stores an error code in the context.
// This should be called by handlers when returning error responses.
// When the request passed through Logging, the code is also reported to it.
func SetErrorCode(ctx context.Context, code string) context.Context {
	if st := stateFrom(ctx); st != nil {
		st.mu.Lock()
		st.errorCode = code
		st.mu.Unlock()
	}
	return context.WithValue(ctx, errorCodeKey{}, code)
}

// GetErrorCode retrieves the error code from context. Returns empty string if not present.
func GetErrorCode(ctx context.Context) string {
	if code, ok := ctx.Value(errorCodeKey{}).(string); ok {
		return code
	}
	if st := stateFrom(ctx); st != nil {
		st.mu.Lock()
		defer st.mu.Unlock()
		return st.errorCode
	}
	return ""
}

// responseWriter wraps http.ResponseWriter to capture status code and response size.
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	size        int
	wroteHeader bool
}

// WriteHeader captures the status code before writing it.
// Only the first call sets the status code; subsequent calls are ignored
// to match http.ResponseWriter behavior where only the first status is sent.
func (rw *responseWriter) WriteHeader(code int) {
	if rw.wroteHeader {
		return
	}
	rw.statusCode = code
	rw.wroteHeader = true
	rw.ResponseWriter.WriteHeader(code)
}

// Write captures the response size and writes the data.
func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.WriteHeader(http.StatusOK)
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.size += n
	return n, err
}

// newResponseWriter creates a new responseWriter with default 200 status.
func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

// NewLogger creates an slog.Logger based on the environment.
// In production (env == "production"), it returns a JSON handler.
// Otherwise, it returns a text handler for development.
func NewLogger(env string) *slog.Logger {
	var handler slog.Handler
	if env == "production" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})
	}
	return slog.New(handler)
}

// Logging is a middleware that logs HTTP requests with structured fields.
// Besides method, path, status, latency and size it records the request ID,
// the trace and span IDs when Tracing runs outside it, the authenticated
// subject and, for 4xx/5xx responses, the error_code reported by handlers.
//
// Place Recover outside of Logging so panics are still logged.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := newResponseWriter(w)
			st := &requestState{}
			ctx := context.WithValue(r.Context(), requestStateKey{}, st)

			next.ServeHTTP(rw, r.WithContext(ctx))

			st.mu.Lock()
			subject, errorCode := st.subject, st.errorCode
			st.mu.Unlock()

			latency := time.Since(start).Milliseconds()

			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rw.statusCode),
				slog.Int64("latency_ms", latency),
				slog.Int("size", rw.size),
			}

			if requestID := GetRequestID(r.Context()); requestID != "" {
				attrs = append(attrs, slog.String("request_id", requestID))
			}

			if traceID, spanID := TraceIDs(r.Context()); traceID != "" {
				attrs = append(attrs, slog.String("trace_id", traceID), slog.String("span_id", spanID))
			}

			if subject != "" {
				attrs = append(attrs, slog.String("subject", subject))
			}

			// Add error code for error responses (4xx and 5xx)
			if rw.statusCode >= 400 {
				if errorCode != "" {
					attrs = append(attrs, slog.String("error_code", errorCode))
				}
			}

			if rw.statusCode >= 500 {
				logger.LogAttrs(r.Context(), slog.LevelError, "request completed", attrs...)
			} else if rw.statusCode >= 400 {
				logger.LogAttrs(r.Context(), slog.LevelWarn, "request completed", attrs...)
			} else {
				logger.LogAttrs(r.Context(), slog.LevelInfo, "request completed", attrs...)
			}
		})
	}
}
