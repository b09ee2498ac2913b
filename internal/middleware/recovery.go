package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
)

const errCodeInternal = "internal_error"

// Recover converts a panic escaping the handler chain into a 500 response
// and an error log with the stack. http.ErrAbortHandler is re-raised so
// net/http can abort the connection as intended.
//
// Handlers that must answer faults themselves (the operation pipeline does,
// to audit them) recover before this is reached.
func Recover(logger *slog.Logger, metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				metrics.IncPanicsRecovered()
				logger.ErrorContext(r.Context(), "panic recovered",
					"panic", fmt.Sprint(rec),
					"method", r.Method,
					"path", r.URL.Path,
					"request_id", GetRequestID(r.Context()),
					"stack", string(debug.Stack()),
				)

				ctx := SetErrorCode(r.Context(), errCodeInternal)
				writeErrorEnvelope(w, r.WithContext(ctx), http.StatusInternalServerError, errCodeInternal, "Internal server error")
			}()

			next.ServeHTTP(w, r)
		})
	}
}
