package middleware

import (
	"log/slog"
	"net/http"
	"net/http/pprof"
	"strings"
)

// ProfilingPrefix is the path prefix under which pprof handlers are mounted.
const ProfilingPrefix = "/debug/pprof"

// ProfilingConfig configures the profiling middleware.
type ProfilingConfig struct {
	// Enabled exposes the pprof endpoints. Development only.
	Enabled bool
	// Environment is checked again here; "production" and "prod" never profile.
	Environment string
}

// Profiling mounts net/http/pprof under /debug/pprof/ in front of next.
// It is a pass-through when disabled or when Environment is production,
// so a misconfigured deployment cannot leak heap contents.
func Profiling(config ProfilingConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !config.Enabled {
			return next
		}
		if config.Environment == "production" || config.Environment == "prod" {
			slog.Error("refusing to enable profiling in production", "environment", config.Environment)
			return next
		}

		slog.Warn("profiling endpoints enabled", "environment", config.Environment, "prefix", ProfilingPrefix+"/")

		pprofMux := http.NewServeMux()
		pprofMux.HandleFunc(ProfilingPrefix+"/", pprof.Index)
		pprofMux.HandleFunc(ProfilingPrefix+"/cmdline", pprof.Cmdline)
		pprofMux.HandleFunc(ProfilingPrefix+"/profile", pprof.Profile)
		pprofMux.HandleFunc(ProfilingPrefix+"/symbol", pprof.Symbol)
		pprofMux.HandleFunc(ProfilingPrefix+"/trace", pprof.Trace)

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == ProfilingPrefix || strings.HasPrefix(r.URL.Path, ProfilingPrefix+"/") {
				pprofMux.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
