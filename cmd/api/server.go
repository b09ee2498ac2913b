package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	_ "github.com/lib/pq"
	"github.com/onnwee/calcapi/internal/api"
	"github.com/onnwee/calcapi/internal/audit"
	"github.com/onnwee/calcapi/internal/auth"
	"github.com/onnwee/calcapi/internal/config"
	"github.com/onnwee/calcapi/internal/health"
	"github.com/onnwee/calcapi/internal/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

const (
	serviceName = "calcapi"

	// connectTimeout bounds the startup ping of each backing store.
	connectTimeout = 5 * time.Second

	// usersTable is probed by the readiness check when users live in Postgres.
	usersTable = "users"
)

// app holds everything the HTTP server needs plus the resources to release
// on shutdown.
type app struct {
	handler  http.Handler
	repo     audit.Repository
	registry *prometheus.Registry
	closers  []io.Closer
}

// Close releases the store connections in reverse order of creation.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// newApp opens the configured stores and assembles the HTTP handler.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *app, err error) {
	a := &app{registry: prometheus.NewRegistry()}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	var (
		db       *sql.DB
		rdb      *redis.Client
		checkers = map[string]health.Checker{}
	)

	needsDB := cfg.AuditBackend == config.BackendPostgres ||
		(cfg.AuthEnabled && cfg.UserStore == config.BackendPostgres)
	if needsDB {
		db, err = openPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db)
	}
	if cfg.AuditBackend == config.BackendRedis {
		rdb, err = openRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, rdb)
	}

	switch cfg.AuditBackend {
	case config.BackendPostgres:
		a.repo, err = audit.NewPostgresRepository(db, cfg.AuditTable)
		checkers["audit_store"] = health.NewDBChecker(db, cfg.AuditTable)
	case config.BackendRedis:
		a.repo, err = audit.NewRedisRepository(rdb, cfg.AuditStream, int64(cfg.AuditStreamMaxLen))
		checkers["audit_store"] = health.NewRedisChecker(rdb)
	default:
		a.repo = audit.NewInMemoryRepository()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create audit repository: %w", err)
	}

	auditMetrics := audit.NewMetrics()
	apiMetrics := api.NewMetrics()
	mwMetrics := middleware.NewMetrics()
	for _, m := range []interface{ Register(prometheus.Registerer) error }{auditMetrics, apiMetrics, mwMetrics} {
		if err = m.Register(a.registry); err != nil {
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
	}

	auditLogger, err := audit.NewLogger(a.repo, audit.LoggerConfig{
		Backend:      cfg.AuditBackend,
		WriteTimeout: time.Duration(cfg.AuditWriteTimeoutMS) * time.Millisecond,
		Logger:       logger,
		Metrics:      auditMetrics,
	})
	if err != nil {
		return nil, err
	}

	operations, err := api.NewOperationHandlers(api.OperationHandlersConfig{
		Audit:             auditLogger,
		Metrics:           apiMetrics,
		StrictFaultStatus: cfg.StrictFaultStatus,
	})
	if err != nil {
		return nil, err
	}

	var authn *auth.Authenticator
	if cfg.AuthEnabled {
		authn, err = newAuthenticator(cfg, db)
		if err != nil {
			return nil, err
		}
		if cfg.UserStore == config.BackendPostgres {
			checkers["user_store"] = health.NewDBChecker(db, usersTable)
		}
	} else {
		logger.Warn("authentication disabled, business routes are open")
	}

	mux := http.NewServeMux()
	protect := func(h http.HandlerFunc) http.Handler {
		if authn == nil {
			return h
		}
		return middleware.Authenticate(authn, mwMetrics)(h)
	}

	mux.Handle("/add", protect(operations.Add))
	mux.Handle("/subtract", protect(operations.Subtract))
	mux.Handle("/multiply", protect(operations.Multiply))
	mux.Handle("/divide", protect(operations.Divide))
	mux.Handle("/operate", protect(operations.Operate))
	if authn != nil {
		mux.HandleFunc("/token", api.NewAuthHandlers(authn, apiMetrics).Token)
	}

	healthHandlers := api.NewHealthHandlers(api.HealthHandlersConfig{Checkers: checkers})
	mux.HandleFunc("/health", healthHandlers.Health)
	mux.HandleFunc("/ready", healthHandlers.Ready)
	mux.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		api.Fail(w, r, api.ErrCodeNotFound, "The requested resource was not found")
	})

	// Recover -> RequestID -> Tracing -> Logging -> HTTPMetrics -> CORS -> Profiling -> mux
	var handler http.Handler = mux
	handler = middleware.Profiling(middleware.ProfilingConfig{
		Enabled:     cfg.ProfilingEnabled,
		Environment: cfg.Env,
	})(handler)
	handler = middleware.CORS(middleware.DefaultCORSConfig(cfg.CORSAllowedOrigins))(handler)
	handler = middleware.HTTPMetrics(mwMetrics)(handler)
	handler = middleware.Logging(logger)(handler)
	handler = middleware.Tracing(serviceName)(handler)
	handler = middleware.RequestID(handler)
	handler = middleware.Recover(logger, mwMetrics)(handler)
	a.handler = handler

	return a, nil
}

func openPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

func openRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

func newAuthenticator(cfg *config.Config, db *sql.DB) (*auth.Authenticator, error) {
	current, previous := cfg.GetJWTSecrets()
	tokens, err := auth.NewJWTService(auth.JWTConfig{
		Secret:         current,
		PreviousSecret: previous,
		Expiry:         time.Duration(cfg.AccessTokenExpireMinutes) * time.Minute,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create jwt service: %w", err)
	}

	var users auth.UserStore
	switch cfg.UserStore {
	case config.BackendPostgres:
		users = auth.NewPostgresUserStore(db)
	default:
		parsed, err := auth.ParseUsers(cfg.Users)
		if err != nil {
			return nil, err
		}
		users = auth.NewInMemoryUserStore(parsed...)
	}

	return auth.NewAuthenticator(tokens, auth.NewAPIKeySet(cfg.APIKeys), users, nil), nil
}
