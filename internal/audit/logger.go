package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/onnwee/calcapi/internal/calc"
	"github.com/onnwee/calcapi/internal/middleware"
)

// DefaultWriteTimeout bounds a single audit store write.
const DefaultWriteTimeout = 3 * time.Second

// LoggerConfig configures a Logger.
type LoggerConfig struct {
	// Backend names the store in logs and metrics labels (e.g. "postgres").
	Backend string
	// WriteTimeout bounds each store write. Defaults to DefaultWriteTimeout.
	WriteTimeout time.Duration
	// Logger is the diagnostic channel for swallowed failures. Defaults to slog.Default().
	Logger *slog.Logger
	// Metrics is optional.
	Metrics *Metrics
}

// Logger records operation outcomes to a Repository.
//
// Record never fails visibly: store errors, timeouts and panics raised by the
// store are logged and counted, then dropped. A slow store degrades logging
// but cannot hang or alter the response.
type Logger struct {
	repo    Repository
	backend string
	timeout time.Duration
	logger  *slog.Logger
	metrics *Metrics
}

// NewLogger creates a Logger writing to repo.
func NewLogger(repo Repository, cfg LoggerConfig) (*Logger, error) {
	if repo == nil {
		return nil, ErrNilRepository
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Backend == "" {
		cfg.Backend = "unknown"
	}
	return &Logger{
		repo:    repo,
		backend: cfg.Backend,
		timeout: cfg.WriteTimeout,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
	}, nil
}

// Record persists one outcome. It is called exactly once per request attempt.
// The write context is detached from ctx cancellation so a disconnecting
// client does not lose its audit record, but it keeps ctx values.
func (l *Logger) Record(ctx context.Context, outcome calc.Outcome) {
	if outcome.ErrorMessage != nil {
		l.logger.WarnContext(ctx, "operation failed",
			"operation", outcome.Operation,
			"error", *outcome.ErrorMessage)
	}
	if !outcome.Valid() {
		l.logger.WarnContext(ctx, "recording inconsistent operation outcome",
			"operation", outcome.Operation,
			"status", string(outcome.Status))
	}

	entry := Entry{
		OperationType: outcome.Operation,
		Operand1:      outcome.Operand1,
		Operand2:      outcome.Operand2,
		Result:        outcome.Result,
		Status:        string(outcome.Status),
		ErrorMessage:  outcome.ErrorMessage,
		RequestID:     middleware.GetRequestID(ctx),
	}
	if entry.OperationType == "" {
		entry.OperationType = OperationValidationError
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.timeout)
	defer cancel()

	start := time.Now()
	rec, err := l.insert(writeCtx, entry)
	elapsed := time.Since(start).Seconds()

	if err != nil {
		l.metrics.observeWrite(l.backend, "error", elapsed, true)
		l.logger.ErrorContext(ctx, "failed to write audit record",
			"backend", l.backend,
			"operation", entry.OperationType,
			"error", err)
		return
	}

	l.metrics.observeWrite(l.backend, "ok", elapsed, false)
	recordID := ""
	if rec != nil {
		recordID = rec.ID
	}
	l.logger.DebugContext(ctx, "audit record written",
		"backend", l.backend,
		"record_id", recordID,
		"operation", entry.OperationType,
		"status", entry.Status)
}

// insert calls the repository, converting a panic into an error.
func (l *Logger) insert(ctx context.Context, entry Entry) (rec *Record, err error) {
	defer func() {
		if r := recover(); r != nil {
			rec = nil
			err = fmt.Errorf("audit repository panicked: %v", r)
		}
	}()
	return l.repo.Insert(ctx, entry)
}
