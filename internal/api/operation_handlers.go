package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/onnwee/calcapi/internal/audit"
	"github.com/onnwee/calcapi/internal/calc"
	"github.com/onnwee/calcapi/internal/middleware"
	"github.com/onnwee/calcapi/internal/tracing"
)

// ErrNilAuditLogger is returned when OperationHandlers is built without an audit logger.
var ErrNilAuditLogger = errors.New("audit logger cannot be nil")

// OperationHandlersConfig configures the arithmetic handlers.
type OperationHandlersConfig struct {
	// Audit receives exactly one outcome per request. Required.
	Audit *audit.Logger
	// Metrics is optional.
	Metrics *Metrics
	// StrictFaultStatus answers unexpected faults with 500 instead of 400.
	StrictFaultStatus bool
}

// OperationHandlers serves the arithmetic endpoints. Every route runs the same
// pipeline: decode, resolve the operation, validate the operands, evaluate,
// record the outcome, respond. Each request that reaches the pipeline is
// recorded exactly once, whichever way it exits.
type OperationHandlers struct {
	audit        *audit.Logger
	metrics      *Metrics
	strictFaults bool
	evaluate     func(op calc.Operation, a, b float64) (float64, error)
}

// NewOperationHandlers creates the arithmetic handlers.
func NewOperationHandlers(cfg OperationHandlersConfig) (*OperationHandlers, error) {
	if cfg.Audit == nil {
		return nil, ErrNilAuditLogger
	}
	return &OperationHandlers{
		audit:        cfg.Audit,
		metrics:      cfg.Metrics,
		strictFaults: cfg.StrictFaultStatus,
		evaluate:     calc.Evaluate,
	}, nil
}

// Add handles POST /add.
func (h *OperationHandlers) Add(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, calc.OpAdd)
}

// Subtract handles POST /subtract.
func (h *OperationHandlers) Subtract(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, calc.OpSubtract)
}

// Multiply handles POST /multiply.
func (h *OperationHandlers) Multiply(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, calc.OpMultiply)
}

// Divide handles POST /divide.
func (h *OperationHandlers) Divide(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, calc.OpDivide)
}

// Operate handles POST /operate, reading the operation name from the body.
func (h *OperationHandlers) Operate(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, 0)
}

// serve runs the pipeline. A zero route means the operation comes from the body.
func (h *OperationHandlers) serve(w http.ResponseWriter, r *http.Request, route calc.Operation) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var (
		operation string
		a, b      *float64
		recorded  bool
	)
	if route.Valid() {
		operation = route.String()
	}

	defer func() {
		rec := recover()
		if rec == nil {
			return
		}
		if rec == http.ErrAbortHandler || recorded {
			panic(rec)
		}
		slog.ErrorContext(r.Context(), "operation panicked",
			"operation", operation,
			"panic", rec,
			"stack", string(debug.Stack()))
		h.fail(w, r, operation, a, b, calc.Fault(faultMessage(rec)))
	}()

	body, err := readBody(w, r)
	if err != nil {
		recorded = true
		h.invalid(w, r, operation, nil, nil, []FieldError{{
			Loc:  []string{"body"},
			Msg:  err.Error(),
			Type: "value_error",
		}})
		return
	}

	req := decodeOperationRequest(body, !route.Valid())
	if operation == "" && req.hasOperation {
		operation = req.operation
	}
	a, b = req.values()

	if len(req.fieldErrors) > 0 {
		recorded = true
		h.invalid(w, r, operation, a, b, req.fieldErrors)
		return
	}

	op := route
	if !op.Valid() {
		if op, err = calc.ParseOperation(req.operation); err != nil {
			recorded = true
			h.fail(w, r, operation, a, b, err)
			return
		}
	}

	result, err := h.run(r.Context(), op, req)
	recorded = true
	if err != nil {
		h.fail(w, r, operation, a, b, err)
		return
	}

	h.audit.Record(r.Context(), calc.Succeeded(operation, req.operand1.Value, req.operand2.Value, result))
	h.metrics.incOperation(op.String(), "success")
	WriteResult(w, r.Context(), result)
}

// run validates the operands and evaluates op inside an operation span.
func (h *OperationHandlers) run(ctx context.Context, op calc.Operation, req *operationRequest) (result float64, err error) {
	_, end := tracing.StartOperationSpan(ctx, op.String())
	defer func() { end(err) }()

	if err = calc.ValidateOperands(req.operand1, req.operand2); err != nil {
		return 0, err
	}
	return h.evaluate(op, req.operand1.Value, req.operand2.Value)
}

// fail records a failed outcome and answers {"detail": message}.
func (h *OperationHandlers) fail(w http.ResponseWriter, r *http.Request, operation string, a, b *float64, err error) {
	kind := calc.KindOf(err)
	ctx := middleware.SetErrorCode(r.Context(), kind.Code())

	h.audit.Record(ctx, calc.Failed(operation, a, b, err))
	h.metrics.incOperation(calc.MetricLabel(operation), kind.Code())

	status := http.StatusBadRequest
	if kind == calc.KindUnexpectedFault && h.strictFaults {
		status = http.StatusInternalServerError
	}
	WriteDetail(w, ctx, status, err.Error())
}

// invalid records a rejected body and answers 422 with the field errors.
func (h *OperationHandlers) invalid(w http.ResponseWriter, r *http.Request, operation string, a, b *float64, fieldErrors []FieldError) {
	err := &calc.Error{Kind: calc.KindValidation, Message: describeFieldErrors(fieldErrors)}
	ctx := middleware.SetErrorCode(r.Context(), calc.KindValidation.Code())

	h.audit.Record(ctx, calc.Failed(operation, a, b, err))
	h.metrics.incOperation(calc.MetricLabel(operation), calc.KindValidation.Code())

	WriteValidationError(w, ctx, fieldErrors)
}

func faultMessage(rec any) string {
	if err, ok := rec.(error); ok {
		return err.Error()
	}
	return fmt.Sprint(rec)
}
