// Package api provides the HTTP handlers of the calculator service and its
// response helpers.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/onnwee/calcapi/internal/middleware"
)

// Error codes used in the {"error": {...}} envelope.
const (
	// ErrCodeValidation indicates input validation failure.
	ErrCodeValidation = "validation_error"

	// ErrCodeAuthFailed indicates authentication failure.
	ErrCodeAuthFailed = "auth_failed"

	// ErrCodeNotFound indicates the requested resource was not found.
	ErrCodeNotFound = "not_found"

	// ErrCodeInternal indicates an internal server error.
	ErrCodeInternal = "internal_error"

	// ErrCodeForbidden indicates the request is forbidden.
	ErrCodeForbidden = "forbidden"

	// ErrCodeBadRequest indicates a malformed request.
	ErrCodeBadRequest = "bad_request"

	// ErrCodeMethodNotAllowed indicates the route does not accept the method.
	ErrCodeMethodNotAllowed = "method_not_allowed"
)

// ErrorResponse represents the standard error response format.
// Format: {"error": {"code": "...", "message": "..."}}
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains the error code and human-readable message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// DetailResponse is the body of failed arithmetic requests: {"detail": "..."}.
type DetailResponse struct {
	Detail string `json:"detail"`
}

// FieldError describes one rejected field of a request body.
type FieldError struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

// ValidationResponse is the 422 body: {"detail": [{"loc": [...], "msg": "...", "type": "..."}]}.
type ValidationResponse struct {
	Detail []FieldError `json:"detail"`
}

// ResultResponse is the body of a successful arithmetic request.
type ResultResponse struct {
	Result float64 `json:"result"`
}

// WriteError writes a standardized JSON error response.
//
// Format: {"error": {"code": "error_code", "message": "Error description"}}
//
// Call middleware.SetErrorCode on the request context first so the logging
// middleware reports error_code:
//
//	ctx := middleware.SetErrorCode(r.Context(), api.ErrCodeNotFound)
//	api.WriteError(w, ctx, http.StatusNotFound, api.ErrCodeNotFound, "Not found")
func WriteError(w http.ResponseWriter, ctx context.Context, status int, code, message string) {
	writeJSON(w, ctx, status, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// Fail reports code to the logging middleware and writes the error envelope
// with the status StatusCodeMapping assigns to code.
func Fail(w http.ResponseWriter, r *http.Request, code, message string) {
	ctx := middleware.SetErrorCode(r.Context(), code)
	WriteError(w, ctx, StatusCodeMapping(code), code, message)
}

// methodNotAllowed answers 405 advertising the single accepted method.
func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed string) {
	w.Header().Set("Allow", allowed)
	Fail(w, r, ErrCodeMethodNotAllowed, "Method not allowed")
}

// WriteDetail writes {"detail": message} with the given status.
func WriteDetail(w http.ResponseWriter, ctx context.Context, status int, message string) {
	writeJSON(w, ctx, status, DetailResponse{Detail: message})
}

// WriteValidationError writes a 422 response listing the rejected fields.
func WriteValidationError(w http.ResponseWriter, ctx context.Context, fields []FieldError) {
	if fields == nil {
		fields = []FieldError{}
	}
	writeJSON(w, ctx, http.StatusUnprocessableEntity, ValidationResponse{Detail: fields})
}

// WriteResult writes a 200 {"result": value} response.
func WriteResult(w http.ResponseWriter, ctx context.Context, value float64) {
	writeJSON(w, ctx, http.StatusOK, ResultResponse{Result: value})
}

func writeJSON(w http.ResponseWriter, ctx context.Context, status int, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		// Fallback to plain text if JSON marshaling fails
		slog.ErrorContext(ctx, "failed to marshal response", "error", err)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("Internal server error"))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		slog.ErrorContext(ctx, "failed to write response", "error", err)
	}
}

// StatusCodeMapping returns the recommended HTTP status code for an envelope error code.
func StatusCodeMapping(code string) int {
	switch code {
	case ErrCodeValidation:
		return http.StatusUnprocessableEntity
	case ErrCodeAuthFailed:
		return http.StatusUnauthorized
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeBadRequest:
		return http.StatusBadRequest
	case ErrCodeMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case ErrCodeInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
