package api

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/onnwee/calcapi/internal/middleware"
)

func TestWriteError_Envelope(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		code    string
		message string
	}{
		{"validation", http.StatusUnprocessableEntity, ErrCodeValidation, "Invalid input"},
		{"auth failed", http.StatusUnauthorized, ErrCodeAuthFailed, "Authentication required"},
		{"not found", http.StatusNotFound, ErrCodeNotFound, "Route not found"},
		{"internal", http.StatusInternalServerError, ErrCodeInternal, ""},
		{"forbidden", http.StatusForbidden, ErrCodeForbidden, "Origin not allowed"},
		{"method", http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed, "Method not allowed"},
		{"special characters", http.StatusBadRequest, ErrCodeBadRequest, `"quotes", <brackets> & ünïcode`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteError(w, context.Background(), tt.status, tt.code, tt.message)

			if w.Code != tt.status {
				t.Errorf("status = %d, want %d", w.Code, tt.status)
			}
			if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
				t.Errorf("Content-Type = %q", ct)
			}

			// Exactly {"error":{"code","message"}} and nothing else.
			var raw map[string]map[string]any
			if err := json.Unmarshal(w.Body.Bytes(), &raw); err != nil {
				t.Fatalf("failed to parse body %s: %v", w.Body.String(), err)
			}
			if len(raw) != 1 || len(raw["error"]) != 2 {
				t.Fatalf("unexpected envelope shape: %s", w.Body.String())
			}
			if raw["error"]["code"] != tt.code || raw["error"]["message"] != tt.message {
				t.Errorf("envelope = %v, want code %q message %q", raw["error"], tt.code, tt.message)
			}
		})
	}
}

func TestStatusCodeMapping(t *testing.T) {
	tests := []struct {
		code       string
		wantStatus int
	}{
		{ErrCodeValidation, http.StatusUnprocessableEntity},
		{ErrCodeAuthFailed, http.StatusUnauthorized},
		{ErrCodeNotFound, http.StatusNotFound},
		{ErrCodeForbidden, http.StatusForbidden},
		{ErrCodeMethodNotAllowed, http.StatusMethodNotAllowed},
		{ErrCodeBadRequest, http.StatusBadRequest},
		{ErrCodeInternal, http.StatusInternalServerError},
		{"unknown_code", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			if got := StatusCodeMapping(tt.code); got != tt.wantStatus {
				t.Errorf("StatusCodeMapping(%s) = %d, want %d", tt.code, got, tt.wantStatus)
			}
		})
	}
}

func TestFail_ReportsErrorCodeToLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	handler := middleware.RequestID(middleware.Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		Fail(w, r, ErrCodeNotFound, "Resource not found")
	})))

	req := httptest.NewRequest(http.MethodGet, "/missing", nil)
	req.Header.Set(middleware.RequestIDHeader, "test-req-123")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}

	var entry struct {
		Level     string `json:"level"`
		Status    int    `json:"status"`
		ErrorCode string `json:"error_code"`
		RequestID string `json:"request_id"`
	}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log entry %s: %v", buf.String(), err)
	}
	if entry.Level != "WARN" || entry.Status != http.StatusNotFound {
		t.Errorf("logged level %s status %d, want WARN 404", entry.Level, entry.Status)
	}
	if entry.ErrorCode != ErrCodeNotFound {
		t.Errorf("error_code = %q, want %q", entry.ErrorCode, ErrCodeNotFound)
	}
	if entry.RequestID != "test-req-123" {
		t.Errorf("request_id = %q, want test-req-123", entry.RequestID)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	w := httptest.NewRecorder()
	methodNotAllowed(w, httptest.NewRequest(http.MethodDelete, "/add", nil), http.MethodPost)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", w.Code)
	}
	if got := w.Header().Get("Allow"); got != http.MethodPost {
		t.Errorf("Allow = %q, want POST", got)
	}
}

func TestWriteDetail(t *testing.T) {
	w := httptest.NewRecorder()

	WriteDetail(w, context.Background(), http.StatusBadRequest, "Division by zero")

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", w.Code)
	}
	if got := strings.TrimSpace(w.Body.String()); got != `{"detail":"Division by zero"}` {
		t.Errorf("unexpected body: %s", got)
	}
}

func TestWriteValidationError(t *testing.T) {
	tests := []struct {
		name   string
		fields []FieldError
		want   string
	}{
		{
			name:   "one field",
			fields: []FieldError{{Loc: []string{"body", "operand1"}, Msg: "Field required", Type: "missing"}},
			want:   `{"detail":[{"loc":["body","operand1"],"msg":"Field required","type":"missing"}]}`,
		},
		{
			name: "nil fields",
			want: `{"detail":[]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteValidationError(w, context.Background(), tt.fields)

			if w.Code != http.StatusUnprocessableEntity {
				t.Errorf("expected status 422, got %d", w.Code)
			}
			if got := strings.TrimSpace(w.Body.String()); got != tt.want {
				t.Errorf("body = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestWriteResult(t *testing.T) {
	tests := []struct {
		value float64
		want  string
	}{
		{15, `{"result":15}`},
		{2.5, `{"result":2.5}`},
		{-1e-7, `{"result":-1e-7}`},
	}

	for _, tt := range tests {
		w := httptest.NewRecorder()
		WriteResult(w, context.Background(), tt.value)

		if w.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", w.Code)
		}
		if got := strings.TrimSpace(w.Body.String()); got != tt.want {
			t.Errorf("WriteResult(%v) body = %s, want %s", tt.value, got, tt.want)
		}
	}
}

func TestWriteResult_UnencodableFallsBack(t *testing.T) {
	w := httptest.NewRecorder()
	WriteResult(w, context.Background(), math.Inf(1))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("Content-Type = %q, want text/plain", ct)
	}
}
