package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCORS(t *testing.T) {
	explicit := CORSConfig{
		AllowedOrigins:   []string{" https://calc.example.com ", "", "http://localhost:3000"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           3600,
	}
	noCredentials := explicit
	noCredentials.AllowCredentials = false

	tests := []struct {
		name            string
		config          CORSConfig
		method          string
		origin          string
		preflight       bool
		wantStatus      int
		wantAllowOrigin string
		wantCredentials string
		wantMaxAge      string
		wantNextCalled  bool
	}{
		{
			name:           "disabled without origins",
			config:         CORSConfig{},
			method:         http.MethodPost,
			origin:         "https://calc.example.com",
			wantStatus:     http.StatusOK,
			wantNextCalled: true,
		},
		{
			name:            "allowed origin is trimmed from config",
			config:          explicit,
			method:          http.MethodPost,
			origin:          "https://calc.example.com",
			wantStatus:      http.StatusOK,
			wantAllowOrigin: "https://calc.example.com",
			wantCredentials: "true",
			wantNextCalled:  true,
		},
		{
			name:           "no origin header passes through",
			config:         explicit,
			method:         http.MethodPost,
			wantStatus:     http.StatusOK,
			wantNextCalled: true,
		},
		{
			name:       "unknown origin rejected",
			config:     explicit,
			method:     http.MethodPost,
			origin:     "https://evil.example.com",
			wantStatus: http.StatusForbidden,
		},
		{
			name:            "preflight answered directly",
			config:          explicit,
			method:          http.MethodOptions,
			origin:          "http://localhost:3000",
			preflight:       true,
			wantStatus:      http.StatusNoContent,
			wantAllowOrigin: "http://localhost:3000",
			wantCredentials: "true",
			wantMaxAge:      "3600",
		},
		{
			name:       "preflight from unknown origin rejected",
			config:     explicit,
			method:     http.MethodOptions,
			origin:     "https://evil.example.com",
			preflight:  true,
			wantStatus: http.StatusForbidden,
		},
		{
			name:            "credentials header omitted when disabled",
			config:          noCredentials,
			method:          http.MethodPost,
			origin:          "https://calc.example.com",
			wantStatus:      http.StatusOK,
			wantAllowOrigin: "https://calc.example.com",
			wantNextCalled:  true,
		},
		{
			name:            "wildcard echoes origin",
			config:          DefaultCORSConfig([]string{WildcardOrigin}),
			method:          http.MethodPost,
			origin:          "https://anything.example.org",
			wantStatus:      http.StatusOK,
			wantAllowOrigin: "https://anything.example.org",
			wantCredentials: "true",
			wantNextCalled:  true,
		},
		{
			name:            "wildcard preflight",
			config:          DefaultCORSConfig([]string{WildcardOrigin}),
			method:          http.MethodOptions,
			origin:          "https://anything.example.org",
			preflight:       true,
			wantStatus:      http.StatusNoContent,
			wantAllowOrigin: "https://anything.example.org",
			wantCredentials: "true",
			wantMaxAge:      "600",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nextCalled := false
			handler := CORS(tt.config)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				nextCalled = true
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(tt.method, "/add", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if tt.preflight {
				req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			if nextCalled != tt.wantNextCalled {
				t.Errorf("next called = %v, want %v", nextCalled, tt.wantNextCalled)
			}
			if got := rr.Header().Get("Access-Control-Allow-Origin"); got != tt.wantAllowOrigin {
				t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, tt.wantAllowOrigin)
			}
			if got := rr.Header().Get("Access-Control-Allow-Credentials"); got != tt.wantCredentials {
				t.Errorf("Access-Control-Allow-Credentials = %q, want %q", got, tt.wantCredentials)
			}
			if got := rr.Header().Get("Access-Control-Max-Age"); got != tt.wantMaxAge {
				t.Errorf("Access-Control-Max-Age = %q, want %q", got, tt.wantMaxAge)
			}
			if tt.wantStatus == http.StatusForbidden && !strings.Contains(rr.Body.String(), `"code":"forbidden"`) {
				t.Errorf("expected forbidden envelope, got %s", rr.Body.String())
			}
		})
	}
}

func TestCORS_AllowedHeadersAndVary(t *testing.T) {
	handler := CORS(DefaultCORSConfig([]string{"https://calc.example.com"}))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/operate", nil)
	req.Header.Set("Origin", "https://calc.example.com")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	headers := rr.Header().Get("Access-Control-Allow-Headers")
	for _, want := range []string{"Authorization", APIKeyHeader, RequestIDHeader} {
		if !strings.Contains(headers, want) {
			t.Errorf("Access-Control-Allow-Headers %q missing %s", headers, want)
		}
	}
	if got := rr.Header().Get("Access-Control-Allow-Methods"); got != "GET, POST, OPTIONS" {
		t.Errorf("Access-Control-Allow-Methods = %q", got)
	}
	if got := rr.Header().Get("Vary"); got != "Origin" {
		t.Errorf("Vary = %q, want Origin", got)
	}
}
