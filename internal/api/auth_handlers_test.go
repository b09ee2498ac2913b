package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/onnwee/calcapi/internal/auth"
	"golang.org/x/crypto/bcrypt"
)

type stubIssuer struct {
	token string
	err   error
}

func (s stubIssuer) Login(ctx context.Context, username, password string) (string, error) {
	return s.token, s.err
}

func newTestAuthenticator(t *testing.T) *auth.Authenticator {
	t.Helper()
	hasher := auth.NewPasswordHasher(bcrypt.MinCost)
	hash, err := hasher.Hash("s3cret")
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	tokens, err := auth.NewJWTService(auth.JWTConfig{Secret: "test-secret-with-enough-entropy"})
	if err != nil {
		t.Fatalf("failed to create jwt service: %v", err)
	}
	users := auth.NewInMemoryUserStore(
		auth.User{Username: "alice", PasswordHash: hash},
		auth.User{Username: "mallory", PasswordHash: hash, Disabled: true},
	)
	return auth.NewAuthenticator(tokens, nil, users, hasher)
}

func postForm(handler http.HandlerFunc, values url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/token", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	handler(w, req)
	return w
}

func TestToken_FormLogin(t *testing.T) {
	authn := newTestAuthenticator(t)
	h := NewAuthHandlers(authn, nil)

	w := postForm(h.Token, url.Values{"username": {"alice"}, "password": {"s3cret"}})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", w.Code, w.Body.String())
	}
	if cc := w.Header().Get("Cache-Control"); cc != "no-store" {
		t.Errorf("Cache-Control = %q, want no-store", cc)
	}

	var resp TokenResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if resp.TokenType != "bearer" {
		t.Errorf("token_type = %q, want bearer", resp.TokenType)
	}

	subject, err := authn.AuthenticateBearer(resp.AccessToken)
	if err != nil {
		t.Fatalf("issued token does not validate: %v", err)
	}
	if subject != "alice" {
		t.Errorf("subject = %q, want alice", subject)
	}
}

func TestToken_JSONLogin(t *testing.T) {
	h := NewAuthHandlers(newTestAuthenticator(t), nil)

	req := httptest.NewRequest(http.MethodPost, "/token", strings.NewReader(`{"username":"alice","password":"s3cret"}`))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	w := httptest.NewRecorder()
	h.Token(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", w.Code, w.Body.String())
	}
}

func TestToken_Rejected(t *testing.T) {
	tests := []struct {
		name     string
		username string
		password string
	}{
		{"wrong password", "alice", "nope"},
		{"unknown user", "bob", "s3cret"},
		{"disabled user", "mallory", "s3cret"},
	}

	h := NewAuthHandlers(newTestAuthenticator(t), nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postForm(h.Token, url.Values{"username": {tt.username}, "password": {tt.password}})

			if w.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", w.Code)
			}
			if got := w.Header().Get("WWW-Authenticate"); got != "Bearer" {
				t.Errorf("WWW-Authenticate = %q, want Bearer", got)
			}
			var resp ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("failed to decode body: %v", err)
			}
			if resp.Error.Code != ErrCodeAuthFailed {
				t.Errorf("code = %q, want %q", resp.Error.Code, ErrCodeAuthFailed)
			}
		})
	}
}

func TestToken_MissingFields(t *testing.T) {
	h := NewAuthHandlers(stubIssuer{token: "unused"}, nil)

	w := postForm(h.Token, url.Values{"username": {"alice"}})

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", w.Code)
	}
	var resp ValidationResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if len(resp.Detail) != 1 || strings.Join(resp.Detail[0].Loc, ".") != "body.password" {
		t.Errorf("unexpected detail: %+v", resp.Detail)
	}
}

func TestToken_MalformedJSON(t *testing.T) {
	h := NewAuthHandlers(stubIssuer{token: "unused"}, nil)

	req := httptest.NewRequest(http.MethodPost, "/token", strings.NewReader(`{"username":`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.Token(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestToken_StoreError(t *testing.T) {
	h := NewAuthHandlers(stubIssuer{err: errors.New("db down")}, nil)

	w := postForm(h.Token, url.Values{"username": {"alice"}, "password": {"s3cret"}})

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
	if strings.Contains(w.Body.String(), "db down") {
		t.Error("internal error details leaked to the client")
	}
}

func TestToken_MethodNotAllowed(t *testing.T) {
	h := NewAuthHandlers(stubIssuer{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/token", nil)
	w := httptest.NewRecorder()
	h.Token(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", w.Code)
	}
}
