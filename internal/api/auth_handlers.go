package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net/http"

	"github.com/onnwee/calcapi/internal/auth"
	"github.com/onnwee/calcapi/internal/middleware"
)

// maxTokenRequestBytes caps the /token request body.
const maxTokenRequestBytes = 64 << 10

// TokenIssuer exchanges a username and password for an access token.
type TokenIssuer interface {
	Login(ctx context.Context, username, password string) (string, error)
}

// AuthHandlers serves the password-to-token exchange.
type AuthHandlers struct {
	issuer  TokenIssuer
	metrics *Metrics
}

// NewAuthHandlers creates the token endpoint handlers. metrics may be nil.
func NewAuthHandlers(issuer TokenIssuer, metrics *Metrics) *AuthHandlers {
	return &AuthHandlers{issuer: issuer, metrics: metrics}
}

// TokenResponse is the body returned by POST /token.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type tokenRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Token handles POST /token. Credentials are read from an
// application/x-www-form-urlencoded body (OAuth2 password flow) or, when the
// Content-Type is application/json, from a JSON object.
func (h *AuthHandlers) Token(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxTokenRequestBytes)
	req, err := parseTokenRequest(r)
	if err != nil {
		Fail(w, r, ErrCodeBadRequest, "Malformed token request")
		return
	}

	var missing []FieldError
	if req.Username == "" {
		missing = append(missing, missingField("username"))
	}
	if req.Password == "" {
		missing = append(missing, missingField("password"))
	}
	if len(missing) > 0 {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteValidationError(w, ctx, missing)
		return
	}

	token, err := h.issuer.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			h.metrics.incLogin("rejected")
			w.Header().Set("WWW-Authenticate", "Bearer")
			Fail(w, r, ErrCodeAuthFailed, "Incorrect username or password")
			return
		}
		h.metrics.incLogin("error")
		slog.ErrorContext(r.Context(), "failed to issue access token", "error", err)
		Fail(w, r, ErrCodeInternal, "Failed to issue access token")
		return
	}

	h.metrics.incLogin("issued")
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, r.Context(), http.StatusOK, TokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
	})
}

func parseTokenRequest(r *http.Request) (tokenRequest, error) {
	var req tokenRequest

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return req, err
		}
		return req, nil
	}

	if err := r.ParseForm(); err != nil {
		return req, err
	}
	req.Username = r.PostForm.Get("username")
	req.Password = r.PostForm.Get("password")
	return req, nil
}
