package middleware

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/onnwee/calcapi/internal/auth"
)

// APIKeyHeader carries a static API key.
const APIKeyHeader = "X-API-Key"

// Error codes written by Authenticate, matching the API error envelope.
const (
	errCodeAuthFailed = "auth_failed"
	errCodeForbidden  = "forbidden"
)

// CredentialVerifier checks the two credential kinds accepted on business routes.
// *auth.Authenticator satisfies it.
type CredentialVerifier interface {
	AuthenticateAPIKey(key string) (string, error)
	AuthenticateBearer(token string) (string, error)
}

// Authenticate rejects requests without valid credentials before they reach
// next. An X-API-Key header takes precedence over an Authorization bearer token.
//
// Missing credentials (including a non-bearer Authorization scheme) produce
// 401 with a WWW-Authenticate challenge; credentials that are present but do
// not verify produce 403. On success the principal is stored with SetSubject.
func Authenticate(verifier CredentialVerifier, metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			var (
				subject string
				err     error
				reason  string
			)
			if key := r.Header.Get(APIKeyHeader); key != "" {
				subject, err = verifier.AuthenticateAPIKey(key)
				reason = "invalid_api_key"
			} else if token, ok := bearerToken(r); ok {
				subject, err = verifier.AuthenticateBearer(token)
				reason = "invalid_token"
				if errors.Is(err, auth.ErrExpiredToken) {
					reason = "expired_token"
				}
			} else {
				metrics.IncAuthFailures("missing")
				ctx = SetErrorCode(ctx, errCodeAuthFailed)
				w.Header().Set("WWW-Authenticate", "Bearer")
				writeErrorEnvelope(w, r.WithContext(ctx), http.StatusUnauthorized, errCodeAuthFailed, "Not authenticated")
				return
			}

			if err != nil {
				metrics.IncAuthFailures(reason)
				ctx = SetErrorCode(ctx, errCodeForbidden)
				slog.DebugContext(ctx, "credential rejected", "reason", reason)
				writeErrorEnvelope(w, r.WithContext(ctx), http.StatusForbidden, errCodeForbidden, "Could not validate credentials")
				return
			}

			ctx = SetSubject(ctx, subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken extracts the token from "Authorization: Bearer <token>".
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// writeErrorEnvelope writes {"error":{"code","message"}}. The api package owns
// the same envelope but imports this package, so it is repeated here.
func writeErrorEnvelope(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	body := map[string]map[string]string{
		"error": {"code": code, "message": message},
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.ErrorContext(r.Context(), "failed to write error response", "error", err)
	}
}
