package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrInvalidCredentials is returned by Login for an unknown user, a disabled
// account or a wrong password. Callers cannot tell these apart.
var ErrInvalidCredentials = errors.New("invalid username or password")

// Authenticator combines the credential checks used by the API.
type Authenticator struct {
	tokens    *JWTService
	keys      *APIKeySet
	users     UserStore
	passwords *PasswordHasher

	dummyOnce sync.Once
	dummyHash string
}

// NewAuthenticator wires the credential sources. keys and users may be nil,
// which disables API keys and the password exchange respectively.
func NewAuthenticator(tokens *JWTService, keys *APIKeySet, users UserStore, passwords *PasswordHasher) *Authenticator {
	if passwords == nil {
		passwords = NewPasswordHasher(DefaultBcryptCost)
	}
	return &Authenticator{
		tokens:    tokens,
		keys:      keys,
		users:     users,
		passwords: passwords,
	}
}

// AuthenticateAPIKey verifies an X-API-Key value and returns the principal.
func (a *Authenticator) AuthenticateAPIKey(key string) (string, error) {
	return a.keys.Verify(key)
}

// AuthenticateBearer verifies a bearer access token and returns its subject.
func (a *Authenticator) AuthenticateBearer(token string) (string, error) {
	if a.tokens == nil {
		return "", ErrInvalidToken
	}
	claims, err := a.tokens.ValidateToken(token)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// Login exchanges a username and password for a signed access token.
func (a *Authenticator) Login(ctx context.Context, username, password string) (string, error) {
	if a.users == nil || a.tokens == nil || username == "" || password == "" {
		return "", ErrInvalidCredentials
	}

	user, err := a.users.GetUser(ctx, username)
	if errors.Is(err, ErrUserNotFound) {
		// Spend a bcrypt comparison anyway so unknown usernames are not
		// distinguishable by latency.
		a.passwords.Verify(password, a.fallbackHash())
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up user: %w", err)
	}

	if !a.passwords.Verify(password, user.PasswordHash) || user.Disabled {
		return "", ErrInvalidCredentials
	}

	token, err := a.tokens.GenerateAccessToken(user.Username)
	if err != nil {
		return "", fmt.Errorf("failed to issue token: %w", err)
	}
	return token, nil
}

func (a *Authenticator) fallbackHash() string {
	a.dummyOnce.Do(func() {
		a.dummyHash, _ = a.passwords.Hash("calcapi-unknown-user")
	})
	return a.dummyHash
}
