// Package auth verifies the credentials accepted by the API: bearer access
// tokens, API keys and username/password pairs exchanged at /token.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenTypeAccess is the only token type issued; it is carried in the typ claim.
const TokenTypeAccess = "access"

// DefaultAccessTokenExpiry matches access_token_expire_minutes' default.
const DefaultAccessTokenExpiry = 15 * time.Minute

// Default leeway for token validation.
const DefaultLeeway = 30 * time.Second

// ErrInvalidToken is returned when token validation fails.
var ErrInvalidToken = errors.New("invalid token")

// ErrExpiredToken is returned when the token has expired.
var ErrExpiredToken = errors.New("token has expired")

// ErrEmptySubject is returned when a token is requested for an empty username.
var ErrEmptySubject = errors.New("subject cannot be empty")

// ErrEmptySecret is returned when the signing secret is empty.
var ErrEmptySecret = errors.New("jwt secret cannot be empty")

// Claims are the JWT claims carried by access tokens.
type Claims struct {
	jwt.RegisteredClaims
	Type string `json:"typ"`
}

// JWTConfig configures a JWTService.
type JWTConfig struct {
	// Secret signs new tokens and validates them.
	Secret string
	// PreviousSecret, when set, is accepted for validation only so tokens
	// signed before a rotation stay valid until they expire.
	PreviousSecret string
	// Expiry of issued access tokens. Zero means DefaultAccessTokenExpiry.
	Expiry time.Duration
	// Leeway tolerated on exp/iat checks. Negative means none; zero means DefaultLeeway.
	Leeway time.Duration
}

// JWTService issues and validates HS256 access tokens.
// Supports dual-key rotation: tokens are signed with the current secret,
// but can be validated with either the current or the previous secret.
type JWTService struct {
	currentSecret  []byte
	previousSecret []byte
	expiry         time.Duration
	leeway         time.Duration
	now            func() time.Time
}

// NewJWTService creates a JWTService from cfg.
func NewJWTService(cfg JWTConfig) (*JWTService, error) {
	if cfg.Secret == "" {
		return nil, ErrEmptySecret
	}
	svc := &JWTService{
		currentSecret: []byte(cfg.Secret),
		expiry:        cfg.Expiry,
		leeway:        cfg.Leeway,
		now:           time.Now,
	}
	if cfg.PreviousSecret != "" {
		svc.previousSecret = []byte(cfg.PreviousSecret)
	}
	if svc.expiry <= 0 {
		svc.expiry = DefaultAccessTokenExpiry
	}
	switch {
	case svc.leeway == 0:
		svc.leeway = DefaultLeeway
	case svc.leeway < 0:
		svc.leeway = 0
	}
	return svc, nil
}

// Expiry returns the lifetime of issued access tokens.
func (s *JWTService) Expiry() time.Duration {
	return s.expiry
}

// GenerateAccessToken creates a signed access token for subject.
func (s *JWTService) GenerateAccessToken(subject string) (string, error) {
	if subject == "" {
		return "", ErrEmptySubject
	}

	now := s.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiry)),
		},
		Type: TokenTypeAccess,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.currentSecret)
}

// ValidateToken parses and validates an access token, returning its claims.
// The current secret is tried first, then the previous one if configured.
func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	claims, err := s.parse(tokenString, s.currentSecret)
	if err != nil && s.previousSecret != nil && !errors.Is(err, jwt.ErrTokenExpired) {
		claims, err = s.parse(tokenString, s.previousSecret)
	}

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	if claims.Type != TokenTypeAccess || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (s *JWTService) parse(tokenString string, secret []byte) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(s.leeway),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
