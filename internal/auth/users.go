package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ErrUserNotFound is returned by a UserStore when the username is unknown.
var ErrUserNotFound = errors.New("user not found")

// ErrInvalidUserEntry is returned when a configured user entry cannot be parsed.
var ErrInvalidUserEntry = errors.New("invalid user entry")

// User is an account allowed to exchange a password for an access token.
type User struct {
	Username     string
	PasswordHash string
	Disabled     bool
}

// UserStore looks up accounts by username.
type UserStore interface {
	GetUser(ctx context.Context, username string) (*User, error)
}

// InMemoryUserStore is a UserStore backed by a map, populated from configuration.
type InMemoryUserStore struct {
	mu    sync.RWMutex
	users map[string]User
}

// NewInMemoryUserStore creates a store holding users.
func NewInMemoryUserStore(users ...User) *InMemoryUserStore {
	s := &InMemoryUserStore{users: make(map[string]User, len(users))}
	for _, u := range users {
		s.users[u.Username] = u
	}
	return s
}

// ParseUsers parses "username:bcrypthash" entries. bcrypt hashes contain no
// colon, so the first colon separates the two parts.
func ParseUsers(entries []string) ([]User, error) {
	var users []User
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		name, hash, ok := strings.Cut(e, ":")
		name = strings.TrimSpace(name)
		hash = strings.TrimSpace(hash)
		if !ok || name == "" || hash == "" {
			return nil, fmt.Errorf("%w: expected username:hash", ErrInvalidUserEntry)
		}
		users = append(users, User{Username: name, PasswordHash: hash})
	}
	return users, nil
}

// GetUser returns a copy of the named user.
func (s *InMemoryUserStore) GetUser(ctx context.Context, username string) (*User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[username]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &u, nil
}

// PostgresUserStore reads accounts from the users table.
type PostgresUserStore struct {
	db *sql.DB
}

// NewPostgresUserStore creates a store over db.
func NewPostgresUserStore(db *sql.DB) *PostgresUserStore {
	return &PostgresUserStore{db: db}
}

// GetUser selects the named user.
func (s *PostgresUserStore) GetUser(ctx context.Context, username string) (*User, error) {
	const query = `SELECT username, password_hash, disabled FROM users WHERE username = $1`

	var u User
	err := s.db.QueryRowContext(ctx, query, username).Scan(&u.Username, &u.PasswordHash, &u.Disabled)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return &u, nil
}
