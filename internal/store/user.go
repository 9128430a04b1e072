package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"
)

// User is a registered account. Role is either "user" or "admin" and is
// assigned in the database, never inferred from a username.
type User struct {
	ID        int64
	Username  string
	Role      string
	LastSeen  time.Time
	CreatedAt time.Time
}

var usernameRe = regexp.MustCompile(`^[A-Za-z0-9_]{3,20}$`)

// ValidUsername reports whether name is 3-20 alphanumeric/underscore
// characters.
func ValidUsername(name string) bool { return usernameRe.MatchString(name) }

// Register creates a new user with the default role. The password is
// stored as a bcrypt hash.
func (s *Store) Register(ctx context.Context, username, password string) error {
	if !ValidUsername(username) {
		return fmt.Errorf("username must be 3-20 letters, digits or underscores")
	}
	if password == "" {
		return fmt.Errorf("password is required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `INSERT INTO users (username, password_hash, role, created_at) VALUES ($1, $2, 'user', $3)`
	_, err = s.db.ExecContext(ctx, query, username, string(hash), time.Now())
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrUserExists
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// Authenticate verifies username/password and returns the stored user.
// bcrypt performs the constant-time hash comparison.
func (s *Store) Authenticate(ctx context.Context, username, password string) (*User, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var (
		u        User
		hash     string
		lastSeen sql.NullTime
	)
	query := `SELECT id, username, password_hash, role, last_seen, created_at FROM users WHERE username = $1`
	err := s.db.QueryRowContext(ctx, query, username).
		Scan(&u.ID, &u.Username, &hash, &u.Role, &lastSeen, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	if lastSeen.Valid {
		u.LastSeen = lastSeen.Time
	}
	return &u, nil
}

// FindUser looks up a user by name.
func (s *Store) FindUser(ctx context.Context, username string) (*User, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var (
		u        User
		lastSeen sql.NullTime
	)
	query := `SELECT id, username, role, last_seen, created_at FROM users WHERE username = $1`
	err := s.db.QueryRowContext(ctx, query, username).
		Scan(&u.ID, &u.Username, &u.Role, &lastSeen, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	if lastSeen.Valid {
		u.LastSeen = lastSeen.Time
	}
	return &u, nil
}

// UpdateLastSeen stamps the user's last_seen column with the current time.
func (s *Store) UpdateLastSeen(ctx context.Context, username string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `UPDATE users SET last_seen = $1 WHERE username = $2`, time.Now(), username)
	if err != nil {
		return fmt.Errorf("update last_seen: %w", err)
	}
	return nil
}

func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, queryTimeout)
}
