// Package store is the Postgres persistence layer: user credentials,
// the durable message log, and the ranking board.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq" // postgres driver
)

var (
	ErrUserExists         = errors.New("username already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotFound           = errors.New("not found")
)

// queryTimeout bounds every store call so a stalled database surfaces
// as a retryable error instead of a hang.
const queryTimeout = 5 * time.Second

// Store wraps the database handle. All methods take a context; when the
// caller passes one without a deadline, queryTimeout applies.
type Store struct {
	db *sql.DB
}

// Open connects to Postgres, verifies the connection and applies the
// schema migrations.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{db: db}, nil
}

// New wraps an existing handle without running migrations. Used by tests.
func New(db *sql.DB) *Store { return &Store{db: db} }

// Close releases the underlying connection pool.
func (s *Store) Close() error { return s.db.Close() }
