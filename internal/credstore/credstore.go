// Package credstore persists the client's single credential slot in a
// local SQLite database. The schema is a small key/value metadata table;
// the auth token is the only key the rest of the application uses.
package credstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

const tokenKey = "auth_token"

// Store is a SQLite-backed credential slot.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the credential database at dbPath, creating
// parent directories and the metadata table as needed.
func Open(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("creating %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	const schema = `
		CREATE TABLE IF NOT EXISTS metadata (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating metadata table: %w", err)
	}

	return &Store{db: db}, nil
}

// Token returns the persisted credential, or the empty string when no
// credential is stored.
func (s *Store) Token(ctx context.Context) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM metadata WHERE key = ?`, tokenKey).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// SetToken overwrites the credential slot. There are no merge semantics;
// the previous value is fully replaced.
func (s *Store) SetToken(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO metadata (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		tokenKey, token)
	return err
}

// Clear removes the persisted credential. Clearing an empty slot is a
// no-op.
func (s *Store) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM metadata WHERE key = ?`, tokenKey)
	return err
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
