package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/hl7-synth-server/internal/domain"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore creates a new SQLite session store, creating the database
// file and schema if they don't exist
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// WAL lets the API read sessions while the CLI edits them
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{db: db, dbPath: dbPath}, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(s scanner) (*Session, error) {
	sess := &Session{}
	var raw string
	if err := s.Scan(&sess.ID, &sess.Name, &sess.Description, &raw, &sess.CreatedAt, &sess.UpdatedAt); err != nil {
		return nil, err
	}
	values, err := decodeValues([]byte(raw))
	if err != nil {
		return nil, err
	}
	sess.Values = values
	return sess, nil
}

func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS override_sessions (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		description TEXT DEFAULT '',
		locked_values TEXT NOT NULL DEFAULT '{}',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_override_sessions_updated ON override_sessions(updated_at);
	`

	_, err := db.Exec(schema)
	return err
}

// Save creates or replaces a session by name
func (s *SQLiteStore) Save(ctx context.Context, session *Session) error {
	if err := session.Validate(); err != nil {
		return err
	}
	raw, err := encodeValues(session.Values)
	if err != nil {
		return err
	}
	now := time.Now().UTC()

	var existingID string
	var createdAt time.Time
	err = s.db.QueryRowContext(ctx,
		"SELECT id, created_at FROM override_sessions WHERE name = ?", session.Name,
	).Scan(&existingID, &createdAt)

	if err == nil {
		_, err = s.db.ExecContext(ctx, `
			UPDATE override_sessions SET
				description = ?,
				locked_values = ?,
				updated_at = ?
			WHERE id = ?
		`, session.Description, raw, now, existingID)
		if err != nil {
			return fmt.Errorf("failed to update: %w", err)
		}
		session.ID = existingID
		session.CreatedAt = createdAt
		session.UpdatedAt = now
		return nil
	}

	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to check existing: %w", err)
	}

	if session.ID == "" {
		session.ID = uuid.New().String()
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.UpdatedAt = now

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO override_sessions (id, name, description, locked_values, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, session.ID, session.Name, session.Description, raw, session.CreatedAt, session.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert: %w", err)
	}
	return nil
}

// Get retrieves a session by name
func (s *SQLiteStore) Get(ctx context.Context, name string) (*Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, locked_values, created_at, updated_at
		FROM override_sessions
		WHERE name = ?
	`, name)

	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %q: %w", name, domain.ErrSessionNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan: %w", err)
	}
	return sess, nil
}

// List returns sessions ordered by name
func (s *SQLiteStore) List(ctx context.Context, limit, offset int) ([]*Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, locked_values, created_at, updated_at
		FROM override_sessions
		ORDER BY name
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()

	var result []*Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, sess)
	}
	return result, rows.Err()
}

// Count returns the number of stored sessions
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM override_sessions").Scan(&count)
	return count, err
}

// Delete removes a session by name
func (s *SQLiteStore) Delete(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM override_sessions WHERE name = ?", name)
	if err != nil {
		return fmt.Errorf("failed to delete: %w", err)
	}
	return requireAffected(res, name)
}

// SetValue locks one field value
func (s *SQLiteStore) SetValue(ctx context.Context, name, key, value string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	return s.updateValues(ctx, name, func(values map[string]string) {
		values[key] = value
	})
}

// RemoveValue unlocks one field
func (s *SQLiteStore) RemoveValue(ctx context.Context, name, key string) error {
	return s.updateValues(ctx, name, func(values map[string]string) {
		delete(values, key)
	})
}

func (s *SQLiteStore) updateValues(ctx context.Context, name string, mutate func(map[string]string)) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var raw string
	err = tx.QueryRowContext(ctx, "SELECT locked_values FROM override_sessions WHERE name = ?", name).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("session %q: %w", name, domain.ErrSessionNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to read values: %w", err)
	}

	values, err := decodeValues([]byte(raw))
	if err != nil {
		return err
	}
	mutate(values)
	encoded, err := encodeValues(values)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE override_sessions SET locked_values = ?, updated_at = ? WHERE name = ?",
		encoded, time.Now().UTC(), name,
	); err != nil {
		return fmt.Errorf("failed to update values: %w", err)
	}
	return tx.Commit()
}

// ExportJSON writes every session to writer
func (s *SQLiteStore) ExportJSON(ctx context.Context, writer io.Writer) error {
	return exportJSON(ctx, s, writer)
}

// ImportJSON reads sessions from reader
func (s *SQLiteStore) ImportJSON(ctx context.Context, reader io.Reader) (int, int, error) {
	return importJSON(ctx, s, reader)
}

// Close closes the store and releases resources
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func requireAffected(res sql.Result, name string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("session %q: %w", name, domain.ErrSessionNotFound)
	}
	return nil
}
