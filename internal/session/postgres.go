package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/hl7-synth-server/internal/domain"
)

// PostgresStore implements the Store interface using PostgreSQL. The
// override_sessions table is created by the database migrations.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a store on an open connection
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreFromURL opens a connection pool and creates a store on it
func NewPostgresStoreFromURL(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	store, err := NewPostgresStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

const selectSession = `
	SELECT id, name, description, locked_values, created_at, updated_at
	FROM override_sessions`

func scanPostgresSession(s scanner) (*Session, error) {
	sess := &Session{}
	var raw []byte
	if err := s.Scan(&sess.ID, &sess.Name, &sess.Description, &raw, &sess.CreatedAt, &sess.UpdatedAt); err != nil {
		return nil, err
	}
	values, err := decodeValues(raw)
	if err != nil {
		return nil, err
	}
	sess.Values = values
	return sess, nil
}

// Save creates or replaces a session by name
func (s *PostgresStore) Save(ctx context.Context, session *Session) error {
	if err := session.Validate(); err != nil {
		return err
	}
	raw, err := encodeValues(session.Values)
	if err != nil {
		return err
	}
	if session.ID == "" {
		session.ID = uuid.New().String()
	}
	now := time.Now().UTC()

	query := `
		INSERT INTO override_sessions (id, name, description, locked_values, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (name) DO UPDATE SET
			description = EXCLUDED.description,
			locked_values = EXCLUDED.locked_values,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at, updated_at
	`
	err = s.db.QueryRowContext(ctx, query,
		session.ID, session.Name, session.Description, raw, now,
	).Scan(&session.ID, &session.CreatedAt, &session.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert session: %w", err)
	}
	return nil
}

// Get retrieves a session by name
func (s *PostgresStore) Get(ctx context.Context, name string) (*Session, error) {
	row := s.db.QueryRowContext(ctx, selectSession+" WHERE name = $1", name)
	sess, err := scanPostgresSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %q: %w", name, domain.ErrSessionNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan: %w", err)
	}
	return sess, nil
}

// List returns sessions ordered by name
func (s *PostgresStore) List(ctx context.Context, limit, offset int) ([]*Session, error) {
	rows, err := s.db.QueryContext(ctx, selectSession+" ORDER BY name LIMIT $1 OFFSET $2", limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()

	var result []*Session
	for rows.Next() {
		sess, err := scanPostgresSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, sess)
	}
	return result, rows.Err()
}

// Count returns the number of stored sessions
func (s *PostgresStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM override_sessions").Scan(&count)
	return count, err
}

// Delete removes a session by name
func (s *PostgresStore) Delete(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM override_sessions WHERE name = $1", name)
	if err != nil {
		return fmt.Errorf("failed to delete: %w", err)
	}
	return requireAffected(res, name)
}

// SetValue locks one field value with a single JSONB update
func (s *PostgresStore) SetValue(ctx context.Context, name, key, value string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE override_sessions
		SET locked_values = locked_values || jsonb_build_object($2::text, $3::text),
			updated_at = $4
		WHERE name = $1
	`, name, key, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to set value: %w", err)
	}
	return requireAffected(res, name)
}

// RemoveValue unlocks one field
func (s *PostgresStore) RemoveValue(ctx context.Context, name, key string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE override_sessions
		SET locked_values = locked_values - $2::text,
			updated_at = $3
		WHERE name = $1
	`, name, key, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to remove value: %w", err)
	}
	return requireAffected(res, name)
}

// ExportJSON writes every session to writer
func (s *PostgresStore) ExportJSON(ctx context.Context, writer io.Writer) error {
	return exportJSON(ctx, s, writer)
}

// ImportJSON reads sessions from reader
func (s *PostgresStore) ImportJSON(ctx context.Context, reader io.Reader) (int, int, error) {
	return importJSON(ctx, s, reader)
}

// Close closes the store and releases resources
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
