// Package session stores override sessions: named sets of field values a user
// has locked so that generated messages carry them verbatim.
package session

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/hl7-synth-server/internal/domain"
)

// Session is a named set of locked field values. Keys are either wire paths
// ("PID.5") or semantic paths ("patient.family_name").
type Session struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Values      map[string]string `json:"values"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// Validate checks the session before it is stored
func (s *Session) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return domain.NewValidationError("name", "session name is required", s.Name)
	}
	for k := range s.Values {
		if err := ValidateKey(k); err != nil {
			return err
		}
	}
	return nil
}

// ValidateKey checks a locked-value key
func ValidateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return domain.NewValidationError("key", "field key is required", key)
	}
	return nil
}

// Store defines the interface for override session storage.
// Lookups of a missing session return domain.ErrSessionNotFound.
type Store interface {
	// Save creates or replaces a session by name
	Save(ctx context.Context, session *Session) error

	Get(ctx context.Context, name string) (*Session, error)

	// List returns sessions ordered by name
	List(ctx context.Context, limit, offset int) ([]*Session, error)

	Count(ctx context.Context) (int64, error)

	Delete(ctx context.Context, name string) error

	// SetValue locks one field value in an existing session
	SetValue(ctx context.Context, name, key, value string) error

	// RemoveValue unlocks one field. Removing an absent key is not an error.
	RemoveValue(ctx context.Context, name, key string) error

	// ExportJSON writes every session to writer
	ExportJSON(ctx context.Context, writer io.Writer) error

	// ImportJSON reads sessions from reader, skipping names that already exist
	ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error)

	Close() error
}

// Export is the JSON export format
type Export struct {
	Version    string     `json:"version"`
	ExportedAt time.Time  `json:"exported_at"`
	Count      int        `json:"count"`
	Sessions   []*Session `json:"sessions"`
}

const (
	exportVersion  = "1.0"
	maxExportLimit = 1000000
)
