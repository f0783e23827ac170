package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"

	"github.com/hl7-synth-server/internal/domain"
)

// ErrSessionExists is returned by Create when the name is taken
var ErrSessionExists = errors.New("override session already exists")

// Backends accepted by OpenStore
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// OpenStore opens the configured backend. postgresURL is only used by the
// postgres backend.
func OpenStore(cfg domain.SessionConfig, postgresURL string) (Store, error) {
	switch cfg.Backend {
	case "", BackendSQLite:
		return NewSQLiteStore(cfg.SQLitePath)
	case BackendPostgres:
		return NewPostgresStoreFromURL(postgresURL)
	default:
		return nil, domain.NewValidationError("sessions.backend", "unknown session backend", cfg.Backend)
	}
}

// Service manages override sessions and serves their locked values to the
// resolution engine. Locked values are cached briefly because every generated
// message asks for them; writes through the service invalidate the cache.
type Service struct {
	store    Store
	logger   *logrus.Logger
	cache    *expirable.LRU[string, map[string]string]
	keyCheck func(key string) error
}

// NewService creates the service. A cacheTTL of zero disables caching.
func NewService(store Store, cacheTTL time.Duration, logger *logrus.Logger) *Service {
	if logger == nil {
		logger = logrus.New()
	}
	s := &Service{store: store, logger: logger}
	if cacheTTL > 0 {
		s.cache = expirable.NewLRU[string, map[string]string](256, nil, cacheTTL)
	}
	return s
}

// WithKeyCheck rejects locked-value keys the resolution engine cannot place.
// Create and Lock run check on every key; imported archives are not checked.
func (s *Service) WithKeyCheck(check func(key string) error) *Service {
	s.keyCheck = check
	return s
}

func (s *Service) checkKey(key string) error {
	if s.keyCheck == nil {
		return nil
	}
	return s.keyCheck(key)
}

// GetLockedValues implements domain.LockSessionService. The returned map is a
// copy owned by the caller.
func (s *Service) GetLockedValues(ctx context.Context, name string) (map[string]string, error) {
	if s.cache != nil {
		if values, ok := s.cache.Get(name); ok {
			return copyValues(values), nil
		}
	}

	sess, err := s.store.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.Add(name, copyValues(sess.Values))
	}
	return copyValues(sess.Values), nil
}

// Create stores a new session
func (s *Service) Create(ctx context.Context, name, description string, values map[string]string) (*Session, error) {
	for key := range values {
		if err := s.checkKey(key); err != nil {
			return nil, err
		}
	}
	if _, err := s.store.Get(ctx, name); err == nil {
		return nil, fmt.Errorf("session %q: %w", name, ErrSessionExists)
	} else if !errors.Is(err, domain.ErrSessionNotFound) {
		return nil, err
	}

	sess := &Session{Name: name, Description: description, Values: copyValues(values)}
	if err := s.store.Save(ctx, sess); err != nil {
		return nil, err
	}
	s.invalidate(name)

	s.logger.WithFields(logrus.Fields{
		"session": name,
		"values":  len(sess.Values),
	}).Info("Override session created")
	return sess, nil
}

// Get returns a session by name
func (s *Service) Get(ctx context.Context, name string) (*Session, error) {
	return s.store.Get(ctx, name)
}

// List returns a page of sessions and the total count
func (s *Service) List(ctx context.Context, limit, offset int) ([]*Session, int64, error) {
	if limit <= 0 {
		limit = 50
	}
	sessions, err := s.store.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.store.Count(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return sessions, total, nil
}

// Delete removes a session
func (s *Service) Delete(ctx context.Context, name string) error {
	if err := s.store.Delete(ctx, name); err != nil {
		return err
	}
	s.invalidate(name)
	s.logger.WithField("session", name).Info("Override session deleted")
	return nil
}

// Lock sets one locked value
func (s *Service) Lock(ctx context.Context, name, key, value string) error {
	if err := s.checkKey(key); err != nil {
		return err
	}
	if err := s.store.SetValue(ctx, name, key, value); err != nil {
		return err
	}
	s.invalidate(name)
	s.logger.WithFields(logrus.Fields{"session": name, "key": key}).Debug("Field locked")
	return nil
}

// Unlock removes one locked value
func (s *Service) Unlock(ctx context.Context, name, key string) error {
	if err := s.store.RemoveValue(ctx, name, key); err != nil {
		return err
	}
	s.invalidate(name)
	s.logger.WithFields(logrus.Fields{"session": name, "key": key}).Debug("Field unlocked")
	return nil
}

// Export writes every session as JSON
func (s *Service) Export(ctx context.Context, w io.Writer) error {
	return s.store.ExportJSON(ctx, w)
}

// Import loads sessions from JSON, skipping existing names
func (s *Service) Import(ctx context.Context, r io.Reader) (int, int, error) {
	imported, skipped, err := s.store.ImportJSON(ctx, r)
	if s.cache != nil {
		s.cache.Purge()
	}
	if err == nil {
		s.logger.WithFields(logrus.Fields{
			"imported": imported,
			"skipped":  skipped,
		}).Info("Override sessions imported")
	}
	return imported, skipped, err
}

// Close closes the underlying store
func (s *Service) Close() error {
	return s.store.Close()
}

func (s *Service) invalidate(name string) {
	if s.cache != nil {
		s.cache.Remove(name)
	}
}

func copyValues(values map[string]string) map[string]string {
	out := make(map[string]string, len(values))
	for k, v := range values {
		out[k] = v
	}
	return out
}
