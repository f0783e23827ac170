package refdata

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/hl7-synth-server/internal/domain"
)

// Source is reference data that may hold resources
type Source interface {
	domain.ReferenceData
	ListTableIDs(ctx context.Context) ([]string, error)
	Close() error
}

type memorySource struct{ *Memory }

func (s memorySource) ListTableIDs(context.Context) ([]string, error) { return s.TableIDs(), nil }

func (memorySource) Close() error { return nil }

// Open returns the configured reference data. An empty path serves the
// built-in dataset; otherwise the SQLite database at the path is used and,
// when SeedIfEmpty is set, loaded from the built-in dataset on first use.
func Open(ctx context.Context, cfg domain.ReferenceDBConfig, logger *logrus.Logger) (Source, error) {
	if logger == nil {
		logger = logrus.New()
	}
	if cfg.Path == "" {
		logger.Info("Using built-in reference dataset")
		return memorySource{NewMemory(nil)}, nil
	}

	store, err := NewSQLiteStore(cfg.Path)
	if err != nil {
		return nil, err
	}

	empty, err := store.IsEmpty(ctx)
	if err != nil {
		store.Close()
		return nil, err
	}
	if empty {
		if !cfg.SeedIfEmpty {
			store.Close()
			return nil, fmt.Errorf("reference database %s: %w", cfg.Path, domain.ErrNoReferenceData)
		}
		if err := store.Seed(ctx, Builtin()); err != nil {
			store.Close()
			return nil, err
		}
		logger.WithField("path", cfg.Path).Info("Seeded reference database from built-in dataset")
	}

	logger.WithField("path", cfg.Path).Info("Using SQLite reference database")
	return store, nil
}
