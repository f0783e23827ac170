// Package setup assembles the generation engine from configuration and
// provides the hl7gen command line on top of it.
package setup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hl7-synth-server/internal/api"
	"github.com/hl7-synth-server/internal/domain"
	"github.com/hl7-synth-server/internal/fieldpath"
	"github.com/hl7-synth-server/internal/mcp"
	"github.com/hl7-synth-server/internal/message"
	"github.com/hl7-synth-server/internal/refdata"
	"github.com/hl7-synth-server/internal/resolver"
	"github.com/hl7-synth-server/internal/scenario"
	"github.com/hl7-synth-server/internal/session"
	"github.com/hl7-synth-server/pkg/external"
)

// Options contains the settings needed to build an Engine.
type Options struct {
	Generation  domain.GenerationConfig
	Reference   domain.ReferenceDBConfig
	Sessions    domain.SessionConfig
	PostgresURL string // used by the postgres session backend only

	// Standards tables are looked up through an in-process LRU, then
	// SharedTables, then RemoteTables behind a circuit breaker, then
	// LocalTables. Every tier but the LRU is optional; a nil LocalTables
	// serves the reference data.
	LocalTables       api.TableCatalog
	RemoteTables      external.TableSource
	SharedTables      external.TableCache
	SharedTableTTL    time.Duration
	CircuitBreaker    domain.CircuitBreakerConfig
	TableCacheEntries int
	TableCacheTTL     time.Duration

	Clock func() time.Time // nil uses time.Now
}

// Engine is a fully wired generator with the stores behind it.
type Engine struct {
	Reference refdata.Source
	Tables    api.TableCatalog
	Sessions  *session.Service
	Paths     *fieldpath.Resolver
	Scenarios *scenario.Coordinator
	Resolver  *resolver.Orchestrator
	Generator *message.Generator

	store  session.Store
	logger *logrus.Logger
}

// EngineOption is a functional option for Build.
type EngineOption func(*Engine) error

// WithTables serves standards tables from catalog instead of the reference data.
func WithTables(catalog api.TableCatalog) EngineOption {
	return func(e *Engine) error {
		if catalog == nil {
			return errors.New("table catalog is nil")
		}
		e.Tables = catalog
		return nil
	}
}

// WithSessionStore uses an already opened session store.
func WithSessionStore(store session.Store) EngineOption {
	return func(e *Engine) error {
		if store == nil {
			return errors.New("session store is nil")
		}
		e.store = store
		return nil
	}
}

// NewLogger creates a logrus logger writing to stderr. An unknown level falls
// back to info.
func NewLogger(level, format string) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	if format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)
	return logger
}

// Build opens the reference data and session store and wires the resolver
// chain and the generator over them.
func Build(ctx context.Context, opts Options, logger *logrus.Logger, extra ...EngineOption) (*Engine, error) {
	if logger == nil {
		logger = logrus.New()
	}
	e := &Engine{logger: logger}

	for _, opt := range extra {
		if err := opt(e); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	ref, err := refdata.Open(ctx, opts.Reference, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open reference data: %w", err)
	}
	e.Reference = ref

	if e.Tables == nil {
		local := opts.LocalTables
		if local == nil {
			local = ref
		}
		provider := external.NewResilientTableProvider(external.ResilientConfig{
			LocalEntries:   opts.TableCacheEntries,
			LocalTTL:       opts.TableCacheTTL,
			SharedTTL:      opts.SharedTableTTL,
			CircuitBreaker: opts.CircuitBreaker,
		}, opts.RemoteTables, opts.SharedTables, local, logger)
		e.Tables = NewTableCatalog(provider, local)
	}

	if e.store == nil {
		store, err := session.OpenStore(opts.Sessions, opts.PostgresURL)
		if err != nil {
			ref.Close()
			return nil, fmt.Errorf("failed to open session store: %w", err)
		}
		e.store = store
	}
	e.Paths = fieldpath.New(fieldpath.WithSegments(message.SegmentsFor))
	e.Sessions = session.NewService(e.store, opts.Sessions.CacheTTL, logger).
		WithKeyCheck(SessionKeyCheck(e.Paths))
	e.Scenarios = scenario.NewBuiltinCoordinator()

	deps := resolver.DependenciesFrom(ref)
	deps.Schemas = domain.StandardSchemas()
	deps.Tables = e.Tables
	deps.Sessions = e.Sessions
	deps.Paths = e.Paths
	deps.Scenarios = e.Scenarios

	regs := append(resolver.DefaultRegistrations(logger, deps),
		message.NewHeaderResolver(message.HeaderFrom(opts.Generation)).Registration())
	e.Resolver = resolver.NewOrchestrator(logger, deps.Schemas, regs...)

	genOpts := []message.Option{message.WithScenarios(e.Scenarios)}
	if opts.Clock != nil {
		genOpts = append(genOpts, message.WithClock(opts.Clock))
	}
	e.Generator = message.NewGenerator(e.Resolver, opts.Generation, logger, genOpts...)

	logger.WithFields(logrus.Fields{
		"resolvers":       len(regs),
		"session_backend": opts.Sessions.Backend,
		"scenarios":       len(e.Scenarios.IDs()),
	}).Info("Generation engine initialized")
	return e, nil
}

// Services exposes the engine to the HTTP API.
func (e *Engine) Services(checks map[string]api.HealthCheck) api.Services {
	all := e.Checks()
	for name, check := range checks {
		all[name] = check
	}
	return api.Services{
		Generator: e.Generator,
		Resolver:  e.Resolver,
		Sessions:  e.Sessions,
		Tables:    e.Tables,
		Paths:     e.Paths,
		Scenarios: e.Scenarios,
		Checks:    all,
	}
}

// SessionKeyCheck accepts wire paths such as PID.5 and semantic names the
// field path table knows.
func SessionKeyCheck(paths *fieldpath.Resolver) func(key string) error {
	return func(key string) error {
		if resolver.IsDirectPath(key) || paths.Known(key) {
			return nil
		}
		return fmt.Errorf("%w: %q is neither a field path like PID.5 nor a known field name", domain.ErrInvalidPath, key)
	}
}

// MCPServices exposes the engine as MCP tools.
func (e *Engine) MCPServices() mcp.Services {
	return mcp.Services{
		Generator: e.Generator,
		Sessions:  e.Sessions,
		Tables:    e.Tables,
		Paths:     e.Paths,
		Scenarios: e.Scenarios,
	}
}

// Checks returns health checks for the stores the engine opened.
func (e *Engine) Checks() map[string]api.HealthCheck {
	return map[string]api.HealthCheck{
		"reference_data": func(ctx context.Context) error {
			_, err := e.Reference.ListTableIDs(ctx)
			return err
		},
		"sessions": func(ctx context.Context) error {
			_, _, err := e.Sessions.List(ctx, 1, 0)
			return err
		},
	}
}

// Close releases the session store and the reference data.
func (e *Engine) Close() error {
	var errs []error
	if e.Sessions != nil {
		if err := e.Sessions.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close session store: %w", err))
		}
	}
	if e.Reference != nil {
		if err := e.Reference.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close reference data: %w", err))
		}
	}
	return errors.Join(errs...)
}

// TableLister lists the IDs of the tables a catalog can serve.
type TableLister interface {
	ListTableIDs(ctx context.Context) ([]string, error)
}

type tableCatalog struct {
	domain.TableProvider
	lister TableLister
}

func (c tableCatalog) ListTableIDs(ctx context.Context) ([]string, error) {
	return c.lister.ListTableIDs(ctx)
}

// NewTableCatalog serves lookups through provider and listings from lister.
func NewTableCatalog(provider domain.TableProvider, lister TableLister) api.TableCatalog {
	return tableCatalog{TableProvider: provider, lister: lister}
}
