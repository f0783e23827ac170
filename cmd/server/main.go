// Package main provides the HTTP server entry point. Configuration comes from
// config.yaml and HL7GEN_* environment variables; PostgreSQL, Redis and a
// remote table service are used when configured.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/hl7-synth-server/internal/api"
	"github.com/hl7-synth-server/internal/config"
	"github.com/hl7-synth-server/internal/database"
	"github.com/hl7-synth-server/internal/domain"
	"github.com/hl7-synth-server/internal/refdata"
	"github.com/hl7-synth-server/internal/repository"
	"github.com/hl7-synth-server/internal/setup"
	"github.com/hl7-synth-server/pkg/external"
)

func main() {
	// Load configuration
	configManager, err := loadConfig()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}

	// Validate configuration
	if err := configManager.Validate(); err != nil {
		logrus.WithError(err).Fatal("Configuration validation failed")
	}

	cfg := configManager.GetConfig()
	logger := setup.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	if cfg.Logging.Output == "stdout" {
		logger.SetOutput(os.Stdout)
	}

	// Setup graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, configManager, logger); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}
	logger.Info("Server stopped")
}

func loadConfig() (*config.Manager, error) {
	if path := os.Getenv("HL7GEN_CONFIG"); path != "" {
		return config.NewManagerWithFile(path)
	}
	return config.NewManager()
}

func run(ctx context.Context, configManager *config.Manager, logger *logrus.Logger) error {
	cfg := configManager.GetConfig()
	logger.WithFields(logrus.Fields{
		"host":       cfg.Server.Host,
		"port":       cfg.Server.Port,
		"production": configManager.IsProduction(),
		"database":   cfg.Database.Enabled,
		"sessions":   cfg.Sessions.Backend,
	}).Info("Starting HL7 synthetic message server")

	opts := setup.Options{
		Generation:        cfg.Generation,
		Reference:         cfg.ReferenceDB,
		Sessions:          cfg.Sessions,
		CircuitBreaker:    cfg.TableService.CircuitBreaker,
		SharedTableTTL:    cfg.Cache.DefaultTTL,
		TableCacheEntries: cfg.Cache.LocalEntries,
	}
	checks := map[string]api.HealthCheck{}

	if cfg.Database.Enabled {
		db, err := openDatabase(ctx, cfg.Database, logger)
		if err != nil {
			return err
		}
		defer db.Close()
		checks["database"] = db.Health

		tables := repository.NewTableRepository(db.Pool, logger)
		if _, err := tables.Seed(ctx, refdata.Builtin().Tables); err != nil {
			return fmt.Errorf("failed to seed HL7 tables: %w", err)
		}
		opts.LocalTables = tables
		opts.PostgresURL = configManager.GetDatabaseConnectionString()
	}

	if cfg.Cache.RedisURL != "" {
		cache, err := external.NewCacheClient(cfg.Cache)
		if err != nil {
			// The shared cache only saves remote lookups; run without it.
			logger.WithError(err).WithField("redis", redactURL(configManager.GetRedisConnectionString())).
				Warn("Redis unavailable, continuing without shared table cache")
		} else {
			defer cache.Close()
			opts.SharedTables = cache
			checks["redis"] = cache.Ping
		}
	}

	if cfg.TableService.BaseURL != "" {
		client := external.NewTableServiceClient(cfg.TableService, logger)
		opts.RemoteTables = client
		checks["table_service"] = func(ctx context.Context) error {
			if h := client.Health(ctx); !h.Healthy {
				return errors.New(h.Error)
			}
			return nil
		}
	}

	engine, err := setup.Build(ctx, opts, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := engine.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close engine")
		}
	}()

	server := api.NewServer(configManager, engine.Services(checks), logger)
	return server.Start(ctx)
}

// openDatabase migrates the schema and opens the connection pool
func openDatabase(ctx context.Context, cfg domain.DatabaseConfig, logger *logrus.Logger) (*database.DB, error) {
	dbCfg := database.ConfigFrom(cfg)

	runner, err := database.NewMigrationRunner(dbCfg.URL(), cfg.MigrationsPath, logger)
	if err != nil {
		return nil, err
	}
	defer runner.Close()
	if err := runner.Up(ctx); err != nil {
		return nil, err
	}

	return database.NewConnection(ctx, dbCfg, logger)
}

// redactURL hides credentials before a URL is logged
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "invalid"
	}
	return u.Redacted()
}
