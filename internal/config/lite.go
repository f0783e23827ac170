// Package config provides configuration management for the generator.
// This file contains the lightweight configuration for standalone operation.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/hl7-synth-server/internal/domain"
	"github.com/hl7-synth-server/internal/session"
)

// LiteConfig is a simplified configuration for the command line tool.
// It requires no external databases and uses sensible defaults.
type LiteConfig struct {
	// Data storage
	DataDir       string // Base directory for data files
	ReferenceDB   string // SQLite reference dataset; empty uses the built-in data
	SeedReference bool   // Load the built-in data into an empty reference database

	// Session cache
	CacheMaxItems int           // Maximum sessions held in memory
	CacheTTL      time.Duration // How long locked values stay cached

	// Generation
	Seed            uint64 // 0 draws a random seed per run
	StandardVersion string
	Workers         int

	// Logging
	LogLevel  string // Log level: debug, info, warn, error
	LogFormat string // Log format: json, text
}

// DefaultLiteConfig returns a configuration with sensible defaults.
func DefaultLiteConfig() *LiteConfig {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".hl7gen")

	return &LiteConfig{
		DataDir:         dataDir,
		SeedReference:   true,
		CacheMaxItems:   256,
		CacheTTL:        time.Minute,
		StandardVersion: domain.DefaultStandardVersion,
		Workers:         4,
		LogLevel:        "warn",
		LogFormat:       "text",
	}
}

// LoadLiteConfig loads configuration from environment variables.
// Falls back to defaults if not set.
func LoadLiteConfig() *LiteConfig {
	cfg := DefaultLiteConfig()

	// Data
	if v := os.Getenv("HL7GEN_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("HL7GEN_REFERENCE_DB"); v != "" {
		cfg.ReferenceDB = v
	}
	if v := os.Getenv("HL7GEN_SEED_REFERENCE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.SeedReference = b
		}
	}

	// Cache settings
	if v := os.Getenv("HL7GEN_CACHE_MAX_ITEMS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.CacheMaxItems = n
		}
	}
	if v := os.Getenv("HL7GEN_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.CacheTTL = d
		}
	}

	// Generation
	if v := os.Getenv("HL7GEN_SEED"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Seed = n
		}
	}
	if v := os.Getenv("HL7GEN_STANDARD_VERSION"); v != "" {
		cfg.StandardVersion = v
	}
	if v := os.Getenv("HL7GEN_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Workers = n
		}
	}

	// Logging
	if v := os.Getenv("HL7GEN_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("HL7GEN_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}

	return cfg
}

// SessionDBPath returns the path to the override session SQLite database.
func (c *LiteConfig) SessionDBPath() string {
	return filepath.Join(c.DataDir, "sessions.db")
}

// ExportDir returns the directory for JSON exports.
func (c *LiteConfig) ExportDir() string {
	return filepath.Join(c.DataDir, "exports")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func (c *LiteConfig) EnsureDataDir() error {
	if err := os.MkdirAll(c.DataDir, 0755); err != nil {
		return err
	}
	return os.MkdirAll(c.ExportDir(), 0755)
}

// Generation returns the generator settings
func (c *LiteConfig) Generation() domain.GenerationConfig {
	return domain.GenerationConfig{
		StandardVersion: c.StandardVersion,
		Workers:         c.Workers,
		Seed:            c.Seed,
	}
}

// Sessions returns the session store settings
func (c *LiteConfig) Sessions() domain.SessionConfig {
	return domain.SessionConfig{Backend: session.BackendSQLite, SQLitePath: c.SessionDBPath(), CacheTTL: c.CacheTTL}
}

// Reference returns the reference data settings
func (c *LiteConfig) Reference() domain.ReferenceDBConfig {
	return domain.ReferenceDBConfig{Path: c.ReferenceDB, SeedIfEmpty: c.SeedReference}
}
