package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hl7-synth-server/internal/domain"
	"github.com/hl7-synth-server/internal/session"
)

func TestDefaultLiteConfig(t *testing.T) {
	cfg := DefaultLiteConfig()

	assert.NotEmpty(t, cfg.DataDir)
	assert.Empty(t, cfg.ReferenceDB)
	assert.True(t, cfg.SeedReference)
	assert.Equal(t, 256, cfg.CacheMaxItems)
	assert.Equal(t, time.Minute, cfg.CacheTTL)
	assert.Equal(t, domain.DefaultStandardVersion, cfg.StandardVersion)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
}

func TestLoadLiteConfig_Defaults(t *testing.T) {
	clearEnvVars(t)

	cfg := LoadLiteConfig()

	assert.NotEmpty(t, cfg.DataDir)
	assert.Equal(t, 256, cfg.CacheMaxItems)
	assert.Zero(t, cfg.Seed)
}

func TestLoadLiteConfig_EnvironmentOverrides(t *testing.T) {
	clearEnvVars(t)

	t.Setenv("HL7GEN_DATA_DIR", "/tmp/test-hl7gen")
	t.Setenv("HL7GEN_REFERENCE_DB", "/tmp/test-hl7gen/reference.db")
	t.Setenv("HL7GEN_SEED_REFERENCE", "false")
	t.Setenv("HL7GEN_CACHE_MAX_ITEMS", "500")
	t.Setenv("HL7GEN_CACHE_TTL", "12h")
	t.Setenv("HL7GEN_SEED", "1234")
	t.Setenv("HL7GEN_STANDARD_VERSION", "2.5.1")
	t.Setenv("HL7GEN_WORKERS", "8")
	t.Setenv("HL7GEN_LOG_LEVEL", "debug")

	cfg := LoadLiteConfig()

	assert.Equal(t, "/tmp/test-hl7gen", cfg.DataDir)
	assert.Equal(t, "/tmp/test-hl7gen/reference.db", cfg.ReferenceDB)
	assert.False(t, cfg.SeedReference)
	assert.Equal(t, 500, cfg.CacheMaxItems)
	assert.Equal(t, 12*time.Hour, cfg.CacheTTL)
	assert.Equal(t, uint64(1234), cfg.Seed)
	assert.Equal(t, "2.5.1", cfg.StandardVersion)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadLiteConfig_InvalidValuesKeepDefaults(t *testing.T) {
	clearEnvVars(t)

	t.Setenv("HL7GEN_CACHE_MAX_ITEMS", "-5")
	t.Setenv("HL7GEN_SEED", "not-a-number")
	t.Setenv("HL7GEN_WORKERS", "zero")

	cfg := LoadLiteConfig()

	assert.Equal(t, 256, cfg.CacheMaxItems)
	assert.Zero(t, cfg.Seed)
	assert.Equal(t, 4, cfg.Workers)
}

func TestLiteConfig_Paths(t *testing.T) {
	cfg := &LiteConfig{DataDir: "/home/user/.hl7gen"}

	assert.Equal(t, "/home/user/.hl7gen/sessions.db", cfg.SessionDBPath())
	assert.Equal(t, "/home/user/.hl7gen/exports", cfg.ExportDir())

	sessions := cfg.Sessions()
	assert.Equal(t, session.BackendSQLite, sessions.Backend)
	assert.Equal(t, cfg.SessionDBPath(), sessions.SQLitePath)
	assert.Equal(t, cfg.CacheTTL, sessions.CacheTTL)
}

func TestLiteConfig_Generation(t *testing.T) {
	cfg := &LiteConfig{Seed: 7, StandardVersion: "2.4", Workers: 2, ReferenceDB: "ref.db", SeedReference: true}

	gen := cfg.Generation()
	assert.Equal(t, uint64(7), gen.Seed)
	assert.Equal(t, "2.4", gen.StandardVersion)
	assert.Equal(t, 2, gen.Workers)

	ref := cfg.Reference()
	assert.Equal(t, "ref.db", ref.Path)
	assert.True(t, ref.SeedIfEmpty)
}

func TestLiteConfig_EnsureDataDir(t *testing.T) {
	cfg := &LiteConfig{DataDir: filepath.Join(t.TempDir(), "hl7gen")}

	err := cfg.EnsureDataDir()
	require.NoError(t, err)

	_, err = os.Stat(cfg.DataDir)
	assert.NoError(t, err)

	_, err = os.Stat(cfg.ExportDir())
	assert.NoError(t, err)
}

func clearEnvVars(t *testing.T) {
	t.Helper()
	vars := []string{
		"HL7GEN_DATA_DIR",
		"HL7GEN_REFERENCE_DB",
		"HL7GEN_SEED_REFERENCE",
		"HL7GEN_CACHE_MAX_ITEMS",
		"HL7GEN_CACHE_TTL",
		"HL7GEN_SEED",
		"HL7GEN_STANDARD_VERSION",
		"HL7GEN_WORKERS",
		"HL7GEN_LOG_LEVEL",
		"HL7GEN_LOG_FORMAT",
	}
	for _, v := range vars {
		// t.Setenv restores the original value when the test ends
		t.Setenv(v, "")
		os.Unsetenv(v)
	}
}
