package domain

import (
	"time"
)

// Config represents the main application configuration
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Cache        CacheConfig        `mapstructure:"cache"`
	Logging      LoggingConfig      `mapstructure:"logging"`
	Generation   GenerationConfig   `mapstructure:"generation"`
	TableService TableServiceConfig `mapstructure:"table_service"`
	Sessions     SessionConfig      `mapstructure:"sessions"`
	ReferenceDB  ReferenceDBConfig  `mapstructure:"reference_db"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	RateLimit    int           `mapstructure:"rate_limit"` // requests per second, 0 disables
}

// DatabaseConfig represents PostgreSQL connection configuration
type DatabaseConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Database        string        `mapstructure:"database"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// CacheConfig represents table cache configuration
type CacheConfig struct {
	RedisURL     string        `mapstructure:"redis_url"` // empty disables the shared cache
	DefaultTTL   time.Duration `mapstructure:"default_ttl"`
	MaxRetries   int           `mapstructure:"max_retries"`
	PoolSize     int           `mapstructure:"pool_size"`
	PoolTimeout  time.Duration `mapstructure:"pool_timeout"`
	LocalEntries int           `mapstructure:"local_entries"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// GenerationConfig controls message generation defaults
type GenerationConfig struct {
	DefaultMessageType   string `mapstructure:"default_message_type"`
	StandardVersion      string `mapstructure:"standard_version"`
	Workers              int    `mapstructure:"workers"`
	MaxBatchSize         int    `mapstructure:"max_batch_size"`
	Seed                 uint64 `mapstructure:"seed"` // 0 means non-deterministic
	SendingApplication   string `mapstructure:"sending_application"`
	SendingFacility      string `mapstructure:"sending_facility"`
	ReceivingApplication string `mapstructure:"receiving_application"`
	ReceivingFacility    string `mapstructure:"receiving_facility"`
	ProcessingID         string `mapstructure:"processing_id"`
}

// TableServiceConfig represents the optional remote terminology service
type TableServiceConfig struct {
	BaseURL        string               `mapstructure:"base_url"` // empty uses local reference data only
	APIKey         string               `mapstructure:"api_key"`
	Timeout        time.Duration        `mapstructure:"timeout"`
	RateLimit      int                  `mapstructure:"rate_limit"`
	RetryCount     int                  `mapstructure:"retry_count"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
}

// CircuitBreakerConfig tunes the breaker around remote lookups
type CircuitBreakerConfig struct {
	MaxRequests      uint32        `mapstructure:"max_requests"`
	Interval         time.Duration `mapstructure:"interval"`
	Timeout          time.Duration `mapstructure:"timeout"`
	FailureThreshold uint32        `mapstructure:"failure_threshold"`
}

// SessionConfig selects the override session backend
type SessionConfig struct {
	Backend    string        `mapstructure:"backend"` // "sqlite" or "postgres"
	SQLitePath string        `mapstructure:"sqlite_path"`
	CacheTTL   time.Duration `mapstructure:"cache_ttl"` // zero disables the locked-value cache
}

// ReferenceDBConfig locates the SQLite reference dataset
type ReferenceDBConfig struct {
	Path        string `mapstructure:"path"` // empty uses the built-in dataset
	SeedIfEmpty bool   `mapstructure:"seed_if_empty"`
}
