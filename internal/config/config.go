package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/hl7-synth-server/internal/domain"
	"github.com/hl7-synth-server/internal/session"
)

// EnvPrefix prefixes every environment override, e.g. HL7GEN_SERVER_PORT
const EnvPrefix = "HL7GEN"

// Manager implements the ConfigManager interface using Viper
type Manager struct {
	v      *viper.Viper
	file   string
	config *domain.Config
}

// NewManager creates a new configuration manager that searches the usual
// locations for config.yaml
func NewManager() (*Manager, error) {
	return NewManagerWithFile("")
}

// NewManagerWithFile loads an explicit configuration file. An empty path
// falls back to the search locations.
func NewManagerWithFile(path string) (*Manager, error) {
	m := &Manager{file: path}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

// loadConfig loads configuration from various sources
func (m *Manager) loadConfig() error {
	v := viper.New()

	if m.file != "" {
		v.SetConfigFile(m.file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/hl7-synth-server/")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read configuration file (optional - will use defaults and env vars if not found)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if m.file != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &domain.Config{}
	if err := v.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.v = v
	m.config = config
	return nil
}

// setDefaults sets default configuration values. Every key needs a default so
// that environment overrides are picked up by Unmarshal.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.rate_limit", 50)

	// Database defaults
	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.database", "hl7gen")
	v.SetDefault("database.username", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.migrations_path", "")

	// Cache defaults
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.default_ttl", "24h")
	v.SetDefault("cache.max_retries", 3)
	v.SetDefault("cache.pool_size", 10)
	v.SetDefault("cache.pool_timeout", "4s")
	v.SetDefault("cache.local_entries", 256)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")

	// Generation defaults
	v.SetDefault("generation.default_message_type", "ADT^A01")
	v.SetDefault("generation.standard_version", domain.DefaultStandardVersion)
	v.SetDefault("generation.workers", 4)
	v.SetDefault("generation.max_batch_size", 1000)
	v.SetDefault("generation.seed", 0)
	v.SetDefault("generation.sending_application", "HL7GEN")
	v.SetDefault("generation.sending_facility", "SYNTH_HOSP")
	v.SetDefault("generation.receiving_application", "RECEIVER")
	v.SetDefault("generation.receiving_facility", "RECEIVER_FAC")
	v.SetDefault("generation.processing_id", "T")

	// Remote table service defaults
	v.SetDefault("table_service.base_url", "")
	v.SetDefault("table_service.api_key", "")
	v.SetDefault("table_service.timeout", "10s")
	v.SetDefault("table_service.rate_limit", 10)
	v.SetDefault("table_service.retry_count", 3)
	v.SetDefault("table_service.circuit_breaker.max_requests", 3)
	v.SetDefault("table_service.circuit_breaker.interval", "60s")
	v.SetDefault("table_service.circuit_breaker.timeout", "30s")
	v.SetDefault("table_service.circuit_breaker.failure_threshold", 5)

	// Session and reference data defaults
	v.SetDefault("sessions.backend", session.BackendSQLite)
	v.SetDefault("sessions.sqlite_path", "data/sessions.db")
	v.SetDefault("sessions.cache_ttl", "30s")
	v.SetDefault("reference_db.path", "")
	v.SetDefault("reference_db.seed_if_empty", true)
}

// GetConfig returns the complete configuration
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// GetServerConfig returns server configuration
func (m *Manager) GetServerConfig() *domain.ServerConfig {
	return &m.config.Server
}

// GetDatabaseConfig returns database configuration
func (m *Manager) GetDatabaseConfig() *domain.DatabaseConfig {
	return &m.config.Database
}

// GetCacheConfig returns cache configuration
func (m *Manager) GetCacheConfig() *domain.CacheConfig {
	return &m.config.Cache
}

// GetGenerationConfig returns message generation configuration
func (m *Manager) GetGenerationConfig() *domain.GenerationConfig {
	return &m.config.Generation
}

// Reload reloads the configuration
func (m *Manager) Reload() error {
	return m.loadConfig()
}

// Validate validates the configuration
func (m *Manager) Validate() error {
	config := m.config

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}
	if config.Server.RateLimit < 0 {
		return fmt.Errorf("invalid rate limit: %d", config.Server.RateLimit)
	}

	if config.Database.Enabled {
		if config.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if config.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
		if config.Database.Username == "" {
			return fmt.Errorf("database username is required")
		}
	}

	switch config.Sessions.Backend {
	case session.BackendSQLite:
		if config.Sessions.SQLitePath == "" {
			return fmt.Errorf("sessions.sqlite_path is required for the sqlite backend")
		}
	case session.BackendPostgres:
		if !config.Database.Enabled {
			return fmt.Errorf("the postgres session backend requires database.enabled")
		}
	default:
		return fmt.Errorf("invalid session backend: %s", config.Sessions.Backend)
	}

	if _, err := domain.ParseMessageType(config.Generation.DefaultMessageType); err != nil {
		return fmt.Errorf("invalid default message type: %w", err)
	}
	if config.Generation.Workers <= 0 {
		return fmt.Errorf("generation workers must be positive: %d", config.Generation.Workers)
	}
	if config.Generation.MaxBatchSize <= 0 {
		return fmt.Errorf("generation max batch size must be positive: %d", config.Generation.MaxBatchSize)
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}

	return nil
}

// GetDatabaseConnectionString returns a formatted database connection string
func (m *Manager) GetDatabaseConnectionString() string {
	db := m.config.Database
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		db.Host, db.Port, db.Username, db.Password, db.Database, db.SSLMode)
}

// GetRedisConnectionString returns the Redis connection string
func (m *Manager) GetRedisConnectionString() string {
	return m.config.Cache.RedisURL
}

// IsProduction returns true if running in production mode
func (m *Manager) IsProduction() bool {
	return strings.ToLower(m.v.GetString("environment")) == "production"
}

// IsDevelopment returns true if running in development mode
func (m *Manager) IsDevelopment() bool {
	env := strings.ToLower(m.v.GetString("environment"))
	return env == "development" || env == "dev" || env == ""
}
