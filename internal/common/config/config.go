// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig          `mapstructure:"app"`
	Server        ServerConfig       `mapstructure:"server"`
	Scoring       ScoringConfig      `mapstructure:"scoring"`
	Registration  RegistrationConfig `mapstructure:"registration"`
	Security      SecurityConfig     `mapstructure:"security"`
	Store         StoreConfig        `mapstructure:"store"`
	Database      DatabaseConfig     `mapstructure:"database"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Logging       LoggingConfig      `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Port            int `mapstructure:"port"`
	ReadTimeout     int `mapstructure:"read_timeout"`     // milliseconds
	WriteTimeout    int `mapstructure:"write_timeout"`    // milliseconds
	ShutdownTimeout int `mapstructure:"shutdown_timeout"` // milliseconds
}

// Addr returns the listen address for the HTTP server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}

// ScoringConfig configures the external scoring service and the retry protocol.
type ScoringConfig struct {
	BaseURL           string  `mapstructure:"base_url"`
	ClientToken       string  `mapstructure:"client_token"`
	MaxAttempts       int     `mapstructure:"max_attempts"`
	RetryDelay        int     `mapstructure:"retry_delay_ms"`
	BackoffMultiplier float64 `mapstructure:"backoff_multiplier"`
	MaxDelay          int     `mapstructure:"max_delay_ms"`
	Deadline          int     `mapstructure:"deadline_ms"` // 0 disables the overall deadline
	Timeout           int     `mapstructure:"timeout_ms"`
	MockEnabled       bool    `mapstructure:"mock_enabled"`
	RateLimitRPS      float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst    int     `mapstructure:"rate_limit_burst"`
	MaxConcurrent     int     `mapstructure:"max_concurrent"` // 0 means unbounded
}

// RegistrationConfig controls the startup client registration with the scoring service.
type RegistrationConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	PublicURL  string `mapstructure:"public_url"`
	ClientName string `mapstructure:"client_name"`
}

// --- Security Configuration ---

// SecurityConfig holds the credentials the scoring engine uses on the transactions endpoint.
type SecurityConfig struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// StoreConfig selects the application store backend.
type StoreConfig struct {
	Backend string `mapstructure:"backend"` // memory | redis | postgres
}

const (
	StoreBackendMemory   = "memory"
	StoreBackendRedis    = "redis"
	StoreBackendPostgres = "postgres"
)

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Address   string `mapstructure:"address"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// NotificationConfig holds settings for decision notifications.
type NotificationConfig struct {
	SNS struct {
		Enabled  bool   `mapstructure:"enabled"`
		Region   string `mapstructure:"region"`
		TopicARN string `mapstructure:"topic_arn"`
	} `mapstructure:"sns"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}
