// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

func Load() (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	// SCORING_BASE_URL overrides scoring.base_url
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // optional per-environment overlay

	return finish(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finish(v)
}

func finish(v *viper.Viper) (*Config, error) {
	bindEnvKeys(v)
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// loadEnvFile tries the usual locations of a .env file.
func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env", // tests in test/e2e/
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// Find project root by looking for go.mod
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

// bindEnvKeys registers keys that may only come from the environment, so
// AutomaticEnv picks them up during Unmarshal even when the yaml omits them.
func bindEnvKeys(v *viper.Viper) {
	for _, key := range []string{
		"scoring.base_url",
		"scoring.client_token",
		"scoring.mock_enabled",
		"scoring.max_attempts",
		"scoring.retry_delay_ms",
		"scoring.max_concurrent",
		"logging.level",
		"security.username",
		"security.password",
		"store.backend",
		"database.redis.address",
		"database.postgres.host",
		"notifications.sns.topic_arn",
	} {
		_ = v.BindEnv(key)
	}
}

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok || !strings.Contains(strVal, "${") {
			continue
		}
		// an unset variable expands to "" so validation sees the value as missing
		if expanded := os.ExpandEnv(strVal); expanded != strVal {
			v.Set(key, expanded)
		}
	}
}

// Direct override if config values are still empty after expansion
func overrideEmptyConfig(cfg *Config) {
	if cfg.Scoring.ClientToken == "" {
		if val := os.Getenv("SCORING_CLIENT_TOKEN"); val != "" {
			cfg.Scoring.ClientToken = val
		}
	}
	if cfg.Security.Password == "" {
		if val := os.Getenv("LMS_SECURITY_PASSWORD"); val != "" {
			cfg.Security.Password = val
		}
	}
	if cfg.Database.Postgres.User == "" {
		if val := os.Getenv("DB_USER"); val != "" {
			cfg.Database.Postgres.User = val
		}
	}
	if cfg.Database.Postgres.Password == "" {
		if val := os.Getenv("DB_PASSWORD"); val != "" {
			cfg.Database.Postgres.Password = val
		}
	}
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "loan-manager"
	}
	if cfg.App.Environment == "" {
		cfg.App.Environment = "development"
	}

	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15000
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 15000
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 30000
	}

	// Scoring defaults
	if cfg.Scoring.MaxAttempts == 0 {
		cfg.Scoring.MaxAttempts = 5
	}
	if cfg.Scoring.RetryDelay == 0 {
		cfg.Scoring.RetryDelay = 2000
	}
	if cfg.Scoring.BackoffMultiplier == 0 {
		cfg.Scoring.BackoffMultiplier = 1
	}
	if cfg.Scoring.MaxDelay == 0 {
		cfg.Scoring.MaxDelay = 30000
	}
	if cfg.Scoring.Timeout == 0 {
		cfg.Scoring.Timeout = 10000
	}
	if cfg.Scoring.RateLimitBurst == 0 {
		cfg.Scoring.RateLimitBurst = 1
	}

	if cfg.Registration.ClientName == "" {
		cfg.Registration.ClientName = "lms-client"
	}

	if cfg.Store.Backend == "" {
		cfg.Store.Backend = StoreBackendMemory
	}

	// Database defaults
	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}
	if cfg.Database.Redis.KeyPrefix == "" {
		cfg.Database.Redis.KeyPrefix = "lms"
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	if !cfg.Scoring.MockEnabled && cfg.Scoring.BaseURL == "" {
		return fmt.Errorf("scoring.base_url is required unless scoring.mock_enabled is set")
	}
	if cfg.Scoring.MaxAttempts < 1 {
		return fmt.Errorf("scoring.max_attempts must be at least 1")
	}
	if cfg.Scoring.RetryDelay < 0 || cfg.Scoring.MaxDelay < 0 || cfg.Scoring.Deadline < 0 {
		return fmt.Errorf("scoring delays must not be negative")
	}
	if cfg.Scoring.BackoffMultiplier < 1 {
		return fmt.Errorf("scoring.backoff_multiplier must be >= 1")
	}
	if cfg.Scoring.MaxConcurrent < 0 {
		return fmt.Errorf("scoring.max_concurrent must not be negative")
	}

	if cfg.Registration.Enabled && cfg.Registration.PublicURL == "" {
		return fmt.Errorf("registration.public_url is required when registration is enabled")
	}

	if cfg.Security.Username == "" || cfg.Security.Password == "" {
		return fmt.Errorf("security.username and security.password are required")
	}

	switch cfg.Store.Backend {
	case StoreBackendMemory:
	case StoreBackendRedis:
		if cfg.Database.Redis.Address == "" {
			return fmt.Errorf("database.redis.address is required for the redis store")
		}
	case StoreBackendPostgres:
		if cfg.Database.Postgres.Host == "" {
			return fmt.Errorf("database.postgres.host is required for the postgres store")
		}
		if cfg.Database.Postgres.Database == "" {
			return fmt.Errorf("database.postgres.database is required")
		}
		if cfg.Database.Postgres.User == "" {
			return fmt.Errorf("database.postgres.user is required")
		}
	default:
		return fmt.Errorf("unknown store.backend %q", cfg.Store.Backend)
	}

	if cfg.Notifications.SNS.Enabled && cfg.Notifications.SNS.TopicARN == "" {
		return fmt.Errorf("notifications.sns.topic_arn is required when sns is enabled")
	}

	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}
