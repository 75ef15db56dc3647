package config

import (
	"fmt"
	"strings"

	"github.com/medipatient-api-server/internal/domain"
	"github.com/spf13/viper"
)

// Manager implements the ConfigManager interface using Viper
type Manager struct {
	config *domain.Config
}

// NewManager creates a new configuration manager
func NewManager() (*Manager, error) {
	m := &Manager{}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

// loadConfig loads configuration from various sources
func (m *Manager) loadConfig() error {
	// Set configuration file name and paths
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/medipatient/")

	// Set environment variable prefix and enable automatic env binding
	viper.SetEnvPrefix("MEDIPATIENT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Set default values
	m.setDefaults()

	// Read configuration file (optional - will use defaults and env vars if not found)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; using defaults and environment variables
	}

	// Unmarshal configuration into struct
	config := &domain.Config{}
	if err := viper.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.config = config
	return nil
}

// setDefaults sets default configuration values
func (m *Manager) setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.shutdown_timeout", "10s")
	viper.SetDefault("server.rate_limit_rps", 20)
	viper.SetDefault("server.rate_limit_burst", 40)
	viper.SetDefault("server.environment", "development")

	// Model artifact defaults
	viper.SetDefault("model.dir", "./artifacts")
	viper.SetDefault("model.weights_file", "model.json")
	viper.SetDefault("model.features_file", "feature_names.csv")
	viper.SetDefault("model.labels_file", "label_mapping.csv")
	viper.SetDefault("model.require_artifact", false)

	// Reviewer defaults
	viper.SetDefault("reviewer.base_url", "https://generativelanguage.googleapis.com")
	viper.SetDefault("reviewer.api_key", "")
	viper.SetDefault("reviewer.model", "gemini-1.5-flash")
	viper.SetDefault("reviewer.timeout", "30s")
	viper.SetDefault("reviewer.max_retries", 3)
	viper.SetDefault("reviewer.initial_backoff", "1s")
	viper.SetDefault("reviewer.rate_limit", 2)
	viper.SetDefault("reviewer.temperature", 0.2)
	viper.SetDefault("reviewer.max_tokens", 1024)

	// Cache defaults
	viper.SetDefault("cache.redis_url", "")
	viper.SetDefault("cache.ttl", "1h")
	viper.SetDefault("cache.memory_size", 512)

	// Database defaults
	viper.SetDefault("database.driver", "sqlite")
	viper.SetDefault("database.sqlite_path", "./data/diagnoses.db")
	viper.SetDefault("database.postgres_url", "")

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
}

// GetConfig returns the complete configuration
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// GetServerConfig returns server configuration
func (m *Manager) GetServerConfig() *domain.ServerConfig {
	return &m.config.Server
}

// GetModelConfig returns model artifact configuration
func (m *Manager) GetModelConfig() *domain.ModelConfig {
	return &m.config.Model
}

// GetReviewerConfig returns reviewer client configuration
func (m *Manager) GetReviewerConfig() *domain.ReviewerConfig {
	return &m.config.Reviewer
}

// Reload reloads the configuration
func (m *Manager) Reload() error {
	return m.loadConfig()
}

// Validate validates the configuration
func (m *Manager) Validate() error {
	config := m.config

	// Validate server configuration
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}
	if config.Server.RateLimitRPS <= 0 {
		return fmt.Errorf("invalid rate limit rps: %f", config.Server.RateLimitRPS)
	}

	// Validate model artifact configuration
	if config.Model.Dir == "" {
		return fmt.Errorf("model artifact directory is required")
	}

	// Validate reviewer configuration
	if config.Reviewer.BaseURL == "" {
		return fmt.Errorf("reviewer base URL is required")
	}
	if config.Reviewer.MaxRetries < 1 {
		return fmt.Errorf("reviewer max retries must be at least 1")
	}
	if config.Reviewer.Timeout <= 0 {
		return fmt.Errorf("reviewer timeout must be positive")
	}

	// Validate database configuration
	switch config.Database.Driver {
	case "", "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported database driver: %s", config.Database.Driver)
	}
	if config.Database.Driver == "sqlite" && config.Database.SQLitePath == "" {
		return fmt.Errorf("sqlite path is required")
	}
	if config.Database.Driver == "postgres" && config.Database.PostgresURL == "" {
		return fmt.Errorf("postgres URL is required")
	}

	// Validate logging configuration
	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}

	return nil
}

// IsProduction returns true if running in production mode
func (m *Manager) IsProduction() bool {
	return strings.ToLower(m.config.Server.Environment) == "production"
}

// IsDevelopment returns true if running in development mode
func (m *Manager) IsDevelopment() bool {
	env := strings.ToLower(m.config.Server.Environment)
	return env == "development" || env == "dev" || env == ""
}
