package domain

import "time"

// Config is the complete service configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Model    ModelConfig    `mapstructure:"model"`
	Reviewer ReviewerConfig `mapstructure:"reviewer"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig configures the HTTP front door.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	RateLimitRPS    float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst  int           `mapstructure:"rate_limit_burst"`
	Environment     string        `mapstructure:"environment"`
}

// ModelConfig points at the trained classifier artifacts.
type ModelConfig struct {
	Dir             string `mapstructure:"dir"`
	WeightsFile     string `mapstructure:"weights_file"`
	FeaturesFile    string `mapstructure:"features_file"`
	LabelsFile      string `mapstructure:"labels_file"`
	RequireArtifact bool   `mapstructure:"require_artifact"`
}

// ReviewerConfig configures the generative clinical reviewer client.
type ReviewerConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	Model          string        `mapstructure:"model"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	RateLimit      float64       `mapstructure:"rate_limit"`
	Temperature    float64       `mapstructure:"temperature"`
	MaxTokens      int           `mapstructure:"max_tokens"`
}

// CacheConfig configures the reviewer opinion caches.
type CacheConfig struct {
	RedisURL   string        `mapstructure:"redis_url"`
	TTL        time.Duration `mapstructure:"ttl"`
	MemorySize int           `mapstructure:"memory_size"`
}

// DatabaseConfig configures the diagnosis history store.
type DatabaseConfig struct {
	Driver      string `mapstructure:"driver"` // "sqlite", "postgres", or "" to disable
	SQLitePath  string `mapstructure:"sqlite_path"`
	PostgresURL string `mapstructure:"postgres_url"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "json" or "text"
}
