package config

import "time"

// Config represents the main configuration structure
type Config struct {
	Logging   LoggingConfig   `yaml:"logging" mapstructure:"logging"`
	Privacy   PrivacyConfig   `yaml:"privacy" mapstructure:"privacy"`
	Pipeline  PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	Output    OutputConfig    `yaml:"output" mapstructure:"output"`
	Sinks     SinksConfig     `yaml:"sinks" mapstructure:"sinks"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	WebSocket WebSocketConfig `yaml:"websocket" mapstructure:"websocket"`
	Metrics   MetricsConfig   `yaml:"metrics" mapstructure:"metrics"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"` // json or console
	File   struct {
		Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
		Path    string `yaml:"path" mapstructure:"path"`
	} `yaml:"file" mapstructure:"file"`
}

// PrivacyConfig contains PII classification configuration
type PrivacyConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	// Detectors lists the shape rules to run: "all" or any of
	// phone, national_id, passport, handle
	Detectors []string `yaml:"detectors" mapstructure:"detectors"`
}

// PipelineConfig contains batch processing configuration
type PipelineConfig struct {
	BatchSize      int `yaml:"batch_size" mapstructure:"batch_size"`
	Workers        int `yaml:"workers" mapstructure:"workers"`
	ProgressReport int `yaml:"progress_report" mapstructure:"progress_report"`
}

// OutputConfig controls where the redacted dataset is written
type OutputConfig struct {
	// Path of the output dataset. Empty derives redacted_output<ext> from the input.
	Path string `yaml:"path" mapstructure:"path"`
	// Format is csv, parquet or json. Empty detects it from Path.
	Format string `yaml:"format" mapstructure:"format"`
}

// SinksConfig contains optional additional result sinks
type SinksConfig struct {
	Redis    RedisSinkConfig    `yaml:"redis" mapstructure:"redis"`
	Postgres PostgresSinkConfig `yaml:"postgres" mapstructure:"postgres"`
}

// RedisSinkConfig configures publishing results to a Redis stream
type RedisSinkConfig struct {
	Enabled        bool          `yaml:"enabled" mapstructure:"enabled"`
	RedisURL       string        `yaml:"redis_url" mapstructure:"redis_url"`
	Stream         string        `yaml:"stream" mapstructure:"stream"`
	MaxLen         int64         `yaml:"max_len" mapstructure:"max_len"`
	MaxConnections int           `yaml:"max_connections" mapstructure:"max_connections"`
	DialTimeout    time.Duration `yaml:"dial_timeout" mapstructure:"dial_timeout"`
}

// PostgresSinkConfig configures storing results in PostgreSQL
type PostgresSinkConfig struct {
	Enabled         bool          `yaml:"enabled" mapstructure:"enabled"`
	DatabaseURL     string        `yaml:"database_url" mapstructure:"database_url"`
	Table           string        `yaml:"table" mapstructure:"table"`
	MaxOpenConns    int           `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port         int           `yaml:"port" mapstructure:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
	MaxBodyBytes int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	RateLimit    struct {
		Enabled        bool `yaml:"enabled" mapstructure:"enabled"`
		RequestsPerMin int  `yaml:"requests_per_min" mapstructure:"requests_per_min"`
		Burst          int  `yaml:"burst" mapstructure:"burst"`
	} `yaml:"rate_limit" mapstructure:"rate_limit"`

	// TrustedProxies lists the IPs or CIDRs allowed to set X-Forwarded-For
	TrustedProxies []string `yaml:"trusted_proxies" mapstructure:"trusted_proxies"`
}

// WebSocketConfig contains live detection feed configuration
type WebSocketConfig struct {
	Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`
	Path     string `yaml:"path" mapstructure:"path"`
	Username string `yaml:"username" mapstructure:"username"`
	Password string `yaml:"password" mapstructure:"password"`
	Events   struct {
		BroadcastDetections  bool `yaml:"broadcast_detections" mapstructure:"broadcast_detections"`
		BroadcastConnections bool `yaml:"broadcast_connections" mapstructure:"broadcast_connections"`
	} `yaml:"events" mapstructure:"events"`
}

// MetricsConfig contains Prometheus configuration
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled" mapstructure:"enabled"`
	Namespace string `yaml:"namespace" mapstructure:"namespace"`
}

// GetDefaults returns a configuration with sensible defaults
func GetDefaults() *Config {
	cfg := &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Privacy: PrivacyConfig{
			Enabled:   true,
			Detectors: []string{"all"},
		},
		Pipeline: PipelineConfig{
			BatchSize:      1000,
			Workers:        4,
			ProgressReport: 10000,
		},
		Sinks: SinksConfig{
			Redis: RedisSinkConfig{
				RedisURL:       "redis://localhost:6379/0",
				Stream:         "pii-sentinel:redacted",
				MaxLen:         100000,
				MaxConnections: 10,
				DialTimeout:    5 * time.Second,
			},
			Postgres: PostgresSinkConfig{
				DatabaseURL:     "postgres://localhost:5432/sentinel?sslmode=disable",
				Table:           "redacted_records",
				MaxOpenConns:    10,
				MaxIdleConns:    5,
				ConnMaxLifetime: 30 * time.Minute,
			},
		},
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
			MaxBodyBytes: 10 << 20,
		},
		WebSocket: WebSocketConfig{
			Enabled: true,
			Path:    "/ws",
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "pii_sentinel",
		},
	}

	cfg.Logging.File.Path = "logs/sentinel.log"
	cfg.Server.RateLimit.Enabled = true
	cfg.Server.RateLimit.RequestsPerMin = 600
	cfg.Server.RateLimit.Burst = 50
	cfg.WebSocket.Events.BroadcastDetections = true
	cfg.WebSocket.Events.BroadcastConnections = true

	return cfg
}
