package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	config := GetDefaults()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("/etc/pii-sentinel/")
	viper.AddConfigPath("$HOME/.pii-sentinel/")

	// Environment variable overrides, e.g. SENTINEL_LOGGING_LEVEL
	viper.SetEnvPrefix("SENTINEL")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	bindEnvKeys()

	if configPath != "" {
		viper.SetConfigFile(configPath)
	}

	if err := viper.ReadInConfig(); err != nil {
		// Config file not found is not an error - we'll use defaults
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// bindEnvKeys makes environment overrides visible to Unmarshal for keys
// that are absent from the config file
func bindEnvKeys() {
	for _, key := range []string{
		"logging.level",
		"logging.format",
		"privacy.enabled",
		"pipeline.batch_size",
		"pipeline.workers",
		"output.path",
		"output.format",
		"sinks.redis.enabled",
		"sinks.redis.redis_url",
		"sinks.postgres.enabled",
		"sinks.postgres.database_url",
		"server.port",
	} {
		_ = viper.BindEnv(key)
	}
}

// validateConfig validates the loaded configuration
func validateConfig(config *Config) error {
	switch config.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", config.Logging.Level)
	}

	if config.Logging.Format != "json" && config.Logging.Format != "console" {
		return fmt.Errorf("invalid log format: %s (must be json or console)", config.Logging.Format)
	}

	if config.Pipeline.BatchSize <= 0 {
		return fmt.Errorf("invalid batch size: %d", config.Pipeline.BatchSize)
	}

	if config.Pipeline.Workers <= 0 {
		return fmt.Errorf("invalid worker count: %d", config.Pipeline.Workers)
	}

	switch config.Output.Format {
	case "", "csv", "parquet", "json":
	default:
		return fmt.Errorf("invalid output format: %s (must be csv, parquet, or json)", config.Output.Format)
	}

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if config.Server.RateLimit.Enabled && config.Server.RateLimit.RequestsPerMin <= 0 {
		return fmt.Errorf("invalid rate limit: %d requests per minute", config.Server.RateLimit.RequestsPerMin)
	}

	if config.Sinks.Redis.Enabled && config.Sinks.Redis.Stream == "" {
		return fmt.Errorf("redis sink enabled without a stream name")
	}

	if config.Sinks.Postgres.Enabled && config.Sinks.Postgres.Table == "" {
		return fmt.Errorf("postgres sink enabled without a table name")
	}

	return nil
}

// Watch starts watching the configuration file for changes
func Watch(callback func(*Config)) {
	viper.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}

		newConfig := GetDefaults()
		if err := viper.Unmarshal(newConfig); err != nil {
			return
		}

		if err := validateConfig(newConfig); err != nil {
			return
		}

		callback(newConfig)
	})
	viper.WatchConfig()
}
