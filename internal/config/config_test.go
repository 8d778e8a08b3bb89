package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.True(t, cfg.Privacy.Enabled)
	assert.Equal(t, []string{"all"}, cfg.Privacy.Detectors)
	assert.Equal(t, 1000, cfg.Pipeline.BatchSize)
	assert.Equal(t, 4, cfg.Pipeline.Workers)
	assert.Equal(t, "", cfg.Output.Path)
	assert.False(t, cfg.Sinks.Redis.Enabled)
	assert.False(t, cfg.Sinks.Postgres.Enabled)
	assert.Equal(t, "redacted_records", cfg.Sinks.Postgres.Table)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 600, cfg.Server.RateLimit.RequestsPerMin)
	assert.Equal(t, "/ws", cfg.WebSocket.Path)
	assert.Equal(t, "pii_sentinel", cfg.Metrics.Namespace)
}

func TestLoadFile(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	path := writeConfig(t, `
logging:
  level: debug
  format: console
privacy:
  detectors: [phone, passport]
pipeline:
  batch_size: 50
  workers: 2
output:
  path: out/redacted.parquet
sinks:
  redis:
    enabled: true
    stream: pii:test
    dial_timeout: 2s
server:
  port: 9000
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.Equal(t, []string{"phone", "passport"}, cfg.Privacy.Detectors)
	assert.Equal(t, 50, cfg.Pipeline.BatchSize)
	assert.Equal(t, 2, cfg.Pipeline.Workers)
	assert.Equal(t, "out/redacted.parquet", cfg.Output.Path)
	assert.True(t, cfg.Sinks.Redis.Enabled)
	assert.Equal(t, "pii:test", cfg.Sinks.Redis.Stream)
	assert.Equal(t, 2*time.Second, cfg.Sinks.Redis.DialTimeout)
	assert.Equal(t, 9000, cfg.Server.Port)

	// untouched keys keep their defaults
	assert.True(t, cfg.Privacy.Enabled)
	assert.Equal(t, 10000, cfg.Pipeline.ProgressReport)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	t.Setenv("SENTINEL_LOGGING_LEVEL", "warn")
	t.Setenv("SENTINEL_SERVER_PORT", "9090")
	t.Setenv("SENTINEL_OUTPUT_FORMAT", "json")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "json", cfg.Output.Format)
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	path := writeConfig(t, "logging:\n  level: verbose\n")

	_, err := Load(path)
	assert.ErrorContains(t, err, "invalid log level")
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		errMsg string
	}{
		{"defaults", func(*Config) {}, ""},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }, "invalid log format"},
		{"batch size", func(c *Config) { c.Pipeline.BatchSize = 0 }, "invalid batch size"},
		{"workers", func(c *Config) { c.Pipeline.Workers = -1 }, "invalid worker count"},
		{"output format", func(c *Config) { c.Output.Format = "xlsx" }, "invalid output format"},
		{"port", func(c *Config) { c.Server.Port = 70000 }, "invalid server port"},
		{"rate limit", func(c *Config) { c.Server.RateLimit.RequestsPerMin = 0 }, "invalid rate limit"},
		{"rate limit disabled", func(c *Config) {
			c.Server.RateLimit.Enabled = false
			c.Server.RateLimit.RequestsPerMin = 0
		}, ""},
		{"redis stream", func(c *Config) {
			c.Sinks.Redis.Enabled = true
			c.Sinks.Redis.Stream = ""
		}, "without a stream name"},
		{"postgres table", func(c *Config) {
			c.Sinks.Postgres.Enabled = true
			c.Sinks.Postgres.Table = ""
		}, "without a table name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GetDefaults()
			tt.modify(cfg)

			err := validateConfig(cfg)
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.errMsg)
		})
	}
}
