package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/simucore/errors"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, DefaultWebsocketPort, cfg.WebsocketPort)
	assert.Equal(t, 100*time.Millisecond, cfg.TickPeriod())
}

func TestTickPeriod(t *testing.T) {
	tests := []struct {
		freq float64
		want time.Duration
	}{
		{1, time.Second},
		{50, 20 * time.Millisecond},
		{1000, time.Millisecond},
		{0, 0},
	}
	for _, tt := range tests {
		cfg := &Config{SampleFrequency: tt.freq}
		assert.Equal(t, tt.want, cfg.TickPeriod(), "frequency %v", tt.freq)
	}
}

func TestLoad_JSON(t *testing.T) {
	path := writeFile(t, "simucore.json", `{
		"sample_frequency": 50,
		"log_enabled": false,
		"enable_webserver": true,
		"websocket_port": 9001,
		"max_iterations": 200,
		"read_timeout": "30s",
		"write_timeout": 750
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 50.0, cfg.SampleFrequency)
	assert.False(t, cfg.LogEnabled)
	assert.Equal(t, 9001, cfg.WebsocketPort)
	assert.Equal(t, uint64(200), cfg.MaxIterations)
	assert.Equal(t, 30*time.Second, cfg.ReadTimeout.Std())
	assert.Equal(t, 750*time.Millisecond, cfg.WriteTimeout.Std())
	// untouched fields keep their defaults
	assert.Equal(t, 5*time.Second, cfg.HandshakeTimeout.Std())
	assert.Equal(t, 1024, cfg.MutationQueueSize)
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "simucore.yaml", `
sample_frequency: 20
enable_webserver: false
handshake_timeout: 1s
metrics_port: 9090
log_format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 20.0, cfg.SampleFrequency)
	assert.False(t, cfg.EnableWebserver)
	assert.Equal(t, time.Second, cfg.HandshakeTimeout.Std())
	assert.Equal(t, 9090, cfg.MetricsPort)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		want    string
	}{
		{"unknown json field", "c.json", `{"tick_rate": 5}`, "unknown field"},
		{"unknown yaml field", "c.yml", "tick_rate: 5\n", "not found"},
		{"bad duration", "c.json", `{"read_timeout": "soon"}`, "invalid duration"},
		{"invalid value", "c.json", `{"sample_frequency": -1}`, "sample_frequency must be positive"},
		{"deep json", "c.json", strings.Repeat("[", 40) + strings.Repeat("]", 40), "nesting too deep"},
		{"bad extension", "c.toml", `x = 1`, "unsupported config extension"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.file, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.True(t, errors.IsFatal(err))
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot stat")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"port range", func(c *Config) { c.WebsocketPort = 70000 }, "websocket_port"},
		{"port clash", func(c *Config) { c.MetricsPort = c.WebsocketPort }, "must differ"},
		{"negative timeout", func(c *Config) { c.ReadTimeout = Duration(-time.Second) }, "timeouts"},
		{"queue size", func(c *Config) { c.MutationQueueSize = 0 }, "mutation_queue_size"},
		{"log level", func(c *Config) { c.LogLevel = "trace" }, "log_level"},
		{"log format", func(c *Config) { c.LogFormat = "xml" }, "log_format"},
		{"rate limit", func(c *Config) { c.MessageRateLimit = -1 }, "message_rate_limit"},
		{"burst", func(c *Config) { c.MessageBurst = 0 }, "message_burst"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, errors.ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate_PortIgnoredWhenWebserverDisabled(t *testing.T) {
	cfg := Default()
	cfg.EnableWebserver = false
	cfg.WebsocketPort = -5
	assert.NoError(t, cfg.Validate())
}

func TestDuration_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(Duration(1500 * time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, `"1.5s"`, string(data))
}
