// Package config loads the SimuCore runtime configuration from JSON or YAML.
//
// Configuration is read once at startup. Missing fields take the values of
// Default; command-line flags and SIMUCORE_* environment variables are applied
// on top by cmd/simucore before Validate is called.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/c360/simucore/errors"
)

// DefaultWebsocketPort is the well-known port the observer frontend connects to.
const DefaultWebsocketPort = 8080

// Config represents the complete application configuration
type Config struct {
	// SampleFrequency is the tick rate in Hz.
	SampleFrequency float64 `json:"sample_frequency" yaml:"sample_frequency"`
	// MaxIterations stops the tick loop after that many ticks. 0 runs forever.
	MaxIterations uint64 `json:"max_iterations" yaml:"max_iterations"`

	LogEnabled bool   `json:"log_enabled" yaml:"log_enabled"`
	LogLevel   string `json:"log_level" yaml:"log_level"`
	LogFormat  string `json:"log_format" yaml:"log_format"`

	EnableWebserver  bool     `json:"enable_webserver" yaml:"enable_webserver"`
	WebsocketPort    int      `json:"websocket_port" yaml:"websocket_port"`
	HandshakeTimeout Duration `json:"handshake_timeout" yaml:"handshake_timeout"`
	ReadTimeout      Duration `json:"read_timeout" yaml:"read_timeout"`
	WriteTimeout     Duration `json:"write_timeout" yaml:"write_timeout"`

	MutationQueueSize int `json:"mutation_queue_size" yaml:"mutation_queue_size"`
	// MessageRateLimit caps inbound observer messages per second across all
	// clients. 0 disables the limit.
	MessageRateLimit float64 `json:"message_rate_limit" yaml:"message_rate_limit"`
	MessageBurst     int     `json:"message_burst" yaml:"message_burst"`

	// MetricsPort serves /metrics and /health. 0 disables the metrics server.
	MetricsPort int `json:"metrics_port" yaml:"metrics_port"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		SampleFrequency:   10,
		LogEnabled:        true,
		LogLevel:          "info",
		LogFormat:         "text",
		EnableWebserver:   true,
		WebsocketPort:     DefaultWebsocketPort,
		HandshakeTimeout:  Duration(5 * time.Second),
		ReadTimeout:       0,
		WriteTimeout:      Duration(2 * time.Second),
		MutationQueueSize: 1024,
		MessageRateLimit:  100,
		MessageBurst:      10,
	}
}

// TickPeriod converts SampleFrequency to the interval between ticks
func (c *Config) TickPeriod() time.Duration {
	if c.SampleFrequency <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / c.SampleFrequency)
}

// Validate checks ranges and enumerations
func (c *Config) Validate() error {
	var problems []string

	if c.SampleFrequency <= 0 {
		problems = append(problems, "sample_frequency must be positive")
	}
	if c.SampleFrequency > 1e6 {
		problems = append(problems, "sample_frequency must not exceed 1MHz")
	}
	if c.EnableWebserver && (c.WebsocketPort < 0 || c.WebsocketPort > 65535) {
		problems = append(problems, fmt.Sprintf("websocket_port %d out of range", c.WebsocketPort))
	}
	if c.MetricsPort < 0 || c.MetricsPort > 65535 {
		problems = append(problems, fmt.Sprintf("metrics_port %d out of range", c.MetricsPort))
	}
	if c.EnableWebserver && c.MetricsPort != 0 && c.MetricsPort == c.WebsocketPort {
		problems = append(problems, "metrics_port must differ from websocket_port")
	}
	if c.HandshakeTimeout < 0 || c.ReadTimeout < 0 || c.WriteTimeout < 0 {
		problems = append(problems, "timeouts must not be negative")
	}
	if c.MutationQueueSize < 1 {
		problems = append(problems, "mutation_queue_size must be at least 1")
	}
	if c.MessageRateLimit < 0 {
		problems = append(problems, "message_rate_limit must not be negative")
	}
	if c.MessageRateLimit > 0 && c.MessageBurst < 1 {
		problems = append(problems, "message_burst must be at least 1 when message_rate_limit is set")
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		problems = append(problems, fmt.Sprintf("log_level %q must be debug, info, warn or error", c.LogLevel))
	}
	switch strings.ToLower(c.LogFormat) {
	case "json", "text":
	default:
		problems = append(problems, fmt.Sprintf("log_format %q must be json or text", c.LogFormat))
	}

	if len(problems) > 0 {
		return errors.WrapFatal(
			fmt.Errorf("%w: %s", errors.ErrInvalidConfig, strings.Join(problems, "; ")),
			"Config", "Validate", "configuration check")
	}
	return nil
}

// Load reads path, decodes it over Default and validates the result. The
// format is chosen by extension: .yaml/.yml for YAML, anything else for JSON.
// Unknown fields are rejected in both formats.
func Load(path string) (*Config, error) {
	data, err := safeReadFile(path)
	if err != nil {
		return nil, errors.WrapFatal(err, "Config", "Load", "read config file")
	}

	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil {
			return nil, errors.WrapFatal(
				fmt.Errorf("%w: %v", errors.ErrInvalidConfig, err), "Config", "Load", "parse YAML")
		}
	default:
		if err := validateJSONDepth(data); err != nil {
			return nil, errors.WrapFatal(
				fmt.Errorf("%w: %v", errors.ErrInvalidConfig, err), "Config", "Load", "check JSON depth")
		}
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(cfg); err != nil {
			return nil, errors.WrapFatal(
				fmt.Errorf("%w: %v", errors.ErrInvalidConfig, err), "Config", "Load", "parse JSON")
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
