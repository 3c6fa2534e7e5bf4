package main

import (
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/c360/simucore/config"
)

// CLIOptions holds command-line configuration
type CLIOptions struct {
	ConfigPath      string
	LogLevel        string
	LogFormat       string
	Debug           bool
	SampleFrequency float64
	MaxIterations   uint64
	WebsocketPort   int
	MetricsPort     int
	NoWebserver     bool
	ShutdownTimeout time.Duration
	Validate        bool
}

func newRootCommand() *cobra.Command {
	opts := &CLIOptions{}

	cmd := &cobra.Command{
		Use:     appName,
		Short:   "SimuCore - reactive component simulation runtime",
		Version: Version + " (" + BuildTime + ")",
		Long: `Run the SimuCore demo plant and stream its component tree to observers.

Every flag falls back to a SIMUCORE_* environment variable and overrides the
matching field of the configuration file.

Examples:
  # Run with a configuration file
  simucore --config=/etc/simucore/config.yaml

  # Run 100 ticks at 50Hz without the webserver
  simucore --sample-frequency=50 --max-iterations=100 --no-webserver

  # Validate configuration only
  simucore --config=config.json --validate`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.Debug {
				opts.LogLevel = "debug"
			}
			return run(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.ConfigPath, "config", "c",
		getEnv("SIMUCORE_CONFIG", ""),
		"Path to a JSON or YAML configuration file (env: SIMUCORE_CONFIG)")
	f.StringVar(&opts.LogLevel, "log-level",
		getEnv("SIMUCORE_LOG_LEVEL", "info"),
		"Log level: debug, info, warn, error (env: SIMUCORE_LOG_LEVEL)")
	f.StringVar(&opts.LogFormat, "log-format",
		getEnv("SIMUCORE_LOG_FORMAT", "text"),
		"Log format: json, text (env: SIMUCORE_LOG_FORMAT)")
	f.BoolVar(&opts.Debug, "debug",
		getEnvBool("SIMUCORE_DEBUG", false),
		"Shorthand for --log-level=debug (env: SIMUCORE_DEBUG)")
	f.Float64Var(&opts.SampleFrequency, "sample-frequency",
		getEnvFloat("SIMUCORE_SAMPLE_FREQUENCY", 10),
		"Tick rate in Hz (env: SIMUCORE_SAMPLE_FREQUENCY)")
	f.Uint64Var(&opts.MaxIterations, "max-iterations",
		getEnvUint("SIMUCORE_MAX_ITERATIONS", 0),
		"Stop after this many ticks, 0 runs forever (env: SIMUCORE_MAX_ITERATIONS)")
	f.IntVar(&opts.WebsocketPort, "websocket-port",
		getEnvInt("SIMUCORE_WEBSOCKET_PORT", config.DefaultWebsocketPort),
		"WebSocket observer port (env: SIMUCORE_WEBSOCKET_PORT)")
	f.IntVar(&opts.MetricsPort, "metrics-port",
		getEnvInt("SIMUCORE_METRICS_PORT", 0),
		"Prometheus and health port, 0 to disable (env: SIMUCORE_METRICS_PORT)")
	f.BoolVar(&opts.NoWebserver, "no-webserver",
		getEnvBool("SIMUCORE_NO_WEBSERVER", false),
		"Do not publish snapshots (env: SIMUCORE_NO_WEBSERVER)")
	f.DurationVar(&opts.ShutdownTimeout, "shutdown-timeout",
		getEnvDuration("SIMUCORE_SHUTDOWN_TIMEOUT", 5*time.Second),
		"Graceful shutdown timeout (env: SIMUCORE_SHUTDOWN_TIMEOUT)")
	f.BoolVar(&opts.Validate, "validate", false, "Validate configuration and exit")

	cmd.AddCommand(newDescribeCommand())
	return cmd
}

func newDescribeCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "describe",
		Short: "Print the demo plant's component tree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return describe(cmd, asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the snapshot document instead of the outline")
	return cmd
}

// applyOverrides copies every flag that was set on the command line or
// through its environment variable onto cfg.
func applyOverrides(cmd *cobra.Command, opts *CLIOptions, cfg *config.Config) {
	if overridden(cmd, "log-level", "SIMUCORE_LOG_LEVEL") || opts.Debug {
		cfg.LogLevel = opts.LogLevel
	}
	if overridden(cmd, "log-format", "SIMUCORE_LOG_FORMAT") {
		cfg.LogFormat = opts.LogFormat
	}
	if overridden(cmd, "sample-frequency", "SIMUCORE_SAMPLE_FREQUENCY") {
		cfg.SampleFrequency = opts.SampleFrequency
	}
	if overridden(cmd, "max-iterations", "SIMUCORE_MAX_ITERATIONS") {
		cfg.MaxIterations = opts.MaxIterations
	}
	if overridden(cmd, "websocket-port", "SIMUCORE_WEBSOCKET_PORT") {
		cfg.WebsocketPort = opts.WebsocketPort
	}
	if overridden(cmd, "metrics-port", "SIMUCORE_METRICS_PORT") {
		cfg.MetricsPort = opts.MetricsPort
	}
	if opts.NoWebserver {
		cfg.EnableWebserver = false
	}
}

func overridden(cmd *cobra.Command, flag, envKey string) bool {
	return cmd.Flags().Changed(flag) || os.Getenv(envKey) != ""
}

// Environment variable helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvUint(key string, defaultValue uint64) uint64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseUint(value, 10, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
