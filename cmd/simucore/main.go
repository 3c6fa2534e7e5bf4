// Package main runs the SimuCore demo plant: a pump filling a tank, published
// to browser observers over WebSocket.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/c360/simucore/config"
	"github.com/c360/simucore/engine"
	"github.com/c360/simucore/metric"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "simucore"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := newRootCommand().Execute(); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

// run is the root command: load configuration, build the demo plant and tick
// it until a signal arrives or the iteration budget is spent.
func run(cmd *cobra.Command, opts *CLIOptions) error {
	cfg, err := initializeConfiguration(cmd, opts)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg, cmd.ErrOrStderr())
	slog.SetDefault(logger)

	if opts.Validate {
		logger.Info("Configuration is valid", "config_path", opts.ConfigPath)
		return nil
	}

	logger.Info("Starting SimuCore",
		"version", Version,
		"build_time", BuildTime,
		"config_path", opts.ConfigPath,
		"sample_frequency", cfg.SampleFrequency)

	metricsRegistry := metric.NewMetricsRegistry()
	app, err := engine.NewApplication(appName, cfg, engine.Deps{
		Logger:          logger,
		MetricsRegistry: metricsRegistry,
	})
	if err != nil {
		return fmt.Errorf("create application: %w", err)
	}
	plant := &demoPlant{}
	app.OnBind(plant.bind)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	runCtx, cancelRun := context.WithCancel(gctx)
	defer cancelRun()

	if cfg.MetricsPort > 0 {
		srv := metric.NewServer(cfg.MetricsPort, "/metrics", metricsRegistry).WithHealthHandler(app.Health())
		if err := srv.Start(runCtx); err != nil {
			return fmt.Errorf("start metrics server: %w", err)
		}
		logger.Info("Metrics server listening", "addr", srv.Addr().String())
		g.Go(func() error {
			<-runCtx.Done()
			return srv.Stop(opts.ShutdownTimeout)
		})
	}

	// The tick loop ending for any reason releases the metrics server.
	g.Go(func() error {
		defer cancelRun()
		return app.Run(runCtx)
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("run application: %w", err)
	}
	logger.Info("SimuCore shutdown complete", "iterations", app.Iterations())
	return nil
}

// initializeConfiguration loads the file named by --config, or the defaults
// when none is given, then applies flag and environment overrides.
func initializeConfiguration(cmd *cobra.Command, opts *CLIOptions) (*config.Config, error) {
	cfg := config.Default()
	if opts.ConfigPath != "" {
		loaded, err := config.Load(opts.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}

	applyOverrides(cmd, opts, cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// describe builds the demo plant without starting it and prints its outline
// or its snapshot document.
func describe(cmd *cobra.Command, asJSON bool) error {
	cfg := config.Default()
	cfg.EnableWebserver = false
	cfg.LogEnabled = false

	app, err := engine.NewApplication(appName, cfg, engine.Deps{Logger: setupLogger(cfg, cmd.ErrOrStderr())})
	if err != nil {
		return err
	}
	plant := &demoPlant{}
	app.OnBind(plant.bind)

	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
	defer cancel()
	if err := app.Init(ctx); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if !asJSON {
		_, err = fmt.Fprint(out, app.Tree().Describe(app.Root()))
		return err
	}
	doc, err := app.Snapshot()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(doc))
	return err
}
