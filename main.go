package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/rsaemann/GULLI-sub003/config"
	"github.com/rsaemann/GULLI-sub003/sim"
	"github.com/rsaemann/GULLI-sub003/telemetry"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs, snapshots and config (overrides config)")
	steps := flag.Int("steps", 0, "Stop after N steps (0 = use config)")
	seed := flag.Uint64("seed", 0, "Dispersion RNG seed (0 = use config)")
	workers := flag.Int("workers", -1, "Worker goroutines (-1 = use config, 0 = GOMAXPROCS)")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")

	flag.Parse()

	// Set up slog (JSON to stdout for structured logging)
	var level slog.LevelVar
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		slog.Error("invalid log level", "level", *logLevel, "error", err)
		os.Exit(2)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: &level}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Command line overrides
	if *outputDir != "" {
		cfg.Telemetry.OutputDir = *outputDir
	}
	if *steps > 0 {
		cfg.Simulation.Steps = *steps
	}
	if *seed != 0 {
		cfg.Simulation.Seed = *seed
	}
	if *workers >= 0 {
		cfg.Simulation.Workers = *workers
	}
	if err := cfg.Refresh(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		slog.Error("run failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	om, err := telemetry.NewOutputManager(cfg.Telemetry.OutputDir)
	if err != nil {
		return err
	}
	defer func() {
		if err := om.Close(); err != nil {
			slog.Error("closing outputs", "error", err)
		}
	}()

	s, err := sim.FromConfig(cfg, om)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("starting simulation",
		"steps", cfg.Derived.Steps,
		"end_time", cfg.Derived.EndTime,
		"workers", cfg.Derived.Workers,
		"output_dir", cfg.Telemetry.OutputDir,
	)

	runErr := s.Run(ctx, cfg.Derived.Steps)
	// Flush what was computed even when interrupted.
	if err := s.Finish(); err != nil {
		return err
	}
	if runErr != nil && ctx.Err() != nil {
		slog.Info("stopped by signal", "step", s.StepCount())
		return nil
	}
	return runErr
}
