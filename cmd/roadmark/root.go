package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Tbala-06/GIQ-2025/internal/config"
)

const defaultConfigPath = "roadmark.yaml"

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "roadmark",
	Short: "Roadmark - autonomous road-marking robot control daemon",
	Long: `Roadmark runs the onboard mission control core of the road-marking
robot: it accepts deployment orders, navigates to the target, positions the
paint stencil against the nearest road marking and dispenses paint, under a
continuously enforced safety gate.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command with signal handling.
func Execute(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default roadmark.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// loadConfig resolves the configuration for a command run. An explicitly
// passed --config must exist; otherwise a missing default file just means
// built-in defaults.
func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		if _, err := os.Stat(defaultConfigPath); err != nil {
			if os.IsNotExist(err) {
				return config.Default(), nil
			}
			return nil, err
		}
		path = defaultConfigPath
	}

	loader := config.NewLoader(config.NewValidator())
	cfg, err := loader.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading config %s: %w", path, err)
	}
	return cfg, nil
}

// setupLogger builds the process logger from config, with --verbose forcing
// debug level.
func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
