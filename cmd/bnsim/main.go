package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Priesemann-Group/BN-coalescence-finite-size-scaling/internal/config"
	"github.com/Priesemann-Group/BN-coalescence-finite-size-scaling/internal/logging"
	"github.com/Priesemann-Group/BN-coalescence-finite-size-scaling/internal/registry"
)

var (
	version = "0.1.0-dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	notifySignals(sigChan)
	go func() {
		<-sigChan
		cancel()
	}()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "bnsim",
		Short: "Branching-network simulator",
		Long: `bnsim simulates branching networks of N binary units.

A self-sustained run seeds a single unit whenever the network falls
quiescent and records avalanches or the activity time series. A driven
run adds Poisson external input with rate h and uses finite-size
corrected connection probabilities.

Records are written to gzip-compressed text streams.`,
	}

	// Global flags
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON (for agent consumption)")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.bnsim/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: info, debug, or trace (overrides config)")

	rootCmd.AddCommand(
		newVersionCmd(),
		newSTSCmd(),
		newDrivenCmd(),
		newRunsCmd(),
		newInspectCmd(),
		newBackupCmd(),
		newConfigCmd(),
		newMCPServerCmd(),
	)

	return rootCmd
}

// loadSettings loads the configuration named by --config, or the default
// locations, and applies --log-level.
func loadSettings(cmd *cobra.Command) (*config.BnsimConfig, error) {
	path, _ := cmd.Flags().GetString("config")
	level, _ := cmd.Flags().GetString("log-level")

	var (
		cfg *config.BnsimConfig
		err error
	)
	if path != "" {
		cfg, err = config.LoadFromFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if level != "" {
		cfg.Logging.Level = level
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// newLogger returns the operational logger, writing to the command's
// error stream.
func newLogger(cmd *cobra.Command, cfg *config.BnsimConfig) *slog.Logger {
	return logging.NewLogger(cfg.Logging.Level, cmd.ErrOrStderr())
}

// openRegistry opens the run registry, or returns nil when it is disabled.
func openRegistry(cfg *config.BnsimConfig) (*registry.Registry, error) {
	if !cfg.Registry.Enabled {
		return nil, nil
	}
	path, err := cfg.RegistryPath()
	if err != nil {
		return nil, err
	}
	reg, err := registry.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open run registry: %w", err)
	}
	return reg, nil
}
