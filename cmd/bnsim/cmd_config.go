package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/c2h5oh/datasize"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Priesemann-Group/BN-coalescence-finite-size-scaling/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage bnsim configuration",
		Long: `View and modify bnsim configuration settings.

Configuration is stored in ~/.bnsim/config.yaml. Environment variables
(BNSIM_COMPRESSION_LEVEL, BNSIM_BUFFER_SIZE, BNSIM_LOG_LEVEL,
BNSIM_REGISTRY, BNSIM_REGISTRY_PATH) override the file.

Examples:
  bnsim config list                          # Show all settings
  bnsim config get output.compression_level  # Get a specific setting
  bnsim config set output.buffer_size 1MB    # Set a setting`,
	}

	cmd.AddCommand(
		newConfigListCmd(),
		newConfigGetCmd(),
		newConfigSetCmd(),
	)

	return cmd
}

func newConfigListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all configuration settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			cfg, err := loadSettings(cmd)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				return json.NewEncoder(out).Encode(cfg)
			}

			registryPath, err := cfg.RegistryPath()
			if err != nil {
				registryPath = "(unresolved)"
			}
			fmt.Fprintln(out, "Configuration (~/.bnsim/config.yaml):")
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Output Settings:")
			fmt.Fprintf(out, "  output.compression_level:  %d\n", cfg.Output.CompressionLevel)
			fmt.Fprintf(out, "  output.buffer_size:        %s\n", cfg.Output.BufferSize.HR())
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Logging Settings:")
			fmt.Fprintf(out, "  logging.level:             %s\n", valueOrDefault(cfg.Logging.Level, "info"))
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Registry Settings:")
			fmt.Fprintf(out, "  registry.enabled:          %v\n", cfg.Registry.Enabled)
			fmt.Fprintf(out, "  registry.path:             %s\n", registryPath)
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Backup Settings:")
			fmt.Fprintf(out, "  backup.keep:               %d\n", cfg.Backup.Keep)
			return nil
		},
	}
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			key := args[0]

			cfg, err := loadSettings(cmd)
			if err != nil {
				return err
			}

			value, found := getConfigValue(cfg, key)
			if !found {
				return fmt.Errorf("unknown configuration key: %s", key)
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]interface{}{
					"key":   key,
					"value": value,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %v\n", key, value)
			return nil
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			key, value := args[0], args[1]

			path, err := configFilePath(cmd)
			if err != nil {
				return err
			}

			// Start from the file alone so environment overrides are not
			// persisted.
			cfg := config.Default()
			if _, statErr := os.Stat(path); statErr == nil {
				if cfg, err = config.LoadFromFile(path); err != nil {
					return fmt.Errorf("failed to load config: %w", err)
				}
			}

			if err := setConfigValue(cfg, key, value); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid value for %s: %w", key, err)
			}
			if err := saveConfig(cfg, path); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]interface{}{
					"status": "updated",
					"key":    key,
					"value":  value,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s\n", key, value)
			return nil
		},
	}
}

// getConfigValue retrieves a configuration value by dot-notation key.
func getConfigValue(cfg *config.BnsimConfig, key string) (interface{}, bool) {
	switch key {
	case "output.compression_level":
		return cfg.Output.CompressionLevel, true
	case "output.buffer_size":
		return cfg.Output.BufferSize.String(), true
	case "logging.level":
		return cfg.Logging.Level, true
	case "registry.enabled":
		return cfg.Registry.Enabled, true
	case "registry.path":
		return cfg.Registry.Path, true
	case "backup.keep":
		return cfg.Backup.Keep, true
	default:
		return nil, false
	}
}

// setConfigValue sets a configuration value by dot-notation key.
func setConfigValue(cfg *config.BnsimConfig, key, value string) error {
	switch key {
	case "output.compression_level":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid compression level: %s (must be an integer from -1 to 9)", value)
		}
		cfg.Output.CompressionLevel = n
	case "output.buffer_size":
		var size datasize.ByteSize
		if err := size.UnmarshalText([]byte(value)); err != nil {
			return fmt.Errorf("invalid buffer size: %s (e.g. 64KB, 1MB)", value)
		}
		cfg.Output.BufferSize = size
	case "logging.level":
		cfg.Logging.Level = value
	case "registry.enabled":
		cfg.Registry.Enabled = value == "true" || value == "1"
	case "registry.path":
		cfg.Registry.Path = value
	case "backup.keep":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid backup count: %s (must be an integer, 0 keeps all)", value)
		}
		cfg.Backup.Keep = n
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return nil
}

// configFilePath returns the --config file, or ~/.bnsim/config.yaml.
func configFilePath(cmd *cobra.Command) (string, error) {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		return path, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, config.DirName, "config.yaml"), nil
}

// saveConfig writes the configuration to path.
func saveConfig(cfg *config.BnsimConfig, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// valueOrDefault returns the value if non-empty, otherwise the default.
func valueOrDefault(value, defaultValue string) string {
	if value == "" {
		return defaultValue
	}
	return value
}
