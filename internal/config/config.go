// Package config provides unified configuration loading for bnsim.
// It supports loading from YAML files and environment variables.
//
// Configuration covers the ambient concerns of a run (compression, logging,
// the run registry). The dynamics are never configured here: every model
// parameter must be given explicitly on the command line.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/c2h5oh/datasize"
	"gopkg.in/yaml.v3"
)

// DirName is the per-user configuration directory under $HOME.
const DirName = ".bnsim"

// BnsimConfig contains all bnsim configuration settings.
type BnsimConfig struct {
	// Output contains settings for the compressed record streams.
	Output OutputConfig `json:"output" yaml:"output"`

	// Logging contains settings for operational and event logging.
	Logging LoggingConfig `json:"logging" yaml:"logging"`

	// Registry contains settings for the catalog of completed runs.
	Registry RegistryConfig `json:"registry" yaml:"registry"`

	// Backup contains settings for registry backups.
	Backup BackupConfig `json:"backup" yaml:"backup"`
}

// OutputConfig configures the gzip sink.
type OutputConfig struct {
	// CompressionLevel is the gzip level: -1 (default), 0 (none) to 9 (best).
	CompressionLevel int `json:"compression_level" yaml:"compression_level"`

	// BufferSize is the write buffer in front of the compressor, e.g. "64KB".
	BufferSize datasize.ByteSize `json:"buffer_size" yaml:"buffer_size"`
}

// LoggingConfig configures bnsim's logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", or "trace".
	// "debug" enables the run event log (events.jsonl next to the output).
	// "trace" additionally logs every completed avalanche.
	Level string `json:"level" yaml:"level"`
}

// RegistryConfig configures the SQLite run registry.
type RegistryConfig struct {
	// Enabled records every completed run in the registry.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Path is the registry database file. Supports ${VAR} and a leading ~.
	// Defaults to ~/.bnsim/runs.db.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// BackupConfig configures registry backups.
type BackupConfig struct {
	// Keep is how many backups to retain in the backup directory; 0 keeps all.
	Keep int `json:"keep" yaml:"keep"`
}

// Default returns a BnsimConfig with sensible defaults.
func Default() *BnsimConfig {
	return &BnsimConfig{
		Output: OutputConfig{
			CompressionLevel: -1,
			BufferSize:       64 * datasize.KB,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Registry: RegistryConfig{
			Enabled: true,
			Path:    "",
		},
		Backup: BackupConfig{
			Keep: 10,
		},
	}
}

// Load loads configuration from the default locations and environment variables.
// Order: defaults -> ~/.bnsim/config.yaml -> environment variables
func Load() (*BnsimConfig, error) {
	config := Default()

	homeDir, err := os.UserHomeDir()
	if err == nil {
		configPath := filepath.Join(homeDir, DirName, "config.yaml")
		if _, statErr := os.Stat(configPath); statErr == nil {
			fileConfig, loadErr := LoadFromFile(configPath)
			if loadErr != nil {
				return nil, fmt.Errorf("loading config file: %w", loadErr)
			}
			config = fileConfig
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file.
func LoadFromFile(path string) (*BnsimConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	config.Registry.Path = expandEnvVars(config.Registry.Path)

	return config, nil
}

// Validate checks that the configuration is valid.
func (c *BnsimConfig) Validate() error {
	if c.Output.CompressionLevel < -1 || c.Output.CompressionLevel > 9 {
		return fmt.Errorf("compression_level must be between -1 and 9, got %d", c.Output.CompressionLevel)
	}

	if c.Output.BufferSize > datasize.GB {
		return fmt.Errorf("buffer_size must be at most 1GB, got %s", c.Output.BufferSize.HR())
	}

	if c.Backup.Keep < 0 {
		return fmt.Errorf("backup.keep must not be negative, got %d", c.Backup.Keep)
	}

	validLevels := map[string]bool{"info": true, "debug": true, "trace": true}
	if c.Logging.Level != "" && !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: info, debug, trace, or empty for default)", c.Logging.Level)
	}

	return nil
}

// RegistryPath returns the resolved registry database path.
func (c *BnsimConfig) RegistryPath() (string, error) {
	p := c.Registry.Path
	if p == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		return filepath.Join(homeDir, DirName, "runs.db"), nil
	}
	if p == "~" || strings.HasPrefix(p, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		p = filepath.Join(homeDir, strings.TrimPrefix(p, "~"))
	}
	return p, nil
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(config *BnsimConfig) {
	if v := os.Getenv("BNSIM_COMPRESSION_LEVEL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Output.CompressionLevel = n
		}
	}

	if v := os.Getenv("BNSIM_BUFFER_SIZE"); v != "" {
		var size datasize.ByteSize
		if err := size.UnmarshalText([]byte(v)); err == nil {
			config.Output.BufferSize = size
		}
	}

	if v := os.Getenv("BNSIM_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}

	if v := os.Getenv("BNSIM_REGISTRY"); v != "" {
		config.Registry.Enabled = v == "true" || v == "1"
	}

	if v := os.Getenv("BNSIM_REGISTRY_PATH"); v != "" {
		config.Registry.Path = v
	}
}

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return os.Expand(s, os.Getenv)
}
