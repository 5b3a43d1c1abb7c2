package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/Priesemann-Group/BN-coalescence-finite-size-scaling/internal/backup"
	"github.com/Priesemann-Group/BN-coalescence-finite-size-scaling/internal/config"
	"github.com/Priesemann-Group/BN-coalescence-finite-size-scaling/internal/registry"
)

func newBackupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Export the run registry to a backup file",
		Long: `Back up every run in the registry to a compressed file.

Default location: ~/.bnsim/backups/bnsim-runs-YYYYMMDD-HHMMSS.json.gz
Older backups in the same directory are removed beyond backup.keep
(default 10, 0 keeps all).

Examples:
  bnsim backup                             # Backup to default location
  bnsim backup --output runs.json.gz       # Backup to specific file
  bnsim backup list                        # List backups
  bnsim backup restore <file>              # Merge a backup into the registry`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			outputPath, _ := cmd.Flags().GetString("output")

			cfg, reg, err := openRequiredRegistry(cmd)
			if err != nil {
				return err
			}
			defer reg.Close()

			if outputPath == "" {
				dir, err := backup.DefaultDir()
				if err != nil {
					return fmt.Errorf("failed to get backup directory: %w", err)
				}
				outputPath = backup.GeneratePath(dir, time.Now())
			}

			h, err := backup.Export(cmd.Context(), reg, outputPath)
			if err != nil {
				return fmt.Errorf("backup failed: %w", err)
			}

			deleted, err := backup.Rotate(filepath.Dir(outputPath), cfg.Backup.Keep)
			if err != nil {
				newLogger(cmd, cfg).Warn("failed to apply backup retention", "error", err)
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				return json.NewEncoder(out).Encode(map[string]interface{}{
					"path":      outputPath,
					"run_count": h.RunCount,
					"checksum":  h.Checksum,
					"rotated":   len(deleted),
				})
			}
			fmt.Fprintf(out, "Backup created: %d runs\n", h.RunCount)
			fmt.Fprintf(out, "  Path: %s\n", outputPath)
			return nil
		},
	}

	cmd.Flags().String("output", "", "Output file path (default: auto-generated in ~/.bnsim/backups/)")

	cmd.AddCommand(
		newBackupListCmd(),
		newBackupRestoreCmd(),
	)
	return cmd
}

func newBackupListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List backups in ~/.bnsim/backups",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			dir, err := backup.DefaultDir()
			if err != nil {
				return err
			}
			backups, err := backup.List(dir)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				if backups == nil {
					backups = []backup.Info{}
				}
				return json.NewEncoder(out).Encode(map[string]interface{}{
					"backups": backups,
					"count":   len(backups),
				})
			}
			if len(backups) == 0 {
				fmt.Fprintln(out, "No backups found.")
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "FILE\tSIZE\tCREATED")
			for _, b := range backups {
				fmt.Fprintf(tw, "%s\t%s\t%s\n",
					filepath.Base(b.Path), humanize.Bytes(uint64(b.Size)), humanize.Time(b.CreatedAt))
			}
			return tw.Flush()
		},
	}
}

func newBackupRestoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restore <file>",
		Short: "Restore runs from a backup file",
		Long: `Record the runs stored in a backup file into the registry.

Modes:
  merge   - Keep runs already in the registry (default)
  replace - Overwrite runs that share an ID with the backup`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			modeFlag, _ := cmd.Flags().GetString("mode")

			mode, err := backup.ParseRestoreMode(modeFlag)
			if err != nil {
				return err
			}

			_, reg, err := openRequiredRegistry(cmd)
			if err != nil {
				return err
			}
			defer reg.Close()

			result, err := backup.Restore(cmd.Context(), reg, args[0], mode)
			if err != nil {
				return fmt.Errorf("restore failed: %w", err)
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				return json.NewEncoder(out).Encode(result)
			}
			fmt.Fprintf(out, "Restored %d runs (%d skipped)\n", result.Restored, result.Skipped)
			return nil
		},
	}

	cmd.Flags().String("mode", string(backup.RestoreMerge), "Restore mode: merge or replace")
	return cmd
}

// openRequiredRegistry loads settings and opens the registry, failing when
// it is disabled.
func openRequiredRegistry(cmd *cobra.Command) (*config.BnsimConfig, *registry.Registry, error) {
	cfg, err := loadSettings(cmd)
	if err != nil {
		return nil, nil, err
	}
	if !cfg.Registry.Enabled {
		return nil, nil, fmt.Errorf("run registry is disabled (registry.enabled: false)")
	}
	reg, err := openRegistry(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, reg, nil
}
