package main

import (
	"encoding/json"
	"fmt"
	"runtime"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Priesemann-Group/BN-coalescence-finite-size-scaling/internal/backup"
	"github.com/Priesemann-Group/BN-coalescence-finite-size-scaling/internal/registry"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			out := cmd.OutOrStdout()

			if jsonOut {
				return json.NewEncoder(out).Encode(map[string]string{
					"version":         version,
					"commit":          commit,
					"date":            date,
					"go":              runtime.Version(),
					"registry_schema": strconv.Itoa(registry.SchemaVersion),
					"backup_format":   strconv.Itoa(backup.FormatVersion),
				})
			}
			fmt.Fprintf(out, "bnsim %s (commit %s, built %s, %s)\n", version, commit, date, runtime.Version())
			fmt.Fprintf(out, "  registry schema v%d, backup format v%d\n", registry.SchemaVersion, backup.FormatVersion)
			return nil
		},
	}
}
