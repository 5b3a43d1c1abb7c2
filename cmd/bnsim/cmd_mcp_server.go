package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Priesemann-Group/BN-coalescence-finite-size-scaling/internal/config"
	"github.com/Priesemann-Group/BN-coalescence-finite-size-scaling/internal/mcp"
)

func newMCPServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp-server",
		Short: "Run the MCP server over stdio",
		Long: `Start a Model Context Protocol server on stdin/stdout exposing the
tools bnsim_simulate, bnsim_runs and bnsim_inspect. Simulations run one
at a time. Tools may only write to or read from --output-dir and any
--allow-dir directories. Tool calls are logged to ~/.bnsim/audit.jsonl.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			outputDir, _ := cmd.Flags().GetString("output-dir")
			allowed, _ := cmd.Flags().GetStringSlice("allow-dir")

			cfg, err := loadSettings(cmd)
			if err != nil {
				return err
			}

			auditDir := ""
			if home, err := os.UserHomeDir(); err == nil {
				auditDir = filepath.Join(home, config.DirName)
			}

			server, err := mcp.NewServer(&mcp.Config{
				Name:      "bnsim",
				Version:   version,
				OutputDir:   outputDir,
				AllowedDirs: allowed,
				Settings:    cfg,
				Logger:      newLogger(cmd, cfg),
				AuditDir:    auditDir,
			})
			if err != nil {
				return fmt.Errorf("failed to create MCP server: %w", err)
			}

			return server.Run(cmd.Context())
		},
	}

	cmd.Flags().String("output-dir", ".", "Default directory for simulation output")
	cmd.Flags().StringSlice("allow-dir", nil, "Additional directory tools may access (repeatable)")
	return cmd
}
