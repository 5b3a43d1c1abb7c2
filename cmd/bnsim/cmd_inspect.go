package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Priesemann-Group/BN-coalescence-finite-size-scaling/internal/simulation"
)

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <file.gz>",
		Short: "Summarise a stream written by bnsim",
		Long: `Read a compressed record stream back and print summary statistics of
its columns: moments of N_a and N_int for time series, moments and a
log-binned size histogram for avalanche streams.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			rep, err := simulation.Inspect(args[0])
			if err != nil {
				return fmt.Errorf("failed to inspect %s: %w", args[0], err)
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(rep)
			}
			fmt.Fprint(cmd.OutOrStdout(), rep.String())
			return nil
		},
	}
}
