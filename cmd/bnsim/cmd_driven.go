package main

import (
	"github.com/spf13/cobra"

	"github.com/Priesemann-Group/BN-coalescence-finite-size-scaling/internal/network"
)

func newDrivenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "driven",
		Short: "Run an externally driven branching network",
		Long: `Simulate a branching network with Poisson external input of rate h per
unit. Connection probabilities are corrected for the finite number of
units at the current activity level. One "N_a N_int" record is written
per step.

-h is the drive rate; use --help for help.

Example:
  bnsim driven -N 1e4 -m 0.9 -h 1e-3 -s 1 -T 1e7 -o data`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := commonParams(cmd)
			if err != nil {
				return err
			}
			p.Mode = network.Driven
			p.H, _ = cmd.Flags().GetFloat64("drive")
			return runSimulation(cmd, p)
		},
	}

	addCommonFlags(cmd)
	// -h belongs to --drive, so help is registered without a shorthand.
	cmd.Flags().Bool("help", false, "help for driven")
	cmd.Flags().Float64P("drive", "h", 0, "External drive rate per unit (required)")
	cmd.MarkFlagRequired("drive")
	cmd.MarkFlagRequired("steps")

	return cmd
}
