package main

import (
	"github.com/spf13/cobra"

	"github.com/Priesemann-Group/BN-coalescence-finite-size-scaling/internal/network"
)

func newSTSCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sts",
		Short: "Run a self-sustained branching network",
		Long: `Simulate a self-sustained branching network. Whenever the network is
quiescent a single random unit is activated; each active unit then
stimulates Binomial(N, m/N) distinct units per step.

With -A the run stops after that many avalanches and writes one
"duration size" record per avalanche. With -T it stops after that many
steps and writes the activity time series.

Examples:
  bnsim sts -N 1e4 -m 0.99 -s 1 -A 1e5 -o data
  bnsim sts -N 1e4 -m 0.9 -s 1 -T 1e6 -o data`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := commonParams(cmd)
			if err != nil {
				return err
			}
			p.Mode = network.SelfSustained
			if p.Avalanches, err = countFlag(cmd, "avalanches"); err != nil {
				return err
			}
			return runSimulation(cmd, p)
		},
	}

	addCommonFlags(cmd)
	cmd.Flags().Float64P("avalanches", "A", 0, "Number of avalanches to record")
	cmd.MarkFlagsOneRequired("steps", "avalanches")
	cmd.MarkFlagsMutuallyExclusive("steps", "avalanches")

	return cmd
}
