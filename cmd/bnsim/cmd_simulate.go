package main

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/Priesemann-Group/BN-coalescence-finite-size-scaling/internal/simulation"
)

// Numeric flags are parsed as floats so counts may be given in scientific
// notation (-T 1e7). These helpers reject values that are not whole numbers.

func countFlag(cmd *cobra.Command, name string) (int, error) {
	v, _ := cmd.Flags().GetFloat64(name)
	if v < 0 || v != math.Trunc(v) || v >= 1<<53 {
		return 0, fmt.Errorf("--%s must be a whole number in [0, 2^53), got %v", name, v)
	}
	return int(v), nil
}

func seedFlag(cmd *cobra.Command, name string) (uint64, error) {
	v, _ := cmd.Flags().GetFloat64(name)
	if v < 0 || v != math.Trunc(v) || v >= 1<<53 {
		return 0, fmt.Errorf("--%s must be a whole number in [0, 2^53), got %v", name, v)
	}
	return uint64(v), nil
}

// addCommonFlags registers the flags shared by both regimes.
func addCommonFlags(cmd *cobra.Command) {
	cmd.Flags().Float64P("units", "N", 0, "Number of units (required)")
	cmd.Flags().Float64P("strength", "m", 0, "Synaptic strength (required)")
	cmd.Flags().Float64P("seed", "s", 0, "Random seed (required)")
	cmd.Flags().Float64P("steps", "T", 0, "Number of time steps")
	cmd.Flags().StringP("output", "o", "", "Output directory (required)")
	cmd.Flags().String("file", "", "Write to this file instead of the conventional name in --output")

	cmd.MarkFlagRequired("units")
	cmd.MarkFlagRequired("strength")
	cmd.MarkFlagRequired("seed")
	cmd.MarkFlagRequired("output")
}

// commonParams reads the flags registered by addCommonFlags.
func commonParams(cmd *cobra.Command) (simulation.Params, error) {
	var p simulation.Params
	var err error

	if p.N, err = countFlag(cmd, "units"); err != nil {
		return p, err
	}
	p.M, _ = cmd.Flags().GetFloat64("strength")
	if p.Seed, err = seedFlag(cmd, "seed"); err != nil {
		return p, err
	}
	if p.Steps, err = countFlag(cmd, "steps"); err != nil {
		return p, err
	}
	p.OutputDir, _ = cmd.Flags().GetString("output")
	p.Path, _ = cmd.Flags().GetString("file")
	return p, nil
}

// runSimulation loads the configuration, runs p and prints the summary.
func runSimulation(cmd *cobra.Command, p simulation.Params) error {
	cfg, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cmd, cfg)

	reg, err := openRegistry(cfg)
	if err != nil {
		logger.Warn("run registry unavailable, run will not be recorded", "error", err)
		reg = nil
	}
	if reg != nil {
		defer reg.Close()
	}

	sum, err := simulation.NewRunner(cfg, logger, reg).Run(cmd.Context(), p)
	if err != nil {
		return err
	}

	jsonOut, _ := cmd.Flags().GetBool("json")
	if jsonOut {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(sum)
	}
	printSummary(cmd.OutOrStdout(), sum)
	return nil
}

func printSummary(w io.Writer, sum *simulation.Summary) {
	fmt.Fprintf(w, "Run %s (%s)\n", sum.RunID, sum.Mode)
	fmt.Fprintf(w, "  output:     %s (%s)\n", sum.Path, humanize.Bytes(uint64(sum.SizeBytes)))
	fmt.Fprintf(w, "  steps:      %s\n", humanize.Comma(int64(sum.Steps)))
	fmt.Fprintf(w, "  records:    %s\n", humanize.Comma(int64(sum.Records)))
	if sum.Avalanches > 0 {
		fmt.Fprintf(w, "  avalanches: %s (mean size %.4g, mean duration %.4g)\n",
			humanize.Comma(int64(sum.Avalanches)), sum.MeanAvalancheSize, sum.MeanAvalancheDuration)
		fmt.Fprintf(w, "  largest:    size %s, duration %s\n",
			humanize.Comma(int64(sum.MaxAvalancheSize)), humanize.Comma(int64(sum.MaxAvalancheDuration)))
	}
	fmt.Fprintf(w, "  activity:   mean %.4g, internal ratio %.6f\n", sum.MeanActivity, sum.InternalRatio)
	fmt.Fprintf(w, "  elapsed:    %s\n", sum.Elapsed.Round(time.Millisecond))
}
