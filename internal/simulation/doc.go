// Package simulation runs one branching-network simulation end to end:
// it validates the run parameters, builds the engine for the requested
// regime, streams every record into a compressed output file, and reports
// a Summary of what was produced.
//
// Runs are strictly sequential and deterministic: the same Params always
// produce byte-identical output.
//
// Usage:
//
//	r := simulation.NewRunner(cfg, logger, reg)
//	sum, err := r.Run(ctx, simulation.Params{
//	    Mode:       network.SelfSustained,
//	    N:          10000,
//	    M:          0.99,
//	    Seed:       1,
//	    Avalanches: 100000,
//	    OutputDir:  "out",
//	})
package simulation
