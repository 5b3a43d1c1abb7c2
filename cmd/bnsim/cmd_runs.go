package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/Priesemann-Group/BN-coalescence-finite-size-scaling/internal/registry"
)

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs [id]",
		Short: "List recorded simulation runs",
		Long: `List the runs recorded in the run registry (~/.bnsim/runs.db), newest
first. With an ID argument, show that run only.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			limit, _ := cmd.Flags().GetInt("limit")

			_, reg, err := openRequiredRegistry(cmd)
			if err != nil {
				return err
			}
			defer reg.Close()

			var runs []registry.Run
			if len(args) == 1 {
				run, err := reg.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				runs = []registry.Run{*run}
			} else {
				runs, err = reg.List(cmd.Context(), limit)
				if err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				return json.NewEncoder(out).Encode(map[string]interface{}{
					"runs":  runs,
					"count": len(runs),
				})
			}

			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded.")
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tMODE\tN\tm\th\tSEED\tRECORDS\tSIZE\tSTARTED")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%g\t%g\t%d\t%s\t%s\t%s\n",
					r.ID, r.Mode, r.N, r.M, r.H, r.Seed,
					humanize.Comma(int64(r.Records)), humanize.Bytes(uint64(r.SizeBytes)),
					humanize.Time(r.StartedAt))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().Int("limit", 20, "Maximum number of runs to list (0 for all)")
	return cmd
}
