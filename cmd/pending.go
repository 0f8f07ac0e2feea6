package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hurou927/pgmonolayer/internal/changeset"
)

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List pending migrations per phase",
	Long: `Lists the migrations that have not been applied yet, grouped by phase, the
files in the unsafe directory that still need a phase, and applied migrations
whose files changed or disappeared.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		pool, err := openPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		report, err := newMigrator(pool, nil).Pending(ctx)
		if err != nil {
			return err
		}

		if len(report.Pending) == 0 {
			fmt.Fprintln(out, "No pending migrations.")
		}
		for _, phase := range changeset.Phases {
			first := true
			for _, r := range report.Pending {
				if r.Phase != phase {
					continue
				}
				if first {
					fmt.Fprintf(out, "%s:\n", phase)
					first = false
				}
				fmt.Fprintf(out, "  %s\n", r.Name)
			}
		}

		unsafe, err := provider().Unsafe()
		if err != nil {
			return err
		}
		for _, m := range unsafe {
			fmt.Fprintf(out, "warning: %s needs a phase before it can be applied\n", m.Path)
		}
		for _, name := range report.Drifted {
			fmt.Fprintf(out, "warning: applied migration %s was modified after it ran\n", name)
		}
		for _, name := range report.Missing {
			fmt.Fprintf(out, "warning: applied migration %s has no file\n", name)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(pendingCmd)
}
