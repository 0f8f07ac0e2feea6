package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hurou927/pgmonolayer/internal/changeset"
	"github.com/hurou927/pgmonolayer/internal/migration"
)

var (
	scaffoldPhase         string
	scaffoldName          string
	scaffoldNoTransaction bool
)

var scaffoldCmd = &cobra.Command{
	Use:   "scaffold",
	Short: "Write an empty migration to fill in by hand",
	RunE: func(cmd *cobra.Command, args []string) error {
		phase, ok := changeset.ParsePhase(scaffoldPhase)
		if !ok || phase == changeset.PhaseUnsafe {
			return fmt.Errorf("unknown phase %q (supported: expand, alter, data, contract)", scaffoldPhase)
		}
		m, err := migration.NewWriter(cfg.MigrationsFolder).Scaffold(phase, scaffoldName, !scaffoldNoTransaction)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created %s\n", filepath.Join(cfg.MigrationsFolder, filepath.FromSlash(m.Path)))
		return nil
	},
}

func init() {
	scaffoldCmd.Flags().StringVar(&scaffoldPhase, "phase", string(changeset.PhaseData), "phase of the migration")
	scaffoldCmd.Flags().StringVar(&scaffoldName, "name", migration.DefaultName, "name appended to the migration timestamp")
	scaffoldCmd.Flags().BoolVar(&scaffoldNoTransaction, "no-transaction", false, "run the migration outside a transaction")
	rootCmd.AddCommand(scaffoldCmd)
}
