package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var unlockCmd = &cobra.Command{
	Use:   "unlock",
	Short: "Clear the migration lock left behind by an interrupted run",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		pool, err := openPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		if err := newMigrator(pool, nil).Unlock(ctx); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Migration lock cleared.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(unlockCmd)
}
