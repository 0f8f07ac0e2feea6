package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hurou927/pgmonolayer/internal/migration"
	"github.com/hurou927/pgmonolayer/internal/migrator"
)

var (
	rollbackTarget string
	rollbackYes    bool
)

var rollbackCmd = &cobra.Command{
	Use:   "rollback",
	Short: "Revert applied migrations",
	Long: `Reverts applied migrations in reverse execution order, down to but not
including --target. Without --target every applied migration is reverted.
Reverted migration files can then be deleted so that they are generated again.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		out := cmd.OutOrStdout()
		p := newPrompter(cmd)

		if !rollbackYes {
			what := "every applied migration"
			if rollbackTarget != "" {
				what = "the migrations applied after " + rollbackTarget
			}
			ok, err := p.confirm("Revert " + what + "?")
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(out, "Rollback cancelled.")
				return nil
			}
		}

		pool, err := openPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		confirm := migrator.ConfirmerFunc(func(names []string) (bool, error) {
			if rollbackYes {
				return true, nil
			}
			fmt.Fprintf(out, "Scaffolded migrations may not revert cleanly: %s\n", strings.Join(names, ", "))
			return p.confirm("Revert them anyway?")
		})
		results, err := newMigrator(pool, nil).Rollback(ctx, rollbackTarget, confirm)
		printResults(out, results)
		if errors.Is(err, migrator.ErrRollbackCancelled) {
			fmt.Fprintln(out, "Rollback cancelled.")
			return nil
		}
		if err != nil {
			return err
		}
		if len(results) == 0 {
			fmt.Fprintln(out, "Nothing to roll back.")
			return nil
		}

		if rollbackYes {
			return nil
		}
		ok, err := p.confirm("Delete the reverted migration files?")
		if err != nil || !ok {
			return err
		}
		return removeReverted(results)
	},
}

func removeReverted(results []migrator.Result) error {
	ms, err := provider().Migrations()
	if err != nil {
		return err
	}
	byName := make(map[string]*migration.Migration, len(ms))
	for _, m := range ms {
		byName[m.Name] = m
	}
	w := migration.NewWriter(cfg.MigrationsFolder)
	for _, r := range results {
		if m, ok := byName[r.Name]; ok && r.Status == migrator.Success {
			if err := w.Remove(m); err != nil {
				return err
			}
			logger.Info("removed migration file", "name", m.Name, "path", m.Path)
		}
	}
	return nil
}

func init() {
	rollbackCmd.Flags().StringVar(&rollbackTarget, "target", "", "keep this migration and everything applied before it")
	rollbackCmd.Flags().BoolVarP(&rollbackYes, "yes", "y", false, "do not ask for confirmation and keep the files")
	rootCmd.AddCommand(rollbackCmd)
}
