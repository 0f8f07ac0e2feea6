package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hurou927/pgmonolayer/internal/changeset"
	"github.com/hurou927/pgmonolayer/internal/definition"
	"github.com/hurou927/pgmonolayer/internal/generate"
	"github.com/hurou927/pgmonolayer/internal/migration"
	"github.com/hurou927/pgmonolayer/internal/migrator"
	"github.com/hurou927/pgmonolayer/internal/schema"
)

var (
	generateName        string
	generateSkipRenames bool
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Write migration files for the differences between definitions and database",
	Long: `Loads the schema definitions, introspects the database, asks about possible
table and column renames, and writes one or more migration files per phase.
Changesets that need an operator to choose their phase go to the unsafe
directory.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		defs, err := definition.LoadAll(cfg.Schemas)
		if err != nil {
			return fmt.Errorf("loading schema definitions: %w", err)
		}

		pool, err := openPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		var confirm schema.Confirmer
		if !generateSkipRenames {
			p := newPrompter(cmd)
			confirm = schema.ConfirmerFunc(func(c schema.RenameCandidate) (bool, error) {
				return p.confirm(fmt.Sprintf("Rename %s?", c))
			})
		}

		remote := generate.NewDatabase(pool, cfg.Tables.Schema, migrator.Tables(cfg.Tables.Lock, cfg.Tables.Log))
		g := generate.New(remote, confirm, changesetOptions(), logger)
		cs, err := g.Changesets(ctx, defs)
		if err != nil {
			return err
		}
		if len(cs) == 0 {
			fmt.Fprintln(out, "No changes detected.")
			return nil
		}

		ms, err := migration.NewWriter(cfg.MigrationsFolder).Write(cs, generateName)
		if err != nil {
			return err
		}
		for _, m := range ms {
			fmt.Fprintf(out, "created %s\n", filepath.Join(cfg.MigrationsFolder, filepath.FromSlash(m.Path)))
			printWarnings(out, m.Warnings)
		}
		if unsafe := generate.Unsafe(cs); len(unsafe) > 0 {
			fmt.Fprintf(out, "\n%d changeset(s) were written to %s: edit their phase and move them to that phase's directory before applying.\n",
				len(unsafe), filepath.Join(cfg.MigrationsFolder, migration.UnsafeDir))
		}
		logger.Info("generated migrations", "migrations", len(ms), "changesets", len(cs))
		return nil
	},
}

func changesetOptions() changeset.Options {
	opts := changeset.Options{CamelCase: cfg.CamelCase}
	for _, a := range cfg.TypeAlignments {
		opts.TypeAlignments = append(opts.TypeAlignments, changeset.TypeAlignment{From: a.From, To: a.To})
	}
	return opts
}

func init() {
	generateCmd.Flags().StringVar(&generateName, "name", migration.DefaultName, "name appended to the migration timestamps")
	generateCmd.Flags().BoolVar(&generateSkipRenames, "skip-renames", false, "treat renamed tables and columns as dropped and created without asking")
	rootCmd.AddCommand(generateCmd)
}
