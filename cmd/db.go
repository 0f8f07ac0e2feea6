package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hurou927/pgmonolayer/internal/config"
	"github.com/hurou927/pgmonolayer/internal/db"
	"github.com/hurou927/pgmonolayer/internal/definition"
	"github.com/hurou927/pgmonolayer/internal/generate"
	"github.com/hurou927/pgmonolayer/internal/migrator"
)

var (
	dbYes          bool
	seedFile       string
	seedReplant    bool
	seedNoWarnings bool
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Database commands",
}

var dbCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create the configured database",
	RunE: func(cmd *cobra.Command, args []string) error {
		created, err := withMaintenance(cmd.Context(), func(conn db.Querier) (bool, error) {
			return db.CreateDatabase(cmd.Context(), conn, cfg.Connection.Database)
		})
		if err != nil {
			return err
		}
		if created {
			fmt.Fprintf(cmd.OutOrStdout(), "Database %s created.\n", cfg.Connection.Database)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "Database %s already exists.\n", cfg.Connection.Database)
		}
		return nil
	},
}

var dbDropCmd = &cobra.Command{
	Use:   "drop",
	Short: "Drop the configured database",
	RunE: func(cmd *cobra.Command, args []string) error {
		ok, err := confirmDrop(cmd)
		if err != nil || !ok {
			return err
		}
		dropped, err := dropDatabase(cmd.Context())
		if err != nil {
			return err
		}
		if dropped {
			fmt.Fprintf(cmd.OutOrStdout(), "Database %s dropped.\n", cfg.Connection.Database)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "Database %s does not exist.\n", cfg.Connection.Database)
		}
		return nil
	},
}

var dbResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Drop and recreate the configured database, then apply every migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		ok, err := confirmDrop(cmd)
		if err != nil || !ok {
			return err
		}
		if _, err := dropDatabase(ctx); err != nil {
			return err
		}
		if _, err := withMaintenance(ctx, func(conn db.Querier) (bool, error) {
			return db.CreateDatabase(ctx, conn, cfg.Connection.Database)
		}); err != nil {
			return err
		}
		logger.Info("database recreated", "database", cfg.Connection.Database)

		pool, err := openPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		results, err := newMigrator(pool, nil).MigrateToLatest(ctx)
		printResults(cmd.OutOrStdout(), results)
		return err
	},
}

var dbSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Run the seed SQL script in one transaction",
	Long: `Runs the seed SQL script against the configured database in one transaction.
With --replant every table of the configured schemas is truncated first.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		path := cfg.SeedFile
		if seedFile != "" {
			path = seedFile
		}
		script, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading seed file: %w", err)
		}

		pool, err := openPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		var truncate []db.Table
		if seedReplant {
			defs, err := definition.LoadAll(cfg.Schemas)
			if err != nil {
				return fmt.Errorf("loading schema definitions: %w", err)
			}
			remote := generate.NewDatabase(pool, cfg.Tables.Schema, migrator.Tables(cfg.Tables.Lock, cfg.Tables.Log))
			for _, def := range defs {
				info, err := remote.Introspect(ctx, def.Name)
				if err != nil {
					return fmt.Errorf("introspecting schema %s: %w", def.Name, err)
				}
				for _, name := range info.TableNames() {
					truncate = append(truncate, db.Table{Schema: def.Name, Name: name})
				}
			}
			if len(truncate) > 0 && !seedNoWarnings {
				ok, err := newPrompter(cmd).confirm(fmt.Sprintf("Truncate %d tables in %s before seeding?", len(truncate), cfg.Connection.Database))
				if err != nil || !ok {
					return err
				}
			}
		}

		err = migrator.NewPostgres(pool).Transaction(ctx, func(tx migrator.Executor) error {
			return db.Seed(ctx, tx, string(script), truncate)
		})
		if err != nil {
			return err
		}
		logger.Info("database seeded", "file", path, "truncated", len(truncate))
		return nil
	},
}

// withMaintenance runs fn on a connection to the maintenance database.
func withMaintenance(ctx context.Context, fn func(conn db.Querier) (bool, error)) (bool, error) {
	conn, err := db.Connect(ctx, &cfg.Connection, config.MaintenanceDatabase)
	if err != nil {
		return false, err
	}
	defer conn.Close(context.WithoutCancel(ctx))
	return fn(conn)
}

func dropDatabase(ctx context.Context) (bool, error) {
	return withMaintenance(ctx, func(conn db.Querier) (bool, error) {
		return db.DropDatabase(ctx, conn, cfg.Connection.Database)
	})
}

func confirmDrop(cmd *cobra.Command) (bool, error) {
	if dbYes {
		return true, nil
	}
	return newPrompter(cmd).confirm(fmt.Sprintf("Drop database %s on %s?", cfg.Connection.Database, cfg.Connection.Host))
}

func init() {
	dbDropCmd.Flags().BoolVarP(&dbYes, "yes", "y", false, "do not ask for confirmation")
	dbResetCmd.Flags().BoolVarP(&dbYes, "yes", "y", false, "do not ask for confirmation")
	dbSeedCmd.Flags().StringVarP(&seedFile, "file", "f", "", "seed SQL file (default: seed_file from the config)")
	dbSeedCmd.Flags().BoolVarP(&seedReplant, "replant", "r", false, "truncate tables before seeding")
	dbSeedCmd.Flags().BoolVarP(&seedNoWarnings, "disable-warnings", "d", false, "do not ask before truncating")
	dbCmd.AddCommand(dbCreateCmd, dbDropCmd, dbResetCmd, dbSeedCmd)
	rootCmd.AddCommand(dbCmd)
}
