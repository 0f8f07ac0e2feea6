package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hurou927/pgmonolayer/internal/definition"
	"github.com/hurou927/pgmonolayer/internal/generate"
	"github.com/hurou927/pgmonolayer/internal/graph"
	"github.com/hurou927/pgmonolayer/internal/migrator"
)

var analyzeFormat string

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze FK dependency graph and output structure",
	Long: `Connects to the database, introspects every configured schema, builds its FK
dependency graph, and outputs it in the specified format. The order shown is
the order in which tables are created by generated migrations.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		var write func(*graph.Graph) error
		switch analyzeFormat {
		case "mermaid":
			write = func(g *graph.Graph) error { return graph.WriteMermaid(out, g) }
		case "text":
			write = func(g *graph.Graph) error { return graph.WriteText(out, g) }
		default:
			return fmt.Errorf("unknown format: %s (supported: mermaid, text)", analyzeFormat)
		}

		defs, err := definition.LoadAll(cfg.Schemas)
		if err != nil {
			return fmt.Errorf("loading schema definitions: %w", err)
		}

		pool, err := openPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		remote := generate.NewDatabase(pool, cfg.Tables.Schema, migrator.Tables(cfg.Tables.Lock, cfg.Tables.Log))
		for _, def := range defs {
			info, err := remote.Introspect(ctx, def.Name)
			if err != nil {
				return fmt.Errorf("introspecting schema %s: %w", def.Name, err)
			}
			if len(defs) > 1 {
				fmt.Fprintf(out, "# schema %s\n", def.Name)
			}
			g := graph.Build(info)
			if err := write(g); err != nil {
				return err
			}
			if err := graph.ValidateCycles(graph.TopoSortAll(g)); err != nil {
				logger.Warn("foreign keys of these tables are added after the tables are created", "schema", def.Name, "cycle", err)
			}
		}
		return nil
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeFormat, "format", "mermaid", "output format: mermaid or text")
	rootCmd.AddCommand(analyzeCmd)
}
