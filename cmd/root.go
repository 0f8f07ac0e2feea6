package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hurou927/pgmonolayer/internal/config"
	"github.com/hurou927/pgmonolayer/internal/logging"
)

var (
	cfgPath string
	cfg     *config.Config
	logger  *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "pgmonolayer",
	Short: "Generate and apply phased PostgreSQL schema migrations",
	Long: `pgmonolayer compares declarative schema definitions with a live PostgreSQL
database, writes the differences as reversible migration files grouped by
rollout phase (expand, alter, data, contract), and applies them phase by phase.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return err
		}
		logger = logging.New(cfg.Log.Format, cfg.Log.Level)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", config.DefaultPath, "path to YAML config file")
}

// Execute runs the root command. SIGINT and SIGTERM cancel the command's
// context; cleanup such as releasing the migration lock still runs.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
