package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/hurou927/pgmonolayer/internal/changeset"
	"github.com/hurou927/pgmonolayer/internal/db"
	"github.com/hurou927/pgmonolayer/internal/migration"
	"github.com/hurou927/pgmonolayer/internal/migrator"
)

func openPool(ctx context.Context) (*pgxpool.Pool, error) {
	pool, err := db.NewPool(ctx, &cfg.Connection)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	return pool, nil
}

func qualifiedTable(name string) string {
	if strings.Contains(name, ".") {
		return name
	}
	return cfg.Tables.Schema + "." + name
}

func provider() *migration.FSProvider {
	return migration.NewFSProvider(os.DirFS(cfg.MigrationsFolder))
}

func newMigrator(pool *pgxpool.Pool, metrics *migrator.Metrics) *migrator.Migrator {
	log := migrator.NewPostgresLog(pool, qualifiedTable(cfg.Tables.Lock), qualifiedTable(cfg.Tables.Log))
	return migrator.New(migrator.NewPostgres(pool), log, provider(), logger, metrics)
}

// prompter asks yes/no questions on the command's input.
type prompter struct {
	in  *bufio.Reader
	out io.Writer
}

func newPrompter(cmd *cobra.Command) *prompter {
	return &prompter{in: bufio.NewReader(cmd.InOrStdin()), out: cmd.OutOrStdout()}
}

func (p *prompter) confirm(question string) (bool, error) {
	fmt.Fprintf(p.out, "%s [y/N]: ", question)
	line, err := p.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

func printWarnings(w io.Writer, warnings []changeset.Warning) {
	for _, wn := range warnings {
		fmt.Fprintf(w, "  warning: %s\n", wn)
	}
}

func printResults(w io.Writer, results []migrator.Result) {
	for _, r := range results {
		fmt.Fprintf(w, "%-11s %-4s %-8s %s\n", r.Status, r.Direction, r.Phase, r.Name)
	}
}
