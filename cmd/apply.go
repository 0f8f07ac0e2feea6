package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hurou927/pgmonolayer/internal/changeset"
	"github.com/hurou927/pgmonolayer/internal/migration"
	"github.com/hurou927/pgmonolayer/internal/migrator"
)

const phaseAll = "all"

var (
	applyPhase       string
	applyTarget      string
	applyYes         bool
	applyMetricsFile string
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply pending migrations",
	Long: `Applies pending migrations of one phase, or of every phase in rollout order.
A phase is refused while an earlier phase still has pending migrations.
Pending migrations with blocking, might-fail or destructive warnings must be
acknowledged unless --yes is given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		all := applyPhase == phaseAll
		phase, ok := changeset.ParsePhase(applyPhase)
		if !all && (!ok || phase == changeset.PhaseUnsafe) {
			return fmt.Errorf("unknown phase %q (supported: expand, alter, data, contract, all)", applyPhase)
		}
		if applyTarget != "" && all {
			return fmt.Errorf("--migration requires --phase")
		}

		pool, err := openPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		var metrics *migrator.Metrics
		if applyMetricsFile != "" {
			metrics = migrator.NewMetrics()
			defer func() {
				if err := metrics.WriteToTextfile(applyMetricsFile); err != nil {
					logger.Error("writing metrics", "path", applyMetricsFile, "error", err)
				}
			}()
		}
		m := newMigrator(pool, metrics)

		if !applyYes && (all || phase == changeset.PhaseAlter || phase == changeset.PhaseContract) {
			ok, err := acknowledgeWarnings(ctx, cmd, m, phase)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(out, "Apply cancelled.")
				return nil
			}
		}

		var results []migrator.Result
		switch {
		case all:
			results, err = m.MigrateToLatest(ctx)
		case applyTarget != "":
			results, err = m.MigrateTargetUpInPhase(ctx, phase, applyTarget)
		default:
			results, err = m.MigratePhaseToLatest(ctx, phase)
		}
		printResults(out, results)

		var pending *migrator.PendingPhasesError
		if errors.As(err, &pending) {
			return fmt.Errorf("%w; run apply --phase %s first", err, pending.Blocking[0])
		}
		if err != nil {
			return err
		}
		if len(results) == 0 {
			fmt.Fprintln(out, "No pending migrations.")
		}
		return nil
	},
}

// acknowledgeWarnings lists the warnings of the migrations about to run and
// asks the operator to go on. phase "" means every phase.
func acknowledgeWarnings(ctx context.Context, cmd *cobra.Command, m *migrator.Migrator, phase changeset.Phase) (bool, error) {
	report, err := m.Pending(ctx)
	if err != nil {
		return false, err
	}
	ms, err := provider().Migrations()
	if err != nil {
		return false, err
	}
	byName := make(map[string]*migration.Migration, len(ms))
	for _, mg := range ms {
		byName[mg.Name] = mg
	}

	out := cmd.OutOrStdout()
	found := false
	for _, r := range report.Pending {
		if phase != "" && r.Phase != phase {
			continue
		}
		var warnings []changeset.Warning
		for _, w := range byName[r.Name].Warnings {
			if w.RequiresAcknowledgement() {
				warnings = append(warnings, w)
			}
		}
		if len(warnings) == 0 {
			continue
		}
		found = true
		fmt.Fprintf(out, "%s (%s)\n", r.Name, r.Phase)
		printWarnings(out, warnings)
	}
	if !found {
		return true, nil
	}
	return newPrompter(cmd).confirm("Apply migrations with the warnings above?")
}

func init() {
	applyCmd.Flags().StringVar(&applyPhase, "phase", phaseAll, "phase to apply: expand, alter, data, contract or all")
	applyCmd.Flags().StringVar(&applyTarget, "migration", "", "apply the phase up to and including this migration")
	applyCmd.Flags().BoolVarP(&applyYes, "yes", "y", false, "do not ask to acknowledge warnings")
	applyCmd.Flags().StringVar(&applyMetricsFile, "metrics-file", "", "write run metrics to this file in the node exporter textfile format")
	rootCmd.AddCommand(applyCmd)
}
