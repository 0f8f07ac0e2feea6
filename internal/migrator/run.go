package migrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hurou927/pgmonolayer/internal/changeset"
	"github.com/hurou927/pgmonolayer/internal/migration"
)

func newRunID() string {
	return uuid.NewString()
}

// lock creates the log tables and takes the run lock. The returned release
// keeps working after ctx is cancelled so that an interrupted run does not
// leave the lock behind.
func (m *Migrator) lock(ctx context.Context) (func(), error) {
	if err := m.init(ctx); err != nil {
		return nil, err
	}
	runID := m.newRunID()
	if err := m.log.Lock(ctx, runID); err != nil {
		if errors.Is(err, ErrMigrationInProgress) {
			return nil, err
		}
		return nil, fmt.Errorf("acquiring migration lock: %w", err)
	}
	m.logger.Debug("migration lock acquired", "run_id", runID)
	return func() {
		if err := m.log.Unlock(context.WithoutCancel(ctx), runID); err != nil {
			m.logger.Error("releasing migration lock", "run_id", runID, "error", err)
		}
	}, nil
}

func results(ms []*migration.Migration, dir Direction) []Result {
	out := make([]Result, len(ms))
	for i, mg := range ms {
		out[i] = Result{Name: mg.Name, Phase: mg.Phase, Direction: dir, Status: NotExecuted}
	}
	return out
}

// up applies ms in order under the run lock. It stops at the first failure;
// the failed migration is reported as Error and the rest as NotExecuted.
func (m *Migrator) up(ctx context.Context, s *state, ms []*migration.Migration) ([]Result, error) {
	if len(ms) == 0 {
		return nil, nil
	}
	defer m.metrics.runFinished()

	done := make(map[string]bool, len(s.executed)+len(ms))
	for name := range s.executed {
		done[name] = true
	}

	out := results(ms, Up)
	for i, mg := range ms {
		if mg.DependsOn != "" && !done[mg.DependsOn] {
			out[i].Status = Error
			return out, fmt.Errorf("%w: %s depends on %s", ErrDependencyNotExecuted, mg.Name, mg.DependsOn)
		}

		start := time.Now()
		err := m.apply(ctx, mg)
		m.metrics.observe(mg.Phase, Up, err, time.Since(start))
		if err != nil {
			out[i].Status = Error
			m.logger.Error("migration failed", "name", mg.Name, "phase", mg.Phase, "transaction", mg.Transaction, "error", err)
			return out, fmt.Errorf("applying migration %s: %w", mg.Name, err)
		}
		out[i].Status = Success
		done[mg.Name] = true
		m.logger.Info("applied migration", "name", mg.Name, "phase", mg.Phase, "duration", time.Since(start))
	}
	return out, nil
}

func (m *Migrator) apply(ctx context.Context, mg *migration.Migration) error {
	rec := Record{Name: mg.Name, Phase: mg.Phase, Checksum: mg.Checksum()}
	if mg.Transaction {
		return m.db.Transaction(ctx, func(tx Executor) error {
			if err := runSteps(ctx, tx, mg.Up); err != nil {
				return err
			}
			return m.log.Insert(ctx, tx, rec)
		})
	}
	if err := m.runGuarded(ctx, mg.Up); err != nil {
		return err
	}
	return m.log.Insert(ctx, m.db, rec)
}

// down reverts ms in order under the run lock.
func (m *Migrator) down(ctx context.Context, ms []*migration.Migration) ([]Result, error) {
	defer m.metrics.runFinished()

	out := results(ms, Down)
	for i, mg := range ms {
		start := time.Now()
		err := m.revert(ctx, mg)
		m.metrics.observe(mg.Phase, Down, err, time.Since(start))
		if err != nil {
			out[i].Status = Error
			m.logger.Error("rollback failed", "name", mg.Name, "phase", mg.Phase, "error", err)
			return out, fmt.Errorf("reverting migration %s: %w", mg.Name, err)
		}
		out[i].Status = Success
		m.logger.Info("reverted migration", "name", mg.Name, "phase", mg.Phase, "duration", time.Since(start))
	}
	return out, nil
}

func (m *Migrator) revert(ctx context.Context, mg *migration.Migration) error {
	if mg.Transaction {
		return m.db.Transaction(ctx, func(tx Executor) error {
			if err := runSteps(ctx, tx, mg.Down); err != nil {
				return err
			}
			return m.log.Delete(ctx, tx, mg.Name)
		})
	}
	if err := m.runGuarded(ctx, mg.Down); err != nil {
		return err
	}
	return m.log.Delete(ctx, m.db, mg.Name)
}

func runSteps(ctx context.Context, exec Executor, steps []changeset.Step) error {
	for _, st := range steps {
		for _, sql := range st.SQL {
			if err := exec.Exec(ctx, sql); err != nil {
				return fmt.Errorf("executing %q: %w", sql, err)
			}
		}
	}
	return nil
}

// runGuarded runs steps outside a transaction. When a step fails its
// OnFailure statements run before the error is returned, even if ctx was
// cancelled.
func (m *Migrator) runGuarded(ctx context.Context, steps []changeset.Step) error {
	for _, st := range steps {
		err := runSteps(ctx, m.db, []changeset.Step{st})
		if err == nil {
			continue
		}
		cleanup := context.WithoutCancel(ctx)
		for _, sql := range st.OnFailure {
			if cerr := m.db.Exec(cleanup, sql); cerr != nil {
				m.logger.Error("cleanup after failed step", "sql", sql, "error", cerr)
			}
		}
		return err
	}
	return nil
}
