// Package migrator applies and reverts migration files phase by phase,
// recording every executed migration in a log table.
package migrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hurou927/pgmonolayer/internal/changeset"
	"github.com/hurou927/pgmonolayer/internal/migration"
)

var (
	// ErrMigrationInProgress is returned when another run holds the lock.
	ErrMigrationInProgress = errors.New("another migration run is in progress")
	// ErrDependencyNotExecuted is returned when a migration's depends_on
	// has not been executed.
	ErrDependencyNotExecuted = errors.New("dependency not executed")
	// ErrMigrationNotFound is returned for an unknown migration name.
	ErrMigrationNotFound = errors.New("migration not found")
	// ErrRollbackCancelled is returned when the operator declines a rollback.
	ErrRollbackCancelled = errors.New("rollback cancelled")
)

// PendingPhasesError reports earlier phases that still have pending
// migrations.
type PendingPhasesError struct {
	Phase    changeset.Phase
	Blocking []changeset.Phase
}

func (e *PendingPhasesError) Error() string {
	names := make([]string, len(e.Blocking))
	for i, p := range e.Blocking {
		names[i] = string(p)
	}
	return fmt.Sprintf("cannot apply %s migrations: there are pending %s migrations to apply", e.Phase, strings.Join(names, " and "))
}

// Direction of a migration run.
type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

// Status of a migration in a run.
type Status string

const (
	Success     Status = "Success"
	Error       Status = "Error"
	NotExecuted Status = "NotExecuted"
)

// Result is the outcome of one migration in a run.
type Result struct {
	Name      string
	Phase     changeset.Phase
	Direction Direction
	Status    Status
}

// Record is one row of the migration log.
type Record struct {
	Name       string
	Phase      changeset.Phase
	Checksum   string
	ExecutedAt time.Time
}

// Executor runs a statement.
type Executor interface {
	Exec(ctx context.Context, sql string, args ...any) error
}

// Database executes migration statements.
type Database interface {
	Executor
	// Transaction runs fn in a transaction that is committed when fn
	// returns nil and rolled back otherwise.
	Transaction(ctx context.Context, fn func(tx Executor) error) error
}

// Log persists executed migrations and the run lock.
type Log interface {
	Init(ctx context.Context) error
	// Lock marks a run as in progress or returns ErrMigrationInProgress.
	Lock(ctx context.Context, runID string) error
	Unlock(ctx context.Context, runID string) error
	// ForceUnlock clears a lock left behind by a crashed run.
	ForceUnlock(ctx context.Context) error
	// Executed returns the log in execution order.
	Executed(ctx context.Context) ([]Record, error)
	// Insert and Delete run on exec so that transactional migrations record
	// themselves in their own transaction.
	Insert(ctx context.Context, exec Executor, r Record) error
	Delete(ctx context.Context, exec Executor, name string) error
}

// Confirmer asks the operator to confirm reverting scaffolded migrations.
type Confirmer interface {
	ConfirmScaffolded(names []string) (bool, error)
}

// ConfirmerFunc adapts a function to Confirmer.
type ConfirmerFunc func(names []string) (bool, error)

// ConfirmScaffolded calls f.
func (f ConfirmerFunc) ConfirmScaffolded(names []string) (bool, error) {
	return f(names)
}

// Migrator applies and reverts migrations.
type Migrator struct {
	db       Database
	log      Log
	provider migration.Provider
	logger   *slog.Logger
	metrics  *Metrics
	newRunID func() string
}

// New returns a migrator. metrics may be nil.
func New(db Database, log Log, provider migration.Provider, logger *slog.Logger, metrics *Metrics) *Migrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Migrator{
		db:       db,
		log:      log,
		provider: provider,
		logger:   logger,
		metrics:  metrics,
		newRunID: newRunID,
	}
}

// requiredPhases lists the phases that must have no pending migrations
// before a phase may be applied on its own.
func requiredPhases(p changeset.Phase) []changeset.Phase {
	switch p {
	case changeset.PhaseAlter:
		return []changeset.Phase{changeset.PhaseExpand}
	case changeset.PhaseData, changeset.PhaseContract:
		return []changeset.Phase{changeset.PhaseExpand, changeset.PhaseAlter}
	}
	return nil
}

// state is the set of migrations and what the log says about them.
type state struct {
	all      []*migration.Migration
	executed map[string]Record
	records  []Record
}

func (m *Migrator) init(ctx context.Context) error {
	if err := m.log.Init(ctx); err != nil {
		return fmt.Errorf("initializing migration log: %w", err)
	}
	return nil
}

// state reads the migrations and the log. Runs call it while holding the
// lock so that the pending set cannot change underneath them.
func (m *Migrator) state(ctx context.Context) (*state, error) {
	all, err := m.provider.Migrations()
	if err != nil {
		return nil, fmt.Errorf("loading migrations: %w", err)
	}
	records, err := m.log.Executed(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading migration log: %w", err)
	}
	s := &state{all: all, records: records, executed: make(map[string]Record, len(records))}
	for _, r := range records {
		s.executed[r.Name] = r
	}
	return s, nil
}

// locked takes the run lock, reads the state and calls fn with it.
func (m *Migrator) locked(ctx context.Context, fn func(s *state) ([]Result, error)) ([]Result, error) {
	release, err := m.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	s, err := m.state(ctx)
	if err != nil {
		return nil, err
	}
	return fn(s)
}

func (s *state) pending(phase changeset.Phase) []*migration.Migration {
	var out []*migration.Migration
	for _, mg := range s.all {
		if _, done := s.executed[mg.Name]; done {
			continue
		}
		if phase == "" || mg.Phase == phase {
			out = append(out, mg)
		}
	}
	return out
}

func (s *state) checkPhase(phase changeset.Phase) error {
	var blocking []changeset.Phase
	for _, p := range requiredPhases(phase) {
		if len(s.pending(p)) > 0 {
			blocking = append(blocking, p)
		}
	}
	if len(blocking) > 0 {
		return &PendingPhasesError{Phase: phase, Blocking: blocking}
	}
	return nil
}

// MigrateToLatest applies every pending migration, phase by phase.
func (m *Migrator) MigrateToLatest(ctx context.Context) ([]Result, error) {
	return m.locked(ctx, func(s *state) ([]Result, error) {
		return m.up(ctx, s, s.pending(""))
	})
}

// MigratePhaseToLatest applies the pending migrations of one phase. It
// refuses to run while an earlier phase has pending migrations.
func (m *Migrator) MigratePhaseToLatest(ctx context.Context, phase changeset.Phase) ([]Result, error) {
	return m.locked(ctx, func(s *state) ([]Result, error) {
		if err := s.checkPhase(phase); err != nil {
			return nil, err
		}
		return m.up(ctx, s, s.pending(phase))
	})
}

// MigrateTargetUpInPhase applies the pending migrations of a phase up to and
// including target.
func (m *Migrator) MigrateTargetUpInPhase(ctx context.Context, phase changeset.Phase, target string) ([]Result, error) {
	return m.locked(ctx, func(s *state) ([]Result, error) {
		if err := s.checkPhase(phase); err != nil {
			return nil, err
		}
		if _, done := s.executed[target]; done {
			return nil, nil
		}
		pending := s.pending(phase)
		for i, mg := range pending {
			if mg.Name == target {
				return m.up(ctx, s, pending[:i+1])
			}
		}
		return nil, fmt.Errorf("%w: %s in phase %s", ErrMigrationNotFound, target, phase)
	})
}

// Report is the pending state of the migrations folder.
type Report struct {
	// Pending lists migrations not executed yet, in apply order.
	Pending []Result
	// Drifted lists executed migrations whose file changed since.
	Drifted []string
	// Missing lists executed migrations without a file.
	Missing []string
}

// Pending reports pending migrations and executed migrations whose files
// changed or disappeared.
func (m *Migrator) Pending(ctx context.Context) (*Report, error) {
	if err := m.init(ctx); err != nil {
		return nil, err
	}
	s, err := m.state(ctx)
	if err != nil {
		return nil, err
	}
	r := &Report{}
	byName := make(map[string]*migration.Migration, len(s.all))
	for _, mg := range s.all {
		byName[mg.Name] = mg
	}
	for _, mg := range s.pending("") {
		r.Pending = append(r.Pending, Result{Name: mg.Name, Phase: mg.Phase, Direction: Up, Status: NotExecuted})
	}
	for _, rec := range s.records {
		mg, ok := byName[rec.Name]
		switch {
		case !ok:
			r.Missing = append(r.Missing, rec.Name)
		case mg.Checksum() != rec.Checksum:
			r.Drifted = append(r.Drifted, rec.Name)
		}
	}
	return r, nil
}

// Rollback reverts executed migrations in reverse execution order down to,
// but not including, target. An empty target reverts everything. confirm is
// asked when a scaffolded migration would be reverted; nil skips the
// question.
func (m *Migrator) Rollback(ctx context.Context, target string, confirm Confirmer) ([]Result, error) {
	return m.locked(ctx, func(s *state) ([]Result, error) {
		revert, err := s.rollbackSet(target)
		if err != nil || len(revert) == 0 {
			return nil, err
		}

		var scaffolded []string
		for _, mg := range revert {
			if mg.Scaffold {
				scaffolded = append(scaffolded, mg.Name)
			}
		}
		if len(scaffolded) > 0 && confirm != nil {
			ok, err := confirm.ConfirmScaffolded(scaffolded)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, ErrRollbackCancelled
			}
		}
		return m.down(ctx, revert)
	})
}

// rollbackSet returns the executed migrations after target, latest first.
func (s *state) rollbackSet(target string) ([]*migration.Migration, error) {
	from := 0
	if target != "" {
		from = -1
		for i, r := range s.records {
			if r.Name == target {
				from = i + 1
				break
			}
		}
		if from < 0 {
			return nil, fmt.Errorf("%w: %s has not been executed", ErrMigrationNotFound, target)
		}
	}

	byName := make(map[string]*migration.Migration, len(s.all))
	for _, mg := range s.all {
		byName[mg.Name] = mg
	}
	var revert []*migration.Migration
	for i := len(s.records) - 1; i >= from; i-- {
		mg, ok := byName[s.records[i].Name]
		if !ok {
			return nil, fmt.Errorf("%w: no file for executed migration %s", ErrMigrationNotFound, s.records[i].Name)
		}
		revert = append(revert, mg)
	}
	return revert, nil
}

// Unlock clears the run lock regardless of its owner.
func (m *Migrator) Unlock(ctx context.Context) error {
	if err := m.init(ctx); err != nil {
		return err
	}
	if err := m.log.ForceUnlock(ctx); err != nil {
		return fmt.Errorf("clearing migration lock: %w", err)
	}
	m.logger.Warn("migration lock cleared")
	return nil
}
