package migrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hurou927/pgmonolayer/internal/changeset"
)

// Default names of the executor's tables.
const (
	DefaultLockTable = "monolayer_migration_lock"
	DefaultLogTable  = "monolayer_migration"
)

// Postgres runs migrations on a pgx pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres returns a Database backed by pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Exec runs sql outside any transaction. Without arguments pgx uses the
// simple protocol, which also accepts statements such as
// CREATE INDEX CONCURRENTLY.
func (p *Postgres) Exec(ctx context.Context, sql string, args ...any) error {
	_, err := p.pool.Exec(ctx, sql, args...)
	return err
}

// Transaction runs fn in a transaction.
func (p *Postgres) Transaction(ctx context.Context, fn func(tx Executor) error) (err error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(context.WithoutCancel(ctx))
		}
	}()

	if err = fn(txExecutor{tx}); err != nil {
		return err
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

type txExecutor struct {
	tx pgx.Tx
}

func (t txExecutor) Exec(ctx context.Context, sql string, args ...any) error {
	_, err := t.tx.Exec(ctx, sql, args...)
	return err
}

// PostgresLog keeps the migration log and the run lock in two tables.
type PostgresLog struct {
	pool      *pgxpool.Pool
	lockTable string
	logTable  string
}

// NewPostgresLog returns a log stored in lockTable and logTable. Names may
// be schema qualified ("ops.migrations"); empty names use the defaults.
func NewPostgresLog(pool *pgxpool.Pool, lockTable, logTable string) *PostgresLog {
	if lockTable == "" {
		lockTable = DefaultLockTable
	}
	if logTable == "" {
		logTable = DefaultLogTable
	}
	return &PostgresLog{
		pool:      pool,
		lockTable: tableIdentifier(lockTable),
		logTable:  tableIdentifier(logTable),
	}
}

func tableIdentifier(name string) string {
	return pgx.Identifier(strings.Split(name, ".")).Sanitize()
}

// Init creates the tables and the single lock row when missing.
func (l *PostgresLog) Init(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id integer PRIMARY KEY CHECK (id = 1),
	is_locked boolean NOT NULL DEFAULT false,
	run_id uuid,
	locked_at timestamptz
)`, l.lockTable),
		fmt.Sprintf(`INSERT INTO %s (id) VALUES (1) ON CONFLICT (id) DO NOTHING`, l.lockTable),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	name text PRIMARY KEY,
	phase text NOT NULL,
	checksum text NOT NULL,
	executed_at timestamptz NOT NULL DEFAULT clock_timestamp()
)`, l.logTable),
	}
	for _, s := range stmts {
		if _, err := l.pool.Exec(ctx, s); err != nil {
			return fmt.Errorf("creating migration tables: %w", err)
		}
	}
	return nil
}

// Lock sets the lock row when it is free.
func (l *PostgresLog) Lock(ctx context.Context, runID string) error {
	tag, err := l.pool.Exec(ctx, fmt.Sprintf(
		`UPDATE %s SET is_locked = true, run_id = $1, locked_at = now() WHERE id = 1 AND NOT is_locked`,
		l.lockTable), runID)
	if err != nil {
		return fmt.Errorf("updating lock row: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrMigrationInProgress
	}
	return nil
}

// Unlock releases the lock held by runID.
func (l *PostgresLog) Unlock(ctx context.Context, runID string) error {
	_, err := l.pool.Exec(ctx, fmt.Sprintf(
		`UPDATE %s SET is_locked = false, run_id = NULL, locked_at = NULL WHERE id = 1 AND run_id = $1`,
		l.lockTable), runID)
	if err != nil {
		return fmt.Errorf("updating lock row: %w", err)
	}
	return nil
}

// ForceUnlock releases the lock whoever holds it.
func (l *PostgresLog) ForceUnlock(ctx context.Context) error {
	_, err := l.pool.Exec(ctx, fmt.Sprintf(
		`UPDATE %s SET is_locked = false, run_id = NULL, locked_at = NULL WHERE id = 1`, l.lockTable))
	if err != nil {
		return fmt.Errorf("updating lock row: %w", err)
	}
	return nil
}

// Executed returns the log rows in execution order.
func (l *PostgresLog) Executed(ctx context.Context) ([]Record, error) {
	rows, err := l.pool.Query(ctx, fmt.Sprintf(
		`SELECT name, phase, checksum, executed_at FROM %s ORDER BY executed_at, name`, l.logTable))
	if err != nil {
		return nil, fmt.Errorf("querying migration log: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		var phase string
		if err := rows.Scan(&r.Name, &phase, &r.Checksum, &r.ExecutedAt); err != nil {
			return nil, fmt.Errorf("scanning migration log: %w", err)
		}
		r.Phase = changeset.Phase(phase)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Insert records an executed migration.
func (l *PostgresLog) Insert(ctx context.Context, exec Executor, r Record) error {
	return exec.Exec(ctx, fmt.Sprintf(
		`INSERT INTO %s (name, phase, checksum) VALUES ($1, $2, $3)`, l.logTable),
		r.Name, string(r.Phase), r.Checksum)
}

// Delete removes a reverted migration.
func (l *PostgresLog) Delete(ctx context.Context, exec Executor, name string) error {
	return exec.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE name = $1`, l.logTable), name)
}

// Tables returns the unqualified names of the executor's tables so that
// introspection can skip them.
func Tables(lockTable, logTable string) []string {
	if lockTable == "" {
		lockTable = DefaultLockTable
	}
	if logTable == "" {
		logTable = DefaultLogTable
	}
	last := func(s string) string { return s[strings.LastIndex(s, ".")+1:] }
	return []string{last(lockTable), last(logTable)}
}
