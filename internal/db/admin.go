package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/hurou927/pgmonolayer/internal/config"
)

// Querier is the subset of *pgx.Conn used to manage databases.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Executor runs a statement, usually inside a transaction.
type Executor interface {
	Exec(ctx context.Context, sql string, args ...any) error
}

// Connect opens a single connection to database on the configured server.
// CREATE DATABASE and DROP DATABASE cannot run inside the target database,
// so they go through config.MaintenanceDatabase.
func Connect(ctx context.Context, cfg *config.Connection, database string) (*pgx.Conn, error) {
	connCfg, err := pgx.ParseConfig(cfg.DSNFor(database))
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}
	connCfg.RuntimeParams["application_name"] = "pgmonolayer"

	conn, err := pgx.ConnectConfig(ctx, connCfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", database, err)
	}
	return conn, nil
}

// DatabaseExists reports whether the server has a database called name.
func DatabaseExists(ctx context.Context, q Querier, name string) (bool, error) {
	var exists bool
	err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)`, name).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking database %s: %w", name, err)
	}
	return exists, nil
}

// CreateDatabase creates name unless it exists. It reports whether the
// database was created.
func CreateDatabase(ctx context.Context, q Querier, name string) (bool, error) {
	exists, err := DatabaseExists(ctx, q, name)
	if err != nil || exists {
		return false, err
	}
	if _, err := q.Exec(ctx, "CREATE DATABASE "+pgx.Identifier{name}.Sanitize()); err != nil {
		return false, fmt.Errorf("creating database %s: %w", name, err)
	}
	return true, nil
}

// DropDatabase drops name if it exists. It reports whether the database
// was dropped.
func DropDatabase(ctx context.Context, q Querier, name string) (bool, error) {
	exists, err := DatabaseExists(ctx, q, name)
	if err != nil || !exists {
		return false, err
	}
	if _, err := q.Exec(ctx, "DROP DATABASE IF EXISTS "+pgx.Identifier{name}.Sanitize()); err != nil {
		return false, fmt.Errorf("dropping database %s: %w", name, err)
	}
	return true, nil
}

// Table is a schema-qualified table name.
type Table struct {
	Schema string
	Name   string
}

// Seed runs script through exec. When truncate is not empty those tables
// are emptied first, restarting their identity sequences.
func Seed(ctx context.Context, exec Executor, script string, truncate []Table) error {
	if len(truncate) > 0 {
		names := make([]string, len(truncate))
		for i, t := range truncate {
			names[i] = pgx.Identifier{t.Schema, t.Name}.Sanitize()
		}
		stmt := "TRUNCATE TABLE " + strings.Join(names, ", ") + " RESTART IDENTITY CASCADE"
		if err := exec.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("truncating tables: %w", err)
		}
	}
	if strings.TrimSpace(script) == "" {
		return nil
	}
	if err := exec.Exec(ctx, script); err != nil {
		return fmt.Errorf("running seed: %w", err)
	}
	return nil
}
