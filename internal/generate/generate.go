// Package generate computes the changesets that bring the live database to
// the state declared by the schema definitions.
package generate

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/hurou927/pgmonolayer/internal/changeset"
	"github.com/hurou927/pgmonolayer/internal/definition"
	"github.com/hurou927/pgmonolayer/internal/graph"
	"github.com/hurou927/pgmonolayer/internal/schema"
)

// Remote reads the live state of the database.
type Remote interface {
	Introspect(ctx context.Context, schemaName string) (*schema.Info, error)
	// ManagedSchemas lists the schemas created by earlier migrations.
	ManagedSchemas(ctx context.Context) ([]string, error)
}

// Database is a Remote backed by the system catalogs.
type Database struct {
	q            schema.Querier
	tablesSchema string
	exclude      []string
}

// NewDatabase returns a Remote reading from q. The exclude tables are
// skipped in tablesSchema, where the migrator keeps its own tables.
func NewDatabase(q schema.Querier, tablesSchema string, exclude []string) *Database {
	return &Database{q: q, tablesSchema: tablesSchema, exclude: exclude}
}

func (d *Database) Introspect(ctx context.Context, schemaName string) (*schema.Info, error) {
	var opts schema.IntrospectOptions
	if schemaName == d.tablesSchema {
		opts.ExcludeTables = d.exclude
	}
	return schema.Introspect(ctx, d.q, schemaName, opts)
}

func (d *Database) ManagedSchemas(ctx context.Context) ([]string, error) {
	return schema.ManagedSchemas(ctx, d.q)
}

// Generator turns schema definitions into changesets.
type Generator struct {
	remote  Remote
	confirm schema.Confirmer
	opts    changeset.Options
	logger  *slog.Logger
}

// New returns a generator. A nil confirm disables rename detection, so
// renamed tables and columns are dropped and created.
func New(remote Remote, confirm schema.Confirmer, opts changeset.Options, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{remote: remote, confirm: confirm, opts: opts, logger: logger}
}

// Changesets validates defs and returns the changesets of every schema,
// including those that drop managed schemas no longer declared, sorted as
// one run so that schemas exist before tables of other schemas reference
// them. Extensions are database-wide and belong to the first schema.
func (g *Generator) Changesets(ctx context.Context, defs []*definition.Schema) ([]changeset.Changeset, error) {
	if err := definition.Validate(defs); err != nil {
		return nil, err
	}

	var out []changeset.Changeset
	var locals, remotes []*schema.Info
	declared := make(map[string]bool, len(defs))
	for i, def := range defs {
		declared[def.Name] = true
		local, remote, cs, err := g.schemaChangesets(ctx, def, i == 0)
		if err != nil {
			return nil, err
		}
		locals = append(locals, local)
		remotes = append(remotes, remote)
		out = append(out, cs...)
	}

	managed, err := g.remote.ManagedSchemas(ctx)
	if err != nil {
		return nil, err
	}
	for _, name := range managed {
		if declared[name] {
			continue
		}
		remote, err := g.remote.Introspect(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("introspecting schema %s: %w", name, err)
		}
		remote.Extensions = map[string]bool{}
		local := schema.NewInfo(name, false)
		cs, err := changeset.Compute(local, remote, schema.Renames{}, g.opts)
		if err != nil {
			return nil, err
		}
		g.logger.Info("schema no longer declared", "schema", name, "changesets", len(cs))
		locals = append(locals, local)
		remotes = append(remotes, remote)
		out = append(out, cs...)
	}
	return changeset.Sort(out, graph.DependencyOrderAll(locals, remotes)), nil
}

func (g *Generator) schemaChangesets(ctx context.Context, def *definition.Schema, first bool) (local, remote *schema.Info, cs []changeset.Changeset, err error) {
	remote, err = g.remote.Introspect(ctx, def.Name)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("introspecting schema %s: %w", def.Name, err)
	}

	var renames schema.Renames
	if g.confirm != nil {
		plain := schema.FromDefinition(def, schema.Options{CamelCase: g.opts.CamelCase})
		renames, err = schema.ResolveRenames(plain, remote, g.confirm)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("resolving renames in schema %s: %w", def.Name, err)
		}
	}

	local = schema.FromDefinition(def, schema.Options{CamelCase: g.opts.CamelCase, Renames: renames})
	remote = schema.ApplyRenames(remote, renames)
	if !first {
		local.Extensions = map[string]bool{}
		remote.Extensions = map[string]bool{}
	}

	cs, err = changeset.Compute(local, remote, renames, g.opts)
	if err != nil {
		return nil, nil, nil, err
	}
	g.logger.Debug("computed changesets", "schema", def.Name, "changesets", len(cs),
		"renamed_tables", len(renames.Tables), "renamed_columns", len(renames.Columns))
	return local, remote, cs, nil
}

// Warnings returns the warnings of cs in order.
func Warnings(cs []changeset.Changeset) []changeset.Warning {
	var out []changeset.Warning
	for _, c := range cs {
		out = append(out, c.Warnings...)
	}
	return out
}

// Unsafe returns the changesets that need a phase assigned by hand.
func Unsafe(cs []changeset.Changeset) []changeset.Changeset {
	return slices.DeleteFunc(slices.Clone(cs), func(c changeset.Changeset) bool {
		return c.Phase != changeset.PhaseUnsafe
	})
}
