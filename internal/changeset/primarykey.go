package changeset

import (
	"fmt"
	"slices"

	"github.com/hurou927/pgmonolayer/internal/diff"
	"github.com/hurou927/pgmonolayer/internal/schema"
)

func (ctx *Context) addPrimaryKey(table string, pk schema.PrimaryKeyInfo) string {
	return ctx.alterTable(table, "ADD CONSTRAINT %s PRIMARY KEY (%s)",
		schema.QuoteIdent(pk.Name), schema.QuoteColumns(pk.Columns))
}

// uniqueIndexChangeset builds the unique index backing a new primary key or
// unique constraint without blocking writes.
func (ctx *Context) uniqueIndexChangeset(table, constraint string, columns []string, nullsDistinct bool, priority int) Changeset {
	idx := schema.IndexInfo{
		Name:             schema.TwoStepIndexName(constraint),
		Columns:          columns,
		Unique:           true,
		NullsNotDistinct: !nullsDistinct,
	}
	cs := ctx.newChangeset(TypeCreateIndex, PhaseAlter, priority, table)
	cs.Up = []Step{{
		SQL:       []string{ctx.createIndex(table, idx, true)},
		OnFailure: []string{ctx.dropIndex(idx.Name, true)},
	}}
	cs.Down = steps(ctx.dropIndex(idx.Name, true))
	cs.NoTransaction = true
	return cs
}

// existingColumns returns the columns that already hold data, or all of
// them when every column is new.
func (ctx *Context) existingColumns(table string, columns []string) []string {
	var out []string
	for _, c := range columns {
		if !ctx.columnAdded(table, c) {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return columns
	}
	return out
}

// nullableBefore reports whether the column accepted NULLs before this
// run, counting columns added nullable by this run.
func (ctx *Context) nullableBefore(table, column string) bool {
	if c, ok := ctx.Remote.Column(table, column); ok {
		return c.IsNullable
	}
	c, ok := ctx.Local.Column(table, column)
	return ok && c.Default == "" && !schema.IsSerial(c.DataType) && c.Identity == schema.IdentityNone
}

func createPrimaryKey(ctx *Context, d diff.Difference) []Changeset {
	table, key := objectPath(d)
	pk := ctx.Local.Table(table).PrimaryKey[key]

	if ctx.AddedTables[table] {
		cs := ctx.newChangeset(TypeCreatePrimaryKey, PhaseExpand, PriorityCreatePrimaryKey, table)
		cs.Up = steps(ctx.addPrimaryKey(table, pk))
		return []Changeset{cs}
	}

	index := ctx.uniqueIndexChangeset(table, pk.Name, pk.Columns, true, PriorityCreatePrimaryKey)
	idxName := schema.TwoStepIndexName(pk.Name)

	var up, down []string
	old, replacing := ctx.droppedPrimaryKey(table)
	if replacing {
		up = append(up, ctx.dropConstraint(table, old.Name, false))
	}
	up = append(up, ctx.alterTable(table, "ADD CONSTRAINT %s PRIMARY KEY USING INDEX %s",
		schema.QuoteIdent(pk.Name), schema.QuoteIdent(idxName)))
	down = append(down, ctx.dropConstraint(table, pk.Name, false), ctx.dropIndex(idxName, false))
	for _, c := range pk.Columns {
		if ctx.nullableBefore(table, c) {
			down = append(down, ctx.dropNotNull(table, c))
		}
	}
	if replacing {
		up = append(up, ctx.releasedNotNull(table, old.Columns, pk.Columns)...)
		down = append(down, ctx.addPrimaryKey(table, old))
	}

	attach := ctx.newChangeset(TypeCreatePrimaryKey, PhaseAlter, PriorityCreatePrimaryKey, table)
	attach.Up = steps(up...)
	attach.Down = steps(down...)
	attach.Warnings = []Warning{{
		Type: WarningMightFail, Code: CodeAddPrimaryKey,
		Schema: ctx.SchemaName, Table: table, Columns: ctx.existingColumns(table, pk.Columns),
		Object: pk.Name,
	}}
	return []Changeset{index, attach}
}

// releasedNotNull drops NOT NULL from columns of a removed primary key that
// the local snapshot declares nullable.
func (ctx *Context) releasedNotNull(table string, removed, kept []string) []string {
	var out []string
	for _, c := range removed {
		if slices.Contains(kept, c) || ctx.columnDropped(table, c) {
			continue
		}
		if col, ok := ctx.Local.Column(table, c); ok && col.IsNullable {
			out = append(out, ctx.dropNotNull(table, c))
		}
	}
	return out
}

func dropPrimaryKey(ctx *Context, d diff.Difference) []Changeset {
	table, key := objectPath(d)
	pk := ctx.Remote.Table(table).PrimaryKey[key]

	cs := ctx.newChangeset(TypeDropPrimaryKey, PhaseContract, PriorityDropPrimaryKey, table)
	cs.Down = steps(ctx.addPrimaryKey(table, pk))
	if ctx.DroppedTables[table] {
		return []Changeset{cs}
	}
	if _, replaced := ctx.createdPrimaryKey(table); replaced {
		// swapped in place by the new key's changeset
		return nil
	}
	up := []string{ctx.dropConstraint(table, pk.Name, false), ctx.dropIndex(schema.TwoStepIndexName(pk.Name), false)}
	cs.Up = steps(append(up, ctx.releasedNotNull(table, pk.Columns, nil)...)...)
	return []Changeset{cs}
}

func renamePrimaryKey(ctx *Context, d diff.Difference) []Changeset {
	table, _ := objectPath(d)
	return []Changeset{ctx.renameConstraintChangeset(TypeRenamePrimaryKey, table, d, ctx.explainedByRename(table))}
}

// renameConstraintChangeset renames a constraint whose generated name
// changed. Renames explained by a confirmed table or column rename run in
// the expand phase; anything else is left to an operator.
func (ctx *Context) renameConstraintChangeset(t Type, table string, d diff.Difference, explained bool) Changeset {
	from, _ := d.OldValue.(string)
	to, _ := d.Value.(string)
	phase := PhaseUnsafe
	if explained {
		phase = PhaseExpand
	}
	cs := ctx.newChangeset(t, phase, PriorityRenameConstraint, table)
	if t == TypeRenameIndex {
		cs.Up = steps(fmt.Sprintf("ALTER INDEX %s RENAME TO %s", ctx.qualified(from), schema.QuoteIdent(to)))
		cs.Down = steps(fmt.Sprintf("ALTER INDEX %s RENAME TO %s", ctx.qualified(to), schema.QuoteIdent(from)))
	} else {
		cs.Up = steps(ctx.renameConstraint(table, from, to))
		cs.Down = steps(ctx.renameConstraint(table, to, from))
	}
	return cs
}
