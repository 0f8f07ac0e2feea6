package changeset

import (
	"github.com/hurou927/pgmonolayer/internal/diff"
	"github.com/hurou927/pgmonolayer/internal/schema"
)

func (ctx *Context) addUnique(table string, u schema.UniqueInfo) string {
	return ctx.alterTable(table, "ADD CONSTRAINT %s %s (%s)",
		schema.QuoteIdent(u.Name), uniqueClause(u.NullsDistinct), schema.QuoteColumns(u.Columns))
}

func createUnique(ctx *Context, d diff.Difference) []Changeset {
	table, key := objectPath(d)
	u := ctx.Local.Table(table).Unique[key]

	if ctx.AddedTables[table] {
		cs := ctx.newChangeset(TypeCreateUnique, PhaseExpand, PriorityCreateUnique, table)
		cs.Up = steps(ctx.addUnique(table, u))
		return []Changeset{cs}
	}

	index := ctx.uniqueIndexChangeset(table, u.Name, u.Columns, u.NullsDistinct, PriorityCreateUnique)
	idxName := schema.TwoStepIndexName(u.Name)
	attach := ctx.newChangeset(TypeCreateUnique, PhaseAlter, PriorityCreateUnique, table)
	attach.Up = steps(ctx.alterTable(table, "ADD CONSTRAINT %s UNIQUE USING INDEX %s",
		schema.QuoteIdent(u.Name), schema.QuoteIdent(idxName)))
	attach.Down = steps(ctx.dropConstraint(table, u.Name, false), ctx.dropIndex(idxName, false))
	attach.Warnings = []Warning{{
		Type: WarningMightFail, Code: CodeAddUniqueConstraint,
		Schema: ctx.SchemaName, Table: table, Columns: ctx.existingColumns(table, u.Columns),
		Object: u.Name,
	}}
	return []Changeset{index, attach}
}

// dropUnique also drops the index a two-step creation may have left
// behind under its temporary name.
func dropUnique(ctx *Context, d diff.Difference) []Changeset {
	table, key := objectPath(d)
	u := ctx.Remote.Table(table).Unique[key]

	cs := ctx.newChangeset(TypeDropUnique, PhaseContract, PriorityDropUnique, table)
	cs.Down = steps(ctx.addUnique(table, u))
	if !ctx.DroppedTables[table] {
		cs.Up = steps(ctx.dropConstraint(table, u.Name, false), ctx.dropIndex(schema.TwoStepIndexName(u.Name), false))
	}
	return []Changeset{cs}
}

func renameUnique(ctx *Context, d diff.Difference) []Changeset {
	table, _ := objectPath(d)
	return []Changeset{ctx.renameConstraintChangeset(TypeRenameUnique, table, d, ctx.explainedByRename(table))}
}
