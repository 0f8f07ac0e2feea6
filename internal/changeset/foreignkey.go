package changeset

import (
	"github.com/hurou927/pgmonolayer/internal/diff"
	"github.com/hurou927/pgmonolayer/internal/schema"
)

func (ctx *Context) addForeignKey(table string, fk schema.ForeignKeyInfo, suffix string) string {
	return ctx.alterTable(table, "ADD CONSTRAINT %s %s%s", schema.QuoteIdent(fk.Name), ctx.foreignKeyClause(fk), suffix)
}

// validatedStep adds a constraint as NOT VALID and validates it separately,
// so existing rows are checked without holding an exclusive lock.
func (ctx *Context) validatedStep(table, name, add string) Step {
	return Step{
		SQL:       []string{add, ctx.alterTable(table, "VALIDATE CONSTRAINT %s", schema.QuoteIdent(name))},
		OnFailure: []string{ctx.dropConstraint(table, name, true)},
	}
}

func createForeignKey(ctx *Context, d diff.Difference) []Changeset {
	table, key := objectPath(d)
	fk := ctx.Local.Table(table).ForeignKeys[key]

	if ctx.AddedTables[table] {
		cs := ctx.newChangeset(TypeCreateForeignKey, PhaseExpand, PriorityCreateForeignKey, table)
		cs.Up = steps(ctx.addForeignKey(table, fk, ""))
		return []Changeset{cs}
	}

	cs := ctx.newChangeset(TypeCreateForeignKey, PhaseAlter, PriorityCreateForeignKey, table)
	cs.Up = []Step{ctx.validatedStep(table, fk.Name, ctx.addForeignKey(table, fk, " NOT VALID"))}
	cs.Down = steps(ctx.dropConstraint(table, fk.Name, true))
	cs.NoTransaction = true
	cs.Warnings = []Warning{{
		Type: WarningMightFail, Code: CodeAddForeignKey,
		Schema: ctx.SchemaName, Table: table, Columns: fk.Columns, Object: fk.Name,
	}}
	return []Changeset{cs}
}

func dropForeignKey(ctx *Context, d diff.Difference) []Changeset {
	table, key := objectPath(d)
	fk := ctx.Remote.Table(table).ForeignKeys[key]

	cs := ctx.newChangeset(TypeDropForeignKey, PhaseContract, PriorityDropForeignKey, table)
	cs.Down = steps(ctx.addForeignKey(table, fk, ""))
	if !ctx.DroppedTables[table] {
		cs.Up = steps(ctx.dropConstraint(table, fk.Name, false))
	}
	return []Changeset{cs}
}

func renameForeignKey(ctx *Context, d diff.Difference) []Changeset {
	table, key := objectPath(d)
	tables := []string{table}
	if fk, ok := ctx.Local.Table(table).ForeignKeys[key]; ok && fk.TargetSchema == ctx.SchemaName {
		tables = append(tables, fk.TargetTable)
	}
	return []Changeset{ctx.renameConstraintChangeset(TypeRenameForeignKey, table, d, ctx.explainedByRename(tables...))}
}
