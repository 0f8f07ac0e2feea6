package changeset

import (
	"github.com/hurou927/pgmonolayer/internal/diff"
	"github.com/hurou927/pgmonolayer/internal/schema"
)

func (ctx *Context) addCheck(table string, c schema.CheckInfo, suffix string) string {
	return ctx.alterTable(table, "ADD CONSTRAINT %s %s%s", schema.QuoteIdent(c.Name), c.Definition, suffix)
}

func createCheck(ctx *Context, d diff.Difference) []Changeset {
	table, key := objectPath(d)
	c := ctx.Local.Table(table).Checks[key]

	if ctx.AddedTables[table] {
		cs := ctx.newChangeset(TypeCreateCheck, PhaseExpand, PriorityCreateCheck, table)
		cs.Up = steps(ctx.addCheck(table, c, ""))
		return []Changeset{cs}
	}

	cs := ctx.newChangeset(TypeCreateCheck, PhaseAlter, PriorityCreateCheck, table)
	cs.Up = []Step{ctx.validatedStep(table, c.Name, ctx.addCheck(table, c, " NOT VALID"))}
	cs.Down = steps(ctx.dropConstraint(table, c.Name, true))
	cs.NoTransaction = true
	cs.Warnings = []Warning{{
		Type: WarningMightFail, Code: CodeAddCheck,
		Schema: ctx.SchemaName, Table: table, Object: c.Name,
	}}
	return []Changeset{cs}
}

func dropCheck(ctx *Context, d diff.Difference) []Changeset {
	table, key := objectPath(d)
	c := ctx.Remote.Table(table).Checks[key]

	cs := ctx.newChangeset(TypeDropCheck, PhaseContract, PriorityDropCheck, table)
	cs.Down = steps(ctx.addCheck(table, c, ""))
	if !ctx.DroppedTables[table] {
		cs.Up = steps(ctx.dropConstraint(table, c.Name, false))
	}
	return []Changeset{cs}
}

func renameCheck(ctx *Context, d diff.Difference) []Changeset {
	table, _ := objectPath(d)
	return []Changeset{ctx.renameConstraintChangeset(TypeRenameCheck, table, d, ctx.explainedByRename(table))}
}
