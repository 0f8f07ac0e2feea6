package changeset

import (
	"github.com/hurou927/pgmonolayer/internal/diff"
)

func createTrigger(ctx *Context, d diff.Difference) []Changeset {
	table, name := objectPath(d)
	tr := ctx.Local.Table(table).Triggers[name]

	cs := ctx.newChangeset(TypeCreateTrigger, PhaseExpand, PriorityCreateTrigger, table)
	cs.Up = steps(ctx.triggerStatements(table, tr)...)
	if !ctx.AddedTables[table] {
		cs.Down = steps(ctx.dropTrigger(table, name))
	}
	return []Changeset{cs}
}

func dropTrigger(ctx *Context, d diff.Difference) []Changeset {
	table, name := objectPath(d)
	tr := ctx.Remote.Table(table).Triggers[name]

	cs := ctx.newChangeset(TypeDropTrigger, PhaseContract, PriorityDropTrigger, table)
	cs.Down = steps(ctx.triggerStatements(table, tr)...)
	if ctx.DroppedTables[table] {
		return []Changeset{cs}
	}
	cs.Up = steps(ctx.dropTrigger(table, name))
	cs.Warnings = []Warning{{
		Type: WarningDestructive, Code: CodeTriggerDrop,
		Schema: ctx.SchemaName, Table: table, Object: name,
	}}
	return []Changeset{cs}
}

// changeTrigger replaces the trigger in place.
func changeTrigger(ctx *Context, d diff.Difference) []Changeset {
	table, name := objectPath(d)
	cs := ctx.newChangeset(TypeChangeTrigger, PhaseAlter, PriorityChangeTrigger, table)
	cs.Up = steps(ctx.triggerStatements(table, ctx.Local.Table(table).Triggers[name])...)
	cs.Down = steps(ctx.triggerStatements(table, ctx.Remote.Table(table).Triggers[name])...)
	return []Changeset{cs}
}
