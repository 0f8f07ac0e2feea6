package changeset

import (
	"fmt"

	"github.com/hurou927/pgmonolayer/internal/diff"
	"github.com/hurou927/pgmonolayer/internal/schema"
)

// createTable creates the table with its columns only. Constraints,
// indexes and triggers of the new table get their own changesets.
func createTable(ctx *Context, d diff.Difference) []Changeset {
	name := d.Path[1]
	t := ctx.Local.Table(name)
	if t == nil {
		return nil
	}
	cs := ctx.newChangeset(TypeCreateTable, PhaseExpand, PriorityCreateTable, name)
	cs.Up = steps(ctx.createTable(name, t)...)
	cs.Down = steps("DROP TABLE IF EXISTS " + ctx.qualified(name))
	return []Changeset{cs}
}

// dropTable drops the table. The down recreates its columns; the
// constraints come back through the downs of the table's object
// changesets, which run afterwards.
func dropTable(ctx *Context, d diff.Difference) []Changeset {
	name := d.Path[1]
	t := ctx.Remote.Table(name)
	if t == nil {
		return nil
	}
	cs := ctx.newChangeset(TypeDropTable, PhaseContract, PriorityDropTable, name)
	cs.Up = steps("DROP TABLE " + ctx.qualified(name))
	cs.Down = steps(ctx.createTable(name, t)...)
	cs.Warnings = []Warning{{Type: WarningDestructive, Code: CodeTableDrop, Schema: ctx.SchemaName, Table: name}}
	return []Changeset{cs}
}

// renameChangesets emits the confirmed table and column renames. They run
// early in the expand phase so later changesets only see the new names.
func renameChangesets(ctx *Context) []Changeset {
	var out []Changeset
	for _, r := range ctx.Renames.Tables {
		cs := ctx.newChangeset(TypeRenameTable, PhaseExpand, PriorityRenameTable, r.To)
		cs.CurrentTableName = r.From
		cs.Up = steps(fmt.Sprintf("ALTER TABLE %s RENAME TO %s", ctx.qualified(r.From), schema.QuoteIdent(r.To)))
		cs.Down = steps(fmt.Sprintf("ALTER TABLE %s RENAME TO %s", ctx.qualified(r.To), schema.QuoteIdent(r.From)))
		cs.Warnings = []Warning{{
			Type: WarningBackwardIncompatible, Code: CodeTableRename,
			Schema: ctx.SchemaName, From: r.From, To: r.To,
		}}
		out = append(out, cs)
	}
	for _, r := range ctx.Renames.Columns {
		cs := ctx.newChangeset(TypeRenameColumn, PhaseExpand, PriorityRenameColumn, r.Table)
		cs.Up = steps(ctx.alterTable(r.Table, "RENAME COLUMN %s TO %s", schema.QuoteIdent(r.From), schema.QuoteIdent(r.To)))
		cs.Down = steps(ctx.alterTable(r.Table, "RENAME COLUMN %s TO %s", schema.QuoteIdent(r.To), schema.QuoteIdent(r.From)))
		cs.Warnings = []Warning{{
			Type: WarningBackwardIncompatible, Code: CodeColumnRename,
			Schema: ctx.SchemaName, Table: r.Table, From: r.From, To: r.To,
		}}
		out = append(out, cs)
	}
	return out
}
