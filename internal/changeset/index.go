package changeset

import (
	"github.com/hurou927/pgmonolayer/internal/diff"
)

func createIndex(ctx *Context, d diff.Difference) []Changeset {
	table, key := objectPath(d)
	idx := ctx.Local.Table(table).Indexes[key]

	cs := ctx.newChangeset(TypeCreateIndex, PhaseExpand, PriorityCreateIndex, table)
	if ctx.AddedTables[table] {
		cs.Up = steps(ctx.createIndex(table, idx, false))
		return []Changeset{cs}
	}
	cs.Up = []Step{{
		SQL:       []string{ctx.createIndex(table, idx, true)},
		OnFailure: []string{ctx.dropIndex(idx.Name, true)},
	}}
	cs.Down = steps(ctx.dropIndex(idx.Name, true))
	cs.NoTransaction = true
	if idx.Unique {
		cs.Warnings = []Warning{{
			Type: WarningMightFail, Code: CodeAddUniqueIndex,
			Schema: ctx.SchemaName, Table: table, Columns: idx.Columns, Object: idx.Name,
		}}
	}
	return []Changeset{cs}
}

func dropIndex(ctx *Context, d diff.Difference) []Changeset {
	table, key := objectPath(d)
	idx := ctx.Remote.Table(table).Indexes[key]

	cs := ctx.newChangeset(TypeDropIndex, PhaseContract, PriorityDropIndex, table)
	if ctx.DroppedTables[table] {
		cs.Down = steps(ctx.createIndex(table, idx, false))
		return []Changeset{cs}
	}
	cs.Up = steps(ctx.dropIndex(idx.Name, true))
	cs.Down = []Step{{
		SQL:       []string{ctx.createIndex(table, idx, true)},
		OnFailure: []string{ctx.dropIndex(idx.Name, true)},
	}}
	cs.NoTransaction = true
	return []Changeset{cs}
}

func renameIndex(ctx *Context, d diff.Difference) []Changeset {
	table, _ := objectPath(d)
	return []Changeset{ctx.renameConstraintChangeset(TypeRenameIndex, table, d, ctx.explainedByRename(table))}
}
