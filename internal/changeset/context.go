package changeset

import (
	"slices"

	"github.com/hurou927/pgmonolayer/internal/diff"
	"github.com/hurou927/pgmonolayer/internal/schema"
)

// TypeAlignment declares that changing a column from From to To does not
// rewrite the table, so the change is not reported as blocking.
type TypeAlignment struct {
	From string
	To   string
}

// Options is the generation configuration threaded through every generator.
type Options struct {
	CamelCase      bool
	TypeAlignments []TypeAlignment
}

// Context is the state shared by the generators of one schema.
type Context struct {
	SchemaName string
	// Local is the desired snapshot; Remote the live one with renames
	// already applied.
	Local  *schema.Info
	Remote *schema.Info

	AddedTables    map[string]bool
	DroppedTables  map[string]bool
	AddedColumns   map[string][]string
	DroppedColumns map[string][]string

	Renames schema.Renames
	Options
}

// NewContext derives the added and dropped tables and columns from diffs.
func NewContext(local, remote *schema.Info, renames schema.Renames, diffs []diff.Difference, opts Options) *Context {
	ctx := &Context{
		SchemaName:     local.Name,
		Local:          local,
		Remote:         remote,
		AddedTables:    make(map[string]bool),
		DroppedTables:  make(map[string]bool),
		AddedColumns:   make(map[string][]string),
		DroppedColumns: make(map[string][]string),
		Renames:        renames,
		Options:        opts,
	}
	for _, d := range diffs {
		if len(d.Path) < 2 || d.Path[0] != "table" {
			continue
		}
		switch {
		case len(d.Path) == 2 && d.Type == diff.Create:
			ctx.AddedTables[d.Path[1]] = true
		case len(d.Path) == 2 && d.Type == diff.Remove:
			ctx.DroppedTables[d.Path[1]] = true
		case len(d.Path) == 4 && d.Path[2] == "columns" && d.Type == diff.Create:
			ctx.AddedColumns[d.Path[1]] = append(ctx.AddedColumns[d.Path[1]], d.Path[3])
		case len(d.Path) == 4 && d.Path[2] == "columns" && d.Type == diff.Remove:
			ctx.DroppedColumns[d.Path[1]] = append(ctx.DroppedColumns[d.Path[1]], d.Path[3])
		}
	}
	return ctx
}

func (ctx *Context) newChangeset(t Type, phase Phase, priority int, table string) Changeset {
	return Changeset{
		Priority:         priority,
		Phase:            phase,
		SchemaName:       ctx.SchemaName,
		TableName:        table,
		CurrentTableName: ctx.Renames.PreviousTable(table),
		Type:             t,
	}
}

func (ctx *Context) columnAdded(table, column string) bool {
	return slices.Contains(ctx.AddedColumns[table], column)
}

func (ctx *Context) columnDropped(table, column string) bool {
	return slices.Contains(ctx.DroppedColumns[table], column)
}

// createdPrimaryKey returns the local primary key of an existing table
// when it is not present in the live database.
func (ctx *Context) createdPrimaryKey(table string) (schema.PrimaryKeyInfo, bool) {
	return missingPrimaryKey(ctx.Local.Table(table), ctx.Remote.Table(table))
}

// droppedPrimaryKey returns the live primary key of a table that the local
// snapshot no longer declares.
func (ctx *Context) droppedPrimaryKey(table string) (schema.PrimaryKeyInfo, bool) {
	return missingPrimaryKey(ctx.Remote.Table(table), ctx.Local.Table(table))
}

func missingPrimaryKey(from, in *schema.TableInfo) (schema.PrimaryKeyInfo, bool) {
	if from == nil || in == nil {
		return schema.PrimaryKeyInfo{}, false
	}
	for key, pk := range from.PrimaryKey {
		if _, ok := in.PrimaryKey[key]; !ok {
			return pk, true
		}
	}
	return schema.PrimaryKeyInfo{}, false
}

// explainedByRename reports whether a generated name change on table is
// the consequence of a confirmed table or column rename.
func (ctx *Context) explainedByRename(tables ...string) bool {
	for _, t := range tables {
		if ctx.Renames.TableRenamed(t) || ctx.Renames.ColumnsRenamedIn(t) {
			return true
		}
	}
	return false
}
