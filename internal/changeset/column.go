package changeset

import (
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/hurou927/pgmonolayer/internal/diff"
	"github.com/hurou927/pgmonolayer/internal/schema"
)

func columnPath(d diff.Difference) (table, column string) {
	return d.Path[1], d.Path[3]
}

func createColumn(ctx *Context, d diff.Difference) []Changeset {
	table, column := columnPath(d)
	c, _ := d.Value.(schema.ColumnInfo)
	return []Changeset{ctx.addColumnChangeset(table, column, c, TypeCreateColumn, true)}
}

// createNonNullableColumn adds a NOT NULL column in one statement when
// Postgres can fill existing rows itself (a default, a sequence or an
// identity). Otherwise the column is added as nullable and made NOT NULL
// in the alter phase, once applications have populated it.
func createNonNullableColumn(ctx *Context, d diff.Difference) []Changeset {
	table, column := columnPath(d)
	c, _ := d.Value.(schema.ColumnInfo)
	if c.Default != "" || schema.IsSerial(c.DataType) || c.Identity != schema.IdentityNone {
		return []Changeset{ctx.addColumnChangeset(table, column, c, TypeCreateNonNullColumn, true)}
	}

	out := []Changeset{ctx.addColumnChangeset(table, column, c, TypeCreateNonNullColumn, false)}
	if ctx.inCreatedPrimaryKey(table, column) {
		return out
	}
	cs := ctx.newChangeset(TypeChangeColumnNullable, PhaseAlter, PriorityChangeColumnNullable, table)
	cs.Up = []Step{ctx.setNotNull(table, column)}
	cs.Down = steps(ctx.dropNotNull(table, column))
	cs.NoTransaction = true
	cs.Warnings = []Warning{{
		Type: WarningMightFail, Code: CodeAddNonNullableColumn,
		Schema: ctx.SchemaName, Table: table, Columns: []string{column},
	}}
	return append(out, cs)
}

func (ctx *Context) addColumnChangeset(table, column string, c schema.ColumnInfo, t Type, notNull bool) Changeset {
	cs := ctx.newChangeset(t, PhaseExpand, PriorityCreateColumn, table)
	cs.Up = steps(ctx.addColumn(table, column, c, notNull)...)
	cs.Down = steps(ctx.alterTable(table, "DROP COLUMN %s", schema.QuoteIdent(column)))
	if schema.IsSerial(c.DataType) {
		cs.Warnings = append(cs.Warnings, Warning{
			Type: WarningBlocking, Code: CodeAddSerialColumn,
			Schema: ctx.SchemaName, Table: table, Columns: []string{column},
		})
	}
	if volatileDefault(c.Default) {
		cs.Warnings = append(cs.Warnings, Warning{
			Type: WarningBlocking, Code: CodeAddVolatileDefault,
			Schema: ctx.SchemaName, Table: table, Columns: []string{column},
		})
	}
	return cs
}

func dropColumn(ctx *Context, d diff.Difference) []Changeset {
	table, column := columnPath(d)
	c, _ := d.OldValue.(schema.ColumnInfo)
	cs := ctx.newChangeset(TypeDropColumn, PhaseContract, PriorityDropColumn, table)
	cs.Up = steps(ctx.alterTable(table, "DROP COLUMN %s", schema.QuoteIdent(column)))
	cs.Down = steps(ctx.addColumn(table, column, c, true)...)
	cs.Warnings = []Warning{{
		Type: WarningDestructive, Code: CodeColumnDrop,
		Schema: ctx.SchemaName, Table: table, Columns: []string{column},
	}}
	return []Changeset{cs}
}

// changeColumn emits one changeset per changed attribute of the column.
func changeColumn(ctx *Context, d diff.Difference) []Changeset {
	table, column := columnPath(d)
	c, _ := d.Value.(schema.ColumnInfo)
	old, _ := d.OldValue.(schema.ColumnInfo)

	var out []Changeset
	if schema.StorageType(c.DataType) != schema.StorageType(old.DataType) || c.IsEnum != old.IsEnum {
		out = append(out, ctx.changeColumnType(table, column, old, c))
	}
	if c.Default != old.Default {
		out = append(out, ctx.changeColumnDefault(table, column, old, c))
	}
	if c.Identity != old.Identity {
		out = append(out, ctx.changeColumnIdentity(table, column, old, c))
	}
	if c.IsNullable != old.IsNullable {
		if cs, ok := ctx.changeColumnNullable(table, column, c.IsNullable); ok {
			out = append(out, cs)
		}
	}
	return out
}

func (ctx *Context) changeColumnType(table, column string, old, c schema.ColumnInfo) Changeset {
	cs := ctx.newChangeset(TypeChangeColumnType, PhaseAlter, PriorityChangeColumnType, table)
	alter := func(to schema.ColumnInfo) string {
		typ := ctx.columnType(schema.ColumnInfo{DataType: schema.StorageType(to.DataType), IsEnum: to.IsEnum})
		return ctx.alterTable(table, "ALTER COLUMN %s TYPE %s USING %s::%s",
			schema.QuoteIdent(column), typ, schema.QuoteIdent(column), typ)
	}
	cs.Up = steps(alter(c))
	cs.Down = steps(alter(old))
	if !ctx.aligned(old, c) {
		cs.Warnings = []Warning{{
			Type: WarningBlocking, Code: CodeChangeColumnType,
			Schema: ctx.SchemaName, Table: table, Columns: []string{column},
		}}
	}
	return cs
}

func (ctx *Context) changeColumnDefault(table, column string, old, c schema.ColumnInfo) Changeset {
	cs := ctx.newChangeset(TypeChangeColumnDefault, PhaseAlter, PriorityChangeColumnDefault, table)
	set := func(def string) []string {
		if def == "" {
			return []string{
				ctx.alterTable(table, "ALTER COLUMN %s DROP DEFAULT", schema.QuoteIdent(column)),
				ctx.defaultComment(table, column, ""),
			}
		}
		return []string{
			ctx.alterTable(table, "ALTER COLUMN %s SET DEFAULT %s", schema.QuoteIdent(column), def),
			ctx.defaultComment(table, column, def),
		}
	}
	cs.Up = steps(set(c.Default)...)
	cs.Down = steps(set(old.Default)...)
	return cs
}

func (ctx *Context) changeColumnIdentity(table, column string, old, c schema.ColumnInfo) Changeset {
	cs := ctx.newChangeset(TypeChangeColumnIdentity, PhaseAlter, PriorityChangeColumnIdentity, table)
	cs.Up = steps(ctx.identityTransition(table, column, old.Identity, c.Identity))
	cs.Down = steps(ctx.identityTransition(table, column, c.Identity, old.Identity))
	return cs
}

func (ctx *Context) identityTransition(table, column string, from, to schema.Identity) string {
	col := schema.QuoteIdent(column)
	switch {
	case to == schema.IdentityNone:
		return ctx.alterTable(table, "ALTER COLUMN %s DROP IDENTITY IF EXISTS", col)
	case from == schema.IdentityNone:
		return ctx.alterTable(table, "ALTER COLUMN %s ADD %s AS IDENTITY", col, identityClause(to))
	default:
		return ctx.alterTable(table, "ALTER COLUMN %s SET %s", col, identityClause(to))
	}
}

func identityClause(i schema.Identity) string {
	if i == schema.IdentityAlways {
		return "GENERATED ALWAYS"
	}
	return "GENERATED BY DEFAULT"
}

// changeColumnNullable is skipped for columns whose nullability is handled
// by a primary key created or dropped in the same run.
func (ctx *Context) changeColumnNullable(table, column string, nullable bool) (Changeset, bool) {
	if !nullable && ctx.inCreatedPrimaryKey(table, column) {
		return Changeset{}, false
	}
	if nullable && ctx.inDroppedPrimaryKey(table, column) {
		return Changeset{}, false
	}
	cs := ctx.newChangeset(TypeChangeColumnNullable, PhaseAlter, PriorityChangeColumnNullable, table)
	if nullable {
		cs.Up = steps(ctx.dropNotNull(table, column))
		cs.Down = []Step{ctx.setNotNull(table, column)}
	} else {
		cs.Up = []Step{ctx.setNotNull(table, column)}
		cs.Down = steps(ctx.dropNotNull(table, column))
		cs.Warnings = []Warning{{
			Type: WarningMightFail, Code: CodeChangeColumnToNonNullable,
			Schema: ctx.SchemaName, Table: table, Columns: []string{column},
		}}
	}
	cs.NoTransaction = true
	return cs, true
}

func (ctx *Context) inCreatedPrimaryKey(table, column string) bool {
	pk, ok := ctx.createdPrimaryKey(table)
	return ok && !ctx.AddedTables[table] && slices.Contains(pk.Columns, column)
}

func (ctx *Context) inDroppedPrimaryKey(table, column string) bool {
	pk, ok := ctx.droppedPrimaryKey(table)
	return ok && !ctx.DroppedTables[table] && slices.Contains(pk.Columns, column)
}

var varcharRe = regexp.MustCompile(`^character varying\((\d+)\)$`)

// aligned reports whether changing from old to c keeps the on-disk
// representation, so Postgres does not rewrite the table. Configured
// alignments match on the type without modifiers.
func (ctx *Context) aligned(old, c schema.ColumnInfo) bool {
	from, to := schema.StorageType(old.DataType), schema.StorageType(c.DataType)
	for _, a := range ctx.TypeAlignments {
		if baseType(schema.CanonicalType(a.From)) == baseType(from) && baseType(schema.CanonicalType(a.To)) == baseType(to) {
			return true
		}
	}
	if strings.HasPrefix(from, "character varying") && (to == "text" || to == "character varying") {
		return true
	}
	if fm, tm := varcharRe.FindStringSubmatch(from), varcharRe.FindStringSubmatch(to); fm != nil && tm != nil {
		fromLen, _ := strconv.Atoi(fm[1])
		toLen, _ := strconv.Atoi(tm[1])
		return toLen >= fromLen
	}
	return false
}

func baseType(t string) string {
	if i := strings.IndexByte(t, '('); i >= 0 {
		return t[:i]
	}
	return t
}
