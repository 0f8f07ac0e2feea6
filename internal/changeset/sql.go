package changeset

import (
	"fmt"
	"strings"

	"github.com/hurou927/pgmonolayer/internal/schema"
)

var volatileFunctions = []string{
	"gen_random_uuid(", "uuid_generate_v1(", "uuid_generate_v4(",
	"random(", "clock_timestamp(", "timeofday(", "nextval(",
}

func (ctx *Context) qualified(name string) string {
	return schema.QualifiedName(ctx.SchemaName, name)
}

func (ctx *Context) alterTable(table, format string, args ...any) string {
	return "ALTER TABLE " + ctx.qualified(table) + " " + fmt.Sprintf(format, args...)
}

// columnType renders the SQL type of a column. Enum types live in the
// schema being migrated.
func (ctx *Context) columnType(c schema.ColumnInfo) string {
	if c.IsEnum {
		return ctx.qualified(c.DataType)
	}
	return c.DataType
}

// columnDefinition renders a column for CREATE TABLE and ADD COLUMN.
func (ctx *Context) columnDefinition(name string, c schema.ColumnInfo, notNull bool) string {
	parts := []string{schema.QuoteIdent(name), ctx.columnType(c)}
	if notNull && !c.IsNullable && c.Identity == schema.IdentityNone && !schema.IsSerial(c.DataType) {
		parts = append(parts, "NOT NULL")
	}
	if c.Default != "" {
		parts = append(parts, "DEFAULT "+c.Default)
	}
	switch c.Identity {
	case schema.IdentityAlways:
		parts = append(parts, "GENERATED ALWAYS AS IDENTITY")
	case schema.IdentityByDefault:
		parts = append(parts, "GENERATED BY DEFAULT AS IDENTITY")
	}
	return strings.Join(parts, " ")
}

// defaultComment records the declared default so that introspection reads
// back the same text.
func (ctx *Context) defaultComment(table, column, def string) string {
	target := ctx.qualified(table) + "." + schema.QuoteIdent(column)
	if def == "" {
		return "COMMENT ON COLUMN " + target + " IS NULL"
	}
	return "COMMENT ON COLUMN " + target + " IS " + schema.QuoteLiteral(schema.CommentMarker+":"+def)
}

func (ctx *Context) createTable(table string, t *schema.TableInfo) []string {
	defs := make([]string, 0, len(t.ColumnOrder))
	for _, c := range t.ColumnOrder {
		defs = append(defs, ctx.columnDefinition(c, t.Columns[c], true))
	}
	stmts := []string{fmt.Sprintf("CREATE TABLE %s (%s)", ctx.qualified(table), strings.Join(defs, ", "))}
	for _, c := range t.ColumnOrder {
		if def := t.Columns[c].Default; def != "" {
			stmts = append(stmts, ctx.defaultComment(table, c, def))
		}
	}
	return stmts
}

func (ctx *Context) addColumn(table, column string, c schema.ColumnInfo, notNull bool) []string {
	stmts := []string{ctx.alterTable(table, "ADD COLUMN %s", ctx.columnDefinition(column, c, notNull))}
	if c.Default != "" {
		stmts = append(stmts, ctx.defaultComment(table, column, c.Default))
	}
	return stmts
}

func (ctx *Context) dropConstraint(table, name string, ifExists bool) string {
	if ifExists {
		return ctx.alterTable(table, "DROP CONSTRAINT IF EXISTS %s", schema.QuoteIdent(name))
	}
	return ctx.alterTable(table, "DROP CONSTRAINT %s", schema.QuoteIdent(name))
}

func (ctx *Context) renameConstraint(table, from, to string) string {
	return ctx.alterTable(table, "RENAME CONSTRAINT %s TO %s", schema.QuoteIdent(from), schema.QuoteIdent(to))
}

// temporaryNotNullCheck names the helper check used while making a column
// NOT NULL.
func temporaryNotNullCheck(table, column string) string {
	return "temporary_not_null_check_constraint_" + table + "_" + column
}

// setNotNull makes a column NOT NULL without scanning the table under an
// exclusive lock: a NOT VALID check is validated first, which lets
// SET NOT NULL skip its own scan.
func (ctx *Context) setNotNull(table, column string) Step {
	check := schema.QuoteIdent(temporaryNotNullCheck(table, column))
	return Step{
		SQL: []string{
			ctx.alterTable(table, "ADD CONSTRAINT %s CHECK (%s IS NOT NULL) NOT VALID", check, schema.QuoteIdent(column)),
			ctx.alterTable(table, "VALIDATE CONSTRAINT %s", check),
			ctx.alterTable(table, "ALTER COLUMN %s SET NOT NULL", schema.QuoteIdent(column)),
			ctx.alterTable(table, "DROP CONSTRAINT %s", check),
		},
		OnFailure: []string{ctx.dropConstraint(table, temporaryNotNullCheck(table, column), true)},
	}
}

func (ctx *Context) dropNotNull(table, column string) string {
	return ctx.alterTable(table, "ALTER COLUMN %s DROP NOT NULL", schema.QuoteIdent(column))
}

func (ctx *Context) createIndex(table string, idx schema.IndexInfo, concurrently bool) string {
	var b strings.Builder
	b.WriteString("CREATE ")
	if idx.Unique {
		b.WriteString("UNIQUE ")
	}
	b.WriteString("INDEX ")
	if concurrently {
		b.WriteString("CONCURRENTLY ")
	}
	fmt.Fprintf(&b, "%s ON %s", schema.QuoteIdent(idx.Name), ctx.qualified(table))
	if idx.Using != "" && idx.Using != "btree" {
		fmt.Fprintf(&b, " USING %s", idx.Using)
	}
	fmt.Fprintf(&b, " (%s)", schema.QuoteColumns(idx.Columns))
	if idx.NullsNotDistinct {
		b.WriteString(" NULLS NOT DISTINCT")
	}
	if idx.Where != "" {
		fmt.Fprintf(&b, " WHERE %s", idx.Where)
	}
	return b.String()
}

func (ctx *Context) dropIndex(name string, concurrently bool) string {
	if concurrently {
		return "DROP INDEX CONCURRENTLY IF EXISTS " + ctx.qualified(name)
	}
	return "DROP INDEX IF EXISTS " + ctx.qualified(name)
}

func uniqueClause(nullsDistinct bool) string {
	if nullsDistinct {
		return "UNIQUE"
	}
	return "UNIQUE NULLS NOT DISTINCT"
}

func (ctx *Context) foreignKeyClause(fk schema.ForeignKeyInfo) string {
	return fmt.Sprintf("FOREIGN KEY (%s) REFERENCES %s (%s) ON DELETE %s ON UPDATE %s",
		schema.QuoteColumns(fk.Columns),
		schema.QualifiedName(fk.TargetSchema, fk.TargetTable),
		schema.QuoteColumns(fk.TargetColumns),
		strings.ToUpper(fk.OnDelete), strings.ToUpper(fk.OnUpdate))
}

// triggerStatements creates or replaces a trigger and records its hash.
func (ctx *Context) triggerStatements(table string, tr schema.TriggerInfo) []string {
	def := tr.Definition
	if rest, ok := strings.CutPrefix(def, "CREATE TRIGGER "); ok {
		def = "CREATE OR REPLACE TRIGGER " + rest
	}
	return []string{
		def,
		fmt.Sprintf("COMMENT ON TRIGGER %s ON %s IS %s",
			schema.QuoteIdent(tr.Name), ctx.qualified(table), schema.QuoteLiteral(schema.CommentMarker+":"+tr.Hash)),
	}
}

func (ctx *Context) dropTrigger(table, name string) string {
	return fmt.Sprintf("DROP TRIGGER IF EXISTS %s ON %s", schema.QuoteIdent(name), ctx.qualified(table))
}

func volatileDefault(expr string) bool {
	e := strings.ToLower(expr)
	for _, fn := range volatileFunctions {
		if strings.Contains(e, fn) {
			return true
		}
	}
	return false
}
