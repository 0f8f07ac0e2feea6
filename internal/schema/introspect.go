package schema

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"golang.org/x/sync/errgroup"
)

// Querier is the read side of a pgx pool or connection.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// IntrospectOptions tunes remote normalization.
type IntrospectOptions struct {
	// ExcludeTables are skipped, e.g. the migrator's own tables.
	ExcludeTables []string
}

type columnRow struct {
	table, column, formatType, typeName string
	isEnum, nullable                    bool
	defaultExpr, identity, comment      *string
}

type constraintRow struct {
	table, name, kind                  string
	columns, targetColumns             []string
	targetSchema, targetTable          string
	deleteRule, updateRule, definition string
	nullsNotDistinct                   bool
}

type indexRow struct {
	table, name, using, where string
	unique, nullsNotDistinct  bool
	columns                   []string
}

type triggerRow struct {
	table, name, definition, comment string
}

type enumRow struct {
	name, label string
}

// Introspect reads the live state of one schema from the system catalogs.
// The catalog queries run concurrently and are joined before assembly.
func Introspect(ctx context.Context, db Querier, schemaName string, opts IntrospectOptions) (*Info, error) {
	var (
		exists      bool
		extensions  []string
		enums       []enumRow
		columns     []columnRow
		constraints []constraintRow
		indexes     []indexRow
		triggers    []triggerRow
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM pg_namespace WHERE nspname = $1)`, schemaName).Scan(&exists)
		if err != nil {
			return fmt.Errorf("querying schema: %w", err)
		}
		return nil
	})
	g.Go(func() (err error) {
		extensions, err = queryExtensions(ctx, db)
		return wrap("querying extensions", err)
	})
	g.Go(func() (err error) {
		enums, err = queryEnums(ctx, db, schemaName)
		return wrap("querying enums", err)
	})
	g.Go(func() (err error) {
		columns, err = queryColumns(ctx, db, schemaName)
		return wrap("querying tables and columns", err)
	})
	g.Go(func() (err error) {
		constraints, err = queryConstraints(ctx, db, schemaName)
		return wrap("querying constraints", err)
	})
	g.Go(func() (err error) {
		indexes, err = queryIndexes(ctx, db, schemaName)
		return wrap("querying indexes", err)
	})
	g.Go(func() (err error) {
		triggers, err = queryTriggers(ctx, db, schemaName)
		return wrap("querying triggers", err)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	info := assemble(schemaName, exists, extensions, enums, columns, constraints, indexes, triggers)
	for _, t := range opts.ExcludeTables {
		delete(info.Tables, t)
	}
	return info, nil
}

func wrap(msg string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

func queryExtensions(ctx context.Context, db Querier) ([]string, error) {
	rows, err := db.Query(ctx, `SELECT extname FROM pg_extension WHERE extname <> 'plpgsql' ORDER BY extname`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

func queryEnums(ctx context.Context, db Querier, schemaName string) ([]enumRow, error) {
	query := `
		SELECT t.typname, e.enumlabel
		FROM pg_type t
		JOIN pg_enum e ON e.enumtypid = t.oid
		JOIN pg_namespace n ON n.oid = t.typnamespace
		WHERE n.nspname = $1
		ORDER BY t.typname, e.enumsortorder
	`
	rows, err := db.Query(ctx, query, schemaName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []enumRow
	for rows.Next() {
		var r enumRow
		if err := rows.Scan(&r.name, &r.label); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func queryColumns(ctx context.Context, db Querier, schemaName string) ([]columnRow, error) {
	query := `
		SELECT
			c.relname,
			a.attname,
			format_type(a.atttypid, a.atttypmod),
			t.typname,
			t.typtype = 'e',
			NOT a.attnotnull,
			pg_get_expr(d.adbin, d.adrelid),
			NULLIF(a.attidentity::text, ''),
			col_description(c.oid, a.attnum)
		FROM pg_class c
		JOIN pg_namespace n ON n.oid = c.relnamespace
		JOIN pg_attribute a ON a.attrelid = c.oid
		JOIN pg_type t ON t.oid = a.atttypid
		LEFT JOIN pg_attrdef d ON d.adrelid = c.oid AND d.adnum = a.attnum
		WHERE c.relkind IN ('r', 'p')
			AND a.attnum > 0
			AND NOT a.attisdropped
			AND n.nspname = $1
		ORDER BY c.relname, a.attnum
	`
	rows, err := db.Query(ctx, query, schemaName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []columnRow
	for rows.Next() {
		var r columnRow
		if err := rows.Scan(&r.table, &r.column, &r.formatType, &r.typeName, &r.isEnum, &r.nullable,
			&r.defaultExpr, &r.identity, &r.comment); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func queryConstraints(ctx context.Context, db Querier, schemaName string) ([]constraintRow, error) {
	query := `
		SELECT
			c.relname,
			con.conname,
			con.contype::text,
			ARRAY(
				SELECT a.attname FROM unnest(con.conkey) WITH ORDINALITY k(attnum, ord)
				JOIN pg_attribute a ON a.attrelid = con.conrelid AND a.attnum = k.attnum
				ORDER BY k.ord
			)::text[],
			COALESCE(fn.nspname, ''),
			COALESCE(fc.relname, ''),
			ARRAY(
				SELECT a.attname FROM unnest(con.confkey) WITH ORDINALITY k(attnum, ord)
				JOIN pg_attribute a ON a.attrelid = con.confrelid AND a.attnum = k.attnum
				ORDER BY k.ord
			)::text[],
			con.confdeltype::text,
			con.confupdtype::text,
			pg_get_constraintdef(con.oid),
			COALESCE((to_jsonb(i) ->> 'indnullsnotdistinct')::boolean, false)
		FROM pg_constraint con
		JOIN pg_class c ON c.oid = con.conrelid
		JOIN pg_namespace n ON n.oid = c.relnamespace
		LEFT JOIN pg_class fc ON fc.oid = con.confrelid
		LEFT JOIN pg_namespace fn ON fn.oid = fc.relnamespace
		LEFT JOIN pg_index i ON i.indexrelid = con.conindid AND con.contype IN ('p', 'u')
		WHERE n.nspname = $1
			AND con.contype IN ('p', 'u', 'f', 'c')
		ORDER BY c.relname, con.conname
	`
	rows, err := db.Query(ctx, query, schemaName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []constraintRow
	for rows.Next() {
		var r constraintRow
		if err := rows.Scan(&r.table, &r.name, &r.kind, &r.columns, &r.targetSchema, &r.targetTable,
			&r.targetColumns, &r.deleteRule, &r.updateRule, &r.definition, &r.nullsNotDistinct); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func queryIndexes(ctx context.Context, db Querier, schemaName string) ([]indexRow, error) {
	query := `
		SELECT
			c.relname,
			ic.relname,
			ix.indisunique,
			am.amname,
			ARRAY(
				SELECT pg_get_indexdef(ix.indexrelid, k, true)
				FROM generate_series(1, ix.indnkeyatts) k
				ORDER BY k
			)::text[],
			COALESCE(pg_get_expr(ix.indpred, ix.indrelid, true), ''),
			COALESCE((to_jsonb(ix) ->> 'indnullsnotdistinct')::boolean, false)
		FROM pg_index ix
		JOIN pg_class ic ON ic.oid = ix.indexrelid
		JOIN pg_class c ON c.oid = ix.indrelid
		JOIN pg_namespace n ON n.oid = c.relnamespace
		JOIN pg_am am ON am.oid = ic.relam
		WHERE n.nspname = $1
			AND NOT EXISTS (
				SELECT 1 FROM pg_constraint con
				WHERE con.conindid = ix.indexrelid AND con.contype IN ('p', 'u', 'x')
			)
		ORDER BY c.relname, ic.relname
	`
	rows, err := db.Query(ctx, query, schemaName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []indexRow
	for rows.Next() {
		var r indexRow
		if err := rows.Scan(&r.table, &r.name, &r.unique, &r.using, &r.columns, &r.where, &r.nullsNotDistinct); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func queryTriggers(ctx context.Context, db Querier, schemaName string) ([]triggerRow, error) {
	query := `
		SELECT
			c.relname,
			t.tgname,
			pg_get_triggerdef(t.oid),
			COALESCE(obj_description(t.oid, 'pg_trigger'), '')
		FROM pg_trigger t
		JOIN pg_class c ON c.oid = t.tgrelid
		JOIN pg_namespace n ON n.oid = c.relnamespace
		WHERE n.nspname = $1
			AND NOT t.tgisinternal
		ORDER BY c.relname, t.tgname
	`
	rows, err := db.Query(ctx, query, schemaName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []triggerRow
	for rows.Next() {
		var r triggerRow
		if err := rows.Scan(&r.table, &r.name, &r.definition, &r.comment); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// assemble turns catalog rows into a snapshot. Constraint and index keys
// are the hash embedded in generated names, or the content hash for objects
// created outside the tool.
func assemble(schemaName string, exists bool, extensions []string, enums []enumRow,
	columns []columnRow, constraints []constraintRow, indexes []indexRow, triggers []triggerRow) *Info {
	info := NewInfo(schemaName, exists)
	for _, e := range extensions {
		info.Extensions[e] = true
	}
	for _, e := range enums {
		info.Enums[e.name] = append(info.Enums[e.name], e.label)
	}

	for _, r := range columns {
		t, ok := info.Tables[r.table]
		if !ok {
			t = NewTableInfo(r.table)
			info.Tables[r.table] = t
		}
		t.AddColumn(r.column, remoteColumn(r))
	}

	for _, r := range constraints {
		t, ok := info.Tables[r.table]
		if !ok {
			continue
		}
		_, embedded, suffix, managed := ParseGeneratedName(r.name)
		key := func(wantSuffix, content string) string {
			if managed && suffix == wantSuffix {
				return embedded
			}
			return content
		}
		switch r.kind {
		case "p":
			t.PrimaryKey[key(SuffixPrimaryKey, PrimaryKeyHash(r.columns))] = PrimaryKeyInfo{Name: r.name, Columns: r.columns}
		case "u":
			u := UniqueInfo{Name: r.name, Columns: r.columns, NullsDistinct: !r.nullsNotDistinct}
			t.Unique[key(SuffixUnique, UniqueHash(u.Columns, u.NullsDistinct))] = u
		case "f":
			fk := ForeignKeyInfo{
				Name:          r.name,
				Columns:       r.columns,
				TargetSchema:  r.targetSchema,
				TargetTable:   r.targetTable,
				TargetColumns: r.targetColumns,
				OnDelete:      foreignKeyAction(r.deleteRule),
				OnUpdate:      foreignKeyAction(r.updateRule),
			}
			t.ForeignKeys[key(SuffixForeignKey, ForeignKeyHash(fk))] = fk
		case "c":
			// Only generated checks are tracked; NOT NULL helpers and
			// hand-written checks are left alone.
			if !managed || suffix != SuffixCheck {
				continue
			}
			t.Checks[embedded] = CheckInfo{
				Name:       r.name,
				Definition: strings.TrimSuffix(r.definition, " NOT VALID"),
			}
		}
	}

	for _, r := range indexes {
		t, ok := info.Tables[r.table]
		if !ok {
			continue
		}
		idx := IndexInfo{
			Name:             r.name,
			Columns:          r.columns,
			Unique:           r.unique,
			Using:            r.using,
			Where:            r.where,
			NullsNotDistinct: r.nullsNotDistinct,
		}
		k := IndexHash(idx)
		if _, hash, suffix, ok := ParseGeneratedName(r.name); ok && suffix == SuffixIndex {
			k = hash
		}
		t.Indexes[k] = idx
	}

	for _, r := range triggers {
		t, ok := info.Tables[r.table]
		if !ok {
			continue
		}
		hash, managed := strings.CutPrefix(r.comment, CommentMarker+":")
		if !managed {
			hash = TriggerHash(r.definition)
		}
		t.Triggers[r.name] = TriggerInfo{Name: r.name, Hash: hash, Definition: r.definition}
	}
	return info
}

// remoteColumn canonicalizes a catalog column. Integer columns defaulting
// to a sequence are reported as serial; a default recorded in the column
// comment wins over the catalog's rewritten expression.
func remoteColumn(r columnRow) ColumnInfo {
	c := ColumnInfo{IsNullable: r.nullable, IsEnum: r.isEnum}
	if r.isEnum {
		c.DataType = r.typeName
	} else {
		c.DataType = CanonicalType(r.formatType)
	}
	if r.identity != nil {
		switch *r.identity {
		case "a":
			c.Identity = IdentityAlways
		case "d":
			c.Identity = IdentityByDefault
		}
	}
	if r.defaultExpr != nil {
		def := *r.defaultExpr
		serial, isInt := SerialFor(c.DataType)
		switch {
		case isInt && strings.HasPrefix(def, "nextval("):
			c.DataType = serial
		case r.comment != nil && strings.HasPrefix(*r.comment, CommentMarker+":"):
			c.Default = strings.TrimPrefix(*r.comment, CommentMarker+":")
		default:
			c.Default = def
		}
	}
	return WithTypeModifiers(c)
}

func foreignKeyAction(code string) string {
	switch code {
	case "r":
		return "restrict"
	case "c":
		return "cascade"
	case "n":
		return "set null"
	case "d":
		return "set default"
	default:
		return "no action"
	}
}

// ManagedSchemas returns the schemas created by the generator, identified by
// their schema comment.
func ManagedSchemas(ctx context.Context, db Querier) ([]string, error) {
	rows, err := db.Query(ctx, `
		SELECT nspname
		FROM pg_namespace
		WHERE obj_description(oid, 'pg_namespace') = $1
		ORDER BY nspname
	`, CommentMarker)
	if err != nil {
		return nil, fmt.Errorf("querying managed schemas: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning managed schemas: %w", err)
		}
		out = append(out, name)
	}
	return out, rows.Err()
}
