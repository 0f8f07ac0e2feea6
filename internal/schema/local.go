package schema

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/hurou927/pgmonolayer/internal/definition"
)

// Options controls local normalization.
type Options struct {
	// CamelCase converts table, column and quoted identifiers in expressions
	// from camelCase to snake_case.
	CamelCase bool
	// Renames makes content hashes use previous names so that renamed
	// objects keep their keys.
	Renames Renames
}

var quotedIdentRe = regexp.MustCompile(`"([^"]+)"`)

// FromDefinition normalizes a declarative schema into a snapshot.
func FromDefinition(def *definition.Schema, opts Options) *Info {
	info := NewInfo(def.Name, true)
	ident := func(s string) string {
		if opts.CamelCase {
			return ToSnake(s)
		}
		return s
	}
	expr := func(s string) string {
		if !opts.CamelCase {
			return s
		}
		return quotedIdentRe.ReplaceAllStringFunc(s, func(m string) string {
			return `"` + ToSnake(m[1:len(m)-1]) + `"`
		})
	}

	for _, ext := range def.Extensions {
		info.Extensions[ext] = true
	}
	enums := make(map[string]bool, len(def.Enums))
	for _, e := range def.Enums {
		info.Enums[e.Name] = append([]string(nil), e.Values...)
		enums[e.Name] = true
	}

	for _, t := range def.Tables {
		name := ident(t.Name)
		ti := NewTableInfo(name)
		prev := func(col string) string { return opts.Renames.PreviousColumn(name, col) }

		pkCols := identAll(t.PrimaryKey, ident)
		inPK := make(map[string]bool, len(pkCols))
		for _, c := range pkCols {
			inPK[c] = true
		}

		for _, c := range t.Columns {
			cname := ident(c.Name)
			col := ColumnInfo{
				IsNullable: !c.NotNull && !inPK[cname],
				Identity:   Identity(c.Identity),
			}
			if enums[c.Type] {
				col.DataType = c.Type
				col.IsEnum = true
			} else {
				col.DataType = CanonicalType(c.Type)
			}
			if c.Default != nil {
				col.Default = strings.TrimSpace(*c.Default)
			}
			if IsSerial(col.DataType) || col.Identity != IdentityNone {
				col.IsNullable = false
			}
			ti.AddColumn(cname, WithTypeModifiers(col))
		}

		if len(pkCols) > 0 {
			hash := PrimaryKeyHash(identAll(pkCols, prev))
			ti.PrimaryKey[hash] = PrimaryKeyInfo{
				Name:    GeneratedName(name, PrimaryKeyHash(pkCols), SuffixPrimaryKey),
				Columns: pkCols,
			}
		}

		for _, u := range t.Unique {
			cols := identAll(u.Columns, ident)
			hash := UniqueHash(identAll(cols, prev), u.Distinct())
			ti.Unique[hash] = UniqueInfo{
				Name:          GeneratedName(name, UniqueHash(cols, u.Distinct()), SuffixUnique),
				Columns:       cols,
				NullsDistinct: u.Distinct(),
			}
		}

		for _, fk := range t.ForeignKeys {
			targetSchema := fk.References.Schema
			if targetSchema == "" {
				targetSchema = def.Name
			}
			cur := ForeignKeyInfo{
				Columns:       identAll(fk.Columns, ident),
				TargetSchema:  targetSchema,
				TargetTable:   ident(fk.References.Table),
				TargetColumns: identAll(fk.References.Columns, ident),
				OnDelete:      foreignKeyRule(fk.OnDelete),
				OnUpdate:      foreignKeyRule(fk.OnUpdate),
			}
			old := cur
			old.Columns = identAll(cur.Columns, prev)
			if targetSchema == def.Name {
				old.TargetTable = opts.Renames.PreviousTable(cur.TargetTable)
				old.TargetColumns = identAll(cur.TargetColumns, func(c string) string {
					return opts.Renames.PreviousColumn(cur.TargetTable, c)
				})
			}
			cur.Name = GeneratedName(name, ForeignKeyHash(cur), SuffixForeignKey)
			ti.ForeignKeys[ForeignKeyHash(old)] = cur
		}

		for _, c := range t.Checks {
			e := strings.TrimSpace(expr(c))
			old := opts.Renames.previousInExpression(name, e)
			ti.Checks[CheckHash(old)] = CheckInfo{
				Name:       GeneratedName(name, CheckHash(e), SuffixCheck),
				Definition: "CHECK (" + e + ")",
			}
		}

		for _, idx := range t.Indexes {
			cur := IndexInfo{
				Unique:           idx.Unique,
				Using:            strings.ToLower(idx.Using),
				Where:            expr(idx.Where),
				NullsNotDistinct: idx.NullsNotDistinct,
			}
			if cur.Using == "" {
				cur.Using = "btree"
			}
			for _, c := range idx.Columns {
				if definition.IsIdentifier(c) {
					cur.Columns = append(cur.Columns, ident(c))
				} else {
					cur.Columns = append(cur.Columns, expr(c))
				}
			}
			old := cur
			old.Columns = identAll(cur.Columns, prev)
			old.Where = opts.Renames.previousInExpression(name, cur.Where)
			cur.Name = GeneratedName(name, IndexHash(cur), SuffixIndex)
			ti.Indexes[IndexHash(old)] = cur
		}

		for _, tr := range t.Triggers {
			trName := ident(tr.Name)
			ti.Triggers[trName] = TriggerInfo{
				Name:       trName,
				Hash:       TriggerHash(TriggerDefinition(def.Name, "", trName, tr, ident)),
				Definition: TriggerDefinition(def.Name, name, trName, tr, ident),
			}
		}
		info.Tables[name] = ti
	}
	return info
}

// TriggerDefinition renders the CREATE TRIGGER statement of a declared
// trigger. An empty table renders a table-independent form used for hashing.
func TriggerDefinition(schemaName, table, name string, tr definition.Trigger, ident func(string) string) string {
	events := make([]string, len(tr.Events))
	for i, e := range tr.Events {
		events[i] = strings.ToUpper(e)
	}
	forEach := "ROW"
	if strings.EqualFold(tr.ForEach, "statement") {
		forEach = "STATEMENT"
	}
	args := make([]string, len(tr.Args))
	for i, a := range tr.Args {
		args[i] = QuoteLiteral(ident(a))
	}
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE OR REPLACE TRIGGER %s %s %s ON %s FOR EACH %s",
		QuoteIdent(name), strings.ToUpper(tr.Timing), strings.Join(events, " OR "),
		QualifiedName(schemaName, table), forEach)
	if tr.When != "" {
		fmt.Fprintf(&b, " WHEN (%s)", tr.When)
	}
	fmt.Fprintf(&b, " EXECUTE FUNCTION %s(%s)", tr.Function, strings.Join(args, ", "))
	return b.String()
}

func foreignKeyRule(rule string) string {
	r := strings.Join(strings.Fields(strings.ToLower(rule)), " ")
	if r == "" {
		return "no action"
	}
	return r
}

func identAll(in []string, f func(string) string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = f(s)
	}
	return out
}
