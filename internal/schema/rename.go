package schema

import (
	"fmt"
	"regexp"
	"strings"
)

// TableRename renames table From to To.
type TableRename struct {
	From string
	To   string
}

// ColumnRename renames column From to To in Table. Table is the table's
// new name when the table is renamed too.
type ColumnRename struct {
	Table string
	From  string
	To    string
}

// Renames is the set of confirmed renames for one schema.
type Renames struct {
	Tables  []TableRename
	Columns []ColumnRename
}

// Empty reports whether no renames are configured.
func (r Renames) Empty() bool {
	return len(r.Tables) == 0 && len(r.Columns) == 0
}

// PreviousTable returns the live name of a table given its new name.
func (r Renames) PreviousTable(name string) string {
	for _, t := range r.Tables {
		if t.To == name {
			return t.From
		}
	}
	return name
}

// TableRenamed reports whether name is the new name of a renamed table.
func (r Renames) TableRenamed(name string) bool {
	return r.PreviousTable(name) != name
}

// PreviousColumn returns the live name of a column given the new table and
// column names.
func (r Renames) PreviousColumn(table, column string) string {
	for _, c := range r.Columns {
		if c.Table == table && c.To == column {
			return c.From
		}
	}
	return column
}

// ColumnsRenamedIn reports whether any column of table is renamed.
func (r Renames) ColumnsRenamedIn(table string) bool {
	for _, c := range r.Columns {
		if c.Table == table {
			return true
		}
	}
	return false
}

func (r Renames) previousInExpression(table, expr string) string {
	if !r.ColumnsRenamedIn(table) {
		return expr
	}
	return quotedIdentRe.ReplaceAllStringFunc(expr, func(m string) string {
		return QuoteIdent(r.PreviousColumn(table, m[1:len(m)-1]))
	})
}

// RenameKind distinguishes table and column rename candidates.
type RenameKind string

const (
	RenameTable  RenameKind = "table"
	RenameColumn RenameKind = "column"
)

// RenameCandidate is a dropped and an added object that may be one rename.
type RenameCandidate struct {
	Kind  RenameKind
	Table string // table holding the column, for column candidates
	From  string
	To    string
}

func (c RenameCandidate) String() string {
	if c.Kind == RenameTable {
		return fmt.Sprintf("table %s -> %s", c.From, c.To)
	}
	return fmt.Sprintf("column %s.%s -> %s.%s", c.Table, c.From, c.Table, c.To)
}

// Confirmer decides whether a rename candidate is a rename.
type Confirmer interface {
	ConfirmRename(c RenameCandidate) (bool, error)
}

// ConfirmerFunc adapts a function to Confirmer.
type ConfirmerFunc func(c RenameCandidate) (bool, error)

// ConfirmRename implements Confirmer.
func (f ConfirmerFunc) ConfirmRename(c RenameCandidate) (bool, error) {
	return f(c)
}

// DetectTableRenames pairs tables dropped from remote with tables added
// locally that have the same column structure.
func DetectTableRenames(local, remote *Info) []RenameCandidate {
	var out []RenameCandidate
	for _, added := range local.TableNames() {
		if remote.Table(added) != nil {
			continue
		}
		for _, dropped := range remote.TableNames() {
			if local.Table(dropped) != nil {
				continue
			}
			if sameColumns(local.Tables[added], remote.Tables[dropped]) {
				out = append(out, RenameCandidate{Kind: RenameTable, From: dropped, To: added})
			}
		}
	}
	return out
}

// DetectColumnRenames pairs columns dropped from and added to a table when
// their type and nullability match.
func DetectColumnRenames(local, remote *Info) []RenameCandidate {
	var out []RenameCandidate
	for _, name := range local.TableNames() {
		lt, rt := local.Tables[name], remote.Table(name)
		if rt == nil {
			continue
		}
		for _, added := range sortedKeys(lt.Columns) {
			if _, ok := rt.Columns[added]; ok {
				continue
			}
			for _, dropped := range sortedKeys(rt.Columns) {
				if _, ok := lt.Columns[dropped]; ok {
					continue
				}
				if similarColumn(lt.Columns[added], rt.Columns[dropped]) {
					out = append(out, RenameCandidate{Kind: RenameColumn, Table: name, From: dropped, To: added})
				}
			}
		}
	}
	return out
}

// ResolveRenames asks confirm about every candidate. Tables are resolved
// first so that column candidates of renamed tables are found. Each
// dropped or added object takes part in at most one rename.
func ResolveRenames(local, remote *Info, confirm Confirmer) (Renames, error) {
	var r Renames
	used := make(map[string]bool)
	for _, c := range DetectTableRenames(local, remote) {
		if used["f:"+c.From] || used["t:"+c.To] {
			continue
		}
		ok, err := confirm.ConfirmRename(c)
		if err != nil {
			return Renames{}, fmt.Errorf("confirming %s: %w", c, err)
		}
		if ok {
			r.Tables = append(r.Tables, TableRename{From: c.From, To: c.To})
			used["f:"+c.From], used["t:"+c.To] = true, true
		}
	}

	renamed := ApplyRenames(remote, r)
	for _, c := range DetectColumnRenames(local, renamed) {
		key := c.Table + "."
		if used["f:"+key+c.From] || used["t:"+key+c.To] {
			continue
		}
		ok, err := confirm.ConfirmRename(c)
		if err != nil {
			return Renames{}, fmt.Errorf("confirming %s: %w", c, err)
		}
		if ok {
			r.Columns = append(r.Columns, ColumnRename{Table: c.Table, From: c.From, To: c.To})
			used["f:"+key+c.From], used["t:"+key+c.To] = true, true
		}
	}
	return r, nil
}

// ApplyRenames returns a copy of remote that uses the new table and column
// names. Constraint and index keys and names are left alone so that the
// generators see the renamed objects as changed in place.
func ApplyRenames(remote *Info, r Renames) *Info {
	out := remote.Clone()
	if r.Empty() {
		return out
	}

	for _, tr := range r.Tables {
		t, ok := out.Tables[tr.From]
		if !ok {
			continue
		}
		delete(out.Tables, tr.From)
		t.Name = tr.To
		for name, trg := range t.Triggers {
			trg.Definition = renameIdentifier(trg.Definition, tr.From, tr.To)
			t.Triggers[name] = trg
		}
		out.Tables[tr.To] = t
	}

	for _, cr := range r.Columns {
		t, ok := out.Tables[cr.Table]
		if !ok {
			continue
		}
		col, ok := t.Columns[cr.From]
		if !ok {
			continue
		}
		delete(t.Columns, cr.From)
		t.Columns[cr.To] = col
		renameIn(t.ColumnOrder, cr.From, cr.To)
		for k, pk := range t.PrimaryKey {
			renameIn(pk.Columns, cr.From, cr.To)
			t.PrimaryKey[k] = pk
		}
		for k, u := range t.Unique {
			renameIn(u.Columns, cr.From, cr.To)
			t.Unique[k] = u
		}
		for k, fk := range t.ForeignKeys {
			renameIn(fk.Columns, cr.From, cr.To)
			t.ForeignKeys[k] = fk
		}
		for k, c := range t.Checks {
			c.Definition = renameIdentifier(c.Definition, cr.From, cr.To)
			t.Checks[k] = c
		}
		for k, idx := range t.Indexes {
			for i, c := range idx.Columns {
				idx.Columns[i] = renameIdentifier(c, cr.From, cr.To)
			}
			idx.Where = renameIdentifier(idx.Where, cr.From, cr.To)
			t.Indexes[k] = idx
		}
		for k, trg := range t.Triggers {
			trg.Definition = renameIdentifier(trg.Definition, cr.From, cr.To)
			t.Triggers[k] = trg
		}
	}

	// Foreign keys of every table follow renamed targets.
	newTable := func(name string) string {
		for _, tr := range r.Tables {
			if tr.From == name {
				return tr.To
			}
		}
		return name
	}
	for _, t := range out.Tables {
		for k, fk := range t.ForeignKeys {
			if fk.TargetSchema != out.Name {
				continue
			}
			fk.TargetTable = newTable(fk.TargetTable)
			for _, cr := range r.Columns {
				if cr.Table == fk.TargetTable {
					renameIn(fk.TargetColumns, cr.From, cr.To)
				}
			}
			t.ForeignKeys[k] = fk
		}
	}
	return out
}

// Clone returns a deep copy of the snapshot.
func (i *Info) Clone() *Info {
	out := NewInfo(i.Name, i.Exists)
	for k, v := range i.Extensions {
		out.Extensions[k] = v
	}
	for k, v := range i.Enums {
		out.Enums[k] = append([]string(nil), v...)
	}
	for name, t := range i.Tables {
		c := NewTableInfo(t.Name)
		for k, v := range t.Columns {
			c.Columns[k] = v
		}
		c.ColumnOrder = append([]string(nil), t.ColumnOrder...)
		for k, v := range t.PrimaryKey {
			v.Columns = append([]string(nil), v.Columns...)
			c.PrimaryKey[k] = v
		}
		for k, v := range t.ForeignKeys {
			v.Columns = append([]string(nil), v.Columns...)
			v.TargetColumns = append([]string(nil), v.TargetColumns...)
			c.ForeignKeys[k] = v
		}
		for k, v := range t.Unique {
			v.Columns = append([]string(nil), v.Columns...)
			c.Unique[k] = v
		}
		for k, v := range t.Checks {
			c.Checks[k] = v
		}
		for k, v := range t.Indexes {
			v.Columns = append([]string(nil), v.Columns...)
			c.Indexes[k] = v
		}
		for k, v := range t.Triggers {
			c.Triggers[k] = v
		}
		out.Tables[name] = c
	}
	return out
}

func sameColumns(a, b *TableInfo) bool {
	if len(a.Columns) != len(b.Columns) {
		return false
	}
	for name, ca := range a.Columns {
		cb, ok := b.Columns[name]
		if !ok || !similarColumn(ca, cb) {
			return false
		}
	}
	return true
}

func similarColumn(a, b ColumnInfo) bool {
	return a.DataType == b.DataType && a.IsNullable == b.IsNullable && a.IsEnum == b.IsEnum
}

func renameIn(s []string, from, to string) {
	for i, v := range s {
		if v == from {
			s[i] = to
		}
	}
}

// renameIdentifier replaces whole-word occurrences of an identifier, quoted
// or not, in an SQL fragment.
func renameIdentifier(sql, from, to string) string {
	if sql == "" || from == to {
		return sql
	}
	re := regexp.MustCompile(`"` + regexp.QuoteMeta(from) + `"|\b` + regexp.QuoteMeta(from) + `\b`)
	replacement := to
	if !isPlainIdent(to) || strings.ToLower(to) != to {
		replacement = QuoteIdent(to)
	}
	return re.ReplaceAllStringFunc(sql, func(m string) string {
		if strings.HasPrefix(m, `"`) {
			return QuoteIdent(to)
		}
		return replacement
	})
}
