package schema

import "sort"

// Identity is the identity mode of a column.
type Identity string

const (
	IdentityNone      Identity = ""
	IdentityAlways    Identity = "always"
	IdentityByDefault Identity = "by-default"
)

// Info is the canonical snapshot of one database schema. The same shape
// describes the desired (local) and the live (remote) state.
type Info struct {
	Name string
	// Exists is false for a schema that is absent on the live side, or that
	// is no longer declared locally.
	Exists     bool
	Tables     map[string]*TableInfo
	Extensions map[string]bool
	Enums      map[string][]string
}

// TableInfo describes a table. Constraint and index maps are keyed by the
// content hash of their definition; triggers are keyed by name.
type TableInfo struct {
	Name        string
	Columns     map[string]ColumnInfo
	ColumnOrder []string
	PrimaryKey  map[string]PrimaryKeyInfo
	ForeignKeys map[string]ForeignKeyInfo
	Unique      map[string]UniqueInfo
	Checks      map[string]CheckInfo
	Indexes     map[string]IndexInfo
	Triggers    map[string]TriggerInfo
}

// ColumnInfo is the canonical description of a column. Default holds raw
// SQL text; the empty string means no default.
type ColumnInfo struct {
	DataType               string
	IsNullable             bool
	Default                string
	Identity               Identity
	NumericPrecision       int
	NumericScale           int
	CharacterMaximumLength int
	DatetimePrecision      int
	IsEnum                 bool
}

// PrimaryKeyInfo is a primary key constraint.
type PrimaryKeyInfo struct {
	Name    string
	Columns []string
}

// ForeignKeyInfo is a foreign key constraint. Rules are lower case SQL
// keywords ("no action", "cascade", ...).
type ForeignKeyInfo struct {
	Name          string
	Columns       []string
	TargetSchema  string
	TargetTable   string
	TargetColumns []string
	OnDelete      string
	OnUpdate      string
}

// UniqueInfo is a unique constraint.
type UniqueInfo struct {
	Name          string
	Columns       []string
	NullsDistinct bool
}

// CheckInfo is a check constraint. Definition is the full "CHECK (...)"
// clause.
type CheckInfo struct {
	Name       string
	Definition string
}

// IndexInfo is an index that does not back a constraint.
type IndexInfo struct {
	Name             string
	Columns          []string
	Unique           bool
	Using            string
	Where            string
	NullsNotDistinct bool
}

// TriggerInfo is a trigger. Hash identifies the declared definition and is
// what gets compared; Definition is the CREATE TRIGGER statement.
type TriggerInfo struct {
	Name       string
	Hash       string
	Definition string
}

// NewInfo returns an empty snapshot for the named schema.
func NewInfo(name string, exists bool) *Info {
	return &Info{
		Name:       name,
		Exists:     exists,
		Tables:     make(map[string]*TableInfo),
		Extensions: make(map[string]bool),
		Enums:      make(map[string][]string),
	}
}

// NewTableInfo returns an empty table.
func NewTableInfo(name string) *TableInfo {
	return &TableInfo{
		Name:        name,
		Columns:     make(map[string]ColumnInfo),
		PrimaryKey:  make(map[string]PrimaryKeyInfo),
		ForeignKeys: make(map[string]ForeignKeyInfo),
		Unique:      make(map[string]UniqueInfo),
		Checks:      make(map[string]CheckInfo),
		Indexes:     make(map[string]IndexInfo),
		Triggers:    make(map[string]TriggerInfo),
	}
}

// AddColumn appends a column, keeping declaration order.
func (t *TableInfo) AddColumn(name string, c ColumnInfo) {
	if _, ok := t.Columns[name]; !ok {
		t.ColumnOrder = append(t.ColumnOrder, name)
	}
	t.Columns[name] = c
}

// Table returns the named table or nil.
func (i *Info) Table(name string) *TableInfo {
	if i == nil {
		return nil
	}
	return i.Tables[name]
}

// TableNames returns the table names in sorted order.
func (i *Info) TableNames() []string {
	return sortedKeys(i.Tables)
}

// PrimaryKeyColumns returns the columns of the table's primary key, if any.
func (t *TableInfo) PrimaryKeyColumns() []string {
	for _, pk := range t.PrimaryKey {
		return pk.Columns
	}
	return nil
}

// Column returns the named column of table, if both exist.
func (i *Info) Column(table, column string) (ColumnInfo, bool) {
	t := i.Table(table)
	if t == nil {
		return ColumnInfo{}, false
	}
	c, ok := t.Columns[column]
	return c, ok
}

// Tree projects the snapshot into the nested map consumed by the diff
// engine. Every table appears under every per-kind map so that objects of
// existing tables are addressed as kind/table/key.
func (i *Info) Tree() map[string]any {
	schemaInfo := map[string]any{}
	if i.Exists {
		schemaInfo[i.Name] = true
	}
	extensions := make(map[string]any, len(i.Extensions))
	for name := range i.Extensions {
		extensions[name] = true
	}
	enums := make(map[string]any, len(i.Enums))
	for name, labels := range i.Enums {
		enums[name] = append([]string(nil), labels...)
	}

	tables := map[string]any{}
	kinds := map[string]map[string]any{
		"primaryKey":            {},
		"foreignKeyConstraints": {},
		"uniqueConstraints":     {},
		"checkConstraints":      {},
		"index":                 {},
		"triggers":              {},
	}
	for name, t := range i.Tables {
		columns := make(map[string]any, len(t.Columns))
		for c, info := range t.Columns {
			columns[c] = info
		}
		tables[name] = map[string]any{"columns": columns}
		kinds["primaryKey"][name] = namesByKey(t.PrimaryKey, func(v PrimaryKeyInfo) string { return v.Name })
		kinds["foreignKeyConstraints"][name] = namesByKey(t.ForeignKeys, func(v ForeignKeyInfo) string { return v.Name })
		kinds["uniqueConstraints"][name] = namesByKey(t.Unique, func(v UniqueInfo) string { return v.Name })
		kinds["checkConstraints"][name] = namesByKey(t.Checks, func(v CheckInfo) string { return v.Name })
		kinds["index"][name] = namesByKey(t.Indexes, func(v IndexInfo) string { return v.Name })
		kinds["triggers"][name] = namesByKey(t.Triggers, func(v TriggerInfo) string { return v.Hash })
	}

	tree := map[string]any{
		"schemaInfo": schemaInfo,
		"extensions": extensions,
		"enums":      enums,
		"table":      tables,
	}
	for k, v := range kinds {
		tree[k] = v
	}
	return tree
}

func namesByKey[V any](m map[string]V, leaf func(V) string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = leaf(v)
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
