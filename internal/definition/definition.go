// Package definition holds the declarative schema source: YAML files that
// describe the desired state of one PostgreSQL schema each.
package definition

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Schema is the desired state of one database schema.
type Schema struct {
	Name       string   `yaml:"name"`
	Extensions []string `yaml:"extensions"`
	Enums      Enums    `yaml:"enums"`
	Tables     Tables   `yaml:"tables"`

	// Path is the file the schema was loaded from.
	Path string `yaml:"-"`
}

// Enum is an enumerated type with ordered labels.
type Enum struct {
	Name   string
	Values []string
}

// Table is a table definition. Columns keep their declaration order.
type Table struct {
	Name        string
	Columns     Columns      `yaml:"columns"`
	PrimaryKey  []string     `yaml:"primary_key"`
	Unique      []Unique     `yaml:"unique"`
	ForeignKeys []ForeignKey `yaml:"foreign_keys"`
	Checks      []string     `yaml:"checks"`
	Indexes     []Index      `yaml:"indexes"`
	Triggers    Triggers     `yaml:"triggers"`
}

// Column is a column definition.
type Column struct {
	Name     string
	Type     string  `yaml:"type"`
	NotNull  bool    `yaml:"not_null"`
	Default  *string `yaml:"default"`
	Identity string  `yaml:"identity"` // "", "always" or "by-default"
}

// Unique is a unique constraint. NullsDistinct defaults to true.
type Unique struct {
	Columns       []string `yaml:"columns"`
	NullsDistinct *bool    `yaml:"nulls_distinct"`
}

// Distinct reports whether NULLs are treated as distinct values.
func (u Unique) Distinct() bool {
	return u.NullsDistinct == nil || *u.NullsDistinct
}

// ForeignKey is a foreign key constraint.
type ForeignKey struct {
	Columns    []string   `yaml:"columns"`
	References References `yaml:"references"`
	OnDelete   string     `yaml:"on_delete"`
	OnUpdate   string     `yaml:"on_update"`
}

// References names the target of a foreign key. Schema defaults to the
// schema that declares the foreign key.
type References struct {
	Schema  string   `yaml:"schema"`
	Table   string   `yaml:"table"`
	Columns []string `yaml:"columns"`
}

// Index is a secondary index. Entries of Columns that are not plain
// identifiers are used verbatim as index expressions.
type Index struct {
	Columns          []string `yaml:"columns"`
	Unique           bool     `yaml:"unique"`
	Using            string   `yaml:"using"`
	Where            string   `yaml:"where"`
	NullsNotDistinct bool     `yaml:"nulls_not_distinct"`
}

// Trigger is a row or statement trigger calling a function.
type Trigger struct {
	Name     string
	Timing   string   `yaml:"timing"` // before, after, instead of
	Events   []string `yaml:"events"`
	ForEach  string   `yaml:"for_each"` // row or statement
	Function string   `yaml:"function"`
	Args     []string `yaml:"args"`
	When     string   `yaml:"when"`
}

// Load reads one schema definition file.
func Load(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading schema definition: %w", err)
	}

	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing schema definition %s: %w", path, err)
	}
	s.Path = path
	return s, nil
}

// Parse decodes a schema definition document.
func Parse(data []byte) (*Schema, error) {
	var s Schema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	if s.Name == "" {
		s.Name = "public"
	}
	return &s, nil
}

// LoadAll loads every file in paths and validates them as one set.
func LoadAll(paths []string) ([]*Schema, error) {
	schemas := make([]*Schema, 0, len(paths))
	for _, p := range paths {
		s, err := Load(p)
		if err != nil {
			return nil, err
		}
		schemas = append(schemas, s)
	}
	if err := Validate(schemas); err != nil {
		return nil, err
	}
	return schemas, nil
}

// Table returns the table with the given name, or nil.
func (s *Schema) Table(name string) *Table {
	for i := range s.Tables {
		if s.Tables[i].Name == name {
			return &s.Tables[i]
		}
	}
	return nil
}

// Column returns the column with the given name, or nil.
func (t *Table) Column(name string) *Column {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i]
		}
	}
	return nil
}
