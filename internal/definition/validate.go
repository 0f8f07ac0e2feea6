package definition

import (
	"errors"
	"fmt"
	"regexp"
)

// GenerationError is a fatal problem in the schema definitions that must
// abort generation before anything is diffed or written.
type GenerationError struct {
	Schema string
	Table  string
	Msg    string
}

func (e *GenerationError) Error() string {
	if e.Table == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s.%s: %s", e.Schema, e.Table, e.Msg)
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$]*$`)

// IsIdentifier reports whether s is a plain column reference rather than an
// index expression.
func IsIdentifier(s string) bool {
	return identRe.MatchString(s)
}

// Validate checks a set of schema definitions for duplicate schema names,
// dangling column references and dangling foreign-key targets. All problems
// are joined into the returned error.
func Validate(schemas []*Schema) error {
	var errs []error
	byName := make(map[string]*Schema, len(schemas))
	for _, s := range schemas {
		if _, dup := byName[s.Name]; dup {
			errs = append(errs, &GenerationError{Msg: fmt.Sprintf("Multiple schemas with the same name: '%s'.", s.Name)})
			continue
		}
		byName[s.Name] = s
	}

	for _, s := range schemas {
		for _, e := range s.Enums {
			if len(e.Values) == 0 {
				errs = append(errs, &GenerationError{Msg: fmt.Sprintf("enum %s.%s has no values", s.Name, e.Name)})
			}
		}
		for i := range s.Tables {
			errs = append(errs, validateTable(s, &s.Tables[i], byName)...)
		}
	}
	return errors.Join(errs...)
}

func validateTable(s *Schema, t *Table, schemas map[string]*Schema) []error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, &GenerationError{Schema: s.Name, Table: t.Name, Msg: fmt.Sprintf(format, args...)})
	}
	columnsExist := func(what string, cols []string, identOnly bool) {
		for _, c := range cols {
			if identOnly && !IsIdentifier(c) {
				continue
			}
			if t.Column(c) == nil {
				fail("%s references unknown column %q", what, c)
			}
		}
	}

	if len(t.Columns) == 0 {
		fail("table has no columns")
	}
	for _, c := range t.Columns {
		if c.Type == "" {
			fail("column %q has no type", c.Name)
		}
		switch c.Identity {
		case "", "always", "by-default":
		default:
			fail("column %q: unknown identity %q", c.Name, c.Identity)
		}
	}
	columnsExist("primary key", t.PrimaryKey, false)
	for _, u := range t.Unique {
		if len(u.Columns) == 0 {
			fail("unique constraint without columns")
		}
		columnsExist("unique constraint", u.Columns, false)
	}
	for _, idx := range t.Indexes {
		if len(idx.Columns) == 0 {
			fail("index without columns")
		}
		columnsExist("index", idx.Columns, true)
	}
	for _, tr := range t.Triggers {
		if tr.Function == "" || len(tr.Events) == 0 {
			fail("trigger %q needs a function and at least one event", tr.Name)
		}
	}
	for _, fk := range t.ForeignKeys {
		columnsExist("foreign key", fk.Columns, false)
		targetSchema := fk.References.Schema
		if targetSchema == "" {
			targetSchema = s.Name
		}
		ts, ok := schemas[targetSchema]
		if !ok {
			fail("foreign key references unknown schema %q", targetSchema)
			continue
		}
		target := ts.Table(fk.References.Table)
		if target == nil {
			fail("foreign key references unknown table %s.%s", targetSchema, fk.References.Table)
			continue
		}
		if len(fk.Columns) != len(fk.References.Columns) {
			fail("foreign key on %v references %d columns", fk.Columns, len(fk.References.Columns))
			continue
		}
		for _, c := range fk.References.Columns {
			if target.Column(c) == nil {
				fail("foreign key references unknown column %s.%s.%s", targetSchema, target.Name, c)
			}
		}
	}
	return errs
}
