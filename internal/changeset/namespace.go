package changeset

import (
	"fmt"
	"strings"

	"github.com/hurou927/pgmonolayer/internal/diff"
	"github.com/hurou927/pgmonolayer/internal/schema"
)

func createSchemaStatements(name string) []string {
	return []string{
		"CREATE SCHEMA IF NOT EXISTS " + schema.QuoteIdent(name),
		"COMMENT ON SCHEMA " + schema.QuoteIdent(name) + " IS " + schema.QuoteLiteral(schema.CommentMarker),
	}
}

func createSchema(ctx *Context, d diff.Difference) []Changeset {
	name := d.Path[1]
	cs := ctx.newChangeset(TypeCreateSchema, PhaseExpand, PriorityCreateSchema, "")
	cs.Up = steps(createSchemaStatements(name)...)
	cs.Down = steps("DROP SCHEMA IF EXISTS " + schema.QuoteIdent(name))
	return []Changeset{cs}
}

func dropSchema(ctx *Context, d diff.Difference) []Changeset {
	name := d.Path[1]
	cs := ctx.newChangeset(TypeDropSchema, PhaseContract, PriorityDropSchema, "")
	cs.Up = steps("DROP SCHEMA IF EXISTS " + schema.QuoteIdent(name) + " CASCADE")
	cs.Down = steps(createSchemaStatements(name)...)
	cs.Warnings = []Warning{{Type: WarningDestructive, Code: CodeSchemaDrop, Schema: name}}
	return []Changeset{cs}
}

func createExtension(ctx *Context, d diff.Difference) []Changeset {
	name := d.Path[1]
	cs := ctx.newChangeset(TypeCreateExtension, PhaseExpand, PriorityCreateExtension, "")
	cs.Up = steps("CREATE EXTENSION IF NOT EXISTS " + schema.QuoteIdent(name))
	cs.Down = steps("DROP EXTENSION IF EXISTS " + schema.QuoteIdent(name))
	return []Changeset{cs}
}

func dropExtension(ctx *Context, d diff.Difference) []Changeset {
	name := d.Path[1]
	cs := ctx.newChangeset(TypeDropExtension, PhaseContract, PriorityDropExtension, "")
	cs.Up = steps("DROP EXTENSION IF EXISTS " + schema.QuoteIdent(name))
	cs.Down = steps("CREATE EXTENSION IF NOT EXISTS " + schema.QuoteIdent(name))
	return []Changeset{cs}
}

func (ctx *Context) createEnumStatement(name string, labels []string) string {
	quoted := make([]string, len(labels))
	for i, l := range labels {
		quoted[i] = schema.QuoteLiteral(l)
	}
	return fmt.Sprintf("CREATE TYPE %s AS ENUM (%s)", ctx.qualified(name), strings.Join(quoted, ", "))
}

func createEnum(ctx *Context, d diff.Difference) []Changeset {
	name := d.Path[1]
	labels, _ := d.Value.([]string)
	cs := ctx.newChangeset(TypeCreateEnum, PhaseExpand, PriorityCreateEnum, "")
	cs.Up = steps(ctx.createEnumStatement(name, labels))
	cs.Down = steps("DROP TYPE IF EXISTS " + ctx.qualified(name))
	return []Changeset{cs}
}

func dropEnum(ctx *Context, d diff.Difference) []Changeset {
	name := d.Path[1]
	labels, _ := d.OldValue.([]string)
	cs := ctx.newChangeset(TypeDropEnum, PhaseContract, PriorityDropEnum, "")
	cs.Up = steps("DROP TYPE IF EXISTS " + ctx.qualified(name))
	cs.Down = steps(ctx.createEnumStatement(name, labels))
	return []Changeset{cs}
}

// changeEnum adds labels in place when every live label survives in the
// same order. Postgres cannot remove labels, so any other change is left
// to an operator: renames are proposed for labels that changed position by
// position.
func changeEnum(ctx *Context, d diff.Difference) []Changeset {
	name := d.Path[1]
	labels, _ := d.Value.([]string)
	old, _ := d.OldValue.([]string)

	if isSubsequence(old, labels) {
		cs := ctx.newChangeset(TypeChangeEnum, PhaseExpand, PriorityChangeEnum, "")
		var up []string
		existing := make(map[string]bool, len(old))
		for _, l := range old {
			existing[l] = true
		}
		for i, l := range labels {
			if existing[l] {
				continue
			}
			stmt := fmt.Sprintf("ALTER TYPE %s ADD VALUE IF NOT EXISTS %s", ctx.qualified(name), schema.QuoteLiteral(l))
			if i > 0 {
				stmt += " AFTER " + schema.QuoteLiteral(labels[i-1])
			} else if len(old) > 0 {
				stmt += " BEFORE " + schema.QuoteLiteral(old[0])
			}
			up = append(up, stmt)
		}
		cs.Up = steps(up...)
		return []Changeset{cs}
	}

	cs := ctx.newChangeset(TypeChangeEnum, PhaseUnsafe, PriorityChangeEnum, "")
	var up, down []string
	if len(old) == len(labels) {
		for i := range labels {
			if old[i] == labels[i] {
				continue
			}
			up = append(up, fmt.Sprintf("ALTER TYPE %s RENAME VALUE %s TO %s",
				ctx.qualified(name), schema.QuoteLiteral(old[i]), schema.QuoteLiteral(labels[i])))
			down = append(down, fmt.Sprintf("ALTER TYPE %s RENAME VALUE %s TO %s",
				ctx.qualified(name), schema.QuoteLiteral(labels[i]), schema.QuoteLiteral(old[i])))
		}
	}
	cs.Up = steps(up...)
	cs.Down = steps(down...)
	return []Changeset{cs}
}

func isSubsequence(sub, seq []string) bool {
	i := 0
	for _, s := range seq {
		if i < len(sub) && sub[i] == s {
			i++
		}
	}
	return i == len(sub)
}
