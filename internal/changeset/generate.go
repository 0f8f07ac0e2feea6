package changeset

import (
	"fmt"
	"sort"

	"github.com/hurou927/pgmonolayer/internal/diff"
	"github.com/hurou927/pgmonolayer/internal/graph"
	"github.com/hurou927/pgmonolayer/internal/schema"
)

type generatorFunc func(ctx *Context, d diff.Difference) []Changeset

// generator returns the generator that owns the kind.
func (k Kind) generator() generatorFunc {
	switch k {
	case KindSchemaCreate:
		return createSchema
	case KindSchemaDrop:
		return dropSchema
	case KindExtensionCreate:
		return createExtension
	case KindExtensionDrop:
		return dropExtension
	case KindEnumCreate:
		return createEnum
	case KindEnumDrop:
		return dropEnum
	case KindEnumChange:
		return changeEnum
	case KindTableCreate:
		return createTable
	case KindTableDrop:
		return dropTable
	case KindColumnCreate:
		return createColumn
	case KindColumnCreateNonNullable:
		return createNonNullableColumn
	case KindColumnDrop:
		return dropColumn
	case KindColumnChange:
		return changeColumn
	case KindPrimaryKeyCreate:
		return createPrimaryKey
	case KindPrimaryKeyDrop:
		return dropPrimaryKey
	case KindPrimaryKeyRename:
		return renamePrimaryKey
	case KindForeignKeyCreate:
		return createForeignKey
	case KindForeignKeyDrop:
		return dropForeignKey
	case KindForeignKeyRename:
		return renameForeignKey
	case KindUniqueCreate:
		return createUnique
	case KindUniqueDrop:
		return dropUnique
	case KindUniqueRename:
		return renameUnique
	case KindCheckCreate:
		return createCheck
	case KindCheckDrop:
		return dropCheck
	case KindCheckRename:
		return renameCheck
	case KindIndexCreate:
		return createIndex
	case KindIndexDrop:
		return dropIndex
	case KindIndexRename:
		return renameIndex
	case KindTriggerCreate:
		return createTrigger
	case KindTriggerDrop:
		return dropTrigger
	case KindTriggerChange:
		return changeTrigger
	}
	return nil
}

// Generate turns differences into changesets, in difference order, after
// the rename changesets of ctx.Renames.
func Generate(ctx *Context, diffs []diff.Difference) ([]Changeset, error) {
	out := renameChangesets(ctx)
	for _, d := range splitObjectMaps(diffs) {
		gen := Classify(d).generator()
		if gen == nil {
			return nil, fmt.Errorf("unsupported difference %s", d)
		}
		out = append(out, gen(ctx, d)...)
	}
	return out, nil
}

// Compute diffs the remote snapshot against the local one and returns the
// sorted changesets for the schema. remote must already have renames
// applied.
func Compute(local, remote *schema.Info, renames schema.Renames, opts Options) ([]Changeset, error) {
	diffs := diff.Compute(remote.Tree(), local.Tree())
	ctx := NewContext(local, remote, renames, diffs, opts)
	changesets, err := Generate(ctx, diffs)
	if err != nil {
		return nil, fmt.Errorf("generating changesets for schema %s: %w", local.Name, err)
	}
	return Sort(changesets, graph.DependencyOrder(local, remote)), nil
}

// objectPath splits a per-object difference into table and key.
func objectPath(d diff.Difference) (table, key string) {
	return d.Path[1], d.Path[2]
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
