package changeset

import (
	"github.com/hurou927/pgmonolayer/internal/diff"
	"github.com/hurou927/pgmonolayer/internal/schema"
)

// Kind is the shape of a difference. Every shape the snapshot tree can
// produce maps to exactly one kind, and every kind to exactly one generator.
type Kind int

const (
	KindUnknown Kind = iota
	KindSchemaCreate
	KindSchemaDrop
	KindExtensionCreate
	KindExtensionDrop
	KindEnumCreate
	KindEnumDrop
	KindEnumChange
	KindTableCreate
	KindTableDrop
	KindColumnCreate
	KindColumnCreateNonNullable
	KindColumnDrop
	KindColumnChange
	KindPrimaryKeyCreate
	KindPrimaryKeyDrop
	KindPrimaryKeyRename
	KindForeignKeyCreate
	KindForeignKeyDrop
	KindForeignKeyRename
	KindUniqueCreate
	KindUniqueDrop
	KindUniqueRename
	KindCheckCreate
	KindCheckDrop
	KindCheckRename
	KindIndexCreate
	KindIndexDrop
	KindIndexRename
	KindTriggerCreate
	KindTriggerDrop
	KindTriggerChange

	kindCount
)

var kindNames = [...]string{
	KindUnknown:                 "unknown",
	KindSchemaCreate:            "schemaCreate",
	KindSchemaDrop:              "schemaDrop",
	KindExtensionCreate:         "extensionCreate",
	KindExtensionDrop:           "extensionDrop",
	KindEnumCreate:              "enumCreate",
	KindEnumDrop:                "enumDrop",
	KindEnumChange:              "enumChange",
	KindTableCreate:             "tableCreate",
	KindTableDrop:               "tableDrop",
	KindColumnCreate:            "columnCreate",
	KindColumnCreateNonNullable: "columnCreateNonNullable",
	KindColumnDrop:              "columnDrop",
	KindColumnChange:            "columnChange",
	KindPrimaryKeyCreate:        "primaryKeyCreate",
	KindPrimaryKeyDrop:          "primaryKeyDrop",
	KindPrimaryKeyRename:        "primaryKeyRename",
	KindForeignKeyCreate:        "foreignKeyCreate",
	KindForeignKeyDrop:          "foreignKeyDrop",
	KindForeignKeyRename:        "foreignKeyRename",
	KindUniqueCreate:            "uniqueCreate",
	KindUniqueDrop:              "uniqueDrop",
	KindUniqueRename:            "uniqueRename",
	KindCheckCreate:             "checkCreate",
	KindCheckDrop:               "checkDrop",
	KindCheckRename:             "checkRename",
	KindIndexCreate:             "indexCreate",
	KindIndexDrop:               "indexDrop",
	KindIndexRename:             "indexRename",
	KindTriggerCreate:           "triggerCreate",
	KindTriggerDrop:             "triggerDrop",
	KindTriggerChange:           "triggerChange",
}

func (k Kind) String() string {
	if k < 0 || k >= kindCount {
		return "unknown"
	}
	return kindNames[k]
}

// objectKinds maps the per-table object maps of the snapshot tree to their
// create, drop and rename/change kinds.
var objectKinds = map[string][3]Kind{
	"primaryKey":            {KindPrimaryKeyCreate, KindPrimaryKeyDrop, KindPrimaryKeyRename},
	"foreignKeyConstraints": {KindForeignKeyCreate, KindForeignKeyDrop, KindForeignKeyRename},
	"uniqueConstraints":     {KindUniqueCreate, KindUniqueDrop, KindUniqueRename},
	"checkConstraints":      {KindCheckCreate, KindCheckDrop, KindCheckRename},
	"index":                 {KindIndexCreate, KindIndexDrop, KindIndexRename},
	"triggers":              {KindTriggerCreate, KindTriggerDrop, KindTriggerChange},
}

// Classify returns the kind of a difference. Object maps of whole tables
// must have been split into per-object differences first.
func Classify(d diff.Difference) Kind {
	if len(d.Path) == 0 {
		return KindUnknown
	}
	switch root := d.Path[0]; root {
	case "schemaInfo":
		if len(d.Path) == 2 {
			return byType(d.Type, KindSchemaCreate, KindSchemaDrop, KindUnknown)
		}
	case "extensions":
		if len(d.Path) == 2 {
			return byType(d.Type, KindExtensionCreate, KindExtensionDrop, KindUnknown)
		}
	case "enums":
		if len(d.Path) == 2 {
			return byType(d.Type, KindEnumCreate, KindEnumDrop, KindEnumChange)
		}
	case "table":
		switch {
		case len(d.Path) == 2:
			return byType(d.Type, KindTableCreate, KindTableDrop, KindUnknown)
		case len(d.Path) == 4 && d.Path[2] == "columns":
			if d.Type == diff.Create {
				if c, ok := d.Value.(schema.ColumnInfo); ok && !c.IsNullable {
					return KindColumnCreateNonNullable
				}
				return KindColumnCreate
			}
			return byType(d.Type, KindUnknown, KindColumnDrop, KindColumnChange)
		}
	default:
		if kinds, ok := objectKinds[root]; ok && len(d.Path) == 3 {
			return byType(d.Type, kinds[0], kinds[1], kinds[2])
		}
	}
	return KindUnknown
}

func byType(t diff.Type, create, remove, change Kind) Kind {
	switch t {
	case diff.Create:
		return create
	case diff.Remove:
		return remove
	case diff.Change:
		return change
	}
	return KindUnknown
}

// splitObjectMaps replaces the creation or removal of a table's whole
// object map with one difference per object, in key order.
func splitObjectMaps(diffs []diff.Difference) []diff.Difference {
	out := make([]diff.Difference, 0, len(diffs))
	for _, d := range diffs {
		if _, ok := objectKinds[firstSegment(d)]; !ok || len(d.Path) != 2 {
			out = append(out, d)
			continue
		}
		objects := d.Value
		if d.Type == diff.Remove {
			objects = d.OldValue
		}
		m, _ := objects.(map[string]any)
		for _, key := range sortedKeys(m) {
			entry := diff.Difference{Type: d.Type, Path: []string{d.Path[0], d.Path[1], key}}
			if d.Type == diff.Remove {
				entry.OldValue = m[key]
			} else {
				entry.Value = m[key]
			}
			out = append(out, entry)
		}
	}
	return out
}

func firstSegment(d diff.Difference) string {
	if len(d.Path) == 0 {
		return ""
	}
	return d.Path[0]
}
