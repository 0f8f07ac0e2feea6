package changeset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hurou927/pgmonolayer/internal/diff"
	"github.com/hurou927/pgmonolayer/internal/schema"
)

func TestEveryKindHasAGenerator(t *testing.T) {
	for k := KindUnknown + 1; k < kindCount; k++ {
		assert.NotNil(t, k.generator(), k.String())
	}
	assert.Nil(t, KindUnknown.generator())
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		d    diff.Difference
		want Kind
	}{
		{"schema", diff.Difference{Type: diff.Create, Path: []string{"schemaInfo", "billing"}}, KindSchemaCreate},
		{"extension", diff.Difference{Type: diff.Remove, Path: []string{"extensions", "pgcrypto"}}, KindExtensionDrop},
		{"enum", diff.Difference{Type: diff.Change, Path: []string{"enums", "role"}}, KindEnumChange},
		{"table", diff.Difference{Type: diff.Create, Path: []string{"table", "books"}}, KindTableCreate},
		{
			"nullable column",
			diff.Difference{Type: diff.Create, Path: []string{"table", "books", "columns", "title"}, Value: schema.ColumnInfo{IsNullable: true}},
			KindColumnCreate,
		},
		{
			"non-nullable column",
			diff.Difference{Type: diff.Create, Path: []string{"table", "books", "columns", "title"}, Value: schema.ColumnInfo{}},
			KindColumnCreateNonNullable,
		},
		{"column change", diff.Difference{Type: diff.Change, Path: []string{"table", "books", "columns", "title"}}, KindColumnChange},
		{"primary key", diff.Difference{Type: diff.Create, Path: []string{"primaryKey", "books", "abc"}}, KindPrimaryKeyCreate},
		{"foreign key rename", diff.Difference{Type: diff.Change, Path: []string{"foreignKeyConstraints", "books", "abc"}}, KindForeignKeyRename},
		{"index drop", diff.Difference{Type: diff.Remove, Path: []string{"index", "books", "abc"}}, KindIndexDrop},
		{"trigger change", diff.Difference{Type: diff.Change, Path: []string{"triggers", "books", "touch"}}, KindTriggerChange},
		{"whole object map", diff.Difference{Type: diff.Create, Path: []string{"index", "books"}}, KindUnknown},
		{"column map", diff.Difference{Type: diff.Change, Path: []string{"table", "books", "columns"}}, KindUnknown},
		{"schema change", diff.Difference{Type: diff.Change, Path: []string{"schemaInfo", "billing"}}, KindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.d))
		})
	}
}

func TestSplitObjectMaps(t *testing.T) {
	in := []diff.Difference{
		{Type: diff.Create, Path: []string{"table", "books"}},
		{Type: diff.Remove, Path: []string{"uniqueConstraints", "legacy"}, OldValue: map[string]any{"b": "n2", "a": "n1"}},
		{Type: diff.Create, Path: []string{"checkConstraints", "books"}, Value: map[string]any{}},
	}
	got := splitObjectMaps(in)
	require.Len(t, got, 3)
	assert.Equal(t, in[0], got[0])
	assert.Equal(t, diff.Difference{Type: diff.Remove, Path: []string{"uniqueConstraints", "legacy", "a"}, OldValue: "n1"}, got[1])
	assert.Equal(t, diff.Difference{Type: diff.Remove, Path: []string{"uniqueConstraints", "legacy", "b"}, OldValue: "n2"}, got[2])
}

func TestGenerateRejectsUnknownDifferences(t *testing.T) {
	info := schema.NewInfo("public", true)
	ctx := NewContext(info, info, schema.Renames{}, nil, Options{})
	_, err := Generate(ctx, []diff.Difference{{Type: diff.Change, Path: []string{"schemaInfo", "public"}}})
	assert.ErrorContains(t, err, "unsupported difference CHANGE schemaInfo/public")
}

func TestSort(t *testing.T) {
	in := []Changeset{
		{Priority: PriorityCreatePrimaryKey, Type: TypeCreatePrimaryKey, TableName: "books"},
		{Priority: PriorityCreateTable, Type: TypeCreateTable, TableName: "books"},
		{Priority: PriorityDropTable, Type: TypeDropTable, TableName: "writers"},
		{Priority: PriorityCreateTable, Type: TypeCreateTable, TableName: "writers"},
		{Priority: PriorityDropTable, Type: TypeDropTable, TableName: "books"},
		{Priority: PriorityCreateTable, Type: TypeCreateTable, TableName: "orphans"},
	}
	got := Sort(in, []string{"writers", "books"})

	var order []string
	for _, cs := range got {
		order = append(order, string(cs.Type)+":"+cs.TableName)
	}
	assert.Equal(t, []string{
		"dropTable:books",
		"dropTable:writers",
		"createTable:writers",
		"createTable:books",
		"createTable:orphans",
		"createPrimaryKey:books",
	}, order)
	assert.Equal(t, TypeCreatePrimaryKey, in[0].Type, "input is left untouched")
}

func TestSortUsesQualifiedTableNames(t *testing.T) {
	in := []Changeset{
		{Priority: PriorityCreateTable, Type: TypeCreateTable, SchemaName: "app", TableName: "users"},
		{Priority: PriorityCreateTable, Type: TypeCreateTable, SchemaName: "auth", TableName: "users"},
	}
	got := Sort(in, []string{"auth.users", "app.users"})
	assert.Equal(t, "auth", got[0].SchemaName)
	assert.Equal(t, "app", got[1].SchemaName)
}

func TestWarningString(t *testing.T) {
	w := Warning{
		Type: WarningMightFail, Code: CodeAddPrimaryKey,
		Schema: "public", Table: "books", Columns: []string{"name"}, Object: "books_pk",
	}
	assert.Equal(t, "MF001 Added primary key to existing table (columns: 'name' object: 'books_pk' table: 'books' schema: 'public')", w.String())
	assert.True(t, w.RequiresAcknowledgement())

	rename := Warning{Type: WarningBackwardIncompatible, Code: CodeTableRename, Schema: "public", From: "authors", To: "writers"}
	assert.Equal(t, "BI001 Table rename (from: 'authors' to: 'writers' schema: 'public')", rename.String())
	assert.False(t, rename.RequiresAcknowledgement())
}

func TestParsePhase(t *testing.T) {
	p, ok := ParsePhase("Contract")
	assert.True(t, ok)
	assert.Equal(t, PhaseContract, p)

	_, ok = ParsePhase("cleanup")
	assert.False(t, ok)
}
