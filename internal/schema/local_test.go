package schema

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hurou927/pgmonolayer/internal/definition"
)

func parse(t *testing.T, src string) *definition.Schema {
	t.Helper()
	s, err := definition.Parse([]byte(src))
	require.NoError(t, err)
	return s
}

func TestFromDefinitionColumns(t *testing.T) {
	def := parse(t, `
enums:
  status: [draft, published]
tables:
  books:
    columns:
      id: serial
      title: {type: varchar(100), not_null: true}
      status: {type: status, default: "'draft'"}
      code: {type: integer, identity: always}
      isbn: text
    primary_key: [isbn]
`)
	info := FromDefinition(def, Options{})

	books := info.Table("books")
	require.NotNil(t, books)
	assert.Equal(t, []string{"id", "title", "status", "code", "isbn"}, books.ColumnOrder)

	want := map[string]ColumnInfo{
		"id":     {DataType: "serial"},
		"title":  {DataType: "character varying(100)", CharacterMaximumLength: 100},
		"status": {DataType: "status", IsNullable: true, Default: "'draft'", IsEnum: true},
		"code":   {DataType: "integer", Identity: IdentityAlways},
		"isbn":   {DataType: "text"},
	}
	if diff := cmp.Diff(want, books.Columns); diff != "" {
		t.Errorf("columns mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"draft", "published"}, info.Enums["status"])
}

func TestFromDefinitionCamelCase(t *testing.T) {
	def := parse(t, `
tables:
  bookAuthors:
    columns:
      authorId: integer
    checks:
      - '"authorId" > 0'
`)
	info := FromDefinition(def, Options{CamelCase: true})

	tbl := info.Table("book_authors")
	require.NotNil(t, tbl)
	_, ok := tbl.Columns["author_id"]
	assert.True(t, ok)

	require.Len(t, tbl.Checks, 1)
	for key, chk := range tbl.Checks {
		assert.Equal(t, CheckHash(`"author_id" > 0`), key)
		assert.Equal(t, `CHECK ("author_id" > 0)`, chk.Definition)
		assert.Equal(t, GeneratedName("book_authors", key, SuffixCheck), chk.Name)
	}
}

func TestFromDefinitionConstraintKeysUsePreviousNames(t *testing.T) {
	def := parse(t, `
tables:
  books:
    columns:
      isbn: text
    unique:
      - columns: [isbn]
`)
	renames := Renames{Columns: []ColumnRename{{Table: "books", From: "code", To: "isbn"}}}
	info := FromDefinition(def, Options{Renames: renames})

	u, ok := info.Tables["books"].Unique[UniqueHash([]string{"code"}, true)]
	require.True(t, ok, "unique constraint keyed by the previous column name")
	assert.Equal(t, GeneratedName("books", UniqueHash([]string{"isbn"}, true), SuffixUnique), u.Name)
	assert.Equal(t, []string{"isbn"}, u.Columns)
}

func TestFromDefinitionIndexesAndForeignKeys(t *testing.T) {
	def := parse(t, `
tables:
  authors:
    columns:
      id: integer
    primary_key: [id]
  books:
    columns:
      authorId: integer
      title: text
    foreign_keys:
      - columns: [authorId]
        references: {table: authors, columns: [id]}
        on_delete: CASCADE
    indexes:
      - columns: [lower(title)]
        where: '"title" IS NOT NULL'
`)
	info := FromDefinition(def, Options{})
	books := info.Tables["books"]

	require.Len(t, books.ForeignKeys, 1)
	for _, fk := range books.ForeignKeys {
		assert.Equal(t, "public", fk.TargetSchema)
		assert.Equal(t, "authors", fk.TargetTable)
		assert.Equal(t, "cascade", fk.OnDelete)
		assert.Equal(t, "no action", fk.OnUpdate)
	}
	require.Len(t, books.Indexes, 1)
	for key, idx := range books.Indexes {
		assert.Equal(t, "btree", idx.Using)
		assert.Equal(t, []string{"lower(title)"}, idx.Columns)
		assert.Equal(t, IndexHash(idx), key)
	}
	assert.False(t, info.Tables["authors"].Columns["id"].IsNullable, "primary key columns are not nullable")
}

func TestTriggerDefinition(t *testing.T) {
	tr := definition.Trigger{
		Timing: "before", Events: []string{"insert", "update"}, ForEach: "row",
		Function: "moddatetime", Args: []string{"updatedAt"},
	}
	got := TriggerDefinition("public", "books", "touch", tr, ToSnake)
	assert.Equal(t,
		`CREATE OR REPLACE TRIGGER "touch" BEFORE INSERT OR UPDATE ON "public"."books" FOR EACH ROW EXECUTE FUNCTION moddatetime('updated_at')`,
		got)
}

func TestTreeListsEveryTableUnderEveryKind(t *testing.T) {
	info := NewInfo("public", true)
	tbl := NewTableInfo("books")
	tbl.AddColumn("id", ColumnInfo{DataType: "integer", IsNullable: true})
	info.Tables["books"] = tbl

	tree := info.Tree()
	assert.Equal(t, map[string]any{"public": true}, tree["schemaInfo"])
	for _, kind := range []string{"primaryKey", "foreignKeyConstraints", "uniqueConstraints", "checkConstraints", "index", "triggers"} {
		m, ok := tree[kind].(map[string]any)
		require.True(t, ok, kind)
		assert.Equal(t, map[string]any{}, m["books"], kind)
	}
	cols := tree["table"].(map[string]any)["books"].(map[string]any)["columns"].(map[string]any)
	assert.Equal(t, ColumnInfo{DataType: "integer", IsNullable: true}, cols["id"])
}
