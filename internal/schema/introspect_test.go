package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestRemoteColumn(t *testing.T) {
	tests := []struct {
		name string
		row  columnRow
		want ColumnInfo
	}{
		{
			name: "serial folds from sequence default",
			row:  columnRow{formatType: "integer", defaultExpr: strPtr("nextval('books_id_seq'::regclass)")},
			want: ColumnInfo{DataType: "serial"},
		},
		{
			name: "default recorded in comment wins",
			row: columnRow{formatType: "text", nullable: true, defaultExpr: strPtr("'draft'::text"),
				comment: strPtr("monolayer:'draft'")},
			want: ColumnInfo{DataType: "text", IsNullable: true, Default: "'draft'"},
		},
		{
			name: "catalog default without comment",
			row:  columnRow{formatType: "timestamp with time zone", defaultExpr: strPtr("now()")},
			want: ColumnInfo{DataType: "timestamp with time zone", Default: "now()"},
		},
		{
			name: "stale comment without default is ignored",
			row:  columnRow{formatType: "text", nullable: true, comment: strPtr("monolayer:'x'")},
			want: ColumnInfo{DataType: "text", IsNullable: true},
		},
		{
			name: "enum and identity",
			row:  columnRow{formatType: "status", typeName: "status", isEnum: true, identity: strPtr("d")},
			want: ColumnInfo{DataType: "status", IsEnum: true, Identity: IdentityByDefault},
		},
		{
			name: "varchar length",
			row:  columnRow{formatType: "character varying(20)", nullable: true},
			want: ColumnInfo{DataType: "character varying(20)", IsNullable: true, CharacterMaximumLength: 20},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, remoteColumn(tt.row))
		})
	}
}

func TestAssemble(t *testing.T) {
	managedUnique := GeneratedName("books", UniqueHash([]string{"code"}, false), SuffixUnique)
	checkHash := CheckHash(`"id" > 0`)

	info := assemble("public", true,
		[]string{"moddatetime"},
		[]enumRow{{"status", "draft"}, {"status", "published"}},
		[]columnRow{
			{table: "books", column: "id", formatType: "integer"},
			{table: "books", column: "isbn", formatType: "text", nullable: true},
			{table: "authors", column: "id", formatType: "integer"},
		},
		[]constraintRow{
			{table: "books", name: "books_pkey", kind: "p", columns: []string{"id"}},
			// column was renamed from code to isbn; the name still embeds the old hash
			{table: "books", name: managedUnique, kind: "u", columns: []string{"isbn"}, nullsNotDistinct: true},
			{table: "books", name: "books_author_fk", kind: "f", columns: []string{"id"},
				targetSchema: "public", targetTable: "authors", targetColumns: []string{"id"},
				deleteRule: "c", updateRule: "a"},
			{table: "books", name: GeneratedName("books", checkHash, SuffixCheck), kind: "c",
				definition: "CHECK ((id > 0)) NOT VALID"},
			{table: "books", name: "hand_written_check", kind: "c", definition: "CHECK ((id < 10))"},
			{table: "ghost", name: "ghost_pkey", kind: "p", columns: []string{"id"}},
		},
		[]indexRow{
			{table: "books", name: "books_isbn_idx", using: "btree", columns: []string{"isbn"}},
		},
		[]triggerRow{
			{table: "books", name: "touch", definition: "CREATE TRIGGER touch ...", comment: "monolayer:abcd0123"},
			{table: "books", name: "legacy", definition: "CREATE TRIGGER legacy ..."},
		},
	)

	assert.True(t, info.Exists)
	assert.True(t, info.Extensions["moddatetime"])
	assert.Equal(t, []string{"draft", "published"}, info.Enums["status"])
	assert.NotContains(t, info.Tables, "ghost")

	books := info.Tables["books"]
	require.NotNil(t, books)
	assert.Equal(t, []string{"id", "isbn"}, books.ColumnOrder)

	assert.Equal(t, PrimaryKeyInfo{Name: "books_pkey", Columns: []string{"id"}}, books.PrimaryKey[PrimaryKeyHash([]string{"id"})])

	u, ok := books.Unique[UniqueHash([]string{"code"}, false)]
	require.True(t, ok, "managed constraints are keyed by their embedded hash")
	assert.False(t, u.NullsDistinct)

	require.Len(t, books.ForeignKeys, 1)
	for _, fk := range books.ForeignKeys {
		assert.Equal(t, "cascade", fk.OnDelete)
		assert.Equal(t, "no action", fk.OnUpdate)
	}

	require.Len(t, books.Checks, 1)
	assert.Equal(t, "CHECK ((id > 0))", books.Checks[checkHash].Definition)

	idx := books.Indexes[IndexHash(IndexInfo{Name: "ignored", Columns: []string{"isbn"}, Using: "btree"})]
	assert.Equal(t, "books_isbn_idx", idx.Name)

	assert.Equal(t, "abcd0123", books.Triggers["touch"].Hash)
	assert.Equal(t, TriggerHash("CREATE TRIGGER legacy ..."), books.Triggers["legacy"].Hash)
}
