package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGeneratedNameRoundTrip(t *testing.T) {
	name := GeneratedName("books", UniqueHash([]string{"id"}, false), SuffixUnique)

	table, hash, suffix, ok := ParseGeneratedName(name)
	assert.True(t, ok)
	assert.Equal(t, "books", table)
	assert.Equal(t, UniqueHash([]string{"id"}, false), hash)
	assert.Equal(t, SuffixUnique, suffix)
	assert.Len(t, hash, 8)

	_, _, _, ok = ParseGeneratedName("books_pkey")
	assert.False(t, ok)
	_, _, _, ok = ParseGeneratedName(TwoStepIndexName(name))
	assert.False(t, ok)
}

func TestHashesIgnoreColumnOrderWhereUnordered(t *testing.T) {
	assert.Equal(t, UniqueHash([]string{"a", "b"}, true), UniqueHash([]string{"b", "a"}, true))
	assert.NotEqual(t, UniqueHash([]string{"a", "b"}, true), UniqueHash([]string{"a", "b"}, false))
	assert.Equal(t, PrimaryKeyHash([]string{"a", "b"}), PrimaryKeyHash([]string{"b", "a"}))

	fk := ForeignKeyInfo{
		Columns: []string{"a", "b"}, TargetSchema: "public", TargetTable: "t",
		TargetColumns: []string{"x", "y"}, OnDelete: "no action", OnUpdate: "no action",
	}
	swapped := fk
	swapped.Columns = []string{"b", "a"}
	swapped.TargetColumns = []string{"y", "x"}
	assert.Equal(t, ForeignKeyHash(fk), ForeignKeyHash(swapped))

	idx := IndexInfo{Columns: []string{"a", "b"}, Using: "btree"}
	reordered := IndexInfo{Columns: []string{"b", "a"}, Using: "btree"}
	assert.NotEqual(t, IndexHash(idx), IndexHash(reordered))
}

func TestCheckHashCollapsesWhitespace(t *testing.T) {
	assert.Equal(t, CheckHash(`"id"  >   0`), CheckHash(`"id" > 0`))
}

func TestQuoting(t *testing.T) {
	assert.Equal(t, `"books"`, QuoteIdent("books"))
	assert.Equal(t, `"we""ird"`, QuoteIdent(`we"ird`))
	assert.Equal(t, `'it''s'`, QuoteLiteral("it's"))
	assert.Equal(t, `E'a\\b'`, QuoteLiteral(`a\b`))
	assert.Equal(t, `"public"."books"`, QualifiedName("public", "books"))
	assert.Equal(t, `"id", lower(title)`, QuoteColumns([]string{"id", "lower(title)"}))
}

func TestToSnake(t *testing.T) {
	assert.Equal(t, "author_id", ToSnake("authorId"))
	assert.Equal(t, "books", ToSnake("books"))
}
