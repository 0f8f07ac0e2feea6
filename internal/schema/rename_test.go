package schema

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func table(name string, cols map[string]ColumnInfo) *TableInfo {
	t := NewTableInfo(name)
	for _, c := range sortedKeys(cols) {
		t.AddColumn(c, cols[c])
	}
	return t
}

func TestDetectTableRenames(t *testing.T) {
	cols := map[string]ColumnInfo{"id": {DataType: "integer"}, "name": {DataType: "text", IsNullable: true}}
	local := NewInfo("public", true)
	local.Tables["b"] = table("b", cols)
	remote := NewInfo("public", true)
	remote.Tables["a"] = table("a", cols)
	remote.Tables["c"] = table("c", map[string]ColumnInfo{"id": {DataType: "bigint"}})

	got := DetectTableRenames(local, remote)
	assert.Equal(t, []RenameCandidate{{Kind: RenameTable, From: "a", To: "b"}}, got)
}

func TestResolveRenamesTablesThenColumns(t *testing.T) {
	local := NewInfo("public", true)
	local.Tables["writers"] = table("writers", map[string]ColumnInfo{
		"id":        {DataType: "integer"},
		"full_name": {DataType: "text", IsNullable: true},
	})
	remote := NewInfo("public", true)
	remote.Tables["authors"] = table("authors", map[string]ColumnInfo{
		"id":   {DataType: "integer"},
		"name": {DataType: "text", IsNullable: true},
	})

	// Column structures differ, so the table pair is never proposed.
	var asked []string
	confirm := ConfirmerFunc(func(c RenameCandidate) (bool, error) {
		asked = append(asked, c.String())
		return true, nil
	})
	r, err := ResolveRenames(local, remote, confirm)
	require.NoError(t, err)
	assert.True(t, r.Empty())
	assert.Empty(t, asked)

	same := map[string]ColumnInfo{
		"id":   {DataType: "integer"},
		"name": {DataType: "text", IsNullable: true},
	}
	local.Tables["writers"] = table("writers", same)
	remote.Tables["authors"] = table("authors", same)

	r, err = ResolveRenames(local, remote, confirm)
	require.NoError(t, err)
	assert.Equal(t, []TableRename{{From: "authors", To: "writers"}}, r.Tables)
	assert.Empty(t, r.Columns)
}

func TestResolveRenamesColumnAndError(t *testing.T) {
	local := NewInfo("public", true)
	local.Tables["books"] = table("books", map[string]ColumnInfo{"isbn": {DataType: "text", IsNullable: true}})
	remote := NewInfo("public", true)
	remote.Tables["books"] = table("books", map[string]ColumnInfo{"code": {DataType: "text", IsNullable: true}})

	r, err := ResolveRenames(local, remote, ConfirmerFunc(func(RenameCandidate) (bool, error) { return true, nil }))
	require.NoError(t, err)
	assert.Equal(t, []ColumnRename{{Table: "books", From: "code", To: "isbn"}}, r.Columns)
	assert.Equal(t, "code", r.PreviousColumn("books", "isbn"))

	boom := errors.New("boom")
	_, err = ResolveRenames(local, remote, ConfirmerFunc(func(RenameCandidate) (bool, error) { return false, boom }))
	assert.ErrorIs(t, err, boom)
}

func TestApplyRenames(t *testing.T) {
	remote := NewInfo("public", true)
	authors := table("authors", map[string]ColumnInfo{"id": {DataType: "integer"}})
	books := table("books", map[string]ColumnInfo{"code": {DataType: "text"}, "author_id": {DataType: "integer"}})
	uniqueKey := UniqueHash([]string{"code"}, true)
	books.Unique[uniqueKey] = UniqueInfo{Name: "books_x_monolayer_key", Columns: []string{"code"}, NullsDistinct: true}
	books.Checks["c1"] = CheckInfo{Name: "chk", Definition: "CHECK ((length(code) > 3))"}
	books.ForeignKeys["f1"] = ForeignKeyInfo{Name: "fk", Columns: []string{"author_id"}, TargetSchema: "public",
		TargetTable: "authors", TargetColumns: []string{"id"}}
	remote.Tables["authors"] = authors
	remote.Tables["books"] = books

	r := Renames{
		Tables:  []TableRename{{From: "authors", To: "writers"}},
		Columns: []ColumnRename{{Table: "books", From: "code", To: "isbn"}},
	}
	out := ApplyRenames(remote, r)

	assert.Contains(t, out.Tables, "writers")
	assert.NotContains(t, out.Tables, "authors")

	b := out.Tables["books"]
	assert.Contains(t, b.Columns, "isbn")
	assert.NotContains(t, b.Columns, "code")
	assert.Equal(t, []string{"isbn"}, b.Unique[uniqueKey].Columns, "key unchanged, columns renamed")
	assert.Equal(t, "books_x_monolayer_key", b.Unique[uniqueKey].Name)
	assert.Equal(t, "CHECK ((length(isbn) > 3))", b.Checks["c1"].Definition)
	assert.Equal(t, "writers", b.ForeignKeys["f1"].TargetTable)

	// the input is untouched
	assert.Contains(t, remote.Tables, "authors")
	assert.Equal(t, []string{"code"}, remote.Tables["books"].Unique[uniqueKey].Columns)
}
