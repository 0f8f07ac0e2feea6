package definition

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const booksYAML = `
name: public
extensions: [moddatetime]
enums:
  status: [draft, published]
tables:
  authors:
    columns:
      id: {type: integer, not_null: true}
      name: text
    primary_key: [id]
  books:
    columns:
      id: integer
      title: {type: text, not_null: true}
      status: {type: status, default: "'draft'"}
      authorId: integer
    primary_key: [title]
    unique:
      - columns: [id]
        nulls_distinct: false
    foreign_keys:
      - columns: [authorId]
        references: {table: authors, columns: [id]}
        on_delete: cascade
    checks:
      - '"id" > 0'
    indexes:
      - columns: [lower(title)]
    triggers:
      updated_at:
        timing: before
        events: [update]
        for_each: row
        function: moddatetime
        args: [updated_at]
`

func TestParseKeepsDeclarationOrder(t *testing.T) {
	s, err := Parse([]byte(booksYAML))
	require.NoError(t, err)

	require.Len(t, s.Tables, 2)
	assert.Equal(t, "authors", s.Tables[0].Name)
	books := s.Tables[1]
	assert.Equal(t, "books", books.Name)

	var names []string
	for _, c := range books.Columns {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"id", "title", "status", "authorId"}, names)

	assert.Equal(t, "integer", books.Column("id").Type)
	assert.False(t, books.Column("id").NotNull)
	assert.True(t, books.Column("title").NotNull)
	require.NotNil(t, books.Column("status").Default)
	assert.Equal(t, "'draft'", *books.Column("status").Default)

	require.Len(t, books.Unique, 1)
	assert.False(t, books.Unique[0].Distinct())
	assert.Equal(t, []Enum{{Name: "status", Values: []string{"draft", "published"}}}, []Enum(s.Enums))
	require.Len(t, books.Triggers, 1)
	assert.Equal(t, "updated_at", books.Triggers[0].Name)
	assert.Equal(t, []string{"update"}, books.Triggers[0].Events)

	require.NoError(t, Validate([]*Schema{s}))
}

func TestParseDefaultsSchemaName(t *testing.T) {
	s, err := Parse([]byte("tables: {}\n"))
	require.NoError(t, err)
	assert.Equal(t, "public", s.Name)
}

func TestParseRejectsNonMapping(t *testing.T) {
	_, err := Parse([]byte("tables: [a, b]\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected a mapping")
}

func TestValidateDuplicateSchemas(t *testing.T) {
	a := &Schema{Name: "app"}
	b := &Schema{Name: "app"}

	err := Validate([]*Schema{a, b})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Multiple schemas with the same name: 'app'.")

	var genErr *GenerationError
	assert.True(t, errors.As(err, &genErr))
}

func TestValidateDanglingForeignKey(t *testing.T) {
	s, err := Parse([]byte(`
tables:
  books:
    columns:
      authorId: integer
    foreign_keys:
      - columns: [authorId]
        references: {table: authors, columns: [id]}
`))
	require.NoError(t, err)

	err = Validate([]*Schema{s})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "public.books: foreign key references unknown table public.authors")
}

func TestValidateUnknownColumns(t *testing.T) {
	s, err := Parse([]byte(`
tables:
  books:
    columns:
      id: integer
    primary_key: [uuid]
    indexes:
      - columns: [lower(title)]
      - columns: [title]
`))
	require.NoError(t, err)

	err = Validate([]*Schema{s})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `primary key references unknown column "uuid"`)
	assert.Contains(t, err.Error(), `index references unknown column "title"`)
	assert.NotContains(t, err.Error(), "lower(title)")
}
