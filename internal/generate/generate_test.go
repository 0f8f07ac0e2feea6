package generate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hurou927/pgmonolayer/internal/changeset"
	"github.com/hurou927/pgmonolayer/internal/definition"
	"github.com/hurou927/pgmonolayer/internal/logging"
	"github.com/hurou927/pgmonolayer/internal/schema"
)

type fakeRemote struct {
	schemas    map[string]*schema.Info
	managed    []string
	introspect []string
}

func (r *fakeRemote) Introspect(_ context.Context, name string) (*schema.Info, error) {
	r.introspect = append(r.introspect, name)
	if info, ok := r.schemas[name]; ok {
		return info.Clone(), nil
	}
	return schema.NewInfo(name, false), nil
}

func (r *fakeRemote) ManagedSchemas(context.Context) ([]string, error) {
	return r.managed, nil
}

func parse(t *testing.T, src string) *definition.Schema {
	t.Helper()
	def, err := definition.Parse([]byte(src))
	require.NoError(t, err)
	return def
}

func table(info *schema.Info, name string, columns ...string) {
	ti := schema.NewTableInfo(name)
	for _, c := range columns {
		ti.AddColumn(c, schema.ColumnInfo{DataType: "integer", IsNullable: true})
	}
	info.Tables[name] = ti
}

func typesOf(cs []changeset.Changeset) []changeset.Type {
	out := make([]changeset.Type, len(cs))
	for i, c := range cs {
		out[i] = c.Type
	}
	return out
}

func run(t *testing.T, remote Remote, confirm schema.Confirmer, defs ...*definition.Schema) []changeset.Changeset {
	t.Helper()
	cs, err := New(remote, confirm, changeset.Options{}, logging.Discard()).Changesets(context.Background(), defs)
	require.NoError(t, err)
	return cs
}

func TestChangesetsAcrossSchemas(t *testing.T) {
	remote := &fakeRemote{schemas: map[string]*schema.Info{"public": schema.NewInfo("public", true)}}
	public := parse(t, `
extensions: [pgcrypto]
tables:
  books:
    columns:
      id: integer
`)
	billing := parse(t, `
name: billing
extensions: [pgcrypto]
tables:
  invoices:
    columns:
      id: integer
`)

	cs := run(t, remote, nil, public, billing)
	assert.Equal(t, []changeset.Type{
		changeset.TypeCreateSchema,
		changeset.TypeCreateExtension,
		changeset.TypeCreateTable,
		changeset.TypeCreateTable,
	}, typesOf(cs), "extensions belong to the first schema")
	assert.Equal(t, "billing", cs[0].SchemaName)
	assert.Equal(t, "public", cs[2].SchemaName)
	assert.Equal(t, "billing", cs[3].SchemaName)
	assert.Equal(t, "invoices", cs[3].TableName)
}

func TestForeignKeyToLaterDeclaredSchema(t *testing.T) {
	app := parse(t, `
name: app
tables:
  posts:
    columns:
      id: integer
      author_id: integer
    primary_key: [id]
    foreign_keys:
      - columns: [author_id]
        references: {schema: auth, table: users, columns: [id]}
`)
	auth := parse(t, `
name: auth
tables:
  users:
    columns:
      id: integer
    primary_key: [id]
`)

	cs := run(t, &fakeRemote{}, nil, app, auth)
	var order []string
	for _, c := range cs {
		order = append(order, string(c.Type)+":"+c.SchemaName+"."+c.TableName)
	}
	assert.Equal(t, []string{
		"createSchema:app.",
		"createSchema:auth.",
		"createTable:auth.users",
		"createTable:app.posts",
		"createPrimaryKey:app.posts",
		"createPrimaryKey:auth.users",
		"createForeignKey:app.posts",
	}, order)
}

func TestUndeclaredManagedSchemaIsDropped(t *testing.T) {
	legacy := schema.NewInfo("legacy", true)
	table(legacy, "old", "id")
	remote := &fakeRemote{
		schemas: map[string]*schema.Info{"public": schema.NewInfo("public", true), "legacy": legacy},
		managed: []string{"legacy", "public"},
	}

	cs := run(t, remote, nil, parse(t, `tables: {}`))
	assert.Equal(t, []changeset.Type{changeset.TypeDropTable, changeset.TypeDropSchema}, typesOf(cs))
	for _, c := range cs {
		assert.Equal(t, changeset.PhaseContract, c.Phase)
		assert.Equal(t, "legacy", c.SchemaName)
	}
}

func TestConfirmedRename(t *testing.T) {
	def := parse(t, `
tables:
  writers:
    columns:
      id: integer
`)
	newRemote := func() *fakeRemote {
		public := schema.NewInfo("public", true)
		table(public, "authors", "id")
		return &fakeRemote{schemas: map[string]*schema.Info{"public": public}}
	}

	var asked []schema.RenameCandidate
	confirm := schema.ConfirmerFunc(func(c schema.RenameCandidate) (bool, error) {
		asked = append(asked, c)
		return true, nil
	})
	cs := run(t, newRemote(), confirm, def)
	require.Len(t, asked, 1)
	assert.Equal(t, "authors", asked[0].From)
	assert.Equal(t, "writers", asked[0].To)
	assert.Equal(t, []changeset.Type{changeset.TypeRenameTable}, typesOf(cs))

	cs = run(t, newRemote(), nil, def)
	assert.Equal(t, []changeset.Type{changeset.TypeDropTable, changeset.TypeCreateTable}, typesOf(cs))
}

func TestInvalidDefinitionsAbortBeforeIntrospection(t *testing.T) {
	remote := &fakeRemote{}
	_, err := New(remote, nil, changeset.Options{}, logging.Discard()).Changesets(context.Background(),
		[]*definition.Schema{parse(t, `name: app`), parse(t, `name: app`)})

	var genErr *definition.GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.EqualError(t, genErr, "Multiple schemas with the same name: 'app'.")
	assert.Empty(t, remote.introspect)
}

func TestWarningsAndUnsafe(t *testing.T) {
	cs := []changeset.Changeset{
		{Type: changeset.TypeDropTable, Phase: changeset.PhaseContract,
			Warnings: []changeset.Warning{{Type: changeset.WarningDestructive, Code: changeset.CodeTableDrop}}},
		{Type: changeset.TypeRenameCheck, Phase: changeset.PhaseUnsafe},
	}
	assert.Len(t, Warnings(cs), 1)
	unsafe := Unsafe(cs)
	require.Len(t, unsafe, 1)
	assert.Equal(t, changeset.TypeRenameCheck, unsafe[0].Type)
	assert.Len(t, cs, 2)
}
