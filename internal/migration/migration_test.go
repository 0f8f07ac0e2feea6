package migration

import (
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hurou927/pgmonolayer/internal/changeset"
)

var start = time.Date(2024, 4, 5, 15, 38, 57, 123*int(time.Millisecond), time.UTC)

func cs(phase changeset.Phase, name string, noTx bool) changeset.Changeset {
	return changeset.Changeset{
		Phase:         phase,
		Up:            []changeset.Step{{SQL: []string{"up " + name}}},
		Down:          []changeset.Step{{SQL: []string{"down " + name}}},
		NoTransaction: noTx,
	}
}

func TestTimestampAndSlug(t *testing.T) {
	assert.Equal(t, "20240405T153857123", Timestamp(start))
	assert.Equal(t, "add-books-table", Slug("Add Books  table!"))
	assert.Equal(t, "", Slug("!!"))
}

func TestPlan(t *testing.T) {
	changesets := []changeset.Changeset{
		cs(changeset.PhaseExpand, "a", false),
		cs(changeset.PhaseExpand, "b", false),
		cs(changeset.PhaseExpand, "c", true),
		cs(changeset.PhaseExpand, "d", false),
		cs(changeset.PhaseAlter, "e", true),
		cs(changeset.PhaseContract, "f", false),
		cs(changeset.PhaseUnsafe, "g", false),
	}
	latest := map[changeset.Phase]string{changeset.PhaseExpand: "20240101T000000000-old"}

	ms := Plan(changesets, "Books", latest, start)
	require.Len(t, ms, 6)

	names := make([]string, len(ms))
	for i, m := range ms {
		names[i] = m.Name
	}
	assert.Equal(t, []string{
		"20240405T153857123-books",
		"20240405T153857124-books",
		"20240405T153857125-books",
		"20240405T153857126-books",
		"20240405T153857127-books",
		"20240405T153857128-books",
	}, names)

	expand1 := ms[0]
	assert.Equal(t, "20240101T000000000-old", expand1.DependsOn)
	assert.True(t, expand1.Transaction)
	assert.Equal(t, []string{"up a", "up b"}, statements(expand1.Up))
	assert.Equal(t, []string{"down b", "down a"}, statements(expand1.Down))
	assert.Equal(t, "expand/20240405T153857123-books.yaml", expand1.Path)

	assert.False(t, ms[1].Transaction)
	assert.Equal(t, ms[0].Name, ms[1].DependsOn)
	assert.Equal(t, ms[1].Name, ms[2].DependsOn)
	assert.True(t, ms[2].Transaction)

	assert.Equal(t, changeset.PhaseAlter, ms[3].Phase)
	assert.Empty(t, ms[3].DependsOn)
	assert.Equal(t, changeset.PhaseContract, ms[4].Phase)

	unsafe := ms[5]
	assert.True(t, unsafe.Scaffold)
	assert.Equal(t, changeset.PhaseUnsafe, unsafe.Phase)
	assert.Equal(t, "unsafe/20240405T153857128-books.yaml", unsafe.Path)
	assert.Empty(t, unsafe.DependsOn)
}

func TestWriterChainsExistingMigrations(t *testing.T) {
	dir := t.TempDir()
	w := &Writer{Folder: dir, Now: func() time.Time { return start }}

	first, err := w.Write([]changeset.Changeset{cs(changeset.PhaseExpand, "a", false)}, "")
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, "20240405T153857123-migration", first[0].Name)

	w.Now = func() time.Time { return start.Add(time.Second) }
	second, err := w.Write([]changeset.Changeset{cs(changeset.PhaseExpand, "b", true)}, "next")
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].Name, second[0].DependsOn)

	ms, err := NewFSProvider(os.DirFS(dir)).Migrations()
	require.NoError(t, err)
	require.Len(t, ms, 2)
	assert.Equal(t, first[0].Name, ms[0].Name)
	assert.Equal(t, second[0].Name, ms[1].Name)
	assert.False(t, ms[1].Transaction)
	assert.Equal(t, []string{"up b"}, statements(ms[1].Up))
	assert.Equal(t, second[0].Checksum(), ms[1].Checksum())

	require.NoError(t, w.Remove(ms[1]))
	_, err = os.Stat(filepath.Join(dir, "expand", FileName(second[0].Name)))
	assert.True(t, os.IsNotExist(err))
}

func TestWriterRemovesFilesOfFailedWrite(t *testing.T) {
	dir := t.TempDir()
	blocker := &Writer{Folder: dir, Now: func() time.Time { return start.Add(time.Millisecond) }}
	existing, err := blocker.Write([]changeset.Changeset{cs(changeset.PhaseExpand, "x", false)}, "")
	require.NoError(t, err)
	require.Len(t, existing, 1)

	w := &Writer{Folder: dir, Now: func() time.Time { return start }}
	_, err = w.Write([]changeset.Changeset{
		cs(changeset.PhaseExpand, "a", false),
		cs(changeset.PhaseExpand, "b", true),
	}, "")
	require.Error(t, err, "the second migration collides with the existing file")

	_, err = os.Stat(filepath.Join(dir, "expand", FileName("20240405T153857123-migration")))
	assert.True(t, os.IsNotExist(err), "the first migration is removed again")

	ms, err := NewFSProvider(os.DirFS(dir)).Migrations()
	require.NoError(t, err)
	require.Len(t, ms, 1)
	assert.Equal(t, existing[0].Name, ms[0].Name)
	assert.Equal(t, []string{"up x"}, statements(ms[0].Up))
}

func TestWriterScaffold(t *testing.T) {
	dir := t.TempDir()
	w := &Writer{Folder: dir, Now: func() time.Time { return start }}
	m, err := w.Scaffold(changeset.PhaseData, "backfill emails", false)
	require.NoError(t, err)

	ms, err := NewFSProvider(os.DirFS(dir)).Phase(changeset.PhaseData)
	require.NoError(t, err)
	require.Len(t, ms, 1)
	assert.Equal(t, m.Name, ms[0].Name)
	assert.Equal(t, "20240405T153857123-backfill-emails", ms[0].Name)
	assert.True(t, ms[0].Scaffold)
	assert.False(t, ms[0].Transaction)
	assert.Empty(t, ms[0].Up)

	_, err = w.Scaffold(changeset.PhaseData, "backfill emails", false)
	assert.Error(t, err, "existing files are never overwritten")
}

func TestFSProvider(t *testing.T) {
	fsys := fstest.MapFS{
		"expand/20240101T000000000-b.yaml": {Data: []byte("name: 20240101T000000000-b\nup:\n  - sql: [\"SELECT 2\"]\n")},
		"expand/20240101T000000000-a.yaml": {Data: []byte("name: 20240101T000000000-a\nphase: expand\n")},
		"expand/notes.txt":                 {Data: []byte("ignored")},
		"unsafe/20240101T000000000-u.yaml": {Data: []byte("name: 20240101T000000000-u\nphase: unsafe\nscaffold: true\n")},
	}
	p := NewFSProvider(fsys)

	ms, err := p.Migrations()
	require.NoError(t, err)
	require.Len(t, ms, 2)
	assert.Equal(t, "20240101T000000000-a", ms[0].Name)
	assert.Equal(t, changeset.PhaseExpand, ms[1].Phase, "phase defaults to the directory")
	assert.True(t, ms[1].Transaction, "migrations are transactional unless stated")
	assert.Equal(t, []string{"SELECT 2"}, statements(ms[1].Up))

	unsafe, err := p.Unsafe()
	require.NoError(t, err)
	require.Len(t, unsafe, 1)

	latest, err := p.Latest(changeset.PhaseExpand)
	require.NoError(t, err)
	assert.Equal(t, "20240101T000000000-b", latest)
	latest, err = p.Latest(changeset.PhaseContract)
	require.NoError(t, err)
	assert.Empty(t, latest)
}

func TestFSProviderRejectsInconsistentFiles(t *testing.T) {
	_, err := NewFSProvider(fstest.MapFS{
		"alter/20240101T000000000-a.yaml": {Data: []byte("name: 20240101T000000000-a\nphase: expand\n")},
	}).Migrations()
	assert.ErrorContains(t, err, "declares phase")

	_, err = NewFSProvider(fstest.MapFS{
		"alter/20240101T000000000-a.yaml": {Data: []byte("name: other\n")},
	}).Migrations()
	assert.ErrorContains(t, err, `expected "20240101T000000000-a"`)

	_, err = NewFSProvider(fstest.MapFS{
		"alter/20240101T000000000-a.yaml": {Data: []byte("up: []\n")},
	}).Migrations()
	assert.ErrorContains(t, err, "has no name")
}

func TestChecksumCoversPayloadOnly(t *testing.T) {
	a := &Migration{Name: "a", Up: []changeset.Step{{SQL: []string{"SELECT 1"}}}}
	b := &Migration{Name: "b", Scaffold: true, Up: []changeset.Step{{SQL: []string{"SELECT 1"}}}}
	assert.Equal(t, a.Checksum(), b.Checksum())
	assert.Len(t, a.Checksum(), 64)

	b.Down = []changeset.Step{{SQL: []string{"SELECT 2"}}}
	assert.NotEqual(t, a.Checksum(), b.Checksum())
}

func TestFSProviderRejectsUnassignedPhase(t *testing.T) {
	_, err := NewFSProvider(fstest.MapFS{
		"contract/20240101T000000000-a.yaml": {Data: []byte("name: 20240101T000000000-a\nphase: unsafe\nscaffold: true\n")},
	}).Migrations()
	assert.ErrorContains(t, err, "still has phase unsafe: set it to contract")
}

func statements(steps []changeset.Step) []string {
	var out []string
	for _, s := range steps {
		out = append(out, s.SQL...)
	}
	return out
}
