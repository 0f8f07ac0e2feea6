package migration

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/hurou927/pgmonolayer/internal/changeset"
)

// DefaultName is the descriptive part of generated migration names when
// none is given.
const DefaultName = "migration"

// Writer writes changesets as migration files under Folder.
type Writer struct {
	Folder string
	// Now defaults to time.Now.
	Now func() time.Time
}

// NewWriter returns a writer for folder.
func NewWriter(folder string) *Writer {
	return &Writer{Folder: folder, Now: time.Now}
}

// Write plans the migrations for the sorted changesets and writes them.
// Each new migration of a phase depends on the previous one, including
// files already in the folder. When a file cannot be written, the files
// created by this call are removed again.
func (w *Writer) Write(changesets []changeset.Changeset, name string) (_ []*Migration, err error) {
	provider := NewFSProvider(os.DirFS(w.Folder))
	latest := make(map[changeset.Phase]string, len(changeset.Phases))
	for _, phase := range changeset.Phases {
		l, err := provider.Latest(phase)
		if err != nil {
			return nil, err
		}
		latest[phase] = l
	}

	ms := Plan(changesets, name, latest, w.now())
	var written []*Migration
	defer func() {
		if err == nil {
			return
		}
		for _, m := range written {
			if rmErr := w.Remove(m); rmErr != nil {
				err = errors.Join(err, rmErr)
			}
		}
	}()
	for _, m := range ms {
		if err := w.create(m); err != nil {
			return nil, err
		}
		written = append(written, m)
	}
	return ms, nil
}

// Scaffold writes an empty migration for an operator to fill in.
func (w *Writer) Scaffold(phase changeset.Phase, name string, transaction bool) (*Migration, error) {
	latest, err := NewFSProvider(os.DirFS(w.Folder)).Latest(phase)
	if err != nil {
		return nil, err
	}
	m := &Migration{
		Name:        Timestamp(w.now()) + "-" + slugOrDefault(name),
		Phase:       phase,
		DependsOn:   latest,
		Transaction: transaction,
		Scaffold:    true,
	}
	m.Path = path.Join(string(phase), FileName(m.Name))
	if err := w.create(m); err != nil {
		return nil, err
	}
	return m, nil
}

// Remove deletes the file of a migration.
func (w *Writer) Remove(m *Migration) error {
	if err := os.Remove(filepath.Join(w.Folder, filepath.FromSlash(m.Path))); err != nil {
		return fmt.Errorf("removing migration %s: %w", m.Name, err)
	}
	return nil
}

func (w *Writer) create(m *Migration) error {
	data, err := m.Encode()
	if err != nil {
		return fmt.Errorf("encoding migration %s: %w", m.Name, err)
	}
	p := filepath.Join(w.Folder, filepath.FromSlash(m.Path))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("creating migration directory: %w", err)
	}
	f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("creating migration %s: %w", m.Name, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(p)
		return fmt.Errorf("writing migration %s: %w", m.Name, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(p)
		return fmt.Errorf("writing migration %s: %w", m.Name, err)
	}
	return nil
}

func (w *Writer) now() time.Time {
	if w.Now == nil {
		return time.Now()
	}
	return w.Now()
}

// Plan groups sorted changesets into migrations without touching the disk.
// Consecutive transactional changesets of a phase share one migration;
// every non-transactional changeset gets its own. Unsafe changesets become
// individual scaffolded migrations in UnsafeDir. latest holds the last
// existing migration per phase. Names start at start and advance one
// millisecond per migration.
func Plan(changesets []changeset.Changeset, name string, latest map[changeset.Phase]string, start time.Time) []*Migration {
	slug := slugOrDefault(name)
	clock := start
	nextName := func() string {
		n := Timestamp(clock) + "-" + slug
		clock = clock.Add(time.Millisecond)
		return n
	}

	byPhase := make(map[changeset.Phase][]changeset.Changeset)
	for _, cs := range changesets {
		byPhase[cs.Phase] = append(byPhase[cs.Phase], cs)
	}

	var out []*Migration
	for _, phase := range changeset.Phases {
		prev := latest[phase]
		for _, group := range transactionGroups(byPhase[phase]) {
			m := fromChangesets(nextName(), phase, group)
			m.DependsOn = prev
			prev = m.Name
			out = append(out, m)
		}
	}
	for _, cs := range byPhase[changeset.PhaseUnsafe] {
		m := fromChangesets(nextName(), changeset.PhaseUnsafe, []changeset.Changeset{cs})
		m.Scaffold = true
		m.Path = path.Join(UnsafeDir, FileName(m.Name))
		out = append(out, m)
	}
	return out
}

func transactionGroups(cs []changeset.Changeset) [][]changeset.Changeset {
	var groups [][]changeset.Changeset
	var current []changeset.Changeset
	for _, c := range cs {
		if c.Transactional() {
			current = append(current, c)
			continue
		}
		if len(current) > 0 {
			groups = append(groups, current)
			current = nil
		}
		groups = append(groups, []changeset.Changeset{c})
	}
	if len(current) > 0 {
		groups = append(groups, current)
	}
	return groups
}

// fromChangesets concatenates the ups in order and the downs in reverse
// changeset order.
func fromChangesets(name string, phase changeset.Phase, group []changeset.Changeset) *Migration {
	m := &Migration{
		Name:        name,
		Phase:       phase,
		Transaction: group[0].Transactional(),
		Path:        path.Join(string(phase), FileName(name)),
	}
	for _, cs := range group {
		m.Up = append(m.Up, cs.Up...)
		m.Warnings = append(m.Warnings, cs.Warnings...)
	}
	for i := len(group) - 1; i >= 0; i-- {
		m.Down = append(m.Down, group[i].Down...)
	}
	return m
}

func slugOrDefault(name string) string {
	if s := Slug(name); s != "" {
		return s
	}
	return DefaultName
}
