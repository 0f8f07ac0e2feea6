package migration

import (
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/hurou927/pgmonolayer/internal/changeset"
)

// Provider lists the migrations available to the executor.
type Provider interface {
	Migrations() ([]*Migration, error)
}

// FSProvider reads migrations from <phase>/*.yaml in a file system.
type FSProvider struct {
	FS fs.FS
}

// NewFSProvider returns a provider over fsys.
func NewFSProvider(fsys fs.FS) *FSProvider {
	return &FSProvider{FS: fsys}
}

// Migrations returns the migrations of every executable phase, in phase
// order and by name within a phase.
func (p *FSProvider) Migrations() ([]*Migration, error) {
	var out []*Migration
	for _, phase := range changeset.Phases {
		ms, err := p.Phase(phase)
		if err != nil {
			return nil, err
		}
		out = append(out, ms...)
	}
	return out, nil
}

// Phase returns the migrations of one phase directory sorted by name.
func (p *FSProvider) Phase(phase changeset.Phase) ([]*Migration, error) {
	ms, err := p.dir(string(phase))
	if err != nil {
		return nil, err
	}
	for _, m := range ms {
		if m.Phase == "" {
			m.Phase = phase
		}
		if m.Phase == changeset.PhaseUnsafe {
			return nil, fmt.Errorf("migration %s still has phase unsafe: set it to %s before applying", m.Name, phase)
		}
		if m.Phase != phase {
			return nil, fmt.Errorf("migration %s is in the %s directory but declares phase %q", m.Name, phase, m.Phase)
		}
	}
	return ms, nil
}

// Unsafe returns the migrations still waiting for a phase.
func (p *FSProvider) Unsafe() ([]*Migration, error) {
	return p.dir(UnsafeDir)
}

func (p *FSProvider) dir(dir string) ([]*Migration, error) {
	files, err := fs.Glob(p.FS, path.Join(dir, "*"+Ext))
	if err != nil {
		return nil, fmt.Errorf("listing %s migrations: %w", dir, err)
	}
	sort.Strings(files)

	out := make([]*Migration, 0, len(files))
	for _, f := range files {
		data, err := fs.ReadFile(p.FS, f)
		if err != nil {
			return nil, fmt.Errorf("reading migration %s: %w", f, err)
		}
		m, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("parsing migration %s: %w", f, err)
		}
		if want := strings.TrimSuffix(path.Base(f), Ext); m.Name != want {
			return nil, fmt.Errorf("migration %s is named %q, expected %q", f, m.Name, want)
		}
		m.Path = f
		out = append(out, m)
	}
	return out, nil
}

// Latest returns the name of the last migration of a phase, or "" when the
// phase has none yet.
func (p *FSProvider) Latest(phase changeset.Phase) (string, error) {
	files, err := fs.Glob(p.FS, path.Join(string(phase), "*"+Ext))
	if err != nil {
		return "", fmt.Errorf("listing %s migrations: %w", phase, err)
	}
	if len(files) == 0 {
		return "", nil
	}
	sort.Strings(files)
	return strings.TrimSuffix(path.Base(files[len(files)-1]), Ext), nil
}
