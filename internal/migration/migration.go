// Package migration defines the on-disk migration format and reads and
// writes migration files grouped under phase directories.
package migration

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hurou927/pgmonolayer/internal/changeset"
)

// Ext is the extension of migration files.
const Ext = ".yaml"

// UnsafeDir holds changesets that need an operator to choose their phase.
// The executor never reads it.
const UnsafeDir = string(changeset.PhaseUnsafe)

// Migration is one migration file.
type Migration struct {
	Name        string              `yaml:"name"`
	Phase       changeset.Phase     `yaml:"phase"`
	DependsOn   string              `yaml:"depends_on,omitempty"`
	Transaction bool                `yaml:"transaction"`
	Scaffold    bool                `yaml:"scaffold"`
	Warnings    []changeset.Warning `yaml:"warnings,omitempty"`
	Up          []changeset.Step    `yaml:"up"`
	Down        []changeset.Step    `yaml:"down"`

	// Path is the file's location relative to the migrations folder.
	Path string `yaml:"-"`
}

// Checksum identifies the up and down payload of the migration. Metadata
// such as the scaffold flag does not change it.
func (m *Migration) Checksum() string {
	payload, err := yaml.Marshal(struct {
		Up   []changeset.Step `yaml:"up"`
		Down []changeset.Step `yaml:"down"`
	}{m.Up, m.Down})
	if err != nil {
		// Steps hold only strings.
		panic(fmt.Sprintf("encoding migration payload: %v", err))
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// Parse decodes a migration file.
func Parse(data []byte) (*Migration, error) {
	m := &Migration{Transaction: true}
	if err := yaml.Unmarshal(data, m); err != nil {
		return nil, err
	}
	if m.Name == "" {
		return nil, fmt.Errorf("migration has no name")
	}
	return m, nil
}

// Encode renders the migration file.
func (m *Migration) Encode() ([]byte, error) {
	var b strings.Builder
	enc := yaml.NewEncoder(&b)
	enc.SetIndent(2)
	if err := enc.Encode(m); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return []byte(b.String()), nil
}

// Timestamp renders the name prefix for t, "20060102T150405" followed by
// milliseconds, so that lexical order of names is creation order.
func Timestamp(t time.Time) string {
	t = t.UTC()
	return t.Format("20060102T150405") + fmt.Sprintf("%03d", t.Nanosecond()/int(time.Millisecond))
}

// FileName returns the file name of a migration name.
func FileName(name string) string {
	return name + Ext
}

// Slug turns free text into the descriptive part of a migration name.
func Slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
