// Package diff computes a structural, path-addressed difference between two
// trees of map[string]any, []any and comparable leaves.
package diff

import (
	"sort"
	"strconv"
	"strings"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// Type is the kind of a difference.
type Type string

const (
	Create Type = "CREATE"
	Remove Type = "REMOVE"
	Change Type = "CHANGE"
)

// Difference addresses one location that differs between two trees. Value
// is the new value (CREATE, CHANGE) and OldValue the previous one (REMOVE,
// CHANGE).
type Difference struct {
	Type     Type
	Path     []string
	Value    any
	OldValue any
}

// String renders the difference for logs.
func (d Difference) String() string {
	return string(d.Type) + " " + strings.Join(d.Path, "/")
}

// Compute returns the differences that turn old into new. Map keys are
// visited in sorted order: removals and changes of keys present in old come
// first, then creations of keys only present in new. The result is fully
// determined by the inputs.
func Compute(old, new map[string]any) []Difference {
	var out []Difference
	diffMaps(nil, old, new, &out)
	return out
}

func diffMaps(path []string, old, new map[string]any, out *[]Difference) {
	for _, k := range sortedKeys(old) {
		p := appendPath(path, k)
		nv, ok := new[k]
		if !ok {
			*out = append(*out, Difference{Type: Remove, Path: p, OldValue: old[k]})
			continue
		}
		diffValues(p, old[k], nv, out)
	}
	for _, k := range sortedKeys(new) {
		if _, ok := old[k]; ok {
			continue
		}
		*out = append(*out, Difference{Type: Create, Path: appendPath(path, k), Value: new[k]})
	}
}

func diffSlices(path []string, old, new []any, out *[]Difference) {
	for i, ov := range old {
		p := appendPath(path, strconv.Itoa(i))
		if i >= len(new) {
			*out = append(*out, Difference{Type: Remove, Path: p, OldValue: ov})
			continue
		}
		diffValues(p, ov, new[i], out)
	}
	for i := len(old); i < len(new); i++ {
		*out = append(*out, Difference{Type: Create, Path: appendPath(path, strconv.Itoa(i)), Value: new[i]})
	}
}

func diffValues(path []string, old, new any, out *[]Difference) {
	switch o := old.(type) {
	case map[string]any:
		if n, ok := new.(map[string]any); ok {
			diffMaps(path, o, n, out)
			return
		}
	case []any:
		if n, ok := new.([]any); ok {
			diffSlices(path, o, n, out)
			return
		}
	}
	if !cmp.Equal(old, new, cmpopts.EquateEmpty()) {
		*out = append(*out, Difference{Type: Change, Path: path, Value: new, OldValue: old})
	}
}

func appendPath(path []string, k string) []string {
	p := make([]string, len(path), len(path)+1)
	copy(p, path)
	return append(p, k)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
