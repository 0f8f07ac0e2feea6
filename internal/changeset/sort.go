package changeset

import (
	"sort"

	"github.com/hurou927/pgmonolayer/internal/graph"
)

// Sort orders changesets by priority, keeping difference order within a
// priority. Table creations are then reordered so that referenced tables
// come first, and table drops so that referencing tables go first. Entries
// of tableOrder are schema-qualified, as returned by graph.DependencyOrder.
// The input slice is not modified.
func Sort(changesets []Changeset, tableOrder []string) []Changeset {
	out := append([]Changeset(nil), changesets...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority < out[j].Priority
	})

	index := make(map[string]int, len(tableOrder))
	for i, t := range tableOrder {
		index[t] = i
	}
	position := func(c Changeset) int {
		if i, ok := index[graph.QualifiedName(c.SchemaName, c.TableName)]; ok {
			return i
		}
		return len(tableOrder)
	}

	reorder(out, TypeCreateTable, func(a, b Changeset) bool {
		return position(a) < position(b)
	})
	reorder(out, TypeDropTable, func(a, b Changeset) bool {
		return position(a) > position(b)
	})
	return out
}

// reorder sorts the changesets of type t among the slots they already
// occupy, leaving every other changeset in place.
func reorder(cs []Changeset, t Type, less func(a, b Changeset) bool) {
	var slots []int
	var picked []Changeset
	for i, c := range cs {
		if c.Type == t {
			slots = append(slots, i)
			picked = append(picked, c)
		}
	}
	sort.SliceStable(picked, func(i, j int) bool { return less(picked[i], picked[j]) })
	for i, slot := range slots {
		cs[slot] = picked[i]
	}
}
