package graph

import (
	"fmt"
	"sort"

	"github.com/hurou927/pgmonolayer/internal/schema"
)

// TopoResult holds the result of topological sorting.
type TopoResult struct {
	// Order is the topological order (parents before children).
	Order []string
	// HasCycle is true if the graph contains a cycle.
	HasCycle bool
	// CycleTables lists tables involved in cycles (if any).
	CycleTables []string
}

// TopoSort performs Kahn's algorithm on the given set of tables within the graph.
// Returns tables in dependency order: parents first, then children. Ties
// are broken by table name.
func TopoSort(g *Graph, tables []string) TopoResult {
	tables = append([]string(nil), tables...)
	sort.Strings(tables)

	tableSet := make(map[string]bool, len(tables))
	for _, t := range tables {
		tableSet[t] = true
	}

	// In-degree = number of parent edges within the subset
	inDegree := make(map[string]int, len(tables))
	localChildren := make(map[string][]string)
	for _, t := range tables {
		inDegree[t] += 0
		for _, p := range g.Parents[t] {
			if tableSet[p] {
				localChildren[p] = append(localChildren[p], t)
				inDegree[t]++
			}
		}
	}

	var queue []string
	for _, t := range tables {
		if inDegree[t] == 0 {
			queue = append(queue, t)
		}
	}

	var order []string
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		order = append(order, node)

		var ready []string
		for _, child := range localChildren[node] {
			inDegree[child]--
			if inDegree[child] == 0 {
				ready = append(ready, child)
			}
		}
		sort.Strings(ready)
		queue = append(queue, ready...)
	}

	result := TopoResult{Order: order}

	if len(order) < len(tables) {
		result.HasCycle = true
		for _, t := range tables {
			if inDegree[t] > 0 {
				result.CycleTables = append(result.CycleTables, t)
			}
		}
	}

	return result
}

// TopoSortAll performs topological sort across all tables in the graph.
func TopoSortAll(g *Graph) TopoResult {
	return TopoSort(g, g.names())
}

// ValidateCycles checks for cycles and returns a descriptive error if found.
func ValidateCycles(result TopoResult) error {
	if !result.HasCycle {
		return nil
	}
	return fmt.Errorf("circular dependency detected among tables: %v", result.CycleTables)
}

// TableOrder returns every table of info in dependency order. Tables caught
// in a foreign-key cycle follow the acyclic ones in name order; their
// constraints are added after all tables exist, so creation still succeeds.
func TableOrder(info *schema.Info) []string {
	res := TopoSortAll(Build(info))
	return append(res.Order, res.CycleTables...)
}

// DependencyOrder merges the table orders of the desired and the live
// snapshot: local tables first, then tables that only exist remotely.
// Names are qualified with their schema.
func DependencyOrder(local, remote *schema.Info) []string {
	return DependencyOrderAll([]*schema.Info{local}, []*schema.Info{remote})
}

// DependencyOrderAll is DependencyOrder over several schemas at once, so
// that foreign keys between schemas order their tables too.
func DependencyOrderAll(locals, remotes []*schema.Info) []string {
	order := TableOrder(merge(locals))
	seen := make(map[string]bool, len(order))
	for _, t := range order {
		seen[t] = true
	}
	for _, t := range TableOrder(merge(remotes)) {
		if !seen[t] {
			order = append(order, t)
		}
	}
	return order
}

// QualifiedName joins a schema and a table name. An empty schema leaves the
// table name alone.
func QualifiedName(schemaName, table string) string {
	if schemaName == "" {
		return table
	}
	return schemaName + "." + table
}

// merge returns a single snapshot holding the tables of every info under
// their qualified names, with foreign keys pointing at qualified targets.
func merge(infos []*schema.Info) *schema.Info {
	out := schema.NewInfo("", true)
	for _, info := range infos {
		if info == nil {
			continue
		}
		for name, tbl := range info.Tables {
			t := *tbl
			t.ForeignKeys = make(map[string]schema.ForeignKeyInfo, len(tbl.ForeignKeys))
			for key, fk := range tbl.ForeignKeys {
				target := fk.TargetSchema
				if target == "" {
					target = info.Name
				}
				fk.TargetTable = QualifiedName(target, fk.TargetTable)
				fk.TargetSchema = ""
				t.ForeignKeys[key] = fk
			}
			out.Tables[QualifiedName(info.Name, name)] = &t
		}
	}
	return out
}
