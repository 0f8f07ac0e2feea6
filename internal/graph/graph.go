package graph

import (
	"slices"
	"sort"

	"github.com/hurou927/pgmonolayer/internal/schema"
)

// Edge represents a directed edge from child to parent (FK direction).
type Edge struct {
	FK          schema.ForeignKeyInfo
	ChildTable  string
	ParentTable string
}

// Graph is a directed graph built from the foreign keys of one schema.
type Graph struct {
	// Schema is the name of the snapshot the graph was built from.
	Schema string

	// Tables maps table name -> table
	Tables map[string]*schema.TableInfo

	// Edges are non-self-referential FK edges (child → parent)
	Edges []Edge

	// SelfRefs holds self-referential FKs, keyed by table name
	SelfRefs map[string][]schema.ForeignKeyInfo

	// Children maps parent → list of child tables
	Children map[string][]string

	// Parents maps child → list of parent tables
	Parents map[string][]string

	// adjacency for undirected connectivity
	Adjacency map[string]map[string]bool
}

// Build constructs a directed graph from a schema snapshot. Foreign keys
// that reference tables of other schemas are ignored. Tables and foreign
// keys are visited in sorted order so that every derived ordering is stable.
func Build(info *schema.Info) *Graph {
	g := &Graph{
		Schema:    info.Name,
		Tables:    make(map[string]*schema.TableInfo),
		SelfRefs:  make(map[string][]schema.ForeignKeyInfo),
		Children:  make(map[string][]string),
		Parents:   make(map[string][]string),
		Adjacency: make(map[string]map[string]bool),
	}

	for name, tbl := range info.Tables {
		g.Tables[name] = tbl
		g.Adjacency[name] = make(map[string]bool)
	}

	for _, name := range info.TableNames() {
		tbl := info.Tables[name]
		for _, key := range sortedFKKeys(tbl.ForeignKeys) {
			fk := tbl.ForeignKeys[key]
			if fk.TargetSchema != info.Name {
				continue
			}
			parent := fk.TargetTable
			if _, ok := g.Tables[parent]; !ok {
				continue // parent table not in scope
			}

			if parent == name {
				g.SelfRefs[name] = append(g.SelfRefs[name], fk)
				continue
			}

			g.Edges = append(g.Edges, Edge{FK: fk, ChildTable: name, ParentTable: parent})
			if !slices.Contains(g.Parents[name], parent) {
				g.Children[parent] = append(g.Children[parent], name)
				g.Parents[name] = append(g.Parents[name], parent)
			}
			g.Adjacency[name][parent] = true
			g.Adjacency[parent][name] = true
		}
	}

	return g
}

// Roots returns tables that have no outgoing FK edges (no parents).
func (g *Graph) Roots() []string {
	var roots []string
	for name := range g.Tables {
		if len(g.Parents[name]) == 0 {
			roots = append(roots, name)
		}
	}
	sort.Strings(roots)
	return roots
}

// names returns every table name in sorted order.
func (g *Graph) names() []string {
	names := make([]string, 0, len(g.Tables))
	for name := range g.Tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func sortedFKKeys(m map[string]schema.ForeignKeyInfo) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
