package graph

import (
	"fmt"
	"io"
	"sort"
	"strings"
)

// WriteMermaid writes the graph as a Mermaid flowchart. Each connected
// component is a subgraph; nodes show the primary key and edges the
// foreign-key columns with their non-default ON DELETE action.
func WriteMermaid(w io.Writer, g *Graph) error {
	fmt.Fprintln(w, "flowchart TD")

	for i, comp := range FindComponents(g) {
		fmt.Fprintf(w, "    subgraph %s_%d [%s]\n", mermaidID(g.Schema), i+1, g.Schema)
		for _, t := range comp.Tables {
			fmt.Fprintf(w, "        %s[\"%s\"]\n", mermaidID(t), nodeLabel(g, t))
		}

		inComp := make(map[string]bool, len(comp.Tables))
		for _, t := range comp.Tables {
			inComp[t] = true
		}
		seen := make(map[string]bool)
		for _, e := range g.Edges {
			if !inComp[e.ChildTable] {
				continue
			}
			line := fmt.Sprintf("        %s -->|%s| %s", mermaidID(e.ChildTable), edgeLabel(e.FK.Columns, e.FK.OnDelete), mermaidID(e.ParentTable))
			if seen[line] {
				continue
			}
			seen[line] = true
			fmt.Fprintln(w, line)
		}
		for _, t := range comp.Tables {
			for _, fk := range g.SelfRefs[t] {
				fmt.Fprintf(w, "        %s -.->|%s| %s\n", mermaidID(t), edgeLabel(fk.Columns, fk.OnDelete), mermaidID(t))
			}
		}
		fmt.Fprintln(w, "    end")
	}
	return nil
}

func nodeLabel(g *Graph, table string) string {
	cols := g.Tables[table].PrimaryKeyColumns()
	if len(cols) == 0 {
		return table
	}
	return table + "<br/>PK: " + strings.Join(cols, ", ")
}

func edgeLabel(columns []string, onDelete string) string {
	label := strings.Join(columns, ", ")
	if onDelete != "" && onDelete != "no action" {
		label += " on delete " + onDelete
	}
	return label
}

// WriteText writes a summary of the graph: object counts, warnings, and the
// order in which generated migrations create the tables.
func WriteText(w io.Writer, g *Graph) error {
	components := FindComponents(g)

	var fks, uniques, indexes int
	var noPK []string
	for _, name := range g.names() {
		t := g.Tables[name]
		fks += len(t.ForeignKeys)
		uniques += len(t.Unique)
		indexes += len(t.Indexes)
		if len(t.PrimaryKey) == 0 {
			noPK = append(noPK, name)
		}
	}

	fmt.Fprintf(w, "Schema: %s\n", g.Schema)
	fmt.Fprintf(w, "Tables: %d\n", len(g.Tables))
	fmt.Fprintf(w, "Foreign Keys: %d\n", fks)
	fmt.Fprintf(w, "Unique Constraints: %d\n", uniques)
	fmt.Fprintf(w, "Indexes: %d\n", indexes)
	fmt.Fprintf(w, "Connected Components: %d\n\n", len(components))

	if len(noPK) > 0 {
		fmt.Fprintf(w, "WARNING: Tables without primary key: %v\n", noPK)
	}
	if len(g.SelfRefs) > 0 {
		refs := make([]string, 0, len(g.SelfRefs))
		for t := range g.SelfRefs {
			refs = append(refs, t)
		}
		sort.Strings(refs)
		fmt.Fprintf(w, "Self-referencing tables: %v\n", refs)
	}
	fmt.Fprintf(w, "Root tables (no FK parents): %v\n\n", g.Roots())

	res := TopoSortAll(g)
	fmt.Fprintln(w, "Creation order:")
	for i, t := range append(res.Order, res.CycleTables...) {
		tbl := g.Tables[t]
		pk := "no PK"
		if cols := tbl.PrimaryKeyColumns(); len(cols) > 0 {
			pk = "PK: " + strings.Join(cols, ", ")
		}
		fmt.Fprintf(w, "  %d. %s (%d cols, %s, %d FKs)\n", i+1, t, len(tbl.Columns), pk, len(g.Parents[t]))
	}
	if res.HasCycle {
		fmt.Fprintf(w, "Circular dependencies: %v (their foreign keys are added after the tables)\n", res.CycleTables)
	}
	fmt.Fprintln(w)

	for i, comp := range components {
		fmt.Fprintf(w, "Component %d: %s\n", i+1, strings.Join(comp.Tables, ", "))
	}
	return nil
}

// mermaidID converts a table name to a Mermaid-safe node ID.
func mermaidID(name string) string {
	return strings.NewReplacer(".", "_", " ", "_", "-", "_").Replace(name)
}
