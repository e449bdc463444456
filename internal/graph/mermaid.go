package graph

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// mermaidArrows maps relationship types to Mermaid edge styles: solid
// for imports, dotted for calls, thick for inheritance.
var mermaidArrows = map[RelationshipType]string{
	RelImport:           "-->",
	RelFunctionCall:     "-.->",
	RelClassInheritance: "==>",
}

// Mermaid renders the file-level relationship graph as a Mermaid
// "graph TD" diagram. Each distinct (source, target, type) triple
// becomes one edge line; per-symbol duplicates are collapsed.
func (g *Graph) Mermaid() string {
	rels := g.AllRelationships()

	nodeIDs := make(map[string]string)
	nextID := 0
	getID := func(path string) string {
		if id, ok := nodeIDs[path]; ok {
			return id
		}
		id := fmt.Sprintf("N%d", nextID)
		nextID++
		nodeIDs[path] = id
		return id
	}

	var sb strings.Builder
	sb.WriteString("graph TD\n")

	// Nodes first, sorted, so the diagram is stable across runs.
	paths := make(map[string]bool)
	for _, r := range rels {
		paths[r.SourceFile] = true
		paths[r.TargetFile] = true
	}
	sorted := make([]string, 0, len(paths))
	for p := range paths {
		sorted = append(sorted, p)
	}
	sort.Strings(sorted)
	for _, p := range sorted {
		sb.WriteString(fmt.Sprintf("  %s[\"%s\"]\n", getID(p), shortPath(p)))
	}

	seen := make(map[string]bool)
	for _, r := range rels {
		arrow := mermaidArrows[r.Type]
		if arrow == "" {
			arrow = "-->"
		}
		line := fmt.Sprintf("  %s %s %s\n", getID(r.SourceFile), arrow, getID(r.TargetFile))
		if seen[line] {
			continue
		}
		seen[line] = true
		sb.WriteString(line)
	}

	return sb.String()
}

// shortPath returns the last two path segments for readability.
func shortPath(path string) string {
	if IsMarkerTarget(path) {
		return path
	}
	parts := strings.Split(filepath.ToSlash(path), "/")
	if len(parts) <= 2 {
		return path
	}
	return strings.Join(parts[len(parts)-2:], "/")
}
