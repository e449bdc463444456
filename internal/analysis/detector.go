// Package analysis implements the detector pipeline: per-file symbol
// extraction and relationship detection over parsed Python syntax trees.
package analysis

import (
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/quarry-dev/quarry/internal/graph"
	"github.com/quarry-dev/quarry/internal/pysrc"
	"github.com/quarry-dev/quarry/internal/symbols"
)

// Detector inspects one syntax-tree node at a time. The analyzer drives
// every node of a file through every registered detector in priority
// order; a detector matches the node kinds it cares about and ignores
// the rest.
//
// A detector produces either definitions or references, never both.
// Detect is the single-phase path (node straight to relationships);
// ExtractSymbols is the two-phase path. Both must agree: one reference
// in ExtractSymbols corresponds to one relationship in Detect.
type Detector interface {
	// Name identifies the detector; unique within a registry.
	Name() string

	// Priority orders detectors within a pass. Import detectors run in
	// the 90-100 band, structural detectors at 50, dynamic-pattern
	// detectors at 25.
	Priority() int

	// Detect returns relationships for node, or nil when the node is
	// not of interest.
	Detect(node *tree_sitter.Node, filepath string, tree *pysrc.Tree) ([]graph.Relationship, error)

	// ExtractSymbols returns definitions and references for node.
	ExtractSymbols(node *tree_sitter.Node, filepath string, tree *pysrc.Tree) ([]symbols.Definition, []symbols.Reference, error)
}

// relationshipsFromRefs converts extracted references into the
// relationships the single-phase path emits. Without a cross-file
// definition index the target is the locally resolved module when the
// detector produced one, otherwise an unresolved marker.
func relationshipsFromRefs(filepath string, refs []symbols.Reference) []graph.Relationship {
	if len(refs) == 0 {
		return nil
	}
	rels := make([]graph.Relationship, 0, len(refs))
	for _, ref := range refs {
		target := ref.ResolvedModule
		if target == "" {
			target = graph.UnresolvedTarget(lastComponent(ref.Name))
		}
		rels = append(rels, graph.Relationship{
			SourceFile:   filepath,
			TargetFile:   target,
			Type:         graph.MapReferenceKind(ref.Kind),
			LineNumber:   ref.LineNumber,
			SourceSymbol: ref.CallerContext,
			TargetSymbol: ref.ResolvedSymbol,
			Metadata:     ref.Metadata,
		})
	}
	return rels
}

// lastComponent returns the final segment of a dotted name.
func lastComponent(name string) string {
	if idx := strings.LastIndexByte(name, '.'); idx >= 0 {
		return name[idx+1:]
	}
	return name
}
