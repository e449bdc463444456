package analysis

import (
	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/quarry-dev/quarry/internal/graph"
	"github.com/quarry-dev/quarry/internal/pysrc"
	"github.com/quarry-dev/quarry/internal/symbols"
)

// ClassInheritanceDetector extracts base-class references from class
// definitions. The implicit `object` base and keyword arguments
// (metaclass=) are skipped; the latter belong to the metaclass detector.
type ClassInheritanceDetector struct{}

// NewClassInheritanceDetector creates the detector.
func NewClassInheritanceDetector() *ClassInheritanceDetector {
	return &ClassInheritanceDetector{}
}

func (d *ClassInheritanceDetector) Name() string  { return "class-inheritance" }
func (d *ClassInheritanceDetector) Priority() int { return 50 }

func (d *ClassInheritanceDetector) Detect(node *tree_sitter.Node, path string, tree *pysrc.Tree) ([]graph.Relationship, error) {
	_, refs, err := d.ExtractSymbols(node, path, tree)
	if err != nil {
		return nil, err
	}
	return relationshipsFromRefs(path, refs), nil
}

func (d *ClassInheritanceDetector) ExtractSymbols(node *tree_sitter.Node, _ string, tree *pysrc.Tree) ([]symbols.Definition, []symbols.Reference, error) {
	if node.Kind() != "class_definition" {
		return nil, nil, nil
	}

	bases := node.ChildByFieldName("superclasses")
	if bases == nil {
		return nil, nil, nil
	}

	className := ""
	if name := node.ChildByFieldName("name"); name != nil {
		className = pysrc.Text(name, tree.Source)
	}
	line := pysrc.Line(node)

	var refs []symbols.Reference
	for i := uint(0); i < bases.ChildCount(); i++ {
		child := bases.Child(i)
		if child == nil || !child.IsNamed() {
			continue
		}

		var base string
		switch child.Kind() {
		case "identifier":
			base = pysrc.Text(child, tree.Source)
		case "attribute":
			base = pysrc.Text(child, tree.Source)
		case "subscript":
			// Generic bases like Protocol[T]; the value is the class.
			if val := child.ChildByFieldName("value"); val != nil {
				base = pysrc.Text(val, tree.Source)
			}
		default:
			continue // keyword arguments and comments
		}
		if base == "" || base == "object" {
			continue
		}

		refs = append(refs, symbols.Reference{
			Kind:          symbols.RefClassReference,
			Name:          base,
			LineNumber:    line,
			CallerContext: className,
		})
	}
	return nil, refs, nil
}
