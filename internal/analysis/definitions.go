package analysis

import (
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/quarry-dev/quarry/internal/graph"
	"github.com/quarry-dev/quarry/internal/pysrc"
	"github.com/quarry-dev/quarry/internal/symbols"
)

// --- FunctionDefinitionDetector ---

// FunctionDefinitionDetector extracts function and method definitions
// with signature, decorators, docstring, and the enclosing class for
// methods.
type FunctionDefinitionDetector struct{}

// NewFunctionDefinitionDetector creates the detector.
func NewFunctionDefinitionDetector() *FunctionDefinitionDetector {
	return &FunctionDefinitionDetector{}
}

func (d *FunctionDefinitionDetector) Name() string  { return "function-definition" }
func (d *FunctionDefinitionDetector) Priority() int { return 50 }

func (d *FunctionDefinitionDetector) Detect(*tree_sitter.Node, string, *pysrc.Tree) ([]graph.Relationship, error) {
	return nil, nil // definitions produce no relationships
}

func (d *FunctionDefinitionDetector) ExtractSymbols(node *tree_sitter.Node, _ string, tree *pysrc.Tree) ([]symbols.Definition, []symbols.Reference, error) {
	if node.Kind() != "function_definition" {
		return nil, nil, nil
	}

	name := node.ChildByFieldName("name")
	if name == nil {
		return nil, nil, nil
	}

	def := symbols.Definition{
		Name:        pysrc.Text(name, tree.Source),
		Kind:        symbols.KindFunction,
		LineStart:   pysrc.Line(node),
		LineEnd:     pysrc.EndLine(node),
		Signature:   functionSignature(node, tree.Source),
		Decorators:  decoratorsOf(node, tree.Source),
		Docstring:   docstringOf(node, tree.Source),
		ParentClass: pysrc.EnclosingClass(node, tree.Source),
	}
	return []symbols.Definition{def}, nil, nil
}

// --- ClassDefinitionDetector ---

// ClassDefinitionDetector extracts class definitions with decorators and
// docstring.
type ClassDefinitionDetector struct{}

// NewClassDefinitionDetector creates the detector.
func NewClassDefinitionDetector() *ClassDefinitionDetector {
	return &ClassDefinitionDetector{}
}

func (d *ClassDefinitionDetector) Name() string  { return "class-definition" }
func (d *ClassDefinitionDetector) Priority() int { return 50 }

func (d *ClassDefinitionDetector) Detect(*tree_sitter.Node, string, *pysrc.Tree) ([]graph.Relationship, error) {
	return nil, nil
}

func (d *ClassDefinitionDetector) ExtractSymbols(node *tree_sitter.Node, _ string, tree *pysrc.Tree) ([]symbols.Definition, []symbols.Reference, error) {
	if node.Kind() != "class_definition" {
		return nil, nil, nil
	}

	name := node.ChildByFieldName("name")
	if name == nil {
		return nil, nil, nil
	}

	signature := pysrc.Text(name, tree.Source)
	if bases := node.ChildByFieldName("superclasses"); bases != nil {
		signature += pysrc.Text(bases, tree.Source)
	}

	def := symbols.Definition{
		Name:       pysrc.Text(name, tree.Source),
		Kind:       symbols.KindClass,
		LineStart:  pysrc.Line(node),
		LineEnd:    pysrc.EndLine(node),
		Signature:  signature,
		Decorators: decoratorsOf(node, tree.Source),
		Docstring:  docstringOf(node, tree.Source),
	}
	return []symbols.Definition{def}, nil, nil
}

// --- VariableDefinitionDetector ---

// VariableDefinitionDetector extracts module-level assignments. Local
// and class-body variables are out of scope for cross-file resolution.
type VariableDefinitionDetector struct{}

// NewVariableDefinitionDetector creates the detector.
func NewVariableDefinitionDetector() *VariableDefinitionDetector {
	return &VariableDefinitionDetector{}
}

func (d *VariableDefinitionDetector) Name() string  { return "variable-definition" }
func (d *VariableDefinitionDetector) Priority() int { return 50 }

func (d *VariableDefinitionDetector) Detect(*tree_sitter.Node, string, *pysrc.Tree) ([]graph.Relationship, error) {
	return nil, nil
}

func (d *VariableDefinitionDetector) ExtractSymbols(node *tree_sitter.Node, _ string, tree *pysrc.Tree) ([]symbols.Definition, []symbols.Reference, error) {
	if node.Kind() != "assignment" || !isModuleLevelStatement(node) {
		return nil, nil, nil
	}

	left := node.ChildByFieldName("left")
	if left == nil {
		return nil, nil, nil
	}

	var defs []symbols.Definition
	for _, name := range assignmentTargets(left, tree.Source) {
		defs = append(defs, symbols.Definition{
			Name:      name,
			Kind:      symbols.KindVariable,
			LineStart: pysrc.Line(node),
			LineEnd:   pysrc.EndLine(node),
			Signature: pysrc.FirstLine(pysrc.Text(node, tree.Source)),
		})
	}
	return defs, nil, nil
}

// --- shared definition helpers ---

// isModuleLevelStatement reports whether an assignment's statement sits
// directly in the module body.
func isModuleLevelStatement(node *tree_sitter.Node) bool {
	parent := node.Parent()
	if parent == nil || parent.Kind() != "expression_statement" {
		return false
	}
	grand := parent.Parent()
	return grand != nil && grand.Kind() == "module"
}

// assignmentTargets lists the identifiers bound by an assignment's left
// side: a bare identifier or each identifier of a tuple target.
func assignmentTargets(left *tree_sitter.Node, source []byte) []string {
	switch left.Kind() {
	case "identifier":
		return []string{pysrc.Text(left, source)}
	case "pattern_list", "tuple_pattern":
		var names []string
		for i := uint(0); i < left.ChildCount(); i++ {
			child := left.Child(i)
			if child != nil && child.Kind() == "identifier" {
				names = append(names, pysrc.Text(child, source))
			}
		}
		return names
	default:
		return nil // attribute and subscript targets are not definitions
	}
}

// functionSignature renders "name(params) -> return" from the def node.
func functionSignature(node *tree_sitter.Node, source []byte) string {
	name := node.ChildByFieldName("name")
	params := node.ChildByFieldName("parameters")
	if name == nil || params == nil {
		return ""
	}
	sig := pysrc.Text(name, source) + pysrc.FirstLine(pysrc.Text(params, source))
	if ret := node.ChildByFieldName("return_type"); ret != nil {
		sig += " -> " + pysrc.Text(ret, source)
	}
	return sig
}

// decoratorsOf collects decorator texts (without the leading @) when the
// definition is wrapped in a decorated_definition.
func decoratorsOf(node *tree_sitter.Node, source []byte) []string {
	parent := node.Parent()
	if parent == nil || parent.Kind() != "decorated_definition" {
		return nil
	}
	var decorators []string
	for i := uint(0); i < parent.ChildCount(); i++ {
		child := parent.Child(i)
		if child == nil || child.Kind() != "decorator" {
			continue
		}
		text := strings.TrimPrefix(pysrc.Text(child, source), "@")
		decorators = append(decorators, pysrc.FirstLine(text))
	}
	return decorators
}

// docstringOf returns the first line of a definition body's docstring,
// quotes stripped, or "".
func docstringOf(node *tree_sitter.Node, source []byte) string {
	body := node.ChildByFieldName("body")
	if body == nil {
		return ""
	}

	var first *tree_sitter.Node
	for i := uint(0); i < body.ChildCount(); i++ {
		child := body.Child(i)
		if child != nil && child.IsNamed() {
			first = child
			break
		}
	}
	if first == nil || first.Kind() != "expression_statement" {
		return ""
	}

	var str *tree_sitter.Node
	for i := uint(0); i < first.ChildCount(); i++ {
		child := first.Child(i)
		if child != nil && child.Kind() == "string" {
			str = child
			break
		}
	}
	if str == nil {
		return ""
	}

	return pysrc.FirstLine(stripQuotes(pysrc.Text(str, source)))
}

// stripQuotes removes Python string quoting, including triple quotes and
// string prefixes like r or u.
func stripQuotes(s string) string {
	s = strings.TrimLeft(s, "rRbBuUfF")
	for _, q := range []string{`"""`, `'''`, `"`, `'`} {
		if strings.HasPrefix(s, q) {
			s = strings.TrimPrefix(s, q)
			s = strings.TrimSuffix(s, q)
			break
		}
	}
	return s
}
