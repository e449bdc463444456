package analysis

import (
	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/quarry-dev/quarry/internal/graph"
	"github.com/quarry-dev/quarry/internal/pysrc"
	"github.com/quarry-dev/quarry/internal/symbols"
)

// pythonBuiltins are callables that never resolve to project files.
var pythonBuiltins = map[string]bool{
	"abs": true, "all": true, "any": true, "bool": true, "bytes": true,
	"callable": true, "classmethod": true, "dict": true, "dir": true,
	"enumerate": true, "filter": true, "float": true, "format": true,
	"frozenset": true, "getattr": true, "globals": true, "hasattr": true,
	"hash": true, "id": true, "input": true, "int": true, "isinstance": true,
	"issubclass": true, "iter": true, "len": true, "list": true,
	"locals": true, "map": true, "max": true, "min": true, "next": true,
	"object": true, "open": true, "print": true, "property": true,
	"range": true, "repr": true, "reversed": true, "round": true,
	"set": true, "setattr": true, "sorted": true, "staticmethod": true,
	"str": true, "sum": true, "super": true, "tuple": true, "type": true,
	"vars": true, "zip": true, "exec": true, "eval": true, "compile": true,
	"delattr": true, "divmod": true, "ord": true, "chr": true,
	"bytearray": true, "memoryview": true, "slice": true, "complex": true,
	"pow": true, "hex": true, "oct": true, "bin": true,
	"Exception": true, "ValueError": true, "TypeError": true,
	"KeyError": true, "IndexError": true, "AttributeError": true,
	"RuntimeError": true, "NotImplementedError": true, "StopIteration": true,
}

// FunctionCallDetector extracts call references: bare identifier calls
// as FUNCTION_CALL, attribute calls as ATTRIBUTE_ACCESS. Builtins and
// self/cls method calls are skipped since they never cross files.
type FunctionCallDetector struct{}

// NewFunctionCallDetector creates the detector.
func NewFunctionCallDetector() *FunctionCallDetector { return &FunctionCallDetector{} }

func (d *FunctionCallDetector) Name() string  { return "function-call" }
func (d *FunctionCallDetector) Priority() int { return 50 }

func (d *FunctionCallDetector) Detect(node *tree_sitter.Node, path string, tree *pysrc.Tree) ([]graph.Relationship, error) {
	_, refs, err := d.ExtractSymbols(node, path, tree)
	if err != nil {
		return nil, err
	}
	return relationshipsFromRefs(path, refs), nil
}

func (d *FunctionCallDetector) ExtractSymbols(node *tree_sitter.Node, _ string, tree *pysrc.Tree) ([]symbols.Definition, []symbols.Reference, error) {
	if node.Kind() != "call" {
		return nil, nil, nil
	}

	fn := node.ChildByFieldName("function")
	if fn == nil {
		return nil, nil, nil
	}

	ref := symbols.Reference{
		LineNumber:    pysrc.Line(node),
		CallerContext: pysrc.EnclosingFunction(node, tree.Source),
	}

	switch fn.Kind() {
	case "identifier":
		name := pysrc.Text(fn, tree.Source)
		if pythonBuiltins[name] {
			return nil, nil, nil
		}
		ref.Kind = symbols.RefFunctionCall
		ref.Name = name
	case "attribute":
		root := pysrc.AttributeRoot(fn, tree.Source)
		if root == "self" || root == "cls" {
			return nil, nil, nil
		}
		ref.Kind = symbols.RefAttributeAccess
		ref.Name = pysrc.Text(fn, tree.Source)
	default:
		return nil, nil, nil
	}

	return nil, []symbols.Reference{ref}, nil
}
