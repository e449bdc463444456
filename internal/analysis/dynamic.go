package analysis

import (
	"fmt"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/quarry-dev/quarry/internal/graph"
	"github.com/quarry-dev/quarry/internal/pysrc"
	"github.com/quarry-dev/quarry/internal/symbols"
)

// matchPattern inspects one node and returns a warning or nil.
type matchPattern func(node *tree_sitter.Node, filepath string, tree *pysrc.Tree, isTest bool) *symbols.DynamicPatternWarning

// dynamicDetector is the shared template for the dynamic-pattern
// detectors. It classifies the file, runs the match function, and
// suppresses WARNING-severity output for test modules. INFO severity is
// always reported: metaclasses alter runtime semantics in ways relevant
// even to test authors.
type dynamicDetector struct {
	name       string
	classifier TestFileClassifier
	sink       WarningSink
	match      matchPattern
}

func (d *dynamicDetector) Name() string  { return d.name }
func (d *dynamicDetector) Priority() int { return 25 }

func (d *dynamicDetector) Detect(node *tree_sitter.Node, path string, tree *pysrc.Tree) ([]graph.Relationship, error) {
	d.run(node, path, tree)
	return nil, nil // warnings never become relationships
}

func (d *dynamicDetector) ExtractSymbols(node *tree_sitter.Node, path string, tree *pysrc.Tree) ([]symbols.Definition, []symbols.Reference, error) {
	d.run(node, path, tree)
	return nil, nil, nil
}

func (d *dynamicDetector) run(node *tree_sitter.Node, path string, tree *pysrc.Tree) {
	isTest := d.classifier.IsTestFile(path)
	w := d.match(node, path, tree, isTest)
	if w == nil {
		return
	}
	w.IsTestModule = isTest
	if w.Severity == symbols.SeverityWarning && isTest {
		return
	}
	d.sink.Report(*w)
}

// DynamicPatternDetectors builds the five dynamic-pattern detectors
// sharing one classifier and sink.
func DynamicPatternDetectors(classifier TestFileClassifier, sink WarningSink) []Detector {
	build := func(name string, match matchPattern) Detector {
		return &dynamicDetector{name: name, classifier: classifier, sink: sink, match: match}
	}
	return []Detector{
		build("dynamic-dispatch", matchDynamicDispatch),
		build("monkey-patching", matchMonkeyPatching),
		build("exec-eval", matchExecEval),
		build("decorator", matchDecorator),
		build("metaclass", matchMetaclass),
	}
}

// standardMetaclasses never warrant a warning.
var standardMetaclasses = map[string]bool{
	"type":     true,
	"ABCMeta":  true,
	"EnumMeta": true,
	"EnumType": true,
}

// standardDecorators are well-understood and skipped; only decorators
// outside this set can rewrite a callable in ways resolution cannot
// follow.
var standardDecorators = map[string]bool{
	"property": true, "staticmethod": true, "classmethod": true,
	"abstractmethod": true, "abstractproperty": true,
	"dataclass": true, "overload": true, "override": true,
	"wraps": true, "lru_cache": true, "cache": true, "cached_property": true,
	"contextmanager": true, "asynccontextmanager": true,
	"singledispatch": true, "singledispatchmethod": true,
	"total_ordering": true, "final": true, "runtime_checkable": true,
	"fixture": true, "parametrize": true, "mark": true, "setter": true,
	"getter": true, "deleter": true,
}

// matchDynamicDispatch flags getattr calls whose attribute-name argument
// is not a constant string. A constant string is statically resolvable
// and produces no warning.
func matchDynamicDispatch(node *tree_sitter.Node, path string, tree *pysrc.Tree, _ bool) *symbols.DynamicPatternWarning {
	if node.Kind() != "call" {
		return nil
	}
	fn := node.ChildByFieldName("function")
	if fn == nil || fn.Kind() != "identifier" || pysrc.Text(fn, tree.Source) != "getattr" {
		return nil
	}

	args := node.ChildByFieldName("arguments")
	if args == nil {
		return nil
	}
	var positional []*tree_sitter.Node
	for i := uint(0); i < args.ChildCount(); i++ {
		child := args.Child(i)
		if child != nil && child.IsNamed() && child.Kind() != "comment" {
			positional = append(positional, child)
		}
	}
	if len(positional) < 2 {
		return nil
	}

	nameArg := positional[1]
	if nameArg.Kind() == "string" {
		return nil // constant attribute name, statically resolvable
	}

	desc := pysrc.DescribeExpr(nameArg, tree.Source)
	return &symbols.DynamicPatternWarning{
		PatternType: symbols.PatternDynamicDispatch,
		Filepath:    path,
		LineNumber:  pysrc.Line(node),
		Message:     fmt.Sprintf("getattr with dynamic attribute name %q cannot be resolved statically", desc),
		Severity:    symbols.SeverityWarning,
		Metadata:    map[string]string{"expression": desc},
	}
}

// matchMonkeyPatching flags module-level assignments to an attribute of
// another object, the usual shape of patching an imported module.
func matchMonkeyPatching(node *tree_sitter.Node, path string, tree *pysrc.Tree, _ bool) *symbols.DynamicPatternWarning {
	if node.Kind() != "assignment" || !isModuleLevelStatement(node) {
		return nil
	}
	left := node.ChildByFieldName("left")
	if left == nil || left.Kind() != "attribute" {
		return nil
	}

	target := pysrc.Text(left, tree.Source)
	root := pysrc.AttributeRoot(left, tree.Source)
	if root == "self" || root == "cls" {
		return nil
	}

	return &symbols.DynamicPatternWarning{
		PatternType: symbols.PatternMonkeyPatching,
		Filepath:    path,
		LineNumber:  pysrc.Line(node),
		Message:     fmt.Sprintf("module-level assignment to %s patches external state", target),
		Severity:    symbols.SeverityWarning,
		Metadata:    map[string]string{"target": target},
	}
}

// matchExecEval flags exec and eval calls.
func matchExecEval(node *tree_sitter.Node, path string, tree *pysrc.Tree, _ bool) *symbols.DynamicPatternWarning {
	if node.Kind() != "call" {
		return nil
	}
	fn := node.ChildByFieldName("function")
	if fn == nil || fn.Kind() != "identifier" {
		return nil
	}
	name := pysrc.Text(fn, tree.Source)
	if name != "exec" && name != "eval" {
		return nil
	}

	return &symbols.DynamicPatternWarning{
		PatternType: symbols.PatternExecEval,
		Filepath:    path,
		LineNumber:  pysrc.Line(node),
		Message:     name + " executes code that static analysis cannot follow",
		Severity:    symbols.SeverityWarning,
		Metadata:    map[string]string{"function": name},
	}
}

// matchDecorator flags decorators outside the standard set.
func matchDecorator(node *tree_sitter.Node, path string, tree *pysrc.Tree, _ bool) *symbols.DynamicPatternWarning {
	if node.Kind() != "decorator" {
		return nil
	}

	inner := decoratorExpr(node)
	if inner == nil {
		return nil
	}
	leaf := pysrc.AttributeLeaf(inner, tree.Source)
	if leaf == "" || standardDecorators[leaf] {
		return nil
	}

	return &symbols.DynamicPatternWarning{
		PatternType: symbols.PatternDecorator,
		Filepath:    path,
		LineNumber:  pysrc.Line(node),
		Message:     fmt.Sprintf("decorator @%s may rewrite the callable it wraps", leaf),
		Severity:    symbols.SeverityWarning,
		Metadata:    map[string]string{"decorator": leaf},
	}
}

// matchMetaclass flags non-standard metaclass keyword arguments on class
// definitions. Dotted references resolve through their attribute chain,
// so abc.ABCMeta matches the ABCMeta whitelist entry.
func matchMetaclass(node *tree_sitter.Node, path string, tree *pysrc.Tree, _ bool) *symbols.DynamicPatternWarning {
	if node.Kind() != "keyword_argument" {
		return nil
	}
	name := node.ChildByFieldName("name")
	if name == nil || pysrc.Text(name, tree.Source) != "metaclass" {
		return nil
	}
	// Only class-definition argument lists carry a metaclass keyword.
	parent := node.Parent()
	if parent == nil || parent.Kind() != "argument_list" {
		return nil
	}
	if grand := parent.Parent(); grand == nil || grand.Kind() != "class_definition" {
		return nil
	}

	value := node.ChildByFieldName("value")
	if value == nil {
		return nil
	}
	leaf := pysrc.AttributeLeaf(value, tree.Source)
	if leaf == "" || standardMetaclasses[leaf] {
		return nil
	}

	return &symbols.DynamicPatternWarning{
		PatternType: symbols.PatternMetaclass,
		Filepath:    path,
		LineNumber:  pysrc.Line(node),
		Message:     fmt.Sprintf("custom metaclass %s alters class construction", leaf),
		Severity:    symbols.SeverityInfo,
		Metadata:    map[string]string{"metaclass": leaf},
	}
}

// decoratorExpr returns the expression a decorator node wraps.
func decoratorExpr(node *tree_sitter.Node) *tree_sitter.Node {
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child != nil && child.IsNamed() {
			return child
		}
	}
	return nil
}
