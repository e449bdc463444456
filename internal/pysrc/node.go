package pysrc

import (
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// maxExprDepth bounds recursive expression description. Crafted deeply
// nested expressions get a sentinel instead of overflowing the stack.
const maxExprDepth = 24

// exprDepthSentinel is returned for expressions nested past maxExprDepth.
const exprDepthSentinel = "<deep-expression>"

// Text returns the source text covered by node.
func Text(node *tree_sitter.Node, source []byte) string {
	return node.Utf8Text(source)
}

// Line returns the 1-based starting line of node.
func Line(node *tree_sitter.Node) int {
	return int(node.StartPosition().Row) + 1
}

// EndLine returns the 1-based ending line of node.
func EndLine(node *tree_sitter.Node) int {
	return int(node.EndPosition().Row) + 1
}

// FirstLine returns text up to its first newline, trimmed.
func FirstLine(text string) string {
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		text = text[:idx]
	}
	return strings.TrimSpace(text)
}

// DescribeExpr renders a short description of an expression node for
// warning messages. Recursion is bounded by maxExprDepth.
func DescribeExpr(node *tree_sitter.Node, source []byte) string {
	return describeExpr(node, source, maxExprDepth)
}

func describeExpr(node *tree_sitter.Node, source []byte, depth int) string {
	if depth <= 0 {
		return exprDepthSentinel
	}
	switch node.Kind() {
	case "identifier":
		return Text(node, source)
	case "string":
		return "string literal"
	case "attribute":
		obj := node.ChildByFieldName("object")
		attr := node.ChildByFieldName("attribute")
		if obj == nil || attr == nil {
			return Text(node, source)
		}
		return describeExpr(obj, source, depth-1) + "." + Text(attr, source)
	case "call":
		fn := node.ChildByFieldName("function")
		if fn == nil {
			return "call"
		}
		return describeExpr(fn, source, depth-1) + "(...)"
	case "subscript":
		val := node.ChildByFieldName("value")
		if val == nil {
			return Text(node, source)
		}
		return describeExpr(val, source, depth-1) + "[...]"
	case "parenthesized_expression":
		for i := uint(0); i < node.ChildCount(); i++ {
			child := node.Child(i)
			if child != nil && child.IsNamed() {
				return describeExpr(child, source, depth-1)
			}
		}
		return "(...)"
	default:
		return FirstLine(Text(node, source))
	}
}

// AttributeLeaf resolves a dotted reference to its final name component:
// for `abc.ABCMeta` it returns "ABCMeta", for a bare identifier the
// identifier itself. The attribute chain walk is bounded like
// DescribeExpr.
func AttributeLeaf(node *tree_sitter.Node, source []byte) string {
	for depth := 0; depth < maxExprDepth; depth++ {
		switch node.Kind() {
		case "identifier":
			return Text(node, source)
		case "attribute":
			attr := node.ChildByFieldName("attribute")
			if attr == nil {
				return ""
			}
			return Text(attr, source)
		case "call":
			fn := node.ChildByFieldName("function")
			if fn == nil {
				return ""
			}
			node = fn
		case "parenthesized_expression":
			inner := firstNamedChild(node)
			if inner == nil {
				return ""
			}
			node = inner
		default:
			return ""
		}
	}
	return ""
}

// AttributeRoot walks an attribute chain to its leftmost identifier:
// for `obj.attr.field` it returns "obj".
func AttributeRoot(node *tree_sitter.Node, source []byte) string {
	for depth := 0; depth < maxExprDepth; depth++ {
		switch node.Kind() {
		case "identifier":
			return Text(node, source)
		case "attribute":
			obj := node.ChildByFieldName("object")
			if obj == nil {
				return ""
			}
			node = obj
		default:
			return ""
		}
	}
	return ""
}

// EnclosingFunction returns the qualified name of the function or method
// enclosing node ("Class.method" for methods, "func" for module-level
// functions, "" at module scope).
func EnclosingFunction(node *tree_sitter.Node, source []byte) string {
	var parts []string
	for parent := node.Parent(); parent != nil; parent = parent.Parent() {
		switch parent.Kind() {
		case "function_definition":
			if name := parent.ChildByFieldName("name"); name != nil {
				parts = append([]string{Text(name, source)}, parts...)
			}
		case "class_definition":
			if len(parts) == 0 {
				// Class body outside any method is still module-level
				// execution; no caller context.
				continue
			}
			if name := parent.ChildByFieldName("name"); name != nil {
				parts = append([]string{Text(name, source)}, parts...)
			}
			return strings.Join(parts, ".")
		}
	}
	return strings.Join(parts, ".")
}

// EnclosingClass returns the name of the class whose body directly
// contains node, or "" when the nearest enclosing scope is a function or
// the module. A function nested inside a method belongs to the method's
// scope, not the class.
func EnclosingClass(node *tree_sitter.Node, source []byte) string {
	for parent := node.Parent(); parent != nil; parent = parent.Parent() {
		switch parent.Kind() {
		case "class_definition":
			if name := parent.ChildByFieldName("name"); name != nil {
				return Text(name, source)
			}
			return ""
		case "function_definition":
			return ""
		}
	}
	return ""
}

func firstNamedChild(node *tree_sitter.Node) *tree_sitter.Node {
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child != nil && child.IsNamed() {
			return child
		}
	}
	return nil
}
