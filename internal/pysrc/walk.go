package pysrc

import (
	"errors"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// ErrTooDeep reports a tree whose nesting exceeds the traversal bound.
// Such files are marked unparseable rather than risking unbounded stack
// growth on adversarial or generated input.
var ErrTooDeep = errors.New("syntax tree exceeds depth limit")

// Visit is called once per node during Walk, in document (pre-)order.
type Visit func(node *tree_sitter.Node, depth int)

// Walk traverses every node under root with an explicit work stack. A
// maxDepth of 0 disables the bound; otherwise a node deeper than
// maxDepth fails the whole walk with ErrTooDeep.
func Walk(root *tree_sitter.Node, maxDepth int, visit Visit) error {
	type frame struct {
		node  *tree_sitter.Node
		depth int
	}

	stack := make([]frame, 0, 64)
	stack = append(stack, frame{root, 0})

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if maxDepth > 0 && f.depth > maxDepth {
			return ErrTooDeep
		}

		visit(f.node, f.depth)

		// Children are pushed in reverse so they pop in document order.
		for i := f.node.ChildCount(); i > 0; i-- {
			child := f.node.Child(i - 1)
			if child != nil {
				stack = append(stack, frame{child, f.depth + 1})
			}
		}
	}

	return nil
}
