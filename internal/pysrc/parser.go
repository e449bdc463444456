package pysrc

import (
	"fmt"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
)

// Parser turns Python source into syntax trees. A new tree-sitter parser
// is created per Parse call, so a single Parser is safe for concurrent
// use.
type Parser struct {
	language *tree_sitter.Language
}

// NewParser creates a Parser with the Python grammar registered.
func NewParser() *Parser {
	return &Parser{
		language: tree_sitter.NewLanguage(tree_sitter_python.Language()),
	}
}

// Tree is a parsed file: the tree-sitter tree plus the source bytes the
// node text spans refer to. Callers must Close it to release the
// underlying C memory.
type Tree struct {
	Source []byte
	inner  *tree_sitter.Tree
}

// Parse parses one source file. The returned tree may still contain
// syntax errors; HasError distinguishes that "unparseable" condition
// from a clean parse.
func (p *Parser) Parse(src *SourceFile) (*Tree, error) {
	parser := tree_sitter.NewParser()
	defer parser.Close()

	if err := parser.SetLanguage(p.language); err != nil {
		return nil, fmt.Errorf("set language: %w", err)
	}

	tree := parser.Parse(src.Content, nil)
	if tree == nil {
		return nil, fmt.Errorf("%w: tree-sitter returned nil tree for %s", ErrUnparseable, src.Path)
	}

	return &Tree{Source: src.Content, inner: tree}, nil
}

// Root returns the root node of the parse tree.
func (t *Tree) Root() *tree_sitter.Node {
	return t.inner.RootNode()
}

// HasError reports whether the parse produced any syntax error node.
func (t *Tree) HasError() bool {
	return t.inner.RootNode().HasError()
}

// Close releases the tree's C memory.
func (t *Tree) Close() {
	t.inner.Close()
}
