package pysrc

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// parseSource parses inline Python and registers cleanup for the tree.
func parseSource(t *testing.T, source string) *Tree {
	t.Helper()
	tree, err := NewParser().Parse(&SourceFile{Path: "inline.py", Content: []byte(source)})
	require.NoError(t, err)
	t.Cleanup(tree.Close)
	return tree
}

// findNode returns the first node of the given kind in document order.
func findNode(t *testing.T, tree *Tree, kind string) *tree_sitter.Node {
	t.Helper()
	var found *tree_sitter.Node
	err := Walk(tree.Root(), 0, func(node *tree_sitter.Node, _ int) {
		if found == nil && node.Kind() == kind {
			found = node
		}
	})
	require.NoError(t, err)
	require.NotNil(t, found, "no %s node found", kind)
	return found
}

// ---------------------------------------------------------------------------
// TestLoadFile
// ---------------------------------------------------------------------------

func TestLoadFile_LineLimit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "big.py")
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("x = 1\n", 100)), 0o644))

	_, err := LoadFile(path, 50)
	require.ErrorIs(t, err, ErrTooLarge)

	src, err := LoadFile(path, 0)
	require.NoError(t, err)
	assert.Equal(t, 100, src.Lines)
}

func TestLoadFile_Latin1Fallback(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "latin.py")
	// 0xE9 is é in Latin-1 and invalid as a standalone UTF-8 byte.
	require.NoError(t, os.WriteFile(path, []byte("# caf\xe9\nx = 1\n"), 0o644))

	src, err := LoadFile(path, 0)
	require.NoError(t, err)
	assert.Contains(t, string(src.Content), "café")
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.py"), 0)
	require.Error(t, err)
}

// ---------------------------------------------------------------------------
// TestParser
// ---------------------------------------------------------------------------

func TestParser_CleanAndBrokenSource(t *testing.T) {
	clean := parseSource(t, "def f():\n    return 1\n")
	assert.False(t, clean.HasError())

	broken := parseSource(t, "def f(:\n")
	assert.True(t, broken.HasError())
}

// ---------------------------------------------------------------------------
// TestWalk
// ---------------------------------------------------------------------------

func TestWalk_DocumentOrder(t *testing.T) {
	tree := parseSource(t, "a = 1\nb = 2\n")

	var identifiers []string
	err := Walk(tree.Root(), 0, func(node *tree_sitter.Node, _ int) {
		if node.Kind() == "identifier" {
			identifiers = append(identifiers, Text(node, tree.Source))
		}
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, identifiers)
}

func TestWalk_DepthBound(t *testing.T) {
	// Nested parentheses nest the tree well past a depth bound of 3.
	tree := parseSource(t, "x = ((((((1))))))\n")

	err := Walk(tree.Root(), 3, func(*tree_sitter.Node, int) {})
	require.ErrorIs(t, err, ErrTooDeep)

	err = Walk(tree.Root(), 0, func(*tree_sitter.Node, int) {})
	require.NoError(t, err)
}

// ---------------------------------------------------------------------------
// TestDescribeExpr
// ---------------------------------------------------------------------------

func TestDescribeExpr_Shapes(t *testing.T) {
	cases := []struct {
		source string
		want   string
	}{
		{"x = name\n", "name"},
		{"x = obj.attr\n", "obj.attr"},
		{"x = fn()\n", "fn(...)"},
		{"x = table[0]\n", "table[...]"},
		{`x = "literal"` + "\n", "string literal"},
	}
	for _, tc := range cases {
		tree := parseSource(t, tc.source)
		assign := findNode(t, tree, "assignment")
		right := assign.ChildByFieldName("right")
		require.NotNil(t, right)
		assert.Equal(t, tc.want, DescribeExpr(right, tree.Source), "source %q", tc.source)
	}
}

func TestDescribeExpr_DepthSentinel(t *testing.T) {
	// Build an attribute chain longer than the describe bound.
	expr := "root" + strings.Repeat(".next", 40)
	tree := parseSource(t, "x = "+expr+"\n")
	assign := findNode(t, tree, "assignment")
	right := assign.ChildByFieldName("right")
	require.NotNil(t, right)

	assert.Contains(t, DescribeExpr(right, tree.Source), exprDepthSentinel)
}

// ---------------------------------------------------------------------------
// TestAttributeHelpers
// ---------------------------------------------------------------------------

func TestAttributeLeafAndRoot(t *testing.T) {
	tree := parseSource(t, "x = abc.sub.ABCMeta\n")
	attr := findNode(t, tree, "attribute")

	assert.Equal(t, "ABCMeta", AttributeLeaf(attr, tree.Source))
	assert.Equal(t, "abc", AttributeRoot(attr, tree.Source))
}

// ---------------------------------------------------------------------------
// TestEnclosingScopes
// ---------------------------------------------------------------------------

func TestEnclosingFunction_QualifiesMethods(t *testing.T) {
	source := `class Service:
    def handler(self):
        helper()

def top():
    helper()

helper()
`
	tree := parseSource(t, source)

	var contexts []string
	err := Walk(tree.Root(), 0, func(node *tree_sitter.Node, _ int) {
		if node.Kind() == "call" {
			contexts = append(contexts, EnclosingFunction(node, tree.Source))
		}
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Service.handler", "top", ""}, contexts)
}

func TestEnclosingClass_MethodsOnly(t *testing.T) {
	source := `class Box:
    def method(self):
        def inner():
            pass

def standalone():
    pass
`
	tree := parseSource(t, source)

	var got []string
	err := Walk(tree.Root(), 0, func(node *tree_sitter.Node, _ int) {
		if node.Kind() == "function_definition" {
			got = append(got, EnclosingClass(node, tree.Source))
		}
	})
	require.NoError(t, err)
	// method is in Box; inner belongs to method's scope; standalone is
	// module level.
	assert.Equal(t, []string{"Box", "", ""}, got)
}
