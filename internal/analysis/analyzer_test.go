package analysis

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/quarry-dev/quarry/internal/cache"
	"github.com/quarry-dev/quarry/internal/config"
	"github.com/quarry-dev/quarry/internal/graph"
	"github.com/quarry-dev/quarry/internal/pysrc"
	"github.com/quarry-dev/quarry/internal/symbols"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// writePy writes a Python source file into dir and returns its path.
func writePy(t *testing.T, dir, name, source string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(source), 0o644))
	return path
}

// newTestAnalyzer builds an analyzer with the default detector set, a
// fresh graph, and default config.
func newTestAnalyzer(t *testing.T, opts Options) (*Analyzer, *graph.Graph) {
	t.Helper()
	g := graph.New()
	return NewAnalyzer(DefaultRegistry(opts), g, config.Default()), g
}

func refsOfKind(refs []symbols.Reference, kind symbols.ReferenceKind) []symbols.Reference {
	var out []symbols.Reference
	for _, r := range refs {
		if r.Kind == kind {
			out = append(out, r)
		}
	}
	return out
}

func findDef(defs []symbols.Definition, name string) *symbols.Definition {
	for i := range defs {
		if defs[i].Name == name {
			return &defs[i]
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// TestAnalyzer_TwoPhaseResolution
// ---------------------------------------------------------------------------

func TestAnalyzer_ImportAndCallResolveAcrossFiles(t *testing.T) {
	dir := t.TempDir()
	a := writePy(t, dir, "a.py", "def foo():\n    return 1\n")
	b := writePy(t, dir, "b.py", "from a import foo\n\ndef run():\n    foo()\n")

	analyzer, _ := newTestAnalyzer(t, Options{})
	builder := graph.NewBuilder()
	result := analyzer.ExtractProject(context.Background(), []string{a, b}, builder, nil)
	require.Equal(t, 2, result.Succeeded)
	require.Zero(t, result.Failed)

	rels := builder.BuildRelationships()
	require.Len(t, rels, 2)

	var importRel, callRel *graph.Relationship
	for i := range rels {
		switch rels[i].Type {
		case graph.RelImport:
			importRel = &rels[i]
		case graph.RelFunctionCall:
			callRel = &rels[i]
		}
	}

	require.NotNil(t, importRel)
	assert.Equal(t, b, importRel.SourceFile)
	assert.Equal(t, a, importRel.TargetFile)
	assert.Equal(t, "foo", importRel.TargetSymbol)
	assert.Equal(t, 1, importRel.LineNumber)
	assert.Equal(t, 1, importRel.TargetLine)

	require.NotNil(t, callRel)
	assert.Equal(t, b, callRel.SourceFile)
	assert.Equal(t, a, callRel.TargetFile)
	assert.Equal(t, "run", callRel.SourceSymbol)
	assert.Equal(t, "foo", callRel.TargetSymbol)
	assert.Equal(t, 1, callRel.TargetLine)
}

func TestAnalyzer_LegacyPathMatchesTwoPhaseCounts(t *testing.T) {
	dir := t.TempDir()
	files := []string{
		writePy(t, dir, "a.py", "def foo():\n    return 1\n"),
		writePy(t, dir, "b.py", "from a import foo\nimport os\n\ndef run():\n    foo()\n"),
	}

	extractor, _ := newTestAnalyzer(t, Options{})
	builder := graph.NewBuilder()
	extractor.ExtractProject(context.Background(), files, builder, nil)
	twoPhase := len(builder.BuildRelationships())

	legacy, g := newTestAnalyzer(t, Options{})
	legacy.AnalyzeProject(context.Background(), files)
	assert.Equal(t, twoPhase, g.RelationshipCount())
}

// ---------------------------------------------------------------------------
// TestAnalyzer_FailureModes
// ---------------------------------------------------------------------------

func TestAnalyzer_OversizedFileSkipped(t *testing.T) {
	dir := t.TempDir()
	var source string
	for i := 0; i < 20; i++ {
		source += "x = 1\n"
	}
	path := writePy(t, dir, "big.py", source)

	cfg := config.Default()
	cfg.MaxFileLines = 5
	g := graph.New()
	analyzer := NewAnalyzer(DefaultRegistry(Options{}), g, cfg)

	assert.False(t, analyzer.AnalyzeFile(path))
	_, ok := g.Metadata(path)
	assert.False(t, ok, "a skipped file gets no metadata record")

	data, err := analyzer.ExtractFileSymbols(path)
	assert.Nil(t, data)
	require.ErrorIs(t, err, pysrc.ErrTooLarge)
}

func TestAnalyzer_UnparseableFileMarked(t *testing.T) {
	dir := t.TempDir()
	path := writePy(t, dir, "broken.py", "def broken(:\n")

	analyzer, g := newTestAnalyzer(t, Options{})
	assert.False(t, analyzer.AnalyzeFile(path))

	meta, ok := g.Metadata(path)
	require.True(t, ok)
	assert.True(t, meta.Unparseable)

	data, err := analyzer.ExtractFileSymbols(path)
	require.NoError(t, err)
	require.NotNil(t, data)
	assert.False(t, data.IsValid, "a failed parse yields invalid data, never silently empty valid data")
	assert.Empty(t, data.Definitions)
}

// panicDetector blows up on every call node.
type panicDetector struct{}

func (d *panicDetector) Name() string  { return "panics" }
func (d *panicDetector) Priority() int { return 60 }

func (d *panicDetector) Detect(node *tree_sitter.Node, _ string, _ *pysrc.Tree) ([]graph.Relationship, error) {
	if node.Kind() == "call" {
		panic("detector bug")
	}
	return nil, nil
}

func (d *panicDetector) ExtractSymbols(node *tree_sitter.Node, _ string, _ *pysrc.Tree) ([]symbols.Definition, []symbols.Reference, error) {
	if node.Kind() == "call" {
		panic("detector bug")
	}
	return nil, nil, nil
}

func TestAnalyzer_DetectorPanicIsolated(t *testing.T) {
	dir := t.TempDir()
	path := writePy(t, dir, "m.py", "import os\n\ndef run():\n    helper()\n")

	registry := NewRegistry()
	require.NoError(t, registry.Register(&panicDetector{}))
	require.NoError(t, registry.Register(NewImportDetector()))
	require.NoError(t, registry.Register(NewFunctionCallDetector()))

	g := graph.New()
	analyzer := NewAnalyzer(registry, g, config.Default())

	require.True(t, analyzer.AnalyzeFile(path), "one broken detector does not fail the file")
	// The import edge and the call edge both survive; only the panicky
	// detector's output is lost.
	assert.Equal(t, 2, g.RelationshipCount())

	data, err := analyzer.ExtractFileSymbols(path)
	require.NoError(t, err)
	assert.True(t, data.IsValid)
	assert.Len(t, data.References, 2)
}

// ---------------------------------------------------------------------------
// TestAnalyzer_ImportForms
// ---------------------------------------------------------------------------

func TestAnalyzer_StdlibAndExternalImports(t *testing.T) {
	dir := t.TempDir()
	path := writePy(t, dir, "m.py", "import os\nimport os.path\nimport requests\nimport numpy as np\n")

	analyzer, _ := newTestAnalyzer(t, Options{})
	data, err := analyzer.ExtractFileSymbols(path)
	require.NoError(t, err)

	imports := refsOfKind(data.References, symbols.RefImport)
	require.Len(t, imports, 4)
	assert.Equal(t, graph.StdlibTarget("os"), imports[0].ResolvedModule)
	assert.Equal(t, graph.StdlibTarget("os.path"), imports[1].ResolvedModule)
	assert.Equal(t, graph.ModuleTarget("requests"), imports[2].ResolvedModule)
	assert.Equal(t, graph.ModuleTarget("numpy"), imports[3].ResolvedModule)
	assert.Equal(t, "np", imports[3].Metadata["alias"])
}

func TestAnalyzer_RelativeImportResolvesAgainstDirectory(t *testing.T) {
	dir := t.TempDir()
	pkg := filepath.Join(dir, "pkg")
	require.NoError(t, os.MkdirAll(pkg, 0o755))
	writePy(t, pkg, "helpers.py", "def util():\n    pass\n")
	path := writePy(t, pkg, "main.py", "from .helpers import util\n")

	analyzer, _ := newTestAnalyzer(t, Options{})
	data, err := analyzer.ExtractFileSymbols(path)
	require.NoError(t, err)

	require.Len(t, data.References, 1)
	assert.Equal(t, filepath.Join(pkg, "helpers.py"), data.References[0].ResolvedModule)
	assert.Equal(t, "util", data.References[0].ResolvedSymbol)
}

func TestAnalyzer_ConditionalImports(t *testing.T) {
	dir := t.TempDir()
	source := `import sys

if sys.version_info >= (3, 11):
    import tomllib
else:
    import tomli
`
	path := writePy(t, dir, "m.py", source)

	analyzer, _ := newTestAnalyzer(t, Options{})
	data, err := analyzer.ExtractFileSymbols(path)
	require.NoError(t, err)

	imports := refsOfKind(data.References, symbols.RefImport)
	require.Len(t, imports, 3)

	byName := make(map[string]symbols.Reference)
	for _, ref := range imports {
		byName[ref.Name] = ref
	}

	assert.False(t, byName["sys"].IsConditional)

	tomllib := byName["tomllib"]
	assert.True(t, tomllib.IsConditional)
	assert.NotEmpty(t, tomllib.Metadata["condition"])
	assert.Equal(t, graph.StdlibTarget("tomllib"), tomllib.ResolvedModule)

	tomli := byName["tomli"]
	assert.True(t, tomli.IsConditional)
	assert.Equal(t, "else", tomli.Metadata["condition"])
}

func TestAnalyzer_WildcardImport(t *testing.T) {
	dir := t.TempDir()
	writePy(t, dir, "helpers.py", "def a():\n    pass\n")
	path := writePy(t, dir, "m.py", "from helpers import *\n")

	var warned []string
	opts := Options{
		WarnOnWildcards: true,
		WildcardWarn: func(filepath string, line int, message string) {
			warned = append(warned, message)
		},
	}
	analyzer, _ := newTestAnalyzer(t, opts)
	data, err := analyzer.ExtractFileSymbols(path)
	require.NoError(t, err)

	require.Len(t, data.References, 1)
	ref := data.References[0]
	assert.Equal(t, "true", ref.Metadata["wildcard"])
	assert.Equal(t, filepath.Join(dir, "helpers.py"), ref.ResolvedModule)
	assert.Len(t, warned, 1)
}

func TestAnalyzer_ConditionalWildcardKeepsCondition(t *testing.T) {
	dir := t.TempDir()
	writePy(t, dir, "helpers.py", "def a():\n    pass\n")
	source := `import sys

if sys.platform == "win32":
    from helpers import *
`
	path := writePy(t, dir, "m.py", source)

	analyzer, _ := newTestAnalyzer(t, Options{})
	data, err := analyzer.ExtractFileSymbols(path)
	require.NoError(t, err)

	var wildcard *symbols.Reference
	for i := range data.References {
		if data.References[i].Metadata["wildcard"] == "true" {
			wildcard = &data.References[i]
		}
	}
	require.NotNil(t, wildcard)
	assert.True(t, wildcard.IsConditional)
	assert.NotEmpty(t, wildcard.Metadata["condition"], "the guarding condition is recorded like any other conditional import")
}

// ---------------------------------------------------------------------------
// TestAnalyzer_Definitions
// ---------------------------------------------------------------------------

func TestAnalyzer_FixtureDefinitions(t *testing.T) {
	analyzer, _ := newTestAnalyzer(t, Options{})
	data, err := analyzer.ExtractFileSymbols("../../testdata/fixtures/py_project/models.py")
	require.NoError(t, err)
	require.True(t, data.IsValid)

	record := findDef(data.Definitions, "Record")
	require.NotNil(t, record)
	assert.Equal(t, symbols.KindClass, record.Kind)
	assert.Equal(t, "One stored record.", record.Docstring)
	assert.Contains(t, record.Decorators, "dataclass")

	toJSON := findDef(data.Definitions, "to_json")
	require.NotNil(t, toJSON)
	assert.Equal(t, symbols.KindFunction, toJSON.Kind)
	assert.Equal(t, "Record", toJSON.ParentClass)
	assert.Equal(t, "to_json(self) -> str", toJSON.Signature)
	assert.Equal(t, "Serialize the record.", toJSON.Docstring)

	version := findDef(data.Definitions, "SCHEMA_VERSION")
	require.NotNil(t, version)
	assert.Equal(t, symbols.KindVariable, version.Kind)

	versioned := findDef(data.Definitions, "VersionedRecord")
	require.NotNil(t, versioned)
	assert.Equal(t, "VersionedRecord(Record)", versioned.Signature)
}

func TestAnalyzer_InheritanceReference(t *testing.T) {
	dir := t.TempDir()
	path := writePy(t, dir, "m.py", "class Base:\n    pass\n\nclass Child(Base, object):\n    pass\n")

	analyzer, _ := newTestAnalyzer(t, Options{})
	data, err := analyzer.ExtractFileSymbols(path)
	require.NoError(t, err)

	bases := refsOfKind(data.References, symbols.RefClassReference)
	require.Len(t, bases, 1, "object base is skipped")
	assert.Equal(t, "Base", bases[0].Name)
	assert.Equal(t, "Child", bases[0].CallerContext)
}

func TestAnalyzer_CallerContextQualified(t *testing.T) {
	dir := t.TempDir()
	source := `class Service:
    def handle(self):
        process()
`
	path := writePy(t, dir, "m.py", source)

	analyzer, _ := newTestAnalyzer(t, Options{})
	data, err := analyzer.ExtractFileSymbols(path)
	require.NoError(t, err)

	calls := refsOfKind(data.References, symbols.RefFunctionCall)
	require.Len(t, calls, 1)
	assert.Equal(t, "Service.handle", calls[0].CallerContext)
}

// ---------------------------------------------------------------------------
// TestAnalyzer_CacheIntegration
// ---------------------------------------------------------------------------

func TestAnalyzer_ExtractProjectUsesCache(t *testing.T) {
	dir := t.TempDir()
	files := []string{
		writePy(t, dir, "a.py", "def foo():\n    return 1\n"),
		writePy(t, dir, "b.py", "from a import foo\n"),
	}

	analyzer, _ := newTestAnalyzer(t, Options{})
	sc := cache.New(10, false)

	first := analyzer.ExtractProject(context.Background(), files, graph.NewBuilder(), sc)
	require.Equal(t, 2, first.Succeeded)

	second := analyzer.ExtractProject(context.Background(), files, graph.NewBuilder(), sc)
	require.Equal(t, 2, second.Succeeded)

	stats := sc.Statistics()
	assert.Equal(t, 2, stats.Hits, "second pass is served from the cache")
}
