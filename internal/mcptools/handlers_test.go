package mcptools

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarry-dev/quarry/internal/graph"
)

// newProject writes a small Python project and returns a service rooted
// there. b.py imports and calls into a.py; probe.py carries a dynamic
// dispatch pattern.
func newProject(t *testing.T) (*Service, string) {
	t.Helper()
	root := t.TempDir()

	files := map[string]string{
		"a.py": "def foo():\n    \"\"\"Answer.\"\"\"\n    return 1\n",
		"b.py": "from a import foo\n\ndef run():\n    foo()\n",
		"probe.py": "def pick(obj, attr):\n    return getattr(obj, attr)\n",
	}
	for name, src := range files {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte(src), 0o644))
	}

	return NewService(root, nil), root
}

func buildProject(t *testing.T, svc *Service) BuildGraphOutput {
	t.Helper()
	_, out, err := svc.BuildGraph(context.Background(), nil, BuildGraphInput{})
	require.NoError(t, err)
	require.Equal(t, "completed", out.Status)
	return out
}

// ---------------------------------------------------------------------------
// TestBuildGraph
// ---------------------------------------------------------------------------

func TestBuildGraph_AnalyzesProject(t *testing.T) {
	svc, _ := newProject(t)
	out := buildProject(t, svc)

	assert.Equal(t, 3, out.FilesAnalyzed)
	assert.Zero(t, out.FilesFailed)
	assert.Equal(t, 2, out.Relationships, "b.py imports a.py and calls foo")
}

func TestBuildGraph_RejectsForeignRoot(t *testing.T) {
	svc, _ := newProject(t)
	_, out, err := svc.BuildGraph(context.Background(), nil, BuildGraphInput{ProjectRoot: "/elsewhere"})
	require.Error(t, err)
	assert.Equal(t, "failed", out.Status)
}

func TestBuildGraph_RebuildIsIdempotent(t *testing.T) {
	svc, _ := newProject(t)
	first := buildProject(t, svc)
	second := buildProject(t, svc)
	assert.Equal(t, first.Relationships, second.Relationships)
	assert.Equal(t, first.FilesAnalyzed, second.FilesAnalyzed)
}

// ---------------------------------------------------------------------------
// TestGetFileContext
// ---------------------------------------------------------------------------

func TestGetFileContext_DefinitionsAndEdges(t *testing.T) {
	svc, root := newProject(t)
	buildProject(t, svc)

	aPath := filepath.Join(root, "a.py")
	bPath := filepath.Join(root, "b.py")

	_, out, err := svc.GetFileContext(context.Background(), nil, FileContextInput{Path: bPath})
	require.NoError(t, err)

	require.Len(t, out.Definitions, 1)
	assert.Equal(t, "run", out.Definitions[0].Name)
	assert.Equal(t, "function", out.Definitions[0].Kind)

	require.Len(t, out.Dependencies, 2)
	for _, dep := range out.Dependencies {
		assert.Equal(t, aPath, dep.File)
	}
	assert.Empty(t, out.Dependents)

	// The target file sees the reverse edges.
	_, aOut, err := svc.GetFileContext(context.Background(), nil, FileContextInput{Path: aPath})
	require.NoError(t, err)
	require.Len(t, aOut.Dependents, 2)
	assert.Equal(t, bPath, aOut.Dependents[0].File)
	assert.Contains(t, aOut.Rendered, "## Used by")

	assert.Contains(t, out.Rendered, "## Defines")
	assert.Contains(t, out.Rendered, "## Depends on")
}

func TestGetFileContext_IncludesWarnings(t *testing.T) {
	svc, root := newProject(t)
	buildProject(t, svc)

	_, out, err := svc.GetFileContext(context.Background(), nil, FileContextInput{Path: filepath.Join(root, "probe.py")})
	require.NoError(t, err)

	require.Len(t, out.Warnings, 1)
	assert.Equal(t, "dynamic_dispatch", out.Warnings[0].Pattern)
	assert.Contains(t, out.Rendered, "## Dynamic patterns")
}

func TestGetFileContext_RequiresPath(t *testing.T) {
	svc, _ := newProject(t)
	_, _, err := svc.GetFileContext(context.Background(), nil, FileContextInput{})
	assert.Error(t, err)
}

// ---------------------------------------------------------------------------
// TestFindSymbol
// ---------------------------------------------------------------------------

func TestFindSymbol_SingleMatch(t *testing.T) {
	svc, root := newProject(t)
	buildProject(t, svc)

	_, out, err := svc.FindSymbol(context.Background(), nil, FindSymbolInput{Name: "foo"})
	require.NoError(t, err)
	require.Len(t, out.Matches, 1)
	assert.Equal(t, filepath.Join(root, "a.py"), out.Matches[0].File)
	assert.Equal(t, 1, out.Matches[0].Line)
	assert.False(t, out.Ambiguous)
}

func TestFindSymbol_AmbiguousAcrossFiles(t *testing.T) {
	svc, root := newProject(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "c.py"), []byte("def foo():\n    return 2\n"), 0o644))
	buildProject(t, svc)

	_, out, err := svc.FindSymbol(context.Background(), nil, FindSymbolInput{Name: "foo"})
	require.NoError(t, err)
	assert.Len(t, out.Matches, 2)
	assert.True(t, out.Ambiguous)
}

func TestFindSymbol_NoMatch(t *testing.T) {
	svc, _ := newProject(t)
	buildProject(t, svc)

	_, out, err := svc.FindSymbol(context.Background(), nil, FindSymbolInput{Name: "missing"})
	require.NoError(t, err)
	assert.Empty(t, out.Matches)
	assert.False(t, out.Ambiguous)
}

// ---------------------------------------------------------------------------
// TestGraphExport
// ---------------------------------------------------------------------------

func TestGraphExport_Formats(t *testing.T) {
	svc, _ := newProject(t)
	buildProject(t, svc)

	_, jsonOut, err := svc.GraphExport(context.Background(), nil, GraphExportInput{Format: "json"})
	require.NoError(t, err)
	assert.Equal(t, 3, jsonOut.Files)
	assert.NotNil(t, jsonOut.Graph)
	assert.Empty(t, jsonOut.Mermaid)

	_, mermaidOut, err := svc.GraphExport(context.Background(), nil, GraphExportInput{Format: "mermaid"})
	require.NoError(t, err)
	assert.Contains(t, mermaidOut.Mermaid, "graph TD")
	assert.Nil(t, mermaidOut.Graph)

	_, _, err = svc.GraphExport(context.Background(), nil, GraphExportInput{Format: "dot"})
	assert.Error(t, err)
}

// ---------------------------------------------------------------------------
// TestCacheStats
// ---------------------------------------------------------------------------

func TestCacheStats_ReflectsRebuilds(t *testing.T) {
	svc, _ := newProject(t)
	buildProject(t, svc)
	buildProject(t, svc)

	_, out, err := svc.CacheStats(context.Background(), nil, CacheStatsInput{})
	require.NoError(t, err)
	assert.Equal(t, 3, out.Entries)
	assert.Equal(t, 3, out.Hits, "second rebuild is served from cache")
	assert.Equal(t, 3, out.Misses, "first rebuild misses every file")
	assert.Greater(t, out.HitRate, 0.0)
}

// ---------------------------------------------------------------------------
// TestIncrementalUpdates
// ---------------------------------------------------------------------------

func TestReanalyzeFiles_RefreshesEdges(t *testing.T) {
	svc, root := newProject(t)
	buildProject(t, svc)

	bPath := filepath.Join(root, "b.py")
	require.NoError(t, os.WriteFile(bPath, []byte("def run():\n    pass\n"), 0o644))
	svc.ReanalyzeFiles([]string{bPath})

	assert.Empty(t, svc.Graph().Dependencies(bPath), "dropped import leaves no edges")

	_, out, err := svc.FindSymbol(context.Background(), nil, FindSymbolInput{Name: "run"})
	require.NoError(t, err)
	require.Len(t, out.Matches, 1)
}

func TestReanalyzeFiles_BrokenFileStopsContributing(t *testing.T) {
	svc, root := newProject(t)
	buildProject(t, svc)

	bPath := filepath.Join(root, "b.py")
	require.NoError(t, os.WriteFile(bPath, []byte("def run(:\n"), 0o644))
	svc.ReanalyzeFiles([]string{bPath})

	meta, ok := svc.Graph().Metadata(bPath)
	require.True(t, ok)
	assert.True(t, meta.Unparseable)

	_, out, err := svc.FindSymbol(context.Background(), nil, FindSymbolInput{Name: "run"})
	require.NoError(t, err)
	assert.Empty(t, out.Matches, "definitions from the failed extraction are gone")
}

func TestRebuild_DropsDeletedFiles(t *testing.T) {
	svc, root := newProject(t)
	buildProject(t, svc)

	aPath := filepath.Join(root, "a.py")
	bPath := filepath.Join(root, "b.py")
	require.NoError(t, os.Remove(aPath))
	buildProject(t, svc)

	_, ok := svc.Graph().Metadata(aPath)
	assert.False(t, ok, "deleted file leaves no metadata behind")

	_, out, err := svc.FindSymbol(context.Background(), nil, FindSymbolInput{Name: "foo"})
	require.NoError(t, err)
	assert.Empty(t, out.Matches)

	// b.py's call can no longer resolve into the deleted file's
	// definition index entries.
	for _, rel := range svc.Graph().Dependencies(bPath) {
		if rel.Type == graph.RelFunctionCall {
			assert.Equal(t, graph.UnresolvedTarget("foo"), rel.TargetFile)
		}
	}
}

func TestRemoveFiles_DropsEverything(t *testing.T) {
	svc, root := newProject(t)
	buildProject(t, svc)

	aPath := filepath.Join(root, "a.py")
	svc.RemoveFiles([]string{aPath})

	_, ok := svc.Graph().Metadata(aPath)
	assert.False(t, ok)

	_, out, err := svc.FindSymbol(context.Background(), nil, FindSymbolInput{Name: "foo"})
	require.NoError(t, err)
	assert.Empty(t, out.Matches)
}
