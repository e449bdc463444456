package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarry-dev/quarry/internal/config"
	"github.com/quarry-dev/quarry/internal/graph"
	"github.com/quarry-dev/quarry/internal/symbols"
)

// analyzeForWarnings runs the full detector set over one source file and
// returns whatever the dynamic-pattern detectors reported.
func analyzeForWarnings(t *testing.T, filename, source string) []symbols.DynamicPatternWarning {
	t.Helper()
	dir := t.TempDir()
	path := writePy(t, dir, filename, source)

	list := NewWarningList()
	registry := DefaultRegistry(Options{Classifier: DefaultClassifier(), Warnings: list})
	analyzer := NewAnalyzer(registry, graph.New(), config.Default())

	data, err := analyzer.ExtractFileSymbols(path)
	require.NoError(t, err)
	require.True(t, data.IsValid)
	return list.All()
}

func warningsOfType(ws []symbols.DynamicPatternWarning, pt symbols.PatternType) []symbols.DynamicPatternWarning {
	var out []symbols.DynamicPatternWarning
	for _, w := range ws {
		if w.PatternType == pt {
			out = append(out, w)
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// TestDynamicDispatch
// ---------------------------------------------------------------------------

func TestDynamicDispatch_VariableAttributeName(t *testing.T) {
	source := `def pick(obj, attr):
    return getattr(obj, attr)
`
	ws := analyzeForWarnings(t, "m.py", source)
	dispatch := warningsOfType(ws, symbols.PatternDynamicDispatch)
	require.Len(t, dispatch, 1)
	assert.Equal(t, symbols.SeverityWarning, dispatch[0].Severity)
	assert.Equal(t, 2, dispatch[0].LineNumber)
	assert.Equal(t, "attr", dispatch[0].Metadata["expression"])
}

func TestDynamicDispatch_ConstantStringIsResolvable(t *testing.T) {
	source := `def pick(obj):
    return getattr(obj, "name")
`
	ws := analyzeForWarnings(t, "m.py", source)
	assert.Empty(t, warningsOfType(ws, symbols.PatternDynamicDispatch))
}

func TestDynamicDispatch_SuppressedInTestFile(t *testing.T) {
	source := `def test_pick(obj, attr):
    return getattr(obj, attr)
`
	ws := analyzeForWarnings(t, "test_pick.py", source)
	assert.Empty(t, ws, "warnings in test modules are suppressed")
}

// ---------------------------------------------------------------------------
// TestMonkeyPatching
// ---------------------------------------------------------------------------

func TestMonkeyPatching_ModuleLevelAttributeAssignment(t *testing.T) {
	source := `import json

json.dumps = my_dumps
`
	ws := analyzeForWarnings(t, "m.py", source)
	patches := warningsOfType(ws, symbols.PatternMonkeyPatching)
	require.Len(t, patches, 1)
	assert.Equal(t, "json.dumps", patches[0].Metadata["target"])
	assert.Equal(t, 3, patches[0].LineNumber)
}

func TestMonkeyPatching_IgnoresFunctionLocalAndSelf(t *testing.T) {
	source := `class Box:
    def __init__(self):
        self.size = 1

def setup(cfg):
    cfg.debug = True
`
	ws := analyzeForWarnings(t, "m.py", source)
	assert.Empty(t, warningsOfType(ws, symbols.PatternMonkeyPatching))
}

// ---------------------------------------------------------------------------
// TestExecEval
// ---------------------------------------------------------------------------

func TestExecEval_BothFlagged(t *testing.T) {
	source := `def run(code):
    exec(code)
    return eval("1 + 1")
`
	ws := analyzeForWarnings(t, "m.py", source)
	flagged := warningsOfType(ws, symbols.PatternExecEval)
	require.Len(t, flagged, 2)
	assert.Equal(t, "exec", flagged[0].Metadata["function"])
	assert.Equal(t, "eval", flagged[1].Metadata["function"])
}

// ---------------------------------------------------------------------------
// TestDecorator
// ---------------------------------------------------------------------------

func TestDecorator_StandardSetSkipped(t *testing.T) {
	source := `from functools import lru_cache

class Box:
    @property
    def size(self):
        return 1

    @lru_cache
    def lookup(self):
        return 2
`
	ws := analyzeForWarnings(t, "m.py", source)
	assert.Empty(t, warningsOfType(ws, symbols.PatternDecorator))
}

func TestDecorator_CustomFlagged(t *testing.T) {
	source := `@register_handler
def handle(event):
    pass
`
	ws := analyzeForWarnings(t, "m.py", source)
	custom := warningsOfType(ws, symbols.PatternDecorator)
	require.Len(t, custom, 1)
	assert.Equal(t, "register_handler", custom[0].Metadata["decorator"])
}

func TestDecorator_DottedStandardSkipped(t *testing.T) {
	source := `import functools

@functools.wraps
def handle(event):
    pass
`
	ws := analyzeForWarnings(t, "m.py", source)
	assert.Empty(t, warningsOfType(ws, symbols.PatternDecorator))
}

// ---------------------------------------------------------------------------
// TestMetaclass
// ---------------------------------------------------------------------------

func TestMetaclass_StandardWhitelisted(t *testing.T) {
	source := `import abc

class Base(metaclass=abc.ABCMeta):
    pass
`
	ws := analyzeForWarnings(t, "m.py", source)
	assert.Empty(t, warningsOfType(ws, symbols.PatternMetaclass))
}

func TestMetaclass_CustomReportedAsInfo(t *testing.T) {
	source := `class Model(metaclass=ModelMeta):
    pass
`
	ws := analyzeForWarnings(t, "m.py", source)
	infos := warningsOfType(ws, symbols.PatternMetaclass)
	require.Len(t, infos, 1)
	assert.Equal(t, symbols.SeverityInfo, infos[0].Severity)
	assert.Equal(t, "ModelMeta", infos[0].Metadata["metaclass"])
	assert.False(t, infos[0].IsTestModule)
}

func TestMetaclass_InfoSurvivesTestFiles(t *testing.T) {
	source := `class Model(metaclass=ModelMeta):
    pass
`
	ws := analyzeForWarnings(t, "test_model.py", source)
	infos := warningsOfType(ws, symbols.PatternMetaclass)
	require.Len(t, infos, 1, "INFO severity is reported even for test modules")
	assert.True(t, infos[0].IsTestModule)
}
