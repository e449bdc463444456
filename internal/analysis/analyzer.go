package analysis

import (
	"errors"
	"log/slog"
	"time"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/quarry-dev/quarry/internal/config"
	"github.com/quarry-dev/quarry/internal/graph"
	"github.com/quarry-dev/quarry/internal/pysrc"
	"github.com/quarry-dev/quarry/internal/symbols"
)

// Analyzer drives every node of a parsed file through the detector
// registry. Detectors are stateless, so one Analyzer is safe for
// concurrent use across files.
type Analyzer struct {
	registry *Registry
	parser   *pysrc.Parser
	graph    *graph.Graph
	cfg      *config.Config
}

// NewAnalyzer creates an Analyzer writing single-phase results into g.
func NewAnalyzer(registry *Registry, g *graph.Graph, cfg *config.Config) *Analyzer {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Analyzer{
		registry: registry,
		parser:   pysrc.NewParser(),
		graph:    g,
		cfg:      cfg,
	}
}

// Registry exposes the analyzer's detector registry.
func (a *Analyzer) Registry() *Registry { return a.registry }

// AnalyzeFile runs the single-phase path: parse, detect, and replace the
// file's relationships in the graph. Returns false when the file was
// skipped (too large) or could not be parsed. A failed parse marks the
// file unparseable in graph metadata; a skip leaves metadata untouched.
func (a *Analyzer) AnalyzeFile(path string) bool {
	tree, ok := a.parseForAnalysis(path)
	if tree == nil {
		return ok
	}
	defer tree.Close()

	detectors := a.registry.Detectors()
	var rels []graph.Relationship

	err := pysrc.Walk(tree.Root(), a.cfg.MaxTreeDepth, func(node *tree_sitter.Node, _ int) {
		for _, d := range detectors {
			rels = append(rels, a.safeDetect(d, node, path, tree)...)
		}
	})
	if err != nil {
		slog.Warn("tree too deep, marking unparseable", "file", path)
		a.graph.MarkUnparseable(path)
		return false
	}

	a.graph.ReplaceFile(path, rels)
	return true
}

// ExtractFileSymbols runs the extraction phase: parse and collect
// definitions and references. A file that fails to parse yields
// IsValid=false data rather than silently empty valid data; a read
// failure or size skip yields nil and the error.
func (a *Analyzer) ExtractFileSymbols(path string) (*symbols.FileSymbolData, error) {
	src, err := pysrc.LoadFile(path, a.cfg.MaxFileLines)
	if err != nil {
		return nil, err
	}

	invalid := &symbols.FileSymbolData{
		Filepath:  path,
		ParseTime: time.Now(),
	}

	tree, err := a.parser.Parse(src)
	if err != nil {
		slog.Warn("parse failed", "file", path, "error", err)
		return invalid, nil
	}
	defer tree.Close()
	if tree.HasError() {
		slog.Warn("syntax errors in file", "file", path)
		return invalid, nil
	}

	detectors := a.registry.Detectors()
	data := &symbols.FileSymbolData{
		Filepath: path,
		IsValid:  true,
	}

	err = pysrc.Walk(tree.Root(), a.cfg.MaxTreeDepth, func(node *tree_sitter.Node, _ int) {
		for _, d := range detectors {
			defs, refs := a.safeExtract(d, node, path, tree)
			data.Definitions = append(data.Definitions, defs...)
			data.References = append(data.References, refs...)
		}
	})
	if err != nil {
		slog.Warn("tree too deep", "file", path)
		return invalid, nil
	}

	data.ParseTime = time.Now()
	return data, nil
}

// parseForAnalysis is the shared front end of AnalyzeFile. A nil tree
// means the caller should return the accompanying bool.
func (a *Analyzer) parseForAnalysis(path string) (*pysrc.Tree, bool) {
	src, err := pysrc.LoadFile(path, a.cfg.MaxFileLines)
	if err != nil {
		if errors.Is(err, pysrc.ErrTooLarge) {
			slog.Info("skipping oversized file", "file", path)
		} else {
			slog.Warn("read failed", "file", path, "error", err)
		}
		return nil, false
	}

	tree, err := a.parser.Parse(src)
	if err != nil {
		slog.Warn("parse failed, marking unparseable", "file", path, "error", err)
		a.graph.MarkUnparseable(path)
		return nil, false
	}
	if tree.HasError() {
		slog.Warn("syntax errors, marking unparseable", "file", path)
		tree.Close()
		a.graph.MarkUnparseable(path)
		return nil, false
	}
	return tree, true
}

// safeDetect isolates one detector invocation: a panic or error is
// logged and costs only that detector's output for that node.
func (a *Analyzer) safeDetect(d Detector, node *tree_sitter.Node, path string, tree *pysrc.Tree) (rels []graph.Relationship) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("detector panicked", "detector", d.Name(), "file", path, "panic", r)
			rels = nil
		}
	}()

	rels, err := d.Detect(node, path, tree)
	if err != nil {
		slog.Error("detector failed", "detector", d.Name(), "file", path, "error", err)
		return nil
	}
	return rels
}

func (a *Analyzer) safeExtract(d Detector, node *tree_sitter.Node, path string, tree *pysrc.Tree) (defs []symbols.Definition, refs []symbols.Reference) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("detector panicked", "detector", d.Name(), "file", path, "panic", r)
			defs, refs = nil, nil
		}
	}()

	defs, refs, err := d.ExtractSymbols(node, path, tree)
	if err != nil {
		slog.Error("detector failed", "detector", d.Name(), "file", path, "error", err)
		return nil, nil
	}
	return defs, refs
}
