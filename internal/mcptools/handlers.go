package mcptools

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/quarry-dev/quarry/internal/analysis"
	"github.com/quarry-dev/quarry/internal/cache"
	"github.com/quarry-dev/quarry/internal/config"
	"github.com/quarry-dev/quarry/internal/graph"
	"github.com/quarry-dev/quarry/internal/walker"
)

// Service handles MCP tool calls. It owns the full analysis pipeline:
// analyzer, builder, graph, cache, and the warning list.
type Service struct {
	root     string
	cfg      *config.Config
	analyzer *analysis.Analyzer
	builder  *graph.Builder
	graph    *graph.Graph
	cache    *cache.SymbolCache
	warnings *analysis.WarningList
}

// NewService wires a pipeline for projectRoot.
func NewService(projectRoot string, cfg *config.Config) *Service {
	if cfg == nil {
		cfg = config.Default()
	}

	warnings := analysis.NewWarningList()
	registry := analysis.DefaultRegistry(analysis.Options{
		WarnOnWildcards: cfg.WarnOnWildcards,
		Classifier:      analysis.NewClassifier(projectRoot),
		Warnings:        warnings,
	})
	g := graph.New()

	return &Service{
		root:     projectRoot,
		cfg:      cfg,
		analyzer: analysis.NewAnalyzer(registry, g, cfg),
		builder:  graph.NewBuilder(),
		graph:    g,
		cache:    cache.New(cfg.CacheCapacity, cfg.CacheValidateHash),
		warnings: warnings,
	}
}

// Graph exposes the service's relationship graph.
func (s *Service) Graph() *graph.Graph { return s.graph }

// Builder exposes the service's relationship builder.
func (s *Service) Builder() *graph.Builder { return s.builder }

// Cache exposes the service's symbol cache.
func (s *Service) Cache() *cache.SymbolCache { return s.cache }

// Warnings exposes the collected dynamic-pattern warnings.
func (s *Service) Warnings() *analysis.WarningList { return s.warnings }

// Rebuild runs the two-phase pipeline over the whole project.
func (s *Service) Rebuild(ctx context.Context, useCache bool) (analysis.ProjectResult, error) {
	files, err := walker.PythonFiles(s.root, s.cfg.ExcludeDirs)
	if err != nil {
		return analysis.ProjectResult{}, fmt.Errorf("enumerate %s: %w", s.root, err)
	}

	// Files that vanished since the last build must stop contributing
	// definitions and edges before re-resolution.
	current := make(map[string]bool, len(files))
	for _, path := range files {
		current[path] = true
	}
	for _, path := range s.builder.Files() {
		if !current[path] {
			s.RemoveFiles([]string{path})
		}
	}

	s.warnings.Clear()
	sc := s.cache
	if !useCache {
		sc = nil
	}

	result := s.analyzer.ExtractProject(ctx, files, s.builder, sc)
	analysis.PopulateGraph(s.graph, s.builder)
	return result, nil
}

// ReanalyzeFiles re-extracts changed files and refreshes their edges.
func (s *Service) ReanalyzeFiles(paths []string) {
	for _, path := range paths {
		s.warnings.ClearFile(path)
		s.cache.Invalidate(path)

		data, err := s.analyzer.ExtractFileSymbols(path)
		if err != nil || !data.IsValid {
			// The previous extraction no longer describes the file; its
			// old definitions must stop winning resolution.
			s.builder.RemoveFileData(path)
			s.graph.MarkUnparseable(path)
			continue
		}
		s.builder.AddFileData(data)
		_ = s.cache.Set(path, data)
		s.graph.ReplaceFile(path, s.builder.BuildRelationshipsForFile(path))
	}
}

// RemoveFiles drops deleted files from the builder, graph, and cache.
func (s *Service) RemoveFiles(paths []string) {
	for _, path := range paths {
		s.builder.RemoveFileData(path)
		s.graph.RemoveFile(path)
		s.cache.Invalidate(path)
		s.warnings.ClearFile(path)
	}
}

// BuildGraph analyzes the project and populates the relationship graph.
func (s *Service) BuildGraph(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input BuildGraphInput,
) (*mcp.CallToolResult, BuildGraphOutput, error) {
	if input.ProjectRoot != "" && input.ProjectRoot != s.root {
		return nil, BuildGraphOutput{
			Status:  "failed",
			Message: fmt.Sprintf("server is rooted at %s", s.root),
		}, fmt.Errorf("project root mismatch: %s", input.ProjectRoot)
	}

	result, err := s.Rebuild(ctx, !input.NoCache)
	if err != nil {
		return nil, BuildGraphOutput{Status: "failed", Message: err.Error()}, nil
	}

	return nil, BuildGraphOutput{
		FilesAnalyzed: result.Succeeded,
		FilesFailed:   result.Failed,
		FilesSkipped:  result.Skipped,
		Relationships: s.graph.RelationshipCount(),
		Status:        "completed",
	}, nil
}

// GetFileContext returns definitions, edges, and warnings for one file,
// plus a rendered context block.
func (s *Service) GetFileContext(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input FileContextInput,
) (*mcp.CallToolResult, FileContextOutput, error) {
	if input.Path == "" {
		return nil, FileContextOutput{}, fmt.Errorf("path is required")
	}

	out := FileContextOutput{Path: input.Path}

	if meta, ok := s.graph.Metadata(input.Path); ok {
		out.Unparseable = meta.Unparseable
	}

	if data, ok := s.builder.FileData(input.Path); ok {
		for _, def := range data.Definitions {
			out.Definitions = append(out.Definitions, DefinitionInfo{
				Name:        def.Name,
				Kind:        string(def.Kind),
				Line:        def.LineStart,
				Signature:   def.Signature,
				Docstring:   def.Docstring,
				ParentClass: def.ParentClass,
			})
		}
	}

	for _, rel := range s.graph.Dependencies(input.Path) {
		out.Dependencies = append(out.Dependencies, RelationshipInfo{
			File:   rel.TargetFile,
			Type:   string(rel.Type),
			Line:   rel.LineNumber,
			Symbol: rel.TargetSymbol,
		})
	}
	for _, rel := range s.graph.Dependents(input.Path) {
		out.Dependents = append(out.Dependents, RelationshipInfo{
			File:   rel.SourceFile,
			Type:   string(rel.Type),
			Line:   rel.LineNumber,
			Symbol: rel.TargetSymbol,
		})
	}
	for _, w := range s.warnings.ForFile(input.Path) {
		out.Warnings = append(out.Warnings, WarningInfo{
			Pattern:  string(w.PatternType),
			Line:     w.LineNumber,
			Severity: string(w.Severity),
			Message:  w.Message,
		})
	}

	out.Rendered = renderFileContext(out)
	return nil, out, nil
}

// FindSymbol locates the definition sites of a name.
func (s *Service) FindSymbol(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input FindSymbolInput,
) (*mcp.CallToolResult, FindSymbolOutput, error) {
	if input.Name == "" {
		return nil, FindSymbolOutput{}, fmt.Errorf("name is required")
	}

	var out FindSymbolOutput
	files := make(map[string]bool)
	for _, entry := range s.builder.AllDefinitionsFor(input.Name) {
		files[entry.File] = true
		out.Matches = append(out.Matches, SymbolMatch{
			File:        entry.File,
			Name:        entry.Definition.Name,
			Kind:        string(entry.Definition.Kind),
			Line:        entry.Definition.LineStart,
			Signature:   entry.Definition.Signature,
			ParentClass: entry.Definition.ParentClass,
		})
	}
	out.Ambiguous = len(files) > 1
	return nil, out, nil
}

// GraphExport returns the whole graph as JSON or a Mermaid flowchart.
func (s *Service) GraphExport(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input GraphExportInput,
) (*mcp.CallToolResult, GraphExportOutput, error) {
	out := GraphExportOutput{
		Files:         s.graph.FileCount(),
		Relationships: s.graph.RelationshipCount(),
	}

	switch input.Format {
	case "", "json":
		out.Graph = s.graph.Export()
	case "mermaid":
		out.Mermaid = s.graph.Mermaid()
	default:
		return nil, out, fmt.Errorf("unknown format %q", input.Format)
	}
	return nil, out, nil
}

// CacheStats reports symbol cache effectiveness.
func (s *Service) CacheStats(
	_ context.Context,
	_ *mcp.CallToolRequest,
	_ CacheStatsInput,
) (*mcp.CallToolResult, CacheStatsOutput, error) {
	stats := s.cache.Statistics()
	return nil, CacheStatsOutput{
		Entries:  stats.Entries,
		Capacity: stats.Capacity,
		Hits:     stats.Hits,
		Misses:   stats.Misses,
		HitRate:  stats.HitRate,
	}, nil
}
