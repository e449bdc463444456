package analysis

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/quarry-dev/quarry/internal/cache"
	"github.com/quarry-dev/quarry/internal/graph"
	"github.com/quarry-dev/quarry/internal/pysrc"
)

// ProjectResult summarizes a batch run over a file list.
type ProjectResult struct {
	Succeeded int
	Failed    int
	Skipped   int
}

// AnalyzeProject runs the single-phase path over files in order. A
// cancelled context stops submitting further files; already analyzed
// files remain valid in the graph.
func (a *Analyzer) AnalyzeProject(ctx context.Context, files []string) ProjectResult {
	var result ProjectResult
	for _, path := range files {
		if ctx.Err() != nil {
			break
		}
		if a.AnalyzeFile(path) {
			result.Succeeded++
		} else {
			result.Failed++
		}
	}
	return result
}

// ExtractProject runs the extraction phase over files, consulting the
// cache (nil disables it) and feeding valid results into the builder.
// Passing a populated builder extends it incrementally. Extraction is
// parallel at file granularity; each file's tree is independent and the
// builder serializes its own mutation.
func (a *Analyzer) ExtractProject(ctx context.Context, files []string, b *graph.Builder, sc *cache.SymbolCache) ProjectResult {
	var (
		mu     sync.Mutex
		result ProjectResult
	)

	workers := a.cfg.Workers
	if workers < 1 {
		workers = 1
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, path := range files {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			outcome := a.extractOne(path, b, sc)
			mu.Lock()
			switch outcome {
			case outcomeOK:
				result.Succeeded++
			case outcomeSkipped:
				result.Skipped++
			default:
				result.Failed++
			}
			mu.Unlock()
			return nil
		})
	}

	// Workers only record outcomes; no error surfaces here.
	_ = g.Wait()
	return result
}

type extractOutcome int

const (
	outcomeOK extractOutcome = iota
	outcomeFailed
	outcomeSkipped
)

func (a *Analyzer) extractOne(path string, b *graph.Builder, sc *cache.SymbolCache) extractOutcome {
	if sc != nil {
		if data, ok := sc.Get(path); ok {
			b.AddFileData(data)
			return outcomeOK
		}
	}

	data, err := a.ExtractFileSymbols(path)
	if err != nil {
		if errors.Is(err, pysrc.ErrTooLarge) {
			return outcomeSkipped
		}
		return outcomeFailed
	}
	if !data.IsValid {
		return outcomeFailed
	}

	b.AddFileData(data)
	if sc != nil {
		// A failed fingerprint capture only costs the cache entry.
		_ = sc.Set(path, data)
	}
	return outcomeOK
}

// PopulateGraph replaces each extracted file's relationships in g with
// the resolved set, grouped per file so replacement stays atomic per
// source. Files with no outgoing references still get a metadata
// record; a leaf module is part of the graph even with zero edges.
func PopulateGraph(g *graph.Graph, b *graph.Builder) {
	bySource := make(map[string][]graph.Relationship)
	for _, rel := range b.BuildRelationships() {
		bySource[rel.SourceFile] = append(bySource[rel.SourceFile], rel)
	}
	for _, source := range b.Files() {
		g.ReplaceFile(source, bySource[source])
	}
}
