package graph

import (
	"sort"
	"sync"
	"time"
)

// Graph stores relationship edges plus per-file analysis metadata.
// Edges are indexed by source file for dependency queries and by target
// file for dependents queries. Thread-safe via sync.RWMutex; re-analysis
// replaces a file's edges under a single writer lock so readers never
// observe a half-removed, half-inserted edge set.
type Graph struct {
	mu       sync.RWMutex
	bySource map[string][]Relationship
	byTarget map[string][]Relationship
	meta     map[string]FileMetadata
}

// New returns an empty Graph.
func New() *Graph {
	return &Graph{
		bySource: make(map[string][]Relationship),
		byTarget: make(map[string][]Relationship),
		meta:     make(map[string]FileMetadata),
	}
}

// ReplaceFile atomically replaces every relationship sourced from path
// with rels and records fresh metadata. No stale edges survive a
// re-analysis.
func (g *Graph) ReplaceFile(path string, rels []Relationship) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.removeSourceLocked(path)

	if len(rels) > 0 {
		stored := make([]Relationship, len(rels))
		copy(stored, rels)
		g.bySource[path] = stored
		for _, r := range stored {
			g.byTarget[r.TargetFile] = append(g.byTarget[r.TargetFile], r)
		}
	}

	g.meta[path] = FileMetadata{
		Unparseable:       false,
		LastAnalyzed:      time.Now(),
		RelationshipCount: len(rels),
	}
}

// MarkUnparseable records that path could not be read or parsed. Any
// previously contributed edges are removed.
func (g *Graph) MarkUnparseable(path string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.removeSourceLocked(path)
	g.meta[path] = FileMetadata{
		Unparseable:  true,
		LastAnalyzed: time.Now(),
	}
}

// RemoveFile drops path's edges and metadata entirely, e.g. when the
// file is deleted from disk.
func (g *Graph) RemoveFile(path string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.removeSourceLocked(path)
	delete(g.meta, path)
}

// removeSourceLocked strips every edge sourced from path from both
// indexes. Caller holds the write lock.
func (g *Graph) removeSourceLocked(path string) {
	old, ok := g.bySource[path]
	if !ok {
		return
	}
	delete(g.bySource, path)

	for _, r := range old {
		bucket := g.byTarget[r.TargetFile]
		kept := bucket[:0]
		for _, t := range bucket {
			if t.SourceFile != path {
				kept = append(kept, t)
			}
		}
		if len(kept) == 0 {
			delete(g.byTarget, r.TargetFile)
		} else {
			g.byTarget[r.TargetFile] = kept
		}
	}
}

// Dependencies returns a copy of the edges sourced from path.
func (g *Graph) Dependencies(path string) []Relationship {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]Relationship(nil), g.bySource[path]...)
}

// Dependents returns a copy of the edges targeting path.
func (g *Graph) Dependents(path string) []Relationship {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]Relationship(nil), g.byTarget[path]...)
}

// Metadata returns the metadata record for path, if any.
func (g *Graph) Metadata(path string) (FileMetadata, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	m, ok := g.meta[path]
	return m, ok
}

// FileCount returns the number of files with metadata records.
func (g *Graph) FileCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.meta)
}

// RelationshipCount returns the total number of edges.
func (g *Graph) RelationshipCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n := 0
	for _, rels := range g.bySource {
		n += len(rels)
	}
	return n
}

// AllRelationships returns every edge ordered by (source, line, target)
// for deterministic output.
func (g *Graph) AllRelationships() []Relationship {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []Relationship
	for _, rels := range g.bySource {
		out = append(out, rels...)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SourceFile != out[j].SourceFile {
			return out[i].SourceFile < out[j].SourceFile
		}
		if out[i].LineNumber != out[j].LineNumber {
			return out[i].LineNumber < out[j].LineNumber
		}
		return out[i].TargetFile < out[j].TargetFile
	})
	return out
}
