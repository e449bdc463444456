package graph

import (
	"sort"
	"time"
)

// ExportNode is the per-file entry in the serialized graph view.
type ExportNode struct {
	Path              string    `json:"path"`
	Unparseable       bool      `json:"unparseable"`
	LastAnalyzed      time.Time `json:"lastAnalyzed"`
	RelationshipCount int       `json:"relationshipCount"`
}

// ExportMetadata summarizes the exported graph.
type ExportMetadata struct {
	FileCount         int       `json:"fileCount"`
	RelationshipCount int       `json:"relationshipCount"`
	GeneratedAt       time.Time `json:"generatedAt"`
}

// Export is the serializable {nodes, relationships, metadata} view
// consumed by the outer service layer.
type Export struct {
	Nodes         []ExportNode   `json:"nodes"`
	Relationships []Relationship `json:"relationships"`
	Metadata      ExportMetadata `json:"metadata"`
}

// Export produces the lossless serializable view of the graph. Nodes
// are sorted by path and relationships by (source, line, target).
func (g *Graph) Export() *Export {
	rels := g.AllRelationships()

	g.mu.RLock()
	nodes := make([]ExportNode, 0, len(g.meta))
	for path, m := range g.meta {
		nodes = append(nodes, ExportNode{
			Path:              path,
			Unparseable:       m.Unparseable,
			LastAnalyzed:      m.LastAnalyzed,
			RelationshipCount: m.RelationshipCount,
		})
	}
	g.mu.RUnlock()

	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Path < nodes[j].Path })

	return &Export{
		Nodes:         nodes,
		Relationships: rels,
		Metadata: ExportMetadata{
			FileCount:         len(nodes),
			RelationshipCount: len(rels),
			GeneratedAt:       time.Now(),
		},
	}
}
