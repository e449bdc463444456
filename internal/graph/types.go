package graph

import (
	"strings"
	"time"
)

// RelationshipType classifies a directed edge between files/symbols.
type RelationshipType string

const (
	RelImport           RelationshipType = "import"
	RelFunctionCall     RelationshipType = "function_call"
	RelClassInheritance RelationshipType = "class_inheritance"
)

// Relationship is a directed edge from a source file to a target. The
// target is either a real file path or a bracketed marker such as
// <stdlib:os>. Relationships are produced only by the Builder or by a
// detector's Detect path; the graph never constructs them itself.
type Relationship struct {
	SourceFile   string            `json:"sourceFile"`
	TargetFile   string            `json:"targetFile"`
	Type         RelationshipType  `json:"type"`
	LineNumber   int               `json:"lineNumber"`
	SourceSymbol string            `json:"sourceSymbol,omitempty"`
	TargetSymbol string            `json:"targetSymbol,omitempty"`
	TargetLine   int               `json:"targetLine,omitempty"` // definition start line, resolved cross-file
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// FileMetadata is the per-file analysis record kept by the graph.
type FileMetadata struct {
	Unparseable       bool      `json:"unparseable"`
	LastAnalyzed      time.Time `json:"lastAnalyzed"`
	RelationshipCount int       `json:"relationshipCount"`
}

// --- Bracketed target markers ---
//
// Unresolvable targets are encoded as sentinel strings rather than
// errors so downstream consumers always get a well-formed edge. The
// bracketed format is part of the export shape; these helpers are the
// only place it is constructed.

// StdlibTarget marks an import of a Python standard-library module.
func StdlibTarget(module string) string {
	return "<stdlib:" + module + ">"
}

// ModuleTarget marks an import of an external (non-project) module.
func ModuleTarget(module string) string {
	return "<module:" + module + ">"
}

// UnresolvedTarget marks a reference with no matching definition.
func UnresolvedTarget(name string) string {
	return "<unresolved:" + name + ">"
}

// IsMarkerTarget reports whether target is a bracketed marker rather
// than a real file path.
func IsMarkerTarget(target string) bool {
	return strings.HasPrefix(target, "<") && strings.HasSuffix(target, ">")
}
