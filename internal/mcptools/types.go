package mcptools

// --- MCP tool types for the analysis server mode (--serve-mcp) ---
// These tools expose the relationship graph to MCP clients so an agent
// can query code structure instead of re-reading whole files.

// BuildGraphInput is the input for the build_graph MCP tool.
type BuildGraphInput struct {
	ProjectRoot string `json:"projectRoot,omitempty" jsonschema:"path to the project to analyze (default: the server's root)"`
	NoCache     bool   `json:"noCache,omitempty" jsonschema:"bypass the symbol cache and re-extract every file"`
}

// BuildGraphOutput is the result of the build_graph MCP tool.
type BuildGraphOutput struct {
	FilesAnalyzed int    `json:"filesAnalyzed"`
	FilesFailed   int    `json:"filesFailed"`
	FilesSkipped  int    `json:"filesSkipped"`
	Relationships int    `json:"relationships"`
	Status        string `json:"status"` // "completed" or "failed"
	Message       string `json:"message,omitempty"`
}

// FileContextInput is the input for the get_file_context MCP tool.
type FileContextInput struct {
	Path string `json:"path" jsonschema:"file path as returned by build_graph"`
}

// DefinitionInfo is one symbol definition in a tool response.
type DefinitionInfo struct {
	Name        string `json:"name"`
	Kind        string `json:"kind"`
	Line        int    `json:"line"`
	Signature   string `json:"signature,omitempty"`
	Docstring   string `json:"docstring,omitempty"`
	ParentClass string `json:"parentClass,omitempty"`
}

// RelationshipInfo is one graph edge in a tool response.
type RelationshipInfo struct {
	File   string `json:"file"`
	Type   string `json:"type"`
	Line   int    `json:"line"`
	Symbol string `json:"symbol,omitempty"`
}

// WarningInfo is one dynamic-pattern warning in a tool response.
type WarningInfo struct {
	Pattern  string `json:"pattern"`
	Line     int    `json:"line"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

// FileContextOutput is the result of the get_file_context MCP tool.
type FileContextOutput struct {
	Path         string             `json:"path"`
	Unparseable  bool               `json:"unparseable,omitempty"`
	Definitions  []DefinitionInfo   `json:"definitions"`
	Dependencies []RelationshipInfo `json:"dependencies"`
	Dependents   []RelationshipInfo `json:"dependents"`
	Warnings     []WarningInfo      `json:"warnings,omitempty"`
	Rendered     string             `json:"rendered"`
}

// FindSymbolInput is the input for the find_symbol MCP tool.
type FindSymbolInput struct {
	Name string `json:"name" jsonschema:"symbol name, optionally dotted; the final component is matched"`
}

// SymbolMatch is one definition site in a find_symbol response.
type SymbolMatch struct {
	File        string `json:"file"`
	Name        string `json:"name"`
	Kind        string `json:"kind"`
	Line        int    `json:"line"`
	Signature   string `json:"signature,omitempty"`
	ParentClass string `json:"parentClass,omitempty"`
}

// FindSymbolOutput is the result of the find_symbol MCP tool. Ambiguous
// is set when more than one file defines the name; matches keep index
// insertion order, so the first entry is the one resolution would pick.
type FindSymbolOutput struct {
	Matches   []SymbolMatch `json:"matches"`
	Ambiguous bool          `json:"ambiguous"`
}

// GraphExportInput is the input for the graph_export MCP tool.
type GraphExportInput struct {
	Format string `json:"format,omitempty" jsonschema:"json (default) or mermaid"`
}

// GraphExportOutput is the result of the graph_export MCP tool. Exactly
// one of Graph or Mermaid is populated, matching the requested format.
type GraphExportOutput struct {
	Files         int    `json:"files"`
	Relationships int    `json:"relationships"`
	Graph         any    `json:"graph,omitempty"`
	Mermaid       string `json:"mermaid,omitempty"`
}

// CacheStatsInput is the input for the cache_stats MCP tool.
type CacheStatsInput struct{}

// CacheStatsOutput is the result of the cache_stats MCP tool.
type CacheStatsOutput struct {
	Entries  int     `json:"entries"`
	Capacity int     `json:"capacity"`
	Hits     int     `json:"hits"`
	Misses   int     `json:"misses"`
	HitRate  float64 `json:"hitRate"`
}
