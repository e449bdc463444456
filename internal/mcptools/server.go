// Package mcptools exposes the analysis pipeline as MCP tools over
// stdio.
package mcptools

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/quarry-dev/quarry/internal/config"
)

// version is set by the linker at build time.
var version = "dev"

// NewServer creates an MCP server with the five analysis tools
// registered: build_graph, get_file_context, find_symbol, graph_export,
// and cache_stats.
func NewServer(projectRoot string, cfg *config.Config) *mcp.Server {
	svc := NewService(projectRoot, cfg)

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "quarry",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "build_graph",
		Description: "Analyze the project's Python files and build the cross-file relationship graph. Run this before the query tools.",
	}, svc.BuildGraph)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_file_context",
		Description: "Get one file's definitions, dependencies, dependents, and dynamic-pattern warnings, with a rendered context block.",
	}, svc.GetFileContext)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "find_symbol",
		Description: "Find where a symbol is defined. Reports ambiguity when multiple files define the same name.",
	}, svc.FindSymbol)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "graph_export",
		Description: "Export the relationship graph as JSON or a Mermaid flowchart.",
	}, svc.GraphExport)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "cache_stats",
		Description: "Report symbol cache size and hit rate.",
	}, svc.CacheStats)

	return server
}

// RunStdio runs the MCP server on stdio transport, blocking until stdin
// is closed or the context is cancelled.
func RunStdio(ctx context.Context, server *mcp.Server) error {
	return server.Run(ctx, &mcp.StdioTransport{})
}
