// Package mcp exposes CommonJS export analysis as MCP tools for coding
// agents.
package mcp

import (
	"log/slog"

	"github.com/mark3labs/mcp-go/server"

	"github.com/gnana997/cjslexer/pkg/cjs"
	"github.com/gnana997/cjslexer/pkg/extractor"
	"github.com/gnana997/cjslexer/pkg/indexer"
	"github.com/gnana997/cjslexer/pkg/mcplog"
	"github.com/gnana997/cjslexer/pkg/parser"
)

const serverVersion = "0.1.0-dev"

// Config wires a Server to the analysis stack.
type Config struct {
	Extractor *extractor.Extractor
	Analyzer  *indexer.FileAnalyzer

	// Parser is optional and only feeds index_stats.
	Parser *parser.ParserManager

	// Watcher is optional and only feeds index_stats.
	Watcher *indexer.FileWatcher

	// Options are the defaults for calls that omit nodeEnv or callMode.
	Options cjs.Options

	// Root resolves relative paths in tool arguments. Empty means the
	// process working directory.
	Root string

	// CallLog records every tool call when non-nil.
	CallLog *mcplog.Logger
	Logger  *slog.Logger
}

// Server implements the MCP server, exposing the analysis tools.
type Server struct {
	mcpServer *server.MCPServer
	cfg       Config
	logger    *slog.Logger
}

// NewServer creates an MCP server over cfg.
func NewServer(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Options.NodeEnv == "" {
		cfg.Options.NodeEnv = cjs.DefaultNodeEnv
	}
	s := &Server{cfg: cfg, logger: cfg.Logger}

	opts := []server.ServerOption{
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	}
	if cfg.CallLog != nil {
		opts = append(opts, server.WithToolHandlerMiddleware(s.loggingMiddleware()))
	}
	s.mcpServer = server.NewMCPServer("cjslexer", serverVersion, opts...)
	s.mcpServer.AddTools(s.tools()...)

	return s
}

// tools pairs every tool definition with its handler.
func (s *Server) tools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: analyzeSourceTool(), Handler: s.handleAnalyzeSource},
		{Tool: analyzeFileTool(), Handler: s.handleAnalyzeFile},
		{Tool: resolveExportsTool(), Handler: s.handleResolveExports},
		{Tool: indexStatsTool(), Handler: s.handleIndexStats},
	}
}

// MCPServer returns the underlying server, for in-process transports.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}
