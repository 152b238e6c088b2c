package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/gnana997/cjslexer/pkg/cjs"
	"github.com/gnana997/cjslexer/pkg/extractor"
	"github.com/gnana997/cjslexer/pkg/indexer"
	"github.com/gnana997/cjslexer/pkg/parser"
	"github.com/gnana997/cjslexer/pkg/resolve"
	"github.com/gnana997/cjslexer/pkg/util"
)

const defaultSpecifier = "input.js"

// analysisResult is the analyze_source payload.
type analysisResult struct {
	Exports   []string `json:"exports"`
	Reexports []string `json:"reexports"`
}

// fileResult is the analyze_file payload.
type fileResult struct {
	*indexer.FileExports
	Cached bool `json:"cached"`
}

// statsResult is the index_stats payload. Absent components are omitted.
type statsResult struct {
	Index   *indexer.ExportIndexStats `json:"index,omitempty"`
	Sources *util.SourceCacheStats    `json:"sources,omitempty"`
	Parser  *parser.ParserStats       `json:"parser,omitempty"`
	Watcher *indexer.FileWatcherStats `json:"watcher,omitempty"`
}

func (s *Server) handleAnalyzeSource(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	code, err := req.RequireString("code")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	specifier := req.GetString("specifier", defaultSpecifier)
	if specifier == "" {
		specifier = defaultSpecifier
	}

	opts, err := extractor.OptionsFromMap(s.cfg.Options, req.GetArguments(), "code", "specifier")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	res, err := s.cfg.Extractor.Parse(specifier, []byte(code), opts)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(analysisResult{Exports: res.Exports, Reexports: res.Reexports})
}

func (s *Server) handleAnalyzeFile(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, opts, errResult := s.pathAndOptions(req)
	if errResult != nil {
		return errResult, nil
	}

	fe, cached, err := s.cfg.Analyzer.Analyze(path, opts)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(fileResult{FileExports: fe, Cached: cached})
}

func (s *Server) handleResolveExports(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, opts, errResult := s.pathAndOptions(req)
	if errResult != nil {
		return errResult, nil
	}

	res, err := resolve.New(s.cfg.Analyzer, opts, s.logger).Resolve(path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(res)
}

func (s *Server) handleIndexStats(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var out statsResult
	if idx := s.cfg.Analyzer.Index(); idx != nil {
		st := idx.GetStats()
		out.Index = &st
	}
	if src := s.cfg.Analyzer.Sources(); src != nil {
		st := src.Stats()
		out.Sources = &st
	}
	if s.cfg.Parser != nil {
		st := s.cfg.Parser.GetStats()
		out.Parser = &st
	}
	if s.cfg.Watcher != nil {
		st := s.cfg.Watcher.GetStats()
		out.Watcher = &st
	}
	return jsonResult(out)
}

// pathAndOptions reads the required path argument, resolved against the
// root, and the analysis options. A non-nil result is a tool error.
func (s *Server) pathAndOptions(req mcp.CallToolRequest) (string, cjs.Options, *mcp.CallToolResult) {
	path, err := req.RequireString("path")
	if err != nil {
		return "", cjs.Options{}, mcp.NewToolResultError(err.Error())
	}
	if path == "" {
		return "", cjs.Options{}, mcp.NewToolResultError("path must not be empty")
	}
	if !filepath.IsAbs(path) && s.cfg.Root != "" {
		path = filepath.Join(s.cfg.Root, path)
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}

	opts, err := extractor.OptionsFromMap(s.cfg.Options, req.GetArguments(), "path")
	if err != nil {
		return "", cjs.Options{}, mcp.NewToolResultError(err.Error())
	}
	return path, opts, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return mcp.NewToolResultText(string(b)), nil
}
