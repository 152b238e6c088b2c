package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// loggingMiddleware records every tool call in the call log. Write
// failures are logged and never change the tool result.
func (s *Server) loggingMiddleware() server.ToolHandlerMiddleware {
	return func(next server.ToolHandlerFunc) server.ToolHandlerFunc {
		return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			start := s.cfg.CallLog.Now()
			result, err := next(ctx, req)

			if werr := s.cfg.CallLog.Record(req.Params.Name, req.GetArguments(), start, result, err); werr != nil {
				s.logger.Warn("Failed to write call log", "tool", req.Params.Name, "error", werr)
			}
			return result, err
		}
	}
}
