package mcp

import "github.com/mark3labs/mcp-go/mcp"

func withAnalysisOptions() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("nodeEnv",
			mcp.Description(`Value compared against process.env.NODE_ENV guards (default "production")`),
		),
		mcp.WithBoolean("callMode",
			mcp.Description("Also analyze inside self-invoking function wrappers such as UMD bundles"),
		),
	}
}

func analyzeSourceTool() mcp.Tool {
	opts := []mcp.ToolOption{
		mcp.WithDescription("Detect the named exports and re-exported module specifiers of CommonJS source text without executing it. Returns {exports, reexports}."),
		mcp.WithString("code",
			mcp.Required(),
			mcp.Description("Module source text"),
		),
		mcp.WithString("specifier",
			mcp.Description(`Name used in syntax errors; its extension selects the grammar (default "input.js")`),
		),
	}
	return mcp.NewTool("analyze_source", append(opts, withAnalysisOptions()...)...)
}

func analyzeFileTool() mcp.Tool {
	opts := []mcp.ToolOption{
		mcp.WithDescription("Analyze a file on disk. Returns its exports, re-exports, literal require calls and module format (commonjs, esm or mixed). Results are cached until the file changes."),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("File path, absolute or relative to the workspace root"),
		),
	}
	return mcp.NewTool("analyze_file", append(opts, withAnalysisOptions()...)...)
}

func resolveExportsTool() mcp.Tool {
	opts := []mcp.ToolOption{
		mcp.WithDescription("Follow re-exports from a file through relative requires and return the flattened export names, the files visited, bare package specifiers left unfollowed and unresolvable requires."),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Entry file path, absolute or relative to the workspace root"),
		),
	}
	return mcp.NewTool("resolve_exports", append(opts, withAnalysisOptions()...)...)
}

func indexStatsTool() mcp.Tool {
	return mcp.NewTool("index_stats",
		mcp.WithDescription("Report export index, source cache, parser and file watcher statistics."),
	)
}
