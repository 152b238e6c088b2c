// Package mcplog appends one JSON line per MCP tool call to a log file, so
// agent sessions can be audited and analysis latency tracked over time.
package mcplog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
)

// Entry is one JSONL line.
type Entry struct {
	Ts            string         `json:"ts"`
	Tool          string         `json:"tool"`
	Params        map[string]any `json:"params"`
	DurationMs    int64          `json:"duration_ms"`
	ResponseBytes int            `json:"response_bytes"`

	// ToolError is set when the tool reported a user-facing error result.
	ToolError bool `json:"tool_error"`

	// Error is a protocol-level handler error.
	Error *string `json:"error"`
}

// Logger appends entries to a file. It is safe for concurrent use, and a
// nil *Logger discards everything.
type Logger struct {
	mu  sync.Mutex
	f   *os.File
	enc *json.Encoder
	now func() time.Time
}

// Open opens (or creates) the file at path for appending, creating parent
// directories. An empty path returns nil, nil: logging is disabled.
func Open(path string) (*Logger, error) {
	if path == "" {
		return nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("mcplog: create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("mcplog: open log file: %w", err)
	}
	return &Logger{f: f, enc: json.NewEncoder(f), now: time.Now}, nil
}

// Now returns the logger's clock reading, used to time a call.
func (l *Logger) Now() time.Time {
	if l == nil || l.now == nil {
		return time.Now()
	}
	return l.now()
}

// Write appends a single entry.
func (l *Logger) Write(entry Entry) error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.enc.Encode(entry)
}

// Record builds the entry for a finished call that started at start and
// writes it.
func (l *Logger) Record(tool string, args map[string]any, start time.Time, result *mcp.CallToolResult, callErr error) error {
	if l == nil {
		return nil
	}
	entry := Entry{
		Ts:            start.UTC().Format(time.RFC3339),
		Tool:          tool,
		Params:        SanitizeParams(args),
		DurationMs:    l.Now().Sub(start).Milliseconds(),
		ResponseBytes: ResponseBytes(result),
		ToolError:     result != nil && result.IsError,
	}
	if callErr != nil {
		msg := callErr.Error()
		entry.Error = &msg
	}
	return l.Write(entry)
}

// Close closes the log file.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.f.Close()
}

// shortStringMax bounds string parameters copied into the log.
const shortStringMax = 64

// SanitizeParams returns a copy of args safe for logging. Strings longer
// than 64 bytes, typically module source passed as "code", are replaced by
// a "<key>_len" entry holding their length.
func SanitizeParams(args map[string]any) map[string]any {
	out := make(map[string]any, len(args))
	for k, v := range args {
		if s, ok := v.(string); ok && len(s) > shortStringMax {
			out[k+"_len"] = len(s)
		} else {
			out[k] = v
		}
	}
	return out
}

// ResponseBytes returns the serialized length of a result's content, or 0
// for a nil result.
func ResponseBytes(result *mcp.CallToolResult) int {
	if result == nil {
		return 0
	}
	b, err := json.Marshal(result.Content)
	if err != nil {
		return 0
	}
	return len(b)
}
