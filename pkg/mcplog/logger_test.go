package mcplog

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
)

func readEntries(t *testing.T, path string) []Entry {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	var got []Entry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		var e Entry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			t.Fatalf("torn or invalid line %q: %v", line, err)
		}
		got = append(got, e)
	}
	return got
}

func TestSanitizeParams(t *testing.T) {
	tests := []struct {
		name     string
		input    map[string]any
		wantKeys []string
		wantSkip []string
	}{
		{
			name:  "nil map returns empty",
			input: nil,
		},
		{
			name:     "short string passes through",
			input:    map[string]any{"specifier": "./lib.js"},
			wantKeys: []string{"specifier"},
		},
		{
			name:     "source replaced with length",
			input:    map[string]any{"code": strings.Repeat("x", 200)},
			wantKeys: []string{"code_len"},
			wantSkip: []string{"code"},
		},
		{
			name:     "bool and nil pass through",
			input:    map[string]any{"callMode": true, "nodeEnv": nil},
			wantKeys: []string{"callMode", "nodeEnv"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out := SanitizeParams(tc.input)
			if out == nil {
				t.Fatal("expected non-nil map")
			}
			for _, k := range tc.wantKeys {
				if _, ok := out[k]; !ok {
					t.Errorf("expected key %q in output", k)
				}
			}
			for _, k := range tc.wantSkip {
				if _, ok := out[k]; ok {
					t.Errorf("unexpected key %q in output", k)
				}
			}
		})
	}

	if got := SanitizeParams(map[string]any{"code": strings.Repeat("x", 200)})["code_len"]; got != 200 {
		t.Errorf("code_len = %v, want 200", got)
	}
}

func TestResponseBytes(t *testing.T) {
	if got := ResponseBytes(nil); got != 0 {
		t.Errorf("nil result: got %d, want 0", got)
	}
	if got := ResponseBytes(mcp.NewToolResultText(`{"exports":[]}`)); got == 0 {
		t.Error("text result: got 0")
	}
}

func TestRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calls.jsonl")
	logger, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	logger.now = func() time.Time { return start.Add(42 * time.Millisecond) }

	args := map[string]any{"code": strings.Repeat("a", 100), "callMode": true}
	if err := logger.Record("analyze_source", args, start, mcp.NewToolResultText("{}"), nil); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := logger.Record("analyze_file", nil, start, mcp.NewToolResultError("no such file"), nil); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := logger.Record("resolve_exports", nil, start, nil, errors.New("boom")); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	got := readEntries(t, path)
	if len(got) != 3 {
		t.Fatalf("got %d lines, want 3", len(got))
	}
	if got[0].Ts != "2026-01-02T03:04:05Z" || got[0].DurationMs != 42 {
		t.Errorf("entry 0: ts=%q duration=%d", got[0].Ts, got[0].DurationMs)
	}
	if _, ok := got[0].Params["code_len"]; !ok {
		t.Errorf("entry 0: source not sanitized: %v", got[0].Params)
	}
	if got[0].ToolError || !got[1].ToolError {
		t.Errorf("tool_error flags: %v %v", got[0].ToolError, got[1].ToolError)
	}
	if got[2].Error == nil || *got[2].Error != "boom" {
		t.Errorf("entry 2: error = %v", got[2].Error)
	}
}

func TestLoggerConcurrency(t *testing.T) {
	path := filepath.Join(t.TempDir(), "concurrent.jsonl")
	logger, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	const goroutines = 50
	const writesEach = 10

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < writesEach; j++ {
				_ = logger.Write(Entry{Ts: time.Now().UTC().Format(time.RFC3339), Tool: "index_stats"})
			}
		}()
	}
	wg.Wait()

	if err := logger.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if got := len(readEntries(t, path)); got != goroutines*writesEach {
		t.Errorf("got %d lines, want %d", got, goroutines*writesEach)
	}
}

func TestOpenCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deep", "mcp.jsonl")

	logger, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer logger.Close()

	if _, err := os.Stat(path); err != nil {
		t.Errorf("log file not created: %v", err)
	}
}

func TestNilLogger(t *testing.T) {
	logger, err := Open("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if logger != nil {
		t.Fatal("expected nil logger for empty path")
	}
	if err := logger.Write(Entry{Tool: "x"}); err != nil {
		t.Errorf("Write on nil logger: %v", err)
	}
	if err := logger.Record("x", nil, time.Now(), nil, nil); err != nil {
		t.Errorf("Record on nil logger: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("Close on nil logger: %v", err)
	}
}
