package indexer

import (
	"encoding/json"
	"time"

	"github.com/gnana997/cjslexer/pkg/cjs"
	"github.com/gnana997/cjslexer/pkg/extractor"
	"github.com/gnana997/cjslexer/pkg/parser/queries"
)

// FileExports is the analysis of one file as cached by the ExportIndex.
type FileExports struct {
	FilePath string         `json:"filePath"`
	Language string         `json:"language"`
	Format   queries.Format `json:"format"`

	Exports   []string             `json:"exports"`
	Reexports []string             `json:"reexports"`
	Requires  []queries.Dependency `json:"requires"`

	// ContentHash and Options identify what was analyzed. An entry is only
	// reused for the same content under the same options.
	ContentHash string      `json:"contentHash"`
	Options     cjs.Options `json:"options"`

	// Timestamp when the file was analyzed (Unix milliseconds)
	Timestamp  int64   `json:"timestamp"`
	DurationMs float64 `json:"durationMs"`
}

// NewFileExports wraps an extraction result for the index.
func NewFileExports(res *extractor.PerFileResult, opts cjs.Options) *FileExports {
	return &FileExports{
		FilePath:    res.FilePath,
		Language:    res.Language,
		Format:      res.Format,
		Exports:     res.Exports,
		Reexports:   res.Reexports,
		Requires:    res.Requires,
		ContentHash: res.ContentHash,
		Options:     opts,
		Timestamp:   time.Now().UnixMilli(),
		DurationMs:  res.DurationMs,
	}
}

// ExportIndexConfig configures the export index.
type ExportIndexConfig struct {
	// MaxCachedFiles is the maximum number of files to keep in the LRU cache.
	// When the cache is full, least recently used files are evicted.
	// Default: 10000 files
	MaxCachedFiles int

	// Debug enables verbose logging
	Debug bool
}

// DefaultExportIndexConfig returns the default configuration.
func DefaultExportIndexConfig() ExportIndexConfig {
	return ExportIndexConfig{
		MaxCachedFiles: 10000,
	}
}

// ExportIndexStats provides statistics about the index state.
type ExportIndexStats struct {
	// IndexedFiles counts every analysis stored, including replaced and
	// evicted entries.
	IndexedFiles int `json:"indexedFiles"`

	CachedFiles    int `json:"cachedFiles"`
	DirtyFiles     int `json:"dirtyFiles"`
	TotalExports   int `json:"totalExports"`
	TotalReexports int `json:"totalReexports"`

	CacheHits    int64   `json:"cacheHits"`
	CacheMisses  int64   `json:"cacheMisses"`
	CacheHitRate float64 `json:"cacheHitRate"`
	Evictions    int64   `json:"evictions"`

	// AverageIndexTimeMs is the mean analysis time of stored entries.
	AverageIndexTimeMs float64 `json:"averageIndexTimeMs"`
}

// ScanOptions configures workspace scanning behavior.
type ScanOptions struct {
	// Include patterns (doublestar syntax, relative to the root).
	// If empty, every file with a supported extension is analyzed.
	Include []string

	// Exclude patterns. A matching directory is not descended.
	Exclude []string

	// MaxDepth limits directory traversal depth
	// 0 = unlimited (default)
	MaxDepth int

	// Workers overrides the analysis worker count (0 = auto).
	Workers int

	// Options are passed to every analysis.
	Options cjs.Options
}

// DefaultScanOptions returns the scan options for a CommonJS package.
func DefaultScanOptions() ScanOptions {
	return ScanOptions{
		Include: []string{
			"**/*.js",
			"**/*.cjs",
		},
		Exclude: []string{
			"**/node_modules/**",
			"**/.git/**",
		},
		Options: cjs.DefaultOptions(),
	}
}

// ScanStats contains statistics about a workspace scan.
type ScanStats struct {
	FilesDiscovered int `json:"filesDiscovered"`

	// FilesIndexed is the number of files analyzed or served from the index.
	FilesIndexed int `json:"filesIndexed"`
	FilesFailed  int `json:"filesFailed"`

	// FilesCached is the number of FilesIndexed whose content and options
	// were unchanged since their last analysis.
	FilesCached int `json:"filesCached"`

	ExportsFound   int `json:"exportsFound"`
	ReexportsFound int `json:"reexportsFound"`

	// FormatCounts counts indexed files per module format.
	FormatCounts map[queries.Format]int `json:"formatCounts"`

	TotalTimeMs       int64   `json:"totalTimeMs"`
	DiscoveryTimeMs   int64   `json:"discoveryTimeMs"`
	IndexingTimeMs    int64   `json:"indexingTimeMs"`
	AverageFileTimeMs float64 `json:"averageFileTimeMs"`
	FilesPerSecond    float64 `json:"filesPerSecond"`
	WorkerCount       int     `json:"workerCount"`

	// SuccessRate is the fraction of files successfully indexed (0.0 - 1.0)
	SuccessRate float64 `json:"successRate"`

	Errors []FileError `json:"errors"`

	// Cancelled indicates the context ended before every file was processed
	Cancelled bool `json:"cancelled"`

	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
}

// FileError represents an error that occurred while processing a file.
type FileError struct {
	FilePath string `json:"filePath"`
	Error    error  `json:"-"`
}

// ProgressCallback is called after each processed file.
//
// Parameters:
//   - indexed: Number of files indexed so far
//   - total: Total number of files to index
//   - currentFile: Path of the file just indexed
type ProgressCallback func(indexed, total int, currentFile string)

// WatchOptions configures file watching behavior.
type WatchOptions struct {
	// DebounceMs is the debounce delay in milliseconds
	// Multiple rapid changes are grouped into a single reanalysis
	// Default: 200ms
	DebounceMs int

	// IgnorePatterns are doublestar patterns, matched against the path
	// relative to the watched root. Matching directories are not watched.
	IgnorePatterns []string

	// Include restricts reanalysis to matching files. Empty means every
	// file with a supported extension.
	Include []string

	// Options are passed to every reanalysis.
	Options cjs.Options

	// OnChange is called after a file is reanalyzed or removed. It runs on
	// a timer goroutine and must not block.
	OnChange func(WatchEvent)
}

// DefaultWatchOptions returns recommended watch options.
func DefaultWatchOptions() WatchOptions {
	return WatchOptions{
		DebounceMs: 200,
		IgnorePatterns: []string{
			"**/*.swp",
			"**/*.tmp",
			"**/*~",
			"**/.git/**",
			"**/node_modules/**",
		},
		Options: cjs.DefaultOptions(),
	}
}

// WatchEvent describes one processed file system change.
type WatchEvent struct {
	// FilePath is the absolute path to the changed file
	FilePath string

	// Op is "analyze" or "remove".
	Op string

	// Exports is the new analysis; nil for removals and failures.
	Exports *FileExports

	// Err is set when reanalysis failed.
	Err error

	Timestamp time.Time
}

const (
	WatchOpAnalyze = "analyze"
	WatchOpRemove  = "remove"
)

// MarshalJSON renders Error as its message.
func (fe FileError) MarshalJSON() ([]byte, error) {
	msg := ""
	if fe.Error != nil {
		msg = fe.Error.Error()
	}
	return json.Marshal(struct {
		FilePath string `json:"filePath"`
		Error    string `json:"error"`
	}{fe.FilePath, msg})
}
