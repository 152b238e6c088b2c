package indexer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/gnana997/cjslexer/pkg/parser"
	"github.com/gnana997/cjslexer/pkg/parser/queries"
)

// WorkspaceScanner analyzes every matching file under a root in parallel.
//
// **Two-Phase Pipeline:**
//  1. File Discovery - Walk the tree and match include/exclude patterns
//  2. Parallel Analysis - Analyze through the FileAnalyzer on a worker pool;
//     results land in the analyzer's ExportIndex
//
// **Usage:**
//
//	scanner := NewWorkspaceScanner(analyzer, logger)
//	stats, err := scanner.ScanWorkspace(ctx,
//	    "/path/to/package",
//	    DefaultScanOptions(),
//	    func(indexed, total int, file string) {
//	        fmt.Printf("Progress: %d/%d - %s\n", indexed, total, file)
//	    },
//	)
type WorkspaceScanner struct {
	analyzer *FileAnalyzer
	logger   *slog.Logger
}

// NewWorkspaceScanner creates a new workspace scanner.
func NewWorkspaceScanner(analyzer *FileAnalyzer, logger *slog.Logger) *WorkspaceScanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkspaceScanner{
		analyzer: analyzer,
		logger:   logger,
	}
}

// ScanWorkspace analyzes every file under rootPath that options select.
// Per-file failures are collected in ScanStats.Errors; an error is only
// returned for invalid patterns or an unreadable root. Cancelling ctx
// stops the scan and returns the partial stats with Cancelled set.
func (ws *WorkspaceScanner) ScanWorkspace(
	ctx context.Context,
	rootPath string,
	options ScanOptions,
	progressCallback ProgressCallback,
) (*ScanStats, error) {
	startTime := time.Now()
	stats := &ScanStats{
		StartTime:    startTime,
		FormatCounts: make(map[queries.Format]int),
		Errors:       make([]FileError, 0),
	}

	ws.logger.Info("Starting workspace scan", "root", rootPath)

	discoveryStart := time.Now()
	files, err := DiscoverFiles(rootPath, options)
	if err != nil {
		return nil, fmt.Errorf("file discovery failed: %w", err)
	}
	stats.FilesDiscovered = len(files)
	stats.DiscoveryTimeMs = time.Since(discoveryStart).Milliseconds()

	ws.logger.Info("File discovery complete",
		"files_found", len(files),
		"duration_ms", stats.DiscoveryTimeMs)

	if len(files) == 0 {
		ws.logger.Warn("No files found matching criteria")
		stats.EndTime = time.Now()
		stats.TotalTimeMs = time.Since(startTime).Milliseconds()
		return stats, nil
	}

	indexingStart := time.Now()
	ws.processFilesParallel(ctx, files, options, stats, progressCallback)
	stats.IndexingTimeMs = time.Since(indexingStart).Milliseconds()

	stats.EndTime = time.Now()
	stats.TotalTimeMs = time.Since(startTime).Milliseconds()

	if stats.FilesIndexed > 0 {
		stats.AverageFileTimeMs = float64(stats.IndexingTimeMs) / float64(stats.FilesIndexed)
		if stats.IndexingTimeMs > 0 {
			stats.FilesPerSecond = float64(stats.FilesIndexed) / (float64(stats.IndexingTimeMs) / 1000.0)
		}
	}
	stats.SuccessRate = float64(stats.FilesIndexed) / float64(stats.FilesDiscovered)

	ws.logger.Info("Workspace scan complete",
		"files_indexed", stats.FilesIndexed,
		"files_cached", stats.FilesCached,
		"files_failed", stats.FilesFailed,
		"exports_found", stats.ExportsFound,
		"reexports_found", stats.ReexportsFound,
		"cancelled", stats.Cancelled,
		"duration_ms", stats.TotalTimeMs)

	return stats, nil
}

// DiscoverFiles walks rootPath and returns the files options select, in
// lexical walk order.
func DiscoverFiles(rootPath string, options ScanOptions) ([]string, error) {
	for _, pattern := range options.Exclude {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid exclude pattern: %s", pattern)
		}
	}
	for _, pattern := range options.Include {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid include pattern: %s", pattern)
		}
	}

	var files []string
	err := filepath.WalkDir(rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == rootPath {
				return err
			}
			return nil
		}

		relPath, err := filepath.Rel(rootPath, path)
		if err != nil {
			relPath = path
		}
		relPath = filepath.ToSlash(relPath)
		if relPath == "." {
			return nil
		}

		if matchAny(options.Exclude, relPath) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if options.MaxDepth > 0 && strings.Count(relPath, "/")+1 >= options.MaxDepth {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		if len(options.Include) > 0 {
			if !matchAny(options.Include, relPath) {
				return nil
			}
		} else if parser.DetectLanguage(path) == parser.LanguageUnknown {
			return nil
		}

		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// matchAny reports whether a slash-separated relative path matches any
// doublestar pattern.
func matchAny(patterns []string, relPath string) bool {
	for _, pattern := range patterns {
		if m, _ := doublestar.Match(pattern, relPath); m {
			return true
		}
	}
	return false
}

// processFilesParallel analyzes files on a worker pool and accumulates the
// outcome into stats.
func (ws *WorkspaceScanner) processFilesParallel(
	ctx context.Context,
	files []string,
	options ScanOptions,
	stats *ScanStats,
	progressCallback ProgressCallback,
) {
	totalFiles := len(files)

	pool := NewWorkerPool(ctx, options.Workers, ws.analyzer, ws.logger)
	stats.WorkerCount = pool.numWorkers
	pool.Start()
	defer pool.Stop()

	// The collector must run before submission starts: Submit blocks once
	// the job queue is full.
	done := make(chan struct{})
	go func() {
		defer close(done)

		processed := 0
		for processed < totalFiles {
			select {
			case <-ctx.Done():
				return

			case result := <-pool.Results():
				processed++
				fe := result.Exports
				stats.FilesIndexed++
				if result.Cached {
					stats.FilesCached++
				}
				stats.ExportsFound += len(fe.Exports)
				stats.ReexportsFound += len(fe.Reexports)
				stats.FormatCounts[fe.Format]++

				if progressCallback != nil {
					progressCallback(stats.FilesIndexed, totalFiles, result.FilePath)
				}

			case fileErr := <-pool.Errors():
				processed++
				stats.Errors = append(stats.Errors, fileErr)
				stats.FilesFailed++

				ws.logger.Warn("File analysis failed",
					"file", fileErr.FilePath,
					"error", fileErr.Error)
			}
		}
	}()

	for i, file := range files {
		err := pool.Submit(FileJob{
			FilePath: file,
			JobID:    i,
			Options:  options.Options,
		})
		if err != nil {
			if !errors.Is(err, ErrPoolStopped) {
				ws.logger.Warn("Failed to submit job", "file", file, "error", err)
			}
			break
		}
	}
	pool.FinishSubmitting()

	<-done
	if ctx.Err() != nil && stats.FilesIndexed+stats.FilesFailed < totalFiles {
		stats.Cancelled = true
	}
}
