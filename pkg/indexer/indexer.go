package indexer

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/gnana997/cjslexer/pkg/cjs"
)

// ExportIndex caches per-file analysis results with lazy invalidation.
//
// **Architecture:**
//   - LRU cache FilePath → FileExports for bounded memory
//   - Entries remember content hash and options; Lookup treats any
//     mismatch as a miss
//   - Dirty marks let the watcher invalidate without reanalyzing
//
// **Thread Safety:**
//   - sync.RWMutex, multiple readers, single writer
//   - Atomic counters for statistics
//
// **Usage:**
//
//	index := NewExportIndex(DefaultExportIndexConfig(), logger)
//	if fe, ok := index.Lookup(path, hash, opts); ok {
//	    return fe
//	}
//	index.Put(NewFileExports(result, opts))
type ExportIndex struct {
	files *lru.Cache[string, *FileExports]

	// Lazy invalidation tracking: FilePath → isDirty
	dirtyFiles map[string]bool

	// removing is set while the index itself removes entries so the
	// eviction callback only counts capacity evictions.
	removing bool

	mu sync.RWMutex

	indexedFiles   atomic.Int64
	cacheHits      atomic.Int64
	cacheMisses    atomic.Int64
	evictions      atomic.Int64
	totalIndexTime atomic.Int64 // Microseconds

	config ExportIndexConfig
	logger *slog.Logger
}

// NewExportIndex creates an export index.
func NewExportIndex(config ExportIndexConfig, logger *slog.Logger) *ExportIndex {
	if config.MaxCachedFiles <= 0 {
		config.MaxCachedFiles = DefaultExportIndexConfig().MaxCachedFiles
	}
	if logger == nil {
		logger = slog.Default()
	}

	ei := &ExportIndex{
		dirtyFiles: make(map[string]bool, 100),
		config:     config,
		logger:     logger,
	}

	cache, err := lru.NewWithEvict(config.MaxCachedFiles, func(key string, value *FileExports) {
		if ei.removing {
			return
		}
		ei.evictions.Add(1)
		delete(ei.dirtyFiles, key)
		if config.Debug {
			logger.Debug("LRU evicting file", "path", key, "exports", len(value.Exports))
		}
	})
	if err != nil {
		// only possible for a non-positive size, ruled out above
		panic(fmt.Sprintf("failed to create LRU cache: %v", err))
	}
	ei.files = cache

	logger.Debug("ExportIndex initialized", "max_cached_files", config.MaxCachedFiles)
	return ei
}

// Put stores an analysis, replacing any previous entry for its path and
// clearing its dirty mark.
func (ei *ExportIndex) Put(fe *FileExports) {
	ei.mu.Lock()
	defer ei.mu.Unlock()

	ei.files.Add(fe.FilePath, fe)
	delete(ei.dirtyFiles, fe.FilePath)

	ei.indexedFiles.Add(1)
	ei.totalIndexTime.Add(int64(fe.DurationMs * 1000))

	if ei.config.Debug {
		ei.logger.Debug("Indexed file",
			"path", fe.FilePath,
			"exports", len(fe.Exports),
			"reexports", len(fe.Reexports))
	}
}

// Get returns the entry for filePath whether or not it is current.
func (ei *ExportIndex) Get(filePath string) (*FileExports, bool) {
	ei.mu.RLock()
	defer ei.mu.RUnlock()

	fe, found := ei.files.Get(filePath)
	if found {
		ei.cacheHits.Add(1)
	} else {
		ei.cacheMisses.Add(1)
	}
	return fe, found
}

// Lookup returns the entry for filePath only if it is clean and was
// produced from content with the given hash under the same options.
func (ei *ExportIndex) Lookup(filePath, contentHash string, opts cjs.Options) (*FileExports, bool) {
	ei.mu.RLock()
	defer ei.mu.RUnlock()

	fe, found := ei.files.Get(filePath)
	if !found || ei.dirtyFiles[filePath] || fe.ContentHash != contentHash || fe.Options != opts {
		ei.cacheMisses.Add(1)
		return nil, false
	}
	ei.cacheHits.Add(1)
	return fe, true
}

// All returns a snapshot of the cached entries, most recently used last.
func (ei *ExportIndex) All() []*FileExports {
	ei.mu.RLock()
	defer ei.mu.RUnlock()

	keys := ei.files.Keys()
	result := make([]*FileExports, 0, len(keys))
	for _, key := range keys {
		if fe, ok := ei.files.Peek(key); ok {
			result = append(result, fe)
		}
	}
	return result
}

// Invalidate marks a file as dirty. The entry stays readable through Get
// but Lookup misses until the next Put.
func (ei *ExportIndex) Invalidate(filePath string) {
	ei.mu.Lock()
	if ei.files.Contains(filePath) {
		ei.dirtyFiles[filePath] = true
	}
	ei.mu.Unlock()

	if ei.config.Debug {
		ei.logger.Debug("Invalidated file", "path", filePath)
	}
}

// IsDirty checks if a file is marked for reanalysis.
func (ei *ExportIndex) IsDirty(filePath string) bool {
	ei.mu.RLock()
	defer ei.mu.RUnlock()

	return ei.dirtyFiles[filePath]
}

// Remove drops a file from the index.
func (ei *ExportIndex) Remove(filePath string) {
	ei.mu.Lock()
	defer ei.mu.Unlock()

	ei.removing = true
	ei.files.Remove(filePath)
	ei.removing = false
	delete(ei.dirtyFiles, filePath)
}

// Len returns the number of cached files.
func (ei *ExportIndex) Len() int {
	return ei.files.Len()
}

// GetStats returns current index statistics.
func (ei *ExportIndex) GetStats() ExportIndexStats {
	ei.mu.RLock()
	cachedFiles := ei.files.Len()
	dirtyFiles := len(ei.dirtyFiles)
	totalExports, totalReexports := 0, 0
	for _, key := range ei.files.Keys() {
		if fe, ok := ei.files.Peek(key); ok {
			totalExports += len(fe.Exports)
			totalReexports += len(fe.Reexports)
		}
	}
	ei.mu.RUnlock()

	hits := ei.cacheHits.Load()
	misses := ei.cacheMisses.Load()
	hitRate := 0.0
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	indexedCount := ei.indexedFiles.Load()
	avgTime := 0.0
	if indexedCount > 0 {
		avgTime = float64(ei.totalIndexTime.Load()) / float64(indexedCount) / 1000.0
	}

	return ExportIndexStats{
		IndexedFiles:       int(indexedCount),
		CachedFiles:        cachedFiles,
		DirtyFiles:         dirtyFiles,
		TotalExports:       totalExports,
		TotalReexports:     totalReexports,
		CacheHits:          hits,
		CacheMisses:        misses,
		CacheHitRate:       hitRate,
		Evictions:          ei.evictions.Load(),
		AverageIndexTimeMs: avgTime,
	}
}

// Close purges the index.
func (ei *ExportIndex) Close() {
	ei.mu.Lock()
	defer ei.mu.Unlock()

	ei.removing = true
	ei.files.Purge()
	ei.removing = false
	ei.dirtyFiles = make(map[string]bool)
}
