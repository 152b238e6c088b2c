package util

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/edsrzf/mmap-go"
)

// SourceCache serves module sources from read-only memory maps so that a
// workspace scan, the resolver and the watcher share one copy of each file.
//
// A file whose mapping fails (special files, some network filesystems) is
// read into memory instead. Invalidate drops a path so the next Get sees the
// new content; the old mapping stays valid until Close because an analysis
// may still be reading it.
type SourceCache interface {
	// Get returns the contents of path, loading it on first access.
	Get(path string) (*MappedFile, error)

	// Invalidate forgets path. The next Get reloads it from disk.
	Invalidate(path string)

	// Size returns the number of cached files.
	Size() int

	Stats() SourceCacheStats

	// Close unmaps every mapping, including invalidated ones.
	Close() error
}

// SourceCacheConfig limits a SourceCache. Zero limits mean unlimited.
type SourceCacheConfig struct {
	// MaxFiles bounds the number of cached files. Get fails once reached.
	MaxFiles int

	// MaxMemoryMB bounds the mapped address space, not resident memory:
	// only pages that are read are loaded.
	MaxMemoryMB int

	Logger *slog.Logger
}

// DefaultSourceCacheConfig covers workspaces of up to 10K modules.
func DefaultSourceCacheConfig() *SourceCacheConfig {
	return &SourceCacheConfig{
		MaxFiles:    10000,
		MaxMemoryMB: 2048,
	}
}

// MappedFile is one cached source file.
type MappedFile struct {
	Path string

	// Data is the file content. It is nil for an empty file and must not be
	// written to.
	Data mmap.MMap

	// file is nil when Data was read instead of mapped.
	file *os.File

	Size     int64
	ModTime  time.Time
	MappedAt time.Time
}

// Bytes returns the content as a byte slice.
func (mf *MappedFile) Bytes() []byte {
	return []byte(mf.Data)
}

// Mapped reports whether the content is memory-mapped.
func (mf *MappedFile) Mapped() bool {
	return mf.file != nil
}

func (mf *MappedFile) release() error {
	if mf.file == nil {
		return nil
	}
	var errs []error
	if mf.Data != nil {
		if err := mf.Data.Unmap(); err != nil {
			errs = append(errs, fmt.Errorf("unmap %q: %w", mf.Path, err))
		}
	}
	if err := mf.file.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close %q: %w", mf.Path, err))
	}
	return errors.Join(errs...)
}

// SourceCacheStats are cumulative counters plus the current footprint.
type SourceCacheStats struct {
	FilesLoaded   int64   `json:"filesLoaded"`
	FilesCached   int     `json:"filesCached"`
	CacheHits     int64   `json:"cacheHits"`
	CacheMisses   int64   `json:"cacheMisses"`
	Invalidations int64   `json:"invalidations"`
	MmapFailures  int64   `json:"mmapFailures"`
	TotalMappedMB float64 `json:"totalMappedMB"`
}

// NewSourceCache creates a SourceCache. A nil config uses the defaults.
func NewSourceCache(config *SourceCacheConfig) SourceCache {
	if config == nil {
		config = DefaultSourceCacheConfig()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &sourceCache{
		config: config,
		logger: logger,
		files:  make(map[string]*MappedFile),
	}
}

type sourceCache struct {
	config *SourceCacheConfig
	logger *slog.Logger

	mu          sync.RWMutex
	files       map[string]*MappedFile
	retired     []*MappedFile
	mappedBytes int64

	loads         atomic.Int64
	hits          atomic.Int64
	misses        atomic.Int64
	invalidations atomic.Int64
	mmapFailures  atomic.Int64
}

func (sc *sourceCache) Get(path string) (*MappedFile, error) {
	sc.mu.RLock()
	mf, ok := sc.files[path]
	sc.mu.RUnlock()
	if ok {
		sc.hits.Add(1)
		return mf, nil
	}

	sc.mu.Lock()
	defer sc.mu.Unlock()

	// another goroutine may have loaded it while we waited
	if mf, ok := sc.files[path]; ok {
		sc.hits.Add(1)
		return mf, nil
	}
	sc.misses.Add(1)

	if sc.config.MaxFiles > 0 && len(sc.files) >= sc.config.MaxFiles {
		return nil, fmt.Errorf("source cache full: %d files (limit %d)", len(sc.files), sc.config.MaxFiles)
	}

	mf, err := sc.load(path)
	if err != nil {
		return nil, err
	}
	if limit := int64(sc.config.MaxMemoryMB) << 20; limit > 0 && sc.mappedBytes+mf.Size > limit {
		if err := mf.release(); err != nil {
			sc.logger.Warn("Failed to release source", "path", path, "error", err)
		}
		return nil, fmt.Errorf("source cache memory limit reached: %d MB", sc.config.MaxMemoryMB)
	}

	sc.files[path] = mf
	sc.mappedBytes += mf.Size
	sc.loads.Add(1)
	return mf, nil
}

// load maps path, falling back to reading it.
func (sc *sourceCache) load(path string) (*MappedFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %q: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat %q: %w", path, err)
	}
	if info.IsDir() {
		f.Close()
		return nil, fmt.Errorf("%q is a directory", path)
	}

	mf := &MappedFile{
		Path:     path,
		Size:     info.Size(),
		ModTime:  info.ModTime(),
		MappedAt: time.Now(),
	}
	// zero-length files cannot be mapped
	if info.Size() == 0 {
		f.Close()
		return mf, nil
	}

	data, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		sc.mmapFailures.Add(1)
		sc.logger.Debug("mmap failed, reading file", "path", path, "error", err)

		content, readErr := os.ReadFile(path)
		if readErr != nil {
			return nil, fmt.Errorf("failed to read %q: %w", path, readErr)
		}
		mf.Data = mmap.MMap(content)
		mf.Size = int64(len(content))
		return mf, nil
	}
	mf.Data = data
	mf.file = f
	return mf, nil
}

func (sc *sourceCache) Invalidate(path string) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	mf, ok := sc.files[path]
	if !ok {
		return
	}
	delete(sc.files, path)
	sc.mappedBytes -= mf.Size
	if mf.Mapped() {
		sc.retired = append(sc.retired, mf)
	}
	sc.invalidations.Add(1)
}

func (sc *sourceCache) Size() int {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return len(sc.files)
}

func (sc *sourceCache) Stats() SourceCacheStats {
	sc.mu.RLock()
	cached := len(sc.files)
	mapped := sc.mappedBytes
	sc.mu.RUnlock()

	return SourceCacheStats{
		FilesLoaded:   sc.loads.Load(),
		FilesCached:   cached,
		CacheHits:     sc.hits.Load(),
		CacheMisses:   sc.misses.Load(),
		Invalidations: sc.invalidations.Load(),
		MmapFailures:  sc.mmapFailures.Load(),
		TotalMappedMB: float64(mapped) / (1 << 20),
	}
}

func (sc *sourceCache) Close() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	var errs []error
	for _, mf := range sc.files {
		if err := mf.release(); err != nil {
			errs = append(errs, err)
		}
	}
	for _, mf := range sc.retired {
		if err := mf.release(); err != nil {
			errs = append(errs, err)
		}
	}
	sc.files = make(map[string]*MappedFile)
	sc.retired = nil
	sc.mappedBytes = 0

	sc.logger.Debug("Source cache closed",
		"files_loaded", sc.loads.Load(),
		"cache_hits", sc.hits.Load(),
		"cache_misses", sc.misses.Load())
	return errors.Join(errs...)
}
