package indexer

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/gnana997/cjslexer/pkg/parser"
)

// FileWatcher keeps the export index current as files change on disk.
//
// **Features:**
//   - Debouncing - Rapid writes to one file trigger a single reanalysis
//   - Selective - Only the changed file is reanalyzed
//   - New directories are watched as they appear
//
// **Usage:**
//
//	watcher, err := NewFileWatcher(analyzer, DefaultWatchOptions(), logger)
//	if err != nil {
//	    return err
//	}
//	if err := watcher.Start("/path/to/package"); err != nil {
//	    return err
//	}
//	defer watcher.Stop()
type FileWatcher struct {
	watcher  *fsnotify.Watcher
	analyzer *FileAnalyzer
	logger   *slog.Logger
	options  WatchOptions
	root     string

	debounceTimers map[string]*time.Timer
	debounceMu     sync.Mutex

	stopChan chan struct{}
	running  bool
	stopped  bool
	mu       sync.Mutex

	reanalyzed atomic.Int64
	removed    atomic.Int64
	failures   atomic.Int64
}

// NewFileWatcher creates a file watcher.
func NewFileWatcher(analyzer *FileAnalyzer, options WatchOptions, logger *slog.Logger) (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	for _, pattern := range slices.Concat(options.IgnorePatterns, options.Include) {
		if !doublestar.ValidatePattern(pattern) {
			watcher.Close()
			return nil, fmt.Errorf("invalid watch pattern: %s", pattern)
		}
	}
	if options.DebounceMs <= 0 {
		options.DebounceMs = DefaultWatchOptions().DebounceMs
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &FileWatcher{
		watcher:        watcher,
		analyzer:       analyzer,
		logger:         logger,
		options:        options,
		debounceTimers: make(map[string]*time.Timer),
		stopChan:       make(chan struct{}),
	}, nil
}

// Start watches rootPath and every directory below it that is not ignored.
// Events are processed on a background goroutine until Stop.
func (fw *FileWatcher) Start(rootPath string) error {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	if fw.stopped {
		return fmt.Errorf("watcher already stopped")
	}
	if fw.running {
		return fmt.Errorf("watcher already started")
	}

	root, err := filepath.Abs(rootPath)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", rootPath, err)
	}
	fw.root = root

	if err := fw.watcher.Add(root); err != nil {
		return fmt.Errorf("failed to watch %s: %w", root, err)
	}
	fw.addTree(root)

	fw.running = true
	fw.logger.Info("File watcher started", "root", root)

	go fw.eventLoop()
	return nil
}

// addTree watches every non-ignored directory below dir.
func (fw *FileWatcher) addTree(dir string) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() || path == dir {
			return nil
		}
		if fw.shouldIgnore(path) {
			return filepath.SkipDir
		}
		if err := fw.watcher.Add(path); err != nil {
			fw.logger.Warn("Failed to watch directory", "path", path, "error", err)
		}
		return nil
	})
}

// Stop stops the file watcher. Pending reanalyses are dropped.
// Safe to call multiple times.
func (fw *FileWatcher) Stop() error {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if fw.stopped {
		return nil
	}

	fw.stopped = true
	fw.running = false
	close(fw.stopChan)

	fw.debounceMu.Lock()
	for _, timer := range fw.debounceTimers {
		timer.Stop()
	}
	fw.debounceTimers = make(map[string]*time.Timer)
	fw.debounceMu.Unlock()

	err := fw.watcher.Close()
	fw.logger.Info("File watcher stopped")
	return err
}

func (fw *FileWatcher) eventLoop() {
	for {
		select {
		case <-fw.stopChan:
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			fw.handleEvent(event)

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.logger.Error("File watcher error", "error", err)
		}
	}
}

func (fw *FileWatcher) handleEvent(event fsnotify.Event) {
	filePath := event.Name

	if fw.shouldIgnore(filePath) {
		return
	}

	if event.Has(fsnotify.Create) && isDir(filePath) {
		if err := fw.watcher.Add(filePath); err != nil {
			fw.logger.Warn("Failed to watch directory", "path", filePath, "error", err)
		}
		fw.addTree(filePath)
		return
	}

	if !fw.selects(filePath) {
		return
	}

	fw.logger.Debug("File event", "op", event.Op.String(), "file", filePath)

	switch {
	case event.Has(fsnotify.Write), event.Has(fsnotify.Create):
		fw.analyzer.Invalidate(filePath)
		fw.debounce(filePath, fw.reanalyze)

	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		fw.debounce(filePath, fw.removeFile)
	}
}

// debounce runs fn for filePath once no event for it arrived for the
// debounce delay. A later event replaces the pending action.
func (fw *FileWatcher) debounce(filePath string, fn func(string)) {
	fw.debounceMu.Lock()
	defer fw.debounceMu.Unlock()

	if timer, exists := fw.debounceTimers[filePath]; exists {
		timer.Stop()
	}

	var timer *time.Timer
	timer = time.AfterFunc(
		time.Duration(fw.options.DebounceMs)*time.Millisecond,
		func() {
			fw.debounceMu.Lock()
			current := fw.debounceTimers[filePath] == timer
			if current {
				delete(fw.debounceTimers, filePath)
			}
			fw.debounceMu.Unlock()

			if current {
				fn(filePath)
			}
		},
	)
	fw.debounceTimers[filePath] = timer
}

func (fw *FileWatcher) reanalyze(filePath string) {
	fe, _, err := fw.analyzer.Analyze(filePath, fw.options.Options)
	if err != nil {
		fw.failures.Add(1)
		fw.logger.Warn("Failed to reanalyze file",
			"file", filePath,
			"error", err)
		fw.notify(WatchEvent{FilePath: filePath, Op: WatchOpAnalyze, Err: err, Timestamp: time.Now()})
		return
	}

	fw.reanalyzed.Add(1)
	fw.logger.Debug("File reanalyzed",
		"file", filePath,
		"exports", len(fe.Exports),
		"reexports", len(fe.Reexports))
	fw.notify(WatchEvent{FilePath: filePath, Op: WatchOpAnalyze, Exports: fe, Timestamp: time.Now()})
}

func (fw *FileWatcher) removeFile(filePath string) {
	// a rename-over or editor swap may have put a new file in place
	if isRegular(filePath) {
		fw.analyzer.Invalidate(filePath)
		fw.reanalyze(filePath)
		return
	}
	fw.analyzer.Forget(filePath)
	fw.removed.Add(1)
	fw.logger.Debug("Removed file from index", "file", filePath)
	fw.notify(WatchEvent{FilePath: filePath, Op: WatchOpRemove, Timestamp: time.Now()})
}

func (fw *FileWatcher) notify(ev WatchEvent) {
	if fw.options.OnChange != nil {
		fw.options.OnChange(ev)
	}
}

// shouldIgnore matches path, relative to the root, against the ignore
// patterns.
func (fw *FileWatcher) shouldIgnore(path string) bool {
	rel, ok := fw.relative(path)
	if !ok {
		return true
	}
	return matchAny(fw.options.IgnorePatterns, rel)
}

// selects reports whether path is a file the watcher analyzes.
func (fw *FileWatcher) selects(path string) bool {
	if len(fw.options.Include) == 0 {
		return parser.DetectLanguage(path) != parser.LanguageUnknown
	}
	rel, ok := fw.relative(path)
	return ok && matchAny(fw.options.Include, rel)
}

func (fw *FileWatcher) relative(path string) (string, bool) {
	rel, err := filepath.Rel(fw.root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// GetStats returns file watcher statistics.
func (fw *FileWatcher) GetStats() FileWatcherStats {
	fw.debounceMu.Lock()
	pending := len(fw.debounceTimers)
	fw.debounceMu.Unlock()

	fw.mu.Lock()
	running := fw.running
	fw.mu.Unlock()

	return FileWatcherStats{
		PendingChanges: pending,
		Reanalyzed:     fw.reanalyzed.Load(),
		Removed:        fw.removed.Load(),
		Failures:       fw.failures.Load(),
		IsRunning:      running,
	}
}

// FileWatcherStats contains file watcher statistics.
type FileWatcherStats struct {
	PendingChanges int   `json:"pendingChanges"`
	Reanalyzed     int64 `json:"reanalyzed"`
	Removed        int64 `json:"removed"`
	Failures       int64 `json:"failures"`
	IsRunning      bool  `json:"isRunning"`
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func isRegular(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
