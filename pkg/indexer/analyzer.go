package indexer

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/gnana997/cjslexer/pkg/cjs"
	"github.com/gnana997/cjslexer/pkg/extractor"
	"github.com/gnana997/cjslexer/pkg/util"
)

// FileAnalyzer analyzes files on disk through the source cache, reusing an
// indexed result when the content and options are unchanged.
type FileAnalyzer struct {
	extractor *extractor.Extractor
	sources   util.SourceCache
	index     *ExportIndex
	logger    *slog.Logger
}

// NewFileAnalyzer creates a FileAnalyzer. sources and index may be nil:
// files are then read on every call and results are not cached.
func NewFileAnalyzer(ex *extractor.Extractor, sources util.SourceCache, index *ExportIndex, logger *slog.Logger) *FileAnalyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileAnalyzer{
		extractor: ex,
		sources:   sources,
		index:     index,
		logger:    logger,
	}
}

// Index returns the backing index, or nil.
func (fa *FileAnalyzer) Index() *ExportIndex {
	return fa.index
}

// Sources returns the backing source cache, or nil.
func (fa *FileAnalyzer) Sources() util.SourceCache {
	return fa.sources
}

// Analyze returns the exports of the file at path. cached reports whether
// the result came from the index. An empty NodeEnv is the default
// environment.
func (fa *FileAnalyzer) Analyze(path string, opts cjs.Options) (fe *FileExports, cached bool, err error) {
	if opts.NodeEnv == "" {
		opts.NodeEnv = cjs.DefaultNodeEnv
	}

	content, err := fa.read(path)
	if err != nil {
		return nil, false, err
	}

	hash := extractor.ContentHash(content)
	if fa.index != nil {
		if fe, ok := fa.index.Lookup(path, hash, opts); ok {
			return fe, true, nil
		}
	}

	res, err := fa.extractor.ExtractFile(path, content, opts)
	if err != nil {
		return nil, false, err
	}
	fe = NewFileExports(res, opts)
	if fa.index != nil {
		fa.index.Put(fe)
	}
	return fe, false, nil
}

// Forget drops path from the source cache and the index.
func (fa *FileAnalyzer) Forget(path string) {
	if fa.sources != nil {
		fa.sources.Invalidate(path)
	}
	if fa.index != nil {
		fa.index.Remove(path)
	}
}

// Invalidate marks path as changed without reanalyzing it.
func (fa *FileAnalyzer) Invalidate(path string) {
	if fa.sources != nil {
		fa.sources.Invalidate(path)
	}
	if fa.index != nil {
		fa.index.Invalidate(path)
	}
}

// read returns the current content of path. A cached mapping whose size or
// modification time no longer matches the file is reloaded.
func (fa *FileAnalyzer) read(path string) ([]byte, error) {
	if fa.sources == nil {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read file: %w", err)
		}
		return content, nil
	}

	mf, err := fa.sources.Get(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	if info.Size() != mf.Size || !info.ModTime().Equal(mf.ModTime) {
		fa.logger.Debug("Source changed on disk, reloading", "path", path)
		fa.sources.Invalidate(path)
		if mf, err = fa.sources.Get(path); err != nil {
			return nil, err
		}
	}
	return mf.Bytes(), nil
}
