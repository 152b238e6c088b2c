package parser

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"unsafe"

	ts "github.com/tree-sitter/go-tree-sitter"
	ts_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	ts_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

type poolKey struct {
	lang  Language
	isTSX bool
}

// ParserManager owns pooled tree-sitter parsers for JavaScript, TypeScript
// and TSX. Pools are created on first use of a grammar.
//
// The manager is safe for concurrent use. Callers own the returned trees and
// must Close them; the manager itself must be closed when no parse is in
// flight.
//
// Example:
//
//	manager := parser.NewParserManager(logger)
//	defer manager.Close()
//
//	tree, err := manager.ParseModule("lib/index.js", src, parser.LanguageJavaScript, false)
//	if err != nil {
//	    return err // *parser.SyntaxError for invalid source
//	}
//	defer tree.Close()
type ParserManager struct {
	pools    map[poolKey]*parserPool
	poolSize int
	mutex    sync.RWMutex

	logger *slog.Logger

	parsesCalled atomic.Int64
	syntaxErrors atomic.Int64
}

// Option configures a ParserManager.
type Option func(*ParserManager)

// WithPoolSize fixes the number of parsers per grammar. Zero keeps the
// CPU-based default.
func WithPoolSize(n int) Option {
	return func(pm *ParserManager) {
		pm.poolSize = getPoolSize(n)
	}
}

// NewParserManager creates a ParserManager. A nil logger uses slog.Default().
func NewParserManager(logger *slog.Logger, opts ...Option) *ParserManager {
	if logger == nil {
		logger = slog.Default()
	}
	pm := &ParserManager{
		pools:    make(map[poolKey]*parserPool),
		poolSize: getPoolSize(0),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(pm)
	}
	return pm
}

// Parse parses source with the given grammar. isTSX only matters for
// TypeScript. The tree may contain ERROR nodes; use ParseModule to reject
// those.
func (pm *ParserManager) Parse(source []byte, lang Language, isTSX bool) (*ts.Tree, error) {
	if lang == LanguageUnknown {
		return nil, fmt.Errorf("cannot parse unknown language")
	}
	pm.parsesCalled.Add(1)

	pool, err := pm.getOrCreatePool(lang, isTSX)
	if err != nil {
		return nil, fmt.Errorf("failed to get pool for %s: %w", LanguageName(lang, isTSX), err)
	}
	p, err := pool.acquire()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire parser: %w", err)
	}
	tree := p.Parse(source, nil)
	pool.release(p)

	if tree == nil {
		return nil, fmt.Errorf("parser returned no tree")
	}
	return tree, nil
}

// ParseFile parses source with the grammar selected by the path's
// extension.
func (pm *ParserManager) ParseFile(source []byte, filePath string) (*ts.Tree, error) {
	lang := DetectLanguage(filePath)
	if lang == LanguageUnknown {
		return nil, fmt.Errorf("unsupported file extension: %s", filePath)
	}
	return pm.Parse(source, lang, IsTSXFile(filePath))
}

// ParseModule parses a module for analysis. A tree with any ERROR or MISSING
// node is closed and reported as a *SyntaxError naming specifier; analysis
// never runs on a partial tree.
func (pm *ParserManager) ParseModule(specifier string, source []byte, lang Language, isTSX bool) (*ts.Tree, error) {
	tree, err := pm.Parse(source, lang, isTSX)
	if err != nil {
		return nil, err
	}
	if serr := FindSyntaxError(specifier, tree.RootNode(), source); serr != nil {
		tree.Close()
		pm.syntaxErrors.Add(1)
		pm.logger.Debug("syntax error",
			"specifier", specifier,
			"line", serr.Line,
			"column", serr.Column)
		return nil, serr
	}
	return tree, nil
}

// Close frees every pooled parser.
func (pm *ParserManager) Close() error {
	pm.mutex.Lock()
	defer pm.mutex.Unlock()

	closed := 0
	for _, pool := range pm.pools {
		closed += pool.close()
	}
	pm.pools = make(map[poolKey]*parserPool)

	pm.logger.Debug("parser manager closed",
		"parsers_closed", closed,
		"parses_called", pm.parsesCalled.Load())
	return nil
}

func (pm *ParserManager) getOrCreatePool(lang Language, isTSX bool) (*parserPool, error) {
	if lang != LanguageTypeScript {
		isTSX = false
	}
	key := poolKey{lang: lang, isTSX: isTSX}

	pm.mutex.RLock()
	pool, exists := pm.pools[key]
	pm.mutex.RUnlock()
	if exists {
		return pool, nil
	}

	pm.mutex.Lock()
	defer pm.mutex.Unlock()

	if pool, exists = pm.pools[key]; exists {
		return pool, nil
	}
	langPtr, err := pm.GetLanguagePointer(lang, isTSX)
	if err != nil {
		return nil, err
	}
	pool = newParserPool(lang, langPtr, isTSX, pm.poolSize, pm.logger)
	pm.pools[key] = pool

	pm.logger.Debug("created parser pool",
		"language", LanguageName(lang, isTSX),
		"max_size", pm.poolSize)
	return pool, nil
}

// GetLanguagePointer returns the grammar for lang. The query manager uses it
// to compile queries against the same grammar.
func (pm *ParserManager) GetLanguagePointer(lang Language, isTSX bool) (unsafe.Pointer, error) {
	switch lang {
	case LanguageJavaScript:
		return ts_javascript.Language(), nil
	case LanguageTypeScript:
		if isTSX {
			return ts_typescript.LanguageTSX(), nil
		}
		return ts_typescript.LanguageTypescript(), nil
	default:
		return nil, fmt.Errorf("unsupported language: %s", lang)
	}
}

// GetStats returns parser usage statistics.
func (pm *ParserManager) GetStats() ParserStats {
	pm.mutex.RLock()
	defer pm.mutex.RUnlock()

	created := 0
	for _, pool := range pm.pools {
		created += pool.getCreatedCount()
	}
	return ParserStats{
		ParsersCreated: created,
		ParsesCalled:   int(pm.parsesCalled.Load()),
		SyntaxErrors:   int(pm.syntaxErrors.Load()),
		Pools:          len(pm.pools),
	}
}

// ParserStats contains parser usage statistics.
type ParserStats struct {
	ParsersCreated int `json:"parsersCreated"`
	ParsesCalled   int `json:"parsesCalled"`
	SyntaxErrors   int `json:"syntaxErrors"`
	Pools          int `json:"pools"`
}
