package extractor

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/gnana997/cjslexer/pkg/cjs"
	"github.com/gnana997/cjslexer/pkg/parser"
	"github.com/gnana997/cjslexer/pkg/parser/queries"
)

// Extractor parses a module once and runs the export analysis and the
// module-syntax queries on the same tree.
//
// Usage:
//
//	ex := NewExtractor(parserManager, queryManager, logger)
//	res, err := ex.ExtractFile(path, source, cjs.DefaultOptions())
//	if err != nil {
//	    return err
//	}
//	// use res.Exports, res.Reexports
type Extractor struct {
	parserManager *parser.ParserManager
	queryManager  *queries.QueryManager
	logger        *slog.Logger
}

// NewExtractor creates an extractor. qm may be nil, in which case Format is
// always commonjs and Requires is empty.
func NewExtractor(pm *parser.ParserManager, qm *queries.QueryManager, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}

	return &Extractor{
		parserManager: pm,
		queryManager:  qm,
		logger:        logger,
	}
}

// Parse analyzes code, naming it specifier in errors. The grammar is chosen
// from the specifier's extension; anything unrecognized is JavaScript.
//
// A source that does not parse cleanly returns a *parser.SyntaxError and no
// result.
func (e *Extractor) Parse(specifier string, code []byte, opts cjs.Options) (*cjs.Result, error) {
	lang, isTSX := languageFor(specifier)

	tree, err := e.parserManager.ParseModule(specifier, code, lang, isTSX)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	res := cjs.Analyze(tree.RootNode(), code, opts)
	return &res, nil
}

// ExtractFile analyzes the file at filePath whose content is code.
func (e *Extractor) ExtractFile(filePath string, code []byte, opts cjs.Options) (*PerFileResult, error) {
	start := time.Now()

	lang := parser.DetectLanguage(filePath)
	if lang == parser.LanguageUnknown {
		return nil, fmt.Errorf("unsupported language for file: %s", filePath)
	}
	isTSX := parser.IsTSXFile(filePath)

	tree, err := e.parserManager.ParseModule(filePath, code, lang, isTSX)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	res := cjs.Analyze(tree.RootNode(), code, opts)

	var info queries.ModuleInfo
	if e.queryManager != nil {
		info, err = e.queryManager.ModuleSyntax(tree, lang, isTSX, code)
		if err != nil {
			return nil, fmt.Errorf("failed to read module syntax of %s: %w", filePath, err)
		}
	}
	requires := info.Requires
	if requires == nil {
		requires = []queries.Dependency{}
	}

	out := &PerFileResult{
		FilePath:    filePath,
		Language:    parser.LanguageName(lang, isTSX),
		Format:      queries.ClassifyFormat(info, len(res.Exports)+len(res.Reexports)),
		Exports:     res.Exports,
		Reexports:   res.Reexports,
		Requires:    requires,
		ContentHash: ContentHash(code),
		DurationMs:  float64(time.Since(start).Microseconds()) / 1000,
	}

	e.logger.Debug("extracted file",
		"file", filePath,
		"language", out.Language,
		"format", out.Format,
		"exports", len(out.Exports),
		"reexports", len(out.Reexports),
		"requires", len(out.Requires))

	return out, nil
}

// ContentHash returns the hex SHA-256 of content.
func ContentHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

func languageFor(specifier string) (parser.Language, bool) {
	lang := parser.DetectLanguage(specifier)
	if lang == parser.LanguageUnknown {
		return parser.LanguageJavaScript, false
	}
	return lang, parser.IsTSXFile(specifier)
}
