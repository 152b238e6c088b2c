// Package queries compiles, caches and runs the tree-sitter queries that
// complement the export analysis: module format detection and the list of
// required specifiers.
package queries

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	ts "github.com/tree-sitter/go-tree-sitter"

	"github.com/gnana997/cjslexer/pkg/parser"
	"github.com/gnana997/cjslexer/pkg/parser/queries/imports"
)

// QueryType identifies a query.
type QueryType int

const (
	// QueryTypeModuleSyntax finds ES module import and export declarations.
	QueryTypeModuleSyntax QueryType = iota
	// QueryTypeRequires finds require("specifier") dependencies.
	QueryTypeRequires
)

func (qt QueryType) String() string {
	switch qt {
	case QueryTypeModuleSyntax:
		return "module_syntax"
	case QueryTypeRequires:
		return "requires"
	default:
		return "unknown"
	}
}

// Node kind ids differ between the TypeScript and TSX grammars, so a query is
// compiled once per grammar variant.
type queryKey struct {
	lang  parser.Language
	isTSX bool
	qtype QueryType
}

// QueryManager compiles queries lazily and caches them per grammar.
// Compiled queries are safe to share between goroutines; each execution uses
// its own cursor.
//
//	qm := queries.NewQueryManager(parserManager, logger)
//	defer qm.Close()
//
//	info, err := qm.ModuleSyntax(tree, parser.LanguageJavaScript, false, src)
type QueryManager struct {
	parserManager *parser.ParserManager
	cache         map[queryKey]*ts.Query
	mutex         sync.RWMutex
	logger        *slog.Logger
}

// NewQueryManager creates a QueryManager that takes grammars from pm.
func NewQueryManager(pm *parser.ParserManager, logger *slog.Logger) *QueryManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &QueryManager{
		parserManager: pm,
		cache:         make(map[queryKey]*ts.Query),
		logger:        logger,
	}
}

// GetQuery returns the compiled query for a grammar, compiling it on first
// use.
func (qm *QueryManager) GetQuery(lang parser.Language, isTSX bool, qtype QueryType) (*ts.Query, error) {
	if lang != parser.LanguageTypeScript {
		isTSX = false
	}
	key := queryKey{lang: lang, isTSX: isTSX, qtype: qtype}

	qm.mutex.RLock()
	query, exists := qm.cache[key]
	qm.mutex.RUnlock()
	if exists {
		return query, nil
	}

	qm.mutex.Lock()
	defer qm.mutex.Unlock()

	if query, exists = qm.cache[key]; exists {
		return query, nil
	}

	source, err := queryString(lang, qtype)
	if err != nil {
		return nil, err
	}
	langPtr, err := qm.parserManager.GetLanguagePointer(lang, isTSX)
	if err != nil {
		return nil, fmt.Errorf("failed to get language pointer for %s: %w", lang, err)
	}
	query, qerr := ts.NewQuery(ts.NewLanguage(langPtr), source)
	if qerr != nil {
		return nil, fmt.Errorf("failed to compile %s query for %s: %s",
			qtype, parser.LanguageName(lang, isTSX), qerr.Message)
	}
	qm.cache[key] = query

	qm.logger.Debug("compiled query",
		"language", parser.LanguageName(lang, isTSX),
		"type", qtype.String())
	return query, nil
}

func queryString(lang parser.Language, qtype QueryType) (string, error) {
	switch {
	case lang == parser.LanguageJavaScript && qtype == QueryTypeModuleSyntax:
		return imports.JSModuleSyntax, nil
	case lang == parser.LanguageJavaScript && qtype == QueryTypeRequires:
		return imports.JSRequires, nil
	case lang == parser.LanguageTypeScript && qtype == QueryTypeModuleSyntax:
		return imports.TSModuleSyntax, nil
	case lang == parser.LanguageTypeScript && qtype == QueryTypeRequires:
		return imports.TSRequires, nil
	case lang == parser.LanguageUnknown:
		return "", fmt.Errorf("unsupported language: %s", lang)
	default:
		return "", fmt.Errorf("unknown query type: %d", qtype)
	}
}

// ExecuteQuery runs a compiled query over tree and returns its matches in
// document order.
func (qm *QueryManager) ExecuteQuery(tree *ts.Tree, query *ts.Query, source []byte) ([]QueryMatch, error) {
	if tree == nil {
		return nil, fmt.Errorf("tree is nil")
	}
	if query == nil {
		return nil, fmt.Errorf("query is nil")
	}

	cursor := ts.NewQueryCursor()
	defer cursor.Close()

	names := query.CaptureNames()
	iter := cursor.Matches(query, tree.RootNode(), source)

	var matches []QueryMatch
	for match := iter.Next(); match != nil; match = iter.Next() {
		var captures []QueryCapture
		for _, capture := range match.Captures {
			var name string
			if int(capture.Index) < len(names) {
				name = names[capture.Index]
			}
			if strings.HasPrefix(name, "_") {
				continue
			}
			node := capture.Node
			category, field := parseCaptureName(name)
			captures = append(captures, QueryCapture{
				Name:     name,
				Category: category,
				Field:    field,
				Node:     &node,
				Text:     node.Utf8Text(source),
				Location: nodeLocation(&node),
			})
		}
		matches = append(matches, QueryMatch{
			PatternIndex: uint32(match.PatternIndex),
			Captures:     captures,
		})
	}
	return matches, nil
}

// Close frees every compiled query.
func (qm *QueryManager) Close() error {
	qm.mutex.Lock()
	defer qm.mutex.Unlock()

	qm.logger.Debug("closing query manager", "queries_compiled", len(qm.cache))
	for key, query := range qm.cache {
		query.Close()
		delete(qm.cache, key)
	}
	return nil
}

// QueryMatch is one match of one query pattern.
type QueryMatch struct {
	PatternIndex uint32
	Captures     []QueryCapture
}

// QueryCapture is a captured node. Name "require.source" splits into
// Category "require" and Field "source".
type QueryCapture struct {
	Name     string
	Category string
	Field    string
	Node     *ts.Node
	Text     string
	Location Location
}

// Location is a source range. Lines and columns are 1-based, bytes 0-based.
type Location struct {
	StartLine   uint32 `json:"startLine"`
	StartColumn uint32 `json:"startColumn"`
	EndLine     uint32 `json:"endLine"`
	EndColumn   uint32 `json:"endColumn"`
	StartByte   uint32 `json:"startByte"`
	EndByte     uint32 `json:"endByte"`
}

func parseCaptureName(name string) (category, field string) {
	category, field, _ = strings.Cut(name, ".")
	return category, field
}

func nodeLocation(node *ts.Node) Location {
	start := node.StartPosition()
	end := node.EndPosition()
	return Location{
		StartLine:   uint32(start.Row + 1),
		StartColumn: uint32(start.Column + 1),
		EndLine:     uint32(end.Row + 1),
		EndColumn:   uint32(end.Column + 1),
		StartByte:   uint32(node.StartByte()),
		EndByte:     uint32(node.EndByte()),
	}
}
