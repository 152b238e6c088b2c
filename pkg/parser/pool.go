package parser

import (
	"fmt"
	"log/slog"
	"sync"
	"unsafe"

	ts "github.com/tree-sitter/go-tree-sitter"
)

// parserPool hands out parsers for one grammar. Parsers are created lazily
// up to maxSize; after that acquire blocks until one is released.
type parserPool struct {
	pool    chan *ts.Parser
	langPtr unsafe.Pointer
	lang    Language
	isTSX   bool
	maxSize int

	mutex   sync.Mutex
	created int

	logger *slog.Logger
}

func newParserPool(lang Language, langPtr unsafe.Pointer, isTSX bool, maxSize int, logger *slog.Logger) *parserPool {
	return &parserPool{
		pool:    make(chan *ts.Parser, maxSize),
		langPtr: langPtr,
		lang:    lang,
		isTSX:   isTSX,
		maxSize: maxSize,
		logger:  logger,
	}
}

func (p *parserPool) acquire() (*ts.Parser, error) {
	select {
	case parser := <-p.pool:
		return parser, nil
	default:
	}

	p.mutex.Lock()
	if p.created >= p.maxSize {
		p.mutex.Unlock()
		return <-p.pool, nil
	}
	defer p.mutex.Unlock()

	parser := ts.NewParser()
	if parser == nil {
		return nil, fmt.Errorf("failed to create parser")
	}
	if err := parser.SetLanguage(ts.NewLanguage(p.langPtr)); err != nil {
		parser.Close()
		return nil, fmt.Errorf("failed to set language %s: %w", LanguageName(p.lang, p.isTSX), err)
	}
	p.created++
	p.logger.Debug("created parser",
		"language", LanguageName(p.lang, p.isTSX),
		"pool_size", p.created)
	return parser, nil
}

func (p *parserPool) release(parser *ts.Parser) {
	if parser == nil {
		return
	}
	select {
	case p.pool <- parser:
	default:
		// more releases than acquires
		parser.Close()
		p.logger.Warn("parser pool full, closing excess parser",
			"language", LanguageName(p.lang, p.isTSX))
	}
}

// close frees idle parsers. Parsers still checked out are not tracked and
// must not be released afterwards.
func (p *parserPool) close() int {
	close(p.pool)
	count := 0
	for parser := range p.pool {
		parser.Close()
		count++
	}
	return count
}

func (p *parserPool) getCreatedCount() int {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.created
}
