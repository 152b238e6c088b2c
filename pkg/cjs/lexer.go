package cjs

import (
	ts "github.com/tree-sitter/go-tree-sitter"
)

type identKind int

const (
	identString identKind = iota
	identRequire
	identObject
	identFunc
)

// ident is what the lexer knows about a top-level binding.
type ident struct {
	kind identKind

	// value is the literal for identString and the specifier for identRequire.
	value string

	// props are own keys known to be set on an object, function or class.
	props *orderedSet

	// spreads are specifiers spread into an object literal.
	spreads *orderedSet

	// fn is the function node for identFunc bindings.
	fn *ts.Node
}

func newIdent(k identKind) *ident {
	return &ident{kind: k, props: newOrderedSet(), spreads: newOrderedSet()}
}

// frame is the state of the module body or of one wrapper body being
// analyzed.
type frame struct {
	// returned is set once a return statement ends the body's top level.
	returned bool

	// canonical maps a parameter named module, exports or require to whether
	// it still denotes the CommonJS binding of that name.
	canonical map[string]bool

	// factories maps parameters bound to function-expression arguments.
	factories map[string]*ts.Node
}

// lexer is the per-call analysis context shared by every matcher.
type lexer struct {
	src      []byte
	nodeEnv  string
	callMode bool

	// exportsAlias is the export binding set. It never shrinks.
	exportsAlias map[string]struct{}
	moduleAlias  map[string]struct{}
	envAlias     map[string]struct{} // names holding process.env.NODE_ENV
	envObjAlias  map[string]struct{} // names holding process.env
	idents       map[string]*ident

	exports   *orderedSet
	reexports *orderedSet

	frames []*frame
	active map[uintptr]bool // function bodies currently being descended
}

func newLexer(src []byte, opts Options) *lexer {
	return &lexer{
		src:          src,
		nodeEnv:      opts.NodeEnv,
		callMode:     opts.CallMode,
		exportsAlias: make(map[string]struct{}),
		moduleAlias:  make(map[string]struct{}),
		envAlias:     make(map[string]struct{}),
		envObjAlias:  make(map[string]struct{}),
		idents:       make(map[string]*ident),
		exports:      newOrderedSet(),
		reexports:    newOrderedSet(),
		frames:       []*frame{newFrame()},
		active:       make(map[uintptr]bool),
	}
}

// newFrame returns an empty frame. frames[0] is the module body itself.
func newFrame() *frame {
	return &frame{
		canonical: make(map[string]bool),
		factories: make(map[string]*ts.Node),
	}
}

func (l *lexer) text(n *ts.Node) string {
	if n == nil {
		return ""
	}
	return n.Utf8Text(l.src)
}

func (l *lexer) addExport(name string) {
	l.exports.add(name)
}

func (l *lexer) addReexport(specifier string) {
	l.reexports.add(specifier)
}

// stringValue returns the value of a string literal or a template literal
// without substitutions.
func (l *lexer) stringValue(n *ts.Node) (string, bool) {
	n = unwrap(n)
	switch kind(n) {
	case "string":
		raw := l.text(n)
		if len(raw) < 2 {
			return "", false
		}
		return jsStringValue(raw[1 : len(raw)-1])
	case "template_string":
		for _, c := range namedChildren(n) {
			if c.Kind() == "template_substitution" {
				return "", false
			}
		}
		raw := l.text(n)
		if len(raw) < 2 {
			return "", false
		}
		return jsStringValue(raw[1 : len(raw)-1])
	}
	return "", false
}

// constString resolves a string literal or a const binding to one.
func (l *lexer) constString(n *ts.Node) (string, bool) {
	n = unwrap(n)
	if s, ok := l.stringValue(n); ok {
		return s, true
	}
	if kind(n) == "identifier" {
		if id := l.idents[l.text(n)]; id != nil && id.kind == identString {
			return id.value, true
		}
	}
	return "", false
}

// numberKey returns the property key of a plain decimal integer literal.
func (l *lexer) numberKey(n *ts.Node) (string, bool) {
	if kind(n) != "number" {
		return "", false
	}
	s := l.text(n)
	if s == "" || (len(s) > 1 && s[0] == '0') {
		return "", false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return "", false
		}
	}
	return s, true
}
