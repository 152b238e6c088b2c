package cjs

import (
	ts "github.com/tree-sitter/go-tree-sitter"
)

// propertyKey returns the statically known name of an object literal key.
// Computed keys count only when they are string literals.
func (l *lexer) propertyKey(key *ts.Node) (string, bool) {
	switch kind(key) {
	case "property_identifier", "identifier":
		return l.text(key), true
	case "string":
		return l.stringValue(key)
	case "number":
		return l.numberKey(key)
	case "computed_property_name":
		return l.stringValue(firstNamed(key))
	}
	return "", false
}

// collectObject enumerates the own keys of an object literal into names and
// the specifiers of require-like spreads into reexports.
func (l *lexer) collectObject(obj *ts.Node, names, reexports *orderedSet) {
	for _, prop := range namedChildren(obj) {
		switch prop.Kind() {
		case "pair":
			keyNode := prop.ChildByFieldName("key")
			key, ok := l.propertyKey(keyNode)
			if !ok {
				continue
			}
			// {__proto__: x} sets the prototype, not an own property
			if key == "__proto__" && kind(keyNode) != "computed_property_name" {
				continue
			}
			names.add(key)
		case "shorthand_property_identifier":
			names.add(l.text(prop))
		case "method_definition":
			if key, ok := l.propertyKey(prop.ChildByFieldName("name")); ok {
				names.add(key)
			}
		case "spread_element":
			l.collectSpread(firstNamed(prop), names, reexports)
		}
	}
}

// collectSpread handles `...source` inside an object literal. Sources other
// than require-like calls and known bindings are ignored.
func (l *lexer) collectSpread(source *ts.Node, names, reexports *orderedSet) {
	source = unwrap(source)
	if spec, ok := l.requireSource(source); ok {
		reexports.add(spec)
		return
	}
	if kind(source) == "object" {
		l.collectObject(source, names, reexports)
		return
	}
	if kind(source) == "identifier" {
		if id := l.idents[l.text(source)]; id != nil && id.kind == identObject {
			names.merge(id.props)
			reexports.merge(id.spreads)
		}
	}
}

// collectStatics records the static members of a class body.
func (l *lexer) collectStatics(class *ts.Node, names *orderedSet) {
	body := class.ChildByFieldName("body")
	for _, member := range namedChildren(body) {
		if !hasChildKind(member, "static") {
			continue
		}
		var keyNode *ts.Node
		switch member.Kind() {
		case "method_definition":
			keyNode = member.ChildByFieldName("name")
		case "field_definition", "public_field_definition":
			keyNode = member.ChildByFieldName("property")
			if keyNode == nil {
				keyNode = member.ChildByFieldName("name")
			}
		}
		if key, ok := l.propertyKey(keyNode); ok {
			names.add(key)
		}
	}
}

// declareFunction binds a hoisted function declaration.
func (l *lexer) declareFunction(decl *ts.Node) {
	name := l.text(decl.ChildByFieldName("name"))
	if name == "" {
		return
	}
	id := newIdent(identFunc)
	id.fn = decl
	l.idents[name] = id
}

// declareClass binds a class declaration with its static members.
func (l *lexer) declareClass(decl *ts.Node) {
	name := l.text(decl.ChildByFieldName("name"))
	if name == "" {
		return
	}
	id := newIdent(identObject)
	l.collectStatics(decl, id.props)
	l.idents[name] = id
}

// assignExportObject handles `module.exports = value`, the wholesale
// replacement of the export object.
func (l *lexer) assignExportObject(value *ts.Node) {
	v := finalValue(value)
	if !l.isExportRef(v) {
		l.detachExports()
	}

	if spec, ok := l.requireCall(v); ok {
		l.addReexport(spec)
		return
	}

	switch kind(v) {
	case "object":
		l.collectObject(v, l.exports, l.reexports)
	case "class":
		l.collectStatics(v, l.exports)
	case "identifier":
		name := l.text(v)
		if id := l.idents[name]; id != nil {
			switch id.kind {
			case identString:
				return
			case identRequire:
				l.addReexport(id.value)
			}
			l.exports.merge(id.props)
			l.reexports.merge(id.spreads)
		}
		// the binding now is the export object
		if !l.isExportRef(v) {
			l.registerAlias(name)
		}
	case "call_expression":
		if l.callMode {
			l.assignCallResult(v)
		}
	}
}

// finalValue follows an assignment chain `a = b = value` to value.
func finalValue(n *ts.Node) *ts.Node {
	n = unwrap(n)
	for kind(n) == "assignment_expression" {
		n = unwrap(n.ChildByFieldName("right"))
	}
	return n
}
