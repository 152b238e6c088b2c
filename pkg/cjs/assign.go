package cjs

import (
	ts "github.com/tree-sitter/go-tree-sitter"
)

// visitAssignment handles `target = value`.
func (l *lexer) visitAssignment(e *ts.Node) {
	left := unwrap(e.ChildByFieldName("left"))
	right := e.ChildByFieldName("right")
	inner := unwrap(right)
	chained := kind(inner) == "assignment_expression"

	switch kind(left) {
	case "identifier":
		// `exports = x` only rebinds the local name; module.exports is untouched
		if !chained {
			l.assignName(l.text(left), right, false)
		}
	case "object_pattern", "array_pattern":
		l.visitPatternTargets(left)
	case "member_expression", "subscript_expression":
		if l.isModuleExports(left) {
			l.assignExportObject(right)
			break
		}
		l.assignMember(left)
	}

	if !chained {
		return
	}
	// a = b = value: the inner assignments run too
	l.visitAssignment(inner)
	switch {
	case kind(left) == "identifier":
		// bound once the inner writes are done
		l.assignName(l.text(left), right, false)
	case l.isModuleExports(left) && l.chainAssigns(inner, "exports"):
		// module.exports = exports = {...} leaves both on the same object
		l.setCanonical("exports", true)
	}
}

// chainAssigns reports whether an assignment chain writes the identifier name.
func (l *lexer) chainAssigns(e *ts.Node, name string) bool {
	for kind(e) == "assignment_expression" {
		if l.isIdentNamed(e.ChildByFieldName("left"), name) {
			return true
		}
		e = unwrap(e.ChildByFieldName("right"))
	}
	return false
}

// assignMember records `<export-ref>.name = ...` and property writes on
// tracked bindings.
func (l *lexer) assignMember(target *ts.Node) {
	obj, key, ok := l.memberKey(target)
	if !ok {
		return
	}
	if l.isExportRef(obj) {
		l.addExport(key)
		return
	}
	obj = unwrap(obj)
	if kind(obj) != "identifier" {
		return
	}
	if id := l.idents[l.text(obj)]; id != nil && id.kind != identString {
		id.props.add(key)
	}
}

// visitAugmented handles `exports.a += 1` and `exports.a ||= {}`. Every
// operator except &&= leaves the property set.
func (l *lexer) visitAugmented(e *ts.Node) {
	if operator(e) == "&&=" {
		return
	}
	left := unwrap(e.ChildByFieldName("left"))
	switch kind(left) {
	case "member_expression", "subscript_expression":
		if !l.isModuleExports(left) {
			l.assignMember(left)
		}
	}
}

// visitPatternTargets records export members used as destructuring
// targets, as in `({ a: exports.a } = obj)`.
func (l *lexer) visitPatternTargets(pattern *ts.Node) {
	for _, p := range namedChildren(pattern) {
		var target *ts.Node
		switch p.Kind() {
		case "pair_pattern":
			target = p.ChildByFieldName("value")
		case "assignment_pattern", "object_assignment_pattern":
			target = p.ChildByFieldName("left")
		case "rest_pattern":
			target = firstNamed(p)
		default:
			target = p
		}
		target = unwrap(target)
		switch kind(target) {
		case "member_expression", "subscript_expression":
			if !l.isModuleExports(target) {
				l.assignMember(target)
			}
		case "object_pattern", "array_pattern":
			l.visitPatternTargets(target)
		}
	}
}

// visitCall dispatches call expressions: property definition helpers,
// star-export helpers, key-copy loops and wrapper invocations.
func (l *lexer) visitCall(call *ts.Node) {
	fn := call.ChildByFieldName("function")
	args := callArgs(call)

	switch {
	case l.isObjectMethod(fn, "defineProperty"):
		l.defineProperty(args)
		return
	case l.isObjectMethod(fn, "defineProperties"):
		l.defineProperties(args)
		return
	case l.isObjectMethod(fn, "assign"):
		l.objectAssign(args)
		return
	}

	if l.visitHelperReexport(l.helperName(fn), args) {
		return
	}
	if l.visitKeyCopy(call) {
		return
	}
	if !l.callMode {
		return
	}
	if target, bound, ok := l.wrapperTarget(call); ok {
		l.descend(target, bound)
	}
}

// defineProperty handles Object.defineProperty(target, "name", descriptor).
// The descriptor is not inspected, except for module.exports replacement.
func (l *lexer) defineProperty(args []*ts.Node) {
	if len(args) < 2 {
		return
	}
	key, ok := l.constString(args[1])
	if !ok {
		return
	}
	target := unwrap(args[0])
	switch {
	case l.isExportRef(target):
		l.addExport(key)
	case l.isModuleRef(target) && key == "exports":
		if len(args) < 3 {
			return
		}
		desc := unwrap(args[2])
		if kind(desc) != "object" {
			return
		}
		for _, prop := range namedChildren(desc) {
			if prop.Kind() != "pair" {
				continue
			}
			if k, ok := l.propertyKey(prop.ChildByFieldName("key")); ok && k == "value" {
				l.assignExportObject(prop.ChildByFieldName("value"))
			}
		}
	case kind(target) == "identifier":
		if id := l.idents[l.text(target)]; id != nil && id.kind != identString {
			id.props.add(key)
		}
	}
}

// defineProperties handles Object.defineProperties(target, { a: {...} }).
func (l *lexer) defineProperties(args []*ts.Node) {
	if len(args) < 2 || !l.isExportRef(args[0]) {
		return
	}
	props := unwrap(args[1])
	if kind(props) != "object" {
		return
	}
	// spreads of require-like calls name modules, not descriptors
	l.collectObject(props, l.exports, newOrderedSet())
}

// objectAssign handles Object.assign(<export-ref>, ...sources).
func (l *lexer) objectAssign(args []*ts.Node) {
	if len(args) < 2 || !l.isExportRef(args[0]) {
		return
	}
	for _, src := range args[1:] {
		src = unwrap(src)
		if spec, ok := l.requireSource(src); ok {
			l.addReexport(spec)
			continue
		}
		switch kind(src) {
		case "object":
			l.collectObject(src, l.exports, l.reexports)
		case "identifier":
			if id := l.idents[l.text(src)]; id != nil && id.kind == identObject {
				l.exports.merge(id.props)
				l.reexports.merge(id.spreads)
			}
		}
	}
}
