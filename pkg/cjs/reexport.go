package cjs

import (
	ts "github.com/tree-sitter/go-tree-sitter"
)

// requireCall returns the specifier of `require("specifier")`.
func (l *lexer) requireCall(n *ts.Node) (string, bool) {
	n = unwrap(n)
	if kind(n) != "call_expression" {
		return "", false
	}
	fn := unwrap(n.ChildByFieldName("function"))
	if kind(fn) != "identifier" || l.text(fn) != "require" || !l.canonical("require") {
		return "", false
	}
	args := callArgs(n)
	if len(args) != 1 {
		return "", false
	}
	return l.stringValue(args[0])
}

// requireSource resolves a require-like call or a binding to one.
func (l *lexer) requireSource(n *ts.Node) (string, bool) {
	n = unwrap(n)
	if spec, ok := l.requireCall(n); ok {
		return spec, true
	}
	if kind(n) == "identifier" {
		if id := l.idents[l.text(n)]; id != nil && id.kind == identRequire {
			return id.value, true
		}
	}
	return "", false
}

// helperName returns the function name of a helper call, seeing through
// `ns.helper` and `(0, ns.helper)`.
func (l *lexer) helperName(fn *ts.Node) string {
	fn = unwrap(fn)
	if kind(fn) == "sequence_expression" {
		children := namedChildren(fn)
		if len(children) == 0 {
			return ""
		}
		fn = unwrap(children[len(children)-1])
	}
	switch kind(fn) {
	case "identifier":
		return l.text(fn)
	case "member_expression":
		if _, key, ok := l.memberKey(fn); ok {
			return key
		}
	}
	return ""
}

// visitHelperReexport matches the star-export helpers emitted by
// TypeScript, tslib and swc.
func (l *lexer) visitHelperReexport(name string, args []*ts.Node) bool {
	switch name {
	case "__exportStar", "_export_star", "__reExport":
		if len(args) < 2 {
			return false
		}
		for i, j := 0, 1; i < 2; i, j = i+1, j-1 {
			if spec, ok := l.requireSource(args[i]); ok && l.isExportRef(args[j]) {
				l.addReexport(spec)
				return true
			}
		}
	case "__export":
		if len(args) == 1 {
			if spec, ok := l.requireSource(args[0]); ok {
				l.addReexport(spec)
				return true
			}
		}
	}
	return false
}

// visitKeyCopy matches
//
//	Object.keys(require("x")).forEach(function (k) {
//	  Object.defineProperty(exports, k, { enumerable: true, get: ... })
//	})
//
// and records "x" as a re-export.
func (l *lexer) visitKeyCopy(call *ts.Node) bool {
	callee := unwrap(call.ChildByFieldName("function"))
	obj, method, ok := l.memberKey(callee)
	if !ok || (method != "forEach" && method != "map") {
		return false
	}
	keysCall := unwrap(obj)
	if kind(keysCall) != "call_expression" || !l.isObjectMethod(keysCall.ChildByFieldName("function"), "keys") {
		return false
	}
	keysArgs := callArgs(keysCall)
	if len(keysArgs) != 1 {
		return false
	}
	spec, ok := l.requireSource(keysArgs[0])
	if !ok {
		return false
	}
	args := callArgs(call)
	if len(args) == 0 {
		return false
	}
	cb := unwrap(args[0])
	if !isFunctionExpr(cb) {
		return false
	}
	params := paramNames(cb, l.src)
	if len(params) == 0 || params[0] == "" {
		return false
	}
	body := cb.ChildByFieldName("body")
	var copies bool
	if kind(body) == "statement_block" {
		copies = l.copiesKey(namedChildren(body), params[0], 0)
	} else {
		copies = l.isKeyCopy(body, params[0])
	}
	if copies {
		l.addReexport(spec)
	}
	return copies
}

// visitForInCopy matches `for (var k in _x) exports[k] = _x[k]` where _x is
// a require-like binding.
func (l *lexer) visitForInCopy(stmt *ts.Node) {
	if operator(stmt) == "of" {
		return
	}
	spec, ok := l.requireSource(stmt.ChildByFieldName("right"))
	if !ok {
		return
	}
	left := unwrap(stmt.ChildByFieldName("left"))
	if kind(left) != "identifier" {
		return
	}
	if l.copiesKey([]*ts.Node{stmt.ChildByFieldName("body")}, l.text(left), 0) {
		l.addReexport(spec)
	}
}

// copiesKey reports whether the statements copy the iteration key onto the
// export object, looking through blocks and if statements.
func (l *lexer) copiesKey(stmts []*ts.Node, key string, depth int) bool {
	if depth > 2 {
		return false
	}
	for _, stmt := range stmts {
		switch kind(stmt) {
		case "expression_statement":
			if l.isKeyCopy(firstNamed(stmt), key) {
				return true
			}
		case "statement_block":
			if l.copiesKey(namedChildren(stmt), key, depth+1) {
				return true
			}
		case "if_statement":
			branches := []*ts.Node{stmt.ChildByFieldName("consequence")}
			if alt := stmt.ChildByFieldName("alternative"); alt != nil {
				branches = append(branches, firstNamed(alt))
			}
			if l.copiesKey(branches, key, depth+1) {
				return true
			}
		}
	}
	return false
}

// isKeyCopy matches `Object.defineProperty(<export-ref>, key, ...)` and
// `<export-ref>[key] = ...`.
func (l *lexer) isKeyCopy(e *ts.Node, key string) bool {
	e = unwrap(e)
	switch kind(e) {
	case "call_expression":
		if !l.isObjectMethod(e.ChildByFieldName("function"), "defineProperty") {
			return false
		}
		args := callArgs(e)
		return len(args) >= 2 && l.isExportRef(args[0]) && l.isIdentNamed(args[1], key)
	case "assignment_expression":
		left := unwrap(e.ChildByFieldName("left"))
		return kind(left) == "subscript_expression" &&
			l.isExportRef(left.ChildByFieldName("object")) &&
			l.isIdentNamed(left.ChildByFieldName("index"), key)
	}
	return false
}

func (l *lexer) isIdentNamed(n *ts.Node, name string) bool {
	n = unwrap(n)
	return kind(n) == "identifier" && l.text(n) == name
}

// isObjectMethod reports whether fn is Object.<method>.
func (l *lexer) isObjectMethod(fn *ts.Node, method string) bool {
	obj, key, ok := l.memberKey(unwrap(fn))
	if !ok || key != method {
		return false
	}
	obj = unwrap(obj)
	return kind(obj) == "identifier" && l.text(obj) == "Object"
}

// wrapperTarget returns the function a call invokes immediately, and the
// arguments bound to its parameters.
func (l *lexer) wrapperTarget(call *ts.Node) (*ts.Node, []*ts.Node, bool) {
	callee := unwrap(call.ChildByFieldName("function"))
	args := callArgs(call)

	if isFunctionExpr(callee) {
		return callee, args, true
	}
	if obj, method, ok := l.memberKey(callee); ok {
		fn := unwrap(obj)
		if !isFunctionExpr(fn) {
			return nil, nil, false
		}
		switch method {
		case "call":
			if len(args) > 0 {
				args = args[1:]
			}
			return fn, args, true
		case "apply":
			var list []*ts.Node
			if len(args) > 1 && kind(unwrap(args[1])) == "array" {
				list = namedChildren(unwrap(args[1]))
			}
			return fn, list, true
		}
		return nil, nil, false
	}
	if kind(callee) == "identifier" {
		if fn := l.factory(l.text(callee)); fn != nil {
			return fn, args, true
		}
	}
	return nil, nil, false
}

// factory returns the function expression bound to a wrapper parameter.
func (l *lexer) factory(name string) *ts.Node {
	for i := len(l.frames) - 1; i >= 0; i-- {
		if _, ok := l.frames[i].canonical[name]; ok {
			return nil
		}
		if fn, ok := l.frames[i].factories[name]; ok {
			return fn
		}
	}
	return nil
}

// descend analyzes the body of an invoked wrapper as if it were inlined.
func (l *lexer) descend(fn *ts.Node, args []*ts.Node) {
	if len(l.frames) > maxWrapperDepth || l.active[fn.Id()] {
		return
	}
	f := newFrame()
	for i, name := range paramNames(fn, l.src) {
		if name == "" {
			continue
		}
		var arg *ts.Node
		if i < len(args) {
			arg = unwrap(args[i])
		}
		switch name {
		case "exports":
			f.canonical[name] = arg != nil && l.isExportRef(arg)
			continue
		case "module":
			f.canonical[name] = arg != nil && l.isModuleRef(arg)
			continue
		case "require", "process":
			f.canonical[name] = arg != nil && l.isIdentNamed(arg, name) && l.canonical(name)
			continue
		}
		switch {
		case arg == nil:
		case l.isExportRef(arg):
			l.registerAlias(name)
		case l.isModuleRef(arg):
			l.moduleAlias[name] = struct{}{}
		case isFunctionExpr(arg):
			f.factories[name] = arg
		}
	}

	l.frames = append(l.frames, f)
	l.active[fn.Id()] = true
	defer func() {
		l.frames = l.frames[:len(l.frames)-1]
		delete(l.active, fn.Id())
	}()

	body := fn.ChildByFieldName("body")
	if kind(body) == "statement_block" {
		hoistFreeNames(f, body, l.src)
		f.returned = l.visitStatements(namedChildren(body))
		return
	}
	l.visitExpression(body)
}

// hoistFreeNames shadows module, exports, require and process in f for the
// whole body when the body declares them itself.
func hoistFreeNames(f *frame, body *ts.Node, src []byte) {
	for _, stmt := range namedChildren(body) {
		var names []*ts.Node
		switch stmt.Kind() {
		case "variable_declaration", "lexical_declaration":
			for _, d := range namedChildren(stmt) {
				if d.Kind() == "variable_declarator" {
					names = append(names, d.ChildByFieldName("name"))
				}
			}
		case "function_declaration", "class_declaration":
			names = append(names, stmt.ChildByFieldName("name"))
		}
		for _, n := range names {
			if kind(n) != "identifier" {
				continue
			}
			name := n.Utf8Text(src)
			if _, declared := f.canonical[name]; isFreeName(name) && !declared {
				f.canonical[name] = false
			}
		}
	}
}

// assignCallResult handles `module.exports = fn()` in call mode: the keys of
// the object literal fn returns become named exports.
func (l *lexer) assignCallResult(call *ts.Node) {
	fn, _, ok := l.wrapperTarget(call)
	if !ok {
		callee := unwrap(call.ChildByFieldName("function"))
		if kind(callee) != "identifier" {
			return
		}
		id := l.idents[l.text(callee)]
		if id == nil || id.kind != identFunc {
			return
		}
		fn = id.fn
	}
	if hasChildKind(fn, "async") || hasChildKind(fn, "*") {
		return
	}

	body := fn.ChildByFieldName("body")
	if kind(body) != "statement_block" {
		l.assignReturned(body)
		return
	}
	for _, stmt := range namedChildren(body) {
		if stmt.Kind() == "return_statement" {
			l.assignReturned(firstNamed(stmt))
			return
		}
		// an earlier conditional return may produce another value
		if containsReturn(stmt) {
			return
		}
	}
}

// containsReturn reports whether n holds a return statement outside nested
// functions.
func containsReturn(n *ts.Node) bool {
	if n.Kind() == "return_statement" {
		return true
	}
	switch n.Kind() {
	case "function_expression", "function", "function_declaration", "arrow_function",
		"generator_function", "generator_function_declaration", "method_definition", "class", "class_declaration":
		return false
	}
	for _, c := range namedChildren(n) {
		if containsReturn(c) {
			return true
		}
	}
	return false
}

func (l *lexer) assignReturned(value *ts.Node) {
	v := unwrap(value)
	if spec, ok := l.requireSource(v); ok {
		l.addReexport(spec)
		return
	}
	switch kind(v) {
	case "object":
		l.collectObject(v, l.exports, l.reexports)
	case "identifier":
		if id := l.idents[l.text(v)]; id != nil && id.kind == identObject {
			l.exports.merge(id.props)
			l.reexports.merge(id.spreads)
		}
	}
}
