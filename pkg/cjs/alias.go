package cjs

import (
	ts "github.com/tree-sitter/go-tree-sitter"
)

// registerAlias adds name to the export binding set.
func (l *lexer) registerAlias(name string) {
	if name == "" {
		return
	}
	l.exportsAlias[name] = struct{}{}
}

// canonical reports whether the free name (module, exports or require)
// still refers to the CommonJS binding at the current wrapper depth.
func (l *lexer) canonical(name string) bool {
	for i := len(l.frames) - 1; i >= 0; i-- {
		if c, ok := l.frames[i].canonical[name]; ok {
			return c
		}
	}
	return true
}

// assignName handles `name = value` from an assignment. The free names
// module, exports, require and process are tracked per frame: writing to
// them inside a wrapper that does not declare them changes the outer binding.
func (l *lexer) assignName(name string, value *ts.Node, isConst bool) {
	if !isFreeName(name) {
		l.bind(name, value, isConst)
		return
	}
	l.setCanonical(name, l.stillCanonical(name, value))
}

// declareName handles `var name = value`. A declaration only shadows in the
// current frame.
func (l *lexer) declareName(name string, value *ts.Node, isConst bool) {
	if !isFreeName(name) {
		l.bind(name, value, isConst)
		return
	}
	l.frames[len(l.frames)-1].canonical[name] = l.stillCanonical(name, value)
}

func isFreeName(name string) bool {
	switch name {
	case "exports", "module", "require", "process":
		return true
	}
	return false
}

// stillCanonical reports whether binding name to value keeps the CommonJS
// meaning of name.
func (l *lexer) stillCanonical(name string, value *ts.Node) bool {
	switch name {
	case "exports":
		return l.isExportRef(value)
	case "module":
		return l.isModuleRef(value)
	}
	return l.isIdentNamed(value, name) && l.canonical(name)
}

// setCanonical updates the innermost frame that declares name, or the module
// frame.
func (l *lexer) setCanonical(name string, still bool) {
	target := l.frames[0]
	for i := len(l.frames) - 1; i >= 0; i-- {
		if _, ok := l.frames[i].canonical[name]; ok {
			target = l.frames[i]
			break
		}
	}
	target.canonical[name] = still
}

// detachExports marks every binding of exports that reached the old export
// object as stale after module.exports is replaced.
func (l *lexer) detachExports() {
	for i, f := range l.frames {
		if c, ok := f.canonical["exports"]; c || (!ok && i == 0) {
			f.canonical["exports"] = false
		}
	}
}

// isExportRef reports whether n evaluates to the module's export object.
func (l *lexer) isExportRef(n *ts.Node) bool {
	n = unwrap(n)
	switch kind(n) {
	case "identifier":
		name := l.text(n)
		if _, ok := l.exportsAlias[name]; ok {
			return true
		}
		return name == "exports" && l.canonical("exports")
	case "member_expression", "subscript_expression":
		return l.isModuleExports(n)
	case "assignment_expression":
		// (module.exports = {}) evaluates to the new export object
		return l.isModuleExports(unwrap(n.ChildByFieldName("left")))
	case "sequence_expression":
		// (0, exports)
		children := namedChildren(n)
		if len(children) == 0 {
			return false
		}
		return l.isExportRef(children[len(children)-1])
	}
	return false
}

// isModuleRef reports whether n is the module object.
func (l *lexer) isModuleRef(n *ts.Node) bool {
	n = unwrap(n)
	if kind(n) != "identifier" {
		return false
	}
	name := l.text(n)
	if _, ok := l.moduleAlias[name]; ok {
		return true
	}
	return name == "module" && l.canonical("module")
}

// isModuleExports reports whether n is module.exports (or module["exports"]).
func (l *lexer) isModuleExports(n *ts.Node) bool {
	obj, key, ok := l.memberKey(n)
	return ok && key == "exports" && l.isModuleRef(obj)
}

// memberKey splits a member or subscript expression into its object and a
// statically known property name.
func (l *lexer) memberKey(n *ts.Node) (*ts.Node, string, bool) {
	switch kind(n) {
	case "member_expression":
		prop := n.ChildByFieldName("property")
		if kind(prop) != "property_identifier" {
			return nil, "", false
		}
		return n.ChildByFieldName("object"), l.text(prop), true
	case "subscript_expression":
		index := unwrap(n.ChildByFieldName("index"))
		if s, ok := l.constString(index); ok {
			return n.ChildByFieldName("object"), s, true
		}
		if s, ok := l.numberKey(index); ok {
			return n.ChildByFieldName("object"), s, true
		}
	}
	return nil, "", false
}

// isProcessEnv reports whether n is process.env or an alias of it.
func (l *lexer) isProcessEnv(n *ts.Node) bool {
	n = unwrap(n)
	if kind(n) == "identifier" {
		_, ok := l.envObjAlias[l.text(n)]
		return ok
	}
	obj, key, ok := l.memberKey(n)
	if !ok || key != "env" {
		return false
	}
	return l.isIdentNamed(obj, "process") && l.canonical("process")
}

// isNodeEnv reports whether n reads the environment label.
func (l *lexer) isNodeEnv(n *ts.Node) bool {
	n = unwrap(n)
	if kind(n) == "identifier" {
		_, ok := l.envAlias[l.text(n)]
		return ok
	}
	obj, key, ok := l.memberKey(n)
	return ok && key == "NODE_ENV" && l.isProcessEnv(obj)
}

// bind records what a declaration or assignment `name = value` tells us
// about name. Any previous knowledge of name is replaced.
func (l *lexer) bind(name string, value *ts.Node, isConst bool) {
	if name == "" {
		return
	}
	delete(l.idents, name)

	v := unwrap(value)
	switch {
	case l.isExportRef(v):
		l.registerAlias(name)
		return
	case l.isModuleRef(v):
		l.moduleAlias[name] = struct{}{}
		return
	case l.isNodeEnv(v):
		l.envAlias[name] = struct{}{}
		return
	case l.isProcessEnv(v):
		l.envObjAlias[name] = struct{}{}
		return
	}

	if spec, ok := l.requireCall(v); ok {
		id := newIdent(identRequire)
		id.value = spec
		l.idents[name] = id
		return
	}

	switch kind(v) {
	case "string", "template_string":
		if s, ok := l.stringValue(v); ok && isConst {
			id := newIdent(identString)
			id.value = s
			l.idents[name] = id
		}
	case "object":
		id := newIdent(identObject)
		l.collectObject(v, id.props, id.spreads)
		l.idents[name] = id
	case "function_expression", "function", "arrow_function":
		id := newIdent(identFunc)
		id.fn = v
		l.idents[name] = id
	case "class":
		id := newIdent(identObject)
		l.collectStatics(v, id.props)
		l.idents[name] = id
	}
}

// bindEnvPattern handles `const { NODE_ENV } = process.env`.
func (l *lexer) bindEnvPattern(pattern *ts.Node) {
	for _, p := range namedChildren(pattern) {
		switch p.Kind() {
		case "shorthand_property_identifier_pattern":
			if name := l.text(p); name == "NODE_ENV" {
				l.envAlias[name] = struct{}{}
			}
		case "pair_pattern":
			key, ok := l.propertyKey(p.ChildByFieldName("key"))
			value := p.ChildByFieldName("value")
			if ok && key == "NODE_ENV" && kind(value) == "identifier" {
				l.envAlias[l.text(value)] = struct{}{}
			}
		}
	}
}
