package cjs

import (
	"strconv"

	ts "github.com/tree-sitter/go-tree-sitter"
)

// truth is the static value of a guard.
type truth int8

const (
	unknown truth = iota
	truthy
	falsy
)

func (t truth) not() truth {
	switch t {
	case truthy:
		return falsy
	case falsy:
		return truthy
	}
	return unknown
}

// resolveIf descends into the branch selected by the if statement's test.
// An undecidable test selects neither branch.
func (l *lexer) resolveIf(stmt *ts.Node) {
	switch l.evalCondition(stmt.ChildByFieldName("condition")) {
	case truthy:
		l.visitBranch(stmt.ChildByFieldName("consequence"))
	case falsy:
		if alt := stmt.ChildByFieldName("alternative"); alt != nil {
			// else_clause wraps the statement; `else if` nests an if_statement
			if kind(alt) == "else_clause" {
				alt = firstNamed(alt)
			}
			l.visitBranch(alt)
		}
	}
}

func (l *lexer) visitBranch(n *ts.Node) {
	if kind(n) == "statement_block" {
		l.visitStatements(namedChildren(n))
		return
	}
	if n != nil {
		l.visitStatement(n)
	}
}

// visitTernary handles `test ? a : b` used as a statement.
func (l *lexer) visitTernary(e *ts.Node) {
	switch l.evalCondition(e.ChildByFieldName("condition")) {
	case truthy:
		l.visitExpression(e.ChildByFieldName("consequence"))
	case falsy:
		l.visitExpression(e.ChildByFieldName("alternative"))
	}
}

// visitLogical handles `a && b` and `a || b` used as statements.
func (l *lexer) visitLogical(e *ts.Node) {
	left := unwrap(e.ChildByFieldName("left"))
	right := e.ChildByFieldName("right")

	switch operator(e) {
	case "&&":
		// `0 && (module.exports = {...})` is the bundler annotation
		// naming exports that are defined through getters.
		if kind(left) == "number" && l.text(left) == "0" {
			l.visitExpression(right)
			return
		}
		if l.evalCondition(left) == truthy {
			l.visitExpression(right)
		}
	case "||":
		if l.evalCondition(left) == falsy {
			l.visitExpression(right)
			return
		}
		// exports.a || (exports.a = {}): a is set on both paths
		r := unwrap(right)
		if kind(r) != "assignment_expression" {
			return
		}
		target := unwrap(r.ChildByFieldName("left"))
		lobj, lkey, lok := l.memberKey(left)
		robj, rkey, rok := l.memberKey(target)
		if lok && rok && lkey == rkey && l.isExportRef(lobj) && l.isExportRef(robj) {
			l.visitAssignment(r)
		}
	}
}

// evalCondition statically evaluates a guard. Recognized terms are
// comparisons of string operands (literals, the environment label, typeof of
// a CommonJS binding), boolean and numeric literals, and !, && and ||.
func (l *lexer) evalCondition(n *ts.Node) truth {
	n = unwrap(n)
	switch kind(n) {
	case "true":
		return truthy
	case "false", "null", "undefined":
		return falsy
	case "number":
		v, err := strconv.ParseFloat(l.text(n), 64)
		if err != nil {
			return unknown
		}
		if v == 0 {
			return falsy
		}
		return truthy
	case "string", "template_string":
		if s, ok := l.stringValue(n); ok {
			if s == "" {
				return falsy
			}
			return truthy
		}
	case "unary_expression":
		switch operator(n) {
		case "!":
			return l.evalCondition(n.ChildByFieldName("argument")).not()
		case "void":
			return falsy
		}
	case "binary_expression":
		return l.evalBinary(n)
	}
	return unknown
}

func (l *lexer) evalBinary(n *ts.Node) truth {
	left := n.ChildByFieldName("left")
	right := n.ChildByFieldName("right")

	switch op := operator(n); op {
	case "&&":
		a := l.evalCondition(left)
		if a == falsy {
			return falsy
		}
		b := l.evalCondition(right)
		if a == truthy || b == falsy {
			return b
		}
		return unknown
	case "||":
		a := l.evalCondition(left)
		if a == truthy {
			return truthy
		}
		b := l.evalCondition(right)
		if a == falsy || b == truthy {
			return b
		}
		return unknown
	case "===", "==", "!==", "!=":
		lv, lok := l.staticString(left)
		rv, rok := l.staticString(right)
		if !lok || !rok {
			return unknown
		}
		eq := lv == rv
		if op == "!==" || op == "!=" {
			eq = !eq
		}
		if eq {
			return truthy
		}
		return falsy
	}
	return unknown
}

// staticString returns the value a guard operand has in every CommonJS
// execution with the configured environment label.
func (l *lexer) staticString(n *ts.Node) (string, bool) {
	n = unwrap(n)
	if s, ok := l.stringValue(n); ok {
		return s, true
	}
	if l.isNodeEnv(n) {
		return l.nodeEnv, true
	}
	if kind(n) == "unary_expression" && operator(n) == "typeof" {
		arg := unwrap(n.ChildByFieldName("argument"))
		switch {
		case l.isIdentNamed(arg, "exports") && l.canonical("exports"),
			l.isIdentNamed(arg, "module") && l.canonical("module"):
			return "object", true
		case l.isIdentNamed(arg, "require") && l.canonical("require"):
			return "function", true
		}
	}
	return "", false
}
