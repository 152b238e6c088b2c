package cjs

import (
	ts "github.com/tree-sitter/go-tree-sitter"
)

// visitStatements visits a statement list in source order and reports
// whether a return statement at this level ended it. Function declarations
// are bound first since they are hoisted.
func (l *lexer) visitStatements(stmts []*ts.Node) bool {
	for _, stmt := range stmts {
		if stmt.Kind() == "function_declaration" {
			l.declareFunction(stmt)
		}
	}
	for _, stmt := range stmts {
		if stmt.Kind() == "return_statement" {
			return true
		}
		l.visitStatement(stmt)
	}
	return false
}

// visitStatement dispatches one statement. Shapes outside the catalogue,
// including loops, try blocks and switches, are inert.
func (l *lexer) visitStatement(stmt *ts.Node) {
	switch stmt.Kind() {
	case "expression_statement":
		l.visitExpression(firstNamed(stmt))
	case "variable_declaration", "lexical_declaration":
		l.visitDeclaration(stmt)
	case "class_declaration":
		l.declareClass(stmt)
	case "if_statement":
		l.resolveIf(stmt)
	case "statement_block":
		l.visitStatements(namedChildren(stmt))
	case "for_in_statement":
		l.visitForInCopy(stmt)
	}
}

// visitExpression dispatches an expression evaluated for its effects.
func (l *lexer) visitExpression(e *ts.Node) {
	e = unwrap(e)
	switch kind(e) {
	case "assignment_expression":
		l.visitAssignment(e)
	case "augmented_assignment_expression":
		l.visitAugmented(e)
	case "call_expression":
		l.visitCall(e)
	case "sequence_expression":
		for _, part := range namedChildren(e) {
			l.visitExpression(part)
		}
	case "binary_expression":
		l.visitLogical(e)
	case "ternary_expression":
		l.visitTernary(e)
	case "unary_expression":
		// !function () { ... }() and void function () { ... }()
		switch operator(e) {
		case "!", "void", "~", "+", "-":
			arg := unwrap(e.ChildByFieldName("argument"))
			if kind(arg) == "call_expression" {
				l.visitCall(arg)
			}
		}
	}
}

// visitDeclaration handles var, let and const declarations.
func (l *lexer) visitDeclaration(decl *ts.Node) {
	isConst := hasChildKind(decl, "const")
	for _, d := range namedChildren(decl) {
		if d.Kind() != "variable_declarator" {
			continue
		}
		value := d.ChildByFieldName("value")
		if value == nil {
			continue
		}
		// var a = exports.a = ...
		if v := unwrap(value); kind(v) == "assignment_expression" {
			l.visitAssignment(v)
		}
		name := d.ChildByFieldName("name")
		switch kind(name) {
		case "identifier":
			l.declareName(l.text(name), value, isConst)
		case "object_pattern":
			if l.isProcessEnv(value) {
				l.bindEnvPattern(name)
			}
		}
	}
}
