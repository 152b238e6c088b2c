package cjs

import (
	"strconv"
	"strings"
	"unicode/utf16"

	ts "github.com/tree-sitter/go-tree-sitter"
)

// kind returns the node kind, or "" for a nil node.
func kind(n *ts.Node) string {
	if n == nil {
		return ""
	}
	return n.Kind()
}

// namedChildren returns the named children of n, skipping comments.
func namedChildren(n *ts.Node) []*ts.Node {
	if n == nil {
		return nil
	}
	count := n.NamedChildCount()
	out := make([]*ts.Node, 0, count)
	for i := uint(0); i < count; i++ {
		child := n.NamedChild(i)
		if child == nil || child.Kind() == "comment" {
			continue
		}
		out = append(out, child)
	}
	return out
}

// firstNamed returns the first non-comment named child of n.
func firstNamed(n *ts.Node) *ts.Node {
	if n == nil {
		return nil
	}
	count := n.NamedChildCount()
	for i := uint(0); i < count; i++ {
		child := n.NamedChild(i)
		if child != nil && child.Kind() != "comment" {
			return child
		}
	}
	return nil
}

// hasChildKind reports whether n has a direct child (named or anonymous) of
// the given kind. Used for keywords such as "async" and "static".
func hasChildKind(n *ts.Node, k string) bool {
	if n == nil {
		return false
	}
	count := n.ChildCount()
	for i := uint(0); i < count; i++ {
		if child := n.Child(i); child != nil && child.Kind() == k {
			return true
		}
	}
	return false
}

// operator returns the operator token of a unary, binary or augmented
// assignment expression.
func operator(n *ts.Node) string {
	if op := n.ChildByFieldName("operator"); op != nil {
		return op.Kind()
	}
	return ""
}

// unwrap strips parentheses and TypeScript-only expression wrappers that do
// not change the runtime value.
func unwrap(n *ts.Node) *ts.Node {
	for n != nil {
		switch n.Kind() {
		case "parenthesized_expression", "as_expression", "satisfies_expression",
			"non_null_expression", "type_assertion":
			inner := firstNamed(n)
			if inner == nil {
				return n
			}
			if n.Kind() == "type_assertion" {
				// <T>expr: the type comes first
				children := namedChildren(n)
				inner = children[len(children)-1]
			}
			n = inner
		default:
			return n
		}
	}
	return nil
}

// callArgs returns the argument expressions of a call_expression.
func callArgs(call *ts.Node) []*ts.Node {
	args := call.ChildByFieldName("arguments")
	if kind(args) != "arguments" {
		return nil
	}
	return namedChildren(args)
}

func isFunctionExpr(n *ts.Node) bool {
	switch kind(n) {
	case "function_expression", "function", "arrow_function":
		// async bodies run past their first await on a later tick
		return !hasChildKind(n, "async")
	}
	return false
}

// paramNames returns the bound identifier of each parameter of a function,
// keeping positions: a destructured parameter yields "".
func paramNames(fn *ts.Node, src []byte) []string {
	if p := fn.ChildByFieldName("parameter"); p != nil {
		return []string{identName(p, src)}
	}
	params := fn.ChildByFieldName("parameters")
	var names []string
	for _, p := range namedChildren(params) {
		names = append(names, identName(p, src))
	}
	return names
}

func identName(p *ts.Node, src []byte) string {
	switch kind(p) {
	case "identifier":
		return p.Utf8Text(src)
	case "assignment_pattern":
		return identName(p.ChildByFieldName("left"), src)
	case "required_parameter", "optional_parameter":
		return identName(p.ChildByFieldName("pattern"), src)
	}
	return ""
}

// jsStringValue decodes the body of a string or template literal (without
// its quotes). It reports false on malformed escapes.
func jsStringValue(raw string) (string, bool) {
	if !strings.Contains(raw, `\`) {
		return raw, true
	}
	var b strings.Builder
	b.Grow(len(raw))
	var pending rune = -1 // high surrogate waiting for its pair

	flush := func() {
		if pending >= 0 {
			b.WriteRune(utf16.DecodeRune(pending, 0))
			pending = -1
		}
	}
	emit := func(r rune) {
		if pending >= 0 {
			if utf16.IsSurrogate(r) && r >= 0xDC00 {
				b.WriteRune(utf16.DecodeRune(pending, r))
				pending = -1
				return
			}
			flush()
		}
		if r >= 0xD800 && r < 0xDC00 {
			pending = r
			return
		}
		b.WriteRune(r)
	}

	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if c != '\\' {
			flush()
			b.WriteByte(c)
			continue
		}
		i++
		if i >= len(raw) {
			return "", false
		}
		switch c = raw[i]; c {
		case 'n':
			emit('\n')
		case 'r':
			emit('\r')
		case 't':
			emit('\t')
		case 'b':
			emit('\b')
		case 'f':
			emit('\f')
		case 'v':
			emit('\v')
		case '0', '1', '2', '3', '4', '5', '6', '7':
			// legacy octal: up to three digits, at most \377
			v, width := rune(c-'0'), 2
			if c <= '3' {
				width = 3
			}
			for n := 1; n < width && i+1 < len(raw) && raw[i+1] >= '0' && raw[i+1] <= '7'; n++ {
				i++
				v = v*8 + rune(raw[i]-'0')
			}
			emit(v)
		case '\r':
			if i+1 < len(raw) && raw[i+1] == '\n' {
				i++
			}
		case '\n':
		case 'x':
			if i+2 >= len(raw) {
				return "", false
			}
			v, err := strconv.ParseUint(raw[i+1:i+3], 16, 8)
			if err != nil {
				return "", false
			}
			emit(rune(v))
			i += 2
		case 'u':
			var hex string
			if i+1 < len(raw) && raw[i+1] == '{' {
				end := strings.IndexByte(raw[i:], '}')
				if end < 0 {
					return "", false
				}
				hex = raw[i+2 : i+end]
				i += end
			} else {
				if i+4 >= len(raw) {
					return "", false
				}
				hex = raw[i+1 : i+5]
				i += 4
			}
			v, err := strconv.ParseUint(hex, 16, 32)
			if err != nil || v > 0x10FFFF {
				return "", false
			}
			emit(rune(v))
		default:
			flush()
			b.WriteByte(c)
		}
	}
	flush()
	return b.String(), true
}
