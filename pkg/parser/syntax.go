package parser

import (
	"fmt"
	"strings"

	ts "github.com/tree-sitter/go-tree-sitter"
)

// SyntaxError reports the first invalid construct of a module. Line and
// Column are 1-based; Column counts bytes.
type SyntaxError struct {
	Specifier string
	Line      int
	Column    int
	Message   string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s", e.Specifier, e.Line, e.Column, e.Message)
}

// maxSnippet bounds the source excerpt quoted in a message.
const maxSnippet = 24

// FindSyntaxError returns the first ERROR or MISSING node under root in
// document order, or nil when the tree is clean.
func FindSyntaxError(specifier string, root *ts.Node, source []byte) *SyntaxError {
	if root == nil || !root.HasError() {
		return nil
	}
	bad := firstErrorNode(root)
	if bad == nil {
		// HasError without a visible node: report the root
		bad = root
	}

	pos := bad.StartPosition()
	serr := &SyntaxError{
		Specifier: specifier,
		Line:      int(pos.Row) + 1,
		Column:    int(pos.Column) + 1,
	}
	switch {
	case bad.IsMissing():
		serr.Message = fmt.Sprintf("expected %q", bad.Kind())
	case bad.IsError():
		snippet := strings.TrimSpace(bad.Utf8Text(source))
		if i := strings.IndexAny(snippet, "\r\n"); i >= 0 {
			snippet = snippet[:i]
		}
		if r := []rune(snippet); len(r) > maxSnippet {
			snippet = string(r[:maxSnippet]) + "..."
		}
		if snippet == "" {
			serr.Message = "unexpected end of input"
		} else {
			serr.Message = fmt.Sprintf("unexpected %q", snippet)
		}
	default:
		serr.Message = "invalid syntax"
	}
	return serr
}

func firstErrorNode(n *ts.Node) *ts.Node {
	if n.IsError() || n.IsMissing() {
		return n
	}
	if !n.HasError() {
		return nil
	}
	count := n.ChildCount()
	for i := uint(0); i < count; i++ {
		child := n.Child(i)
		if child == nil {
			continue
		}
		if found := firstErrorNode(child); found != nil {
			return found
		}
	}
	return nil
}
