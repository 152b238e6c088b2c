// Package cjs detects the named exports and re-exports of a CommonJS module
// from its syntax tree, without executing it.
//
// Analyze makes a single pass over the top-level statements of a parsed
// module and recognizes a fixed catalogue of export-producing patterns:
//
//	exports.a = 1                       // named export "a"
//	module.exports = { b, c: 2 }        // named exports "b", "c"
//	Object.defineProperty(exports, "d") // named export "d"
//	module.exports = require("./e")     // re-export "./e"
//
// Conditionals guarded by process.env.NODE_ENV are resolved against
// Options.NodeEnv; self-invoking wrappers are entered only when
// Options.CallMode is set. Anything outside the catalogue is ignored, so the
// result may miss exports but never reports a name the module does not set.
//
// Each call builds its own state; Analyze is safe for concurrent use on
// different (or the same, read-only) trees.
package cjs

import (
	ts "github.com/tree-sitter/go-tree-sitter"
)

// DefaultNodeEnv is the environment label used when Options.NodeEnv is empty.
const DefaultNodeEnv = "production"

// maxWrapperDepth bounds nested wrapper descent.
const maxWrapperDepth = 16

// Options configures one analysis.
type Options struct {
	// NodeEnv is compared against process.env.NODE_ENV guards.
	NodeEnv string `json:"nodeEnv"`

	// CallMode enables analysis inside self-invoking function wrappers
	// and of call results assigned to module.exports.
	CallMode bool `json:"callMode"`
}

// DefaultOptions returns the options used when the caller supplies none.
func DefaultOptions() Options {
	return Options{NodeEnv: DefaultNodeEnv}
}

func (o Options) withDefaults() Options {
	if o.NodeEnv == "" {
		o.NodeEnv = DefaultNodeEnv
	}
	return o
}

// Result holds the detected names in first-discovered order.
type Result struct {
	// Exports are the statically known own properties of module.exports.
	Exports []string `json:"exports"`

	// Reexports are module specifiers whose exports are forwarded wholesale.
	Reexports []string `json:"reexports"`
}

// Analyze runs the export detection over root, the program node of a
// parsed module, whose text is source.
func Analyze(root *ts.Node, source []byte, opts Options) Result {
	l := newLexer(source, opts.withDefaults())
	if root != nil {
		l.visitStatements(namedChildren(root))
	}
	return Result{
		Exports:   l.exports.values(),
		Reexports: l.reexports.values(),
	}
}
