package queries

import (
	ts "github.com/tree-sitter/go-tree-sitter"

	"github.com/gnana997/cjslexer/pkg/parser"
)

// Format is the module system a file is written for.
type Format string

const (
	FormatCommonJS Format = "commonjs"
	FormatESM      Format = "esm"
	// FormatMixed marks files with ES module syntax that also assign
	// CommonJS exports, typically half-migrated sources.
	FormatMixed Format = "mixed"
)

// ModuleInfo summarizes the module-level syntax of a file.
type ModuleInfo struct {
	HasImport bool
	HasExport bool

	// Requires are the literal require specifiers in first-seen order.
	Requires []Dependency
}

// Dependency is one require call.
type Dependency struct {
	Specifier string   `json:"specifier"`
	Location  Location `json:"location"`
}

// IsESM reports whether the file uses import or export declarations.
func (m ModuleInfo) IsESM() bool {
	return m.HasImport || m.HasExport
}

// ClassifyFormat combines module syntax with the CommonJS analysis result.
func ClassifyFormat(info ModuleInfo, cjsNames int) Format {
	switch {
	case info.IsESM() && cjsNames > 0:
		return FormatMixed
	case info.IsESM():
		return FormatESM
	default:
		return FormatCommonJS
	}
}

// ModuleSyntax runs the module-syntax and requires queries over tree.
func (qm *QueryManager) ModuleSyntax(tree *ts.Tree, lang parser.Language, isTSX bool, source []byte) (ModuleInfo, error) {
	var info ModuleInfo

	syntax, err := qm.GetQuery(lang, isTSX, QueryTypeModuleSyntax)
	if err != nil {
		return info, err
	}
	matches, err := qm.ExecuteQuery(tree, syntax, source)
	if err != nil {
		return info, err
	}
	for _, m := range matches {
		for _, c := range m.Captures {
			switch c.Name {
			case "esm.import":
				info.HasImport = true
			case "esm.export":
				// TypeScript `export = value` compiles to module.exports
				if !isExportAssignment(c.Node) {
					info.HasExport = true
				}
			}
		}
	}

	requires, err := qm.GetQuery(lang, isTSX, QueryTypeRequires)
	if err != nil {
		return info, err
	}
	matches, err = qm.ExecuteQuery(tree, requires, source)
	if err != nil {
		return info, err
	}
	seen := make(map[string]bool)
	for _, m := range matches {
		for _, c := range m.Captures {
			if c.Name != "require.source" || seen[c.Text] {
				continue
			}
			seen[c.Text] = true
			info.Requires = append(info.Requires, Dependency{Specifier: c.Text, Location: c.Location})
		}
	}
	return info, nil
}

func isExportAssignment(n *ts.Node) bool {
	if n == nil || n.ChildCount() < 2 {
		return false
	}
	second := n.Child(1)
	return second != nil && second.Kind() == "="
}
