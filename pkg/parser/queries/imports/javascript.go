// Package imports holds the tree-sitter query sources used to classify a
// module's format and list its require dependencies.
//
// Capture names follow "category.field". Captures starting with "_" only
// feed predicates.
package imports

// JSModuleSyntax matches ES module syntax. A JavaScript file with any match
// is not plain CommonJS.
//
// Captures:
//   - @esm.import - import declarations with a source
//   - @esm.export - export declarations of any form
const JSModuleSyntax = `
(import_statement
  source: (string)) @esm.import

(export_statement) @esm.export
`

// JSRequires matches require calls with a single string literal argument.
// Dynamic specifiers are not dependencies that can be resolved statically.
//
// Captures:
//   - @require.source - the specifier text without quotes
const JSRequires = `
(call_expression
  function: (identifier) @_require (#eq? @_require "require")
  arguments: (arguments
    .
    (string (string_fragment) @require.source)
    .))
`
