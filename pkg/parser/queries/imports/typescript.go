package imports

// TSModuleSyntax is JSModuleSyntax for the TypeScript and TSX grammars.
// `import x = require("y")` has no source field and is not matched.
const TSModuleSyntax = `
(import_statement
  source: (string)) @esm.import

(export_statement) @esm.export
`

// TSRequires adds TypeScript's import-equals form to JSRequires.
//
// Captures:
//   - @require.source - the specifier text without quotes
const TSRequires = `
(call_expression
  function: (identifier) @_require (#eq? @_require "require")
  arguments: (arguments
    .
    (string (string_fragment) @require.source)
    .))

(import_require_clause
  (string (string_fragment) @require.source))
`
