package parser

import (
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, opts ...Option) *ParserManager {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	manager := NewParserManager(logger, opts...)
	t.Cleanup(func() { manager.Close() })
	return manager
}

func TestParseJavaScript(t *testing.T) {
	manager := newTestManager(t)

	tree, err := manager.Parse([]byte(`exports.a = require("./a");`), LanguageJavaScript, false)
	require.NoError(t, err)
	defer tree.Close()

	root := tree.RootNode()
	assert.Equal(t, "program", root.Kind())
	assert.False(t, root.HasError())
}

func TestParseTypeScript(t *testing.T) {
	manager := newTestManager(t)

	tree, err := manager.Parse([]byte(`const n: number = 1; exports.n = n as number;`), LanguageTypeScript, false)
	require.NoError(t, err)
	defer tree.Close()
	assert.False(t, tree.RootNode().HasError())
	assert.Contains(t, tree.RootNode().ToSexp(), "as_expression")
}

func TestParseTSX(t *testing.T) {
	manager := newTestManager(t)

	tree, err := manager.Parse([]byte(`exports.App = () => <div>Hello</div>;`), LanguageTypeScript, true)
	require.NoError(t, err)
	defer tree.Close()
	assert.Contains(t, tree.RootNode().ToSexp(), "jsx_element")
}

func TestParseFile(t *testing.T) {
	manager := newTestManager(t)

	testCases := []struct {
		path   string
		source string
	}{
		{"lib/index.js", `module.exports = {};`},
		{"lib/index.cjs", `module.exports = {};`},
		{"src/mod.ts", `export const a: string = "a";`},
		{"src/mod.cts", `const b: number = 1; exports.b = b;`},
		{"src/App.tsx", `export const App = () => <main />;`},
	}
	for _, tc := range testCases {
		t.Run(tc.path, func(t *testing.T) {
			tree, err := manager.ParseFile([]byte(tc.source), tc.path)
			require.NoError(t, err)
			defer tree.Close()
			assert.Equal(t, "program", tree.RootNode().Kind())
			assert.False(t, tree.RootNode().HasError())
		})
	}

	_, err := manager.ParseFile([]byte("x"), "README.md")
	assert.Error(t, err)
}

func TestParseUnknownLanguage(t *testing.T) {
	manager := newTestManager(t)

	tree, err := manager.Parse([]byte("x"), LanguageUnknown, false)
	assert.Error(t, err)
	assert.Nil(t, tree)
}

func TestParseModuleSyntaxError(t *testing.T) {
	manager := newTestManager(t)

	source := []byte("exports.a = 1;\nexports.b = (;\n")
	tree, err := manager.ParseModule("lib/bad.js", source, LanguageJavaScript, false)
	require.Error(t, err)
	assert.Nil(t, tree)

	var serr *SyntaxError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, "lib/bad.js", serr.Specifier)
	assert.Equal(t, 2, serr.Line)
	assert.GreaterOrEqual(t, serr.Column, 1)
	assert.NotEmpty(t, serr.Message)
	assert.Contains(t, err.Error(), "lib/bad.js:2:")

	assert.Equal(t, 1, manager.GetStats().SyntaxErrors)
}

func TestParseModuleValid(t *testing.T) {
	manager := newTestManager(t)

	tree, err := manager.ParseModule("ok.js", []byte(`module.exports = { a: 1 };`), LanguageJavaScript, false)
	require.NoError(t, err)
	defer tree.Close()
	assert.Equal(t, 0, manager.GetStats().SyntaxErrors)
}

func TestSyntaxErrorFormat(t *testing.T) {
	err := &SyntaxError{Specifier: "x.js", Line: 3, Column: 7, Message: `unexpected ")"`}
	assert.Equal(t, `x.js:3:7: unexpected ")"`, err.Error())
}

func TestFindSyntaxErrorClean(t *testing.T) {
	manager := newTestManager(t)

	source := []byte(`exports.ok = true;`)
	tree, err := manager.Parse(source, LanguageJavaScript, false)
	require.NoError(t, err)
	defer tree.Close()
	assert.Nil(t, FindSyntaxError("ok.js", tree.RootNode(), source))
	assert.Nil(t, FindSyntaxError("nil.js", nil, nil))
}

func TestLazyInitialization(t *testing.T) {
	manager := newTestManager(t)

	assert.Equal(t, 0, manager.GetStats().Pools)

	tree, err := manager.Parse([]byte("1"), LanguageJavaScript, false)
	require.NoError(t, err)
	tree.Close()
	assert.Equal(t, 1, manager.GetStats().Pools)
	assert.Equal(t, 1, manager.GetStats().ParsersCreated)

	// isTSX is ignored for JavaScript
	tree, err = manager.Parse([]byte("1"), LanguageJavaScript, true)
	require.NoError(t, err)
	tree.Close()
	assert.Equal(t, 1, manager.GetStats().Pools)

	tree, err = manager.Parse([]byte("1"), LanguageTypeScript, true)
	require.NoError(t, err)
	tree.Close()
	assert.Equal(t, 2, manager.GetStats().Pools)
}

func TestLanguageDetection(t *testing.T) {
	testCases := []struct {
		path  string
		want  Language
		isTSX bool
	}{
		{"a.js", LanguageJavaScript, false},
		{"a.CJS", LanguageJavaScript, false},
		{"a.mjs", LanguageJavaScript, false},
		{"a.jsx", LanguageJavaScript, false},
		{"a.ts", LanguageTypeScript, false},
		{"a.cts", LanguageTypeScript, false},
		{"a.mts", LanguageTypeScript, false},
		{"a.tsx", LanguageTypeScript, true},
		{"a.json", LanguageUnknown, false},
		{"Makefile", LanguageUnknown, false},
	}
	for _, tc := range testCases {
		t.Run(tc.path, func(t *testing.T) {
			assert.Equal(t, tc.want, DetectLanguage(tc.path))
			assert.Equal(t, tc.isTSX, IsTSXFile(tc.path))
		})
	}
}

func TestParseLanguageString(t *testing.T) {
	lang, tsx := ParseLanguageString("JS")
	assert.Equal(t, LanguageJavaScript, lang)
	assert.False(t, tsx)

	lang, tsx = ParseLanguageString("tsx")
	assert.Equal(t, LanguageTypeScript, lang)
	assert.True(t, tsx)

	lang, _ = ParseLanguageString("python")
	assert.Equal(t, LanguageUnknown, lang)
}

func TestLanguageName(t *testing.T) {
	assert.Equal(t, "javascript", LanguageName(LanguageJavaScript, true))
	assert.Equal(t, "typescript", LanguageName(LanguageTypeScript, false))
	assert.Equal(t, "tsx", LanguageName(LanguageTypeScript, true))
	assert.Equal(t, "unknown", LanguageUnknown.String())
}
