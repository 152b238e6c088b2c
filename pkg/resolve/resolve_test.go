package resolve

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnana997/cjslexer/pkg/cjs"
	"github.com/gnana997/cjslexer/pkg/extractor"
	"github.com/gnana997/cjslexer/pkg/indexer"
	"github.com/gnana997/cjslexer/pkg/parser"
	"github.com/gnana997/cjslexer/pkg/parser/queries"
	"github.com/gnana997/cjslexer/pkg/util"
)

func newTestResolver(t *testing.T, opts cjs.Options) *Resolver {
	t.Helper()
	logger := util.NopLogger()

	pm := parser.NewParserManager(logger)
	qm := queries.NewQueryManager(pm, logger)
	sources := util.NewSourceCache(&util.SourceCacheConfig{Logger: logger})
	index := indexer.NewExportIndex(indexer.DefaultExportIndexConfig(), logger)
	t.Cleanup(func() {
		sources.Close()
		qm.Close()
		pm.Close()
	})

	ex := extractor.NewExtractor(pm, qm, logger)
	return New(indexer.NewFileAnalyzer(ex, sources, index, logger), opts, logger)
}

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func TestResolveFlattens(t *testing.T) {
	root := writeTree(t, map[string]string{
		"index.js": `
exports.own = 1;
__exportStar(require("./a"), exports);
__exportStar(require("./dir"), exports);
module.exports = require("lodash");
`,
		"a.js":         `exports.a = 1; exports.default = 2; exports.own = 3; module.exports = require("./b.cjs");`,
		"b.cjs":        `module.exports = { b: 1 };`,
		"dir/index.js": `exports.fromDir = 1;`,
	})

	res, err := newTestResolver(t, cjs.DefaultOptions()).Resolve(filepath.Join(root, "index.js"))
	require.NoError(t, err)

	assert.Equal(t, []string{"own", "a", "b", "fromDir"}, res.Exports)
	assert.Equal(t, []string{
		filepath.Join(root, "index.js"),
		filepath.Join(root, "a.js"),
		filepath.Join(root, "b.cjs"),
		filepath.Join(root, "dir", "index.js"),
	}, res.Files)
	assert.Equal(t, []string{"lodash"}, res.External)
	assert.Empty(t, res.Missing)
	assert.Empty(t, res.Errors)
}

func TestResolveKeepsRootDefault(t *testing.T) {
	root := writeTree(t, map[string]string{
		"index.js": `exports.default = 1; module.exports = require("./a");`,
		"a.js":     `exports.default = 2; exports.x = 1;`,
	})

	res, err := newTestResolver(t, cjs.DefaultOptions()).Resolve(filepath.Join(root, "index.js"))
	require.NoError(t, err)
	assert.Equal(t, []string{"default", "x"}, res.Exports)
}

func TestResolveCycles(t *testing.T) {
	root := writeTree(t, map[string]string{
		"a.js": `exports.a = 1; __exportStar(require("./b"), exports);`,
		"b.js": `exports.b = 1; __exportStar(require("./a"), exports); __exportStar(require("./b.js"), exports);`,
	})

	res, err := newTestResolver(t, cjs.DefaultOptions()).Resolve(filepath.Join(root, "a.js"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, res.Exports)
	assert.Len(t, res.Files, 2)
}

func TestResolveMissingAndErrors(t *testing.T) {
	root := writeTree(t, map[string]string{
		"index.js": `
__exportStar(require("./nope"), exports);
__exportStar(require("./broken"), exports);
__exportStar(require("./native.node"), exports);
exports.ok = 1;
`,
		"broken.js":   `exports.x = ;`,
		"native.node": "\x7fELF",
	})

	res, err := newTestResolver(t, cjs.DefaultOptions()).Resolve(filepath.Join(root, "index.js"))
	require.NoError(t, err)

	assert.Equal(t, []string{"ok"}, res.Exports)
	require.Len(t, res.Missing, 1)
	assert.Equal(t, Unresolved{From: filepath.Join(root, "index.js"), Specifier: "./nope"}, res.Missing[0])
	require.Len(t, res.Errors, 2)
	assert.Equal(t, filepath.Join(root, "broken.js"), res.Errors[0].Path)
	assert.Contains(t, res.Errors[1].Error, "unsupported module type")
}

func TestResolveJSON(t *testing.T) {
	root := writeTree(t, map[string]string{
		"index.js":  `__exportStar(require("./list.json"), exports); module.exports = require("./data.json");`,
		"data.json": `{"name": "pkg", "version": "1.0.0", "default": true}`,
		"list.json": `[1, 2]`,
	})

	res, err := newTestResolver(t, cjs.DefaultOptions()).Resolve(filepath.Join(root, "index.js"))
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "version"}, res.Exports)
	assert.Len(t, res.Files, 3)
}

func TestResolveOptions(t *testing.T) {
	root := writeTree(t, map[string]string{
		"index.js": `
if (process.env.NODE_ENV === "production") {
  module.exports = require("./prod");
} else {
  module.exports = require("./dev");
}
`,
		"prod.js": `exports.prod = 1;`,
		"dev.js":  `exports.dev = 1;`,
	})
	path := filepath.Join(root, "index.js")

	res, err := newTestResolver(t, cjs.DefaultOptions()).Resolve(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"prod"}, res.Exports)

	res, err = newTestResolver(t, cjs.Options{NodeEnv: "development"}).Resolve(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"dev"}, res.Exports)
}

func TestResolveRootError(t *testing.T) {
	root := writeTree(t, map[string]string{"broken.js": `module.exports = {`})
	r := newTestResolver(t, cjs.DefaultOptions())

	_, err := r.Resolve(filepath.Join(root, "broken.js"))
	assert.Error(t, err)

	_, err = r.Resolve(filepath.Join(root, "missing.js"))
	assert.Error(t, err)
}

func TestIsBare(t *testing.T) {
	testCases := map[string]bool{
		"lodash":         true,
		"@scope/pkg":     true,
		"pkg/sub/path":   true,
		"node:fs":        true,
		"./local":        false,
		"../up":          false,
		"/abs/path":      false,
		".":              false,
		"..":             false,
		".hidden-module": true,
	}
	for spec, want := range testCases {
		t.Run(spec, func(t *testing.T) {
			assert.Equal(t, want, IsBare(spec))
		})
	}
}

func TestProbe(t *testing.T) {
	root := writeTree(t, map[string]string{
		"from.js":        ``,
		"exact":          ``,
		"both.js":        ``,
		"both.cjs":       ``,
		"only.cjs":       ``,
		"data.json":      ``,
		"pkg/index.cjs":  ``,
		"dual/index.js":  ``,
		"dual.json":      ``,
		"nested/deep.js": ``,
	})
	from := filepath.Join(root, "from.js")

	testCases := []struct {
		spec string
		want string
	}{
		{"./exact", "exact"},
		{"./both", "both.js"},
		{"./only", "only.cjs"},
		{"./data", "data.json"},
		{"./pkg", "pkg/index.cjs"},
		{"./dual", "dual.json"},
		{"./nested/deep", "nested/deep.js"},
	}
	for _, tc := range testCases {
		t.Run(tc.spec, func(t *testing.T) {
			got, ok := Probe(from, tc.spec)
			require.True(t, ok)
			assert.Equal(t, filepath.Join(root, filepath.FromSlash(tc.want)), got)
		})
	}

	_, ok := Probe(from, "./nested")
	assert.False(t, ok, "a directory without an index does not resolve")

	got, ok := Probe(from, filepath.Join(root, "both"))
	require.True(t, ok)
	assert.Equal(t, filepath.Join(root, "both.js"), got)
}
