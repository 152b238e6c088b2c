package indexer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gnana997/cjslexer/pkg/extractor"
	"github.com/gnana997/cjslexer/pkg/parser"
	"github.com/gnana997/cjslexer/pkg/parser/queries"
	"github.com/gnana997/cjslexer/pkg/util"
)

// newTestAnalyzer wires an analyzer with a source cache and an index.
func newTestAnalyzer(t *testing.T) *FileAnalyzer {
	t.Helper()
	logger := util.NopLogger()

	pm := parser.NewParserManager(logger)
	qm := queries.NewQueryManager(pm, logger)
	sources := util.NewSourceCache(&util.SourceCacheConfig{Logger: logger})
	index := NewExportIndex(DefaultExportIndexConfig(), logger)
	t.Cleanup(func() {
		index.Close()
		sources.Close()
		qm.Close()
		pm.Close()
	})

	ex := extractor.NewExtractor(pm, qm, logger)
	return NewFileAnalyzer(ex, sources, index, logger)
}

// writeFiles creates files under root from a path → content map.
func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}
