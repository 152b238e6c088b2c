package indexer

import (
	"context"
	"path/filepath"
	"sort"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnana997/cjslexer/pkg/cjs"
	"github.com/gnana997/cjslexer/pkg/parser/queries"
	"github.com/gnana997/cjslexer/pkg/util"
)

var workspaceFiles = map[string]string{
	"index.js":                   `module.exports = require("./lib/a.js");`,
	"lib/a.js":                   `exports.a = 1; exports.b = 2;`,
	"lib/b.cjs":                  `module.exports = { c: 3 };`,
	"lib/esm.js":                 `export const d = 4;`,
	"lib/broken.js":              `exports.e = ;`,
	"lib/types.ts":               `export type T = string;`,
	"node_modules/dep/index.js":  `exports.dep = 1;`,
	"lib/node_modules/x/main.js": `exports.x = 1;`,
	"README.md":                  `# readme`,
}

func relPaths(t *testing.T, root string, files []string) []string {
	t.Helper()
	out := make([]string, 0, len(files))
	for _, f := range files {
		rel, err := filepath.Rel(root, f)
		require.NoError(t, err)
		out = append(out, filepath.ToSlash(rel))
	}
	sort.Strings(out)
	return out
}

func TestDiscoverFiles(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, workspaceFiles)

	files, err := DiscoverFiles(root, DefaultScanOptions())
	require.NoError(t, err)
	assert.Equal(t, []string{"index.js", "lib/a.js", "lib/b.cjs", "lib/broken.js", "lib/esm.js"}, relPaths(t, root, files))

	files, err = DiscoverFiles(root, ScanOptions{Exclude: []string{"**/node_modules/**"}})
	require.NoError(t, err)
	assert.Contains(t, relPaths(t, root, files), "lib/types.ts", "empty include selects supported extensions")
	assert.NotContains(t, relPaths(t, root, files), "README.md")

	opts := DefaultScanOptions()
	opts.MaxDepth = 1
	files, err = DiscoverFiles(root, opts)
	require.NoError(t, err)
	assert.Equal(t, []string{"index.js"}, relPaths(t, root, files))

	_, err = DiscoverFiles(root, ScanOptions{Include: []string{"[invalid"}})
	assert.ErrorContains(t, err, "invalid include pattern")

	_, err = DiscoverFiles(filepath.Join(root, "nope"), DefaultScanOptions())
	assert.Error(t, err)
}

func TestScanWorkspace(t *testing.T) {
	fa := newTestAnalyzer(t)
	root := t.TempDir()
	writeFiles(t, root, workspaceFiles)

	scanner := NewWorkspaceScanner(fa, util.NopLogger())

	var progressCalls atomic.Int32
	opts := DefaultScanOptions()
	opts.Workers = 2
	stats, err := scanner.ScanWorkspace(context.Background(), root, opts, func(indexed, total int, _ string) {
		progressCalls.Add(1)
		assert.LessOrEqual(t, indexed, total)
	})
	require.NoError(t, err)

	assert.Equal(t, 5, stats.FilesDiscovered)
	assert.Equal(t, 4, stats.FilesIndexed)
	assert.Equal(t, 1, stats.FilesFailed)
	require.Len(t, stats.Errors, 1)
	assert.Equal(t, filepath.Join(root, "lib", "broken.js"), stats.Errors[0].FilePath)
	assert.Equal(t, 3, stats.ExportsFound)
	assert.Equal(t, 1, stats.ReexportsFound)
	assert.Equal(t, 3, stats.FormatCounts[queries.FormatCommonJS])
	assert.Equal(t, 1, stats.FormatCounts[queries.FormatESM])
	assert.Equal(t, 2, stats.WorkerCount)
	assert.InDelta(t, 0.8, stats.SuccessRate, 1e-9)
	assert.False(t, stats.Cancelled)
	assert.Equal(t, int32(4), progressCalls.Load())

	fe, ok := fa.Index().Get(filepath.Join(root, "lib", "a.js"))
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, fe.Exports)

	again, err := scanner.ScanWorkspace(context.Background(), root, opts, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, again.FilesCached, "unchanged files come from the index")
}

func TestScanWorkspaceEmpty(t *testing.T) {
	fa := newTestAnalyzer(t)
	scanner := NewWorkspaceScanner(fa, util.NopLogger())

	stats, err := scanner.ScanWorkspace(context.Background(), t.TempDir(), DefaultScanOptions(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.FilesDiscovered)
	assert.Empty(t, stats.Errors)
}

func TestScanWorkspaceCancelled(t *testing.T) {
	fa := newTestAnalyzer(t)
	root := t.TempDir()
	writeFiles(t, root, workspaceFiles)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	scanner := NewWorkspaceScanner(fa, util.NopLogger())
	stats, err := scanner.ScanWorkspace(ctx, root, DefaultScanOptions(), nil)
	require.NoError(t, err)
	assert.Equal(t, 5, stats.FilesDiscovered)
	assert.Equal(t, stats.Cancelled, stats.FilesIndexed+stats.FilesFailed < stats.FilesDiscovered)
}

func TestWorkerPool(t *testing.T) {
	fa := newTestAnalyzer(t)
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"ok.js": `exports.ok = 1;`})

	pool := NewWorkerPool(context.Background(), 4, fa, util.NopLogger())
	pool.Start()
	defer pool.Stop()

	jobs := []string{
		filepath.Join(root, "ok.js"),
		filepath.Join(root, "missing1.js"),
		filepath.Join(root, "missing2.js"),
	}
	for i, file := range jobs {
		require.NoError(t, pool.Submit(FileJob{FilePath: file, JobID: i, Options: cjs.DefaultOptions()}))
	}
	pool.FinishSubmitting()

	results, failures := 0, 0
	for i := 0; i < len(jobs); i++ {
		select {
		case res := <-pool.Results():
			results++
			assert.Equal(t, []string{"ok"}, res.Exports.Exports)
		case <-pool.Errors():
			failures++
		}
	}
	pool.Wait()

	assert.Equal(t, 1, results)
	assert.Equal(t, 2, failures)

	stats := pool.GetStats()
	assert.Equal(t, int64(3), stats.JobsSubmitted)
	assert.Equal(t, int64(1), stats.JobsProcessed)
	assert.Equal(t, int64(2), stats.JobsFailed)

	assert.ErrorIs(t, pool.Submit(FileJob{FilePath: jobs[0]}), ErrPoolStopped)
}

func TestWorkerPoolStopUnblocksWorkers(t *testing.T) {
	fa := newTestAnalyzer(t)
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"a.js": `exports.a = 1;`})

	pool := NewWorkerPool(context.Background(), 1, fa, util.NopLogger())
	pool.Start()
	for i := 0; i < 3; i++ {
		require.NoError(t, pool.Submit(FileJob{FilePath: filepath.Join(root, "a.js"), Options: cjs.DefaultOptions()}))
	}

	// nobody reads results; Stop must still return
	pool.Stop()
	pool.Stop()
}
