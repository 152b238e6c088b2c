package indexer

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnana997/cjslexer/pkg/util"
)

type eventRecorder struct {
	mu     sync.Mutex
	events []WatchEvent
}

func (r *eventRecorder) record(ev WatchEvent) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *eventRecorder) find(path, op string) (WatchEvent, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].FilePath == path && r.events[i].Op == op {
			return r.events[i], true
		}
	}
	return WatchEvent{}, false
}

func startTestWatcher(t *testing.T, fa *FileAnalyzer, root string) (*FileWatcher, *eventRecorder) {
	t.Helper()
	rec := &eventRecorder{}
	opts := DefaultWatchOptions()
	opts.DebounceMs = 20
	opts.OnChange = rec.record

	fw, err := NewFileWatcher(fa, opts, util.NopLogger())
	require.NoError(t, err)
	require.NoError(t, fw.Start(root))
	t.Cleanup(func() { fw.Stop() })
	return fw, rec
}

func TestFileWatcherReanalyzes(t *testing.T) {
	fa := newTestAnalyzer(t)
	root, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)

	fw, rec := startTestWatcher(t, fa, root)
	assert.True(t, fw.GetStats().IsRunning)

	path := filepath.Join(root, "lib.js")
	require.NoError(t, os.WriteFile(path, []byte(`exports.a = 1;`), 0o644))

	require.Eventually(t, func() bool {
		ev, ok := rec.find(path, WatchOpAnalyze)
		return ok && ev.Exports != nil && len(ev.Exports.Exports) == 1
	}, 5*time.Second, 10*time.Millisecond)

	fe, ok := fa.Index().Get(path)
	require.True(t, ok)
	assert.Equal(t, []string{"a"}, fe.Exports)

	require.NoError(t, os.Remove(path))
	require.Eventually(t, func() bool {
		_, ok := rec.find(path, WatchOpRemove)
		return ok
	}, 5*time.Second, 10*time.Millisecond)

	_, ok = fa.Index().Get(path)
	assert.False(t, ok)
	assert.GreaterOrEqual(t, fw.GetStats().Removed, int64(1))
}

func TestFileWatcherNewDirectory(t *testing.T) {
	fa := newTestAnalyzer(t)
	root, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)

	_, rec := startTestWatcher(t, fa, root)

	dir := filepath.Join(root, "sub")
	require.NoError(t, os.Mkdir(dir, 0o755))
	path := filepath.Join(dir, "x.cjs")

	// the directory watch is added asynchronously; rewrite until seen
	require.Eventually(t, func() bool {
		_ = os.WriteFile(path, []byte(`module.exports = { x: 1 };`), 0o644)
		_, ok := rec.find(path, WatchOpAnalyze)
		return ok
	}, 5*time.Second, 50*time.Millisecond)
}

func TestFileWatcherIgnores(t *testing.T) {
	fa := newTestAnalyzer(t)
	root, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)

	fw, err := NewFileWatcher(fa, DefaultWatchOptions(), util.NopLogger())
	require.NoError(t, err)
	require.NoError(t, fw.Start(root))
	defer fw.Stop()

	assert.True(t, fw.shouldIgnore(filepath.Join(root, "node_modules", "dep", "index.js")))
	assert.True(t, fw.shouldIgnore(filepath.Join(root, "a", ".git", "HEAD")))
	assert.True(t, fw.shouldIgnore(filepath.Join(root, "lib.js.swp")))
	assert.True(t, fw.shouldIgnore(filepath.Join(filepath.Dir(root), "outside.js")))
	assert.False(t, fw.shouldIgnore(filepath.Join(root, "lib", "a.js")))

	assert.True(t, fw.selects(filepath.Join(root, "a.js")))
	assert.False(t, fw.selects(filepath.Join(root, "a.md")))
}

func TestFileWatcherLifecycle(t *testing.T) {
	fa := newTestAnalyzer(t)

	_, err := NewFileWatcher(fa, WatchOptions{IgnorePatterns: []string{"[bad"}}, nil)
	assert.ErrorContains(t, err, "invalid watch pattern")

	fw, err := NewFileWatcher(fa, WatchOptions{}, nil)
	require.NoError(t, err)
	assert.Equal(t, 200, fw.options.DebounceMs)

	root := t.TempDir()
	require.NoError(t, fw.Start(root))
	assert.Error(t, fw.Start(root), "second start")

	require.NoError(t, fw.Stop())
	require.NoError(t, fw.Stop())
	assert.False(t, fw.GetStats().IsRunning)
	assert.Error(t, fw.Start(root), "start after stop")
}
