package indexer

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnana997/cjslexer/pkg/cjs"
	"github.com/gnana997/cjslexer/pkg/util"
)

func testEntry(path, hash string, exports ...string) *FileExports {
	return &FileExports{
		FilePath:    path,
		Exports:     exports,
		Reexports:   []string{},
		ContentHash: hash,
		Options:     cjs.DefaultOptions(),
		DurationMs:  2,
	}
}

func TestExportIndexPutGet(t *testing.T) {
	index := NewExportIndex(DefaultExportIndexConfig(), util.NopLogger())
	defer index.Close()

	index.Put(testEntry("/a.js", "h1", "x", "y"))

	fe, ok := index.Get("/a.js")
	require.True(t, ok)
	assert.Equal(t, []string{"x", "y"}, fe.Exports)

	_, ok = index.Get("/missing.js")
	assert.False(t, ok)

	stats := index.GetStats()
	assert.Equal(t, 1, stats.IndexedFiles)
	assert.Equal(t, 1, stats.CachedFiles)
	assert.Equal(t, 2, stats.TotalExports)
	assert.Equal(t, int64(1), stats.CacheHits)
	assert.Equal(t, int64(1), stats.CacheMisses)
	assert.InDelta(t, 0.5, stats.CacheHitRate, 1e-9)
	assert.InDelta(t, 2.0, stats.AverageIndexTimeMs, 1e-9)
}

func TestExportIndexLookup(t *testing.T) {
	index := NewExportIndex(DefaultExportIndexConfig(), util.NopLogger())
	defer index.Close()

	index.Put(testEntry("/a.js", "h1", "x"))

	_, ok := index.Lookup("/a.js", "h1", cjs.DefaultOptions())
	assert.True(t, ok, "same content and options")

	_, ok = index.Lookup("/a.js", "h2", cjs.DefaultOptions())
	assert.False(t, ok, "changed content")

	_, ok = index.Lookup("/a.js", "h1", cjs.Options{NodeEnv: "development"})
	assert.False(t, ok, "different node env")

	_, ok = index.Lookup("/a.js", "h1", cjs.Options{NodeEnv: "production", CallMode: true})
	assert.False(t, ok, "different call mode")
}

func TestExportIndexInvalidate(t *testing.T) {
	index := NewExportIndex(DefaultExportIndexConfig(), util.NopLogger())
	defer index.Close()

	index.Invalidate("/unknown.js")
	assert.False(t, index.IsDirty("/unknown.js"), "only cached files can be dirty")

	index.Put(testEntry("/a.js", "h1", "x"))
	index.Invalidate("/a.js")
	assert.True(t, index.IsDirty("/a.js"))

	_, ok := index.Lookup("/a.js", "h1", cjs.DefaultOptions())
	assert.False(t, ok, "dirty entries miss")

	_, ok = index.Get("/a.js")
	assert.True(t, ok, "dirty entries stay readable")
	assert.Equal(t, 1, index.GetStats().DirtyFiles)

	index.Put(testEntry("/a.js", "h2", "x", "z"))
	assert.False(t, index.IsDirty("/a.js"))
	_, ok = index.Lookup("/a.js", "h2", cjs.DefaultOptions())
	assert.True(t, ok)
}

func TestExportIndexRemove(t *testing.T) {
	index := NewExportIndex(DefaultExportIndexConfig(), util.NopLogger())
	defer index.Close()

	index.Put(testEntry("/a.js", "h1", "x"))
	index.Invalidate("/a.js")
	index.Remove("/a.js")

	_, ok := index.Get("/a.js")
	assert.False(t, ok)
	assert.False(t, index.IsDirty("/a.js"))
	assert.Equal(t, 0, index.Len())
	assert.Equal(t, int64(0), index.GetStats().Evictions, "removal is not an eviction")
}

func TestExportIndexEviction(t *testing.T) {
	index := NewExportIndex(ExportIndexConfig{MaxCachedFiles: 3}, util.NopLogger())
	defer index.Close()

	for i := 0; i < 5; i++ {
		index.Put(testEntry(fmt.Sprintf("/f%d.js", i), "h"))
	}

	assert.Equal(t, 3, index.Len())
	assert.Equal(t, int64(2), index.GetStats().Evictions)
	_, ok := index.Get("/f0.js")
	assert.False(t, ok, "oldest entry evicted")
	_, ok = index.Get("/f4.js")
	assert.True(t, ok)

	paths := make([]string, 0, 3)
	for _, fe := range index.All() {
		paths = append(paths, fe.FilePath)
	}
	assert.ElementsMatch(t, []string{"/f2.js", "/f3.js", "/f4.js"}, paths)
}

func TestExportIndexDefaults(t *testing.T) {
	index := NewExportIndex(ExportIndexConfig{}, nil)
	defer index.Close()
	assert.Equal(t, DefaultExportIndexConfig().MaxCachedFiles, index.config.MaxCachedFiles)
}

func TestExportIndexConcurrentAccess(t *testing.T) {
	index := NewExportIndex(DefaultExportIndexConfig(), util.NopLogger())
	defer index.Close()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				path := fmt.Sprintf("/w%d/f%d.js", w, i%10)
				index.Put(testEntry(path, "h", "a"))
				index.Lookup(path, "h", cjs.DefaultOptions())
				if i%7 == 0 {
					index.Invalidate(path)
				}
				if i%13 == 0 {
					index.Remove(path)
				}
				index.GetStats()
			}
		}(w)
	}
	wg.Wait()

	assert.LessOrEqual(t, index.Len(), 80)
}
