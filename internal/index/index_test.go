package index

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZachT1711/gittry/internal/lockfile"
)

func TestRead(t *testing.T) {
	t.Run("MissingFileIsEmptyIndex", func(t *testing.T) {
		ix, err := Read(filepath.Join(t.TempDir(), "index"))
		require.NoError(t, err)
		assert.Empty(t, ix.Entries)
	})

	t.Run("CorruptFileFails", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "index")
		require.NoError(t, os.WriteFile(path, []byte("not json"), 0644))

		_, err := Read(path)
		assert.Error(t, err)
	})
}

func TestWriteThrough(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index")

	ix := &Index{Entries: []Entry{
		{Path: "b", Mode: 0100644, OID: "bbbb"},
		{Path: "a", Mode: 0100644, OID: "aaaa", SkipWorktree: true},
	}}
	ix.PrimeCacheTree("tttt")

	lk, err := lockfile.Acquire(path)
	require.NoError(t, err)
	require.NoError(t, ix.WriteThrough(lk))
	require.NoError(t, lk.Commit())

	loaded, err := Read(path)
	require.NoError(t, err)
	require.Len(t, loaded.Entries, 2)

	// Entries come back sorted.
	assert.Equal(t, "a", loaded.Entries[0].Path)
	assert.True(t, loaded.Entries[0].SkipWorktree)
	assert.Equal(t, "b", loaded.Entries[1].Path)
	assert.False(t, loaded.Entries[1].SkipWorktree)

	require.NotNil(t, loaded.CacheTree)
	assert.Equal(t, "tttt", loaded.CacheTree.OID)
}

func TestHasUnmerged(t *testing.T) {
	ix := &Index{Entries: []Entry{{Path: "a", OID: "aaaa"}}}
	assert.False(t, ix.HasUnmerged())

	ix.Entries = append(ix.Entries, Entry{Path: "b", OID: "bbbb", Stage: 1})
	assert.True(t, ix.HasUnmerged())
}

func TestCacheTreeLifecycle(t *testing.T) {
	ix := &Index{}
	ix.PrimeCacheTree("tttt")
	require.NotNil(t, ix.CacheTree)

	ix.InvalidateCacheTree()
	assert.Nil(t, ix.CacheTree)

	ix.ResolveUndo = ResolveUndo{"a": {{Path: "a", Stage: 1}}}
	ix.ClearResolveUndo()
	assert.Nil(t, ix.ResolveUndo)
}
