package worktree

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ZachT1711/gittry/internal/errors"
	"github.com/ZachT1711/gittry/internal/index"
	"github.com/ZachT1711/gittry/internal/pattern"
	"github.com/ZachT1711/gittry/internal/repo"
)

func setupRepo(t *testing.T, files map[string]string, snapshot bool) *repo.Repository {
	t.Helper()

	dir, err := os.MkdirTemp("", "gittry-worktree-test")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	for path, content := range files {
		abs := filepath.Join(dir, filepath.FromSlash(path))
		require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0755))
		require.NoError(t, os.WriteFile(abs, []byte(content), 0644))
	}

	r, err := repo.Init(dir, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })

	if snapshot {
		_, err = r.Snapshot("initial", "test@example.com")
		require.NoError(t, err)
	}

	return r
}

func includeAll(t *testing.T) *pattern.List {
	t.Helper()
	pl := pattern.NewList(false)
	require.NoError(t, pl.Add("/*", ""))
	return pl
}

func TestUpdateFreshRepositoryIsNoop(t *testing.T) {
	r := setupRepo(t, map[string]string{"a": "a\n"}, false)

	rc := NewReconciler(r)
	require.NoError(t, rc.Update(includeAll(t)))

	// No HEAD, so no index was created either.
	_, err := os.Stat(r.IndexPath())
	assert.True(t, os.IsNotExist(err))
}

func TestUpdateRefusesUnmergedIndex(t *testing.T) {
	r := setupRepo(t, map[string]string{"a": "a\n"}, true)

	ix, err := index.Read(r.IndexPath())
	require.NoError(t, err)
	ix.Entries[0].Stage = 1
	data, err := json.Marshal(ix)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(r.IndexPath(), data, 0644))

	err = NewReconciler(r).Update(includeAll(t))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeUnmergedIndex))
}

func TestUpdateSetsSkipBits(t *testing.T) {
	r := setupRepo(t, map[string]string{
		"a":     "a\n",
		"sub/b": "b\n",
	}, true)

	pl := pattern.NewList(true)
	rc := NewReconciler(r)
	require.NoError(t, rc.Update(pl))

	ix, err := index.Read(r.IndexPath())
	require.NoError(t, err)
	require.Len(t, ix.Entries, 2)

	byPath := map[string]index.Entry{}
	for _, e := range ix.Entries {
		byPath[e.Path] = e
	}
	assert.False(t, byPath["a"].SkipWorktree)
	assert.True(t, byPath["sub/b"].SkipWorktree)

	// The skipped file is gone and its empty directory pruned.
	_, err = os.Stat(filepath.Join(r.Root, "sub", "b"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(r.Root, "sub"))
	assert.True(t, os.IsNotExist(err))

	require.NotNil(t, ix.CacheTree)
}

func TestUpdateRematerializesFiles(t *testing.T) {
	r := setupRepo(t, map[string]string{
		"a":     "a\n",
		"sub/b": "b content\n",
	}, true)

	rc := NewReconciler(r)
	require.NoError(t, rc.Update(pattern.NewList(true)))
	require.NoError(t, rc.Update(includeAll(t)))

	content, err := os.ReadFile(filepath.Join(r.Root, "sub", "b"))
	require.NoError(t, err)
	assert.Equal(t, "b content\n", string(content))

	ix, err := index.Read(r.IndexPath())
	require.NoError(t, err)
	for _, e := range ix.Entries {
		assert.False(t, e.SkipWorktree, e.Path)
	}
}

func TestUpdateLeavesUntrackedFilesAlone(t *testing.T) {
	r := setupRepo(t, map[string]string{"a": "a\n", "sub/b": "b\n"}, true)

	untracked := filepath.Join(r.Root, "notes.txt")
	require.NoError(t, os.WriteFile(untracked, []byte("scratch\n"), 0644))

	require.NoError(t, NewReconciler(r).Update(pattern.NewList(true)))

	content, err := os.ReadFile(untracked)
	require.NoError(t, err)
	assert.Equal(t, "scratch\n", string(content))
}
