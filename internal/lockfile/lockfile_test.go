package lockfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZachT1711/gittry/internal/errors"
)

func TestAcquire(t *testing.T) {
	t.Run("CreatesLockFile", func(t *testing.T) {
		target := filepath.Join(t.TempDir(), "index")

		lk, err := Acquire(target)
		require.NoError(t, err)
		defer lk.Rollback()

		_, err = os.Stat(target + ".lock")
		assert.NoError(t, err)
		assert.NotEmpty(t, lk.Owner())
	})

	t.Run("SecondAcquireFails", func(t *testing.T) {
		target := filepath.Join(t.TempDir(), "index")

		lk, err := Acquire(target)
		require.NoError(t, err)
		defer lk.Rollback()

		_, err = Acquire(target)
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeLockHeld))
		assert.Contains(t, err.Error(), "File exists")
	})

	t.Run("StaleLockFileBlocks", func(t *testing.T) {
		target := filepath.Join(t.TempDir(), "index")
		require.NoError(t, os.WriteFile(target+".lock", nil, 0644))

		_, err := Acquire(target)
		assert.True(t, errors.IsType(err, errors.ErrorTypeLockHeld))
	})
}

func TestCommit(t *testing.T) {
	target := filepath.Join(t.TempDir(), "sparse-checkout")
	require.NoError(t, os.WriteFile(target, []byte("old\n"), 0644))

	lk, err := Acquire(target)
	require.NoError(t, err)
	require.NoError(t, lk.Write([]byte("new\n")))
	require.NoError(t, lk.Commit())

	content, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "new\n", string(content))

	_, err = os.Stat(target + ".lock")
	assert.True(t, os.IsNotExist(err))

	// The lock is spent once committed.
	assert.Error(t, lk.Write([]byte("x")))
}

func TestRollback(t *testing.T) {
	target := filepath.Join(t.TempDir(), "sparse-checkout")
	require.NoError(t, os.WriteFile(target, []byte("old\n"), 0644))

	lk, err := Acquire(target)
	require.NoError(t, err)
	require.NoError(t, lk.Write([]byte("new\n")))
	lk.Rollback()

	content, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "old\n", string(content))

	_, err = os.Stat(target + ".lock")
	assert.True(t, os.IsNotExist(err))

	// Rollback twice is harmless.
	lk.Rollback()

	// The target can be locked again.
	lk2, err := Acquire(target)
	require.NoError(t, err)
	lk2.Rollback()
}
