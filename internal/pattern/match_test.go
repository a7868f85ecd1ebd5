package pattern

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchCone(t *testing.T) {
	l := coneList("deep/deeper1/deepest")

	t.Run("RootFilesIncluded", func(t *testing.T) {
		assert.Equal(t, Include, l.Match("a", false))
	})

	t.Run("RootDirsExcluded", func(t *testing.T) {
		assert.Equal(t, Exclude, l.Match("folder1", true))
		assert.Equal(t, Exclude, l.Match("folder1/a", false))
	})

	t.Run("ParentDirsVisible", func(t *testing.T) {
		assert.Equal(t, Include, l.Match("deep", true))
		assert.Equal(t, Include, l.Match("deep/deeper1", true))
	})

	t.Run("FilesDirectlyInParentIncluded", func(t *testing.T) {
		assert.Equal(t, Include, l.Match("deep/a", false))
		assert.Equal(t, Include, l.Match("deep/deeper1/a", false))
	})

	t.Run("SiblingSubtreeExcluded", func(t *testing.T) {
		assert.Equal(t, Exclude, l.Match("deep/deeper2", true))
		assert.Equal(t, Exclude, l.Match("deep/deeper2/a", false))
	})

	t.Run("RecursiveSubtreeIncluded", func(t *testing.T) {
		assert.Equal(t, Include, l.Match("deep/deeper1/deepest", true))
		assert.Equal(t, Include, l.Match("deep/deeper1/deepest/a", false))
		assert.Equal(t, Include, l.Match("deep/deeper1/deepest/sub/b", false))
	})

	t.Run("Deterministic", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			assert.Equal(t, Include, l.Match("deep/a", false))
			assert.Equal(t, Exclude, l.Match("deep/deeper2/a", false))
		}
	})
}

func TestMatchConeSeedOnly(t *testing.T) {
	l, err := Parse("/*\n!/*/\n", true)
	require.NoError(t, err)
	require.True(t, l.UseCone)

	assert.Equal(t, Include, l.Match("a", false))
	assert.Equal(t, Exclude, l.Match("folder1", true))
	assert.Equal(t, Exclude, l.Match("folder1/a", false))
}

func TestMatchGeneral(t *testing.T) {
	t.Run("SeedPatterns", func(t *testing.T) {
		l, err := Parse("/*\n!/*/\n", false)
		require.NoError(t, err)

		assert.Equal(t, Include, l.Match("a", false))
		assert.Equal(t, Exclude, l.Match("folder1/a", false))
		assert.Equal(t, Exclude, l.Match("folder2", true))
	})

	t.Run("LaterPatternWins", func(t *testing.T) {
		l, err := Parse("/*\n!/*/\n*folder*\n", false)
		require.NoError(t, err)

		assert.Equal(t, Include, l.Match("a", false))
		assert.Equal(t, Include, l.Match("folder1/a", false))
		assert.Equal(t, Include, l.Match("folder2", true))
	})

	t.Run("NegativeInverts", func(t *testing.T) {
		l, err := Parse("*.go\n!vendor.go\n", false)
		require.NoError(t, err)

		assert.Equal(t, Include, l.Match("main.go", false))
		assert.Equal(t, Exclude, l.Match("vendor.go", false))
	})

	t.Run("MustBeDirSkipsFiles", func(t *testing.T) {
		l, err := Parse("docs/\n", false)
		require.NoError(t, err)

		assert.Equal(t, Include, l.Match("docs", true))
		assert.Equal(t, Exclude, l.Match("docs", false))
		// Files under a matched directory inherit the verdict.
		assert.Equal(t, Include, l.Match("docs/readme.md", false))
	})

	t.Run("BasenameMatch", func(t *testing.T) {
		l, err := Parse("*.md\n", false)
		require.NoError(t, err)

		assert.Equal(t, Include, l.Match("readme.md", false))
		assert.Equal(t, Include, l.Match("docs/deep/readme.md", false))
	})

	t.Run("AnchoredRootedAtRepoRoot", func(t *testing.T) {
		l, err := Parse("/docs\n", false)
		require.NoError(t, err)

		assert.Equal(t, Include, l.Match("docs", false))
		assert.Equal(t, Exclude, l.Match("sub/docs", false))
		assert.Equal(t, Include, l.Match("docs/guide.md", false))
	})
}

func TestWildmatch(t *testing.T) {
	cases := []struct {
		pattern      string
		name         string
		slashSpecial bool
		want         bool
	}{
		{"*", "abc", false, true},
		{"*", "a/b", false, true},
		{"*", "a/b", true, false},
		{"a*c", "abc", true, true},
		{"a*c", "a/c", true, false},
		{"a?c", "abc", false, true},
		{"a?c", "ac", false, false},
		{"a?c", "a/c", true, false},
		{"[abc]x", "bx", false, true},
		{"[abc]x", "dx", false, false},
		{"[a-c]x", "bx", false, true},
		{"[!a-c]x", "dx", false, true},
		{"[!a-c]x", "bx", false, false},
		{"a[", "a[", false, true},
		{"*folder*", "folder1/a", false, true},
		{"deep/*", "deep/a", true, true},
		{"deep/*", "deep/a/b", true, false},
		{"**", "a/b/c", false, true},
	}

	for _, tc := range cases {
		got := wildmatch(tc.pattern, tc.name, tc.slashSpecial)
		assert.Equal(t, tc.want, got, "wildmatch(%q, %q, %v)", tc.pattern, tc.name, tc.slashSpecial)
	}
}
