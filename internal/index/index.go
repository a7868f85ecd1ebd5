// internal/index/index.go
package index

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/ZachT1711/gittry/internal/errors"
	"github.com/ZachT1711/gittry/internal/lockfile"
)

// Entry is one tracked file. Stage is zero for a merged entry; a non-zero
// stage marks an unresolved conflict. SkipWorktree marks entries that are
// tracked but not materialized.
type Entry struct {
	Path         string `json:"path"`
	Mode         uint32 `json:"mode"`
	OID          string `json:"oid"`
	Stage        int    `json:"stage,omitempty"`
	SkipWorktree bool   `json:"skip_worktree,omitempty"`
}

// CacheTree caches the tree id the entries were last primed from.
type CacheTree struct {
	OID string `json:"oid"`
}

// ResolveUndo keeps the conflicted stages of paths that were resolved.
type ResolveUndo map[string][]Entry

// Index is the ordered set of tracked entries.
type Index struct {
	Entries     []Entry     `json:"entries"`
	CacheTree   *CacheTree  `json:"cache_tree,omitempty"`
	ResolveUndo ResolveUndo `json:"resolve_undo,omitempty"`
}

// Read loads the index at path. A missing file is an empty index.
func Read(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Index{}, nil
		}
		return nil, errors.IoFailure(fmt.Sprintf("reading index %s", path), err)
	}

	var ix Index
	if err := json.Unmarshal(data, &ix); err != nil {
		return nil, errors.IoFailure(fmt.Sprintf("parsing index %s", path), err)
	}
	return &ix, nil
}

// HasUnmerged reports whether any entry is in a conflicted state.
func (ix *Index) HasUnmerged() bool {
	for i := range ix.Entries {
		if ix.Entries[i].Stage != 0 {
			return true
		}
	}
	return false
}

func (ix *Index) ClearResolveUndo() {
	ix.ResolveUndo = nil
}

func (ix *Index) InvalidateCacheTree() {
	ix.CacheTree = nil
}

// PrimeCacheTree records the tree the entries now mirror.
func (ix *Index) PrimeCacheTree(treeOID string) {
	ix.CacheTree = &CacheTree{OID: treeOID}
}

// Entry returns the entry for path, or nil.
func (ix *Index) Entry(path string) *Entry {
	for i := range ix.Entries {
		if ix.Entries[i].Path == path {
			return &ix.Entries[i]
		}
	}
	return nil
}

func (ix *Index) Sort() {
	sort.Slice(ix.Entries, func(i, j int) bool {
		if ix.Entries[i].Path != ix.Entries[j].Path {
			return ix.Entries[i].Path < ix.Entries[j].Path
		}
		return ix.Entries[i].Stage < ix.Entries[j].Stage
	})
}

// WriteThrough stages the serialized index into an already-held lock.
// The caller decides when to commit.
func (ix *Index) WriteThrough(lk *lockfile.Lock) error {
	ix.Sort()
	data, err := json.MarshalIndent(ix, "", "  ")
	if err != nil {
		return errors.IoFailure("marshaling index", err)
	}
	return lk.Write(append(data, '\n'))
}
