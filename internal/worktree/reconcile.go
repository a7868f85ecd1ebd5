// internal/worktree/reconcile.go
package worktree

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/ZachT1711/gittry/internal/errors"
	"github.com/ZachT1711/gittry/internal/index"
	"github.com/ZachT1711/gittry/internal/lockfile"
	"github.com/ZachT1711/gittry/internal/object"
	"github.com/ZachT1711/gittry/internal/pattern"
	"github.com/ZachT1711/gittry/internal/repo"
	"github.com/ZachT1711/gittry/shared/utils"
)

// Reconciler rewrites the working tree and index from HEAD restricted to a
// pattern list.
type Reconciler struct {
	Repo   *repo.Repository
	Logger *zap.Logger
}

func NewReconciler(r *repo.Repository) *Reconciler {
	return &Reconciler{Repo: r, Logger: r.Logger}
}

// Update makes the working tree reflect HEAD restricted to pl. A nil pl
// reloads the on-disk pattern file. Nothing on disk advances unless the
// whole merge validates; on failure the index lock is rolled back and the
// working tree is untouched.
func (rc *Reconciler) Update(pl *pattern.List) error {
	r := rc.Repo

	if pl == nil {
		loaded, err := rc.loadPatternFile()
		if err != nil {
			return err
		}
		pl = loaded
	}

	ix, err := index.Read(r.IndexPath())
	if err != nil {
		return err
	}
	if ix.HasUnmerged() {
		return errors.UnmergedIndex("you need to resolve your current index first")
	}

	treeOID, ok, err := r.HeadTree()
	if err != nil {
		return errors.IoFailure("resolving HEAD tree", err)
	}
	if !ok {
		// Fresh repository: nothing to reconcile.
		return nil
	}

	entries, err := object.ReadTreeRecursive(r.Objects, treeOID)
	if err != nil {
		return errors.IoFailure("reading HEAD tree", err)
	}

	ix.ClearResolveUndo()
	ix.InvalidateCacheTree()

	lk, err := lockfile.Acquire(r.IndexPath())
	if err != nil {
		return err
	}

	if err := rc.merge(entries, pl, treeOID, lk); err != nil {
		lk.Rollback()
		return err
	}
	return nil
}

// loadPatternFile reads the on-disk pattern file in the configured dialect.
// A missing file means everything is included.
func (rc *Reconciler) loadPatternFile() (*pattern.List, error) {
	cone := rc.Repo.Config.GetBool("core.sparseCheckoutCone")
	pl, err := pattern.Load(rc.Repo.SparseFile(), cone)
	if err != nil {
		if os.IsNotExist(err) {
			all := pattern.NewList(false)
			if err := all.Add("/*", ""); err != nil {
				return nil, err
			}
			return all, nil
		}
		return nil, errors.IoFailure("reading sparse-checkout file", err)
	}
	for _, w := range pl.Warnings() {
		rc.Logger.Warn(w)
	}
	return pl, nil
}

type fileAction struct {
	entry       object.TreeEntry
	materialize bool
}

// merge runs the one-way merge of the HEAD tree into the index. The first
// pass computes skip bits and validates every transition; the filesystem is
// only touched once the whole result is known to be safe.
func (rc *Reconciler) merge(entries []object.TreeEntry, pl *pattern.List, treeOID string, lk *lockfile.Lock) error {
	r := rc.Repo

	newIx := &index.Index{}
	matched := 0
	var actions []fileAction

	for _, e := range entries {
		skip := pl.Match(e.Path, false) != pattern.Include
		if !skip {
			matched++
		}
		newIx.Entries = append(newIx.Entries, index.Entry{
			Path:         e.Path,
			Mode:         e.Mode,
			OID:          e.OID,
			SkipWorktree: skip,
		})

		abs := filepath.Join(r.Root, filepath.FromSlash(e.Path))
		if skip {
			content, err := os.ReadFile(abs)
			if err != nil {
				if os.IsNotExist(err) {
					continue
				}
				return errors.IoFailure(fmt.Sprintf("inspecting %s", e.Path), err)
			}
			if utils.HashContent(content) != e.OID {
				return errors.WouldLoseChanges(fmt.Sprintf("cannot remove '%s': local modifications would be lost", e.Path))
			}
			actions = append(actions, fileAction{entry: e})
			continue
		}

		if _, err := os.Stat(abs); os.IsNotExist(err) {
			actions = append(actions, fileAction{entry: e, materialize: true})
		}
	}

	if len(entries) > 0 && matched == 0 {
		return errors.EmptyCheckout("sparse checkout leaves no entry on the working directory")
	}

	removed, written := 0, 0
	for _, a := range actions {
		abs := filepath.Join(r.Root, filepath.FromSlash(a.entry.Path))
		if !a.materialize {
			if err := os.Remove(abs); err != nil && !os.IsNotExist(err) {
				return errors.IoFailure(fmt.Sprintf("removing %s", a.entry.Path), err)
			}
			rc.pruneEmptyDirs(filepath.Dir(abs))
			removed++
			continue
		}

		content, err := r.Objects.GetBlob(a.entry.OID)
		if err != nil {
			return errors.IoFailure(fmt.Sprintf("reading blob for %s", a.entry.Path), err)
		}
		if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
			return errors.IoFailure(fmt.Sprintf("creating directory for %s", a.entry.Path), err)
		}
		perm := os.FileMode(0644)
		if a.entry.Mode == object.ModeExec {
			perm = 0755
		}
		if err := os.WriteFile(abs, content, perm); err != nil {
			return errors.IoFailure(fmt.Sprintf("writing %s", a.entry.Path), err)
		}
		written++
	}

	newIx.PrimeCacheTree(treeOID)
	if err := newIx.WriteThrough(lk); err != nil {
		return err
	}
	if err := lk.Commit(); err != nil {
		return err
	}

	rc.Logger.Info("reconciled working tree",
		zap.Int("entries", len(entries)),
		zap.Int("materialized", matched),
		zap.Int("written", written),
		zap.Int("removed", removed))

	return nil
}

// pruneEmptyDirs removes now-empty directories between dir and the
// repository root.
func (rc *Reconciler) pruneEmptyDirs(dir string) {
	root := filepath.Clean(rc.Repo.Root)
	for {
		dir = filepath.Clean(dir)
		if dir == root || len(dir) <= len(root) {
			return
		}
		dirents, err := os.ReadDir(dir)
		if err != nil || len(dirents) > 0 {
			return
		}
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}
