// internal/sparse/sparse.go
package sparse

import (
	"bytes"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/ZachT1711/gittry/internal/errors"
	"github.com/ZachT1711/gittry/internal/lockfile"
	"github.com/ZachT1711/gittry/internal/pattern"
	"github.com/ZachT1711/gittry/internal/repo"
	"github.com/ZachT1711/gittry/internal/worktree"
)

// Mode is the sparse-checkout state derived from the two config flags.
type Mode int

const (
	NoPatterns Mode = iota
	AllPatterns
	ConePatterns
)

func (m Mode) String() string {
	switch m {
	case AllPatterns:
		return "all"
	case ConePatterns:
		return "cone"
	default:
		return "none"
	}
}

// Controller owns the pattern file and the mode flags, and drives the
// reconciler so the three advance together or not at all.
type Controller struct {
	Repo       *repo.Repository
	Reconciler *worktree.Reconciler
	Logger     *zap.Logger
}

func NewController(r *repo.Repository) *Controller {
	return &Controller{
		Repo:       r,
		Reconciler: worktree.NewReconciler(r),
		Logger:     r.Logger,
	}
}

// Filename returns the pattern file path.
func (c *Controller) Filename() string {
	return c.Repo.SparseFile()
}

// Mode derives the current mode from core.sparseCheckout and
// core.sparseCheckoutCone.
func (c *Controller) Mode() Mode {
	if !c.Repo.Config.GetBool("core.sparseCheckout") {
		return NoPatterns
	}
	if c.Repo.Config.GetBool("core.sparseCheckoutCone") {
		return ConePatterns
	}
	return AllPatterns
}

// SetMode writes the two flags to the per-worktree scope, enabling the
// worktreeConfig extension first.
func (c *Controller) SetMode(mode Mode) error {
	if err := c.Repo.Config.SetLocal("extensions.worktreeConfig", "true"); err != nil {
		return err
	}

	sc := "false"
	if mode != NoPatterns {
		sc = "true"
	}
	if err := c.Repo.Config.SetWorktree("core.sparseCheckout", sc); err != nil {
		return err
	}

	cone := "false"
	if mode == ConePatterns {
		cone = "true"
	}
	return c.Repo.Config.SetWorktree("core.sparseCheckoutCone", cone)
}

// ReadPatterns loads the pattern file in the configured dialect. The caller
// distinguishes a missing file with os.IsNotExist.
func (c *Controller) ReadPatterns() (*pattern.List, error) {
	return pattern.Load(c.Filename(), c.Mode() == ConePatterns)
}

// Set replaces the pattern set. The pattern-file lock is held across the
// index update so the two commit together; any failure leaves every on-disk
// artifact exactly as it was.
func (c *Controller) Set(pl *pattern.List) error {
	cur := c.Mode()
	want := AllPatterns
	if pl.UseCone {
		want = ConePatterns
	}

	flipped := false
	if cur != want {
		if err := c.SetMode(want); err != nil {
			return err
		}
		flipped = true
	}

	lk, err := lockfile.Acquire(c.Filename())
	if err != nil {
		if flipped {
			c.revertMode(cur)
		}
		return err
	}

	if err := c.Reconciler.Update(pl); err != nil {
		lk.Rollback()
		if flipped {
			c.revertMode(cur)
		}
		// Re-materialize the previous pattern set.
		if restoreErr := c.Reconciler.Update(nil); restoreErr != nil {
			c.Logger.Warn("restoring previous sparse-checkout state", zap.Error(restoreErr))
		}
		return err
	}

	var buf bytes.Buffer
	if err := pl.WriteTo(&buf); err != nil {
		lk.Rollback()
		return c.restoreAfterPartialSet(errors.IoFailure("serializing patterns", err), cur, flipped)
	}
	if err := lk.Write(buf.Bytes()); err != nil {
		lk.Rollback()
		return c.restoreAfterPartialSet(err, cur, flipped)
	}
	if err := lk.Commit(); err != nil {
		return c.restoreAfterPartialSet(err, cur, flipped)
	}

	c.Logger.Info("sparse-checkout patterns updated",
		zap.Int("patterns", pl.Len()),
		zap.Bool("cone", pl.UseCone))
	return nil
}

// restoreAfterPartialSet handles the window where the index committed but
// the pattern file did not: the mode is reverted if this call flipped it, and
// re-materializing from the old pattern file puts the index and working tree
// back in step with it.
func (c *Controller) restoreAfterPartialSet(cause error, prev Mode, flipped bool) error {
	if flipped {
		c.revertMode(prev)
	}
	if err := c.Reconciler.Update(nil); err != nil {
		c.Logger.Warn("restoring working tree after failed pattern write", zap.Error(err))
	}
	return cause
}

func (c *Controller) revertMode(mode Mode) {
	if err := c.SetMode(mode); err != nil {
		c.Logger.Warn("reverting sparse-checkout mode", zap.Error(err))
	}
}

const seedPatterns = "/*\n!/*/\n"

// Init enables sparse-checkout. An existing pattern file is kept and
// reconciled to; otherwise the seed patterns (everything at the root, no
// subdirectories) are written.
func (c *Controller) Init(cone bool) error {
	mode := AllPatterns
	if cone {
		mode = ConePatterns
	}
	if err := c.SetMode(mode); err != nil {
		return err
	}

	if _, err := os.Stat(c.Filename()); err == nil {
		return c.Reconciler.Update(nil)
	}

	lk, err := lockfile.Acquire(c.Filename())
	if err != nil {
		return err
	}
	if err := lk.Write([]byte(seedPatterns)); err != nil {
		lk.Rollback()
		return err
	}

	if _, ok := c.Repo.Head(); ok {
		pl, err := pattern.Parse(seedPatterns, cone)
		if err != nil {
			lk.Rollback()
			return err
		}
		if err := c.Reconciler.Update(pl); err != nil {
			lk.Rollback()
			return err
		}
	}

	return lk.Commit()
}

// Disable restores the full working tree and turns sparse-checkout off.
// The config transits through AllPatterns so every file is back before the
// flag goes false.
func (c *Controller) Disable() error {
	if err := c.SetMode(AllPatterns); err != nil {
		return err
	}

	all := pattern.NewList(false)
	if err := all.Add("/*", ""); err != nil {
		return err
	}
	if err := c.Reconciler.Update(all); err != nil {
		return fmt.Errorf("refreshing working directory: %w", err)
	}

	if err := os.Remove(c.Filename()); err != nil && !os.IsNotExist(err) {
		return errors.IoFailure("removing sparse-checkout file", err)
	}

	return c.SetMode(NoPatterns)
}
