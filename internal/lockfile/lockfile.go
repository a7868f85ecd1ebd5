// internal/lockfile/lockfile.go
package lockfile

import (
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/google/uuid"

	"github.com/ZachT1711/gittry/internal/errors"
)

// Lock guards a target file through an exclusive sibling "<target>.lock".
// New content is staged into the lock file; Commit renames it over the
// target, Rollback unlinks it. Either way the lock file is gone afterwards.
type Lock struct {
	target string
	path   string
	file   *os.File
	owner  string
	active bool
}

var (
	heldMu sync.Mutex
	held   = make(map[*Lock]struct{})

	signalOnce sync.Once
)

// releaseOnSignal unlinks every lock still held when the process is
// interrupted or terminated, then exits with status 1.
func releaseOnSignal() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-ch
		heldMu.Lock()
		for lk := range held {
			if lk.file != nil {
				lk.file.Close()
			}
			os.Remove(lk.path)
		}
		heldMu.Unlock()
		os.Exit(1)
	}()
}

// Acquire takes the lock for target by creating "<target>.lock"
// exclusively. A pre-existing lock file means another invocation holds it.
func Acquire(target string) (*Lock, error) {
	signalOnce.Do(releaseOnSignal)

	path := target + ".lock"
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if os.IsExist(err) {
			return nil, errors.LockHeld(fmt.Sprintf("Unable to create '%s': File exists.", path))
		}
		return nil, errors.IoFailure(fmt.Sprintf("creating lock file %s", path), err)
	}

	lk := &Lock{
		target: target,
		path:   path,
		file:   f,
		owner:  uuid.New().String(),
		active: true,
	}

	heldMu.Lock()
	held[lk] = struct{}{}
	heldMu.Unlock()

	return lk, nil
}

// Target returns the path the lock protects.
func (lk *Lock) Target() string {
	return lk.target
}

// Owner returns the token identifying this acquisition, for log correlation.
func (lk *Lock) Owner() string {
	return lk.owner
}

// Write stages content into the lock file.
func (lk *Lock) Write(data []byte) error {
	if !lk.active {
		return errors.IoFailure(fmt.Sprintf("lock on %s is no longer held", lk.target), nil)
	}
	if _, err := lk.file.Write(data); err != nil {
		return errors.IoFailure(fmt.Sprintf("writing lock file %s", lk.path), err)
	}
	return nil
}

// Commit atomically replaces the target with the staged content.
func (lk *Lock) Commit() error {
	if !lk.active {
		return errors.IoFailure(fmt.Sprintf("lock on %s is no longer held", lk.target), nil)
	}
	if err := lk.file.Sync(); err != nil {
		lk.Rollback()
		return errors.IoFailure(fmt.Sprintf("syncing lock file %s", lk.path), err)
	}
	if err := lk.file.Close(); err != nil {
		lk.release()
		os.Remove(lk.path)
		return errors.IoFailure(fmt.Sprintf("closing lock file %s", lk.path), err)
	}
	if err := os.Rename(lk.path, lk.target); err != nil {
		lk.release()
		os.Remove(lk.path)
		return errors.IoFailure(fmt.Sprintf("committing lock file over %s", lk.target), err)
	}
	lk.release()
	return nil
}

// Rollback discards the staged content and releases the lock.
func (lk *Lock) Rollback() {
	if !lk.active {
		return
	}
	lk.file.Close()
	os.Remove(lk.path)
	lk.release()
}

func (lk *Lock) release() {
	lk.active = false
	lk.file = nil
	heldMu.Lock()
	delete(held, lk)
	heldMu.Unlock()
}
