// internal/repo/repo.go
package repo

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/natefinch/atomic"
	"go.uber.org/zap"

	"github.com/ZachT1711/gittry/internal/gitcfg"
	"github.com/ZachT1711/gittry/internal/index"
	"github.com/ZachT1711/gittry/internal/lockfile"
	"github.com/ZachT1711/gittry/internal/object"
)

const gitDirName = ".git"

// Repository binds the working tree root to its metadata directory, the
// object store and the config store.
type Repository struct {
	Root    string
	GitDir  string
	Objects object.Store
	Config  *gitcfg.Store
	Logger  *zap.Logger
}

// FindRoot searches for the repository root by looking for the metadata
// directory, walking up from startDir.
func FindRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, gitDirName)); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", errors.New("repository root not found")
}

// Init creates an empty repository at root and opens it.
func Init(root string, logger *zap.Logger) (*Repository, error) {
	gitDir := filepath.Join(root, gitDirName)
	for _, dir := range []string{gitDir, filepath.Join(gitDir, "info"), filepath.Join(gitDir, "objects")} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	return open(root, logger)
}

// Open locates the repository containing startDir and opens it.
func Open(startDir string, logger *zap.Logger) (*Repository, error) {
	root, err := FindRoot(startDir)
	if err != nil {
		return nil, err
	}
	return open(root, logger)
}

func open(root string, logger *zap.Logger) (*Repository, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	gitDir := filepath.Join(root, gitDirName)

	opts := badger.DefaultOptions(filepath.Join(gitDir, "objects"))
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening object database: %w", err)
	}

	store, err := object.NewBadgerStore(db, object.Options{}, logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing object store: %w", err)
	}

	return &Repository{
		Root:    root,
		GitDir:  gitDir,
		Objects: store,
		Config:  gitcfg.New(gitDir, logger),
		Logger:  logger,
	}, nil
}

func (r *Repository) Close() error {
	return r.Objects.Close()
}

func (r *Repository) IndexPath() string {
	return filepath.Join(r.GitDir, "index")
}

// SparseFile returns the pattern file path.
func (r *Repository) SparseFile() string {
	return filepath.Join(r.GitDir, "info", "sparse-checkout")
}

func (r *Repository) headPath() string {
	return filepath.Join(r.GitDir, "HEAD")
}

// Head returns the current commit id, or false in a fresh repository.
func (r *Repository) Head() (string, bool) {
	data, err := os.ReadFile(r.headPath())
	if err != nil {
		return "", false
	}
	oid := strings.TrimSpace(string(data))
	if oid == "" {
		return "", false
	}
	return oid, true
}

// SetHead points HEAD at oid. The write is atomic so a crash never leaves
// a torn ref.
func (r *Repository) SetHead(oid string) error {
	return atomic.WriteFile(r.headPath(), bytes.NewReader([]byte(oid+"\n")))
}

// HeadTree resolves HEAD to its tree id, or false in a fresh repository.
func (r *Repository) HeadTree() (string, bool, error) {
	oid, ok := r.Head()
	if !ok {
		return "", false, nil
	}
	commit, err := r.Objects.GetCommit(oid)
	if err != nil {
		return "", false, fmt.Errorf("resolving HEAD %s: %w", oid, err)
	}
	return commit.Tree, true, nil
}

// Snapshot records the files currently materialized in the working tree as
// a new commit, advances HEAD and rebuilds the index from the new tree.
func (r *Repository) Snapshot(message, author string) (string, error) {
	skip := func(rel string) bool {
		return rel == gitDirName || strings.HasPrefix(rel, gitDirName+"/")
	}

	treeOID, err := object.BuildTree(r.Objects, r.Root, skip)
	if err != nil {
		return "", fmt.Errorf("building tree: %w", err)
	}

	commit := &object.Commit{
		Tree:      treeOID,
		Message:   message,
		Author:    author,
		CreatedAt: time.Now().UTC(),
	}
	if parent, ok := r.Head(); ok {
		commit.Parent = parent
	}

	oid, err := r.Objects.StoreCommit(commit)
	if err != nil {
		return "", err
	}
	if err := r.SetHead(oid); err != nil {
		return "", fmt.Errorf("advancing HEAD: %w", err)
	}

	entries, err := object.ReadTreeRecursive(r.Objects, treeOID)
	if err != nil {
		return "", err
	}

	lk, err := lockfile.Acquire(r.IndexPath())
	if err != nil {
		return "", err
	}

	ix := &index.Index{}
	for _, e := range entries {
		ix.Entries = append(ix.Entries, index.Entry{Path: e.Path, Mode: e.Mode, OID: e.OID})
	}
	ix.PrimeCacheTree(treeOID)

	if err := ix.WriteThrough(lk); err != nil {
		lk.Rollback()
		return "", err
	}
	if err := lk.Commit(); err != nil {
		return "", err
	}

	r.Logger.Info("recorded snapshot",
		zap.String("commit", oid),
		zap.String("tree", treeOID),
		zap.Int("entries", len(entries)))

	return oid, nil
}
