package object

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ReadTreeRecursive flattens the tree at oid into blob entries whose Path
// is the full repository-relative path, sorted lexicographically.
func ReadTreeRecursive(s Store, oid string) ([]TreeEntry, error) {
	var out []TreeEntry

	var walk func(oid, prefix string) error
	walk = func(oid, prefix string) error {
		t, err := s.GetTree(oid)
		if err != nil {
			return fmt.Errorf("reading tree %s: %w", oid, err)
		}
		for _, e := range t.Entries {
			full := e.Path
			if prefix != "" {
				full = prefix + "/" + e.Path
			}
			if e.Mode == ModeTree {
				if err := walk(e.OID, full); err != nil {
					return err
				}
				continue
			}
			out = append(out, TreeEntry{Mode: e.Mode, Path: full, OID: e.OID})
		}
		return nil
	}

	if err := walk(oid, ""); err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// BuildTree walks root, stores every regular file as a blob and every
// directory as a tree, and returns the root tree id. Paths for which skip
// returns true are left out (the repository metadata directory, mainly).
func BuildTree(s Store, root string, skip func(rel string) bool) (string, error) {
	var build func(dir, rel string) (string, bool, error)
	build = func(dir, rel string) (string, bool, error) {
		dirents, err := os.ReadDir(dir)
		if err != nil {
			return "", false, fmt.Errorf("reading directory %s: %w", dir, err)
		}

		t := &Tree{}
		for _, de := range dirents {
			childRel := de.Name()
			if rel != "" {
				childRel = rel + "/" + de.Name()
			}
			if skip != nil && skip(childRel) {
				continue
			}

			if de.IsDir() {
				sub, nonEmpty, err := build(filepath.Join(dir, de.Name()), childRel)
				if err != nil {
					return "", false, err
				}
				if !nonEmpty {
					continue
				}
				t.Entries = append(t.Entries, TreeEntry{Mode: ModeTree, Path: de.Name(), OID: sub})
				continue
			}
			if !de.Type().IsRegular() {
				continue
			}

			content, err := os.ReadFile(filepath.Join(dir, de.Name()))
			if err != nil {
				return "", false, fmt.Errorf("reading file %s: %w", childRel, err)
			}
			oid, err := s.StoreBlob(content)
			if err != nil {
				return "", false, err
			}

			mode := ModeBlob
			if info, err := de.Info(); err == nil && info.Mode()&0111 != 0 {
				mode = ModeExec
			}
			t.Entries = append(t.Entries, TreeEntry{Mode: mode, Path: de.Name(), OID: oid})
		}

		if len(t.Entries) == 0 {
			return "", false, nil
		}
		sort.Slice(t.Entries, func(i, j int) bool { return t.Entries[i].Path < t.Entries[j].Path })

		oid, err := s.StoreTree(t)
		if err != nil {
			return "", false, err
		}
		return oid, true, nil
	}

	oid, nonEmpty, err := build(root, "")
	if err != nil {
		return "", err
	}
	if !nonEmpty {
		// An empty worktree still snapshots to a valid, empty tree.
		return s.StoreTree(&Tree{})
	}
	return oid, nil
}

// ParentDir returns the directory portion of a repository-relative path,
// or "" for a root-level entry.
func ParentDir(path string) string {
	i := strings.LastIndex(path, "/")
	if i < 0 {
		return ""
	}
	return path[:i]
}
