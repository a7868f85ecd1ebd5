// internal/pattern/match.go
package pattern

import "strings"

type Verdict int

const (
	Exclude Verdict = iota
	Include
)

// Match decides whether a repository-relative path is materialized. The
// verdict is deterministic for a given list.
func (l *List) Match(path string, isDir bool) Verdict {
	path = strings.TrimPrefix(path, "/")
	if l.UseCone {
		return l.matchCone(path, isDir)
	}
	return l.matchGeneral(path, isDir)
}

func (l *List) matchCone(path string, isDir bool) Verdict {
	key := "/" + path

	// Anything under a recursive subtree is in.
	if l.inRecursiveCone(key) {
		return Include
	}

	// Parent directories are materialized so their children stay reachable.
	if isDir && l.ContainsParent(key) {
		return Include
	}

	// Files directly inside the root or a parent directory. The root is the
	// implicit zero-length parent key.
	if !isDir {
		dir := key[:strings.LastIndex(key, "/")]
		if dir == "" {
			return Include
		}
		if l.ContainsParent(dir) {
			return Include
		}
	}

	return Exclude
}

func (l *List) matchGeneral(path string, isDir bool) Verdict {
	verdict := Exclude
	for _, p := range l.Patterns {
		if p.matches(path, isDir) {
			if p.Negative {
				verdict = Exclude
			} else {
				verdict = Include
			}
		}
	}
	return verdict
}

// matches reports whether the pattern applies to path. A pattern matching
// an ancestor directory applies to everything beneath it.
func (p *Pattern) matches(path string, isDir bool) bool {
	if p.matchesOne(path, isDir) {
		return true
	}
	for dir := parentDir(path); dir != ""; dir = parentDir(dir) {
		if p.matchesOne(dir, true) {
			return true
		}
	}
	return false
}

func (p *Pattern) matchesOne(target string, isDir bool) bool {
	if p.MustBeDir && !isDir {
		return false
	}

	if p.Anchored {
		return p.matchText("/"+target, true)
	}
	if p.matchText(target, false) {
		return true
	}
	// Unanchored patterns also match the basename at any depth.
	if i := strings.LastIndex(target, "/"); i >= 0 {
		return p.matchText(target[i+1:], false)
	}
	return false
}

func (p *Pattern) matchText(name string, slashSpecial bool) bool {
	if p.NoWildcardLen == len(p.Text) {
		return p.Text == name
	}
	return wildmatch(p.Text, name, slashSpecial)
}

func parentDir(path string) string {
	i := strings.LastIndex(path, "/")
	if i < 0 {
		return ""
	}
	return path[:i]
}
