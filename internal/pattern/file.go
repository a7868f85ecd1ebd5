// internal/pattern/file.go
package pattern

import (
	"fmt"
	"os"
	"strings"
)

// Load reads a pattern file. With cone set, lines that fit the canonical
// cone shape rebuild the hash sets; anything else degrades the whole list
// to general matching with a warning, per the dialect contract.
func Load(path string, cone bool) (*List, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(string(data), cone)
}

// Parse builds a List from newline-delimited pattern text.
func Parse(text string, cone bool) (*List, error) {
	l := NewList(cone)

	unsupported := ""
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if err := l.Add(line, ""); err != nil {
			return nil, err
		}

		if cone && unsupported == "" {
			if msg := l.classifyConeLine(l.Patterns[len(l.Patterns)-1]); msg != "" {
				unsupported = msg
			}
		}
	}

	if cone && unsupported != "" {
		l.warn(unsupported)
		l.warn("disabling cone pattern matching")
		l.UseCone = false
	}

	return l, nil
}

// classifyConeLine feeds one parsed pattern into the cone sets. It returns
// a warning message when the pattern does not fit the canonical shape.
func (l *List) classifyConeLine(p *Pattern) string {
	if p.Negative {
		// The root marker "!/*/".
		if p.Text == "/*" {
			return ""
		}
		// "!<parent>/*/" demotes a previously inserted key to parent-only.
		if key, ok := strings.CutSuffix(p.Text, "/*"); ok {
			if _, found := l.recursive[key]; found {
				delete(l.recursive, key)
				return ""
			}
		}
		return fmt.Sprintf("unrecognized negative pattern: %q", p.Text)
	}

	// The root marker "/*".
	if p.Text == "/*" && !p.MustBeDir {
		return ""
	}

	if p.MustBeDir && p.Anchored && p.NoWildcardLen == len(p.Text) {
		l.ConeInsert(p.Text)
		return ""
	}
	return fmt.Sprintf("unrecognized pattern: %q", p.Text)
}
