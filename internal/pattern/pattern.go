// internal/pattern/pattern.go
package pattern

import (
	"fmt"
	"strings"

	"github.com/ZachT1711/gittry/internal/errors"
)

// Pattern is one parsed line of the general dialect.
type Pattern struct {
	Text          string
	BaseLen       int
	Negative      bool
	MustBeDir     bool
	NoWildcardLen int
	Anchored      bool
}

// List holds an ordered pattern sequence. In cone mode it additionally
// carries the recursive and parent hash sets; keys are "/"-prefixed
// canonical paths with no trailing slash.
type List struct {
	Patterns []*Pattern
	UseCone  bool

	recursive map[string]struct{}
	parent    map[string]struct{}

	warnings []string
}

func NewList(useCone bool) *List {
	l := &List{UseCone: useCone}
	if useCone {
		l.recursive = make(map[string]struct{})
		l.parent = make(map[string]struct{})
	}
	return l
}

// Add parses text as a general-dialect pattern and appends it. The base is
// the directory the pattern is anchored beneath; top-level patterns use "".
func (l *List) Add(text, base string) error {
	if strings.ContainsAny(text, "\n\x00") {
		return errors.InvalidPattern(fmt.Sprintf("pattern %q contains a forbidden byte", text))
	}

	p := &Pattern{Text: text, BaseLen: len(base)}

	if strings.HasPrefix(p.Text, "!") {
		p.Negative = true
		p.Text = p.Text[1:]
	}
	if len(p.Text) > 1 && strings.HasSuffix(p.Text, "/") {
		p.MustBeDir = true
		p.Text = p.Text[:len(p.Text)-1]
	}
	p.Anchored = strings.HasPrefix(p.Text, "/")

	if i := strings.IndexAny(p.Text, "*?["); i >= 0 {
		p.NoWildcardLen = i
	} else {
		p.NoWildcardLen = len(p.Text)
	}

	l.Patterns = append(l.Patterns, p)
	return nil
}

// Clear releases all patterns and sets.
func (l *List) Clear() {
	l.Patterns = nil
	l.warnings = nil
	if l.UseCone {
		l.recursive = make(map[string]struct{})
		l.parent = make(map[string]struct{})
	}
}

func (l *List) Len() int {
	return len(l.Patterns)
}

// Warnings returns the dialect warnings collected while parsing.
func (l *List) Warnings() []string {
	return l.warnings
}

func (l *List) warn(msg string) {
	l.warnings = append(l.warnings, msg)
}

// Validate rejects pattern text the engine cannot persist.
func Validate(text string) error {
	if strings.ContainsAny(text, "\n\x00") {
		return errors.InvalidPattern(fmt.Sprintf("pattern %q contains a forbidden byte", text))
	}
	return nil
}
