package types

import (
	"fmt"
	"strings"
)

// LocatorSeparator joins the file path, ancestor suite titles and leaf title
// in the serialized locator form.
const LocatorSeparator = "#"

// Locator identifies a test or suite by its file path plus ancestor-qualified
// title chain. It is the selection and blocklist-match key.
type Locator struct {
	File      string   `json:"file" yaml:"file"`
	Ancestors []string `json:"ancestors,omitempty" yaml:"ancestors,omitempty"`
	Title     string   `json:"title" yaml:"title"`
}

// NewLocator builds a locator for a leaf title under the given ancestor chain.
// The ancestor slice is copied so callers can keep mutating their stack.
func NewLocator(file string, ancestors []string, title string) Locator {
	l := Locator{File: file, Title: title}
	if len(ancestors) > 0 {
		l.Ancestors = make([]string, len(ancestors))
		copy(l.Ancestors, ancestors)
	}
	return l
}

// String returns the serialized form: file#ancestor1#ancestor2#title.
// A suite locator serializes the same way with the suite title as the leaf.
func (l Locator) String() string {
	parts := make([]string, 0, len(l.Ancestors)+2)
	parts = append(parts, l.File)
	parts = append(parts, l.Ancestors...)
	parts = append(parts, l.Title)
	return strings.Join(parts, LocatorSeparator)
}

// Path returns the title chain root-to-leaf, excluding the file path
func (l Locator) Path() []string {
	path := make([]string, 0, len(l.Ancestors)+1)
	path = append(path, l.Ancestors...)
	path = append(path, l.Title)
	return path
}

// ParseLocator parses the serialized locator form produced by String.
// The first segment is the file path, the last is the leaf title, everything
// between is the ancestor chain. Titles may be empty strings; a locator needs
// at least a file and a leaf segment.
func ParseLocator(s string) (Locator, error) {
	parts := strings.Split(s, LocatorSeparator)
	if len(parts) < 2 {
		return Locator{}, fmt.Errorf("malformed locator %q: expected file%stitle", s, LocatorSeparator)
	}
	return Locator{
		File:      parts[0],
		Ancestors: parts[1 : len(parts)-1],
		Title:     parts[len(parts)-1],
	}, nil
}
