package moniker

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Match reports whether the moniker matches a glob pattern over its
// rendered path, e.g. "/core:0/session:*:*" for any child of a dynamic
// collection, or "/**" for the whole tree. Instance ids participate in
// matching, so patterns usually end segments with ":*".
//
// An empty pattern matches everything; a malformed pattern matches
// nothing.
func (m Moniker) Match(pattern string) bool {
	if pattern == "" {
		return true
	}
	ok, err := doublestar.Match(pattern, m.String())
	if err != nil {
		return false
	}
	return ok
}

// MatchesAny reports whether any of the patterns match.
func (m Moniker) MatchesAny(patterns []string) bool {
	if len(patterns) == 0 {
		return true
	}
	for _, p := range patterns {
		if m.Match(p) {
			return true
		}
	}
	return false
}

// ChildPattern builds a glob pattern matching every child of a collection
// under this moniker, for hook filters on dynamic children.
func (m Moniker) ChildPattern(collection string) string {
	base := m.String()
	if base == "/" {
		base = ""
	}
	var b strings.Builder
	b.WriteString(base)
	b.WriteByte('/')
	if collection != "" {
		b.WriteString(collection)
		b.WriteString(":")
	}
	b.WriteString("*:*")
	return b.String()
}
