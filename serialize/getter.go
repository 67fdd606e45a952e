package serialize

import (
	"regexp"
	"strings"
)

var leadingReturn = regexp.MustCompile(`^function\s*\(\)\s*{\s*return`)

// IsSimpleGetter guesses from source text alone whether calling a callable
// with no arguments is unlikely to change any state. It is a heuristic with a
// false negative bias: any assignment, use of this or of arguments rejects
// the callable. Accepted are sources that open with a bare return, and
// callables named get* that return something.
//
// A true result is never a guarantee; it only permits an advisory comment.
func IsSimpleGetter(source, name string) bool {
	if strings.Contains(source, "=") {
		return false
	}
	if strings.Contains(source, "this") || strings.Contains(source, "arguments") {
		return false
	}
	if leadingReturn.MatchString(source) {
		return true
	}
	if strings.HasPrefix(strings.ToLower(name), "get") {
		return strings.Contains(source, "return")
	}
	return false
}
