// Package serialize renders an in-memory value graph as JavaScript source
// text that rebuilds an equivalent graph when evaluated. Shared and cyclic
// references are preserved: a composite value is written once and every
// further occurrence is linked to the access path that first reached it.
package serialize

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("serialize-to-js.serialize")

// Anchor is a named value the output may refer to by name instead of
// reconstructing it. The name must be an expression in scope wherever the
// output is evaluated, e.g. "globalThis" or "console".
type Anchor struct {
	Name  string
	Value any
}

// Options controls rendering.
type Options struct {
	// MaxDepth caps nesting; the root is at depth 1. Zero means unbounded.
	MaxDepth int

	// EvaluateSimpleGetters annotates callables that look like pure
	// zero-argument getters with the value they return.
	EvaluateSimpleGetters bool

	// Unsafe disables escaping of <, >, / and the Unicode line terminators.
	Unsafe bool

	// Space is the indentation unit. Empty disables pretty printing.
	Space string

	// AlwaysQuote quotes every object literal key.
	AlwaysQuote bool

	// FullPaths writes every record property as a patch statement instead of
	// an inline literal.
	FullPaths bool

	// IgnoreFunction replaces callables with a placeholder.
	IgnoreFunction bool

	// Needle, when set, drops property patches whose rendering does not
	// contain it.
	Needle string

	// Anchors are registered, in order, before the root is rendered.
	Anchors []Anchor
}

// DefaultOptions returns the default options: unbounded depth, getter
// evaluation on, safe escaping and two-space indentation.
func DefaultOptions() *Options {
	return &Options{
		EvaluateSimpleGetters: true,
		Space:                 IndentUnit(2),
	}
}

// IndentUnit returns an indentation unit of n spaces.
func IndentUnit(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat(" ", n)
}

// directLinkError short-circuits the anchor pass when the root itself is
// reachable from an anchor.
type directLinkError struct {
	path string
}

func (e *directLinkError) Error() string {
	return "root is directly linkable as " + e.path
}

var reservedAnchor = regexp.MustCompile(`^(root|obj[0-9]+)$`)

// Serialize renders v as JavaScript source. When the graph needs no
// declarations or patches the result is a plain expression; otherwise it is
// a self-invoking function that builds the root, patches the remaining
// links and returns the root. When v is reachable from an anchor the result
// is just the anchor path.
//
// A bare expression is dedented by one indentation unit. Lines of callable
// source text that start with that unit lose it as well; this only changes
// whitespace, except inside multi-line template literals.
//
// Faults while rendering a single value are written into the output as an
// "undefined" placeholder with a comment. The returned error is reserved
// for invalid options and for internal inconsistencies, reported as
// *AlreadyVisitedError.
func Serialize(v any, opts *Options) (string, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	for _, a := range opts.Anchors {
		if a.Name == "" || reservedAnchor.MatchString(a.Name) {
			return "", fmt.Errorf("serialize: invalid anchor name %q", a.Name)
		}
	}

	s := newSerializer(v, opts)

	// Anchor pass: bind everything reachable from the anchors.
	for _, a := range opts.Anchors {
		if s.refs.IsVisited(a.Value) {
			continue
		}
		s.path.Reset(a.Name)
		if _, err := s.render(a.Value, 1, 2); err != nil {
			var link *directLinkError
			if errors.As(err, &link) {
				log.Debugf("root is linkable as %s", link.path)
				return link.path, nil
			}
			return "", err
		}
	}
	if len(opts.Anchors) > 0 {
		log.Debugf("absorbed %d anchors, %d values bound", len(opts.Anchors), s.refs.Len())
	}

	s.objects = 0
	s.path.Reset(rootName)
	s.absorbing = false

	out, err := s.render(v, 1, 2)
	if err != nil {
		return "", err
	}
	if out.before == "" && out.after == "" {
		if s.opts.Space == "" {
			return out.main, nil
		}
		return strings.ReplaceAll(out.main, "\n"+s.opts.Space, "\n"), nil
	}
	return s.wrap(out), nil
}

func (s *serializer) wrap(out fragment) string {
	var b strings.Builder
	b.WriteString("(function(){" + s.nl)
	b.WriteString(out.before)
	b.WriteString(s.opts.Space + "const " + rootName + " = " + out.main + ";" + s.nl)
	b.WriteString(out.after)
	b.WriteString(s.opts.Space + "return " + rootName + ";" + s.nl)
	b.WriteString("})()")
	return b.String()
}
