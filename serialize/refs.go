package serialize

import (
	"errors"
	"fmt"
	"strings"

	"github.com/EmileSonneveld/serialize-to-js/value"
)

// ---------------------------------------------------------------------------
// RefTable: identity -> access path
// ---------------------------------------------------------------------------

// ErrNotVisited is returned by Resolve for a value that has no binding.
var ErrNotVisited = errors.New("value has not been visited")

// AlreadyVisitedError reports an attempt to bind a value that is already
// bound. It signals a traversal bug and is never downgraded to a placeholder.
type AlreadyVisitedError struct {
	Old string // path of the existing binding
	New string // path of the rejected binding
}

func (e *AlreadyVisitedError) Error() string {
	return fmt.Sprintf("value already visited: old %s, new %s", e.Old, e.New)
}

// RefTable maps composite values, by identity, to the access path expression
// that first reached them. A binding never changes once made; it can only be
// removed again as a rollback. Values without identity are never bound.
type RefTable struct {
	paths map[any]string
	order []any
}

// NewRefTable creates an empty table.
func NewRefTable() *RefTable {
	return &RefTable{paths: make(map[any]string)}
}

// MarkVisited binds v to path. Values without identity are ignored.
func (t *RefTable) MarkVisited(v any, path string) error {
	if !value.HasIdentity(v) {
		return nil
	}
	if old, ok := t.paths[v]; ok {
		return &AlreadyVisitedError{Old: old, New: path}
	}
	t.paths[v] = path
	t.order = append(t.order, v)
	return nil
}

// IsVisited reports whether v is bound.
func (t *RefTable) IsVisited(v any) bool {
	if !value.HasIdentity(v) {
		return false
	}
	_, ok := t.paths[v]
	return ok
}

// Resolve returns the path bound to v.
func (t *RefTable) Resolve(v any) (string, error) {
	if !value.HasIdentity(v) {
		return "", ErrNotVisited
	}
	p, ok := t.paths[v]
	if !ok {
		return "", ErrNotVisited
	}
	return p, nil
}

// Unmark removes the binding of v and reports whether there was one.
func (t *RefTable) Unmark(v any) bool {
	if !value.HasIdentity(v) {
		return false
	}
	if _, ok := t.paths[v]; !ok {
		return false
	}
	delete(t.paths, v)
	return true
}

// Len returns the number of bindings.
func (t *RefTable) Len() int {
	return len(t.paths)
}

// Checkpoint returns a marker for RollbackTo.
func (t *RefTable) Checkpoint() int {
	return len(t.order)
}

// RollbackTo unmarks every value bound since the checkpoint and returns how
// many bindings were removed.
func (t *RefTable) RollbackTo(checkpoint int) int {
	if checkpoint < 0 || checkpoint > len(t.order) {
		return 0
	}
	n := 0
	for _, v := range t.order[checkpoint:] {
		if t.Unmark(v) {
			n++
		}
	}
	clear(t.order[checkpoint:])
	t.order = t.order[:checkpoint]
	return n
}

// ---------------------------------------------------------------------------
// PathStack: the access path of the value being rendered
// ---------------------------------------------------------------------------

// PathStack holds the segments of the current access path. The first
// segment is a bare identifier (the synthetic root, an anchor name or a
// hoisted declaration); the rest are ".key", "[...]" or ".get(...)".
type PathStack struct {
	segs []string
}

// NewPathStack creates a stack rooted at root.
func NewPathStack(root string) *PathStack {
	return &PathStack{segs: []string{root}}
}

func (p *PathStack) Push(seg string) { p.segs = append(p.segs, seg) }

func (p *PathStack) Pop() {
	if len(p.segs) > 0 {
		p.segs = p.segs[:len(p.segs)-1]
	}
}

// Join returns the access path expression.
func (p *PathStack) Join() string {
	return strings.Join(p.segs, "")
}

// Reset discards every segment and starts over at root.
func (p *PathStack) Reset(root string) {
	p.segs = append(p.segs[:0], root)
}

func (p *PathStack) Len() int { return len(p.segs) }

// Truncate drops segments beyond the first n.
func (p *PathStack) Truncate(n int) {
	if n >= 0 && n < len(p.segs) {
		p.segs = p.segs[:n]
	}
}

// Swap replaces the stack with a fresh one rooted at root and returns the
// previous segments for Restore.
func (p *PathStack) Swap(root string) []string {
	saved := p.segs
	p.segs = []string{root}
	return saved
}

// Restore reinstates segments returned by Swap.
func (p *PathStack) Restore(saved []string) {
	p.segs = saved
}
