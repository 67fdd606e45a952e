package serialize

import (
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"math/big"
	"net/url"
	"strconv"
	"strings"

	"github.com/EmileSonneveld/serialize-to-js/value"
)

const rootName = "root"

// Placeholders written in place of values that are not reconstructed inline.
const (
	linkedLater         = "undefined /* Linked later*/"
	depthExceeded       = "undefined /* >maxDepth */"
	functionIgnored     = "undefined /* ignoreFunction */"
	accessorPlaceholder = "undefined /* get/set not supported */"
)

// fragment is the output of rendering one value: declarations that must
// precede the root, the inline expression, and patch statements that must
// run after the root exists. Children hand their fragments to the parent,
// which splices main and concatenates before/after in traversal order.
type fragment struct {
	before string
	main   string
	after  string
}

func (f *fragment) merge(c fragment) {
	f.before += c.before
	f.after += c.after
}

func (f fragment) contains(s string) bool {
	return strings.Contains(f.before, s) || strings.Contains(f.main, s) || strings.Contains(f.after, s)
}

// serializer is the state of one Serialize call.
type serializer struct {
	opts      *Options
	root      any
	refs      *RefTable
	path      *PathStack
	absorbing bool
	objects   int // hoisted declaration counter

	nl string // newline, empty when not pretty printing
	sp string // space after ":" and "," inside entries
}

func newSerializer(root any, opts *Options) *serializer {
	s := &serializer{
		opts:      opts,
		root:      root,
		refs:      NewRefTable(),
		path:      NewPathStack(rootName),
		absorbing: true,
	}
	if opts.Space != "" {
		s.nl = "\n"
		s.sp = " "
	}
	return s
}

func (s *serializer) mark(v any) error {
	return s.refs.MarkVisited(v, s.path.Join())
}

func (s *serializer) linked(v any) (string, bool) {
	p, err := s.refs.Resolve(v)
	return p, err == nil
}

// stmt appends a patch statement.
func (s *serializer) stmt(out *fragment, text string) {
	out.after += s.opts.Space + text + ";" + s.nl
}

// line appends a patch line that carries its own terminator.
func (s *serializer) line(out *fragment, text string) {
	out.after += s.opts.Space + text + s.nl
}

// literal lays out bracketed items at the given indentation level.
func (s *serializer) literal(open string, items []string, close string, indent int) string {
	if len(items) == 0 {
		return open + close
	}
	pad := strings.Repeat(s.opts.Space, indent)
	var b strings.Builder
	b.WriteString(open)
	b.WriteString(s.nl)
	for i, it := range items {
		if i > 0 {
			b.WriteString(",")
			b.WriteString(s.nl)
		}
		b.WriteString(pad)
		b.WriteString(it)
	}
	b.WriteString(s.nl)
	b.WriteString(strings.Repeat(s.opts.Space, indent-1))
	b.WriteString(close)
	return b.String()
}

// ---------------------------------------------------------------------------
// Dispatch
// ---------------------------------------------------------------------------

// render renders v found at the current path. depth counts structural
// nesting for MaxDepth; indent is the pretty-printing level of v's items.
//
// A fault while rendering v is confined to v: bindings made since v was
// entered are rolled back and v becomes a placeholder. Only the direct link
// signal and *AlreadyVisitedError are returned as errors.
func (s *serializer) render(v any, depth, indent int) (fragment, error) {
	if s.absorbing && value.HasIdentity(v) && v == s.root {
		return fragment{}, &directLinkError{path: s.path.Join()}
	}
	if s.opts.MaxDepth > 0 && depth > s.opts.MaxDepth {
		return fragment{main: depthExceeded}, nil
	}

	checkpoint, pathLen := s.refs.Checkpoint(), s.path.Len()
	out, err := s.renderValue(v, depth, indent)
	if err == nil {
		return out, nil
	}
	var link *directLinkError
	var visited *AlreadyVisitedError
	if errors.As(err, &link) || errors.As(err, &visited) {
		return fragment{}, err
	}

	s.path.Truncate(pathLen)
	path := s.path.Join()
	if n := s.refs.RollbackTo(checkpoint); n > 0 {
		log.Warningf("dirty error at %s, %d bindings rolled back: %s", path, n, err)
	}
	return fragment{main: faultPlaceholder(out.main, err, path)}, nil
}

func faultPlaceholder(partial string, err error, path string) string {
	msg, _, _ := strings.Cut(err.Error(), "\n")
	note := "error: " + msg + ", access path: " + path
	if partial != "" {
		note = partial + " " + note
	}
	return "undefined /* " + defuseComment(note) + " */"
}

func (s *serializer) renderValue(v any, depth, indent int) (out fragment, err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = fmt.Errorf("panic: %w", e)
			} else {
				err = fmt.Errorf("panic: %v", r)
			}
		}
	}()

	u := s.opts.Unsafe
	switch value.Classify(v) {
	case value.KindUndefined:
		out.main = "undefined"
	case value.KindNull:
		out.main = "null"
	case value.KindBool:
		out.main = strconv.FormatBool(v.(bool))
	case value.KindNumber:
		out.main = number(value.ToFloat(v))
	case value.KindString:
		out.main = Quote(v.(string), u)
	case value.KindBigInt:
		out.main = "BigInt(" + Quote(v.(*big.Int).String(), u) + ")"
	case value.KindURL:
		out.main = "new URL(" + Quote(v.(*url.URL).String(), u) + ")"
	case value.KindSymbol:
		if err = s.mark(v); err == nil {
			out.main = "Symbol(" + Quote(v.(*value.Symbol).Description, u) + ")"
		}
	case value.KindRegExp:
		re := v.(*value.RegExp)
		if err = s.mark(re); err == nil {
			out.main = "new RegExp(" + Quote(re.Source, u) + ", " + Quote(re.Flags, u) + ")"
		}
	case value.KindDate:
		d := v.(*value.Date)
		if err = s.mark(d); err == nil {
			if d.Invalid {
				out.main = `new Date("Invalid Date")`
			} else {
				out.main = "new Date(" + Quote(value.ISOString(d.Time), u) + ")"
			}
		}
	case value.KindError:
		if err = s.mark(v); err == nil {
			out.main = "new Error(" + Quote(v.(*value.Error).Message, u) + ")"
		}
	case value.KindBuffer:
		var data []byte
		switch b := v.(type) {
		case *value.Buffer:
			data = b.Data
		case []byte:
			data = b
		}
		if err = s.mark(v); err == nil {
			out.main = `Buffer.from("` + base64.StdEncoding.EncodeToString(data) + `", "base64")`
		}
	case value.KindTypedArray:
		return s.renderTypedArray(v.(*value.TypedArray))
	case value.KindFunction:
		return s.renderFunction(v.(*value.Function), depth)
	case value.KindArray:
		return s.renderArray(v.(*value.Array), depth, indent)
	case value.KindObject:
		return s.renderObject(v.(*value.Object), depth, indent)
	case value.KindMap:
		return s.renderMap(v.(*value.Map), depth, indent)
	case value.KindSet:
		return s.renderSet(v.(*value.Set), depth, indent)
	default:
		if !s.absorbing {
			out.main = "undefined /* not supported: " + defuseComment(value.Describe(v)) + " */"
		}
	}
	return out, err
}

// number keeps the sign of negative zero, which FormatNumber drops.
func number(f float64) string {
	if f == 0 && math.Signbit(f) {
		return "-0"
	}
	return value.FormatNumber(f)
}

// ---------------------------------------------------------------------------
// Leaf composites
// ---------------------------------------------------------------------------

func (s *serializer) renderTypedArray(ta *value.TypedArray) (fragment, error) {
	var out fragment
	if err := s.mark(ta); err != nil {
		return out, err
	}
	if !ta.Type.Valid() {
		return out, fmt.Errorf("unsupported typed array type %q", ta.Type)
	}
	nums := make([]string, len(ta.Values))
	for i, f := range ta.Values {
		nums[i] = number(f)
	}
	out.main = "new " + string(ta.Type) + "([" + strings.Join(nums, ", ") + "])"
	return out, nil
}

const nativeCode = "[native code]"

// functionText prepares callable source for inline use.
func functionText(src string, unsafe bool) string {
	if !unsafe {
		src = SaferFunctionString(src)
	}
	src = strings.Replace(src, nativeCode, "/*[native code] Avoid this by allowing to link to globalThis object*/", 1)
	if !strings.HasPrefix(src, "function") {
		// Method shorthand such as "get() { ... }" needs the keyword to stand
		// alone as an expression.
		paren := strings.IndexByte(src, '(')
		if paren > 0 && paren < strings.IndexByte(src, ' ') {
			src = "function " + src
		}
	}
	return src
}

func (s *serializer) renderFunction(fn *value.Function, depth int) (fragment, error) {
	var out fragment
	// Bound before the body so a reference to itself resolves.
	if err := s.mark(fn); err != nil {
		return out, err
	}
	if s.opts.IgnoreFunction {
		out.main = functionIgnored
	} else {
		if strings.TrimSpace(fn.Source) == "" {
			return out, errors.New("callable has no source text")
		}
		out.main = functionText(fn.Source, s.opts.Unsafe)
		if fn.Prototype != nil && !s.refs.IsVisited(fn.Prototype) {
			s.path.Push(".prototype")
			err := s.mark(fn.Prototype)
			s.path.Pop()
			if err != nil {
				return out, err
			}
		}
	}

	if !s.absorbing && s.opts.EvaluateSimpleGetters && fn.Eval != nil && IsSimpleGetter(fn.Source, fn.Name) {
		got, err := fn.Eval()
		if err != nil {
			return out, fmt.Errorf("evaluating getter: %w", err)
		}
		out.main += "/* val: " + defuseComment(value.Describe(got)) + "*/"
	}

	if !s.opts.IgnoreFunction {
		if err := s.appendDirtyProps(&out, fn.Props, depth); err != nil {
			return out, err
		}
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Containers
// ---------------------------------------------------------------------------

func (s *serializer) renderObject(o *value.Object, depth, indent int) (fragment, error) {
	var out fragment
	if err := s.mark(o); err != nil {
		return out, err
	}

	if s.opts.FullPaths {
		if err := s.appendDirtyProps(&out, o.Props, depth); err != nil {
			return out, err
		}
		out.main = "{}"
	} else {
		items := make([]string, 0, len(o.Props))
		for _, p := range o.Props {
			key := literalKey(p.Key, s.opts) + ":" + s.sp
			if p.IsAccessor() {
				items = append(items, key+accessorPlaceholder)
				s.defineAccessor(&out, p)
				continue
			}
			s.path.Push(keySegment(p.Key, s.opts.Unsafe))
			if target, ok := s.linked(p.Value); ok {
				items = append(items, key+linkedLater)
				s.stmt(&out, s.path.Join()+" = "+target)
			} else {
				c, err := s.render(p.Value, depth+1, indent+1)
				if err != nil {
					return out, err
				}
				out.merge(c)
				items = append(items, key+c.main)
			}
			s.path.Pop()
		}
		out.main = s.literal("{", items, "}", indent)
	}

	if o.Class != nil {
		if err := s.linkClass(&out, o.Class, depth); err != nil {
			return out, err
		}
	}
	return out, nil
}

// linkClass hoists the constructor of a class instance and points the
// instance's prototype at the constructor's prototype object.
func (s *serializer) linkClass(out *fragment, class *value.Function, depth int) error {
	if !s.refs.IsVisited(class) && !s.absorbing {
		_, c, err := s.hoist(class, depth)
		if err != nil {
			return err
		}
		out.merge(c)
	}
	if class.Prototype != nil {
		if proto, ok := s.linked(class.Prototype); ok {
			s.stmt(out, s.path.Join()+".__proto__ = "+proto)
			return nil
		}
	}
	s.line(out, "/* "+defuseComment(s.path.Join())+".__proto__ = not supported yet */")
	return nil
}

func (s *serializer) renderArray(a *value.Array, depth, indent int) (fragment, error) {
	var out fragment
	if err := s.mark(a); err != nil {
		return out, err
	}

	// Once a slot cannot be written in the literal (a link or a hole), every
	// later slot is assigned by index so positions stay right.
	mutating := false
	items := make([]string, 0, len(a.Elems))
	for i, el := range a.Elems {
		if value.IsHole(el) {
			mutating = true
			continue
		}
		s.path.Push("[" + strconv.Itoa(i) + "]")
		if target, ok := s.linked(el); ok {
			if !mutating {
				items = append(items, linkedLater)
			}
			s.stmt(&out, s.path.Join()+" = "+target)
			mutating = true
		} else if mutating {
			c, err := s.render(el, depth+1, 2)
			if err != nil {
				return out, err
			}
			out.before += c.before
			s.stmt(&out, s.path.Join()+" = "+c.main)
			out.after += c.after
		} else {
			c, err := s.render(el, depth+1, indent+1)
			if err != nil {
				return out, err
			}
			out.merge(c)
			items = append(items, c.main)
		}
		s.path.Pop()
	}
	if n := len(a.Elems); n > 0 && value.IsHole(a.Elems[n-1]) {
		s.stmt(&out, s.path.Join()+".length = "+strconv.Itoa(n))
	}

	if err := s.appendDirtyProps(&out, a.Props, depth); err != nil {
		return out, err
	}
	out.main = s.literal("[", items, "]", indent)
	return out, nil
}

func (s *serializer) renderMap(m *value.Map, depth, indent int) (fragment, error) {
	var out fragment
	if err := s.mark(m); err != nil {
		return out, err
	}
	self := s.path.Join()

	mutating := false
	items := make([]string, 0, len(m.Entries))
	for _, e := range m.Entries {
		key, keyLinked := s.linked(e.Key)
		if !keyLinked {
			if value.HasIdentity(e.Key) {
				if s.absorbing {
					continue
				}
				name, c, err := s.hoist(e.Key, depth)
				if err != nil {
					return out, err
				}
				out.merge(c)
				key = name
			} else {
				c, err := s.render(e.Key, depth+1, indent+1)
				if err != nil {
					return out, err
				}
				out.merge(c)
				key = c.main
			}
		}

		s.path.Push(".get(" + key + ")")
		target, valueLinked := s.linked(e.Value)
		switch {
		case valueLinked:
			// A linked key cannot appear in the literal: it is a path into
			// the root, which does not exist yet.
			if !keyLinked && !mutating {
				items = append(items, "["+key+","+s.sp+linkedLater+"]")
			}
			s.stmt(&out, self+".set("+key+", "+target+")")
			mutating = true
		case keyLinked || mutating:
			c, err := s.render(e.Value, depth+1, 2)
			if err != nil {
				return out, err
			}
			out.before += c.before
			s.stmt(&out, self+".set("+key+", "+c.main+")")
			out.after += c.after
			mutating = true
		default:
			c, err := s.render(e.Value, depth+1, indent+1)
			if err != nil {
				return out, err
			}
			out.merge(c)
			items = append(items, "["+key+","+s.sp+c.main+"]")
		}
		s.path.Pop()
	}

	if err := s.appendDirtyProps(&out, m.Props, depth); err != nil {
		return out, err
	}
	out.main = "new Map(" + s.literal("[", items, "]", indent) + ")"
	return out, nil
}

func (s *serializer) renderSet(set *value.Set, depth, indent int) (fragment, error) {
	var out fragment
	if err := s.mark(set); err != nil {
		return out, err
	}
	self := s.path.Join()

	mutating := false
	items := make([]string, 0, len(set.Items))
	for _, it := range set.Items {
		var expr string
		if target, ok := s.linked(it); ok {
			expr = target
			mutating = true
		} else if value.HasIdentity(it) {
			if s.absorbing {
				continue
			}
			name, c, err := s.hoist(it, depth)
			if err != nil {
				return out, err
			}
			out.merge(c)
			expr = name
		} else {
			c, err := s.render(it, depth+1, indent+1)
			if err != nil {
				return out, err
			}
			out.merge(c)
			expr = c.main
		}
		if mutating {
			s.stmt(&out, self+".add("+expr+")")
		} else {
			items = append(items, expr)
		}
	}

	if err := s.appendDirtyProps(&out, set.Props, depth); err != nil {
		return out, err
	}
	out.main = "new Set(" + s.literal("[", items, "]", indent) + ")"
	return out, nil
}

// hoist renders v as a standalone "const objN" declaration so it can be
// referenced by name from a literal, as a map key, set member or class.
func (s *serializer) hoist(v any, depth int) (string, fragment, error) {
	s.objects++
	name := "obj" + strconv.Itoa(s.objects)
	saved := s.path.Swap(name)
	defer s.path.Restore(saved)

	c, err := s.render(v, depth+1, 2)
	if err != nil {
		return "", fragment{}, err
	}
	decl := c.before + s.opts.Space + "const " + name + " = " + c.main + ";" + s.nl
	return name, fragment{before: decl, after: c.after}, nil
}

// ---------------------------------------------------------------------------
// Dirty properties
// ---------------------------------------------------------------------------

// appendDirtyProps writes props as patch statements on the current path.
func (s *serializer) appendDirtyProps(out *fragment, props value.Props, depth int) error {
	for _, p := range props {
		if p.IsAccessor() {
			s.defineAccessor(out, p)
			continue
		}
		if p.Key == protoKey {
			// Assigning a missing __proto__ would set the prototype.
			s.stmt(out, "Object.defineProperty("+s.path.Join()+`, "__proto__", {value: undefined, writable: true, enumerable: true, configurable: true})`)
		}
		s.path.Push(keySegment(p.Key, s.opts.Unsafe))
		if target, ok := s.linked(p.Value); ok {
			s.stmt(out, s.path.Join()+" = "+target)
		} else {
			checkpoint := s.refs.Checkpoint()
			c, err := s.render(p.Value, depth+1, 2)
			if err != nil {
				return err
			}
			// Anchors exist wherever the output runs, so the needle only
			// filters what is rendered for the root.
			if s.absorbing || s.opts.Needle == "" || c.contains(s.opts.Needle) {
				out.before += c.before
				s.stmt(out, s.path.Join()+" = "+c.main)
				out.after += c.after
			} else {
				// Dropped: nothing may link into it.
				s.refs.RollbackTo(checkpoint)
			}
		}
		s.path.Pop()
	}
	return nil
}

func (s *serializer) defineAccessor(out *fragment, p value.Property) {
	var b strings.Builder
	b.WriteString("Object.defineProperty(")
	b.WriteString(s.path.Join())
	b.WriteString(", ")
	b.WriteString(Quote(p.Key, s.opts.Unsafe))
	b.WriteString(", {")
	if p.Get != nil {
		b.WriteString("get: () => {}, ")
	}
	if p.Set != nil {
		b.WriteString("set: (val) => {}, ")
	}
	b.WriteString("}); /* get/set not supported */")
	s.line(out, b.String())
}
