package jscheck

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"math/big"
	"net/url"
	"strconv"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/EmileSonneveld/serialize-to-js/value"
)

// Rebuild evaluates src, a program emitted by the serializer, and returns the
// value it builds. globals binds the free identifiers the program may use,
// i.e. the anchor names it was serialized against.
//
// Only the emitted subset is understood: literals, the self-invoking
// wrapper with const declarations, constructor calls of the built-in kinds,
// and the patch statements (assignments, Map set, Set add, length and
// prototype updates, Object.defineProperty). Callables are not evaluated;
// they are captured as their source text.
func Rebuild(src string, globals map[string]any) (any, error) {
	content := asExpression(src)
	tree, err := parse(context.Background(), content)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		var errs []SyntaxError
		collectSyntaxErrors(root, content, &errs, 0)
		if len(errs) > 0 {
			return nil, fmt.Errorf("jscheck: %w", errs[0])
		}
		return nil, errors.New("jscheck: syntax error")
	}

	r := &rebuilder{
		src:        content,
		scopes:     []map[string]any{globals},
		protoOwner: map[*value.Object]*value.Function{},
	}
	stmts := r.children(root)
	if len(stmts) != 1 || stmts[0].Type() != "expression_statement" {
		return nil, fmt.Errorf("jscheck: expected a single expression, got %d statements", len(stmts))
	}
	return r.eval(r.first(stmts[0]))
}

type rebuilder struct {
	src        []byte
	scopes     []map[string]any
	protoOwner map[*value.Object]*value.Function
}

func (r *rebuilder) text(n *sitter.Node) string {
	return n.Content(r.src)
}

func (r *rebuilder) errorf(n *sitter.Node, format string, args ...any) error {
	p := n.StartPoint()
	return fmt.Errorf("jscheck: %d:%d: %s", p.Row+1, p.Column, fmt.Sprintf(format, args...))
}

// children returns the named children of n without comments.
func (r *rebuilder) children(n *sitter.Node) []*sitter.Node {
	if n == nil {
		return nil
	}
	out := make([]*sitter.Node, 0, n.NamedChildCount())
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c.Type() != "comment" {
			out = append(out, c)
		}
	}
	return out
}

func (r *rebuilder) first(n *sitter.Node) *sitter.Node {
	if cs := r.children(n); len(cs) > 0 {
		return cs[0]
	}
	return nil
}

func (r *rebuilder) lookup(name string) (any, bool) {
	for i := len(r.scopes) - 1; i >= 0; i-- {
		if v, ok := r.scopes[i][name]; ok {
			return v, true
		}
	}
	return nil, false
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

func (r *rebuilder) eval(n *sitter.Node) (any, error) {
	if n == nil {
		return nil, errors.New("jscheck: missing expression")
	}
	switch n.Type() {
	case "parenthesized_expression":
		return r.eval(r.first(n))
	case "null":
		return nil, nil
	case "undefined":
		return value.Undef, nil
	case "true":
		return true, nil
	case "false":
		return false, nil
	case "number":
		f, err := parseNumber(r.text(n))
		if err != nil {
			return nil, r.errorf(n, "bad number %q", r.text(n))
		}
		return f, nil
	case "string":
		s, err := decodeString(r.text(n))
		if err != nil {
			return nil, r.errorf(n, "%v", err)
		}
		return s, nil
	case "identifier":
		return r.identifier(n)
	case "unary_expression":
		return r.unary(n)
	case "array":
		return r.array(n)
	case "object":
		return r.object(n)
	case "function", "function_expression", "arrow_function", "class", "generator_function":
		return r.function(n), nil
	case "member_expression":
		obj, err := r.eval(n.ChildByFieldName("object"))
		if err != nil {
			return nil, err
		}
		return r.get(n, obj, r.text(n.ChildByFieldName("property")))
	case "subscript_expression":
		obj, err := r.eval(n.ChildByFieldName("object"))
		if err != nil {
			return nil, err
		}
		key, err := r.eval(n.ChildByFieldName("index"))
		if err != nil {
			return nil, err
		}
		return r.getIndex(n, obj, key)
	case "assignment_expression":
		return r.assign(n)
	case "new_expression":
		return r.construct(n)
	case "call_expression":
		return r.call(n)
	}
	return nil, r.errorf(n, "unsupported %s", n.Type())
}

func (r *rebuilder) identifier(n *sitter.Node) (any, error) {
	name := r.text(n)
	if v, ok := r.lookup(name); ok {
		return v, nil
	}
	switch name {
	case "undefined":
		return value.Undef, nil
	case "NaN":
		return math.NaN(), nil
	case "Infinity":
		return math.Inf(1), nil
	}
	return nil, r.errorf(n, "undefined identifier %s", name)
}

func (r *rebuilder) unary(n *sitter.Node) (any, error) {
	op := n.ChildByFieldName("operator")
	arg, err := r.eval(n.ChildByFieldName("argument"))
	if err != nil {
		return nil, err
	}
	f, ok := arg.(float64)
	if op == nil || !ok {
		return nil, r.errorf(n, "unsupported unary expression %s", r.text(n))
	}
	switch op.Type() {
	case "-":
		return -f, nil
	case "+":
		return f, nil
	}
	return nil, r.errorf(n, "unsupported operator %s", op.Type())
}

func (r *rebuilder) args(n *sitter.Node) ([]any, error) {
	var out []any
	for _, c := range r.children(n) {
		v, err := r.eval(c)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (r *rebuilder) array(n *sitter.Node) (any, error) {
	elems, err := r.args(n)
	if err != nil {
		return nil, err
	}
	return value.NewArray(elems...), nil
}

func (r *rebuilder) object(n *sitter.Node) (any, error) {
	o := value.NewObject()
	for _, c := range r.children(n) {
		if c.Type() != "pair" {
			return nil, r.errorf(c, "unsupported object member %s", c.Type())
		}
		key, err := r.propertyKey(c.ChildByFieldName("key"))
		if err != nil {
			return nil, err
		}
		v, err := r.eval(c.ChildByFieldName("value"))
		if err != nil {
			return nil, err
		}
		o.Set(key, v)
	}
	return o, nil
}

func (r *rebuilder) propertyKey(n *sitter.Node) (string, error) {
	switch n.Type() {
	case "property_identifier":
		return r.text(n), nil
	case "string":
		return decodeString(r.text(n))
	case "number":
		f, err := parseNumber(r.text(n))
		if err != nil {
			return "", r.errorf(n, "bad numeric key")
		}
		return value.FormatNumber(f), nil
	case "computed_property_name":
		v, err := r.eval(r.first(n))
		if err != nil {
			return "", err
		}
		return value.Describe(v), nil
	}
	return "", r.errorf(n, "unsupported key %s", n.Type())
}

func (r *rebuilder) function(n *sitter.Node) *value.Function {
	fn := &value.Function{Source: r.text(n)}
	if name := n.ChildByFieldName("name"); name != nil {
		fn.Name = r.text(name)
	}
	return fn
}

// ---------------------------------------------------------------------------
// Property access
// ---------------------------------------------------------------------------

func propsOf(v any) *value.Props {
	switch x := v.(type) {
	case *value.Object:
		return &x.Props
	case *value.Array:
		return &x.Props
	case *value.Map:
		return &x.Props
	case *value.Set:
		return &x.Props
	case *value.Function:
		return &x.Props
	}
	return nil
}

func (r *rebuilder) get(n *sitter.Node, obj any, key string) (any, error) {
	switch x := obj.(type) {
	case *value.Function:
		if key == "prototype" {
			if x.Prototype == nil {
				x.Prototype = value.NewObject()
			}
			r.protoOwner[x.Prototype] = x
			return x.Prototype, nil
		}
	case *value.Array:
		if key == "length" {
			return float64(len(x.Elems)), nil
		}
	}
	props := propsOf(obj)
	if props == nil {
		return nil, r.errorf(n, "cannot read %s of %s", key, value.Classify(obj))
	}
	if v, ok := props.Lookup(key); ok {
		return v, nil
	}
	return value.Undef, nil
}

func (r *rebuilder) getIndex(n *sitter.Node, obj any, key any) (any, error) {
	if i, ok := key.(float64); ok {
		if a, isArray := obj.(*value.Array); isArray {
			if i < 0 || int(i) >= len(a.Elems) || value.IsHole(a.Elems[int(i)]) {
				return value.Undef, nil
			}
			return a.Elems[int(i)], nil
		}
	}
	return r.get(n, obj, value.Describe(key))
}

func (r *rebuilder) set(n *sitter.Node, obj any, key string, v any) error {
	switch x := obj.(type) {
	case *value.Object:
		if key == "__proto__" && x.Props.Index(key) < 0 {
			proto, _ := v.(*value.Object)
			owner, ok := r.protoOwner[proto]
			if !ok {
				return r.errorf(n, "prototype does not belong to a known class")
			}
			x.Class = owner
			return nil
		}
	case *value.Array:
		if key == "length" {
			f, ok := v.(float64)
			if !ok || f < 0 {
				return r.errorf(n, "bad array length")
			}
			resize(x, int(f))
			return nil
		}
		if i, err := strconv.Atoi(key); err == nil && i >= 0 && strconv.Itoa(i) == key {
			setIndex(x, i, v)
			return nil
		}
	}
	props := propsOf(obj)
	if props == nil {
		return r.errorf(n, "cannot set %s on %s", key, value.Classify(obj))
	}
	props.Put(key, v)
	return nil
}

func resize(a *value.Array, n int) {
	for len(a.Elems) < n {
		a.Elems = append(a.Elems, value.Hole)
	}
	a.Elems = a.Elems[:n]
}

func setIndex(a *value.Array, i int, v any) {
	if i >= len(a.Elems) {
		resize(a, i+1)
	}
	a.Elems[i] = v
}

func (r *rebuilder) assign(n *sitter.Node) (any, error) {
	left := n.ChildByFieldName("left")
	v, err := r.eval(n.ChildByFieldName("right"))
	if err != nil {
		return nil, err
	}
	obj, err := r.eval(left.ChildByFieldName("object"))
	if err != nil {
		return nil, err
	}
	switch left.Type() {
	case "member_expression":
		return v, r.set(left, obj, r.text(left.ChildByFieldName("property")), v)
	case "subscript_expression":
		key, err := r.eval(left.ChildByFieldName("index"))
		if err != nil {
			return nil, err
		}
		if i, ok := key.(float64); ok {
			if a, isArray := obj.(*value.Array); isArray && i >= 0 && i == math.Trunc(i) {
				setIndex(a, int(i), v)
				return v, nil
			}
		}
		return v, r.set(left, obj, value.Describe(key), v)
	}
	return nil, r.errorf(left, "unsupported assignment target %s", left.Type())
}

// ---------------------------------------------------------------------------
// Constructors and calls
// ---------------------------------------------------------------------------

func (r *rebuilder) construct(n *sitter.Node) (any, error) {
	ctor := n.ChildByFieldName("constructor")
	args, err := r.args(n.ChildByFieldName("arguments"))
	if err != nil {
		return nil, err
	}
	str := func(i int) (string, error) {
		if i >= len(args) {
			return "", nil
		}
		s, ok := args[i].(string)
		if !ok {
			return "", r.errorf(n, "argument %d of %s is not a string", i, r.text(ctor))
		}
		return s, nil
	}
	list := func() ([]any, error) {
		if len(args) == 0 {
			return nil, nil
		}
		a, ok := args[0].(*value.Array)
		if !ok {
			return nil, r.errorf(n, "%s expects an array", r.text(ctor))
		}
		return a.Elems, nil
	}

	name := r.text(ctor)
	switch name {
	case "Map":
		pairs, err := list()
		if err != nil {
			return nil, err
		}
		m := value.NewMap()
		for _, p := range pairs {
			kv, ok := p.(*value.Array)
			if !ok || len(kv.Elems) != 2 {
				return nil, r.errorf(n, "Map entry is not a pair")
			}
			m.Set(kv.Elems[0], kv.Elems[1])
		}
		return m, nil
	case "Set":
		items, err := list()
		if err != nil {
			return nil, err
		}
		return value.NewSet(items...), nil
	case "Date":
		s, err := str(0)
		if err != nil {
			return nil, err
		}
		if s == "Invalid Date" {
			return &value.Date{Invalid: true}, nil
		}
		t, err := value.ParseISOString(s)
		if err != nil {
			return nil, r.errorf(n, "bad date %q", s)
		}
		return value.NewDate(t), nil
	case "RegExp":
		src, err := str(0)
		if err != nil {
			return nil, err
		}
		flags, err := str(1)
		if err != nil {
			return nil, err
		}
		return &value.RegExp{Source: src, Flags: flags}, nil
	case "Error":
		msg, err := str(0)
		if err != nil {
			return nil, err
		}
		return &value.Error{Message: msg}, nil
	case "URL":
		s, err := str(0)
		if err != nil {
			return nil, err
		}
		u, err := url.Parse(s)
		if err != nil {
			return nil, r.errorf(n, "bad URL: %v", err)
		}
		return u, nil
	}

	if t := value.TypedArrayType(name); t.Valid() {
		elems, err := list()
		if err != nil {
			return nil, err
		}
		ta := &value.TypedArray{Type: t, Values: make([]float64, len(elems))}
		for i, e := range elems {
			f, ok := e.(float64)
			if !ok {
				return nil, r.errorf(n, "%s element %d is not a number", name, i)
			}
			ta.Values[i] = f
		}
		return ta, nil
	}
	return nil, r.errorf(n, "unsupported constructor %s", name)
}

func (r *rebuilder) call(n *sitter.Node) (any, error) {
	fnNode := n.ChildByFieldName("function")
	argsNode := n.ChildByFieldName("arguments")

	// The self-invoking wrapper.
	if body := r.wrapperBody(fnNode); body != nil {
		return r.runBlock(body)
	}

	args, err := r.args(argsNode)
	if err != nil {
		return nil, err
	}

	switch fnNode.Type() {
	case "identifier":
		switch r.text(fnNode) {
		case "BigInt":
			s, _ := argAt(args, 0).(string)
			b, ok := new(big.Int).SetString(s, 10)
			if !ok {
				return nil, r.errorf(n, "bad BigInt %q", s)
			}
			return b, nil
		case "Symbol":
			s, _ := argAt(args, 0).(string)
			return &value.Symbol{Description: s}, nil
		}
	case "member_expression":
		return r.method(n, fnNode, args)
	}
	return nil, r.errorf(n, "unsupported call %s", r.text(fnNode))
}

func argAt(args []any, i int) any {
	if i < len(args) {
		return args[i]
	}
	return value.Undef
}

func (r *rebuilder) method(n, fnNode *sitter.Node, args []any) (any, error) {
	objNode := fnNode.ChildByFieldName("object")
	name := r.text(fnNode.ChildByFieldName("property"))

	if objNode.Type() == "identifier" {
		if _, shadowed := r.lookup(r.text(objNode)); !shadowed {
			switch r.text(objNode) + "." + name {
			case "Buffer.from":
				s, _ := argAt(args, 0).(string)
				data, err := base64.StdEncoding.DecodeString(s)
				if err != nil {
					return nil, r.errorf(n, "bad base64: %v", err)
				}
				return &value.Buffer{Data: data}, nil
			case "Object.defineProperty":
				return r.defineProperty(n, args)
			}
		}
	}

	obj, err := r.eval(objNode)
	if err != nil {
		return nil, err
	}
	switch x := obj.(type) {
	case *value.Map:
		switch name {
		case "set":
			return x.Set(argAt(args, 0), argAt(args, 1)), nil
		case "get":
			if v, ok := x.Get(argAt(args, 0)); ok {
				return v, nil
			}
			return value.Undef, nil
		}
	case *value.Set:
		if name == "add" {
			return x.Add(argAt(args, 0)), nil
		}
	}
	return nil, r.errorf(n, "unsupported method %s on %s", name, value.Classify(obj))
}

func (r *rebuilder) defineProperty(n *sitter.Node, args []any) (any, error) {
	target := argAt(args, 0)
	key, ok := argAt(args, 1).(string)
	desc, isObj := argAt(args, 2).(*value.Object)
	props := propsOf(target)
	if !ok || !isObj || props == nil {
		return nil, r.errorf(n, "unsupported Object.defineProperty call")
	}
	if v, ok := desc.Get("value"); ok {
		props.Put(key, v)
		return target, nil
	}
	p := value.Property{Key: key}
	if g, ok := desc.Get("get"); ok {
		p.Get, _ = g.(*value.Function)
	}
	if s, ok := desc.Get("set"); ok {
		p.Set, _ = s.(*value.Function)
	}
	if i := props.Index(key); i >= 0 {
		(*props)[i] = p
	} else {
		*props = append(*props, p)
	}
	return target, nil
}

// wrapperBody returns the statement block of "(function(){ ... })".
func (r *rebuilder) wrapperBody(fn *sitter.Node) *sitter.Node {
	for fn != nil && fn.Type() == "parenthesized_expression" {
		fn = r.first(fn)
	}
	if fn == nil {
		return nil
	}
	switch fn.Type() {
	case "function", "function_expression", "arrow_function":
		if body := fn.ChildByFieldName("body"); body != nil && body.Type() == "statement_block" {
			return body
		}
	}
	return nil
}

func (r *rebuilder) runBlock(block *sitter.Node) (any, error) {
	r.scopes = append(r.scopes, map[string]any{})
	defer func() { r.scopes = r.scopes[:len(r.scopes)-1] }()
	scope := r.scopes[len(r.scopes)-1]

	for _, st := range r.children(block) {
		switch st.Type() {
		case "lexical_declaration", "variable_declaration":
			for _, d := range r.children(st) {
				if d.Type() != "variable_declarator" {
					continue
				}
				v, err := r.eval(d.ChildByFieldName("value"))
				if err != nil {
					return nil, err
				}
				scope[r.text(d.ChildByFieldName("name"))] = v
			}
		case "expression_statement":
			if _, err := r.eval(r.first(st)); err != nil {
				return nil, err
			}
		case "return_statement":
			return r.eval(r.first(st))
		case "empty_statement":
		default:
			return nil, r.errorf(st, "unsupported statement %s", st.Type())
		}
	}
	return value.Undef, nil
}
