package serialize

import (
	"context"
	"errors"
	"math"
	"math/big"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EmileSonneveld/serialize-to-js/jscheck"
	"github.com/EmileSonneveld/serialize-to-js/value"
)

// rebuild serializes v, checks the output parses and evaluates it back.
func rebuild(t *testing.T, v any, opts *Options, globals map[string]any) (string, any) {
	t.Helper()
	out, err := Serialize(v, opts)
	require.NoError(t, err)

	errs, err := jscheck.Validate(context.Background(), out)
	require.NoError(t, err)
	require.Empty(t, errs, "output does not parse:\n%s", out)

	got, err := jscheck.Rebuild(out, globals)
	require.NoError(t, err, "output:\n%s", out)
	return out, got
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\n', '\t', ';':
			return -1
		}
		return r
	}, s)
}

// ---------------------------------------------------------------------------
// Exact output
// ---------------------------------------------------------------------------

func TestSerialize_SimpleObject(t *testing.T) {
	out, err := Serialize(value.NewObject("a", 1, "b", 2), nil)
	require.NoError(t, err)
	assert.Equal(t, "{\n  a: 1,\n  b: 2\n}", out)
	assert.Equal(t, "{a:1,b:2}", stripSpace(out))
}

func TestSerialize_Compact(t *testing.T) {
	opts := DefaultOptions()
	opts.Space = ""
	out, err := Serialize(value.NewArray(1, 2, value.NewObject("a", 3), value.NewArray()), opts)
	require.NoError(t, err)
	assert.Equal(t, "[1,2,{a:3},[]]", out)
}

func TestSerialize_IndentUnit(t *testing.T) {
	opts := DefaultOptions()
	opts.Space = IndentUnit(4)
	out, err := Serialize(value.NewObject("a", value.NewArray(1)), opts)
	require.NoError(t, err)
	assert.Equal(t, "{\n    a: [\n        1\n    ]\n}", out)
	assert.Equal(t, "", IndentUnit(0))
}

func TestSerialize_AlwaysQuote(t *testing.T) {
	opts := &Options{Space: "", AlwaysQuote: true}
	out, err := Serialize(value.NewObject("a", 1, "b c", 2), opts)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1,"b c":2}`, out)
}

func TestSerialize_ObjectOfPrimitives(t *testing.T) {
	o := value.NewObject(
		"5", 3.1415,
		"one", true,
		"thr-ee", value.Undef,
		"six", -17,
		"se ven", "string",
	)
	out, err := Serialize(o, &Options{})
	require.NoError(t, err)
	assert.Equal(t, `{"5":3.1415,one:true,"thr-ee":undefined,six:-17,"se ven":"string"}`, out)
}

func TestSerialize_SelfReference(t *testing.T) {
	o := value.NewObject("name", "x")
	o.Set("self", o)

	out, err := Serialize(o, nil)
	require.NoError(t, err)
	assert.Equal(t, "(function(){\n"+
		"  const root = {\n"+
		"    name: \"x\",\n"+
		"    self: undefined /* Linked later*/\n"+
		"  };\n"+
		"  root.self = root;\n"+
		"  return root;\n"+
		"})()", out)
}

func TestSerialize_SharedArraySlot(t *testing.T) {
	x := value.NewObject("v", 1)
	out, err := Serialize(value.NewArray(x, x), nil)
	require.NoError(t, err)
	assert.Contains(t, out, "  root[1] = root[0];\n")
	assert.Equal(t, 1, strings.Count(out, "v: 1"))
}

func TestSerialize_MapKeyHoisted(t *testing.T) {
	k := value.NewObject("id", 1)
	out, err := Serialize(value.NewMap(k, "v"), nil)
	require.NoError(t, err)
	assert.Equal(t, "(function(){\n"+
		"  const obj1 = {\n"+
		"    id: 1\n"+
		"  };\n"+
		"  const root = new Map([\n"+
		"    [obj1, \"v\"]\n"+
		"  ]);\n"+
		"  return root;\n"+
		"})()", out)
}

func TestSerialize_FullPaths(t *testing.T) {
	opts := DefaultOptions()
	opts.FullPaths = true
	out, err := Serialize(value.NewObject("a", 1, "b", value.NewObject("c", 2)), opts)
	require.NoError(t, err)
	assert.Equal(t, "(function(){\n"+
		"  const root = {};\n"+
		"  root.a = 1;\n"+
		"  root.b = {};\n"+
		"  root.b.c = 2;\n"+
		"  return root;\n"+
		"})()", out)
}

func TestSerialize_Needle(t *testing.T) {
	opts := DefaultOptions()
	opts.FullPaths = true
	opts.Needle = "needle"
	v := value.NewObject(
		"a", 1,
		"b", value.NewObject("c", "a needle here", "e", 5),
		"d", "x",
	)
	out, err := Serialize(v, opts)
	require.NoError(t, err)
	assert.Contains(t, out, `root.b.c = "a needle here";`)
	assert.NotContains(t, out, "root.a =")
	assert.NotContains(t, out, "root.d =")
	assert.NotContains(t, out, "root.b.e =")
}

func TestSerialize_NeedleDropsBindings(t *testing.T) {
	opts := DefaultOptions()
	opts.FullPaths = true
	opts.Needle = "needle"
	shared := value.NewObject("k", "v")
	v := value.NewObject("a", shared, "b", value.NewObject("x", shared, "y", "needle"))
	out, err := Serialize(v, opts)
	require.NoError(t, err)
	// root.a was dropped, so nothing may link to it
	assert.NotContains(t, out, "root.a")
	assert.Contains(t, out, "  root.b = {};\n")
	assert.Contains(t, out, `  root.b.y = "needle";`)
}

func TestSerialize_NeedleKeepsAnchorBindings(t *testing.T) {
	shared := value.NewObject("k", 1)
	g := value.NewObject("inner", shared)
	root := value.NewObject("x", shared, "needle", "zzz")

	opts := DefaultOptions()
	opts.FullPaths = true
	opts.Anchors = []Anchor{{Name: "g", Value: g}}

	out, err := Serialize(root, opts)
	require.NoError(t, err)
	assert.Contains(t, out, "root.x = g.inner;")

	opts.Needle = "zzz"
	out, err = Serialize(root, opts)
	require.NoError(t, err)
	assert.Contains(t, out, "root.x = g.inner;")
	assert.Contains(t, out, `root.needle = "zzz";`)
	assert.NotContains(t, out, "k: 1")
}

func TestSerialize_BareDedentsCallableSource(t *testing.T) {
	fn := &value.Function{Name: "f", Source: "function f() {\n  return 1\n}"}
	out, err := Serialize(fn, nil)
	require.NoError(t, err)
	assert.Equal(t, "function f() {\nreturn 1\n}", out)

	opts := DefaultOptions()
	opts.Space = ""
	out, err = Serialize(fn, opts)
	require.NoError(t, err)
	assert.Equal(t, fn.Source, out)
}

// ---------------------------------------------------------------------------
// Scalars
// ---------------------------------------------------------------------------

func TestSerialize_Scalars(t *testing.T) {
	u, _ := url.Parse("https://example.com/a?b=c")
	big1, _ := new(big.Int).SetString("123456789012345678901234567890", 10)
	tests := []struct {
		name string
		v    any
		want string
	}{
		{"undefined", value.Undef, "undefined"},
		{"null", nil, "null"},
		{"typed nil", (*value.Object)(nil), "null"},
		{"true", true, "true"},
		{"float", 3.1415, "3.1415"},
		{"int", -13, "-13"},
		{"zero", 0, "0"},
		{"negative zero", math.Copysign(0, -1), "-0"},
		{"nan", math.NaN(), "NaN"},
		{"infinity", math.Inf(-1), "-Infinity"},
		{"empty string", "", `""`},
		{"string", "a\"b", `"a\"b"`},
		{"bigint", big1, `BigInt("123456789012345678901234567890")`},
		{"url", u, `new URL("https:` + uesc("002F") + uesc("002F") + `example.com` + uesc("002F") + `a?b=c")`},
		{"symbol", &value.Symbol{Description: "tag"}, `Symbol("tag")`},
		{"regexp", &value.RegExp{Source: "abc", Flags: ""}, `new RegExp("abc", "")`},
		{"regexp flags", &value.RegExp{Source: "a", Flags: "gimsu"}, `new RegExp("a", "gimsu")`},
		{"date", value.NewDate(time.Unix(24*12*3600, 0)), `new Date("1970-01-13T00:00:00.000Z")`},
		{"invalid date", &value.Date{Invalid: true}, `new Date("Invalid Date")`},
		{"error", &value.Error{Message: "error"}, `new Error("error")`},
		{"buffer", &value.Buffer{Data: []byte("buffer")}, `Buffer.from("YnVmZmVy", "base64")`},
		{"empty buffer", []byte{}, `Buffer.from("", "base64")`},
		{"int8", &value.TypedArray{Type: value.Int8Array, Values: []float64{1, 2, 3}}, "new Int8Array([1, 2, 3])"},
		{"float32", &value.TypedArray{Type: value.Float32Array, Values: []float64{1e10, float64(float32(3.1415)), -490}},
			"new Float32Array([10000000000, 3.1414999961853027, -490])"},
		{"float64 negative zero", &value.TypedArray{Type: value.Float64Array, Values: []float64{math.Copysign(0, -1)}},
			"new Float64Array([-0])"},
		{"empty array", value.NewArray(), "[]"},
		{"empty object", value.NewObject(), "{}"},
		{"empty map", value.NewMap(), "new Map([])"},
		{"empty set", value.NewSet(), "new Set([])"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Serialize(tt.v, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestSerialize_NegativeZeroDistinct(t *testing.T) {
	neg, err := Serialize(math.Copysign(0, -1), nil)
	require.NoError(t, err)
	pos, err := Serialize(0.0, nil)
	require.NoError(t, err)
	assert.NotEqual(t, neg, pos)
}

func TestSerialize_Escaping(t *testing.T) {
	unsafeChars := []string{"<", ">", "/", "\xe2\x80\xa8", "\xe2\x80\xa9", "\n", "\r", "\t"}
	for _, c := range unsafeChars {
		s := "a" + c + "b"

		out, err := Serialize(s, nil)
		require.NoError(t, err)
		assert.NotContains(t, out, c, "safe mode leaks %q", c)

		out, err = Serialize(value.NewObject(s, s), &Options{Space: ""})
		require.NoError(t, err)
		assert.NotContains(t, out, c, "safe mode leaks %q in a key", c)
	}
	for _, c := range []string{"<", ">", "/", "\xe2\x80\xa8", "\xe2\x80\xa9"} {
		out, err := Serialize("a"+c+"b", &Options{Unsafe: true})
		require.NoError(t, err)
		assert.Contains(t, out, c, "unsafe mode escapes %q", c)
	}
}

// ---------------------------------------------------------------------------
// Callables
// ---------------------------------------------------------------------------

func TestSerialize_Functions(t *testing.T) {
	tests := []struct {
		name string
		fn   *value.Function
		want string
	}{
		{"arrow", &value.Function{Source: "(a) => a + 1"}, "(a) => a + 1"},
		{"bare arrow", &value.Function{Source: "a => a + 1"}, "a => a + 1"},
		{"method shorthand", &value.Function{Name: "get", Source: "get() { return 1 }"}, "function get() { return 1 }"},
		{"async", &value.Function{Source: "async function f() { return 1 }"}, "async function f() { return 1 }"},
		{"native", &value.Function{Name: "push", Source: "function push() { [native code] }"},
			"function push() { /*[native code] Avoid this by allowing to link to globalThis object*/ }"},
		{"unsafe tags", &value.Function{Source: "function x() { return '</b>' }"},
			"function x() { return '" + uesc("003C") + uesc("002F") + "b>' }"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Serialize(value.NewObject("key", tt.fn), &Options{Space: ""})
			require.NoError(t, err)
			assert.Equal(t, "{key:"+tt.want+"}", out)
		})
	}
}

func TestSerialize_IgnoreFunction(t *testing.T) {
	opts := DefaultOptions()
	opts.IgnoreFunction = true
	fn := &value.Function{Source: "() => 1"}
	fn.Props.Put("cancel", 1)
	out, err := Serialize(value.NewObject("f", fn), opts)
	require.NoError(t, err)
	assert.Equal(t, "{\n  f: undefined /* ignoreFunction */\n}", out)
}

func TestSerialize_SimpleGetterAnnotation(t *testing.T) {
	fn := &value.Function{
		Name:   "getAnswer",
		Source: "function getAnswer() { return 42 }",
		Eval:   func() (any, error) { return 42, nil },
	}
	out, err := Serialize(fn, nil)
	require.NoError(t, err)
	assert.Equal(t, "function getAnswer() { return 42 }/* val: 42*/", out)

	opts := DefaultOptions()
	opts.EvaluateSimpleGetters = false
	out, err = Serialize(fn, opts)
	require.NoError(t, err)
	assert.Equal(t, "function getAnswer() { return 42 }", out)

	// side effects rule the annotation out
	fn.Source = "function getAnswer() { n = n + 1; return n }"
	out, err = Serialize(fn, nil)
	require.NoError(t, err)
	assert.NotContains(t, out, "val:")
}

func TestSerialize_FunctionProps(t *testing.T) {
	fn := &value.Function{Source: "() => 1"}
	fn.Props.Put("cancel", value.NewObject("x", 1))
	out, err := Serialize(value.NewObject("f", fn), nil)
	require.NoError(t, err)
	assert.Contains(t, out, "root.f.cancel = {")
}

func TestSerialize_ClassInstance(t *testing.T) {
	class := &value.Function{Name: "A", Source: "class A { hi() { return 1 } }", Prototype: value.NewObject()}
	inst := &value.Object{Class: class}
	inst.Set("x", 1)

	out, got := rebuild(t, inst, nil, nil)
	assert.Contains(t, out, "  const obj1 = class A { hi() { return 1 } };\n")
	assert.Contains(t, out, "  root.__proto__ = obj1.prototype;\n")
	assert.True(t, value.Equal(inst, got))

	// Two instances share one hoisted class.
	pair := value.NewArray(inst, &value.Object{Class: class})
	out, got = rebuild(t, pair, nil, nil)
	assert.Equal(t, 1, strings.Count(out, "const obj"))
	assert.Contains(t, out, "root[1].__proto__ = obj1.prototype;")
	arr := got.(*value.Array)
	assert.Same(t, arr.Elems[0].(*value.Object).Class, arr.Elems[1].(*value.Object).Class)
}

func TestSerialize_ClassWithoutPrototype(t *testing.T) {
	inst := &value.Object{Class: &value.Function{Source: "function F() {}"}}
	out, err := Serialize(inst, nil)
	require.NoError(t, err)
	assert.Contains(t, out, "/* root.__proto__ = not supported yet */")
}

// ---------------------------------------------------------------------------
// Faults
// ---------------------------------------------------------------------------

func TestSerialize_GetterErrorIsLocal(t *testing.T) {
	fn := &value.Function{
		Name:   "getBoom",
		Source: "function getBoom() { return boom }",
		Eval:   func() (any, error) { return nil, errors.New("boom\nsecond line") },
	}
	v := value.NewObject("f", fn, "g", fn, "ok", 1)
	out, err := Serialize(v, nil)
	require.NoError(t, err)
	assert.Contains(t, out, "f: undefined /* function getBoom() { return boom } error: evaluating getter: boom, access path: root.f */")
	// rolled back, so the second occurrence is rendered, not linked
	assert.Contains(t, out, "access path: root.g */")
	assert.NotContains(t, out, "second line")
	assert.Contains(t, out, "ok: 1")
}

func TestSerialize_PanicIsLocal(t *testing.T) {
	fn := &value.Function{
		Name:   "getPanic",
		Source: "function getPanic() { return 1 }",
		Eval:   func() (any, error) { panic("kaboom */ end") },
	}
	out, err := Serialize(value.NewArray(1, fn, 2), &Options{Space: "", EvaluateSimpleGetters: true})
	require.NoError(t, err)
	assert.Equal(t, "[1,undefined /* error: panic: kaboom * / end, access path: root[1] */,2]", out)
}

func TestSerialize_FaultIsConfinedToValue(t *testing.T) {
	inner := value.NewObject("k", 1)
	bad := &value.TypedArray{Type: "Int128Array"}
	v := value.NewObject("a", value.NewArray(inner, bad), "b", inner)

	out, err := Serialize(v, nil)
	require.NoError(t, err)
	assert.Contains(t, out, `undefined /* error: unsupported typed array type "Int128Array", access path: root.a[1] */`)
	// inner was rendered before the fault and stays bound
	assert.Contains(t, out, "root.b = root.a[0];")
}

func TestSerialize_RollbackCoversDescendants(t *testing.T) {
	proto := value.NewObject("k", 1)
	fn := &value.Function{
		Name:      "getBoom",
		Source:    "function getBoom() { return 1 }",
		Prototype: proto,
		Eval:      func() (any, error) { return nil, errors.New("boom") },
	}
	v := value.NewObject("f", fn, "p", proto)

	out, err := Serialize(v, nil)
	require.NoError(t, err)
	assert.Contains(t, out, "access path: root.f */")
	// the prototype bound under root.f was released with it
	assert.NotContains(t, out, "root.f.prototype")
	assert.Contains(t, out, "k: 1")
}

func TestSerialize_UnsupportedTypedArrayAtRoot(t *testing.T) {
	out, err := Serialize(&value.TypedArray{Type: "Int128Array"}, nil)
	require.NoError(t, err)
	assert.Equal(t, `undefined /* error: unsupported typed array type "Int128Array", access path: root */`, out)
}

func TestSerialize_Opaque(t *testing.T) {
	out, err := Serialize(value.NewObject("h", &value.Opaque{Description: "handle */ x"}), &Options{Space: ""})
	require.NoError(t, err)
	assert.Equal(t, "{h:undefined /* not supported: handle * / x */}", out)

	out, err = Serialize(make(chan int), nil)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "undefined /* not supported: "), out)
}

func TestSerialize_EmptyFunctionSource(t *testing.T) {
	out, err := Serialize(&value.Function{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "undefined /* error: callable has no source text, access path: root */", out)
}

// ---------------------------------------------------------------------------
// Depth
// ---------------------------------------------------------------------------

func TestSerialize_MaxDepth(t *testing.T) {
	v := value.NewObject("a", value.NewObject("b", value.NewObject("c", 1)))
	opts := DefaultOptions()
	opts.MaxDepth = 2
	out, err := Serialize(v, opts)
	require.NoError(t, err)
	assert.Equal(t, "{\n  a: {\n    b: undefined /* >maxDepth */\n  }\n}", out)

	opts.MaxDepth = 0
	out, err = Serialize(v, opts)
	require.NoError(t, err)
	assert.Contains(t, out, "c: 1")
}

func TestSerialize_MaxDepthLongChain(t *testing.T) {
	head := value.NewObject()
	cur := head
	for i := 0; i < 50; i++ {
		next := value.NewObject()
		cur.Set("next", next)
		cur = next
	}
	opts := DefaultOptions()
	opts.MaxDepth = 5
	out, err := Serialize(head, opts)
	require.NoError(t, err)
	assert.Equal(t, 4, strings.Count(out, "next: {"))
	assert.Contains(t, out, "next: undefined /* >maxDepth */")
}

// ---------------------------------------------------------------------------
// Anchors
// ---------------------------------------------------------------------------

func TestSerialize_AnchorLinking(t *testing.T) {
	shared := value.NewObject("k", 1)
	app := value.NewObject("shared", shared)
	root := value.NewObject("a", shared)

	opts := DefaultOptions()
	opts.Anchors = []Anchor{{Name: "app", Value: app}}
	out, got := rebuild(t, root, opts, map[string]any{"app": app})

	assert.Contains(t, out, "root.a = app.shared;")
	assert.NotContains(t, out, "k: 1")
	a, _ := got.(*value.Object).Get("a")
	assert.Same(t, shared, a)
}

func TestSerialize_RootIsAnchored(t *testing.T) {
	shared := value.NewObject("k", 1)
	m := value.NewMap("key", shared)
	app := value.NewObject("list", value.NewArray(0, m))

	opts := DefaultOptions()
	opts.Anchors = []Anchor{{Name: "globalThis", Value: app}}

	out, err := Serialize(shared, opts)
	require.NoError(t, err)
	assert.Equal(t, `globalThis.list[1].get("key")`, out)

	out, err = Serialize(app, opts)
	require.NoError(t, err)
	assert.Equal(t, "globalThis", out)

	got, err := jscheck.Rebuild(`globalThis.list[1].get("key")`, map[string]any{"globalThis": app})
	require.NoError(t, err)
	assert.Same(t, shared, got)
}

func TestSerialize_OverlappingAnchors(t *testing.T) {
	logFn := &value.Function{Name: "log", Source: "function log() { [native code] }"}
	console := value.NewObject("log", logFn)
	global := value.NewObject("console", console)

	opts := DefaultOptions()
	opts.Anchors = []Anchor{{Name: "globalThis", Value: global}, {Name: "console", Value: console}}
	out, err := Serialize(value.NewObject("nativeLog", logFn), opts)
	require.NoError(t, err)
	assert.Contains(t, out, "root.nativeLog = globalThis.console.log;")
}

func TestSerialize_InvalidAnchorNames(t *testing.T) {
	for _, name := range []string{"", "root", "obj1", "obj42"} {
		opts := DefaultOptions()
		opts.Anchors = []Anchor{{Name: name, Value: value.NewObject()}}
		_, err := Serialize(1, opts)
		assert.Error(t, err, name)
	}
}

func TestSerialize_OpaqueAnchorIsSkipped(t *testing.T) {
	opts := DefaultOptions()
	opts.Anchors = []Anchor{{Name: "h", Value: make(chan int)}}
	out, err := Serialize(1, opts)
	require.NoError(t, err)
	assert.Equal(t, "1", out)
}

// ---------------------------------------------------------------------------
// Concurrency
// ---------------------------------------------------------------------------

func TestSerialize_ConcurrentCallsOnSharedGraph(t *testing.T) {
	shared := value.NewObject("k", 1)
	v := value.NewObject("a", shared, "b", value.NewArray(shared, value.NewSet(shared)))
	want, err := Serialize(v, nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]string, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = Serialize(v, nil)
		}(i)
	}
	wg.Wait()
	for _, got := range results {
		assert.Equal(t, want, got)
	}
}

// ---------------------------------------------------------------------------
// Round trips
// ---------------------------------------------------------------------------

func TestSerialize_RoundTrip(t *testing.T) {
	selfObj := value.NewObject("a", 1)
	selfObj.Set("me", selfObj)

	shared := value.NewObject("k", "v")

	selfMap := value.NewMap("one", 1)
	selfMap.Set("self", selfMap)
	selfMap.Set("two", 2)

	selfSet := value.NewSet(1)
	selfSet.Add(selfSet)
	selfSet.Add(2)

	keyed := value.NewObject("id", 7)

	dirtyArr := value.NewArray(1, 2)
	dirtyArr.Props.Put("extra", value.NewObject("x", 1))

	dirtyMap := value.NewMap("a", 1)
	dirtyMap.Props.Put("note", "n")

	dirtySet := value.NewSet("a")
	dirtySet.Props.Put("n", 2)

	accessor := value.NewObject("plain", 1)
	accessor.Props = append(accessor.Props, value.Property{
		Key: "computed",
		Get: &value.Function{Source: "function () { return 1 }"},
		Set: &value.Function{Source: "function (v) {}"},
	})

	protoKeyed := value.NewObject()
	protoKeyed.Props.Put("__proto__", 5)

	sym := &value.Symbol{Description: "s"}

	tests := []struct {
		name string
		v    any
	}{
		{"nested", value.NewObject("a", value.NewArray(1, "two", nil, true), "b", value.NewObject("c", value.Undef))},
		{"self reference", selfObj},
		{"shared twice", value.NewObject("x", shared, "y", value.NewArray(shared, shared))},
		{"sparse", value.NewArray(1, value.Hole, 3)},
		{"trailing holes", value.NewArray(1, value.Hole, value.Hole)},
		{"only holes", value.NewArray(value.Hole, value.Hole)},
		{"map self", selfMap},
		{"set self", selfSet},
		{"map object key", value.NewMap(keyed, value.NewArray(keyed))},
		{"map linked key", value.NewObject("k", keyed, "m", value.NewMap(keyed, "v", "after", 2))},
		{"set of objects", value.NewSet(keyed, value.NewObject("id", 8))},
		{"set linked item", value.NewObject("k", keyed, "s", value.NewSet(1, keyed, 3))},
		{"dirty array", dirtyArr},
		{"dirty map", dirtyMap},
		{"dirty set", dirtySet},
		{"accessor", accessor},
		{"proto key", protoKeyed},
		{"symbols", value.NewArray(sym, sym)},
		{"scalars", value.NewArray(
			math.Copysign(0, -1), math.NaN(), math.Inf(1), 1e21, 1e-7,
			&value.RegExp{Source: "a/b", Flags: "g"},
			value.NewDate(time.Date(2020, 2, 3, 4, 5, 6, 7e6, time.UTC)),
			&value.Error{Message: "bad"},
			&value.Buffer{Data: []byte{0, 1, 2, 255}},
			&value.TypedArray{Type: value.Uint16Array, Values: []float64{1, 65535}},
		)},
		{"escapes", value.NewObject("s", "</script>\xe2\x80\xa8\"\\\n", "k ey", 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, got := rebuild(t, tt.v, nil, nil)
			assert.True(t, value.Equal(tt.v, got), "output:\n%s\nrebuilt: %s", out, value.Describe(got))

			compact := &Options{EvaluateSimpleGetters: true}
			out, got = rebuild(t, tt.v, compact, nil)
			assert.True(t, value.Equal(tt.v, got), "compact output:\n%s", out)

			full := DefaultOptions()
			full.FullPaths = true
			out, got = rebuild(t, tt.v, full, nil)
			assert.True(t, value.Equal(tt.v, got), "full paths output:\n%s", out)
		})
	}
}

func TestSerialize_RoundTripKeepsIdentity(t *testing.T) {
	shared := value.NewObject("k", 1)
	v := value.NewArray(shared, value.NewObject("ref", shared), value.NewMap(shared, shared))

	_, got := rebuild(t, v, nil, nil)
	arr := got.(*value.Array)
	first := arr.Elems[0]
	ref, _ := arr.Elems[1].(*value.Object).Get("ref")
	assert.Same(t, first, ref)

	m := arr.Elems[2].(*value.Map)
	require.Len(t, m.Entries, 1)
	assert.Same(t, first, m.Entries[0].Key)
	assert.Same(t, first, m.Entries[0].Value)
}

func TestSerialize_CycleThroughHoistedKey(t *testing.T) {
	key := value.NewObject()
	m := value.NewMap(key, 1)
	key.Set("owner", m)

	out, got := rebuild(t, m, nil, nil)
	assert.Contains(t, out, "const obj1 = {")
	assert.Contains(t, out, "obj1.owner = root;")

	rm := got.(*value.Map)
	owner, _ := rm.Entries[0].Key.(*value.Object).Get("owner")
	assert.Same(t, rm, owner)
}
