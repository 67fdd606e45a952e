package value

import (
	"time"
)

// ---------------------------------------------------------------------------
// Primitive markers
// ---------------------------------------------------------------------------

// Undefined is the JavaScript undefined value.
type Undefined struct{}

// Undef is the canonical Undefined value.
var Undef = Undefined{}

type hole struct{}

// Hole marks a missing slot in a sparse Array. It is only meaningful as an
// element of Array.Elems.
var Hole any = hole{}

// IsHole reports whether v is the sparse array marker.
func IsHole(v any) bool {
	_, ok := v.(hole)
	return ok
}

// ---------------------------------------------------------------------------
// Properties
// ---------------------------------------------------------------------------

// Property is an own property of a record or a named ("dirty") property of a
// sequence, map, set or callable. A property with Get or Set is an accessor
// and its Value is ignored.
type Property struct {
	Key   string
	Value any
	Get   *Function
	Set   *Function
}

// IsAccessor reports whether the property is a getter/setter pair.
func (p Property) IsAccessor() bool {
	return p.Get != nil || p.Set != nil
}

// Props is an insertion-ordered property list.
type Props []Property

// Index returns the position of key, or -1.
func (ps Props) Index(key string) int {
	for i := range ps {
		if ps[i].Key == key {
			return i
		}
	}
	return -1
}

// Lookup returns the value stored under key.
func (ps Props) Lookup(key string) (any, bool) {
	if i := ps.Index(key); i >= 0 {
		return ps[i].Value, true
	}
	return nil, false
}

// Put replaces the value under key in place, or appends a new property.
func (ps *Props) Put(key string, v any) {
	if i := ps.Index(key); i >= 0 {
		(*ps)[i] = Property{Key: key, Value: v}
		return
	}
	*ps = append(*ps, Property{Key: key, Value: v})
}

// ---------------------------------------------------------------------------
// Composite values
// ---------------------------------------------------------------------------

// Object is a record: string keys in insertion order. Class, when set, is the
// callable the object was constructed from; its Prototype becomes the
// object's prototype on reconstruction.
type Object struct {
	Props Props
	Class *Function
}

// NewObject builds an Object from alternating key/value arguments.
func NewObject(kv ...any) *Object {
	o := &Object{}
	for i := 0; i+1 < len(kv); i += 2 {
		o.Props.Put(kv[i].(string), kv[i+1])
	}
	return o
}

// Get returns the value of an own data property.
func (o *Object) Get(key string) (any, bool) {
	return o.Props.Lookup(key)
}

// Set stores a data property, keeping the position of an existing key.
func (o *Object) Set(key string, v any) *Object {
	o.Props.Put(key, v)
	return o
}

// Array is a sequence. Elems may contain Hole for sparse slots. Props holds
// named properties that are not indices.
type Array struct {
	Elems []any
	Props Props
}

// NewArray builds an Array from its elements.
func NewArray(elems ...any) *Array {
	return &Array{Elems: elems}
}

// Push appends elements and returns the array.
func (a *Array) Push(elems ...any) *Array {
	a.Elems = append(a.Elems, elems...)
	return a
}

// MapEntry is one key/value pair of a Map.
type MapEntry struct {
	Key   any
	Value any
}

// Map is an insertion-ordered map with keys of any kind.
type Map struct {
	Entries []MapEntry
	Props   Props
}

// NewMap builds a Map from alternating key/value arguments.
func NewMap(kv ...any) *Map {
	m := &Map{}
	for i := 0; i+1 < len(kv); i += 2 {
		m.Set(kv[i], kv[i+1])
	}
	return m
}

// Set stores value under key using SameValueZero key comparison.
func (m *Map) Set(key, v any) *Map {
	for i := range m.Entries {
		if SameValueZero(m.Entries[i].Key, key) {
			m.Entries[i].Value = v
			return m
		}
	}
	m.Entries = append(m.Entries, MapEntry{Key: key, Value: v})
	return m
}

// Get returns the value stored under key.
func (m *Map) Get(key any) (any, bool) {
	for _, e := range m.Entries {
		if SameValueZero(e.Key, key) {
			return e.Value, true
		}
	}
	return nil, false
}

// Set is an insertion-ordered set.
type Set struct {
	Items []any
	Props Props
}

// NewSet builds a Set, dropping duplicates.
func NewSet(items ...any) *Set {
	s := &Set{}
	for _, it := range items {
		s.Add(it)
	}
	return s
}

// Add inserts v unless an equal member exists.
func (s *Set) Add(v any) *Set {
	for _, it := range s.Items {
		if SameValueZero(it, v) {
			return s
		}
	}
	s.Items = append(s.Items, v)
	return s
}

// Has reports whether v is a member.
func (s *Set) Has(v any) bool {
	for _, it := range s.Items {
		if SameValueZero(it, v) {
			return true
		}
	}
	return false
}

// Function is a callable captured as source text. Eval, when present,
// invokes the callable with no arguments; it is only consulted for
// annotating side-effect-free getters.
type Function struct {
	Name      string
	Source    string
	Prototype *Object
	Props     Props
	Eval      func() (any, error)
}

// RegExp is a pattern.
type RegExp struct {
	Source string
	Flags  string
}

// Date is an instant. Invalid marks a Date that is not a point in time.
type Date struct {
	Time    time.Time
	Invalid bool
}

// NewDate wraps t as a valid instant.
func NewDate(t time.Time) *Date {
	return &Date{Time: t}
}

// Error is a fault carrying its message.
type Error struct {
	Message string
}

// Buffer is a raw byte buffer.
type Buffer struct {
	Data []byte
}

// TypedArrayType names a binary vector constructor.
type TypedArrayType string

const (
	Int8Array         TypedArrayType = "Int8Array"
	Uint8Array        TypedArrayType = "Uint8Array"
	Uint8ClampedArray TypedArrayType = "Uint8ClampedArray"
	Int16Array        TypedArrayType = "Int16Array"
	Uint16Array       TypedArrayType = "Uint16Array"
	Int32Array        TypedArrayType = "Int32Array"
	Uint32Array       TypedArrayType = "Uint32Array"
	Float32Array      TypedArrayType = "Float32Array"
	Float64Array      TypedArrayType = "Float64Array"
)

// Valid reports whether t names a known typed array constructor.
func (t TypedArrayType) Valid() bool {
	switch t {
	case Int8Array, Uint8Array, Uint8ClampedArray, Int16Array, Uint16Array,
		Int32Array, Uint32Array, Float32Array, Float64Array:
		return true
	}
	return false
}

// TypedArray is a binary vector.
type TypedArray struct {
	Type   TypedArrayType
	Values []float64
}

// Symbol is a unique symbol. Two Symbols are the same only if they are the
// same pointer.
type Symbol struct {
	Description string
}

// Opaque stands in for a value that could not be captured, such as one
// decoded from a snapshot that recorded only a description.
type Opaque struct {
	Description string
}

func (o *Opaque) String() string {
	return o.Description
}
