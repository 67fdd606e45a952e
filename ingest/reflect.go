package ingest

import (
	"fmt"
	"math/big"
	"net/url"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/EmileSonneveld/serialize-to-js/value"
)

var (
	timeType  = reflect.TypeOf(time.Time{})
	errorType = reflect.TypeOf((*error)(nil)).Elem()
)

// FromGo converts an arbitrary Go value into the value model.
//
// Structs become records of their exported fields, named by the "js" tag
// when present ("-" skips a field); anonymous struct fields without a tag
// are flattened. Maps with string keys become records with sorted keys,
// other maps become *value.Map. Slices and arrays become arrays, except
// []byte which becomes a buffer. time.Time becomes a date and error values
// become errors. Functions, channels and other values with no model
// counterpart become *value.Opaque.
//
// Pointers, maps and slices are converted once: a Go value reached twice
// yields the same model value, so sharing and cycles carry over. A cycle
// that never passes through a struct, slice or map, such as an interface
// holding a pointer to itself, ends in a *value.Opaque. Values that already
// belong to the model are returned unchanged.
func FromGo(v any) any {
	c := &goConverter{seen: map[goRef]any{}}
	return c.convert(reflect.ValueOf(v))
}

// goRef identifies a Go reference value. Slices also key on length so
// that two slices of one backing array stay distinct.
type goRef struct {
	ptr uintptr
	typ reflect.Type
	len int
}

type goConverter struct {
	seen map[goRef]any
}

func (c *goConverter) convert(rv reflect.Value) any {
	if !rv.IsValid() {
		return nil
	}
	if rv.CanInterface() {
		x := rv.Interface()
		switch x.(type) {
		case value.Undefined, *big.Int, *url.URL:
			return x
		}
		if value.Classify(x) != value.KindOpaque && rv.Kind() == reflect.Pointer {
			return x // already a model value
		}
		if rv.Type() == timeType {
			return value.NewDate(x.(time.Time))
		}
		if rv.Type().Implements(errorType) && !isNil(rv) && rv.Kind() != reflect.Struct {
			return &value.Error{Message: x.(error).Error()}
		}
	}

	switch rv.Kind() {
	case reflect.Bool:
		return rv.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return float64(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	case reflect.String:
		return rv.String()
	case reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return c.convert(rv.Elem())
	case reflect.Pointer:
		if rv.IsNil() {
			return nil
		}
		ref := goRef{ptr: rv.Pointer(), typ: rv.Type()}
		if v, ok := c.seen[ref]; ok {
			return v
		}
		switch elem := rv.Elem(); {
		case elem.Kind() == reflect.Slice || elem.Kind() == reflect.Map:
			return c.convert(elem) // memoized by the pointee
		case elem.Kind() == reflect.Struct && elem.Type() != timeType:
			o := value.NewObject()
			c.seen[ref] = o
			c.fields(o, elem)
			return o
		}
		// Reached again while converting its own pointee.
		c.seen[ref] = &value.Opaque{Description: "cycle through " + rv.Type().String()}
		v := c.convert(rv.Elem())
		c.seen[ref] = v
		return v
	case reflect.Struct:
		o := value.NewObject()
		c.fields(o, rv)
		return o
	case reflect.Slice:
		if rv.IsNil() {
			return nil
		}
		ref := goRef{ptr: rv.Pointer(), typ: rv.Type(), len: rv.Len()}
		if v, ok := c.seen[ref]; ok {
			return v
		}
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			b := &value.Buffer{Data: append([]byte(nil), rv.Bytes()...)}
			c.seen[ref] = b
			return b
		}
		a := value.NewArray()
		c.seen[ref] = a
		c.elems(a, rv)
		return a
	case reflect.Array:
		a := value.NewArray()
		c.elems(a, rv)
		return a
	case reflect.Map:
		if rv.IsNil() {
			return nil
		}
		ref := goRef{ptr: rv.Pointer(), typ: rv.Type()}
		if v, ok := c.seen[ref]; ok {
			return v
		}
		return c.mapping(rv, ref)
	}
	return &value.Opaque{Description: describeGo(rv)}
}

func (c *goConverter) elems(a *value.Array, rv reflect.Value) {
	a.Elems = make([]any, rv.Len())
	for i := range a.Elems {
		a.Elems[i] = c.convert(rv.Index(i))
	}
}

func (c *goConverter) mapping(rv reflect.Value, ref goRef) any {
	keys := rv.MapKeys()
	sort.Slice(keys, func(i, j int) bool {
		return fmt.Sprint(keys[i]) < fmt.Sprint(keys[j])
	})
	if rv.Type().Key().Kind() == reflect.String {
		o := value.NewObject()
		c.seen[ref] = o
		for _, k := range keys {
			o.Props.Put(k.String(), c.convert(rv.MapIndex(k)))
		}
		return o
	}
	m := value.NewMap()
	c.seen[ref] = m
	for _, k := range keys {
		m.Set(c.convert(k), c.convert(rv.MapIndex(k)))
	}
	return m
}

func (c *goConverter) fields(o *value.Object, rv reflect.Value) {
	t := rv.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag, hasTag := f.Tag.Lookup("js")
		name, _, _ := strings.Cut(tag, ",")
		if name == "-" {
			continue
		}
		if f.Anonymous && !hasTag && f.Type.Kind() == reflect.Struct {
			c.fields(o, rv.Field(i))
			continue
		}
		if !f.IsExported() {
			continue
		}
		if name == "" {
			name = f.Name
		}
		o.Props.Put(name, c.convert(rv.Field(i)))
	}
}

func isNil(rv reflect.Value) bool {
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

func describeGo(rv reflect.Value) string {
	switch rv.Kind() {
	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return rv.Type().String()
	}
	if rv.CanInterface() {
		return fmt.Sprintf("%v", rv.Interface())
	}
	return rv.Type().String()
}
