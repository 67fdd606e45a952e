// Package snapshot encodes value graphs as CBOR so a graph captured in one
// process can be serialized in another.
//
// Values that occur more than once are wrapped in the shareable tag (28) at
// their first occurrence and referenced by index with the sharedref tag (29)
// afterwards, which keeps identity and makes cycles representable. Model
// kinds use private tags in the 40100 range.
package snapshot

import (
	"fmt"
	"math/big"
	"net/url"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/EmileSonneveld/serialize-to-js/value"
)

const (
	tagShareable = 28
	tagSharedRef = 29

	tagUndefined  = 40100
	tagObject     = 40101
	tagArray      = 40102
	tagMap        = 40103
	tagSet        = 40104
	tagFunction   = 40105
	tagRegExp     = 40106
	tagDate       = 40107
	tagError      = 40108
	tagBuffer     = 40109
	tagTypedArray = 40110
	tagSymbol     = 40111
	tagURL        = 40112
	tagBigInt     = 40113
	tagHole       = 40114
	tagOpaque     = 40115
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("snapshot: failed to create CBOR enc mode: %v", err))
	}
	encMode = em

	dm, err := cbor.DecOptions{MaxNestedLevels: 4096}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("snapshot: failed to create CBOR dec mode: %v", err))
	}
	decMode = dm
}

// Marshal encodes v. Function.Eval is not carried.
func Marshal(v any) ([]byte, error) {
	e := &encoder{counts: map[any]int{}, index: map[any]uint64{}}
	e.count(v)
	item, err := e.encode(v)
	if err != nil {
		return nil, fmt.Errorf("snapshot: marshal: %w", err)
	}
	return encMode.Marshal(item)
}

// Unmarshal decodes a graph written by Marshal. Numbers decode as float64.
func Unmarshal(data []byte) (any, error) {
	var item any
	if err := decMode.Unmarshal(data, &item); err != nil {
		return nil, fmt.Errorf("snapshot: unmarshal: %w", err)
	}
	d := &decoder{}
	v, err := d.decode(item)
	if err != nil {
		return nil, fmt.Errorf("snapshot: unmarshal: %w", err)
	}
	return v, nil
}

// ---------------------------------------------------------------------------
// Encoding
// ---------------------------------------------------------------------------

type encoder struct {
	counts map[any]int
	index  map[any]uint64
	next   uint64
}

// count records how often each identity value is reached.
func (e *encoder) count(v any) {
	if !value.HasIdentity(v) {
		return
	}
	e.counts[v]++
	if e.counts[v] > 1 {
		return
	}
	for _, c := range children(v) {
		e.count(c)
	}
}

// children lists the values v refers to, in encoding order.
func children(v any) []any {
	var out []any
	props := func(ps value.Props) {
		for _, p := range ps {
			if p.IsAccessor() {
				if p.Get != nil {
					out = append(out, p.Get)
				}
				if p.Set != nil {
					out = append(out, p.Set)
				}
				continue
			}
			out = append(out, p.Value)
		}
	}
	switch x := v.(type) {
	case *value.Object:
		props(x.Props)
		if x.Class != nil {
			out = append(out, x.Class)
		}
	case *value.Array:
		out = append(out, x.Elems...)
		props(x.Props)
	case *value.Map:
		for _, en := range x.Entries {
			out = append(out, en.Key, en.Value)
		}
		props(x.Props)
	case *value.Set:
		out = append(out, x.Items...)
		props(x.Props)
	case *value.Function:
		if x.Prototype != nil {
			out = append(out, x.Prototype)
		}
		props(x.Props)
	}
	return out
}

func (e *encoder) encode(v any) (any, error) {
	if value.HasIdentity(v) {
		if i, ok := e.index[v]; ok {
			return cbor.Tag{Number: tagSharedRef, Content: i}, nil
		}
		if e.counts[v] > 1 {
			e.index[v] = e.next
			e.next++
			inner, err := e.content(v)
			if err != nil {
				return nil, err
			}
			return cbor.Tag{Number: tagShareable, Content: inner}, nil
		}
	}
	return e.content(v)
}

func (e *encoder) content(v any) (any, error) {
	switch value.Classify(v) {
	case value.KindNull:
		return nil, nil
	case value.KindUndefined:
		return cbor.Tag{Number: tagUndefined, Content: nil}, nil
	case value.KindBool, value.KindString:
		return v, nil
	case value.KindNumber:
		switch n := v.(type) {
		case int:
			return int64(n), nil
		case uintptr:
			return uint64(n), nil
		case int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
			return n, nil
		}
		return value.ToFloat(v), nil
	case value.KindBigInt:
		return cbor.Tag{Number: tagBigInt, Content: v.(*big.Int).String()}, nil
	case value.KindURL:
		return cbor.Tag{Number: tagURL, Content: v.(*url.URL).String()}, nil
	case value.KindSymbol:
		return cbor.Tag{Number: tagSymbol, Content: v.(*value.Symbol).Description}, nil
	case value.KindRegExp:
		re := v.(*value.RegExp)
		return cbor.Tag{Number: tagRegExp, Content: []any{re.Source, re.Flags}}, nil
	case value.KindDate:
		d := v.(*value.Date)
		if d.Invalid {
			return cbor.Tag{Number: tagDate, Content: nil}, nil
		}
		return cbor.Tag{Number: tagDate, Content: d.Time.UTC().Format(time.RFC3339Nano)}, nil
	case value.KindError:
		return cbor.Tag{Number: tagError, Content: v.(*value.Error).Message}, nil
	case value.KindBuffer:
		data := []byte{}
		switch b := v.(type) {
		case *value.Buffer:
			data = append(data, b.Data...)
		case []byte:
			data = append(data, b...)
		}
		return cbor.Tag{Number: tagBuffer, Content: data}, nil
	case value.KindTypedArray:
		ta := v.(*value.TypedArray)
		nums := make([]any, len(ta.Values))
		for i, f := range ta.Values {
			nums[i] = f
		}
		return cbor.Tag{Number: tagTypedArray, Content: []any{string(ta.Type), nums}}, nil
	case value.KindObject:
		o := v.(*value.Object)
		entries, err := e.props(o.Props)
		if err != nil {
			return nil, err
		}
		var class any
		if o.Class != nil {
			if class, err = e.encode(o.Class); err != nil {
				return nil, err
			}
		}
		return cbor.Tag{Number: tagObject, Content: []any{entries, class}}, nil
	case value.KindArray:
		a := v.(*value.Array)
		elems := make([]any, len(a.Elems))
		for i, el := range a.Elems {
			if value.IsHole(el) {
				elems[i] = cbor.Tag{Number: tagHole, Content: nil}
				continue
			}
			item, err := e.encode(el)
			if err != nil {
				return nil, err
			}
			elems[i] = item
		}
		entries, err := e.props(a.Props)
		if err != nil {
			return nil, err
		}
		return cbor.Tag{Number: tagArray, Content: []any{elems, entries}}, nil
	case value.KindMap:
		m := v.(*value.Map)
		pairs := make([]any, len(m.Entries))
		for i, en := range m.Entries {
			k, err := e.encode(en.Key)
			if err != nil {
				return nil, err
			}
			val, err := e.encode(en.Value)
			if err != nil {
				return nil, err
			}
			pairs[i] = []any{k, val}
		}
		entries, err := e.props(m.Props)
		if err != nil {
			return nil, err
		}
		return cbor.Tag{Number: tagMap, Content: []any{pairs, entries}}, nil
	case value.KindSet:
		s := v.(*value.Set)
		items := make([]any, len(s.Items))
		for i, it := range s.Items {
			item, err := e.encode(it)
			if err != nil {
				return nil, err
			}
			items[i] = item
		}
		entries, err := e.props(s.Props)
		if err != nil {
			return nil, err
		}
		return cbor.Tag{Number: tagSet, Content: []any{items, entries}}, nil
	case value.KindFunction:
		fn := v.(*value.Function)
		var proto any
		if fn.Prototype != nil {
			var err error
			if proto, err = e.encode(fn.Prototype); err != nil {
				return nil, err
			}
		}
		entries, err := e.props(fn.Props)
		if err != nil {
			return nil, err
		}
		return cbor.Tag{Number: tagFunction, Content: []any{fn.Name, fn.Source, proto, entries}}, nil
	}
	return cbor.Tag{Number: tagOpaque, Content: value.Describe(v)}, nil
}

func (e *encoder) props(ps value.Props) ([]any, error) {
	out := make([]any, 0, len(ps))
	for _, p := range ps {
		if p.IsAccessor() {
			var get, set any
			var err error
			if p.Get != nil {
				if get, err = e.encode(p.Get); err != nil {
					return nil, err
				}
			}
			if p.Set != nil {
				if set, err = e.encode(p.Set); err != nil {
					return nil, err
				}
			}
			out = append(out, []any{p.Key, nil, get, set})
			continue
		}
		item, err := e.encode(p.Value)
		if err != nil {
			return nil, err
		}
		out = append(out, []any{p.Key, item})
	}
	return out, nil
}
