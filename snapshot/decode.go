package snapshot

import (
	"errors"
	"fmt"
	"math/big"
	"net/url"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/EmileSonneveld/serialize-to-js/value"
)

type decoder struct {
	shared []any
}

func (d *decoder) decode(item any) (any, error) {
	switch x := item.(type) {
	case nil:
		return nil, nil
	case bool, string:
		return x, nil
	case uint64:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case []byte:
		return &value.Buffer{Data: x}, nil
	case cbor.Tag:
		return d.tag(x)
	}
	return nil, fmt.Errorf("unexpected %T", item)
}

func (d *decoder) tag(t cbor.Tag) (any, error) {
	switch t.Number {
	case tagShareable:
		inner, ok := t.Content.(cbor.Tag)
		if !ok {
			return nil, errors.New("shareable content is not a tagged value")
		}
		// Registered before its content so references inside resolve.
		v, err := d.shell(inner)
		if err != nil {
			return nil, err
		}
		d.shared = append(d.shared, v)
		return v, d.fill(v, inner)
	case tagSharedRef:
		i, ok := t.Content.(uint64)
		if !ok || i >= uint64(len(d.shared)) {
			return nil, fmt.Errorf("bad shared reference %v", t.Content)
		}
		return d.shared[i], nil
	}
	v, err := d.shell(t)
	if err != nil {
		return nil, err
	}
	return v, d.fill(v, t)
}

// shell allocates the value of t. Containers come back empty; everything
// else is complete.
func (d *decoder) shell(t cbor.Tag) (any, error) {
	switch t.Number {
	case tagUndefined:
		return value.Undef, nil
	case tagHole:
		return value.Hole, nil
	case tagObject:
		return value.NewObject(), nil
	case tagArray:
		return value.NewArray(), nil
	case tagMap:
		return value.NewMap(), nil
	case tagSet:
		return value.NewSet(), nil
	case tagFunction:
		return &value.Function{}, nil
	case tagRegExp:
		parts, err := tuple(t, 2)
		if err != nil {
			return nil, err
		}
		src, ok1 := parts[0].(string)
		flags, ok2 := parts[1].(string)
		if !ok1 || !ok2 {
			return nil, errors.New("bad regexp")
		}
		return &value.RegExp{Source: src, Flags: flags}, nil
	case tagDate:
		if t.Content == nil {
			return &value.Date{Invalid: true}, nil
		}
		s, err := text(t)
		if err != nil {
			return nil, err
		}
		tm, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return nil, fmt.Errorf("bad date: %w", err)
		}
		return value.NewDate(tm), nil
	case tagError:
		s, err := text(t)
		if err != nil {
			return nil, err
		}
		return &value.Error{Message: s}, nil
	case tagBuffer:
		b, ok := t.Content.([]byte)
		if !ok {
			return nil, errors.New("buffer content is not a byte string")
		}
		return &value.Buffer{Data: b}, nil
	case tagTypedArray:
		parts, err := tuple(t, 2)
		if err != nil {
			return nil, err
		}
		name, _ := parts[0].(string)
		typ := value.TypedArrayType(name)
		if !typ.Valid() {
			return nil, fmt.Errorf("unsupported typed array type %q", name)
		}
		nums, ok := parts[1].([]any)
		if !ok {
			return nil, errors.New("bad typed array values")
		}
		ta := &value.TypedArray{Type: typ, Values: make([]float64, len(nums))}
		for i, n := range nums {
			f, err := d.decode(n)
			if err != nil {
				return nil, err
			}
			if ta.Values[i], ok = f.(float64); !ok {
				return nil, errors.New("bad typed array value")
			}
		}
		return ta, nil
	case tagSymbol:
		s, err := text(t)
		if err != nil {
			return nil, err
		}
		return &value.Symbol{Description: s}, nil
	case tagURL:
		s, err := text(t)
		if err != nil {
			return nil, err
		}
		return url.Parse(s)
	case tagBigInt:
		s, err := text(t)
		if err != nil {
			return nil, err
		}
		b, ok := new(big.Int).SetString(s, 10)
		if !ok {
			return nil, fmt.Errorf("bad big integer %q", s)
		}
		return b, nil
	case tagOpaque:
		s, err := text(t)
		if err != nil {
			return nil, err
		}
		return &value.Opaque{Description: s}, nil
	}
	return nil, fmt.Errorf("unknown tag %d", t.Number)
}

// fill decodes the content of a container allocated by shell.
func (d *decoder) fill(v any, t cbor.Tag) error {
	switch x := v.(type) {
	case *value.Object:
		parts, err := tuple(t, 2)
		if err != nil {
			return err
		}
		if x.Props, err = d.props(parts[0]); err != nil {
			return err
		}
		if parts[1] != nil {
			class, err := d.decode(parts[1])
			if err != nil {
				return err
			}
			fn, ok := class.(*value.Function)
			if !ok {
				return errors.New("object class is not a function")
			}
			x.Class = fn
		}
	case *value.Array:
		parts, err := tuple(t, 2)
		if err != nil {
			return err
		}
		elems, ok := parts[0].([]any)
		if !ok {
			return errors.New("bad array elements")
		}
		x.Elems = make([]any, len(elems))
		for i, el := range elems {
			if x.Elems[i], err = d.decode(el); err != nil {
				return err
			}
		}
		x.Props, err = d.props(parts[1])
		return err
	case *value.Map:
		parts, err := tuple(t, 2)
		if err != nil {
			return err
		}
		pairs, ok := parts[0].([]any)
		if !ok {
			return errors.New("bad map entries")
		}
		for _, p := range pairs {
			kv, ok := p.([]any)
			if !ok || len(kv) != 2 {
				return errors.New("map entry is not a pair")
			}
			k, err := d.decode(kv[0])
			if err != nil {
				return err
			}
			val, err := d.decode(kv[1])
			if err != nil {
				return err
			}
			x.Entries = append(x.Entries, value.MapEntry{Key: k, Value: val})
		}
		x.Props, err = d.props(parts[1])
		return err
	case *value.Set:
		parts, err := tuple(t, 2)
		if err != nil {
			return err
		}
		items, ok := parts[0].([]any)
		if !ok {
			return errors.New("bad set items")
		}
		for _, it := range items {
			item, err := d.decode(it)
			if err != nil {
				return err
			}
			x.Items = append(x.Items, item)
		}
		x.Props, err = d.props(parts[1])
		return err
	case *value.Function:
		parts, err := tuple(t, 4)
		if err != nil {
			return err
		}
		x.Name, _ = parts[0].(string)
		x.Source, _ = parts[1].(string)
		if parts[2] != nil {
			proto, err := d.decode(parts[2])
			if err != nil {
				return err
			}
			o, ok := proto.(*value.Object)
			if !ok {
				return errors.New("function prototype is not an object")
			}
			x.Prototype = o
		}
		x.Props, err = d.props(parts[3])
		return err
	}
	return nil
}

func (d *decoder) props(item any) (value.Props, error) {
	entries, ok := item.([]any)
	if !ok {
		return nil, errors.New("bad property list")
	}
	var out value.Props
	for _, en := range entries {
		e, ok := en.([]any)
		if !ok || len(e) < 2 {
			return nil, errors.New("bad property entry")
		}
		key, ok := e[0].(string)
		if !ok {
			return nil, errors.New("property key is not text")
		}
		if len(e) == 4 {
			p := value.Property{Key: key}
			for i, dst := range []**value.Function{&p.Get, &p.Set} {
				if e[2+i] == nil {
					continue
				}
				f, err := d.decode(e[2+i])
				if err != nil {
					return nil, err
				}
				if *dst, ok = f.(*value.Function); !ok {
					return nil, errors.New("accessor is not a function")
				}
			}
			out = append(out, p)
			continue
		}
		v, err := d.decode(e[1])
		if err != nil {
			return nil, err
		}
		out = append(out, value.Property{Key: key, Value: v})
	}
	return out, nil
}

func tuple(t cbor.Tag, n int) ([]any, error) {
	parts, ok := t.Content.([]any)
	if !ok || len(parts) != n {
		return nil, fmt.Errorf("tag %d: expected %d items", t.Number, n)
	}
	return parts, nil
}

func text(t cbor.Tag) (string, error) {
	s, ok := t.Content.(string)
	if !ok {
		return "", fmt.Errorf("tag %d: content is not text", t.Number)
	}
	return s, nil
}
