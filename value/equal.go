package value

import (
	"bytes"
	"math"
	"math/big"
	"net/url"
)

// Equal reports whether a and b are structurally equal graphs. Composite
// values are compared by content, so two distinct but identical records are
// equal; cycles are followed once. Numbers compare like Object.is, which
// keeps -0 apart from 0 and NaN equal to itself. Callables compare by
// source text and symbols by description.
func Equal(a, b any) bool {
	return (&comparer{seen: map[[2]any]bool{}}).equal(a, b)
}

type comparer struct {
	seen map[[2]any]bool
}

func (c *comparer) equal(a, b any) bool {
	ka, kb := Classify(a), Classify(b)
	if ka != kb {
		return false
	}
	if HasIdentity(a) && HasIdentity(b) {
		if a == b {
			return true
		}
		pair := [2]any{a, b}
		if c.seen[pair] {
			return true
		}
		c.seen[pair] = true
	}

	switch ka {
	case KindUndefined, KindNull:
		return true
	case KindBool, KindString:
		return a == b
	case KindNumber:
		fa, fb := ToFloat(a), ToFloat(b)
		if math.IsNaN(fa) || math.IsNaN(fb) {
			return math.IsNaN(fa) && math.IsNaN(fb)
		}
		return fa == fb && math.Signbit(fa) == math.Signbit(fb)
	case KindBigInt:
		return a.(*big.Int).Cmp(b.(*big.Int)) == 0
	case KindURL:
		return a.(*url.URL).String() == b.(*url.URL).String()
	case KindSymbol:
		return a.(*Symbol).Description == b.(*Symbol).Description
	case KindObject:
		oa, ob := a.(*Object), b.(*Object)
		if (oa.Class == nil) != (ob.Class == nil) {
			return false
		}
		if oa.Class != nil && !c.equal(oa.Class, ob.Class) {
			return false
		}
		return c.props(oa.Props, ob.Props)
	case KindArray:
		aa, ab := a.(*Array), b.(*Array)
		if len(aa.Elems) != len(ab.Elems) {
			return false
		}
		for i := range aa.Elems {
			ha, hb := IsHole(aa.Elems[i]), IsHole(ab.Elems[i])
			if ha != hb {
				return false
			}
			if !ha && !c.equal(aa.Elems[i], ab.Elems[i]) {
				return false
			}
		}
		return c.props(aa.Props, ab.Props)
	case KindMap:
		ma, mb := a.(*Map), b.(*Map)
		if len(ma.Entries) != len(mb.Entries) {
			return false
		}
		for i := range ma.Entries {
			if !c.equal(ma.Entries[i].Key, mb.Entries[i].Key) || !c.equal(ma.Entries[i].Value, mb.Entries[i].Value) {
				return false
			}
		}
		return c.props(ma.Props, mb.Props)
	case KindSet:
		sa, sb := a.(*Set), b.(*Set)
		if len(sa.Items) != len(sb.Items) {
			return false
		}
		for i := range sa.Items {
			if !c.equal(sa.Items[i], sb.Items[i]) {
				return false
			}
		}
		return c.props(sa.Props, sb.Props)
	case KindFunction:
		fa, fb := a.(*Function), b.(*Function)
		return fa.Source == fb.Source && c.props(fa.Props, fb.Props)
	case KindRegExp:
		ra, rb := a.(*RegExp), b.(*RegExp)
		return ra.Source == rb.Source && ra.Flags == rb.Flags
	case KindDate:
		da, db := a.(*Date), b.(*Date)
		if da.Invalid || db.Invalid {
			return da.Invalid == db.Invalid
		}
		return da.Time.Equal(db.Time)
	case KindError:
		return a.(*Error).Message == b.(*Error).Message
	case KindBuffer:
		return bytes.Equal(bufferBytes(a), bufferBytes(b))
	case KindTypedArray:
		ta, tb := a.(*TypedArray), b.(*TypedArray)
		if ta.Type != tb.Type || len(ta.Values) != len(tb.Values) {
			return false
		}
		for i := range ta.Values {
			if !c.equal(ta.Values[i], tb.Values[i]) {
				return false
			}
		}
		return true
	}
	return Describe(a) == Describe(b)
}

func (c *comparer) props(a, b Props) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		pa, pb := a[i], b[i]
		if pa.Key != pb.Key || pa.IsAccessor() != pb.IsAccessor() {
			return false
		}
		if pa.IsAccessor() {
			if (pa.Get == nil) != (pb.Get == nil) || (pa.Set == nil) != (pb.Set == nil) {
				return false
			}
			continue
		}
		if !c.equal(pa.Value, pb.Value) {
			return false
		}
	}
	return true
}

func bufferBytes(v any) []byte {
	switch b := v.(type) {
	case *Buffer:
		return b.Data
	case []byte:
		return b
	}
	return nil
}
