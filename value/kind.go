package value

import (
	"math"
	"math/big"
	"net/url"
)

// Kind is the closed set of value kinds the serializer dispatches on.
type Kind int

const (
	KindOpaque Kind = iota
	KindUndefined
	KindNull
	KindBool
	KindNumber
	KindString
	KindBigInt
	KindSymbol
	KindURL
	KindArray
	KindObject
	KindMap
	KindSet
	KindFunction
	KindRegExp
	KindDate
	KindError
	KindBuffer
	KindTypedArray
)

var kindNames = [...]string{
	KindOpaque:     "Opaque",
	KindUndefined:  "Undefined",
	KindNull:       "Null",
	KindBool:       "Boolean",
	KindNumber:     "Number",
	KindString:     "String",
	KindBigInt:     "BigInt",
	KindSymbol:     "Symbol",
	KindURL:        "URL",
	KindArray:      "Array",
	KindObject:     "Object",
	KindMap:        "Map",
	KindSet:        "Set",
	KindFunction:   "Function",
	KindRegExp:     "RegExp",
	KindDate:       "Date",
	KindError:      "Error",
	KindBuffer:     "Buffer",
	KindTypedArray: "TypedArray",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Opaque"
}

// Primitive reports whether values of this kind are copied by value.
func (k Kind) Primitive() bool {
	switch k {
	case KindUndefined, KindNull, KindBool, KindNumber, KindString, KindBigInt, KindURL:
		return true
	}
	return false
}

// Classify returns the kind of v. It never panics; values it does not
// recognize are KindOpaque. Typed nil pointers of model types are KindNull.
func Classify(v any) Kind {
	switch x := v.(type) {
	case nil:
		return KindNull
	case Undefined:
		return KindUndefined
	case bool:
		return KindBool
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, uintptr, float32, float64:
		return KindNumber
	case string:
		return KindString
	case *big.Int:
		return nilOr(x == nil, KindBigInt)
	case *Symbol:
		return nilOr(x == nil, KindSymbol)
	case *url.URL:
		return nilOr(x == nil, KindURL)
	case *Array:
		return nilOr(x == nil, KindArray)
	case *Object:
		return nilOr(x == nil, KindObject)
	case *Map:
		return nilOr(x == nil, KindMap)
	case *Set:
		return nilOr(x == nil, KindSet)
	case *Function:
		return nilOr(x == nil, KindFunction)
	case *RegExp:
		return nilOr(x == nil, KindRegExp)
	case *Date:
		return nilOr(x == nil, KindDate)
	case *Error:
		return nilOr(x == nil, KindError)
	case *Buffer:
		return nilOr(x == nil, KindBuffer)
	case []byte:
		return KindBuffer
	case *TypedArray:
		return nilOr(x == nil, KindTypedArray)
	}
	return KindOpaque
}

func nilOr(isNil bool, k Kind) Kind {
	if isNil {
		return KindNull
	}
	return k
}

// HasIdentity reports whether v is a non-nil pointer to a composite model
// value, i.e. whether two occurrences of v denote one shared value.
func HasIdentity(v any) bool {
	switch Classify(v) {
	case KindArray, KindObject, KindMap, KindSet, KindFunction, KindRegExp,
		KindDate, KindError, KindTypedArray, KindSymbol:
		return true
	case KindBuffer:
		_, ok := v.(*Buffer)
		return ok
	}
	return false
}

// SameValueZero compares like JavaScript Map keys: identity for composites,
// value equality for primitives, NaN equal to NaN and 0 equal to -0.
func SameValueZero(a, b any) bool {
	if HasIdentity(a) || HasIdentity(b) {
		return HasIdentity(a) && HasIdentity(b) && a == b
	}
	ka, kb := Classify(a), Classify(b)
	if ka != kb {
		return false
	}
	switch ka {
	case KindNumber:
		fa, fb := ToFloat(a), ToFloat(b)
		if math.IsNaN(fa) && math.IsNaN(fb) {
			return true
		}
		return fa == fb
	case KindBigInt:
		return a.(*big.Int).Cmp(b.(*big.Int)) == 0
	case KindURL:
		return a.(*url.URL).String() == b.(*url.URL).String()
	case KindUndefined, KindNull:
		return true
	case KindBool, KindString:
		return a == b
	}
	return false
}

// ToFloat converts any Go numeric value to float64. Non-numbers yield NaN.
func ToFloat(v any) float64 {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int8:
		return float64(n)
	case int16:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case uint:
		return float64(n)
	case uint8:
		return float64(n)
	case uint16:
		return float64(n)
	case uint32:
		return float64(n)
	case uint64:
		return float64(n)
	case uintptr:
		return float64(n)
	case float32:
		return float64(n)
	case float64:
		return n
	}
	return math.NaN()
}
