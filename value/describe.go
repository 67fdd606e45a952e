package value

import (
	"fmt"
	"math/big"
	"net/url"
	"strings"
)

// Describe returns a best-effort rendering of v as JavaScript's String(v)
// would produce it. It is used for comments and placeholders only, never for
// reconstructable output.
func Describe(v any) string {
	return describe(v, map[any]bool{})
}

func describe(v any, seen map[any]bool) string {
	if Classify(v) == KindNull {
		return "null"
	}
	switch x := v.(type) {
	case Undefined:
		return "undefined"
	case bool:
		if x {
			return "true"
		}
		return "false"
	case string:
		return x
	case *big.Int:
		return x.String()
	case *url.URL:
		return x.String()
	case *Symbol:
		return "Symbol(" + x.Description + ")"
	case *Array:
		if seen[x] {
			return ""
		}
		seen[x] = true
		parts := make([]string, len(x.Elems))
		for i, el := range x.Elems {
			switch Classify(el) {
			case KindNull, KindUndefined:
			default:
				if !IsHole(el) {
					parts[i] = describe(el, seen)
				}
			}
		}
		delete(seen, x)
		return strings.Join(parts, ",")
	case *Object:
		return "[object Object]"
	case *Map:
		return "[object Map]"
	case *Set:
		return "[object Set]"
	case *Function:
		return x.Source
	case *RegExp:
		return "/" + x.Source + "/" + x.Flags
	case *Date:
		if x.Invalid {
			return "Invalid Date"
		}
		return ISOString(x.Time)
	case *Error:
		if x.Message == "" {
			return "Error"
		}
		return "Error: " + x.Message
	case *Buffer:
		return string(x.Data)
	case []byte:
		return string(x)
	case *TypedArray:
		parts := make([]string, len(x.Values))
		for i, f := range x.Values {
			parts[i] = FormatNumber(f)
		}
		return strings.Join(parts, ",")
	case fmt.Stringer:
		return x.String()
	case error:
		return x.Error()
	}
	if Classify(v) == KindNumber {
		return FormatNumber(ToFloat(v))
	}
	return fmt.Sprintf("%v", v)
}
