package serialize

import (
	"regexp"
	"strings"
)

// ---------------------------------------------------------------------------
// Text escaping
// ---------------------------------------------------------------------------

// escapes maps every character the serializer ever escapes to its
// replacement. Both modes share the table; they differ in which characters
// they consult it for.
var escapes = map[string]string{
	`"`:      `\"`,
	"\n":     `\n`,
	"\r":     `\r`,
	"\t":     `\t`,
	`\`:      `\u005C`,
	"<":      `\u003C`,
	">":      `\u003E`,
	"/":      `\u002F`,
	"\u2028": `\u2028`,
	"\u2029": `\u2029`,
}

// SafeString escapes s for a double quoted literal that may be embedded in an
// HTML script element: quotes, control whitespace, backslash, angle brackets,
// slash and the two line terminators JavaScript treats as newlines.
func SafeString(s string) string {
	return escape(s, true)
}

// UnsafeString escapes only what a double quoted literal needs to stay
// well-formed: backslash, quote, CR, LF and tab.
func UnsafeString(s string) string {
	return escape(s, false)
}

func escape(s string, safe bool) string {
	var b strings.Builder
	b.Grow(len(s) + 8)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '"', '\n', '\r', '\t', '\\':
			b.WriteString(escapes[string(c)])
			continue
		case '<', '>', '/':
			if safe {
				b.WriteString(escapes[string(c)])
				continue
			}
		case 0xE2:
			// U+2028 and U+2029 are E2 80 A8 and E2 80 A9.
			if safe && i+2 < len(s) && s[i+1] == 0x80 && (s[i+2] == 0xA8 || s[i+2] == 0xA9) {
				b.WriteString(escapes[s[i:i+3]])
				i += 2
				continue
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}

// Quote renders s as a double quoted JavaScript string literal.
func Quote(s string, unsafe bool) string {
	if s == "" {
		return `""`
	}
	if unsafe {
		return `"` + UnsafeString(s) + `"`
	}
	return `"` + SafeString(s) + `"`
}

var tagPattern = regexp.MustCompile(`(?i)</?[a-z][^>]*?>`)

// SaferFunctionString defuses HTML tags inside callable source text by
// escaping their opening "<" or "</". The rest of the source is left alone
// so the callable still parses.
func SaferFunctionString(src string) string {
	return tagPattern.ReplaceAllStringFunc(src, func(m string) string {
		n := 1
		if strings.HasPrefix(m, "</") {
			n = 2
		}
		return SafeString(m[:n]) + m[n:]
	})
}

// ---------------------------------------------------------------------------
// Keys and path segments
// ---------------------------------------------------------------------------

var safeKeyPattern = regexp.MustCompile(`^[a-zA-Z$_][a-zA-Z$_0-9]*$`)

// IsSafeKey reports whether key can be written bare, both as a literal key and
// after a dot.
func IsSafeKey(key string) bool {
	return key != "" && safeKeyPattern.MatchString(key)
}

// protoKey is the one key whose bare or quoted literal form assigns the
// prototype instead of creating an own property.
const protoKey = "__proto__"

// literalKey renders key for use inside an object literal.
func literalKey(key string, opts *Options) string {
	switch {
	case key == protoKey:
		return `["__proto__"]`
	case opts.AlwaysQuote || !IsSafeKey(key):
		return Quote(key, opts.Unsafe)
	}
	return key
}

// keySegment renders key as an access path segment.
func keySegment(key string, unsafe bool) string {
	if IsSafeKey(key) && key != protoKey {
		return "." + key
	}
	return "[" + Quote(key, unsafe) + "]"
}

// defuseComment keeps text from closing the block comment it is placed in.
func defuseComment(s string) string {
	return strings.ReplaceAll(s, "*/", "* /")
}
