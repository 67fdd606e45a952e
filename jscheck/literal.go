package jscheck

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

// decodeString returns the value of a quoted string literal, quotes
// included in lit.
func decodeString(lit string) (string, error) {
	if len(lit) < 2 {
		return "", fmt.Errorf("bad string literal %q", lit)
	}
	body := lit[1 : len(lit)-1]
	if !strings.ContainsRune(body, '\\') {
		return body, nil
	}

	var b strings.Builder
	b.Grow(len(body))
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		i++
		if i >= len(body) {
			return "", fmt.Errorf("dangling escape in %q", lit)
		}
		switch c = body[i]; c {
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 't':
			b.WriteByte('\t')
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		case 'v':
			b.WriteByte('\v')
		case '0':
			b.WriteByte(0)
		case '\n':
			// line continuation
		case 'x':
			if i+3 > len(body) {
				return "", fmt.Errorf("short \\x escape in %q", lit)
			}
			n, err := strconv.ParseUint(body[i+1:i+3], 16, 8)
			if err != nil {
				return "", fmt.Errorf("bad \\x escape in %q", lit)
			}
			b.WriteRune(rune(n))
			i += 2
		case 'u':
			r, next, err := decodeUnicodeEscape(body, i+1)
			if err != nil {
				return "", fmt.Errorf("%w in %q", err, lit)
			}
			i = next - 1
			// A high surrogate followed by an escaped low surrogate is one
			// code point.
			if utf16.IsSurrogate(r) && next+1 < len(body) && body[next] == '\\' && body[next+1] == 'u' {
				if r2, next2, err := decodeUnicodeEscape(body, next+2); err == nil {
					if pair := utf16.DecodeRune(r, r2); pair != utf8.RuneError {
						r = pair
						i = next2 - 1
					}
				}
			}
			b.WriteRune(r)
		default:
			// \" \' \\ \/ and any other identity escape
			b.WriteByte(c)
		}
	}
	return b.String(), nil
}

// decodeUnicodeEscape reads XXXX or {X...} starting at i and returns the
// rune and the index after the escape.
func decodeUnicodeEscape(s string, i int) (rune, int, error) {
	if i < len(s) && s[i] == '{' {
		end := strings.IndexByte(s[i:], '}')
		if end < 0 {
			return 0, 0, fmt.Errorf("unterminated \\u{} escape")
		}
		n, err := strconv.ParseUint(s[i+1:i+end], 16, 32)
		if err != nil {
			return 0, 0, fmt.Errorf("bad \\u{} escape")
		}
		return rune(n), i + end + 1, nil
	}
	if i+4 > len(s) {
		return 0, 0, fmt.Errorf("short \\u escape")
	}
	n, err := strconv.ParseUint(s[i:i+4], 16, 16)
	if err != nil {
		return 0, 0, fmt.Errorf("bad \\u escape")
	}
	return rune(n), i + 4, nil
}

// parseNumber reads a numeric literal.
func parseNumber(lit string) (float64, error) {
	lit = strings.ReplaceAll(lit, "_", "")
	if len(lit) > 2 && lit[0] == '0' {
		base := 0
		switch lit[1] {
		case 'x', 'X':
			base = 16
		case 'o', 'O':
			base = 8
		case 'b', 'B':
			base = 2
		}
		if base != 0 {
			n, err := strconv.ParseUint(lit[2:], base, 64)
			return float64(n), err
		}
	}
	return strconv.ParseFloat(lit, 64)
}
