package serialize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// uesc returns the six character \uXXXX escape for hex.
func uesc(hex string) string {
	return "\\" + "u" + hex
}

func TestQuote_Safe(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", `""`},
		{"plain", `"plain"`},
		{"string's\n\"new\"   line", `"string's\n\"new\"   line"`},
		{"\x00", "\"\x00\""},
		{`<>\\ ` + "\t\n/", `"` + uesc("003C") + uesc("003E") + uesc("005C") + uesc("005C") + ` \t\n` + uesc("002F") + `"`},
		{"a\xe2\x80\xa8b\xe2\x80\xa9c", `"a` + uesc("2028") + "b" + uesc("2029") + `c"`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Quote(tt.in, false), "Quote(%q)", tt.in)
	}
}

func TestQuote_Unsafe(t *testing.T) {
	in := `<script type="application/javascript">` + "\xe2\x80\xa8\nvar a = 0;\\</script>"
	want := `"<script type=\"application/javascript\">` + "\xe2\x80\xa8" + `\nvar a = 0;` + uesc("005C") + `</script>"`
	assert.Equal(t, want, Quote(in, true))
}

func TestQuote_InvalidUTF8Survives(t *testing.T) {
	in := "a\xffb\xe2\x80"
	assert.Equal(t, `"`+in+`"`, Quote(in, false))
}

func TestSaferFunctionString(t *testing.T) {
	src := "function xss () {\n const str = '</script><script>alert(\\'xss\\')//'\n return str\n }"
	got := SaferFunctionString(src)
	assert.Contains(t, got, "'"+uesc("003C")+uesc("002F")+"script>"+uesc("003C")+"script>alert(")
	assert.NotContains(t, got, "</script>")
	// comparison operators are not tags
	assert.Equal(t, "(a) => a < 1 && b > 2", SaferFunctionString("(a) => a < 1 && b > 2"))
}

func TestIsSafeKey(t *testing.T) {
	for _, k := range []string{"a", "_x", "$", "camelCase9", "__proto__"} {
		assert.True(t, IsSafeKey(k), k)
	}
	for _, k := range []string{"", "5", "thr-ee", "se ven", "a.b", "é"} {
		assert.False(t, IsSafeKey(k), k)
	}
}

func TestKeySegment(t *testing.T) {
	assert.Equal(t, ".a", keySegment("a", false))
	assert.Equal(t, `["spa ce"]`, keySegment("spa ce", false))
	assert.Equal(t, `["__proto__"]`, keySegment("__proto__", false))
	assert.Equal(t, `["`+uesc("003C")+`"]`, keySegment("<", false))
	assert.Equal(t, `["<"]`, keySegment("<", true))
}

func TestLiteralKey(t *testing.T) {
	opts := DefaultOptions()
	assert.Equal(t, "a", literalKey("a", opts))
	assert.Equal(t, `"5"`, literalKey("5", opts))
	assert.Equal(t, `["__proto__"]`, literalKey("__proto__", opts))

	opts.AlwaysQuote = true
	assert.Equal(t, `"a"`, literalKey("a", opts))
	assert.Equal(t, `["__proto__"]`, literalKey("__proto__", opts))
}

func TestDefuseComment(t *testing.T) {
	assert.Equal(t, "a * / b", defuseComment("a */ b"))
	assert.False(t, strings.Contains(defuseComment("*/*/"), "*/"))
}
