package value

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// FormatNumber renders f the way JavaScript's Number.prototype.toString
// does: the shortest digit string that round-trips, positional notation for
// magnitudes in [1e-6, 1e21) and exponent notation otherwise. Negative zero
// renders as "0", as it does in JavaScript; callers that must keep the sign
// check math.Signbit themselves.
func FormatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		return "0"
	case f < 0:
		return "-" + FormatNumber(-f)
	}

	// d.ddddde±XX
	s := strconv.FormatFloat(f, 'e', -1, 64)
	mant, expPart, _ := strings.Cut(s, "e")
	digits := strings.Replace(mant, ".", "", 1)
	exp, _ := strconv.Atoi(expPart)
	k := len(digits)
	n := exp + 1

	switch {
	case k <= n && n <= 21:
		return digits + strings.Repeat("0", n-k)
	case 0 < n && n <= 21:
		return digits[:n] + "." + digits[n:]
	case -6 < n && n <= 0:
		return "0." + strings.Repeat("0", -n) + digits
	}

	e := n - 1
	sign := "+"
	if e < 0 {
		sign = "-"
		e = -e
	}
	if k == 1 {
		return digits + "e" + sign + strconv.Itoa(e)
	}
	return digits[:1] + "." + digits[1:] + "e" + sign + strconv.Itoa(e)
}

// ISOString renders t like Date.prototype.toISOString: UTC with millisecond
// precision, six-digit signed years outside 0000..9999.
func ISOString(t time.Time) string {
	t = t.UTC()
	year := t.Year()
	var y string
	switch {
	case year < 0:
		y = fmt.Sprintf("-%06d", -year)
	case year > 9999:
		y = fmt.Sprintf("+%06d", year)
	default:
		y = fmt.Sprintf("%04d", year)
	}
	return fmt.Sprintf("%s-%02d-%02dT%02d:%02d:%02d.%03dZ",
		y, int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond()/int(time.Millisecond))
}

// ParseISOString is the inverse of ISOString. It also accepts any RFC 3339
// timestamp.
func ParseISOString(s string) (time.Time, error) {
	if strings.HasPrefix(s, "+") || (strings.HasPrefix(s, "-") && len(s) > 7 && s[7] == '-') {
		sign := 1
		if s[0] == '-' {
			sign = -1
		}
		year, err := strconv.Atoi(s[1:7])
		if err != nil {
			return time.Time{}, fmt.Errorf("bad extended year in %q: %w", s, err)
		}
		t, err := time.Parse(time.RFC3339Nano, "2000"+s[7:])
		if err != nil {
			return time.Time{}, err
		}
		return t.AddDate(sign*year-2000, 0, 0), nil
	}
	return time.Parse(time.RFC3339Nano, s)
}
