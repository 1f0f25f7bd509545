package value

import (
	"math"
	"strconv"
	"strings"
)

// DefaultPrecision is the float digit count used for display formatting.
const DefaultPrecision = 14

// AsBool applies the usual truthiness rules: null, false, zero, the empty
// string, the string "0" and the empty array are false; everything else is
// true.
func AsBool(v Value) bool {
	switch v.Tag {
	case TagNull:
		return false
	case TagBool:
		return v.BoolVal()
	case TagInt:
		return v.IntVal() != 0
	case TagFloat:
		return v.FloatVal() != 0
	case TagString:
		s := v.StrVal()
		return s != "" && s != "0"
	case TagArray:
		return v.ArrayForRead().Len() > 0
	}
	return false
}

// AsInt converts to an integer: bools map to 0/1, floats truncate toward
// zero (non-finite floats map to 0), strings take their leading numeric
// prefix, arrays map to 0 when empty and 1 otherwise.
func AsInt(v Value) int64 {
	switch v.Tag {
	case TagBool:
		if v.BoolVal() {
			return 1
		}
		return 0
	case TagInt:
		return v.IntVal()
	case TagFloat:
		f := v.FloatVal()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return 0
		}
		return int64(f)
	case TagString:
		f, isInt, i, ok := numericPrefix(v.StrVal())
		if !ok {
			return 0
		}
		if isInt {
			return i
		}
		return int64(f)
	case TagArray:
		if v.ArrayForRead().Len() > 0 {
			return 1
		}
		return 0
	}
	return 0
}

// AsFloat converts to a float using the same rules as AsInt.
func AsFloat(v Value) float64 {
	switch v.Tag {
	case TagBool:
		if v.BoolVal() {
			return 1
		}
		return 0
	case TagInt:
		return float64(v.IntVal())
	case TagFloat:
		return v.FloatVal()
	case TagString:
		f, _, _, ok := numericPrefix(v.StrVal())
		if !ok {
			return 0
		}
		return f
	case TagArray:
		if v.ArrayForRead().Len() > 0 {
			return 1
		}
		return 0
	}
	return 0
}

// AsString renders the value the way echo would: null and false become the
// empty string, true becomes "1", arrays render as the word "Array".
func AsString(v Value, precision int) string {
	switch v.Tag {
	case TagNull:
		return ""
	case TagBool:
		if v.BoolVal() {
			return "1"
		}
		return ""
	case TagInt:
		return strconv.FormatInt(v.IntVal(), 10)
	case TagFloat:
		return FormatFloat(v.FloatVal(), precision)
	case TagString:
		return v.StrVal()
	case TagArray:
		return "Array"
	}
	return ""
}

// FormatFloat renders a float with the given digit precision; a negative
// precision selects the shortest round-trip form. Exponent forms always
// keep a fractional digit ("1.0E+20") and never pad the exponent.
func FormatFloat(f float64, precision int) string {
	switch {
	case math.IsNaN(f):
		return "NAN"
	case math.IsInf(f, 1):
		return "INF"
	case math.IsInf(f, -1):
		return "-INF"
	}

	if precision < 0 {
		precision = -1
	}
	s := strconv.FormatFloat(f, 'G', precision, 64)

	if i := strings.IndexByte(s, 'E'); i >= 0 {
		mantissa, exp := s[:i], s[i:]
		if !strings.Contains(mantissa, ".") {
			mantissa += ".0"
		}
		// strip a single leading zero from the exponent digits
		if len(exp) > 3 && (exp[1] == '+' || exp[1] == '-') && exp[2] == '0' {
			exp = exp[:2] + exp[3:]
		}
		s = mantissa + exp
	}
	return s
}

// IsNumeric reports whether the string parses fully as a decimal number,
// allowing surrounding whitespace.
func IsNumeric(s string) bool {
	_, ok := ParseNumber(s)
	return ok
}

// ParseNumber parses a fully numeric string into a float. Leading and
// trailing whitespace is allowed; hex, binary, INF and NAN spellings are
// not numbers here.
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	n := scanNumber(s)
	if n != len(s) {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// numericPrefix parses the longest numeric prefix of s after leading
// whitespace. It reports the float form, whether the prefix was a plain
// integer in int64 range, that integer, and whether any digits were found.
func numericPrefix(s string) (f float64, isInt bool, i int64, ok bool) {
	s = strings.TrimLeft(s, " \t\n\r\v\f")
	n := scanNumber(s)
	if n == 0 {
		return 0, false, 0, false
	}
	prefix := s[:n]

	if !strings.ContainsAny(prefix, ".eE") {
		if v, err := strconv.ParseInt(prefix, 10, 64); err == nil {
			return float64(v), true, v, true
		}
		// out of int64 range, fall through to the float form
	}
	v, err := strconv.ParseFloat(prefix, 64)
	if err != nil {
		return 0, false, 0, false
	}
	return v, false, 0, true
}

// scanNumber returns the length of the leading decimal-number token of s:
// [+-]? digits [. digits?]? | [+-]? . digits, then an optional exponent.
// It returns 0 when s does not start with a number.
func scanNumber(s string) int {
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}

	digits := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
		digits++
	}
	if i < len(s) && s[i] == '.' {
		i++
		for i < len(s) && s[i] >= '0' && s[i] <= '9' {
			i++
			digits++
		}
	}
	if digits == 0 {
		return 0
	}

	// optional exponent; only consumed when complete
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		j := i + 1
		if j < len(s) && (s[j] == '+' || s[j] == '-') {
			j++
		}
		expDigits := 0
		for j < len(s) && s[j] >= '0' && s[j] <= '9' {
			j++
			expDigits++
		}
		if expDigits > 0 {
			i = j
		}
	}
	return i
}
