package phparray

import "strconv"

// KeyKind discriminates the two key variants a container accepts.
type KeyKind uint8

const (
	// KindInt is a non-negative integer key.
	KindInt KeyKind = iota
	// KindText is a byte-string key.
	KindText
)

// Key is the tagged union of the two key variants. Keys compare by kind and
// value: an integer key never equals a text key, even when the text spells
// the same number. Whether a numeric-looking string should become an integer
// key is a policy the caller applies before storing (see NormalizeKey); the
// container itself never coerces keys.
//
// The zero Key is IntKey(0).
type Key struct {
	kind KeyKind
	num  int64
	str  string
}

// IntKey builds an integer key.
func IntKey(n int64) Key { return Key{kind: KindInt, num: n} }

// TextKey builds a string key.
func TextKey(s string) Key { return Key{kind: KindText, str: s} }

// Kind reports which variant the key holds.
func (k Key) Kind() KeyKind { return k.kind }

// Int returns the integer payload. Meaningful only when Kind is KindInt.
func (k Key) Int() int64 { return k.num }

// Text returns the string payload. Meaningful only when Kind is KindText.
func (k Key) Text() string { return k.str }

// String renders the key for debug output. Integer keys print bare, text
// keys print quoted so IntKey(5) and TextKey("5") stay distinguishable.
func (k Key) String() string {
	if k.kind == KindInt {
		return strconv.FormatInt(k.num, 10)
	}
	return strconv.Quote(k.str)
}

// NormalizeKey applies the runtime's numeric-string key policy: a canonical
// non-negative decimal integer string becomes an integer key, everything
// else stays a text key. Canonical means digits only, no sign, no leading
// zeros except "0" itself, and a value that fits in int64. Callers decide
// whether to run keys through this before Store and Find; the container
// never does it on their behalf.
func NormalizeKey(s string) Key {
	if !isCanonicalIndex(s) {
		return TextKey(s)
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		// Digits only but overflows int64, e.g. "99999999999999999999".
		return TextKey(s)
	}
	return IntKey(n)
}

func isCanonicalIndex(s string) bool {
	if s == "" {
		return false
	}
	if len(s) > 1 && s[0] == '0' {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
