package main

import (
	"strconv"
	"strings"

	"github.com/danielribes/ephp/pkg/phparray"
	"github.com/danielribes/ephp/pkg/value"
)

// parseLiteral types a command token: canonical integers first, then
// floats, then the bool and null words, with everything else a string.
// Quoting is not supported; a token is a single word.
func parseLiteral(tok string) value.Value {
	if isIntegerLiteral(tok) {
		if n, err := strconv.ParseInt(tok, 10, 64); err == nil {
			return value.Int(n)
		}
	}
	// A float literal must spell a fraction or an exponent; digit runs
	// that failed the canonical-integer rule, like "007", stay strings.
	// IsNumeric also keeps out the hex float and Inf/NaN spellings that
	// ParseFloat would otherwise accept.
	if strings.ContainsAny(tok, ".eE") && value.IsNumeric(tok) {
		if f, err := strconv.ParseFloat(tok, 64); err == nil {
			return value.Float(f)
		}
	}
	switch strings.ToLower(tok) {
	case "true":
		return value.Bool(true)
	case "false":
		return value.Bool(false)
	case "null":
		return value.Null
	}
	return value.Str(tok)
}

// isIntegerLiteral reports whether tok is a canonically spelled integer:
// an optional minus sign followed by digits with no leading zero except
// "0" itself. "007" stays a string.
func isIntegerLiteral(tok string) bool {
	digits := strings.TrimPrefix(tok, "-")
	return phparray.NormalizeKey(digits).Kind() == phparray.KindInt
}

// parseKey types a key token with the canonical-index rule, so "5" indexes
// the integer key space and "05" the text one.
func parseKey(tok string) phparray.Key {
	return phparray.NormalizeKey(tok)
}

// parseItem reads a token as an array element. A key=value token becomes a
// keyed element, anything else a bare one taking the next auto key.
func parseItem(tok string) phparray.Item[value.Value] {
	if i := strings.IndexByte(tok, '='); i > 0 {
		return phparray.Keyed(parseKey(tok[:i]), parseLiteral(tok[i+1:]))
	}
	return phparray.Bare(parseLiteral(tok))
}

// buildValue turns command arguments into a value. A single plain token is
// a scalar; multiple tokens, or any key=value token, build an array.
func buildValue(args []string) value.Value {
	if len(args) == 1 && !strings.Contains(args[0], "=") {
		return parseLiteral(args[0])
	}
	items := make([]phparray.Item[value.Value], 0, len(args))
	for _, a := range args {
		items = append(items, parseItem(a))
	}
	return value.Arr(phparray.FromItems(items))
}
