package value

import "iter"

// StrictEquals reports identity-style equality: the tags must match and the
// payloads must be equal. Arrays must hold the same keys in the same order
// with strictly equal values.
func StrictEquals(a, b Value) bool {
	if a.Tag != b.Tag {
		return false
	}
	switch a.Tag {
	case TagNull:
		return true
	case TagBool:
		return a.BoolVal() == b.BoolVal()
	case TagInt:
		return a.IntVal() == b.IntVal()
	case TagFloat:
		return a.FloatVal() == b.FloatVal()
	case TagString:
		return a.StrVal() == b.StrVal()
	case TagArray:
		return strictArrayEquals(a, b)
	}
	return false
}

func strictArrayEquals(a, b Value) bool {
	left, right := a.ArrayForRead(), b.ArrayForRead()
	if left == right {
		return true
	}
	if left.Len() != right.Len() {
		return false
	}

	next, stop := iter.Pull2(right.All())
	defer stop()
	for lk, lv := range left.All() {
		rk, rv, _ := next()
		if lk != rk || !StrictEquals(lv, rv) {
			return false
		}
	}
	return true
}

// LooseEquals reports equality after type juggling. Null compares equal to
// false, the empty string, zero and the empty array; booleans pull the other
// side to a boolean; numbers and numeric strings compare numerically; two
// non-numeric strings compare byte for byte; arrays match key sets without
// regard to order.
func LooseEquals(a, b Value) bool {
	// normalize so the lower tag is on the left
	if a.Tag > b.Tag {
		a, b = b, a
	}

	switch {
	case a.Tag == b.Tag:
		return looseSameTag(a, b)
	case a.Tag == TagNull:
		return looseNull(b)
	case a.Tag == TagBool:
		return a.BoolVal() == AsBool(b)
	case b.Tag == TagArray:
		// an array never equals an int, float or string
		return false
	case a.Tag == TagInt && b.Tag == TagFloat:
		return float64(a.IntVal()) == b.FloatVal()
	case b.Tag == TagString:
		// number against string: numeric strings compare numerically,
		// anything else compares as strings
		if n, ok := ParseNumber(b.StrVal()); ok {
			return AsFloat(a) == n
		}
		return AsString(a, DefaultPrecision) == b.StrVal()
	}
	return false
}

func looseSameTag(a, b Value) bool {
	switch a.Tag {
	case TagNull:
		return true
	case TagBool:
		return a.BoolVal() == b.BoolVal()
	case TagInt:
		return a.IntVal() == b.IntVal()
	case TagFloat:
		return a.FloatVal() == b.FloatVal()
	case TagString:
		as, bs := a.StrVal(), b.StrVal()
		an, aok := ParseNumber(as)
		bn, bok := ParseNumber(bs)
		if aok && bok {
			return an == bn
		}
		return as == bs
	case TagArray:
		return looseArrayEquals(a, b)
	}
	return false
}

func looseNull(b Value) bool {
	switch b.Tag {
	case TagBool:
		return !b.BoolVal()
	case TagInt:
		return b.IntVal() == 0
	case TagFloat:
		return b.FloatVal() == 0
	case TagString:
		return b.StrVal() == ""
	case TagArray:
		return b.ArrayForRead().Len() == 0
	}
	return false
}

func looseArrayEquals(a, b Value) bool {
	left, right := a.ArrayForRead(), b.ArrayForRead()
	if left == right {
		return true
	}
	if left.Len() != right.Len() {
		return false
	}
	for k, lv := range left.All() {
		rv, ok := right.Find(k)
		if !ok || !LooseEquals(lv, rv) {
			return false
		}
	}
	return true
}
