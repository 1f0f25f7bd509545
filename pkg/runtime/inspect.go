package runtime

import (
	"fmt"
	"math"
	"strings"

	"github.com/danielribes/ephp/pkg/phparray"
	"github.com/danielribes/ephp/pkg/stats"
	"github.com/danielribes/ephp/pkg/value"
)

// Count returns the number of entries in the array.
func (r *Runtime) Count(v value.Value) (int64, error) {
	r.track(stats.OpFetch, "count")
	a := v.ArrayForRead()
	if a == nil {
		return 0, r.typeError("count", v)
	}
	return int64(a.Len()), nil
}

// InArray reports whether needle occurs among the array's values. With
// strict the comparison requires matching types; otherwise the loose
// juggling rules apply.
func (r *Runtime) InArray(needle, haystack value.Value, strict bool) (value.Value, error) {
	r.track(stats.OpFetch, "in_array")
	a := haystack.ArrayForRead()
	if a == nil {
		return value.Null, r.typeError("in_array", haystack)
	}
	for _, ev := range a.All() {
		if valuesEqual(needle, ev, strict) {
			return value.Bool(true), nil
		}
	}
	return value.Bool(false), nil
}

// ArraySearch returns the key of the first value equal to needle, or
// false when no value matches.
func (r *Runtime) ArraySearch(needle, haystack value.Value, strict bool) (value.Value, error) {
	r.track(stats.OpFetch, "array_search")
	a := haystack.ArrayForRead()
	if a == nil {
		return value.Null, r.typeError("array_search", haystack)
	}
	for k, ev := range a.All() {
		if valuesEqual(needle, ev, strict) {
			return value.KeyValue(k), nil
		}
	}
	return value.Bool(false), nil
}

// ArrayKeyExists reports whether the array has an entry under key after
// the usual key coercions. Unlike a value lookup it sees entries holding
// null. Arrays cannot index anything and fail with ErrIllegalOffset.
func (r *Runtime) ArrayKeyExists(key, v value.Value) (value.Value, error) {
	r.track(stats.OpFetch, "array_key_exists")
	a := v.ArrayForRead()
	if a == nil {
		return value.Null, r.typeError("array_key_exists", v)
	}
	if key.IsArray() {
		r.collector.TrackError("illegal_offset")
		return value.Null, ErrIllegalOffset
	}
	return value.Bool(a.Has(key.Key())), nil
}

// ArrayKeys returns the array's keys as a fresh list.
func (r *Runtime) ArrayKeys(v value.Value) (value.Value, error) {
	r.track(stats.OpFetch, "array_keys")
	a := v.ArrayForRead()
	if a == nil {
		return value.Null, r.typeError("array_keys", v)
	}
	keys := phparray.New[value.Value]()
	for k := range a.All() {
		keys.Append(value.KeyValue(k))
	}
	return value.Arr(keys), nil
}

// ArrayValues returns the array's values as a fresh list keyed 0..n-1.
func (r *Runtime) ArrayValues(v value.Value) (value.Value, error) {
	r.track(stats.OpFetch, "array_values")
	a := v.ArrayForRead()
	if a == nil {
		return value.Null, r.typeError("array_values", v)
	}
	vals := phparray.New[value.Value]()
	for _, ev := range a.All() {
		vals.Append(ev.Share())
	}
	return value.Arr(vals), nil
}

// ArrayFlip exchanges keys and values. Only integer and string values can
// become keys; entries holding anything else are skipped with a warning.
// Duplicate values keep the last key seen, and string values go through
// canonical key normalization, so flipping ["a" => "5"] yields [5 => "a"].
func (r *Runtime) ArrayFlip(v value.Value) (value.Value, error) {
	r.track(stats.OpFetch, "array_flip")
	a := v.ArrayForRead()
	if a == nil {
		return value.Null, r.typeError("array_flip", v)
	}
	flipped := phparray.New[value.Value]()
	for k, ev := range a.All() {
		switch ev.Tag {
		case value.TagInt:
			flipped.Store(phparray.IntKey(ev.IntVal()), value.KeyValue(k))
		case value.TagString:
			flipped.Store(phparray.NormalizeKey(ev.StrVal()), value.KeyValue(k))
		default:
			r.logger.Warn("array_flip: can only flip integer and string values, skipping %s", ev.TypeName())
		}
	}
	return value.Arr(flipped), nil
}

// ArraySum adds up the array's values under the numeric coercion rules.
// The sum stays an integer until a float, a fractional or exponent-form
// string, or an integer overflow promotes it. Nested arrays cannot be
// added and are skipped with a warning, as are strings without a clean
// numeric spelling, which contribute their numeric prefix.
func (r *Runtime) ArraySum(v value.Value) (value.Value, error) {
	r.track(stats.OpFetch, "array_sum")
	a := v.ArrayForRead()
	if a == nil {
		return value.Null, r.typeError("array_sum", v)
	}

	var (
		intSum   int64
		floatSum float64
		isFloat  bool
	)
	addInt := func(n int64) {
		if isFloat {
			floatSum += float64(n)
			return
		}
		if addInt64Overflows(intSum, n) {
			isFloat = true
			floatSum = float64(intSum) + float64(n)
			return
		}
		intSum += n
	}
	addFloat := func(f float64) {
		if !isFloat {
			isFloat = true
			floatSum = float64(intSum)
		}
		floatSum += f
	}

	for _, ev := range a.All() {
		switch ev.Tag {
		case value.TagArray:
			r.logger.Warn("array_sum: cannot add an array, skipping")
		case value.TagFloat:
			addFloat(ev.FloatVal())
		case value.TagString:
			s := strings.TrimSpace(ev.StrVal())
			if value.IsNumeric(s) {
				if strings.ContainsAny(s, ".eE") {
					f, _ := value.ParseNumber(s)
					addFloat(f)
				} else {
					addInt(value.AsInt(ev))
				}
				continue
			}
			r.logger.Warn("array_sum: non-numeric string %q, using its numeric prefix", ev.StrVal())
			if f, i := value.AsFloat(ev), value.AsInt(ev); f != float64(i) {
				addFloat(f)
			} else {
				addInt(i)
			}
		default:
			addInt(value.AsInt(ev))
		}
	}

	if isFloat {
		return value.Float(floatSum), nil
	}
	return value.Int(intSum), nil
}

// valuesEqual dispatches to the strict or loose comparison.
func valuesEqual(a, b value.Value, strict bool) bool {
	if strict {
		return value.StrictEquals(a, b)
	}
	return value.LooseEquals(a, b)
}

// typeError records and returns the not-an-array failure shared by the
// inspection and mutation built-ins.
func (r *Runtime) typeError(builtin string, v value.Value) error {
	r.collector.TrackError("not_array")
	return fmt.Errorf("%w: %s expects an array, %s given", ErrNotArray, builtin, v.TypeName())
}

// addInt64Overflows reports whether a+b leaves the int64 range.
func addInt64Overflows(a, b int64) bool {
	if b > 0 {
		return a > math.MaxInt64-b
	}
	return a < math.MinInt64-b
}
