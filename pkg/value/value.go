// Package value implements the scalar and array values handled by the
// runtime, with copy-on-write sharing for arrays.
package value

import (
	"math"

	"github.com/danielribes/ephp/pkg/phparray"
)

// ValueTag identifies which variant a Value holds.
type ValueTag int

const (
	TagNull   ValueTag = iota // no value
	TagBool                   // bool
	TagInt                    // int64
	TagFloat                  // float64
	TagString                 // string
	TagArray                  // *arrayBox
)

// String returns the gettype-style name of the tag.
func (t ValueTag) String() string {
	switch t {
	case TagNull:
		return "NULL"
	case TagBool:
		return "boolean"
	case TagInt:
		return "integer"
	case TagFloat:
		return "double"
	case TagString:
		return "string"
	case TagArray:
		return "array"
	default:
		return "unknown"
	}
}

// Value is a tagged union over the runtime's types. Scalars are stored
// directly in Data; arrays are stored behind a shared refcounted box so
// assignment can be cheap until one side writes.
type Value struct {
	Tag  ValueTag
	Data any
}

// Null is the single null value.
var Null = Value{Tag: TagNull}

// Bool wraps a boolean.
func Bool(b bool) Value {
	return Value{Tag: TagBool, Data: b}
}

// Int wraps an integer.
func Int(i int64) Value {
	return Value{Tag: TagInt, Data: i}
}

// Float wraps a float.
func Float(f float64) Value {
	return Value{Tag: TagFloat, Data: f}
}

// Str wraps a string.
func Str(s string) Value {
	return Value{Tag: TagString, Data: s}
}

// IsNull reports whether the value is null.
func (v Value) IsNull() bool {
	return v.Tag == TagNull
}

// IsArray reports whether the value holds an array.
func (v Value) IsArray() bool {
	return v.Tag == TagArray
}

// IsScalar reports whether the value is a bool, int, float, or string.
func (v Value) IsScalar() bool {
	switch v.Tag {
	case TagBool, TagInt, TagFloat, TagString:
		return true
	}
	return false
}

// TypeName returns the gettype-style name for the value.
func (v Value) TypeName() string {
	return v.Tag.String()
}

// BoolVal returns the underlying bool. It is only meaningful for TagBool.
func (v Value) BoolVal() bool {
	b, _ := v.Data.(bool)
	return b
}

// IntVal returns the underlying integer. It is only meaningful for TagInt.
func (v Value) IntVal() int64 {
	i, _ := v.Data.(int64)
	return i
}

// FloatVal returns the underlying float. It is only meaningful for TagFloat.
func (v Value) FloatVal() float64 {
	f, _ := v.Data.(float64)
	return f
}

// StrVal returns the underlying string. It is only meaningful for TagString.
func (v Value) StrVal() string {
	s, _ := v.Data.(string)
	return s
}

// Key converts the value into an array key following the usual coercions:
// integers pass through, bools become 0/1, floats truncate, null becomes the
// empty text key, and strings go through canonical-index normalization.
func (v Value) Key() phparray.Key {
	switch v.Tag {
	case TagInt:
		return phparray.IntKey(v.IntVal())
	case TagBool:
		if v.BoolVal() {
			return phparray.IntKey(1)
		}
		return phparray.IntKey(0)
	case TagFloat:
		f := v.FloatVal()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return phparray.IntKey(0)
		}
		return phparray.IntKey(int64(f))
	case TagNull:
		return phparray.TextKey("")
	default:
		return phparray.NormalizeKey(v.StrVal())
	}
}

// KeyValue converts an array key back into a value.
func KeyValue(k phparray.Key) Value {
	if k.Kind() == phparray.KindInt {
		return Int(k.Int())
	}
	return Str(k.Text())
}
