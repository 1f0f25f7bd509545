package value

import (
	"github.com/danielribes/ephp/pkg/phparray"
)

// arrayBox is the shared storage behind an array value. refs counts the
// logical owners (cells and containing arrays); writers separate the box
// when it is shared. The runtime is single-threaded per request, so the
// count needs no synchronization.
type arrayBox struct {
	arr  *phparray.Array[Value]
	refs int
}

// NewArray returns a value holding a fresh empty array.
func NewArray() Value {
	return Value{Tag: TagArray, Data: &arrayBox{arr: phparray.New[Value](), refs: 1}}
}

// Arr wraps an existing array, taking ownership of it.
func Arr(a *phparray.Array[Value]) Value {
	return Value{Tag: TagArray, Data: &arrayBox{arr: a, refs: 1}}
}

// ArrayOf builds an array value from a list of values with auto keys.
func ArrayOf(vals ...Value) Value {
	a := phparray.New[Value]()
	for _, v := range vals {
		a.Append(v.Share())
	}
	return Arr(a)
}

// Share registers one more logical owner of the value and returns it.
// Assignments must store the result of Share, never the bare value.
func (v Value) Share() Value {
	if v.Tag == TagArray {
		v.Data.(*arrayBox).refs++
	}
	return v
}

// Release drops one logical owner. Cells call it when they are overwritten
// or unset so later writes can skip the copy.
func (v Value) Release() {
	if v.Tag == TagArray {
		box := v.Data.(*arrayBox)
		if box.refs > 0 {
			box.refs--
		}
	}
}

// RefCount reports the number of logical owners of an array value.
// Non-array values always report zero.
func (v Value) RefCount() int {
	if v.Tag != TagArray {
		return 0
	}
	return v.Data.(*arrayBox).refs
}

// ArrayForRead returns the underlying array for read-only use, or nil when
// the value does not hold an array. Callers must not mutate the result.
func (v Value) ArrayForRead() *phparray.Array[Value] {
	if v.Tag != TagArray {
		return nil
	}
	return v.Data.(*arrayBox).arr
}

// ArrayForWrite returns the underlying array for mutation, separating the
// box first when it is shared. The receiver is updated in place to point at
// the private copy, so v must be the owner's stored value.
func (v *Value) ArrayForWrite() *phparray.Array[Value] {
	if v.Tag != TagArray {
		return nil
	}

	box := v.Data.(*arrayBox)
	if box.refs <= 1 {
		return box.arr
	}

	// Separate: the other owners keep the old box, this owner gets a
	// private copy. Direct children gain one more owner each.
	box.refs--
	private := box.arr.Clone()
	for _, child := range private.All() {
		if child.Tag == TagArray {
			child.Data.(*arrayBox).refs++
		}
	}
	v.Data = &arrayBox{arr: private, refs: 1}
	return private
}

// Clone returns an independent deep copy of the value. Arrays are copied
// eagerly at every level; scalars are returned as-is.
func (v Value) Clone() Value {
	if v.Tag != TagArray {
		return v
	}

	dst := v.ArrayForRead().Clone()
	dst.Transform(func(_ phparray.Key, child Value) Value {
		return child.Clone()
	})
	return Arr(dst)
}
