package runtime

import (
	"fmt"
	"math"

	"github.com/danielribes/ephp/pkg/phparray"
	"github.com/danielribes/ephp/pkg/stats"
	"github.com/danielribes/ephp/pkg/value"
)

// SliceAll as the length argument of ArraySlice means "to the end". A
// plain zero cannot serve: a zero length legitimately selects nothing.
const SliceAll int64 = math.MaxInt64

// ArrayPush appends each value in order and returns the new entry count.
func (r *Runtime) ArrayPush(v *value.Value, vals ...value.Value) (int64, error) {
	r.track(stats.OpStore, "array_push")
	w := v.ArrayForWrite()
	if w == nil {
		return 0, r.typeError("array_push", *v)
	}
	for _, nv := range vals {
		w.Append(nv.Share())
	}
	return int64(w.Len()), nil
}

// ArrayPop removes and returns the last entry's value, or null when the
// array is empty. Popping the entry under the top integer key frees that
// key for the next append, and the pointer lands on the first remaining
// entry.
func (r *Runtime) ArrayPop(v *value.Value) (value.Value, error) {
	r.track(stats.OpErase, "array_pop")
	w := v.ArrayForWrite()
	if w == nil {
		return value.Null, r.typeError("array_pop", *v)
	}
	e, ok := w.PopLast()
	if !ok {
		return value.Null, nil
	}
	// The container's claim on the entry ends with the pop; the caller
	// shares the returned value if it keeps it.
	e.Value.Release()
	return e.Value, nil
}

// ArrayShift removes and returns the first entry's value, or null when
// the array is empty. The remaining integer keys are renumbered from
// zero in order, text keys stay, and the pointer lands on the first
// remaining entry.
func (r *Runtime) ArrayShift(v *value.Value) (value.Value, error) {
	r.track(stats.OpErase, "array_shift")
	w := v.ArrayForWrite()
	if w == nil {
		return value.Null, r.typeError("array_shift", *v)
	}
	if w.Len() == 0 {
		return value.Null, nil
	}

	list := w.ToList()
	fresh := phparray.New[value.Value]()
	for _, e := range list[1:] {
		// Entry references move from the old container to the rebuilt
		// one, so no counts change hands.
		if e.Key.Kind() == phparray.KindInt {
			fresh.Append(e.Value)
		} else {
			fresh.Store(e.Key, e.Value)
		}
	}
	if fresh.Len() > 0 {
		fresh.SetCursor(1)
	}
	r.swap(v, fresh)

	head := list[0].Value
	head.Release()
	return head, nil
}

// ArrayUnshift prepends each value in order and returns the new entry
// count. Integer keys are renumbered from zero with the prepended values
// first, text keys stay, and the pointer lands on the first entry.
func (r *Runtime) ArrayUnshift(v *value.Value, vals ...value.Value) (int64, error) {
	r.track(stats.OpStore, "array_unshift")
	w := v.ArrayForWrite()
	if w == nil {
		return 0, r.typeError("array_unshift", *v)
	}

	fresh := phparray.New[value.Value]()
	for _, nv := range vals {
		fresh.Append(nv.Share())
	}
	for _, e := range w.ToList() {
		if e.Key.Kind() == phparray.KindInt {
			fresh.Append(e.Value)
		} else {
			fresh.Store(e.Key, e.Value)
		}
	}
	if fresh.Len() > 0 {
		fresh.SetCursor(1)
	}
	r.swap(v, fresh)
	return int64(fresh.Len()), nil
}

// swap points the caller's value at the rebuilt container and drops the
// reference to the one it replaced. ArrayForWrite has already separated
// the old container, so the dropped reference was its last.
func (r *Runtime) swap(v *value.Value, fresh *phparray.Array[value.Value]) {
	old := *v
	*v = value.Arr(fresh)
	old.Release()
}

// releaseAll drops the references a partially built container took before
// a failure made the whole result unusable.
func releaseAll(a *phparray.Array[value.Value]) {
	for _, ev := range a.All() {
		ev.Release()
	}
}

// ArrayMerge concatenates the arrays into a fresh one. Integer keys are
// renumbered in arrival order; a text key that appears again keeps its
// first position but takes the later value.
func (r *Runtime) ArrayMerge(vals ...value.Value) (value.Value, error) {
	r.track(stats.OpStore, "array_merge")
	merged := phparray.New[value.Value]()
	for _, v := range vals {
		a := v.ArrayForRead()
		if a == nil {
			releaseAll(merged)
			return value.Null, r.typeError("array_merge", v)
		}
		for k, ev := range a.All() {
			if k.Kind() == phparray.KindInt {
				merged.Append(ev.Share())
				continue
			}
			if prev, ok := merged.Find(k); ok {
				prev.Release()
			}
			merged.Store(k, ev.Share())
		}
	}
	return value.Arr(merged), nil
}

// ArrayReverse returns a fresh array with the entries in opposite order.
// Text keys are always kept; integer keys are renumbered from zero in
// the new order unless preserveKeys is set.
func (r *Runtime) ArrayReverse(v value.Value, preserveKeys bool) (value.Value, error) {
	r.track(stats.OpFetch, "array_reverse")
	a := v.ArrayForRead()
	if a == nil {
		return value.Null, r.typeError("array_reverse", v)
	}
	list := a.ToList()
	reversed := phparray.New[value.Value]()
	for i := len(list) - 1; i >= 0; i-- {
		e := list[i]
		if e.Key.Kind() == phparray.KindInt && !preserveKeys {
			reversed.Append(e.Value.Share())
		} else {
			reversed.Store(e.Key, e.Value.Share())
		}
	}
	return value.Arr(reversed), nil
}

// ArraySlice returns a fresh array holding the run of entries selected by
// offset and length. A negative offset counts back from the end; a
// negative length stops that many entries short of the end; SliceAll
// takes everything after the offset. Text keys are always kept; integer
// keys are renumbered unless preserveKeys is set.
func (r *Runtime) ArraySlice(v value.Value, offset, length int64, preserveKeys bool) (value.Value, error) {
	r.track(stats.OpFetch, "array_slice")
	a := v.ArrayForRead()
	if a == nil {
		return value.Null, r.typeError("array_slice", v)
	}
	list := a.ToList()
	n := int64(len(list))

	if offset < 0 {
		offset = n + offset
		if offset < 0 {
			offset = 0
		}
	}
	end := n
	switch {
	case length == SliceAll:
	case length < 0:
		end = n + length
	default:
		if offset <= n-length {
			end = offset + length
		}
	}

	sliced := phparray.New[value.Value]()
	for i := offset; i < end && i < n; i++ {
		e := list[i]
		if e.Key.Kind() == phparray.KindInt && !preserveKeys {
			sliced.Append(e.Value.Share())
		} else {
			sliced.Store(e.Key, e.Value.Share())
		}
	}
	return value.Arr(sliced), nil
}

// ArrayFill returns a fresh array holding count copies of val under the
// integer keys start, start+1 and so on. A negative count is refused.
func (r *Runtime) ArrayFill(start, count int64, val value.Value) (value.Value, error) {
	r.track(stats.OpStore, "array_fill")
	if count < 0 {
		r.collector.TrackError("bad_count")
		return value.Null, fmt.Errorf("%w: array_fill got %d", ErrBadCount, count)
	}
	filled := phparray.New[value.Value]()
	for i := int64(0); i < count; i++ {
		filled.Store(phparray.IntKey(start+i), val.Share())
	}
	return value.Arr(filled), nil
}

// ArrayCombine returns a fresh array using one array's values as keys and
// the other's as values, paired in order. The inputs must be the same
// size. Key values go through the usual key coercions; an array value on
// the key side fails with ErrIllegalOffset; a key that appears again
// keeps its first position but takes the later value.
func (r *Runtime) ArrayCombine(keys, values value.Value) (value.Value, error) {
	r.track(stats.OpStore, "array_combine")
	ka := keys.ArrayForRead()
	if ka == nil {
		return value.Null, r.typeError("array_combine", keys)
	}
	va := values.ArrayForRead()
	if va == nil {
		return value.Null, r.typeError("array_combine", values)
	}
	if ka.Len() != va.Len() {
		r.collector.TrackError("count_mismatch")
		return value.Null, fmt.Errorf("%w: %d keys against %d values", ErrCountMismatch, ka.Len(), va.Len())
	}

	kl, vl := ka.ToList(), va.ToList()
	combined := phparray.New[value.Value]()
	for i := range kl {
		kv := kl[i].Value
		if kv.IsArray() {
			r.collector.TrackError("illegal_offset")
			releaseAll(combined)
			return value.Null, fmt.Errorf("%w: array_combine key at position %d", ErrIllegalOffset, i)
		}
		k := kv.Key()
		if prev, ok := combined.Find(k); ok {
			prev.Release()
		}
		combined.Store(k, vl[i].Value.Share())
	}
	return value.Arr(combined), nil
}
