package runtime

import (
	"errors"

	"github.com/danielribes/ephp/pkg/phparray"
	"github.com/danielribes/ephp/pkg/stats"
	"github.com/danielribes/ephp/pkg/value"
)

// The pointer family wraps the container's cursor operations with the
// classic calling convention: any refused movement or read comes back as
// false (null for Key), never as an error. A container whose cursor was
// never established is treated as pointing at its first entry, which is
// what a freshly built array reports.
//
// Movement calls take a pointer to the caller's value because the cursor
// is part of the container: moving it on a shared container separates the
// caller's copy first, so aliases keep their own positions.

// Reset moves the pointer to the first entry and returns its value, or
// false when the array is empty.
func (r *Runtime) Reset(v *value.Value) value.Value {
	r.track(stats.OpCursorMove, "reset")
	w := v.ArrayForWrite()
	if w == nil {
		return r.notArray("reset", *v)
	}
	e, err := w.First()
	if err != nil {
		return r.cursorMiss("reset", err)
	}
	return e.Value
}

// End moves the pointer to the last entry and returns its value, or false
// when the array is empty.
func (r *Runtime) End(v *value.Value) value.Value {
	r.track(stats.OpCursorMove, "end")
	w := v.ArrayForWrite()
	if w == nil {
		return r.notArray("end", *v)
	}
	e, err := w.Last()
	if err != nil {
		return r.cursorMiss("end", err)
	}
	return e.Value
}

// Next advances the pointer and returns the value it lands on. Advancing
// from the last entry returns false and parks the pointer past the end,
// so a following Current also reports false until the pointer is
// re-established.
func (r *Runtime) Next(v *value.Value) value.Value {
	r.track(stats.OpCursorMove, "next")
	w := v.ArrayForWrite()
	if w == nil {
		return r.notArray("next", *v)
	}
	if w.Cursor() == 0 {
		if _, err := w.First(); err != nil {
			return r.cursorMiss("next", err)
		}
	}
	e, err := w.Next()
	if err != nil {
		if errors.Is(err, phparray.ErrEndOfData) && w.Cursor() <= w.Len() {
			w.SetCursor(w.Len() + 1)
		}
		return r.cursorMiss("next", err)
	}
	return e.Value
}

// Prev retreats the pointer and returns the value it lands on, or false
// from the first entry. A refused retreat leaves the pointer where it
// was.
func (r *Runtime) Prev(v *value.Value) value.Value {
	r.track(stats.OpCursorMove, "prev")
	w := v.ArrayForWrite()
	if w == nil {
		return r.notArray("prev", *v)
	}
	if w.Cursor() == 0 {
		// An unestablished pointer sits on the first entry, and there is
		// nothing before it.
		return r.cursorMiss("prev", phparray.ErrBeginningOfData)
	}
	e, err := w.Prev()
	if err != nil {
		return r.cursorMiss("prev", err)
	}
	return e.Value
}

// Current returns the value under the pointer without moving it, or false
// when the array is empty or the pointer sits past the last entry.
func (r *Runtime) Current(v value.Value) value.Value {
	r.track(stats.OpCursorRead, "current")
	a := v.ArrayForRead()
	if a == nil {
		return r.notArray("current", v)
	}
	e, err := peek(a)
	if err != nil {
		return r.cursorMiss("current", err)
	}
	return e.Value
}

// Key returns the key under the pointer without moving it, or null when
// the array is empty or the pointer sits past the last entry.
func (r *Runtime) Key(v value.Value) value.Value {
	r.track(stats.OpCursorRead, "key")
	a := v.ArrayForRead()
	if a == nil {
		return r.notArray("key", v)
	}
	e, err := peek(a)
	if err != nil {
		r.collector.TrackError("cursor_miss")
		return value.Null
	}
	return value.KeyValue(e.Key)
}

// Each returns the entry under the pointer as a four-slot array in the
// classic layout (1 and "value" hold the value, 0 and "key" hold the key)
// and advances the pointer, stepping past the end after the last entry.
// It returns false once no entry is under the pointer.
func (r *Runtime) Each(v *value.Value) value.Value {
	r.track(stats.OpCursorMove, "each")
	w := v.ArrayForWrite()
	if w == nil {
		return r.notArray("each", *v)
	}
	if w.Cursor() == 0 {
		w.SetCursor(1)
	}
	e, err := w.Current()
	if err != nil {
		return r.cursorMiss("each", err)
	}

	pair := phparray.New[value.Value]()
	pair.Store(phparray.IntKey(1), e.Value.Share())
	pair.Store(phparray.TextKey("value"), e.Value.Share())
	pair.Store(phparray.IntKey(0), value.KeyValue(e.Key))
	pair.Store(phparray.TextKey("key"), value.KeyValue(e.Key))

	w.SetCursor(w.Cursor() + 1)
	return value.Arr(pair)
}

// peek reads the entry under the cursor, treating an unestablished cursor
// as pointing at the first entry without actually moving it. Current only
// reports a missing cursor on a non-empty container, so the first entry
// always exists in that branch.
func peek(a *phparray.Array[value.Value]) (phparray.Entry[value.Value], error) {
	e, err := a.Current()
	if errors.Is(err, phparray.ErrNoCursor) {
		return a.ToList()[0], nil
	}
	return e, err
}

func (r *Runtime) notArray(builtin string, v value.Value) value.Value {
	r.collector.TrackError("not_array")
	r.logger.Warn("%s expects an array, %s given", builtin, v.TypeName())
	return value.Bool(false)
}

func (r *Runtime) cursorMiss(builtin string, err error) value.Value {
	r.collector.TrackError("cursor_miss")
	r.logger.Debug("%s: %v", builtin, err)
	return value.Bool(false)
}
