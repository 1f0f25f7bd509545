package phparray

// The cursor is the container's single internal iteration pointer, the same
// one PHP exposes through reset/next/prev/end/current/key. It is part of
// the container value: Clone copies it, and nothing outside SetCursor ever
// resets it behind the caller's back.
//
// State space: unset (no position established), or a 1-based position.
// Positions normally satisfy 1 <= pos <= Len(), but Erase deliberately
// leaves the cursor alone, so a position may dangle past the end after a
// removal. Operations treat a dangling position as "past the last entry"
// and fail with ErrEndOfData; Prev can step back into range from the first
// dangling position. This mirrors the source semantics and is asserted
// literally by the tests; do not renormalize it.

// Cursor returns the raw cursor state: 0 when unset, otherwise the 1-based
// position.
func (a *Array[V]) Cursor() int { return a.cursor }

// SetCursor overwrites the cursor state directly. Zero or any negative
// value unsets the cursor; positive values are stored verbatim, without
// range checking. It is the escape hatch callers use to re-establish a
// known state, for example after a sequence of erasures.
func (a *Array[V]) SetCursor(pos int) {
	if pos <= 0 {
		a.cursor = 0
		return
	}
	a.cursor = pos
}

// First moves the cursor to the first entry and returns that entry. On an
// empty container it fails with ErrEmpty and leaves the cursor untouched.
func (a *Array[V]) First() (Entry[V], error) {
	if len(a.entries) == 0 {
		return Entry[V]{}, ErrEmpty
	}
	a.cursor = 1
	return a.entries[0], nil
}

// Last moves the cursor to the final entry and returns that entry. On an
// empty container it fails with ErrEmpty and leaves the cursor untouched.
func (a *Array[V]) Last() (Entry[V], error) {
	if len(a.entries) == 0 {
		return Entry[V]{}, ErrEmpty
	}
	a.cursor = len(a.entries)
	return a.entries[a.cursor-1], nil
}

// Next advances the cursor one position and returns the entry it lands on.
// It fails with ErrEmpty on an empty container, ErrNoCursor when no
// position is established, and ErrEndOfData when the cursor already sits on
// (or dangles past) the last entry. Failures never move the cursor.
func (a *Array[V]) Next() (Entry[V], error) {
	switch {
	case len(a.entries) == 0:
		return Entry[V]{}, ErrEmpty
	case a.cursor == 0:
		return Entry[V]{}, ErrNoCursor
	case a.cursor >= len(a.entries):
		return Entry[V]{}, ErrEndOfData
	}
	a.cursor++
	return a.entries[a.cursor-1], nil
}

// Prev retreats the cursor one position and returns the entry it lands on.
// It fails with ErrEmpty on an empty container, ErrNoCursor when no
// position is established, and ErrBeginningOfData when the cursor sits on
// the first entry. A cursor dangling more than one position past the end
// cannot land on an entry by stepping back once; that fails with
// ErrEndOfData. Failures never move the cursor.
func (a *Array[V]) Prev() (Entry[V], error) {
	switch {
	case len(a.entries) == 0:
		return Entry[V]{}, ErrEmpty
	case a.cursor == 0:
		return Entry[V]{}, ErrNoCursor
	case a.cursor == 1:
		return Entry[V]{}, ErrBeginningOfData
	case a.cursor-1 > len(a.entries):
		return Entry[V]{}, ErrEndOfData
	}
	a.cursor--
	return a.entries[a.cursor-1], nil
}

// Current returns the entry under the cursor without moving it. It fails
// with ErrEmpty on an empty container, ErrNoCursor when no position is
// established, and ErrEndOfData when the position dangles past the end
// after erasures.
func (a *Array[V]) Current() (Entry[V], error) {
	switch {
	case len(a.entries) == 0:
		return Entry[V]{}, ErrEmpty
	case a.cursor == 0:
		return Entry[V]{}, ErrNoCursor
	case a.cursor > len(a.entries):
		return Entry[V]{}, ErrEndOfData
	}
	return a.entries[a.cursor-1], nil
}
