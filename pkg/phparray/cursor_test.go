package phparray

import (
	"errors"
	"testing"
)

// wantCursorErr asserts that a cursor operation failed with exactly the
// given sentinel.
func wantCursorErr(t *testing.T, op string, err, want error) {
	t.Helper()

	if err == nil {
		t.Fatalf("%s: expected %v, got success", op, want)
	}
	if !errors.Is(err, want) {
		t.Errorf("%s: expected %v, got %v", op, want, err)
	}
}

func TestCursorOpsOnEmptyContainer(t *testing.T) {
	a := New[string]()

	if _, err := a.First(); !errors.Is(err, ErrEmpty) {
		t.Errorf("First on empty: expected ErrEmpty, got %v", err)
	}
	if _, err := a.Last(); !errors.Is(err, ErrEmpty) {
		t.Errorf("Last on empty: expected ErrEmpty, got %v", err)
	}
	if _, err := a.Next(); !errors.Is(err, ErrEmpty) {
		t.Errorf("Next on empty: expected ErrEmpty, got %v", err)
	}
	if _, err := a.Prev(); !errors.Is(err, ErrEmpty) {
		t.Errorf("Prev on empty: expected ErrEmpty, got %v", err)
	}
	if _, err := a.Current(); !errors.Is(err, ErrEmpty) {
		t.Errorf("Current on empty: expected ErrEmpty, got %v", err)
	}
}

func TestCurrentNeedsEstablishedCursor(t *testing.T) {
	// A freshly built non-empty container has entries but no cursor
	// position; that is a distinct state from empty and fails differently.
	a := New[string]()
	a.Append("a")

	_, err := a.Current()
	wantCursorErr(t, "Current", err, ErrNoCursor)

	_, err = a.Next()
	wantCursorErr(t, "Next", err, ErrNoCursor)

	_, err = a.Prev()
	wantCursorErr(t, "Prev", err, ErrNoCursor)
}

func TestFirstEstablishesCursor(t *testing.T) {
	a := New[string]()
	a.Append("a")
	a.Append("b")

	e, err := a.First()
	if err != nil {
		t.Fatalf("First: %v", err)
	}
	if e.Key != IntKey(0) || e.Value != "a" {
		t.Errorf("First returned (%s, %q)", e.Key, e.Value)
	}
	if a.Cursor() != 1 {
		t.Errorf("expected cursor 1 after First, got %d", a.Cursor())
	}

	cur, err := a.Current()
	if err != nil {
		t.Fatalf("Current after First: %v", err)
	}
	if cur.Value != "a" {
		t.Errorf("Current after First returned %q", cur.Value)
	}
}

func TestForwardWalkEndsWithEndOfData(t *testing.T) {
	values := []string{"a", "b", "c", "d"}
	a := FromList(values)

	if _, err := a.First(); err != nil {
		t.Fatalf("First: %v", err)
	}

	// size-1 advances reach the last entry.
	for i := 1; i < len(values); i++ {
		e, err := a.Next()
		if err != nil {
			t.Fatalf("Next #%d: %v", i, err)
		}
		if e.Value != values[i] {
			t.Errorf("Next #%d: expected %q, got %q", i, values[i], e.Value)
		}
	}

	cur, err := a.Current()
	if err != nil {
		t.Fatalf("Current at end: %v", err)
	}
	if cur.Value != "d" {
		t.Errorf("expected to sit on the last entry, got %q", cur.Value)
	}

	// One more advance falls off the end without moving the cursor.
	_, err = a.Next()
	wantCursorErr(t, "Next past end", err, ErrEndOfData)
	if a.Cursor() != len(values) {
		t.Errorf("failed Next moved the cursor to %d", a.Cursor())
	}
}

func TestBackwardWalkEndsWithBeginningOfData(t *testing.T) {
	values := []string{"a", "b", "c"}
	a := FromList(values)

	e, err := a.Last()
	if err != nil {
		t.Fatalf("Last: %v", err)
	}
	if e.Value != "c" {
		t.Errorf("Last returned %q", e.Value)
	}

	for i := len(values) - 2; i >= 0; i-- {
		e, err := a.Prev()
		if err != nil {
			t.Fatalf("Prev to %d: %v", i, err)
		}
		if e.Value != values[i] {
			t.Errorf("Prev: expected %q, got %q", values[i], e.Value)
		}
	}

	_, err = a.Prev()
	wantCursorErr(t, "Prev before start", err, ErrBeginningOfData)
	if a.Cursor() != 1 {
		t.Errorf("failed Prev moved the cursor to %d", a.Cursor())
	}
}

func TestSingleEntryCursor(t *testing.T) {
	// The walkthrough scenario: empty fails with Empty, then one append
	// makes First succeed, and Prev immediately hits the front.
	a := New[string]()

	_, err := a.First()
	wantCursorErr(t, "First on empty", err, ErrEmpty)

	a.Append("a")

	e, err := a.First()
	if err != nil {
		t.Fatalf("First: %v", err)
	}
	if e.Key != IntKey(0) || e.Value != "a" {
		t.Errorf("First returned (%s, %q)", e.Key, e.Value)
	}
	if a.Cursor() != 1 {
		t.Errorf("expected cursor 1, got %d", a.Cursor())
	}

	_, err = a.Prev()
	wantCursorErr(t, "Prev at first entry", err, ErrBeginningOfData)
}

func TestSetCursor(t *testing.T) {
	a := FromList([]string{"a", "b", "c"})

	a.SetCursor(2)
	e, err := a.Current()
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if e.Value != "b" {
		t.Errorf("expected %q at position 2, got %q", "b", e.Value)
	}

	// Zero and negatives unset.
	a.SetCursor(0)
	if _, err := a.Current(); !errors.Is(err, ErrNoCursor) {
		t.Errorf("expected ErrNoCursor after SetCursor(0), got %v", err)
	}
	a.SetCursor(-3)
	if a.Cursor() != 0 {
		t.Errorf("negative positions must unset, cursor is %d", a.Cursor())
	}

	// Out-of-range positive positions are stored verbatim.
	a.SetCursor(9)
	if a.Cursor() != 9 {
		t.Errorf("expected verbatim cursor 9, got %d", a.Cursor())
	}
}

func TestEraseBeforeCursorShiftsWhatItPointsAt(t *testing.T) {
	// Erase never renormalizes the cursor. Removing an entry before the
	// cursor leaves the position number unchanged, so the cursor now points
	// at the entry that slid into that position.
	a := FromList([]string{"a", "b", "c"})
	if _, err := a.First(); err != nil {
		t.Fatalf("First: %v", err)
	}
	if _, err := a.Next(); err != nil {
		t.Fatalf("Next: %v", err)
	}
	// Cursor sits at position 2, on "b".

	a.Erase(IntKey(0))

	if a.Cursor() != 2 {
		t.Fatalf("erase adjusted the cursor to %d", a.Cursor())
	}
	e, err := a.Current()
	if err != nil {
		t.Fatalf("Current after erase: %v", err)
	}
	// Position 2 now holds "c", not the "b" the cursor was set on.
	if e.Value != "c" {
		t.Errorf("expected the shifted entry %q at position 2, got %q", "c", e.Value)
	}
}

func TestEraseCanLeaveCursorPastEnd(t *testing.T) {
	a := FromList([]string{"a", "b"})
	if _, err := a.Last(); err != nil {
		t.Fatalf("Last: %v", err)
	}
	// Cursor sits at position 2.

	a.Erase(IntKey(1))

	// The position survives verbatim and now dangles past the end.
	if a.Cursor() != 2 {
		t.Fatalf("erase adjusted the cursor to %d", a.Cursor())
	}
	_, err := a.Current()
	wantCursorErr(t, "Current on dangling cursor", err, ErrEndOfData)
	_, err = a.Next()
	wantCursorErr(t, "Next on dangling cursor", err, ErrEndOfData)

	// A single step back lands on the last remaining entry.
	e, err := a.Prev()
	if err != nil {
		t.Fatalf("Prev from dangling cursor: %v", err)
	}
	if e.Value != "a" {
		t.Errorf("expected %q, got %q", "a", e.Value)
	}
	if a.Cursor() != 1 {
		t.Errorf("expected cursor 1, got %d", a.Cursor())
	}
}

func TestDeepDanglingCursorCannotStepBackIn(t *testing.T) {
	// A cursor dangling more than one position past the end cannot reach an
	// entry with a single retreat; the op fails without moving it.
	a := FromList([]string{"a", "b", "c", "d"})
	if _, err := a.Last(); err != nil {
		t.Fatalf("Last: %v", err)
	}
	a.Erase(IntKey(3))
	a.Erase(IntKey(2))
	a.Erase(IntKey(1))
	// One entry left, cursor still 4.

	if a.Cursor() != 4 {
		t.Fatalf("expected cursor 4, got %d", a.Cursor())
	}
	_, err := a.Prev()
	wantCursorErr(t, "Prev from deep dangling cursor", err, ErrEndOfData)
	if a.Cursor() != 4 {
		t.Errorf("failed Prev moved the cursor to %d", a.Cursor())
	}

	// SetCursor is the sanctioned way out of the dangling state.
	a.SetCursor(1)
	e, err := a.Current()
	if err != nil {
		t.Fatalf("Current after SetCursor: %v", err)
	}
	if e.Value != "a" {
		t.Errorf("expected %q, got %q", "a", e.Value)
	}
}

func TestEraseToEmptyYieldsEmptyErrors(t *testing.T) {
	// Once the container is empty again, Empty wins over every other
	// cursor failure, whatever the leftover cursor value is.
	a := FromList([]string{"a"})
	if _, err := a.First(); err != nil {
		t.Fatalf("First: %v", err)
	}

	a.Erase(IntKey(0))

	if a.Cursor() != 1 {
		t.Fatalf("erase adjusted the cursor to %d", a.Cursor())
	}
	if _, err := a.Current(); !errors.Is(err, ErrEmpty) {
		t.Errorf("Current on emptied container: expected ErrEmpty, got %v", err)
	}
	if _, err := a.Next(); !errors.Is(err, ErrEmpty) {
		t.Errorf("Next on emptied container: expected ErrEmpty, got %v", err)
	}
}

func TestReplaceKeepsCursorMeaning(t *testing.T) {
	// In-place replacement does not reorder entries, so the cursor keeps
	// pointing at the same position and sees the new value.
	a := FromList([]string{"a", "b", "c"})
	a.SetCursor(2)

	a.Store(IntKey(1), "B")

	e, err := a.Current()
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if e.Key != IntKey(1) || e.Value != "B" {
		t.Errorf("expected (1, %q), got (%s, %q)", "B", e.Key, e.Value)
	}
}
