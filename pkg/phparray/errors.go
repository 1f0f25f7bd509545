package phparray

import "errors"

// Cursor operations fail with exactly one of these four outcomes. They are
// recoverable results the caller maps to its own conventions (the PHP
// built-ins surface every one of them as a false-like value), never panics.
// Lookup and erase do not appear here: absence is a boolean or a no-op,
// not an error.
var (
	// ErrEmpty is returned by every cursor operation while the container
	// holds no entries.
	ErrEmpty = errors.New("array is empty")

	// ErrNoCursor is returned when an operation needs an established cursor
	// position and none has been set.
	ErrNoCursor = errors.New("no cursor position established")

	// ErrEndOfData is returned when the cursor sits on, or would land on, a
	// position past the last entry.
	ErrEndOfData = errors.New("cursor is past the last entry")

	// ErrBeginningOfData is returned by Prev when the cursor already sits on
	// the first entry.
	ErrBeginningOfData = errors.New("cursor is at the first entry")
)
