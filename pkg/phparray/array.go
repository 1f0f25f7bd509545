// Package phparray implements the ordered key-value container that backs
// every composite value in the runtime: a PHP array. The container is three
// things at once: an insertion-ordered map from mixed integer/string keys to
// values, an auto-indexing list when used positionally, and a stateful
// iterator with a single internal cursor that travels with the value.
//
// The container is a plain, non-concurrent value type. It takes no locks,
// starts no goroutines and blocks on nothing; callers that share one across
// goroutines must serialize access themselves. Copy-on-write aliasing
// between variables is the value layer's job, not this package's: mutating
// methods assume they own the container they touch.
package phparray

import "iter"

// Entry is one key-value pair of a container.
type Entry[V any] struct {
	Key   Key
	Value V
}

// Item is one input element for FromItems: either a pair carrying an
// explicit key, or a bare value that receives the next automatic key.
type Item[V any] struct {
	Key   Key
	Value V
	Keyed bool
}

// Keyed builds an Item with an explicit key.
func Keyed[V any](k Key, v V) Item[V] { return Item[V]{Key: k, Value: v, Keyed: true} }

// Bare builds an Item that will be stored under the next automatic key.
func Bare[V any](v V) Item[V] { return Item[V]{Value: v} }

// Array is an insertion-ordered map from Key to V with PHP array semantics.
// Iteration order is insertion order, never key order. Storing to an
// existing key replaces its value in place without moving the entry.
// Integer keys and text keys live in one key space; automatic keys are
// handed out from a watermark that only ever moves forward, so erasing the
// highest key does not make its number available again.
//
// An auxiliary index map backs Find and Erase with O(1) lookups. It is an
// internal optimization only: every externally observable behavior is
// defined by the entries slice alone.
//
// Construct with New, FromList or FromItems; the zero value is not usable.
type Array[V any] struct {
	entries     []Entry[V]
	index       map[Key]int
	nextAutoKey int64
	cursor      int // 0 = unset, otherwise 1-based position in entries
}

// New returns an empty container: no entries, automatic keys starting at 0,
// cursor unset.
func New[V any]() *Array[V] {
	return &Array[V]{index: make(map[Key]int)}
}

// FromList builds a container from bare values, assigning automatic integer
// keys 0..len(values)-1 in order.
func FromList[V any](values []V) *Array[V] {
	a := New[V]()
	for _, v := range values {
		a.Append(v)
	}
	return a
}

// FromItems builds a container by inserting each item in order. Bare items
// go through Append. Keyed items keep their key exactly as given and never
// advance the automatic key watermark, no matter how large an integer key
// they plant. Only the append-like paths move the watermark, so a keyed
// item ahead of the watermark followed by enough bare items produces a
// duplicated integer key; that asymmetry is part of the contract and is
// reproduced here, not repaired.
func FromItems[V any](items []Item[V]) *Array[V] {
	a := New[V]()
	for _, it := range items {
		if it.Keyed {
			a.storeKeep(it.Key, it.Value)
		} else {
			a.Append(it.Value)
		}
	}
	return a
}

// Len returns the number of entries.
func (a *Array[V]) Len() int { return len(a.entries) }

// NextAutoKey returns the current automatic key watermark: the integer key
// the next Append will hand out. It never decreases over the container's
// lifetime.
func (a *Array[V]) NextAutoKey() int64 { return a.nextAutoKey }

// Find returns the value stored under k. The boolean reports presence;
// absence is never an error.
func (a *Array[V]) Find(k Key) (V, bool) {
	if pos, ok := a.index[k]; ok {
		return a.entries[pos].Value, true
	}
	var zero V
	return zero, false
}

// FindOrDefault returns the value stored under k, or def when k is absent.
func (a *Array[V]) FindOrDefault(k Key, def V) V {
	if v, ok := a.Find(k); ok {
		return v
	}
	return def
}

// Has reports whether k is present.
func (a *Array[V]) Has(k Key) bool {
	_, ok := a.index[k]
	return ok
}

// Append stores v under the next automatic integer key, advances the
// watermark, and returns the key it assigned. Append always creates a fresh
// entry at the end; automatic keys never replace, even when FromItems
// planted the same integer key ahead of the watermark.
func (a *Array[V]) Append(v V) Key {
	k := Key{kind: KindInt, num: a.nextAutoKey}
	a.rawAppend(k, v)
	a.nextAutoKey++
	return k
}

// Store writes v under k, applying the store cases in priority order. An
// integer key at or beyond the automatic key watermark appends a fresh
// entry and ratchets the watermark to k+1; gaps this leaves in the integer
// key sequence are legal and preserved. Every other key replaces in place
// when present (the entry keeps its position) and appends when absent,
// leaving the watermark untouched.
func (a *Array[V]) Store(k Key, v V) {
	if k.kind == KindInt && k.num >= a.nextAutoKey {
		a.rawAppend(k, v)
		a.nextAutoKey = k.num + 1
		return
	}
	a.storeKeep(k, v)
}

// storeKeep is the watermark-neutral store path: replace in place when the
// key exists, append when it does not.
func (a *Array[V]) storeKeep(k Key, v V) {
	if pos, ok := a.index[k]; ok {
		a.entries[pos].Value = v
		return
	}
	a.rawAppend(k, v)
}

// rawAppend appends an entry without watermark bookkeeping. The index keeps
// the first occurrence of a key so that indexed lookups agree with a linear
// scan when duplicates exist.
func (a *Array[V]) rawAppend(k Key, v V) {
	a.entries = append(a.entries, Entry[V]{Key: k, Value: v})
	if _, exists := a.index[k]; !exists {
		a.index[k] = len(a.entries) - 1
	}
}

// Erase removes the entry stored under k. Erasing an absent key is a no-op,
// not an error. The automatic key watermark never moves backwards, and the
// cursor stays exactly where it was, even when the removal leaves it
// pointing at a shifted entry or past the new end; SetCursor is the
// caller's tool for resetting it.
func (a *Array[V]) Erase(k Key) {
	pos, ok := a.index[k]
	if !ok {
		return
	}
	a.entries = append(a.entries[:pos], a.entries[pos+1:]...)
	a.reindex()
}

// reindex rebuilds the key index from the entries slice, first occurrence
// winning.
func (a *Array[V]) reindex() {
	clear(a.index)
	for i, e := range a.entries {
		if _, exists := a.index[e.Key]; !exists {
			a.index[e.Key] = i
		}
	}
}

// PopLast removes and returns the newest entry. Unlike Erase, popping the
// entry that holds the top integer key steps the automatic key watermark
// back by one, so a later Append reuses that key. The cursor lands on the
// first remaining entry.
func (a *Array[V]) PopLast() (Entry[V], bool) {
	if len(a.entries) == 0 {
		return Entry[V]{}, false
	}

	e := a.entries[len(a.entries)-1]
	a.entries = a.entries[:len(a.entries)-1]
	a.reindex()

	// Only the key the watermark would hand out next frees it; a key
	// planted beyond the watermark by FromItems must not drag it negative.
	if e.Key.kind == KindInt && e.Key.num == a.nextAutoKey-1 {
		a.nextAutoKey--
	}
	if len(a.entries) > 0 {
		a.cursor = 1
	} else {
		a.cursor = 0
	}
	return e, true
}

// Map applies fn to every entry in iteration order and collects the results
// into a new container. fn may return any key, including one it already
// returned earlier in the walk: no deduplication is performed, so a
// non-key-preserving fn hands back a container that violates the unique-key
// invariant. Such a container still behaves like its linear scan (the first
// occurrence of a key wins lookups), but keeping keys unique is the
// caller's contract. The result has an unset cursor and a watermark rebuilt
// from the integer keys as they are appended.
func (a *Array[V]) Map(fn func(Key, V) (Key, V)) *Array[V] {
	b := New[V]()
	b.entries = make([]Entry[V], 0, len(a.entries))
	for _, e := range a.entries {
		k, v := fn(e.Key, e.Value)
		b.rawAppend(k, v)
		if k.kind == KindInt && k.num >= b.nextAutoKey {
			b.nextAutoKey = k.num + 1
		}
	}
	return b
}

// Transform replaces every entry's value with fn(key, value) in place.
// Keys, order, the automatic key watermark and the cursor are untouched.
func (a *Array[V]) Transform(fn func(Key, V) V) {
	for i := range a.entries {
		a.entries[i].Value = fn(a.entries[i].Key, a.entries[i].Value)
	}
}

// Fold reduces the container left to right in iteration order.
func Fold[V, A any](a *Array[V], fn func(Key, V, A) A, acc A) A {
	for _, e := range a.entries {
		acc = fn(e.Key, e.Value, acc)
	}
	return acc
}

// ToList returns the entries as a fresh slice in iteration order. Mutating
// the slice does not touch the container.
func (a *Array[V]) ToList() []Entry[V] {
	out := make([]Entry[V], len(a.entries))
	copy(out, a.entries)
	return out
}

// All ranges over the entries in iteration order. The container must not be
// mutated during the walk.
func (a *Array[V]) All() iter.Seq2[Key, V] {
	return func(yield func(Key, V) bool) {
		for _, e := range a.entries {
			if !yield(e.Key, e.Value) {
				return
			}
		}
	}
}

// Clone returns a structural copy of the container: entries, index,
// automatic key watermark and cursor position. The cursor is part of the
// container value and travels with every copy. Values are copied as-is;
// whatever they share underneath is the caller's concern.
func (a *Array[V]) Clone() *Array[V] {
	b := &Array[V]{
		entries:     make([]Entry[V], len(a.entries)),
		index:       make(map[Key]int, len(a.index)),
		nextAutoKey: a.nextAutoKey,
		cursor:      a.cursor,
	}
	copy(b.entries, a.entries)
	for k, pos := range a.index {
		b.index[k] = pos
	}
	return b
}
