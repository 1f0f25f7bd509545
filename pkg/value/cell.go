package value

import (
	"github.com/danielribes/ephp/pkg/phparray"
)

// Cell is a variable slot. Assignments go through the cell so that array
// payloads are reference counted: storing a value shares it, overwriting or
// unsetting releases the previous payload.
type Cell struct {
	val Value
}

// NewCell returns a slot holding null.
func NewCell() *Cell {
	return &Cell{val: Null}
}

// Load returns the current value without touching its reference count. The
// caller shares it explicitly when storing it somewhere else.
func (c *Cell) Load() Value {
	return c.val
}

// Assign stores a shared reference to v, releasing whatever the cell held.
func (c *Cell) Assign(v Value) {
	old := c.val
	c.val = v.Share()
	old.Release()
}

// Replace stores v taking ownership of it, releasing the previous value.
// Use it for freshly built values that nothing else references yet.
func (c *Cell) Replace(v Value) {
	old := c.val
	c.val = v
	old.Release()
}

// Unset releases the held value and resets the slot to null.
func (c *Cell) Unset() {
	c.val.Release()
	c.val = Null
}

// ArrayForWrite separates the held array for mutation and returns it, or
// nil when the cell does not hold an array.
func (c *Cell) ArrayForWrite() *phparray.Array[Value] {
	if c.val.Tag != TagArray {
		return nil
	}
	return c.val.ArrayForWrite()
}

// Scope is a symbol table mapping variable names to cells. It is backed by
// the same ordered container the values use, so names enumerate in
// definition order.
type Scope struct {
	vars *phparray.Array[*Cell]
}

// NewScope returns an empty symbol table.
func NewScope() *Scope {
	return &Scope{vars: phparray.New[*Cell]()}
}

// Define returns the cell for name, creating an empty one on first use.
func (s *Scope) Define(name string) *Cell {
	key := phparray.TextKey(name)
	if c, ok := s.vars.Find(key); ok {
		return c
	}
	c := NewCell()
	s.vars.Store(key, c)
	return c
}

// Lookup returns the cell for name if it has been defined.
func (s *Scope) Lookup(name string) (*Cell, bool) {
	return s.vars.Find(phparray.TextKey(name))
}

// Bind points name at an existing cell, so both names observe the same
// slot. A previous binding for name is dropped; its payload is released
// only when no other name still reaches the displaced cell.
func (s *Scope) Bind(name string, c *Cell) {
	key := phparray.TextKey(name)
	if old, ok := s.vars.Find(key); ok && old != c {
		orphaned := true
		for k, other := range s.vars.All() {
			if other == old && k != key {
				orphaned = false
				break
			}
		}
		if orphaned {
			old.Unset()
		}
	}
	s.vars.Store(key, c)
}

// Unset releases the named variable and removes it from the table.
func (s *Scope) Unset(name string) {
	key := phparray.TextKey(name)
	if c, ok := s.vars.Find(key); ok {
		c.Unset()
		s.vars.Erase(key)
	}
}

// Has reports whether name is defined and holds a non-null value.
func (s *Scope) Has(name string) bool {
	c, ok := s.vars.Find(phparray.TextKey(name))
	return ok && !c.Load().IsNull()
}

// Names returns the defined variable names in definition order.
func (s *Scope) Names() []string {
	names := make([]string, 0, s.vars.Len())
	for k := range s.vars.All() {
		names = append(names, k.Text())
	}
	return names
}

// Len returns the number of defined variables.
func (s *Scope) Len() int {
	return s.vars.Len()
}

// Clear releases every cell and empties the table.
func (s *Scope) Clear() {
	for _, c := range s.vars.All() {
		c.Unset()
	}
	s.vars = phparray.New[*Cell]()
}
