package quads

import (
	"fmt"
)

// NumSlots is the arity of a tuple
const NumSlots = 4

// Tuple is the fundamental unit of data: a single fact of the form
// entity-attribute-value-context. Identity is structural; the struct is
// comparable, so a map keyed on Tuple is a set of facts
type Tuple struct {
	E Value // entity
	A Value // attribute
	V Value // value
	C Value // context (which body of facts this belongs to)
}

// NewTuple builds a tuple, rejecting invalid slots
func NewTuple(e, a, v, c Value) (Tuple, error) {
	t := Tuple{E: e, A: a, V: v, C: c}
	if err := t.Validate(); err != nil {
		return Tuple{}, err
	}
	return t, nil
}

// Validate rejects a tuple carrying an unconstructed slot. Tuples built
// through NewTuple always pass; the check guards hand-built literals
// entering the engine
func (t Tuple) Validate() error {
	slots := [NumSlots]struct {
		name string
		val  Value
	}{
		{"entity", t.E},
		{"attribute", t.A},
		{"value", t.V},
		{"context", t.C},
	}
	for _, s := range slots {
		if s.val.IsZero() {
			return fmt.Errorf("tuple %s slot: %w", s.name, ErrInvalidValue)
		}
	}
	return nil
}

// T builds a tuple from constructor-built values, panicking on an invalid
// slot. Use NewTuple for unchecked input
func T(e, a, v, c Value) Tuple {
	t, err := NewTuple(e, a, v, c)
	if err != nil {
		panic(err)
	}
	return t
}

// Slot returns the i'th slot in entity, attribute, value, context order
func (t Tuple) Slot(i int) Value {
	switch i {
	case 0:
		return t.E
	case 1:
		return t.A
	case 2:
		return t.V
	default:
		return t.C
	}
}

// String returns a string representation of the Tuple
func (t Tuple) String() string {
	return fmt.Sprintf("(%s %s %s %s)", t.E, t.A, t.V, t.C)
}

// Compare orders tuples slot-by-slot
func (t Tuple) Compare(o Tuple) int {
	if c := Compare(t.E, o.E); c != 0 {
		return c
	}
	if c := Compare(t.A, o.A); c != 0 {
		return c
	}
	if c := Compare(t.V, o.V); c != 0 {
		return c
	}
	return Compare(t.C, o.C)
}
