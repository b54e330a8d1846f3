package pattern

import (
	"strings"

	"github.com/quadmill/quadmill/quads"
)

// Template is the four-slot shape a single tuple must satisfy
type Template struct {
	E Slot
	A Slot
	V Slot
	C Slot
}

// Slot returns the i'th slot in entity, attribute, value, context order
func (tm Template) Slot(i int) Slot {
	switch i {
	case 0:
		return tm.E
	case 1:
		return tm.A
	case 2:
		return tm.V
	default:
		return tm.C
	}
}

// Match attempts to unify t against the template under existing bindings.
// Wildcards always succeed; constants require equality; variables bind when
// unbound and confirm when already bound. On success the returned bindings
// are an extended copy; the input map is never mutated (try, not commit)
func (tm Template) Match(t quads.Tuple, b Bindings) (Bindings, bool) {
	out := b
	extended := false
	for i := 0; i < quads.NumSlots; i++ {
		val := t.Slot(i)
		switch s := tm.Slot(i).(type) {
		case Wildcard:
		case Constant:
			if s.Value != val {
				return nil, false
			}
		case Variable:
			if bound, ok := out[s.Name]; ok {
				if bound != val {
					return nil, false
				}
				continue
			}
			if !extended {
				out = out.Clone()
				extended = true
			}
			out[s.Name] = val
		default:
			return nil, false
		}
	}
	return out, true
}

// Variables returns the variable names referenced, in slot order, without
// duplicates
func (tm Template) Variables() []string {
	var names []string
	seen := make(map[string]bool, quads.NumSlots)
	for i := 0; i < quads.NumSlots; i++ {
		if v, ok := tm.Slot(i).(Variable); ok && !seen[v.Name] {
			seen[v.Name] = true
			names = append(names, v.Name)
		}
	}
	return names
}

// String renders the template as four space-separated tokens
func (tm Template) String() string {
	parts := [quads.NumSlots]string{}
	for i := 0; i < quads.NumSlots; i++ {
		parts[i] = tm.Slot(i).String()
	}
	return strings.Join(parts[:], " ")
}
