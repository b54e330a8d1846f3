package store

import (
	"github.com/quadmill/quadmill/quads"
)

// Diff records speculative additions and removals against a base set without
// mutating it. Opposing pending operations cancel out: adding a tuple that
// is pending removal clears the removal instead of stacking both, and vice
// versa. Apply commits everything structurally; Discard drops everything
type Diff struct {
	base      *Set
	additions *Set
	removals  *Set
}

// NewDiff creates an empty diff over base
func NewDiff(base *Set) *Diff {
	return &Diff{base: base, additions: NewSet(), removals: NewSet()}
}

// Add records a pending insertion. Tuples already visible are not recorded
// twice
func (d *Diff) Add(t quads.Tuple) {
	if d.removals.Remove(t) {
		return
	}
	if d.base.Has(t) {
		return
	}
	d.additions.Add(t)
}

// Remove records a pending deletion. Removing a tuple the base never held is
// a no-op
func (d *Diff) Remove(t quads.Tuple) {
	if d.additions.Remove(t) {
		return
	}
	if d.base.Has(t) {
		d.removals.Add(t)
	}
}

// Has answers membership as if the diff were already applied
func (d *Diff) Has(t quads.Tuple) bool {
	if d.additions.Has(t) {
		return true
	}
	return d.base.Has(t) && !d.removals.Has(t)
}

// Pending reports whether the diff records any operations
func (d *Diff) Pending() bool {
	return d.additions.Len() > 0 || d.removals.Len() > 0
}

// Additions returns the pending insertions in recorded order
func (d *Diff) Additions() []quads.Tuple {
	return d.additions.Tuples()
}

// Removals returns the pending deletions in recorded order
func (d *Diff) Removals() []quads.Tuple {
	return d.removals.Tuples()
}

// Apply commits additions then removals to the base and resets the diff.
// This is plain structural mutation; cascade-aware application lives in the
// engine's transaction layer
func (d *Diff) Apply() {
	d.additions.Each(func(t quads.Tuple) bool {
		d.base.Add(t)
		return true
	})
	d.removals.Each(func(t quads.Tuple) bool {
		d.base.Remove(t)
		return true
	})
	d.Discard()
}

// Discard drops all pending operations, leaving the base untouched
func (d *Diff) Discard() {
	d.additions = NewSet()
	d.removals = NewSet()
}
