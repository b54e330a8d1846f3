// Package store provides the deduplicating tuple set the rewrite engine is
// built on, plus a speculative diff layer for batched mutation.
package store

import (
	"github.com/quadmill/quadmill/quads"
)

// node is one entry in the insertion-order list
type node struct {
	tuple      quads.Tuple
	prev, next *node
}

// Set is a deduplicating collection of tuples with O(1) add, remove and
// membership. Enumeration follows insertion order, which keeps cascades and
// replays deterministic.
// Structural tuple identity does the dedup work: the map key IS the fact
type Set struct {
	items map[quads.Tuple]*node
	head  *node
	tail  *node
}

// NewSet creates an empty set
func NewSet() *Set {
	return &Set{items: make(map[quads.Tuple]*node)}
}

// Add inserts t, reporting whether it was newly added
func (s *Set) Add(t quads.Tuple) bool {
	if _, ok := s.items[t]; ok {
		return false
	}
	n := &node{tuple: t, prev: s.tail}
	if s.tail != nil {
		s.tail.next = n
	} else {
		s.head = n
	}
	s.tail = n
	s.items[t] = n
	return true
}

// Remove deletes t, reporting whether it was present
func (s *Set) Remove(t quads.Tuple) bool {
	n, ok := s.items[t]
	if !ok {
		return false
	}
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		s.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		s.tail = n.prev
	}
	delete(s.items, t)
	return true
}

// Has reports membership
func (s *Set) Has(t quads.Tuple) bool {
	_, ok := s.items[t]
	return ok
}

// Len returns the number of tuples
func (s *Set) Len() int {
	return len(s.items)
}

// Each calls fn for every tuple in insertion order until fn returns false.
// The set must not be mutated during iteration; take Tuples for that
func (s *Set) Each(fn func(quads.Tuple) bool) {
	for n := s.head; n != nil; n = n.next {
		if !fn(n.tuple) {
			return
		}
	}
}

// Tuples returns a snapshot slice in insertion order
func (s *Set) Tuples() []quads.Tuple {
	out := make([]quads.Tuple, 0, len(s.items))
	for n := s.head; n != nil; n = n.next {
		out = append(out, n.tuple)
	}
	return out
}

// Clone returns an independent copy preserving insertion order
func (s *Set) Clone() *Set {
	c := NewSet()
	for n := s.head; n != nil; n = n.next {
		c.Add(n.tuple)
	}
	return c
}

// Union returns a new set holding every tuple from s and o, s's first
func (s *Set) Union(o *Set) *Set {
	u := s.Clone()
	for n := o.head; n != nil; n = n.next {
		u.Add(n.tuple)
	}
	return u
}

// Difference returns a new set holding s's tuples that are absent from o
func (s *Set) Difference(o *Set) *Set {
	d := NewSet()
	for n := s.head; n != nil; n = n.next {
		if !o.Has(n.tuple) {
			d.Add(n.tuple)
		}
	}
	return d
}

// Intersect returns a new set holding the tuples present in both, in s's
// insertion order
func (s *Set) Intersect(o *Set) *Set {
	i := NewSet()
	for n := s.head; n != nil; n = n.next {
		if o.Has(n.tuple) {
			i.Add(n.tuple)
		}
	}
	return i
}
