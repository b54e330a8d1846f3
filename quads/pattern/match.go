package pattern

import (
	"fmt"

	"github.com/quadmill/quadmill/quads"
)

// CandidateSource yields tuples that could satisfy a template under the
// given bindings. Sources may over-approximate; the template match is the
// arbiter. The engine's tuple index implements this for negative-guard
// checks
type CandidateSource interface {
	Candidates(tm Template, b Bindings) []quads.Tuple
}

// Match is one in-flight instantiation of a pattern: the bindings
// accumulated so far plus which templates have been satisfied and by what.
// A match is owned by a single pattern, mutable while partial, and dropped
// by its owner the moment it completes or a negative guard invalidates it
type Match struct {
	pattern  *Pattern
	bindings Bindings
	matched  []bool
	tuples   []quads.Tuple
	count    int
}

// Pattern returns the owning pattern
func (m *Match) Pattern() *Pattern {
	return m.pattern
}

// Complete reports whether every positive template has been satisfied
func (m *Match) Complete() bool {
	return m.count == len(m.pattern.Templates)
}

// Progress returns satisfied and total template counts
func (m *Match) Progress() (satisfied, total int) {
	return m.count, len(m.pattern.Templates)
}

// Binding returns the value bound to name
func (m *Match) Binding(name string) (quads.Value, bool) {
	v, ok := m.bindings[name]
	return v, ok
}

// Bindings returns a copy of the current bindings
func (m *Match) Bindings() Bindings {
	return m.bindings.Clone()
}

// Tuples returns a copy of the tuples that satisfied each template, in
// template order. Unsatisfied positions hold the zero Tuple
func (m *Match) Tuples() []quads.Tuple {
	out := make([]quads.Tuple, len(m.tuples))
	copy(out, m.tuples)
	return out
}

// TryExtend offers t to the first not-yet-satisfied template that unifies
// under the current bindings. Bindings only ever grow; a tuple that
// conflicts with an existing binding simply fails to extend. Reports
// whether the match changed state
func (m *Match) TryExtend(t quads.Tuple) bool {
	for i, tm := range m.pattern.Templates {
		if m.matched[i] {
			continue
		}
		b, ok := tm.Match(t, m.bindings)
		if !ok {
			continue
		}
		m.bindings = b
		m.matched[i] = true
		m.tuples[i] = t
		m.count++
		return true
	}
	return false
}

// NACViolated reports whether any negative template matches a tuple from
// src under the current bindings. Owners call this after every state change
// to the match, not only at completion. Bindings made while probing are
// discarded
func (m *Match) NACViolated(src CandidateSource) bool {
	for _, neg := range m.pattern.Negative {
		for _, t := range src.Candidates(neg, m.bindings) {
			if _, ok := neg.Match(t, m.bindings); ok {
				return true
			}
		}
	}
	return false
}

// String summarizes progress and bindings
func (m *Match) String() string {
	return fmt.Sprintf("match %d/%d {%s}", m.count, len(m.pattern.Templates), m.bindings)
}
