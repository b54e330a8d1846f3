package engine

import (
	"github.com/quadmill/quadmill/quads/pattern"
)

// entry pairs an in-flight partial match with the rule that owns it
type entry struct {
	match *pattern.Match
	rule  *Rule
	live  bool
}

// arena holds the engine's in-flight partial matches. Indices are stable:
// releasing an entry tombstones it and recycles the slot through a free
// list, so iteration by index survives releases mid-loop. While an
// iteration is open, slots are not recycled; new entries append past the
// iteration bound instead
type arena struct {
	entries   []entry
	free      []int
	count     int
	iterDepth int
}

// add parks a partial match and returns its index
func (a *arena) add(m *pattern.Match, r *Rule) int {
	a.count++
	if a.iterDepth == 0 {
		if n := len(a.free); n > 0 {
			idx := a.free[n-1]
			a.free = a.free[:n-1]
			a.entries[idx] = entry{match: m, rule: r, live: true}
			return idx
		}
	}
	a.entries = append(a.entries, entry{match: m, rule: r, live: true})
	return len(a.entries) - 1
}

// release tombstones the entry at idx. Releasing a dead slot is a no-op
func (a *arena) release(idx int) {
	if !a.entries[idx].live {
		return
	}
	a.entries[idx] = entry{}
	a.free = append(a.free, idx)
	a.count--
}

// releaseRule drops every live entry owned by r, reporting how many
func (a *arena) releaseRule(r *Rule) int {
	n := 0
	for i := range a.entries {
		if a.entries[i].live && a.entries[i].rule == r {
			a.release(i)
			n++
		}
	}
	return n
}

// len reports the number of live entries
func (a *arena) len() int {
	return a.count
}

// beginIter opens an iteration and returns its exclusive upper bound
func (a *arena) beginIter() int {
	a.iterDepth++
	return len(a.entries)
}

// endIter closes the innermost iteration
func (a *arena) endIter() {
	a.iterDepth--
}
