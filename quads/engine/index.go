package engine

import (
	"sort"

	"github.com/quadmill/quadmill/quads"
	"github.com/quadmill/quadmill/quads/pattern"
	"github.com/quadmill/quadmill/quads/store"
)

// ruleIndex routes arriving tuples to the rules they could advance: four
// inverted maps, one per slot, from constant value to rules, plus an always
// set for rules carrying a template with no constant slot
type ruleIndex struct {
	bySlot [quads.NumSlots]map[quads.Value][]*Rule
	always []*Rule
}

func newRuleIndex() *ruleIndex {
	ri := &ruleIndex{}
	for i := range ri.bySlot {
		ri.bySlot[i] = make(map[quads.Value][]*Rule)
	}
	return ri
}

// index registers r under every constant slot of every positive template.
// The always-set decision is per template: a tuple advancing a
// constant-free template carries none of the rule's indexed constants, so
// one such template anywhere makes the rule a candidate for every arrival
func (ri *ruleIndex) index(r *Rule) {
	always := false
	for _, tm := range r.pattern.Templates {
		indexed := false
		for i := 0; i < quads.NumSlots; i++ {
			if c, ok := tm.Slot(i).(pattern.Constant); ok {
				ri.bySlot[i][c.Value] = append(ri.bySlot[i][c.Value], r)
				indexed = true
			}
		}
		if !indexed {
			always = true
		}
	}
	if always {
		ri.always = append(ri.always, r)
	}
}

// unindex removes r from every posting it was registered under
func (ri *ruleIndex) unindex(r *Rule) {
	for _, tm := range r.pattern.Templates {
		for i := 0; i < quads.NumSlots; i++ {
			c, ok := tm.Slot(i).(pattern.Constant)
			if !ok {
				continue
			}
			rules := removeRule(ri.bySlot[i][c.Value], r)
			if len(rules) == 0 {
				delete(ri.bySlot[i], c.Value)
			} else {
				ri.bySlot[i][c.Value] = rules
			}
		}
	}
	ri.always = removeRule(ri.always, r)
}

// candidates returns every rule an arriving tuple could advance, in
// registration order. A necessary superset: real unification happens in the
// pattern match
func (ri *ruleIndex) candidates(t quads.Tuple) []*Rule {
	seen := make(map[*Rule]bool)
	var out []*Rule
	collect := func(rules []*Rule) {
		for _, r := range rules {
			if !seen[r] {
				seen[r] = true
				out = append(out, r)
			}
		}
	}
	for i := 0; i < quads.NumSlots; i++ {
		collect(ri.bySlot[i][t.Slot(i)])
	}
	collect(ri.always)

	sort.Slice(out, func(a, b int) bool { return out[a].seq < out[b].seq })
	return out
}

// removeRule filters every occurrence of r out of rules in place
func removeRule(rules []*Rule, r *Rule) []*Rule {
	out := rules[:0]
	for _, x := range rules {
		if x != r {
			out = append(out, x)
		}
	}
	return out
}

// tupleIndex maintains four inverted maps from slot value to the stored
// tuples carrying it in that slot. It serves candidate lookups for
// negative-guard checks
type tupleIndex struct {
	bySlot [quads.NumSlots]map[quads.Value]*store.Set
	all    *store.Set
}

func newTupleIndex(all *store.Set) *tupleIndex {
	ti := &tupleIndex{all: all}
	for i := range ti.bySlot {
		ti.bySlot[i] = make(map[quads.Value]*store.Set)
	}
	return ti
}

func (ti *tupleIndex) index(t quads.Tuple) {
	for i := 0; i < quads.NumSlots; i++ {
		v := t.Slot(i)
		set := ti.bySlot[i][v]
		if set == nil {
			set = store.NewSet()
			ti.bySlot[i][v] = set
		}
		set.Add(t)
	}
}

func (ti *tupleIndex) unindex(t quads.Tuple) {
	for i := 0; i < quads.NumSlots; i++ {
		v := t.Slot(i)
		if set := ti.bySlot[i][v]; set != nil {
			set.Remove(t)
			if set.Len() == 0 {
				delete(ti.bySlot[i], v)
			}
		}
	}
}

// Candidates implements pattern.CandidateSource. Constant and bound
// variable slots resolve to concrete values; the resolved per-slot sets are
// intersected smallest-first. With nothing resolvable the whole store is
// the candidate set
func (ti *tupleIndex) Candidates(tm pattern.Template, b pattern.Bindings) []quads.Tuple {
	var sets []*store.Set
	for i := 0; i < quads.NumSlots; i++ {
		v, ok := resolveSlot(tm.Slot(i), b)
		if !ok {
			continue
		}
		set := ti.bySlot[i][v]
		if set == nil {
			// A demanded value no stored tuple carries: nothing can match
			return nil
		}
		sets = append(sets, set)
	}
	if len(sets) == 0 {
		return ti.all.Tuples()
	}

	sort.Slice(sets, func(a, b int) bool { return sets[a].Len() < sets[b].Len() })
	result := sets[0]
	for _, s := range sets[1:] {
		result = result.Intersect(s)
		if result.Len() == 0 {
			break
		}
	}
	return result.Tuples()
}

// resolveSlot yields the concrete value a slot demands, if it demands one
func resolveSlot(s pattern.Slot, b pattern.Bindings) (quads.Value, bool) {
	switch s := s.(type) {
	case pattern.Constant:
		return s.Value, true
	case pattern.Variable:
		v, ok := b[s.Name]
		return v, ok
	default:
		return quads.Value{}, false
	}
}
