// Package engine implements the incremental rewrite core: a deduplicating
// tuple store, selective rule activation, a worklist-driven fixpoint
// cascade, retroactive watches, one-shot queries and a transaction layer.
//
// An Engine is single-threaded and cooperative: Add runs its cascade to
// completion before returning, productions run synchronously inside it, and
// one logical writer owns the instance. Collaborators that need concurrent
// access serialize it themselves.
package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/quadmill/quadmill/quads"
	"github.com/quadmill/quadmill/quads/events"
	"github.com/quadmill/quadmill/quads/pattern"
	"github.com/quadmill/quadmill/quads/store"
)

// ErrCascadeLimit aborts a cascade that exceeds the configured step budget
var ErrCascadeLimit = errors.New("cascade step limit exceeded")

// Engine owns a tuple store and the rules watching it
type Engine struct {
	store   *store.Set
	rules   *ruleIndex
	tuples  *tupleIndex
	arena   *arena
	watched []*Rule

	worklist  []quads.Tuple
	cascading bool
	nextSeq   int

	handler  events.Handler
	maxSteps int
}

// Option configures an Engine
type Option func(*Engine)

// WithHandler wires an event handler into the engine
func WithHandler(h events.Handler) Option {
	return func(e *Engine) { e.handler = h }
}

// WithMaxSteps bounds the number of worklist steps a single cascade may
// take; 0 means unbounded. A safety valve against rule sets that keep
// deriving novel tuples
func WithMaxSteps(n int) Option {
	return func(e *Engine) { e.maxSteps = n }
}

// New creates an empty engine
func New(opts ...Option) *Engine {
	e := &Engine{
		store: store.NewSet(),
		rules: newRuleIndex(),
		arena: &arena{},
	}
	e.tuples = newTupleIndex(e.store)
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Len returns the number of stored tuples
func (e *Engine) Len() int {
	return e.store.Len()
}

// Has reports whether t is stored
func (e *Engine) Has(t quads.Tuple) bool {
	return e.store.Has(t)
}

// Tuples returns a snapshot of the store in insertion order
func (e *Engine) Tuples() []quads.Tuple {
	return e.store.Tuples()
}

// Rules returns the currently watched rules in registration order
func (e *Engine) Rules() []*Rule {
	out := make([]*Rule, len(e.watched))
	copy(out, e.watched)
	return out
}

// PendingMatches reports how many partial matches are in flight
func (e *Engine) PendingMatches() int {
	return e.arena.len()
}

// Add inserts t and runs the rewrite cascade to fixpoint: every firing
// feeds its outputs back through the same worklist until nothing new
// derives. Re-entrant calls from productions enqueue onto the live
// worklist and return immediately. A production error aborts the remaining
// work; effects committed so far stay
func (e *Engine) Add(t quads.Tuple) error {
	if err := t.Validate(); err != nil {
		return err
	}
	e.worklist = append(e.worklist, t)
	if e.cascading {
		return nil
	}
	return e.cascade()
}

// cascade drains the worklist to fixpoint
func (e *Engine) cascade() error {
	e.cascading = true
	start := time.Now()
	defer func() {
		e.cascading = false
		e.worklist = e.worklist[:0]
	}()

	e.emit(events.CascadeBegin, map[string]interface{}{
		"tuple": e.worklist[0].String(),
	})

	steps := 0
	added := 0
	for len(e.worklist) > 0 {
		next := e.worklist[0]
		e.worklist = e.worklist[1:]

		if e.maxSteps > 0 && steps >= e.maxSteps {
			return fmt.Errorf("%w after %d steps", ErrCascadeLimit, steps)
		}
		steps++

		// A tuple already stored is a true no-op: no matching runs
		if !e.store.Add(next) {
			e.emit(events.TupleDeduped, map[string]interface{}{"tuple": next.String()})
			continue
		}
		e.tuples.index(next)
		added++
		e.emit(events.TupleAdded, map[string]interface{}{"tuple": next.String()})

		if err := e.offer(next, nil); err != nil {
			return err
		}
	}

	e.emitTiming(events.CascadeComplete, start, map[string]interface{}{
		"steps":        steps,
		"tuples.added": added,
	})
	return nil
}

// offer runs the two matching steps for a freshly stored tuple: first
// extend the in-flight partial matches, then seed new ones from candidate
// rules. only, when non-nil, restricts both steps to a single rule
// (retroactive watch evaluation)
func (e *Engine) offer(t quads.Tuple, only *Rule) error {
	limit := e.arena.beginIter()
	defer e.arena.endIter()

	for idx := 0; idx < limit; idx++ {
		ent := e.arena.entries[idx]
		if !ent.live || !ent.rule.active {
			continue
		}
		if only != nil && ent.rule != only {
			continue
		}
		if !ent.match.TryExtend(t) {
			continue
		}
		// Any state change re-checks the negative guards immediately
		if ent.match.NACViolated(e.tuples) {
			e.arena.release(idx)
			e.emit(events.MatchDiscarded, map[string]interface{}{
				"rule":  ent.rule.name,
				"match": ent.match.String(),
			})
			continue
		}
		if ent.match.Complete() {
			e.arena.release(idx)
			if err := e.fire(ent.rule, ent.match); err != nil {
				return err
			}
		}
	}

	var cands []*Rule
	if only != nil {
		cands = []*Rule{only}
	} else {
		cands = e.rules.candidates(t)
	}
	for _, r := range cands {
		if !r.active {
			continue
		}
		m := r.pattern.Match(t)
		if m == nil {
			continue
		}
		if m.NACViolated(e.tuples) {
			e.emit(events.MatchDiscarded, map[string]interface{}{
				"rule":  r.name,
				"match": m.String(),
			})
			continue
		}
		if m.Complete() {
			if err := e.fire(r, m); err != nil {
				return err
			}
			continue
		}
		e.arena.add(m, r)
		e.emit(events.MatchOpened, map[string]interface{}{
			"rule":  r.name,
			"match": m.String(),
		})
	}
	return nil
}

// fire runs a completed match's production and enqueues its output
func (e *Engine) fire(r *Rule, m *pattern.Match) error {
	start := time.Now()
	out, err := r.produce(m)
	if err != nil {
		e.emit(events.ErrorProduction, map[string]interface{}{
			"rule":  r.name,
			"error": err.Error(),
		})
		return fmt.Errorf("rule %s: %w", r.name, err)
	}
	// Productions can hand back hand-built literals; a slot that never went
	// through a constructor must not reach the store
	for _, o := range out {
		if verr := o.Validate(); verr != nil {
			e.emit(events.ErrorProduction, map[string]interface{}{
				"rule":  r.name,
				"error": verr.Error(),
			})
			return fmt.Errorf("rule %s produced invalid tuple: %w", r.name, verr)
		}
	}
	e.emitTiming(events.RuleFired, start, map[string]interface{}{
		"rule":     r.name,
		"bindings": m.Bindings().String(),
		"produced": len(out),
	})
	e.worklist = append(e.worklist, out...)
	return nil
}

// Watch registers a rule and evaluates it retroactively: every stored
// tuple is offered to it in insertion order as if it had just arrived.
// Partial matches join the live working set, completed matches fire, and
// their outputs cascade. The returned Unwatch is idempotent: it de-indexes
// the rule and discards its pending partial matches, leaving fired effects
// in place
func (e *Engine) Watch(p *pattern.Pattern, produce Production) (Unwatch, error) {
	return e.WatchNamed(fmt.Sprintf("rule-%d", e.nextSeq), p, produce)
}

// WatchNamed is Watch with a caller-chosen rule name for events and errors
func (e *Engine) WatchNamed(name string, p *pattern.Pattern, produce Production) (Unwatch, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("watch %s: %w", name, err)
	}
	if produce == nil {
		return nil, fmt.Errorf("watch %s: nil production", name)
	}

	r := &Rule{name: name, seq: e.nextSeq, pattern: p, produce: produce, active: true}
	e.nextSeq++
	e.rules.index(r)
	e.watched = append(e.watched, r)
	e.emit(events.RuleWatched, map[string]interface{}{
		"rule":    name,
		"pattern": p.String(),
	})

	unwatch := func() {
		if !r.active {
			return
		}
		r.active = false
		e.rules.unindex(r)
		e.arena.releaseRule(r)
		for i, x := range e.watched {
			if x == r {
				e.watched = append(e.watched[:i], e.watched[i+1:]...)
				break
			}
		}
		e.emit(events.RuleUnwatched, map[string]interface{}{"rule": r.name})
	}

	// Retroactive evaluation against a snapshot of the current contents.
	// Firings enqueue; re-entrant adds from productions do too. The drain
	// happens here unless an enclosing cascade owns the worklist
	outer := e.cascading
	e.cascading = true
	var scanErr error
	for _, t := range e.store.Tuples() {
		if err := e.offer(t, r); err != nil {
			scanErr = err
			break
		}
	}
	e.cascading = outer

	if scanErr != nil {
		// The rule stays watched; the caller decides whether to unwatch
		if !outer {
			e.worklist = e.worklist[:0]
		}
		return unwatch, scanErr
	}
	if !outer && len(e.worklist) > 0 {
		return unwatch, e.cascade()
	}
	return unwatch, nil
}

// Query evaluates a pattern against the current contents exactly once: the
// same seed, extend and guard logic as a watched rule, but over a scratch
// working set with nothing registered and nothing fired
func (e *Engine) Query(p *pattern.Pattern) ([]*pattern.Match, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()
	e.emit(events.QueryInvoked, map[string]interface{}{"pattern": p.String()})

	var complete []*pattern.Match
	var open []*pattern.Match
	for _, t := range e.store.Tuples() {
		for i := 0; i < len(open); i++ {
			m := open[i]
			if !m.TryExtend(t) {
				continue
			}
			if m.NACViolated(e.tuples) {
				open = append(open[:i], open[i+1:]...)
				i--
				continue
			}
			if m.Complete() {
				open = append(open[:i], open[i+1:]...)
				i--
				complete = append(complete, m)
			}
		}
		if m := p.Match(t); m != nil {
			if m.NACViolated(e.tuples) {
				continue
			}
			if m.Complete() {
				complete = append(complete, m)
			} else {
				open = append(open, m)
			}
		}
	}

	e.emitTiming(events.QueryComplete, start, map[string]interface{}{
		"matches": len(complete),
	})
	return complete, nil
}

// Remove deletes t from the store and indexes. Structural only: no cascade
// runs, no matches are revisited, fired effects stay. Logical deletion
// visible to rules goes through the tombstone convention instead
func (e *Engine) Remove(t quads.Tuple) bool {
	if !e.store.Remove(t) {
		return false
	}
	e.tuples.unindex(t)
	e.emit(events.TupleRemoved, map[string]interface{}{"tuple": t.String()})
	return true
}

// emit sends an instantaneous event if a handler is wired
func (e *Engine) emit(name string, data map[string]interface{}) {
	if e.handler == nil {
		return
	}
	now := time.Now()
	e.handler(events.Event{Name: name, Start: now, End: now, Data: data})
}

// emitTiming sends an event spanning start to now
func (e *Engine) emitTiming(name string, start time.Time, data map[string]interface{}) {
	if e.handler == nil {
		return
	}
	end := time.Now()
	e.handler(events.Event{
		Name:    name,
		Start:   start,
		End:     end,
		Latency: end.Sub(start),
		Data:    data,
	})
}
