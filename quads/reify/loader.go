// Package reify stores rule definitions as ordinary tuples and turns marker
// facts into live rules. A definition is a set of facts in the rule's own
// context:
//
//	(r1 matches "?p type person" @r1)
//	(r1 unless "?p deleted yes" @r1)
//	(r1 produces "?p greeted yes" @r1)
//
// Adding the activation marker (r1 memberOf rule @system) installs the rule;
// adding the tombstone (r1 memberOf rule @tombstone) uninstalls it. The rule
// set is thereby queryable and insertable data in the same store it operates
// over.
package reify

import (
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/quadmill/quadmill/quads"
	"github.com/quadmill/quadmill/quads/engine"
	"github.com/quadmill/quadmill/quads/events"
	"github.com/quadmill/quadmill/quads/parser"
	"github.com/quadmill/quadmill/quads/pattern"
)

// Definition vocabulary. Symbols normalize, so callers may spell these in any
// case.
var (
	attrMemberOf = quads.Sym("memberOf")
	attrMatches  = quads.Sym("matches")
	attrUnless   = quads.Sym("unless")
	attrProduces = quads.Sym("produces")
	attrError    = quads.Sym("error")
	symRule      = quads.Sym("rule")
	ctxSystem    = quads.Sym("system")
	ctxTombstone = quads.Sym("tombstone")
)

// Loader owns the two standing meta-rules and the unwatch handles of the
// rules they installed. It shares the engine's single-writer discipline:
// callers serialize Loader calls with engine calls.
type Loader struct {
	eng     *engine.Engine
	log     *zap.Logger
	handler events.Handler

	active     map[quads.Value]engine.Unwatch
	activate   engine.Unwatch
	deactivate engine.Unwatch
}

// Option configures a Loader.
type Option func(*Loader)

// WithHandler wires loader events (rule activation, definition errors) to h.
// Pass the same handler the engine uses to get one merged stream.
func WithHandler(h events.Handler) Option {
	return func(l *Loader) { l.handler = h }
}

// Install registers the activation and deactivation meta-rules. Marker facts
// already in the store take effect immediately, activation before
// deactivation, so a store carrying both a marker and its tombstone settles
// with the rule inactive. A nil logger disables logging.
func Install(eng *engine.Engine, log *zap.Logger, opts ...Option) (*Loader, error) {
	if log == nil {
		log = zap.NewNop()
	}
	l := &Loader{
		eng:    eng,
		log:    log,
		active: make(map[quads.Value]engine.Unwatch),
	}
	for _, opt := range opts {
		opt(l)
	}

	activation := pattern.New(pattern.Template{
		E: pattern.Variable{Name: "rule"},
		A: pattern.Constant{Value: attrMemberOf},
		V: pattern.Constant{Value: symRule},
		C: pattern.Constant{Value: ctxSystem},
	})
	unwatch, err := eng.WatchNamed("reify/activate", activation, l.onActivate)
	if err != nil {
		return nil, fmt.Errorf("install activation rule: %w", err)
	}
	l.activate = unwatch

	tombstone := pattern.New(pattern.Template{
		E: pattern.Variable{Name: "rule"},
		A: pattern.Constant{Value: attrMemberOf},
		V: pattern.Constant{Value: symRule},
		C: pattern.Constant{Value: ctxTombstone},
	})
	unwatch, err = eng.WatchNamed("reify/deactivate", tombstone, l.onDeactivate)
	if err != nil {
		l.activate()
		return nil, fmt.Errorf("install deactivation rule: %w", err)
	}
	l.deactivate = unwatch

	return l, nil
}

// Active returns the ids of the currently installed reified rules, sorted.
func (l *Loader) Active() []string {
	ids := make([]string, 0, len(l.active))
	for id := range l.active {
		ids = append(ids, id.String())
	}
	sort.Strings(ids)
	return ids
}

// Close uninstalls the meta-rules and every rule the loader activated. The
// definition facts stay in the store.
func (l *Loader) Close() {
	l.activate()
	l.deactivate()
	for id, unwatch := range l.active {
		unwatch()
		delete(l.active, id)
	}
}

// onActivate is the activation meta-rule's production. A definition that
// fails to parse or validate rejects only that rule: the failure is logged
// and reported as a fact (id error <message> @system); the cascade carries
// on.
func (l *Loader) onActivate(m *pattern.Match) ([]quads.Tuple, error) {
	id, _ := m.Binding("rule")
	if _, ok := l.active[id]; ok {
		return nil, nil
	}

	p, produce, err := l.build(id)
	if err == nil {
		var unwatch engine.Unwatch
		unwatch, err = l.eng.WatchNamed(id.String(), p, produce)
		if err != nil && unwatch != nil {
			// Retroactive replay failed; roll the registration back and
			// report like any other bad definition
			unwatch()
		}
		if err == nil {
			l.active[id] = unwatch
			l.log.Info("reified rule activated",
				zap.String("rule", id.String()),
				zap.String("pattern", p.String()))
			l.emit(events.RuleActivated, map[string]interface{}{
				"rule":    id.String(),
				"pattern": p.String(),
			})
			return nil, nil
		}
	}

	l.log.Warn("rule definition rejected",
		zap.String("rule", id.String()),
		zap.Error(err))
	l.emit(events.ErrorRuleDefinition, map[string]interface{}{
		"rule":  id.String(),
		"error": err.Error(),
	})
	return []quads.Tuple{quads.T(id, attrError, quads.Text(err.Error()), ctxSystem)}, nil
}

// onDeactivate is the tombstone meta-rule's production. Unknown or already
// inactive rules are no-ops.
func (l *Loader) onDeactivate(m *pattern.Match) ([]quads.Tuple, error) {
	id, _ := m.Binding("rule")
	unwatch, ok := l.active[id]
	if !ok {
		return nil, nil
	}
	delete(l.active, id)
	unwatch()
	l.log.Info("reified rule deactivated", zap.String("rule", id.String()))
	l.emit(events.RuleDeactivated, map[string]interface{}{"rule": id.String()})
	return nil, nil
}

// build assembles the pattern and production for the rule's definition
// facts, in their insertion order.
func (l *Loader) build(id quads.Value) (*pattern.Pattern, engine.Production, error) {
	matches, err := l.texts(id, attrMatches)
	if err != nil {
		return nil, nil, err
	}
	var tms []pattern.Template
	for _, text := range matches {
		parsed, perr := parser.ParseTemplates(text)
		if perr != nil {
			return nil, nil, fmt.Errorf("matches: %w", perr)
		}
		tms = append(tms, parsed...)
	}
	if len(tms) == 0 {
		return nil, nil, fmt.Errorf("rule %s has no match templates", id)
	}
	p := pattern.New(tms...)

	unless, err := l.texts(id, attrUnless)
	if err != nil {
		return nil, nil, err
	}
	for _, text := range unless {
		parsed, perr := parser.ParseTemplates(text)
		if perr != nil {
			return nil, nil, fmt.Errorf("unless: %w", perr)
		}
		p.Unless(parsed...)
	}

	prodTexts, err := l.texts(id, attrProduces)
	if err != nil {
		return nil, nil, err
	}
	var outs []pattern.Template
	for _, text := range prodTexts {
		parsed, perr := parser.ParseTemplates(text)
		if perr != nil {
			return nil, nil, fmt.Errorf("produces: %w", perr)
		}
		outs = append(outs, parsed...)
	}
	if len(outs) == 0 {
		return nil, nil, fmt.Errorf("rule %s has no production templates", id)
	}
	if err := validateProductions(p, outs); err != nil {
		return nil, nil, err
	}

	produce := func(m *pattern.Match) ([]quads.Tuple, error) {
		out := make([]quads.Tuple, 0, len(outs))
		for _, tm := range outs {
			t, err := instantiate(tm, m)
			if err != nil {
				return nil, err
			}
			out = append(out, t)
		}
		return out, nil
	}
	return p, produce, nil
}

// texts collects the string values of (id attr ?text @id) facts in
// insertion order.
func (l *Loader) texts(id, attr quads.Value) ([]string, error) {
	p := pattern.New(pattern.Template{
		E: pattern.Constant{Value: id},
		A: pattern.Constant{Value: attr},
		V: pattern.Variable{Name: "text"},
		C: pattern.Constant{Value: id},
	})
	ms, err := l.eng.Query(p)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(ms))
	for _, m := range ms {
		v, _ := m.Binding("text")
		s, ok := v.Text()
		if !ok {
			return nil, fmt.Errorf("%s definition on %s is not text: %s", attr, id, v)
		}
		out = append(out, s)
	}
	return out, nil
}

// validateProductions checks that every production slot can be instantiated
// from a completed match: variables must be bound by the match templates,
// and only the context slot may be left open (it falls back to the parser's
// default context).
func validateProductions(p *pattern.Pattern, outs []pattern.Template) error {
	bound := make(map[string]bool)
	for _, name := range p.Variables() {
		bound[name] = true
	}
	for i := range outs {
		for s := 0; s < quads.NumSlots; s++ {
			switch el := outs[i].Slot(s).(type) {
			case pattern.Variable:
				if !bound[el.Name] {
					return fmt.Errorf("production template %d uses unbound variable ?%s", i+1, el.Name)
				}
			case pattern.Wildcard:
				if s != 3 {
					return fmt.Errorf("production template %d has a wildcard slot", i+1)
				}
				outs[i].C = pattern.Constant{Value: parser.DefaultContext}
			}
		}
	}
	return nil
}

// instantiate substitutes the match's bindings into a production template.
func instantiate(tm pattern.Template, m *pattern.Match) (quads.Tuple, error) {
	var vals [quads.NumSlots]quads.Value
	for i := 0; i < quads.NumSlots; i++ {
		switch el := tm.Slot(i).(type) {
		case pattern.Constant:
			vals[i] = el.Value
		case pattern.Variable:
			v, ok := m.Binding(el.Name)
			if !ok {
				return quads.Tuple{}, fmt.Errorf("unbound variable ?%s", el.Name)
			}
			vals[i] = v
		default:
			return quads.Tuple{}, fmt.Errorf("cannot instantiate slot %d", i)
		}
	}
	return quads.NewTuple(vals[0], vals[1], vals[2], vals[3])
}

func (l *Loader) emit(name string, data map[string]interface{}) {
	if l.handler == nil {
		return
	}
	now := time.Now()
	l.handler(events.Event{Name: name, Start: now, End: now, Data: data})
}
