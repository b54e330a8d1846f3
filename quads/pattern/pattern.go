// Package pattern implements the shapes rules match against: templates of
// constant, variable and wildcard slots, patterns grouping templates with
// optional negative guards, and the partial-match lifecycle built on
// monotonic bindings.
package pattern

import (
	"errors"
	"fmt"
	"strings"

	"github.com/quadmill/quadmill/quads"
)

// Pattern is an ordered conjunction of templates, optionally guarded by
// negative templates. A match completes when every positive template has
// been satisfied by a distinct arrival and no negative template is
// satisfiable against the store
type Pattern struct {
	Templates []Template
	Negative  []Template
}

// New creates a pattern from positive templates
func New(templates ...Template) *Pattern {
	return &Pattern{Templates: templates}
}

// Unless appends negative templates and returns the pattern for chaining
func (p *Pattern) Unless(neg ...Template) *Pattern {
	p.Negative = append(p.Negative, neg...)
	return p
}

// Validate checks the pattern is usable: at least one positive template and
// no nil slots
func (p *Pattern) Validate() error {
	if len(p.Templates) == 0 {
		return errors.New("pattern has no templates")
	}
	check := func(kind string, templates []Template) error {
		for ti, tm := range templates {
			for i := 0; i < quads.NumSlots; i++ {
				if tm.Slot(i) == nil {
					return fmt.Errorf("%s template %d has a nil slot", kind, ti)
				}
			}
		}
		return nil
	}
	if err := check("positive", p.Templates); err != nil {
		return err
	}
	return check("negative", p.Negative)
}

// Variables returns every variable name referenced by a positive template,
// in first-appearance order
func (p *Pattern) Variables() []string {
	var names []string
	seen := make(map[string]bool)
	for _, tm := range p.Templates {
		for _, n := range tm.Variables() {
			if !seen[n] {
				seen[n] = true
				names = append(names, n)
			}
		}
	}
	return names
}

// Match seeds a new partial match from the first template t satisfies.
// Returns nil when no template matches
func (p *Pattern) Match(t quads.Tuple) *Match {
	for i, tm := range p.Templates {
		b, ok := tm.Match(t, nil)
		if !ok {
			continue
		}
		m := &Match{
			pattern:  p,
			bindings: b,
			matched:  make([]bool, len(p.Templates)),
			tuples:   make([]quads.Tuple, len(p.Templates)),
		}
		m.matched[i] = true
		m.tuples[i] = t
		m.count = 1
		return m
	}
	return nil
}

// String renders the pattern with templates joined by "; " and negative
// templates prefixed with "!"
func (p *Pattern) String() string {
	parts := make([]string, 0, len(p.Templates)+len(p.Negative))
	for _, tm := range p.Templates {
		parts = append(parts, tm.String())
	}
	for _, tm := range p.Negative {
		parts = append(parts, "!"+tm.String())
	}
	return strings.Join(parts, "; ")
}
