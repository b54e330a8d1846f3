package engine

import (
	"github.com/quadmill/quadmill/quads"
	"github.com/quadmill/quadmill/quads/pattern"
)

// Production computes a completed match's output tuples. Productions run
// synchronously inside the cascade and must not block; returned tuples are
// enqueued behind the current worklist. An error aborts the cascade with
// effects committed so far retained
type Production func(m *pattern.Match) ([]quads.Tuple, error)

// Unwatch de-registers a watched rule. Idempotent. Pending partial matches
// are discarded; effects already fired stay
type Unwatch func()

// Rule pairs a pattern with its production. Rules are created by Watch and
// owned by the engine
type Rule struct {
	name    string
	seq     int
	pattern *pattern.Pattern
	produce Production
	active  bool
}

// Name returns the rule's display name
func (r *Rule) Name() string { return r.name }

// Pattern returns the watched pattern
func (r *Rule) Pattern() *pattern.Pattern { return r.pattern }

// Active reports whether the rule is still watched
func (r *Rule) Active() bool { return r.active }
