// Package events provides a clean, low-overhead event system for tracking
// engine activity: tuple arrivals, rule firings, cascade progress and match
// lifecycle. The engine carries no logger; collaborators observe it through
// a Handler instead.
package events

import (
	"sync"
	"time"
)

// Event name constants following hierarchical naming pattern
const (
	// Tuple lifecycle
	TupleAdded   = "tuple/added"
	TupleDeduped = "tuple/deduped"
	TupleRemoved = "tuple/removed"

	// Cascade execution
	CascadeBegin    = "cascade/begin"
	CascadeComplete = "cascade/completed"

	// Rule lifecycle
	RuleWatched   = "rule/watched"
	RuleUnwatched = "rule/unwatched"
	RuleFired     = "rule/fired"

	// Partial match lifecycle
	MatchOpened    = "match/opened"
	MatchDiscarded = "match/nac-discarded"

	// One-shot queries
	QueryInvoked  = "query/invoked"
	QueryComplete = "query/completed"

	// Transactions
	TxApplied   = "tx/applied"
	TxDiscarded = "tx/discarded"

	// Reified rules
	RuleActivated   = "reify/rule.activated"
	RuleDeactivated = "reify/rule.deactivated"

	// Errors
	ErrorProduction     = "error/production"
	ErrorRuleDefinition = "error/rule.definition"
)

// Event represents a single engine event.
type Event struct {
	Name    string                 // Event name using hierarchical constants above
	Start   time.Time              // Start timestamp
	End     time.Time              // End timestamp
	Latency time.Duration          // Duration (End - Start)
	Data    map[string]interface{} // Additional event-specific data
}

// Handler processes events as they occur.
type Handler func(event Event)

// Collector accumulates events for later inspection.
type Collector struct {
	enabled bool
	handler Handler
	events  []Event
	mu      sync.Mutex
}

// NewCollector creates a new event collector. A nil handler disables it.
func NewCollector(handler Handler) *Collector {
	return &Collector{
		enabled: handler != nil,
		handler: handler,
		events:  make([]Event, 0, 128),
	}
}

// Handler returns the underlying event handler.
func (c *Collector) Handler() Handler {
	return c.handler
}

// Add records a new event.
// Thread-safe for concurrent access.
func (c *Collector) Add(event Event) {
	if !c.enabled {
		return
	}

	c.mu.Lock()
	c.events = append(c.events, event)
	c.mu.Unlock()

	// Call handler outside the lock to avoid deadlocks
	if c.handler != nil {
		c.handler(event)
	}
}

// AddTiming records an event with timing information.
func (c *Collector) AddTiming(name string, start time.Time, data map[string]interface{}) {
	if !c.enabled {
		return
	}

	end := time.Now()
	c.Add(Event{
		Name:    name,
		Start:   start,
		End:     end,
		Latency: end.Sub(start),
		Data:    data,
	})
}

// Events returns a copy of all collected events.
func (c *Collector) Events() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	eventsCopy := make([]Event, len(c.events))
	copy(eventsCopy, c.events)
	return eventsCopy
}

// Named returns the collected events carrying the given name.
func (c *Collector) Named(name string) []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Event
	for _, e := range c.events {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}

// Reset clears the collector for reuse.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = c.events[:0]
}
