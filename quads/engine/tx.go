package engine

import (
	"errors"
	"time"

	"github.com/quadmill/quadmill/quads"
	"github.com/quadmill/quadmill/quads/events"
	"github.com/quadmill/quadmill/quads/store"
)

// ErrTxDone is returned when a finished transaction is applied again
var ErrTxDone = errors.New("transaction already finished")

// Tx batches additions and removals without touching the engine until
// Apply. Opposing operations cancel out while recording. Apply feeds the
// recorded additions through the cascading Add in order, then the removals
// through Remove; Discard drops the batch untouched.
//
// Atomicity covers visibility of the batch, not its consequences: if a
// production fails midway through Apply, earlier additions and their
// cascade effects stay
type Tx struct {
	eng  *Engine
	diff *store.Diff
	done bool
}

// Tx opens a transaction against the engine
func (e *Engine) Tx() *Tx {
	return &Tx{eng: e, diff: store.NewDiff(e.store)}
}

// Add records a pending insertion
func (tx *Tx) Add(t quads.Tuple) error {
	if tx.done {
		return ErrTxDone
	}
	tx.diff.Add(t)
	return nil
}

// Remove records a pending deletion
func (tx *Tx) Remove(t quads.Tuple) error {
	if tx.done {
		return ErrTxDone
	}
	tx.diff.Remove(t)
	return nil
}

// Has answers membership as if the batch were applied
func (tx *Tx) Has(t quads.Tuple) bool {
	return tx.diff.Has(t)
}

// Pending reports how many operations the batch currently records
func (tx *Tx) Pending() (additions, removals int) {
	return len(tx.diff.Additions()), len(tx.diff.Removals())
}

// Apply commits the batch. The transaction is spent afterward, error or not
func (tx *Tx) Apply() error {
	if tx.done {
		return ErrTxDone
	}
	tx.done = true

	start := time.Now()
	adds := tx.diff.Additions()
	rems := tx.diff.Removals()
	tx.diff.Discard()

	for _, t := range adds {
		if err := tx.eng.Add(t); err != nil {
			return err
		}
	}
	for _, t := range rems {
		tx.eng.Remove(t)
	}

	tx.eng.emitTiming(events.TxApplied, start, map[string]interface{}{
		"additions": len(adds),
		"removals":  len(rems),
	})
	return nil
}

// Discard drops the batch without touching the engine
func (tx *Tx) Discard() {
	if tx.done {
		return
	}
	tx.done = true

	tx.eng.emit(events.TxDiscarded, map[string]interface{}{
		"additions": len(tx.diff.Additions()),
		"removals":  len(tx.diff.Removals()),
	})
	tx.diff.Discard()
}
