package store

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/quadmill/quadmill/quads"
)

func TestDiff(t *testing.T) {
	t.Run("AddThenApply", func(t *testing.T) {
		base := NewSet()
		d := NewDiff(base)
		d.Add(fact("a", "n", "1"))

		assert.False(t, base.Has(fact("a", "n", "1")), "base untouched before apply")
		assert.True(t, d.Has(fact("a", "n", "1")), "diff sees pending addition")

		d.Apply()
		assert.True(t, base.Has(fact("a", "n", "1")))
		assert.False(t, d.Pending(), "apply resets the diff")
	})

	t.Run("RemoveThenApply", func(t *testing.T) {
		base := NewSet()
		base.Add(fact("a", "n", "1"))
		d := NewDiff(base)
		d.Remove(fact("a", "n", "1"))

		assert.True(t, base.Has(fact("a", "n", "1")))
		assert.False(t, d.Has(fact("a", "n", "1")), "diff hides pending removal")

		d.Apply()
		assert.False(t, base.Has(fact("a", "n", "1")))
	})

	t.Run("AddCancelsPendingRemoval", func(t *testing.T) {
		base := NewSet()
		base.Add(fact("a", "n", "1"))
		d := NewDiff(base)

		d.Remove(fact("a", "n", "1"))
		d.Add(fact("a", "n", "1"))

		assert.False(t, d.Pending(), "opposing operations cancel out")
		assert.True(t, d.Has(fact("a", "n", "1")))

		d.Apply()
		assert.True(t, base.Has(fact("a", "n", "1")))
	})

	t.Run("RemoveCancelsPendingAddition", func(t *testing.T) {
		base := NewSet()
		d := NewDiff(base)

		d.Add(fact("a", "n", "1"))
		d.Remove(fact("a", "n", "1"))

		assert.False(t, d.Pending())
		assert.False(t, d.Has(fact("a", "n", "1")))
	})

	t.Run("RemoveAbsentIsNoOp", func(t *testing.T) {
		base := NewSet()
		d := NewDiff(base)
		d.Remove(fact("ghost", "n", "0"))

		assert.False(t, d.Pending())

		// The earlier phantom removal must not swallow this addition
		d.Add(fact("ghost", "n", "0"))
		assert.Equal(t, []quads.Tuple{fact("ghost", "n", "0")}, d.Additions())
	})

	t.Run("AddVisibleIsNoOp", func(t *testing.T) {
		base := NewSet()
		base.Add(fact("a", "n", "1"))
		d := NewDiff(base)
		d.Add(fact("a", "n", "1"))

		assert.False(t, d.Pending())
	})

	t.Run("Discard", func(t *testing.T) {
		base := NewSet()
		base.Add(fact("keep", "n", "1"))
		d := NewDiff(base)
		d.Add(fact("new", "n", "2"))
		d.Remove(fact("keep", "n", "1"))

		d.Discard()
		assert.False(t, d.Pending())
		assert.True(t, base.Has(fact("keep", "n", "1")))
		assert.False(t, base.Has(fact("new", "n", "2")))
	})

	t.Run("RecordedOrder", func(t *testing.T) {
		base := NewSet()
		d := NewDiff(base)
		d.Add(fact("b", "n", "2"))
		d.Add(fact("a", "n", "1"))

		assert.Equal(t, []quads.Tuple{fact("b", "n", "2"), fact("a", "n", "1")}, d.Additions())
	})
}
