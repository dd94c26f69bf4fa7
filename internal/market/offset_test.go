package market

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOffsetZeroBeforeBothLegsSeen(t *testing.T) {
	o := NewOffsetTracker()

	delta, ok := o.Get()
	assert.False(t, ok)
	assert.Zero(t, delta)

	o.SetReference(2000)
	delta, ok = o.Get()
	assert.False(t, ok, "one leg is not enough")
	assert.Zero(t, delta)
}

func TestOffsetComputedFromBothLegs(t *testing.T) {
	o := NewOffsetTracker()
	o.SetReference(2005.5)
	o.SetBase(2000)

	delta, ok := o.Get()
	require.True(t, ok)
	assert.InDelta(t, 5.5, delta, 1e-9)
	assert.False(t, o.Degraded())
}

func TestOffsetRecomputesOnEitherLeg(t *testing.T) {
	o := NewOffsetTracker()
	o.SetReference(2010)
	o.SetBase(2000)

	o.SetBase(2004)
	delta, _ := o.Get()
	assert.InDelta(t, 6, delta, 1e-9)

	o.SetReference(2002)
	delta, _ = o.Get()
	assert.InDelta(t, -2, delta, 1e-9)
}

func TestDegradedRetainsLastDelta(t *testing.T) {
	o := NewOffsetTracker()
	o.SetReference(2010)
	o.SetBase(2000)

	o.MarkDegraded()
	assert.True(t, o.Degraded())

	delta, ok := o.Get()
	require.True(t, ok, "stale delta keeps being served")
	assert.InDelta(t, 10, delta, 1e-9)

	// Base updates alone cannot recompute while the reference is stale.
	o.SetBase(1990)
	delta, _ = o.Get()
	assert.InDelta(t, 10, delta, 1e-9)

	// A fresh reference sample clears the degraded state.
	o.SetReference(2000)
	assert.False(t, o.Degraded())
	delta, _ = o.Get()
	assert.InDelta(t, 10, delta, 1e-9)
}
