package market

import "sync"

// OffsetTracker holds the additive price correction derived from comparing
// the reference feed against the raw swap price. The delta is recomputed
// whenever both legs have been observed; when a leg goes stale the previous
// delta is retained and the tracker reports itself degraded. Only before the
// first computation does Get return zero.
type OffsetTracker struct {
	mu sync.RWMutex

	reference    float64
	hasReference bool
	base         float64
	hasBase      bool

	delta    float64
	valid    bool
	degraded bool
}

func NewOffsetTracker() *OffsetTracker {
	return &OffsetTracker{}
}

// SetReference records the latest reference-feed price and recomputes the
// delta if the base leg has been observed.
func (o *OffsetTracker) SetReference(price float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.reference = price
	o.hasReference = true
	o.recompute()
}

// SetBase records the latest raw swap price and recomputes the delta if the
// reference leg has been observed.
func (o *OffsetTracker) SetBase(price float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.base = price
	o.hasBase = true
	o.recompute()
}

func (o *OffsetTracker) recompute() {
	if !o.hasReference || !o.hasBase {
		return
	}
	o.delta = o.reference - o.base
	o.valid = true
	o.degraded = false
}

// MarkDegraded flags the tracker after the reference feed goes offline. A
// previously computed delta keeps being served; validity is not revoked.
func (o *OffsetTracker) MarkDegraded() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.degraded = true
	o.hasReference = false
}

// Get returns the current delta and whether it has ever been computed. When
// it never has, the delta is zero and callers should log the degraded apply.
func (o *OffsetTracker) Get() (float64, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if !o.valid {
		return 0, false
	}
	return o.delta, true
}

// Degraded reports whether the tracker is serving a stale delta.
func (o *OffsetTracker) Degraded() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.degraded
}
