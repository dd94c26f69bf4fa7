package seriesstore

import "swapcollector/internal/market"

// ring is a fixed-capacity candle buffer with O(1) append, O(1) front
// eviction and O(1) access to the last element. Indexing is logical: index 0
// is the oldest retained candle.
type ring struct {
	buf  []market.Candle
	head int
	size int
}

func newRing(capacity int) *ring {
	return &ring{buf: make([]market.Candle, capacity)}
}

func (r *ring) len() int {
	return r.size
}

func (r *ring) at(i int) market.Candle {
	return r.buf[(r.head+i)%len(r.buf)]
}

func (r *ring) last() (market.Candle, bool) {
	if r.size == 0 {
		return market.Candle{}, false
	}
	return r.at(r.size - 1), true
}

// setAt overwrites the element at logical index i.
func (r *ring) setAt(i int, c market.Candle) {
	r.buf[(r.head+i)%len(r.buf)] = c
}

// setLast overwrites the newest element in place (amend).
func (r *ring) setLast(c market.Candle) {
	r.buf[(r.head+r.size-1)%len(r.buf)] = c
}

// push appends a candle, evicting the oldest element once full.
func (r *ring) push(c market.Candle) {
	if r.size == len(r.buf) {
		r.buf[r.head] = c
		r.head = (r.head + 1) % len(r.buf)
		return
	}
	r.buf[(r.head+r.size)%len(r.buf)] = c
	r.size++
}

// snapshot copies the retained candles oldest-first.
func (r *ring) snapshot() []market.Candle {
	out := make([]market.Candle, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.at(i)
	}
	return out
}

// replace discards the current content and refills from candles, which must
// already be sorted and within capacity.
func (r *ring) replace(candles []market.Candle) {
	r.head = 0
	r.size = len(candles)
	copy(r.buf, candles)
}
