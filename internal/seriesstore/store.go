package seriesstore

import (
	"errors"
	"sort"
	"sync"

	"swapcollector/internal/market"
)

// MaxSeriesLen bounds every series; the oldest candle is evicted first.
const MaxSeriesLen = 3000

// ErrOutOfOrder is returned when a sample's bucket id is older than the
// newest retained candle. Late ticks are expected in streaming feeds; callers
// log and drop.
var ErrOutOfOrder = errors.New("out-of-order sample")

// Key identifies one candle series.
type Key struct {
	Symbol    string
	Timeframe market.Timeframe
}

// UpsertResult reports what UpsertLast did. When an append closed the
// previously open bucket, Closed carries the finalized candle.
type UpsertResult struct {
	Appended  bool
	Closed    market.Candle
	HasClosed bool
}

type series struct {
	mu   sync.Mutex
	ring *ring
}

// Store owns every candle series. A global RWMutex guards the series map;
// each series carries its own mutex so mutations of unrelated keys never
// block each other.
type Store struct {
	globalMu sync.RWMutex
	data     map[Key]*series
}

func New() *Store {
	return &Store{data: make(map[Key]*series)}
}

func (s *Store) get(k Key) *series {
	// Fast path: the series already exists.
	s.globalMu.RLock()
	sr, ok := s.data[k]
	s.globalMu.RUnlock()
	if ok {
		return sr
	}

	s.globalMu.Lock()
	if sr, ok = s.data[k]; !ok {
		sr = &series{ring: newRing(MaxSeriesLen)}
		s.data[k] = sr
	}
	s.globalMu.Unlock()
	return sr
}

// UpsertLast applies the append-or-amend rule: an empty series appends; an
// incoming id equal to the last element's id amends it in place (the bucket
// is still open); a strictly greater id appends and thereby finalizes the
// previous bucket; a smaller id is rejected with ErrOutOfOrder.
func (s *Store) UpsertLast(symbol string, tf market.Timeframe, c market.Candle) (UpsertResult, error) {
	sr := s.get(Key{Symbol: symbol, Timeframe: tf})

	sr.mu.Lock()
	defer sr.mu.Unlock()

	last, ok := sr.ring.last()
	if !ok {
		sr.ring.push(c)
		return UpsertResult{Appended: true}, nil
	}

	switch {
	case c.ID == last.ID:
		sr.ring.setLast(c)
		return UpsertResult{}, nil
	case c.ID > last.ID:
		sr.ring.push(c)
		return UpsertResult{Appended: true, Closed: last, HasClosed: true}, nil
	default:
		return UpsertResult{}, ErrOutOfOrder
	}
}

// AmendAt overwrites the candle whose id equals c.ID, if retained. Used by
// the aggregation engine to refill a just-finalized derived bucket from its
// complete base window.
func (s *Store) AmendAt(symbol string, tf market.Timeframe, c market.Candle) bool {
	sr := s.get(Key{Symbol: symbol, Timeframe: tf})

	sr.mu.Lock()
	defer sr.mu.Unlock()

	for i := sr.ring.len() - 1; i >= 0; i-- {
		got := sr.ring.at(i)
		if got.ID == c.ID {
			sr.ring.setAt(i, c)
			return true
		}
		if got.ID < c.ID {
			break
		}
	}
	return false
}

// Merge folds a backfilled batch into the series: existing content first,
// then the batch, stably sorted by id, exact-id duplicates removed keeping
// the first occurrence, truncated to the most recent MaxSeriesLen.
func (s *Store) Merge(symbol string, tf market.Timeframe, batch []market.Candle) {
	sr := s.get(Key{Symbol: symbol, Timeframe: tf})

	sr.mu.Lock()
	defer sr.mu.Unlock()

	combined := append(sr.ring.snapshot(), batch...)
	sort.SliceStable(combined, func(i, j int) bool {
		return combined[i].ID < combined[j].ID
	})

	deduped := combined[:0]
	var prev int64 = -1
	for _, c := range combined {
		if c.ID == prev {
			continue
		}
		deduped = append(deduped, c)
		prev = c.ID
	}

	if len(deduped) > MaxSeriesLen {
		deduped = deduped[len(deduped)-MaxSeriesLen:]
	}
	sr.ring.replace(deduped)
}

// Snapshot returns a copy of the series oldest-first.
func (s *Store) Snapshot(symbol string, tf market.Timeframe) []market.Candle {
	sr := s.get(Key{Symbol: symbol, Timeframe: tf})
	sr.mu.Lock()
	defer sr.mu.Unlock()
	return sr.ring.snapshot()
}

// Last returns the newest candle of the series.
func (s *Store) Last(symbol string, tf market.Timeframe) (market.Candle, bool) {
	sr := s.get(Key{Symbol: symbol, Timeframe: tf})
	sr.mu.Lock()
	defer sr.mu.Unlock()
	return sr.ring.last()
}

// Range copies the candles whose id lies in [fromID, toID], oldest-first.
func (s *Store) Range(symbol string, tf market.Timeframe, fromID, toID int64) []market.Candle {
	sr := s.get(Key{Symbol: symbol, Timeframe: tf})

	sr.mu.Lock()
	defer sr.mu.Unlock()

	var out []market.Candle
	for i := 0; i < sr.ring.len(); i++ {
		c := sr.ring.at(i)
		if c.ID < fromID {
			continue
		}
		if c.ID > toID {
			break
		}
		out = append(out, c)
	}
	return out
}

// Len returns the number of retained candles for one series.
func (s *Store) Len(symbol string, tf market.Timeframe) int {
	sr := s.get(Key{Symbol: symbol, Timeframe: tf})
	sr.mu.Lock()
	defer sr.mu.Unlock()
	return sr.ring.len()
}

// CountAll returns the total number of candles across all series.
func (s *Store) CountAll() int {
	s.globalMu.RLock()
	defer s.globalMu.RUnlock()

	total := 0
	for _, sr := range s.data {
		sr.mu.Lock()
		total += sr.ring.len()
		sr.mu.Unlock()
	}
	return total
}
