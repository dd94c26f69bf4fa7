package seriesstore

import (
	"testing"

	"swapcollector/internal/market"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSymbol = "XAUT"

func candle(id int64, close float64) market.Candle {
	return market.Candle{
		ID:    id,
		Open:  close - 1,
		High:  close + 2,
		Low:   close - 2,
		Close: close,
		Time:  id,
	}
}

func TestUpsertLastAppendsIncreasingIDs(t *testing.T) {
	s := New()

	for i := int64(0); i < 5; i++ {
		res, err := s.UpsertLast(testSymbol, market.Timeframe1Min, candle(i*60, float64(i)))
		require.NoError(t, err)
		assert.True(t, res.Appended)
	}

	got := s.Snapshot(testSymbol, market.Timeframe1Min)
	require.Len(t, got, 5)
	for i := 1; i < len(got); i++ {
		assert.Greater(t, got[i].ID, got[i-1].ID)
	}
}

func TestUpsertLastAmendsSameID(t *testing.T) {
	s := New()

	_, err := s.UpsertLast(testSymbol, market.Timeframe1Min, candle(60, 10))
	require.NoError(t, err)

	res, err := s.UpsertLast(testSymbol, market.Timeframe1Min, candle(60, 12))
	require.NoError(t, err)
	assert.False(t, res.Appended)
	assert.False(t, res.HasClosed)

	got := s.Snapshot(testSymbol, market.Timeframe1Min)
	require.Len(t, got, 1)
	assert.Equal(t, 12.0, got[0].Close)
}

func TestUpsertLastRejectsOutOfOrder(t *testing.T) {
	s := New()

	_, err := s.UpsertLast(testSymbol, market.Timeframe1Min, candle(120, 10))
	require.NoError(t, err)

	_, err = s.UpsertLast(testSymbol, market.Timeframe1Min, candle(60, 9))
	assert.ErrorIs(t, err, ErrOutOfOrder)

	got := s.Snapshot(testSymbol, market.Timeframe1Min)
	require.Len(t, got, 1)
	assert.Equal(t, int64(120), got[0].ID)
}

func TestUpsertLastReturnsClosedCandleOnRollover(t *testing.T) {
	s := New()

	_, err := s.UpsertLast(testSymbol, market.Timeframe1Min, candle(60, 10))
	require.NoError(t, err)

	res, err := s.UpsertLast(testSymbol, market.Timeframe1Min, candle(120, 11))
	require.NoError(t, err)
	assert.True(t, res.Appended)
	require.True(t, res.HasClosed)
	assert.Equal(t, int64(60), res.Closed.ID)
	assert.Equal(t, 10.0, res.Closed.Close)
}

func TestUpsertLastEvictsOldestBeyondCapacity(t *testing.T) {
	s := New()

	total := MaxSeriesLen + 5
	for i := 0; i < total; i++ {
		_, err := s.UpsertLast(testSymbol, market.Timeframe1Min, candle(int64(i)*60, 1))
		require.NoError(t, err)
	}

	got := s.Snapshot(testSymbol, market.Timeframe1Min)
	require.Len(t, got, MaxSeriesLen)
	assert.Equal(t, int64(5*60), got[0].ID, "oldest elements evicted first")
	assert.Equal(t, int64((total-1)*60), got[len(got)-1].ID)
}

func TestMergeSortsDedupsAndTruncates(t *testing.T) {
	s := New()

	// Existing content wins over batch rows with the same id.
	_, err := s.UpsertLast(testSymbol, market.Timeframe1Min, candle(120, 42))
	require.NoError(t, err)

	batch := []market.Candle{
		candle(180, 3),
		candle(60, 1),
		candle(120, 99), // duplicate of existing id, must lose
		candle(180, 4),  // duplicate within batch, first occurrence wins
	}
	s.Merge(testSymbol, market.Timeframe1Min, batch)

	got := s.Snapshot(testSymbol, market.Timeframe1Min)
	require.Len(t, got, 3)
	assert.Equal(t, int64(60), got[0].ID)
	assert.Equal(t, int64(120), got[1].ID)
	assert.Equal(t, 42.0, got[1].Close)
	assert.Equal(t, int64(180), got[2].ID)
	assert.Equal(t, 3.0, got[2].Close)
}

func TestMergeTruncatesToMostRecent(t *testing.T) {
	s := New()

	batch := make([]market.Candle, MaxSeriesLen+100)
	for i := range batch {
		batch[i] = candle(int64(i)*60, 1)
	}
	s.Merge(testSymbol, market.Timeframe1Min, batch)

	got := s.Snapshot(testSymbol, market.Timeframe1Min)
	require.Len(t, got, MaxSeriesLen)
	assert.Equal(t, int64(100*60), got[0].ID)
}

func TestMergeThenUpsertMatchesPlainAppend(t *testing.T) {
	s := New()

	batch := []market.Candle{candle(0, 1), candle(60, 2), candle(120, 3)}
	s.Merge(testSymbol, market.Timeframe1Min, batch)

	live := candle(180, 4)
	_, err := s.UpsertLast(testSymbol, market.Timeframe1Min, live)
	require.NoError(t, err)

	last, ok := s.Last(testSymbol, market.Timeframe1Min)
	require.True(t, ok)
	assert.Equal(t, live, last)
}

func TestRange(t *testing.T) {
	s := New()
	for i := int64(0); i < 10; i++ {
		_, err := s.UpsertLast(testSymbol, market.Timeframe1Min, candle(i*60, float64(i)))
		require.NoError(t, err)
	}

	got := s.Range(testSymbol, market.Timeframe1Min, 120, 300)
	require.Len(t, got, 4)
	assert.Equal(t, int64(120), got[0].ID)
	assert.Equal(t, int64(300), got[3].ID)

	assert.Empty(t, s.Range(testSymbol, market.Timeframe1Min, 1000, 2000))
}

func TestAmendAt(t *testing.T) {
	s := New()
	for i := int64(0); i < 3; i++ {
		_, err := s.UpsertLast(testSymbol, market.Timeframe5Min, candle(i*300, float64(i)))
		require.NoError(t, err)
	}

	updated := candle(300, 77)
	require.True(t, s.AmendAt(testSymbol, market.Timeframe5Min, updated))

	got := s.Snapshot(testSymbol, market.Timeframe5Min)
	assert.Equal(t, 77.0, got[1].Close)

	assert.False(t, s.AmendAt(testSymbol, market.Timeframe5Min, candle(999, 1)))
}

func TestSeriesAreIndependent(t *testing.T) {
	s := New()

	_, err := s.UpsertLast("XAUT", market.Timeframe1Min, candle(60, 1))
	require.NoError(t, err)
	_, err = s.UpsertLast("BTC", market.Timeframe1Min, candle(60, 2))
	require.NoError(t, err)
	_, err = s.UpsertLast("XAUT", market.Timeframe5Min, candle(0, 3))
	require.NoError(t, err)

	assert.Equal(t, 1, s.Len("XAUT", market.Timeframe1Min))
	assert.Equal(t, 1, s.Len("BTC", market.Timeframe1Min))
	assert.Equal(t, 3, s.CountAll())
}

func TestRingWraparound(t *testing.T) {
	r := newRing(3)
	for i := int64(1); i <= 5; i++ {
		r.push(candle(i, float64(i)))
	}

	assert.Equal(t, 3, r.len())
	got := r.snapshot()
	assert.Equal(t, int64(3), got[0].ID)
	assert.Equal(t, int64(5), got[2].ID)

	last, ok := r.last()
	require.True(t, ok)
	assert.Equal(t, int64(5), last.ID)

	r.setLast(candle(5, 50))
	last, _ = r.last()
	assert.Equal(t, 50.0, last.Close)
}
