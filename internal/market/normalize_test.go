package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestNormalizer(offset *OffsetTracker, nowSec int64) *Normalizer {
	n := NewNormalizer(offset, zap.NewNop())
	n.now = func() time.Time { return time.Unix(nowSec, 0) }
	return n
}

func validRow(startMillis string) []string {
	return []string{startMillis, "2000.12345", "2010.5", "1995.25", "2005", "12.5", "ignored", "250000.987654", "1"}
}

func TestNormalizeValidRow(t *testing.T) {
	n := newTestNormalizer(NewOffsetTracker(), 1_700_000_000)

	c, err := n.Normalize("XAUT", Timeframe1Min, validRow("1699999980000"))
	require.NoError(t, err)

	assert.Equal(t, int64(1699999980), c.ID)
	assert.Equal(t, 2000.1235, c.Open, "rounded to 4 decimals")
	assert.Equal(t, 2010.5, c.High)
	assert.Equal(t, 1995.25, c.Low)
	assert.Equal(t, 2005.0, c.Close)
	assert.Equal(t, 12.5, c.Amount)
	assert.Equal(t, 250000.9877, c.Vol, "quote turnover from index 7")
}

func TestNormalizeAppliesOffsetToOHLCOnly(t *testing.T) {
	offset := NewOffsetTracker()
	offset.SetReference(2003)
	offset.SetBase(2000)
	n := newTestNormalizer(offset, 1_700_000_000)

	c, err := n.Normalize("XAUT", Timeframe1Min, validRow("1699999980000"))
	require.NoError(t, err)

	assert.Equal(t, 2003.1235, c.Open)
	assert.Equal(t, 2013.5, c.High)
	assert.Equal(t, 1998.25, c.Low)
	assert.Equal(t, 2008.0, c.Close)
	assert.Equal(t, 12.5, c.Amount, "volumes never shifted")
	assert.Equal(t, 250000.9877, c.Vol)
}

func TestNormalizeRejectsFutureBucket(t *testing.T) {
	n := newTestNormalizer(NewOffsetTracker(), 1_700_000_000)

	_, err := n.Normalize("XAUT", Timeframe1Min, validRow("1700000060000"))
	assert.ErrorIs(t, err, ErrFutureSample)
}

func TestNormalizeRejectsShortRow(t *testing.T) {
	n := newTestNormalizer(NewOffsetTracker(), 1_700_000_000)

	_, err := n.Normalize("XAUT", Timeframe1Min, []string{"1699999980000", "2000", "2010"})
	assert.ErrorIs(t, err, ErrMalformedRow)
}

func TestNormalizeRejectsUnparsableFields(t *testing.T) {
	n := newTestNormalizer(NewOffsetTracker(), 1_700_000_000)

	row := validRow("1699999980000")
	row[4] = "not-a-price"
	_, err := n.Normalize("XAUT", Timeframe1Min, row)
	assert.ErrorIs(t, err, ErrMalformedRow)

	row = validRow("not-a-timestamp")
	_, err = n.Normalize("XAUT", Timeframe1Min, row)
	assert.ErrorIs(t, err, ErrMalformedRow)
}

func TestNormalizeZeroDeltaBeforeFirstReference(t *testing.T) {
	n := newTestNormalizer(NewOffsetTracker(), 1_700_000_000)

	c, err := n.Normalize("XAUT", Timeframe1Min, validRow("1699999980000"))
	require.NoError(t, err)
	assert.Equal(t, 2005.0, c.Close, "prices pass through unshifted")
}
