package redis

import (
	"testing"

	"swapcollector/internal/market"

	"github.com/stretchr/testify/assert"
)

func TestKeyFormats(t *testing.T) {
	assert.Equal(t, "XAUT_kline_book_1min", SeriesKey("XAUT", "1min"))
	assert.Equal(t, "XAUT_kline_5min", LatestKey("XAUT", "5min"))
	assert.Equal(t, "kline_XAUT_1m", Topic("XAUT", market.Timeframe1Min))
	assert.Equal(t, "XAUT_offset_delta", OffsetKey("XAUT"))
	assert.Equal(t, "forex_status", ForexStatusKey())
}

func TestSeriesAndLatestKeysDiffer(t *testing.T) {
	for _, meta := range market.AllTimeframes() {
		assert.NotEqual(t, SeriesKey("XAUT", meta.Name), LatestKey("XAUT", meta.Name))
	}
}
