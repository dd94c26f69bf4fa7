package redis

import (
	"fmt"

	"swapcollector/internal/market"
)

// Typed key builders keep producer and consumer naming from drifting.

// SeriesKey names the full bounded series for one (symbol, timeframe).
func SeriesKey(symbol, tfName string) string {
	return fmt.Sprintf("%s_kline_book_%s", symbol, tfName)
}

// LatestKey names the single most recent candle for one (symbol, timeframe).
func LatestKey(symbol, tfName string) string {
	return fmt.Sprintf("%s_kline_%s", symbol, tfName)
}

// Topic names the fan-out channel carrying the latest candle on every
// update.
func Topic(symbol string, tf market.Timeframe) string {
	return fmt.Sprintf("kline_%s_%s", symbol, string(tf))
}

// OffsetKey names the persisted reference-price delta for a symbol.
func OffsetKey(symbol string) string {
	return fmt.Sprintf("%s_offset_delta", symbol)
}

// ForexStatusKey names the reference feed's online/offline flag.
func ForexStatusKey() string {
	return "forex_status"
}
