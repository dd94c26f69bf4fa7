package market

// Candle represents a single OHLCV bucket.
// ID is the timeframe-aligned bucket start time in seconds since epoch and is
// the unique key within a series. Time is the ingestion timestamp (seconds),
// used for staleness checks, never for ordering.
type Candle struct {
	ID     int64   `json:"id"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Amount float64 `json:"amount"` // base-asset volume
	Vol    float64 `json:"vol"`    // quote-asset turnover
	Time   int64   `json:"time"`
}
