package market

import "fmt"

// Timeframe is the upstream bar code used in subscriptions and REST requests
// (e.g. "1m", "4H", "1D").
type Timeframe string

// TimeframeMeta holds the cache name and bucket width for a Timeframe.
type TimeframeMeta struct {
	Code    Timeframe
	Name    string // name used in storage keys, e.g. "1min", "1day"
	Seconds int64  // bucket width
}

const (
	Timeframe1Min    Timeframe = "1m"
	Timeframe5Min    Timeframe = "5m"
	Timeframe15Min   Timeframe = "15m"
	Timeframe30Min   Timeframe = "30m"
	Timeframe1Hour   Timeframe = "1H"
	Timeframe4Hour   Timeframe = "4H"
	TimeframeDaily   Timeframe = "1D"
	TimeframeWeekly  Timeframe = "1W"
	TimeframeMonthly Timeframe = "1M"
)

// validTimeframes maps each Timeframe to its storage name and bucket width.
var validTimeframes = map[Timeframe]TimeframeMeta{
	Timeframe1Min:    {Code: Timeframe1Min, Name: "1min", Seconds: 60},
	Timeframe5Min:    {Code: Timeframe5Min, Name: "5min", Seconds: 300},
	Timeframe15Min:   {Code: Timeframe15Min, Name: "15min", Seconds: 900},
	Timeframe30Min:   {Code: Timeframe30Min, Name: "30min", Seconds: 1800},
	Timeframe1Hour:   {Code: Timeframe1Hour, Name: "60min", Seconds: 3600},
	Timeframe4Hour:   {Code: Timeframe4Hour, Name: "4hour", Seconds: 14400},
	TimeframeDaily:   {Code: TimeframeDaily, Name: "1day", Seconds: 86400},
	TimeframeWeekly:  {Code: TimeframeWeekly, Name: "1week", Seconds: 604800},
	TimeframeMonthly: {Code: TimeframeMonthly, Name: "1mon", Seconds: 2592000}, // 30-day month
}

// baseOf links each derived timeframe to the single shorter timeframe it is
// aggregated from. Weekly and monthly candles have no entry: they are fed
// directly by their own live channel and never derived.
var baseOf = map[Timeframe]Timeframe{
	Timeframe5Min:  Timeframe1Min,
	Timeframe15Min: Timeframe5Min,
	Timeframe30Min: Timeframe15Min,
	Timeframe1Hour: Timeframe30Min,
	Timeframe4Hour: Timeframe1Hour,
	TimeframeDaily: Timeframe4Hour,
}

// IsValid reports whether t is one of the predefined timeframes.
func (t Timeframe) IsValid() bool {
	_, ok := validTimeframes[t]
	return ok
}

// Meta returns the metadata for t. It panics on unknown timeframes; callers
// validate codes at the edges with ParseTimeframe.
func (t Timeframe) Meta() TimeframeMeta {
	meta, ok := validTimeframes[t]
	if !ok {
		panic(fmt.Sprintf("unknown timeframe: %s", string(t)))
	}
	return meta
}

// ParseTimeframe parses a bar code string into its TimeframeMeta.
func ParseTimeframe(s string) (TimeframeMeta, error) {
	meta, ok := validTimeframes[Timeframe(s)]
	if !ok {
		return TimeframeMeta{}, fmt.Errorf("invalid timeframe: %s", s)
	}
	return meta, nil
}

// AllTimeframes returns every supported timeframe in ascending bucket-width
// order.
func AllTimeframes() []TimeframeMeta {
	return []TimeframeMeta{
		validTimeframes[Timeframe1Min],
		validTimeframes[Timeframe5Min],
		validTimeframes[Timeframe15Min],
		validTimeframes[Timeframe30Min],
		validTimeframes[Timeframe1Hour],
		validTimeframes[Timeframe4Hour],
		validTimeframes[TimeframeDaily],
		validTimeframes[TimeframeWeekly],
		validTimeframes[TimeframeMonthly],
	}
}

// DerivedFrom returns the timeframes whose immediate base is t.
func DerivedFrom(t Timeframe) []TimeframeMeta {
	var out []TimeframeMeta
	for derived, base := range baseOf {
		if base == t {
			out = append(out, validTimeframes[derived])
		}
	}
	return out
}

// BaseOf returns the immediate base of a derived timeframe, or false when t
// is base-fed (1m, weekly, monthly).
func BaseOf(t Timeframe) (TimeframeMeta, bool) {
	base, ok := baseOf[t]
	if !ok {
		return TimeframeMeta{}, false
	}
	return validTimeframes[base], true
}

// BucketID aligns a timestamp (seconds) down to the start of the bucket it
// falls in for the given width.
func BucketID(ts, seconds int64) int64 {
	return ts / seconds * seconds
}
