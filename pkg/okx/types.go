package okx

import (
	"encoding/json"
	"strings"

	"swapcollector/internal/market"
)

// Envelope is the standard OKX V5 REST response wrapper. Code "0" means
// success; Data decoding is delayed because its shape varies per endpoint.
type Envelope struct {
	Code string          `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// SubscriptionArg is one entry of a websocket subscribe request.
type SubscriptionArg struct {
	Channel string `json:"channel"` // e.g. "candle1m"
	InstID  string `json:"instId"`  // e.g. "XAUT-USDT-SWAP"
}

// PushMessage is a websocket data push. Arg identifies the stream; Data
// carries positional candle rows for candle channels.
type PushMessage struct {
	Arg  SubscriptionArg `json:"arg"`
	Data [][]string      `json:"data"`
}

const candleChannelPrefix = "candle"

// InstID builds the perpetual-swap instrument id for a symbol.
func InstID(symbol string) string {
	return strings.ToUpper(symbol) + "-USDT-SWAP"
}

// SymbolFromInstID extracts the symbol from an instrument id like
// "XAUT-USDT-SWAP".
func SymbolFromInstID(instID string) string {
	if i := strings.Index(instID, "-"); i > 0 {
		return instID[:i]
	}
	return ""
}

// CandleChannel builds the candle channel name for a timeframe.
func CandleChannel(tf market.Timeframe) string {
	return candleChannelPrefix + string(tf)
}

// TimeframeFromChannel parses a candle channel name back into its timeframe.
// The second return is false for non-candle channels and unknown bar codes.
func TimeframeFromChannel(channel string) (market.TimeframeMeta, bool) {
	if !strings.HasPrefix(channel, candleChannelPrefix) {
		return market.TimeframeMeta{}, false
	}
	meta, err := market.ParseTimeframe(strings.TrimPrefix(channel, candleChannelPrefix))
	if err != nil {
		return market.TimeframeMeta{}, false
	}
	return meta, true
}
