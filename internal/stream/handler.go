package stream

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"swapcollector/internal/engine"
	"swapcollector/internal/market"
	"swapcollector/pkg/okx"

	"go.uber.org/zap"
)

// MakeMessageHandler returns the websocket message handler: it parses candle
// pushes, keeps the offset tracker's base leg current from raw base-timeframe
// closes, normalizes each row and hands it to the engine. Anything that is
// not a candle push (subscription acks, unknown channels) is ignored.
func MakeMessageHandler(logger *zap.Logger, norm *market.Normalizer, eng *engine.Engine,
	offset *market.OffsetTracker, baseTF market.Timeframe) func(msg []byte) {
	return func(msg []byte) {
		var parsed okx.PushMessage
		if err := json.Unmarshal(msg, &parsed); err != nil {
			logger.Warn("failed to parse push message", zap.Error(err))
			return
		}
		if parsed.Arg.Channel == "" || len(parsed.Data) == 0 {
			return // subscription response or event notice
		}

		tf, ok := okx.TimeframeFromChannel(parsed.Arg.Channel)
		if !ok {
			return
		}
		symbol := okx.SymbolFromInstID(parsed.Arg.InstID)
		if symbol == "" {
			logger.Warn("push without instrument id", zap.String("channel", parsed.Arg.Channel))
			return
		}

		ctx := context.Background()
		for _, row := range parsed.Data {
			// The raw base-timeframe close is the offset's base leg; feed it
			// before normalizing so the freshest delta applies to this tick.
			if tf.Code == baseTF && len(row) > 4 {
				if rawClose, err := strconv.ParseFloat(row[4], 64); err == nil {
					offset.SetBase(rawClose)
				}
			}

			c, err := norm.Normalize(symbol, tf.Code, row)
			if err != nil {
				if errors.Is(err, market.ErrFutureSample) {
					logger.Debug("dropping future-bucket sample",
						zap.String("symbol", symbol),
						zap.String("timeframe", tf.Name))
				}
				continue // malformed rows were already logged by the normalizer
			}

			eng.Apply(ctx, symbol, tf.Code, c)
		}
	}
}
