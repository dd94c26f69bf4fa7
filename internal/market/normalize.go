package market

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrMalformedRow marks an upstream row that is missing fields or fails
	// to parse. The sample is dropped; the stream continues.
	ErrMalformedRow = errors.New("malformed candle row")
	// ErrFutureSample marks a sample whose bucket start lies in the future.
	ErrFutureSample = errors.New("candle bucket in the future")
)

// Normalizer converts raw upstream candle rows into canonical Candles,
// applying the reference-price delta to OHLC fields. Both the backfill and
// live paths go through it so the offset cannot drift between them.
type Normalizer struct {
	offset *OffsetTracker
	logger *zap.Logger
	now    func() time.Time
}

func NewNormalizer(offset *OffsetTracker, logger *zap.Logger) *Normalizer {
	return &Normalizer{
		offset: offset,
		logger: logger,
		now:    time.Now,
	}
}

// Normalize maps a positional upstream row into a Candle. Row layout is
// [startMillis, open, high, low, close, amount, volCcy, volQuote, ...]; the
// quote turnover sits at index 7. The delta is added to open/high/low/close
// and never to the volume fields. Rows with a future bucket id are rejected.
func (n *Normalizer) Normalize(symbol string, tf Timeframe, row []string) (Candle, error) {
	if len(row) < 8 {
		n.logger.Warn("dropping malformed candle row",
			zap.String("symbol", symbol),
			zap.String("timeframe", string(tf)),
			zap.String("raw", strings.Join(row, ",")))
		return Candle{}, ErrMalformedRow
	}

	startMillis, err := strconv.ParseInt(row[0], 10, 64)
	if err != nil {
		return n.malformed(symbol, tf, row, err)
	}
	open, err := strconv.ParseFloat(row[1], 64)
	if err != nil {
		return n.malformed(symbol, tf, row, err)
	}
	high, err := strconv.ParseFloat(row[2], 64)
	if err != nil {
		return n.malformed(symbol, tf, row, err)
	}
	low, err := strconv.ParseFloat(row[3], 64)
	if err != nil {
		return n.malformed(symbol, tf, row, err)
	}
	closeVal, err := strconv.ParseFloat(row[4], 64)
	if err != nil {
		return n.malformed(symbol, tf, row, err)
	}
	amount, err := strconv.ParseFloat(row[5], 64)
	if err != nil {
		return n.malformed(symbol, tf, row, err)
	}
	vol, err := strconv.ParseFloat(row[7], 64)
	if err != nil {
		return n.malformed(symbol, tf, row, err)
	}

	now := n.now().Unix()
	id := startMillis / 1000
	if id > now {
		return Candle{}, ErrFutureSample
	}

	delta, ok := n.offset.Get()
	if !ok {
		// Zero delta before the first reference sample; flagged for
		// observability, not an error.
		n.logger.Debug("offset unavailable, applying zero delta",
			zap.String("symbol", symbol),
			zap.String("timeframe", string(tf)))
	}

	return Candle{
		ID:     id,
		Open:   round4(open + delta),
		High:   round4(high + delta),
		Low:    round4(low + delta),
		Close:  round4(closeVal + delta),
		Amount: amount,
		Vol:    round4(vol),
		Time:   now,
	}, nil
}

func (n *Normalizer) malformed(symbol string, tf Timeframe, row []string, err error) (Candle, error) {
	n.logger.Warn("dropping unparsable candle row",
		zap.String("symbol", symbol),
		zap.String("timeframe", string(tf)),
		zap.String("raw", strings.Join(row, ",")),
		zap.Error(err))
	return Candle{}, ErrMalformedRow
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
