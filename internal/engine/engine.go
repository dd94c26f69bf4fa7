package engine

import (
	"context"
	"errors"
	"sync"

	"swapcollector/internal/market"
	"swapcollector/internal/seriesstore"

	"go.uber.org/zap"
)

// SeriesWriter persists series state so the collector is inspectable and
// restartable from the outside.
type SeriesWriter interface {
	PutSeries(ctx context.Context, symbol string, tf market.TimeframeMeta, series []market.Candle) error
	PutLatest(ctx context.Context, symbol string, tf market.TimeframeMeta, c market.Candle) error
}

// Publisher fans a touched series' newest candle out to subscribers.
// Delivery guarantees are the sink's responsibility.
type Publisher interface {
	PublishCandle(ctx context.Context, symbol string, tf market.TimeframeMeta, c market.Candle) error
}

// Archiver receives candles whose bucket has closed.
type Archiver interface {
	ArchiveCandle(ctx context.Context, symbol string, tf market.TimeframeMeta, c market.Candle) error
}

// Engine applies one normalized base-timeframe candle to its series and
// cascades the update one hop into every timeframe derived from it. Samples
// for the same symbol are serialized; different symbols proceed in parallel.
type Engine struct {
	store   *seriesstore.Store
	writer  SeriesWriter
	pub     Publisher
	archive Archiver
	logger  *zap.Logger

	mu      sync.Mutex
	symbols map[string]*sync.Mutex
}

func New(store *seriesstore.Store, writer SeriesWriter, pub Publisher, archive Archiver, logger *zap.Logger) *Engine {
	return &Engine{
		store:   store,
		writer:  writer,
		pub:     pub,
		archive: archive,
		logger:  logger,
		symbols: make(map[string]*sync.Mutex),
	}
}

func (e *Engine) symbolLock(symbol string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	m, ok := e.symbols[symbol]
	if !ok {
		m = &sync.Mutex{}
		e.symbols[symbol] = m
	}
	return m
}

// Apply upserts the candle into its own series, then recomputes every
// timeframe whose base is tf. One hop only: a 1m tick refreshes 5m but a 5m
// recompute never re-triggers 15m; each derived timeframe receives its own
// live channel's ticks as the cascade root.
func (e *Engine) Apply(ctx context.Context, symbol string, tf market.Timeframe, c market.Candle) {
	lock := e.symbolLock(symbol)
	lock.Lock()
	defer lock.Unlock()

	meta := tf.Meta()

	res, err := e.store.UpsertLast(symbol, tf, c)
	if err != nil {
		if errors.Is(err, seriesstore.ErrOutOfOrder) {
			e.logger.Warn("dropping out-of-order sample",
				zap.String("symbol", symbol),
				zap.String("timeframe", string(tf)),
				zap.Int64("id", c.ID))
			return
		}
		e.logger.Error("upsert failed", zap.String("symbol", symbol), zap.Error(err))
		return
	}
	if res.HasClosed {
		e.archiveClosed(ctx, symbol, meta, res.Closed)
	}
	e.emit(ctx, symbol, meta, c)

	for _, derived := range market.DerivedFrom(tf) {
		e.cascade(ctx, symbol, derived, meta, c)
	}
}

// cascade recomputes the derived bucket the tick lands in from its base
// window. Before rolling over to a new derived bucket, the previous bucket's
// OHLC is refilled from its now-complete base window so the finalized candle
// is never under-filled.
func (e *Engine) cascade(ctx context.Context, symbol string, derived, base market.TimeframeMeta, tick market.Candle) {
	bucketID := market.BucketID(tick.ID, derived.Seconds)

	dc := market.Candle{
		ID:     bucketID,
		Open:   tick.Open,
		High:   tick.High,
		Low:    tick.Low,
		Close:  tick.Close,
		Amount: tick.Amount,
		Vol:    tick.Vol,
		Time:   tick.Time,
	}
	window := e.store.Range(symbol, base.Code, bucketID, bucketID+derived.Seconds-base.Seconds)
	if len(window) > 0 {
		fillOHLC(&dc, window)
	}

	if last, ok := e.store.Last(symbol, derived.Code); ok && dc.ID > last.ID {
		prev := e.store.Range(symbol, base.Code, last.ID, last.ID+derived.Seconds-base.Seconds)
		if len(prev) > 0 {
			fillOHLC(&last, prev)
			e.store.AmendAt(symbol, derived.Code, last)
		}
	}

	res, err := e.store.UpsertLast(symbol, derived.Code, dc)
	if err != nil {
		if errors.Is(err, seriesstore.ErrOutOfOrder) {
			e.logger.Warn("dropping out-of-order derived bucket",
				zap.String("symbol", symbol),
				zap.String("timeframe", string(derived.Code)),
				zap.Int64("id", dc.ID))
			return
		}
		e.logger.Error("derived upsert failed", zap.String("symbol", symbol), zap.Error(err))
		return
	}
	if res.HasClosed {
		e.archiveClosed(ctx, symbol, derived, res.Closed)
	}
	e.emit(ctx, symbol, derived, dc)
}

// fillOHLC aggregates OHLC from the base window: open from the earliest
// member, close from the latest, high/low across the set. Volumes stay as
// carried from the originating tick; they are intentionally not resummed.
func fillOHLC(dst *market.Candle, window []market.Candle) {
	dst.Open = window[0].Open
	dst.Close = window[len(window)-1].Close
	high := window[0].High
	low := window[0].Low
	for _, c := range window[1:] {
		if c.High > high {
			high = c.High
		}
		if c.Low < low {
			low = c.Low
		}
	}
	dst.High = high
	dst.Low = low
}

// emit persists the latest candle and full series, then publishes the update.
// Sink failures are logged and never interrupt ingestion.
func (e *Engine) emit(ctx context.Context, symbol string, tf market.TimeframeMeta, c market.Candle) {
	if e.writer != nil {
		if err := e.writer.PutLatest(ctx, symbol, tf, c); err != nil {
			e.logger.Warn("failed to persist latest candle",
				zap.String("symbol", symbol), zap.String("timeframe", tf.Name), zap.Error(err))
		}
		if err := e.writer.PutSeries(ctx, symbol, tf, e.store.Snapshot(symbol, tf.Code)); err != nil {
			e.logger.Warn("failed to persist series",
				zap.String("symbol", symbol), zap.String("timeframe", tf.Name), zap.Error(err))
		}
	}
	if e.pub != nil {
		if err := e.pub.PublishCandle(ctx, symbol, tf, c); err != nil {
			e.logger.Warn("failed to publish candle update",
				zap.String("symbol", symbol), zap.String("timeframe", tf.Name), zap.Error(err))
		}
	}
}

func (e *Engine) archiveClosed(ctx context.Context, symbol string, tf market.TimeframeMeta, c market.Candle) {
	if e.archive == nil {
		return
	}
	if err := e.archive.ArchiveCandle(ctx, symbol, tf, c); err != nil {
		e.logger.Warn("failed to archive closed candle",
			zap.String("symbol", symbol),
			zap.String("timeframe", tf.Name),
			zap.Int64("id", c.ID),
			zap.Error(err))
	}
}
