package backfill

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"swapcollector/internal/engine"
	"swapcollector/internal/market"
	"swapcollector/internal/seriesstore"
	"swapcollector/pkg/okx"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// PageSize is the upstream maximum per history request. A full page means
	// more history may exist; a partial or empty page terminates paging.
	PageSize = 1500
	// MaxPages bounds pagination against a misbehaving upstream.
	MaxPages = 200
	// rateLimitBackoff is the fixed pause after a 429 before retrying the
	// same cursor.
	rateLimitBackoff = 2 * time.Second
)

// HistoryClient fetches one page of raw candle rows, newest-first.
type HistoryClient interface {
	CandleHistory(ctx context.Context, symbol string, tf market.Timeframe, limit int, beforeMillis string) ([][]string, error)
}

// Fetcher pages backwards through a series' history and merges the result
// into the store. All fetchers share one rate limiter so the process-wide
// minimum inter-request gap holds regardless of which series is loading.
type Fetcher struct {
	client  HistoryClient
	store   *seriesstore.Store
	norm    *market.Normalizer
	writer  engine.SeriesWriter
	limiter *rate.Limiter
	logger  *zap.Logger
	backoff time.Duration
}

func NewFetcher(client HistoryClient, store *seriesstore.Store, norm *market.Normalizer,
	writer engine.SeriesWriter, limiter *rate.Limiter, logger *zap.Logger) *Fetcher {
	return &Fetcher{
		client:  client,
		store:   store,
		norm:    norm,
		writer:  writer,
		limiter: limiter,
		logger:  logger,
		backoff: rateLimitBackoff,
	}
}

// NewLimiter returns the shared throttle: at most one request per 350ms
// across every concurrent backfill.
func NewLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Every(350*time.Millisecond), 1)
}

// Run backfills one (symbol, timeframe) series. It pages with a "before"
// cursor while full pages come back, then merges the accumulated candles
// into the store and persists the result. A non-429 HTTP failure aborts the
// fetch and leaves the series as last merged.
func (f *Fetcher) Run(ctx context.Context, symbol string, tf market.TimeframeMeta) error {
	var acc []market.Candle
	before := ""

	for page := 0; page < MaxPages; page++ {
		rows, err := f.fetchPage(ctx, symbol, tf, before)
		if err != nil {
			return fmt.Errorf("backfill %s %s page %d: %w", symbol, tf.Name, page, err)
		}

		pageOldest := int64(0)
		for _, row := range rows {
			c, err := f.norm.Normalize(symbol, tf.Code, row)
			if err != nil {
				// Malformed and future rows are dropped; the normalizer
				// already logged malformed ones with context.
				continue
			}
			acc = append(acc, c)
			pageOldest = c.ID // rows arrive newest-first
		}

		f.logger.Info("backfill progress",
			zap.String("symbol", symbol),
			zap.String("timeframe", tf.Name),
			zap.Int("page", page),
			zap.Int("accumulated", len(acc)))

		if len(rows) < PageSize {
			break // exhausted
		}
		if pageOldest == 0 {
			f.logger.Warn("full page yielded no usable rows, stopping pagination",
				zap.String("symbol", symbol), zap.String("timeframe", tf.Name))
			break
		}
		before = strconv.FormatInt(pageOldest, 10) + "000" // seconds → upstream millis
	}

	f.store.Merge(symbol, tf.Code, acc)
	merged := f.store.Snapshot(symbol, tf.Code)

	f.logger.Info("backfill complete",
		zap.String("symbol", symbol),
		zap.String("timeframe", tf.Name),
		zap.Int("candles", len(merged)))

	if f.writer != nil {
		if err := f.writer.PutSeries(ctx, symbol, tf, merged); err != nil {
			f.logger.Warn("failed to persist backfilled series",
				zap.String("symbol", symbol), zap.String("timeframe", tf.Name), zap.Error(err))
		}
	}
	return nil
}

// fetchPage requests one page under the shared throttle, retrying the same
// cursor after the fixed backoff for as long as the upstream rate-limits.
func (f *Fetcher) fetchPage(ctx context.Context, symbol string, tf market.TimeframeMeta, before string) ([][]string, error) {
	for {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		rows, err := f.client.CandleHistory(ctx, symbol, tf.Code, PageSize, before)
		if errors.Is(err, okx.ErrRateLimited) {
			f.logger.Warn("rate limited, backing off",
				zap.String("symbol", symbol),
				zap.String("timeframe", tf.Name),
				zap.Duration("backoff", f.backoff))
			select {
			case <-time.After(f.backoff):
				continue
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		if err != nil {
			return nil, err
		}
		return rows, nil
	}
}
