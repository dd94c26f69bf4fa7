package collector

import (
	"context"
	"fmt"
	"time"

	"swapcollector/config"
	"swapcollector/internal/backfill"
	"swapcollector/internal/engine"
	"swapcollector/internal/forex"
	"swapcollector/internal/market"
	"swapcollector/internal/seriesstore"
	"swapcollector/internal/stream"
	"swapcollector/pkg/okx"
	"swapcollector/pkg/storage/postgres"
	redisstore "swapcollector/pkg/storage/redis"

	"go.uber.org/zap"
)

// StartCollector initializes the data pipeline for the configured swap
// instrument: reference-price feed, historical backfill for every timeframe,
// and the live candle stream feeding the aggregation engine.
func StartCollector(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	symbol := cfg.Collector.Symbol

	// Redis: KV persistence and fan-out sink
	redisClient, err := redisstore.NewClient(cfg.Redis)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	kv := redisstore.NewStore(redisClient)

	// Postgres: finalized-candle archive
	archive, err := postgres.InitializeAndMigrate(cfg.Postgres, cfg.Log.Environment, true)
	if err != nil {
		return fmt.Errorf("failed to connect to DB: %w", err)
	}

	// Reference feed keeps the offset tracker current
	tracker := market.NewOffsetTracker()
	feed := forex.NewFeed(cfg.Forex, symbol, tracker, kv, logger)
	go feed.Run(ctx)

	norm := market.NewNormalizer(tracker, logger)
	store := seriesstore.New()
	eng := engine.New(store, kv, kv, archive, logger)

	// Backfill every supported timeframe, bounded by a small semaphore on
	// top of the shared request throttle.
	restClient := okx.NewRESTClient(cfg.OKX.REST.BaseURL, cfg.OKX.REST.Timeout)
	fetcher := backfill.NewFetcher(restClient, store, norm, kv, backfill.NewLimiter(), logger)

	sem := make(chan struct{}, 3)
	for _, tf := range market.AllTimeframes() {
		tf := tf
		sem <- struct{}{}

		go func() {
			defer func() { <-sem }()
			if err := fetcher.Run(ctx, symbol, tf); err != nil {
				logger.Warn("backfill failed",
					zap.String("symbol", symbol),
					zap.String("timeframe", tf.Name),
					zap.Error(err))
			}
		}()
	}

	// Subscribe to every candle channel; each channel's ticks cascade one
	// hop into the timeframes derived from it.
	var args []okx.SubscriptionArg
	for _, tf := range market.AllTimeframes() {
		args = append(args, okx.SubscriptionArg{
			Channel: okx.CandleChannel(tf.Code),
			InstID:  okx.InstID(symbol),
		})
	}

	wsClient := okx.NewWSClient(cfg.OKX.WS.URL, args, logger)
	wsClient.SetMessageHandler(stream.MakeMessageHandler(logger, norm, eng, tracker, market.Timeframe1Min))

	if err := wsClient.Connect(); err != nil {
		return err
	}
	go wsClient.Listen()

	// Periodically log stored candle count for visibility
	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				logger.Info("current stored candles", zap.Int("count", store.CountAll()))
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}
