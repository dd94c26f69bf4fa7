package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"swapcollector/internal/market"

	"github.com/redis/go-redis/v9"
)

// statusTTL expires status-like keys (offset delta, feed status) so stale
// values become visible as absence.
const statusTTL = 5 * time.Minute

// Store is the key-value persistence and fan-out sink backed by redis.
// Values are JSON so the collector's state is inspectable externally.
type Store struct {
	client *redis.Client
}

func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

// Put JSON-marshals value under key. A zero ttl keeps the key forever.
func (s *Store) Put(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	if err := s.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Get unmarshals the value at key into dest. The bool reports presence.
func (s *Store) Get(ctx context.Context, key string, dest any) (bool, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis get %s: %w", key, err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("unmarshal %s: %w", key, err)
	}
	return true, nil
}

// PutSeries persists the full bounded series.
func (s *Store) PutSeries(ctx context.Context, symbol string, tf market.TimeframeMeta, series []market.Candle) error {
	return s.Put(ctx, SeriesKey(symbol, tf.Name), series, 0)
}

// PutLatest persists the most recent candle of one series.
func (s *Store) PutLatest(ctx context.Context, symbol string, tf market.TimeframeMeta, c market.Candle) error {
	return s.Put(ctx, LatestKey(symbol, tf.Name), c, 0)
}

// PublishCandle fans the candle out on the series topic.
func (s *Store) PublishCandle(ctx context.Context, symbol string, tf market.TimeframeMeta, c market.Candle) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal candle: %w", err)
	}
	if err := s.client.Publish(ctx, Topic(symbol, tf.Code), payload).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", Topic(symbol, tf.Code), err)
	}
	return nil
}

// PutOffset persists the current reference-price delta.
func (s *Store) PutOffset(ctx context.Context, symbol string, delta float64) error {
	return s.Put(ctx, OffsetKey(symbol), delta, statusTTL)
}

// SetFeedStatus records the reference feed's state ("online"/"offline").
func (s *Store) SetFeedStatus(ctx context.Context, status string) error {
	return s.Put(ctx, ForexStatusKey(), status, statusTTL)
}
