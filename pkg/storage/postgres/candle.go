package postgres

import (
	"context"
	"time"

	"swapcollector/internal/market"

	"gorm.io/gorm/clause"
)

// InsertCandle archives a finalized candle. The insert is idempotent: a
// conflicting (symbol, timeframe, bucket) row is left untouched so backfill
// overlap and live replay cannot duplicate or rewrite history.
func (p *PostgresClient) InsertCandle(ctx context.Context, record *CandleRecord) error {
	return p.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "symbol"},
			{Name: "timeframe"},
			{Name: "bucket"},
		},
		DoNothing: true,
	}).Create(record).Error
}

// ArchiveCandle converts and stores a closed candle. Satisfies the engine's
// Archiver.
func (p *PostgresClient) ArchiveCandle(ctx context.Context, symbol string, tf market.TimeframeMeta, c market.Candle) error {
	return p.InsertCandle(ctx, ToCandleRecord(symbol, tf, c))
}

// GetCandle fetches one archived candle by its bucket start.
func (p *PostgresClient) GetCandle(ctx context.Context, symbol, timeframe string, bucket time.Time) (*CandleRecord, error) {
	var record CandleRecord
	err := p.DB.WithContext(ctx).
		Where("symbol = ? AND timeframe = ? AND bucket = ?", symbol, timeframe, bucket).
		First(&record).Error

	if err != nil {
		return nil, err
	}
	return &record, nil
}

// DeleteOldCandles prunes archived candles whose bucket started before the
// cutoff.
func (p *PostgresClient) DeleteOldCandles(ctx context.Context, before time.Time) error {
	return p.DB.WithContext(ctx).
		Where("bucket < ?", before).
		Delete(&CandleRecord{}).Error
}

// ToCandleRecord converts a candle into its archive row.
func ToCandleRecord(symbol string, tf market.TimeframeMeta, c market.Candle) *CandleRecord {
	return &CandleRecord{
		Symbol:     symbol,
		Timeframe:  tf.Name,
		Bucket:     time.Unix(c.ID, 0).UTC(),
		Open:       c.Open,
		High:       c.High,
		Low:        c.Low,
		Close:      c.Close,
		Amount:     c.Amount,
		Vol:        c.Vol,
		IngestedAt: time.Unix(c.Time, 0).UTC(),
	}
}
