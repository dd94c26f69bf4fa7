package postgres

import "time"

// CandleRecord is a finalized candle archived once its bucket closes.
type CandleRecord struct {
	ID uint `gorm:"primaryKey"`

	// unique index
	Symbol    string    `gorm:"type:text;not null;index:idx_candle_symbol;index:idx_symbol_timeframe_bucket,unique"`
	Timeframe string    `gorm:"type:varchar(10);not null;index:idx_symbol_timeframe_bucket,unique"`
	Bucket    time.Time `gorm:"not null;index:idx_symbol_timeframe_bucket,unique"`

	Open  float64 `gorm:"type:numeric;not null"`
	High  float64 `gorm:"type:numeric;not null"`
	Low   float64 `gorm:"type:numeric;not null"`
	Close float64 `gorm:"type:numeric;not null"`

	Amount float64 `gorm:"type:numeric;not null"`
	Vol    float64 `gorm:"type:numeric;not null"`

	IngestedAt time.Time `gorm:"not null;index:idx_candle_ingested_at"`

	RecordedAt time.Time `gorm:"autoCreateTime"`
}

// TableName overrides the default table name for GORM.
func (CandleRecord) TableName() string {
	return "candle_record"
}
