package models

import "time"

// QuoteCache is the persisted quote tier. One row per instrument, upserted
// on every successful fetch. Raw market data stays float64; money math
// downstream converts to decimal at the edge.
type QuoteCache struct {
	ID     uint64 `gorm:"primaryKey;autoIncrement"`
	Symbol string `gorm:"type:varchar(20);not null;uniqueIndex:ux_quote_cache_symbol_market"`
	Market string `gorm:"type:varchar(10);not null;uniqueIndex:ux_quote_cache_symbol_market"`

	Price      float64 `gorm:"type:double precision;not null"`
	PrevClose  float64 `gorm:"type:double precision;not null;default:0"`
	ChangeRate float64 `gorm:"type:double precision;not null;default:0"`
	Volume     int64   `gorm:"not null;default:0"`

	FetchedAt time.Time `gorm:"type:timestamptz;not null;index"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (QuoteCache) TableName() string {
	return "quote_cache"
}
