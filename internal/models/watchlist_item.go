package models

import "time"

// WatchlistItem drives the quote refresh and strategy universes.
type WatchlistItem struct {
	ID     uint64 `gorm:"primaryKey;autoIncrement"`
	Symbol string `gorm:"type:varchar(20);not null;uniqueIndex:ux_watchlist_symbol_market"`
	Market string `gorm:"type:varchar(10);not null;uniqueIndex:ux_watchlist_symbol_market"`

	Name    string `gorm:"type:varchar(100)"`
	Enabled bool   `gorm:"not null;default:true;index"`
	Note    string `gorm:"type:text"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (WatchlistItem) TableName() string {
	return "watchlist_items"
}
