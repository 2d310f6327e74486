package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Position struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement"`
	AccountID uint64 `gorm:"not null;uniqueIndex:ux_positions_account_symbol"`
	Symbol    string `gorm:"type:varchar(20);not null;uniqueIndex:ux_positions_account_symbol;index"`
	Market    string `gorm:"type:varchar(10);not null;uniqueIndex:ux_positions_account_symbol"`
	IsPaper   bool   `gorm:"not null;uniqueIndex:ux_positions_account_symbol;index"`

	Quantity int64           `gorm:"not null;default:0"`
	AvgPrice decimal.Decimal `gorm:"type:numeric(20,4);not null;default:0"`

	// Last price seen by the quote refresher. Valuation fallback when the
	// cache has nothing fresher.
	CurrentPrice decimal.Decimal `gorm:"type:numeric(20,4);not null;default:0"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime;index"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (Position) TableName() string {
	return "positions"
}

// CostBasis is quantity times average entry price.
func (p *Position) CostBasis() decimal.Decimal {
	return p.AvgPrice.Mul(decimal.NewFromInt(p.Quantity))
}

// MarketValue values the position at the given price.
func (p *Position) MarketValue(price decimal.Decimal) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(p.Quantity))
}
