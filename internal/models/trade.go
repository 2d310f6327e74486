package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trade is an append-only execution record. RealizedPnl is nonzero only
// for sells; CostBasis carries the average cost consumed by the fill.
type Trade struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement"`
	OrderID   uint64 `gorm:"not null;index"`
	AccountID uint64 `gorm:"not null;index"`

	Symbol string `gorm:"type:varchar(20);not null;index"`
	Market string `gorm:"type:varchar(10);not null"`
	Side   string `gorm:"type:varchar(10);not null"`

	Quantity    int64           `gorm:"not null"`
	Price       decimal.Decimal `gorm:"type:numeric(20,4);not null"`
	TotalAmount decimal.Decimal `gorm:"type:numeric(30,4);not null"`
	Commission  decimal.Decimal `gorm:"type:numeric(20,4);not null;default:0"`
	RealizedPnl decimal.Decimal `gorm:"column:realized_pnl;type:numeric(30,4);not null;default:0"`
	CostBasis   decimal.Decimal `gorm:"type:numeric(30,4);not null;default:0"`

	IsPaper bool `gorm:"not null;index"`

	ExecutedAt time.Time `gorm:"type:timestamptz;not null;index"`
	CreatedAt  time.Time `gorm:"type:timestamptz;autoCreateTime"`
}

func (Trade) TableName() string {
	return "trades"
}
