package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PortfolioSnapshot is one end-of-day valuation per account, date and
// trading mode. The snapshot job skips keys that already have a row, so
// repeated runs within a day are no-ops.
type PortfolioSnapshot struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement"`
	AccountID uint64 `gorm:"not null;uniqueIndex:ux_snapshots_account_date_mode"`

	Date        time.Time `gorm:"type:date;not null;uniqueIndex:ux_snapshots_account_date_mode;index"`
	TradingMode string    `gorm:"type:varchar(10);not null;uniqueIndex:ux_snapshots_account_date_mode"`

	CashBalance    decimal.Decimal `gorm:"type:numeric(30,4);not null"`
	PositionsValue decimal.Decimal `gorm:"type:numeric(30,4);not null"`
	TotalValue     decimal.Decimal `gorm:"type:numeric(30,4);not null"`
	ProfitLoss     decimal.Decimal `gorm:"type:numeric(30,4);not null"`
	ReturnPct      decimal.Decimal `gorm:"type:numeric(12,4);not null;default:0"`

	PositionCount int `gorm:"not null;default:0"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (PortfolioSnapshot) TableName() string {
	return "portfolio_snapshots"
}
