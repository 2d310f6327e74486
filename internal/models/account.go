package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account is a trading account. Paper and real accounts share the schema;
// CurrentBalance is authoritative only for paper accounts, real balances
// come from the broker.
type Account struct {
	ID   uint64 `gorm:"primaryKey;autoIncrement"`
	Name string `gorm:"type:varchar(100);not null;uniqueIndex"`

	TradingMode string `gorm:"type:varchar(10);not null;default:'PAPER';index"`

	InitialBalance decimal.Decimal `gorm:"type:numeric(30,4);not null;default:0"`
	CurrentBalance decimal.Decimal `gorm:"type:numeric(30,4);not null;default:0"`
	CommissionRate decimal.Decimal `gorm:"type:numeric(10,6);not null;default:0.0005"`

	IsActive bool `gorm:"not null;default:true;index"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (Account) TableName() string {
	return "accounts"
}

func (a *Account) IsPaper() bool {
	return a.TradingMode == "PAPER"
}
