package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order lifecycle: PENDING -> SUBMITTED -> FILLED | REJECTED, with
// CANCELLED reachable from PENDING and SUBMITTED.
type Order struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement"`
	AccountID uint64 `gorm:"not null;index"`

	Symbol string `gorm:"type:varchar(20);not null;index"`
	Market string `gorm:"type:varchar(10);not null"`

	Side      string `gorm:"type:varchar(10);not null"`
	OrderType string `gorm:"type:varchar(10);not null;default:'MARKET'"`

	Source       string `gorm:"type:varchar(20);not null;default:'manual';index"`
	StrategyName string `gorm:"type:varchar(50)"`

	Quantity   int64            `gorm:"not null"`
	LimitPrice *decimal.Decimal `gorm:"type:numeric(20,4)"`

	Status  string `gorm:"type:varchar(20);not null;default:'PENDING';index"`
	IsPaper bool   `gorm:"not null;index"`

	BrokerOrderID string `gorm:"type:varchar(100);index"`
	RejectReason  string `gorm:"type:text"`

	FilledPrice    *decimal.Decimal `gorm:"type:numeric(20,4)"`
	FilledQuantity int64            `gorm:"not null;default:0"`

	SubmittedAt *time.Time `gorm:"type:timestamptz"`
	FilledAt    *time.Time `gorm:"type:timestamptz"`
	CancelledAt *time.Time `gorm:"type:timestamptz"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime;index"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (Order) TableName() string {
	return "orders"
}
