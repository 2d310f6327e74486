package models

import (
	"time"

	"gorm.io/datatypes"
)

// StrategyConfig binds a built-in strategy to a symbol with JSON parameters.
// The runner executes every enabled config on each tick.
type StrategyConfig struct {
	ID   uint64 `gorm:"primaryKey;autoIncrement"`
	Name string `gorm:"type:varchar(50);not null;index"`

	AccountID uint64 `gorm:"not null;index"`
	Symbol    string `gorm:"type:varchar(20);not null"`
	Market    string `gorm:"type:varchar(10);not null;default:'KR'"`

	// Strategy-specific parameters, e.g. {"order_amount": 100000} for DCA
	// or {"short": 5, "long": 20} for the moving average cross.
	Params datatypes.JSON `gorm:"type:jsonb"`

	Enabled   bool       `gorm:"not null;default:true;index"`
	LastRunAt *time.Time `gorm:"type:timestamptz"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (StrategyConfig) TableName() string {
	return "strategy_configs"
}
