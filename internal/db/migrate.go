package db

import (
	"microtrade/internal/models"
)

func AutoMigrate(db *DB) error {
	if db == nil || db.Gorm == nil || db.SQL == nil {
		return nil
	}

	return db.Gorm.AutoMigrate(
		&models.Account{},
		&models.Position{},
		&models.Order{},
		&models.Trade{},
		&models.QuoteCache{},
		&models.PortfolioSnapshot{},
		&models.WatchlistItem{},
		&models.StrategyConfig{},
		&models.SystemSetting{},
	)
}
