package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"microtrade/internal/models"
)

// Repository is the persistence surface for the trading service. Methods
// with a Tx suffix run inside a caller-provided transaction opened by InTx;
// the rest manage their own connection.
type Repository interface {
	InTx(ctx context.Context, fn func(tx *gorm.DB) error) error

	// Accounts
	UpsertAccount(ctx context.Context, item *models.Account) error
	GetAccountByID(ctx context.Context, id uint64) (*models.Account, error)
	GetAccountByName(ctx context.Context, name string) (*models.Account, error)
	GetActiveAccount(ctx context.Context, tradingMode string) (*models.Account, error)
	ListAccounts(ctx context.Context) ([]models.Account, error)
	UpdateAccountBalanceTx(ctx context.Context, tx *gorm.DB, id uint64, balance decimal.Decimal) error

	// Positions
	GetPosition(ctx context.Context, accountID uint64, symbol, market string, isPaper bool) (*models.Position, error)
	GetPositionForUpdateTx(ctx context.Context, tx *gorm.DB, accountID uint64, symbol, market string, isPaper bool) (*models.Position, error)
	UpsertPositionTx(ctx context.Context, tx *gorm.DB, item *models.Position) error
	DeletePositionTx(ctx context.Context, tx *gorm.DB, id uint64) error
	ListPositions(ctx context.Context, params ListPositionsParams) ([]models.Position, error)
	UpdatePositionPrice(ctx context.Context, accountID uint64, symbol, market string, isPaper bool, price decimal.Decimal) error

	// Orders
	InsertOrder(ctx context.Context, item *models.Order) error
	GetOrderByID(ctx context.Context, id uint64) (*models.Order, error)
	ListOrders(ctx context.Context, params ListOrdersParams) ([]models.Order, error)
	CountOrders(ctx context.Context, params ListOrdersParams) (int64, error)
	UpdateOrderStatus(ctx context.Context, id uint64, status string, updates map[string]any) error
	UpdateOrderStatusTx(ctx context.Context, tx *gorm.DB, id uint64, status string, updates map[string]any) error

	// Trades
	InsertTradeTx(ctx context.Context, tx *gorm.DB, item *models.Trade) error
	ListTrades(ctx context.Context, params ListTradesParams) ([]models.Trade, error)
	CountTrades(ctx context.Context, params ListTradesParams) (int64, error)
	SumRealizedPnl(ctx context.Context, accountID uint64, isPaper bool) (decimal.Decimal, error)

	// Quote cache
	UpsertQuote(ctx context.Context, item *models.QuoteCache) error
	GetQuote(ctx context.Context, symbol, market string) (*models.QuoteCache, error)
	ListQuotes(ctx context.Context, market string) ([]models.QuoteCache, error)

	// Portfolio snapshots
	UpsertPortfolioSnapshot(ctx context.Context, item *models.PortfolioSnapshot) error
	GetPortfolioSnapshot(ctx context.Context, accountID uint64, date time.Time, tradingMode string) (*models.PortfolioSnapshot, error)
	ListPortfolioSnapshots(ctx context.Context, params ListPortfolioSnapshotsParams) ([]models.PortfolioSnapshot, error)

	// Watchlist
	UpsertWatchlistItem(ctx context.Context, item *models.WatchlistItem) error
	ListWatchlistItems(ctx context.Context, params ListWatchlistParams) ([]models.WatchlistItem, error)
	DeleteWatchlistItem(ctx context.Context, symbol, market string) error

	// Strategy configs
	UpsertStrategyConfig(ctx context.Context, item *models.StrategyConfig) error
	GetStrategyConfigByID(ctx context.Context, id uint64) (*models.StrategyConfig, error)
	ListStrategyConfigs(ctx context.Context, params ListStrategyConfigsParams) ([]models.StrategyConfig, error)
	SetStrategyConfigEnabled(ctx context.Context, id uint64, enabled bool) error
	UpdateStrategyConfigLastRun(ctx context.Context, id uint64, at time.Time) error
	DeleteStrategyConfig(ctx context.Context, id uint64) error

	// System settings
	UpsertSystemSetting(ctx context.Context, item *models.SystemSetting) error
	GetSystemSettingByKey(ctx context.Context, key string) (*models.SystemSetting, error)
}

type ListPositionsParams struct {
	Limit     int
	Offset    int
	AccountID *uint64
	Market    *string
	IsPaper   *bool
	NonZero   bool
	OrderBy   string
	Asc       *bool
}

type ListOrdersParams struct {
	Limit     int
	Offset    int
	AccountID *uint64
	Symbol    *string
	Status    *string
	IsPaper   *bool
	Since     *time.Time
	OrderBy   string
	Asc       *bool
}

type ListTradesParams struct {
	Limit     int
	Offset    int
	AccountID *uint64
	OrderID   *uint64
	Symbol    *string
	IsPaper   *bool
	Since     *time.Time
	Until     *time.Time
	OrderBy   string
	Asc       *bool
}

type ListPortfolioSnapshotsParams struct {
	Limit       int
	Offset      int
	AccountID   *uint64
	TradingMode *string
	Since       *time.Time
	Until       *time.Time
}

type ListWatchlistParams struct {
	Limit   int
	Offset  int
	Market  *string
	Enabled *bool
}

type ListStrategyConfigsParams struct {
	Limit     int
	Offset    int
	Name      *string
	AccountID *uint64
	Enabled   *bool
}
