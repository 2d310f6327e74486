package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"microtrade/internal/models"
	"microtrade/internal/repository"
)

// stubRepo is a test-only in-memory implementation of repository.Repository.
// It implements the full interface but only the parts the ledger touches
// behave like the real store.
type stubRepo struct {
	accounts  []*models.Account
	positions map[string]*models.Position
	orders    map[uint64]*models.Order
	trades    []models.Trade
	quotes    map[string]*models.QuoteCache
	snapshots map[string]*models.PortfolioSnapshot
	settings  map[string]*models.SystemSetting

	nextOrderID    uint64
	nextPositionID uint64
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		positions: map[string]*models.Position{},
		orders:    map[uint64]*models.Order{},
		quotes:    map[string]*models.QuoteCache{},
		snapshots: map[string]*models.PortfolioSnapshot{},
		settings:  map[string]*models.SystemSetting{},
	}
}

func posKey(accountID uint64, symbol, market string, isPaper bool) string {
	return fmt.Sprintf("%d|%s|%s|%t", accountID, symbol, market, isPaper)
}

func snapKey(accountID uint64, date time.Time, mode string) string {
	return fmt.Sprintf("%d|%s|%s", accountID, date.Format("2006-01-02"), mode)
}

func (s *stubRepo) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error { return fn(nil) }

func (s *stubRepo) UpsertAccount(ctx context.Context, item *models.Account) error {
	if item.ID == 0 {
		item.ID = uint64(len(s.accounts) + 1)
	}
	s.accounts = append(s.accounts, item)
	return nil
}

func (s *stubRepo) GetAccountByID(ctx context.Context, id uint64) (*models.Account, error) {
	for _, a := range s.accounts {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, nil
}

func (s *stubRepo) GetAccountByName(ctx context.Context, name string) (*models.Account, error) {
	for _, a := range s.accounts {
		if a.Name == name {
			return a, nil
		}
	}
	return nil, nil
}

func (s *stubRepo) GetActiveAccount(ctx context.Context, tradingMode string) (*models.Account, error) {
	for _, a := range s.accounts {
		if a.TradingMode == tradingMode && a.IsActive {
			return a, nil
		}
	}
	return nil, nil
}

func (s *stubRepo) ListAccounts(ctx context.Context) ([]models.Account, error) {
	out := make([]models.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, *a)
	}
	return out, nil
}

func (s *stubRepo) UpdateAccountBalanceTx(ctx context.Context, tx *gorm.DB, id uint64, balance decimal.Decimal) error {
	for _, a := range s.accounts {
		if a.ID == id {
			a.CurrentBalance = balance
			return nil
		}
	}
	return fmt.Errorf("account %d not found", id)
}

func (s *stubRepo) GetPosition(ctx context.Context, accountID uint64, symbol, market string, isPaper bool) (*models.Position, error) {
	if pos, ok := s.positions[posKey(accountID, symbol, market, isPaper)]; ok {
		cp := *pos
		return &cp, nil
	}
	return nil, nil
}

func (s *stubRepo) GetPositionForUpdateTx(ctx context.Context, tx *gorm.DB, accountID uint64, symbol, market string, isPaper bool) (*models.Position, error) {
	return s.GetPosition(ctx, accountID, symbol, market, isPaper)
}

func (s *stubRepo) UpsertPositionTx(ctx context.Context, tx *gorm.DB, item *models.Position) error {
	if item.ID == 0 {
		s.nextPositionID++
		item.ID = s.nextPositionID
	}
	cp := *item
	s.positions[posKey(item.AccountID, item.Symbol, item.Market, item.IsPaper)] = &cp
	return nil
}

func (s *stubRepo) DeletePositionTx(ctx context.Context, tx *gorm.DB, id uint64) error {
	for key, pos := range s.positions {
		if pos.ID == id {
			delete(s.positions, key)
			return nil
		}
	}
	return nil
}

func (s *stubRepo) ListPositions(ctx context.Context, params repository.ListPositionsParams) ([]models.Position, error) {
	var out []models.Position
	for _, pos := range s.positions {
		if params.AccountID != nil && pos.AccountID != *params.AccountID {
			continue
		}
		if params.IsPaper != nil && pos.IsPaper != *params.IsPaper {
			continue
		}
		if params.NonZero && pos.Quantity == 0 {
			continue
		}
		out = append(out, *pos)
	}
	return out, nil
}

func (s *stubRepo) UpdatePositionPrice(ctx context.Context, accountID uint64, symbol, market string, isPaper bool, price decimal.Decimal) error {
	if pos, ok := s.positions[posKey(accountID, symbol, market, isPaper)]; ok {
		pos.CurrentPrice = price
	}
	return nil
}

func (s *stubRepo) InsertOrder(ctx context.Context, item *models.Order) error {
	s.nextOrderID++
	item.ID = s.nextOrderID
	s.orders[item.ID] = item
	return nil
}

func (s *stubRepo) GetOrderByID(ctx context.Context, id uint64) (*models.Order, error) {
	return s.orders[id], nil
}

func (s *stubRepo) ListOrders(ctx context.Context, params repository.ListOrdersParams) ([]models.Order, error) {
	var out []models.Order
	for _, o := range s.orders {
		out = append(out, *o)
	}
	return out, nil
}

func (s *stubRepo) CountOrders(ctx context.Context, params repository.ListOrdersParams) (int64, error) {
	return int64(len(s.orders)), nil
}

func (s *stubRepo) applyOrderUpdate(id uint64, status string, updates map[string]any) error {
	order, ok := s.orders[id]
	if !ok {
		return fmt.Errorf("order %d not found", id)
	}
	order.Status = status
	if v, ok := updates["reject_reason"].(string); ok {
		order.RejectReason = v
	}
	if v, ok := updates["broker_order_id"].(string); ok {
		order.BrokerOrderID = v
	}
	return nil
}

func (s *stubRepo) UpdateOrderStatus(ctx context.Context, id uint64, status string, updates map[string]any) error {
	return s.applyOrderUpdate(id, status, updates)
}

func (s *stubRepo) UpdateOrderStatusTx(ctx context.Context, tx *gorm.DB, id uint64, status string, updates map[string]any) error {
	return s.applyOrderUpdate(id, status, updates)
}

func (s *stubRepo) InsertTradeTx(ctx context.Context, tx *gorm.DB, item *models.Trade) error {
	item.ID = uint64(len(s.trades) + 1)
	s.trades = append(s.trades, *item)
	return nil
}

func (s *stubRepo) ListTrades(ctx context.Context, params repository.ListTradesParams) ([]models.Trade, error) {
	return s.trades, nil
}

func (s *stubRepo) CountTrades(ctx context.Context, params repository.ListTradesParams) (int64, error) {
	return int64(len(s.trades)), nil
}

func (s *stubRepo) SumRealizedPnl(ctx context.Context, accountID uint64, isPaper bool) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, tr := range s.trades {
		if tr.AccountID == accountID && tr.IsPaper == isPaper {
			sum = sum.Add(tr.RealizedPnl)
		}
	}
	return sum, nil
}

func (s *stubRepo) UpsertQuote(ctx context.Context, item *models.QuoteCache) error {
	cp := *item
	s.quotes[item.Symbol+"|"+item.Market] = &cp
	return nil
}

func (s *stubRepo) GetQuote(ctx context.Context, symbol, market string) (*models.QuoteCache, error) {
	if q, ok := s.quotes[symbol+"|"+market]; ok {
		cp := *q
		return &cp, nil
	}
	return nil, nil
}

func (s *stubRepo) ListQuotes(ctx context.Context, market string) ([]models.QuoteCache, error) {
	var out []models.QuoteCache
	for _, q := range s.quotes {
		out = append(out, *q)
	}
	return out, nil
}

func (s *stubRepo) UpsertPortfolioSnapshot(ctx context.Context, item *models.PortfolioSnapshot) error {
	cp := *item
	s.snapshots[snapKey(item.AccountID, item.Date, item.TradingMode)] = &cp
	return nil
}

func (s *stubRepo) GetPortfolioSnapshot(ctx context.Context, accountID uint64, date time.Time, tradingMode string) (*models.PortfolioSnapshot, error) {
	if snap, ok := s.snapshots[snapKey(accountID, date, tradingMode)]; ok {
		cp := *snap
		return &cp, nil
	}
	return nil, nil
}

func (s *stubRepo) ListPortfolioSnapshots(ctx context.Context, params repository.ListPortfolioSnapshotsParams) ([]models.PortfolioSnapshot, error) {
	var out []models.PortfolioSnapshot
	for _, snap := range s.snapshots {
		out = append(out, *snap)
	}
	return out, nil
}

func (s *stubRepo) UpsertWatchlistItem(ctx context.Context, item *models.WatchlistItem) error {
	return nil
}

func (s *stubRepo) ListWatchlistItems(ctx context.Context, params repository.ListWatchlistParams) ([]models.WatchlistItem, error) {
	return nil, nil
}

func (s *stubRepo) DeleteWatchlistItem(ctx context.Context, symbol, market string) error { return nil }

func (s *stubRepo) UpsertStrategyConfig(ctx context.Context, item *models.StrategyConfig) error {
	return nil
}

func (s *stubRepo) GetStrategyConfigByID(ctx context.Context, id uint64) (*models.StrategyConfig, error) {
	return nil, nil
}

func (s *stubRepo) ListStrategyConfigs(ctx context.Context, params repository.ListStrategyConfigsParams) ([]models.StrategyConfig, error) {
	return nil, nil
}

func (s *stubRepo) SetStrategyConfigEnabled(ctx context.Context, id uint64, enabled bool) error {
	return nil
}

func (s *stubRepo) UpdateStrategyConfigLastRun(ctx context.Context, id uint64, at time.Time) error {
	return nil
}

func (s *stubRepo) DeleteStrategyConfig(ctx context.Context, id uint64) error { return nil }

func (s *stubRepo) UpsertSystemSetting(ctx context.Context, item *models.SystemSetting) error {
	cp := *item
	s.settings[item.Key] = &cp
	return nil
}

func (s *stubRepo) GetSystemSettingByKey(ctx context.Context, key string) (*models.SystemSetting, error) {
	if row, ok := s.settings[key]; ok {
		cp := *row
		return &cp, nil
	}
	return nil, nil
}
