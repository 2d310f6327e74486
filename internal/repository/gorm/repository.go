package gormrepository

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"microtrade/internal/models"
	"microtrade/internal/repository"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(fn)
}

// --- Accounts ---------------------------------------------------------------

func (s *Store) UpsertAccount(ctx context.Context, item *models.Account) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	if strings.TrimSpace(item.Name) == "" {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"trading_mode",
			"current_balance",
			"commission_rate",
			"is_active",
			"updated_at",
		}),
	}).Create(item).Error
}

func (s *Store) GetAccountByID(ctx context.Context, id uint64) (*models.Account, error) {
	if s == nil || s.db == nil || id == 0 {
		return nil, nil
	}
	var item models.Account
	err := s.db.WithContext(ctx).Model(&models.Account{}).Where("id = ?", id).First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) GetAccountByName(ctx context.Context, name string) (*models.Account, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}
	var item models.Account
	err := s.db.WithContext(ctx).Model(&models.Account{}).Where("name = ?", name).First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) GetActiveAccount(ctx context.Context, tradingMode string) (*models.Account, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.Account
	err := s.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("trading_mode = ?", strings.ToUpper(strings.TrimSpace(tradingMode))).
		Where("is_active = ?", true).
		Order("id asc").
		First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListAccounts(ctx context.Context) ([]models.Account, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.Account
	if err := s.db.WithContext(ctx).
		Model(&models.Account{}).
		Order("id asc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) UpdateAccountBalanceTx(ctx context.Context, tx *gorm.DB, id uint64, balance decimal.Decimal) error {
	if tx == nil || id == 0 {
		return nil
	}
	return tx.WithContext(ctx).
		Model(&models.Account{}).
		Where("id = ?", id).
		Updates(map[string]any{"current_balance": balance, "updated_at": time.Now().UTC()}).
		Error
}

// --- Positions --------------------------------------------------------------

func (s *Store) GetPosition(ctx context.Context, accountID uint64, symbol, market string, isPaper bool) (*models.Position, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	return findPosition(s.db.WithContext(ctx), accountID, symbol, market, isPaper)
}

// GetPositionForUpdateTx row-locks the position so concurrent fills on the
// same instrument serialize.
func (s *Store) GetPositionForUpdateTx(ctx context.Context, tx *gorm.DB, accountID uint64, symbol, market string, isPaper bool) (*models.Position, error) {
	if tx == nil {
		return nil, nil
	}
	return findPosition(tx.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), accountID, symbol, market, isPaper)
}

func findPosition(db *gorm.DB, accountID uint64, symbol, market string, isPaper bool) (*models.Position, error) {
	symbol = strings.TrimSpace(symbol)
	if accountID == 0 || symbol == "" {
		return nil, nil
	}
	var item models.Position
	err := db.Model(&models.Position{}).
		Where("account_id = ?", accountID).
		Where("symbol = ?", symbol).
		Where("market = ?", market).
		Where("is_paper = ?", isPaper).
		First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) UpsertPositionTx(ctx context.Context, tx *gorm.DB, item *models.Position) error {
	if tx == nil || item == nil {
		return nil
	}
	if strings.TrimSpace(item.Symbol) == "" {
		return nil
	}
	return tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "account_id"}, {Name: "symbol"}, {Name: "market"}, {Name: "is_paper"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"quantity",
			"avg_price",
			"current_price",
			"updated_at",
		}),
	}).Create(item).Error
}

func (s *Store) DeletePositionTx(ctx context.Context, tx *gorm.DB, id uint64) error {
	if tx == nil || id == 0 {
		return nil
	}
	return tx.WithContext(ctx).Where("id = ?", id).Delete(&models.Position{}).Error
}

func (s *Store) ListPositions(ctx context.Context, params repository.ListPositionsParams) ([]models.Position, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.Position{})
	if params.AccountID != nil && *params.AccountID != 0 {
		query = query.Where("account_id = ?", *params.AccountID)
	}
	if params.Market != nil && strings.TrimSpace(*params.Market) != "" {
		query = query.Where("market = ?", strings.TrimSpace(*params.Market))
	}
	if params.IsPaper != nil {
		query = query.Where("is_paper = ?", *params.IsPaper)
	}
	if params.NonZero {
		query = query.Where("quantity > 0")
	}
	query = applyOrder(query, params.OrderBy, params.Asc, "symbol")
	limit := normalizeLimit(params.Limit, 200)
	offset := normalizeOffset(params.Offset)
	var items []models.Position
	if err := query.Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) UpdatePositionPrice(ctx context.Context, accountID uint64, symbol, market string, isPaper bool, price decimal.Decimal) error {
	if s == nil || s.db == nil {
		return nil
	}
	symbol = strings.TrimSpace(symbol)
	if accountID == 0 || symbol == "" {
		return nil
	}
	return s.db.WithContext(ctx).
		Model(&models.Position{}).
		Where("account_id = ?", accountID).
		Where("symbol = ?", symbol).
		Where("market = ?", market).
		Where("is_paper = ?", isPaper).
		Updates(map[string]any{"current_price": price, "updated_at": time.Now().UTC()}).
		Error
}

// --- Orders -----------------------------------------------------------------

func (s *Store) InsertOrder(ctx context.Context, item *models.Order) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) GetOrderByID(ctx context.Context, id uint64) (*models.Order, error) {
	if s == nil || s.db == nil || id == 0 {
		return nil, nil
	}
	var item models.Order
	err := s.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", id).First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func applyOrderFilters(query *gorm.DB, params repository.ListOrdersParams) *gorm.DB {
	if params.AccountID != nil && *params.AccountID != 0 {
		query = query.Where("account_id = ?", *params.AccountID)
	}
	if params.Symbol != nil && strings.TrimSpace(*params.Symbol) != "" {
		query = query.Where("symbol = ?", strings.TrimSpace(*params.Symbol))
	}
	if params.Status != nil && strings.TrimSpace(*params.Status) != "" {
		query = query.Where("status = ?", strings.ToUpper(strings.TrimSpace(*params.Status)))
	}
	if params.IsPaper != nil {
		query = query.Where("is_paper = ?", *params.IsPaper)
	}
	if params.Since != nil && !params.Since.IsZero() {
		query = query.Where("created_at >= ?", *params.Since)
	}
	return query
}

func (s *Store) ListOrders(ctx context.Context, params repository.ListOrdersParams) ([]models.Order, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := applyOrderFilters(s.db.WithContext(ctx).Model(&models.Order{}), params)
	query = applyOrder(query, params.OrderBy, params.Asc, "created_at")
	limit := normalizeLimit(params.Limit, 200)
	offset := normalizeOffset(params.Offset)
	var items []models.Order
	if err := query.Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountOrders(ctx context.Context, params repository.ListOrdersParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	query := applyOrderFilters(s.db.WithContext(ctx).Model(&models.Order{}), params)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (s *Store) UpdateOrderStatus(ctx context.Context, id uint64, status string, updates map[string]any) error {
	if s == nil || s.db == nil {
		return nil
	}
	return updateOrderStatus(s.db.WithContext(ctx), id, status, updates)
}

func (s *Store) UpdateOrderStatusTx(ctx context.Context, tx *gorm.DB, id uint64, status string, updates map[string]any) error {
	if tx == nil {
		return nil
	}
	return updateOrderStatus(tx.WithContext(ctx), id, status, updates)
}

func updateOrderStatus(db *gorm.DB, id uint64, status string, updates map[string]any) error {
	if id == 0 || strings.TrimSpace(status) == "" {
		return nil
	}
	merged := map[string]any{
		"status":     strings.ToUpper(strings.TrimSpace(status)),
		"updated_at": time.Now().UTC(),
	}
	for k, v := range updates {
		merged[k] = v
	}
	return db.Model(&models.Order{}).Where("id = ?", id).Updates(merged).Error
}

// --- Trades -----------------------------------------------------------------

func (s *Store) InsertTradeTx(ctx context.Context, tx *gorm.DB, item *models.Trade) error {
	if tx == nil || item == nil {
		return nil
	}
	return tx.WithContext(ctx).Create(item).Error
}

func applyTradeFilters(query *gorm.DB, params repository.ListTradesParams) *gorm.DB {
	if params.AccountID != nil && *params.AccountID != 0 {
		query = query.Where("account_id = ?", *params.AccountID)
	}
	if params.OrderID != nil && *params.OrderID != 0 {
		query = query.Where("order_id = ?", *params.OrderID)
	}
	if params.Symbol != nil && strings.TrimSpace(*params.Symbol) != "" {
		query = query.Where("symbol = ?", strings.TrimSpace(*params.Symbol))
	}
	if params.IsPaper != nil {
		query = query.Where("is_paper = ?", *params.IsPaper)
	}
	if params.Since != nil && !params.Since.IsZero() {
		query = query.Where("executed_at >= ?", *params.Since)
	}
	if params.Until != nil && !params.Until.IsZero() {
		query = query.Where("executed_at < ?", *params.Until)
	}
	return query
}

func (s *Store) ListTrades(ctx context.Context, params repository.ListTradesParams) ([]models.Trade, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := applyTradeFilters(s.db.WithContext(ctx).Model(&models.Trade{}), params)
	query = applyOrder(query, params.OrderBy, params.Asc, "executed_at")
	limit := normalizeLimit(params.Limit, 200)
	offset := normalizeOffset(params.Offset)
	var items []models.Trade
	if err := query.Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountTrades(ctx context.Context, params repository.ListTradesParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	query := applyTradeFilters(s.db.WithContext(ctx).Model(&models.Trade{}), params)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (s *Store) SumRealizedPnl(ctx context.Context, accountID uint64, isPaper bool) (decimal.Decimal, error) {
	if s == nil || s.db == nil || accountID == 0 {
		return decimal.Zero, nil
	}
	var total decimal.NullDecimal
	err := s.db.WithContext(ctx).
		Model(&models.Trade{}).
		Select("SUM(realized_pnl)").
		Where("account_id = ?", accountID).
		Where("is_paper = ?", isPaper).
		Scan(&total).Error
	if err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}

// --- Quote cache ------------------------------------------------------------

func (s *Store) UpsertQuote(ctx context.Context, item *models.QuoteCache) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	if strings.TrimSpace(item.Symbol) == "" {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "symbol"}, {Name: "market"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"price",
			"prev_close",
			"change_rate",
			"volume",
			"fetched_at",
			"updated_at",
		}),
	}).Create(item).Error
}

func (s *Store) GetQuote(ctx context.Context, symbol, market string) (*models.QuoteCache, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return nil, nil
	}
	var item models.QuoteCache
	err := s.db.WithContext(ctx).
		Model(&models.QuoteCache{}).
		Where("symbol = ?", symbol).
		Where("market = ?", market).
		First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListQuotes(ctx context.Context, market string) ([]models.QuoteCache, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.QuoteCache{})
	if strings.TrimSpace(market) != "" {
		query = query.Where("market = ?", strings.TrimSpace(market))
	}
	var items []models.QuoteCache
	if err := query.Order("symbol asc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// --- Portfolio snapshots ----------------------------------------------------

func (s *Store) UpsertPortfolioSnapshot(ctx context.Context, item *models.PortfolioSnapshot) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "account_id"}, {Name: "date"}, {Name: "trading_mode"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"cash_balance",
			"positions_value",
			"total_value",
			"profit_loss",
			"return_pct",
			"position_count",
			"updated_at",
		}),
	}).Create(item).Error
}

func (s *Store) GetPortfolioSnapshot(ctx context.Context, accountID uint64, date time.Time, tradingMode string) (*models.PortfolioSnapshot, error) {
	if s == nil || s.db == nil || accountID == 0 {
		return nil, nil
	}
	var item models.PortfolioSnapshot
	err := s.db.WithContext(ctx).
		Model(&models.PortfolioSnapshot{}).
		Where("account_id = ?", accountID).
		Where("date = ?", date.Format("2006-01-02")).
		Where("trading_mode = ?", strings.ToUpper(strings.TrimSpace(tradingMode))).
		First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListPortfolioSnapshots(ctx context.Context, params repository.ListPortfolioSnapshotsParams) ([]models.PortfolioSnapshot, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.PortfolioSnapshot{})
	if params.AccountID != nil && *params.AccountID != 0 {
		query = query.Where("account_id = ?", *params.AccountID)
	}
	if params.TradingMode != nil && strings.TrimSpace(*params.TradingMode) != "" {
		query = query.Where("trading_mode = ?", strings.ToUpper(strings.TrimSpace(*params.TradingMode)))
	}
	if params.Since != nil && !params.Since.IsZero() {
		query = query.Where("date >= ?", params.Since.Format("2006-01-02"))
	}
	if params.Until != nil && !params.Until.IsZero() {
		query = query.Where("date <= ?", params.Until.Format("2006-01-02"))
	}
	limit := normalizeLimit(params.Limit, 200)
	offset := normalizeOffset(params.Offset)
	var items []models.PortfolioSnapshot
	if err := query.Order("date desc").Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// --- Watchlist --------------------------------------------------------------

func (s *Store) UpsertWatchlistItem(ctx context.Context, item *models.WatchlistItem) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	if strings.TrimSpace(item.Symbol) == "" {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "symbol"}, {Name: "market"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name",
			"enabled",
			"note",
			"updated_at",
		}),
	}).Create(item).Error
}

func (s *Store) ListWatchlistItems(ctx context.Context, params repository.ListWatchlistParams) ([]models.WatchlistItem, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.WatchlistItem{})
	if params.Market != nil && strings.TrimSpace(*params.Market) != "" {
		query = query.Where("market = ?", strings.TrimSpace(*params.Market))
	}
	if params.Enabled != nil {
		query = query.Where("enabled = ?", *params.Enabled)
	}
	limit := normalizeLimit(params.Limit, 200)
	offset := normalizeOffset(params.Offset)
	var items []models.WatchlistItem
	if err := query.Order("symbol asc").Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) DeleteWatchlistItem(ctx context.Context, symbol, market string) error {
	if s == nil || s.db == nil {
		return nil
	}
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return nil
	}
	return s.db.WithContext(ctx).
		Where("symbol = ?", symbol).
		Where("market = ?", market).
		Delete(&models.WatchlistItem{}).Error
}

// --- Strategy configs -------------------------------------------------------

func (s *Store) UpsertStrategyConfig(ctx context.Context, item *models.StrategyConfig) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	if strings.TrimSpace(item.Name) == "" {
		return nil
	}
	if item.ID != 0 {
		return s.db.WithContext(ctx).Save(item).Error
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) GetStrategyConfigByID(ctx context.Context, id uint64) (*models.StrategyConfig, error) {
	if s == nil || s.db == nil || id == 0 {
		return nil, nil
	}
	var item models.StrategyConfig
	err := s.db.WithContext(ctx).Model(&models.StrategyConfig{}).Where("id = ?", id).First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListStrategyConfigs(ctx context.Context, params repository.ListStrategyConfigsParams) ([]models.StrategyConfig, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.StrategyConfig{})
	if params.Name != nil && strings.TrimSpace(*params.Name) != "" {
		query = query.Where("name = ?", strings.TrimSpace(*params.Name))
	}
	if params.AccountID != nil && *params.AccountID != 0 {
		query = query.Where("account_id = ?", *params.AccountID)
	}
	if params.Enabled != nil {
		query = query.Where("enabled = ?", *params.Enabled)
	}
	limit := normalizeLimit(params.Limit, 200)
	offset := normalizeOffset(params.Offset)
	var items []models.StrategyConfig
	if err := query.Order("id asc").Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) SetStrategyConfigEnabled(ctx context.Context, id uint64, enabled bool) error {
	if s == nil || s.db == nil || id == 0 {
		return nil
	}
	return s.db.WithContext(ctx).
		Model(&models.StrategyConfig{}).
		Where("id = ?", id).
		Updates(map[string]any{"enabled": enabled, "updated_at": time.Now().UTC()}).
		Error
}

func (s *Store) UpdateStrategyConfigLastRun(ctx context.Context, id uint64, at time.Time) error {
	if s == nil || s.db == nil || id == 0 {
		return nil
	}
	return s.db.WithContext(ctx).
		Model(&models.StrategyConfig{}).
		Where("id = ?", id).
		Updates(map[string]any{"last_run_at": at, "updated_at": time.Now().UTC()}).
		Error
}

func (s *Store) DeleteStrategyConfig(ctx context.Context, id uint64) error {
	if s == nil || s.db == nil || id == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.StrategyConfig{}).Error
}

// --- System settings --------------------------------------------------------

func (s *Store) UpsertSystemSetting(ctx context.Context, item *models.SystemSetting) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	if strings.TrimSpace(item.Key) == "" {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"value",
			"description",
			"updated_at",
		}),
	}).Create(item).Error
}

func (s *Store) GetSystemSettingByKey(ctx context.Context, key string) (*models.SystemSetting, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, nil
	}
	var item models.SystemSetting
	err := s.db.WithContext(ctx).Model(&models.SystemSetting{}).Where("key = ?", key).First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// --- helpers ----------------------------------------------------------------

func applyOrder(query *gorm.DB, orderBy string, asc *bool, fallback string) *gorm.DB {
	column := strings.TrimSpace(orderBy)
	if column == "" {
		column = fallback
	}
	direction := "desc"
	if asc != nil && *asc {
		direction = "asc"
	}
	return query.Order(column + " " + direction)
}

func normalizeLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > 500 {
		return 500
	}
	return limit
}

func normalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}
