package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"microtrade/internal/broker"
	"microtrade/internal/marketdata"
	"microtrade/internal/models"
	"microtrade/internal/repository"
	"microtrade/internal/trading"
)

// PositionValue is one open position marked to the latest known price.
type PositionValue struct {
	Symbol        string
	Market        string
	Quantity      int64
	AvgPrice      decimal.Decimal
	CurrentPrice  decimal.Decimal
	Invested      decimal.Decimal
	MarketValue   decimal.Decimal
	UnrealizedPnl decimal.Decimal
}

type Summary struct {
	AccountID        uint64
	TradingMode      string
	Cash             decimal.Decimal
	TotalInvested    decimal.Decimal
	TotalMarketValue decimal.Decimal
	UnrealizedPnl    decimal.Decimal
	RealizedPnl      decimal.Decimal
	TotalPnl         decimal.Decimal
	TotalValue       decimal.Decimal
	ReturnPct        decimal.Decimal
	Orderable        decimal.Decimal
	Positions        []PositionValue
}

// PortfolioLedger derives account valuations and writes idempotent daily
// snapshots.
type PortfolioLedger struct {
	Repo     repository.Repository
	Cache    *marketdata.Cache
	Registry *broker.Registry
	Logger   *zap.Logger

	// test hook
	now func() time.Time
}

func NewPortfolioLedger(repo repository.Repository, cache *marketdata.Cache, registry *broker.Registry, logger *zap.Logger) *PortfolioLedger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PortfolioLedger{Repo: repo, Cache: cache, Registry: registry, Logger: logger, now: time.Now}
}

// GetSummary values the active account for the mode. Quote failures fall
// back to average cost so a dead feed never zeroes the portfolio.
func (l *PortfolioLedger) GetSummary(ctx context.Context, mode trading.Mode) (*Summary, error) {
	acct, err := l.Repo.GetActiveAccount(ctx, string(mode))
	if err != nil {
		return nil, err
	}
	if acct == nil {
		return nil, ErrAccountNotFound
	}
	return l.summarize(ctx, acct)
}

func (l *PortfolioLedger) summarize(ctx context.Context, acct *models.Account) (*Summary, error) {
	mode := trading.Mode(acct.TradingMode)
	paper := mode.IsPaper()

	positions, err := l.Repo.ListPositions(ctx, repository.ListPositionsParams{
		AccountID: &acct.ID,
		IsPaper:   &paper,
		NonZero:   true,
	})
	if err != nil {
		return nil, err
	}

	sum := &Summary{
		AccountID:   acct.ID,
		TradingMode: acct.TradingMode,
	}
	for _, pos := range positions {
		qty := decimal.NewFromInt(pos.Quantity)
		price := pos.AvgPrice
		if l.Cache != nil {
			if q := l.Cache.GetQuote(ctx, pos.Symbol, trading.Market(pos.Market)); q.Price > 0 {
				price = decimal.NewFromFloat(q.Price)
			}
		}
		pv := PositionValue{
			Symbol:       pos.Symbol,
			Market:       pos.Market,
			Quantity:     pos.Quantity,
			AvgPrice:     pos.AvgPrice,
			CurrentPrice: price,
			Invested:     pos.AvgPrice.Mul(qty),
			MarketValue:  price.Mul(qty),
		}
		pv.UnrealizedPnl = pv.MarketValue.Sub(pv.Invested)
		sum.Positions = append(sum.Positions, pv)
		sum.TotalInvested = sum.TotalInvested.Add(pv.Invested)
		sum.TotalMarketValue = sum.TotalMarketValue.Add(pv.MarketValue)
	}
	sum.UnrealizedPnl = sum.TotalMarketValue.Sub(sum.TotalInvested)

	sum.RealizedPnl, err = l.Repo.SumRealizedPnl(ctx, acct.ID, paper)
	if err != nil {
		return nil, err
	}

	sum.Cash = l.cashFor(ctx, acct, mode)
	sum.TotalPnl = sum.UnrealizedPnl.Add(sum.RealizedPnl)
	sum.TotalValue = sum.TotalMarketValue.Add(sum.Cash)
	if acct.InitialBalance.IsPositive() {
		sum.ReturnPct = sum.TotalPnl.Div(acct.InitialBalance).Mul(decimal.NewFromInt(100))
	}
	rate := acct.CommissionRate
	if !paper {
		rate = realCommissionRate
	}
	sum.Orderable = sum.Cash.Div(decimal.NewFromInt(1).Add(rate))
	return sum, nil
}

// cashFor returns the paper balance from our ledger, or the live broker
// balance in real mode. An all-zero broker balance is passed through as
// zero; callers treat it as "retry later", not truth.
func (l *PortfolioLedger) cashFor(ctx context.Context, acct *models.Account, mode trading.Mode) decimal.Decimal {
	if mode.IsPaper() || l.Registry == nil {
		return acct.CurrentBalance
	}
	gw, err := l.Registry.Get(ctx, mode)
	if err != nil {
		l.Logger.Warn("gateway unavailable for balance", zap.Error(err))
		return decimal.Zero
	}
	return gw.GetBalance(ctx).Cash
}

// TakeDailySnapshot writes one snapshot per account for today, skipping
// accounts that already have one. Safe to run any number of times per day.
func (l *PortfolioLedger) TakeDailySnapshot(ctx context.Context) (int, error) {
	accounts, err := l.Repo.ListAccounts(ctx)
	if err != nil {
		return 0, err
	}
	today := l.today()

	written := 0
	for i := range accounts {
		acct := &accounts[i]
		existing, err := l.Repo.GetPortfolioSnapshot(ctx, acct.ID, today, acct.TradingMode)
		if err != nil {
			l.Logger.Error("snapshot lookup failed",
				zap.Uint64("account_id", acct.ID), zap.Error(err))
			continue
		}
		if existing != nil {
			continue
		}
		sum, err := l.summarize(ctx, acct)
		if err != nil {
			l.Logger.Error("snapshot valuation failed",
				zap.Uint64("account_id", acct.ID), zap.Error(err))
			continue
		}
		snap := &models.PortfolioSnapshot{
			AccountID:      acct.ID,
			Date:           today,
			TradingMode:    acct.TradingMode,
			CashBalance:    sum.Cash,
			PositionsValue: sum.TotalMarketValue,
			TotalValue:     sum.TotalValue,
			ProfitLoss:     sum.TotalPnl,
			ReturnPct:      sum.ReturnPct,
			PositionCount:  len(sum.Positions),
		}
		if err := l.Repo.UpsertPortfolioSnapshot(ctx, snap); err != nil {
			l.Logger.Error("snapshot write failed",
				zap.Uint64("account_id", acct.ID), zap.Error(err))
			continue
		}
		written++
	}
	if written > 0 {
		l.Logger.Info("daily snapshots written", zap.Int("count", written))
	}
	return written, nil
}

func (l *PortfolioLedger) today() time.Time {
	now := l.now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}
