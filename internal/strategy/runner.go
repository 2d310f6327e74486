package strategy

import (
	"context"
	"time"

	"go.uber.org/zap"

	"microtrade/internal/broker"
	"microtrade/internal/ledger"
	"microtrade/internal/marketdata"
	"microtrade/internal/repository"
	"microtrade/internal/trading"
)

const barLookbackDays = 60

// Runner evaluates every enabled strategy config on each tick and routes
// active signals into the order ledger.
type Runner struct {
	Repo   repository.Repository
	Cache  *marketdata.Cache
	Orders *ledger.OrderLedger
	Mode   *trading.ModeSwitch
	Logger *zap.Logger
}

func NewRunner(repo repository.Repository, cache *marketdata.Cache, orders *ledger.OrderLedger, mode *trading.ModeSwitch, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{Repo: repo, Cache: cache, Orders: orders, Mode: mode, Logger: logger}
}

// RunOnce evaluates all enabled configs. One failing config never stops
// the sweep.
func (r *Runner) RunOnce(ctx context.Context) {
	if r == nil || r.Repo == nil {
		return
	}
	enabled := true
	configs, err := r.Repo.ListStrategyConfigs(ctx, repository.ListStrategyConfigsParams{Enabled: &enabled})
	if err != nil {
		r.Logger.Error("strategy config load failed", zap.Error(err))
		return
	}

	mode := r.Mode.Current()
	acct, err := r.Repo.GetActiveAccount(ctx, string(mode))
	if err != nil || acct == nil {
		r.Logger.Warn("strategy tick skipped, no active account",
			zap.String("mode", string(mode)), zap.Error(err))
		return
	}

	for i := range configs {
		cfg := &configs[i]
		strat, err := New(cfg.Name, ParseParams(cfg.Params))
		if err != nil {
			r.Logger.Warn("strategy skipped", zap.Uint64("config_id", cfg.ID), zap.Error(err))
			continue
		}
		market := trading.Market(cfg.Market)

		annotated, err := r.Cache.GetDailyBars(ctx, cfg.Symbol, market, barLookbackDays)
		if err != nil {
			r.Logger.Warn("daily bars unavailable",
				zap.String("symbol", cfg.Symbol), zap.Error(err))
			continue
		}
		bars := make([]broker.DailyBar, len(annotated))
		for j, b := range annotated {
			bars[j] = b.DailyBar
		}

		quote := r.Cache.GetQuote(ctx, cfg.Symbol, market)

		positionQty := int64(0)
		if pos, err := r.Repo.GetPosition(ctx, acct.ID, cfg.Symbol, cfg.Market, mode.IsPaper()); err == nil && pos != nil {
			positionQty = pos.Quantity
		}

		sig := strat.Evaluate(Input{
			Symbol:      cfg.Symbol,
			Market:      market,
			Bars:        bars,
			Price:       quote.Price,
			PositionQty: positionQty,
		})
		now := time.Now().UTC()
		if err := r.Repo.UpdateStrategyConfigLastRun(ctx, cfg.ID, now); err != nil {
			r.Logger.Warn("last-run update failed", zap.Uint64("config_id", cfg.ID), zap.Error(err))
		}

		if !sig.Active() {
			r.Logger.Debug("strategy pass",
				zap.String("strategy", strat.Name()), zap.String("symbol", cfg.Symbol),
				zap.String("reason", sig.Reason))
			continue
		}
		r.Logger.Info("strategy signal",
			zap.String("strategy", strat.Name()), zap.String("symbol", cfg.Symbol),
			zap.String("side", string(sig.Side)), zap.Int64("quantity", sig.Quantity),
			zap.String("reason", sig.Reason))

		if _, err := r.Orders.CreateOrder(ctx, ledger.CreateOrderRequest{
			Symbol:       sig.Symbol,
			Market:       sig.Market,
			Side:         sig.Side,
			OrderType:    sig.OrderType,
			Quantity:     sig.Quantity,
			Source:       trading.SourceStrategy,
			StrategyName: strat.Name(),
		}); err != nil {
			r.Logger.Warn("signal order failed",
				zap.String("strategy", strat.Name()), zap.String("symbol", cfg.Symbol),
				zap.Error(err))
		}
	}
}
