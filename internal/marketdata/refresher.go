package marketdata

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"microtrade/internal/broker"
	"microtrade/internal/repository"
	"microtrade/internal/trading"
)

// Refresher polls quotes for every enabled watchlist instrument and keeps
// the cache tiers plus position marks current.
type Refresher struct {
	Repo   repository.Repository
	Cache  *Cache
	Logger *zap.Logger
}

func NewRefresher(repo repository.Repository, cache *Cache, logger *zap.Logger) *Refresher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Refresher{Repo: repo, Cache: cache, Logger: logger}
}

func (r *Refresher) Run(ctx context.Context, interval time.Duration) {
	if r == nil || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.RunOnce(ctx)
		}
	}
}

// RunOnce refreshes the union of enabled watchlist symbols and symbols
// with an open position, returning how many quotes were refreshed.
// Failures on one symbol do not stop the sweep.
func (r *Refresher) RunOnce(ctx context.Context) int {
	if r == nil || r.Repo == nil || r.Cache == nil {
		return 0
	}
	universe := map[string]trading.Market{}

	enabled := true
	items, err := r.Repo.ListWatchlistItems(ctx, repository.ListWatchlistParams{Enabled: &enabled})
	if err != nil {
		r.Logger.Error("watchlist load failed", zap.Error(err))
	}
	for _, item := range items {
		universe[item.Symbol] = trading.Market(item.Market)
	}

	positions, err := r.Repo.ListPositions(ctx, repository.ListPositionsParams{NonZero: true})
	if err != nil {
		r.Logger.Error("position load failed", zap.Error(err))
	}
	for _, pos := range positions {
		universe[pos.Symbol] = trading.Market(pos.Market)
	}

	refreshed := 0
	for symbol, market := range universe {
		q, ok := r.Cache.fromGateway(ctx, symbol, market)
		if !ok {
			continue
		}
		refreshed++
		r.markPositions(ctx, q)
	}
	if refreshed > 0 {
		r.Logger.Debug("quotes refreshed",
			zap.Int("count", refreshed), zap.Int("universe", len(universe)))
	}
	return refreshed
}

// markPositions writes the latest price onto matching position rows so
// valuations work even when the cache is cold after a restart.
func (r *Refresher) markPositions(ctx context.Context, q broker.Quote) {
	accounts, err := r.Repo.ListAccounts(ctx)
	if err != nil {
		return
	}
	price := decimal.NewFromFloat(q.Price)
	for _, acct := range accounts {
		for _, paper := range []bool{true, false} {
			if err := r.Repo.UpdatePositionPrice(ctx, acct.ID, q.Symbol, string(q.Market), paper, price); err != nil {
				r.Logger.Warn("position mark failed",
					zap.String("symbol", q.Symbol), zap.Error(err))
			}
		}
	}
}
