// Package marketdata serves quotes through a tiered cache: a short-TTL
// memory tier, the live gateway, the persisted quote store, then stale
// memory, and finally a zero sentinel so callers never block on a miss.
package marketdata

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"microtrade/internal/broker"
	"microtrade/internal/models"
	"microtrade/internal/repository"
	"microtrade/internal/trading"
)

const defaultTTL = 15 * time.Second

// GatewayFunc yields the quote source for the active trading mode.
type GatewayFunc func(ctx context.Context) (broker.QuoteSource, error)

type entry struct {
	quote     broker.Quote
	fetchedAt time.Time
}

type Cache struct {
	Repo    repository.Repository
	Gateway GatewayFunc
	Logger  *zap.Logger
	TTL     time.Duration

	// test hook
	now func() time.Time

	mu     sync.RWMutex
	memory map[string]entry
}

func NewCache(repo repository.Repository, gateway GatewayFunc, ttl time.Duration, logger *zap.Logger) *Cache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		Repo:    repo,
		Gateway: gateway,
		Logger:  logger,
		TTL:     ttl,
		now:     time.Now,
		memory:  make(map[string]entry),
	}
}

func cacheKey(symbol string, market trading.Market) string {
	return symbol + "|" + string(market)
}

// lookup is one tier of the fallback chain: it reports whether it found a
// usable quote.
type lookup func(ctx context.Context, symbol string, market trading.Market) (broker.Quote, bool)

// GetQuote walks the tiers in order. The zero sentinel (price 0, Symbol
// set) terminates the chain so callers can detect a dead instrument
// without an error path.
func (c *Cache) GetQuote(ctx context.Context, symbol string, market trading.Market) broker.Quote {
	chain := []lookup{
		c.fromFreshMemory,
		c.fromGateway,
		c.fromStore,
		c.fromStaleMemory,
	}
	for _, step := range chain {
		if q, ok := step(ctx, symbol, market); ok {
			return q
		}
	}
	return broker.Quote{Symbol: symbol, Market: market, At: c.now().UTC()}
}

func (c *Cache) fromFreshMemory(ctx context.Context, symbol string, market trading.Market) (broker.Quote, bool) {
	c.mu.RLock()
	e, ok := c.memory[cacheKey(symbol, market)]
	c.mu.RUnlock()
	if !ok || c.now().Sub(e.fetchedAt) > c.TTL {
		return broker.Quote{}, false
	}
	return e.quote, true
}

func (c *Cache) fromGateway(ctx context.Context, symbol string, market trading.Market) (broker.Quote, bool) {
	if c.Gateway == nil {
		return broker.Quote{}, false
	}
	src, err := c.Gateway(ctx)
	if err != nil || src == nil {
		return broker.Quote{}, false
	}
	q, err := src.GetQuote(ctx, symbol, market)
	if err != nil || q == nil || q.Price <= 0 {
		if err != nil {
			c.Logger.Warn("gateway quote failed",
				zap.String("symbol", symbol), zap.Error(err))
		}
		return broker.Quote{}, false
	}
	c.Put(ctx, *q)
	return *q, true
}

func (c *Cache) fromStore(ctx context.Context, symbol string, market trading.Market) (broker.Quote, bool) {
	if c.Repo == nil {
		return broker.Quote{}, false
	}
	row, err := c.Repo.GetQuote(ctx, symbol, string(market))
	if err != nil || row == nil || row.Price <= 0 {
		return broker.Quote{}, false
	}
	return broker.Quote{
		Symbol:     row.Symbol,
		Market:     trading.Market(row.Market),
		Price:      row.Price,
		PrevClose:  row.PrevClose,
		ChangeRate: row.ChangeRate,
		Volume:     row.Volume,
		At:         row.FetchedAt,
	}, true
}

// fromStaleMemory serves an expired memory entry as a last resort before
// the zero sentinel.
func (c *Cache) fromStaleMemory(ctx context.Context, symbol string, market trading.Market) (broker.Quote, bool) {
	c.mu.RLock()
	e, ok := c.memory[cacheKey(symbol, market)]
	c.mu.RUnlock()
	if !ok || e.quote.Price <= 0 {
		return broker.Quote{}, false
	}
	return e.quote, true
}

// Put installs a quote into the memory tier and persists it. The stream
// sink and the refresh job both funnel through here.
func (c *Cache) Put(ctx context.Context, q broker.Quote) {
	if q.Symbol == "" || q.Price <= 0 {
		return
	}
	if q.At.IsZero() {
		q.At = c.now().UTC()
	}
	c.mu.Lock()
	c.memory[cacheKey(q.Symbol, q.Market)] = entry{quote: q, fetchedAt: c.now()}
	c.mu.Unlock()

	if c.Repo == nil {
		return
	}
	if err := c.Repo.UpsertQuote(ctx, &models.QuoteCache{
		Symbol:     q.Symbol,
		Market:     string(q.Market),
		Price:      q.Price,
		PrevClose:  q.PrevClose,
		ChangeRate: q.ChangeRate,
		Volume:     q.Volume,
		FetchedAt:  q.At,
	}); err != nil {
		c.Logger.Warn("quote persist failed",
			zap.String("symbol", q.Symbol), zap.Error(err))
	}
}

// Invalidate drops the memory entry for one instrument.
func (c *Cache) Invalidate(symbol string, market trading.Market) {
	c.mu.Lock()
	delete(c.memory, cacheKey(symbol, market))
	c.mu.Unlock()
}
