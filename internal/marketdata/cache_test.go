package marketdata

import (
	"context"
	"testing"
	"time"

	"microtrade/internal/broker"
	"microtrade/internal/models"
	"microtrade/internal/repository"
	"microtrade/internal/trading"
)

// quoteRepo stubs just the quote tier of the repository. Everything else
// panics if touched, which is what we want in these tests.
type quoteRepo struct {
	repository.Repository
	rows     map[string]*models.QuoteCache
	upserted int
}

func newQuoteRepo() *quoteRepo {
	return &quoteRepo{rows: map[string]*models.QuoteCache{}}
}

func (r *quoteRepo) UpsertQuote(ctx context.Context, item *models.QuoteCache) error {
	cp := *item
	r.rows[item.Symbol+"|"+item.Market] = &cp
	r.upserted++
	return nil
}

func (r *quoteRepo) GetQuote(ctx context.Context, symbol, market string) (*models.QuoteCache, error) {
	if row, ok := r.rows[symbol+"|"+market]; ok {
		cp := *row
		return &cp, nil
	}
	return nil, nil
}

// countingSource serves one fixed price and counts hits.
type countingSource struct {
	price float64
	calls int
	err   error
}

func (s *countingSource) GetQuote(ctx context.Context, symbol string, market trading.Market) (*broker.Quote, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &broker.Quote{Symbol: symbol, Market: market, Price: s.price, At: time.Now().UTC()}, nil
}

func (s *countingSource) GetDailyBars(ctx context.Context, symbol string, market trading.Market, days int) ([]broker.DailyBar, error) {
	return nil, nil
}

func (s *countingSource) GetIntradayBars(ctx context.Context, symbol string, market trading.Market, minutes int) ([]broker.IntradayBar, error) {
	return nil, nil
}

func newTestCache(repo repository.Repository, src broker.QuoteSource, ttl time.Duration) *Cache {
	gateway := func(ctx context.Context) (broker.QuoteSource, error) { return src, nil }
	return NewCache(repo, gateway, ttl, nil)
}

func TestGetQuote_MemoryTierHonorsTTL(t *testing.T) {
	ctx := context.Background()
	src := &countingSource{price: 50_000}
	cache := newTestCache(newQuoteRepo(), src, 15*time.Second)

	base := time.Now()
	cache.now = func() time.Time { return base }

	q := cache.GetQuote(ctx, "005930", trading.MarketKR)
	if q.Price != 50_000 {
		t.Fatalf("price=%v want=50000", q.Price)
	}
	if src.calls != 1 {
		t.Fatalf("gateway calls=%d want=1", src.calls)
	}

	// A second fetch inside the TTL is served from memory.
	cache.now = func() time.Time { return base.Add(10 * time.Second) }
	cache.GetQuote(ctx, "005930", trading.MarketKR)
	if src.calls != 1 {
		t.Fatalf("gateway calls=%d want=1 (memory hit)", src.calls)
	}

	// Past the TTL the gateway is consulted again.
	cache.now = func() time.Time { return base.Add(20 * time.Second) }
	cache.GetQuote(ctx, "005930", trading.MarketKR)
	if src.calls != 2 {
		t.Fatalf("gateway calls=%d want=2 (ttl expiry)", src.calls)
	}
}

func TestGetQuote_FallsBackToStore(t *testing.T) {
	ctx := context.Background()
	repo := newQuoteRepo()
	repo.rows["005930|KR"] = &models.QuoteCache{
		Symbol: "005930", Market: "KR", Price: 48_000,
		FetchedAt: time.Now().Add(-time.Hour),
	}
	src := &countingSource{err: broker.ErrNotConnected}
	cache := newTestCache(repo, src, 15*time.Second)

	q := cache.GetQuote(ctx, "005930", trading.MarketKR)
	if q.Price != 48_000 {
		t.Fatalf("price=%v want=48000 (store tier)", q.Price)
	}
}

func TestGetQuote_StaleMemoryBeatsSentinel(t *testing.T) {
	ctx := context.Background()
	src := &countingSource{price: 50_000}
	cache := newTestCache(nil, src, 15*time.Second)

	base := time.Now()
	cache.now = func() time.Time { return base }
	cache.GetQuote(ctx, "005930", trading.MarketKR)

	// Expire the entry and kill the gateway; the stale entry still wins.
	cache.now = func() time.Time { return base.Add(time.Minute) }
	src.err = broker.ErrNotConnected
	q := cache.GetQuote(ctx, "005930", trading.MarketKR)
	if q.Price != 50_000 {
		t.Fatalf("price=%v want=50000 (stale memory)", q.Price)
	}
}

func TestGetQuote_ZeroSentinelForUnknownSymbol(t *testing.T) {
	ctx := context.Background()
	src := &countingSource{err: broker.ErrNotConnected}
	cache := newTestCache(newQuoteRepo(), src, 15*time.Second)

	q := cache.GetQuote(ctx, "999999", trading.MarketKR)
	if q.Symbol != "999999" || q.Price != 0 {
		t.Fatalf("sentinel=%+v want symbol set with zero price", q)
	}
	if q.At.IsZero() {
		t.Fatal("sentinel timestamp missing")
	}
}

func TestPut_PersistsThroughRepo(t *testing.T) {
	ctx := context.Background()
	repo := newQuoteRepo()
	cache := newTestCache(repo, &countingSource{price: 1}, 15*time.Second)

	cache.Put(ctx, broker.Quote{Symbol: "005930", Market: trading.MarketKR, Price: 51_000})
	if repo.upserted != 1 {
		t.Fatalf("upserts=%d want=1", repo.upserted)
	}
	row := repo.rows["005930|KR"]
	if row == nil || row.Price != 51_000 {
		t.Fatalf("row=%+v want price=51000", row)
	}

	// Garbage quotes are dropped.
	cache.Put(ctx, broker.Quote{Symbol: "005930", Market: trading.MarketKR, Price: 0})
	if repo.upserted != 1 {
		t.Fatalf("upserts=%d want=1 (zero price ignored)", repo.upserted)
	}
}
