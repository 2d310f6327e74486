package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"microtrade/internal/broker"
	"microtrade/internal/broker/paper"
	"microtrade/internal/marketdata"
	"microtrade/internal/models"
	"microtrade/internal/trading"
)

// stubQuotes serves fixed prices keyed by symbol.
type stubQuotes struct {
	prices map[string]float64
}

func (s *stubQuotes) GetQuote(ctx context.Context, symbol string, market trading.Market) (*broker.Quote, error) {
	return &broker.Quote{
		Symbol: symbol,
		Market: market,
		Price:  s.prices[symbol],
		At:     time.Now().UTC(),
	}, nil
}

func (s *stubQuotes) GetDailyBars(ctx context.Context, symbol string, market trading.Market, days int) ([]broker.DailyBar, error) {
	return nil, nil
}

func (s *stubQuotes) GetIntradayBars(ctx context.Context, symbol string, market trading.Market, minutes int) ([]broker.IntradayBar, error) {
	return nil, nil
}

func newPaperFixture(t *testing.T, prices map[string]float64) (*OrderLedger, *stubRepo, *stubQuotes) {
	t.Helper()
	repo := newStubRepo()
	initial := decimal.NewFromInt(10_000_000)
	if err := repo.UpsertAccount(context.Background(), &models.Account{
		Name:           "default-PAPER",
		TradingMode:    "PAPER",
		InitialBalance: initial,
		CurrentBalance: initial,
		CommissionRate: decimal.NewFromFloat(0.0005),
		IsActive:       true,
	}); err != nil {
		t.Fatalf("seed account: %v", err)
	}

	quotes := &stubQuotes{prices: prices}
	registry := broker.NewRegistry(func(mode trading.Mode) (broker.Broker, error) {
		if mode != trading.ModePaper {
			return nil, broker.ErrUnknownMode
		}
		return paper.NewBroker(paper.NewEngine(0), quotes, &PaperBalanceSource{Repo: repo}, nil), nil
	}, nil)

	gateway := func(ctx context.Context) (broker.QuoteSource, error) { return quotes, nil }
	cache := marketdata.NewCache(repo, gateway, time.Second, nil)

	mode := trading.NewModeSwitch(nil, nil, trading.ModePaper)
	return NewOrderLedger(repo, cache, registry, mode, nil), repo, quotes
}

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", s, err)
	}
	return d
}

func TestCreateOrder_PaperLimitBuyAndSellRoundTrip(t *testing.T) {
	ctx := context.Background()
	ledger, repo, quotes := newPaperFixture(t, map[string]float64{"005930": 50_000})

	limit := decimal.NewFromInt(50_000)
	order, err := ledger.CreateOrder(ctx, CreateOrderRequest{
		Symbol:     "005930",
		Market:     trading.MarketKR,
		Side:       trading.SideBuy,
		OrderType:  trading.OrderLimit,
		Quantity:   10,
		LimitPrice: &limit,
	})
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	if order.Status != trading.StatusFilled {
		t.Fatalf("buy status=%s want=FILLED (reason %q)", order.Status, order.RejectReason)
	}
	if order.FilledPrice == nil || !order.FilledPrice.Equal(limit) {
		t.Fatalf("buy filled price=%v want=50000", order.FilledPrice)
	}

	acct, _ := repo.GetActiveAccount(ctx, "PAPER")
	wantCash := mustDecimal(t, "9499750")
	if !acct.CurrentBalance.Equal(wantCash) {
		t.Fatalf("cash after buy=%s want=%s", acct.CurrentBalance, wantCash)
	}
	pos, _ := repo.GetPosition(ctx, acct.ID, "005930", "KR", true)
	if pos == nil || pos.Quantity != 10 || !pos.AvgPrice.Equal(limit) {
		t.Fatalf("position after buy=%+v want qty=10 avg=50000", pos)
	}

	// Sell everything at a higher limit against a moved market.
	quotes.prices["005930"] = 55_000
	ledger.Cache.Invalidate("005930", trading.MarketKR)
	sellLimit := decimal.NewFromInt(55_000)

	order, err = ledger.CreateOrder(ctx, CreateOrderRequest{
		Symbol:     "005930",
		Market:     trading.MarketKR,
		Side:       trading.SideSell,
		OrderType:  trading.OrderLimit,
		Quantity:   10,
		LimitPrice: &sellLimit,
	})
	if err != nil {
		t.Fatalf("sell: %v", err)
	}
	if order.Status != trading.StatusFilled {
		t.Fatalf("sell status=%s want=FILLED (reason %q)", order.Status, order.RejectReason)
	}

	acct, _ = repo.GetActiveAccount(ctx, "PAPER")
	wantCash = mustDecimal(t, "10049475")
	if !acct.CurrentBalance.Equal(wantCash) {
		t.Fatalf("cash after sell=%s want=%s", acct.CurrentBalance, wantCash)
	}
	pos, _ = repo.GetPosition(ctx, acct.ID, "005930", "KR", true)
	if pos != nil {
		t.Fatalf("position after full sell=%+v want=nil", pos)
	}
	realized, _ := repo.SumRealizedPnl(ctx, acct.ID, true)
	if !realized.Equal(decimal.NewFromInt(50_000)) {
		t.Fatalf("realized=%s want=50000", realized)
	}
}

func TestCreateOrder_TwoBuysBlendAveragePrice(t *testing.T) {
	ctx := context.Background()
	ledger, repo, quotes := newPaperFixture(t, map[string]float64{"005930": 50_000})

	first := decimal.NewFromInt(50_000)
	if _, err := ledger.CreateOrder(ctx, CreateOrderRequest{
		Symbol:     "005930",
		Market:     trading.MarketKR,
		Side:       trading.SideBuy,
		OrderType:  trading.OrderLimit,
		Quantity:   10,
		LimitPrice: &first,
	}); err != nil {
		t.Fatalf("first buy: %v", err)
	}

	quotes.prices["005930"] = 60_000
	ledger.Cache.Invalidate("005930", trading.MarketKR)
	second := decimal.NewFromInt(60_000)
	if _, err := ledger.CreateOrder(ctx, CreateOrderRequest{
		Symbol:     "005930",
		Market:     trading.MarketKR,
		Side:       trading.SideBuy,
		OrderType:  trading.OrderLimit,
		Quantity:   10,
		LimitPrice: &second,
	}); err != nil {
		t.Fatalf("second buy: %v", err)
	}

	acct, _ := repo.GetActiveAccount(ctx, "PAPER")
	pos, _ := repo.GetPosition(ctx, acct.ID, "005930", "KR", true)
	if pos == nil || pos.Quantity != 20 {
		t.Fatalf("position=%+v want qty=20", pos)
	}
	// (10*50000 + 10*60000) / 20.
	wantAvg := mustDecimal(t, "55000")
	if !pos.AvgPrice.Equal(wantAvg) {
		t.Fatalf("avg price=%s want=%s", pos.AvgPrice, wantAvg)
	}
	// 10_000_000 - 500_250 - 600_300.
	wantCash := mustDecimal(t, "8899450")
	if !acct.CurrentBalance.Equal(wantCash) {
		t.Fatalf("cash=%s want=%s", acct.CurrentBalance, wantCash)
	}
}

func TestCreateOrder_RecordsSource(t *testing.T) {
	ctx := context.Background()
	ledger, _, _ := newPaperFixture(t, map[string]float64{"005930": 50_000})

	limit := decimal.NewFromInt(50_000)
	order, err := ledger.CreateOrder(ctx, CreateOrderRequest{
		Symbol:       "005930",
		Market:       trading.MarketKR,
		Side:         trading.SideBuy,
		OrderType:    trading.OrderLimit,
		Quantity:     1,
		LimitPrice:   &limit,
		Source:       trading.SourceStrategy,
		StrategyName: "DCA",
	})
	if err != nil {
		t.Fatalf("strategy buy: %v", err)
	}
	if order.Source != trading.SourceStrategy || order.StrategyName != "DCA" {
		t.Fatalf("source=%q strategy=%q want strategy/DCA", order.Source, order.StrategyName)
	}

	order, err = ledger.CreateOrder(ctx, CreateOrderRequest{
		Symbol:     "005930",
		Market:     trading.MarketKR,
		Side:       trading.SideBuy,
		OrderType:  trading.OrderLimit,
		Quantity:   1,
		LimitPrice: &limit,
	})
	if err != nil {
		t.Fatalf("manual buy: %v", err)
	}
	if order.Source != trading.SourceManual || order.StrategyName != "" {
		t.Fatalf("source=%q strategy=%q want manual with no strategy", order.Source, order.StrategyName)
	}
}

func TestCreateOrder_PaperMarketBuyAppliesSlippage(t *testing.T) {
	ctx := context.Background()
	ledger, repo, _ := newPaperFixture(t, map[string]float64{"005930": 50_000})

	order, err := ledger.CreateOrder(ctx, CreateOrderRequest{
		Symbol:    "005930",
		Market:    trading.MarketKR,
		Side:      trading.SideBuy,
		OrderType: trading.OrderMarket,
		Quantity:  10,
	})
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	if order.Status != trading.StatusFilled {
		t.Fatalf("status=%s want=FILLED (reason %q)", order.Status, order.RejectReason)
	}
	want := mustDecimal(t, "50005")
	if order.FilledPrice == nil || !order.FilledPrice.Equal(want) {
		t.Fatalf("filled price=%v want=%s", order.FilledPrice, want)
	}
	acct, _ := repo.GetActiveAccount(ctx, "PAPER")
	// 10_000_000 - 500_050 - 250.03 commission.
	wantCash := mustDecimal(t, "9499699.97")
	if !acct.CurrentBalance.Equal(wantCash) {
		t.Fatalf("cash=%s want=%s", acct.CurrentBalance, wantCash)
	}
}

func TestCreateOrder_InsufficientFundsLeavesNoOrder(t *testing.T) {
	ctx := context.Background()
	ledger, repo, _ := newPaperFixture(t, map[string]float64{"005930": 50_000})

	_, err := ledger.CreateOrder(ctx, CreateOrderRequest{
		Symbol:    "005930",
		Market:    trading.MarketKR,
		Side:      trading.SideBuy,
		OrderType: trading.OrderMarket,
		Quantity:  1_000,
	})
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("err=%v want ErrInsufficientFunds", err)
	}
	if len(repo.orders) != 0 {
		t.Fatalf("orders persisted=%d want=0", len(repo.orders))
	}
}

func TestCreateOrder_SellWithoutPosition(t *testing.T) {
	ctx := context.Background()
	ledger, repo, _ := newPaperFixture(t, map[string]float64{"005930": 50_000})

	_, err := ledger.CreateOrder(ctx, CreateOrderRequest{
		Symbol:    "005930",
		Market:    trading.MarketKR,
		Side:      trading.SideSell,
		OrderType: trading.OrderMarket,
		Quantity:  5,
	})
	if !errors.Is(err, ErrInsufficientPosition) {
		t.Fatalf("err=%v want ErrInsufficientPosition", err)
	}
	if len(repo.orders) != 0 {
		t.Fatalf("orders persisted=%d want=0", len(repo.orders))
	}
}

func TestCreateOrder_UnmarketableLimitRejected(t *testing.T) {
	ctx := context.Background()
	ledger, _, _ := newPaperFixture(t, map[string]float64{"005930": 50_000})

	limit := decimal.NewFromInt(49_000)
	order, err := ledger.CreateOrder(ctx, CreateOrderRequest{
		Symbol:     "005930",
		Market:     trading.MarketKR,
		Side:       trading.SideBuy,
		OrderType:  trading.OrderLimit,
		Quantity:   10,
		LimitPrice: &limit,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if order.Status != trading.StatusRejected {
		t.Fatalf("status=%s want=REJECTED", order.Status)
	}
	if order.RejectReason == "" {
		t.Fatal("expected a reject reason")
	}
}

func TestCancelOrder_StateMachine(t *testing.T) {
	ctx := context.Background()
	ledger, repo, _ := newPaperFixture(t, map[string]float64{"005930": 50_000})
	acct, _ := repo.GetActiveAccount(ctx, "PAPER")

	submitted := &models.Order{
		AccountID: acct.ID,
		Symbol:    "005930",
		Market:    "KR",
		Side:      "BUY",
		OrderType: "LIMIT",
		Quantity:  10,
		Status:    trading.StatusSubmitted,
		IsPaper:   true,
	}
	if err := repo.InsertOrder(ctx, submitted); err != nil {
		t.Fatalf("seed order: %v", err)
	}

	cancelled, err := ledger.CancelOrder(ctx, submitted.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != trading.StatusCancelled || cancelled.CancelledAt == nil {
		t.Fatalf("cancelled=%+v want status=CANCELLED with timestamp", cancelled)
	}

	filled := &models.Order{
		AccountID: acct.ID,
		Symbol:    "005930",
		Market:    "KR",
		Status:    trading.StatusFilled,
		IsPaper:   true,
	}
	if err := repo.InsertOrder(ctx, filled); err != nil {
		t.Fatalf("seed order: %v", err)
	}
	if _, err := ledger.CancelOrder(ctx, filled.ID); !errors.Is(err, ErrInvalidOrderState) {
		t.Fatalf("err=%v want ErrInvalidOrderState", err)
	}

	if _, err := ledger.CancelOrder(ctx, 9999); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("err=%v want ErrOrderNotFound", err)
	}
}
