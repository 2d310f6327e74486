package paper

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"microtrade/internal/broker"
	"microtrade/internal/trading"
)

func TestExecuteMarket_SlippageDirection(t *testing.T) {
	engine := NewEngine(0.0001)
	quote := broker.Quote{Symbol: "005930", Market: trading.MarketKR, Price: 50_000}

	buy := engine.ExecuteMarket(trading.SideBuy, 10, quote)
	if !buy.Price.Equal(decimal.NewFromInt(50_005)) {
		t.Fatalf("buy price=%s want=50005", buy.Price)
	}
	if buy.Quantity != 10 {
		t.Fatalf("buy quantity=%d want=10", buy.Quantity)
	}

	sell := engine.ExecuteMarket(trading.SideSell, 10, quote)
	if !sell.Price.Equal(decimal.NewFromInt(49_995)) {
		t.Fatalf("sell price=%s want=49995", sell.Price)
	}
}

func TestExecuteLimit_Marketability(t *testing.T) {
	engine := NewEngine(0.0001)
	quote := broker.Quote{Symbol: "005930", Market: trading.MarketKR, Price: 50_000}

	// Buy at or above the market fills at the market price, without slippage.
	fill, ok := engine.ExecuteLimit(trading.SideBuy, 5, decimal.NewFromInt(50_000), quote)
	if !ok {
		t.Fatal("marketable buy limit did not fill")
	}
	if !fill.Price.Equal(decimal.NewFromInt(50_000)) {
		t.Fatalf("fill price=%s want=50000", fill.Price)
	}

	if _, ok := engine.ExecuteLimit(trading.SideBuy, 5, decimal.NewFromInt(49_999), quote); ok {
		t.Fatal("buy limit below market filled")
	}

	if _, ok := engine.ExecuteLimit(trading.SideSell, 5, decimal.NewFromInt(50_000), quote); !ok {
		t.Fatal("marketable sell limit did not fill")
	}
	if _, ok := engine.ExecuteLimit(trading.SideSell, 5, decimal.NewFromInt(50_001), quote); ok {
		t.Fatal("sell limit above market filled")
	}
}

func TestPaperOrderIDFormat(t *testing.T) {
	id := newPaperOrderID()
	if !strings.HasPrefix(id, "PAPER-") {
		t.Fatalf("id=%q want PAPER- prefix", id)
	}
	suffix := strings.TrimPrefix(id, "PAPER-")
	if len(suffix) != 12 {
		t.Fatalf("suffix length=%d want=12", len(suffix))
	}
	if suffix != strings.ToUpper(suffix) {
		t.Fatalf("suffix=%q want upper case", suffix)
	}
	if id == newPaperOrderID() {
		t.Fatal("order ids should be unique")
	}
}

func TestZeroSlippageFallsBackToDefault(t *testing.T) {
	engine := NewEngine(0)
	quote := broker.Quote{Price: 10_000}
	fill := engine.ExecuteMarket(trading.SideBuy, 1, quote)
	if !fill.Price.Equal(decimal.NewFromInt(10_001)) {
		t.Fatalf("price=%s want=10001", fill.Price)
	}
}
