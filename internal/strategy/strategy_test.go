package strategy

import (
	"testing"
	"time"

	"microtrade/internal/broker"
	"microtrade/internal/trading"
)

func barsFromCloses(closes []float64) []broker.DailyBar {
	day := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]broker.DailyBar, len(closes))
	for i, c := range closes {
		out[i] = broker.DailyBar{Date: day.AddDate(0, 0, i), Close: c}
	}
	return out
}

func TestDCA_BuysBudgetWorth(t *testing.T) {
	dca := NewDCA(Params{})
	sig := dca.Evaluate(Input{Symbol: "005930", Market: trading.MarketKR, Price: 30_000})
	if !sig.Active() || sig.Side != trading.SideBuy {
		t.Fatalf("signal=%+v want active buy", sig)
	}
	// 100_000 default budget / 30_000 price.
	if sig.Quantity != 3 {
		t.Fatalf("quantity=%d want=3", sig.Quantity)
	}
}

func TestDCA_PriceAboveBudget(t *testing.T) {
	dca := NewDCA(Params{})
	sig := dca.Evaluate(Input{Symbol: "005930", Market: trading.MarketKR, Price: 150_000})
	if sig.Active() {
		t.Fatalf("signal=%+v want inactive", sig)
	}
	if sig.Reason == "" {
		t.Fatal("inactive signal should carry a reason")
	}
}

func TestMovingAverage_GoldenCross(t *testing.T) {
	ma := &MovingAverage{ShortPeriod: 2, LongPeriod: 4, Quantity: 10}

	// Flat history, then a spike: short SMA crosses above long SMA on the
	// last bar only.
	closes := []float64{100, 100, 100, 100, 100, 130}
	sig := ma.Evaluate(Input{Symbol: "005930", Bars: barsFromCloses(closes)})
	if sig.Side != trading.SideBuy || sig.Quantity != 10 {
		t.Fatalf("signal=%+v want buy 10", sig)
	}
}

func TestMovingAverage_DeathCrossRequiresHolding(t *testing.T) {
	ma := &MovingAverage{ShortPeriod: 2, LongPeriod: 4, Quantity: 10}
	closes := []float64{100, 100, 100, 100, 100, 70}

	// Without a position the death cross is a no-op.
	sig := ma.Evaluate(Input{Symbol: "005930", Bars: barsFromCloses(closes)})
	if sig.Active() {
		t.Fatalf("signal=%+v want inactive without position", sig)
	}

	// Holding 5 shares sells at most the held quantity.
	sig = ma.Evaluate(Input{Symbol: "005930", Bars: barsFromCloses(closes), PositionQty: 5})
	if sig.Side != trading.SideSell || sig.Quantity != 5 {
		t.Fatalf("signal=%+v want sell 5", sig)
	}
}

func TestMovingAverage_NotEnoughData(t *testing.T) {
	ma := &MovingAverage{ShortPeriod: 5, LongPeriod: 20, Quantity: 10}
	sig := ma.Evaluate(Input{Symbol: "005930", Bars: barsFromCloses([]float64{1, 2, 3})})
	if sig.Active() {
		t.Fatalf("signal=%+v want inactive", sig)
	}
}

func TestComputeRSI(t *testing.T) {
	// Straight rally: all gains, RSI saturates near 100.
	up := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15}
	if rsi := ComputeRSI(up, 14); rsi < 99 {
		t.Fatalf("rsi=%v want >99 for a straight rally", rsi)
	}

	// Straight decline: RSI at the floor.
	down := []float64{15, 14, 13, 12, 11, 10, 9, 8, 7, 6, 5, 4, 3, 2, 1}
	if rsi := ComputeRSI(down, 14); rsi != 0 {
		t.Fatalf("rsi=%v want=0 for a straight decline", rsi)
	}

	// Short history is neutral.
	if rsi := ComputeRSI([]float64{1, 2}, 14); rsi != 50 {
		t.Fatalf("rsi=%v want=50 for short history", rsi)
	}
}

func TestRSIRebalance_Signals(t *testing.T) {
	strat := &RSIRebalance{Period: 3, Oversold: 30, Overbought: 70, Quantity: 10}

	falling := barsFromCloses([]float64{100, 95, 90, 85, 80})
	sig := strat.Evaluate(Input{Symbol: "005930", Bars: falling})
	if sig.Side != trading.SideBuy {
		t.Fatalf("signal=%+v want buy when oversold", sig)
	}

	rising := barsFromCloses([]float64{80, 85, 90, 95, 100})
	sig = strat.Evaluate(Input{Symbol: "005930", Bars: rising, PositionQty: 4})
	if sig.Side != trading.SideSell || sig.Quantity != 4 {
		t.Fatalf("signal=%+v want sell 4 when overbought", sig)
	}

	// Overbought without a holding stays flat.
	sig = strat.Evaluate(Input{Symbol: "005930", Bars: rising})
	if sig.Active() {
		t.Fatalf("signal=%+v want inactive without position", sig)
	}
}

func TestNew_KnownAndUnknownNames(t *testing.T) {
	for _, name := range []string{"DCA", "moving_average", " RSI_REBALANCE "} {
		if _, err := New(name, Params{}); err != nil {
			t.Fatalf("New(%q): %v", name, err)
		}
	}
	if _, err := New("MARTINGALE", Params{}); err == nil {
		t.Fatal("expected error for unknown strategy")
	}
}
