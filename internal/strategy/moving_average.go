package strategy

import (
	"fmt"

	"microtrade/internal/trading"
)

// MovingAverage trades the short/long SMA crossover: buy on a golden
// cross, sell on a death cross while holding.
type MovingAverage struct {
	ShortPeriod int
	LongPeriod  int
	Quantity    int64
}

func NewMovingAverage(params Params) *MovingAverage {
	return &MovingAverage{
		ShortPeriod: params.Int("short_period", 5),
		LongPeriod:  params.Int("long_period", 20),
		Quantity:    int64(params.Int("quantity", 10)),
	}
}

func (s *MovingAverage) Name() string { return "MOVING_AVERAGE" }

func (s *MovingAverage) Evaluate(in Input) Signal {
	sig := Signal{Symbol: in.Symbol, Market: in.Market, OrderType: trading.OrderMarket}
	if len(in.Bars) < s.LongPeriod+1 {
		sig.Reason = fmt.Sprintf("not enough data (%d/%d)", len(in.Bars), s.LongPeriod+1)
		return sig
	}

	closes := make([]float64, len(in.Bars))
	for i, b := range in.Bars {
		closes[i] = b.Close
	}
	shortNow := tailMean(closes, s.ShortPeriod, 0)
	shortPrev := tailMean(closes, s.ShortPeriod, 1)
	longNow := tailMean(closes, s.LongPeriod, 0)
	longPrev := tailMean(closes, s.LongPeriod, 1)

	if shortPrev <= longPrev && shortNow > longNow {
		sig.Side = trading.SideBuy
		sig.Quantity = s.Quantity
		sig.Reason = fmt.Sprintf("golden cross: SMA%d=%.2f > SMA%d=%.2f",
			s.ShortPeriod, shortNow, s.LongPeriod, longNow)
		return sig
	}
	if shortPrev >= longPrev && shortNow < longNow && in.PositionQty > 0 {
		sig.Side = trading.SideSell
		sig.Quantity = min64(s.Quantity, in.PositionQty)
		sig.Reason = fmt.Sprintf("death cross: SMA%d=%.2f < SMA%d=%.2f",
			s.ShortPeriod, shortNow, s.LongPeriod, longNow)
		return sig
	}
	sig.Reason = fmt.Sprintf("no cross: SMA%d=%.2f, SMA%d=%.2f",
		s.ShortPeriod, shortNow, s.LongPeriod, longNow)
	return sig
}

// tailMean averages the window ending `back` bars before the last close.
func tailMean(closes []float64, window, back int) float64 {
	end := len(closes) - back
	sum := 0.0
	for i := end - window; i < end; i++ {
		sum += closes[i]
	}
	return sum / float64(window)
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
