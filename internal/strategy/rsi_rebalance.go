package strategy

import (
	"fmt"

	"microtrade/internal/trading"
)

// RSIRebalance buys oversold and trims overbought holdings.
type RSIRebalance struct {
	Period     int
	Oversold   float64
	Overbought float64
	Quantity   int64
}

func NewRSIRebalance(params Params) *RSIRebalance {
	return &RSIRebalance{
		Period:     params.Int("rsi_period", 14),
		Oversold:   params.Float("oversold", 30),
		Overbought: params.Float("overbought", 70),
		Quantity:   int64(params.Int("quantity", 10)),
	}
}

func (s *RSIRebalance) Name() string { return "RSI_REBALANCE" }

func (s *RSIRebalance) Evaluate(in Input) Signal {
	sig := Signal{Symbol: in.Symbol, Market: in.Market, OrderType: trading.OrderMarket}
	if len(in.Bars) < s.Period+2 {
		sig.Reason = fmt.Sprintf("not enough data (%d/%d)", len(in.Bars), s.Period+2)
		return sig
	}

	closes := make([]float64, len(in.Bars))
	for i, b := range in.Bars {
		closes[i] = b.Close
	}
	rsi := ComputeRSI(closes, s.Period)

	if rsi < s.Oversold {
		sig.Side = trading.SideBuy
		sig.Quantity = s.Quantity
		sig.Reason = fmt.Sprintf("RSI=%.1f < %.0f (oversold)", rsi, s.Oversold)
		return sig
	}
	if rsi > s.Overbought && in.PositionQty > 0 {
		sig.Side = trading.SideSell
		sig.Quantity = min64(s.Quantity, in.PositionQty)
		sig.Reason = fmt.Sprintf("RSI=%.1f > %.0f (overbought)", rsi, s.Overbought)
		return sig
	}
	sig.Reason = fmt.Sprintf("RSI=%.1f (neutral range %.0f-%.0f)", rsi, s.Oversold, s.Overbought)
	return sig
}

// ComputeRSI computes the relative strength index over chronological
// closes. Returns neutral 50 when history is short.
func ComputeRSI(closes []float64, period int) float64 {
	if len(closes) < period+1 {
		return 50
	}
	gains := 0.0
	losses := 0.0
	start := len(closes) - period
	for i := start; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			gains += delta
		} else {
			losses -= delta
		}
	}
	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)
	if avgLoss == 0 {
		avgLoss = 0.0001
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}
