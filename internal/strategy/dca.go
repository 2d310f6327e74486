package strategy

import (
	"fmt"

	"microtrade/internal/trading"
)

// DCA buys a fixed currency amount on every tick, regardless of price.
type DCA struct {
	AmountPerBuy float64
}

func NewDCA(params Params) *DCA {
	return &DCA{AmountPerBuy: params.Float("amount_per_buy", 100000)}
}

func (s *DCA) Name() string { return "DCA" }

func (s *DCA) Evaluate(in Input) Signal {
	sig := Signal{Symbol: in.Symbol, Market: in.Market, OrderType: trading.OrderMarket}
	if in.Price <= 0 {
		sig.Reason = "no price data"
		return sig
	}
	quantity := int64(s.AmountPerBuy / in.Price)
	if quantity <= 0 {
		sig.Reason = fmt.Sprintf("price %.2f too high for budget %.0f", in.Price, s.AmountPerBuy)
		return sig
	}
	sig.Side = trading.SideBuy
	sig.Quantity = quantity
	sig.Reason = fmt.Sprintf("DCA buy %d shares at %.2f", quantity, in.Price)
	return sig
}
