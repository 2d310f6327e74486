// Package paper simulates order execution against live market prices. The
// simulated account lives in the database; only fills are decided here.
package paper

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"microtrade/internal/broker"
	"microtrade/internal/trading"
)

// Market orders fill at the live price nudged against the taker.
var defaultSlippage = decimal.NewFromFloat(0.0001)

type Fill struct {
	BrokerOrderID string
	Price         decimal.Decimal
	Quantity      int64
	FilledAt      time.Time
}

// Engine decides paper fills. Stateless; safe for concurrent use.
type Engine struct {
	Slippage decimal.Decimal
}

func NewEngine(slippage float64) *Engine {
	s := defaultSlippage
	if slippage > 0 {
		s = decimal.NewFromFloat(slippage)
	}
	return &Engine{Slippage: s}
}

func (e *Engine) slippage() decimal.Decimal {
	if e == nil || e.Slippage.IsZero() {
		return defaultSlippage
	}
	return e.Slippage
}

func newPaperOrderID() string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "PAPER-" + strings.ToUpper(hex[:12])
}

// ExecuteMarket always fills, at the quote price worsened by slippage:
// buys pay a hair more, sells receive a hair less. Rounded to 4 places.
func (e *Engine) ExecuteMarket(side trading.Side, quantity int64, quote broker.Quote) Fill {
	price := decimal.NewFromFloat(quote.Price)
	adj := price.Mul(e.slippage())
	if side == trading.SideBuy {
		price = price.Add(adj)
	} else {
		price = price.Sub(adj)
	}
	return Fill{
		BrokerOrderID: newPaperOrderID(),
		Price:         price.Round(4),
		Quantity:      quantity,
		FilledAt:      time.Now().UTC(),
	}
}

// ExecuteLimit fills at the current price when the limit is marketable
// (buy at or below limit, sell at or above) and reports false otherwise.
// No slippage on limit fills.
func (e *Engine) ExecuteLimit(side trading.Side, quantity int64, limit decimal.Decimal, quote broker.Quote) (Fill, bool) {
	price := decimal.NewFromFloat(quote.Price)
	marketable := (side == trading.SideBuy && price.LessThanOrEqual(limit)) ||
		(side == trading.SideSell && price.GreaterThanOrEqual(limit))
	if !marketable {
		return Fill{}, false
	}
	return Fill{
		BrokerOrderID: newPaperOrderID(),
		Price:         price.Round(4),
		Quantity:      quantity,
		FilledAt:      time.Now().UTC(),
	}, true
}
