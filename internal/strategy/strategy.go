// Package strategy holds the built-in signal producers. A strategy looks
// at daily bars, the live price and the current holding, and emits at most
// one trade intent per evaluation.
package strategy

import (
	"encoding/json"
	"fmt"
	"strings"

	"microtrade/internal/broker"
	"microtrade/internal/trading"
)

// Signal is a trade intent. Side empty means no action; Reason always
// explains the decision, traded or not.
type Signal struct {
	Symbol    string
	Market    trading.Market
	Side      trading.Side
	Quantity  int64
	OrderType trading.OrderType
	Reason    string
}

func (s Signal) Active() bool {
	return (s.Side == trading.SideBuy || s.Side == trading.SideSell) && s.Quantity > 0
}

// Input is everything a strategy may look at. Bars are chronological,
// oldest first.
type Input struct {
	Symbol      string
	Market      trading.Market
	Bars        []broker.DailyBar
	Price       float64
	PositionQty int64
}

type Strategy interface {
	Name() string
	Evaluate(in Input) Signal
}

// Params is the JSON parameter bag from a strategy config row.
type Params map[string]json.RawMessage

func ParseParams(raw []byte) Params {
	if len(raw) == 0 {
		return Params{}
	}
	var p Params
	if err := json.Unmarshal(raw, &p); err != nil {
		return Params{}
	}
	return p
}

func (p Params) Float(key string, fallback float64) float64 {
	raw, ok := p[key]
	if !ok {
		return fallback
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return fallback
	}
	return v
}

func (p Params) Int(key string, fallback int) int {
	return int(p.Float(key, float64(fallback)))
}

// New builds a strategy by registered name.
func New(name string, params Params) (Strategy, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "DCA":
		return NewDCA(params), nil
	case "MOVING_AVERAGE":
		return NewMovingAverage(params), nil
	case "RSI_REBALANCE":
		return NewRSIRebalance(params), nil
	}
	return nil, fmt.Errorf("unknown strategy %q", name)
}
