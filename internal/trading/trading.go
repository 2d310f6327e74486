// Package trading holds the shared order vocabulary (sides, order types,
// markets) and the process-wide trading mode switch.
package trading

import "strings"

type Mode string

const (
	ModeReal  Mode = "REAL"
	ModePaper Mode = "PAPER"
)

// Modes lists every trading mode, in snapshot order.
var Modes = []Mode{ModePaper, ModeReal}

func ParseMode(raw string) (Mode, bool) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case string(ModeReal):
		return ModeReal, true
	case string(ModePaper):
		return ModePaper, true
	}
	return "", false
}

func (m Mode) IsPaper() bool {
	return m == ModePaper
}

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

func ParseSide(raw string) (Side, bool) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case string(SideBuy):
		return SideBuy, true
	case string(SideSell):
		return SideSell, true
	}
	return "", false
}

type OrderType string

const (
	OrderMarket OrderType = "MARKET"
	OrderLimit  OrderType = "LIMIT"
)

func ParseOrderType(raw string) (OrderType, bool) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case string(OrderMarket):
		return OrderMarket, true
	case string(OrderLimit):
		return OrderLimit, true
	}
	return "", false
}

type Market string

const (
	MarketKR Market = "KR"
	MarketUS Market = "US"
)

func ParseMarket(raw string) (Market, bool) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case string(MarketKR):
		return MarketKR, true
	case string(MarketUS):
		return MarketUS, true
	}
	return "", false
}

// Currency returns the settlement currency for the market.
func (m Market) Currency() string {
	if m == MarketUS {
		return "USD"
	}
	return "KRW"
}

// Order sources. Manual orders come through the API; strategy orders
// carry the name of the strategy that produced them.
const (
	SourceManual   = "manual"
	SourceStrategy = "strategy"
)

// Order statuses. Transitions: PENDING -> SUBMITTED -> FILLED|REJECTED,
// and PENDING|SUBMITTED -> CANCELLED.
const (
	StatusPending   = "PENDING"
	StatusSubmitted = "SUBMITTED"
	StatusFilled    = "FILLED"
	StatusRejected  = "REJECTED"
	StatusCancelled = "CANCELLED"
)

// Cancellable reports whether an order in the given status may still be
// cancelled.
func Cancellable(status string) bool {
	return status == StatusPending || status == StatusSubmitted
}
