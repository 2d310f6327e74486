// Package broker defines the gateway surface the trading service talks to,
// regardless of whether orders route to the real brokerage, the paper
// simulator, or the keyless data-only provider.
package broker

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"microtrade/internal/trading"
)

var (
	ErrNotConnected = errors.New("broker: not connected")
	ErrUnsupported  = errors.New("broker: operation not supported")
	ErrUnknownMode  = errors.New("broker: unknown trading mode")
)

// Quote is a raw market quote. Prices stay float64 until they cross into
// money math.
type Quote struct {
	Symbol     string
	Market     trading.Market
	Price      float64
	PrevClose  float64
	ChangeRate float64
	Volume     int64
	At         time.Time
}

// DailyBar is one day of OHLCV.
type DailyBar struct {
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
}

// IntradayBar is one minute-resolution bar.
type IntradayBar struct {
	At     time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
}

type Holding struct {
	Symbol   string
	Market   trading.Market
	Quantity int64
	AvgPrice decimal.Decimal
	Price    decimal.Decimal
}

// Balance is the broker-side account view. A failed balance call yields
// the zero value rather than an error so callers degrade gracefully.
type Balance struct {
	Cash       decimal.Decimal
	TotalValue decimal.Decimal
	Currency   string
	Holdings   []Holding
}

type OrderRequest struct {
	Symbol     string
	Market     trading.Market
	Side       trading.Side
	OrderType  trading.OrderType
	Quantity   int64
	LimitPrice *decimal.Decimal
}

// OrderResult reports the broker's disposition of an order. Status is one
// of SUBMITTED, FILLED or REJECTED; FilledPrice is set only on FILLED.
type OrderResult struct {
	BrokerOrderID  string
	Status         string
	FilledPrice    *decimal.Decimal
	FilledQuantity int64
	Reason         string
}

// QuoteSource is the read-only market data subset of a gateway.
type QuoteSource interface {
	GetQuote(ctx context.Context, symbol string, market trading.Market) (*Quote, error)
	GetDailyBars(ctx context.Context, symbol string, market trading.Market, days int) ([]DailyBar, error)
	GetIntradayBars(ctx context.Context, symbol string, market trading.Market, minutes int) ([]IntradayBar, error)
}

// Broker is one gateway. Connect must be called before any other method;
// the registry guarantees it runs exactly once per instance.
type Broker interface {
	QuoteSource

	Name() string
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error

	PlaceOrder(ctx context.Context, req OrderRequest) (*OrderResult, error)
	CancelOrder(ctx context.Context, brokerOrderID string) error
	GetBalance(ctx context.Context) Balance
}
