package paper

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"microtrade/internal/broker"
	"microtrade/internal/trading"
)

// BalanceSource reads the simulated account backing the paper broker.
type BalanceSource interface {
	PaperBalance(ctx context.Context) (cash decimal.Decimal, currency string, err error)
}

// Broker fills orders instantly against prices from Quotes. Quotes is
// usually the KIS gateway in mock-or-real form, or the free provider when
// no credentials exist.
type Broker struct {
	Engine   *Engine
	Quotes   broker.QuoteSource
	Balances BalanceSource
	Logger   *zap.Logger
}

func NewBroker(engine *Engine, quotes broker.QuoteSource, balances BalanceSource, logger *zap.Logger) *Broker {
	if engine == nil {
		engine = NewEngine(0)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Broker{Engine: engine, Quotes: quotes, Balances: balances, Logger: logger}
}

func (b *Broker) Name() string { return "paper" }

func (b *Broker) Connect(ctx context.Context) error {
	b.Logger.Info("paper broker connected")
	return nil
}

func (b *Broker) Disconnect(ctx context.Context) error {
	return nil
}

func (b *Broker) PlaceOrder(ctx context.Context, req broker.OrderRequest) (*broker.OrderResult, error) {
	if b == nil || b.Quotes == nil {
		return nil, broker.ErrNotConnected
	}
	quote, err := b.Quotes.GetQuote(ctx, req.Symbol, req.Market)
	if err != nil {
		return nil, fmt.Errorf("paper order needs a live price: %w", err)
	}
	if quote == nil || quote.Price <= 0 {
		return &broker.OrderResult{
			Status: trading.StatusRejected,
			Reason: "no market price available",
		}, nil
	}

	var fill Fill
	switch req.OrderType {
	case trading.OrderLimit:
		if req.LimitPrice == nil {
			return &broker.OrderResult{
				Status: trading.StatusRejected,
				Reason: "limit order requires a price",
			}, nil
		}
		var ok bool
		fill, ok = b.Engine.ExecuteLimit(req.Side, req.Quantity, *req.LimitPrice, *quote)
		if !ok {
			return &broker.OrderResult{
				Status: trading.StatusRejected,
				Reason: fmt.Sprintf("limit %s not met (current %.2f)", req.LimitPrice, quote.Price),
			}, nil
		}
	default:
		fill = b.Engine.ExecuteMarket(req.Side, req.Quantity, *quote)
	}

	b.Logger.Info("paper fill",
		zap.String("side", string(req.Side)), zap.String("symbol", req.Symbol),
		zap.Int64("quantity", fill.Quantity), zap.String("price", fill.Price.String()))
	return &broker.OrderResult{
		BrokerOrderID:  fill.BrokerOrderID,
		Status:         trading.StatusFilled,
		FilledPrice:    &fill.Price,
		FilledQuantity: fill.Quantity,
	}, nil
}

// CancelOrder is a no-op: paper fills are instantaneous, so anything still
// cancellable never reached the simulated exchange.
func (b *Broker) CancelOrder(ctx context.Context, brokerOrderID string) error {
	return nil
}

func (b *Broker) GetBalance(ctx context.Context) broker.Balance {
	if b == nil || b.Balances == nil {
		return broker.Balance{Currency: "KRW"}
	}
	cash, currency, err := b.Balances.PaperBalance(ctx)
	if err != nil {
		b.Logger.Error("paper balance read failed", zap.Error(err))
		return broker.Balance{Currency: "KRW"}
	}
	if currency == "" {
		currency = "KRW"
	}
	return broker.Balance{Cash: cash, TotalValue: cash, Currency: currency}
}

func (b *Broker) GetQuote(ctx context.Context, symbol string, market trading.Market) (*broker.Quote, error) {
	if b == nil || b.Quotes == nil {
		return nil, broker.ErrNotConnected
	}
	return b.Quotes.GetQuote(ctx, symbol, market)
}

func (b *Broker) GetDailyBars(ctx context.Context, symbol string, market trading.Market, days int) ([]broker.DailyBar, error) {
	if b == nil || b.Quotes == nil {
		return nil, broker.ErrNotConnected
	}
	return b.Quotes.GetDailyBars(ctx, symbol, market, days)
}

func (b *Broker) GetIntradayBars(ctx context.Context, symbol string, market trading.Market, minutes int) ([]broker.IntradayBar, error) {
	if b == nil || b.Quotes == nil {
		return nil, broker.ErrNotConnected
	}
	return b.Quotes.GetIntradayBars(ctx, symbol, market, minutes)
}
