package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"microtrade/internal/broker"
	"microtrade/internal/marketdata"
	"microtrade/internal/models"
	"microtrade/internal/repository"
	"microtrade/internal/trading"
)

// Commission applied to real-mode fills. Paper fills use the account's own
// rate.
var realCommissionRate = decimal.NewFromFloat(0.0015)

type CreateOrderRequest struct {
	Symbol     string
	Market     trading.Market
	Side       trading.Side
	OrderType  trading.OrderType
	Quantity   int64
	LimitPrice *decimal.Decimal

	// Source is "manual" unless set; strategy orders also carry the
	// producing strategy's name.
	Source       string
	StrategyName string
}

// OrderLedger drives orders through PENDING/SUBMITTED into FILLED,
// REJECTED or CANCELLED, keeping Account, Position and Trade rows
// consistent with every fill.
type OrderLedger struct {
	Repo     repository.Repository
	Cache    *marketdata.Cache
	Registry *broker.Registry
	Mode     *trading.ModeSwitch
	Logger   *zap.Logger
}

func NewOrderLedger(repo repository.Repository, cache *marketdata.Cache, registry *broker.Registry, mode *trading.ModeSwitch, logger *zap.Logger) *OrderLedger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderLedger{Repo: repo, Cache: cache, Registry: registry, Mode: mode, Logger: logger}
}

func (l *OrderLedger) commissionRate(acct *models.Account, paper bool) decimal.Decimal {
	if paper {
		return acct.CommissionRate
	}
	return realCommissionRate
}

// estimatePrice resolves the price used for pre-trade cost estimation: the
// supplied limit price when present, the live quote otherwise.
func (l *OrderLedger) estimatePrice(ctx context.Context, req CreateOrderRequest) (decimal.Decimal, error) {
	if req.LimitPrice != nil && req.LimitPrice.IsPositive() {
		return *req.LimitPrice, nil
	}
	q := l.Cache.GetQuote(ctx, req.Symbol, req.Market)
	if q.Price <= 0 {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrPriceUnavailable, req.Symbol)
	}
	return decimal.NewFromFloat(q.Price), nil
}

// CreateOrder validates the request, submits it to the active gateway and
// applies the fill in one transaction. The balance pre-check deliberately
// covers only paper-mode buys: real-mode buys rely on the brokerage's own
// rejection, and sells are guarded by position sufficiency instead.
func (l *OrderLedger) CreateOrder(ctx context.Context, req CreateOrderRequest) (*models.Order, error) {
	if req.Quantity <= 0 {
		return nil, fmt.Errorf("quantity must be positive")
	}
	mode := l.Mode.Current()
	paper := mode.IsPaper()

	acct, err := l.Repo.GetActiveAccount(ctx, string(mode))
	if err != nil {
		return nil, err
	}
	if acct == nil {
		return nil, fmt.Errorf("%w: mode %s", ErrAccountNotFound, mode)
	}

	if req.Side == trading.SideBuy && paper {
		price, err := l.estimatePrice(ctx, req)
		if err != nil {
			return nil, err
		}
		qty := decimal.NewFromInt(req.Quantity)
		estimated := price.Mul(qty)
		commission := estimated.Mul(l.commissionRate(acct, paper))
		if acct.CurrentBalance.LessThan(estimated.Add(commission)) {
			return nil, fmt.Errorf("%w: need %s, have %s",
				ErrInsufficientFunds, estimated.Add(commission), acct.CurrentBalance)
		}
	}
	if req.Side == trading.SideSell && paper {
		pos, err := l.Repo.GetPosition(ctx, acct.ID, req.Symbol, string(req.Market), paper)
		if err != nil {
			return nil, err
		}
		if pos == nil || pos.Quantity < req.Quantity {
			held := int64(0)
			if pos != nil {
				held = pos.Quantity
			}
			return nil, fmt.Errorf("%w: selling %d, holding %d",
				ErrInsufficientPosition, req.Quantity, held)
		}
	}

	source := req.Source
	if source == "" {
		source = trading.SourceManual
	}

	now := time.Now().UTC()
	order := &models.Order{
		AccountID:    acct.ID,
		Symbol:       req.Symbol,
		Market:       string(req.Market),
		Side:         string(req.Side),
		OrderType:    string(req.OrderType),
		Quantity:     req.Quantity,
		LimitPrice:   req.LimitPrice,
		Status:       trading.StatusSubmitted,
		IsPaper:      paper,
		Source:       source,
		StrategyName: req.StrategyName,
		SubmittedAt:  &now,
	}
	if err := l.Repo.InsertOrder(ctx, order); err != nil {
		return nil, err
	}

	gw, err := l.Registry.Get(ctx, mode)
	if err != nil {
		l.reject(ctx, order, "gateway unavailable: "+err.Error())
		return order, nil
	}
	result, err := gw.PlaceOrder(ctx, broker.OrderRequest{
		Symbol:     req.Symbol,
		Market:     req.Market,
		Side:       req.Side,
		OrderType:  req.OrderType,
		Quantity:   req.Quantity,
		LimitPrice: req.LimitPrice,
	})
	if err != nil {
		l.reject(ctx, order, err.Error())
		return order, nil
	}
	if result.Status == trading.StatusRejected {
		l.reject(ctx, order, result.Reason)
		return order, nil
	}

	fillPrice := decimal.Zero
	if result.FilledPrice != nil {
		fillPrice = *result.FilledPrice
	} else if p, err := l.estimatePrice(ctx, req); err == nil {
		fillPrice = p
	}
	fillQty := result.FilledQuantity
	if fillQty == 0 {
		fillQty = req.Quantity
	}

	if err := l.applyFill(ctx, acct, order, result.BrokerOrderID, fillPrice, fillQty); err != nil {
		l.reject(ctx, order, err.Error())
		return order, nil
	}
	l.Logger.Info("order filled",
		zap.Uint64("order_id", order.ID), zap.String("side", order.Side),
		zap.String("symbol", order.Symbol), zap.Int64("quantity", fillQty),
		zap.String("price", fillPrice.String()), zap.Bool("paper", paper))
	return order, nil
}

func (l *OrderLedger) reject(ctx context.Context, order *models.Order, reason string) {
	order.Status = trading.StatusRejected
	order.RejectReason = reason
	if err := l.Repo.UpdateOrderStatus(ctx, order.ID, trading.StatusRejected, map[string]any{
		"reject_reason": reason,
	}); err != nil {
		l.Logger.Error("order reject update failed",
			zap.Uint64("order_id", order.ID), zap.Error(err))
	}
	l.Logger.Warn("order rejected",
		zap.Uint64("order_id", order.ID), zap.String("reason", reason))
}

// applyFill commits the fill as one transaction: order to FILLED, trade
// appended, position reworked, and for paper accounts the cash balance
// adjusted. Any failure rolls the whole fill back.
func (l *OrderLedger) applyFill(ctx context.Context, acct *models.Account, order *models.Order, brokerOrderID string, fillPrice decimal.Decimal, fillQty int64) error {
	side := trading.Side(order.Side)
	qty := decimal.NewFromInt(fillQty)
	totalAmount := fillPrice.Mul(qty)
	commission := totalAmount.Mul(l.commissionRate(acct, order.IsPaper)).Round(2)
	filledAt := time.Now().UTC()

	return l.Repo.InTx(ctx, func(tx *gorm.DB) error {
		pos, err := l.Repo.GetPositionForUpdateTx(ctx, tx, acct.ID, order.Symbol, order.Market, order.IsPaper)
		if err != nil {
			return err
		}

		realized := decimal.Zero
		costBasis := decimal.Zero
		switch side {
		case trading.SideBuy:
			if pos == nil {
				pos = &models.Position{
					AccountID: acct.ID,
					Symbol:    order.Symbol,
					Market:    order.Market,
					IsPaper:   order.IsPaper,
					Quantity:  fillQty,
					AvgPrice:  fillPrice,
				}
			} else {
				oldQty := decimal.NewFromInt(pos.Quantity)
				newQty := oldQty.Add(qty)
				pos.AvgPrice = pos.AvgPrice.Mul(oldQty).Add(totalAmount).Div(newQty)
				pos.Quantity += fillQty
			}
			pos.CurrentPrice = fillPrice
			costBasis = pos.AvgPrice.Mul(qty)
			if err := l.Repo.UpsertPositionTx(ctx, tx, pos); err != nil {
				return err
			}

		case trading.SideSell:
			if pos == nil || pos.Quantity < fillQty {
				held := int64(0)
				if pos != nil {
					held = pos.Quantity
				}
				return fmt.Errorf("%w: selling %d, holding %d",
					ErrInsufficientPosition, fillQty, held)
			}
			realized = fillPrice.Sub(pos.AvgPrice).Mul(qty)
			costBasis = pos.AvgPrice.Mul(qty)
			pos.Quantity -= fillQty
			if pos.Quantity == 0 {
				if err := l.Repo.DeletePositionTx(ctx, tx, pos.ID); err != nil {
					return err
				}
			} else {
				pos.CurrentPrice = fillPrice
				if err := l.Repo.UpsertPositionTx(ctx, tx, pos); err != nil {
					return err
				}
			}
		}

		if err := l.Repo.InsertTradeTx(ctx, tx, &models.Trade{
			OrderID:     order.ID,
			AccountID:   acct.ID,
			Symbol:      order.Symbol,
			Market:      order.Market,
			Side:        order.Side,
			Quantity:    fillQty,
			Price:       fillPrice,
			TotalAmount: totalAmount,
			Commission:  commission,
			RealizedPnl: realized,
			CostBasis:   costBasis,
			IsPaper:     order.IsPaper,
			ExecutedAt:  filledAt,
		}); err != nil {
			return err
		}

		// Real-mode cash is the brokerage's ledger, not ours.
		if order.IsPaper {
			var newBalance decimal.Decimal
			if side == trading.SideBuy {
				newBalance = acct.CurrentBalance.Sub(totalAmount).Sub(commission)
			} else {
				newBalance = acct.CurrentBalance.Add(totalAmount).Sub(commission)
			}
			if err := l.Repo.UpdateAccountBalanceTx(ctx, tx, acct.ID, newBalance); err != nil {
				return err
			}
			acct.CurrentBalance = newBalance
		}

		order.Status = trading.StatusFilled
		order.BrokerOrderID = brokerOrderID
		order.FilledPrice = &fillPrice
		order.FilledQuantity = fillQty
		order.FilledAt = &filledAt
		return l.Repo.UpdateOrderStatusTx(ctx, tx, order.ID, trading.StatusFilled, map[string]any{
			"broker_order_id": brokerOrderID,
			"filled_price":    fillPrice,
			"filled_quantity": fillQty,
			"filled_at":       filledAt,
		})
	})
}

// CancelOrder cancels an order still in PENDING or SUBMITTED. Cancelling
// anything else fails with an invalid-state error.
func (l *OrderLedger) CancelOrder(ctx context.Context, orderID uint64) (*models.Order, error) {
	order, err := l.Repo.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, fmt.Errorf("%w: id %d", ErrOrderNotFound, orderID)
	}
	if !trading.Cancellable(order.Status) {
		return nil, fmt.Errorf("%w: cannot cancel %s order", ErrInvalidOrderState, order.Status)
	}

	if order.BrokerOrderID != "" {
		gw, err := l.Registry.Get(ctx, l.Mode.Current())
		if err != nil {
			return nil, err
		}
		if err := gw.CancelOrder(ctx, order.BrokerOrderID); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	order.Status = trading.StatusCancelled
	order.CancelledAt = &now
	if err := l.Repo.UpdateOrderStatus(ctx, order.ID, trading.StatusCancelled, map[string]any{
		"cancelled_at": now,
	}); err != nil {
		return nil, err
	}
	l.Logger.Info("order cancelled", zap.Uint64("order_id", order.ID))
	return order, nil
}
