package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"microtrade/internal/ledger"
	"microtrade/internal/repository"
	"microtrade/internal/trading"
)

type OrderHandler struct {
	Repo   repository.Repository
	Orders *ledger.OrderLedger
}

func (h *OrderHandler) Register(r *gin.Engine) {
	o := r.Group("/api/v1/orders")
	o.POST("", h.create)
	o.GET("", h.list)
	o.GET("/:id", h.get)
	o.POST("/:id/cancel", h.cancel)
}

type createOrderBody struct {
	Symbol    string  `json:"symbol" binding:"required"`
	Market    string  `json:"market"`
	Side      string  `json:"side" binding:"required"`
	OrderType string  `json:"order_type"`
	Quantity  int64   `json:"quantity" binding:"required"`
	Price     *string `json:"price"`
}

func (h *OrderHandler) create(c *gin.Context) {
	if h.Orders == nil {
		Error(c, http.StatusServiceUnavailable, "order service unavailable", nil)
		return
	}
	var body createOrderBody
	if err := c.ShouldBindJSON(&body); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	if body.Quantity <= 0 {
		Error(c, http.StatusBadRequest, "quantity must be positive", nil)
		return
	}
	side, ok := trading.ParseSide(body.Side)
	if !ok {
		Error(c, http.StatusBadRequest, "invalid side", nil)
		return
	}
	market := trading.MarketKR
	if strings.TrimSpace(body.Market) != "" {
		m, ok := trading.ParseMarket(body.Market)
		if !ok {
			Error(c, http.StatusBadRequest, "invalid market", nil)
			return
		}
		market = m
	}
	orderType := trading.OrderMarket
	if strings.TrimSpace(body.OrderType) != "" {
		t, ok := trading.ParseOrderType(body.OrderType)
		if !ok {
			Error(c, http.StatusBadRequest, "invalid order_type", nil)
			return
		}
		orderType = t
	}
	req := ledger.CreateOrderRequest{
		Symbol:    strings.TrimSpace(body.Symbol),
		Market:    market,
		Side:      side,
		OrderType: orderType,
		Quantity:  body.Quantity,
		Source:    trading.SourceManual,
	}
	if body.Price != nil {
		price, err := decimal.NewFromString(strings.TrimSpace(*body.Price))
		if err != nil || !price.IsPositive() {
			Error(c, http.StatusBadRequest, "invalid price", nil)
			return
		}
		req.LimitPrice = &price
	}
	if orderType == trading.OrderLimit && req.LimitPrice == nil {
		Error(c, http.StatusBadRequest, "limit order requires price", nil)
		return
	}
	order, err := h.Orders.CreateOrder(c.Request.Context(), req)
	if err != nil {
		Error(c, statusForOrderError(err), err.Error(), nil)
		return
	}
	Created(c, order)
}

func (h *OrderHandler) list(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	var since *time.Time
	if t := dateQueryPtr(c, "since"); t != nil {
		since = t
	}
	params := repository.ListOrdersParams{
		Limit:     limit,
		Offset:    offset,
		AccountID: uint64QueryPtr(c, "account_id"),
		Symbol:    strQueryPtr(c, "symbol"),
		Status:    strQueryPtr(c, "status"),
		IsPaper:   boolQueryPtr(c, "is_paper"),
		Since:     since,
		OrderBy:   "created_at",
		Asc:       boolPtr(false),
	}
	items, err := h.Repo.ListOrders(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	total, err := h.Repo.CountOrders(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, paginationMeta(limit, offset, total))
}

func (h *OrderHandler) get(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	id := uint64Param(c, "id")
	if id == 0 {
		Error(c, http.StatusBadRequest, "invalid id", nil)
		return
	}
	item, err := h.Repo.GetOrderByID(c.Request.Context(), id)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if item == nil {
		Error(c, http.StatusNotFound, "order not found", nil)
		return
	}
	Ok(c, item, nil)
}

func (h *OrderHandler) cancel(c *gin.Context) {
	if h.Orders == nil {
		Error(c, http.StatusServiceUnavailable, "order service unavailable", nil)
		return
	}
	id := uint64Param(c, "id")
	if id == 0 {
		Error(c, http.StatusBadRequest, "invalid id", nil)
		return
	}
	item, err := h.Orders.CancelOrder(c.Request.Context(), id)
	if err != nil {
		Error(c, statusForOrderError(err), err.Error(), nil)
		return
	}
	Ok(c, item, nil)
}

func statusForOrderError(err error) int {
	switch {
	case errors.Is(err, ledger.ErrAccountNotFound), errors.Is(err, ledger.ErrOrderNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrInsufficientFunds), errors.Is(err, ledger.ErrInsufficientPosition):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ledger.ErrInvalidOrderState):
		return http.StatusConflict
	case errors.Is(err, ledger.ErrPriceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}
