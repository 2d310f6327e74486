package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"microtrade/internal/ledger"
	"microtrade/internal/repository"
	"microtrade/internal/trading"
)

type PortfolioHandler struct {
	Repo      repository.Repository
	Portfolio *ledger.PortfolioLedger
	Mode      *trading.ModeSwitch
}

func (h *PortfolioHandler) Register(r *gin.Engine) {
	p := r.Group("/api/v1/portfolio")
	p.GET("/summary", h.summary)
	p.GET("/positions", h.positions)
	p.GET("/trades", h.trades)
	p.GET("/snapshots", h.snapshots)
	p.POST("/snapshots/run", h.runSnapshot)
}

func (h *PortfolioHandler) summary(c *gin.Context) {
	if h.Portfolio == nil {
		Error(c, http.StatusServiceUnavailable, "portfolio service unavailable", nil)
		return
	}
	mode := h.Mode.Current()
	if raw := c.Query("mode"); raw != "" {
		m, ok := trading.ParseMode(raw)
		if !ok {
			Error(c, http.StatusBadRequest, "invalid mode", nil)
			return
		}
		mode = m
	}
	out, err := h.Portfolio.GetSummary(c.Request.Context(), mode)
	if err != nil {
		if errors.Is(err, ledger.ErrAccountNotFound) {
			Error(c, http.StatusNotFound, "no active account for mode", nil)
			return
		}
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, out, nil)
}

func (h *PortfolioHandler) positions(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	params := repository.ListPositionsParams{
		Limit:     intQuery(c, "limit", 100),
		Offset:    intQuery(c, "offset", 0),
		AccountID: uint64QueryPtr(c, "account_id"),
		Market:    strQueryPtr(c, "market"),
		IsPaper:   boolQueryPtr(c, "is_paper"),
		NonZero:   true,
	}
	items, err := h.Repo.ListPositions(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, nil)
}

func (h *PortfolioHandler) trades(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	params := repository.ListTradesParams{
		Limit:     limit,
		Offset:    offset,
		AccountID: uint64QueryPtr(c, "account_id"),
		OrderID:   uint64QueryPtr(c, "order_id"),
		Symbol:    strQueryPtr(c, "symbol"),
		IsPaper:   boolQueryPtr(c, "is_paper"),
		Since:     dateQueryPtr(c, "since"),
		Until:     dateQueryPtr(c, "until"),
		OrderBy:   "executed_at",
		Asc:       boolPtr(false),
	}
	items, err := h.Repo.ListTrades(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	total, err := h.Repo.CountTrades(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, paginationMeta(limit, offset, total))
}

func (h *PortfolioHandler) snapshots(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	params := repository.ListPortfolioSnapshotsParams{
		Limit:       intQuery(c, "limit", 90),
		Offset:      intQuery(c, "offset", 0),
		AccountID:   uint64QueryPtr(c, "account_id"),
		TradingMode: strQueryPtr(c, "mode"),
		Since:       dateQueryPtr(c, "since"),
		Until:       dateQueryPtr(c, "until"),
	}
	items, err := h.Repo.ListPortfolioSnapshots(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, nil)
}

func (h *PortfolioHandler) runSnapshot(c *gin.Context) {
	if h.Portfolio == nil {
		Error(c, http.StatusServiceUnavailable, "portfolio service unavailable", nil)
		return
	}
	count, err := h.Portfolio.TakeDailySnapshot(c.Request.Context())
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, gin.H{"snapshots": count}, nil)
}
