package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"microtrade/internal/marketdata"
	"microtrade/internal/trading"
)

type MarketHandler struct {
	Cache *marketdata.Cache
}

func (h *MarketHandler) Register(r *gin.Engine) {
	m := r.Group("/api/v1/market")
	m.GET("/quote", h.quote)
	m.GET("/daily", h.daily)
	m.GET("/minutes", h.minutes)
}

func marketQuery(c *gin.Context) (string, trading.Market, bool) {
	symbol := strings.TrimSpace(c.Query("symbol"))
	if symbol == "" {
		Error(c, http.StatusBadRequest, "symbol required", nil)
		return "", "", false
	}
	market := trading.MarketKR
	if raw := c.Query("market"); raw != "" {
		m, ok := trading.ParseMarket(raw)
		if !ok {
			Error(c, http.StatusBadRequest, "invalid market", nil)
			return "", "", false
		}
		market = m
	}
	return symbol, market, true
}

func (h *MarketHandler) quote(c *gin.Context) {
	if h.Cache == nil {
		Error(c, http.StatusServiceUnavailable, "market data unavailable", nil)
		return
	}
	symbol, market, ok := marketQuery(c)
	if !ok {
		return
	}
	q := h.Cache.GetQuote(c.Request.Context(), symbol, market)
	if q.Price <= 0 {
		Error(c, http.StatusNotFound, "no quote available", nil)
		return
	}
	Ok(c, q, nil)
}

func (h *MarketHandler) daily(c *gin.Context) {
	if h.Cache == nil {
		Error(c, http.StatusServiceUnavailable, "market data unavailable", nil)
		return
	}
	symbol, market, ok := marketQuery(c)
	if !ok {
		return
	}
	days := intQuery(c, "days", 30)
	if days <= 0 || days > 400 {
		Error(c, http.StatusBadRequest, "days out of range", nil)
		return
	}
	bars, err := h.Cache.GetDailyBars(c.Request.Context(), symbol, market, days)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, bars, nil)
}

func (h *MarketHandler) minutes(c *gin.Context) {
	if h.Cache == nil {
		Error(c, http.StatusServiceUnavailable, "market data unavailable", nil)
		return
	}
	symbol, market, ok := marketQuery(c)
	if !ok {
		return
	}
	minutes := intQuery(c, "minutes", 1)
	if minutes <= 0 || minutes > 60 {
		Error(c, http.StatusBadRequest, "minutes out of range", nil)
		return
	}
	bars, err := h.Cache.GetIntradayBars(c.Request.Context(), symbol, market, minutes)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, bars, nil)
}
