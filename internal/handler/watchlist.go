package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"microtrade/internal/models"
	"microtrade/internal/repository"
	"microtrade/internal/trading"
)

type WatchlistHandler struct {
	Repo repository.Repository
}

func (h *WatchlistHandler) Register(r *gin.Engine) {
	w := r.Group("/api/v1/watchlist")
	w.GET("", h.list)
	w.PUT("", h.upsert)
	w.DELETE("/:symbol", h.remove)
}

func (h *WatchlistHandler) list(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	params := repository.ListWatchlistParams{
		Limit:   intQuery(c, "limit", 200),
		Offset:  intQuery(c, "offset", 0),
		Market:  strQueryPtr(c, "market"),
		Enabled: boolQueryPtr(c, "enabled"),
	}
	items, err := h.Repo.ListWatchlistItems(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, nil)
}

type watchlistBody struct {
	Symbol  string `json:"symbol" binding:"required"`
	Market  string `json:"market"`
	Name    string `json:"name"`
	Enabled *bool  `json:"enabled"`
}

func (h *WatchlistHandler) upsert(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	var body watchlistBody
	if err := c.ShouldBindJSON(&body); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
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
	item := &models.WatchlistItem{
		Symbol:  strings.TrimSpace(body.Symbol),
		Market:  string(market),
		Name:    strings.TrimSpace(body.Name),
		Enabled: true,
	}
	if body.Enabled != nil {
		item.Enabled = *body.Enabled
	}
	if err := h.Repo.UpsertWatchlistItem(c.Request.Context(), item); err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, item, nil)
}

func (h *WatchlistHandler) remove(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	symbol := strings.TrimSpace(c.Param("symbol"))
	if symbol == "" {
		Error(c, http.StatusBadRequest, "symbol required", nil)
		return
	}
	market := trading.MarketKR
	if raw := c.Query("market"); raw != "" {
		m, ok := trading.ParseMarket(raw)
		if !ok {
			Error(c, http.StatusBadRequest, "invalid market", nil)
			return
		}
		market = m
	}
	if err := h.Repo.DeleteWatchlistItem(c.Request.Context(), symbol, string(market)); err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, gin.H{"deleted": symbol}, nil)
}
