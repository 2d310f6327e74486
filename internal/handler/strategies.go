package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"

	"microtrade/internal/models"
	"microtrade/internal/repository"
	"microtrade/internal/strategy"
	"microtrade/internal/trading"
)

type StrategyHandler struct {
	Repo   repository.Repository
	Runner *strategy.Runner
}

func (h *StrategyHandler) Register(r *gin.Engine) {
	s := r.Group("/api/v1/strategies")
	s.GET("", h.list)
	s.POST("", h.upsert)
	s.GET("/:id", h.get)
	s.POST("/:id/enable", h.enable)
	s.DELETE("/:id", h.remove)
	s.POST("/run", h.run)
}

func (h *StrategyHandler) list(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	params := repository.ListStrategyConfigsParams{
		Limit:     intQuery(c, "limit", 100),
		Offset:    intQuery(c, "offset", 0),
		Name:      strQueryPtr(c, "name"),
		AccountID: uint64QueryPtr(c, "account_id"),
		Enabled:   boolQueryPtr(c, "enabled"),
	}
	items, err := h.Repo.ListStrategyConfigs(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, nil)
}

type strategyBody struct {
	ID        uint64          `json:"id"`
	Name      string          `json:"name" binding:"required"`
	AccountID uint64          `json:"account_id"`
	Symbol    string          `json:"symbol" binding:"required"`
	Market    string          `json:"market"`
	Params    json.RawMessage `json:"params"`
	Enabled   *bool           `json:"enabled"`
}

func (h *StrategyHandler) upsert(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	var body strategyBody
	if err := c.ShouldBindJSON(&body); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	name := strings.ToUpper(strings.TrimSpace(body.Name))
	if _, err := strategy.New(name, strategy.ParseParams(body.Params)); err != nil {
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
	item := &models.StrategyConfig{
		ID:        body.ID,
		Name:      name,
		AccountID: body.AccountID,
		Symbol:    strings.TrimSpace(body.Symbol),
		Market:    string(market),
		Enabled:   true,
	}
	if len(body.Params) > 0 {
		item.Params = datatypes.JSON(body.Params)
	}
	if body.Enabled != nil {
		item.Enabled = *body.Enabled
	}
	if err := h.Repo.UpsertStrategyConfig(c.Request.Context(), item); err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, item, nil)
}

func (h *StrategyHandler) get(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	id := uint64Param(c, "id")
	if id == 0 {
		Error(c, http.StatusBadRequest, "invalid id", nil)
		return
	}
	item, err := h.Repo.GetStrategyConfigByID(c.Request.Context(), id)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if item == nil {
		Error(c, http.StatusNotFound, "strategy config not found", nil)
		return
	}
	Ok(c, item, nil)
}

func (h *StrategyHandler) enable(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	id := uint64Param(c, "id")
	if id == 0 {
		Error(c, http.StatusBadRequest, "invalid id", nil)
		return
	}
	var body struct {
		Enabled bool `json:"enabled"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	if err := h.Repo.SetStrategyConfigEnabled(c.Request.Context(), id, body.Enabled); err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	item, _ := h.Repo.GetStrategyConfigByID(c.Request.Context(), id)
	Ok(c, item, nil)
}

func (h *StrategyHandler) remove(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	id := uint64Param(c, "id")
	if id == 0 {
		Error(c, http.StatusBadRequest, "invalid id", nil)
		return
	}
	if err := h.Repo.DeleteStrategyConfig(c.Request.Context(), id); err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, gin.H{"deleted": id}, nil)
}

func (h *StrategyHandler) run(c *gin.Context) {
	if h.Runner == nil {
		Error(c, http.StatusServiceUnavailable, "strategy runner unavailable", nil)
		return
	}
	h.Runner.RunOnce(c.Request.Context())
	Ok(c, gin.H{"status": "ran"}, nil)
}
