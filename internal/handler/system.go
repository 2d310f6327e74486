package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"microtrade/internal/repository"
	"microtrade/internal/trading"
)

// TokenStatusFunc reports broker credential state for the ops endpoint.
type TokenStatusFunc func(ctx context.Context) map[string]any

type SystemHandler struct {
	Repo        repository.Repository
	Mode        *trading.ModeSwitch
	TokenStatus TokenStatusFunc
}

func (h *SystemHandler) Register(r *gin.Engine) {
	s := r.Group("/api/v1/system")
	s.GET("/mode", h.mode)
	s.POST("/mode", h.switchMode)
	s.GET("/accounts", h.accounts)
	s.GET("/token", h.token)
}

func (h *SystemHandler) mode(c *gin.Context) {
	if h.Mode == nil {
		Error(c, http.StatusServiceUnavailable, "mode switch unavailable", nil)
		return
	}
	Ok(c, gin.H{"mode": h.Mode.Current()}, nil)
}

func (h *SystemHandler) switchMode(c *gin.Context) {
	if h.Mode == nil {
		Error(c, http.StatusServiceUnavailable, "mode switch unavailable", nil)
		return
	}
	var body struct {
		Mode string `json:"mode" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	mode, ok := trading.ParseMode(body.Mode)
	if !ok {
		Error(c, http.StatusBadRequest, "invalid mode", nil)
		return
	}
	changed, err := h.Mode.Switch(c.Request.Context(), mode)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, gin.H{"mode": mode, "changed": changed}, nil)
}

func (h *SystemHandler) accounts(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	items, err := h.Repo.ListAccounts(c.Request.Context())
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, nil)
}

func (h *SystemHandler) token(c *gin.Context) {
	if h.TokenStatus == nil {
		Ok(c, gin.H{"configured": false}, nil)
		return
	}
	Ok(c, h.TokenStatus(c.Request.Context()), nil)
}
