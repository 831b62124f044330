// Package http 货币对分类服务接口
package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/fxtreasury/internal/classification/application"
	"github.com/wyfcoding/fxtreasury/internal/classification/domain"
)

type Handler struct {
	service *application.Service
}

func NewHandler(service *application.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	g := r.Group("/classification")
	{
		g.GET("/classify", h.Classify)
		g.GET("/config", h.GetConfig)
		g.PUT("/config", h.UpdateConfig)
	}
}

func (h *Handler) Classify(c *gin.Context) {
	base := c.Query("base")
	quote := c.Query("quote")

	class, err := h.service.Classify(c.Request.Context(), base, quote)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidPair) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"classification": class})
}

func (h *Handler) GetConfig(c *gin.Context) {
	cfg, err := h.service.Snapshot(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"version":           cfg.ConfigVersion,
		"currencies":        cfg.Currencies,
		"direct_currencies": cfg.DirectCurrencies,
		"hidden_currencies": cfg.HiddenCurrencies,
		"pair_overrides":    cfg.PairOverrides,
	})
}

type UpdateConfigReq struct {
	DirectCurrencies []string                         `json:"direct_currencies" binding:"required"`
	HiddenCurrencies []string                         `json:"hidden_currencies"`
	PairOverrides    map[string]domain.Classification `json:"pair_overrides"`
	Actor            string                           `json:"actor" binding:"required"`
}

func (h *Handler) UpdateConfig(c *gin.Context) {
	var req UpdateConfigReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cmd := application.UpdateDirectTradingConfigCommand{
		DirectCurrencies: req.DirectCurrencies,
		HiddenCurrencies: req.HiddenCurrencies,
		PairOverrides:    req.PairOverrides,
		Actor:            req.Actor,
	}

	cfg, err := h.service.UpdateDirectTradingConfig(c.Request.Context(), cmd)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidPair) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"version": cfg.ConfigVersion})
}
