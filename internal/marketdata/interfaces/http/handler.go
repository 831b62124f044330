// Package http 行情接入接口
package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/wyfcoding/fxtreasury/internal/marketdata/application"
	"github.com/wyfcoding/fxtreasury/internal/marketdata/domain"
)

type Handler struct {
	service *application.Service
}

func NewHandler(service *application.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	g := r.Group("/rates")
	{
		g.POST("", h.ApplyQuote)
		g.GET("", h.ListPairs)
		g.GET("/:base/:quote", h.GetQuote)
	}
}

type ApplyQuoteReq struct {
	Pair      string    `json:"pair" binding:"required"`
	Bid       string    `json:"bid" binding:"required"`
	Ask       string    `json:"ask" binding:"required"`
	Mid       string    `json:"mid" binding:"required"`
	Timestamp time.Time `json:"timestamp"`
}

func (h *Handler) ApplyQuote(c *gin.Context) {
	var req ApplyQuoteReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	bid, errBid := decimal.NewFromString(req.Bid)
	ask, errAsk := decimal.NewFromString(req.Ask)
	mid, errMid := decimal.NewFromString(req.Mid)
	if errBid != nil || errAsk != nil || errMid != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid rate value"})
		return
	}

	ts := req.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	quote := domain.Quote{
		Pair:      req.Pair,
		Bid:       bid,
		Ask:       ask,
		Mid:       mid,
		Timestamp: ts,
	}

	if err := h.service.ApplyQuote(c.Request.Context(), quote); err != nil {
		if errors.Is(err, domain.ErrInvalidQuote) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Status(http.StatusOK)
}

func (h *Handler) ListPairs(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"pairs": h.service.Book().Pairs()})
}

func (h *Handler) GetQuote(c *gin.Context) {
	pair := c.Param("base") + "/" + c.Param("quote")

	quote, ok := h.service.Book().Get(pair)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no quote for " + pair})
		return
	}

	c.JSON(http.StatusOK, quote)
}
