// Package http 交易录入服务接口
package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	classdomain "github.com/wyfcoding/fxtreasury/internal/classification/domain"
	"github.com/wyfcoding/fxtreasury/internal/decomposition/application"
	"github.com/wyfcoding/fxtreasury/internal/decomposition/domain"
	marketdomain "github.com/wyfcoding/fxtreasury/internal/marketdata/domain"
	posdomain "github.com/wyfcoding/fxtreasury/internal/position/domain"
)

type Handler struct {
	service *application.TradeService
}

func NewHandler(service *application.TradeService) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	g := r.Group("/trades")
	{
		g.POST("", h.EnterTrade)
		g.GET("/:id", h.GetTrade)
	}
}

type EnterTradeReq struct {
	Pair          string `json:"pair" binding:"required"`
	Amount        string `json:"amount" binding:"required"`
	CustomerOrder string `json:"customer_order"`
	Actor         string `json:"actor" binding:"required"`
}

func (h *Handler) EnterTrade(c *gin.Context) {
	var req EnterTradeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid amount: " + req.Amount})
		return
	}

	cmd := application.EnterTradeCommand{
		Pair:          req.Pair,
		Amount:        amount,
		CustomerOrder: req.CustomerOrder,
		Actor:         req.Actor,
	}

	trade, touched, err := h.service.EnterTrade(c.Request.Context(), cmd)
	if err != nil {
		switch {
		case errors.Is(err, classdomain.ErrInvalidPair), errors.Is(err, domain.ErrInvalidAmount):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, marketdomain.ErrQuoteNotFound):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"trade":     tradeView(trade),
		"positions": positionViews(touched),
	})
}

func (h *Handler) GetTrade(c *gin.Context) {
	trade, err := h.service.GetTrade(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if trade == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "trade not found"})
		return
	}

	c.JSON(http.StatusOK, tradeView(trade))
}

func tradeView(trade *domain.Trade) gin.H {
	legs := make([]gin.H, 0, len(trade.Legs))
	for _, leg := range trade.Legs {
		legs = append(legs, gin.H{
			"sequence":       leg.Sequence,
			"pair":           leg.Pair,
			"role":           leg.Role,
			"buy_amount":     leg.BuyAmount,
			"sell_amount":    leg.SellAmount,
			"rate":           leg.Rate,
			"local_currency": leg.LocalCurrency,
			"local_exposure": leg.LocalExposure,
			"usd_equivalent": leg.USDEquivalent,
		})
	}
	return gin.H{
		"trade_id":         trade.TradeID,
		"trade_date":       trade.TradeDate,
		"customer_order":   trade.CustomerOrder,
		"pair":             trade.OriginalPair,
		"amount":           trade.OriginalAmount,
		"exotic":           trade.Exotic,
		"config_version":   trade.ConfigVersion,
		"net_usd_exposure": trade.NetUSDExposure,
		"legs":             legs,
	}
}

func positionViews(positions []*posdomain.Position) []gin.H {
	out := make([]gin.H, 0, len(positions))
	for _, p := range positions {
		out = append(out, gin.H{
			"position_id":    p.PositionID,
			"currency":       p.Currency,
			"net_position":   p.NetPosition,
			"mtm_value":      p.MTMValue,
			"unrealized_pnl": p.UnrealizedPnL,
			"realized_pnl":   p.RealizedPnL,
		})
	}
	return out
}
