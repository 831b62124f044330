// Package http 头寸查询接口
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/fxtreasury/internal/position/application"
	"github.com/wyfcoding/fxtreasury/internal/position/domain"
)

type Handler struct {
	service *application.Service
}

func NewHandler(service *application.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	g := r.Group("/positions")
	{
		g.GET("", h.ListPositions)
		g.GET("/:id", h.GetPosition)
	}
}

func (h *Handler) ListPositions(c *gin.Context) {
	positions, err := h.service.ListAll(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	views := make([]gin.H, 0, len(positions))
	for _, p := range positions {
		views = append(views, positionView(p))
	}
	c.JSON(http.StatusOK, gin.H{"positions": views})
}

func (h *Handler) GetPosition(c *gin.Context) {
	position, err := h.service.GetByPositionID(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if position == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "position not found"})
		return
	}

	view := positionView(position)
	trades := make([]gin.H, 0, len(position.Trades))
	for _, t := range position.Trades {
		trades = append(trades, gin.H{
			"trade_id":  t.TradeID,
			"pair":      t.Pair,
			"amount":    t.Amount,
			"rate":      t.Rate,
			"booked_at": t.CreatedAt,
		})
	}
	view["trades"] = trades
	c.JSON(http.StatusOK, view)
}

func positionView(p *domain.Position) gin.H {
	return gin.H{
		"position_id":        p.PositionID,
		"currency":           p.Currency,
		"liquidity_provider": p.LiquidityProvider,
		"net_position":       p.NetPosition,
		"current_rate":       p.CurrentRate,
		"convention":         p.Convention,
		"mtm_value":          p.MTMValue,
		"cost_rate":          p.CostRate,
		"open_quantity":      p.OpenQuantity,
		"unrealized_pnl":     p.UnrealizedPnL,
		"realized_pnl":       p.RealizedPnL,
		"status":             p.Status,
	}
}
