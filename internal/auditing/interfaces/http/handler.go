// Package http 审计账本查询接口
package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/fxtreasury/internal/auditing/domain"
)

type Handler struct {
	ledger domain.Ledger
}

func NewHandler(ledger domain.Ledger) *Handler {
	return &Handler{ledger: ledger}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	g := r.Group("/audit")
	{
		g.GET("/events", h.ListEvents)
	}
}

func (h *Handler) ListEvents(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	eventType := domain.EventType(c.Query("type"))

	events, total, err := h.ledger.List(c.Request.Context(), eventType, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	views := make([]gin.H, 0, len(events))
	for _, e := range events {
		views = append(views, gin.H{
			"event_id":    e.EventID,
			"occurred_at": e.OccurredAt,
			"event_type":  e.EventType,
			"description": e.Description,
			"actor":       e.Actor,
			"details":     e.Details,
			"status":      e.Status,
		})
	}
	c.JSON(http.StatusOK, gin.H{"events": views, "total": total})
}
