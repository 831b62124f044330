// Package http 对冲跟踪服务接口
package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/wyfcoding/fxtreasury/internal/hedge/application"
	"github.com/wyfcoding/fxtreasury/internal/hedge/domain"
)

type Handler struct {
	service *application.Service
}

func NewHandler(service *application.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	g := r.Group("/hedges")
	{
		g.POST("", h.RecordHedge)
		g.POST("/:id/authorize", h.Authorize)
		g.POST("/:id/match", h.Match)
		g.GET("", h.ListHedges)
		g.GET("/:id", h.GetHedge)
	}
}

type RecordHedgeReq struct {
	Currency         string `json:"currency" binding:"required"`
	Quantity         string `json:"quantity" binding:"required"`
	Rate             string `json:"rate" binding:"required"`
	Instrument       string `json:"instrument" binding:"required"`
	Counterparty     string `json:"counterparty"`
	ExternalRef      string `json:"external_ref"`
	ValueDate        string `json:"value_date"`
	RequiresDualAuth bool   `json:"requires_dual_auth"`
	RecordedBy       string `json:"recorded_by" binding:"required"`
}

func (h *Handler) RecordHedge(c *gin.Context) {
	var req RecordHedgeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	quantity, err := decimal.NewFromString(req.Quantity)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid quantity: " + req.Quantity})
		return
	}
	rate, err := decimal.NewFromString(req.Rate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid rate: " + req.Rate})
		return
	}

	var valueDate time.Time
	if req.ValueDate != "" {
		valueDate, err = time.Parse("2006-01-02", req.ValueDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid value date: " + req.ValueDate})
			return
		}
	}

	cmd := application.RecordHedgeCommand{
		Currency:         req.Currency,
		Quantity:         quantity,
		Rate:             rate,
		Instrument:       domain.InstrumentType(req.Instrument),
		Counterparty:     req.Counterparty,
		ExternalRef:      req.ExternalRef,
		ValueDate:        valueDate,
		RequiresDualAuth: req.RequiresDualAuth,
		RecordedBy:       req.RecordedBy,
	}

	hedge, err := h.service.RecordHedge(c.Request.Context(), cmd)
	if err != nil {
		c.JSON(hedgeStatusCode(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, hedgeView(hedge))
}

type AuthorizeReq struct {
	Authorizer string `json:"authorizer" binding:"required"`
}

func (h *Handler) Authorize(c *gin.Context) {
	var req AuthorizeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	hedge, err := h.service.AuthorizeHedge(c.Request.Context(), c.Param("id"), req.Authorizer)
	if err != nil {
		c.JSON(hedgeStatusCode(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, hedgeView(hedge))
}

type MatchReq struct {
	Quantity  string `json:"quantity" binding:"required"`
	MatchedBy string `json:"matched_by" binding:"required"`
}

func (h *Handler) Match(c *gin.Context) {
	var req MatchReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	quantity, err := decimal.NewFromString(req.Quantity)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid quantity: " + req.Quantity})
		return
	}

	hedge, pnl, err := h.service.MatchHedge(c.Request.Context(), c.Param("id"), quantity, req.MatchedBy)
	if err != nil {
		c.JSON(hedgeStatusCode(err), gin.H{"error": err.Error()})
		return
	}

	view := hedgeView(hedge)
	view["realized_pnl"] = pnl
	c.JSON(http.StatusOK, view)
}

func (h *Handler) ListHedges(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	hedges, total, err := h.service.List(c.Request.Context(), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	views := make([]gin.H, 0, len(hedges))
	for _, hd := range hedges {
		views = append(views, hedgeView(hd))
	}
	c.JSON(http.StatusOK, gin.H{"hedges": views, "total": total})
}

func (h *Handler) GetHedge(c *gin.Context) {
	hedge, err := h.service.GetByHedgeID(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if hedge == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "hedge not found"})
		return
	}

	c.JSON(http.StatusOK, hedgeView(hedge))
}

func hedgeStatusCode(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidHedge):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrMatchOverflow),
		errors.Is(err, domain.ErrDuplicateApprover),
		errors.Is(err, domain.ErrAuthorizationPending):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func hedgeView(hd *domain.Hedge) gin.H {
	authorizers := make([]string, 0, len(hd.Authorizations))
	for _, a := range hd.Authorizations {
		authorizers = append(authorizers, a.Authorizer)
	}
	return gin.H{
		"hedge_id":           hd.HedgeID,
		"currency":           hd.Currency,
		"quantity":           hd.Quantity,
		"rate":               hd.Rate,
		"instrument":         hd.Instrument,
		"counterparty":       hd.Counterparty,
		"external_ref":       hd.ExternalRef,
		"value_date":         hd.ValueDate,
		"requires_dual_auth": hd.RequiresDualAuth,
		"matched_quantity":   hd.MatchedQuantity,
		"status":             hd.Status,
		"authorizers":        authorizers,
	}
}
