// Package http 重置审批服务接口
package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/wyfcoding/fxtreasury/internal/approval/application"
	"github.com/wyfcoding/fxtreasury/internal/approval/domain"
)

type Handler struct {
	service *application.Service
}

func NewHandler(service *application.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	g := r.Group("/resets")
	{
		g.POST("", h.SubmitRequest)
		g.POST("/:id/approve", h.Approve)
		g.POST("/:id/reject", h.Reject)
		g.GET("", h.ListRequests)
		g.GET("/:id", h.GetRequest)
	}
}

type SubmitResetReq struct {
	PositionID    string `json:"position_id" binding:"required"`
	TargetValue   string `json:"target_value" binding:"required"`
	Reason        string `json:"reason" binding:"required"`
	Justification string `json:"justification"`
	RequestedBy   string `json:"requested_by" binding:"required"`
}

func (h *Handler) SubmitRequest(c *gin.Context) {
	var req SubmitResetReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	target, err := decimal.NewFromString(req.TargetValue)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid target value: " + req.TargetValue})
		return
	}

	cmd := application.SubmitResetRequestCommand{
		PositionID:    req.PositionID,
		TargetValue:   target,
		Reason:        req.Reason,
		Justification: req.Justification,
		RequestedBy:   req.RequestedBy,
	}

	request, err := h.service.SubmitResetRequest(c.Request.Context(), cmd)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, requestView(request))
}

type ApproveReq struct {
	Level    int    `json:"level" binding:"required"`
	Approver string `json:"approver" binding:"required"`
	Comments string `json:"comments"`
}

func (h *Handler) Approve(c *gin.Context) {
	var req ApproveReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	request, err := h.service.ApproveReset(c.Request.Context(), c.Param("id"), req.Level, req.Approver, req.Comments)
	if err != nil {
		c.JSON(approvalStatusCode(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, requestView(request))
}

type RejectReq struct {
	Approver string `json:"approver" binding:"required"`
	Comments string `json:"comments" binding:"required"`
}

func (h *Handler) Reject(c *gin.Context) {
	var req RejectReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	request, err := h.service.RejectReset(c.Request.Context(), c.Param("id"), req.Approver, req.Comments)
	if err != nil {
		c.JSON(approvalStatusCode(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, requestView(request))
}

func (h *Handler) ListRequests(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	requests, total, err := h.service.List(c.Request.Context(), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	views := make([]gin.H, 0, len(requests))
	for _, r := range requests {
		views = append(views, requestView(r))
	}
	c.JSON(http.StatusOK, gin.H{"requests": views, "total": total})
}

func (h *Handler) GetRequest(c *gin.Context) {
	request, err := h.service.GetByRequestID(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if request == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "reset request not found"})
		return
	}

	c.JSON(http.StatusOK, requestView(request))
}

func approvalStatusCode(err error) int {
	switch {
	case errors.Is(err, application.ErrRequestNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrOutOfOrderApproval),
		errors.Is(err, domain.ErrDuplicateApprover),
		errors.Is(err, domain.ErrUnauthorizedTransition):
		return http.StatusConflict
	case errors.Is(err, domain.ErrCommentsRequired):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func requestView(r *domain.ResetRequest) gin.H {
	approvals := make([]gin.H, 0, len(r.Approvals))
	for _, a := range r.Approvals {
		approvals = append(approvals, gin.H{
			"level":       a.Level,
			"approver":    a.Approver,
			"approved_at": a.ApprovedAt,
			"comments":    a.Comments,
		})
	}
	return gin.H{
		"request_id":    r.RequestID,
		"position_id":   r.PositionID,
		"current_value": r.CurrentValue,
		"target_value":  r.TargetValue,
		"reason":        r.Reason,
		"justification": r.Justification,
		"requested_by":  r.RequestedBy,
		"requested_at":  r.RequestedAt,
		"status":        r.Status,
		"rejected_by":   r.RejectedBy,
		"applied_at":    r.AppliedAt,
		"approvals":     approvals,
	}
}
