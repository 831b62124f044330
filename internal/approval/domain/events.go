// Package domain 审批工作流领域事件
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type DomainEvent interface {
	EventName() string
	OccurredAt() time.Time
}

// ResetRequestedEvent 重置请求已提交
type ResetRequestedEvent struct {
	RequestID  string          `json:"request_id"`
	PositionID string          `json:"position_id"`
	Target     decimal.Decimal `json:"target"`
	Requester  string          `json:"requester"`
	Timestamp  time.Time       `json:"timestamp"`
}

func (e *ResetRequestedEvent) EventName() string     { return "approval.reset_requested" }
func (e *ResetRequestedEvent) OccurredAt() time.Time { return e.Timestamp }

// ResetApprovedEvent 一级审批通过
type ResetApprovedEvent struct {
	RequestID string    `json:"request_id"`
	Level     int       `json:"level"`
	Approver  string    `json:"approver"`
	Comments  string    `json:"comments"`
	Status    Status    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

func (e *ResetApprovedEvent) EventName() string     { return "approval.reset_approved" }
func (e *ResetApprovedEvent) OccurredAt() time.Time { return e.Timestamp }

// ResetRejectedEvent 重置请求被拒绝（终态）
type ResetRejectedEvent struct {
	RequestID string    `json:"request_id"`
	Approver  string    `json:"approver"`
	Comments  string    `json:"comments"`
	Timestamp time.Time `json:"timestamp"`
}

func (e *ResetRejectedEvent) EventName() string     { return "approval.reset_rejected" }
func (e *ResetRejectedEvent) OccurredAt() time.Time { return e.Timestamp }
