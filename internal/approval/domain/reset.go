// Package domain 审批工作流领域层
// 生成摘要：
// 1) 重置请求聚合根，显式状态机（不从审批列表长度推断状态）
// 2) 审批按级别严格有序，审批人与请求人、先前审批人两两不同
// 3) 终态不可逆；通过后目标值恰好应用一次（已应用标记保证幂等）
package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	// ErrOutOfOrderApproval 级别乱序（二级审批先于一级）
	ErrOutOfOrderApproval = errors.New("out of order approval")
	// ErrDuplicateApprover 同一身份重复出现在审批链中（含请求人自批）
	ErrDuplicateApprover = errors.New("duplicate approver identity")
	// ErrUnauthorizedTransition 对终态请求的审批/拒绝
	ErrUnauthorizedTransition = errors.New("unauthorized transition on terminal request")
	// ErrCommentsRequired 拒绝必须附意见
	ErrCommentsRequired = errors.New("rejection comments required")
)

// Status 重置请求状态
type Status string

const (
	StatusPending       Status = "Pending"
	StatusFirstApproved Status = "FirstApproved"
	StatusApproved      Status = "Approved" // 终态（成功）
	StatusRejected      Status = "Rejected" // 终态（失败）
)

// transitions 显式状态转移表：状态 × 审批级别 → 下一状态。
// 表中不存在的组合即乱序输入，直接失败且不触碰状态。
var transitions = map[Status]map[int]Status{
	StatusPending:       {1: StatusFirstApproved},
	StatusFirstApproved: {2: StatusApproved},
}

// Terminal 是否终态
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// Approval 一级审批记录，按级别有序保存
type Approval struct {
	gorm.Model
	RequestRef uint      `gorm:"column:request_ref;index;not null"`
	Level      int       `gorm:"column:level;not null"`
	Approver   string    `gorm:"column:approver;type:varchar(128);not null"`
	ApprovedAt time.Time `gorm:"column:approved_at;not null"`
	Comments   string    `gorm:"column:comments;type:varchar(512)"`
}

// TableName 表名
func (Approval) TableName() string {
	return "reset_approvals"
}

// ResetRequest 头寸重置请求聚合根
type ResetRequest struct {
	gorm.Model
	RequestID     string          `gorm:"column:request_id;type:varchar(32);uniqueIndex;not null"`
	PositionID    string          `gorm:"column:position_id;type:varchar(32);index;not null"`
	CurrentValue  decimal.Decimal `gorm:"column:current_value;type:decimal(24,8);not null"`
	TargetValue   decimal.Decimal `gorm:"column:target_value;type:decimal(24,8);not null"`
	Reason        string          `gorm:"column:reason;type:varchar(64);not null"`
	Justification string          `gorm:"column:justification;type:varchar(1024)"`
	RequestedBy   string          `gorm:"column:requested_by;type:varchar(128);not null"`
	RequestedAt   time.Time       `gorm:"column:requested_at;not null"`
	Status        Status          `gorm:"column:status;type:varchar(16);not null;default:'Pending'"`
	RejectedBy    string          `gorm:"column:rejected_by;type:varchar(128)"`
	AppliedAt     *time.Time      `gorm:"column:applied_at"` // 目标值落账时间，幂等标记
	Approvals     []Approval      `gorm:"foreignKey:RequestRef"`

	domainEvents []DomainEvent `gorm:"-"`
}

// TableName 表名
func (ResetRequest) TableName() string {
	return "reset_requests"
}

// NewResetRequest 创建重置请求
func NewResetRequest(requestID, positionID string, current, target decimal.Decimal, reason, justification, requestedBy string) *ResetRequest {
	r := &ResetRequest{
		RequestID:     requestID,
		PositionID:    positionID,
		CurrentValue:  current,
		TargetValue:   target,
		Reason:        reason,
		Justification: justification,
		RequestedBy:   requestedBy,
		RequestedAt:   time.Now(),
		Status:        StatusPending,
	}
	r.addEvent(&ResetRequestedEvent{
		RequestID:  requestID,
		PositionID: positionID,
		Target:     target,
		Requester:  requestedBy,
		Timestamp:  r.RequestedAt,
	})
	return r
}

// Approve 提交一级审批。
// 前置校验全部通过前不触碰任何状态：终态拒绝、级别乱序拒绝、身份重复拒绝。
func (r *ResetRequest) Approve(level int, approver, comments string) error {
	if r.Status.Terminal() {
		return fmt.Errorf("%w: request %s is %s", ErrUnauthorizedTransition, r.RequestID, r.Status)
	}

	next, ok := transitions[r.Status][level]
	if !ok {
		return fmt.Errorf("%w: level %d approval on %s request %s", ErrOutOfOrderApproval, level, r.Status, r.RequestID)
	}

	if approver == r.RequestedBy {
		return fmt.Errorf("%w: requester %s cannot approve own request", ErrDuplicateApprover, approver)
	}
	for _, a := range r.Approvals {
		if a.Approver == approver {
			return fmt.Errorf("%w: %s already approved at level %d", ErrDuplicateApprover, approver, a.Level)
		}
	}

	now := time.Now()
	r.Approvals = append(r.Approvals, Approval{
		RequestRef: r.ID,
		Level:      level,
		Approver:   approver,
		ApprovedAt: now,
		Comments:   comments,
	})
	r.Status = next

	r.addEvent(&ResetApprovedEvent{
		RequestID: r.RequestID,
		Level:     level,
		Approver:  approver,
		Comments:  comments,
		Status:    r.Status,
		Timestamp: now,
	})
	return nil
}

// Reject 任一授权审批人可在任意非终态拒绝，拒绝不可逆且必须附意见
func (r *ResetRequest) Reject(approver, comments string) error {
	if r.Status.Terminal() {
		return fmt.Errorf("%w: request %s is %s", ErrUnauthorizedTransition, r.RequestID, r.Status)
	}
	if comments == "" {
		return fmt.Errorf("%w: request %s", ErrCommentsRequired, r.RequestID)
	}

	r.Status = StatusRejected
	r.RejectedBy = approver

	r.addEvent(&ResetRejectedEvent{
		RequestID: r.RequestID,
		Approver:  approver,
		Comments:  comments,
		Timestamp: time.Now(),
	})
	return nil
}

// MarkApplied 标记目标值已落账。
// 仅对 Approved 请求且尚未应用时返回 true；重复调用为无操作。
func (r *ResetRequest) MarkApplied(now time.Time) bool {
	if r.Status != StatusApproved || r.AppliedAt != nil {
		return false
	}
	r.AppliedAt = &now
	return true
}

func (r *ResetRequest) addEvent(event DomainEvent) {
	r.domainEvents = append(r.domainEvents, event)
}

func (r *ResetRequest) GetDomainEvents() []DomainEvent {
	return r.domainEvents
}

func (r *ResetRequest) ClearDomainEvents() {
	r.domainEvents = nil
}
