// Package domain 审计账本领域层
// 生成摘要：
// 1) 定义不可变审计事件模型（只追加，永不修改或删除）
// 2) 定义供全部上下文消费的记录器接口
package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// Status 审计事件结果状态
type Status string

const (
	StatusCompleted Status = "Completed"
	StatusPending   Status = "Pending"
	StatusApproved  Status = "Approved"
	StatusRejected  Status = "Rejected"
	StatusFailed    Status = "Failed" // 被拒绝的操作同样留痕
)

// EventType 审计事件类型
type EventType string

const (
	EventTypeConfigChange EventType = "Config Change"
	EventTypeTradeEntry   EventType = "Trade Entry"
	EventTypeRateUpdate   EventType = "Rate Update"
	EventTypeHedgeEntry   EventType = "Hedge Entry"
	EventTypeHedgeMatch   EventType = "Hedge Match"
	EventTypeApproval     EventType = "Approval"
	EventTypeReset        EventType = "Position Reset"
)

// Event 审计事件。写入后不可变。
type Event struct {
	gorm.Model
	EventID     string         `gorm:"column:event_id;type:varchar(32);uniqueIndex;not null"`
	OccurredAt  time.Time      `gorm:"column:occurred_at;index;not null"`
	EventType   EventType      `gorm:"column:event_type;type:varchar(32);index;not null"`
	Description string         `gorm:"column:description;type:varchar(512)"`
	Actor       string         `gorm:"column:actor;type:varchar(128);index"` // 不透明用户标识，仅作等值比较
	Details     map[string]any `gorm:"column:details;type:json;serializer:json"`
	Status      Status         `gorm:"column:status;type:varchar(16);not null"`
}

// TableName 表名
func (Event) TableName() string {
	return "audit_events"
}

// Recorder 审计记录器。所有状态变更（包括失败的尝试）经由它落入账本。
type Recorder interface {
	Record(ctx context.Context, event Event) error
}

// Ledger 审计账本查询接口，按时间升序返回
type Ledger interface {
	Recorder
	List(ctx context.Context, eventType EventType, limit, offset int) ([]*Event, int64, error)
}
