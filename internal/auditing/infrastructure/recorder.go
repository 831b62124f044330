// Package infrastructure 审计账本基础设施层
// 生成摘要：
// 1) GormLedger：只追加的数据库账本（Create-only，无 Update/Delete 路径）
// 2) LogRecorder：结构化日志落地
// 3) FanoutRecorder：多路写入（库 + 日志 + 消息队列）
package infrastructure

import (
	"context"
	"log/slog"
	"sync"

	"github.com/wyfcoding/fxtreasury/internal/auditing/domain"
	"gorm.io/gorm"
)

// GormLedger 数据库审计账本
type GormLedger struct {
	db *gorm.DB
}

func NewGormLedger(db *gorm.DB) *GormLedger {
	return &GormLedger{db: db}
}

// Record 追加一条审计事件。只允许 Create，账本不可变。
func (l *GormLedger) Record(ctx context.Context, event domain.Event) error {
	return l.db.WithContext(ctx).Create(&event).Error
}

// List 按发生时间升序分页返回
func (l *GormLedger) List(ctx context.Context, eventType domain.EventType, limit, offset int) ([]*domain.Event, int64, error) {
	query := l.db.WithContext(ctx).Model(&domain.Event{})
	if eventType != "" {
		query = query.Where("event_type = ?", eventType)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var events []*domain.Event
	if err := query.Order("occurred_at ASC").Offset(offset).Limit(limit).Find(&events).Error; err != nil {
		return nil, 0, err
	}
	return events, total, nil
}

// LogRecorder 结构化日志审计输出
type LogRecorder struct {
	logger *slog.Logger
}

func NewLogRecorder(logger *slog.Logger) *LogRecorder {
	return &LogRecorder{logger: logger}
}

func (r *LogRecorder) Record(ctx context.Context, event domain.Event) error {
	r.logger.InfoContext(ctx, "audit event",
		"event_id", event.EventID,
		"event_type", event.EventType,
		"description", event.Description,
		"actor", event.Actor,
		"status", event.Status,
	)
	return nil
}

// FanoutRecorder 将审计事件写入多个下游，任一失败即返回错误
type FanoutRecorder struct {
	recorders []domain.Recorder
}

func NewFanoutRecorder(recorders ...domain.Recorder) *FanoutRecorder {
	return &FanoutRecorder{recorders: recorders}
}

func (r *FanoutRecorder) Record(ctx context.Context, event domain.Event) error {
	for _, rec := range r.recorders {
		if err := rec.Record(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

// MemoryLedger 内存审计账本，测试与单机运行用
type MemoryLedger struct {
	mu     sync.RWMutex
	events []*domain.Event
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{}
}

func (l *MemoryLedger) Record(_ context.Context, event domain.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	e := event
	l.events = append(l.events, &e)
	return nil
}

func (l *MemoryLedger) List(_ context.Context, eventType domain.EventType, limit, offset int) ([]*domain.Event, int64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var filtered []*domain.Event
	for _, e := range l.events {
		if eventType == "" || e.EventType == eventType {
			filtered = append(filtered, e)
		}
	}
	total := int64(len(filtered))
	if offset >= len(filtered) {
		return nil, total, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(filtered) {
		end = len(filtered)
	}
	return filtered[offset:end], total, nil
}
