// Package domain 对冲跟踪领域事件
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type DomainEvent interface {
	EventName() string
	OccurredAt() time.Time
}

// HedgeRecordedEvent 对冲已录入
type HedgeRecordedEvent struct {
	HedgeID    string          `json:"hedge_id"`
	Currency   string          `json:"currency"`
	Quantity   decimal.Decimal `json:"quantity"`
	Instrument InstrumentType  `json:"instrument"`
	Timestamp  time.Time       `json:"timestamp"`
}

func (e *HedgeRecordedEvent) EventName() string     { return "hedge.recorded" }
func (e *HedgeRecordedEvent) OccurredAt() time.Time { return e.Timestamp }

// HedgeAuthorizedEvent 授权已记录
type HedgeAuthorizedEvent struct {
	HedgeID    string    `json:"hedge_id"`
	Authorizer string    `json:"authorizer"`
	Count      int       `json:"count"`
	Complete   bool      `json:"complete"`
	Timestamp  time.Time `json:"timestamp"`
}

func (e *HedgeAuthorizedEvent) EventName() string     { return "hedge.authorized" }
func (e *HedgeAuthorizedEvent) OccurredAt() time.Time { return e.Timestamp }

// HedgeMatchedEvent 对冲已匹配
type HedgeMatchedEvent struct {
	HedgeID   string          `json:"hedge_id"`
	Currency  string          `json:"currency"`
	Quantity  decimal.Decimal `json:"quantity"`
	PnL       decimal.Decimal `json:"pnl"`
	Status    MatchStatus     `json:"status"`
	Timestamp time.Time       `json:"timestamp"`
}

func (e *HedgeMatchedEvent) EventName() string     { return "hedge.matched" }
func (e *HedgeMatchedEvent) OccurredAt() time.Time { return e.Timestamp }
