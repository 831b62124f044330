// Package domain 头寸领域事件
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type DomainEvent interface {
	EventName() string
	OccurredAt() time.Time
}

// PositionUpdatedEvent 头寸因交易贡献而变动
type PositionUpdatedEvent struct {
	PositionID  string          `json:"position_id"`
	Currency    string          `json:"currency"`
	TradeID     string          `json:"trade_id"`
	Amount      decimal.Decimal `json:"amount"`
	NetPosition decimal.Decimal `json:"net_position"`
	Timestamp   time.Time       `json:"timestamp"`
}

func (e *PositionUpdatedEvent) EventName() string     { return "position.updated" }
func (e *PositionUpdatedEvent) OccurredAt() time.Time { return e.Timestamp }

// RateRefreshedEvent 参考价更新触发盯市重算
type RateRefreshedEvent struct {
	PositionID string          `json:"position_id"`
	Currency   string          `json:"currency"`
	Rate       decimal.Decimal `json:"rate"`
	MTMValue   decimal.Decimal `json:"mtm_value"`
	Timestamp  time.Time       `json:"timestamp"`
}

func (e *RateRefreshedEvent) EventName() string     { return "position.rate_refreshed" }
func (e *RateRefreshedEvent) OccurredAt() time.Time { return e.Timestamp }

// PositionResetEvent 审批通过的头寸重置已应用
type PositionResetEvent struct {
	PositionID string          `json:"position_id"`
	RequestID  string          `json:"request_id"`
	Previous   decimal.Decimal `json:"previous"`
	Target     decimal.Decimal `json:"target"`
	Actor      string          `json:"actor"`
	Timestamp  time.Time       `json:"timestamp"`
}

func (e *PositionResetEvent) EventName() string     { return "position.reset_applied" }
func (e *PositionResetEvent) OccurredAt() time.Time { return e.Timestamp }

// ExposureMatchedEvent 对冲匹配平掉部分敞口
type ExposureMatchedEvent struct {
	PositionID string          `json:"position_id"`
	HedgeID    string          `json:"hedge_id"`
	Quantity   decimal.Decimal `json:"quantity"`
	Rate       decimal.Decimal `json:"rate"`
	Realized   decimal.Decimal `json:"realized"`
	Timestamp  time.Time       `json:"timestamp"`
}

func (e *ExposureMatchedEvent) EventName() string     { return "position.exposure_matched" }
func (e *ExposureMatchedEvent) OccurredAt() time.Time { return e.Timestamp }
