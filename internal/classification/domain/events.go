// Package domain 分类配置领域事件
package domain

import "time"

type DomainEvent interface {
	EventName() string
	OccurredAt() time.Time
}

// ConfigUpdatedEvent 直盘配置变更事件，携带完整的前后差异
type ConfigUpdatedEvent struct {
	Version           int64        `json:"version"`
	Actor             string       `json:"actor"`
	AddedCurrencies   []string     `json:"added_currencies"`
	RemovedCurrencies []string     `json:"removed_currencies"`
	ChangedPairs      []PairChange `json:"changed_pairs"`
	Timestamp         time.Time    `json:"timestamp"`
}

func (e *ConfigUpdatedEvent) EventName() string     { return "classification.config_updated" }
func (e *ConfigUpdatedEvent) OccurredAt() time.Time { return e.Timestamp }
