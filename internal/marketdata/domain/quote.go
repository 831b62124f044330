// Package domain 行情领域层
// 生成摘要：
// 1) 定义归一化的行情快照（引擎不做行情采集，消费外部喂价）
// 2) 提供并发安全的行情簿，按市场惯例的 pair 方向存储
package domain

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidQuote 非法行情（非正的 bid/ask/mid、倒挂报价）
	ErrInvalidQuote = errors.New("invalid rate quote")
	// ErrQuoteNotFound 行情缺失
	ErrQuoteNotFound = errors.New("rate quote not found")
)

// Quote 归一化行情快照。Pair 采用市场惯例方向（如 "USD/JPY"、"EUR/USD"）。
type Quote struct {
	Pair      string          `json:"pair"`
	Bid       decimal.Decimal `json:"bid"`
	Ask       decimal.Decimal `json:"ask"`
	Mid       decimal.Decimal `json:"mid"`
	Timestamp time.Time       `json:"timestamp"`
}

// Validate 校验行情有效性
func (q Quote) Validate() error {
	if !q.Bid.IsPositive() || !q.Ask.IsPositive() || !q.Mid.IsPositive() {
		return fmt.Errorf("%w: %s bid=%s ask=%s mid=%s", ErrInvalidQuote, q.Pair, q.Bid, q.Ask, q.Mid)
	}
	if q.Ask.LessThan(q.Bid) {
		return fmt.Errorf("%w: %s crossed quote bid=%s ask=%s", ErrInvalidQuote, q.Pair, q.Bid, q.Ask)
	}
	return nil
}

// Book 行情簿，保存每个货币对的最新快照
type Book struct {
	mu     sync.RWMutex
	quotes map[string]Quote
}

// NewBook 创建空行情簿
func NewBook() *Book {
	return &Book{quotes: make(map[string]Quote)}
}

// Apply 应用一条行情快照，旧于当前快照的更新被丢弃
func (b *Book) Apply(q Quote) error {
	if err := q.Validate(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if cur, ok := b.quotes[q.Pair]; ok && q.Timestamp.Before(cur.Timestamp) {
		return nil
	}
	b.quotes[q.Pair] = q
	return nil
}

// Get 读取某货币对的最新快照
func (b *Book) Get(pair string) (Quote, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	q, ok := b.quotes[pair]
	return q, ok
}

// Pairs 当前行情簿覆盖的货币对
func (b *Book) Pairs() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]string, 0, len(b.quotes))
	for pair := range b.quotes {
		out = append(out, pair)
	}
	return out
}
