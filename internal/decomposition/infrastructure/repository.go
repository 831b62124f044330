// Package infrastructure 交易仓储实现
package infrastructure

import (
	"context"
	"errors"
	"sync"

	"github.com/wyfcoding/fxtreasury/internal/decomposition/domain"
	"github.com/wyfcoding/pkg/contextx"
	"gorm.io/gorm"
)

// GormTradeRepository 交易仓储。交易不可变，只有 Create 与读取路径。
type GormTradeRepository struct {
	db *gorm.DB
}

func NewGormTradeRepository(db *gorm.DB) domain.TradeRepository {
	return &GormTradeRepository{db: db}
}

// getDB 解析 context 中的事务句柄，使交易落库加入录入事务
func (r *GormTradeRepository) getDB(ctx context.Context) *gorm.DB {
	if tx, ok := contextx.GetTx(ctx).(*gorm.DB); ok && tx != nil {
		return tx
	}
	return r.db
}

func (r *GormTradeRepository) Save(ctx context.Context, trade *domain.Trade) error {
	return r.getDB(ctx).WithContext(ctx).Create(trade).Error
}

func (r *GormTradeRepository) GetByTradeID(ctx context.Context, tradeID string) (*domain.Trade, error) {
	var trade domain.Trade
	err := r.getDB(ctx).WithContext(ctx).Preload("Legs").Where("trade_id = ?", tradeID).First(&trade).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &trade, nil
}

func (r *GormTradeRepository) List(ctx context.Context, limit, offset int) ([]*domain.Trade, int64, error) {
	query := r.getDB(ctx).WithContext(ctx).Model(&domain.Trade{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var trades []*domain.Trade
	if err := query.Preload("Legs").Order("trade_date DESC").Offset(offset).Limit(limit).Find(&trades).Error; err != nil {
		return nil, 0, err
	}
	return trades, total, nil
}

// MemoryTradeRepository 内存交易仓储，测试用
type MemoryTradeRepository struct {
	mu     sync.RWMutex
	trades []*domain.Trade
}

func NewMemoryTradeRepository() *MemoryTradeRepository {
	return &MemoryTradeRepository{}
}

func (r *MemoryTradeRepository) Save(_ context.Context, trade *domain.Trade) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trades = append(r.trades, trade)
	return nil
}

func (r *MemoryTradeRepository) GetByTradeID(_ context.Context, tradeID string) (*domain.Trade, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, t := range r.trades {
		if t.TradeID == tradeID {
			return t, nil
		}
	}
	return nil, nil
}

func (r *MemoryTradeRepository) List(_ context.Context, limit, offset int) ([]*domain.Trade, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	total := int64(len(r.trades))
	if offset >= len(r.trades) {
		return nil, total, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(r.trades) {
		end = len(r.trades)
	}
	return r.trades[offset:end], total, nil
}
