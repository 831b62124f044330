// Package infrastructure 内存头寸仓储，测试与单机运行用。
// 每头寸独立互斥由仓储级锁退化实现；事务语义为直通（内存态天然单副本）。
package infrastructure

import (
	"context"
	"sync"

	"github.com/wyfcoding/fxtreasury/internal/position/domain"
)

// MemoryPositionRepository 内存头寸仓储
type MemoryPositionRepository struct {
	mu        sync.RWMutex
	positions map[string]*domain.Position // currency -> position
}

func NewMemoryPositionRepository() *MemoryPositionRepository {
	return &MemoryPositionRepository{positions: make(map[string]*domain.Position)}
}

func (r *MemoryPositionRepository) Save(_ context.Context, position *domain.Position) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.positions[position.Currency] = position
	return nil
}

func (r *MemoryPositionRepository) GetByCurrency(_ context.Context, currency string) (*domain.Position, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.positions[currency], nil
}

func (r *MemoryPositionRepository) GetWithLock(ctx context.Context, currency string) (*domain.Position, error) {
	return r.GetByCurrency(ctx, currency)
}

func (r *MemoryPositionRepository) GetByPositionID(_ context.Context, positionID string) (*domain.Position, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.positions {
		if p.PositionID == positionID {
			return p, nil
		}
	}
	return nil, nil
}

func (r *MemoryPositionRepository) ListAll(_ context.Context) ([]*domain.Position, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.Position, 0, len(r.positions))
	for _, p := range r.positions {
		out = append(out, p)
	}
	return out, nil
}

// NoopTransactionManager 直通事务管理器
type NoopTransactionManager struct{}

func (NoopTransactionManager) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
