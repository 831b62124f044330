// Package infrastructure 对冲仓储实现
package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/wyfcoding/fxtreasury/internal/hedge/domain"
	"github.com/wyfcoding/pkg/contextx"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormHedgeRepository 对冲仓储
type GormHedgeRepository struct {
	db *gorm.DB
}

func NewGormHedgeRepository(db *gorm.DB) domain.HedgeRepository {
	return &GormHedgeRepository{db: db}
}

func (r *GormHedgeRepository) getDB(ctx context.Context) *gorm.DB {
	if tx, ok := contextx.GetTx(ctx).(*gorm.DB); ok && tx != nil {
		return tx
	}
	return r.db
}

func (r *GormHedgeRepository) Save(ctx context.Context, hedge *domain.Hedge) error {
	return r.getDB(ctx).WithContext(ctx).Session(&gorm.Session{FullSaveAssociations: true}).Save(hedge).Error
}

func (r *GormHedgeRepository) GetByHedgeID(ctx context.Context, hedgeID string) (*domain.Hedge, error) {
	var hedge domain.Hedge
	err := r.getDB(ctx).WithContext(ctx).
		Preload("Authorizations").
		Preload("Matches").
		Where("hedge_id = ?", hedgeID).
		First(&hedge).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &hedge, nil
}

func (r *GormHedgeRepository) GetWithLock(ctx context.Context, hedgeID string) (*domain.Hedge, error) {
	var hedge domain.Hedge
	err := r.getDB(ctx).WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Preload("Authorizations").
		Preload("Matches").
		Where("hedge_id = ?", hedgeID).
		First(&hedge).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("hedge lock failed: %w", err)
	}
	return &hedge, nil
}

func (r *GormHedgeRepository) List(ctx context.Context, limit, offset int) ([]*domain.Hedge, int64, error) {
	query := r.getDB(ctx).WithContext(ctx).Model(&domain.Hedge{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var hedges []*domain.Hedge
	err := query.Preload("Authorizations").Preload("Matches").
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&hedges).Error
	if err != nil {
		return nil, 0, err
	}
	return hedges, total, nil
}

// MemoryHedgeRepository 内存对冲仓储，测试用
type MemoryHedgeRepository struct {
	mu     sync.RWMutex
	hedges map[string]*domain.Hedge
}

func NewMemoryHedgeRepository() *MemoryHedgeRepository {
	return &MemoryHedgeRepository{hedges: make(map[string]*domain.Hedge)}
}

func (r *MemoryHedgeRepository) Save(_ context.Context, hedge *domain.Hedge) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hedges[hedge.HedgeID] = hedge
	return nil
}

func (r *MemoryHedgeRepository) GetByHedgeID(_ context.Context, hedgeID string) (*domain.Hedge, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.hedges[hedgeID], nil
}

func (r *MemoryHedgeRepository) GetWithLock(ctx context.Context, hedgeID string) (*domain.Hedge, error) {
	return r.GetByHedgeID(ctx, hedgeID)
}

func (r *MemoryHedgeRepository) List(_ context.Context, limit, offset int) ([]*domain.Hedge, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.Hedge, 0, len(r.hedges))
	for _, h := range r.hedges {
		out = append(out, h)
	}
	return out, int64(len(out)), nil
}
