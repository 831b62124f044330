// Package infrastructure 重置请求仓储实现
package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/wyfcoding/fxtreasury/internal/approval/domain"
	"github.com/wyfcoding/pkg/contextx"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormResetRequestRepository 重置请求仓储
type GormResetRequestRepository struct {
	db *gorm.DB
}

func NewGormResetRequestRepository(db *gorm.DB) domain.ResetRequestRepository {
	return &GormResetRequestRepository{db: db}
}

func (r *GormResetRequestRepository) getDB(ctx context.Context) *gorm.DB {
	if tx, ok := contextx.GetTx(ctx).(*gorm.DB); ok && tx != nil {
		return tx
	}
	return r.db
}

func (r *GormResetRequestRepository) Save(ctx context.Context, request *domain.ResetRequest) error {
	return r.getDB(ctx).WithContext(ctx).Session(&gorm.Session{FullSaveAssociations: true}).Save(request).Error
}

func (r *GormResetRequestRepository) GetByRequestID(ctx context.Context, requestID string) (*domain.ResetRequest, error) {
	var request domain.ResetRequest
	err := r.getDB(ctx).WithContext(ctx).
		Preload("Approvals", func(db *gorm.DB) *gorm.DB { return db.Order("level ASC") }).
		Where("request_id = ?", requestID).
		First(&request).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &request, nil
}

func (r *GormResetRequestRepository) GetWithLock(ctx context.Context, requestID string) (*domain.ResetRequest, error) {
	var request domain.ResetRequest
	err := r.getDB(ctx).WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Preload("Approvals", func(db *gorm.DB) *gorm.DB { return db.Order("level ASC") }).
		Where("request_id = ?", requestID).
		First(&request).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("reset request lock failed: %w", err)
	}
	return &request, nil
}

func (r *GormResetRequestRepository) List(ctx context.Context, limit, offset int) ([]*domain.ResetRequest, int64, error) {
	query := r.getDB(ctx).WithContext(ctx).Model(&domain.ResetRequest{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var requests []*domain.ResetRequest
	err := query.Preload("Approvals", func(db *gorm.DB) *gorm.DB { return db.Order("level ASC") }).
		Order("requested_at DESC").
		Offset(offset).Limit(limit).
		Find(&requests).Error
	if err != nil {
		return nil, 0, err
	}
	return requests, total, nil
}

// MemoryResetRequestRepository 内存重置请求仓储，测试用
type MemoryResetRequestRepository struct {
	mu       sync.RWMutex
	requests map[string]*domain.ResetRequest
}

func NewMemoryResetRequestRepository() *MemoryResetRequestRepository {
	return &MemoryResetRequestRepository{requests: make(map[string]*domain.ResetRequest)}
}

func (r *MemoryResetRequestRepository) Save(_ context.Context, request *domain.ResetRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests[request.RequestID] = request
	return nil
}

func (r *MemoryResetRequestRepository) GetByRequestID(_ context.Context, requestID string) (*domain.ResetRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.requests[requestID], nil
}

func (r *MemoryResetRequestRepository) GetWithLock(ctx context.Context, requestID string) (*domain.ResetRequest, error) {
	return r.GetByRequestID(ctx, requestID)
}

func (r *MemoryResetRequestRepository) List(_ context.Context, limit, offset int) ([]*domain.ResetRequest, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.ResetRequest, 0, len(r.requests))
	for _, req := range r.requests {
		out = append(out, req)
	}
	return out, int64(len(out)), nil
}
