// Package infrastructure 头寸仓储实现
// 生成摘要：
// 1) GormPositionRepository：行锁 + contextx 事务传递
// 2) TransactionManager：gorm 事务闭包，跨头寸写入全有或全无
package infrastructure

import (
	"context"
	"errors"
	"fmt"

	"github.com/wyfcoding/fxtreasury/internal/position/domain"
	"github.com/wyfcoding/pkg/contextx"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// baseRepository 基础仓储，提供事务句柄解析
type baseRepository struct {
	db *gorm.DB
}

func (r *baseRepository) getDB(ctx context.Context) *gorm.DB {
	if tx, ok := contextx.GetTx(ctx).(*gorm.DB); ok && tx != nil {
		return tx
	}
	return r.db
}

// TransactionManager gorm 事务管理器
type TransactionManager struct {
	db *gorm.DB
}

func NewTransactionManager(db *gorm.DB) *TransactionManager {
	return &TransactionManager{db: db}
}

// Transaction 开启一个事务并经 context 向仓储传递。
// context 中已有事务句柄时直接加入，避免嵌套事务相互等锁。
func (tm *TransactionManager) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if tx, ok := contextx.GetTx(ctx).(*gorm.DB); ok && tx != nil {
		return fn(ctx)
	}
	return tm.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(contextx.WithTx(ctx, tx))
	})
}

// GormPositionRepository 头寸仓储
type GormPositionRepository struct {
	baseRepository
}

func NewGormPositionRepository(db *gorm.DB) domain.PositionRepository {
	return &GormPositionRepository{baseRepository{db: db}}
}

func (r *GormPositionRepository) Save(ctx context.Context, position *domain.Position) error {
	return r.getDB(ctx).WithContext(ctx).Session(&gorm.Session{FullSaveAssociations: true}).Save(position).Error
}

func (r *GormPositionRepository) GetByCurrency(ctx context.Context, currency string) (*domain.Position, error) {
	var position domain.Position
	err := r.getDB(ctx).WithContext(ctx).Preload("Trades").Where("currency = ?", currency).First(&position).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &position, nil
}

func (r *GormPositionRepository) GetWithLock(ctx context.Context, currency string) (*domain.Position, error) {
	var position domain.Position
	err := r.getDB(ctx).WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Preload("Trades").
		Where("currency = ?", currency).
		First(&position).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("position lock failed: %w", err)
	}
	return &position, nil
}

func (r *GormPositionRepository) GetByPositionID(ctx context.Context, positionID string) (*domain.Position, error) {
	var position domain.Position
	err := r.getDB(ctx).WithContext(ctx).Preload("Trades").Where("position_id = ?", positionID).First(&position).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &position, nil
}

func (r *GormPositionRepository) ListAll(ctx context.Context) ([]*domain.Position, error) {
	var positions []*domain.Position
	if err := r.getDB(ctx).WithContext(ctx).Preload("Trades").Order("currency ASC").Find(&positions).Error; err != nil {
		return nil, err
	}
	return positions, nil
}
