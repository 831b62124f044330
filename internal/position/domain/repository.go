// Package domain 头寸仓储接口
package domain

import "context"

// PositionRepository 头寸仓储。写路径必须经 GetWithLock 串行化单头寸变更。
type PositionRepository interface {
	Save(ctx context.Context, position *Position) error
	GetByCurrency(ctx context.Context, currency string) (*Position, error)
	GetWithLock(ctx context.Context, currency string) (*Position, error)
	GetByPositionID(ctx context.Context, positionID string) (*Position, error)
	ListAll(ctx context.Context) ([]*Position, error)
}

// TransactionManager 将多头寸写入纳入同一存储事务（跨实体全有或全无可见性）
type TransactionManager interface {
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error
}
