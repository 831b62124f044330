// Package domain 对冲仓储接口
package domain

import "context"

// HedgeRepository 对冲仓储。授权与匹配写路径经 GetWithLock 串行化。
type HedgeRepository interface {
	Save(ctx context.Context, hedge *Hedge) error
	GetByHedgeID(ctx context.Context, hedgeID string) (*Hedge, error)
	GetWithLock(ctx context.Context, hedgeID string) (*Hedge, error)
	List(ctx context.Context, limit, offset int) ([]*Hedge, int64, error)
}
