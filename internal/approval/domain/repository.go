// Package domain 重置请求仓储接口
package domain

import "context"

// ResetRequestRepository 重置请求仓储。写路径经 GetWithLock 串行化并发审批。
type ResetRequestRepository interface {
	Save(ctx context.Context, request *ResetRequest) error
	GetByRequestID(ctx context.Context, requestID string) (*ResetRequest, error)
	GetWithLock(ctx context.Context, requestID string) (*ResetRequest, error)
	List(ctx context.Context, limit, offset int) ([]*ResetRequest, int64, error)
}
