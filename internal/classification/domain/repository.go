// Package domain 分类配置仓储接口
package domain

import "context"

// ConfigRepository 配置仓储。历史版本只增不改。
type ConfigRepository interface {
	Save(ctx context.Context, cfg *Config) error
	Latest(ctx context.Context) (*Config, error)
	GetByVersion(ctx context.Context, version int64) (*Config, error)
}
