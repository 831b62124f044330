// Package infrastructure 分类配置仓储实现
package infrastructure

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/wyfcoding/fxtreasury/internal/classification/domain"
	"gorm.io/gorm"
)

// GormConfigRepository 配置仓储。版本只增不改。
type GormConfigRepository struct {
	db *gorm.DB
}

func NewGormConfigRepository(db *gorm.DB) domain.ConfigRepository {
	return &GormConfigRepository{db: db}
}

func (r *GormConfigRepository) Save(ctx context.Context, cfg *domain.Config) error {
	return r.db.WithContext(ctx).Create(cfg).Error
}

func (r *GormConfigRepository) Latest(ctx context.Context) (*domain.Config, error) {
	var cfg domain.Config
	err := r.db.WithContext(ctx).Order("config_version DESC").First(&cfg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &cfg, nil
}

func (r *GormConfigRepository) GetByVersion(ctx context.Context, version int64) (*domain.Config, error) {
	var cfg domain.Config
	err := r.db.WithContext(ctx).Where("config_version = ?", version).First(&cfg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &cfg, nil
}

// MemoryConfigRepository 内存配置仓储，测试用
type MemoryConfigRepository struct {
	mu      sync.RWMutex
	configs map[int64]*domain.Config
}

func NewMemoryConfigRepository() *MemoryConfigRepository {
	return &MemoryConfigRepository{configs: make(map[int64]*domain.Config)}
}

func (r *MemoryConfigRepository) Save(_ context.Context, cfg *domain.Config) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs[cfg.ConfigVersion] = cfg
	return nil
}

func (r *MemoryConfigRepository) Latest(_ context.Context) (*domain.Config, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.configs) == 0 {
		return nil, nil
	}
	versions := make([]int64, 0, len(r.configs))
	for v := range r.configs {
		versions = append(versions, v)
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i] > versions[j] })
	return r.configs[versions[0]], nil
}

func (r *MemoryConfigRepository) GetByVersion(_ context.Context, version int64) (*domain.Config, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.configs[version], nil
}
