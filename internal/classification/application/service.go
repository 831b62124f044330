// Package application 货币对分类应用层
package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	auditdomain "github.com/wyfcoding/fxtreasury/internal/auditing/domain"
	"github.com/wyfcoding/fxtreasury/internal/classification/domain"
	"github.com/wyfcoding/pkg/idgen"
	"github.com/wyfcoding/pkg/messagequeue"
)

// Service 分类服务。分类是配置快照上的纯函数，变更只影响之后录入的交易。
type Service struct {
	repo      domain.ConfigRepository
	publisher messagequeue.EventPublisher
	auditor   auditdomain.Recorder
	idgen     idgen.Generator
	logger    *slog.Logger
}

// NewService 创建分类服务
func NewService(
	repo domain.ConfigRepository,
	publisher messagequeue.EventPublisher,
	auditor auditdomain.Recorder,
	gen idgen.Generator,
	logger *slog.Logger,
) *Service {
	return &Service{
		repo:      repo,
		publisher: publisher,
		auditor:   auditor,
		idgen:     gen,
		logger:    logger,
	}
}

// Snapshot 当前生效的配置快照
func (s *Service) Snapshot(ctx context.Context) (*domain.Config, error) {
	cfg, err := s.repo.Latest(ctx)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, fmt.Errorf("no classification config available")
	}
	return cfg, nil
}

// Classify 对货币对分类
func (s *Service) Classify(ctx context.Context, base, quote string) (domain.Classification, error) {
	cfg, err := s.Snapshot(ctx)
	if err != nil {
		return "", err
	}
	return cfg.Classify(base, quote)
}

// UpdateDirectTradingConfigCommand 直盘配置变更命令
type UpdateDirectTradingConfigCommand struct {
	DirectCurrencies []string
	HiddenCurrencies []string
	PairOverrides    map[string]domain.Classification
	Actor            string
}

// UpdateDirectTradingConfig 产生下一个配置版本。
// 审计事件携带新增/移除货币以及由全量分类表对比得出的每一个翻转的货币对。
func (s *Service) UpdateDirectTradingConfig(ctx context.Context, cmd UpdateDirectTradingConfigCommand) (*domain.Config, error) {
	current, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	next, diff, err := current.Next(cmd.DirectCurrencies, cmd.HiddenCurrencies, cmd.PairOverrides, cmd.Actor)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Save(ctx, next); err != nil {
		return nil, err
	}

	s.publishEvents(ctx, next.GetDomainEvents())
	next.ClearDomainEvents()

	s.audit(ctx, auditdomain.Event{
		EventType:   auditdomain.EventTypeConfigChange,
		Description: fmt.Sprintf("Direct trading config updated to version %d", next.ConfigVersion),
		Actor:       cmd.Actor,
		Details: map[string]any{
			"version":            next.ConfigVersion,
			"added_currencies":   diff.AddedCurrencies,
			"removed_currencies": diff.RemovedCurrencies,
			"changed_pairs":      diff.ChangedPairs,
		},
		Status: auditdomain.StatusCompleted,
	})

	return next, nil
}

func (s *Service) publishEvents(ctx context.Context, events []domain.DomainEvent) {
	for _, event := range events {
		if err := s.publisher.Publish(ctx, event.EventName(), "", event); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish event",
				"event", event.EventName(),
				"error", err)
		}
	}
}

func (s *Service) audit(ctx context.Context, event auditdomain.Event) {
	event.EventID = fmt.Sprintf("AUD-%d", s.idgen.Generate())
	event.OccurredAt = time.Now()
	if err := s.auditor.Record(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "failed to record audit event",
			"event_type", event.EventType,
			"error", err)
	}
}
