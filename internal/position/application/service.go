// Package application 头寸聚合应用层
// 生成摘要：
// 1) 交易腿贡献折算进各货币头寸（含 USD 合成行），同一事务内全有或全无
// 2) 行情刷新触发盯市重算并留审计
// 3) 审批通过的重置与对冲匹配经由此处落到头寸
package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	auditdomain "github.com/wyfcoding/fxtreasury/internal/auditing/domain"
	classdomain "github.com/wyfcoding/fxtreasury/internal/classification/domain"
	decompdomain "github.com/wyfcoding/fxtreasury/internal/decomposition/domain"
	"github.com/wyfcoding/fxtreasury/internal/position/domain"
	"github.com/wyfcoding/pkg/idgen"
	"github.com/wyfcoding/pkg/messagequeue"
)

// Service 头寸聚合服务
type Service struct {
	repo      domain.PositionRepository
	tm        domain.TransactionManager
	publisher messagequeue.EventPublisher
	auditor   auditdomain.Recorder
	idgen     idgen.Generator
	providers map[string]string // currency -> 指定流动性提供方
	logger    *slog.Logger
}

// NewService 创建头寸聚合服务
func NewService(
	repo domain.PositionRepository,
	tm domain.TransactionManager,
	publisher messagequeue.EventPublisher,
	auditor auditdomain.Recorder,
	gen idgen.Generator,
	providers map[string]string,
	logger *slog.Logger,
) *Service {
	return &Service{
		repo:      repo,
		tm:        tm,
		publisher: publisher,
		auditor:   auditor,
		idgen:     gen,
		providers: providers,
		logger:    logger,
	}
}

// IngestTrade 将一笔已拆腿交易折算进头寸，返回触及的头寸集合。
// 一笔非直盘交易的两条腿必然更新两个不同的非 USD 头寸，外加 USD 聚合头寸的合成行；
// 全部更新在同一存储事务内完成。
func (s *Service) IngestTrade(ctx context.Context, trade *decompdomain.Trade) ([]*domain.Position, error) {
	var touched []*domain.Position

	err := s.tm.Transaction(ctx, func(txCtx context.Context) error {
		seen := map[string]*domain.Position{}
		for _, contrib := range trade.Contributions() {
			position, ok := seen[contrib.Currency]
			if !ok {
				var err error
				position, err = s.lockOrCreate(txCtx, contrib.Currency)
				if err != nil {
					return err
				}
				seen[contrib.Currency] = position
				touched = append(touched, position)
			}

			position.ApplyContribution(trade.TradeID, trade.OriginalPair, contrib.Amount, contrib.Rate, conventionOf(contrib))
		}

		for _, position := range touched {
			if err := s.repo.Save(txCtx, position); err != nil {
				return fmt.Errorf("failed to save position %s: %w", position.Currency, err)
			}
		}
		return nil
	})
	if err != nil {
		touched = nil
		return nil, err
	}

	for _, position := range touched {
		s.publishEvents(ctx, position.GetDomainEvents())
		position.ClearDomainEvents()
	}
	return touched, nil
}

// RefreshRate 行情刷新：盯市重算。已实现盈亏绝不在此变动。
func (s *Service) RefreshRate(ctx context.Context, currency string, rate decimal.Decimal, convention domain.QuoteConvention) (*domain.Position, error) {
	var position *domain.Position

	err := s.tm.Transaction(ctx, func(txCtx context.Context) error {
		var err error
		position, err = s.repo.GetWithLock(txCtx, currency)
		if err != nil {
			return err
		}
		if position == nil {
			return nil
		}
		position.UpdateRate(rate, convention)
		return s.repo.Save(txCtx, position)
	})
	if err != nil || position == nil {
		return nil, err
	}

	s.publishEvents(ctx, position.GetDomainEvents())
	position.ClearDomainEvents()

	s.audit(ctx, auditdomain.Event{
		EventType:   auditdomain.EventTypeRateUpdate,
		Description: fmt.Sprintf("Reference rate for %s updated to %s", currency, rate),
		Actor:       "system",
		Details: map[string]any{
			"currency": currency,
			"rate":     rate.String(),
			"mtm":      position.MTMValue.String(),
		},
		Status: auditdomain.StatusCompleted,
	})
	return position, nil
}

// ApplyReset 审批通过的重置落账，幂等由请求侧标记保证。
// 审批服务在其事务内调用时直接加入该事务，直接调用时自行开启。
func (s *Service) ApplyReset(ctx context.Context, positionID, requestID string, target decimal.Decimal, actor string) error {
	var locked *domain.Position

	err := s.tm.Transaction(ctx, func(txCtx context.Context) error {
		position, err := s.repo.GetByPositionID(txCtx, positionID)
		if err != nil {
			return err
		}
		if position == nil {
			return fmt.Errorf("position %s not found", positionID)
		}

		locked, err = s.repo.GetWithLock(txCtx, position.Currency)
		if err != nil {
			return err
		}
		locked.ApplyReset(requestID, target, actor)
		return s.repo.Save(txCtx, locked)
	})
	if err != nil {
		return err
	}

	s.publishEvents(ctx, locked.GetDomainEvents())
	locked.ClearDomainEvents()
	return nil
}

// RealizeMatched 对冲匹配平仓，返回实现盈亏
func (s *Service) RealizeMatched(ctx context.Context, currency, hedgeID string, quantity, rate decimal.Decimal) (decimal.Decimal, error) {
	var pnl decimal.Decimal

	err := s.tm.Transaction(ctx, func(txCtx context.Context) error {
		position, err := s.repo.GetWithLock(txCtx, currency)
		if err != nil {
			return err
		}
		if position == nil {
			return nil
		}
		pnl = position.RealizeMatched(hedgeID, quantity, rate)
		if err := s.repo.Save(txCtx, position); err != nil {
			return err
		}
		s.publishEvents(txCtx, position.GetDomainEvents())
		position.ClearDomainEvents()
		return nil
	})
	return pnl, err
}

// GetByPositionID 查询单个头寸
func (s *Service) GetByPositionID(ctx context.Context, positionID string) (*domain.Position, error) {
	return s.repo.GetByPositionID(ctx, positionID)
}

// ListAll 全部头寸
func (s *Service) ListAll(ctx context.Context) ([]*domain.Position, error) {
	return s.repo.ListAll(ctx)
}

// lockOrCreate 锁定货币头寸，不存在则创建
func (s *Service) lockOrCreate(ctx context.Context, currency string) (*domain.Position, error) {
	position, err := s.repo.GetWithLock(ctx, currency)
	if err != nil {
		return nil, err
	}
	if position != nil {
		return position, nil
	}

	convention := domain.ConventionPerUSD
	if currency == classdomain.USD {
		convention = domain.ConventionIdentity
	}
	position = domain.NewPosition(
		fmt.Sprintf("POS-%d", s.idgen.Generate()),
		currency,
		s.providers[currency],
		convention,
	)
	if err := s.repo.Save(ctx, position); err != nil {
		return nil, err
	}
	return position, nil
}

func conventionOf(contrib decompdomain.Contribution) domain.QuoteConvention {
	if contrib.Currency == classdomain.USD {
		return domain.ConventionIdentity
	}
	if contrib.Rate.IsZero() {
		return ""
	}
	if contrib.RateUSDBase {
		return domain.ConventionPerUSD
	}
	return domain.ConventionUSDPer
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
