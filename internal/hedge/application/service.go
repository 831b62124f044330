// Package application 对冲跟踪应用层
// 生成摘要：
// 1) 对冲录入、授权、与头寸匹配三个用例
// 2) 匹配在一个存储事务内同时更新对冲覆盖量与头寸已实现盈亏
// 3) 每个用例（含失败）写审计
package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	auditdomain "github.com/wyfcoding/fxtreasury/internal/auditing/domain"
	"github.com/wyfcoding/fxtreasury/internal/hedge/domain"
	posapp "github.com/wyfcoding/fxtreasury/internal/position/application"
	posdomain "github.com/wyfcoding/fxtreasury/internal/position/domain"
	"github.com/wyfcoding/pkg/idgen"
	"github.com/wyfcoding/pkg/messagequeue"
)

// Service 对冲跟踪服务
type Service struct {
	repo      domain.HedgeRepository
	tm        posdomain.TransactionManager
	positions *posapp.Service
	publisher messagequeue.EventPublisher
	auditor   auditdomain.Recorder
	idgen     idgen.Generator
	logger    *slog.Logger
}

// NewService 创建对冲跟踪服务
func NewService(
	repo domain.HedgeRepository,
	tm posdomain.TransactionManager,
	positions *posapp.Service,
	publisher messagequeue.EventPublisher,
	auditor auditdomain.Recorder,
	gen idgen.Generator,
	logger *slog.Logger,
) *Service {
	return &Service{
		repo:      repo,
		tm:        tm,
		positions: positions,
		publisher: publisher,
		auditor:   auditor,
		idgen:     gen,
		logger:    logger,
	}
}

// RecordHedgeCommand 对冲录入命令
type RecordHedgeCommand struct {
	Currency         string
	Quantity         decimal.Decimal
	Rate             decimal.Decimal
	Instrument       domain.InstrumentType
	Counterparty     string
	ExternalRef      string
	ValueDate        time.Time
	RequiresDualAuth bool
	RecordedBy       string
}

// RecordHedge 录入一笔对冲
func (s *Service) RecordHedge(ctx context.Context, cmd RecordHedgeCommand) (*domain.Hedge, error) {
	hedge, err := domain.NewHedge(
		fmt.Sprintf("HDG-%d", s.idgen.Generate()),
		cmd.Currency,
		cmd.Quantity,
		cmd.Rate,
		cmd.Instrument,
		cmd.Counterparty,
		cmd.ExternalRef,
		cmd.ValueDate,
		cmd.RequiresDualAuth,
		cmd.RecordedBy,
	)
	if err != nil {
		s.auditFailure(ctx, "", cmd.RecordedBy, "Hedge entry rejected", err)
		return nil, err
	}

	if err := s.repo.Save(ctx, hedge); err != nil {
		return nil, err
	}

	s.publishEvents(ctx, hedge.GetDomainEvents())
	hedge.ClearDomainEvents()

	s.audit(ctx, auditdomain.Event{
		EventType:   auditdomain.EventTypeHedgeEntry,
		Description: fmt.Sprintf("Hedge %s recorded: %s %s %s @ %s", hedge.HedgeID, cmd.Instrument, cmd.Quantity, cmd.Currency, cmd.Rate),
		Actor:       cmd.RecordedBy,
		Details: map[string]any{
			"hedge_id":           hedge.HedgeID,
			"currency":           cmd.Currency,
			"quantity":           cmd.Quantity.String(),
			"rate":               cmd.Rate.String(),
			"instrument":         string(cmd.Instrument),
			"counterparty":       cmd.Counterparty,
			"requires_dual_auth": cmd.RequiresDualAuth,
		},
		Status: auditdomain.StatusCompleted,
	})
	return hedge, nil
}

// AuthorizeHedge 记录一次授权
func (s *Service) AuthorizeHedge(ctx context.Context, hedgeID, authorizer string) (*domain.Hedge, error) {
	var hedge *domain.Hedge

	err := s.tm.Transaction(ctx, func(txCtx context.Context) error {
		var err error
		hedge, err = s.repo.GetWithLock(txCtx, hedgeID)
		if err != nil {
			return err
		}
		if hedge == nil {
			return fmt.Errorf("hedge %s not found", hedgeID)
		}
		if err := hedge.Authorize(authorizer); err != nil {
			return err
		}
		return s.repo.Save(txCtx, hedge)
	})
	if err != nil {
		s.auditFailure(ctx, hedgeID, authorizer, fmt.Sprintf("Authorization on %s rejected", hedgeID), err)
		return nil, err
	}

	s.publishEvents(ctx, hedge.GetDomainEvents())
	hedge.ClearDomainEvents()

	s.audit(ctx, auditdomain.Event{
		EventType:   auditdomain.EventTypeApproval,
		Description: fmt.Sprintf("Hedge %s authorized by %s", hedgeID, authorizer),
		Actor:       authorizer,
		Details: map[string]any{
			"hedge_id":   hedgeID,
			"authorized": hedge.Authorized(),
		},
		Status: auditdomain.StatusCompleted,
	})
	return hedge, nil
}

// MatchHedge 将对冲的一部分数量与头寸敞口匹配。
// 头寸按覆盖数量在对冲成交价下实现盈亏，与对冲覆盖量更新同属一个事务。
func (s *Service) MatchHedge(ctx context.Context, hedgeID string, quantity decimal.Decimal, matchedBy string) (*domain.Hedge, decimal.Decimal, error) {
	var (
		hedge *domain.Hedge
		pnl   decimal.Decimal
	)

	err := s.tm.Transaction(ctx, func(txCtx context.Context) error {
		var err error
		hedge, err = s.repo.GetWithLock(txCtx, hedgeID)
		if err != nil {
			return err
		}
		if hedge == nil {
			return fmt.Errorf("hedge %s not found", hedgeID)
		}

		if err := hedge.ValidateMatch(quantity); err != nil {
			return err
		}

		pnl, err = s.positions.RealizeMatched(txCtx, hedge.Currency, hedge.HedgeID, quantity, hedge.Rate)
		if err != nil {
			return err
		}
		if err := hedge.ApplyMatch(quantity, hedge.Rate, pnl, matchedBy); err != nil {
			return err
		}
		return s.repo.Save(txCtx, hedge)
	})
	if err != nil {
		s.auditFailure(ctx, hedgeID, matchedBy, fmt.Sprintf("Hedge match on %s rejected", hedgeID), err)
		return nil, decimal.Zero, err
	}

	s.publishEvents(ctx, hedge.GetDomainEvents())
	hedge.ClearDomainEvents()

	s.audit(ctx, auditdomain.Event{
		EventType:   auditdomain.EventTypeHedgeMatch,
		Description: fmt.Sprintf("Hedge %s matched %s %s, realized P&L %s", hedgeID, quantity, hedge.Currency, pnl),
		Actor:       matchedBy,
		Details: map[string]any{
			"hedge_id":         hedgeID,
			"quantity":         quantity.String(),
			"realized_pnl":     pnl.String(),
			"matched_quantity": hedge.MatchedQuantity.String(),
			"status":           string(hedge.Status),
		},
		Status: auditdomain.StatusCompleted,
	})
	return hedge, pnl, nil
}

// GetByHedgeID 查询单笔对冲
func (s *Service) GetByHedgeID(ctx context.Context, hedgeID string) (*domain.Hedge, error) {
	return s.repo.GetByHedgeID(ctx, hedgeID)
}

// List 分页列出对冲
func (s *Service) List(ctx context.Context, limit, offset int) ([]*domain.Hedge, int64, error) {
	return s.repo.List(ctx, limit, offset)
}

func (s *Service) auditFailure(ctx context.Context, hedgeID, actor, description string, cause error) {
	s.audit(ctx, auditdomain.Event{
		EventType:   auditdomain.EventTypeHedgeEntry,
		Description: fmt.Sprintf("%s: %s", description, cause),
		Actor:       actor,
		Details: map[string]any{
			"hedge_id": hedgeID,
			"error":    cause.Error(),
		},
		Status: auditdomain.StatusFailed,
	})
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
