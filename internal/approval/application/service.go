// Package application 审批工作流应用层
// 生成摘要：
// 1) 提交重置请求时固化头寸当前值，审批链与落账共用一个存储事务
// 2) 每一次状态转移（含被拒绝的非法尝试）都写审计
// 3) 二级审批通过即落账，已应用标记保证恰好一次
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/fxtreasury/internal/approval/domain"
	auditdomain "github.com/wyfcoding/fxtreasury/internal/auditing/domain"
	posapp "github.com/wyfcoding/fxtreasury/internal/position/application"
	posdomain "github.com/wyfcoding/fxtreasury/internal/position/domain"
	"github.com/wyfcoding/pkg/idgen"
	"github.com/wyfcoding/pkg/messagequeue"
)

// ErrRequestNotFound 请求不存在
var ErrRequestNotFound = errors.New("reset request not found")

// Service 重置审批服务
type Service struct {
	repo      domain.ResetRequestRepository
	tm        posdomain.TransactionManager
	positions *posapp.Service
	publisher messagequeue.EventPublisher
	auditor   auditdomain.Recorder
	idgen     idgen.Generator
	logger    *slog.Logger
}

// NewService 创建重置审批服务
func NewService(
	repo domain.ResetRequestRepository,
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

// SubmitResetRequestCommand 重置请求提交命令
type SubmitResetRequestCommand struct {
	PositionID    string
	TargetValue   decimal.Decimal
	Reason        string
	Justification string
	RequestedBy   string
}

// SubmitResetRequest 提交重置请求。当前值取提交时刻的头寸净额快照。
func (s *Service) SubmitResetRequest(ctx context.Context, cmd SubmitResetRequestCommand) (*domain.ResetRequest, error) {
	position, err := s.positions.GetByPositionID(ctx, cmd.PositionID)
	if err != nil {
		return nil, err
	}
	if position == nil {
		return nil, fmt.Errorf("position %s not found", cmd.PositionID)
	}

	request := domain.NewResetRequest(
		fmt.Sprintf("RST-%d", s.idgen.Generate()),
		cmd.PositionID,
		position.NetPosition,
		cmd.TargetValue,
		cmd.Reason,
		cmd.Justification,
		cmd.RequestedBy,
	)

	if err := s.repo.Save(ctx, request); err != nil {
		return nil, err
	}

	s.publishEvents(ctx, request.GetDomainEvents())
	request.ClearDomainEvents()

	s.audit(ctx, auditdomain.Event{
		EventType:   auditdomain.EventTypeApproval,
		Description: fmt.Sprintf("Position reset requested for %s: %s -> %s", cmd.PositionID, request.CurrentValue, cmd.TargetValue),
		Actor:       cmd.RequestedBy,
		Details: map[string]any{
			"request_id":    request.RequestID,
			"position_id":   cmd.PositionID,
			"current_value": request.CurrentValue.String(),
			"target_value":  cmd.TargetValue.String(),
			"reason":        cmd.Reason,
		},
		Status: auditdomain.StatusPending,
	})
	return request, nil
}

// ApproveReset 提交一级审批。
// 二级审批通过的同一事务内将目标值落到头寸，随后标记已应用。
func (s *Service) ApproveReset(ctx context.Context, requestID string, level int, approver, comments string) (*domain.ResetRequest, error) {
	var request *domain.ResetRequest

	err := s.tm.Transaction(ctx, func(txCtx context.Context) error {
		var err error
		request, err = s.repo.GetWithLock(txCtx, requestID)
		if err != nil {
			return err
		}
		if request == nil {
			return fmt.Errorf("%w: %s", ErrRequestNotFound, requestID)
		}

		if err := request.Approve(level, approver, comments); err != nil {
			return err
		}

		if request.Status == domain.StatusApproved && request.MarkApplied(time.Now()) {
			if err := s.positions.ApplyReset(txCtx, request.PositionID, request.RequestID, request.TargetValue, approver); err != nil {
				return fmt.Errorf("failed to apply reset %s: %w", request.RequestID, err)
			}
		}
		return s.repo.Save(txCtx, request)
	})
	if err != nil {
		s.auditFailure(ctx, requestID, level, approver, err)
		return nil, err
	}

	s.publishEvents(ctx, request.GetDomainEvents())
	request.ClearDomainEvents()

	status := auditdomain.StatusPending
	description := fmt.Sprintf("Level %d approval recorded for %s", level, requestID)
	if request.Status == domain.StatusApproved {
		status = auditdomain.StatusApproved
		description = fmt.Sprintf("Reset %s fully approved and applied to position %s", requestID, request.PositionID)
	}
	s.audit(ctx, auditdomain.Event{
		EventType:   auditdomain.EventTypeApproval,
		Description: description,
		Actor:       approver,
		Details: map[string]any{
			"request_id": requestID,
			"level":      level,
			"status":     string(request.Status),
			"comments":   comments,
		},
		Status: status,
	})
	return request, nil
}

// RejectReset 拒绝请求。任一授权审批人可在任意非终态拒绝。
func (s *Service) RejectReset(ctx context.Context, requestID, approver, comments string) (*domain.ResetRequest, error) {
	var request *domain.ResetRequest

	err := s.tm.Transaction(ctx, func(txCtx context.Context) error {
		var err error
		request, err = s.repo.GetWithLock(txCtx, requestID)
		if err != nil {
			return err
		}
		if request == nil {
			return fmt.Errorf("%w: %s", ErrRequestNotFound, requestID)
		}
		if err := request.Reject(approver, comments); err != nil {
			return err
		}
		return s.repo.Save(txCtx, request)
	})
	if err != nil {
		s.auditFailure(ctx, requestID, 0, approver, err)
		return nil, err
	}

	s.publishEvents(ctx, request.GetDomainEvents())
	request.ClearDomainEvents()

	s.audit(ctx, auditdomain.Event{
		EventType:   auditdomain.EventTypeApproval,
		Description: fmt.Sprintf("Reset request %s rejected", requestID),
		Actor:       approver,
		Details: map[string]any{
			"request_id": requestID,
			"comments":   comments,
		},
		Status: auditdomain.StatusRejected,
	})
	return request, nil
}

// GetByRequestID 查询单个请求
func (s *Service) GetByRequestID(ctx context.Context, requestID string) (*domain.ResetRequest, error) {
	return s.repo.GetByRequestID(ctx, requestID)
}

// List 分页列出请求
func (s *Service) List(ctx context.Context, limit, offset int) ([]*domain.ResetRequest, int64, error) {
	return s.repo.List(ctx, limit, offset)
}

// auditFailure 非法审批尝试同样留痕，状态不变
func (s *Service) auditFailure(ctx context.Context, requestID string, level int, actor string, cause error) {
	s.audit(ctx, auditdomain.Event{
		EventType:   auditdomain.EventTypeApproval,
		Description: fmt.Sprintf("Approval action on %s rejected: %s", requestID, cause),
		Actor:       actor,
		Details: map[string]any{
			"request_id": requestID,
			"level":      level,
			"error":      cause.Error(),
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
