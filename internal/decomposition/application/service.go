// Package application 交易录入与拆腿应用层
// 生成摘要：
// 1) 按当前配置快照分类并固定 Exotic 标志（绝不回溯重算）
// 2) 拆腿后落库交易并折算进头寸，返回触及的头寸集合
// 3) 每笔录入（含失败尝试）留审计
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	auditdomain "github.com/wyfcoding/fxtreasury/internal/auditing/domain"
	classapp "github.com/wyfcoding/fxtreasury/internal/classification/application"
	classdomain "github.com/wyfcoding/fxtreasury/internal/classification/domain"
	"github.com/wyfcoding/fxtreasury/internal/decomposition/domain"
	posapp "github.com/wyfcoding/fxtreasury/internal/position/application"
	posdomain "github.com/wyfcoding/fxtreasury/internal/position/domain"
	"github.com/wyfcoding/pkg/idgen"
)

// TradeService 交易录入服务
type TradeService struct {
	engine     *domain.Engine
	trades     domain.TradeRepository
	tm         posdomain.TransactionManager
	classifier *classapp.Service
	positions  *posapp.Service
	auditor    auditdomain.Recorder
	idgen      idgen.Generator
	logger     *slog.Logger
}

// NewTradeService 创建交易录入服务
func NewTradeService(
	engine *domain.Engine,
	trades domain.TradeRepository,
	tm posdomain.TransactionManager,
	classifier *classapp.Service,
	positions *posapp.Service,
	auditor auditdomain.Recorder,
	gen idgen.Generator,
	logger *slog.Logger,
) *TradeService {
	return &TradeService{
		engine:     engine,
		trades:     trades,
		tm:         tm,
		classifier: classifier,
		positions:  positions,
		auditor:    auditor,
		idgen:      gen,
		logger:     logger,
	}
}

// EnterTradeCommand 交易录入命令
type EnterTradeCommand struct {
	Pair          string
	Amount        decimal.Decimal
	CustomerOrder string
	Actor         string
}

// EnterTrade 录入一笔客户交易：分类 → 拆腿 → 落库 → 头寸折算。
// 返回交易与触及的头寸集合。拒绝的输入不产生任何状态变更，但留失败审计。
func (s *TradeService) EnterTrade(ctx context.Context, cmd EnterTradeCommand) (*domain.Trade, []*posdomain.Position, error) {
	cfg, err := s.classifier.Snapshot(ctx)
	if err != nil {
		return nil, nil, err
	}

	base, quote, err := classdomain.SplitPair(cmd.Pair)
	if err != nil {
		s.auditFailure(ctx, cmd, err)
		return nil, nil, err
	}

	class, err := cfg.Classify(base, quote)
	if err != nil {
		s.auditFailure(ctx, cmd, err)
		return nil, nil, err
	}

	legs, netUSD, err := s.engine.Decompose(cmd.Pair, cmd.Amount, class)
	if err != nil {
		s.auditFailure(ctx, cmd, err)
		return nil, nil, err
	}

	trade := &domain.Trade{
		TradeID:        fmt.Sprintf("TRD-%d", s.idgen.Generate()),
		TradeDate:      time.Now(),
		CustomerOrder:  cmd.CustomerOrder,
		OriginalPair:   base + "/" + quote,
		OriginalAmount: cmd.Amount,
		Exotic:         class == classdomain.ClassificationExotic,
		ConfigVersion:  cfg.ConfigVersion,
		NetUSDExposure: netUSD,
		Legs:           legs,
	}

	// 交易落库与头寸折算同属一个存储事务：任一失败则交易不可见
	var touched []*posdomain.Position
	err = s.tm.Transaction(ctx, func(txCtx context.Context) error {
		var err error
		touched, err = s.positions.IngestTrade(txCtx, trade)
		if err != nil {
			return err
		}
		if err := s.trades.Save(txCtx, trade); err != nil {
			return fmt.Errorf("failed to save trade: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	s.audit(ctx, auditdomain.Event{
		EventType:   auditdomain.EventTypeTradeEntry,
		Description: fmt.Sprintf("Trade %s on %s entered (%s)", trade.TradeID, trade.OriginalPair, class),
		Actor:       cmd.Actor,
		Details: map[string]any{
			"trade_id":         trade.TradeID,
			"pair":             trade.OriginalPair,
			"amount":           trade.OriginalAmount.String(),
			"exotic":           trade.Exotic,
			"legs":             len(trade.Legs),
			"net_usd_exposure": trade.NetUSDExposure.String(),
			"config_version":   trade.ConfigVersion,
		},
		Status: auditdomain.StatusCompleted,
	})

	return trade, touched, nil
}

// GetTrade 查询一笔交易。
// 固定的 Exotic 标志与当前配置不一致时告警，绝不拒绝也绝不重算。
func (s *TradeService) GetTrade(ctx context.Context, tradeID string) (*domain.Trade, error) {
	trade, err := s.trades.GetByTradeID(ctx, tradeID)
	if err != nil || trade == nil {
		return trade, err
	}
	s.warnClassificationMismatch(ctx, trade)
	return trade, nil
}

// warnClassificationMismatch 历史交易的分类标志与当前规则背离时留日志
func (s *TradeService) warnClassificationMismatch(ctx context.Context, trade *domain.Trade) {
	cfg, err := s.classifier.Snapshot(ctx)
	if err != nil {
		return
	}
	base, quote, err := classdomain.SplitPair(trade.OriginalPair)
	if err != nil {
		return
	}
	class, err := cfg.Classify(base, quote)
	if err != nil {
		return
	}
	if exotic := class == classdomain.ClassificationExotic; exotic != trade.Exotic {
		s.logger.WarnContext(ctx, "classification mismatch",
			"trade_id", trade.TradeID,
			"pair", trade.OriginalPair,
			"trade_exotic", trade.Exotic,
			"trade_config_version", trade.ConfigVersion,
			"current_classification", string(class),
			"current_config_version", cfg.ConfigVersion)
	}
}

// auditFailure 被拒绝的录入同样留痕
func (s *TradeService) auditFailure(ctx context.Context, cmd EnterTradeCommand, cause error) {
	var kind string
	switch {
	case errors.Is(cause, classdomain.ErrInvalidPair):
		kind = "invalid pair"
	case errors.Is(cause, domain.ErrInvalidAmount):
		kind = "invalid amount"
	default:
		kind = "rejected"
	}

	s.audit(ctx, auditdomain.Event{
		EventType:   auditdomain.EventTypeTradeEntry,
		Description: fmt.Sprintf("Trade entry on %s rejected: %s", cmd.Pair, kind),
		Actor:       cmd.Actor,
		Details: map[string]any{
			"pair":   cmd.Pair,
			"amount": cmd.Amount.String(),
			"error":  cause.Error(),
		},
		Status: auditdomain.StatusFailed,
	})
}

func (s *TradeService) audit(ctx context.Context, event auditdomain.Event) {
	event.EventID = fmt.Sprintf("AUD-%d", s.idgen.Generate())
	event.OccurredAt = time.Now()
	if err := s.auditor.Record(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "failed to record audit event",
			"event_type", event.EventType,
			"error", err)
	}
}
