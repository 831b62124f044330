// Package application 行情应用层
// 生成摘要：
// 1) 外部喂价写入行情簿，供拆腿引擎做 dealt/mid 查价
// 2) 含 USD 的货币对刷新后路由到对应货币头寸做盯市重算
package application

import (
	"context"
	"log/slog"
	"strings"

	classdomain "github.com/wyfcoding/fxtreasury/internal/classification/domain"
	"github.com/wyfcoding/fxtreasury/internal/marketdata/domain"
	posapp "github.com/wyfcoding/fxtreasury/internal/position/application"
	posdomain "github.com/wyfcoding/fxtreasury/internal/position/domain"
)

// Service 行情服务
type Service struct {
	book      *domain.Book
	positions *posapp.Service
	logger    *slog.Logger
}

// NewService 创建行情服务
func NewService(book *domain.Book, positions *posapp.Service, logger *slog.Logger) *Service {
	return &Service{
		book:      book,
		positions: positions,
		logger:    logger,
	}
}

// Book 行情簿，拆腿引擎的查价来源
func (s *Service) Book() *domain.Book {
	return s.book
}

// ApplyQuote 应用一条行情。含 USD 的货币对同时触发对应货币头寸的盯市重算，
// 头寸的报价惯例由货币对方向决定（USD 在前为 per-USD，USD 在后为 USD-per）。
func (s *Service) ApplyQuote(ctx context.Context, quote domain.Quote) error {
	if err := s.book.Apply(quote); err != nil {
		return err
	}

	currency, convention, ok := positionTarget(quote.Pair)
	if !ok {
		return nil
	}

	if _, err := s.positions.RefreshRate(ctx, currency, quote.Mid, convention); err != nil {
		s.logger.ErrorContext(ctx, "failed to refresh position rate",
			"pair", quote.Pair,
			"currency", currency,
			"error", err)
		return err
	}
	return nil
}

// positionTarget 从货币对方向推导受影响的头寸货币与报价惯例
func positionTarget(pair string) (string, posdomain.QuoteConvention, bool) {
	parts := strings.Split(pair, "/")
	if len(parts) != 2 {
		return "", "", false
	}
	base, quote := parts[0], parts[1]
	switch {
	case base == classdomain.USD && quote != classdomain.USD:
		return quote, posdomain.ConventionPerUSD, true
	case quote == classdomain.USD && base != classdomain.USD:
		return base, posdomain.ConventionUSDPer, true
	}
	return "", "", false
}
