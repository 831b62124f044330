package application

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	auditdomain "github.com/wyfcoding/fxtreasury/internal/auditing/domain"
	auditinfra "github.com/wyfcoding/fxtreasury/internal/auditing/infrastructure"
	classapp "github.com/wyfcoding/fxtreasury/internal/classification/application"
	classdomain "github.com/wyfcoding/fxtreasury/internal/classification/domain"
	classinfra "github.com/wyfcoding/fxtreasury/internal/classification/infrastructure"
	"github.com/wyfcoding/fxtreasury/internal/decomposition/domain"
	"github.com/wyfcoding/fxtreasury/internal/decomposition/infrastructure"
	marketdomain "github.com/wyfcoding/fxtreasury/internal/marketdata/domain"
	posapp "github.com/wyfcoding/fxtreasury/internal/position/application"
	posdomain "github.com/wyfcoding/fxtreasury/internal/position/domain"
	posinfra "github.com/wyfcoding/fxtreasury/internal/position/infrastructure"
)

type seqGen struct {
	n int64
}

func (g *seqGen) Generate() int64 {
	return atomic.AddInt64(&g.n, 1)
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, string, string, any) error { return nil }
func (noopPublisher) PublishInTx(context.Context, any, string, string, any) error {
	return nil
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type fixture struct {
	svc    *TradeService
	trades *infrastructure.MemoryTradeRepository
	posrep *posinfra.MemoryPositionRepository
	ledger *auditinfra.MemoryLedger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	gen := &seqGen{}
	logger := slog.Default()
	ledger := auditinfra.NewMemoryLedger()

	configRepo := classinfra.NewMemoryConfigRepository()
	initial, err := classdomain.NewConfig(
		[]string{"USD", "EUR", "GBP", "JPY", "KRW"},
		[]string{"USD", "EUR", "GBP", "JPY"},
		nil, nil, "system",
	)
	require.NoError(t, err)
	require.NoError(t, configRepo.Save(ctx, initial))
	classSvc := classapp.NewService(configRepo, noopPublisher{}, ledger, gen, logger)

	posRepo := posinfra.NewMemoryPositionRepository()
	posSvc := posapp.NewService(posRepo, posinfra.NoopTransactionManager{}, noopPublisher{}, ledger, gen, nil, logger)

	book := marketdomain.NewBook()
	now := time.Now()
	for _, q := range []marketdomain.Quote{
		{Pair: "USD/JPY", Bid: dec("148.20"), Ask: dec("148.30"), Mid: dec("148.25"), Timestamp: now},
		{Pair: "USD/KRW", Bid: dec("1320.00"), Ask: dec("1321.00"), Mid: dec("1320.50"), Timestamp: now},
		{Pair: "JPY/KRW", Bid: dec("8.90"), Ask: dec("8.92"), Mid: dec("8.91"), Timestamp: now},
	} {
		require.NoError(t, book.Apply(q))
	}

	trades := infrastructure.NewMemoryTradeRepository()
	svc := NewTradeService(domain.NewEngine(book), trades, posinfra.NoopTransactionManager{}, classSvc, posSvc, ledger, gen, logger)
	return &fixture{svc: svc, trades: trades, posrep: posRepo, ledger: ledger}
}

func TestEnterTradeExoticEndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	trade, touched, err := f.svc.EnterTrade(ctx, EnterTradeCommand{
		Pair:          "JPY/KRW",
		Amount:        dec("150000000"),
		CustomerOrder: "ORD-7",
		Actor:         "trader.a",
	})
	require.NoError(t, err)

	assert.True(t, trade.Exotic)
	assert.Equal(t, int64(1), trade.ConfigVersion)
	assert.Len(t, trade.Legs, 2)
	assert.False(t, trade.NetUSDExposure.IsZero())
	assert.Len(t, touched, 3)

	saved, err := f.trades.GetByTradeID(ctx, trade.TradeID)
	require.NoError(t, err)
	require.NotNil(t, saved)

	jpy, _ := f.posrep.GetByCurrency(ctx, "JPY")
	require.NotNil(t, jpy)
	assert.True(t, jpy.NetPosition.Equal(dec("150000000")))

	events, _, err := f.ledger.List(ctx, auditdomain.EventTypeTradeEntry, 10, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, auditdomain.StatusCompleted, events[0].Status)
}

func TestEnterTradeDirectSingleLeg(t *testing.T) {
	f := newFixture(t)

	trade, _, err := f.svc.EnterTrade(context.Background(), EnterTradeCommand{
		Pair:   "USD/JPY",
		Amount: dec("1000000"),
		Actor:  "trader.a",
	})
	require.NoError(t, err)
	assert.False(t, trade.Exotic)
	assert.Len(t, trade.Legs, 1)
}

func TestEnterTradeRejectedInputAuditsFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, _, err := f.svc.EnterTrade(ctx, EnterTradeCommand{
		Pair:   "JPY/JPY",
		Amount: dec("100"),
		Actor:  "trader.a",
	})
	assert.ErrorIs(t, err, classdomain.ErrInvalidPair)

	_, _, err = f.svc.EnterTrade(ctx, EnterTradeCommand{
		Pair:   "JPY/KRW",
		Amount: decimal.Zero,
		Actor:  "trader.a",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	events, _, lerr := f.ledger.List(ctx, auditdomain.EventTypeTradeEntry, 10, 0)
	require.NoError(t, lerr)
	require.Len(t, events, 2)
	for _, e := range events {
		assert.Equal(t, auditdomain.StatusFailed, e.Status)
	}

	// 拒绝的输入不产生任何状态变更
	_, total, err := f.trades.List(ctx, 10, 0)
	require.NoError(t, err)
	assert.Zero(t, total)
}

// failingPositionRepository 写入即失败，用于验证录入的全有或全无
type failingPositionRepository struct {
	*posinfra.MemoryPositionRepository
}

func (failingPositionRepository) Save(context.Context, *posdomain.Position) error {
	return errors.New("position store unavailable")
}

func TestEnterTradeAtomicWithPositionIngestion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	failing := failingPositionRepository{posinfra.NewMemoryPositionRepository()}
	posSvc := posapp.NewService(failing, posinfra.NoopTransactionManager{}, noopPublisher{}, f.ledger, &seqGen{n: 100}, nil, slog.Default())
	svc := NewTradeService(f.svc.engine, f.trades, posinfra.NoopTransactionManager{}, f.svc.classifier, posSvc, f.ledger, &seqGen{n: 200}, slog.Default())

	_, _, err := svc.EnterTrade(ctx, EnterTradeCommand{
		Pair:   "JPY/KRW",
		Amount: dec("150000000"),
		Actor:  "trader.a",
	})
	require.Error(t, err)

	// 头寸折算失败的交易不可见
	_, total, lerr := f.trades.List(ctx, 10, 0)
	require.NoError(t, lerr)
	assert.Zero(t, total, "trade must not be observable when position ingestion failed")
}

func TestGetTradeWarnsOnClassificationMismatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	trade, _, err := f.svc.EnterTrade(ctx, EnterTradeCommand{
		Pair: "JPY/KRW", Amount: dec("1000000"), Actor: "trader.a",
	})
	require.NoError(t, err)
	require.True(t, trade.Exotic)

	var buf bytes.Buffer
	warnSvc := NewTradeService(f.svc.engine, f.trades, posinfra.NoopTransactionManager{}, f.svc.classifier, f.svc.positions, f.ledger, &seqGen{n: 300}, slog.New(slog.NewTextHandler(&buf, nil)))

	// 配置未变时无告警
	got, err := warnSvc.GetTrade(ctx, trade.TradeID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.NotContains(t, buf.String(), "classification mismatch")

	_, err = f.svc.classifier.UpdateDirectTradingConfig(ctx, classapp.UpdateDirectTradingConfigCommand{
		DirectCurrencies: []string{"USD", "EUR", "GBP", "JPY", "KRW"},
		Actor:            "ops.a",
	})
	require.NoError(t, err)

	// 背离只告警，标志不变也不拒绝
	got, err = warnSvc.GetTrade(ctx, trade.TradeID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Exotic)
	assert.Contains(t, buf.String(), "classification mismatch")
}

func TestEnterTradeClassificationFixedAtEntry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	before, _, err := f.svc.EnterTrade(ctx, EnterTradeCommand{
		Pair: "JPY/KRW", Amount: dec("1000000"), Actor: "trader.a",
	})
	require.NoError(t, err)
	assert.True(t, before.Exotic)

	// KRW 升级为直盘后，旧交易的标志不变，新交易按新配置
	_, err = f.svc.classifier.UpdateDirectTradingConfig(ctx, classapp.UpdateDirectTradingConfigCommand{
		DirectCurrencies: []string{"USD", "EUR", "GBP", "JPY", "KRW"},
		Actor:            "ops.a",
	})
	require.NoError(t, err)

	after, _, err := f.svc.EnterTrade(ctx, EnterTradeCommand{
		Pair: "JPY/KRW", Amount: dec("1000000"), Actor: "trader.a",
	})
	require.NoError(t, err)
	assert.False(t, after.Exotic)
	assert.Equal(t, int64(2), after.ConfigVersion)

	stored, err := f.trades.GetByTradeID(ctx, before.TradeID)
	require.NoError(t, err)
	assert.True(t, stored.Exotic, "entry-time classification never recomputed")
}
