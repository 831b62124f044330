package application

import (
	"context"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	auditinfra "github.com/wyfcoding/fxtreasury/internal/auditing/infrastructure"
	classdomain "github.com/wyfcoding/fxtreasury/internal/classification/domain"
	decompdomain "github.com/wyfcoding/fxtreasury/internal/decomposition/domain"
	marketdomain "github.com/wyfcoding/fxtreasury/internal/marketdata/domain"
	"github.com/wyfcoding/fxtreasury/internal/position/domain"
	"github.com/wyfcoding/fxtreasury/internal/position/infrastructure"
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

func newTestService(t *testing.T) (*Service, *infrastructure.MemoryPositionRepository, *auditinfra.MemoryLedger) {
	t.Helper()
	repo := infrastructure.NewMemoryPositionRepository()
	ledger := auditinfra.NewMemoryLedger()
	svc := NewService(
		repo,
		infrastructure.NoopTransactionManager{},
		noopPublisher{},
		ledger,
		&seqGen{},
		map[string]string{"JPY": "LP-Tokyo"},
		slog.Default(),
	)
	return svc, repo, ledger
}

func exoticTestTrade(t *testing.T) *decompdomain.Trade {
	t.Helper()
	book := marketdomain.NewBook()
	now := time.Now()
	for _, q := range []marketdomain.Quote{
		{Pair: "USD/JPY", Bid: dec("148.20"), Ask: dec("148.30"), Mid: dec("148.25"), Timestamp: now},
		{Pair: "USD/KRW", Bid: dec("1320.00"), Ask: dec("1321.00"), Mid: dec("1320.50"), Timestamp: now},
	} {
		require.NoError(t, book.Apply(q))
	}

	engine := decompdomain.NewEngine(book)
	legs, netUSD, err := engine.Decompose("JPY/KRW", dec("150000000"), classdomain.ClassificationExotic)
	require.NoError(t, err)

	return &decompdomain.Trade{
		TradeID:        "TRD-1",
		TradeDate:      now,
		OriginalPair:   "JPY/KRW",
		OriginalAmount: dec("150000000"),
		Exotic:         true,
		NetUSDExposure: netUSD,
		Legs:           legs,
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestIngestTradeTouchesBothCurrenciesAndUSD(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	trade := exoticTestTrade(t)
	touched, err := svc.IngestTrade(ctx, trade)
	require.NoError(t, err)
	assert.Len(t, touched, 3)

	jpy, err := repo.GetByCurrency(ctx, "JPY")
	require.NoError(t, err)
	require.NotNil(t, jpy)
	assert.True(t, jpy.NetPosition.Equal(dec("150000000")))
	assert.Equal(t, domain.ConventionPerUSD, jpy.Convention)
	assert.Equal(t, "LP-Tokyo", jpy.LiquidityProvider)

	krw, err := repo.GetByCurrency(ctx, "KRW")
	require.NoError(t, err)
	require.NotNil(t, krw)
	assert.True(t, krw.NetPosition.IsNegative())

	// USD 聚合头寸累计两腿的合成行，即净 USD 残差
	usd, err := repo.GetByCurrency(ctx, "USD")
	require.NoError(t, err)
	require.NotNil(t, usd)
	assert.Equal(t, domain.ConventionIdentity, usd.Convention)
	assert.True(t, usd.NetPosition.Equal(trade.NetUSDExposure))
}

func TestIngestTradeSameTradeBothLegsOrdered(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	trade := exoticTestTrade(t)
	_, err := svc.IngestTrade(ctx, trade)
	require.NoError(t, err)

	jpy, _ := repo.GetByCurrency(ctx, "JPY")
	require.Len(t, jpy.Trades, 1)
	assert.Equal(t, "TRD-1", jpy.Trades[0].TradeID)

	usd, _ := repo.GetByCurrency(ctx, "USD")
	assert.Len(t, usd.Trades, 2, "one synthetic row per leg")
}

func TestRefreshRateRecomputesMTMAndAudits(t *testing.T) {
	svc, repo, ledger := newTestService(t)
	ctx := context.Background()

	_, err := svc.IngestTrade(ctx, exoticTestTrade(t))
	require.NoError(t, err)

	position, err := svc.RefreshRate(ctx, "JPY", dec("147.00"), domain.ConventionPerUSD)
	require.NoError(t, err)
	require.NotNil(t, position)
	assert.True(t, position.MTMValue.Equal(dec("150000000").Div(dec("147.00"))))

	jpy, _ := repo.GetByCurrency(ctx, "JPY")
	assert.True(t, jpy.CurrentRate.Equal(dec("147.00")))
	assert.True(t, jpy.RealizedPnL.IsZero())

	events, _, err := ledger.List(ctx, "Rate Update", 10, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "system", events[0].Actor)
}

func TestRefreshRateUnknownCurrencyIsNoop(t *testing.T) {
	svc, _, _ := newTestService(t)

	position, err := svc.RefreshRate(context.Background(), "CHF", dec("0.88"), domain.ConventionPerUSD)
	require.NoError(t, err)
	assert.Nil(t, position)
}

// recordingTransactionManager 记录事务边界是否被经过
type recordingTransactionManager struct {
	calls int
}

func (tm *recordingTransactionManager) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	tm.calls++
	return fn(ctx)
}

func TestApplyResetOpensOwnTransaction(t *testing.T) {
	repo := infrastructure.NewMemoryPositionRepository()
	tm := &recordingTransactionManager{}
	svc := NewService(repo, tm, noopPublisher{}, auditinfra.NewMemoryLedger(), &seqGen{}, nil, slog.Default())
	ctx := context.Background()

	_, err := svc.IngestTrade(ctx, exoticTestTrade(t))
	require.NoError(t, err)

	jpy, _ := repo.GetByCurrency(ctx, "JPY")
	before := tm.calls
	require.NoError(t, svc.ApplyReset(ctx, jpy.PositionID, "RST-2", dec("90000000"), "manager.b"))

	// 直接调用时行锁与写入同处一个事务边界内
	assert.Equal(t, before+1, tm.calls)

	jpy, _ = repo.GetByCurrency(ctx, "JPY")
	assert.True(t, jpy.NetPosition.Equal(dec("90000000")))
}

func TestApplyResetByPositionID(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.IngestTrade(ctx, exoticTestTrade(t))
	require.NoError(t, err)

	jpy, _ := repo.GetByCurrency(ctx, "JPY")
	require.NoError(t, svc.ApplyReset(ctx, jpy.PositionID, "RST-1", dec("100000000"), "manager.b"))

	jpy, _ = repo.GetByCurrency(ctx, "JPY")
	assert.True(t, jpy.NetPosition.Equal(dec("100000000")))
}
