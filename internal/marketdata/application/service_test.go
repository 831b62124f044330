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
	"github.com/wyfcoding/fxtreasury/internal/marketdata/domain"
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

func newFixture(t *testing.T) (*Service, *posinfra.MemoryPositionRepository) {
	t.Helper()
	ctx := context.Background()

	posRepo := posinfra.NewMemoryPositionRepository()
	positionSvc := posapp.NewService(
		posRepo, posinfra.NoopTransactionManager{}, noopPublisher{},
		auditinfra.NewMemoryLedger(), &seqGen{}, nil, slog.Default(),
	)

	jpy := posdomain.NewPosition("POS-1", "JPY", "", posdomain.ConventionPerUSD)
	jpy.ApplyContribution("TRD-1", "USD/JPY", dec("150000000"), dec("148.20"), posdomain.ConventionPerUSD)
	jpy.ClearDomainEvents()
	require.NoError(t, posRepo.Save(ctx, jpy))

	eur := posdomain.NewPosition("POS-2", "EUR", "", posdomain.ConventionUSDPer)
	eur.ApplyContribution("TRD-2", "EUR/USD", dec("1000000"), dec("1.0850"), posdomain.ConventionUSDPer)
	eur.ClearDomainEvents()
	require.NoError(t, posRepo.Save(ctx, eur))

	return NewService(domain.NewBook(), positionSvc, slog.Default()), posRepo
}

func TestApplyQuoteRoutesPerUSDPair(t *testing.T) {
	svc, posRepo := newFixture(t)
	ctx := context.Background()

	err := svc.ApplyQuote(ctx, domain.Quote{
		Pair: "USD/JPY", Bid: dec("147.00"), Ask: dec("147.10"), Mid: dec("147.05"), Timestamp: time.Now(),
	})
	require.NoError(t, err)

	jpy, _ := posRepo.GetByCurrency(ctx, "JPY")
	assert.True(t, jpy.CurrentRate.Equal(dec("147.05")))
	assert.True(t, jpy.MTMValue.Equal(dec("150000000").Div(dec("147.05"))))

	// 行情簿同时更新
	q, ok := svc.Book().Get("USD/JPY")
	require.True(t, ok)
	assert.True(t, q.Mid.Equal(dec("147.05")))
}

func TestApplyQuoteRoutesUSDPerPair(t *testing.T) {
	svc, posRepo := newFixture(t)
	ctx := context.Background()

	err := svc.ApplyQuote(ctx, domain.Quote{
		Pair: "EUR/USD", Bid: dec("1.0890"), Ask: dec("1.0910"), Mid: dec("1.0900"), Timestamp: time.Now(),
	})
	require.NoError(t, err)

	eur, _ := posRepo.GetByCurrency(ctx, "EUR")
	assert.True(t, eur.CurrentRate.Equal(dec("1.0900")))
	assert.True(t, eur.MTMValue.Equal(dec("1090000")))
}

func TestApplyQuoteCrossPairUpdatesBookOnly(t *testing.T) {
	svc, posRepo := newFixture(t)
	ctx := context.Background()

	err := svc.ApplyQuote(ctx, domain.Quote{
		Pair: "EUR/GBP", Bid: dec("0.8520"), Ask: dec("0.8530"), Mid: dec("0.8525"), Timestamp: time.Now(),
	})
	require.NoError(t, err)

	eur, _ := posRepo.GetByCurrency(ctx, "EUR")
	assert.True(t, eur.CurrentRate.IsZero(), "cross pair must not touch positions")

	_, ok := svc.Book().Get("EUR/GBP")
	assert.True(t, ok)
}

func TestApplyQuoteRejectsInvalid(t *testing.T) {
	svc, _ := newFixture(t)

	err := svc.ApplyQuote(context.Background(), domain.Quote{
		Pair: "USD/JPY", Bid: dec("148.40"), Ask: dec("148.30"), Mid: dec("148.35"), Timestamp: time.Now(),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidQuote)
}
