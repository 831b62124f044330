package application

import (
	"context"
	"log/slog"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wyfcoding/fxtreasury/internal/approval/domain"
	"github.com/wyfcoding/fxtreasury/internal/approval/infrastructure"
	auditdomain "github.com/wyfcoding/fxtreasury/internal/auditing/domain"
	auditinfra "github.com/wyfcoding/fxtreasury/internal/auditing/infrastructure"
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
	svc       *Service
	positions *posinfra.MemoryPositionRepository
	ledger    *auditinfra.MemoryLedger
	posID     string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	posRepo := posinfra.NewMemoryPositionRepository()
	ledger := auditinfra.NewMemoryLedger()
	gen := &seqGen{}
	tm := posinfra.NoopTransactionManager{}
	logger := slog.Default()

	positionSvc := posapp.NewService(posRepo, tm, noopPublisher{}, ledger, gen, nil, logger)

	position := posdomain.NewPosition("POS-0001", "SGD", "LP-Sing", posdomain.ConventionPerUSD)
	position.ApplyContribution("TRD-1", "USD/SGD", dec("2500000"), dec("1.3450"), posdomain.ConventionPerUSD)
	position.ClearDomainEvents()
	require.NoError(t, posRepo.Save(ctx, position))

	svc := NewService(
		infrastructure.NewMemoryResetRequestRepository(),
		tm, positionSvc, noopPublisher{}, ledger, gen, logger,
	)
	return &fixture{svc: svc, positions: posRepo, ledger: ledger, posID: "POS-0001"}
}

func (f *fixture) submit(t *testing.T) *domain.ResetRequest {
	t.Helper()
	request, err := f.svc.SubmitResetRequest(context.Background(), SubmitResetRequestCommand{
		PositionID:    f.posID,
		TargetValue:   dec("2300000"),
		Reason:        "Reconciliation",
		Justification: "ops break",
		RequestedBy:   "trader.a",
	})
	require.NoError(t, err)
	return request
}

func TestSubmitCapturesCurrentValue(t *testing.T) {
	f := newFixture(t)

	request := f.submit(t)
	assert.Equal(t, domain.StatusPending, request.Status)
	assert.True(t, request.CurrentValue.Equal(dec("2500000")))
	assert.True(t, request.TargetValue.Equal(dec("2300000")))
}

func TestSubmitUnknownPositionFails(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.SubmitResetRequest(context.Background(), SubmitResetRequestCommand{
		PositionID:  "POS-9999",
		TargetValue: dec("1"),
		Reason:      "Reconciliation",
		RequestedBy: "trader.a",
	})
	assert.Error(t, err)
}

func TestFullApprovalAppliesTargetOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	request := f.submit(t)

	_, err := f.svc.ApproveReset(ctx, request.RequestID, 1, "manager.b", "checked")
	require.NoError(t, err)

	// 一级通过后头寸未动
	sgd, _ := f.positions.GetByCurrency(ctx, "SGD")
	assert.True(t, sgd.NetPosition.Equal(dec("2500000")))

	approved, err := f.svc.ApproveReset(ctx, request.RequestID, 2, "director.c", "ok")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, approved.Status)
	require.NotNil(t, approved.AppliedAt)

	sgd, _ = f.positions.GetByCurrency(ctx, "SGD")
	assert.True(t, sgd.NetPosition.Equal(dec("2300000")))
}

func TestApprovalFailuresLeaveAuditTrail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	request := f.submit(t)

	// 二级先于一级
	_, err := f.svc.ApproveReset(ctx, request.RequestID, 2, "director.c", "")
	assert.ErrorIs(t, err, domain.ErrOutOfOrderApproval)

	// 请求人自批
	_, err = f.svc.ApproveReset(ctx, request.RequestID, 1, "trader.a", "")
	assert.ErrorIs(t, err, domain.ErrDuplicateApprover)

	var failed int
	events, _, err := f.ledger.List(ctx, auditdomain.EventTypeApproval, 100, 0)
	require.NoError(t, err)
	for _, e := range events {
		if e.Status == auditdomain.StatusFailed {
			failed++
		}
	}
	assert.Equal(t, 2, failed, "every rejected attempt must be audited")

	// 状态未被触碰
	got, err := f.svc.GetByRequestID(ctx, request.RequestID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, got.Status)
}

func TestRejectIsTerminal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	request := f.submit(t)

	rejected, err := f.svc.RejectReset(ctx, request.RequestID, "manager.b", "stale numbers")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, rejected.Status)

	_, err = f.svc.ApproveReset(ctx, request.RequestID, 1, "manager.b", "")
	assert.ErrorIs(t, err, domain.ErrUnauthorizedTransition)

	// 头寸从未被触碰
	sgd, _ := f.positions.GetByCurrency(ctx, "SGD")
	assert.True(t, sgd.NetPosition.Equal(dec("2500000")))
}

func TestApproveUnknownRequest(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.ApproveReset(context.Background(), "RST-404", 1, "manager.b", "")
	assert.ErrorIs(t, err, ErrRequestNotFound)
}
