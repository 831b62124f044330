package infrastructure

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wyfcoding/fxtreasury/internal/auditing/domain"
)

func event(id string, kind domain.EventType, status domain.Status, at time.Time) domain.Event {
	return domain.Event{
		EventID:    id,
		OccurredAt: at,
		EventType:  kind,
		Actor:      "tester",
		Status:     status,
	}
}

func TestMemoryLedgerAppendsAndFilters(t *testing.T) {
	ledger := NewMemoryLedger()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, ledger.Record(ctx, event("AUD-1", domain.EventTypeTradeEntry, domain.StatusCompleted, now)))
	require.NoError(t, ledger.Record(ctx, event("AUD-2", domain.EventTypeApproval, domain.StatusFailed, now.Add(time.Second))))
	require.NoError(t, ledger.Record(ctx, event("AUD-3", domain.EventTypeTradeEntry, domain.StatusFailed, now.Add(2*time.Second))))

	all, total, err := ledger.List(ctx, "", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Equal(t, "AUD-1", all[0].EventID)
	assert.Equal(t, "AUD-3", all[2].EventID)

	trades, total, err := ledger.List(ctx, domain.EventTypeTradeEntry, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, trades, 2)
}

func TestMemoryLedgerPagination(t *testing.T) {
	ledger := NewMemoryLedger()
	ctx := context.Background()
	now := time.Now()

	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("AUD-%d", i)
		require.NoError(t, ledger.Record(ctx, event(id, domain.EventTypeRateUpdate, domain.StatusCompleted, now.Add(time.Duration(i)*time.Second))))
	}

	page, total, err := ledger.List(ctx, "", 2, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	require.Len(t, page, 2)
	assert.Equal(t, "AUD-2", page[0].EventID)
}

func TestFanoutRecorderWritesAll(t *testing.T) {
	a := NewMemoryLedger()
	b := NewMemoryLedger()
	fanout := NewFanoutRecorder(a, b, NewLogRecorder(slog.Default()))

	require.NoError(t, fanout.Record(context.Background(), event("AUD-1", domain.EventTypeConfigChange, domain.StatusCompleted, time.Now())))

	_, totalA, _ := a.List(context.Background(), "", 10, 0)
	_, totalB, _ := b.List(context.Background(), "", 10, 0)
	assert.Equal(t, int64(1), totalA)
	assert.Equal(t, int64(1), totalB)
}
