package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRequest() *ResetRequest {
	return NewResetRequest(
		"RST-1", "POS-0001",
		decimal.RequireFromString("2500000"),
		decimal.RequireFromString("2300000"),
		"Reconciliation", "Ops break on 2026-08-27", "trader.a",
	)
}

func TestApprovalHappyPath(t *testing.T) {
	r := newTestRequest()
	assert.Equal(t, StatusPending, r.Status)

	require.NoError(t, r.Approve(1, "manager.b", "checked"))
	assert.Equal(t, StatusFirstApproved, r.Status)

	require.NoError(t, r.Approve(2, "director.c", "ok"))
	assert.Equal(t, StatusApproved, r.Status)
	assert.Len(t, r.Approvals, 2)
}

func TestOutOfOrderApprovalRejectedWithoutStateChange(t *testing.T) {
	r := newTestRequest()

	err := r.Approve(2, "director.c", "")
	assert.ErrorIs(t, err, ErrOutOfOrderApproval)
	assert.Equal(t, StatusPending, r.Status)
	assert.Empty(t, r.Approvals)
}

func TestUnknownLevelRejected(t *testing.T) {
	r := newTestRequest()

	err := r.Approve(3, "manager.b", "")
	assert.ErrorIs(t, err, ErrOutOfOrderApproval)
}

func TestRequesterCannotSelfApprove(t *testing.T) {
	r := newTestRequest()

	err := r.Approve(1, "trader.a", "")
	assert.ErrorIs(t, err, ErrDuplicateApprover)
	assert.Equal(t, StatusPending, r.Status)
}

func TestSameApproverCannotApproveBothLevels(t *testing.T) {
	r := newTestRequest()

	require.NoError(t, r.Approve(1, "manager.b", ""))
	err := r.Approve(2, "manager.b", "")
	assert.ErrorIs(t, err, ErrDuplicateApprover)
	assert.Equal(t, StatusFirstApproved, r.Status)
	assert.Len(t, r.Approvals, 1)
}

func TestApproveTerminalRequestRejected(t *testing.T) {
	r := newTestRequest()
	require.NoError(t, r.Reject("manager.b", "stale numbers"))

	err := r.Approve(1, "director.c", "")
	assert.ErrorIs(t, err, ErrUnauthorizedTransition)
	assert.Equal(t, StatusRejected, r.Status)
}

func TestRejectRequiresComments(t *testing.T) {
	r := newTestRequest()

	err := r.Reject("manager.b", "")
	assert.ErrorIs(t, err, ErrCommentsRequired)
	assert.Equal(t, StatusPending, r.Status)
}

func TestRejectAtAnyNonTerminalState(t *testing.T) {
	r := newTestRequest()
	require.NoError(t, r.Approve(1, "manager.b", ""))

	require.NoError(t, r.Reject("director.c", "target looks wrong"))
	assert.Equal(t, StatusRejected, r.Status)
	assert.Equal(t, "director.c", r.RejectedBy)

	// 终态不可逆
	err := r.Reject("manager.b", "again")
	assert.ErrorIs(t, err, ErrUnauthorizedTransition)
}

func TestMarkAppliedIdempotent(t *testing.T) {
	r := newTestRequest()

	// 未通过不可应用
	assert.False(t, r.MarkApplied(time.Now()))

	require.NoError(t, r.Approve(1, "manager.b", ""))
	require.NoError(t, r.Approve(2, "director.c", ""))

	assert.True(t, r.MarkApplied(time.Now()))
	assert.False(t, r.MarkApplied(time.Now()), "second application must be a no-op")
	require.NotNil(t, r.AppliedAt)
}
