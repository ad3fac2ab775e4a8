package finalizer

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/diodesmelts/red-whale-render-sub002/internal/domain"
	"github.com/diodesmelts/red-whale-render-sub002/internal/repository/memory"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

const holdTTL = 30 * time.Minute

func newTestService(t *testing.T) (*Service, *memory.Ledger, *time.Time, *bytes.Buffer) {
	t.Helper()

	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	ledger := memory.NewLedger(memory.WithNowFunc(func() time.Time { return now }))

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	return New(ledger, nil, nil, logger), ledger, &now, &logs
}

func hold(t *testing.T, ledger *memory.Ledger, competitionID int64, numbers []int, holderID string) {
	t.Helper()

	_, err := ledger.Initialize(context.Background(), competitionID, 10)
	require.NoError(t, err)
	_, err = ledger.Claim(context.Background(), competitionID, numbers, holderID, holdTTL)
	require.NoError(t, err)
}

func TestPaymentConfirmed(t *testing.T) {
	ctx := context.Background()
	svc, ledger, _, _ := newTestService(t)
	hold(t, ledger, 1, []int{3, 4}, "alice")

	entryID := uuid.New()
	require.NoError(t, svc.PaymentConfirmed(ctx, 1, "alice", []int{3, 4}, entryID))

	tickets, err := ledger.ListTickets(ctx, 1, false, 10, 0)
	require.NoError(t, err)
	require.Equal(t, domain.TicketPurchased, tickets[2].Status)
	require.Equal(t, domain.TicketPurchased, tickets[3].Status)
	require.Equal(t, entryID, tickets[2].EntryID.UUID)
}

func TestPaymentConfirmedAfterLapse(t *testing.T) {
	ctx := context.Background()
	svc, ledger, now, logs := newTestService(t)
	hold(t, ledger, 1, []int{3}, "alice")

	// The hold lapsed and another shopper took the number before the
	// payment callback landed. Alice's money must not steal bob's ticket.
	*now = now.Add(holdTTL + time.Second)
	_, err := ledger.Claim(ctx, 1, []int{3}, "bob", holdTTL)
	require.NoError(t, err)

	err = svc.PaymentConfirmed(ctx, 1, "alice", []int{3}, uuid.New())
	require.ErrorIs(t, err, ErrPaidReservationLost)
	require.Contains(t, logs.String(), "paid reservation lost")

	contended, err := ledger.Contention(ctx, 1, "")
	require.NoError(t, err)
	require.Equal(t, []int{3}, contended)
}

func TestPaymentConfirmedValidation(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := newTestService(t)

	require.ErrorIs(t, svc.PaymentConfirmed(ctx, 1, "", []int{1}, uuid.New()), ErrInvalidRequest)
	require.ErrorIs(t, svc.PaymentConfirmed(ctx, 1, "alice", nil, uuid.New()), ErrInvalidRequest)
	require.ErrorIs(t, svc.PaymentConfirmed(ctx, 1, "alice", []int{1}, uuid.Nil), ErrInvalidRequest)

	require.ErrorIs(t, svc.PaymentConfirmed(ctx, 404, "alice", []int{1}, uuid.New()), ErrCompetitionNotFound)
}

func TestPaymentFailed(t *testing.T) {
	ctx := context.Background()
	svc, ledger, _, _ := newTestService(t)
	hold(t, ledger, 1, []int{3, 4}, "alice")

	require.NoError(t, svc.PaymentFailed(ctx, 1, "alice", []int{3, 4}))

	// The numbers are back in the pool immediately, not at the next sweep.
	ic, err := ledger.InventoryCounts(ctx, 1)
	require.NoError(t, err)
	require.Zero(t, ic.Reserved)
	require.Equal(t, int64(10), ic.Available)

	// Repeating the callback is harmless.
	require.NoError(t, svc.PaymentFailed(ctx, 1, "alice", []int{3, 4}))
}

func TestPaymentFailedSkipsForeignHolds(t *testing.T) {
	ctx := context.Background()
	svc, ledger, _, logs := newTestService(t)
	hold(t, ledger, 1, []int{3}, "alice")
	_, err := ledger.Claim(ctx, 1, []int{4}, "bob", holdTTL)
	require.NoError(t, err)

	require.NoError(t, svc.PaymentFailed(ctx, 1, "alice", []int{3, 4}))
	require.Contains(t, logs.String(), "another shopper")

	contended, err := ledger.Contention(ctx, 1, "")
	require.NoError(t, err)
	require.Equal(t, []int{4}, contended)
}
