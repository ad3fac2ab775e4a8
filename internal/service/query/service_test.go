package query

import (
	"context"
	"testing"
	"time"

	"github.com/diodesmelts/red-whale-render-sub002/internal/repository/memory"
	"github.com/stretchr/testify/require"
)

const holdTTL = 30 * time.Minute

func newTestService(t *testing.T) (*Service, *memory.Ledger, *time.Time) {
	t.Helper()

	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	ledger := memory.NewLedger(memory.WithNowFunc(func() time.Time { return now }))
	return New(ledger, nil, Config{}), ledger, &now
}

func TestInventory(t *testing.T) {
	ctx := context.Background()
	svc, ledger, now := newTestService(t)

	_, err := ledger.Initialize(ctx, 1, 10)
	require.NoError(t, err)
	_, err = ledger.Claim(ctx, 1, []int{1, 2, 3}, "alice", holdTTL)
	require.NoError(t, err)

	ic, err := svc.Inventory(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, int64(7), ic.Available)
	require.Equal(t, int64(3), ic.Reserved)
	require.Equal(t, int64(10), ic.Total)

	// Counts respect lazy expiry without a sweep.
	*now = now.Add(holdTTL + time.Second)
	ic, err = svc.Inventory(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, int64(10), ic.Available)
	require.Zero(t, ic.Reserved)
}

// An uninitialized competition yields zero counts rather than a 404: the
// storefront keeps rendering even when the catalog references a competition
// whose pool is not set up yet.
func TestInventoryUnknownCompetition(t *testing.T) {
	svc, _, _ := newTestService(t)

	ic, err := svc.Inventory(context.Background(), 404)
	require.NoError(t, err)
	require.Zero(t, ic.Total)
	require.Zero(t, ic.Available)
}

func TestContention(t *testing.T) {
	ctx := context.Background()
	svc, ledger, _ := newTestService(t)

	_, err := ledger.Initialize(ctx, 1, 10)
	require.NoError(t, err)
	_, err = ledger.Claim(ctx, 1, []int{2, 5}, "alice", holdTTL)
	require.NoError(t, err)
	_, err = ledger.Claim(ctx, 1, []int{7}, "bob", holdTTL)
	require.NoError(t, err)

	numbers, err := svc.Contention(ctx, 1, "alice")
	require.NoError(t, err)
	require.Equal(t, []int{7}, numbers)

	numbers, err = svc.Contention(ctx, 1, "")
	require.NoError(t, err)
	require.Equal(t, []int{2, 5, 7}, numbers)
}

func TestContentionUnknownCompetition(t *testing.T) {
	svc, _, _ := newTestService(t)

	numbers, err := svc.Contention(context.Background(), 404, "alice")
	require.NoError(t, err)
	require.NotNil(t, numbers)
	require.Empty(t, numbers)
}

func TestContentionNeverNil(t *testing.T) {
	ctx := context.Background()
	svc, ledger, _ := newTestService(t)

	_, err := ledger.Initialize(ctx, 1, 10)
	require.NoError(t, err)

	numbers, err := svc.Contention(ctx, 1, "alice")
	require.NoError(t, err)
	require.NotNil(t, numbers)
	require.Empty(t, numbers)
}

func TestListTicketsPaging(t *testing.T) {
	ctx := context.Background()
	svc, ledger, _ := newTestService(t)

	_, err := ledger.Initialize(ctx, 1, 1000)
	require.NoError(t, err)

	// Zero limit falls back to the default page.
	tickets, err := svc.ListTickets(ctx, 1, false, 0, 0)
	require.NoError(t, err)
	require.Len(t, tickets, 100)
	require.Equal(t, 1, tickets[0].Number)

	// Oversized requests are clamped, negative offsets normalized.
	tickets, err = svc.ListTickets(ctx, 1, false, 10_000, -3)
	require.NoError(t, err)
	require.Len(t, tickets, 500)

	tickets, err = svc.ListTickets(ctx, 1, false, 10, 990)
	require.NoError(t, err)
	require.Len(t, tickets, 10)
	require.Equal(t, 991, tickets[0].Number)
}

func TestListTicketsUnknownCompetition(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.ListTickets(context.Background(), 404, false, 10, 0)
	require.ErrorIs(t, err, ErrCompetitionNotFound)
}
