package reservation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/diodesmelts/red-whale-render-sub002/internal/repository/memory"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, cfg Config) (*Service, *memory.Ledger, *time.Time) {
	t.Helper()

	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	ledger := memory.NewLedger(memory.WithNowFunc(func() time.Time { return now }))
	return New(ledger, nil, nil, nil, cfg), ledger, &now
}

func initPool(t *testing.T, ledger *memory.Ledger, competitionID int64, total int) {
	t.Helper()

	_, err := ledger.Initialize(context.Background(), competitionID, total)
	require.NoError(t, err)
}

func TestReserveExplicit(t *testing.T) {
	ctx := context.Background()
	svc, ledger, _ := newTestService(t, Config{HoldTTL: 30 * time.Minute})
	initPool(t, ledger, 1, 10)

	res, err := svc.Reserve(ctx, 1, "alice", []int{4, 7}, 2, 0, "")
	require.NoError(t, err)
	require.Equal(t, []int{4, 7}, res.Numbers)
	require.False(t, res.ReservedUntil.IsZero())

	// Bob loses the race on 7 and is told exactly which number.
	_, err = svc.Reserve(ctx, 1, "bob", []int{6, 7}, 2, 0, "")
	var unavail *UnavailableNumbersError
	require.ErrorAs(t, err, &unavail)
	require.Equal(t, []int{7}, unavail.Numbers)

	// His 6 was not taken hostage by the failed attempt.
	res, err = svc.Reserve(ctx, 1, "bob", []int{6}, 1, 0, "")
	require.NoError(t, err)
	require.Equal(t, []int{6}, res.Numbers)
}

func TestReserveValidation(t *testing.T) {
	ctx := context.Background()
	svc, ledger, _ := newTestService(t, Config{})
	initPool(t, ledger, 1, 10)

	tests := []struct {
		name     string
		holderID string
		numbers  []int
		quantity int
	}{
		{name: "empty holder", holderID: "", numbers: nil, quantity: 1},
		{name: "zero quantity", holderID: "alice", numbers: nil, quantity: 0},
		{name: "quantity mismatch", holderID: "alice", numbers: []int{1, 2}, quantity: 3},
		{name: "duplicate numbers", holderID: "alice", numbers: []int{5, 5}, quantity: 2},
		{name: "number out of range", holderID: "alice", numbers: []int{11}, quantity: 1},
		{name: "number below one", holderID: "alice", numbers: []int{0}, quantity: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Reserve(ctx, 1, tt.holderID, tt.numbers, tt.quantity, 0, "")
			require.ErrorIs(t, err, ErrInvalidRequest)
		})
	}
}

func TestReserveUnknownCompetition(t *testing.T) {
	svc, _, _ := newTestService(t, Config{})

	_, err := svc.Reserve(context.Background(), 404, "alice", nil, 1, 0, "")
	require.ErrorIs(t, err, ErrCompetitionNotFound)
}

func TestReserveAssignedLowestFirst(t *testing.T) {
	ctx := context.Background()
	svc, ledger, _ := newTestService(t, Config{})
	initPool(t, ledger, 1, 10)

	_, err := svc.Reserve(ctx, 1, "alice", []int{1, 3}, 2, 0, "")
	require.NoError(t, err)

	res, err := svc.Reserve(ctx, 1, "bob", nil, 3, 0, "")
	require.NoError(t, err)
	require.Equal(t, []int{2, 4, 5}, res.Numbers)
}

func TestReserveAssignedInsufficient(t *testing.T) {
	ctx := context.Background()
	svc, ledger, _ := newTestService(t, Config{})
	initPool(t, ledger, 1, 3)

	_, err := svc.Reserve(ctx, 1, "alice", nil, 2, 0, "")
	require.NoError(t, err)

	_, err = svc.Reserve(ctx, 1, "bob", nil, 2, 0, "")
	require.ErrorIs(t, err, ErrTemporarilyUnavailable)
}

func TestReserveHolderCap(t *testing.T) {
	ctx := context.Background()
	svc, ledger, now := newTestService(t, Config{MaxPerHolder: 3})
	initPool(t, ledger, 1, 10)

	_, err := svc.Reserve(ctx, 1, "alice", nil, 2, 0, "")
	require.NoError(t, err)

	// 2 held + 2 more would cross the deployment cap of 3.
	_, err = svc.Reserve(ctx, 1, "alice", nil, 2, 0, "")
	require.ErrorIs(t, err, ErrLimitExceeded)

	// A competition-specific cap overrides the deployment default.
	res, err := svc.Reserve(ctx, 1, "alice", nil, 2, 5, "")
	require.NoError(t, err)
	require.Len(t, res.Numbers, 2)

	// The cap is measured against ledger truth, so lapsed holds free it up.
	*now = now.Add(time.Hour)
	res, err = svc.Reserve(ctx, 1, "alice", nil, 3, 0, "")
	require.NoError(t, err)
	require.Len(t, res.Numbers, 3)
}

func TestReserveCapCountsPurchases(t *testing.T) {
	ctx := context.Background()
	svc, ledger, _ := newTestService(t, Config{})
	initPool(t, ledger, 1, 10)

	res, err := svc.Reserve(ctx, 1, "alice", nil, 2, 3, "")
	require.NoError(t, err)

	require.NoError(t, ledger.Commit(ctx, 1, res.Numbers, "alice", uuid.New()))

	_, err = svc.Reserve(ctx, 1, "alice", nil, 2, 3, "")
	require.ErrorIs(t, err, ErrLimitExceeded)
}

// TestReserveAssignedContention runs more shoppers than the live server would
// ever see racing on one pool and checks that assignment hands every ticket
// to exactly one of them.
func TestReserveAssignedContention(t *testing.T) {
	ctx := context.Background()

	ledger := memory.NewLedger()
	_, err := ledger.Initialize(ctx, 1, 5)
	require.NoError(t, err)

	// Each of the 5 shoppers can lose at most 4 races, so 10 attempts is
	// comfortably enough for all of them to land somewhere.
	svc := New(ledger, nil, nil, nil, Config{AssignAttempts: 10})

	holders := []string{"h1", "h2", "h3", "h4", "h5"}
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	got := make(map[int]string)

	for _, h := range holders {
		wg.Add(1)
		go func(holder string) {
			defer wg.Done()
			res, err := svc.Reserve(ctx, 1, holder, nil, 1, 0, "")
			if err != nil {
				t.Errorf("reserve %s: %v", holder, err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			got[res.Numbers[0]] = holder
		}(h)
	}
	wg.Wait()

	require.Len(t, got, 5)

	// The pool is drained; the next shopper is turned away, not hung.
	_, err = svc.Reserve(ctx, 1, "h6", nil, 1, 0, "")
	require.ErrorIs(t, err, ErrTemporarilyUnavailable)
}

func TestExtend(t *testing.T) {
	ctx := context.Background()
	svc, ledger, now := newTestService(t, Config{HoldTTL: 30 * time.Minute})
	initPool(t, ledger, 1, 5)

	res, err := svc.Reserve(ctx, 1, "alice", nil, 1, 0, "")
	require.NoError(t, err)

	*now = now.Add(25 * time.Minute)

	until, err := svc.Extend(ctx, 1, "alice")
	require.NoError(t, err)
	require.True(t, until.After(res.ReservedUntil))

	*now = now.Add(31 * time.Minute)
	_, err = svc.Extend(ctx, 1, "alice")
	require.ErrorIs(t, err, ErrReservationExpired)

	_, err = svc.Extend(ctx, 1, "")
	require.ErrorIs(t, err, ErrInvalidRequest)
}

func TestReleaseAll(t *testing.T) {
	ctx := context.Background()
	svc, ledger, _ := newTestService(t, Config{})
	initPool(t, ledger, 1, 10)

	_, err := svc.Reserve(ctx, 1, "alice", []int{2, 5}, 2, 0, "")
	require.NoError(t, err)

	released, err := svc.ReleaseAll(ctx, 1, "alice")
	require.NoError(t, err)
	require.Equal(t, []int{2, 5}, released)

	released, err = svc.ReleaseAll(ctx, 1, "alice")
	require.NoError(t, err)
	require.Empty(t, released)

	_, err = svc.ReleaseAll(ctx, 404, "alice")
	require.ErrorIs(t, err, ErrCompetitionNotFound)
}
