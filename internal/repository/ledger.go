package repository

import (
	"context"
	"time"

	"github.com/diodesmelts/red-whale-render-sub002/internal/domain"
	"github.com/google/uuid"
)

// Ledger is the single source of truth for ticket inventory. Every mutation
// is a conditional state transition on individual rows, so correctness holds
// across concurrently running server instances; none of the implementations
// rely on the caller for locking.
//
// Reserved rows whose reserved-until moment has passed are treated as
// available by every read and claim path (lazy expiry); SweepExpired only
// keeps the stored state tidy.
type Ledger interface {
	// Initialize idempotently ensures rows 1..totalTickets exist as
	// available and reports how many it created. ErrInvalidPoolSize when
	// totalTickets is not positive.
	Initialize(ctx context.Context, competitionID int64, totalTickets int) (int64, error)

	// Snapshot partitions the pool by effective status without mutating it.
	Snapshot(ctx context.Context, competitionID int64) (*domain.PoolSnapshot, error)

	// Claim atomically reserves all the numbers for holderID or none of
	// them, returning the hold deadline. On contention it returns
	// *UnavailableNumbersError naming the numbers that lost the race.
	Claim(ctx context.Context, competitionID int64, numbers []int, holderID string, ttl time.Duration) (time.Time, error)

	// Release returns the holder's reserved rows among numbers to the pool.
	// Rows already available or purchased are left alone; rows reserved by
	// somebody else are reported back in notOwned. Safe to repeat.
	Release(ctx context.Context, competitionID int64, numbers []int, holderID string) (notOwned []int, err error)

	// ReleaseAll releases every live hold of holderID in the competition
	// and reports the freed numbers.
	ReleaseAll(ctx context.Context, competitionID int64, holderID string) ([]int, error)

	// Commit turns the holder's still-valid holds on numbers into permanent
	// purchases stamped with entryID. ErrReservationExpired when any of the
	// rows lapsed or was released first; nothing is re-reserved.
	Commit(ctx context.Context, competitionID int64, numbers []int, holderID string, entryID uuid.UUID) error

	// Extend re-issues ttl for the holder's live hold. ErrReservationExpired
	// when the hold already lapsed.
	Extend(ctx context.Context, competitionID int64, holderID string, ttl time.Duration) (time.Time, error)

	// Contention lists numbers actively reserved by holders other than
	// excludeHolderID. Advisory: it can be stale the moment it returns.
	Contention(ctx context.Context, competitionID int64, excludeHolderID string) ([]int, error)

	// InventoryCounts tallies the pool by effective status.
	InventoryCounts(ctx context.Context, competitionID int64) (*domain.InventoryCounts, error)

	// ListTickets pages through the pool in number order.
	ListTickets(ctx context.Context, competitionID int64, onlyAvailable bool, limit, offset int) ([]domain.TicketRecord, error)

	// HolderCount counts the holder's live holds plus purchases, the number
	// the per-holder cap is checked against.
	HolderCount(ctx context.Context, competitionID int64, holderID string) (int, error)

	// SweepExpired flips every lapsed hold back to available across all
	// competitions and reports the competitions it touched.
	SweepExpired(ctx context.Context) (int64, []int64, error)
}
