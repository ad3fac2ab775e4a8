// Package memory provides an in-process Ledger used for local development
// (STORAGE_DRIVER=memory) and for the test suite. It honors the same
// contract as the Postgres implementation: conditional per-row transitions,
// all-or-nothing claims, and lazy expiry on every read path.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/diodesmelts/red-whale-render-sub002/internal/domain"
	"github.com/diodesmelts/red-whale-render-sub002/internal/repository"
	"github.com/google/uuid"
)

type row struct {
	status        domain.TicketStatus
	holderID      string
	entryID       uuid.NullUUID
	reservedUntil time.Time
	updatedAt     time.Time
}

type pool struct {
	// rows[1..total]; index 0 unused so ticket numbers index directly.
	rows []row
}

type Ledger struct {
	mu    sync.Mutex
	pools map[int64]*pool
	now   func() time.Time
}

type Option func(*Ledger)

// WithNowFunc overrides the clock, which the tests use to lapse holds
// without sleeping.
func WithNowFunc(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

func NewLedger(opts ...Option) *Ledger {
	l := &Ledger{
		pools: make(map[int64]*pool),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// expired is the lazy-expiry rule shared by every path below. Callers hold
// the mutex.
func (l *Ledger) expired(r *row) bool {
	return r.status == domain.TicketReserved && !r.reservedUntil.After(l.now())
}

func (l *Ledger) Initialize(_ context.Context, competitionID int64, totalTickets int) (int64, error) {
	const op = "memory.Ledger.Initialize"

	if totalTickets <= 0 {
		return 0, fmt.Errorf("%s: %w", op, repository.ErrInvalidPoolSize)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	p := l.pools[competitionID]
	if p == nil {
		p = &pool{rows: make([]row, 1)}
		l.pools[competitionID] = p
	}

	var created int64
	now := l.now()
	for len(p.rows) <= totalTickets {
		p.rows = append(p.rows, row{status: domain.TicketAvailable, updatedAt: now})
		created++
	}

	return created, nil
}

func (l *Ledger) Claim(
	_ context.Context,
	competitionID int64,
	numbers []int,
	holderID string,
	ttl time.Duration,
) (time.Time, error) {
	const op = "memory.Ledger.Claim"

	l.mu.Lock()
	defer l.mu.Unlock()

	p := l.pools[competitionID]
	if p == nil {
		return time.Time{}, fmt.Errorf("%s: %w", op, repository.ErrCompetitionNotFound)
	}

	// Check first, flip second, all under the one lock: no reader or
	// competing claimer can ever observe a partially claimed batch.
	var unavailable []int
	for _, n := range numbers {
		if n < 1 || n >= len(p.rows) {
			unavailable = append(unavailable, n)
			continue
		}
		r := &p.rows[n]
		if r.status == domain.TicketAvailable || l.expired(r) {
			continue
		}
		unavailable = append(unavailable, n)
	}
	if len(unavailable) > 0 {
		return time.Time{}, fmt.Errorf("%s: %w", op, &repository.UnavailableNumbersError{Numbers: unavailable})
	}

	now := l.now()
	expires := now.Add(ttl)
	for _, n := range numbers {
		p.rows[n] = row{
			status:        domain.TicketReserved,
			holderID:      holderID,
			reservedUntil: expires,
			updatedAt:     now,
		}
	}

	return expires, nil
}

func (l *Ledger) Release(_ context.Context, competitionID int64, numbers []int, holderID string) ([]int, error) {
	const op = "memory.Ledger.Release"

	l.mu.Lock()
	defer l.mu.Unlock()

	p := l.pools[competitionID]
	if p == nil {
		return nil, fmt.Errorf("%s: %w", op, repository.ErrCompetitionNotFound)
	}

	now := l.now()
	var notOwned []int
	for _, n := range numbers {
		if n < 1 || n >= len(p.rows) {
			continue
		}
		r := &p.rows[n]
		if r.status != domain.TicketReserved {
			continue
		}
		if r.holderID == holderID {
			*r = row{status: domain.TicketAvailable, updatedAt: now}
		} else if !l.expired(r) {
			notOwned = append(notOwned, n)
		}
	}

	sort.Ints(notOwned)
	return notOwned, nil
}

func (l *Ledger) ReleaseAll(_ context.Context, competitionID int64, holderID string) ([]int, error) {
	const op = "memory.Ledger.ReleaseAll"

	l.mu.Lock()
	defer l.mu.Unlock()

	p := l.pools[competitionID]
	if p == nil {
		return nil, fmt.Errorf("%s: %w", op, repository.ErrCompetitionNotFound)
	}

	now := l.now()
	var released []int
	for n := 1; n < len(p.rows); n++ {
		r := &p.rows[n]
		if r.status == domain.TicketReserved && r.holderID == holderID {
			*r = row{status: domain.TicketAvailable, updatedAt: now}
			released = append(released, n)
		}
	}

	return released, nil
}

func (l *Ledger) Commit(
	_ context.Context,
	competitionID int64,
	numbers []int,
	holderID string,
	entryID uuid.UUID,
) error {
	const op = "memory.Ledger.Commit"

	l.mu.Lock()
	defer l.mu.Unlock()

	p := l.pools[competitionID]
	if p == nil {
		return fmt.Errorf("%s: %w", op, repository.ErrCompetitionNotFound)
	}

	for _, n := range numbers {
		if n < 1 || n >= len(p.rows) {
			return fmt.Errorf("%s: %w", op, repository.ErrReservationExpired)
		}
		r := &p.rows[n]
		if r.status != domain.TicketReserved || r.holderID != holderID || l.expired(r) {
			return fmt.Errorf("%s: %w", op, repository.ErrReservationExpired)
		}
	}

	now := l.now()
	for _, n := range numbers {
		r := &p.rows[n]
		r.status = domain.TicketPurchased
		r.entryID = uuid.NullUUID{UUID: entryID, Valid: true}
		r.reservedUntil = time.Time{}
		r.updatedAt = now
	}

	return nil
}

func (l *Ledger) Extend(_ context.Context, competitionID int64, holderID string, ttl time.Duration) (time.Time, error) {
	const op = "memory.Ledger.Extend"

	l.mu.Lock()
	defer l.mu.Unlock()

	p := l.pools[competitionID]
	if p == nil {
		return time.Time{}, fmt.Errorf("%s: %w", op, repository.ErrCompetitionNotFound)
	}

	now := l.now()
	expires := now.Add(ttl)
	extended := false
	for n := 1; n < len(p.rows); n++ {
		r := &p.rows[n]
		if r.status == domain.TicketReserved && r.holderID == holderID && !l.expired(r) {
			r.reservedUntil = expires
			r.updatedAt = now
			extended = true
		}
	}

	if !extended {
		return time.Time{}, fmt.Errorf("%s: %w", op, repository.ErrReservationExpired)
	}

	return expires, nil
}

func (l *Ledger) Snapshot(_ context.Context, competitionID int64) (*domain.PoolSnapshot, error) {
	const op = "memory.Ledger.Snapshot"

	l.mu.Lock()
	defer l.mu.Unlock()

	p := l.pools[competitionID]
	if p == nil {
		return nil, fmt.Errorf("%s: %w", op, repository.ErrCompetitionNotFound)
	}

	snap := &domain.PoolSnapshot{}
	for n := 1; n < len(p.rows); n++ {
		r := &p.rows[n]
		switch {
		case r.status == domain.TicketPurchased:
			snap.Purchased = append(snap.Purchased, n)
		case r.status == domain.TicketReserved && !l.expired(r):
			snap.Reserved = append(snap.Reserved, n)
		default:
			snap.Available = append(snap.Available, n)
		}
	}

	return snap, nil
}

func (l *Ledger) Contention(_ context.Context, competitionID int64, excludeHolderID string) ([]int, error) {
	const op = "memory.Ledger.Contention"

	l.mu.Lock()
	defer l.mu.Unlock()

	p := l.pools[competitionID]
	if p == nil {
		return nil, fmt.Errorf("%s: %w", op, repository.ErrCompetitionNotFound)
	}

	var out []int
	for n := 1; n < len(p.rows); n++ {
		r := &p.rows[n]
		if r.status == domain.TicketReserved && !l.expired(r) && r.holderID != excludeHolderID {
			out = append(out, n)
		}
	}

	return out, nil
}

func (l *Ledger) InventoryCounts(_ context.Context, competitionID int64) (*domain.InventoryCounts, error) {
	const op = "memory.Ledger.InventoryCounts"

	l.mu.Lock()
	defer l.mu.Unlock()

	p := l.pools[competitionID]
	if p == nil {
		return nil, fmt.Errorf("%s: %w", op, repository.ErrCompetitionNotFound)
	}

	ic := &domain.InventoryCounts{}
	for n := 1; n < len(p.rows); n++ {
		r := &p.rows[n]
		switch {
		case r.status == domain.TicketPurchased:
			ic.Purchased++
		case r.status == domain.TicketReserved && !l.expired(r):
			ic.Reserved++
		default:
			ic.Available++
		}
	}

	ic.Total = ic.Available + ic.Reserved + ic.Purchased
	return ic, nil
}

func (l *Ledger) ListTickets(
	_ context.Context,
	competitionID int64,
	onlyAvailable bool,
	limit, offset int,
) ([]domain.TicketRecord, error) {
	const op = "memory.Ledger.ListTickets"

	l.mu.Lock()
	defer l.mu.Unlock()

	p := l.pools[competitionID]
	if p == nil {
		return nil, fmt.Errorf("%s: %w", op, repository.ErrCompetitionNotFound)
	}

	var out []domain.TicketRecord
	skipped := 0
	for n := 1; n < len(p.rows) && len(out) < limit; n++ {
		r := &p.rows[n]

		t := domain.TicketRecord{
			CompetitionID: competitionID,
			Number:        n,
			Status:        r.status,
			HolderID:      r.holderID,
			EntryID:       r.entryID,
			UpdatedAt:     r.updatedAt,
		}
		if r.status == domain.TicketReserved {
			if l.expired(r) {
				t.Status = domain.TicketAvailable
				t.HolderID = ""
			} else {
				until := r.reservedUntil
				t.ReservedUntil = &until
			}
		}

		if onlyAvailable && t.Status != domain.TicketAvailable {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		out = append(out, t)
	}

	return out, nil
}

func (l *Ledger) HolderCount(_ context.Context, competitionID int64, holderID string) (int, error) {
	const op = "memory.Ledger.HolderCount"

	l.mu.Lock()
	defer l.mu.Unlock()

	p := l.pools[competitionID]
	if p == nil {
		return 0, fmt.Errorf("%s: %w", op, repository.ErrCompetitionNotFound)
	}

	count := 0
	for n := 1; n < len(p.rows); n++ {
		r := &p.rows[n]
		if r.holderID != holderID {
			continue
		}
		if r.status == domain.TicketPurchased || (r.status == domain.TicketReserved && !l.expired(r)) {
			count++
		}
	}

	return count, nil
}

func (l *Ledger) SweepExpired(_ context.Context) (int64, []int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	var released int64
	var competitionIDs []int64
	for id, p := range l.pools {
		touched := false
		for n := 1; n < len(p.rows); n++ {
			r := &p.rows[n]
			if l.expired(r) {
				*r = row{status: domain.TicketAvailable, updatedAt: now}
				released++
				touched = true
			}
		}
		if touched {
			competitionIDs = append(competitionIDs, id)
		}
	}

	return released, competitionIDs, nil
}

var _ repository.Ledger = (*Ledger)(nil)
