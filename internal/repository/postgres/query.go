package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/diodesmelts/red-whale-render-sub002/internal/domain"
	"github.com/diodesmelts/red-whale-render-sub002/internal/repository"
)

// Read paths apply the same lazy-expiry rule as Claim: a reserved row whose
// reserved_until has passed is reported as available even though the reaper
// has not physically flipped it yet.

// Snapshot partitions the competition's numbers by effective status.
//
// Returns:
//   - *domain.PoolSnapshot: numbers grouped as available/reserved/purchased.
//   - error: repository.ErrCompetitionNotFound if the pool was never
//     initialized.
func (r *LedgerRepo) Snapshot(ctx context.Context, competitionID int64) (*domain.PoolSnapshot, error) {
	const op = "postgres.LedgerRepo.Snapshot"

	db := r.handle()

	rows, err := db.Query(ctx,
		`SELECT ticket_number,
	            CASE WHEN status = 'reserved' AND reserved_until <= now()
	                 THEN 'available' ELSE status END
	     FROM tickets
	     WHERE competition_id = $1
	     ORDER BY ticket_number`,
		competitionID,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, translateDBErr(err))
	}
	defer rows.Close()

	snap := &domain.PoolSnapshot{}
	found := false

	for rows.Next() {
		var n int
		var status string
		if err := rows.Scan(&n, &status); err != nil {
			return nil, fmt.Errorf("%s: %w", op, translateDBErr(err))
		}

		found = true
		switch domain.TicketStatus(status) {
		case domain.TicketReserved:
			snap.Reserved = append(snap.Reserved, n)
		case domain.TicketPurchased:
			snap.Purchased = append(snap.Purchased, n)
		default:
			snap.Available = append(snap.Available, n)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if !found {
		return nil, fmt.Errorf("%s: %w", op, repository.ErrCompetitionNotFound)
	}

	return snap, nil
}

// Contention lists numbers actively held by holders other than
// excludeHolderID, in number order.
func (r *LedgerRepo) Contention(ctx context.Context, competitionID int64, excludeHolderID string) ([]int, error) {
	const op = "postgres.LedgerRepo.Contention"

	db := r.handle()

	if err := r.requirePool(ctx, db, competitionID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rows, err := db.Query(ctx,
		`SELECT ticket_number
	     FROM tickets
	     WHERE competition_id = $1
	       AND status = 'reserved'
	       AND reserved_until > now()
	       AND holder_id <> $2
	     ORDER BY ticket_number`,
		competitionID, excludeHolderID,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, translateDBErr(err))
	}
	defer rows.Close()

	var out []int
	for rows.Next() {
		var n int
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("%s: %w", op, translateDBErr(err))
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

// InventoryCounts tallies the pool by effective status.
func (r *LedgerRepo) InventoryCounts(ctx context.Context, competitionID int64) (*domain.InventoryCounts, error) {
	const op = "postgres.LedgerRepo.InventoryCounts"

	db := r.handle()

	var ic domain.InventoryCounts
	err := db.QueryRow(ctx,
		`SELECT
	        COALESCE(SUM(CASE WHEN status = 'available'
	                            OR (status = 'reserved' AND reserved_until <= now())
	                          THEN 1 ELSE 0 END), 0),
	        COALESCE(SUM(CASE WHEN status = 'reserved' AND reserved_until > now()
	                          THEN 1 ELSE 0 END), 0),
	        COALESCE(SUM(CASE WHEN status = 'purchased' THEN 1 ELSE 0 END), 0)
	     FROM tickets
	     WHERE competition_id = $1`,
		competitionID,
	).Scan(&ic.Available, &ic.Reserved, &ic.Purchased)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	ic.Total = ic.Available + ic.Reserved + ic.Purchased
	if ic.Total == 0 {
		return nil, fmt.Errorf("%s: %w", op, repository.ErrCompetitionNotFound)
	}

	return &ic, nil
}

// ListTickets pages through the pool in number order.
func (r *LedgerRepo) ListTickets(
	ctx context.Context,
	competitionID int64,
	onlyAvailable bool,
	limit, offset int,
) ([]domain.TicketRecord, error) {
	const op = "postgres.LedgerRepo.ListTickets"

	db := r.handle()

	if err := r.requirePool(ctx, db, competitionID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	query := `SELECT ticket_number, status, COALESCE(holder_id, ''), entry_id, reserved_until, updated_at
	          FROM tickets
	          WHERE competition_id = $1`
	if onlyAvailable {
		query += ` AND (status = 'available' OR (status = 'reserved' AND reserved_until <= now()))`
	}
	query += ` ORDER BY ticket_number LIMIT $2 OFFSET $3`

	rows, err := db.Query(ctx, query, competitionID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, translateDBErr(err))
	}
	defer rows.Close()

	now := time.Now()

	var out []domain.TicketRecord
	for rows.Next() {
		t := domain.TicketRecord{CompetitionID: competitionID}
		var status string

		if err := rows.Scan(&t.Number, &status, &t.HolderID, &t.EntryID, &t.ReservedUntil, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, translateDBErr(err))
		}

		t.Status = domain.TicketStatus(status)
		if t.Status == domain.TicketReserved && t.ReservedUntil != nil && !t.ReservedUntil.After(now) {
			t.Status = domain.TicketAvailable
			t.HolderID = ""
			t.ReservedUntil = nil
		}

		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

// HolderCount counts the holder's live holds plus purchases for the
// competition, the number the per-holder cap is checked against.
func (r *LedgerRepo) HolderCount(ctx context.Context, competitionID int64, holderID string) (int, error) {
	const op = "postgres.LedgerRepo.HolderCount"

	db := r.handle()

	var count int
	err := db.QueryRow(ctx,
		`SELECT count(*)
	     FROM tickets
	     WHERE competition_id = $1
	       AND holder_id = $2
	       AND (status = 'purchased'
	            OR (status = 'reserved' AND reserved_until > now()))`,
		competitionID, holderID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	return count, nil
}
