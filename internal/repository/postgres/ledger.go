package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/diodesmelts/red-whale-render-sub002/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// LedgerRepo persists the ticket pool in the tickets table. Every state
// transition is a single conditional UPDATE, so a row can only move
// available -> reserved -> purchased/available when the WHERE clause still
// observes the expected prior state; concurrent writers lose the race at the
// row level instead of overselling.
type LedgerRepo struct {
	store *Store
	pool  *pgxpool.Pool
	db    DB
}

func (r *LedgerRepo) With(db DB) *LedgerRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *LedgerRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// runTx executes fn in the ambient handle when the repo is already bound to
// a transaction, otherwise in a fresh one.
func (r *LedgerRepo) runTx(ctx context.Context, fn func(ctx context.Context, db DB) error) error {
	if r.db != nil {
		return fn(ctx, r.db)
	}
	return r.store.RunTx(ctx, nil, fn)
}

// Initialize ensures rows 1..totalTickets exist for the competition. Existing
// rows are left untouched, so re-running it after a partial failure or a pool
// resize is safe.
//
// Returns:
//   - int64: the number of rows created by this call.
//   - error: repository.ErrInvalidPoolSize if totalTickets is not positive.
func (r *LedgerRepo) Initialize(ctx context.Context, competitionID int64, totalTickets int) (int64, error) {
	const op = "postgres.LedgerRepo.Initialize"

	if totalTickets <= 0 {
		return 0, fmt.Errorf("%s: %w", op, repository.ErrInvalidPoolSize)
	}

	tag, err := r.handle().Exec(ctx,
		`INSERT INTO tickets(competition_id, ticket_number, status)
	     SELECT $1, n, 'available'
	     FROM generate_series(1, $2::int) AS n
	     ON CONFLICT (competition_id, ticket_number) DO NOTHING`,
		competitionID, totalTickets,
	)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	return tag.RowsAffected(), nil
}

// Claim reserves all of numbers for holderID in one atomic step.
//
// Parameters:
//   - ctx: request-scoped context for cancellation and timeouts.
//   - competitionID: competition whose pool is claimed against.
//   - numbers: ticket numbers to reserve, all-or-nothing.
//   - holderID: shopper (cart session) acquiring the hold.
//   - ttl: hold duration.
//
// Returns:
//   - time.Time: the moment the hold lapses.
//   - error: *repository.UnavailableNumbersError naming the contested
//     numbers when any row lost the race.
//   - error: repository.ErrCompetitionNotFound if the pool was never
//     initialized.
func (r *LedgerRepo) Claim(
	ctx context.Context,
	competitionID int64,
	numbers []int,
	holderID string,
	ttl time.Duration,
) (time.Time, error) {
	const op = "postgres.LedgerRepo.Claim"

	expires := time.Now().Add(ttl)

	err := r.runTx(ctx, func(ctx context.Context, db DB) error {
		if err := r.requirePool(ctx, db, competitionID); err != nil {
			return err
		}

		// Expired holds count as available: the row flips to the new holder
		// in the same conditional update that checks the old hold lapsed.
		rows, err := db.Query(ctx,
			`UPDATE tickets
	            SET status = 'reserved', holder_id = $3, reserved_until = $4, updated_at = now()
	         WHERE competition_id = $1
	           AND ticket_number = ANY($2)
	           AND (status = 'available'
	                OR (status = 'reserved' AND reserved_until <= now()))
	         RETURNING ticket_number`,
			competitionID, numbers, holderID, expires,
		)
		if err != nil {
			return translateDBErr(err)
		}

		won := make(map[int]bool, len(numbers))
		for rows.Next() {
			var n int
			if err := rows.Scan(&n); err != nil {
				rows.Close()
				return translateDBErr(err)
			}
			won[n] = true
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return translateDBErr(err)
		}

		if len(won) != len(numbers) {
			var unavailable []int
			for _, n := range numbers {
				if !won[n] {
					unavailable = append(unavailable, n)
				}
			}
			// The transaction rollback reverts the rows this call did flip.
			return &repository.UnavailableNumbersError{Numbers: unavailable}
		}

		return nil
	})
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: %w", op, err)
	}

	return expires, nil
}

// Release returns the holder's reserved rows among numbers to the pool.
// Rows already available or purchased are untouched, so repeating the call
// is harmless; rows live-reserved by a different holder are reported back.
func (r *LedgerRepo) Release(
	ctx context.Context,
	competitionID int64,
	numbers []int,
	holderID string,
) ([]int, error) {
	const op = "postgres.LedgerRepo.Release"

	var notOwned []int

	err := r.runTx(ctx, func(ctx context.Context, db DB) error {
		if err := r.requirePool(ctx, db, competitionID); err != nil {
			return err
		}

		if _, err := db.Exec(ctx,
			`UPDATE tickets
	            SET status = 'available', holder_id = NULL, reserved_until = NULL, updated_at = now()
	         WHERE competition_id = $1
	           AND ticket_number = ANY($2)
	           AND status = 'reserved'
	           AND holder_id = $3`,
			competitionID, numbers, holderID,
		); err != nil {
			return translateDBErr(err)
		}

		rows, err := db.Query(ctx,
			`SELECT ticket_number
	         FROM tickets
	         WHERE competition_id = $1
	           AND ticket_number = ANY($2)
	           AND status = 'reserved'
	           AND holder_id <> $3
	           AND reserved_until > now()
	         ORDER BY ticket_number`,
			competitionID, numbers, holderID,
		)
		if err != nil {
			return translateDBErr(err)
		}
		defer rows.Close()

		for rows.Next() {
			var n int
			if err := rows.Scan(&n); err != nil {
				return translateDBErr(err)
			}
			notOwned = append(notOwned, n)
		}

		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return notOwned, nil
}

// ReleaseAll drops every live hold of holderID in the competition and
// reports the freed numbers.
func (r *LedgerRepo) ReleaseAll(ctx context.Context, competitionID int64, holderID string) ([]int, error) {
	const op = "postgres.LedgerRepo.ReleaseAll"

	var released []int

	err := r.runTx(ctx, func(ctx context.Context, db DB) error {
		if err := r.requirePool(ctx, db, competitionID); err != nil {
			return err
		}

		rows, err := db.Query(ctx,
			`UPDATE tickets
	            SET status = 'available', holder_id = NULL, reserved_until = NULL, updated_at = now()
	         WHERE competition_id = $1
	           AND holder_id = $2
	           AND status = 'reserved'
	         RETURNING ticket_number`,
			competitionID, holderID,
		)
		if err != nil {
			return translateDBErr(err)
		}
		defer rows.Close()

		for rows.Next() {
			var n int
			if err := rows.Scan(&n); err != nil {
				return translateDBErr(err)
			}
			released = append(released, n)
		}

		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return released, nil
}

// Commit finalizes the holder's still-valid holds on numbers as purchases.
//
// Returns:
//   - error: repository.ErrReservationExpired when any of the rows is no
//     longer a live hold of holderID. Nothing is re-reserved on that path;
//     the transaction rolls back and the caller decides what to do.
func (r *LedgerRepo) Commit(
	ctx context.Context,
	competitionID int64,
	numbers []int,
	holderID string,
	entryID uuid.UUID,
) error {
	const op = "postgres.LedgerRepo.Commit"

	err := r.runTx(ctx, func(ctx context.Context, db DB) error {
		if err := r.requirePool(ctx, db, competitionID); err != nil {
			return err
		}

		tag, err := db.Exec(ctx,
			`UPDATE tickets
	            SET status = 'purchased', entry_id = $4, reserved_until = NULL, updated_at = now()
	         WHERE competition_id = $1
	           AND ticket_number = ANY($2)
	           AND status = 'reserved'
	           AND holder_id = $3
	           AND reserved_until > now()`,
			competitionID, numbers, holderID, entryID,
		)
		if err != nil {
			return translateDBErr(err)
		}

		if int(tag.RowsAffected()) != len(numbers) {
			return repository.ErrReservationExpired
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Extend re-issues ttl for the holder's live hold.
func (r *LedgerRepo) Extend(
	ctx context.Context,
	competitionID int64,
	holderID string,
	ttl time.Duration,
) (time.Time, error) {
	const op = "postgres.LedgerRepo.Extend"

	expires := time.Now().Add(ttl)

	err := r.runTx(ctx, func(ctx context.Context, db DB) error {
		if err := r.requirePool(ctx, db, competitionID); err != nil {
			return err
		}

		tag, err := db.Exec(ctx,
			`UPDATE tickets
	            SET reserved_until = $3, updated_at = now()
	         WHERE competition_id = $1
	           AND holder_id = $2
	           AND status = 'reserved'
	           AND reserved_until > now()`,
			competitionID, holderID, expires,
		)
		if err != nil {
			return translateDBErr(err)
		}

		if tag.RowsAffected() == 0 {
			return repository.ErrReservationExpired
		}

		return nil
	})
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: %w", op, err)
	}

	return expires, nil
}

// SweepExpired flips every lapsed hold back to available, across all
// competitions, in one conditional statement. The same guard as Release
// applies, so a row a concurrent Commit just purchased is never clobbered.
// The bulk update can deadlock against a claim touching the same rows; the
// loser is retried once before the error is handed to the reaper.
func (r *LedgerRepo) SweepExpired(ctx context.Context) (int64, []int64, error) {
	const op = "postgres.LedgerRepo.SweepExpired"

	released, competitionIDs, err := r.sweepExpired(ctx)
	if err != nil && IsRetryable(err) {
		released, competitionIDs, err = r.sweepExpired(ctx)
	}
	if err != nil {
		return 0, nil, fmt.Errorf("%s: %w", op, err)
	}

	return released, competitionIDs, nil
}

func (r *LedgerRepo) sweepExpired(ctx context.Context) (int64, []int64, error) {
	rows, err := r.handle().Query(ctx,
		`UPDATE tickets
	        SET status = 'available', holder_id = NULL, reserved_until = NULL, updated_at = now()
	     WHERE status = 'reserved'
	       AND reserved_until <= now()
	     RETURNING competition_id`,
	)
	if err != nil {
		return 0, nil, translateDBErr(err)
	}
	defer rows.Close()

	var released int64
	seen := make(map[int64]bool)
	var competitionIDs []int64

	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return 0, nil, translateDBErr(err)
		}
		released++
		if !seen[id] {
			seen[id] = true
			competitionIDs = append(competitionIDs, id)
		}
	}
	if err := rows.Err(); err != nil {
		return 0, nil, err
	}

	return released, competitionIDs, nil
}

func (r *LedgerRepo) requirePool(ctx context.Context, db DB, competitionID int64) error {
	var exists bool
	err := db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM tickets WHERE competition_id = $1)`,
		competitionID,
	).Scan(&exists)
	if err != nil {
		return translateDBErr(err)
	}

	if !exists {
		return repository.ErrCompetitionNotFound
	}

	return nil
}

var _ repository.Ledger = (*LedgerRepo)(nil)
