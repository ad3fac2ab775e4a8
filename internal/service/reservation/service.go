package reservation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/diodesmelts/red-whale-render-sub002/internal/domain"
	"github.com/diodesmelts/red-whale-render-sub002/internal/repository"
	redisrepo "github.com/diodesmelts/red-whale-render-sub002/internal/repository/redis"
)

type Config struct {
	// HoldTTL is fixed per deployment; shoppers cannot choose it.
	HoldTTL time.Duration
	// MaxPerHolder is the cap applied when the caller does not supply a
	// competition-specific one. Zero means uncapped.
	MaxPerHolder int
	// AssignAttempts bounds the auto-assignment retry loop.
	AssignAttempts int
}

type Service struct {
	ledger  repository.Ledger
	cache   *redisrepo.Cache
	pubsub  *redisrepo.CompetitionsPubSub
	limiter *redisrepo.SlidingWindowLimiter
	cfg     Config
}

func New(
	ledger repository.Ledger,
	cache *redisrepo.Cache,
	pubsub *redisrepo.CompetitionsPubSub,
	limiter *redisrepo.SlidingWindowLimiter,
	cfg Config,
) *Service {
	if cfg.HoldTTL <= 0 {
		cfg.HoldTTL = 30 * time.Minute
	}

	if cfg.AssignAttempts <= 0 {
		cfg.AssignAttempts = 4
	}

	return &Service{
		ledger:  ledger,
		cache:   cache,
		pubsub:  pubsub,
		limiter: limiter,
		cfg:     cfg,
	}
}

// Reserve places a time-boxed hold on quantity tickets for holderID.
//
// When numbers are supplied they are claimed exactly as requested,
// all-or-nothing. When omitted, assignment picks the lowest available
// numbers first; on a lost race it retries with the contested numbers
// excluded, a bounded number of times, before giving up with
// ErrTemporarilyUnavailable.
//
// Parameters:
//   - ctx: request-scoped context.
//   - competitionID: competition to reserve in.
//   - holderID: shopper (cart session) on whose behalf to hold.
//   - numbers: explicit ticket numbers, or nil to auto-assign.
//   - quantity: how many tickets to hold.
//   - maxPerHolder: the competition's per-user cap; 0 falls back to the
//     deployment default.
//   - rlKey: rate-limit key (client IP); empty disables the check.
//
// Returns:
//   - *domain.Reservation: the held numbers and their deadline.
//   - error: *reservation.UnavailableNumbersError when explicit numbers
//     lost the race; the usual taxonomy otherwise.
func (s *Service) Reserve(
	ctx context.Context,
	competitionID int64,
	holderID string,
	numbers []int,
	quantity int,
	maxPerHolder int,
	rlKey string,
) (*domain.Reservation, error) {
	const op = "service.reservation.Reserve"

	if holderID == "" || quantity <= 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidRequest)
	}

	if s.limiter != nil && rlKey != "" {
		ok, _, retry, err := s.limiter.Allow(ctx, rlKey)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if !ok {
			return nil, fmt.Errorf("%s: %w", op, &RateLimitedError{RetryAfter: retry})
		}
	}

	counts, err := s.ledger.InventoryCounts(ctx, competitionID)
	if err != nil {
		if errors.Is(err, repository.ErrCompetitionNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrCompetitionNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.checkHolderCap(ctx, competitionID, holderID, quantity, maxPerHolder); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if len(numbers) > 0 {
		res, err := s.reserveExplicit(ctx, competitionID, holderID, numbers, quantity, int(counts.Total))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return res, nil
	}

	res, err := s.reserveAssigned(ctx, competitionID, holderID, quantity)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return res, nil
}

func (s *Service) reserveExplicit(
	ctx context.Context,
	competitionID int64,
	holderID string,
	numbers []int,
	quantity int,
	totalTickets int,
) (*domain.Reservation, error) {
	if len(numbers) != quantity {
		return nil, ErrInvalidRequest
	}

	seen := make(map[int]bool, len(numbers))
	for _, n := range numbers {
		if n < 1 || n > totalTickets || seen[n] {
			return nil, ErrInvalidRequest
		}
		seen[n] = true
	}

	until, err := s.ledger.Claim(ctx, competitionID, numbers, holderID, s.cfg.HoldTTL)
	if err != nil {
		var unavail *repository.UnavailableNumbersError
		if errors.As(err, &unavail) {
			return nil, &UnavailableNumbersError{Numbers: unavail.Numbers}
		}
		return nil, err
	}

	s.afterChange(ctx, competitionID)

	return &domain.Reservation{Numbers: numbers, ReservedUntil: until}, nil
}

// reserveAssigned implements the lowest-numbered-first assignment policy.
// Losing a race against another shopper is ordinary flow here: the contested
// numbers are excluded and assignment re-reads availability.
func (s *Service) reserveAssigned(
	ctx context.Context,
	competitionID int64,
	holderID string,
	quantity int,
) (*domain.Reservation, error) {
	excluded := make(map[int]bool)

	for attempt := 0; attempt < s.cfg.AssignAttempts; attempt++ {
		snap, err := s.ledger.Snapshot(ctx, competitionID)
		if err != nil {
			if errors.Is(err, repository.ErrCompetitionNotFound) {
				return nil, ErrCompetitionNotFound
			}
			return nil, err
		}

		pick := make([]int, 0, quantity)
		for _, n := range snap.Available {
			if excluded[n] {
				continue
			}
			pick = append(pick, n)
			if len(pick) == quantity {
				break
			}
		}

		if len(pick) < quantity {
			return nil, ErrTemporarilyUnavailable
		}

		until, err := s.ledger.Claim(ctx, competitionID, pick, holderID, s.cfg.HoldTTL)
		if err != nil {
			var unavail *repository.UnavailableNumbersError
			if errors.As(err, &unavail) {
				for _, n := range unavail.Numbers {
					excluded[n] = true
				}
				continue
			}
			return nil, err
		}

		s.afterChange(ctx, competitionID)

		return &domain.Reservation{Numbers: pick, ReservedUntil: until}, nil
	}

	return nil, ErrTemporarilyUnavailable
}

// Extend re-issues the deployment TTL for the holder's live hold, used while
// a shopper is actively completing checkout. An already-lapsed hold cannot
// be resurrected; the shopper restarts selection instead.
func (s *Service) Extend(ctx context.Context, competitionID int64, holderID string) (time.Time, error) {
	const op = "service.reservation.Extend"

	if holderID == "" {
		return time.Time{}, fmt.Errorf("%s: %w", op, ErrInvalidRequest)
	}

	until, err := s.ledger.Extend(ctx, competitionID, holderID, s.cfg.HoldTTL)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrReservationExpired):
			return time.Time{}, fmt.Errorf("%s: %w", op, ErrReservationExpired)
		case errors.Is(err, repository.ErrCompetitionNotFound):
			return time.Time{}, fmt.Errorf("%s: %w", op, ErrCompetitionNotFound)
		}
		return time.Time{}, fmt.Errorf("%s: %w", op, err)
	}

	return until, nil
}

// ReleaseAll drops every hold of holderID in the competition and reports
// the freed numbers. Releasing nothing is not an error.
func (s *Service) ReleaseAll(ctx context.Context, competitionID int64, holderID string) ([]int, error) {
	const op = "service.reservation.ReleaseAll"

	if holderID == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidRequest)
	}

	released, err := s.ledger.ReleaseAll(ctx, competitionID, holderID)
	if err != nil {
		if errors.Is(err, repository.ErrCompetitionNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrCompetitionNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if len(released) > 0 {
		s.afterChange(ctx, competitionID)
	}

	return released, nil
}

// checkHolderCap enforces maxPerHolder against the ledger's current truth,
// never against anything the client reported.
func (s *Service) checkHolderCap(
	ctx context.Context,
	competitionID int64,
	holderID string,
	quantity, maxPerHolder int,
) error {
	limit := maxPerHolder
	if limit <= 0 {
		limit = s.cfg.MaxPerHolder
	}
	if limit <= 0 {
		return nil
	}

	held, err := s.ledger.HolderCount(ctx, competitionID, holderID)
	if err != nil {
		return err
	}

	if held+quantity > limit {
		return ErrLimitExceeded
	}

	return nil
}

func (s *Service) afterChange(ctx context.Context, competitionID int64) {
	if s.cache != nil {
		_ = s.cache.InvalidateCompetition(ctx, competitionID)
	}
	if s.pubsub != nil {
		_ = s.pubsub.PublishCompetitionChanged(ctx, competitionID)
	}
}
