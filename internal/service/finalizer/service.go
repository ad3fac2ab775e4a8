// Package finalizer bridges the external payment collaborator to the ticket
// ledger. It is only ever invoked after the payment outcome is known, so no
// ledger row is held across a payment-provider round trip.
package finalizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/diodesmelts/red-whale-render-sub002/internal/repository"
	redisrepo "github.com/diodesmelts/red-whale-render-sub002/internal/repository/redis"
	"github.com/google/uuid"
)

type Service struct {
	ledger repository.Ledger
	cache  *redisrepo.Cache
	pubsub *redisrepo.CompetitionsPubSub
	logger *slog.Logger
}

func New(
	ledger repository.Ledger,
	cache *redisrepo.Cache,
	pubsub *redisrepo.CompetitionsPubSub,
	logger *slog.Logger,
) *Service {
	return &Service{
		ledger: ledger,
		cache:  cache,
		pubsub: pubsub,
		logger: logger,
	}
}

// PaymentConfirmed commits the holder's held numbers as a permanent purchase
// stamped with entryID.
//
// When the hold lapsed before the commit, the conflict is escalated: the
// shopper has paid for tickets that are no longer secured. The engine logs
// the incident and returns ErrPaidReservationLost; whether to refund or
// re-reserve is a business decision made by the caller, never silently here.
func (s *Service) PaymentConfirmed(
	ctx context.Context,
	competitionID int64,
	holderID string,
	numbers []int,
	entryID uuid.UUID,
) error {
	const op = "service.finalizer.PaymentConfirmed"

	if holderID == "" || len(numbers) == 0 || entryID == uuid.Nil {
		return fmt.Errorf("%s: %w", op, ErrInvalidRequest)
	}

	err := s.ledger.Commit(ctx, competitionID, numbers, holderID, entryID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrReservationExpired):
			s.logger.Error("paid reservation lost",
				"competition_id", competitionID,
				"holder_id", holderID,
				"numbers", numbers,
				"entry_id", entryID.String(),
			)
			return fmt.Errorf("%s: %w", op, ErrPaidReservationLost)
		case errors.Is(err, repository.ErrCompetitionNotFound):
			return fmt.Errorf("%s: %w", op, ErrCompetitionNotFound)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	s.afterChange(ctx, competitionID)

	return nil
}

// PaymentFailed returns the holder's numbers to the pool right away so other
// shoppers are not blocked until the reaper's next pass.
func (s *Service) PaymentFailed(ctx context.Context, competitionID int64, holderID string, numbers []int) error {
	const op = "service.finalizer.PaymentFailed"

	if holderID == "" || len(numbers) == 0 {
		return fmt.Errorf("%s: %w", op, ErrInvalidRequest)
	}

	notOwned, err := s.ledger.Release(ctx, competitionID, numbers, holderID)
	if err != nil {
		if errors.Is(err, repository.ErrCompetitionNotFound) {
			return fmt.Errorf("%s: %w", op, ErrCompetitionNotFound)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	if len(notOwned) > 0 {
		s.logger.Warn("release skipped numbers held by another shopper",
			"competition_id", competitionID,
			"holder_id", holderID,
			"not_owned", notOwned,
		)
	}

	s.afterChange(ctx, competitionID)

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
