package admin

import (
	"context"
	"errors"
	"fmt"

	"github.com/diodesmelts/red-whale-render-sub002/internal/repository"
	redisrepo "github.com/diodesmelts/red-whale-render-sub002/internal/repository/redis"
)

type Service struct {
	ledger repository.Ledger
	cache  *redisrepo.Cache
	pubsub *redisrepo.CompetitionsPubSub
}

func New(ledger repository.Ledger, cache *redisrepo.Cache, pubsub *redisrepo.CompetitionsPubSub) *Service {
	return &Service{
		ledger: ledger,
		cache:  cache,
		pubsub: pubsub,
	}
}

// InitPool idempotently materializes ticket rows 1..totalTickets for the
// competition. Re-running after a pool resize only creates the missing rows.
//
// Returns:
//   - int64: rows created by this call.
//   - error: admin.ErrInvalidPoolSize when totalTickets is not positive.
func (s *Service) InitPool(ctx context.Context, competitionID int64, totalTickets int) (int64, error) {
	const op = "service.admin.InitPool"

	created, err := s.ledger.Initialize(ctx, competitionID, totalTickets)
	if err != nil {
		if errors.Is(err, repository.ErrInvalidPoolSize) {
			return 0, fmt.Errorf("%s: %w", op, ErrInvalidPoolSize)
		}
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	if created > 0 {
		if s.cache != nil {
			_ = s.cache.InvalidateCompetition(ctx, competitionID)
		}
		if s.pubsub != nil {
			_ = s.pubsub.PublishCompetitionChanged(ctx, competitionID)
		}
	}

	return created, nil
}
