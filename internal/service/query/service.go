package query

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
	InventoryTTL       time.Duration
	DefaultTicketsPage int
	MaxTicketsPage     int
	ReadRetries        int
	ReadRetryBackoff   time.Duration
}

type Service struct {
	ledger repository.Ledger
	cache  *redisrepo.Cache
	cfg    Config
}

func New(ledger repository.Ledger, cache *redisrepo.Cache, cfg Config) *Service {
	if cfg.InventoryTTL <= 0 {
		cfg.InventoryTTL = 15 * time.Second
	}

	if cfg.DefaultTicketsPage <= 0 {
		cfg.DefaultTicketsPage = 100
	}

	if cfg.MaxTicketsPage <= 0 {
		cfg.MaxTicketsPage = 500
	}

	if cfg.ReadRetries <= 0 {
		cfg.ReadRetries = 2
	}

	if cfg.ReadRetryBackoff <= 0 {
		cfg.ReadRetryBackoff = 50 * time.Millisecond
	}

	return &Service{
		ledger: ledger,
		cache:  cache,
		cfg:    cfg,
	}
}

// Inventory returns the competition's counts by effective status, through a
// short-lived cache. A competition with no initialized pool yields zero
// counts rather than an error: the ticket UI must keep rendering even when
// the upstream catalog is inconsistent.
func (s *Service) Inventory(ctx context.Context, competitionID int64) (*domain.InventoryCounts, error) {
	const op = "service.query.Inventory"

	load := func(ctx context.Context) (domain.InventoryCounts, error) {
		var counts domain.InventoryCounts
		err := s.retryRead(ctx, func(ctx context.Context) error {
			ic, err := s.ledger.InventoryCounts(ctx, competitionID)
			if err != nil {
				return err
			}
			counts = *ic
			return nil
		})
		if errors.Is(err, repository.ErrCompetitionNotFound) {
			return domain.InventoryCounts{}, nil
		}
		return counts, err
	}

	if s.cache == nil {
		counts, err := load(ctx)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return &counts, nil
	}

	counts, err := redisrepo.GetOrSetJSON(
		ctx,
		s.cache,
		redisrepo.KeyCompetitionInventory(competitionID),
		s.cfg.InventoryTTL,
		load,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &counts, nil
}

// Contention lists numbers actively held by shoppers other than
// excludeHolderID. Served fresh from the ledger every time: the report is
// advisory and can be stale by the moment the shopper acts on it, but
// serving it from a cache would make that window worse for no gain.
func (s *Service) Contention(ctx context.Context, competitionID int64, excludeHolderID string) ([]int, error) {
	const op = "service.query.Contention"

	var numbers []int
	err := s.retryRead(ctx, func(ctx context.Context) error {
		out, err := s.ledger.Contention(ctx, competitionID, excludeHolderID)
		if err != nil {
			return err
		}
		numbers = out
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrCompetitionNotFound) {
			return []int{}, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if numbers == nil {
		numbers = []int{}
	}

	return numbers, nil
}

// ListTickets pages through the pool in number order.
func (s *Service) ListTickets(
	ctx context.Context,
	competitionID int64,
	onlyAvailable bool,
	limit, offset int,
) ([]domain.TicketRecord, error) {
	const op = "service.query.ListTickets"

	if limit <= 0 {
		limit = s.cfg.DefaultTicketsPage
	}

	if limit > s.cfg.MaxTicketsPage {
		limit = s.cfg.MaxTicketsPage
	}

	if offset < 0 {
		offset = 0
	}

	tickets, err := s.ledger.ListTickets(ctx, competitionID, onlyAvailable, limit, offset)
	if err != nil {
		if errors.Is(err, repository.ErrCompetitionNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrCompetitionNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return tickets, nil
}

// retryRead retries idempotent reads on storage faults with a linear
// backoff. Domain outcomes (missing competition) pass through untouched, and
// mutating calls never go through here.
func (s *Service) retryRead(ctx context.Context, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 0; attempt <= s.cfg.ReadRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * s.cfg.ReadRetryBackoff):
			}
		}

		err = fn(ctx)
		if err == nil || errors.Is(err, repository.ErrCompetitionNotFound) {
			return err
		}
	}

	return err
}
