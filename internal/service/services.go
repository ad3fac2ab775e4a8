package service

import (
	"log/slog"

	"github.com/diodesmelts/red-whale-render-sub002/internal/repository"
	redisrepo "github.com/diodesmelts/red-whale-render-sub002/internal/repository/redis"
	"github.com/diodesmelts/red-whale-render-sub002/internal/service/admin"
	"github.com/diodesmelts/red-whale-render-sub002/internal/service/finalizer"
	"github.com/diodesmelts/red-whale-render-sub002/internal/service/query"
	"github.com/diodesmelts/red-whale-render-sub002/internal/service/reservation"
)

type Services struct {
	Reservation *reservation.Service
	Finalizer   *finalizer.Service
	Query       *query.Service
	Admin       *admin.Service
}

type Config struct {
	Reservation reservation.Config
	Query       query.Config
}

func NewServices(
	ledger repository.Ledger,
	cache *redisrepo.Cache,
	pubsub *redisrepo.CompetitionsPubSub,
	limiter *redisrepo.SlidingWindowLimiter,
	logger *slog.Logger,
	cfg Config,
) *Services {
	return &Services{
		Reservation: reservation.New(ledger, cache, pubsub, limiter, cfg.Reservation),
		Finalizer:   finalizer.New(ledger, cache, pubsub, logger),
		Query:       query.New(ledger, cache, cfg.Query),
		Admin:       admin.New(ledger, cache, pubsub),
	}
}
