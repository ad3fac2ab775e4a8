package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/diodesmelts/red-whale-render-sub002/internal/config"
	"github.com/diodesmelts/red-whale-render-sub002/internal/postgres"
	"github.com/diodesmelts/red-whale-render-sub002/internal/reaper"
	"github.com/diodesmelts/red-whale-render-sub002/internal/redis"
	"github.com/diodesmelts/red-whale-render-sub002/internal/repository"
	"github.com/diodesmelts/red-whale-render-sub002/internal/repository/memory"
	postgresrepo "github.com/diodesmelts/red-whale-render-sub002/internal/repository/postgres"
	redisrepo "github.com/diodesmelts/red-whale-render-sub002/internal/repository/redis"
	"github.com/diodesmelts/red-whale-render-sub002/internal/service"
	"github.com/diodesmelts/red-whale-render-sub002/internal/service/query"
	"github.com/diodesmelts/red-whale-render-sub002/internal/service/reservation"
	httpgin "github.com/diodesmelts/red-whale-render-sub002/internal/transport/http/gin"
)

type App struct {
	cfg        *config.Config
	logger     *slog.Logger
	httpServer *http.Server
	reaper     *reaper.Reaper
	pubsub     *redisrepo.CompetitionsPubSub
}

func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ledger, err := buildLedger(cfg)
	if err != nil {
		return nil, err
	}

	// Redis is optional: with no address configured the engine runs with
	// direct ledger reads, no change feed, and no rate limiting.
	var (
		cache            *redisrepo.Cache
		pubsub           *redisrepo.CompetitionsPubSub
		limiter          *redisrepo.SlidingWindowLimiter
		idempotencyStore *redisrepo.IdempotencyStore
	)

	if cfg.Redis.Addr != "" {
		rdb, err := redis.New(context.Background(), redis.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize redis: %w", err)
		}

		cache = redisrepo.New(rdb)
		pubsub = redisrepo.NewCompetitionsPubSub(rdb)
		limiter = redisrepo.NewSlidingWindowLimiter(rdb, "reserve", 10, 1*time.Minute)
		idempotencyStore = redisrepo.NewIdempotencyStore(rdb, 2*time.Hour)
	}

	services := service.NewServices(ledger, cache, pubsub, limiter, logger, service.Config{
		Reservation: reservation.Config{
			HoldTTL:      cfg.Engine.HoldTTL,
			MaxPerHolder: cfg.Engine.MaxPerHolder,
		},
		Query: query.Config{},
	})

	rp := reaper.New(ledger, cfg.Engine.ReaperInterval, logger,
		func(ctx context.Context, competitionIDs []int64) {
			for _, id := range competitionIDs {
				if cache != nil {
					_ = cache.InvalidateCompetition(ctx, id)
				}
				if pubsub != nil {
					_ = pubsub.PublishCompetitionChanged(ctx, id)
				}
			}
		})

	router := httpgin.NewRouter(services, idempotencyStore, logger)

	return &App{
		cfg:    cfg,
		logger: logger,
		httpServer: &http.Server{
			Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
			Handler: router,
		},
		reaper: rp,
		pubsub: pubsub,
	}, nil
}

func buildLedger(cfg *config.Config) (repository.Ledger, error) {
	if cfg.Engine.StorageDriver == config.DriverMemory {
		return memory.NewLedger(), nil
	}

	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.Postgres.User,
		cfg.Postgres.Password,
		cfg.Postgres.Host,
		cfg.Postgres.Port,
		cfg.Postgres.Name,
		cfg.Postgres.SSLMode,
	)

	pgxPool, err := postgres.New(context.Background(), postgres.Config{DSN: dsn})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize postgres: %w", err)
	}

	return postgresrepo.NewStore(pgxPool).Ledger(), nil
}

func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	g, gCtx := errgroup.WithContext(ctx)

	// Start HTTP server
	g.Go(func() error {
		a.logger.Info("HTTP server listening", "host", a.cfg.Server.Host, "port", a.cfg.Server.Port)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
		return nil
	})

	// Background hold sweep
	g.Go(func() error {
		a.logger.Info("reaper started", "interval", a.cfg.Engine.ReaperInterval)
		if err := a.reaper.Run(gCtx); err != nil && err != context.Canceled {
			return err
		}
		return nil
	})

	// Change feed consumer. The feed is advisory, so losing the
	// subscription degrades to log silence rather than taking the
	// process down.
	if a.pubsub != nil {
		g.Go(func() error {
			err := a.pubsub.Subscribe(gCtx, func(_ context.Context, competitionID int64) {
				a.logger.Debug("competition inventory changed", "competition_id", competitionID)
			})
			if err != nil && err != context.Canceled {
				a.logger.Warn("change feed subscription ended", "error", err)
			}
			return nil
		})
	}

	// Graceful shutdown
	g.Go(func() error {
		<-gCtx.Done()
		a.logger.Info("shutting down HTTP server")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return a.httpServer.Shutdown(ctx)
	})

	return g.Wait()
}
