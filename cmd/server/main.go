package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"

	"github.com/harberts01/Ai-Blog/internal/cache"
	"github.com/harberts01/Ai-Blog/internal/config"
	"github.com/harberts01/Ai-Blog/internal/db"
	"github.com/harberts01/Ai-Blog/internal/handler"
	"github.com/harberts01/Ai-Blog/internal/logging"
	"github.com/harberts01/Ai-Blog/internal/metrics"
	"github.com/harberts01/Ai-Blog/internal/middleware"
	"github.com/harberts01/Ai-Blog/internal/repository"
	"github.com/harberts01/Ai-Blog/internal/router"
	"github.com/harberts01/Ai-Blog/internal/service"
	"github.com/harberts01/Ai-Blog/internal/store"
	"github.com/harberts01/Ai-Blog/internal/store/memory"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		logging.Logger.Fatal().Err(err).Msg("server exited")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logging.Init(cfg.LogLevel, "arena-api")
	log := logging.Logger

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, pool, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	if pool != nil {
		defer pool.Close()
	}
	metrics.Register(pool)

	clock := clockwork.NewRealClock()

	cacheStore, rdb := openCache(ctx, cfg.RedisURL, clock)
	if rdb != nil {
		defer rdb.Close()
	}
	results := cache.New(cacheStore, clock, cfg.Aggregation.ResultCacheTTL)

	guard := service.NewEligibility(cfg.Voting.FreeWeeklyQuota)
	matchupSvc := service.NewMatchupService(st, clock, cfg.Voting.LockWindow)
	voteSvc := service.NewVoteService(st, guard, clock, cfg.Voting.LockWindow)
	rankingSvc := service.NewRankingService(st, results, guard, clock, service.RankingOptions{
		LockWindow:     cfg.Voting.LockWindow,
		MinVotes:       cfg.Aggregation.MinLeaderboardVotes,
		TeaserSize:     cfg.Aggregation.TeaserSize,
		HistoryPageMax: cfg.Aggregation.HistoryPageMax,
	})

	worker, err := service.NewPairingWorker(matchupSvc, cfg.PairingInterval, clock)
	if err != nil {
		return err
	}
	if err := worker.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := worker.Stop(); err != nil {
			log.Warn().Err(err).Msg("pairing worker stop")
		}
	}()

	app := fiber.New(fiber.Config{
		AppName:      "AI Arena API",
		ServerHeader: "AI-Arena",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	})

	router.Setup(app, &router.Handlers{
		Matchup: handler.NewMatchupHandler(matchupSvc),
		Vote:    handler.NewVoteHandler(voteSvc, matchupSvc, cfg.IPHashSalt),
		Ranking: handler.NewRankingHandler(rankingSvc, clock),
		Admin:   handler.NewAdminHandler(matchupSvc),
		Health:  handler.NewHealthHandler(pool, rdb, cfg.StoreDriver),
	}, router.Options{
		RateCounter:   rateCounter(rdb, clock),
		CORSOrigins:   cfg.CORSOrigins,
		AdminToken:    cfg.AdminToken,
		VoteRateLimit: cfg.Voting.RateLimitPerMin,
		Users:         st,
	})

	if cfg.AdminToken == "" {
		log.Warn().Msg("ADMIN_TOKEN not set, admin routes are disabled")
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Str("env", cfg.Environment).Str("store", cfg.StoreDriver).Msg("server starting")
		errCh <- app.Listen(":"+cfg.Port, fiber.ListenConfig{DisableStartupMessage: true})
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// openStore returns the configured store. pool is nil for the memory driver.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, *pgxpool.Pool, error) {
	if cfg.StoreDriver == config.DriverMemory {
		logging.Logger.Warn().Msg("using in-memory store, data is lost on restart")
		return memory.New(), nil, nil
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
	if err != nil {
		return nil, nil, err
	}
	if err := db.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return repository.NewStore(pool), pool, nil
}

// openCache prefers Redis so replicas share aggregates. An unreachable Redis
// falls back to a per-process cache rather than failing startup.
func openCache(ctx context.Context, redisURL string, clock clockwork.Clock) (cache.Store, *redis.Client) {
	if redisURL == "" {
		return cache.NewMemoryStore(clock), nil
	}
	rs, err := cache.NewRedisStore(ctx, redisURL)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			logging.Logger.Warn().Err(err).Msg("redis unavailable, using in-process result cache")
		}
		return cache.NewMemoryStore(clock), nil
	}
	return rs, rs.Client()
}

// rateCounter shares rate-limit windows through Redis when it is connected.
func rateCounter(rdb *redis.Client, clock clockwork.Clock) middleware.WindowCounter {
	if rdb == nil {
		return nil
	}
	return middleware.NewRedisCounter(rdb, "arena:rl:", clock)
}
