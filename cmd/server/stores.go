package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/manawise/deckgate/internal/cachekey"
	"github.com/manawise/deckgate/internal/config"
	"github.com/manawise/deckgate/internal/guest"
	"github.com/manawise/deckgate/internal/ratelimit"
	"github.com/manawise/deckgate/internal/respcache"
)

// backends bundles the three stores the gate needs. All three share one
// connection per driver; closers run in reverse construction order.
type backends struct {
	cache      *respcache.Cache
	cacheStore respcache.Store
	guestStore guest.Store
	limiter    ratelimit.Limiter

	closers []func() error
}

func (b *backends) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		_ = b.closers[i]()
	}
}

// Ping checks every backing store.
func (b *backends) Ping(ctx context.Context) error {
	if err := b.cacheStore.Ping(ctx); err != nil {
		return fmt.Errorf("cache store: %w", err)
	}
	if err := b.guestStore.Ping(ctx); err != nil {
		return fmt.Errorf("guest store: %w", err)
	}
	if err := b.limiter.Ping(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	return nil
}

func buildBackends(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*backends, error) {
	be := &backends{}

	switch cfg.Storage.Driver {
	case "memory":
		be.cacheStore = respcache.NewMemoryStore(cfg.Cache.CleanupBatch)
		be.guestStore = guest.NewMemoryStore()
		be.limiter = ratelimit.NewMemoryLimiter()
		logger.Warn("using in-memory storage; quotas reset on restart")

	case "postgres":
		if err := buildPostgres(ctx, cfg, be); err != nil {
			return nil, err
		}

	case "redis":
		if err := buildRedis(ctx, cfg, be); err != nil {
			return nil, err
		}

	default:
		return nil, fmt.Errorf("unknown storage driver: %q", cfg.Storage.Driver)
	}

	keys := cachekey.NewBuilder(cfg.Cache.KeyPrefix)
	be.cache = respcache.New(be.cacheStore, keys, cfg.Cache.TTL, logger)
	return be, nil
}

func buildPostgres(ctx context.Context, cfg *config.Config, be *backends) error {
	pg := cfg.Storage.Postgres

	db, err := sql.Open("postgres", pg.DSN())
	if err != nil {
		return fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(pg.MaxOpenConns)
	db.SetMaxIdleConns(pg.MaxIdleConns)
	db.SetConnMaxLifetime(pg.ConnLifetime)
	be.closers = append(be.closers, db.Close)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}

	cacheStore := respcache.NewPostgresStore(db, cfg.Cache.CleanupBatch)
	guestStore := guest.NewPostgresStore(db)
	limiter := ratelimit.NewPostgresLimiter(db)

	if err := cacheStore.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("cache schema: %w", err)
	}
	if err := guestStore.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("guest schema: %w", err)
	}
	if err := limiter.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("rate limit schema: %w", err)
	}

	be.cacheStore = cacheStore
	be.guestStore = guestStore
	be.limiter = limiter
	return nil
}

func buildRedis(ctx context.Context, cfg *config.Config, be *backends) error {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Storage.Redis.Addr,
		Password: cfg.Storage.Redis.Password,
		DB:       cfg.Storage.Redis.DB,
	})
	be.closers = append(be.closers, client.Close)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}

	namespace := cfg.Cache.KeyPrefix
	be.cacheStore = respcache.NewRedisStore(client, namespace)
	be.guestStore = guest.NewRedisStore(client, namespace)
	be.limiter = ratelimit.NewRedisLimiter(client, namespace)
	return nil
}
