package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/prudhvinik1/weddingsync/internal/config"
	"github.com/prudhvinik1/weddingsync/internal/database"
	"github.com/prudhvinik1/weddingsync/internal/logging"
	"github.com/prudhvinik1/weddingsync/internal/repositories"
)

// backend holds the store handles opened for one process.
type backend struct {
	repo    repositories.SyncUpdateRepository
	redis   *redis.Client
	closers []func(ctx context.Context) error
}

// openBackend connects the configured ledger store and, when withRedis is
// set and REDIS_URL is configured, Redis.
func openBackend(ctx context.Context, cfg *config.Config, withRedis bool) (*backend, error) {
	b := &backend{}
	registry := database.NewRegistry()

	switch cfg.StoreBackend {
	case config.BackendMongo:
		client, err := database.NewMongoClient(ctx, cfg.MongoURI)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, client.Disconnect)

		repo, err := repositories.NewMongoSyncUpdateRepository(ctx, client.Database(cfg.MongoDatabase), registry)
		if err != nil {
			b.Close(ctx)
			return nil, err
		}
		b.repo = repo
	case config.BackendPostgres:
		pool, err := database.NewPostgresPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, func(context.Context) error {
			pool.Close()
			return nil
		})

		repo, err := repositories.NewPostgresSyncUpdateRepository(ctx, pool, registry)
		if err != nil {
			b.Close(ctx)
			return nil, err
		}
		b.repo = repo
	case config.BackendMemory:
		repo, err := repositories.NewMemorySyncUpdateRepository()
		if err != nil {
			return nil, err
		}
		b.repo = repo
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}

	if withRedis && cfg.RedisURL != "" {
		client, err := database.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			b.Close(ctx)
			return nil, err
		}
		b.redis = client
		b.closers = append(b.closers, func(context.Context) error {
			return client.Close()
		})
	}

	logging.DefaultLogger().Infof("store backend %s ready, resources: %v", cfg.StoreBackend, registry.Names())
	return b, nil
}

// notifier returns the Redis notifier when Redis is available, so drains on
// every instance wake up, and an in-process one otherwise.
func (b *backend) notifier() repositories.Notifier {
	if b.redis != nil {
		return repositories.NewRedisNotifier(b.redis)
	}
	return repositories.NewLocalNotifier()
}

func (b *backend) sessions() repositories.SessionRepository {
	if b.redis == nil {
		return nil
	}
	return repositories.NewRedisSessionRepository(b.redis)
}

// Close releases the handles in reverse order of opening.
func (b *backend) Close(ctx context.Context) {
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](ctx); err != nil {
			logging.DefaultLogger().Warnf("failed to close store handle: %v", err)
		}
	}
	b.closers = nil
}
