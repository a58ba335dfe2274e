package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"donation_match_backend/internal/config"
	"donation_match_backend/internal/identity"
	"donation_match_backend/internal/identity/firebase"
	"donation_match_backend/internal/jobs"
	"donation_match_backend/internal/platform/database"
	"donation_match_backend/internal/platform/logger"
	"donation_match_backend/internal/profile"
	"donation_match_backend/internal/session"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const memoryStoreCleanupInterval = 5 * time.Minute

// provideLogger builds the application logger; cleanup flushes it.
func provideLogger(cfg *config.Config) (*zap.Logger, func(), error) {
	zapLogger, err := logger.New(cfg)
	if err != nil {
		return nil, nil, err
	}
	return zapLogger, func() {
		if err := logger.Sync(zapLogger); err != nil {
			log.Printf("ERROR: Failed to sync logger during cleanup: %v", err)
		}
	}, nil
}

// provideDatabase connects, migrates and returns a cleanup that closes the pool.
func provideDatabase(ctx context.Context, cfg *config.Config, zapLogger *zap.Logger) (*gorm.DB, func(), error) {
	db, err := database.NewGORM(cfg, zapLogger)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() { database.CloseGORMDB(db, zapLogger) }
	if err := database.Migrate(ctx, db, cfg, zapLogger); err != nil {
		cleanup()
		return nil, nil, err
	}
	return db, cleanup, nil
}

// provideSessionStore picks the provider session store named by SESSION_STORE.
func provideSessionStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (identity.SessionStore, func(), error) {
	if !cfg.UsesRedisSessions() {
		logger.Info("Using in-memory session store")
		return identity.NewMemoryStore(memoryStoreCleanupInterval), func() {}, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.RedisAddr, err)
	}
	logger.Info("Using Redis session store", zap.String("addr", cfg.RedisAddr))
	cleanup := func() {
		if err := rdb.Close(); err != nil {
			logger.Error("Error closing redis client", zap.Error(err))
		}
	}
	return identity.NewRedisStore(rdb), cleanup, nil
}

func provideProviderFactory(client *firebase.Client) session.ProviderFactory {
	return func(clientID string) identity.Provider {
		return client.ForClient(clientID)
	}
}

func provideRegistry(factory session.ProviderFactory, profiles profile.Repository, cfg *config.Config, logger *zap.Logger) *session.Registry {
	return session.NewRegistry(factory, profiles, cfg.AppBaseURL, logger)
}

func provideClientSweepJob(registry *session.Registry, cfg *config.Config, logger *zap.Logger) *jobs.ClientSweepJob {
	return jobs.NewClientSweepJob(registry, cfg.ClientIdleTimeout, logger)
}
