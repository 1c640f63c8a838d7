package di

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/google/wire"
	"github.com/redis/go-redis/v9"

	"github.com/sandeepkv93/alumni-portal-client/internal/app"
	"github.com/sandeepkv93/alumni-portal-client/internal/authstate"
	"github.com/sandeepkv93/alumni-portal-client/internal/config"
	"github.com/sandeepkv93/alumni-portal-client/internal/database"
	"github.com/sandeepkv93/alumni-portal-client/internal/http/client"
	"github.com/sandeepkv93/alumni-portal-client/internal/observability"
	"github.com/sandeepkv93/alumni-portal-client/internal/repository"
	"github.com/sandeepkv93/alumni-portal-client/internal/service"
	"github.com/sandeepkv93/alumni-portal-client/internal/session"
)

var (
	ConfigSet        = wire.NewSet(config.Load)
	ObservabilitySet = wire.NewSet(provideRuntime, provideLogger)
	StorageSet       = wire.NewSet(provideStorage)
	SessionSet       = wire.NewSet(session.NewTokenStore, provideCookieJar, provideRefresher, provideCoordinator)
	HTTPSet          = wire.NewSet(client.NewBaseTransport, provideHTTPClient)
	ServiceSet       = wire.NewSet(provideAuthService)
	AppSet           = wire.NewSet(provideSessionProvider, app.New)
)

const redisPingTimeout = 3 * time.Second

func provideRuntime(cfg *config.Config) (*observability.Runtime, error) {
	bootstrap := observability.NewLogger(cfg, os.Stderr, nil)
	return observability.InitRuntime(context.Background(), cfg, bootstrap)
}

func provideLogger(cfg *config.Config, runtime *observability.Runtime) *slog.Logger {
	logger := observability.NewLogger(cfg, os.Stderr, runtime.LoggerProvider)
	slog.SetDefault(logger)
	return logger
}

func provideStorage(cfg *config.Config, logger *slog.Logger) (repository.KeyValueRepository, error) {
	switch cfg.StorageDriver {
	case config.StorageDriverMemory:
		return repository.NewInMemoryKeyValueRepository(), nil
	case config.StorageDriverFile:
		return repository.NewFileKeyValueRepository(cfg.StoragePath)
	case config.StorageDriverSQLite, config.StorageDriverPostgres:
		db, err := database.Open(cfg)
		if err != nil {
			return nil, err
		}
		if err := database.Migrate(db); err != nil {
			if sqlDB, dbErr := db.DB(); dbErr == nil {
				_ = sqlDB.Close()
			}
			return nil, err
		}
		return repository.NewGormKeyValueRepository(db), nil
	case config.StorageDriverRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		logger.Debug("redis storage connected", "addr", cfg.RedisAddr)
		return repository.NewRedisKeyValueRepository(rdb, cfg.StorageKeyPrefix), nil
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}

func provideCookieJar(cfg *config.Config, storage repository.KeyValueRepository, logger *slog.Logger) (*client.PersistentJar, error) {
	return client.NewPersistentJar(context.Background(), cfg.BackendURL, storage, logger)
}

func provideRefresher(cfg *config.Config, jar *client.PersistentJar, base http.RoundTripper) *client.Refresher {
	return client.NewRefresher(cfg, jar, base)
}

func provideCoordinator(cfg *config.Config, store *session.TokenStore, refresher *client.Refresher, logger *slog.Logger) *session.Coordinator {
	return session.NewCoordinator(store, refresher, cfg.RefreshTimeout, logger)
}

func provideHTTPClient(cfg *config.Config, store *session.TokenStore, coord *session.Coordinator, jar *client.PersistentJar, base http.RoundTripper, logger *slog.Logger) *client.Client {
	return client.New(cfg, store, coord, jar, base, logger)
}

func provideAuthService(c *client.Client, store *session.TokenStore, jar *client.PersistentJar, logger *slog.Logger) *service.AuthService {
	return service.NewAuthService(c, store, jar, logger)
}

func provideSessionProvider(store *session.TokenStore, auth *service.AuthService, logger *slog.Logger) *authstate.Provider {
	return authstate.NewProvider(store, auth, logger)
}
