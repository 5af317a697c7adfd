package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/erp/marketsync/internal/domain/marketplace"
	"github.com/erp/marketsync/internal/infrastructure/config"
)

// Stores bundles the coordination stores used by the scheduler and the
// OAuth flow
type Stores struct {
	RunGuard RunGuard
	Sessions marketplace.SessionStore
	client   *redis.Client
}

// Close releases the Redis client, if any
func (s *Stores) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}

// Distributed reports whether the stores are shared through Redis
func (s *Stores) Distributed() bool {
	return s.client != nil
}

// Client returns the shared Redis client, or nil for in-memory stores
func (s *Stores) Client() *redis.Client {
	return s.client
}

// Ping checks the Redis connection; in-memory stores are always healthy
func (s *Stores) Ping(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Ping(ctx).Err()
}

// FactoryOption is a functional option for configuring NewStores
type FactoryOption func(*factory)

type factory struct {
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) FactoryOption {
	return func(f *factory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether to fall back to in-memory stores when Redis is unavailable.
// Default is true.
func WithInMemoryFallback(allow bool) FactoryOption {
	return func(f *factory) {
		f.allowInMemoryFallback = allow
	}
}

// NewRedisClient connects to Redis and verifies the connection
func NewRedisClient(cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// NewStores builds Redis-backed stores when Redis is enabled and reachable,
// and in-memory stores otherwise
func NewStores(cfg config.RedisConfig, opts ...FactoryOption) (*Stores, error) {
	f := &factory{logger: zap.NewNop(), allowInMemoryFallback: true}
	for _, opt := range opts {
		opt(f)
	}

	if !cfg.Enabled {
		f.logger.Info("Redis disabled, using in-memory run guard and session store")
		return inMemoryStores(), nil
	}

	client, err := NewRedisClient(cfg)
	if err != nil {
		if !f.allowInMemoryFallback {
			return nil, fmt.Errorf("Redis required but unavailable: %w", err)
		}
		f.logger.Warn("Redis unavailable, falling back to in-memory stores. "+
			"Scheduled jobs are then only guarded within this process.",
			zap.Error(err),
		)
		return inMemoryStores(), nil
	}

	f.logger.Info("using Redis run guard and session store", zap.String("addr", cfg.Addr()))
	return &Stores{
		RunGuard: NewRedisRunGuard(client, ""),
		Sessions: NewRedisSessionStore(client, ""),
		client:   client,
	}, nil
}

func inMemoryStores() *Stores {
	return &Stores{
		RunGuard: NewInMemoryRunGuard(),
		Sessions: NewInMemorySessionStore(),
	}
}
