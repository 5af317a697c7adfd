package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RunGuard grants exclusive, expiring ownership of a named job.
// Acquire reports false when another holder owns the name.
type RunGuard interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (release func(), ok bool, err error)
}

// releaseScript deletes the key only while it still holds our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisRunGuard implements RunGuard with SET NX so that several processes
// sharing one Redis never run the same job concurrently
type RedisRunGuard struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisRunGuard creates a guard on an existing client
func NewRedisRunGuard(client *redis.Client, keyPrefix string) *RedisRunGuard {
	if keyPrefix == "" {
		keyPrefix = "marketsync:run:"
	}
	return &RedisRunGuard{client: client, keyPrefix: keyPrefix}
}

// Acquire takes the lock for name until release is called or ttl elapses
func (g *RedisRunGuard) Acquire(ctx context.Context, name string, ttl time.Duration) (func(), bool, error) {
	key := g.keyPrefix + name
	token := uuid.NewString()

	ok, err := g.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire run guard %s: %w", name, err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(ctx, g.client, []string{key}, token).Err()
	}
	return release, true, nil
}

// InMemoryRunGuard implements RunGuard for a single process
type InMemoryRunGuard struct {
	mu      sync.Mutex
	holders map[string]guardEntry
	now     func() time.Time
}

type guardEntry struct {
	token     string
	expiresAt time.Time
}

// NewInMemoryRunGuard creates an in-process guard
func NewInMemoryRunGuard() *InMemoryRunGuard {
	return &InMemoryRunGuard{
		holders: make(map[string]guardEntry),
		now:     time.Now,
	}
}

// Acquire takes the lock for name unless a live holder exists
func (g *InMemoryRunGuard) Acquire(_ context.Context, name string, ttl time.Duration) (func(), bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if e, held := g.holders[name]; held && now.Before(e.expiresAt) {
		return nil, false, nil
	}

	token := uuid.NewString()
	g.holders[name] = guardEntry{token: token, expiresAt: now.Add(ttl)}

	release := func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		if e, held := g.holders[name]; held && e.token == token {
			delete(g.holders, name)
		}
	}
	return release, true, nil
}

var (
	_ RunGuard = (*RedisRunGuard)(nil)
	_ RunGuard = (*InMemoryRunGuard)(nil)
)
