package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/erp/marketsync/internal/infrastructure/logger"
	"github.com/erp/marketsync/internal/interfaces/http/dto"
)

// RateLimiter counts requests per key in fixed windows
type RateLimiter interface {
	// Allow consumes one request for key and reports the requests left
	Allow(ctx context.Context, key string) (remaining int, ok bool, err error)
	Limit() int
}

// MemoryRateLimiter keeps counters in process memory
type MemoryRateLimiter struct {
	mu      sync.Mutex
	clients map[string]*window
	limit   int
	window  time.Duration
	now     func() time.Time
}

type window struct {
	count   int
	resetAt time.Time
}

// NewMemoryRateLimiter creates a limiter allowing limit requests per window
func NewMemoryRateLimiter(limit int, per time.Duration) *MemoryRateLimiter {
	return &MemoryRateLimiter{
		clients: make(map[string]*window),
		limit:   limit,
		window:  per,
		now:     time.Now,
	}
}

// Allow implements RateLimiter. Expired windows are swept lazily.
func (rl *MemoryRateLimiter) Allow(_ context.Context, key string) (int, bool, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	w, ok := rl.clients[key]
	if !ok || !now.Before(w.resetAt) {
		if len(rl.clients) > 10000 {
			for k, old := range rl.clients {
				if !now.Before(old.resetAt) {
					delete(rl.clients, k)
				}
			}
		}
		w = &window{resetAt: now.Add(rl.window)}
		rl.clients[key] = w
	}
	if w.count >= rl.limit {
		return 0, false, nil
	}
	w.count++
	return rl.limit - w.count, true, nil
}

// Limit implements RateLimiter
func (rl *MemoryRateLimiter) Limit() int { return rl.limit }

// RedisRateLimiter shares counters between instances
type RedisRateLimiter struct {
	client    *redis.Client
	keyPrefix string
	limit     int
	window    time.Duration
}

// NewRedisRateLimiter creates a limiter backed by client
func NewRedisRateLimiter(client *redis.Client, limit int, per time.Duration) *RedisRateLimiter {
	return &RedisRateLimiter{
		client:    client,
		keyPrefix: "marketsync:ratelimit:",
		limit:     limit,
		window:    per,
	}
}

// Allow implements RateLimiter. The first request of a window sets the
// key's expiry.
func (rl *RedisRateLimiter) Allow(ctx context.Context, key string) (int, bool, error) {
	k := rl.keyPrefix + key
	count, err := rl.client.Incr(ctx, k).Result()
	if err != nil {
		return 0, false, fmt.Errorf("rate limit %s: %w", key, err)
	}
	if count == 1 {
		if err := rl.client.Expire(ctx, k, rl.window).Err(); err != nil {
			return 0, false, fmt.Errorf("rate limit %s: %w", key, err)
		}
	}
	if int(count) > rl.limit {
		return 0, false, nil
	}
	return rl.limit - int(count), true, nil
}

// Limit implements RateLimiter
func (rl *RedisRateLimiter) Limit() int { return rl.limit }

// RateLimit limits requests per operator, or per client IP on public
// routes. Limiter errors let the request through.
func RateLimit(limiter RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := "ip:" + c.ClientIP()
		if op := GetOperator(c); op != "" {
			key = "op:" + op
		}

		remaining, ok, err := limiter.Allow(c.Request.Context(), key)
		if err != nil {
			logger.GetGinLogger(c, nil).Warn("Rate limiter unavailable", zap.Error(err))
			c.Next()
			return
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(limiter.Limit()))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		if !ok {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeRateLimited, "Too many requests. Please try again later.", GetRequestID(c)))
			return
		}
		c.Next()
	}
}

var (
	_ RateLimiter = (*MemoryRateLimiter)(nil)
	_ RateLimiter = (*RedisRateLimiter)(nil)
)
