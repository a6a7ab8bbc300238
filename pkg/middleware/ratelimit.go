package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RateLimiter decides whether a client identified by key may proceed.
// Implementations are best-effort admission control, not a billing-grade
// accounting system.
type RateLimiter interface {
	// Allow records one request for key and reports whether it is within
	// the window limit. retryAfter is meaningful only when allowed is false.
	Allow(ctx context.Context, key string) (allowed bool, retryAfter time.Duration, err error)
}

// redisLimiter implements a sliding window over a Redis sorted set per
// client: timestamps outside the window are trimmed, the current request is
// added, and the cardinality is compared against the limit. The four
// commands run in one pipeline round trip.
type redisLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
}

// NewRedisRateLimiter creates a Redis-backed sliding window limiter.
func NewRedisRateLimiter(client *redis.Client, limit int, window time.Duration) RateLimiter {
	return &redisLimiter{client: client, limit: limit, window: window}
}

var _ RateLimiter = (*redisLimiter)(nil)

func (l *redisLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	now := time.Now()
	windowStart := now.Add(-l.window)
	redisKey := "ratelimit:" + key

	pipe := l.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "0", strconv.FormatInt(windowStart.UnixNano(), 10))
	pipe.ZAdd(ctx, redisKey, redis.Z{
		Score:  float64(now.UnixNano()),
		Member: strconv.FormatInt(now.UnixNano(), 10),
	})
	countCmd := pipe.ZCard(ctx, redisKey)
	pipe.Expire(ctx, redisKey, l.window)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, fmt.Errorf("rate limit pipeline failed: %w", err)
	}

	if countCmd.Val() > int64(l.limit) {
		return false, l.window, nil
	}
	return true, 0, nil
}

// memoryLimiter is the in-process fallback used when Redis is not
// configured: a mutex-guarded map from client key to a rolling counter and
// window reset time. Single-process only; counters are lost on restart.
type memoryLimiter struct {
	mu      sync.Mutex
	clients map[string]*windowCounter
	limit   int
	window  time.Duration
	now     func() time.Time
}

type windowCounter struct {
	count   int
	resetAt time.Time
}

// NewMemoryRateLimiter creates an in-memory fixed-window limiter.
func NewMemoryRateLimiter(limit int, window time.Duration) RateLimiter {
	return &memoryLimiter{
		clients: make(map[string]*windowCounter),
		limit:   limit,
		window:  window,
		now:     time.Now,
	}
}

var _ RateLimiter = (*memoryLimiter)(nil)

func (l *memoryLimiter) Allow(_ context.Context, key string) (bool, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	counter, ok := l.clients[key]
	if !ok || now.After(counter.resetAt) {
		counter = &windowCounter{resetAt: now.Add(l.window)}
		l.clients[key] = counter
	}

	counter.count++
	if counter.count > l.limit {
		return false, counter.resetAt.Sub(now), nil
	}
	return true, 0, nil
}

// RateLimit returns middleware enforcing the given limiter on every request.
// Clients are keyed by remote address (the limiter runs before auth, so
// claims are not yet available). Limiter failures fail open: availability of
// the API is preferred over strict admission when the backing store is down.
func RateLimit(limiter RateLimiter, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientKey(r)

			allowed, retryAfter, err := limiter.Allow(r.Context(), key)
			if err != nil {
				logger.Warn("Rate limiter unavailable, admitting request",
					zap.String("client", key),
					zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			if !allowed {
				seconds := int(retryAfter.Seconds())
				if seconds < 1 {
					seconds = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(seconds))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]string{
					"error": "Too many requests",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientKey derives the rate limit key for a request: the remote IP without
// the ephemeral port.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
