package middleware

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/playforge/api/internal/telemetry"
)

// Decision is the outcome of one rate limit check
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// Limiter decides whether a client key may make another request
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// defaultSweepEvery is how many Allow calls pass between idle-key sweeps
const defaultSweepEvery = 1024

// RateLimiter implements a token bucket per key in process memory. Keys whose
// bucket has been full for a whole refill period are dropped periodically; a
// dropped key starts again with a full bucket, so eviction never changes a
// decision.
type RateLimiter struct {
	mu           sync.Mutex
	tokens       map[string]int
	lastRefill   map[string]time.Time
	maxTokens    int
	refillRate   int           // tokens per refill
	refillPeriod time.Duration // how often to refill
	now          func() time.Time
	calls        int
	sweepEvery   int
}

// NewRateLimiter creates a token bucket limiter.
// maxTokens is the burst size; refillRate tokens are added every refillPeriod.
func NewRateLimiter(maxTokens, refillRate int, refillPeriod time.Duration) *RateLimiter {
	return &RateLimiter{
		tokens:       make(map[string]int),
		lastRefill:   make(map[string]time.Time),
		maxTokens:    maxTokens,
		refillRate:   refillRate,
		refillPeriod: refillPeriod,
		now:          time.Now,
		sweepEvery:   defaultSweepEvery,
	}
}

// NewPerMinuteLimiter allows perMinute requests per key, refilled one at a time
func NewPerMinuteLimiter(perMinute int) *RateLimiter {
	if perMinute <= 0 {
		perMinute = 1
	}
	return NewRateLimiter(perMinute, 1, time.Minute/time.Duration(perMinute))
}

// Allow takes one token for key
func (rl *RateLimiter) Allow(_ context.Context, key string) (Decision, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()

	rl.calls++
	if rl.sweepEvery > 0 && rl.calls%rl.sweepEvery == 0 {
		rl.evictIdle(now)
	}

	if _, exists := rl.tokens[key]; !exists {
		rl.tokens[key] = rl.maxTokens
		rl.lastRefill[key] = now
	}

	elapsed := now.Sub(rl.lastRefill[key])
	refills := int(elapsed / rl.refillPeriod)
	if refills > 0 {
		rl.tokens[key] += refills * rl.refillRate
		if rl.tokens[key] >= rl.maxTokens {
			rl.tokens[key] = rl.maxTokens
			rl.lastRefill[key] = now
		} else {
			rl.lastRefill[key] = rl.lastRefill[key].Add(time.Duration(refills) * rl.refillPeriod)
		}
	}

	d := Decision{Limit: rl.maxTokens}
	if rl.tokens[key] > 0 {
		rl.tokens[key]--
		d.Allowed = true
		d.Remaining = rl.tokens[key]
		return d, nil
	}

	d.RetryAfter = rl.refillPeriod - now.Sub(rl.lastRefill[key])
	return d, nil
}

// evictIdle drops keys that refilled to maxTokens at least one refill period
// before now. Callers hold rl.mu.
func (rl *RateLimiter) evictIdle(now time.Time) {
	for key, tokens := range rl.tokens {
		refills := int(now.Sub(rl.lastRefill[key]) / rl.refillPeriod)
		if refills < 1 {
			continue
		}
		if tokens+(refills-1)*rl.refillRate >= rl.maxTokens {
			delete(rl.tokens, key)
			delete(rl.lastRefill, key)
		}
	}
}

// RedisLimiter counts requests per key in fixed one-minute windows shared by
// every replica.
type RedisLimiter struct {
	client    redis.Cmdable
	limit     int
	window    time.Duration
	keyPrefix string
	now       func() time.Time
}

// NewRedisLimiter creates a limiter allowing perMinute requests per key
func NewRedisLimiter(client redis.Cmdable, perMinute int) *RedisLimiter {
	if perMinute <= 0 {
		perMinute = 1
	}
	return &RedisLimiter{
		client:    client,
		limit:     perMinute,
		window:    time.Minute,
		keyPrefix: "playforge:ratelimit:",
		now:       time.Now,
	}
}

// Allow increments the counter for key in the current window
func (rl *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	now := rl.now()
	windowStart := now.Truncate(rl.window)
	redisKey := rl.keyPrefix + key + ":" + strconv.FormatInt(windowStart.Unix(), 10)

	var incr *redis.IntCmd
	_, err := rl.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, redisKey)
		pipe.Expire(ctx, redisKey, rl.window)
		return nil
	})
	if err != nil {
		return Decision{Allowed: true, Limit: rl.limit}, err
	}

	count := int(incr.Val())
	d := Decision{Limit: rl.limit, Remaining: max(rl.limit-count, 0)}
	if count <= rl.limit {
		d.Allowed = true
		return d, nil
	}
	d.RetryAfter = windowStart.Add(rl.window).Sub(now)
	return d, nil
}

// RateLimitMiddleware limits requests per client IP. A limiter error lets the
// request through; a nil limiter disables limiting.
func RateLimitMiddleware(limiter Limiter, logger *zap.Logger, metrics *telemetry.Metrics) gin.HandlerFunc {
	if limiter == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		key := c.ClientIP()

		d, err := limiter.Allow(c.Request.Context(), key)
		if err != nil {
			logger.Warn("rate limiter unavailable, allowing request", zap.Error(err))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(d.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))

		if !d.Allowed {
			metrics.ObserveRateLimited()
			retry := d.RetryAfter.Milliseconds()
			if retry < 1 {
				retry = 1
			}
			c.Header("Retry-After", strconv.FormatInt((retry+999)/1000, 10))
			TooManyRequests(c, retry)
			return
		}

		c.Next()
	}
}
