package middleware

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const visitorIdleTTL = 10 * time.Minute

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter keeps one token bucket per client key. Idle buckets are
// swept on access, so no background goroutine is needed.
type IPRateLimiter struct {
	limit     rate.Limit
	burst     int
	mu        sync.Mutex
	visitors  map[string]*visitor
	lastSweep time.Time
	now       func() time.Time
}

func NewIPRateLimiter(r rate.Limit, b int) *IPRateLimiter {
	return &IPRateLimiter{
		limit:    r,
		burst:    b,
		visitors: make(map[string]*visitor),
		now:      time.Now,
	}
}

func (l *IPRateLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) > visitorIdleTTL {
		for k, v := range l.visitors {
			if now.Sub(v.lastSeen) > visitorIdleTTL {
				delete(l.visitors, k)
			}
		}
		l.lastSweep = now
	}

	v, exists := l.visitors[key]
	if !exists {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[key] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

func (l *IPRateLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.visitors)
}

func (l *IPRateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.Allow(c.ClientIP()) {
			retryAfter := 1
			if l.limit > 0 {
				retryAfter = int(math.Ceil(1 / float64(l.limit)))
			}
			abortRateLimited(c, retryAfter)
			return
		}
		c.Next()
	}
}

// RateLimiter limits each client IP to r requests per second with burst b.
func RateLimiter(r rate.Limit, b int) gin.HandlerFunc {
	return NewIPRateLimiter(r, b).Middleware()
}

func abortRateLimited(c *gin.Context, retryAfter int) {
	c.Header("Retry-After", strconv.Itoa(retryAfter))
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
		"error":   "rate_limited",
		"message": "too many requests",
	})
}

type RateLimit struct {
	Rate    int
	Window  time.Duration
	KeyFunc func(*gin.Context) string
	OnLimit func(*gin.Context)
}

// DistributedRateLimiter is a sliding-window limiter shared by every
// instance through redis. When redis misbehaves the breaker opens and
// requests are let through.
type DistributedRateLimiter struct {
	redis   *redis.Client
	breaker *CircuitBreaker
	limits  map[string]*RateLimit
	mu      sync.RWMutex
}

func NewDistributedRateLimiter(redisClient *redis.Client, breaker *CircuitBreaker) *DistributedRateLimiter {
	if breaker == nil {
		breaker = NewCircuitBreaker(5, 30*time.Second)
	}
	return &DistributedRateLimiter{
		redis:   redisClient,
		breaker: breaker,
		limits:  make(map[string]*RateLimit),
	}
}

func (rl *DistributedRateLimiter) CreateMiddleware(name string, limit *RateLimit) gin.HandlerFunc {
	rl.mu.Lock()
	rl.limits[name] = limit
	rl.mu.Unlock()

	keyFunc := limit.KeyFunc
	if keyFunc == nil {
		keyFunc = IPKeyFunc
	}

	return func(c *gin.Context) {
		key := fmt.Sprintf("rate_limit:%s:%s", name, keyFunc(c))

		var count int64
		err := rl.breaker.Call(func() error {
			var err error
			count, err = rl.checkLimit(c.Request.Context(), key, limit.Window)
			return err
		})
		if err != nil {
			log.Warnf("⚠️  Rate limiter %s unavailable, allowing request: %v", name, err)
			c.Header("X-RateLimit-Error", "true")
			c.Next()
			return
		}

		remaining := int64(limit.Rate) - count - 1
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(limit.Rate))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if count >= int64(limit.Rate) {
			if limit.OnLimit != nil {
				limit.OnLimit(c)
				c.Abort()
				return
			}
			abortRateLimited(c, int(math.Ceil(limit.Window.Seconds())))
			return
		}

		c.Next()
	}
}

// checkLimit records one hit under key and returns how many hits preceded it
// inside the window.
func (rl *DistributedRateLimiter) checkLimit(ctx context.Context, key string, window time.Duration) (int64, error) {
	now := time.Now().UnixNano()
	windowStart := now - window.Nanoseconds()

	pipe := rl.redis.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(windowStart, 10))
	countCmd := pipe.ZCard(ctx, key)
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now), Member: uuid.Must(uuid.NewV4()).String()})
	pipe.Expire(ctx, key, window)

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to execute rate limit pipeline: %w", err)
	}
	return countCmd.Val(), nil
}

func IPKeyFunc(c *gin.Context) string {
	return c.ClientIP()
}
