package middleware

import (
	"context"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	appErrors "github.com/noah-isme/provider-admission-api/pkg/errors"
	"github.com/noah-isme/provider-admission-api/pkg/response"
)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per caller. Authenticated callers are keyed by identity, others by client IP.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*limiterEntry
	rate     rate.Limit
	burst    int
	logger   *zap.Logger
	now      func() time.Time
}

// NewRateLimiter allows requestsPerMinute sustained requests with the given burst.
func NewRateLimiter(requestsPerMinute, burst int, logger *zap.Logger) *RateLimiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 6
	}
	if burst <= 0 {
		burst = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateLimiter{
		limiters: make(map[string]*limiterEntry),
		rate:     rate.Limit(float64(requestsPerMinute) / 60.0),
		burst:    burst,
		logger:   logger,
		now:      time.Now,
	}
}

func (rl *RateLimiter) limiterFor(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	entry, exists := rl.limiters[key]
	if !exists {
		entry = &limiterEntry{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.limiters[key] = entry
	}
	entry.lastSeen = rl.now()
	return entry.limiter
}

// Handler returns the gin middleware. Rejected requests get 429 with Retry-After.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		if claims, ok := CurrentClaims(c); ok && claims.Identity() != "" {
			key = "user:" + claims.Identity()
		}

		limiter := rl.limiterFor(key)
		reservation := limiter.ReserveN(rl.now(), 1)
		if !reservation.OK() {
			rl.reject(c, key, time.Minute)
			return
		}
		if delay := reservation.DelayFrom(rl.now()); delay > 0 {
			reservation.CancelAt(rl.now())
			rl.reject(c, key, delay)
			return
		}
		c.Next()
	}
}

func (rl *RateLimiter) reject(c *gin.Context, key string, retryAfter time.Duration) {
	seconds := int(math.Ceil(retryAfter.Seconds()))
	if seconds < 1 {
		seconds = 1
	}
	rl.logger.Warn("rate limit exceeded",
		zap.String("key", key),
		zap.String("path", c.FullPath()),
		zap.String("method", c.Request.Method))
	c.Header("Retry-After", strconv.Itoa(seconds))
	response.Error(c, appErrors.ErrTooManyRequests)
	c.Abort()
}

// Cleanup drops limiters idle for longer than maxIdle and returns how many were removed.
func (rl *RateLimiter) Cleanup(maxIdle time.Duration) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-maxIdle)
	removed := 0
	for key, entry := range rl.limiters {
		if entry.lastSeen.Before(cutoff) {
			delete(rl.limiters, key)
			removed++
		}
	}
	return removed
}

// StartCleanup runs Cleanup every interval until ctx is cancelled.
func (rl *RateLimiter) StartCleanup(ctx context.Context, interval, maxIdle time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rl.Cleanup(maxIdle)
			}
		}
	}()
}
