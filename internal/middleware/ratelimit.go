package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// RateLimiter provides fixed-window rate limiting per client IP. It counts in Redis when
// available and falls back to in-process token buckets otherwise.
type RateLimiter struct {
	rdb       *redis.Client
	maxReqs   int
	windowSec int

	mu    sync.Mutex
	local map[string]*rate.Limiter
}

// NewRateLimiter creates a rate limiter. rdb may be nil.
func NewRateLimiter(rdb *redis.Client, maxReqs, windowSec int) *RateLimiter {
	return &RateLimiter{
		rdb:       rdb,
		maxReqs:   maxReqs,
		windowSec: windowSec,
		local:     make(map[string]*rate.Limiter),
	}
}

// Handler returns a Fiber middleware handler for rate limiting.
func (rl *RateLimiter) Handler() fiber.Handler {
	return func(c fiber.Ctx) error {
		ip := c.IP()
		c.Set("X-RateLimit-Limit", fmt.Sprintf("%d", rl.maxReqs))

		if rl.rdb == nil {
			if !rl.localLimiter(ip).Allow() {
				return tooManyRequests(c, rl.windowSec)
			}
			return c.Next()
		}

		key := fmt.Sprintf("ratelimit:%s", ip)
		ctx, cancel := context.WithTimeout(c.Context(), time.Second)
		defer cancel()

		count, err := rl.rdb.Incr(ctx, key).Result()
		if err != nil {
			// Fail open when Redis is unavailable.
			slog.Warn("rate limiter unavailable", "error", err)
			return c.Next()
		}
		if count == 1 {
			rl.rdb.Expire(ctx, key, time.Duration(rl.windowSec)*time.Second)
		}
		ttl, _ := rl.rdb.TTL(ctx, key).Result()

		c.Set("X-RateLimit-Remaining", fmt.Sprintf("%d", max(0, int64(rl.maxReqs)-count)))
		c.Set("X-RateLimit-Reset", fmt.Sprintf("%d", int(ttl.Seconds())))

		if int(count) > rl.maxReqs {
			return tooManyRequests(c, int(ttl.Seconds()))
		}
		return c.Next()
	}
}

func (rl *RateLimiter) localLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	l, ok := rl.local[key]
	if !ok {
		every := time.Duration(rl.windowSec) * time.Second / time.Duration(rl.maxReqs)
		l = rate.NewLimiter(rate.Every(every), rl.maxReqs)
		rl.local[key] = l
	}
	return l
}

func tooManyRequests(c fiber.Ctx, retryAfter int) error {
	return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
		"error":       "rate limit exceeded",
		"retry_after": retryAfter,
	})
}
