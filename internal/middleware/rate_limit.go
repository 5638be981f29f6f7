package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"botdeck/backend/internal/util"
	"botdeck/backend/pkg/logger"
	"botdeck/backend/pkg/redis"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimiter middleware limits requests per window. With a Redis client the
// count is shared across instances; without one a per-process token bucket is used.
type RateLimiter struct {
	redis  *redis.Client
	limit  int
	window time.Duration
	action string

	mu    sync.Mutex
	local map[string]*rate.Limiter
	log   *logger.Logger
}

// NewRateLimiter creates a new rate limiter. redisClient may be nil.
func NewRateLimiter(redisClient *redis.Client, limit int, window time.Duration, action string) *RateLimiter {
	return &RateLimiter{
		redis:  redisClient,
		limit:  limit,
		window: window,
		action: action,
		local:  make(map[string]*rate.Limiter),
		log:    logger.GetLogger().WithComponent("rate_limit"),
	}
}

// Limit returns a middleware that limits requests
func (rl *RateLimiter) Limit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.limit <= 0 {
			c.Next()
			return
		}

		// Identify by user when authenticated, else by IP
		identifier := c.ClientIP()
		if userID := c.GetString("user_id"); userID != "" {
			identifier = fmt.Sprintf("user:%s", userID)
		}

		allowed, err := rl.allow(c.Request.Context(), identifier)
		if err != nil {
			// Fail open
			rl.log.Warnf("Rate limit check failed: %v", err)
			c.Next()
			return
		}

		if !allowed {
			util.AbortWithError(c, util.ErrRateLimit("Rate limit exceeded. Please try again later."))
			return
		}

		c.Next()
	}
}

func (rl *RateLimiter) allow(ctx context.Context, identifier string) (bool, error) {
	if rl.redis == nil {
		return rl.localLimiter(identifier).Allow(), nil
	}

	count, err := rl.redis.IncrWithExpire(ctx, redis.RateLimitKey(identifier, rl.action), rl.window)
	if err != nil {
		return false, err
	}
	return count <= int64(rl.limit), nil
}

func (rl *RateLimiter) localLimiter(identifier string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	l, ok := rl.local[identifier]
	if !ok {
		every := rl.window / time.Duration(rl.limit)
		l = rate.NewLimiter(rate.Every(every), rl.limit)
		rl.local[identifier] = l
	}
	return l
}

// RateLimit creates a rate limiting middleware with default settings
func RateLimit(redisClient *redis.Client, limit int) gin.HandlerFunc {
	return NewRateLimiter(redisClient, limit, time.Minute, "general").Limit()
}
