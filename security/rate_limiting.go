package security

import (
	"fmt"
	"net/http"
	"time"

	"github.com/pocketbase/pocketbase/core"
	"github.com/redis/go-redis/v9"
)

type RateLimiter struct {
	redis     *redis.Client
	perMinute int64
}

func NewRateLimiter(redisClient *redis.Client, perMinute int) *RateLimiter {
	return &RateLimiter{
		redis:     redisClient,
		perMinute: int64(perMinute),
	}
}

// GateRateLimit throttles gate endpoints per client IP. Scanner devices
// retry on flaky venue networks, so the ceiling is generous; redis errors
// fail open.
func (r *RateLimiter) GateRateLimit() func(e *core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		ctx := e.Request.Context()
		key := fmt.Sprintf("ratelimit:gate:%s", e.RealIP())

		count, err := r.redis.Incr(ctx, key).Result()
		if err == nil {
			if count == 1 {
				r.redis.Expire(ctx, key, time.Minute)
			}
			if count > r.perMinute {
				return e.JSON(http.StatusTooManyRequests, map[string]string{
					"error": "Too many requests. Please try again later.",
				})
			}
		}

		return e.Next()
	}
}
