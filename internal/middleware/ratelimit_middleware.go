package middleware

import (
	"fmt"
	"time"

	"github.com/ciptatunaskarya/ppdb-backend/internal/errors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// RateLimiter is a fixed-window per-IP limiter backed by Redis. It protects
// the public status-check endpoint from being used to enumerate applicants.
type RateLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
	prefix string
}

func NewRateLimiter(client *redis.Client, prefix string, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		client: client,
		limit:  limit,
		window: window,
		prefix: prefix,
	}
}

// Limit counts requests per client IP per window. When Redis is unreachable
// the limiter fails open: availability of the public flow wins over strict
// limiting.
func (r *RateLimiter) Limit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if r.client == nil {
			c.Next()
			return
		}

		log := GetLoggerFromContext(c)
		ctx := c.Request.Context()

		key := fmt.Sprintf("ratelimit:%s:%s:%d",
			r.prefix, c.ClientIP(), time.Now().Unix()/int64(r.window.Seconds()))

		count, err := r.client.Incr(ctx, key).Result()
		if err != nil {
			log.Warn("Rate limiter unavailable, failing open", map[string]interface{}{
				"error": err.Error(),
			})
			c.Next()
			return
		}
		if count == 1 {
			r.client.Expire(ctx, key, r.window)
		}

		if count > int64(r.limit) {
			log.Warn("Rate limit exceeded", map[string]interface{}{
				"ip":    c.ClientIP(),
				"count": count,
			})
			errors.TooManyRequests(c, "")
			c.Abort()
			return
		}

		c.Next()
	}
}
