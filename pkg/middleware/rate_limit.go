package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aulavirtual/lms-server-go/pkg/apperrors"
	"github.com/aulavirtual/lms-server-go/pkg/cache"
	"github.com/aulavirtual/lms-server-go/pkg/response"
)

// RateLimiter is a fixed-window limiter keyed by client IP. Counters live in
// the shared cache so several API instances enforce one budget.
type RateLimiter struct {
	store    cache.Client
	logger   *slog.Logger
	rate     int
	duration time.Duration
	prefix   string
}

// NewRateLimiter allows rate requests per duration for each client.
func NewRateLimiter(store cache.Client, logger *slog.Logger, rate int, duration time.Duration, prefix string) *RateLimiter {
	if prefix == "" {
		prefix = "rl"
	}
	return &RateLimiter{
		store:    store,
		logger:   logger,
		rate:     rate,
		duration: duration,
		prefix:   prefix,
	}
}

// Middleware returns a Gin middleware that enforces rate limiting.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.rate <= 0 {
			c.Next()
			return
		}

		allowed, remaining, err := rl.allow(c.Request.Context(), c.ClientIP())
		if err != nil {
			// The limiter fails open when the cache is unreachable.
			rl.logger.WarnContext(c.Request.Context(), "rate limiter unavailable", slog.String("error", err.Error()))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		if !allowed {
			c.Header("Retry-After", strconv.Itoa(int(rl.duration.Seconds())))
			response.Error(c, http.StatusTooManyRequests, "Too many requests. Please try again later.", response.ErrorBody{Code: apperrors.ErrTooMany})
			c.Abort()
			return
		}

		c.Next()
	}
}

func (rl *RateLimiter) allow(ctx context.Context, clientKey string) (bool, int, error) {
	window := time.Now().UnixNano() / int64(rl.duration)
	key := fmt.Sprintf("%s:%s:%d", rl.prefix, clientKey, window)

	count, err := rl.store.Increment(ctx, key)
	if err != nil {
		return false, 0, err
	}
	if count == 1 {
		if err := rl.store.Expire(ctx, key, rl.duration); err != nil {
			return false, 0, err
		}
	}

	remaining := rl.rate - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return count <= int64(rl.rate), remaining, nil
}
