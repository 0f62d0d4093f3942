package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/NguyenVoTheTuyen/legal-rag/internal/metrics"
)

// RateLimiter enforces a fixed per-minute window per client IP, counted in
// Redis so replicas share the budget. Redis trouble fails open.
type RateLimiter struct {
	redis             *redis.Client
	requestsPerMinute int
	logger            *zap.Logger
}

func NewRateLimiter(redisClient *redis.Client, requestsPerMinute int, logger *zap.Logger) *RateLimiter {
	return &RateLimiter{
		redis:             redisClient,
		requestsPerMinute: requestsPerMinute,
		logger:            logger,
	}
}

// Middleware returns the HTTP middleware function.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := fmt.Sprintf("ratelimit:ip:%s", clientIP(r))
		allowed, remaining, resetAt := rl.checkRateLimit(r.Context(), key)

		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", rl.requestsPerMinute))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))
		w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", resetAt.Unix()))

		if !allowed {
			rl.logger.Warn("Rate limit exceeded",
				zap.String("client_ip", clientIP(r)),
				zap.String("path", r.URL.Path),
			)
			metrics.RateLimitedRequests.Inc()
			w.Header().Set("Retry-After", fmt.Sprintf("%d", resetAt.Unix()-time.Now().Unix()))
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded, retry after the window resets")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// checkRateLimit counts the request against the current minute window.
func (rl *RateLimiter) checkRateLimit(ctx context.Context, key string) (allowed bool, remaining int, resetAt time.Time) {
	window := time.Now().Truncate(time.Minute)
	windowKey := fmt.Sprintf("%s:%d", key, window.Unix())

	pipe := rl.redis.Pipeline()
	incr := pipe.Incr(ctx, windowKey)
	pipe.Expire(ctx, windowKey, time.Minute+time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		rl.logger.Error("Rate limit check failed", zap.Error(err))
		// Fail open rather than reject traffic on a cache outage.
		return true, rl.requestsPerMinute, window.Add(time.Minute)
	}

	count := incr.Val()
	remaining = rl.requestsPerMinute - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return count <= int64(rl.requestsPerMinute), remaining, window.Add(time.Minute)
}
