package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"reviewdeck/internal/models"
)

// FailPolicy defines what happens to a limited route when the limit store
// (Redis) is unavailable.
type FailPolicy int

const (
	// FailOpen lets the request through when Redis is unavailable.
	FailOpen FailPolicy = iota
	// FailClosed rejects the request (503) when Redis is unavailable.
	FailClosed
)

// CheckRateLimit counts a hit against the fixed window for resource/id and
// reports whether it fits under limit. On rejection retryAfter carries the
// remaining window so clients back off instead of hammering the route.
// Disabled when APP_ENV is "test" or "development" so local review workflows
// are never throttled.
func CheckRateLimit(ctx context.Context, rdb *redis.Client, resource, id string, limit int, window time.Duration) (allowed bool, retryAfter time.Duration, err error) {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	switch env {
	case "test", "development":
		return true, 0, nil
	}

	if rdb == nil {
		return false, 0, fmt.Errorf("redis client is nil")
	}

	key := fmt.Sprintf("rl:%s:%s", resource, id)

	cnt, err := rdb.Incr(ctx, key).Result()
	if err != nil {
		RedisErrors.WithLabelValues("ratelimit").Inc()
		return false, 0, err
	}
	if cnt == 1 {
		// First hit opens the window.
		if err := rdb.Expire(ctx, key, window).Err(); err != nil {
			RedisErrors.WithLabelValues("ratelimit").Inc()
		}
	}
	if cnt <= int64(limit) {
		return true, 0, nil
	}

	retryAfter = window
	if ttl, err := rdb.TTL(ctx, key).Result(); err == nil && ttl > 0 {
		retryAfter = ttl
	}
	return false, retryAfter, nil
}

// RateLimit returns a Fiber middleware enforcing `limit` requests per
// `window` with the FailOpen policy. The counter is keyed by the
// authenticated operator when the auth middleware already ran, otherwise by
// remote IP, so one operator exhausting a budget (e.g. the scrape trigger)
// does not lock out the rest of the review floor.
func RateLimit(rdb *redis.Client, limit int, window time.Duration, name ...string) fiber.Handler {
	return RateLimitWithPolicy(rdb, limit, window, FailOpen, name...)
}

// RateLimitWithPolicy is RateLimit with an explicit behavior for Redis
// outages. The optional name overrides the request path as the counter's
// resource identifier.
func RateLimitWithPolicy(rdb *redis.Client, limit int, window time.Duration, policy FailPolicy, name ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := "ip:" + c.IP()
		if op, ok := c.Locals("operator").(string); ok && op != "" {
			id = "operator:" + op
		}

		resource := c.Path()
		if len(name) > 0 {
			resource = name[0]
		}

		allowed, retryAfter, err := CheckRateLimit(c.UserContext(), rdb, resource, id, limit, window)
		if err != nil {
			if policy == FailClosed {
				Logger.WarnContext(c.UserContext(), "rate limit store unavailable, failing closed",
					slog.String("resource", resource),
					slog.String("error", err.Error()))
				return models.RespondWithError(c, fiber.StatusServiceUnavailable,
					models.NewUnavailableError("rate limiter", err))
			}
			Logger.WarnContext(c.UserContext(), "rate limit store unavailable, failing open",
				slog.String("resource", resource),
				slog.String("error", err.Error()))
			return c.Next()
		}

		if !allowed {
			secs := int((retryAfter + time.Second - 1) / time.Second)
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(secs))
			return models.RespondWithError(c, fiber.StatusTooManyRequests,
				models.NewRateLimitedError(resource, retryAfter))
		}
		return c.Next()
	}
}
