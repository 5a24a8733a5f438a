package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reviewdeck/internal/models"
)

// limitedApp mounts a single limited route. The operator identity comes from
// the X-Operator header so tests can impersonate different reviewers.
func limitedApp(rdb *redis.Client, limit int, window time.Duration, policy FailPolicy) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		if op := c.Get("X-Operator"); op != "" {
			c.Locals("operator", op)
		}
		return c.Next()
	})
	app.Post("/trigger", RateLimitWithPolicy(rdb, limit, window, policy, "trigger"),
		func(c *fiber.Ctx) error {
			return c.SendStatus(fiber.StatusAccepted)
		})
	return app
}

func doTrigger(t *testing.T, app *fiber.App, operator string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/trigger", nil)
	if operator != "" {
		req.Header.Set("X-Operator", operator)
	}
	resp, err := app.Test(req, 10000)
	require.NoError(t, err)
	return resp
}

func decodeErrorResponse(t *testing.T, resp *http.Response) models.ErrorResponse {
	t.Helper()
	var body models.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

// Not parallel: overrides APP_ENV, which the limiter reads per request.
func TestRateLimit_EnforcesWindowPerOperator(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	app := limitedApp(rdb, 2, time.Minute, FailOpen)

	for i := 0; i < 2; i++ {
		resp := doTrigger(t, app, "alice")
		assert.Equal(t, fiber.StatusAccepted, resp.StatusCode)
	}

	resp := doTrigger(t, app, "alice")
	require.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "RATE_LIMITED", decodeErrorResponse(t, resp).Code)

	secs, err := strconv.Atoi(resp.Header.Get(fiber.HeaderRetryAfter))
	require.NoError(t, err)
	assert.Greater(t, secs, 0, "rejections must tell clients how long to back off")
	assert.LessOrEqual(t, secs, 60)

	// Another operator's budget is untouched.
	resp = doTrigger(t, app, "bob")
	assert.Equal(t, fiber.StatusAccepted, resp.StatusCode)

	// The window expires and the first operator is allowed again.
	mr.FastForward(61 * time.Second)
	resp = doTrigger(t, app, "alice")
	assert.Equal(t, fiber.StatusAccepted, resp.StatusCode)
}

func TestRateLimit_FailOpenOnStoreOutage(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	mr.Close()

	app := limitedApp(rdb, 1, time.Minute, FailOpen)
	resp := doTrigger(t, app, "alice")
	assert.Equal(t, fiber.StatusAccepted, resp.StatusCode)
}

func TestRateLimit_FailClosedOnStoreOutage(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	mr.Close()

	app := limitedApp(rdb, 1, time.Minute, FailClosed)
	resp := doTrigger(t, app, "alice")
	require.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "UNAVAILABLE", decodeErrorResponse(t, resp).Code)
}

func TestRateLimit_DisabledOutsideProduction(t *testing.T) {
	t.Setenv("APP_ENV", "development")

	// No Redis at all: local workflows must never be throttled.
	app := limitedApp(nil, 1, time.Minute, FailClosed)
	for i := 0; i < 5; i++ {
		resp := doTrigger(t, app, "alice")
		assert.Equal(t, fiber.StatusAccepted, resp.StatusCode)
	}
}
