package middleware

import (
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

func TestRateLimitBlocksAfterLimitAndResets(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer cache.Close()

	app := fiber.New()
	app.Post("/repair", RateLimit(cache, "repair", 2), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	statuses := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		resp, err := app.Test(httptest.NewRequest(fiber.MethodPost, "/repair", nil))
		if err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
		statuses = append(statuses, resp.StatusCode)
		if resp.StatusCode == fiber.StatusTooManyRequests && resp.Header.Get(fiber.HeaderRetryAfter) == "" {
			t.Fatalf("expected Retry-After header on throttled response")
		}
	}
	if statuses[0] != fiber.StatusOK || statuses[1] != fiber.StatusOK || statuses[2] != fiber.StatusTooManyRequests {
		t.Fatalf("unexpected statuses %v", statuses)
	}

	mr.FastForward(61 * time.Second)
	resp, err := app.Test(httptest.NewRequest(fiber.MethodPost, "/repair", nil))
	if err != nil {
		t.Fatalf("request after window: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected window to reset, got %d", resp.StatusCode)
	}
}

func TestRateLimitWithoutRedisIsNoop(t *testing.T) {
	app := fiber.New()
	app.Post("/self-test", RateLimit(nil, "self-test", 1), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	for i := 0; i < 3; i++ {
		resp, err := app.Test(httptest.NewRequest(fiber.MethodPost, "/self-test", nil))
		if err != nil || resp.StatusCode != fiber.StatusOK {
			t.Fatalf("request %d: status %v err %v", i, resp, err)
		}
	}
}
