package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/jonboulle/clockwork"
)

type freeUsers struct{}

func (freeUsers) IsPremium(context.Context, int64) (bool, error) { return false, nil }

func hits(t *testing.T, rl *RateLimiter, key string, n int) (allowed int) {
	t.Helper()
	for range n {
		ok, err := rl.Allow(context.Background(), key)
		if err != nil {
			t.Fatalf("allow: %v", err)
		}
		if ok {
			allowed++
		}
	}
	return allowed
}

func TestRateLimiter_BlocksAfterMax(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{Name: "t", Max: 3, Window: time.Minute, KeyFn: KeyByIP})

	if got := hits(t, rl, "ip:1", 5); got != 3 {
		t.Fatalf("allowed %d of 5, want 3", got)
	}
}

func TestRateLimiter_KeysAndNamesIndependent(t *testing.T) {
	counter := NewMemoryCounter(clockwork.NewFakeClock())
	votes := NewRateLimiter(RateLimitConfig{Name: "vote", Max: 2, Window: time.Minute, Counter: counter})
	reads := NewRateLimiter(RateLimitConfig{Name: "read", Max: 2, Window: time.Minute, Counter: counter})

	hits(t, votes, "user:1", 2)

	if got := hits(t, votes, "user:1", 1); got != 0 {
		t.Fatal("user:1 should be exhausted")
	}
	if got := hits(t, votes, "user:2", 1); got != 1 {
		t.Fatal("user:2 should be allowed (independent key)")
	}
	if got := hits(t, reads, "user:1", 1); got != 1 {
		t.Fatal("a second limiter sharing the counter should not see vote hits")
	}
}

func TestRateLimiter_WindowResets(t *testing.T) {
	clock := clockwork.NewFakeClock()
	rl := NewRateLimiter(RateLimitConfig{Name: "t", Max: 2, Window: time.Minute, Clock: clock})

	hits(t, rl, "k", 2)
	if hits(t, rl, "k", 1) != 0 {
		t.Fatal("should be blocked within window")
	}

	clock.Advance(59 * time.Second)
	if hits(t, rl, "k", 1) != 0 {
		t.Fatal("window should still be open at 59s")
	}

	clock.Advance(time.Second)
	if hits(t, rl, "k", 1) != 1 {
		t.Fatal("should be allowed after window reset")
	}
}

func TestRateLimiter_Presets(t *testing.T) {
	tests := []struct {
		name string
		rl   *RateLimiter
		want int
	}{
		{"vote configured", NewVoteRateLimiter(5, nil), 5},
		{"vote default", NewVoteRateLimiter(0, nil), 30},
		{"read", NewReadRateLimiter(nil), 100},
		{"admin", NewAdminRateLimiter(nil), 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := hits(t, tt.rl, "ip:127.0.0.1", tt.want+1); got != tt.want {
				t.Fatalf("allowed %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRateLimiter_HandlerKeysOnIdentity(t *testing.T) {
	clock := clockwork.NewFakeClock()
	rl := NewRateLimiter(RateLimitConfig{
		Name: "vote", Max: 1, Window: time.Minute, KeyFn: KeyByUserID, Clock: clock,
	})

	app := fiber.New()
	app.Use(NewIdentity(freeUsers{}))
	app.Post("/votes", rl.Handler(), func(c fiber.Ctx) error {
		return c.SendStatus(fiber.StatusCreated)
	})

	post := func(userID string) *http.Response {
		req := httptest.NewRequest(fiber.MethodPost, "/votes", nil)
		if userID != "" {
			req.Header.Set(UserIDHeader, userID)
		}
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("request: %v", err)
		}
		return resp
	}

	if resp := post("7"); resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("first vote: got %d", resp.StatusCode)
	}

	resp := post("7")
	if resp.StatusCode != fiber.StatusTooManyRequests {
		t.Fatalf("second vote: got %d, want 429", resp.StatusCode)
	}
	if got := resp.Header.Get("Retry-After"); got != "61" {
		t.Errorf("Retry-After = %q, want 61", got)
	}
	if got := resp.Header.Get("X-RateLimit-Remaining"); got != "0" {
		t.Errorf("X-RateLimit-Remaining = %q, want 0", got)
	}

	if resp := post("8"); resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("other user: got %d", resp.StatusCode)
	}
}
