package middleware

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"

	"github.com/harberts01/Ai-Blog/internal/logging"
)

// WindowCounter counts hits per key in fixed windows. The first hit on a key
// opens its window.
type WindowCounter interface {
	Hit(ctx context.Context, key string, window time.Duration) (count int, resetAt time.Time, err error)
}

// RateLimitConfig defines the limit for a route or group.
type RateLimitConfig struct {
	Name    string                   // Prefix that keeps limiter keys apart in a shared counter
	Max     int                      // Maximum requests allowed in the window
	Window  time.Duration            // Time window for the limit
	KeyFn   func(c fiber.Ctx) string // Returns the key to rate limit on (IP, user id)
	Counter WindowCounter            // Defaults to a MemoryCounter
	Clock   clockwork.Clock          // Defaults to the real clock
}

// RateLimiter is a fixed-window rate limiter over a WindowCounter.
type RateLimiter struct {
	config  RateLimitConfig
	counter WindowCounter
	clock   clockwork.Clock
}

// NewRateLimiter creates a rate limiter with the given config.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	counter := cfg.Counter
	if counter == nil {
		counter = NewMemoryCounter(clock)
	}
	return &RateLimiter{config: cfg, counter: counter, clock: clock}
}

// Handler returns a Fiber middleware handler that enforces the rate limit.
// Counter failures let the request through.
func (rl *RateLimiter) Handler() fiber.Handler {
	return func(c fiber.Ctx) error {
		allowed, remaining, resetAt, err := rl.take(c.Context(), rl.config.KeyFn(c))
		if err != nil {
			logging.Component("ratelimit").Warn().Err(err).Str("limiter", rl.config.Name).Msg("counter unavailable, allowing request")
			return c.Next()
		}
		setRateLimitHeaders(c, rl.config.Max, remaining, resetAt)

		if !allowed {
			retryAfter := int(resetAt.Sub(rl.clock.Now()).Seconds()) + 1
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(retryAfter))
			return ErrorResponseWithDetails(c, fiber.StatusTooManyRequests, "RATE_LIMITED",
				fmt.Sprintf("Too many requests. Try again in %d seconds.", retryAfter),
				map[string]any{"retryAfter": retryAfter})
		}
		return c.Next()
	}
}

// Allow reports whether one more request under key fits in the window.
func (rl *RateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	allowed, _, _, err := rl.take(ctx, key)
	return allowed, err
}

func (rl *RateLimiter) take(ctx context.Context, key string) (allowed bool, remaining int, resetAt time.Time, err error) {
	count, resetAt, err := rl.counter.Hit(ctx, rl.config.Name+":"+key, rl.config.Window)
	if err != nil {
		return false, 0, time.Time{}, err
	}
	remaining = rl.config.Max - count
	return remaining >= 0, max(remaining, 0), resetAt, nil
}

func setRateLimitHeaders(c fiber.Ctx, limit, remaining int, resetAt time.Time) {
	c.Set("X-RateLimit-Limit", strconv.Itoa(limit))
	c.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	c.Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))
}

type window struct {
	count int
	end   time.Time
}

// MemoryCounter keeps windows in process. Expired windows are swept every
// five minutes.
type MemoryCounter struct {
	mu      sync.Mutex
	windows map[string]*window
	clock   clockwork.Clock
}

func NewMemoryCounter(clock clockwork.Clock) *MemoryCounter {
	mc := &MemoryCounter{windows: make(map[string]*window), clock: clock}
	go mc.sweep()
	return mc
}

func (mc *MemoryCounter) Hit(_ context.Context, key string, d time.Duration) (int, time.Time, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	now := mc.clock.Now()
	w, ok := mc.windows[key]
	if !ok || !now.Before(w.end) {
		w = &window{end: now.Add(d)}
		mc.windows[key] = w
	}
	w.count++
	return w.count, w.end, nil
}

func (mc *MemoryCounter) sweep() {
	ticker := mc.clock.NewTicker(5 * time.Minute)
	for range ticker.Chan() {
		mc.mu.Lock()
		now := mc.clock.Now()
		for key, w := range mc.windows {
			if !now.Before(w.end) {
				delete(mc.windows, key)
			}
		}
		mc.mu.Unlock()
	}
}

// RedisCounter shares windows across API instances. The key's TTL is the
// window, set only by the hit that creates it.
type RedisCounter struct {
	rdb    *redis.Client
	prefix string
	clock  clockwork.Clock
}

func NewRedisCounter(rdb *redis.Client, prefix string, clock clockwork.Clock) *RedisCounter {
	return &RedisCounter{rdb: rdb, prefix: prefix, clock: clock}
}

func (rc *RedisCounter) Hit(ctx context.Context, key string, d time.Duration) (int, time.Time, error) {
	k := rc.prefix + key

	pipe := rc.rdb.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pipe.ExpireNX(ctx, k, d)
	ttl := pipe.PTTL(ctx, k)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, time.Time{}, fmt.Errorf("rate counter: %w", err)
	}

	left := ttl.Val()
	if left <= 0 {
		left = d
	}
	return int(incr.Val()), rc.clock.Now().Add(left), nil
}

// KeyByIP returns the client IP as the rate limit key.
func KeyByIP(c fiber.Ctx) string {
	return "ip:" + c.IP()
}

// KeyByUserID keys on the resolved identity, falling back to IP for
// anonymous callers. It must run after NewIdentity.
func KeyByUserID(c fiber.Ctx) string {
	if ident := IdentityFrom(c); !ident.Anonymous() {
		return "user:" + strconv.FormatInt(ident.UserID, 10)
	}
	return KeyByIP(c)
}

// --- Pre-configured rate limiters matching the API contract ---

// NewVoteRateLimiter: perMinute req/min per user on vote writes.
func NewVoteRateLimiter(perMinute int, counter WindowCounter) *RateLimiter {
	if perMinute <= 0 {
		perMinute = 30
	}
	return NewRateLimiter(RateLimitConfig{
		Name:    "vote",
		Max:     perMinute,
		Window:  time.Minute,
		KeyFn:   KeyByUserID,
		Counter: counter,
	})
}

// NewReadRateLimiter: 100 req/min per IP on public reads.
func NewReadRateLimiter(counter WindowCounter) *RateLimiter {
	return NewRateLimiter(RateLimitConfig{
		Name:    "read",
		Max:     100,
		Window:  time.Minute,
		KeyFn:   KeyByIP,
		Counter: counter,
	})
}

// NewAdminRateLimiter: 10 req/min per IP on admin writes.
func NewAdminRateLimiter(counter WindowCounter) *RateLimiter {
	return NewRateLimiter(RateLimitConfig{
		Name:    "admin",
		Max:     10,
		Window:  time.Minute,
		KeyFn:   KeyByIP,
		Counter: counter,
	})
}
