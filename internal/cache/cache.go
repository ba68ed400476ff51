// Package cache memoizes aggregation results for a fixed TTL. Entries carry
// their computation time so callers can report how stale a response is.
// Nothing invalidates an entry except age.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"github.com/harberts01/Ai-Blog/internal/logging"
	"github.com/harberts01/Ai-Blog/internal/metrics"
)

// DefaultTTL is the result cache window.
const DefaultTTL = 10 * time.Minute

// Entry is a cached value with the instant it was computed.
type Entry[T any] struct {
	Data       T         `json:"data"`
	ComputedAt time.Time `json:"computedAt"`
}

// Age returns how long ago the entry was computed.
func (e Entry[T]) Age(now time.Time) time.Duration {
	return now.Sub(e.ComputedAt)
}

// AgeSeconds returns Age truncated to whole seconds.
func (e Entry[T]) AgeSeconds(now time.Time) int {
	return int(e.Age(now) / time.Second)
}

// Key identifies one cache entry.
type Key struct {
	Endpoint string
	Category string
	Window   string
}

func (k Key) String() string {
	return fmt.Sprintf("results:%s:%s:%s", k.Endpoint, k.Category, k.Window)
}

// Store is the byte-level backend. Get reports ok == false on a miss.
type Store interface {
	Get(ctx context.Context, key string) (val []byte, ok bool, err error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
}

// Cache binds a Store to a clock and TTL.
type Cache struct {
	store Store
	clock clockwork.Clock
	ttl   time.Duration
	group singleflight.Group
}

// New returns a Cache. A zero ttl selects DefaultTTL.
func New(store Store, clock clockwork.Clock, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Cache{store: store, clock: clock, ttl: ttl}
}

// TTL returns the configured window.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Now returns the cache clock's current time.
func (c *Cache) Now() time.Time {
	return c.clock.Now()
}

// GetOrCompute returns the entry for key if it is younger than the TTL, and
// otherwise runs fn and stores its result. Concurrent misses on one key share
// a single fn call. cached reports whether the entry came from the store.
func GetOrCompute[T any](ctx context.Context, c *Cache, key Key, fn func(ctx context.Context) (T, error)) (entry Entry[T], cached bool, err error) {
	k := key.String()

	if e, ok := lookup[T](ctx, c, k); ok {
		metrics.CacheHits.WithLabelValues(key.Endpoint).Inc()
		return e, true, nil
	}
	metrics.CacheMisses.WithLabelValues(key.Endpoint).Inc()

	v, err, _ := c.group.Do(k, func() (any, error) {
		// The result is shared, so one caller hanging up must not fail the rest.
		ctx := context.WithoutCancel(ctx)

		// Another caller may have filled the entry while we waited.
		if e, ok := lookup[T](ctx, c, k); ok {
			return e, nil
		}

		start := c.clock.Now()
		data, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		metrics.AggregationDuration.WithLabelValues(key.Endpoint).Observe(c.clock.Since(start).Seconds())

		e := Entry[T]{Data: data, ComputedAt: c.clock.Now()}
		if b, err := json.Marshal(e); err != nil {
			logging.Logger.Warn().Err(err).Str("key", k).Msg("cache: encode entry")
		} else if err := c.store.Set(ctx, k, b, c.ttl); err != nil {
			logging.Logger.Warn().Err(err).Str("key", k).Msg("cache: store entry")
		}
		return e, nil
	})
	if err != nil {
		return Entry[T]{}, false, err
	}
	return v.(Entry[T]), false, nil
}

func lookup[T any](ctx context.Context, c *Cache, k string) (Entry[T], bool) {
	b, ok, err := c.store.Get(ctx, k)
	if err != nil {
		logging.Logger.Warn().Err(err).Str("key", k).Msg("cache: read entry")
		return Entry[T]{}, false
	}
	if !ok {
		return Entry[T]{}, false
	}
	var e Entry[T]
	if err := json.Unmarshal(b, &e); err != nil {
		return Entry[T]{}, false
	}
	if e.Age(c.clock.Now()) >= c.ttl {
		return Entry[T]{}, false
	}
	return e, true
}
