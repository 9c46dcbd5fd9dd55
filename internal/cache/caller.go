package cache

import (
	"context"
	"encoding/json"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Iron-Ham/basecamp/internal/errors"
	"github.com/Iron-Ham/basecamp/internal/event"
	"github.com/Iron-Ham/basecamp/internal/logging"
	"github.com/Iron-Ham/basecamp/internal/ratelimit"
)

// DefaultCallTimeout bounds a shared tool invocation.
const DefaultCallTimeout = 60 * time.Second

// Thunk performs the underlying tool call.
type Thunk func(ctx context.Context) (json.RawMessage, error)

// Caller wraps tool calls with the cache and the rate limiter.
//
// For each call it checks the cache; on a miss it waits for a rate-limit
// slot, invokes the thunk and caches a successful result. A failure that
// looks like a rate limit locks the endpoint before the error is returned
// unchanged. Concurrent misses on the same key share one invocation, which
// runs detached from any single caller's context; each caller still stops
// waiting when its own context ends.
type Caller struct {
	cache   *Cache
	limiter *ratelimit.Limiter
	group   singleflight.Group
	logger  *logging.Logger
	bus     *event.Bus
	timeout time.Duration
}

// NewCaller creates a Caller. A nil cache disables caching and a nil
// limiter disables pacing.
func NewCaller(cache *Cache, limiter *ratelimit.Limiter, logger *logging.Logger, bus *event.Bus) *Caller {
	return &Caller{
		cache:   cache,
		limiter: limiter,
		logger:  logging.OrNop(logger),
		bus:     bus,
		timeout: DefaultCallTimeout,
	}
}

// Call runs fn for endpoint and params through the cache. ttl <= 0 uses the
// cache default.
func (c *Caller) Call(ctx context.Context, endpoint string, params map[string]any, ttl time.Duration, fn Thunk) (json.RawMessage, error) {
	key := Key(endpoint, params)

	if c.cache != nil {
		if v, ok := c.cache.Get(key); ok {
			c.bus.Publish(event.NewCacheLookupEvent(endpoint, true))
			c.logger.Debug("cache hit", "endpoint", endpoint)
			return v.(json.RawMessage), nil
		}
		c.bus.Publish(event.NewCacheLookupEvent(endpoint, false))
	}

	ch := c.group.DoChan(key, func() (any, error) {
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		return c.invoke(callCtx, key, endpoint, ttl, fn)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Shared {
			c.logger.Debug("collapsed concurrent tool call", "endpoint", endpoint)
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(json.RawMessage), nil
	}
}

func (c *Caller) invoke(ctx context.Context, key, endpoint string, ttl time.Duration, fn Thunk) (json.RawMessage, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, endpoint); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	out, err := fn(ctx)
	if err != nil {
		if errors.IsRateLimit(err) && c.limiter != nil {
			c.limiter.RecordRateLimitHit(endpoint)
		}
		c.logger.Warn("tool call failed",
			"endpoint", endpoint,
			"error", err.Error(),
			"duration_ms", time.Since(start).Milliseconds())
		return nil, err
	}

	if c.cache != nil {
		c.cache.Set(key, out, ttl)
	}
	c.logger.Debug("tool call succeeded", "endpoint", endpoint, "duration_ms", time.Since(start).Milliseconds())
	return out, nil
}

// Cache returns the underlying cache, which may be nil.
func (c *Caller) Cache() *Cache {
	return c.cache
}

// Limiter returns the underlying limiter, which may be nil.
func (c *Caller) Limiter() *ratelimit.Limiter {
	return c.limiter
}
