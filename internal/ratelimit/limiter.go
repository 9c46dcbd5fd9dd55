// Package ratelimit paces outbound tool calls per endpoint.
//
// Each endpoint tracks the timestamps of its recent calls and enforces up
// to three sliding windows (second, minute, hour). A call proceeds only
// when every configured window has headroom; otherwise Wait blocks until
// the oldest call inside the full window ages out. An endpoint can also be
// locked for a cooldown after a downstream rate-limit error, during which
// callers wait out the lockout before re-checking their windows.
//
// Endpoints are locked individually, so calls to different endpoints
// never contend.
package ratelimit

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Iron-Ham/basecamp/internal/config"
	"github.com/Iron-Ham/basecamp/internal/errors"
	"github.com/Iron-Ham/basecamp/internal/event"
	"github.com/Iron-Ham/basecamp/internal/logging"
)

// DefaultEndpoint is the limits key used for endpoints without their own entry.
const DefaultEndpoint = "default"

// DefaultLockout is applied by RecordRateLimitHit when no cooldown is configured.
const DefaultLockout = 60 * time.Second

// Limits holds the per-window budgets for one endpoint. Zero disables a window.
type Limits struct {
	PerSecond int
	PerMinute int
	PerHour   int
}

// window pairs a budget with its span.
type window struct {
	limit int
	span  time.Duration
}

func (l Limits) windows() []window {
	var ws []window
	if l.PerSecond > 0 {
		ws = append(ws, window{l.PerSecond, time.Second})
	}
	if l.PerMinute > 0 {
		ws = append(ws, window{l.PerMinute, time.Minute})
	}
	if l.PerHour > 0 {
		ws = append(ws, window{l.PerHour, time.Hour})
	}
	return ws
}

// horizon is the longest enabled window; older timestamps can be discarded.
func (l Limits) horizon() time.Duration {
	switch {
	case l.PerHour > 0:
		return time.Hour
	case l.PerMinute > 0:
		return time.Minute
	case l.PerSecond > 0:
		return time.Second
	}
	return 0
}

// endpointState is the mutable record for one endpoint.
type endpointState struct {
	mu          sync.Mutex
	limits      Limits
	calls       []time.Time // ascending
	lockedUntil time.Time
}

// Options configures a Limiter.
type Options struct {
	// Endpoints maps endpoint identifiers to budgets. The DefaultEndpoint
	// entry covers unknown endpoints; without one they are unlimited.
	Endpoints map[string]Limits
	// Lockout is the default cooldown for RecordRateLimitHit.
	Lockout time.Duration
	// Disabled turns Wait into a no-op. Lockouts are still recorded.
	Disabled bool
	Logger   *logging.Logger
	Bus      *event.Bus
}

// Limiter enforces per-endpoint sliding windows and lockouts.
// It is safe for concurrent use and intended to be shared across runs.
type Limiter struct {
	mu        sync.RWMutex
	endpoints map[string]*endpointState
	limits    map[string]Limits
	lockout   time.Duration
	disabled  bool
	logger    *logging.Logger
	bus       *event.Bus

	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// New creates a Limiter from opts.
func New(opts Options) *Limiter {
	limits := make(map[string]Limits, len(opts.Endpoints))
	for name, l := range opts.Endpoints {
		limits[name] = l
	}
	lockout := opts.Lockout
	if lockout <= 0 {
		lockout = DefaultLockout
	}
	return &Limiter{
		endpoints: make(map[string]*endpointState),
		limits:    limits,
		lockout:   lockout,
		disabled:  opts.Disabled,
		logger:    logging.OrNop(opts.Logger),
		bus:       opts.Bus,
		now:       time.Now,
		sleep:     sleepContext,
	}
}

// FromConfig builds a Limiter from the ratelimit configuration section.
func FromConfig(cfg config.RateLimitConfig, logger *logging.Logger, bus *event.Bus) *Limiter {
	endpoints := make(map[string]Limits, len(cfg.Endpoints))
	for name, e := range cfg.Endpoints {
		endpoints[name] = Limits{PerSecond: e.PerSecond, PerMinute: e.PerMinute, PerHour: e.PerHour}
	}
	return New(Options{
		Endpoints: endpoints,
		Lockout:   cfg.Lockout(),
		Disabled:  !cfg.Enabled,
		Logger:    logger,
		Bus:       bus,
	})
}

// LimitsFor returns the budgets that apply to endpoint.
func (l *Limiter) LimitsFor(endpoint string) Limits {
	if lim, ok := l.limits[endpoint]; ok {
		return lim
	}
	return l.limits[DefaultEndpoint]
}

func (l *Limiter) state(endpoint string) *endpointState {
	l.mu.RLock()
	st, ok := l.endpoints[endpoint]
	l.mu.RUnlock()
	if ok {
		return st
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if st, ok = l.endpoints[endpoint]; ok {
		return st
	}
	st = &endpointState{limits: l.LimitsFor(endpoint)}
	l.endpoints[endpoint] = st
	return st
}

// Wait blocks until a call to endpoint is allowed, then records it.
// It returns ctx.Err() if the context ends first.
func (l *Limiter) Wait(ctx context.Context, endpoint string) error {
	if l.disabled {
		return nil
	}
	st := l.state(endpoint)

	for {
		wait, locked := l.reserve(st)
		if wait == 0 {
			return nil
		}
		if locked {
			l.logger.Debug("endpoint locked out, waiting", "endpoint", endpoint, "wait_ms", wait.Milliseconds())
		}
		if err := l.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// TryAcquire records a call if endpoint has headroom right now. Otherwise
// it returns false and the wait a caller would need.
func (l *Limiter) TryAcquire(endpoint string) (time.Duration, bool) {
	if l.disabled {
		return 0, true
	}
	wait, _ := l.reserve(l.state(endpoint))
	return wait, wait == 0
}

// reserve records a call and returns 0 when all windows have headroom.
// Otherwise it returns the required wait and whether a lockout caused it.
func (l *Limiter) reserve(st *endpointState) (time.Duration, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()

	now := l.now()
	if now.Before(st.lockedUntil) {
		return st.lockedUntil.Sub(now), true
	}

	st.prune(now)

	var wait time.Duration
	for _, w := range st.limits.windows() {
		idx := st.firstInside(now, w.span)
		if len(st.calls)-idx < w.limit {
			continue
		}
		// The call that must age out for this window to have headroom.
		oldest := st.calls[len(st.calls)-w.limit]
		if d := oldest.Add(w.span).Sub(now); d > wait {
			wait = d
		}
	}
	if wait > 0 {
		return wait, false
	}

	st.calls = append(st.calls, now)
	return 0, false
}

// firstInside returns the index of the first call within span of now.
func (st *endpointState) firstInside(now time.Time, span time.Duration) int {
	cutoff := now.Add(-span)
	return sort.Search(len(st.calls), func(i int) bool {
		return st.calls[i].After(cutoff)
	})
}

func (st *endpointState) prune(now time.Time) {
	h := st.limits.horizon()
	if h == 0 {
		st.calls = st.calls[:0]
		return
	}
	idx := st.firstInside(now, h)
	if idx > 0 {
		st.calls = append(st.calls[:0], st.calls[idx:]...)
	}
}

// RecordRateLimitHit locks endpoint for the configured cooldown.
func (l *Limiter) RecordRateLimitHit(endpoint string) {
	l.Lock(endpoint, l.lockout)
}

// Lock locks endpoint for d. An existing longer lockout is kept.
func (l *Limiter) Lock(endpoint string, d time.Duration) {
	st := l.state(endpoint)

	st.mu.Lock()
	until := l.now().Add(d)
	if until.After(st.lockedUntil) {
		st.lockedUntil = until
	}
	until = st.lockedUntil
	st.mu.Unlock()

	l.logger.Warn("endpoint locked after rate limit", "endpoint", endpoint, "until", until)
	l.bus.Publish(event.NewLockoutEvent(endpoint, until))
}

// LockedUntil reports when an endpoint's lockout ends. The zero time means
// the endpoint is not locked.
func (l *Limiter) LockedUntil(endpoint string) time.Time {
	st := l.state(endpoint)
	st.mu.Lock()
	defer st.mu.Unlock()
	if !l.now().Before(st.lockedUntil) {
		return time.Time{}
	}
	return st.lockedUntil
}

// Lockout returns the cooldown applied by RecordRateLimitHit.
func (l *Limiter) Lockout() time.Duration {
	return l.lockout
}

// Stats reports the number of calls in each window for an endpoint.
type Stats struct {
	Endpoint    string
	LastSecond  int
	LastMinute  int
	LastHour    int
	LockedUntil time.Time
}

// Stats returns a snapshot of endpoint's windows.
func (l *Limiter) Stats(endpoint string) Stats {
	st := l.state(endpoint)
	st.mu.Lock()
	defer st.mu.Unlock()

	now := l.now()
	n := len(st.calls)
	s := Stats{
		Endpoint:   endpoint,
		LastSecond: n - st.firstInside(now, time.Second),
		LastMinute: n - st.firstInside(now, time.Minute),
		LastHour:   n - st.firstInside(now, time.Hour),
	}
	if now.Before(st.lockedUntil) {
		s.LockedUntil = st.lockedUntil
	}
	return s
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "rate limit wait")
	case <-timer.C:
		return nil
	}
}
