// Package cache stores prior tool-call results with per-entry TTLs and a
// global size bound, and provides the cache-around wrapper every tool call
// goes through.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Iron-Ham/basecamp/internal/config"
)

// Defaults used when Options leaves a field zero.
const (
	DefaultMaxSize = 1000
	DefaultTTL     = time.Hour
	DefaultShards  = 16
)

type entry struct {
	value     any
	expiresAt time.Time
}

type shard struct {
	mu      sync.Mutex
	entries map[string]entry
}

// Options configures a Cache.
type Options struct {
	MaxSize    int
	DefaultTTL time.Duration
	Shards     int
}

// Cache is a sharded TTL cache. Each key lives in one shard guarded by its
// own mutex; the size bound is global. It is safe for concurrent use.
type Cache struct {
	shards     []*shard
	maxSize    int
	defaultTTL time.Duration
	size       atomic.Int64

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64

	// evictMu serializes capacity eviction so concurrent inserts cannot
	// overshoot MaxSize.
	evictMu sync.Mutex

	now func() time.Time
}

// New creates a Cache from opts.
func New(opts Options) *Cache {
	if opts.MaxSize <= 0 {
		opts.MaxSize = DefaultMaxSize
	}
	if opts.DefaultTTL <= 0 {
		opts.DefaultTTL = DefaultTTL
	}
	if opts.Shards <= 0 {
		opts.Shards = DefaultShards
	}
	if opts.Shards > opts.MaxSize {
		opts.Shards = opts.MaxSize
	}

	c := &Cache{
		shards:     make([]*shard, opts.Shards),
		maxSize:    opts.MaxSize,
		defaultTTL: opts.DefaultTTL,
		now:        time.Now,
	}
	for i := range c.shards {
		c.shards[i] = &shard{entries: make(map[string]entry)}
	}
	return c
}

// FromConfig builds a Cache from the cache configuration section.
func FromConfig(cfg config.CacheConfig) *Cache {
	return New(Options{
		MaxSize:    cfg.MaxSize,
		DefaultTTL: cfg.DefaultTTL(),
		Shards:     cfg.Shards,
	})
}

// Key returns a deterministic key for an endpoint and its parameters.
// Parameter order does not matter: maps are encoded with sorted keys.
func Key(endpoint string, params map[string]any) string {
	canonical, err := json.Marshal(params)
	if err != nil {
		// Unencodable params never collide with encodable ones.
		canonical = []byte("!unencodable")
	}
	sum := sha256.Sum256(append([]byte(endpoint+":"), canonical...))
	return hex.EncodeToString(sum[:])
}

func (c *Cache) shardFor(key string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return c.shards[h.Sum32()%uint32(len(c.shards))]
}

// Get returns the value for key if it exists and has not expired.
// An expired entry is removed.
func (c *Cache) Get(key string) (any, bool) {
	s := c.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	if !c.now().Before(e.expiresAt) {
		delete(s.entries, key)
		c.size.Add(-1)
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return e.value, true
}

// Set stores value under key for ttl, or the default TTL when ttl <= 0.
// When the cache is full and key is new, the entry closest to expiry is
// evicted first.
func (c *Cache) Set(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	s := c.shardFor(key)
	s.mu.Lock()
	if _, exists := s.entries[key]; exists {
		s.entries[key] = entry{value: value, expiresAt: c.now().Add(ttl)}
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	c.evictMu.Lock()
	defer c.evictMu.Unlock()

	for c.size.Load() >= int64(c.maxSize) {
		if !c.evictSoonest() {
			break
		}
	}

	s.mu.Lock()
	if _, exists := s.entries[key]; !exists {
		c.size.Add(1)
	}
	s.entries[key] = entry{value: value, expiresAt: c.now().Add(ttl)}
	s.mu.Unlock()
}

// evictSoonest removes the entry with the earliest expiry across all
// shards. Callers hold evictMu.
func (c *Cache) evictSoonest() bool {
	var (
		victim    string
		victimAt  time.Time
		victimIdx = -1
	)
	for i, s := range c.shards {
		s.mu.Lock()
		for k, e := range s.entries {
			if victimIdx == -1 || e.expiresAt.Before(victimAt) {
				victim, victimAt, victimIdx = k, e.expiresAt, i
			}
		}
		s.mu.Unlock()
	}
	if victimIdx == -1 {
		return false
	}

	s := c.shards[victimIdx]
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[victim]; !ok {
		// Removed concurrently by an expiring Get; that freed the slot.
		return true
	}
	delete(s.entries, victim)
	c.size.Add(-1)
	c.evictions.Add(1)
	return true
}

// Delete removes key.
func (c *Cache) Delete(key string) {
	s := c.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[key]; ok {
		delete(s.entries, key)
		c.size.Add(-1)
	}
}

// Purge removes every expired entry and returns how many were removed.
func (c *Cache) Purge() int {
	now := c.now()
	removed := 0
	for _, s := range c.shards {
		s.mu.Lock()
		for k, e := range s.entries {
			if !now.Before(e.expiresAt) {
				delete(s.entries, k)
				removed++
			}
		}
		s.mu.Unlock()
	}
	c.size.Add(int64(-removed))
	return removed
}

// Len returns the number of stored entries, including expired ones not
// yet removed.
func (c *Cache) Len() int {
	return int(c.size.Load())
}

// Stats is a snapshot of cache counters.
type Stats struct {
	Size      int   `json:"size"`
	MaxSize   int   `json:"max_size"`
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
}

// Stats returns the current counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Size:      c.Len(),
		MaxSize:   c.maxSize,
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}
}
