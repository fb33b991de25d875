package translate

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

const (
	DefaultMaxEntries    = 1000
	DefaultTTL           = 30 * time.Minute
	DefaultSweepInterval = 5 * time.Minute
)

// CacheKey is the exact (text, pair) a translation was produced for.
type CacheKey struct {
	Text   string
	Source string
	Target string
}

func NewCacheKey(text, source, target string) CacheKey {
	return CacheKey{Text: strings.TrimSpace(text), Source: source, Target: target}
}

// CacheEntry is one cached translation. Hit bookkeeping uses atomics so
// lookups can share the read lock.
type CacheEntry struct {
	Translated     string
	CreatedAt      time.Time
	lastAccessedAt atomic.Int64
	hitCount       atomic.Int64
}

func (e *CacheEntry) HitCount() int64 { return e.hitCount.Load() }

func (e *CacheEntry) LastAccessedAt() time.Time {
	return time.Unix(0, e.lastAccessedAt.Load())
}

type CacheStats struct {
	Entries     int   `json:"entries"`
	MaxEntries  int   `json:"maxEntries"`
	Hits        int64 `json:"hits"`
	Misses      int64 `json:"misses"`
	Evictions   int64 `json:"evictions"`
	Expirations int64 `json:"expirations"`
}

// Cache is a bounded translation cache. When full, the oldest inserted
// entry is evicted (insertion order, not access order). Entries older than
// ttl are removed by Sweep.
type Cache struct {
	maxEntries int
	ttl        time.Duration
	now        func() time.Time

	mu      sync.RWMutex
	entries *orderedmap.OrderedMap[CacheKey, *CacheEntry]

	hits, misses, evictions, expirations atomic.Int64
}

type CacheOption func(*Cache)

// WithClock overrides time.Now, mostly for tests.
func WithClock(now func() time.Time) CacheOption {
	return func(c *Cache) { c.now = now }
}

func NewCache(maxEntries int, ttl time.Duration, opts ...CacheOption) *Cache {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &Cache{
		maxEntries: maxEntries,
		ttl:        ttl,
		now:        time.Now,
		entries:    orderedmap.New[CacheKey, *CacheEntry](),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Cache) Lookup(text, source, target string) (string, bool) {
	key := NewCacheKey(text, source, target)
	c.mu.RLock()
	e, ok := c.entries.Get(key)
	c.mu.RUnlock()
	if !ok {
		c.misses.Add(1)
		return "", false
	}
	e.hitCount.Add(1)
	e.lastAccessedAt.Store(c.now().UnixNano())
	c.hits.Add(1)
	return e.Translated, true
}

// Store inserts or overwrites the entry for the exact key. Blank text is
// never cached.
func (c *Cache) Store(text, source, target, translated string) {
	key := NewCacheKey(text, source, target)
	if key.Text == "" {
		return
	}
	now := c.now()
	e := &CacheEntry{Translated: translated, CreatedAt: now}
	e.lastAccessedAt.Store(now.UnixNano())

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries.Delete(key); !exists {
		for c.entries.Len() >= c.maxEntries {
			oldest := c.entries.Oldest()
			if oldest == nil {
				break
			}
			c.entries.Delete(oldest.Key)
			c.evictions.Add(1)
		}
	}
	c.entries.Set(key, e)
}

// Sweep drops every entry created more than ttl before now and returns how
// many were removed.
func (c *Cache) Sweep(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	// Full scan: concurrent stores or a clock step can leave insertion
	// order out of step with CreatedAt.
	for pair := c.entries.Oldest(); pair != nil; {
		next := pair.Next()
		if now.Sub(pair.Value.CreatedAt) > c.ttl {
			c.entries.Delete(pair.Key)
			removed++
		}
		pair = next
	}
	c.expirations.Add(int64(removed))
	return removed
}

// Run sweeps every interval until ctx is done.
func (c *Cache) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "translate.cache").Msg("sweeper stopped")
			return
		case <-ticker.C:
			if n := c.Sweep(c.now()); n > 0 {
				log.Debug().Str("module", "translate.cache").Int("expired", n).Int("entries", c.Len()).Msg("cache swept")
			}
		}
	}
}

// Entry returns the entry for a key, if present, without counting a hit.
func (c *Cache) Entry(text, source, target string) (*CacheEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries.Get(NewCacheKey(text, source, target))
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries.Len()
}

func (c *Cache) Stats() CacheStats {
	return CacheStats{
		Entries:     c.Len(),
		MaxEntries:  c.maxEntries,
		Hits:        c.hits.Load(),
		Misses:      c.misses.Load(),
		Evictions:   c.evictions.Load(),
		Expirations: c.expirations.Load(),
	}
}
