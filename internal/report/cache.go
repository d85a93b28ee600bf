package report

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/heliowatch/heliowatch/internal/environment"
)

// DefaultGridSize is the cache cell size in degrees (~1 km at the equator).
const DefaultGridSize = 0.01

// Entry is a cached live selection. Synthetic selections are never cached.
type Entry struct {
	Reading  environment.Reading `json:"reading"`
	Source   environment.Source  `json:"source"`
	Provider string              `json:"provider"`
	CachedAt time.Time           `json:"cachedAt"`
}

// Cache stores selections per grid cell. Implementations must be safe for
// concurrent use.
type Cache interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	Set(ctx context.Context, key string, entry Entry) error
}

// GridKey maps coordinates onto a grid cell so nearby sites share one entry.
func GridKey(coords environment.Coordinates, gridSize float64) string {
	if gridSize <= 0 {
		gridSize = DefaultGridSize
	}
	gridLat := math.Floor(coords.Lat/gridSize) * gridSize
	gridLon := math.Floor(coords.Lon/gridSize) * gridSize
	return fmt.Sprintf("%.4f:%.4f", gridLat, gridLon)
}

// MemoryCacheConfig holds configuration for the in-process cache.
type MemoryCacheConfig struct {
	// TTL is how long an entry is served (default: 5 minutes).
	TTL time.Duration

	// CleanupInterval is the minimum time between expiry sweeps (default: 5 minutes).
	CleanupInterval time.Duration

	Logger zerolog.Logger
}

// MemoryCache is a TTL map guarded by a RWMutex.
type MemoryCache struct {
	ttl             time.Duration
	cleanupInterval time.Duration
	logger          zerolog.Logger
	now             func() time.Time

	mu          sync.RWMutex
	entries     map[string]*cachedEntry
	lastCleanup time.Time
}

type cachedEntry struct {
	entry     Entry
	expiresAt time.Time
}

// NewMemoryCache creates an in-process cache.
func NewMemoryCache(cfg MemoryCacheConfig) *MemoryCache {
	ttl := cfg.TTL
	if ttl == 0 {
		ttl = 5 * time.Minute
	}

	cleanupInterval := cfg.CleanupInterval
	if cleanupInterval == 0 {
		cleanupInterval = 5 * time.Minute
	}

	return &MemoryCache{
		ttl:             ttl,
		cleanupInterval: cleanupInterval,
		logger:          cfg.Logger,
		now:             time.Now,
		entries:         make(map[string]*cachedEntry),
	}
}

// Get returns the entry for key if present and not expired.
func (c *MemoryCache) Get(_ context.Context, key string) (Entry, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	cached, ok := c.entries[key]
	if !ok || !c.now().Before(cached.expiresAt) {
		return Entry{}, false, nil
	}
	return cached.entry, true, nil
}

// Set stores the entry for the configured TTL.
func (c *MemoryCache) Set(_ context.Context, key string, entry Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = &cachedEntry{
		entry:     entry,
		expiresAt: c.now().Add(c.ttl),
	}
	c.cleanupIfNeeded()
	return nil
}

// cleanupIfNeeded removes expired entries if cleanup interval has passed.
// Callers must hold the write lock.
func (c *MemoryCache) cleanupIfNeeded() {
	now := c.now()
	if now.Sub(c.lastCleanup) < c.cleanupInterval {
		return
	}

	c.lastCleanup = now
	expired := 0

	for key, cached := range c.entries {
		if !now.Before(cached.expiresAt) {
			delete(c.entries, key)
			expired++
		}
	}

	if expired > 0 {
		c.logger.Debug().
			Int("expired_entries", expired).
			Msg("cleaned up expired report cache entries")
	}
}

// CacheStats contains cache statistics.
type CacheStats struct {
	Entries      int
	FreshEntries int
}

// Stats returns cache statistics.
func (c *MemoryCache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := c.now()
	fresh := 0
	for _, e := range c.entries {
		if now.Before(e.expiresAt) {
			fresh++
		}
	}

	return CacheStats{Entries: len(c.entries), FreshEntries: fresh}
}

// NoopCache never stores anything.
type NoopCache struct{}

// Get always misses.
func (NoopCache) Get(context.Context, string) (Entry, bool, error) { return Entry{}, false, nil }

// Set discards the entry.
func (NoopCache) Set(context.Context, string, Entry) error { return nil }
