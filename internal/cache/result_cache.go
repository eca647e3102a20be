package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/sporelab/reportql/internal/domain"
)

// DefaultTTL is how long a computed result stays servable.
const DefaultTTL = time.Hour

// ComputeFunc produces a fresh result on a cache miss.
type ComputeFunc func(ctx context.Context) (domain.AggregatedData, error)

type entry struct {
	reportID string
	data     domain.AggregatedData
	expires  time.Time
	hits     uint64
}

// ResultCache is an in-memory TTL cache for report results. Concurrent
// misses on the same key collapse into a single computation.
type ResultCache struct {
	mu      sync.RWMutex
	entries map[string]*entry
	ttl     time.Duration
	group   singleflight.Group

	hits   uint64
	misses uint64
}

// Option configures a ResultCache.
type Option func(*ResultCache)

// WithTTL overrides the entry lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(c *ResultCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// NewResultCache creates an empty cache with the default TTL.
func NewResultCache(opts ...Option) *ResultCache {
	c := &ResultCache{
		entries: make(map[string]*entry),
		ttl:     DefaultTTL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Key derives the cache key for one execution. Two executions share a key
// only when the report, the caller's scope, and every filter input match.
// Program ids and filters are sorted first so ordering differences in the
// request never split the cache.
func Key(reportID string, scope domain.ExecutionScope, config domain.ReportConfig) string {
	programs := append([]string{}, scope.ProgramIDs...)
	sort.Strings(programs)

	filters := make([]string, 0, len(config.Filters))
	for _, f := range config.Filters {
		raw, _ := json.Marshal(f)
		filters = append(filters, string(raw))
	}
	sort.Strings(filters)

	isolation := make([]string, 0, len(config.IsolationFilters))
	for field, values := range config.IsolationFilters {
		sorted := append([]string{}, values...)
		sort.Strings(sorted)
		isolation = append(isolation, field+"="+strings.Join(sorted, ","))
	}
	sort.Strings(isolation)

	var sb strings.Builder
	fmt.Fprintf(&sb, "report=%s|user=%s|company=%s|programs=%s|filters=%s|isolation=%s|start=%s|end=%s|tz=%s",
		reportID, scope.UserID, scope.CompanyID,
		strings.Join(programs, ","),
		strings.Join(filters, ";"),
		strings.Join(isolation, ";"),
		scope.DateStart, scope.DateEnd, scope.Timezone)

	sum := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(sum[:])
}

// GetOrCompute returns the cached result for key, or runs compute and caches
// its output under the given lifetime. A non-positive ttl falls back to the
// cache default. Cached results come back with CacheHit set; computed results
// do not. Compute errors are never cached.
func (c *ResultCache) GetOrCompute(ctx context.Context, key, reportID string, ttl time.Duration, compute ComputeFunc) (domain.AggregatedData, error) {
	if data, ok := c.Get(key); ok {
		return data, nil
	}

	result, err, _ := c.group.Do(key, func() (any, error) {
		// Another caller may have populated the entry while this one was
		// queued behind the flight.
		if data, ok := c.Get(key); ok {
			return data, nil
		}
		data, err := compute(ctx)
		if err != nil {
			return domain.AggregatedData{}, err
		}
		c.Put(key, reportID, data, ttl)
		return data, nil
	})
	if err != nil {
		return domain.AggregatedData{}, err
	}
	return result.(domain.AggregatedData), nil
}

// Get returns the live entry for key, if any, marked as a cache hit.
func (c *ResultCache) Get(key string) (domain.AggregatedData, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || time.Now().After(e.expires) {
		c.mu.Lock()
		c.misses++
		c.mu.Unlock()
		return domain.AggregatedData{}, false
	}

	c.mu.Lock()
	c.hits++
	e.hits++
	c.mu.Unlock()

	data := e.data
	data.CacheHit = true
	return data, true
}

// Put stores a result under key for ttl, attributed to reportID for
// invalidation. A non-positive ttl falls back to the cache default.
func (c *ResultCache) Put(key, reportID string, data domain.AggregatedData, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.ttl
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = &entry{
		reportID: reportID,
		data:     data,
		expires:  time.Now().Add(ttl),
	}
}

// Invalidate drops every cached result belonging to reportID and returns how
// many entries were removed.
func (c *ResultCache) Invalidate(reportID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for key, e := range c.entries {
		if e.reportID == reportID {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Sweep removes expired entries and returns how many were dropped.
func (c *ResultCache) Sweep() int {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for key, e := range c.entries {
		if now.After(e.expires) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Stats reports cumulative hit and miss counts and the current entry count.
func (c *ResultCache) Stats() (hits, misses uint64, size int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses, len(c.entries)
}

// EntryHits reports how many times the entry under key has been served. The
// second return is false when no entry exists.
func (c *ResultCache) EntryHits(key string) (uint64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok {
		return 0, false
	}
	return e.hits, true
}
