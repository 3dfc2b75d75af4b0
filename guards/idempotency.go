package guards

import (
	"sort"
	"sync"
	"time"

	"github.com/creditbridge/decision-service/domain"
	"github.com/creditbridge/decision-service/pkg/clock"
)

const defaultCleanupInterval = 10 * time.Minute

// IdempotencyCache is keyed by a client-supplied key, bound to a body
// hash so a reused key with a different body is treated as misuse
// (spec §4.J).
type IdempotencyCache struct {
	mu              sync.Mutex
	entries         map[string]domain.IdempotencyEntry
	ttl             time.Duration
	maxEntries      int
	lastCleanup     time.Time
	cleanupInterval time.Duration
	clock           clock.Clock
}

func NewIdempotencyCache(maxEntries int, ttlSeconds int, clk clock.Clock) *IdempotencyCache {
	return &IdempotencyCache{
		entries:         map[string]domain.IdempotencyEntry{},
		ttl:             time.Duration(ttlSeconds) * time.Second,
		maxEntries:      maxEntries,
		lastCleanup:     clk.Now(),
		cleanupInterval: defaultCleanupInterval,
		clock:           clk,
	}
}

// Lookup is the result of Get: Hit is true only when the entry exists,
// is unexpired, and the caller's body hash matches.
type Lookup struct {
	Hit       bool
	Conflict  bool
	Entry     domain.IdempotencyEntry
}

// Get returns the cached response for key iff unexpired and body-hash
// matching; Conflict signals the key exists but with a different body.
func (c *IdempotencyCache) Get(key, bodyHash string) Lookup {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	c.cleanupLocked(now)

	entry, ok := c.entries[key]
	if !ok {
		return Lookup{}
	}
	if now.Sub(entry.CreatedAt) > c.ttl {
		delete(c.entries, key)
		return Lookup{}
	}
	if entry.RequestBodyHash != bodyHash {
		return Lookup{Conflict: true, Entry: entry}
	}
	return Lookup{Hit: true, Entry: entry}
}

// Set stores or overwrites the entry for key, evicting the oldest 20%
// by CreatedAt first if capacity is reached.
func (c *IdempotencyCache) Set(key, bodyHash string, responseBody []byte, statusCode int, headers map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxEntries {
		c.evictOldestLocked()
	}

	c.entries[key] = domain.IdempotencyEntry{
		Key:             key,
		RequestBodyHash: bodyHash,
		ResponseBody:    responseBody,
		StatusCode:      statusCode,
		Headers:         headers,
		CreatedAt:       c.clock.Now(),
	}
}

func (c *IdempotencyCache) evictOldestLocked() {
	type kv struct {
		key       string
		createdAt time.Time
	}
	all := make([]kv, 0, len(c.entries))
	for k, e := range c.entries {
		all = append(all, kv{k, e.CreatedAt})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].createdAt.Before(all[j].createdAt) })

	evictCount := len(all) / 5
	if evictCount == 0 && len(all) > 0 {
		evictCount = 1
	}
	for i := 0; i < evictCount; i++ {
		delete(c.entries, all[i].key)
	}
}

func (c *IdempotencyCache) cleanupLocked(now time.Time) {
	if now.Sub(c.lastCleanup) <= c.cleanupInterval {
		return
	}
	for k, e := range c.entries {
		if now.Sub(e.CreatedAt) > c.ttl {
			delete(c.entries, k)
		}
	}
	c.lastCleanup = now
}
