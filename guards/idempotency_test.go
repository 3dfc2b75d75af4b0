package guards

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIdempotencyCache_MissThenHit(t *testing.T) {
	clk := &movableClock{now: time.Now()}
	cache := NewIdempotencyCache(100, 3600, clk)

	lookup := cache.Get("key-1", "hash-a")
	assert.False(t, lookup.Hit)
	assert.False(t, lookup.Conflict)

	cache.Set("key-1", "hash-a", []byte(`{"ok":true}`), 200, nil)

	lookup = cache.Get("key-1", "hash-a")
	assert.True(t, lookup.Hit)
	assert.Equal(t, []byte(`{"ok":true}`), lookup.Entry.ResponseBody)
}

func TestIdempotencyCache_SameKeyDifferentBodyIsConflict(t *testing.T) {
	clk := &movableClock{now: time.Now()}
	cache := NewIdempotencyCache(100, 3600, clk)

	cache.Set("key-1", "hash-a", []byte(`{}`), 200, nil)
	lookup := cache.Get("key-1", "hash-b")
	assert.True(t, lookup.Conflict)
	assert.False(t, lookup.Hit)
}

func TestIdempotencyCache_ExpiresAfterTTL(t *testing.T) {
	clk := &movableClock{now: time.Now()}
	cache := NewIdempotencyCache(100, 10, clk)

	cache.Set("key-1", "hash-a", []byte(`{}`), 200, nil)
	clk.advance(11 * time.Second)

	lookup := cache.Get("key-1", "hash-a")
	assert.False(t, lookup.Hit)
}

func TestIdempotencyCache_EvictsOldestFifthAtCapacity(t *testing.T) {
	clk := &movableClock{now: time.Now()}
	cache := NewIdempotencyCache(5, 3600, clk)

	for i := 0; i < 5; i++ {
		cache.Set(string(rune('a'+i)), "hash", []byte(`{}`), 200, nil)
		clk.advance(time.Second)
	}
	assert.Len(t, cache.entries, 5)

	cache.Set("new-key", "hash", []byte(`{}`), 200, nil)
	assert.LessOrEqual(t, len(cache.entries), 5)
	_, stillPresent := cache.entries["a"]
	assert.False(t, stillPresent, "the oldest entry should have been evicted")
}
