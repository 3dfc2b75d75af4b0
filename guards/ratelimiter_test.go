package guards

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// movableClock lets a test advance time deterministically without
// sleeping, unlike clock.Frozen which never moves.
type movableClock struct {
	now time.Time
}

func (c *movableClock) Now() time.Time { return c.now }
func (c *movableClock) advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func TestRateLimiter_AllowsUpToMaxThenDenies(t *testing.T) {
	clk := &movableClock{now: time.Now()}
	rl := NewRateLimiter(5, 60, clk)

	for i := 0; i < 5; i++ {
		allowed, _ := rl.Allow("user-1")
		assert.True(t, allowed, "request %d should be allowed", i)
	}

	allowed, retryAfter := rl.Allow("user-1")
	assert.False(t, allowed)
	assert.GreaterOrEqual(t, retryAfter, 1)
}

func TestRateLimiter_DifferentUsersAreIndependent(t *testing.T) {
	clk := &movableClock{now: time.Now()}
	rl := NewRateLimiter(1, 60, clk)

	allowed, _ := rl.Allow("user-1")
	assert.True(t, allowed)

	allowed, _ = rl.Allow("user-2")
	assert.True(t, allowed, "a different user's bucket must be unaffected")
}

func TestRateLimiter_RefillsOverTime(t *testing.T) {
	clk := &movableClock{now: time.Now()}
	rl := NewRateLimiter(1, 60, clk)

	allowed, _ := rl.Allow("user-1")
	assert.True(t, allowed)

	allowed, _ = rl.Allow("user-1")
	assert.False(t, allowed)

	clk.advance(61 * time.Second)
	allowed, _ = rl.Allow("user-1")
	assert.True(t, allowed, "bucket should have refilled after a full window")
}
