// Package guards holds the two in-process cross-cutting protections that
// sit in front of the loan-request endpoint: a per-user token-bucket
// rate limiter and a request-hash-bound idempotency cache (spec §4.J).
// Neither teacher nor pack repo implements either; both are authored
// fresh in the teacher's map+mutex idiom.
package guards

import (
	"math"
	"sync"
	"time"

	"github.com/creditbridge/decision-service/pkg/clock"
)

// RateLimiterStats mirrors spec §4.J's exposed stats shape.
type RateLimiterStats struct {
	TrackedUsers          int
	MaxRequestsPerWindow  int
	WindowSeconds         int
	LastCleanup           time.Time
}

// RateLimiter is a per-user token bucket. Refill rate is
// MaxRequests/WindowSeconds tokens per second; capacity is MaxRequests.
type RateLimiter struct {
	mu            sync.Mutex
	buckets       map[string]*bucket
	maxRequests   int
	windowSeconds int
	refillRate    float64
	lastCleanup   time.Time
	clock         clock.Clock
}

type bucket struct {
	tokens     float64
	lastRefill time.Time
}

func NewRateLimiter(maxRequests, windowSeconds int, clk clock.Clock) *RateLimiter {
	return &RateLimiter{
		buckets:       map[string]*bucket{},
		maxRequests:   maxRequests,
		windowSeconds: windowSeconds,
		refillRate:    float64(maxRequests) / float64(windowSeconds),
		lastCleanup:   clk.Now(),
		clock:         clk,
	}
}

// Allow decrements one token for userID if available. On denial it
// returns the number of whole seconds the caller should wait before
// retrying.
func (r *RateLimiter) Allow(userID string) (allowed bool, retryAfterSeconds int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	r.cleanupLocked(now)

	b, ok := r.buckets[userID]
	if !ok {
		b = &bucket{tokens: float64(r.maxRequests), lastRefill: now}
		r.buckets[userID] = b
	}
	r.refillLocked(b, now)

	if b.tokens >= 1 {
		b.tokens -= 1
		return true, 0
	}

	deficit := 1 - b.tokens
	retryAfter := int(math.Ceil(deficit / r.refillRate))
	return false, retryAfter
}

func (r *RateLimiter) refillLocked(b *bucket, now time.Time) {
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	b.tokens = math.Min(float64(r.maxRequests), b.tokens+elapsed*r.refillRate)
	b.lastRefill = now
}

func (r *RateLimiter) cleanupLocked(now time.Time) {
	if now.Sub(r.lastCleanup).Seconds() <= float64(5*r.windowSeconds) {
		return
	}
	staleBefore := now.Add(-time.Duration(r.windowSeconds) * time.Second)
	for id, b := range r.buckets {
		refilled := b.tokens + now.Sub(b.lastRefill).Seconds()*r.refillRate
		if b.lastRefill.Before(staleBefore) && refilled >= float64(r.maxRequests) {
			delete(r.buckets, id)
		}
	}
	r.lastCleanup = now
}

// Stats reports the limiter's observability snapshot.
func (r *RateLimiter) Stats() RateLimiterStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return RateLimiterStats{
		TrackedUsers:         len(r.buckets),
		MaxRequestsPerWindow: r.maxRequests,
		WindowSeconds:        r.windowSeconds,
		LastCleanup:          r.lastCleanup,
	}
}
