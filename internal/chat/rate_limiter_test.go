package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type manualClock struct{ now time.Time }

func (c *manualClock) Now() time.Time          { return c.now }
func (c *manualClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func TestRateLimiter_BurstThenRefill(t *testing.T) {
	clock := &manualClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	rl := newRateLimiterWithClock(3, time.Second, clock.Now)

	for i := range 3 {
		assert.True(t, rl.allow(), "message %d within burst", i)
	}
	assert.False(t, rl.allow(), "burst exhausted")

	clock.Advance(400 * time.Millisecond)
	assert.True(t, rl.allow(), "one token refilled")
	assert.False(t, rl.allow())

	clock.Advance(10 * time.Second)
	for range 3 {
		assert.True(t, rl.allow())
	}
	assert.False(t, rl.allow(), "refill is capped at capacity")
}

func TestRateLimiter_InvalidArgumentsFallBack(t *testing.T) {
	clock := &manualClock{now: time.Unix(0, 0)}
	rl := newRateLimiterWithClock(0, 0, clock.Now)

	assert.True(t, rl.allow())
	assert.False(t, rl.allow())

	clock.Advance(time.Second)
	assert.True(t, rl.allow())
}

func TestRateLimiter_PartialRefillIsNotEnough(t *testing.T) {
	clock := &manualClock{now: time.Unix(100, 0)}
	rl := newRateLimiterWithClock(2, time.Second, clock.Now)

	assert.True(t, rl.allow())
	assert.True(t, rl.allow())

	clock.Advance(250 * time.Millisecond)
	assert.False(t, rl.allow(), "half a token is not a message")

	clock.Advance(300 * time.Millisecond)
	assert.True(t, rl.allow())
	assert.False(t, rl.allow())
}
