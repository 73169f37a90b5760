package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestLimiter() (*MemoryLimiter, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	l := NewMemoryLimiter(DefaultPolicy())
	l.now = clock.Now
	return l, clock
}

func fail(l *MemoryLimiter, clientID string, times int) {
	for i := 0; i < times; i++ {
		l.RecordAttempt(context.Background(), clientID, false)
	}
}

func TestCheckAllowsUnknownClient(t *testing.T) {
	l, _ := newTestLimiter()

	allowed, retryAfter := l.Check(context.Background(), "1.2.3.4")
	assert.True(t, allowed)
	assert.Zero(t, retryAfter)
}

func TestBlocksAtMaxAttempts(t *testing.T) {
	l, _ := newTestLimiter()
	ctx := context.Background()

	fail(l, "1.2.3.4", 4)
	allowed, _ := l.Check(ctx, "1.2.3.4")
	assert.True(t, allowed, "still below the threshold")

	fail(l, "1.2.3.4", 1)
	allowed, retryAfter := l.Check(ctx, "1.2.3.4")
	assert.False(t, allowed, "5th failure within the window blocks")
	assert.Equal(t, 15*time.Minute, retryAfter)

	// Other clients are unaffected.
	allowed, _ = l.Check(ctx, "5.6.7.8")
	assert.True(t, allowed)
}

func TestSuccessClearsStanding(t *testing.T) {
	l, _ := newTestLimiter()
	ctx := context.Background()

	fail(l, "1.2.3.4", 4)
	l.RecordAttempt(ctx, "1.2.3.4", true)

	// The counter restarted from zero, so 4 more failures stay allowed.
	fail(l, "1.2.3.4", 4)
	allowed, _ := l.Check(ctx, "1.2.3.4")
	assert.True(t, allowed)

	fail(l, "1.2.3.4", 1)
	allowed, _ = l.Check(ctx, "1.2.3.4")
	assert.False(t, allowed)
}

func TestSuccessLiftsBlock(t *testing.T) {
	l, _ := newTestLimiter()
	ctx := context.Background()

	fail(l, "1.2.3.4", 5)
	allowed, _ := l.Check(ctx, "1.2.3.4")
	require.False(t, allowed)

	l.RecordAttempt(ctx, "1.2.3.4", true)
	allowed, _ = l.Check(ctx, "1.2.3.4")
	assert.True(t, allowed)
}

func TestRetryAfterDecreases(t *testing.T) {
	l, clock := newTestLimiter()
	ctx := context.Background()

	fail(l, "1.2.3.4", 5)

	_, first := l.Check(ctx, "1.2.3.4")
	clock.Advance(4 * time.Minute)
	_, second := l.Check(ctx, "1.2.3.4")
	clock.Advance(6 * time.Minute)
	_, third := l.Check(ctx, "1.2.3.4")

	assert.Equal(t, 15*time.Minute, first)
	assert.Equal(t, 11*time.Minute, second)
	assert.Equal(t, 5*time.Minute, third)
}

func TestUnblockedExactlyAtBlockDuration(t *testing.T) {
	l, clock := newTestLimiter()
	ctx := context.Background()

	fail(l, "1.2.3.4", 5)

	clock.Advance(15*time.Minute - time.Second)
	allowed, _ := l.Check(ctx, "1.2.3.4")
	assert.False(t, allowed)

	clock.Advance(time.Second)
	allowed, _ = l.Check(ctx, "1.2.3.4")
	assert.True(t, allowed)
}

func TestWindowExpiryResetsCounter(t *testing.T) {
	l, clock := newTestLimiter()
	ctx := context.Background()

	fail(l, "1.2.3.4", 4)
	clock.Advance(6 * time.Minute)

	// A failure after the window restarts the count at 1, so four more
	// are needed before a block.
	fail(l, "1.2.3.4", 4)
	allowed, _ := l.Check(ctx, "1.2.3.4")
	assert.True(t, allowed)

	fail(l, "1.2.3.4", 1)
	allowed, _ = l.Check(ctx, "1.2.3.4")
	assert.False(t, allowed)
}

func TestCheckNeverCountsAttempts(t *testing.T) {
	l, _ := newTestLimiter()
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		allowed, _ := l.Check(ctx, "1.2.3.4")
		require.True(t, allowed)
	}

	fail(l, "1.2.3.4", 4)
	allowed, _ := l.Check(ctx, "1.2.3.4")
	assert.True(t, allowed)
}

func TestLazyCleanupPurgesStaleState(t *testing.T) {
	l, clock := newTestLimiter()
	ctx := context.Background()

	fail(l, "a", 2)
	fail(l, "b", 5)
	require.Len(t, l.entries, 1)
	require.Len(t, l.blocked, 1)

	clock.Advance(16 * time.Minute)
	l.Check(ctx, "c")

	assert.Empty(t, l.entries)
	assert.Empty(t, l.blocked)
}

func TestClientID(t *testing.T) {
	assert.Equal(t, "10.0.0.1", ClientID("10.0.0.1, 192.168.1.1", "172.16.0.1"))
	assert.Equal(t, "10.0.0.1", ClientID(" 10.0.0.1 ", "172.16.0.1"))
	assert.Equal(t, "172.16.0.1", ClientID("", "172.16.0.1"))
	assert.Equal(t, "unknown", ClientID("", ""))
}
