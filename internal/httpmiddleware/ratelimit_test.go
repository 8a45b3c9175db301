package httpmiddleware

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newClockedLimiter(perMinute int) (*Limiter, *time.Time) {
	l := NewLimiter(perMinute)
	now := time.Now()
	l.now = func() time.Time { return now }
	return l, &now
}

func TestLimiterBurst(t *testing.T) {
	l, _ := newClockedLimiter(5)

	for i := 0; i < 5; i++ {
		assert.True(t, l.Allow("gate-1"), "request %d within burst", i)
	}
	assert.False(t, l.Allow("gate-1"))

	// Other clients are unaffected.
	assert.True(t, l.Allow("gate-2"))
}

func TestLimiterRefill(t *testing.T) {
	l, now := newClockedLimiter(60) // one token per second

	for i := 0; i < 60; i++ {
		assert.True(t, l.Allow("gate-1"))
	}
	assert.False(t, l.Allow("gate-1"))

	*now = now.Add(2 * time.Second)
	assert.True(t, l.Allow("gate-1"))
	assert.True(t, l.Allow("gate-1"))
	assert.False(t, l.Allow("gate-1"))
}

func TestLimiterSweepsIdleClients(t *testing.T) {
	l, now := newClockedLimiter(60)

	assert.True(t, l.Allow("gate-1"))
	assert.Len(t, l.buckets, 1)

	// After a full refill's worth of idle time the entry is reclaimed when
	// the next new client arrives.
	*now = now.Add(2 * time.Minute)
	assert.True(t, l.Allow("gate-2"))
	_, stale := l.buckets["gate-1"]
	assert.False(t, stale)
}
