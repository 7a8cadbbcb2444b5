package server

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGlobalLimiterCapacity(t *testing.T) {
	l := NewGlobalConnectionLimiter(2)

	assert.True(t, l.Acquire())
	assert.True(t, l.Acquire())
	assert.False(t, l.Acquire())

	l.Release()
	assert.True(t, l.Acquire())
	assert.Equal(t, int64(2), l.Current())
}

func TestGlobalLimiterConcurrentAcquire(t *testing.T) {
	const slots = 50
	l := NewGlobalConnectionLimiter(slots)

	var wg sync.WaitGroup
	granted := make(chan struct{}, 200)
	for range 200 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Acquire() {
				granted <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(granted)

	assert.Len(t, granted, slots)
	assert.Equal(t, int64(slots), l.Current())
}

func TestIPLimiterPerIPIsolation(t *testing.T) {
	l := NewIPConnectionLimiter(2)

	assert.True(t, l.Acquire("10.0.0.1"))
	assert.True(t, l.Acquire("10.0.0.1"))
	assert.False(t, l.Acquire("10.0.0.1"))

	// Another IP has its own budget
	assert.True(t, l.Acquire("10.0.0.2"))

	l.Release("10.0.0.1")
	assert.True(t, l.Acquire("10.0.0.1"))
	assert.Equal(t, 2, l.Count("10.0.0.1"))
}

func TestIPLimiterReleaseUnknownIP(t *testing.T) {
	l := NewIPConnectionLimiter(1)

	// Release without a prior Acquire must not underflow
	l.Release("10.0.0.9")
	assert.Equal(t, 0, l.Count("10.0.0.9"))
	assert.True(t, l.Acquire("10.0.0.9"))
}

func TestRateLimiterBurst(t *testing.T) {
	l := NewConnectionRateLimiter(1, 3)

	for i := range 3 {
		assert.True(t, l.Allow("10.0.0.1"), "burst connection %d should pass", i)
	}
	assert.False(t, l.Allow("10.0.0.1"))

	// Independent bucket per IP
	assert.True(t, l.Allow("10.0.0.2"))
}

func TestConnectionLimitsRejectReasons(t *testing.T) {
	l := NewConnectionLimits(1, 1, 100, 100)

	ok, reason := l.Acquire("10.0.0.1")
	require.True(t, ok)
	assert.Empty(t, reason)

	// Global cap of 1 fires before the per-IP check for a second IP
	ok, reason = l.Acquire("10.0.0.2")
	assert.False(t, ok)
	assert.Equal(t, LimitReasonGlobal, reason)

	l.Release("10.0.0.1")

	// Per-IP cap fires once the same IP holds its slot
	bigger := NewConnectionLimits(10, 1, 100, 100)
	ok, _ = bigger.Acquire("10.0.0.3")
	require.True(t, ok)
	ok, reason = bigger.Acquire("10.0.0.3")
	assert.False(t, ok)
	assert.Equal(t, LimitReasonPerIP, reason)

	// Per-IP rejection must roll back the global slot
	assert.Equal(t, int64(1), bigger.global.Current())
}

func TestConnectionLimitsRateReason(t *testing.T) {
	l := NewConnectionLimits(100, 100, 1, 1)

	ok, _ := l.Acquire("10.0.0.1")
	require.True(t, ok)

	ok, reason := l.Acquire("10.0.0.1")
	assert.False(t, ok)
	assert.Equal(t, LimitReasonRate, reason)

	// A rate rejection holds no slots
	l.Release("10.0.0.1")
	assert.Equal(t, int64(0), l.global.Current())
}
