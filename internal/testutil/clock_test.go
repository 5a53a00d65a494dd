package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ttp/internal/clock"
)

func TestDeterministicClock_StartsAtZero(t *testing.T) {
	c := NewDeterministicClock(10)
	assert.Equal(t, uint64(0), c.Ticks())
}

func TestDeterministicClock_MonotonicSteps(t *testing.T) {
	c := NewDeterministicClock(10)

	ns, ok := c.Now(clock.Monotonic)
	require.True(t, ok)
	assert.Equal(t, uint64(10), ns)

	ns, _ = c.Now(clock.Monotonic)
	assert.Equal(t, uint64(20), ns)
	assert.Equal(t, uint64(2), c.Ticks())
}

func TestDeterministicClock_Realtime(t *testing.T) {
	c := NewDeterministicClock(5)

	ns, ok := c.Now(clock.Realtime)
	require.True(t, ok)
	assert.Equal(t, RealtimeBase+5, ns)
}

func TestDeterministicClock_Unset(t *testing.T) {
	c := NewDeterministicClock(5)

	_, ok := c.Now(clock.Unset)
	assert.False(t, ok)
	assert.Equal(t, uint64(0), c.Ticks(), "unavailable readings do not tick")
}

func TestDeterministicClock_DefaultStep(t *testing.T) {
	c := NewDeterministicClock(0)
	ns, _ := c.Now(clock.Monotonic)
	assert.Equal(t, uint64(1000), ns)
}

func TestDeterministicClock_AdvanceAndReset(t *testing.T) {
	c := NewDeterministicClock(1)

	c.Advance(41)
	ns, _ := c.Now(clock.Monotonic)
	assert.Equal(t, uint64(42), ns)

	c.Reset()
	ns, _ = c.Now(clock.Monotonic)
	assert.Equal(t, uint64(1), ns)
}

func TestDeterministicClock_ConcurrentUnique(t *testing.T) {
	c := NewDeterministicClock(1)

	const goroutines = 8
	const perGoroutine = 500

	var mu sync.Mutex
	seen := make(map[uint64]bool)

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]uint64, 0, perGoroutine)
			for j := 0; j < perGoroutine; j++ {
				ns, _ := c.Now(clock.Monotonic)
				local = append(local, ns)
			}
			mu.Lock()
			defer mu.Unlock()
			for _, ns := range local {
				assert.False(t, seen[ns], "duplicate reading %d", ns)
				seen[ns] = true
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, goroutines*perGoroutine)
}

func TestFixedIDGenerator(t *testing.T) {
	assert.Equal(t, "abc", NewFixedIDGenerator("abc").Generate())
	assert.Equal(t, "test-session-default", NewFixedIDGenerator("").Generate())
}
