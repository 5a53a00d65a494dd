package testutil

import (
	"sync/atomic"

	"github.com/roach88/ttp/internal/clock"
)

// RealtimeBase is the wall-clock origin reported by DeterministicClock for
// clock.Realtime readings: 2024-01-01T00:00:00Z in nanoseconds.
const RealtimeBase uint64 = 1_704_067_200_000_000_000

// DeterministicClock is a clock.Reader whose readings advance by a fixed
// step on every call.
//
// The first reading is one step past the origin. Monotonic readings start
// at zero, realtime readings at RealtimeBase. Unset and unknown sources are
// unavailable, exactly as with clock.System.
//
// Thread-safety: Now is lock-free and safe for concurrent use, so the clock
// can sit on the emit hot path in tests.
type DeterministicClock struct {
	step  uint64
	ticks atomic.Uint64
}

var _ clock.Reader = (*DeterministicClock)(nil)

// NewDeterministicClock creates a clock advancing by step nanoseconds per
// reading. A zero step defaults to 1000 (1µs).
func NewDeterministicClock(step uint64) *DeterministicClock {
	if step == 0 {
		step = 1000
	}
	return &DeterministicClock{step: step}
}

// Now implements clock.Reader.
func (c *DeterministicClock) Now(src clock.Source) (uint64, bool) {
	switch src {
	case clock.Monotonic:
		return c.ticks.Add(1) * c.step, true
	case clock.Realtime:
		return RealtimeBase + c.ticks.Add(1)*c.step, true
	default:
		return 0, false
	}
}

// Advance moves the clock forward by n readings without producing one.
func (c *DeterministicClock) Advance(n uint64) {
	c.ticks.Add(n)
}

// Ticks returns how many readings (including Advance) have been taken.
func (c *DeterministicClock) Ticks() uint64 {
	return c.ticks.Load()
}

// Reset rewinds the clock to its origin.
//
// Used for test reuse. After Reset(), the next reading is one step past
// the origin again.
func (c *DeterministicClock) Reset() {
	c.ticks.Store(0)
}
