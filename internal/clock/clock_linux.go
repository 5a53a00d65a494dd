//go:build linux

package clock

import (
	"golang.org/x/sys/unix"
)

func realtimeNanos() (int64, bool) {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_REALTIME, &ts); err != nil {
		return 0, false
	}
	return ts.Nano(), true
}

// monotonicNanos reads CLOCK_MONOTONIC. The kernel applies the caller's
// time namespace offset before returning.
func monotonicNanos() (int64, bool) {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		return 0, false
	}
	return ts.Nano(), true
}
