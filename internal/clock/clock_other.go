//go:build !linux

package clock

import "time"

// epoch anchors the monotonic reading on platforms without clock_gettime.
var epoch = time.Now()

func realtimeNanos() (int64, bool) {
	return time.Now().UnixNano(), true
}

func monotonicNanos() (int64, bool) {
	return int64(time.Since(epoch)), true
}
