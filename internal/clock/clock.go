// Package clock resolves a logical clock selection to a nanosecond timestamp.
//
// Two sources are supported:
//   - Realtime: wall-clock nanoseconds since the Unix epoch. Not monotonic and
//     not synchronized across execution contexts.
//   - Monotonic: nanoseconds since an implementation-fixed epoch (boot on
//     Linux). Non-decreasing for a given context.
//
// Unset is the zero value and means "do not record". Readers return
// ok=false for Unset or any unknown source and never block.
package clock

import (
	"fmt"
	"strings"
)

// Source selects which clock timestamps events.
type Source int32

const (
	// Unset suppresses emission entirely.
	Unset Source = iota

	// Realtime is wall-clock time.
	Realtime

	// Monotonic is elapsed time since a fixed epoch.
	Monotonic
)

// String returns the lower-case name of the source.
func (s Source) String() string {
	switch s {
	case Unset:
		return "unset"
	case Realtime:
		return "realtime"
	case Monotonic:
		return "monotonic"
	default:
		return fmt.Sprintf("source(%d)", int32(s))
	}
}

// Valid reports whether s is one of the known sources.
func (s Source) Valid() bool {
	return s == Unset || s == Realtime || s == Monotonic
}

// ParseSource parses a source name. The numeric forms "0" and "1" are the
// control tokens for realtime and monotonic respectively.
func ParseSource(name string) (Source, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "unset", "none":
		return Unset, nil
	case "realtime", "0":
		return Realtime, nil
	case "monotonic", "1":
		return Monotonic, nil
	default:
		return Unset, fmt.Errorf("unknown clock source %q", name)
	}
}

// Reader produces timestamps for a source.
//
// Implementations must be safe for concurrent use and must not block or
// allocate: Now sits on the emit hot path.
type Reader interface {
	Now(src Source) (ns uint64, ok bool)
}

// System reads the host clocks.
//
// MonotonicOffset is added to every monotonic reading. On Linux,
// clock_gettime already reflects the calling process's own time namespace,
// so the offset is only needed when readings must be translated into
// another namespace's view (see TimeNamespaceDelta). A reading that fails,
// or that the offset moves below zero, is reported as unavailable.
type System struct {
	MonotonicOffset int64
}

// NewSystem returns a System reader with the given monotonic offset in
// nanoseconds.
func NewSystem(monotonicOffset int64) *System {
	return &System{MonotonicOffset: monotonicOffset}
}

// Now implements Reader.
func (c *System) Now(src Source) (uint64, bool) {
	switch src {
	case Realtime:
		ns, ok := realtimeNanos()
		return offsetNanos(ns, ok, 0)
	case Monotonic:
		ns, ok := monotonicNanos()
		return offsetNanos(ns, ok, c.MonotonicOffset)
	default:
		return 0, false
	}
}

func offsetNanos(ns int64, ok bool, offset int64) (uint64, bool) {
	if !ok {
		return 0, false
	}
	ns += offset
	if ns < 0 {
		return 0, false
	}
	return uint64(ns), true
}
