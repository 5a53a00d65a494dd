package ttp

import (
	"sync/atomic"

	"golang.org/x/sys/cpu"
)

// store is one context's event buffer.
//
// Only the owning handle appends. count is published after the slot is
// written, so any reader that loads count may read events[:count].
// Readers and Reset run only while disarmed.
type store struct {
	_ cpu.CacheLinePad

	count   atomic.Uint64
	dropped atomic.Uint64

	// overflowing is set by the first drop of an episode and cleared by Reset.
	overflowing atomic.Bool

	events []Event

	_ cpu.CacheLinePad
}

// append records ev. It reports true only for the first drop of an
// overflow episode.
func (s *store) append(ev Event) bool {
	n := s.count.Load()
	if n >= uint64(len(s.events)) {
		s.dropped.Add(1)
		return !s.overflowing.Swap(true)
	}
	s.events[n] = ev
	s.count.Store(n + 1)
	return false
}

// at returns the i-th event. The caller must have observed count > i.
func (s *store) at(i uint64) Event {
	return s.events[i]
}

// reset clears the logical length. Buffer contents are left in place.
func (s *store) reset() {
	s.count.Store(0)
	s.dropped.Store(0)
	s.overflowing.Store(false)
}
