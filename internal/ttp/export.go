package ttp

import (
	"io"
)

// Session is a forward-only cursor over every recorded event: contexts in
// ascending order, events oldest first within a context.
//
// A Session is owned by whoever opened it and is not safe for concurrent
// use. To start over, open a new one.
type Session struct {
	t       *Tracer
	context int
	event   uint64
}

// Export opens a new export session positioned before the first event.
func (t *Tracer) Export() *Session {
	return &Session{t: t}
}

// Position returns the cursor: the context being read and the index of the
// next event within it.
func (s *Session) Position() (context int, event uint64) {
	return s.context, s.event
}

// Next renders the next event into buf as "id,context,timestamp_ns\n" and
// returns the number of bytes written. At end of stream it returns
// (0, io.EOF).
//
// buf must be at least MaxLineLen long, otherwise OUTPUT_TOO_SMALL is
// returned and the cursor does not move. Export is refused with BUSY while
// armed.
func (s *Session) Next(buf []byte) (int, error) {
	t := s.t
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed.Load() {
		return 0, newError(ErrCodeClosed, "export", "tracer closed")
	}
	if t.armed.Load() {
		return 0, newError(ErrCodeBusy, "export", "cannot export while armed")
	}
	if len(buf) < MaxLineLen {
		return 0, newError(ErrCodeOutputTooSmall, "export", "buffer holds %d bytes, need %d", len(buf), MaxLineLen)
	}

	for s.context < len(t.stores) {
		st := &t.stores[s.context]
		if s.event >= st.count.Load() {
			s.context++
			s.event = 0
			continue
		}
		line := AppendLine(buf[:0], uint32(s.context), st.at(s.event))
		s.event++
		return len(line), nil
	}
	return 0, io.EOF
}

// WriteTo drains the session into w, one line per write. It stops at the
// first error from the tracer or from w.
func (s *Session) WriteTo(w io.Writer) (int64, error) {
	var buf [MaxLineLen]byte
	var total int64
	for {
		n, err := s.Next(buf[:])
		if err == io.EOF {
			return total, nil
		}
		if err != nil {
			return total, err
		}
		m, err := w.Write(buf[:n])
		total += int64(m)
		if err != nil {
			return total, err
		}
	}
}

// WriteTo exports every recorded event to w through a fresh session.
func (t *Tracer) WriteTo(w io.Writer) (int64, error) {
	return t.Export().WriteTo(w)
}
