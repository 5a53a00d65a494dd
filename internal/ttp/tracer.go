package ttp

import (
	"fmt"
	"math/bits"
	"runtime"
	"sync"
	"sync/atomic"
	"unsafe"

	"go.uber.org/zap"

	"github.com/roach88/ttp/internal/clock"
)

// DefaultCapacity is the per-context event capacity used when Options
// leaves Capacity at zero.
const DefaultCapacity = 300_000

// eventSize is the in-memory footprint of one Event slot.
const eventSize = uint64(unsafe.Sizeof(Event{}))

// Options configures a Tracer. Everything is fixed for the tracer's
// lifetime except the clock selection.
type Options struct {
	// Contexts is the number of execution contexts. Zero means
	// runtime.NumCPU().
	Contexts int

	// Capacity is the per-context event capacity. Zero means DefaultCapacity.
	Capacity int

	// MaxMemory caps the total event storage in bytes. Zero means no cap
	// beyond what the allocator can satisfy.
	MaxMemory uint64

	// Clock is the initial clock selection.
	Clock clock.Source

	// Reader supplies timestamps. Nil means clock.NewSystem(0).
	Reader clock.Reader

	// Logger receives state transitions and overflow notices. Nil means
	// zap.NewNop().
	Logger *zap.Logger
}

// Tracer is the process-wide recorder: the armed flag, the clock
// selection, and one store per context.
//
// Thread-safety: Handle.Emit is lock-free and may run concurrently on
// distinct handles. All other methods serialize on an internal mutex.
type Tracer struct {
	mu sync.Mutex

	armed  atomic.Bool
	source atomic.Int32
	closed atomic.Bool

	// overflowNotices is advisory: bumped once per overflow episode.
	overflowNotices atomic.Uint32

	reader   clock.Reader
	logger   *zap.Logger
	capacity int

	stores  []store
	handles []Handle
}

// New allocates a tracer. Storage for every context is allocated up front;
// if any allocation fails, nothing is kept and an OUT_OF_MEMORY error is
// returned.
func New(opts Options) (*Tracer, error) {
	if opts.Contexts < 0 {
		return nil, newError(ErrCodeInvalidConfig, "init", "negative context count %d", opts.Contexts)
	}
	if opts.Capacity < 0 {
		return nil, newError(ErrCodeInvalidConfig, "init", "negative capacity %d", opts.Capacity)
	}
	if !opts.Clock.Valid() {
		return nil, newError(ErrCodeInvalidConfig, "init", "unknown clock source %s", opts.Clock)
	}
	if opts.Contexts == 0 {
		opts.Contexts = runtime.NumCPU()
	}
	if opts.Capacity == 0 {
		opts.Capacity = DefaultCapacity
	}
	if opts.Reader == nil {
		opts.Reader = clock.NewSystem(0)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	footprint, err := footprint(opts.Contexts, opts.Capacity)
	if err != nil {
		return nil, err
	}
	if opts.MaxMemory > 0 && footprint > opts.MaxMemory {
		return nil, newError(ErrCodeOutOfMemory, "init",
			"%d contexts x %d events needs %d bytes, limit is %d",
			opts.Contexts, opts.Capacity, footprint, opts.MaxMemory)
	}

	opts.Logger.Info("allocating event storage",
		zap.Int("contexts", opts.Contexts),
		zap.Int("capacity", opts.Capacity),
		zap.Uint64("bytes", footprint),
	)

	stores, err := allocate(opts.Contexts, opts.Capacity)
	if err != nil {
		return nil, err
	}

	t := &Tracer{
		reader:   opts.Reader,
		logger:   opts.Logger,
		capacity: opts.Capacity,
		stores:   stores,
		handles:  make([]Handle, opts.Contexts),
	}
	t.source.Store(int32(opts.Clock))
	for i := range t.handles {
		t.handles[i] = Handle{t: t, index: uint32(i), s: &stores[i]}
	}
	return t, nil
}

// footprint returns contexts*capacity*eventSize, or OUT_OF_MEMORY if the
// product does not fit in 64 bits.
func footprint(contexts, capacity int) (uint64, error) {
	hi, slots := bits.Mul64(uint64(contexts), uint64(capacity))
	if hi != 0 {
		return 0, newError(ErrCodeOutOfMemory, "init", "storage size overflows")
	}
	hi, total := bits.Mul64(slots, eventSize)
	if hi != 0 {
		return 0, newError(ErrCodeOutOfMemory, "init", "storage size overflows")
	}
	return total, nil
}

// allocate builds every store or none. The runtime reports impossible
// slice sizes as a panic, which is turned into OUT_OF_MEMORY.
func allocate(contexts, capacity int) (stores []store, err error) {
	defer func() {
		if r := recover(); r != nil {
			stores = nil
			err = newError(ErrCodeOutOfMemory, "init", "allocate event storage: %v", r)
		}
	}()

	stores = make([]store, contexts)
	for i := range stores {
		stores[i].events = make([]Event, capacity)
	}
	return stores, nil
}

// Contexts returns the number of execution contexts.
func (t *Tracer) Contexts() int {
	return len(t.handles)
}

// Capacity returns the per-context event capacity.
func (t *Tracer) Capacity() int {
	return t.capacity
}

// Armed reports whether recording is armed.
func (t *Tracer) Armed() bool {
	return t.armed.Load()
}

// Clock returns the current clock selection.
func (t *Tracer) Clock() clock.Source {
	return clock.Source(t.source.Load())
}

// OverflowNotices returns how many overflow episodes have been reported.
func (t *Tracer) OverflowNotices() uint32 {
	return t.overflowNotices.Load()
}

// Context returns the handle for context i.
func (t *Tracer) Context(i int) (*Handle, error) {
	if t.closed.Load() {
		return nil, newError(ErrCodeClosed, "context", "tracer closed")
	}
	if i < 0 || i >= len(t.handles) {
		return nil, newError(ErrCodeNoSuchContext, "context", "context %d out of range [0,%d)", i, len(t.handles))
	}
	return &t.handles[i], nil
}

// Emit records id on context i. An out-of-range index is ignored, like
// every other hot-path failure.
func (t *Tracer) Emit(i int, id uint32) {
	if i < 0 || i >= len(t.handles) {
		return
	}
	t.handles[i].Emit(id)
}

// Arm starts recording.
func (t *Tracer) Arm() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed.Load() {
		return newError(ErrCodeClosed, "arm", "tracer closed")
	}
	if t.armed.Load() {
		return newError(ErrCodeAlreadyArmed, "arm", "recording already armed")
	}
	t.armed.Store(true)
	t.logger.Info("ttp armed", zap.Stringer("clock", t.Clock()))
	return nil
}

// Disarm stops recording. It never fails and is a no-op when already
// disarmed. Emits that already passed the armed check may still land.
func (t *Tracer) Disarm() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.armed.Swap(false) {
		t.logger.Info("ttp stopped")
	}
}

// Reset empties every store. Capacity and buffer memory are kept.
func (t *Tracer) Reset() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed.Load() {
		return newError(ErrCodeClosed, "reset", "tracer closed")
	}
	if t.armed.Load() {
		return newError(ErrCodeInvalidWhileArmed, "reset", "cannot reset while armed")
	}
	for i := range t.stores {
		t.stores[i].reset()
	}
	t.logger.Info("reset event storage")
	return nil
}

// SetClock changes the clock selection. Events recorded under different
// sources are not comparable, so the switch is refused while armed.
func (t *Tracer) SetClock(src clock.Source) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed.Load() {
		return newError(ErrCodeClosed, "set clock", "tracer closed")
	}
	if !src.Valid() {
		return newError(ErrCodeInvalidCommand, "set clock", "unknown clock source %s", src)
	}
	if t.armed.Load() {
		return newError(ErrCodeBusy, "set clock", "cannot change clock while armed")
	}
	t.source.Store(int32(src))
	t.logger.Info("using clock", zap.Stringer("clock", src))
	return nil
}

// Exec parses a control token and applies it. Unrecognized tokens return
// INVALID_COMMAND and change nothing.
func (t *Tracer) Exec(token string) error {
	cmd, err := ParseCommand(token)
	if err != nil {
		return err
	}
	return t.Apply(cmd)
}

// Apply runs a parsed command.
func (t *Tracer) Apply(cmd Command) error {
	switch cmd {
	case CmdStart:
		return t.Arm()
	case CmdStop:
		if t.closed.Load() {
			return newError(ErrCodeClosed, "stop", "tracer closed")
		}
		t.Disarm()
		return nil
	case CmdReset:
		return t.Reset()
	case CmdClockRealtime, CmdClockMonotonic:
		src, _ := cmd.Source()
		return t.SetClock(src)
	default:
		return newError(ErrCodeInvalidCommand, "exec", "unknown command %d", int(cmd))
	}
}

// Close disarms the tracer and detaches its stores. Later control
// operations return CLOSED and emits are no-ops. Event memory is released
// once no handle is reachable.
func (t *Tracer) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed.Swap(true) {
		return nil
	}
	t.armed.Store(false)
	t.stores = nil
	t.logger.Info("released event storage")
	return nil
}

// noteOverflow reports the first drop of an overflow episode on context i.
func (t *Tracer) noteOverflow(i uint32) {
	n := t.overflowNotices.Add(1)
	t.logger.Warn("max events reached, dropping",
		zap.Uint32("context", i),
		zap.Int("capacity", t.capacity),
		zap.Uint32("notices", n),
	)
}

// ContextStats describes one store.
type ContextStats struct {
	Context int    `json:"context"`
	Count   uint64 `json:"count"`
	Dropped uint64 `json:"dropped"`
}

// Stats is a point-in-time summary of the tracer.
type Stats struct {
	Armed           bool           `json:"armed"`
	Clock           string         `json:"clock"`
	Contexts        int            `json:"contexts"`
	Capacity        int            `json:"capacity"`
	OverflowNotices uint32         `json:"overflow_notices"`
	Events          uint64         `json:"events"`
	Dropped         uint64         `json:"dropped"`
	PerContext      []ContextStats `json:"per_context"`
}

// Stats returns per-context counts. While armed the numbers are a moving
// target; they are exact once disarmed.
func (t *Tracer) Stats() (Stats, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed.Load() {
		return Stats{}, newError(ErrCodeClosed, "stats", "tracer closed")
	}

	st := Stats{
		Armed:           t.armed.Load(),
		Clock:           t.Clock().String(),
		Contexts:        len(t.stores),
		Capacity:        t.capacity,
		OverflowNotices: t.overflowNotices.Load(),
		PerContext:      make([]ContextStats, len(t.stores)),
	}
	for i := range t.stores {
		cs := ContextStats{
			Context: i,
			Count:   t.stores[i].count.Load(),
			Dropped: t.stores[i].dropped.Load(),
		}
		st.Events += cs.Count
		st.Dropped += cs.Dropped
		st.PerContext[i] = cs
	}
	return st, nil
}

// String implements fmt.Stringer for log output.
func (s Stats) String() string {
	state := "disarmed"
	if s.Armed {
		state = "armed"
	}
	return fmt.Sprintf("%s clock=%s contexts=%d capacity=%d events=%d dropped=%d overflow_notices=%d",
		state, s.Clock, s.Contexts, s.Capacity, s.Events, s.Dropped, s.OverflowNotices)
}

// Handle is the capability to record on one context.
//
// A Handle must not be used by more than one goroutine at a time.
type Handle struct {
	t     *Tracer
	index uint32
	s     *store
}

// Index returns the handle's context index.
func (h *Handle) Index() int {
	return int(h.index)
}

// Emit records id with the current time. It never blocks, never
// allocates, and never fails visibly: disarmed, unset clock, unavailable
// clock and full store all drop the event.
func (h *Handle) Emit(id uint32) {
	t := h.t
	if !t.armed.Load() {
		return
	}
	src := clock.Source(t.source.Load())
	if src == clock.Unset {
		return
	}
	ns, ok := t.reader.Now(src)
	if !ok {
		return
	}
	if h.s.append(Event{ID: id, Timestamp: ns}) {
		t.noteOverflow(h.index)
	}
}
